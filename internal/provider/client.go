package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	statusCompleted = "COMPLETED"
	statusFailed    = "FAILED"
)

// Client talks to a queue-style inference provider: submit the job, poll its
// status, then fetch the result.
type Client struct {
	baseURL      string
	apiKey       string
	httpClient   *http.Client
	pollInterval time.Duration
	logger       *slog.Logger
}

// NewClient builds an HTTP provider client.
func NewClient(baseURL, apiKey string, pollInterval time.Duration, logger *slog.Logger) *Client {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &Client{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		apiKey:       apiKey,
		httpClient:   &http.Client{Timeout: 120 * time.Second},
		pollInterval: pollInterval,
		logger:       logger,
	}
}

type submitRequest struct {
	Prompt            string  `json:"prompt,omitempty"`
	ImageURL          string  `json:"image_url,omitempty"`
	ImageSize         string  `json:"image_size,omitempty"`
	NumInferenceSteps int     `json:"num_inference_steps,omitempty"`
	GuidanceScale     float64 `json:"guidance_scale,omitempty"`
	NumImages         int     `json:"num_images,omitempty"`
	OutputFormat      string  `json:"output_format,omitempty"`
}

type submitResponse struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
}

type statusResponse struct {
	Status string `json:"status"`
	Error  *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type resultResponse struct {
	Images []struct {
		URL string `json:"url"`
	} `json:"images"`
}

// Run submits the job and blocks until the provider reports a terminal state
// or ctx expires. Exactly one job is submitted per call; polling is read-only.
func (c *Client) Run(ctx context.Context, job Job) (Result, error) {
	requestID, err := c.submit(ctx, job)
	if err != nil {
		return Result{}, err
	}

	if err := c.waitForCompletion(ctx, job.Endpoint, requestID); err != nil {
		return Result{}, err
	}

	outputs, err := c.fetchResult(ctx, job.Endpoint, requestID)
	if err != nil {
		return Result{}, err
	}
	return Result{Outputs: outputs, RequestID: requestID}, nil
}

func (c *Client) submit(ctx context.Context, job Job) (string, error) {
	numImages := job.NumImages
	if numImages == 0 {
		numImages = 1
	}
	payload := submitRequest{
		Prompt:            job.Prompt,
		ImageURL:          job.InputImage,
		ImageSize:         job.ImageSize,
		NumInferenceSteps: job.NumInferenceSteps,
		GuidanceScale:     job.GuidanceScale,
		NumImages:         numImages,
		OutputFormat:      job.OutputFormat,
	}

	body, err := c.do(ctx, http.MethodPost, c.baseURL+"/"+strings.Trim(job.Endpoint, "/"), payload)
	if err != nil {
		return "", err
	}

	var resp submitResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode submit response: %w", err)
	}
	if resp.RequestID == "" {
		return "", fmt.Errorf("request_id missing in submit response: %s", string(body))
	}
	return resp.RequestID, nil
}

func (c *Client) waitForCompletion(ctx context.Context, endpoint, requestID string) error {
	url := fmt.Sprintf("%s/%s/requests/%s/status", c.baseURL, strings.Trim(endpoint, "/"), requestID)

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		body, err := c.do(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}

		var status statusResponse
		if err := json.Unmarshal(body, &status); err != nil {
			return fmt.Errorf("decode status response: %w", err)
		}

		switch status.Status {
		case statusCompleted:
			return nil
		case statusFailed:
			if status.Error != nil {
				return fmt.Errorf("inference failed: %s", status.Error.Message)
			}
			return fmt.Errorf("inference failed")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) fetchResult(ctx context.Context, endpoint, requestID string) ([]string, error) {
	url := fmt.Sprintf("%s/%s/requests/%s", c.baseURL, strings.Trim(endpoint, "/"), requestID)

	body, err := c.do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	var result resultResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode result response: %w", err)
	}
	if len(result.Images) == 0 {
		return nil, fmt.Errorf("no images in result: %s", string(body))
	}

	outputs := make([]string, 0, len(result.Images))
	for _, img := range result.Images {
		outputs = append(outputs, img.URL)
	}
	return outputs, nil
}

func (c *Client) do(ctx context.Context, method, url string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Key "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		if c.logger != nil {
			c.logger.Warn("provider request failed",
				slog.String("url", url),
				slog.Int("status", resp.StatusCode),
				slog.String("body", string(body)),
			)
		}
		return nil, fmt.Errorf("provider returned status %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}
