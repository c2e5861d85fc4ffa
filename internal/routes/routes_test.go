package routes_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/artifox/artifox/internal/config"
	"github.com/artifox/artifox/internal/logging"
	"github.com/artifox/artifox/internal/provider"
	"github.com/artifox/artifox/internal/routes"
)

type failingProvider struct{}

func (failingProvider) Run(context.Context, provider.Job) (provider.Result, error) {
	return provider.Result{}, fmt.Errorf("model overloaded")
}

func testConfig(signupCredits float64) config.Config {
	return config.Config{
		AppName:         "artifox-test",
		AppEnv:          "development",
		LogLevel:        "error",
		JWTSecret:       "test-secret",
		RefreshSecret:   "test-refresh",
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
		IdempotencyTTL:  time.Minute,
		SignupCredits:   signupCredits,
		TrialDays:       3,
		TrialCredits:    25,
	}
}

func setupApp(t *testing.T, prov provider.Provider, signupCredits float64) (*fiber.App, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	app := fiber.New(fiber.Config{ErrorHandler: routes.ErrorHandler})
	err = routes.Setup(app, routes.Deps{
		Cfg:      testConfig(signupCredits),
		Cache:    cache,
		Logger:   logging.Discard(),
		Provider: prov,
	})
	if err != nil {
		t.Fatalf("setup routes: %v", err)
	}

	cleanup := func() {
		cache.Close()
		mr.Close()
	}
	return app, cleanup
}

func doJSON(t *testing.T, app *fiber.App, method, path, token string, body any, headers map[string]string) (int, map[string]any) {
	t.Helper()
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reqBody = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reqBody)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := app.Test(req, 5000)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	decoded := map[string]any{}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &decoded); err != nil {
			t.Fatalf("decode %s %s response %q: %v", method, path, string(payload), err)
		}
	}
	return resp.StatusCode, decoded
}

func registerAndLogin(t *testing.T, app *fiber.App, email string) string {
	t.Helper()
	creds := fiber.Map{"email": email, "password": "longenoughpw"}
	if status, body := doJSON(t, app, fiber.MethodPost, "/api/v1/auth/register", "", creds, nil); status != http.StatusCreated {
		t.Fatalf("register: status %d body %v", status, body)
	}
	status, body := doJSON(t, app, fiber.MethodPost, "/api/v1/auth/login", "", creds, nil)
	if status != http.StatusOK {
		t.Fatalf("login: status %d body %v", status, body)
	}
	token, _ := body["access_token"].(string)
	if token == "" {
		t.Fatalf("no access token in %v", body)
	}
	return token
}

func TestTransformRequiresAuth(t *testing.T) {
	app, cleanup := setupApp(t, provider.Static{}, 3)
	defer cleanup()

	status, body := doJSON(t, app, fiber.MethodPost, "/api/v1/transform", "", fiber.Map{
		"prompt": "p", "input_image": "https://cdn.example/a.jpg",
	}, nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d body %v", status, body)
	}
	if body["error"] == "" {
		t.Fatalf("expected error envelope, got %v", body)
	}
}

func TestTransformInvalidToken(t *testing.T) {
	app, cleanup := setupApp(t, provider.Static{}, 3)
	defer cleanup()

	status, _ := doJSON(t, app, fiber.MethodPost, "/api/v1/transform", "not-a-jwt", fiber.Map{
		"prompt": "p", "input_image": "https://cdn.example/a.jpg",
	}, nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", status)
	}
}

func TestTransformFullFlow(t *testing.T) {
	app, cleanup := setupApp(t, provider.Static{URL: "https://cdn.example/result.jpg"}, 2)
	defer cleanup()

	token := registerAndLogin(t, app, "flow@example.com")

	status, body := doJSON(t, app, fiber.MethodGet, "/api/v1/me", token, nil, nil)
	if status != http.StatusOK || body["credits"].(float64) != 2 {
		t.Fatalf("me: status %d body %v", status, body)
	}

	// Missing input_image fails validation before any charge.
	status, body = doJSON(t, app, fiber.MethodPost, "/api/v1/transform", token, fiber.Map{"prompt": "p"}, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body %v", status, body)
	}

	valid := fiber.Map{"prompt": "watercolor", "input_image": "https://cdn.example/a.jpg"}

	status, body = doJSON(t, app, fiber.MethodPost, "/api/v1/transform", token, valid, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d body %v", status, body)
	}
	if body["output"] != "https://cdn.example/result.jpg" {
		t.Fatalf("unexpected output %v", body["output"])
	}
	if body["credits_remaining"].(float64) != 1 {
		t.Fatalf("expected 1 remaining, got %v", body["credits_remaining"])
	}

	status, body = doJSON(t, app, fiber.MethodPost, "/api/v1/transform", token, valid, nil)
	if status != http.StatusOK || body["credits_remaining"].(float64) != 0 {
		t.Fatalf("second call: status %d body %v", status, body)
	}

	status, body = doJSON(t, app, fiber.MethodPost, "/api/v1/transform", token, valid, nil)
	if status != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d body %v", status, body)
	}
	if body["error"] != "Insufficient credits" {
		t.Fatalf("unexpected error message %v", body["error"])
	}
}

func TestTransformUpstreamFailureKeepsBalance(t *testing.T) {
	app, cleanup := setupApp(t, failingProvider{}, 3)
	defer cleanup()

	token := registerAndLogin(t, app, "fail@example.com")

	status, body := doJSON(t, app, fiber.MethodPost, "/api/v1/transform", token, fiber.Map{
		"prompt": "p", "input_image": "https://cdn.example/a.jpg",
	}, nil)
	if status != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d body %v", status, body)
	}

	status, body = doJSON(t, app, fiber.MethodGet, "/api/v1/me", token, nil, nil)
	if status != http.StatusOK || body["credits"].(float64) != 3 {
		t.Fatalf("balance should be unchanged: status %d body %v", status, body)
	}
}

func TestTransformIdempotencyKeyReplays(t *testing.T) {
	app, cleanup := setupApp(t, provider.Static{}, 1)
	defer cleanup()

	token := registerAndLogin(t, app, "idem@example.com")
	valid := fiber.Map{"prompt": "watercolor", "input_image": "https://cdn.example/a.jpg"}
	headers := map[string]string{"Idempotency-Key": "op-1"}

	status, body := doJSON(t, app, fiber.MethodPost, "/api/v1/transform", token, valid, headers)
	if status != http.StatusOK || body["credits_remaining"].(float64) != 0 {
		t.Fatalf("first call: status %d body %v", status, body)
	}

	// The replay returns the stored response without a second charge even
	// though the balance is now empty.
	status, body = doJSON(t, app, fiber.MethodPost, "/api/v1/transform", token, valid, headers)
	if status != http.StatusOK || body["credits_remaining"].(float64) != 0 {
		t.Fatalf("replay: status %d body %v", status, body)
	}

	status, body = doJSON(t, app, fiber.MethodGet, "/api/v1/me", token, nil, nil)
	if status != http.StatusOK || body["credits"].(float64) != 0 {
		t.Fatalf("expected single deduction: status %d body %v", status, body)
	}
}

func TestGenerateAliasAndTrialUpgrade(t *testing.T) {
	app, cleanup := setupApp(t, provider.Static{}, 1)
	defer cleanup()

	token := registerAndLogin(t, app, "trial@example.com")

	status, body := doJSON(t, app, fiber.MethodPost, "/api/v1/generate", token, fiber.Map{"prompt": "a fox"}, nil)
	if status != http.StatusOK {
		t.Fatalf("generate: status %d body %v", status, body)
	}

	status, body = doJSON(t, app, fiber.MethodPost, "/api/v1/me/trial", token, nil, nil)
	if status != http.StatusOK {
		t.Fatalf("trial: status %d body %v", status, body)
	}
	if body["user_status"] != "paid" || body["credits"].(float64) != 25 {
		t.Fatalf("unexpected trial profile %v", body)
	}

	status, body = doJSON(t, app, fiber.MethodGet, "/api/v1/me/credits/events", token, nil, nil)
	if status != http.StatusOK {
		t.Fatalf("events: status %d body %v", status, body)
	}
	events, _ := body["events"].([]any)
	if len(events) != 2 {
		t.Fatalf("expected debit + trial grant events, got %v", body["events"])
	}
}

func TestHealthz(t *testing.T) {
	app, cleanup := setupApp(t, provider.Static{}, 1)
	defer cleanup()

	status, _ := doJSON(t, app, fiber.MethodGet, "/healthz", "", nil, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
}
