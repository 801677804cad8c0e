package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/wolfman30/whatsapp-leadbot/internal/channels/whatsapp"
	"github.com/wolfman30/whatsapp-leadbot/internal/content"
	"github.com/wolfman30/whatsapp-leadbot/internal/conversation"
	"github.com/wolfman30/whatsapp-leadbot/internal/http/handlers"
	"github.com/wolfman30/whatsapp-leadbot/internal/intent"
	"github.com/wolfman30/whatsapp-leadbot/pkg/logging"
)

type stubProcessor struct{}

func (stubProcessor) ProcessMessage(context.Context, conversation.InboundMessage) *conversation.Result {
	return &conversation.Result{
		Responses:  content.Texts("hola"),
		ShouldSend: true,
	}
}

type stubSender struct{}

func (stubSender) SendText(context.Context, string, string) (string, error) { return "wamid", nil }
func (stubSender) SendFragmented(context.Context, string, content.Fragmented) ([]string, error) {
	return nil, nil
}
func (stubSender) MarkAsRead(context.Context, string) error { return nil }

type stubCatalog struct{}

func (stubCatalog) Refresh(context.Context) error { return nil }
func (stubCatalog) ActiveIntents() []intent.Definition { return nil }

func newTestRouter(t *testing.T, checks map[string]HealthCheck, testToken string) http.Handler {
	t.Helper()
	logger := logging.Discard()
	return New(&Config{
		Logger:          logger,
		WhatsApp:        whatsapp.NewAdapter(stubSender{}, stubProcessor{}, "verify-me", "", nil, logger),
		Conversation:    conversation.NewHandler(stubProcessor{}, logger),
		Admin:           handlers.NewAdminHandler(handlers.AdminDeps{Catalog: stubCatalog{}}, logger),
		AdminAuthSecret: "secret",
		TestToken:       testToken,
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("# metrics"))
		}),
		HealthChecks: checks,
	})
}

func TestRouterHealthEndpoint(t *testing.T) {
	router := newTestRouter(t, map[string]HealthCheck{
		"redis": func(context.Context) error { return nil },
	}, "")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	var resp map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("expected status 'ok', got %v", resp["status"])
	}
}

func TestRouterHealthDegraded(t *testing.T) {
	router := newTestRouter(t, map[string]HealthCheck{
		"postgres": func(context.Context) error { return errors.New("connection refused") },
	}, "")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status %d, got %d", http.StatusServiceUnavailable, rr.Code)
	}
}

func TestRouterWhatsAppVerification(t *testing.T) {
	router := newTestRouter(t, nil, "")

	req := httptest.NewRequest(http.MethodGet, "/webhooks/whatsapp?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=42", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK || rr.Body.String() != "42" {
		t.Fatalf("expected challenge echo, got %d %q", rr.Code, rr.Body.String())
	}
}

func TestRouterTestEndpointToken(t *testing.T) {
	router := newTestRouter(t, nil, "tok")
	body := `{"phoneNumber":"5215512345678","message":"hola"}`

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/test/process-message", strings.NewReader(body)))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/test/process-message", strings.NewReader(body))
	req.Header.Set(testTokenHeader, "tok")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", rr.Code)
	}
}

func TestRouterAdminRequiresJWT(t *testing.T) {
	router := newTestRouter(t, nil, "")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/admin/intents/refresh", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}

	claims := jwt.RegisteredClaims{Subject: "ops", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute))}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/admin/intents/refresh", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestRouterMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t, nil, "")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}
