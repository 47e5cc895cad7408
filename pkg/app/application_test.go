package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"courtbook/pkg/config"
	"courtbook/pkg/logger"
	"courtbook/pkg/middleware"

	"github.com/julienschmidt/httprouter"
)

type fakePinger struct {
	err error
}

func (p *fakePinger) Ping(ctx context.Context) error {
	return p.err
}

type echoHandler struct {
	calls int
}

func (h *echoHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/bookings", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		h.calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":"b-1"}}`))
	})
	router.GET("/api/v1/panic", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		panic("boom")
	})
}

func testConfig() *config.Config {
	return &config.Config{
		StorageBackend:    config.BackendMemory,
		Port:              "0",
		RateLimitRequests: 2,
		RateLimitWindow:   time.Minute,
		RequestTimeout:    time.Second,
		IdempotencyTTL:    time.Minute,
		MaxRequestSize:    1 << 20,
		PhoneRegion:       "IN",
		ReadTimeout:       time.Second,
		WriteTimeout:      time.Second,
		IdleTimeout:       time.Second,
		ShutdownTimeout:   time.Second,
		Log:               logger.NewNop(),
	}
}

func newApp(t *testing.T, pinger Pinger) (*Application, *echoHandler) {
	t.Helper()
	h := &echoHandler{}
	a := NewApplication()
	a.SetApp(testConfig(), pinger, h)
	t.Cleanup(a.Shutdown)
	return a, h
}

func post(handler http.Handler, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndReady(t *testing.T) {
	a, _ := newApp(t, &fakePinger{})

	for _, path := range []string{"/health", "/ready"} {
		rec := httptest.NewRecorder()
		a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d, want 200", path, rec.Code)
		}
	}
}

func TestReady_StorageDown(t *testing.T) {
	a, _ := newApp(t, &fakePinger{err: errors.New("no reachable servers")})

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"storage":"error"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestReady_NoPinger(t *testing.T) {
	a, _ := newApp(t, nil)

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestMiddlewareChain(t *testing.T) {
	a, h := newApp(t, nil)
	json := map[string]string{"Content-Type": "application/json"}

	rec := post(a.Handler(), `{"customer_phone":"+919812345678"}`, map[string]string{"Content-Type": "text/plain"})
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("non-JSON body status = %d, want 415", rec.Code)
	}

	rec = post(a.Handler(), `{}`, json)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	if rec.Header().Get(middleware.RequestIDHeader) == "" {
		t.Error("missing request id header")
	}
	if h.calls != 1 {
		t.Errorf("handler calls = %d, want 1", h.calls)
	}
}

func TestMiddlewareChain_IdempotentReplay(t *testing.T) {
	a, h := newApp(t, nil)
	headers := map[string]string{
		"Content-Type":                      "application/json",
		middleware.DefaultIdempotencyHeader: "key-1",
	}

	first := post(a.Handler(), `{}`, headers)
	second := post(a.Handler(), `{}`, headers)

	if first.Code != http.StatusCreated || second.Code != http.StatusCreated {
		t.Fatalf("statuses = %d/%d", first.Code, second.Code)
	}
	if h.calls != 1 {
		t.Errorf("handler calls = %d, want 1 (second request replayed)", h.calls)
	}
}

func TestMiddlewareChain_RateLimitByBodyPhone(t *testing.T) {
	a, _ := newApp(t, nil)
	json := map[string]string{"Content-Type": "application/json"}
	body := `{"customer_phone":"+919812345678"}`

	for i := 0; i < 2; i++ {
		if rec := post(a.Handler(), body, json); rec.Code != http.StatusCreated {
			t.Fatalf("attempt %d status = %d", i+1, rec.Code)
		}
	}
	if rec := post(a.Handler(), body, json); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third attempt status = %d, want 429", rec.Code)
	}
}

func TestMiddlewareChain_RecoversPanics(t *testing.T) {
	a, _ := newApp(t, nil)

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/panic", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestShutdown_RunsHooksOnce(t *testing.T) {
	a, _ := newApp(t, nil)

	var order []string
	a.OnShutdown(func() { order = append(order, "producer") })
	a.OnShutdown(func() { order = append(order, "store") })

	a.Shutdown()
	a.Shutdown()

	if strings.Join(order, ",") != "producer,store" {
		t.Errorf("hooks ran as %v", order)
	}
}
