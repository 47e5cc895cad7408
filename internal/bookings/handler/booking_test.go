package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"courtbook/internal/bookings/service"
	"courtbook/internal/metrics"
	apperrors "courtbook/pkg/errors"
	"courtbook/pkg/logger"
	"courtbook/pkg/model"

	"github.com/julienschmidt/httprouter"
)

// Mock service for testing
type mockBookingService struct {
	createFunc         func(ctx context.Context, req *model.BookingRequest) (*model.Booking, error)
	getByIDFunc        func(ctx context.Context, id string) (*model.Booking, error)
	getByReferenceFunc func(ctx context.Context, ref string) (*model.Booking, error)
	getAllFunc         func(ctx context.Context, limit int, offset int64) ([]*model.Booking, int64, error)
	cancelFunc         func(ctx context.Context, id string) (*model.Booking, error)
	completeFunc       func(ctx context.Context, id string) (*model.Booking, error)
	availabilityFunc   func(ctx context.Context, date string) (*service.Availability, error)
	setSportPriceFunc  func(ctx context.Context, id string, price int64) (*model.Sport, error)
}

func (m *mockBookingService) Create(ctx context.Context, req *model.BookingRequest) (*model.Booking, error) {
	return m.createFunc(ctx, req)
}

func (m *mockBookingService) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockBookingService) GetByReference(ctx context.Context, ref string) (*model.Booking, error) {
	return m.getByReferenceFunc(ctx, ref)
}

func (m *mockBookingService) GetAll(ctx context.Context, limit int, offset int64) ([]*model.Booking, int64, error) {
	if m.getAllFunc != nil {
		return m.getAllFunc(ctx, limit, offset)
	}
	return []*model.Booking{}, 0, nil
}

func (m *mockBookingService) Cancel(ctx context.Context, id string) (*model.Booking, error) {
	return m.cancelFunc(ctx, id)
}

func (m *mockBookingService) Complete(ctx context.Context, id string) (*model.Booking, error) {
	return m.completeFunc(ctx, id)
}

func (m *mockBookingService) Availability(ctx context.Context, date string) (*service.Availability, error) {
	return m.availabilityFunc(ctx, date)
}

func (m *mockBookingService) Catalog() service.CatalogView {
	return service.CatalogView{
		Courts: []model.Court{{ID: "court-1", Name: "Court 1"}},
		Sports: []model.Sport{{ID: "cricket", Name: "Cricket", PricePerHour: 2000}},
	}
}

func (m *mockBookingService) SetSportPrice(ctx context.Context, id string, price int64) (*model.Sport, error) {
	return m.setSportPriceFunc(ctx, id, price)
}

type mockDashboard struct {
	dashboardFunc func(ctx context.Context) (*metrics.Dashboard, error)
}

func (m *mockDashboard) Dashboard(ctx context.Context) (*metrics.Dashboard, error) {
	return m.dashboardFunc(ctx)
}

func sampleBooking() *model.Booking {
	return &model.Booking{
		ID:              "b-1",
		PublicReference: "CB-ABCDEFGHIJ",
		CustomerName:    "Asha Rao",
		CustomerPhone:   "+919812345678",
		SportID:         "cricket",
		CourtID:         "court-1",
		Date:            "2026-10-20",
		StartHour:       9,
		Hours:           2,
		Amount:          4000,
		Status:          model.StatusBooked,
		CreatedAt:       time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC),
		UpdatedAt:       time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC),
	}
}

func newRouter(svc service.BookingService, dash DashboardProvider) *httprouter.Router {
	router := httprouter.New()
	NewBookingHandler(svc, dash, logger.NewNop()).RegisterRoutes(router)
	return router
}

func serve(router http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Data    json.RawMessage `json:"data"`
	Code    string          `json:"code"`
	Error   string          `json:"error"`
	Details map[string]any  `json:"details"`
	Total   int64           `json:"total_count"`
	Limit   int             `json:"limit"`
	Offset  int64           `json:"offset"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("response is not JSON: %v (%s)", err, rec.Body.String())
	}
	return env
}

func TestCreate_ReturnsView(t *testing.T) {
	var received *model.BookingRequest
	svc := &mockBookingService{
		createFunc: func(ctx context.Context, req *model.BookingRequest) (*model.Booking, error) {
			received = req
			return sampleBooking(), nil
		},
	}

	body := `{"customer_name":"Asha Rao","customer_phone":"+919812345678","sport_id":"cricket","court_id":"court-1","date":"2026-10-20","start_time":"09:00","hours":2}`
	rec := serve(newRouter(svc, nil), http.MethodPost, "/api/v1/bookings", body)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	if received == nil || received.StartTime != "09:00" || received.Hours != 2 {
		t.Fatalf("service received %+v", received)
	}

	var view BookingView
	if err := json.Unmarshal(decode(t, rec).Data, &view); err != nil {
		t.Fatal(err)
	}
	if view.StartTime != "09:00" || view.EndTime != "11:00" || view.Amount != 4000 {
		t.Errorf("unexpected view: %+v", view)
	}
}

func TestCreate_BadBody(t *testing.T) {
	svc := &mockBookingService{}
	rec := serve(newRouter(svc, nil), http.MethodPost, "/api/v1/bookings", `{"hours":`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if env := decode(t, rec); env.Code != apperrors.CodeInvalidInput {
		t.Errorf("code = %q", env.Code)
	}
}

func TestCreate_ErrorStatuses(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
		code string
	}{
		{"conflict", apperrors.SlotConflict("overlap"), http.StatusConflict, apperrors.CodeSlotConflict},
		{"validation", apperrors.Validation("bad", map[string]any{"hours": "too many"}), http.StatusUnprocessableEntity, apperrors.CodeValidation},
		{"storage", apperrors.Storage("down", errors.New("x")), http.StatusServiceUnavailable, apperrors.CodeStorage},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, apperrors.CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockBookingService{
				createFunc: func(ctx context.Context, req *model.BookingRequest) (*model.Booking, error) {
					return nil, tt.err
				},
			}
			rec := serve(newRouter(svc, nil), http.MethodPost, "/api/v1/bookings", `{}`)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if env := decode(t, rec); env.Code != tt.code {
				t.Errorf("code = %q, want %q", env.Code, tt.code)
			}
		})
	}
}

func TestLookups(t *testing.T) {
	svc := &mockBookingService{
		getByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			if id != "b-1" {
				return nil, apperrors.NotFoundWithID("Booking", id)
			}
			return sampleBooking(), nil
		},
		getByReferenceFunc: func(ctx context.Context, ref string) (*model.Booking, error) {
			if ref != "CB-ABCDEFGHIJ" {
				return nil, apperrors.NotFoundWithID("Booking", ref)
			}
			return sampleBooking(), nil
		},
	}
	router := newRouter(svc, nil)

	tests := []struct {
		path string
		want int
	}{
		{"/api/v1/bookings/id/b-1", http.StatusOK},
		{"/api/v1/bookings/id/missing", http.StatusNotFound},
		{"/api/v1/bookings/ref/CB-ABCDEFGHIJ", http.StatusOK},
		{"/api/v1/bookings/ref/CB-NOPE", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if rec := serve(router, http.MethodGet, tt.path, ""); rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestGetAll_InvalidQueryParameters(t *testing.T) {
	var receivedLimit int
	var receivedOffset int64
	svc := &mockBookingService{
		getAllFunc: func(ctx context.Context, limit int, offset int64) ([]*model.Booking, int64, error) {
			receivedLimit = limit
			receivedOffset = offset
			return []*model.Booking{sampleBooking()}, 1, nil
		},
	}
	router := newRouter(svc, nil)

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantLimit  int
		wantOffset int64
	}{
		{"defaults", "", http.StatusOK, 10, 0},
		{"explicit", "?limit=5&offset=3", http.StatusOK, 5, 3},
		{"limit clamped", "?limit=1000", http.StatusOK, 100, 0},
		{"negative offset", "?offset=-4", http.StatusOK, 10, 0},
		{"non numeric limit", "?limit=abc", http.StatusBadRequest, 0, 0},
		{"non numeric offset", "?offset=x", http.StatusBadRequest, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			receivedLimit, receivedOffset = 0, 0
			rec := serve(router, http.MethodGet, "/api/v1/bookings"+tt.query, "")
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			if receivedLimit != tt.wantLimit || receivedOffset != tt.wantOffset {
				t.Errorf("service got limit=%d offset=%d, want %d/%d", receivedLimit, receivedOffset, tt.wantLimit, tt.wantOffset)
			}
			env := decode(t, rec)
			if env.Total != 1 || env.Limit != tt.wantLimit {
				t.Errorf("envelope total=%d limit=%d", env.Total, env.Limit)
			}
		})
	}
}

func TestStatusRoutes(t *testing.T) {
	svc := &mockBookingService{
		cancelFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			b := sampleBooking()
			b.Status = model.StatusCancelled
			return b, nil
		},
		completeFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			return nil, apperrors.InvalidTransition("cancelled", "completed")
		},
	}
	router := newRouter(svc, nil)

	rec := serve(router, http.MethodPost, "/api/v1/bookings/id/b-1/cancel", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel status = %d", rec.Code)
	}
	var view BookingView
	if err := json.Unmarshal(decode(t, rec).Data, &view); err != nil {
		t.Fatal(err)
	}
	if view.Status != model.StatusCancelled {
		t.Errorf("status = %q", view.Status)
	}

	rec = serve(router, http.MethodPost, "/api/v1/bookings/id/b-1/complete", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("complete status = %d, want 409", rec.Code)
	}
	env := decode(t, rec)
	if env.Code != apperrors.CodeInvalidTransition || env.Details["from"] != "cancelled" {
		t.Errorf("unexpected error body: %+v", env)
	}
}

func TestAvailability(t *testing.T) {
	var gotDate string
	svc := &mockBookingService{
		availabilityFunc: func(ctx context.Context, date string) (*service.Availability, error) {
			gotDate = date
			return &service.Availability{Date: date}, nil
		},
	}
	router := newRouter(svc, nil)

	rec := serve(router, http.MethodGet, "/api/v1/availability?date=2026-10-20", "")
	if rec.Code != http.StatusOK || gotDate != "2026-10-20" {
		t.Fatalf("status = %d, date = %q", rec.Code, gotDate)
	}

	rec = serve(router, http.MethodGet, "/api/v1/availability", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing date status = %d, want 400", rec.Code)
	}
}

func TestDashboard(t *testing.T) {
	dash := &mockDashboard{
		dashboardFunc: func(ctx context.Context) (*metrics.Dashboard, error) {
			return &metrics.Dashboard{Today: "2026-10-18", Revenue: metrics.Revenue{Week: 6500}}, nil
		},
	}
	rec := serve(newRouter(&mockBookingService{}, dash), http.MethodGet, "/api/v1/dashboard", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got metrics.Dashboard
	if err := json.Unmarshal(decode(t, rec).Data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Revenue.Week != 6500 {
		t.Errorf("week revenue = %d", got.Revenue.Week)
	}

	failing := &mockDashboard{
		dashboardFunc: func(ctx context.Context) (*metrics.Dashboard, error) { return nil, errors.New("db down") },
	}
	rec = serve(newRouter(&mockBookingService{}, failing), http.MethodGet, "/api/v1/dashboard", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestDashboard_TimeoutIsNotStorage(t *testing.T) {
	slow := &mockDashboard{
		dashboardFunc: func(ctx context.Context) (*metrics.Dashboard, error) {
			return nil, fmt.Errorf("failed to list bookings: %w", context.DeadlineExceeded)
		},
	}
	rec := serve(newRouter(&mockBookingService{}, slow), http.MethodGet, "/api/v1/dashboard", "")
	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("status = %d, want 504", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"TIMEOUT"`) {
		t.Errorf("body = %s", rec.Body.String())
	}

	cancelled := &mockDashboard{
		dashboardFunc: func(ctx context.Context) (*metrics.Dashboard, error) { return nil, context.Canceled },
	}
	rec = serve(newRouter(&mockBookingService{}, cancelled), http.MethodGet, "/api/v1/dashboard", "")
	if rec.Code != http.StatusGatewayTimeout {
		t.Errorf("status = %d, want 504", rec.Code)
	}
}

func TestCatalogRoutes(t *testing.T) {
	var gotID string
	var gotPrice int64
	svc := &mockBookingService{
		setSportPriceFunc: func(ctx context.Context, id string, price int64) (*model.Sport, error) {
			gotID, gotPrice = id, price
			return &model.Sport{ID: id, Name: "Cricket", PricePerHour: price}, nil
		},
	}
	router := newRouter(svc, nil)

	rec := serve(router, http.MethodGet, "/api/v1/catalog", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"court-1"`) {
		t.Fatalf("catalog status = %d body = %s", rec.Code, rec.Body.String())
	}

	rec = serve(router, http.MethodPut, "/api/v1/catalog/sports/cricket", `{"price_per_hour":3000}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("price update status = %d", rec.Code)
	}
	if gotID != "cricket" || gotPrice != 3000 {
		t.Errorf("service got %q/%d", gotID, gotPrice)
	}

	rec = serve(router, http.MethodPut, "/api/v1/catalog/sports/cricket", `nope`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad body status = %d, want 400", rec.Code)
	}
}
