package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"courtbook/internal/bookings/availability"
	bookingserrors "courtbook/internal/bookings/errors"
	"courtbook/internal/bookings/ledger"
	"courtbook/internal/bookings/slots"
	"courtbook/internal/bookings/validator"
	"courtbook/internal/catalog"
	"courtbook/pkg/config"
	apperrors "courtbook/pkg/errors"
	"courtbook/pkg/logger"
	"courtbook/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ────────────────────────────────────────────────
// Fixtures
// ────────────────────────────────────────────────

var (
	window = slots.Window{Open: 6, Close: 23}
	fixed  = time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC)
)

const bookingDay = "2026-10-20"

func testConfig() *config.Config {
	return &config.Config{
		Log:         logger.NewNop(),
		PhoneRegion: "IN",
		OpeningHour: window.Open,
		ClosingHour: window.Close,
		Location:    time.UTC,
	}
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New(
		[]model.Court{{ID: "court-1", Name: "Court 1"}, {ID: "court-2", Name: "Court 2"}},
		[]model.Sport{
			{ID: "cricket", Name: "Cricket", PricePerHour: 2000},
			{ID: "football", Name: "Football", PricePerHour: 2500},
		},
	)
	require.NoError(t, err)
	return cat
}

type recordingEvents struct {
	mu     sync.Mutex
	err    error
	events []model.Booking
}

func (r *recordingEvents) BookingChanged(_ context.Context, b *model.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *b)
	return r.err
}

func (r *recordingEvents) statuses() []model.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Status, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Status)
	}
	return out
}

type fixture struct {
	svc    BookingService
	ledger ledger.Ledger
	cat    *catalog.Catalog
	events *recordingEvents
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testConfig()
	cat := testCatalog(t)
	l := ledger.NewMemoryLedger(window, ledger.WithClock(func() time.Time { return fixed }))
	events := &recordingEvents{}
	svc := NewBookingService(
		l,
		availability.NewChecker(l, cat, window),
		cat,
		events,
		validator.NewBookingValidator(cfg.Log),
		cfg,
		WithClock(func() time.Time { return fixed }),
	)
	return &fixture{svc: svc, ledger: l, cat: cat, events: events}
}

func request(court, sport, start string, hours int) *model.BookingRequest {
	return &model.BookingRequest{
		CustomerName:  "  Asha   Rao ",
		CustomerPhone: "98123 45678",
		SportID:       sport,
		CourtID:       court,
		Date:          bookingDay,
		StartTime:     start,
		Hours:         hours,
	}
}

func requireAppError(t *testing.T, err error, code string, status int) *apperrors.AppError {
	t.Helper()
	require.Error(t, err)
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
	assert.Equal(t, status, appErr.StatusCode())
	return appErr
}

// ────────────────────────────────────────────────
// Create
// ────────────────────────────────────────────────

func TestCreate_PricesAndNormalizes(t *testing.T) {
	f := newFixture(t)

	b, err := f.svc.Create(context.Background(), request("Court-1", "CRICKET", "09:00", 2))
	require.NoError(t, err)

	assert.Equal(t, int64(4000), b.Amount)
	assert.Equal(t, "Asha Rao", b.CustomerName)
	assert.Equal(t, "+919812345678", b.CustomerPhone)
	assert.Equal(t, "court-1", b.CourtID)
	assert.Equal(t, "cricket", b.SportID)
	assert.Equal(t, 9, b.StartHour)
	assert.Equal(t, model.StatusBooked, b.Status)
	assert.Equal(t, []model.Status{model.StatusBooked}, f.events.statuses())
}

func TestCreate_ConflictScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, request("court-1", "cricket", "09:00", 2))
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, request("court-1", "cricket", "10:00", 1))
	appErr := requireAppError(t, err, apperrors.CodeSlotConflict, http.StatusConflict)
	assert.Equal(t, "09:00", appErr.Details["start_time"])
	assert.Equal(t, "11:00", appErr.Details["end_time"])

	adjacent, err := f.svc.Create(ctx, request("court-1", "cricket", "11:00", 1))
	require.NoError(t, err)
	assert.Equal(t, int64(2000), adjacent.Amount)

	other, err := f.svc.Create(ctx, request("court-2", "cricket", "09:00", 2))
	require.NoError(t, err, "different court is independent")
	assert.Equal(t, "court-2", other.CourtID)
}

func TestCreate_ValidationFailures(t *testing.T) {
	tests := []struct {
		name  string
		req   *model.BookingRequest
		field string
	}{
		{"bad phone", &model.BookingRequest{CustomerName: "Asha", CustomerPhone: "12", SportID: "cricket", CourtID: "court-1", Date: bookingDay, StartTime: "09:00", Hours: 1}, "customer_phone"},
		{"half hour", request("court-1", "cricket", "09:30", 1), "start_time"},
		{"too long", request("court-1", "cricket", "09:00", 9), "hours"},
		{"unknown court", request("court-9", "cricket", "09:00", 1), "court_id"},
		{"unknown sport", request("court-1", "tennis", "09:00", 1), "sport_id"},
		{"runs past closing", request("court-1", "cricket", "22:00", 2), "start_time"},
		{"before opening", request("court-1", "cricket", "05:00", 1), "start_time"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.Create(context.Background(), tt.req)
			appErr := requireAppError(t, err, apperrors.CodeValidation, http.StatusUnprocessableEntity)
			assert.Contains(t, appErr.Details, tt.field)
			assert.Empty(t, f.events.statuses())
		})
	}
}

func TestCreate_RejectsPastDate(t *testing.T) {
	f := newFixture(t)
	req := request("court-1", "cricket", "09:00", 1)
	req.Date = "2026-10-17"

	_, err := f.svc.Create(context.Background(), req)
	appErr := requireAppError(t, err, apperrors.CodeValidation, http.StatusUnprocessableEntity)
	assert.Contains(t, appErr.Details["date"], "in the past")

	req.Date = "2026-10-18"
	_, err = f.svc.Create(context.Background(), req)
	assert.NoError(t, err, "today is bookable")
}

func TestCreate_NilRequest(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), nil)
	requireAppError(t, err, apperrors.CodeInvalidInput, http.StatusBadRequest)
}

func TestCreate_PriceChangeDoesNotRewriteHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Create(ctx, request("court-1", "cricket", "09:00", 2))
	require.NoError(t, err)

	sport, err := f.svc.SetSportPrice(ctx, "cricket", 3000)
	require.NoError(t, err)
	assert.Equal(t, int64(3000), sport.PricePerHour)

	second, err := f.svc.Create(ctx, request("court-2", "cricket", "09:00", 2))
	require.NoError(t, err)
	assert.Equal(t, int64(6000), second.Amount)

	reloaded, err := f.svc.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4000), reloaded.Amount)
}

func TestCreate_PublishFailureKeepsBooking(t *testing.T) {
	f := newFixture(t)
	f.events.err = errors.New("broker down")

	b, err := f.svc.Create(context.Background(), request("court-1", "cricket", "09:00", 1))
	require.NoError(t, err)

	_, err = f.svc.GetByID(context.Background(), b.ID)
	assert.NoError(t, err)
}

func TestCreate_ConcurrentSameSlot(t *testing.T) {
	f := newFixture(t)
	const n = 32

	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Create(context.Background(), request("court-1", "football", "18:00", 2))
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	wins, conflicts := 0, 0
	for err := range results {
		if err == nil {
			wins++
			continue
		}
		if appErr := apperrors.AsAppError(err); appErr.Code == apperrors.CodeSlotConflict {
			conflicts++
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, n-1, conflicts)
}

// ────────────────────────────────────────────────
// Lookups and listing
// ────────────────────────────────────────────────

func TestGetByReference(t *testing.T) {
	f := newFixture(t)
	b, err := f.svc.Create(context.Background(), request("court-1", "cricket", "09:00", 1))
	require.NoError(t, err)

	got, err := f.svc.GetByReference(context.Background(), " "+b.PublicReference+" ")
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)

	_, err = f.svc.GetByReference(context.Background(), "CB-NOPE")
	requireAppError(t, err, apperrors.CodeNotFound, http.StatusNotFound)

	_, err = f.svc.GetByReference(context.Background(), "")
	requireAppError(t, err, apperrors.CodeInvalidInput, http.StatusBadRequest)
}

func TestGetByID_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.GetByID(context.Background(), "missing")
	appErr := requireAppError(t, err, apperrors.CodeNotFound, http.StatusNotFound)
	assert.Equal(t, "missing", appErr.Details["id"])
}

func TestGetAll_Paginates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i, start := range []string{"09:00", "11:00", "13:00"} {
		_, err := f.svc.Create(ctx, request(fmt.Sprintf("court-%d", i%2+1), "cricket", start, 1))
		require.NoError(t, err)
	}

	page, total, err := f.svc.GetAll(ctx, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, page, 2)
	assert.Equal(t, 9, page[0].StartHour)
	assert.Equal(t, 11, page[1].StartHour)

	page, total, err = f.svc.GetAll(ctx, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, page, 1)

	page, _, err = f.svc.GetAll(ctx, 2, 10)
	require.NoError(t, err)
	assert.Empty(t, page)
}

// ────────────────────────────────────────────────
// Status lifecycle
// ────────────────────────────────────────────────

func TestCancelThenComplete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.svc.Create(ctx, request("court-1", "cricket", "09:00", 2))
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, cancelled.Status)

	_, err = f.svc.Complete(ctx, b.ID)
	appErr := requireAppError(t, err, apperrors.CodeInvalidTransition, http.StatusConflict)
	assert.Equal(t, "cancelled", appErr.Details["from"])
	assert.Equal(t, "completed", appErr.Details["to"])

	current, err := f.svc.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, current.Status)

	assert.Equal(t, []model.Status{model.StatusBooked, model.StatusCancelled}, f.events.statuses())
}

func TestCompletedFreesSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.svc.Create(ctx, request("court-1", "cricket", "09:00", 2))
	require.NoError(t, err)
	_, err = f.svc.Complete(ctx, b.ID)
	require.NoError(t, err)

	again, err := f.svc.Create(ctx, request("court-1", "football", "09:00", 2))
	require.NoError(t, err)
	assert.Equal(t, int64(5000), again.Amount)
}

func TestTransition_Errors(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Cancel(context.Background(), "missing")
	requireAppError(t, err, apperrors.CodeNotFound, http.StatusNotFound)

	_, err = f.svc.Complete(context.Background(), " ")
	requireAppError(t, err, apperrors.CodeInvalidInput, http.StatusBadRequest)
}

// ────────────────────────────────────────────────
// Availability and catalog
// ────────────────────────────────────────────────

func TestAvailability(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.svc.Create(ctx, request("court-1", "cricket", "09:00", 2))
	require.NoError(t, err)

	view, err := f.svc.Availability(ctx, bookingDay)
	require.NoError(t, err)
	assert.Len(t, view.Courts, 2)
	assert.Len(t, view.Sports, 2)
	require.Len(t, view.Grid, 2)

	court1 := view.Grid[0]
	assert.Equal(t, "court-1", court1.Court.ID)
	require.Len(t, court1.Slots, window.Len())
	for _, slot := range court1.Slots {
		switch slot.Hour {
		case 9, 10:
			assert.False(t, slot.Available, "hour %d", slot.Hour)
			assert.Equal(t, b.ID, slot.BookingID)
		default:
			assert.True(t, slot.Available, "hour %d", slot.Hour)
		}
	}

	_, err = f.svc.Availability(ctx, "2026/10/20")
	requireAppError(t, err, apperrors.CodeValidation, http.StatusUnprocessableEntity)
}

func TestSetSportPrice_Errors(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.SetSportPrice(context.Background(), "tennis", 100)
	requireAppError(t, err, apperrors.CodeNotFound, http.StatusNotFound)

	_, err = f.svc.SetSportPrice(context.Background(), "cricket", 0)
	requireAppError(t, err, apperrors.CodeValidation, http.StatusUnprocessableEntity)

	assert.Len(t, f.svc.Catalog().Sports, 2)
}

// ────────────────────────────────────────────────
// Error translation with a failing ledger
// ────────────────────────────────────────────────

type mockLedger struct {
	ledger.Ledger
	createFunc    func(ctx context.Context, b *model.Booking) (*model.Booking, error)
	listAllFunc   func(ctx context.Context) ([]*model.Booking, error)
	setStatusFunc func(ctx context.Context, id string, to model.Status) (*model.Booking, error)
	getByIDFunc   func(ctx context.Context, id string) (*model.Booking, error)
}

func (m *mockLedger) Create(ctx context.Context, b *model.Booking) (*model.Booking, error) {
	return m.createFunc(ctx, b)
}

func (m *mockLedger) ListAll(ctx context.Context) ([]*model.Booking, error) {
	return m.listAllFunc(ctx)
}

func (m *mockLedger) SetStatus(ctx context.Context, id string, to model.Status) (*model.Booking, error) {
	return m.setStatusFunc(ctx, id, to)
}

func (m *mockLedger) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, bookingserrors.ErrNotFound
}

func TestTranslate_LedgerErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{"storage", errors.New("server selection timeout"), apperrors.CodeStorage, http.StatusServiceUnavailable},
		{"lock timeout", fmt.Errorf("court-1/%s: %w", bookingDay, bookingserrors.ErrLockTimeout), apperrors.CodeTimeout, http.StatusGatewayTimeout},
		{"deadline", context.DeadlineExceeded, apperrors.CodeTimeout, http.StatusGatewayTimeout},
		{"bare conflict", bookingserrors.ErrSlotConflict, apperrors.CodeSlotConflict, http.StatusConflict},
		{"outside window", bookingserrors.ErrOutsideWindow, apperrors.CodeValidation, http.StatusUnprocessableEntity},
		{"bad hours", bookingserrors.ErrInvalidHours, apperrors.CodeValidation, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cat := testCatalog(t)
			events := &recordingEvents{}
			l := &mockLedger{
				createFunc: func(ctx context.Context, b *model.Booking) (*model.Booking, error) { return nil, tt.err },
			}
			svc := NewBookingService(l, nil, cat, events, validator.NewBookingValidator(cfg.Log), cfg,
				WithClock(func() time.Time { return fixed }))

			_, err := svc.Create(context.Background(), request("court-1", "cricket", "09:00", 1))
			requireAppError(t, err, tt.code, tt.status)
			assert.Empty(t, events.statuses(), "no event for a failed create")
		})
	}
}

func TestTranslate_ListAndStatusErrors(t *testing.T) {
	cfg := testConfig()
	storageErr := errors.New("connection reset")
	l := &mockLedger{
		listAllFunc: func(ctx context.Context) ([]*model.Booking, error) { return nil, storageErr },
		setStatusFunc: func(ctx context.Context, id string, to model.Status) (*model.Booking, error) {
			return nil, fmt.Errorf("%w: completed -> cancelled", bookingserrors.ErrInvalidTransition)
		},
		getByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			return &model.Booking{ID: id, Status: model.StatusCompleted}, nil
		},
	}
	svc := NewBookingService(l, nil, testCatalog(t), nil, validator.NewBookingValidator(cfg.Log), cfg)

	_, _, err := svc.GetAll(context.Background(), 10, 0)
	appErr := requireAppError(t, err, apperrors.CodeStorage, http.StatusServiceUnavailable)
	assert.ErrorIs(t, appErr, storageErr)

	_, err = svc.Cancel(context.Background(), "b-1")
	appErr = requireAppError(t, err, apperrors.CodeInvalidTransition, http.StatusConflict)
	assert.Equal(t, "completed", appErr.Details["from"])
}
