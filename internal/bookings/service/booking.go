package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"courtbook/internal/bookings/availability"
	bookingserrors "courtbook/internal/bookings/errors"
	"courtbook/internal/bookings/ledger"
	"courtbook/internal/bookings/slots"
	"courtbook/internal/bookings/validator"
	"courtbook/internal/catalog"
	"courtbook/pkg/config"
	apperrors "courtbook/pkg/errors"
	httputil "courtbook/pkg/http"
	"courtbook/pkg/model"
	"courtbook/pkg/sanitizer"
)

type BookingService interface {
	Create(ctx context.Context, req *model.BookingRequest) (*model.Booking, error)
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	GetByReference(ctx context.Context, ref string) (*model.Booking, error)
	GetAll(ctx context.Context, limit int, offset int64) ([]*model.Booking, int64, error)
	Cancel(ctx context.Context, id string) (*model.Booking, error)
	Complete(ctx context.Context, id string) (*model.Booking, error)
	Availability(ctx context.Context, date string) (*Availability, error)
	Catalog() CatalogView
	SetSportPrice(ctx context.Context, sportID string, pricePerHour int64) (*model.Sport, error)
}

// Catalog is the court and sport lookup the service prices bookings against.
type Catalog interface {
	Courts() []model.Court
	Sports() []model.Sport
	Court(id string) (model.Court, error)
	Sport(id string) (model.Sport, error)
	SetSportPrice(id string, pricePerHour int64) (model.Sport, error)
}

type GridReader interface {
	DayGrid(ctx context.Context, date string) ([]availability.CourtGrid, error)
}

// EventPublisher is told about every committed lifecycle change.
type EventPublisher interface {
	BookingChanged(ctx context.Context, b *model.Booking) error
}

type CatalogView struct {
	Courts []model.Court `json:"courts"`
	Sports []model.Sport `json:"sports"`
}

type Availability struct {
	Date   string                   `json:"date"`
	Courts []model.Court            `json:"courts"`
	Sports []model.Sport            `json:"sports"`
	Grid   []availability.CourtGrid `json:"grid"`
}

type Option func(*bookingService)

// WithClock replaces the wall clock used for the past-date check.
func WithClock(now func() time.Time) Option {
	return func(s *bookingService) { s.now = now }
}

type bookingService struct {
	ledger    ledger.Ledger
	grid      GridReader
	catalog   Catalog
	events    EventPublisher
	validator *validator.BookingValidator
	cfg       *config.Config
	now       func() time.Time
}

func NewBookingService(
	l ledger.Ledger,
	grid GridReader,
	cat Catalog,
	events EventPublisher,
	validator *validator.BookingValidator,
	cfg *config.Config,
	opts ...Option,
) BookingService {
	s := &bookingService{
		ledger:    l,
		grid:      grid,
		catalog:   cat,
		events:    events,
		validator: validator,
		cfg:       cfg,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *bookingService) Create(ctx context.Context, req *model.BookingRequest) (*model.Booking, error) {
	if req == nil {
		return nil, apperrors.InvalidInput("Booking request cannot be empty")
	}
	s.sanitize(req)
	if err := s.validate(req); err != nil {
		return nil, err
	}

	startHour, err := slots.ParseToken(req.StartTime)
	if err != nil {
		return nil, apperrors.Validation("Booking validation failed", map[string]any{"start_time": err.Error()})
	}

	if err := s.checkNotPast(req.Date); err != nil {
		return nil, err
	}

	court, err := s.catalog.Court(req.CourtID)
	if err != nil {
		s.cfg.Log.Warn("Booking rejected for unknown court", "court_id", req.CourtID)
		return nil, apperrors.Validation("Booking validation failed", map[string]any{"court_id": err.Error()})
	}
	sport, err := s.catalog.Sport(req.SportID)
	if err != nil {
		s.cfg.Log.Warn("Booking rejected for unknown sport", "sport_id", req.SportID)
		return nil, apperrors.Validation("Booking validation failed", map[string]any{"sport_id": err.Error()})
	}

	candidate := &model.Booking{
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		SportID:       sport.ID,
		CourtID:       court.ID,
		Date:          req.Date,
		StartHour:     startHour,
		Hours:         req.Hours,
		Amount:        sport.PricePerHour * int64(req.Hours),
	}

	created, err := s.ledger.Create(ctx, candidate)
	if err != nil {
		return nil, s.translate(ctx, err, "create booking", "court_id", court.ID, "date", req.Date, "start_time", req.StartTime)
	}

	s.cfg.Log.Info("Booking created successfully",
		"id", created.ID,
		"public_reference", created.PublicReference,
		"court_id", created.CourtID,
		"sport_id", created.SportID,
		"date", created.Date,
		"start_time", slots.Token(created.StartHour),
		"hours", created.Hours,
		"amount", created.Amount,
	)
	s.publish(ctx, created)
	return created, nil
}

func (s *bookingService) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := s.ledger.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Booking", id)
		}
		return nil, s.translate(ctx, err, "get booking", "id", id)
	}
	return booking, nil
}

func (s *bookingService) GetByReference(ctx context.Context, ref string) (*model.Booking, error) {
	ref = strings.ToUpper(strings.TrimSpace(ref))
	if ref == "" {
		return nil, apperrors.InvalidInput("Booking reference cannot be empty")
	}

	booking, err := s.ledger.GetByPublicReference(ctx, ref)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Booking", ref)
		}
		return nil, s.translate(ctx, err, "get booking by reference", "public_reference", ref)
	}
	return booking, nil
}

// GetAll pages over one ledger snapshot so total and page always agree.
func (s *bookingService) GetAll(ctx context.Context, limit int, offset int64) ([]*model.Booking, int64, error) {
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	all, err := s.ledger.ListAll(ctx)
	if err != nil {
		return nil, 0, s.translate(ctx, err, "list bookings")
	}

	start, end := httputil.Page(len(all), limit, offset)
	s.cfg.Log.Debug("Bookings listed", "total", len(all), "limit", limit, "offset", offset)
	return all[start:end], int64(len(all)), nil
}

func (s *bookingService) Cancel(ctx context.Context, id string) (*model.Booking, error) {
	return s.transition(ctx, id, model.StatusCancelled)
}

func (s *bookingService) Complete(ctx context.Context, id string) (*model.Booking, error) {
	return s.transition(ctx, id, model.StatusCompleted)
}

// Availability returns the catalog and the per-court grid for one date.
func (s *bookingService) Availability(ctx context.Context, date string) (*Availability, error) {
	date = strings.TrimSpace(date)
	if _, err := slots.ParseDate(date); err != nil {
		return nil, apperrors.Validation("Invalid date", map[string]any{"date": err.Error()})
	}

	var (
		grid    []availability.CourtGrid
		gridErr error
		view    CatalogView
		wg      sync.WaitGroup
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		grid, gridErr = s.grid.DayGrid(ctx, date)
	}()
	view = s.Catalog()
	wg.Wait()

	if gridErr != nil {
		return nil, s.translate(ctx, gridErr, "read availability", "date", date)
	}

	return &Availability{
		Date:   date,
		Courts: view.Courts,
		Sports: view.Sports,
		Grid:   grid,
	}, nil
}

func (s *bookingService) Catalog() CatalogView {
	return CatalogView{
		Courts: s.catalog.Courts(),
		Sports: s.catalog.Sports(),
	}
}

// SetSportPrice changes the hourly price for future bookings. Existing
// bookings keep the amount computed when they were created.
func (s *bookingService) SetSportPrice(ctx context.Context, sportID string, pricePerHour int64) (*model.Sport, error) {
	sportID = sanitizer.NormalizeID(sportID)
	if sportID == "" {
		return nil, apperrors.InvalidInput("Sport ID cannot be empty")
	}

	sport, err := s.catalog.SetSportPrice(sportID, pricePerHour)
	if err != nil {
		switch {
		case errors.Is(err, catalog.ErrUnknownSport):
			return nil, apperrors.NotFoundWithID("Sport", sportID)
		case errors.Is(err, catalog.ErrInvalidPrice):
			return nil, apperrors.Validation("Invalid sport price", map[string]any{"price_per_hour": err.Error()})
		default:
			return nil, apperrors.Internal("Failed to update sport price", err)
		}
	}

	s.cfg.Log.Info("Sport price updated", "sport_id", sport.ID, "price_per_hour", sport.PricePerHour)
	return &sport, nil
}

// --- Helpers ---

func (s *bookingService) transition(ctx context.Context, id string, to model.Status) (*model.Booking, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	updated, err := s.ledger.SetStatus(ctx, id, to)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Booking", id)
		}
		if errors.Is(err, bookingserrors.ErrInvalidTransition) {
			from := "unknown"
			if current, getErr := s.ledger.GetByID(ctx, id); getErr == nil {
				from = current.Status.String()
			}
			s.cfg.Log.Warn("Booking status transition rejected", "id", id, "from", from, "to", to)
			return nil, apperrors.InvalidTransition(from, to.String())
		}
		return nil, s.translate(ctx, err, "set booking status", "id", id, "to", to)
	}

	s.cfg.Log.Info("Booking status updated", "id", updated.ID, "status", updated.Status)
	s.publish(ctx, updated)
	return updated, nil
}

func (s *bookingService) sanitize(req *model.BookingRequest) {
	req.CustomerName = sanitizer.NormalizeName(req.CustomerName)
	req.CustomerPhone = sanitizer.NormalizePhone(req.CustomerPhone, s.cfg.PhoneRegion)
	req.SportID = sanitizer.NormalizeID(req.SportID)
	req.CourtID = sanitizer.NormalizeID(req.CourtID)
	req.Date = strings.TrimSpace(req.Date)
	req.StartTime = strings.TrimSpace(req.StartTime)
}

func (s *bookingService) validate(req *model.BookingRequest) error {
	if err := s.validator.Validate(req); err != nil {
		s.cfg.Log.Warn("Booking validation failed", "error", err)
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return apperrors.Validation("Booking validation failed", verrs.Details())
		}
		return apperrors.Validation("Booking validation failed", map[string]any{"error": err.Error()})
	}
	return nil
}

// checkNotPast rejects dates before today in the configured time zone.
func (s *bookingService) checkNotPast(date string) error {
	loc := s.cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	today := slots.DateOf(s.now(), loc)
	// Both sides are YYYY-MM-DD, so string order is date order.
	if date < today {
		return apperrors.Validation("Booking validation failed", map[string]any{
			"date": fmt.Sprintf("date %s is in the past (today is %s)", date, today),
		})
	}
	return nil
}

func (s *bookingService) publish(ctx context.Context, b *model.Booking) {
	if s.events == nil {
		return
	}
	// The booking is committed; a failed publish is logged by the publisher and otherwise ignored.
	_ = s.events.BookingChanged(ctx, b)
}

// translate maps ledger errors onto the HTTP error taxonomy and logs them at the matching level.
func (s *bookingService) translate(ctx context.Context, err error, op string, attrs ...any) error {
	logAttrs := append([]any{"operation", op, "error", err}, attrs...)

	var conflict *bookingserrors.SlotConflictError
	switch {
	case errors.As(err, &conflict):
		s.cfg.Log.Warn("Booking slot conflict", append(logAttrs, "conflicting_booking_id", conflict.BookingID)...)
		return apperrors.SlotConflict("The requested hours overlap an existing booking").WithDetails(map[string]any{
			"court_id":   conflict.CourtID,
			"date":       conflict.Date,
			"start_time": slots.Token(conflict.StartHour),
			"end_time":   slots.Token(conflict.EndHour),
		})
	case errors.Is(err, bookingserrors.ErrSlotConflict):
		s.cfg.Log.Warn("Booking slot conflict", logAttrs...)
		return apperrors.SlotConflict("The requested hours overlap an existing booking")
	case errors.Is(err, bookingserrors.ErrNotFound):
		s.cfg.Log.Debug("Booking not found", logAttrs...)
		return apperrors.NotFound("Booking")
	case errors.Is(err, bookingserrors.ErrOutsideWindow):
		s.cfg.Log.Warn("Booking outside operating window", logAttrs...)
		return apperrors.Validation("Booking validation failed", map[string]any{
			"start_time": fmt.Sprintf("booking must fall within %s-%s", slots.Token(s.cfg.OpeningHour), slots.Token(s.cfg.ClosingHour)),
		})
	case errors.Is(err, bookingserrors.ErrInvalidHours):
		s.cfg.Log.Warn("Booking length rejected", logAttrs...)
		return apperrors.Validation("Booking validation failed", map[string]any{"hours": err.Error()})
	case errors.Is(err, bookingserrors.ErrLockTimeout), errors.Is(err, context.DeadlineExceeded):
		s.cfg.Log.Warn("Booking operation timed out", logAttrs...)
		return apperrors.Timeout("The court is busy, please retry")
	case errors.Is(err, context.Canceled) || ctx.Err() != nil:
		s.cfg.Log.Warn("Booking operation cancelled", logAttrs...)
		return apperrors.Timeout("Request was cancelled")
	default:
		s.cfg.Log.Error("Booking storage failure", logAttrs...)
		return apperrors.Storage("Booking storage is unavailable", err)
	}
}
