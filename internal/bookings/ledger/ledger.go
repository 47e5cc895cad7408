package ledger

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	bookingserrors "courtbook/internal/bookings/errors"
	"courtbook/internal/bookings/slots"
	"courtbook/pkg/model"

	"github.com/google/uuid"
	"github.com/lithammer/shortuuid/v3"
)

const (
	referencePrefix = "CB-"
	referenceLength = 10

	// maxReferenceAttempts bounds regeneration on a public reference collision.
	maxReferenceAttempts = 5
)

// Reader is the read side of the ledger.
type Reader interface {
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	GetByPublicReference(ctx context.Context, ref string) (*model.Booking, error)
	// ListAll returns every booking ordered by date descending, then start
	// hour ascending, then id.
	ListAll(ctx context.Context) ([]*model.Booking, error)
	// ListBooked returns the bookings currently holding hours on one court-day.
	ListBooked(ctx context.Context, courtID, date string) ([]*model.Booking, error)
}

// Ledger is the single source of truth for bookings. Create and SetStatus
// are serialized per court-day; reads never observe a partial write.
type Ledger interface {
	Reader
	Create(ctx context.Context, candidate *model.Booking) (*model.Booking, error)
	SetStatus(ctx context.Context, id string, to model.Status) (*model.Booking, error)
}

// prepare checks the candidate against the window and hour limits and
// returns a copy with a fresh id, booked status and timestamps. The public
// reference is left to the store, which owns its uniqueness.
func prepare(candidate *model.Booking, window slots.Window, now time.Time) (*model.Booking, error) {
	if !slots.ValidHours(candidate.Hours) {
		return nil, fmt.Errorf("%w: got %d", bookingserrors.ErrInvalidHours, candidate.Hours)
	}
	if !window.Contains(candidate.StartHour, candidate.Hours) {
		return nil, fmt.Errorf("%w: %s-%s is outside %s-%s", bookingserrors.ErrOutsideWindow,
			slots.Token(candidate.StartHour), slots.Token(candidate.StartHour+candidate.Hours),
			slots.Token(window.Open), slots.Token(window.Close))
	}
	if _, err := slots.ParseDate(candidate.Date); err != nil {
		return nil, err
	}

	b := *candidate
	b.ID = uuid.NewString()
	b.PublicReference = ""
	b.Status = model.StatusBooked
	b.CreatedAt = now.UTC().Truncate(time.Millisecond)
	b.UpdatedAt = b.CreatedAt
	return &b, nil
}

// NewPublicReference returns a short customer-facing reference such as
// "CB-7XQ2MKD9PA". It is unguessable enough for confirmation lookups but
// uniqueness is still checked by every store.
func NewPublicReference() string {
	return referencePrefix + strings.ToUpper(shortuuid.New()[:referenceLength])
}

func slotKey(courtID, date string) string {
	return courtID + "|" + date
}

func sortLedger(bookings []*model.Booking) {
	sort.SliceStable(bookings, func(i, j int) bool {
		a, b := bookings[i], bookings[j]
		if a.Date != b.Date {
			return a.Date > b.Date
		}
		if a.StartHour != b.StartHour {
			return a.StartHour < b.StartHour
		}
		return a.ID < b.ID
	})
}

func conflictError(existing *model.Booking) error {
	return bookingserrors.NewSlotConflict(existing)
}
