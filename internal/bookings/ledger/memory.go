package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	bookingserrors "courtbook/internal/bookings/errors"
	"courtbook/internal/bookings/slots"
	"courtbook/pkg/model"
)

// memoryLedger keeps bookings in an arena keyed by internal id plus a
// public reference index. Stored records are values, so every read hands
// out a copy.
type memoryLedger struct {
	mu      sync.RWMutex
	records map[string]model.Booking
	byRef   map[string]string

	slotLocks *keyedMutex
	window    slots.Window
	now       func() time.Time
	newRef    func() string
}

type MemoryOption func(*memoryLedger)

// WithClock overrides the clock used for created and updated timestamps.
func WithClock(now func() time.Time) MemoryOption {
	return func(l *memoryLedger) { l.now = now }
}

// WithReferenceGenerator overrides public reference generation.
func WithReferenceGenerator(gen func() string) MemoryOption {
	return func(l *memoryLedger) { l.newRef = gen }
}

func NewMemoryLedger(window slots.Window, opts ...MemoryOption) Ledger {
	l := &memoryLedger{
		records:   make(map[string]model.Booking),
		byRef:     make(map[string]string),
		slotLocks: newKeyedMutex(),
		window:    window,
		now:       time.Now,
		newRef:    NewPublicReference,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *memoryLedger) Create(ctx context.Context, candidate *model.Booking) (*model.Booking, error) {
	b, err := prepare(candidate, l.window, l.now())
	if err != nil {
		return nil, err
	}

	unlock := l.slotLocks.Lock(slotKey(b.CourtID, b.Date))
	defer unlock()

	booked, err := l.ListBooked(ctx, b.CourtID, b.Date)
	if err != nil {
		return nil, err
	}
	if existing := slots.FindConflict(booked, b.StartHour, b.Hours); existing != nil {
		return nil, conflictError(existing)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	ref, err := l.uniqueReference()
	if err != nil {
		return nil, err
	}
	b.PublicReference = ref

	l.records[b.ID] = *b
	l.byRef[ref] = b.ID

	out := *b
	return &out, nil
}

// uniqueReference must be called with mu held.
func (l *memoryLedger) uniqueReference() (string, error) {
	for i := 0; i < maxReferenceAttempts; i++ {
		ref := l.newRef()
		if _, taken := l.byRef[ref]; !taken {
			return ref, nil
		}
	}
	return "", fmt.Errorf("failed to generate a unique public reference after %d attempts", maxReferenceAttempts)
}

func (l *memoryLedger) GetByID(_ context.Context, id string) (*model.Booking, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	rec, ok := l.records[id]
	if !ok {
		return nil, bookingserrors.ErrNotFound
	}
	return &rec, nil
}

func (l *memoryLedger) GetByPublicReference(_ context.Context, ref string) (*model.Booking, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	id, ok := l.byRef[ref]
	if !ok {
		return nil, bookingserrors.ErrNotFound
	}
	rec := l.records[id]
	return &rec, nil
}

func (l *memoryLedger) ListAll(_ context.Context) ([]*model.Booking, error) {
	l.mu.RLock()
	out := make([]*model.Booking, 0, len(l.records))
	for _, rec := range l.records {
		out = append(out, &rec)
	}
	l.mu.RUnlock()

	sortLedger(out)
	return out, nil
}

func (l *memoryLedger) ListBooked(ctx context.Context, courtID, date string) ([]*model.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.RLock()
	var out []*model.Booking
	for _, rec := range l.records {
		if rec.CourtID == courtID && rec.Date == date && rec.Status.OccupiesSlot() {
			out = append(out, &rec)
		}
	}
	l.mu.RUnlock()

	sortLedger(out)
	return out, nil
}

func (l *memoryLedger) SetStatus(ctx context.Context, id string, to model.Status) (*model.Booking, error) {
	current, err := l.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// Court and date never change, so the key read above stays valid.
	unlock := l.slotLocks.Lock(slotKey(current.CourtID, current.Date))
	defer unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	rec := l.records[id]
	next, err := rec.Status.Transition(to)
	if err != nil {
		return nil, err
	}
	rec.Status = next
	rec.UpdatedAt = l.now().UTC().Truncate(time.Millisecond)
	l.records[id] = rec

	return &rec, nil
}
