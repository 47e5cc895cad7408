package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingserrors "courtbook/internal/bookings/errors"
	"courtbook/internal/bookings/slots"
	"courtbook/pkg/config"
	mongotx "courtbook/pkg/db/mongo"
	"courtbook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const CollectionName = "Bookings"

type mongoLedger struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
	locker     *slotLocker
	window     slots.Window
	now        func() time.Time
	newRef     func() string
}

// NewMongoLedger stores bookings in the Bookings collection. Writes to one
// court-day hold an advisory lock document and run inside a transaction,
// so a failed write leaves nothing behind.
func NewMongoLedger(cfg *config.Config, window slots.Window) Ledger {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoLedger{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
		locker: &slotLocker{
			store:         newMongoLockStore(db),
			ttl:           cfg.BookingLockTTL,
			wait:          cfg.BookingLockWait,
			retryInterval: defaultLockRetryInterval,
			now:           time.Now,
		},
		window: window,
		now:    time.Now,
		newRef: NewPublicReference,
	}
}

// withTimeout wraps the context with a timeout if not already in a transaction.
// A SessionContext is returned unchanged since wrapping it would detach the
// operation from its session.
func (l *mongoLedger) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}

	deadline, hasDeadline := ctx.Deadline()
	if hasDeadline && time.Until(deadline) < timeout {
		return context.WithDeadline(ctx, deadline)
	}

	return context.WithTimeout(ctx, timeout)
}

func (l *mongoLedger) Create(ctx context.Context, candidate *model.Booking) (*model.Booking, error) {
	b, err := prepare(candidate, l.window, l.now())
	if err != nil {
		return nil, err
	}

	release, err := l.locker.acquire(ctx, b.CourtID, b.Date)
	if err != nil {
		return nil, err
	}
	defer release()

	ctx, cancel := l.withTimeout(ctx, l.cfg.WriteTimeout)
	defer cancel()

	err = l.txManager.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		booked, err := l.findBooked(sessCtx, b.CourtID, b.Date)
		if err != nil {
			return err
		}
		if existing := slots.FindConflict(booked, b.StartHour, b.Hours); existing != nil {
			return conflictError(existing)
		}

		ref, err := l.uniqueReference(sessCtx)
		if err != nil {
			return err
		}
		b.PublicReference = ref

		if _, err := l.collection.InsertOne(sessCtx, b); err != nil {
			return fmt.Errorf("failed to insert booking: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return b, nil
}

func (l *mongoLedger) uniqueReference(ctx context.Context) (string, error) {
	for i := 0; i < maxReferenceAttempts; i++ {
		ref := l.newRef()
		n, err := l.collection.CountDocuments(ctx, bson.M{"public_reference": ref})
		if err != nil {
			return "", fmt.Errorf("failed to check public reference: %w", err)
		}
		if n == 0 {
			return ref, nil
		}
	}
	return "", fmt.Errorf("failed to generate a unique public reference after %d attempts", maxReferenceAttempts)
}

func (l *mongoLedger) findBooked(ctx context.Context, courtID, date string) ([]*model.Booking, error) {
	filter := bson.M{
		"court_id": courtID,
		"date":     date,
		"status":   model.StatusBooked,
	}
	opts := options.Find().SetSort(bson.D{{Key: "start_hour", Value: 1}, {Key: "_id", Value: 1}})

	cursor, err := l.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find booked slots: %w", err)
	}
	defer cursor.Close(ctx)

	var bookings []*model.Booking
	if err := cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}
	return bookings, nil
}

func (l *mongoLedger) findOne(ctx context.Context, filter bson.M) (*model.Booking, error) {
	ctx, cancel := l.withTimeout(ctx, l.cfg.ReadTimeout)
	defer cancel()

	var booking model.Booking
	err := l.collection.FindOne(ctx, filter).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}
	return &booking, nil
}

func (l *mongoLedger) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	return l.findOne(ctx, bson.M{"_id": id})
}

func (l *mongoLedger) GetByPublicReference(ctx context.Context, ref string) (*model.Booking, error) {
	return l.findOne(ctx, bson.M{"public_reference": ref})
}

func (l *mongoLedger) ListAll(ctx context.Context) ([]*model.Booking, error) {
	ctx, cancel := l.withTimeout(ctx, l.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{
		{Key: "date", Value: -1},
		{Key: "start_hour", Value: 1},
		{Key: "_id", Value: 1},
	})

	cursor, err := l.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find bookings: %w", err)
	}
	defer cursor.Close(ctx)

	bookings := make([]*model.Booking, 0)
	if err := cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}
	return bookings, nil
}

func (l *mongoLedger) ListBooked(ctx context.Context, courtID, date string) ([]*model.Booking, error) {
	ctx, cancel := l.withTimeout(ctx, l.cfg.ReadTimeout)
	defer cancel()

	return l.findBooked(ctx, courtID, date)
}

func (l *mongoLedger) SetStatus(ctx context.Context, id string, to model.Status) (*model.Booking, error) {
	current, err := l.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	release, err := l.locker.acquire(ctx, current.CourtID, current.Date)
	if err != nil {
		return nil, err
	}
	defer release()

	ctx, cancel := l.withTimeout(ctx, l.cfg.WriteTimeout)
	defer cancel()

	var updated model.Booking
	err = l.txManager.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := l.collection.FindOne(sessCtx, bson.M{"_id": id}).Decode(&updated); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return bookingserrors.ErrNotFound
			}
			return fmt.Errorf("failed to load booking: %w", err)
		}

		from := updated.Status
		next, err := from.Transition(to)
		if err != nil {
			return err
		}
		updated.Status = next
		updated.UpdatedAt = l.now().UTC().Truncate(time.Millisecond)

		result, err := l.collection.UpdateOne(sessCtx,
			bson.M{"_id": id, "status": from},
			bson.M{"$set": bson.M{"status": updated.Status, "updated_at": updated.UpdatedAt}},
		)
		if err != nil {
			return fmt.Errorf("failed to update booking status: %w", err)
		}
		if result.MatchedCount == 0 {
			return fmt.Errorf("booking %s changed status concurrently", id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &updated, nil
}
