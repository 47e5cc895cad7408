package ledger

import (
	"context"
	"fmt"
	"time"

	bookingserrors "courtbook/internal/bookings/errors"

	"courtbook/pkg/model"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const LockCollectionName = "Booking_locks"

// lockStore persists advisory court-day locks. Insert fails with a
// duplicate key error while another holder owns the lock.
type lockStore interface {
	Insert(ctx context.Context, lock *model.BookingLock) error
	// Delete removes the lock only while owner still holds it.
	Delete(ctx context.Context, lockID, owner string) error
	DeleteExpired(ctx context.Context, lockID string, now time.Time) error
}

type mongoLockStore struct {
	collection *mongo.Collection
}

func newMongoLockStore(db *mongo.Database) lockStore {
	return &mongoLockStore{collection: db.Collection(LockCollectionName)}
}

func (s *mongoLockStore) Insert(ctx context.Context, lock *model.BookingLock) error {
	_, err := s.collection.InsertOne(ctx, lock)
	return err
}

func (s *mongoLockStore) Delete(ctx context.Context, lockID, owner string) error {
	_, err := s.collection.DeleteOne(ctx, bson.M{"_id": lockID, "owner": owner})
	return err
}

// DeleteExpired reaps a lock left behind by a crashed holder. The TTL index
// does the same eventually but runs only once a minute.
func (s *mongoLockStore) DeleteExpired(ctx context.Context, lockID string, now time.Time) error {
	_, err := s.collection.DeleteOne(ctx, bson.M{
		"_id":        lockID,
		"expires_at": bson.M{"$lt": now},
	})
	return err
}

// slotLocker acquires advisory locks with bounded polling.
type slotLocker struct {
	store         lockStore
	ttl           time.Duration
	wait          time.Duration
	retryInterval time.Duration
	now           func() time.Time
}

const defaultLockRetryInterval = 25 * time.Millisecond

// acquire blocks until the court-day lock is held, the wait budget runs out,
// or ctx is done. The returned release function must always be called.
func (s *slotLocker) acquire(ctx context.Context, courtID, date string) (func(), error) {
	lockID := "booking_lock_" + slotKey(courtID, date)
	owner := uuid.NewString()
	deadline := s.now().Add(s.wait)

	for {
		now := s.now()
		lock := &model.BookingLock{
			ID:        lockID,
			Owner:     owner,
			CreatedAt: now,
			ExpiresAt: now.Add(s.ttl),
		}

		err := s.store.Insert(ctx, lock)
		if err == nil {
			return func() { s.release(ctx, lockID, owner) }, nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			return nil, err
		}

		_ = s.store.DeleteExpired(ctx, lockID, now)

		if now.After(deadline) {
			return nil, errLockTimeout(courtID, date)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.retryInterval):
		}
	}
}

// release is a no-op once the lock has expired and been taken over.
func (s *slotLocker) release(ctx context.Context, lockID, owner string) {
	// Release even when the request context is already cancelled.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.wait)
	defer cancel()
	_ = s.store.Delete(ctx, lockID, owner)
}

func errLockTimeout(courtID, date string) error {
	return fmt.Errorf("%w: court %s on %s", bookingserrors.ErrLockTimeout, courtID, date)
}
