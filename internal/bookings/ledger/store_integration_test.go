package ledger_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	bookingserrors "courtbook/internal/bookings/errors"
	"courtbook/internal/bookings/ledger"
	"courtbook/internal/bookings/slots"
	mongoMigration "courtbook/internal/migrations/mongo"
	"courtbook/pkg/client"
	"courtbook/pkg/config"
	"courtbook/pkg/logger"
	"courtbook/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// These tests need a live store and are skipped unless TEST_MONGO_URI (a
// replica set, for transactions) or TEST_POSTGRES_DSN is set.

const integrationDBName = "courtbook_ledger_test"

func testWindow(t *testing.T) slots.Window {
	t.Helper()
	w, err := slots.NewWindow(6, 23)
	require.NoError(t, err)
	return w
}

func mongoLedger(t *testing.T) ledger.Ledger {
	t.Helper()
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	mc, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	require.NoError(t, mc.Ping(ctx, nil))

	db := mc.Database(integrationDBName)
	require.NoError(t, db.Drop(ctx))
	require.NoError(t, mongoMigration.RunMigration(ctx, mc, integrationDBName, logger.NewNop()))

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = db.Drop(ctx)
		_ = mc.Disconnect(ctx)
	})

	cfg := &config.Config{
		MongoDatabaseName: integrationDBName,
		BookingLockTTL:    5 * time.Second,
		BookingLockWait:   5 * time.Second,
		Log:               logger.NewNop(),
		Client:            &client.Client{Mongo: mc},
	}
	return ledger.NewMongoLedger(cfg, testWindow(t))
}

func postgresLedger(t *testing.T) ledger.Ledger {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, ledger.MigratePostgres(ctx, db))
	require.NoError(t, db.Exec("DELETE FROM bookings").Error)

	t.Cleanup(func() {
		_ = db.Exec("DELETE FROM bookings").Error
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	return ledger.NewPostgresLedger(db, testWindow(t))
}

func candidate(court string, start, hours int) *model.Booking {
	return &model.Booking{
		CustomerName:  "Asha Rao",
		CustomerPhone: "+919812345678",
		SportID:       "badminton",
		CourtID:       court,
		Date:          "2030-03-14",
		StartHour:     start,
		Hours:         hours,
		Amount:        int64(hours) * 400,
	}
}

func runStoreSuite(t *testing.T, newLedger func(t *testing.T) ledger.Ledger) {
	t.Run("create and read back", func(t *testing.T) {
		l := newLedger(t)
		ctx := context.Background()

		created, err := l.Create(ctx, candidate("court-1", 10, 2))
		require.NoError(t, err)
		assert.Equal(t, model.StatusBooked, created.Status)
		assert.Regexp(t, `^CB-[0-9A-Z]{10}$`, created.PublicReference)

		byID, err := l.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.PublicReference, byID.PublicReference)

		byRef, err := l.GetByPublicReference(ctx, created.PublicReference)
		require.NoError(t, err)
		assert.Equal(t, created.ID, byRef.ID)
	})

	t.Run("overlap is rejected and adjacent is accepted", func(t *testing.T) {
		l := newLedger(t)
		ctx := context.Background()

		_, err := l.Create(ctx, candidate("court-1", 10, 2))
		require.NoError(t, err)

		_, err = l.Create(ctx, candidate("court-1", 11, 1))
		assert.ErrorIs(t, err, bookingserrors.ErrSlotConflict)

		_, err = l.Create(ctx, candidate("court-1", 12, 1))
		assert.NoError(t, err)

		_, err = l.Create(ctx, candidate("court-2", 10, 2))
		assert.NoError(t, err)
	})

	t.Run("cancel frees the hours", func(t *testing.T) {
		l := newLedger(t)
		ctx := context.Background()

		created, err := l.Create(ctx, candidate("court-1", 8, 3))
		require.NoError(t, err)

		cancelled, err := l.SetStatus(ctx, created.ID, model.StatusCancelled)
		require.NoError(t, err)
		assert.Equal(t, model.StatusCancelled, cancelled.Status)

		_, err = l.SetStatus(ctx, created.ID, model.StatusCompleted)
		assert.ErrorIs(t, err, bookingserrors.ErrInvalidTransition)

		booked, err := l.ListBooked(ctx, "court-1", "2030-03-14")
		require.NoError(t, err)
		assert.Empty(t, booked)

		_, err = l.Create(ctx, candidate("court-1", 9, 1))
		assert.NoError(t, err)
	})

	t.Run("concurrent requests for one slot admit exactly one", func(t *testing.T) {
		l := newLedger(t)
		ctx := context.Background()

		const workers = 8
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			success int
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := l.Create(ctx, candidate("court-3", 18, 2)); err == nil {
					mu.Lock()
					success++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, success)
		all, err := l.ListAll(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("unknown id", func(t *testing.T) {
		l := newLedger(t)
		_, err := l.GetByID(context.Background(), "missing")
		assert.ErrorIs(t, err, bookingserrors.ErrNotFound)
	})
}

func TestMongoLedger_Integration(t *testing.T) {
	runStoreSuite(t, mongoLedger)
}

func TestPostgresLedger_Integration(t *testing.T) {
	runStoreSuite(t, postgresLedger)
}
