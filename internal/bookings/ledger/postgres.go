package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingserrors "courtbook/internal/bookings/errors"
	"courtbook/internal/bookings/slots"
	"courtbook/pkg/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// bookingRow is the Postgres shape of a booking.
type bookingRow struct {
	ID              string    `gorm:"primaryKey;type:varchar(36)"`
	PublicReference string    `gorm:"type:varchar(32);uniqueIndex;not null"`
	CustomerName    string    `gorm:"type:varchar(100);not null"`
	CustomerPhone   string    `gorm:"type:varchar(20);not null"`
	SportID         string    `gorm:"type:varchar(64);not null"`
	CourtID         string    `gorm:"type:varchar(64);not null;index:idx_bookings_court_day,priority:1"`
	Date            string    `gorm:"type:char(10);not null;index:idx_bookings_court_day,priority:2;index:idx_bookings_date"`
	StartHour       int       `gorm:"not null"`
	Hours           int       `gorm:"not null"`
	Amount          int64     `gorm:"not null"`
	Status          string    `gorm:"type:varchar(16);not null;index:idx_bookings_court_day,priority:3"`
	CreatedAt       time.Time `gorm:"not null"`
	UpdatedAt       time.Time `gorm:"not null"`
}

func (bookingRow) TableName() string {
	return "bookings"
}

func toRow(b *model.Booking) *bookingRow {
	return &bookingRow{
		ID:              b.ID,
		PublicReference: b.PublicReference,
		CustomerName:    b.CustomerName,
		CustomerPhone:   b.CustomerPhone,
		SportID:         b.SportID,
		CourtID:         b.CourtID,
		Date:            b.Date,
		StartHour:       b.StartHour,
		Hours:           b.Hours,
		Amount:          b.Amount,
		Status:          string(b.Status),
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
}

func (r *bookingRow) toModel() *model.Booking {
	return &model.Booking{
		ID:              r.ID,
		PublicReference: r.PublicReference,
		CustomerName:    r.CustomerName,
		CustomerPhone:   r.CustomerPhone,
		SportID:         r.SportID,
		CourtID:         r.CourtID,
		Date:            r.Date,
		StartHour:       r.StartHour,
		Hours:           r.Hours,
		Amount:          r.Amount,
		Status:          model.Status(r.Status),
		CreatedAt:       r.CreatedAt.UTC(),
		UpdatedAt:       r.UpdatedAt.UTC(),
	}
}

func toModels(rows []bookingRow) []*model.Booking {
	out := make([]*model.Booking, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toModel())
	}
	return out
}

type postgresLedger struct {
	db     *gorm.DB
	window slots.Window
	now    func() time.Time
	newRef func() string
}

// NewPostgresLedger stores bookings in Postgres. Each write is one
// transaction holding a transaction-scoped advisory lock on the court-day.
func NewPostgresLedger(db *gorm.DB, window slots.Window) Ledger {
	return &postgresLedger{
		db:     db,
		window: window,
		now:    time.Now,
		newRef: NewPublicReference,
	}
}

// MigratePostgres creates or updates the bookings table and its indexes.
func MigratePostgres(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).AutoMigrate(&bookingRow{})
}

func lockCourtDay(tx *gorm.DB, courtID, date string) error {
	if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", slotKey(courtID, date)).Error; err != nil {
		return fmt.Errorf("failed to lock court-day: %w", err)
	}
	return nil
}

// bookedRows selects every booked row of one court-day. Conflicts are
// decided by slots.FindConflict on the result, never in SQL.
func bookedRows(db *gorm.DB, courtID, date string) *gorm.DB {
	return db.Model(&bookingRow{}).
		Where("court_id = ? AND date = ? AND status = ?", courtID, date, string(model.StatusBooked)).
		Order("start_hour ASC, id ASC")
}

func (l *postgresLedger) Create(ctx context.Context, candidate *model.Booking) (*model.Booking, error) {
	b, err := prepare(candidate, l.window, l.now())
	if err != nil {
		return nil, err
	}

	err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockCourtDay(tx, b.CourtID, b.Date); err != nil {
			return err
		}

		var rows []bookingRow
		if err := bookedRows(tx, b.CourtID, b.Date).Find(&rows).Error; err != nil {
			return fmt.Errorf("failed to find booked slots: %w", err)
		}
		if existing := slots.FindConflict(toModels(rows), b.StartHour, b.Hours); existing != nil {
			return conflictError(existing)
		}

		ref, err := l.uniqueReference(tx)
		if err != nil {
			return err
		}
		b.PublicReference = ref

		if err := tx.Create(toRow(b)).Error; err != nil {
			return fmt.Errorf("failed to insert booking: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return b, nil
}

func (l *postgresLedger) uniqueReference(tx *gorm.DB) (string, error) {
	for i := 0; i < maxReferenceAttempts; i++ {
		ref := l.newRef()
		var n int64
		if err := tx.Model(&bookingRow{}).Where("public_reference = ?", ref).Count(&n).Error; err != nil {
			return "", fmt.Errorf("failed to check public reference: %w", err)
		}
		if n == 0 {
			return ref, nil
		}
	}
	return "", fmt.Errorf("failed to generate a unique public reference after %d attempts", maxReferenceAttempts)
}

func (l *postgresLedger) first(ctx context.Context, query string, arg string) (*model.Booking, error) {
	var row bookingRow
	if err := l.db.WithContext(ctx).Where(query, arg).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}
	return row.toModel(), nil
}

func (l *postgresLedger) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	return l.first(ctx, "id = ?", id)
}

func (l *postgresLedger) GetByPublicReference(ctx context.Context, ref string) (*model.Booking, error) {
	return l.first(ctx, "public_reference = ?", ref)
}

func (l *postgresLedger) ListAll(ctx context.Context) ([]*model.Booking, error) {
	var rows []bookingRow
	if err := l.db.WithContext(ctx).Order("date DESC, start_hour ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to find bookings: %w", err)
	}
	return toModels(rows), nil
}

func (l *postgresLedger) ListBooked(ctx context.Context, courtID, date string) ([]*model.Booking, error) {
	var rows []bookingRow
	if err := bookedRows(l.db.WithContext(ctx), courtID, date).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to find booked slots: %w", err)
	}
	return toModels(rows), nil
}

func (l *postgresLedger) SetStatus(ctx context.Context, id string, to model.Status) (*model.Booking, error) {
	current, err := l.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var updated *model.Booking
	err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockCourtDay(tx, current.CourtID, current.Date); err != nil {
			return err
		}

		var row bookingRow
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).Take(&row).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return bookingserrors.ErrNotFound
			}
			return fmt.Errorf("failed to load booking: %w", err)
		}

		next, err := model.Status(row.Status).Transition(to)
		if err != nil {
			return err
		}

		row.Status = string(next)
		row.UpdatedAt = l.now().UTC().Truncate(time.Millisecond)
		err = tx.Model(&bookingRow{}).Where("id = ?", id).
			Updates(map[string]any{"status": row.Status, "updated_at": row.UpdatedAt}).Error
		if err != nil {
			return fmt.Errorf("failed to update booking status: %w", err)
		}

		updated = row.toModel()
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}
