package ledger

import (
	"testing"

	"courtbook/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// dryRunDB builds statements without a server.
func dryRunDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(postgres.Open("host=localhost user=courtbook dbname=courtbook sslmode=disable"), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
		Logger:               gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	return db
}

func TestBookedRows_SelectsWholeCourtDay(t *testing.T) {
	db := dryRunDB(t)

	var rows []bookingRow
	stmt := bookedRows(db, "court-1", "2030-03-14").Find(&rows).Statement
	sql := stmt.SQL.String()

	assert.Contains(t, sql, `"bookings"`)
	assert.Contains(t, sql, "court_id = $1 AND date = $2 AND status = $3")
	assert.Contains(t, sql, "ORDER BY start_hour ASC, id ASC")
	assert.NotContains(t, sql, "start_hour <")
	assert.NotContains(t, sql, "+ hours")
	assert.Equal(t, []any{"court-1", "2030-03-14", string(model.StatusBooked)}, stmt.Vars)
}
