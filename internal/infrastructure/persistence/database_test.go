package persistence

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/hospital/billing/internal/domain/billing"
	"github.com/hospital/billing/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// newMockDatabase creates a Database instance with a mocked SQL connection
func newMockDatabase(t *testing.T) (*Database, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	db, err := Wrap(gormDB)
	require.NoError(t, err)
	return db, mock, mockDB
}

func TestDatabase_Ping(t *testing.T) {
	newMonitored := func(t *testing.T) (*Database, sqlmock.Sqlmock, *sql.DB) {
		mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)

		// gorm pings during Open
		mock.ExpectPing()
		gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDB, DriverName: "postgres"}), &gorm.Config{
			SkipDefaultTransaction: true,
		})
		require.NoError(t, err)
		db, err := Wrap(gormDB)
		require.NoError(t, err)
		return db, mock, mockDB
	}

	t.Run("successful ping", func(t *testing.T) {
		db, mock, mockDB := newMonitored(t)
		defer mockDB.Close()

		mock.ExpectPing()
		assert.NoError(t, db.Ping(context.Background()))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failed ping", func(t *testing.T) {
		db, mock, mockDB := newMonitored(t)
		defer mockDB.Close()

		mock.ExpectPing().WillReturnError(errors.New("connection refused"))
		assert.Error(t, db.Ping(context.Background()))
	})
}

func TestDatabase_SQL(t *testing.T) {
	db, _, mockDB := newMockDatabase(t)
	defer mockDB.Close()

	assert.Same(t, mockDB, db.SQL())
}

func TestTranslate(t *testing.T) {
	assert.NoError(t, translate(nil))
	assert.ErrorIs(t, translate(gorm.ErrRecordNotFound), shared.ErrNotFound)
	assert.ErrorIs(t, translate(gorm.ErrDuplicatedKey), shared.ErrAlreadyExists)

	other := errors.New("boom")
	assert.Equal(t, other, translate(other))
}

func TestGormInvoiceRepository_Mocked(t *testing.T) {
	ctx := context.Background()

	t.Run("FindByID maps a missing row to ErrNotFound", func(t *testing.T) {
		db, mock, mockDB := newMockDatabase(t)
		defer mockDB.Close()

		mock.ExpectQuery(`SELECT \* FROM "invoices" WHERE id = \$1`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		_, err := NewGormInvoiceRepository(db.DB).FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("SaveWithLock reports a conflict when no row matches the version", func(t *testing.T) {
		db, mock, mockDB := newMockDatabase(t)
		defer mockDB.Close()

		inv, err := billing.NewInvoice(billing.NewInvoiceInput{
			InvoiceNumber: "INV-20260110-00001",
			PatientID:     uuid.New(),
			PatientName:   "Ama Mensah",
			LineItems:     []billing.LineItem{{Description: "X-ray", Quantity: 1, UnitPrice: decimal.NewFromInt(90)}},
		})
		require.NoError(t, err)
		require.NoError(t, inv.Send())

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "invoices" SET`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err = NewGormInvoiceRepository(db.DB).SaveWithLock(ctx, inv)
		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ExistsGatewayTransaction counts ledger rows", func(t *testing.T) {
		db, mock, mockDB := newMockDatabase(t)
		defer mockDB.Close()

		mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "invoice_payments" WHERE gateway_transaction_id = $1`)).
			WithArgs("cs_test_1").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

		exists, err := NewGormInvoiceRepository(db.DB).ExistsGatewayTransaction(ctx, "cs_test_1")
		require.NoError(t, err)
		assert.True(t, exists)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
