package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

const approvePartnerSQL = `UPDATE "partners" SET .* WHERE \(?id = \$\d+ AND approval_status = \$\d+\)?`

func TestPartnerApproveIsConditional(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)

	t.Run("PendingRowIsApproved", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPartnerRepository(db)

		mock.ExpectBegin()
		mock.ExpectExec(approvePartnerSQL).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		ok, err := repo.Approve(ctx, 3, "ops", at)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("AlreadyDecidedRowIsUntouched", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPartnerRepository(db)

		mock.ExpectBegin()
		mock.ExpectExec(approvePartnerSQL).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		ok, err := repo.Approve(ctx, 3, "ops", at)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ErrorRollsBack", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPartnerRepository(db)

		mock.ExpectBegin()
		mock.ExpectExec(approvePartnerSQL).WillReturnError(errors.New("connection reset"))
		mock.ExpectRollback()

		ok, err := repo.Approve(ctx, 3, "ops", at)
		assert.Error(t, err)
		assert.False(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("JoinsCallerTransaction", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPartnerRepository(db)

		mock.ExpectBegin()
		mock.ExpectExec(approvePartnerSQL).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE "partners" SET .*last_login_at`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := WithTransaction(ctx, db, func(txCtx context.Context) error {
			if _, err := repo.Approve(txCtx, 3, "ops", at); err != nil {
				return err
			}
			return repo.TouchLastLogin(txCtx, 3, at)
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
