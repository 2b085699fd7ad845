package common

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/gig-escrow/internal/pkg/apperror"
)

func TestIsUniqueViolation(t *testing.T) {
	dup := &pq.Error{Code: "23505", Constraint: "uq_disputes_active_order"}

	tests := []struct {
		name       string
		err        error
		constraint string
		want       bool
	}{
		{"nil", nil, "", false},
		{"обычная ошибка", errors.New("boom"), "", false},
		{"любой индекс", dup, "", true},
		{"тот же индекс", dup, "uq_disputes_active_order", true},
		{"другой индекс", dup, "uq_transactions_open_order", false},
		{"обёрнутая", fmt.Errorf("insert: %w", dup), "uq_disputes_active_order", true},
		{"другой код", &pq.Error{Code: "23503"}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsUniqueViolation(tt.err, tt.constraint))
		})
	}
}

// stubConn - соединение без сервера: транзакция открывается, Commit возвращает commitErr.
type stubConn struct {
	commitErr  error
	rolledBack *bool
}

func (c *stubConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("not supported") }
func (c *stubConn) Close() error                        { return nil }
func (c *stubConn) Begin() (driver.Tx, error)           { return c, nil }
func (c *stubConn) Commit() error                       { return c.commitErr }
func (c *stubConn) Rollback() error {
	*c.rolledBack = true
	return nil
}

type stubConnector struct {
	conn *stubConn
}

func (s stubConnector) Connect(context.Context) (driver.Conn, error) { return s.conn, nil }
func (s stubConnector) Driver() driver.Driver                        { return nil }

func TestWithTransaction_Errors(t *testing.T) {
	commitErr := errors.New("connection reset by peer")
	fnErr := apperror.ErrOrderNotFound

	tests := []struct {
		name       string
		commitErr  error
		fnErr      error
		wantCode   apperror.ErrorCode
		wantCause  error
		rolledBack bool
	}{
		{"успешная фиксация", nil, nil, "", nil, false},
		{"сбой фиксации", commitErr, nil, apperror.ErrCodeDatabaseError, commitErr, false},
		{"ошибка функции без изменений", nil, fnErr, apperror.ErrCodeNotFound, fnErr, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rolledBack bool
			db := sqlx.NewDb(sql.OpenDB(stubConnector{conn: &stubConn{commitErr: tt.commitErr, rolledBack: &rolledBack}}), "postgres")
			t.Cleanup(func() { _ = db.Close() })

			err := WithTransaction(context.Background(), db, func(*sqlx.Tx) error { return tt.fnErr })
			assert.Equal(t, tt.rolledBack, rolledBack)
			if tt.wantCause == nil {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, apperror.CodeOf(err))
			assert.ErrorIs(t, err, tt.wantCause)
		})
	}
}
