package ledger

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestRetryableMatchesConflictErrors(t *testing.T) {
	transient := []error{
		gorm.ErrDuplicatedKey,
		fmt.Errorf("create wallet for user 7: %w", gorm.ErrDuplicatedKey),
		errors.New(`ERROR: duplicate key value violates unique constraint "idx_wallets_user_id" (SQLSTATE 23505)`),
		errors.New("constraint failed: UNIQUE constraint failed: wallets.user_id (2067)"),
		errors.New("ERROR: deadlock detected (SQLSTATE 40P01)"),
		errors.New("ERROR: could not serialize access due to concurrent update (SQLSTATE 40001)"),
		errors.New("database is locked (5) (SQLITE_BUSY)"),
	}
	for _, err := range transient {
		require.True(t, retryable(err), "expected retryable: %v", err)
	}

	terminal := []error{
		nil,
		gorm.ErrRecordNotFound,
		errors.New("record not found"),
	}
	for _, err := range terminal {
		require.False(t, retryable(err), "expected terminal: %v", err)
	}
}
