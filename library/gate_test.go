package library

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGateRules(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newManager(t)
	alice, err := mgr.Register(ctx, "alice", "a@x.com", "pw123456")
	require.NoError(t, err)
	admin := loginAdmin(t, mgr)

	tests := []struct {
		action Action
		target string
		ok     bool
	}{
		{ActionCreateBook, "", true},
		{ActionChangeRole, alice.ID, true},
		{ActionChangeRole, admin.ID, false},
		{ActionDeleteUser, admin.ID, false},
		{ActionEditOwnProfile, admin.ID, true},
		{ActionEditOwnProfile, alice.ID, false},
		{ActionBorrow, "", true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%s", tt.action, tt.target), func(t *testing.T) {
			id, err := mgr.gate.Authorize(ctx, tt.action, tt.target)
			if tt.ok {
				require.NoError(t, err)
				assert.Equal(t, admin.ID, id.ID)
				return
			}
			assert.True(t, IsAuth(err), "got %v", err)
		})
	}

	_, err = mgr.gate.Authorize(ctx, Action("launch rockets"), "")
	assert.Error(t, err)
	assert.False(t, IsAuth(err))
}

func TestHasRole(t *testing.T) {
	assert.True(t, HasRole(Identity{Role: RoleAdmin}, RoleAdmin))
	assert.False(t, HasRole(Identity{Role: RoleUser}, RoleAdmin))
}

func TestErrorTaxonomy(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", conflictError("borrow", "book is not available for borrowing"))
	assert.ErrorIs(t, err, ErrConflict)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Equal(t, CodeConflict, CodeOf(err))
	assert.Equal(t, "wrapped: borrow: book is not available for borrowing", err.Error())

	var le *Error
	require.True(t, errors.As(err, &le))
	assert.Equal(t, "borrow", le.Op)

	assert.Equal(t, ErrorCode(""), CodeOf(errors.New("plain")))
}

func TestConcurrentBorrowOneWinner(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newManager(t)
	loginAdmin(t, mgr)
	b := mustCreateBook(t, mgr, "Only copy")

	const n = 10
	errs := make(chan error, n)
	for range n {
		go func() {
			_, err := mgr.Borrow(ctx, b.ID)
			errs <- err
		}()
	}
	wins := 0
	for range n {
		err := <-errs
		switch {
		case err == nil:
			wins++
		case IsConflict(err):
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	checkInvariants(t, mgr)
}
