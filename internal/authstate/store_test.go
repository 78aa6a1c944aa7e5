package authstate

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tasksuite/addin-auth/internal/models"
)

func testStore(t *testing.T) *Store {
	t.Helper()

	return NewStore(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSubscribe_FiresImmediatelyWithCurrentState(t *testing.T) {
	s := testStore(t)
	s.Set(models.AuthState{IsAuthenticated: true, Account: &models.Account{Username: "ada@example.com"}})

	var got []models.AuthState
	unsub := s.Subscribe(func(st models.AuthState) { got = append(got, st) })
	t.Cleanup(unsub)

	require.Len(t, got, 1)
	assert.True(t, got[0].IsAuthenticated)
	require.NotNil(t, got[0].Account)
	assert.Equal(t, "ada@example.com", got[0].Account.Username)
}

func TestSet_NotifiesInRegistrationOrder(t *testing.T) {
	s := testStore(t)

	var order []string
	s.Subscribe(func(models.AuthState) { order = append(order, "first") })
	s.Subscribe(func(models.AuthState) { order = append(order, "second") })
	s.Subscribe(func(models.AuthState) { order = append(order, "third") })

	order = nil
	s.Set(models.AuthState{IsAuthenticating: true})

	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestSet_PanickingSubscriberDoesNotBlockOthers(t *testing.T) {
	s := testStore(t)

	var reached bool
	s.Subscribe(func(st models.AuthState) {
		if st.IsAuthenticating {
			panic("subscriber bug")
		}
	})
	s.Subscribe(func(st models.AuthState) {
		if st.IsAuthenticating {
			reached = true
		}
	})

	s.Set(models.AuthState{IsAuthenticating: true})
	assert.True(t, reached)
}

func TestUnsubscribe_Idempotent(t *testing.T) {
	s := testStore(t)

	var calls int
	unsub := s.Subscribe(func(models.AuthState) { calls++ })
	require.Equal(t, 1, calls)

	unsub()
	unsub() // must not panic or affect other subscribers

	s.Set(models.AuthState{IsAuthenticated: true})
	assert.Equal(t, 1, calls)
}

func TestUnsubscribe_OthersStillNotified(t *testing.T) {
	s := testStore(t)

	var a, b int
	unsubA := s.Subscribe(func(models.AuthState) { a++ })
	s.Subscribe(func(models.AuthState) { b++ })

	unsubA()
	s.Set(models.AuthState{})

	assert.Equal(t, 1, a)
	assert.Equal(t, 2, b)
}

func TestCurrent_ReturnsAccountCopy(t *testing.T) {
	s := testStore(t)
	s.Set(models.AuthState{Account: &models.Account{Username: "ada@example.com"}})

	snap := s.Current()
	require.NotNil(t, snap.Account)
	snap.Account.Username = "mutated@example.com"

	assert.Equal(t, "ada@example.com", s.Current().Account.Username)
}

func TestSubscriber_MayReenterStore(t *testing.T) {
	s := testStore(t)

	var sawCurrent bool
	s.Subscribe(func(st models.AuthState) {
		// Re-entering the store from a callback must not deadlock.
		_ = s.Current()
		sawCurrent = true
	})

	s.Set(models.AuthState{})
	assert.True(t, sawCurrent)
}
