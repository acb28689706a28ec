package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krizad/baht-saving-project/internal/core"
	"github.com/krizad/baht-saving-project/internal/sheets/memory"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestStore(t *testing.T, opts ...Option) (*Store, *fakeClock) {
	t.Helper()
	users := memory.New([]core.User{{Username: "admin", Password: "1234", Name: "Somsri", Surname: "Jaidee"}}, nil)
	clock := &fakeClock{now: time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)}
	return NewStore(users, append([]Option{WithClock(clock.Now)}, opts...)...), clock
}

func TestLogin(t *testing.T) {
	store, clock := newTestStore(t)

	login, err := store.Login(context.Background(), "admin", "1234")
	require.NoError(t, err)
	assert.NotEmpty(t, login.Token)
	assert.Equal(t, "Somsri", login.Name)
	assert.Equal(t, "Jaidee", login.Surname)
	assert.Equal(t, clock.Now().Add(time.Hour), login.ExpiresAt)

	other, err := store.Login(context.Background(), "admin", "1234")
	require.NoError(t, err)
	assert.NotEqual(t, login.Token, other.Token, "every login mints a fresh token")
}

func TestLoginFailures(t *testing.T) {
	store, _ := newTestStore(t)

	for _, tc := range []struct{ user, pass string }{
		{"admin", "wrong"},
		{"nobody", "1234"},
		{"", ""},
		{"ADMIN", "1234"},
	} {
		_, err := store.Login(context.Background(), tc.user, tc.pass)
		assert.ErrorIs(t, err, core.ErrAuthFailed, "%s/%s", tc.user, tc.pass)
	}
	assert.Equal(t, 0, store.Len())
}

func TestValidate(t *testing.T) {
	store, clock := newTestStore(t)
	login, err := store.Login(context.Background(), "admin", "1234")
	require.NoError(t, err)

	_, err = store.Validate("")
	assert.ErrorIs(t, err, core.ErrSessionRequired)
	assert.ErrorIs(t, err, core.ErrUnauthorized)
	assert.Equal(t, "Unauthorized: sessionId required", err.Error())

	_, err = store.Validate("not-a-token")
	assert.ErrorIs(t, err, core.ErrInvalidSession)
	assert.Equal(t, "Unauthorized: invalid session", err.Error())

	clock.Advance(3599 * time.Second)
	user, err := store.Validate(login.Token)
	require.NoError(t, err)
	assert.Equal(t, "admin", user)

	// Using the session did not slide its expiry
	clock.Advance(time.Second)
	_, err = store.Validate(login.Token)
	assert.ErrorIs(t, err, core.ErrInvalidSession)
}

func TestSweep(t *testing.T) {
	store, clock := newTestStore(t, WithTTL(time.Minute))
	for i := 0; i < 3; i++ {
		_, err := store.Login(context.Background(), "admin", "1234")
		require.NoError(t, err)
	}
	assert.Equal(t, 0, store.Sweep())

	clock.Advance(time.Minute)
	assert.Equal(t, 3, store.Sweep())
	assert.Equal(t, 0, store.Len())
}

func TestMaxEntries(t *testing.T) {
	tokens := []string{"t1", "t2", "t3"}
	i := 0
	store, _ := newTestStore(t, WithMaxEntries(2), WithTokenSource(func() string {
		tok := tokens[i]
		i++
		return tok
	}))
	for range tokens {
		_, err := store.Login(context.Background(), "admin", "1234")
		require.NoError(t, err)
	}

	_, err := store.Validate("t1")
	assert.ErrorIs(t, err, core.ErrInvalidSession, "oldest session is evicted")
	_, err = store.Validate("t3")
	assert.NoError(t, err)
}
