// Package session issues and checks the opaque tokens handed out at login.
// Sessions live in memory only and expire a fixed time after they were
// issued; using a session does not extend it.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/krizad/baht-saving-project/internal/cache"
	"github.com/krizad/baht-saving-project/internal/core"
	ports "github.com/krizad/baht-saving-project/internal/sheets"
)

const (
	DefaultTTL        = time.Hour
	DefaultMaxEntries = 10000
)

// Session is an issued login.
type Session struct {
	Token     string
	Username  string
	ExpiresAt time.Time
}

// Login is the result of a successful login.
type Login struct {
	Session
	Name    string
	Surname string
}

type Store struct {
	users    ports.UserReader
	sessions *cache.LRUCache[string]
	newToken func() string
}

type options struct {
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
	newToken   func() string
}

type Option func(*options)

// WithTTL sets how long a session stays valid after login.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithMaxEntries bounds the number of live sessions; the least recently used is dropped first.
func WithMaxEntries(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxEntries = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func WithTokenSource(f func() string) Option {
	return func(o *options) {
		if f != nil {
			o.newToken = f
		}
	}
}

func NewStore(users ports.UserReader, opts ...Option) *Store {
	o := options{
		ttl:        DefaultTTL,
		maxEntries: DefaultMaxEntries,
		now:        time.Now,
		newToken:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Store{
		users:    users,
		sessions: cache.NewLRUCache[string](o.maxEntries, o.ttl, cache.WithClock(o.now)),
		newToken: o.newToken,
	}
}

// Login checks the credentials against the user table and issues a new session.
// A failed match never says which field was wrong.
func (s *Store) Login(ctx context.Context, username, password string) (Login, error) {
	u, ok, err := s.users.FindUser(ctx, username, password)
	if err != nil {
		return Login{}, fmt.Errorf("find user: %w", err)
	}
	if !ok {
		return Login{}, core.ErrAuthFailed
	}

	token := s.newToken()
	expires := s.sessions.Set(token, u.Username)
	return Login{
		Session: Session{Token: token, Username: u.Username, ExpiresAt: expires},
		Name:    u.Name,
		Surname: u.Surname,
	}, nil
}

// Validate returns the username owning token.
func (s *Store) Validate(token string) (string, error) {
	if token == "" {
		return "", core.ErrSessionRequired
	}
	username, ok := s.sessions.Get(token)
	if !ok {
		return "", core.ErrInvalidSession
	}
	return username, nil
}

// Sweep drops expired sessions and returns how many were removed.
func (s *Store) Sweep() int {
	return s.sessions.CleanExpired()
}

// Len is the number of stored sessions, expired ones included until swept.
func (s *Store) Len() int {
	return s.sessions.Size()
}
