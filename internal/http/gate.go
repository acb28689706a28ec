package http

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/krizad/baht-saving-project/internal/core"
	"github.com/krizad/baht-saving-project/internal/ledger"
	applog "github.com/krizad/baht-saving-project/internal/log"
)

var (
	errInvalidAction  = errors.New("Invalid action")
	errLoginThrottled = errors.New("Too many login attempts, please try again later")
)

// actionFunc runs one action and returns the response fields on success.
type actionFunc func(ctx context.Context, p Params) (*APIResponse, error)

type action struct {
	// public actions skip the session gate.
	public bool
	run    actionFunc
}

// dispatch looks up the action, passes the session gate unless the action
// is public, and runs it. A panic inside the action is turned into an error
// so the caller still gets an envelope.
func (s *Server) dispatch(ctx context.Context, name string, p Params) (resp *APIResponse, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%v", rec)
			applog.FromContext(ctx).ErrorContext(ctx, "Action panicked",
				applog.FieldAction, name,
				"panic", rec,
				"stack", string(debug.Stack()))
		}
	}()

	a, ok := s.actions[name]
	if !ok {
		return nil, errInvalidAction
	}

	if !a.public {
		username, err := s.sessions.Validate(p.Get("sessionId"))
		if err != nil {
			return nil, err
		}
		ctx = ledger.WithUsername(ctx, username)
		ctx = applog.NewContext(ctx, applog.FromContext(ctx).With(applog.FieldUsername, username))
	}

	return a.run(ctx, p)
}

func isExpected(err error) bool {
	return core.IsExpected(err) ||
		errors.Is(err, errInvalidAction) ||
		errors.Is(err, errLoginThrottled)
}

// failure renders err as the error envelope.
func failure(err error) *APIResponse {
	return Failure(core.UserMessage(err))
}

type clientIPKey struct{}

func withClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

func clientIPFrom(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}
