// Package ledger holds the savings operations: who paid which month,
// recording and undoing deposits, the member directory and the summary.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/krizad/baht-saving-project/internal/core"
	ports "github.com/krizad/baht-saving-project/internal/sheets"
)

// EventPublisher receives deposit events after the record store accepted them.
type EventPublisher interface {
	PublishDepositEvent(ctx context.Context, e core.DepositEvent) error
}

type Ledger struct {
	store     ports.Store
	publisher EventPublisher
	now       func() time.Time

	// mu serializes the check-then-write of Deposit and Undo so two
	// concurrent requests cannot record the same month twice. Events are
	// published after it is released.
	mu sync.Mutex
}

type Option func(*Ledger)

func WithPublisher(p EventPublisher) Option {
	return func(l *Ledger) { l.publisher = p }
}

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

func New(store ports.Store, opts ...Option) *Ledger {
	l := &Ledger{store: store, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// SearchMembers returns the members whose id or name contains search, in directory order.
func (l *Ledger) SearchMembers(ctx context.Context, search string) ([]core.Member, error) {
	members, err := l.store.ListMembers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	out := make([]core.Member, 0, len(members))
	for _, m := range members {
		if m.Matches(search) {
			out = append(out, m)
		}
	}
	return out, nil
}

// ListWithStatus returns every member with whether they deposited for monthYear.
func (l *Ledger) ListWithStatus(ctx context.Context, monthYear string) ([]core.MemberStatus, error) {
	members, err := l.store.ListMembers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	deposits, err := l.store.ListDeposits(ctx)
	if err != nil {
		return nil, fmt.Errorf("list deposits: %w", err)
	}

	want := core.NormalizePeriod(monthYear)
	paid := make(map[string]bool)
	for _, d := range deposits {
		if core.NormalizePeriod(d.Period) == want {
			paid[d.MemberID] = true
		}
	}

	out := make([]core.MemberStatus, 0, len(members))
	for _, m := range members {
		out = append(out, core.MemberStatus{Member: m, Deposited: paid[m.ID]})
	}
	return out, nil
}

// Deposit records one month for a member and returns the amount, one baht
// per day of that month.
func (l *Ledger) Deposit(ctx context.Context, memberID, monthYear string) (int, error) {
	memberID = strings.TrimSpace(memberID)
	if memberID == "" {
		return 0, core.ErrEmptyMemberID
	}
	period := core.NormalizePeriod(monthYear)
	if period.IsEmpty() {
		return 0, core.ErrEmptyPeriod
	}

	d, err := l.recordDeposit(ctx, memberID, period)
	if err != nil {
		return 0, err
	}

	slog.InfoContext(ctx, "Deposit recorded",
		"member_id", d.MemberID,
		"period", d.Period,
		"amount", d.Amount)
	l.publish(ctx, core.DepositRecorded, d)
	return d.Amount, nil
}

// recordDeposit is the locked check-then-append of Deposit.
func (l *Ledger) recordDeposit(ctx context.Context, memberID string, period core.PeriodKey) (core.Deposit, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, found, err := l.store.FindDeposit(ctx, memberID, period); err != nil {
		return core.Deposit{}, fmt.Errorf("find deposit: %w", err)
	} else if found {
		return core.Deposit{}, core.ErrAlreadyDeposited
	}

	d := core.Deposit{MemberID: memberID, Period: period, Amount: core.DaysInMonth(period)}
	if err := l.store.AppendDeposit(ctx, d); err != nil {
		if errors.Is(err, core.ErrAlreadyDeposited) {
			return core.Deposit{}, core.ErrAlreadyDeposited
		}
		return core.Deposit{}, fmt.Errorf("append deposit: %w", err)
	}
	return d, nil
}

// Undo removes the deposit of memberID for monthYear.
func (l *Ledger) Undo(ctx context.Context, memberID, monthYear string) error {
	memberID = strings.TrimSpace(memberID)
	period := core.NormalizePeriod(monthYear)

	d, err := l.removeDeposit(ctx, memberID, period)
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Deposit undone",
		"member_id", memberID,
		"period", period)
	l.publish(ctx, core.DepositUndone, d)
	return nil
}

// removeDeposit is the locked find-then-delete of Undo.
func (l *Ledger) removeDeposit(ctx context.Context, memberID string, period core.PeriodKey) (core.Deposit, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	d, found, err := l.store.FindDeposit(ctx, memberID, period)
	if err != nil {
		return core.Deposit{}, fmt.Errorf("find deposit: %w", err)
	}
	if !found {
		return core.Deposit{}, core.ErrDepositNotFound
	}
	if err := l.store.DeleteDeposit(ctx, memberID, period); err != nil {
		if errors.Is(err, core.ErrDepositNotFound) {
			return core.Deposit{}, core.ErrDepositNotFound
		}
		return core.Deposit{}, fmt.Errorf("delete deposit: %w", err)
	}
	return core.Deposit{MemberID: memberID, Period: period, Amount: d.Amount}, nil
}

// publish is best effort: the record store is the source of truth.
func (l *Ledger) publish(ctx context.Context, kind core.DepositEventKind, d core.Deposit) {
	if l.publisher == nil {
		return
	}
	e := core.DepositEvent{
		Kind:       kind,
		MemberID:   d.MemberID,
		Period:     d.Period,
		Amount:     d.Amount,
		Username:   UsernameFrom(ctx),
		OccurredAt: l.now(),
	}
	if err := l.publisher.PublishDepositEvent(ctx, e); err != nil {
		slog.WarnContext(ctx, "Failed to publish deposit event",
			"kind", kind,
			"member_id", d.MemberID,
			"period", d.Period,
			"error", err)
	}
}

type usernameKey struct{}

// WithUsername attaches the authenticated username to ctx.
func WithUsername(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, usernameKey{}, username)
}

func UsernameFrom(ctx context.Context) string {
	if v, ok := ctx.Value(usernameKey{}).(string); ok {
		return v
	}
	return ""
}
