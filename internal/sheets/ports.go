// Package sheets defines the record-store contract of the ledger. The
// original data lives in a spreadsheet with a user, a member and a deposit
// tab; every backend exposes those three tables through these ports.
package sheets

import (
	"context"

	"github.com/krizad/baht-saving-project/internal/core"
)

// Ports for outbound adapters.
type (
	// UserReader looks up login credentials.
	UserReader interface {
		// FindUser returns the user whose username and password both match exactly.
		FindUser(ctx context.Context, username, password string) (core.User, bool, error)
	}

	// MemberDirectory is the member table, in its natural row order.
	MemberDirectory interface {
		ListMembers(ctx context.Context) ([]core.Member, error)
		GetMember(ctx context.Context, id string) (core.Member, bool, error)
		// AddMember appends a member; it fails with core.ErrMemberExists on a duplicate id.
		AddMember(ctx context.Context, m core.Member) error
		// UpdateMember replaces every field but the id; core.ErrMemberNotFound if absent.
		UpdateMember(ctx context.Context, m core.Member) error
		SumCarryForward(ctx context.Context) (core.Money, error)
	}

	// DepositStore is the deposit table. Period comparisons are made on
	// normalized keys so "1/2024" and "01/2024" address the same row.
	DepositStore interface {
		// ListDeposits returns rows in stored order with the period exactly as stored.
		ListDeposits(ctx context.Context) ([]core.Deposit, error)
		FindDeposit(ctx context.Context, memberID string, period core.PeriodKey) (core.Deposit, bool, error)
		// AppendDeposit may fail with core.ErrAlreadyDeposited when the
		// backend enforces uniqueness itself.
		AppendDeposit(ctx context.Context, d core.Deposit) error
		// DeleteDeposit removes one matching row; core.ErrDepositNotFound if none.
		DeleteDeposit(ctx context.Context, memberID string, period core.PeriodKey) error
	}

	// Pinger reports whether the backend is reachable.
	Pinger interface {
		Ping(ctx context.Context) error
	}

	// Store is the full record store used by the API server.
	Store interface {
		UserReader
		MemberDirectory
		DepositStore
		Pinger
	}
)

// SamePeriod reports whether two stored or requested periods name the same month.
func SamePeriod(a, b core.PeriodKey) bool {
	return core.NormalizePeriod(a) == core.NormalizePeriod(b)
}
