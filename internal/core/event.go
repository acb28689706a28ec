package core

import "time"

// DepositEventKind tells what happened to a deposit row.
type DepositEventKind string

const (
	DepositRecorded DepositEventKind = "deposit.recorded"
	DepositUndone   DepositEventKind = "deposit.undone"
)

// DepositEvent is emitted after a deposit is recorded or undone.
type DepositEvent struct {
	Kind       DepositEventKind
	MemberID   string
	Period     PeriodKey
	Amount     int
	Username   string
	OccurredAt time.Time
}

// Deposit returns the deposit row the event refers to.
func (e DepositEvent) Deposit() Deposit {
	return Deposit{MemberID: e.MemberID, Period: e.Period, Amount: e.Amount}
}
