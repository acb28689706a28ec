package core

import (
	"errors"
	"fmt"
	"strings"
)

// CarryForwardLabel is the label of the first summary entry, the total of the
// balances members brought into the program.
const CarryForwardLabel = "ยอดยกมา"

type (
	// Member is one row of the member directory.
	Member struct {
		ID      string `json:"id"`
		Moo     string `json:"moo"` // village subgroup
		Name    string `json:"name"`
		DOB     string `json:"dob"`
		RegDate string `json:"regdate"`
		Status  string `json:"status"`
		Carry   Money  `json:"carry"`
		Note    string `json:"note"`
	}

	// User is a row of the credential table.
	User struct {
		Username string
		Password string
		Name     string
		Surname  string
	}

	// Deposit is one month paid by one member.
	Deposit struct {
		MemberID string
		Period   PeriodKey
		Amount   int // baht, one per day of the period
	}

	// MemberStatus pairs a member with whether they paid the requested month.
	MemberStatus struct {
		Member
		Deposited bool `json:"deposited"`
	}

	// SummaryEntry is a labelled total of the ledger summary.
	SummaryEntry struct {
		MonthYear string `json:"monthYear"`
		Total     Money  `json:"total"`
	}

	// Summary is the full ledger aggregation.
	Summary struct {
		Entries    []SummaryEntry
		GrandTotal Money
	}
)

// Outcome errors. Their text is what the API shows to the user.
var (
	ErrAuthFailed       = errors.New("ชื่อผู้ใช้หรือรหัสผ่านไม่ถูกต้อง")
	ErrUnauthorized     = errors.New("Unauthorized")
	ErrSessionRequired  = fmt.Errorf("%w: sessionId required", ErrUnauthorized)
	ErrInvalidSession   = fmt.Errorf("%w: invalid session", ErrUnauthorized)
	ErrMemberNotFound   = errors.New("ไม่พบสมาชิก")
	ErrMemberExists     = errors.New("มีรหัสสมาชิกนี้แล้ว")
	ErrDepositNotFound  = errors.New("ไม่พบรายการฝากเงินนี้")
	ErrAlreadyDeposited = errors.New("ฝากเงินแล้ว")
	ErrEmptyMemberID    = errors.New("member id is required")
	ErrEmptyPeriod      = errors.New("monthYear is required")
	ErrInvalidCarry     = errors.New("invalid carry-forward balance")
)

var userFacing = []error{
	ErrSessionRequired,
	ErrInvalidSession,
	ErrUnauthorized,
	ErrAuthFailed,
	ErrMemberNotFound,
	ErrMemberExists,
	ErrDepositNotFound,
	ErrAlreadyDeposited,
	ErrEmptyMemberID,
	ErrEmptyPeriod,
	ErrInvalidCarry,
}

// UserMessage returns the message shown for err. Known outcomes map to their
// own text even when wrapped; anything else is reported verbatim.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	for _, known := range userFacing {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return err.Error()
}

// IsExpected reports whether err is a normal negative outcome rather than a
// failure of the system.
func IsExpected(err error) bool {
	for _, known := range userFacing {
		if errors.Is(err, known) {
			return true
		}
	}
	return false
}

// Validate checks the fields a member row cannot do without.
func (m Member) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return ErrEmptyMemberID
	}
	return nil
}

// Matches reports whether the member's id or name contains search,
// ignoring case. An empty search matches everyone.
func (m Member) Matches(search string) bool {
	search = strings.ToLower(strings.TrimSpace(search))
	if search == "" {
		return true
	}
	return strings.Contains(strings.ToLower(m.ID), search) ||
		strings.Contains(strings.ToLower(m.Name), search)
}
