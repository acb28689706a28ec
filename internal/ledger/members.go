package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/krizad/baht-saving-project/internal/core"
)

// MemberProfile is a member with the ages derived from their dates.
type MemberProfile struct {
	core.Member
	Age       *int `json:"age"`
	MemberAge *int `json:"memberAge"` // whole years since registration
}

func (l *Ledger) GetMember(ctx context.Context, id string) (MemberProfile, error) {
	m, found, err := l.store.GetMember(ctx, strings.TrimSpace(id))
	if err != nil {
		return MemberProfile{}, fmt.Errorf("get member: %w", err)
	}
	if !found {
		return MemberProfile{}, core.ErrMemberNotFound
	}

	now := l.now()
	p := MemberProfile{Member: m}
	if age, ok := core.AgeOf(m.DOB, now); ok {
		p.Age = &age
	}
	if tenure, ok := core.AgeOf(m.RegDate, now); ok {
		p.MemberAge = &tenure
	}
	return p, nil
}

func (l *Ledger) AddMember(ctx context.Context, m core.Member) error {
	m.ID = strings.TrimSpace(m.ID)
	if err := m.Validate(); err != nil {
		return err
	}
	if err := l.store.AddMember(ctx, m); err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	return nil
}

// UpdateMember replaces every field of the member but its id.
func (l *Ledger) UpdateMember(ctx context.Context, m core.Member) error {
	m.ID = strings.TrimSpace(m.ID)
	if err := m.Validate(); err != nil {
		return err
	}
	if err := l.store.UpdateMember(ctx, m); err != nil {
		return fmt.Errorf("update member: %w", err)
	}
	return nil
}
