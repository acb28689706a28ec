package http

import (
	"context"
	"fmt"

	"github.com/krizad/baht-saving-project/internal/core"
	applog "github.com/krizad/baht-saving-project/internal/log"
)

// Messages shown by successful write actions.
const (
	msgDeposited     = "ฝากเงินสำเร็จ"
	msgDepositUndone = "ยกเลิกรายการฝากเงินสำเร็จ"
	msgMemberAdded   = "เพิ่มสมาชิกสำเร็จ"
	msgMemberSaved   = "บันทึกข้อมูลสำเร็จ"
)

func (s *Server) registerActions() {
	s.actions = map[string]action{
		"login":         {public: true, run: s.login},
		"get_members":   {run: s.getMembers},
		"get_member":    {run: s.getMember},
		"add_member":    {run: s.addMember},
		"update_member": {run: s.updateMember},
		"get_deposits":  {run: s.getDeposits},
		"deposit":       {run: s.deposit},
		"undo_deposit":  {run: s.undoDeposit},
		"summary":       {run: s.summary},
	}
}

func (s *Server) login(ctx context.Context, p Params) (*APIResponse, error) {
	ip := clientIPFrom(ctx)
	if s.limiter != nil && !s.limiter.allow(ip) {
		s.metrics.RecordLoginThrottled()
		applog.FromContext(ctx).WarnContext(ctx, "Login rate limit exceeded", applog.FieldClientIP, ip)
		return nil, errLoginThrottled
	}

	l, err := s.sessions.Login(ctx, p.Get("username"), p.Get("password"))
	if err != nil {
		return nil, err
	}
	return NewAPIResponse().
		Set("name", l.Name).
		Set("surname", l.Surname).
		Set("sessionId", l.Token), nil
}

func (s *Server) getMembers(ctx context.Context, p Params) (*APIResponse, error) {
	members, err := s.ledger.SearchMembers(ctx, p.Get("search"))
	if err != nil {
		return nil, err
	}
	if members == nil {
		members = []core.Member{}
	}
	return NewAPIResponse().Set("members", members), nil
}

func (s *Server) getMember(ctx context.Context, p Params) (*APIResponse, error) {
	m, err := s.ledger.GetMember(ctx, p.Get("id"))
	if err != nil {
		return nil, err
	}
	return NewAPIResponse().Set("member", m), nil
}

func (s *Server) addMember(ctx context.Context, p Params) (*APIResponse, error) {
	m, err := memberFromParams(p)
	if err != nil {
		return nil, err
	}
	if err := s.ledger.AddMember(ctx, m); err != nil {
		return nil, err
	}
	return NewAPIResponse().Message(msgMemberAdded), nil
}

func (s *Server) updateMember(ctx context.Context, p Params) (*APIResponse, error) {
	m, err := memberFromParams(p)
	if err != nil {
		return nil, err
	}
	if err := s.ledger.UpdateMember(ctx, m); err != nil {
		return nil, err
	}
	return NewAPIResponse().Message(msgMemberSaved), nil
}

func (s *Server) getDeposits(ctx context.Context, p Params) (*APIResponse, error) {
	members, err := s.ledger.ListWithStatus(ctx, p.Get("monthYear"))
	if err != nil {
		return nil, err
	}
	if members == nil {
		members = []core.MemberStatus{}
	}
	return NewAPIResponse().Set("members", members), nil
}

func (s *Server) deposit(ctx context.Context, p Params) (*APIResponse, error) {
	amount, err := s.ledger.Deposit(ctx, p.Get("id"), p.Get("monthYear"))
	if err != nil {
		return nil, err
	}
	s.metrics.RecordDeposit(amount)
	return NewAPIResponse().
		Message(msgDeposited).
		Set("amount", amount), nil
}

func (s *Server) undoDeposit(ctx context.Context, p Params) (*APIResponse, error) {
	if err := s.ledger.Undo(ctx, p.Get("id"), p.Get("monthYear")); err != nil {
		return nil, err
	}
	s.metrics.RecordUndo()
	return NewAPIResponse().Message(msgDepositUndone), nil
}

func (s *Server) summary(ctx context.Context, _ Params) (*APIResponse, error) {
	sum, err := s.ledger.Summary(ctx)
	if err != nil {
		return nil, err
	}
	entries := sum.Entries
	if entries == nil {
		entries = []core.SummaryEntry{}
	}
	return NewAPIResponse().
		Set("summary", entries).
		Set("total", sum.GrandTotal), nil
}

func memberFromParams(p Params) (core.Member, error) {
	carry, err := core.ParseBalance(p.Get("carry"))
	if err != nil {
		return core.Member{}, fmt.Errorf("%w: %q", core.ErrInvalidCarry, p.Get("carry"))
	}
	return core.Member{
		ID:      p.Get("id"),
		Moo:     p.Get("moo"),
		Name:    p.Get("name"),
		DOB:     p.Get("dob"),
		RegDate: p.Get("regdate"),
		Status:  p.Get("status"),
		Carry:   carry,
		Note:    p.Get("note"),
	}, nil
}
