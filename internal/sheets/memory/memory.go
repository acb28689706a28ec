package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/krizad/baht-saving-project/internal/core"
	ports "github.com/krizad/baht-saving-project/internal/sheets"
)

var _ ports.Store = (*Store)(nil)

// Store keeps the three tables in process memory. Row order is insertion order.
type Store struct {
	mu       sync.Mutex
	users    []core.User
	members  []core.Member
	deposits []core.Deposit
}

func New(users []core.User, members []core.Member) *Store {
	return &Store{
		users:   append([]core.User(nil), users...),
		members: append([]core.Member(nil), members...),
	}
}

// NewFromFiles seeds the store from the seed files in base.
func NewFromFiles(base string) (*Store, error) {
	seed, err := ports.LoadSeed(base)
	if err != nil {
		return nil, err
	}
	return New(seed.Users, seed.Members), nil
}

func (s *Store) FindUser(_ context.Context, username, password string) (core.User, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username && u.Password == password {
			return u, true, nil
		}
	}
	return core.User{}, false, nil
}

func (s *Store) ListMembers(_ context.Context) ([]core.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Member(nil), s.members...), nil
}

func (s *Store) GetMember(_ context.Context, id string) (core.Member, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.memberIndex(id); i >= 0 {
		return s.members[i], true, nil
	}
	return core.Member{}, false, nil
}

func (s *Store) AddMember(_ context.Context, m core.Member) error {
	if err := m.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.memberIndex(m.ID) >= 0 {
		return fmt.Errorf("member %s: %w", m.ID, core.ErrMemberExists)
	}
	s.members = append(s.members, m)
	return nil
}

func (s *Store) UpdateMember(_ context.Context, m core.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.memberIndex(m.ID)
	if i < 0 {
		return fmt.Errorf("member %s: %w", m.ID, core.ErrMemberNotFound)
	}
	s.members[i] = m
	return nil
}

func (s *Store) SumCarryForward(_ context.Context) (core.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total core.Money
	for _, m := range s.members {
		total = total.Add(m.Carry)
	}
	return total, nil
}

func (s *Store) ListDeposits(_ context.Context) ([]core.Deposit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Deposit(nil), s.deposits...), nil
}

func (s *Store) FindDeposit(_ context.Context, memberID string, period core.PeriodKey) (core.Deposit, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.depositIndex(memberID, period); i >= 0 {
		return s.deposits[i], true, nil
	}
	return core.Deposit{}, false, nil
}

func (s *Store) AppendDeposit(_ context.Context, d core.Deposit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deposits = append(s.deposits, d)
	return nil
}

func (s *Store) DeleteDeposit(_ context.Context, memberID string, period core.PeriodKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.depositIndex(memberID, period)
	if i < 0 {
		return core.ErrDepositNotFound
	}
	s.deposits = append(s.deposits[:i], s.deposits[i+1:]...)
	return nil
}

func (s *Store) Ping(_ context.Context) error { return nil }

func (s *Store) memberIndex(id string) int {
	for i, m := range s.members {
		if m.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) depositIndex(memberID string, period core.PeriodKey) int {
	for i, d := range s.deposits {
		if d.MemberID == memberID && ports.SamePeriod(d.Period, period) {
			return i
		}
	}
	return -1
}
