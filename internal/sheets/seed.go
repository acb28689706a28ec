package sheets

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/krizad/baht-saving-project/internal/core"
)

// Seed file names looked up in a seed directory.
const (
	SeedUsersFile   = "seed_users.csv"
	SeedMembersFile = "seed_members.csv"
)

// Seed holds initial rows for backends that start empty.
type Seed struct {
	Users   []core.User
	Members []core.Member
}

// LoadSeed reads the seed files in dir. Missing files yield empty tables.
// Rows use the column order of the legacy spreadsheet tabs; lines starting
// with '#' are comments.
func LoadSeed(dir string) (Seed, error) {
	var seed Seed
	userRows, err := readCSV(filepath.Join(dir, SeedUsersFile))
	if err != nil {
		return Seed{}, fmt.Errorf("read %s: %w", SeedUsersFile, err)
	}
	for _, row := range userRows {
		seed.Users = append(seed.Users, UserFromRow(row))
	}
	memberRows, err := readCSV(filepath.Join(dir, SeedMembersFile))
	if err != nil {
		return Seed{}, fmt.Errorf("read %s: %w", SeedMembersFile, err)
	}
	for i, row := range memberRows {
		m, err := MemberFromRow(row)
		if err != nil {
			return Seed{}, fmt.Errorf("%s row %d: %w", SeedMembersFile, i+1, err)
		}
		seed.Members = append(seed.Members, m)
	}
	return seed, nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comment = '#'
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	var out [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		if len(rec) == 0 || strings.TrimSpace(strings.Join(rec, "")) == "" {
			continue
		}
		out = append(out, rec)
	}
}

// UserFromRow maps a user tab row: username, password, name, surname.
func UserFromRow(row []string) core.User {
	return core.User{
		Username: cell(row, 0),
		Password: cell(row, 1),
		Name:     cell(row, 2),
		Surname:  cell(row, 3),
	}
}

// MemberFromRow maps a member tab row:
// id, moo, name, dob, regdate, status, carry, note.
func MemberFromRow(row []string) (core.Member, error) {
	carry, err := core.ParseBalance(cell(row, 6))
	if err != nil {
		return core.Member{}, fmt.Errorf("%w %q", core.ErrInvalidCarry, cell(row, 6))
	}
	return core.Member{
		ID:      cell(row, 0),
		Moo:     cell(row, 1),
		Name:    cell(row, 2),
		DOB:     cell(row, 3),
		RegDate: cell(row, 4),
		Status:  cell(row, 5),
		Carry:   carry,
		Note:    cell(row, 7),
	}, nil
}

// MemberRow is the inverse of MemberFromRow.
func MemberRow(m core.Member) []string {
	return []string{m.ID, m.Moo, m.Name, m.DOB, m.RegDate, m.Status, m.Carry.String(), m.Note}
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
