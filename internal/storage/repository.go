package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/krizad/baht-saving-project/internal/core"
	ports "github.com/krizad/baht-saving-project/internal/sheets"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

type SQLiteRepository struct {
	db *sql.DB
}

// Ensure interface conformance
var _ ports.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; SQLite would otherwise answer SQLITE_BUSY under load
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Seed inserts seed users and members, skipping rows whose key already exists.
func (r *SQLiteRepository) Seed(ctx context.Context, seed ports.Seed) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer tx.Rollback()

	for _, u := range seed.Users {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO users (username, password, name, surname) VALUES (?, ?, ?, ?)`,
			u.Username, u.Password, u.Name, u.Surname); err != nil {
			return fmt.Errorf("seed user %s: %w", u.Username, err)
		}
	}
	for _, m := range seed.Members {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO members (id, moo, name, dob, regdate, status, carry_satang, note)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			m.ID, m.Moo, m.Name, m.DOB, m.RegDate, m.Status, m.Carry.Satang, m.Note); err != nil {
			return fmt.Errorf("seed member %s: %w", m.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed: %w", err)
	}

	slog.InfoContext(ctx, "Seed data loaded into SQLite",
		"users", len(seed.Users),
		"members", len(seed.Members))
	return nil
}

func (r *SQLiteRepository) FindUser(ctx context.Context, username, password string) (core.User, bool, error) {
	var u core.User
	err := r.db.QueryRowContext(ctx,
		`SELECT username, password, name, surname FROM users WHERE username = ? AND password = ?`,
		username, password).Scan(&u.Username, &u.Password, &u.Name, &u.Surname)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, false, nil
	}
	if err != nil {
		return core.User{}, false, fmt.Errorf("find user: %w", err)
	}
	return u, true, nil
}

const memberColumns = `id, moo, name, dob, regdate, status, carry_satang, note`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMember(s rowScanner) (core.Member, error) {
	var m core.Member
	err := s.Scan(&m.ID, &m.Moo, &m.Name, &m.DOB, &m.RegDate, &m.Status, &m.Carry.Satang, &m.Note)
	return m, err
}

func (r *SQLiteRepository) ListMembers(ctx context.Context) ([]core.Member, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+memberColumns+` FROM members ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var out []core.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetMember(ctx context.Context, id string) (core.Member, bool, error) {
	m, err := scanMember(r.db.QueryRowContext(ctx, `SELECT `+memberColumns+` FROM members WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Member{}, false, nil
	}
	if err != nil {
		return core.Member{}, false, fmt.Errorf("get member %s: %w", id, err)
	}
	return m, true, nil
}

func (r *SQLiteRepository) AddMember(ctx context.Context, m core.Member) error {
	if err := m.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO members (id, moo, name, dob, regdate, status, carry_satang, note)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Moo, m.Name, m.DOB, m.RegDate, m.Status, m.Carry.Satang, m.Note)
	if isUniqueViolation(err) {
		return fmt.Errorf("member %s: %w", m.ID, core.ErrMemberExists)
	}
	if err != nil {
		return fmt.Errorf("insert member: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) UpdateMember(ctx context.Context, m core.Member) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE members SET moo = ?, name = ?, dob = ?, regdate = ?, status = ?, carry_satang = ?, note = ?
		 WHERE id = ?`,
		m.Moo, m.Name, m.DOB, m.RegDate, m.Status, m.Carry.Satang, m.Note, m.ID)
	if err != nil {
		return fmt.Errorf("update member: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("member %s: %w", m.ID, core.ErrMemberNotFound)
	}
	return nil
}

func (r *SQLiteRepository) SumCarryForward(ctx context.Context) (core.Money, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(carry_satang), 0) FROM members`).Scan(&total); err != nil {
		return core.Money{}, fmt.Errorf("sum carry-forward: %w", err)
	}
	return core.Money{Satang: total}, nil
}

func (r *SQLiteRepository) ListDeposits(ctx context.Context) ([]core.Deposit, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT member_id, period, amount FROM deposits ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list deposits: %w", err)
	}
	defer rows.Close()

	var out []core.Deposit
	for rows.Next() {
		var d core.Deposit
		var period string
		if err := rows.Scan(&d.MemberID, &period, &d.Amount); err != nil {
			return nil, fmt.Errorf("scan deposit: %w", err)
		}
		d.Period = core.PeriodKey(period)
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) FindDeposit(ctx context.Context, memberID string, period core.PeriodKey) (core.Deposit, bool, error) {
	var d core.Deposit
	var stored string
	err := r.db.QueryRowContext(ctx,
		`SELECT member_id, period, amount FROM deposits WHERE member_id = ? AND period = ? ORDER BY seq LIMIT 1`,
		memberID, core.NormalizePeriod(period).String()).Scan(&d.MemberID, &stored, &d.Amount)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Deposit{}, false, nil
	}
	if err != nil {
		return core.Deposit{}, false, fmt.Errorf("find deposit: %w", err)
	}
	d.Period = core.PeriodKey(stored)
	return d, true, nil
}

// AppendDeposit stores the canonical period so the unique index covers
// every spelling of the same month.
func (r *SQLiteRepository) AppendDeposit(ctx context.Context, d core.Deposit) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO deposits (member_id, period, amount) VALUES (?, ?, ?)`,
		d.MemberID, core.NormalizePeriod(d.Period).String(), d.Amount)
	if isUniqueViolation(err) {
		return fmt.Errorf("deposit %s %s: %w", d.MemberID, d.Period, core.ErrAlreadyDeposited)
	}
	if err != nil {
		return fmt.Errorf("insert deposit: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteDeposit(ctx context.Context, memberID string, period core.PeriodKey) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM deposits WHERE seq = (
			SELECT seq FROM deposits WHERE member_id = ? AND period = ? ORDER BY seq LIMIT 1
		)`,
		memberID, core.NormalizePeriod(period).String())
	if err != nil {
		return fmt.Errorf("delete deposit: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete deposit: %w", err)
	}
	if n == 0 {
		return core.ErrDepositNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
