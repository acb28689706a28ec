package google

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/krizad/baht-saving-project/internal/core"
	ports "github.com/krizad/baht-saving-project/internal/sheets"
)

// Row 0 of every tab is a header and is never treated as data.

// parseUsers keeps credential cells byte for byte; login compares them exactly.
func parseUsers(values [][]interface{}) []core.User {
	var out []core.User
	for i := 1; i < len(values); i++ {
		row := values[i]
		out = append(out, core.User{
			Username: cellString(row, 0),
			Password: cellString(row, 1),
			Name:     strings.TrimSpace(cellString(row, 2)),
			Surname:  strings.TrimSpace(cellString(row, 3)),
		})
	}
	return out
}

func parseMembers(ctx context.Context, values [][]interface{}) []core.Member {
	var out []core.Member
	for i := 1; i < len(values); i++ {
		row := toStrings(values[i])
		if strings.TrimSpace(strings.Join(row, "")) == "" {
			continue
		}
		out = append(out, memberFromValues(ctx, values[i]))
	}
	return out
}

// memberFromValues maps a member row. A carry cell that is not a number is
// counted as zero, the same way the legacy summary skipped it.
func memberFromValues(ctx context.Context, raw []interface{}) core.Member {
	row := toStrings(raw)
	m, err := ports.MemberFromRow(row)
	if err != nil {
		slog.WarnContext(ctx, "Member carry-forward is not numeric, counting as zero",
			"member_id", safeGet(row, 0), "carry", safeGet(row, 6))
		row[6] = ""
		m, _ = ports.MemberFromRow(row)
	}
	return m
}

func parseDeposits(values [][]interface{}) []core.Deposit {
	var out []core.Deposit
	for i := 1; i < len(values); i++ {
		row := toStrings(values[i])
		if safeGet(row, 0) == "" && safeGet(row, 1) == "" {
			continue
		}
		out = append(out, depositFromValues(values[i]))
	}
	return out
}

func depositFromValues(raw []interface{}) core.Deposit {
	row := toStrings(raw)
	amount, _ := parseAmount(safeGet(row, 2))
	return core.Deposit{
		MemberID: safeGet(row, 0),
		Period:   core.PeriodKey(safeGet(row, 1)),
		Amount:   amount,
	}
}

// findMemberRow returns the values index of the member row, or -1.
func findMemberRow(values [][]interface{}, id string) int {
	for i := 1; i < len(values); i++ {
		row := toStrings(values[i])
		if safeGet(row, 0) == id {
			return i
		}
	}
	return -1
}

// findDepositRow returns the values index of the first deposit row for the
// member whose normalized period equals period, or -1.
func findDepositRow(values [][]interface{}, memberID string, period core.PeriodKey) int {
	want := core.NormalizePeriod(period)
	for i := 1; i < len(values); i++ {
		row := toStrings(values[i])
		if safeGet(row, 0) == memberID && core.NormalizePeriod(safeGet(row, 1)) == want {
			return i
		}
	}
	return -1
}

func parseAmount(s string) (int, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return int(f), true
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i := range in {
		out[i] = strings.TrimSpace(cellString(in, i))
	}
	return out
}

// cellString renders an unformatted cell. Numbers come back as float64 and
// are written in plain decimal so 1500 never turns into "1.5e+03".
func cellString(row []interface{}, idx int) string {
	if idx < 0 || idx >= len(row) || row[idx] == nil {
		return ""
	}
	switch v := row[idx].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
