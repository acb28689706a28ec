package ledger

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/krizad/baht-saving-project/internal/core"
)

// Summary totals the carry-forward balances and every stored period.
// Periods are grouped by their stored text, in first-seen order.
func (l *Ledger) Summary(ctx context.Context) (core.Summary, error) {
	var (
		carry    core.Money
		deposits []core.Deposit
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if carry, err = l.store.SumCarryForward(gctx); err != nil {
			return fmt.Errorf("sum carry-forward: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if deposits, err = l.store.ListDeposits(gctx); err != nil {
			return fmt.Errorf("list deposits: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return core.Summary{}, err
	}

	entries := []core.SummaryEntry{{MonthYear: core.CarryForwardLabel, Total: carry}}
	index := make(map[core.PeriodKey]int)
	grand := carry
	for _, d := range deposits {
		amount := core.Baht(int64(d.Amount))
		i, ok := index[d.Period]
		if !ok {
			i = len(entries)
			index[d.Period] = i
			entries = append(entries, core.SummaryEntry{MonthYear: d.Period.String()})
		}
		entries[i].Total = entries[i].Total.Add(amount)
		grand = grand.Add(amount)
	}
	return core.Summary{Entries: entries, GrandTotal: grand}, nil
}
