// Package worker mirrors deposit events into a secondary record store,
// usually the legacy spreadsheet, so it stays readable by the old tools.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/krizad/baht-saving-project/internal/amqp"
	"github.com/krizad/baht-saving-project/internal/core"
	ports "github.com/krizad/baht-saving-project/internal/sheets"
)

// MirrorWorker applies deposit events to a target deposit table.
// Applying the same event twice leaves the target unchanged.
type MirrorWorker struct {
	target ports.DepositStore
}

func NewMirrorWorker(target ports.DepositStore) *MirrorWorker {
	return &MirrorWorker{target: target}
}

// HandleMessage is an amqp.DepositEventHandler.
func (w *MirrorWorker) HandleMessage(ctx context.Context, msg *amqp.DepositEventMessage) error {
	return w.Apply(ctx, msg.ToEvent())
}

func (w *MirrorWorker) Apply(ctx context.Context, e core.DepositEvent) error {
	switch e.Kind {
	case core.DepositRecorded:
		return w.record(ctx, e)
	case core.DepositUndone:
		return w.undo(ctx, e)
	default:
		return fmt.Errorf("unknown event kind %q", e.Kind)
	}
}

func (w *MirrorWorker) record(ctx context.Context, e core.DepositEvent) error {
	_, found, err := w.target.FindDeposit(ctx, e.MemberID, e.Period)
	if err != nil {
		return fmt.Errorf("find mirrored deposit: %w", err)
	}
	if found {
		slog.InfoContext(ctx, "Deposit already mirrored",
			"member_id", e.MemberID,
			"period", e.Period)
		return nil
	}

	err = w.target.AppendDeposit(ctx, e.Deposit())
	if err != nil && !errors.Is(err, core.ErrAlreadyDeposited) {
		return fmt.Errorf("append mirrored deposit: %w", err)
	}

	slog.InfoContext(ctx, "Deposit mirrored",
		"member_id", e.MemberID,
		"period", e.Period,
		"amount", e.Amount,
		"by", e.Username)
	return nil
}

func (w *MirrorWorker) undo(ctx context.Context, e core.DepositEvent) error {
	err := w.target.DeleteDeposit(ctx, e.MemberID, e.Period)
	if errors.Is(err, core.ErrDepositNotFound) {
		slog.InfoContext(ctx, "Mirrored deposit already gone",
			"member_id", e.MemberID,
			"period", e.Period)
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete mirrored deposit: %w", err)
	}

	slog.InfoContext(ctx, "Mirrored deposit removed",
		"member_id", e.MemberID,
		"period", e.Period,
		"by", e.Username)
	return nil
}

// Reconcile copies every source deposit missing from the target. It covers
// events lost while the worker was down.
func (w *MirrorWorker) Reconcile(ctx context.Context, source ports.DepositStore) (int, error) {
	deposits, err := source.ListDeposits(ctx)
	if err != nil {
		return 0, fmt.Errorf("list source deposits: %w", err)
	}

	copied := 0
	for _, d := range deposits {
		_, found, err := w.target.FindDeposit(ctx, d.MemberID, d.Period)
		if err != nil {
			return copied, fmt.Errorf("find mirrored deposit: %w", err)
		}
		if found {
			continue
		}
		if err := w.target.AppendDeposit(ctx, d); err != nil && !errors.Is(err, core.ErrAlreadyDeposited) {
			return copied, fmt.Errorf("append mirrored deposit: %w", err)
		}
		copied++
	}

	slog.InfoContext(ctx, "Reconcile completed",
		"source_rows", len(deposits),
		"copied", copied)
	return copied, nil
}
