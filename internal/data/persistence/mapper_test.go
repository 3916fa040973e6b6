package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tablecraft/tablecraft-backend/internal/domain/aggregates"
	"github.com/tablecraft/tablecraft-backend/internal/pkg/dbctx"
)

func TestReconcileChildrenRunsEveryTask(t *testing.T) {
	out := make([]int, 3)
	var tasks []ChildTask
	for i := range out {
		i := i
		tasks = append(tasks, func(ctx context.Context, stx *SerialTx) error {
			out[i] = i + 1
			return nil
		})
	}

	dbc := dbctx.Context{Ctx: context.Background()}
	if err := ReconcileChildren(dbc, time.Second, tasks); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	for i, v := range out {
		if v != i+1 {
			t.Fatalf("task %d did not run", i)
		}
	}
}

func TestReconcileChildrenNoTasks(t *testing.T) {
	dbc := dbctx.Context{Ctx: context.Background()}
	if err := ReconcileChildren(dbc, time.Second, nil); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
}

func TestReconcileChildrenTimeoutIsDistinctFromMapping(t *testing.T) {
	tasks := []ChildTask{
		func(ctx context.Context, stx *SerialTx) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
				return nil
			}
		},
	}

	dbc := dbctx.Context{Ctx: context.Background()}
	err := ReconcileChildren(dbc, 20*time.Millisecond, tasks)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !aggregates.IsCode(err, aggregates.CodeReconciliationTimeout) {
		t.Fatalf("expected reconciliation_timeout, got %v", err)
	}
	if aggregates.IsCode(err, aggregates.CodeMapping) {
		t.Fatal("timeout must not surface as mapping")
	}
}

func TestReconcileChildrenWrapsPlainErrors(t *testing.T) {
	boom := errors.New("bad child")
	tasks := []ChildTask{
		func(ctx context.Context, stx *SerialTx) error { return boom },
	}

	dbc := dbctx.Context{Ctx: context.Background()}
	err := ReconcileChildren(dbc, time.Second, tasks)
	if !aggregates.IsCode(err, aggregates.CodeMapping) {
		t.Fatalf("expected mapping error, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("cause not preserved: %v", err)
	}
}

func TestReconcileChildrenPassesDomainErrorsThrough(t *testing.T) {
	tasks := []ChildTask{
		func(ctx context.Context, stx *SerialTx) error {
			return aggregates.NewError(aggregates.CodeValidation, "test.child", "invalid child", nil)
		},
	}

	dbc := dbctx.Context{Ctx: context.Background()}
	err := ReconcileChildren(dbc, time.Second, tasks)
	if !aggregates.IsCode(err, aggregates.CodeValidation) {
		t.Fatalf("expected validation code preserved, got %v", err)
	}
}

func TestReconcileChildrenFirstFailureCancelsRest(t *testing.T) {
	boom := errors.New("first failure")
	sawCancel := make(chan struct{}, 1)
	tasks := []ChildTask{
		func(ctx context.Context, stx *SerialTx) error { return boom },
		func(ctx context.Context, stx *SerialTx) error {
			select {
			case <-ctx.Done():
				sawCancel <- struct{}{}
				return ctx.Err()
			case <-time.After(2 * time.Second):
				return nil
			}
		},
	}

	dbc := dbctx.Context{Ctx: context.Background()}
	err := ReconcileChildren(dbc, 5*time.Second, tasks)
	if err == nil {
		t.Fatal("expected error")
	}
	select {
	case <-sawCancel:
	default:
		// The slow task may have been skipped entirely if the group context
		// was already cancelled before it started; both outcomes are fine.
	}
	if !errors.Is(err, boom) && !errors.Is(err, context.Canceled) {
		t.Fatalf("unexpected error: %v", err)
	}
}
