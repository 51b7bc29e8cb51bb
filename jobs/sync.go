package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/ruko-pos/ruko-pos/internal/checkout"
	"github.com/ruko-pos/ruko-pos/internal/expense"
)

// TransactionStore is the slice of the sales repository the sync jobs need.
type TransactionStore interface {
	GetTransaction(ctx context.Context, id string) (*checkout.Transaction, error)
	MarkSynced(ctx context.Context, id string) error
	ListUnsyncedIDs(ctx context.Context, limit int) ([]string, error)
}

// ExpenseStore is the slice of the expense repository the sync jobs need.
type ExpenseStore interface {
	Get(ctx context.Context, id int64) (*expense.Expense, error)
	MarkSynced(ctx context.Context, id int64) error
}

// TransactionSyncJob retries the cloud push for a sale that missed its
// inline window. Asynq's retry policy backs off between attempts.
type TransactionSyncJob struct {
	store  TransactionStore
	cloud  *CloudClient
	logger *slog.Logger
}

// NewTransactionSyncJob builds the job.
func NewTransactionSyncJob(store TransactionStore, cloud *CloudClient, logger *slog.Logger) *TransactionSyncJob {
	return &TransactionSyncJob{store: store, cloud: cloud, logger: logger}
}

// Handle processes TaskTypeSyncTransaction tasks.
func (j *TransactionSyncJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload SyncTransactionPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	tx, err := j.store.GetTransaction(ctx, payload.TransactionID)
	if err != nil {
		if errors.Is(err, checkout.ErrNotFound) {
			j.logger.Warn("sync target gone", slog.String("transaction", payload.TransactionID))
			return asynq.SkipRetry
		}
		return err
	}
	if tx.Synced {
		return nil
	}
	if err := j.cloud.PushTransaction(ctx, tx); err != nil {
		return err
	}
	if err := j.store.MarkSynced(ctx, tx.ID); err != nil {
		return err
	}
	j.logger.Info("transaction synced", slog.String("transaction", tx.ID))
	return nil
}

// ExpenseSyncJob pushes a queued expense to the cloud.
type ExpenseSyncJob struct {
	store  ExpenseStore
	cloud  *CloudClient
	logger *slog.Logger
}

// NewExpenseSyncJob builds the job.
func NewExpenseSyncJob(store ExpenseStore, cloud *CloudClient, logger *slog.Logger) *ExpenseSyncJob {
	return &ExpenseSyncJob{store: store, cloud: cloud, logger: logger}
}

// Handle processes TaskTypeSyncExpense tasks.
func (j *ExpenseSyncJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload SyncExpensePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	e, err := j.store.Get(ctx, payload.ExpenseID)
	if err != nil {
		if errors.Is(err, expense.ErrNotFound) {
			return asynq.SkipRetry
		}
		return err
	}
	if e.Synced {
		return nil
	}
	if err := j.cloud.PushExpense(ctx, e); err != nil {
		return err
	}
	return j.store.MarkSynced(ctx, e.ID)
}

// sweepBatchSize bounds one sweep pass so a long outage drains gradually.
const sweepBatchSize = 200

// SyncSweepJob re-enqueues unsynced sales. It is the safety net for the
// case where the commit path could neither push nor enqueue.
type SyncSweepJob struct {
	store  TransactionStore
	client *Client
	logger *slog.Logger
}

// NewSyncSweepJob builds the job.
func NewSyncSweepJob(store TransactionStore, client *Client, logger *slog.Logger) *SyncSweepJob {
	return &SyncSweepJob{store: store, client: client, logger: logger}
}

// Handle processes TaskTypeSyncSweep tasks.
func (j *SyncSweepJob) Handle(ctx context.Context, _ *asynq.Task) error {
	ids, err := j.store.ListUnsyncedIDs(ctx, sweepBatchSize)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := j.client.EnqueueSyncTransaction(ctx, id); err != nil {
			return err
		}
	}
	if len(ids) > 0 {
		j.logger.Info("sync sweep enqueued", slog.Int("count", len(ids)))
	}
	return nil
}
