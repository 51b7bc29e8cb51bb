package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSyncTransaction pushes one committed sale to the cloud.
	TaskTypeSyncTransaction = "sync:transaction"
	// TaskTypeSyncExpense pushes one expense to the cloud.
	TaskTypeSyncExpense = "sync:expense"
	// TaskTypeSyncSweep re-enqueues anything still unsynced. Scheduled via
	// cron so a sale whose enqueue failed is eventually picked up.
	TaskTypeSyncSweep = "sync:sweep"
)

// SyncTransactionPayload identifies the sale to push.
type SyncTransactionPayload struct {
	TransactionID string `json:"transaction_id"`
}

// SyncExpensePayload identifies the expense to push.
type SyncExpensePayload struct {
	ExpenseID int64 `json:"expense_id"`
}

// NewSyncTransactionTask constructs an Asynq task.
func NewSyncTransactionTask(txID string) (*asynq.Task, error) {
	data, err := json.Marshal(SyncTransactionPayload{TransactionID: txID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSyncTransaction, data), nil
}

// NewSyncExpenseTask constructs an Asynq task.
func NewSyncExpenseTask(id int64) (*asynq.Task, error) {
	data, err := json.Marshal(SyncExpensePayload{ExpenseID: id})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSyncExpense, data), nil
}

// NewSyncSweepTask constructs the sweep task.
func NewSyncSweepTask() *asynq.Task {
	return asynq.NewTask(TaskTypeSyncSweep, nil)
}
