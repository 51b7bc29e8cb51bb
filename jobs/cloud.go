package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ruko-pos/ruko-pos/internal/checkout"
	"github.com/ruko-pos/ruko-pos/internal/expense"
)

// CloudClient posts store data to the cloud sync endpoint.
type CloudClient struct {
	baseURL string
	http    *http.Client
}

// NewCloudClient constructs a client for the sync endpoint.
func NewCloudClient(baseURL string) *CloudClient {
	return &CloudClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// PushTransaction uploads one committed sale.
func (c *CloudClient) PushTransaction(ctx context.Context, tx *checkout.Transaction) error {
	return c.post(ctx, "/api/transactions", tx)
}

// PushExpense uploads one expense.
func (c *CloudClient) PushExpense(ctx context.Context, e *expense.Expense) error {
	return c.post(ctx, "/api/expenses", e)
}

func (c *CloudClient) post(ctx context.Context, path string, body any) error {
	if c.baseURL == "" {
		return fmt.Errorf("jobs: sync endpoint not configured")
	}
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("jobs: sync endpoint returned %s", resp.Status)
	}
	return nil
}

// SyncGateway is the synchronous-push plus queued-retry pair handed to the
// checkout and expense services.
type SyncGateway struct {
	cloud  *CloudClient
	client *Client
}

// NewSyncGateway builds SyncGateway.
func NewSyncGateway(cloud *CloudClient, client *Client) *SyncGateway {
	return &SyncGateway{cloud: cloud, client: client}
}

// Push uploads the sale inline, bounded by the caller's context.
func (g *SyncGateway) Push(ctx context.Context, tx *checkout.Transaction) error {
	return g.cloud.PushTransaction(ctx, tx)
}

// Enqueue schedules a background retry for the sale.
func (g *SyncGateway) Enqueue(ctx context.Context, txID string) error {
	return g.client.EnqueueSyncTransaction(ctx, txID)
}

// EnqueueExpense schedules a background push for an expense.
func (g *SyncGateway) EnqueueExpense(ctx context.Context, id int64) error {
	return g.client.EnqueueSyncExpense(ctx, id)
}
