// Package notify delivers payout instructions for completed withdrawals to
// the payment gateway webhook, as background jobs with retry.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
)

type PayoutJobArgs struct {
	WithdrawalID  uuid.UUID `json:"withdrawal_id"`
	WorkerID      uuid.UUID `json:"worker_id"`
	Coins         int       `json:"coins"`
	USDCents      int       `json:"usd_cents"`
	PaymentSystem string    `json:"payment_system"`
	AccountNumber string    `json:"account_number"`
}

func (PayoutJobArgs) Kind() string { return "withdrawal_payout" }

type PayoutWorker struct {
	river.WorkerDefaults[PayoutJobArgs]
	webhookURL string
	httpClient *http.Client
}

func NewPayoutWorker(webhookURL string) *PayoutWorker {
	return &PayoutWorker{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Work posts the payout instruction to the gateway webhook. The coins are
// already debited by the time this runs, so any failure is returned to the
// queue for retry rather than swallowed.
func (w *PayoutWorker) Work(ctx context.Context, job *river.Job[PayoutJobArgs]) error {
	body, err := json.Marshal(job.Args)
	if err != nil {
		return fmt.Errorf("marshal payout: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("network error calling payout webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("payout webhook returned status %d for withdrawal %s", resp.StatusCode, job.Args.WithdrawalID)
	}
	return nil
}
