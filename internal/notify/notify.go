// Package notify bridges approval-router events onto the background job
// queue. Delivery is best effort: a full queue never blocks an approval.
package notify

import (
	"context"
	"log/slog"

	"github.com/expensa-app/expensa/jobs"
)

// Notifier enqueues approval events for asynchronous delivery.
type Notifier struct {
	client *jobs.Client
	logger *slog.Logger
}

// NewNotifier constructs a Notifier.
func NewNotifier(client *jobs.Client, logger *slog.Logger) *Notifier {
	return &Notifier{client: client, logger: logger}
}

// ReportPending tells the approvers at the active order they have work.
func (n *Notifier) ReportPending(ctx context.Context, reportID int64, name string, approverIDs []int64) error {
	return n.enqueue(ctx, jobs.ApprovalNotifyPayload{
		Event:      jobs.EventReportPending,
		ReportID:   reportID,
		ReportName: name,
		UserIDs:    approverIDs,
	})
}

// ReportClosed tells the submitter their report completed the chain.
func (n *Notifier) ReportClosed(ctx context.Context, reportID int64, name string, submitterID int64) error {
	return n.enqueue(ctx, jobs.ApprovalNotifyPayload{
		Event:      jobs.EventReportClosed,
		ReportID:   reportID,
		ReportName: name,
		UserIDs:    []int64{submitterID},
	})
}

// ReportReturned tells the submitter their report was observed.
func (n *Notifier) ReportReturned(ctx context.Context, reportID int64, name string, submitterID int64, comment string) error {
	return n.enqueue(ctx, jobs.ApprovalNotifyPayload{
		Event:      jobs.EventReportReturned,
		ReportID:   reportID,
		ReportName: name,
		UserIDs:    []int64{submitterID},
		Comment:    comment,
	})
}

// ExpenseSentBack tells the expense owner a correction is needed.
func (n *Notifier) ExpenseSentBack(ctx context.Context, expenseID, ownerID int64, comment string) error {
	return n.enqueue(ctx, jobs.ApprovalNotifyPayload{
		Event:     jobs.EventExpenseReview,
		ExpenseID: expenseID,
		UserIDs:   []int64{ownerID},
		Comment:   comment,
	})
}

func (n *Notifier) enqueue(ctx context.Context, payload jobs.ApprovalNotifyPayload) error {
	if n == nil || n.client == nil {
		return nil
	}
	if _, err := n.client.EnqueueApprovalNotify(ctx, payload); err != nil {
		n.logger.Warn("notify enqueue", slog.Any("error", err), slog.String("event", payload.Event))
		return err
	}
	return nil
}
