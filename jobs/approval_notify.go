package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/expensa-app/expensa/internal/jobs"
)

const (
	// TaskApprovalNotify delivers approval-flow events to the affected users.
	TaskApprovalNotify = "notify:approval"
)

// Approval events carried by TaskApprovalNotify.
const (
	EventReportPending  = "report_pending"
	EventReportClosed   = "report_closed"
	EventReportReturned = "report_returned"
	EventExpenseReview  = "expense_review"
)

// ApprovalNotifyPayload names the report or expense and the users to tell.
type ApprovalNotifyPayload struct {
	Event      string  `json:"event"`
	ReportID   int64   `json:"report_id,omitempty"`
	ReportName string  `json:"report_name,omitempty"`
	ExpenseID  int64   `json:"expense_id,omitempty"`
	UserIDs    []int64 `json:"user_ids"`
	Comment    string  `json:"comment,omitempty"`
}

// NewApprovalNotifyTask builds a notification task.
func NewApprovalNotifyTask(payload ApprovalNotifyPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskApprovalNotify, body, asynq.Queue(QueueDefault)), nil
}

// EmailDirectory resolves user ids to addresses for delivery.
type EmailDirectory interface {
	EmailsByIDs(ctx context.Context, ids []int64) (map[int64]string, error)
}

// NewApprovalNotifyHandler builds the handler that fans an approval event out
// into one send-email task per recipient.
func NewApprovalNotifyHandler(directory EmailDirectory, enqueuer *Client, logger *slog.Logger, metrics *jobmetrics.Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track("approval_notify")
		var payload ApprovalNotifyPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if len(payload.UserIDs) == 0 {
			return tracker.End(nil)
		}
		emails, err := directory.EmailsByIDs(ctx, payload.UserIDs)
		if err != nil {
			return tracker.End(err)
		}
		subject, body := renderApprovalEvent(payload)
		for _, id := range payload.UserIDs {
			addr, ok := emails[id]
			if !ok {
				logger.Warn("notify: no email for user", slog.Int64("user_id", id))
				continue
			}
			if _, err := enqueuer.EnqueueSendEmail(ctx, SendEmailPayload{To: addr, Subject: subject, Body: body}); err != nil {
				return tracker.End(err)
			}
		}
		metrics.AddNotifications(payload.Event, len(payload.UserIDs))
		return tracker.End(nil)
	}
}

func renderApprovalEvent(p ApprovalNotifyPayload) (subject, body string) {
	switch p.Event {
	case EventReportPending:
		subject = fmt.Sprintf("Report %q is waiting for your approval", p.ReportName)
		body = "Report #" + strconv.FormatInt(p.ReportID, 10) + " has expenses pending your decision."
	case EventReportClosed:
		subject = fmt.Sprintf("Report %q was fully approved", p.ReportName)
		body = "Report #" + strconv.FormatInt(p.ReportID, 10) + " completed its approval chain."
	case EventReportReturned:
		subject = fmt.Sprintf("Report %q was returned", p.ReportName)
		body = "Report #" + strconv.FormatInt(p.ReportID, 10) + " was sent back: " + p.Comment
	case EventExpenseReview:
		subject = "An expense needs your correction"
		body = "Expense #" + strconv.FormatInt(p.ExpenseID, 10) + " was sent back: " + p.Comment
	default:
		subject = "Expensa notification"
		body = "You have a pending approval event."
	}
	return subject, body
}
