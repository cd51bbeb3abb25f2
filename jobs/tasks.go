package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
)

// Queue layout: maintenance work (the sweep) runs on the default queue, mail
// runs on its own lower-weight queue so a burst of expiry notices can never
// delay the sweep itself.
const (
	// QueueDefault carries maintenance jobs.
	QueueDefault = "default"
	// QueueMail carries outbound notification emails.
	QueueMail = "mail"

	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskTypeAssignmentSweep removes expired portal client assignments.
	TaskTypeAssignmentSweep = "assignments:sweep"
)

// SendEmailPayload describes one outbound notification email. AccountID ties
// the delivery back to the account it concerns in logs.
type SendEmailPayload struct {
	AccountID int64  `json:"account_id,omitempty"`
	To        string `json:"to"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task routed to the mail queue.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data, asynq.Queue(QueueMail)), nil
}

// HandleSendEmailTask processes TaskTypeSendEmail tasks.
func HandleSendEmailTask(ctx context.Context, t *asynq.Task) error {
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	// Placeholder: delivery via SMTP/Mailpit lands with the notification work.
	slog.Info("send email",
		slog.Int64("account_id", payload.AccountID),
		slog.String("to", payload.To),
		slog.String("subject", payload.Subject),
	)
	return nil
}

// AssignmentSweepPayload configures one run of the assignment expiry sweep.
type AssignmentSweepPayload struct {
	// Notify controls whether affected portal users get an email about
	// assignments that lapsed.
	Notify bool `json:"notify"`
}

// NewAssignmentSweepTask creates an Asynq task for the expiry sweep.
func NewAssignmentSweepTask(payload AssignmentSweepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeAssignmentSweep, data, asynq.Queue(QueueDefault)), nil
}
