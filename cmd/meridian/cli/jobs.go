package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/meridian-compliance/meridian/jobs"
)

// taskEnqueuer is the slice of asynq.Client the jobs CLI uses.
type taskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// queueInspector is the slice of asynq.Inspector the jobs CLI uses.
type queueInspector interface {
	Queues() ([]string, error)
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
	ListScheduledTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
	Close() error
}

// JobsCLI wraps manual management helpers for Asynq jobs.
type JobsCLI struct {
	client    taskEnqueuer
	inspector queueInspector
}

// NewJobsCLI initialises the CLI helpers using the provided Redis address.
func NewJobsCLI(redisAddr string) (*JobsCLI, error) {
	client := asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr})
	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: redisAddr})
	return &JobsCLI{client: client, inspector: inspector}, nil
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var err error
	if c.inspector != nil {
		if closeErr := c.inspector.Close(); closeErr != nil {
			err = closeErr
		}
	}
	if c.client != nil {
		if closeErr := c.client.Close(); closeErr != nil {
			err = closeErr
		}
	}
	return err
}

// TriggerOptions defines available flags for the jobs trigger command.
type TriggerOptions struct {
	Job string
	// Notify controls whether the sweep mails affected portal users about
	// assignments it removed.
	Notify bool
}

// Trigger enqueues a supported job by name. Support staff use it after bulk
// assignment edits instead of waiting for the nightly schedule.
func (c *JobsCLI) Trigger(ctx context.Context, opts TriggerOptions) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	var task *asynq.Task
	var err error
	switch opts.Job {
	case jobs.TaskTypeAssignmentSweep:
		task, err = jobs.NewAssignmentSweepTask(jobs.AssignmentSweepPayload{Notify: opts.Notify})
	default:
		return nil, fmt.Errorf("jobs cli: unsupported job %s", opts.Job)
	}
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.MaxRetry(3))
}

// QueueStats summarises the current state of one queue.
type QueueStats struct {
	Queue     string
	Pending   int
	Active    int
	Scheduled int
	Retry     int
}

// InspectQueues reports depth for the maintenance and mail queues, in that
// order. Queues asynq has not created yet report zero depth, matching the
// worker's health endpoint.
func (c *JobsCLI) InspectQueues(ctx context.Context) ([]QueueStats, error) {
	if c == nil || c.inspector == nil {
		return nil, errors.New("jobs cli: inspector not configured")
	}
	existing, err := c.inspector.Queues()
	if err != nil {
		return nil, err
	}
	present := make(map[string]bool, len(existing))
	for _, name := range existing {
		present[name] = true
	}
	stats := make([]QueueStats, 0, 2)
	for _, name := range []string{jobs.QueueDefault, jobs.QueueMail} {
		entry := QueueStats{Queue: name}
		if present[name] {
			info, err := c.inspector.GetQueueInfo(name)
			if err != nil {
				return nil, err
			}
			if info != nil {
				entry.Pending = info.Pending
				entry.Active = info.Active
				entry.Scheduled = info.Scheduled
				entry.Retry = info.Retry
			}
		}
		stats = append(stats, entry)
	}
	return stats, nil
}

// ListScheduled returns scheduled task infos from the maintenance queue,
// where the nightly sweep waits between runs.
func (c *JobsCLI) ListScheduled(ctx context.Context, size int) ([]*asynq.TaskInfo, error) {
	if c == nil || c.inspector == nil {
		return nil, errors.New("jobs cli: inspector not configured")
	}
	if size <= 0 {
		size = 10
	}
	return c.inspector.ListScheduledTasks(jobs.QueueDefault, asynq.PageSize(size), asynq.Page(1))
}
