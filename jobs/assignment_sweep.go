package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/meridian-compliance/meridian/internal/jobs"
	"github.com/meridian-compliance/meridian/internal/platform/db"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// AssignmentSweepJob removes portal client assignments whose expiry passed.
// Reads already exclude expired rows, so the sweep changes no access; it
// keeps the table honest and tells affected users why a client disappeared
// from their portal.
type AssignmentSweepJob struct {
	Pool    *pgxpool.Pool
	Mailer  *Client
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewAssignmentSweepJob constructs the sweep handler. Mailer may be nil when
// expiry notices are not wanted.
func NewAssignmentSweepJob(pool *pgxpool.Pool, mailer *Client, logger *slog.Logger, metrics *jobmetrics.Metrics) *AssignmentSweepJob {
	return &AssignmentSweepJob{
		Pool:    pool,
		Mailer:  mailer,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

type expiredAssignment struct {
	AccountID int64
	ClientID  int64
	TenantID  int64
	Email     string
}

// Handle executes the assignment sweep.
func (j *AssignmentSweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("assignment sweep: handler not configured")
	}
	var payload AssignmentSweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	start := j.now()
	tracker := j.metrics().Track(TaskTypeAssignmentSweep)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	logger.Info("starting assignment sweep")

	removed, err := j.sweep(ctx)
	if err != nil {
		resultErr = err
		logger.Error("sweep failed", slog.Any("error", err))
		return resultErr
	}

	perTenant := make(map[int64]int)
	for _, row := range removed {
		perTenant[row.TenantID]++
		logger.Info("portal assignment expired",
			slog.Int64("account_id", row.AccountID),
			slog.Int64("client_id", row.ClientID),
			slog.Int64("tenant_id", row.TenantID),
		)
	}
	for tenantID, count := range perTenant {
		j.metrics().AddExpired(tenantID, count)
	}

	if payload.Notify && j.Mailer != nil {
		j.notify(ctx, logger, removed)
	}

	logger.Info("completed assignment sweep",
		slog.Int("removed", len(removed)),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

// sweep collects and deletes expired rows in one transaction so the report
// matches exactly what was removed.
func (j *AssignmentSweepJob) sweep(ctx context.Context) ([]expiredAssignment, error) {
	if j.Pool == nil {
		return nil, errors.New("assignment sweep: pool not configured")
	}
	var removed []expiredAssignment
	err := db.WithTx(ctx, j.Pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT pca.account_id, pca.client_id, a.tenant_id, a.email FROM portal_client_assignments pca JOIN accounts a ON a.id = pca.account_id WHERE pca.expires_at IS NOT NULL AND pca.expires_at <= now() ORDER BY pca.account_id, pca.client_id`)
		if err != nil {
			return err
		}
		for rows.Next() {
			var row expiredAssignment
			if err := rows.Scan(&row.AccountID, &row.ClientID, &row.TenantID, &row.Email); err != nil {
				rows.Close()
				return err
			}
			removed = append(removed, row)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		if len(removed) == 0 {
			return nil
		}
		_, err = tx.Exec(ctx, `DELETE FROM portal_client_assignments WHERE expires_at IS NOT NULL AND expires_at <= now()`)
		return err
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// notify queues one email per affected account summarising what lapsed.
func (j *AssignmentSweepJob) notify(ctx context.Context, logger *slog.Logger, removed []expiredAssignment) {
	type notice struct {
		email string
		count int
	}
	byAccount := make(map[int64]*notice)
	for _, row := range removed {
		entry, ok := byAccount[row.AccountID]
		if !ok {
			entry = &notice{email: row.Email}
			byAccount[row.AccountID] = entry
		}
		entry.count++
	}
	for accountID, entry := range byAccount {
		if entry.email == "" {
			continue
		}
		payload := SendEmailPayload{
			AccountID: accountID,
			To:        entry.email,
			Subject:   "Portal access update",
			Body:      fmt.Sprintf("Access to %d client(s) has expired and was removed from your portal.", entry.count),
		}
		if _, err := j.Mailer.EnqueueSendEmail(ctx, payload); err != nil {
			logger.Warn("enqueue expiry notice",
				slog.Int64("account_id", accountID),
				slog.Any("error", err),
			)
		}
	}
}

func (j *AssignmentSweepJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskTypeAssignmentSweep))
	}
	return slog.Default().With(slog.String("job", TaskTypeAssignmentSweep))
}

func (j *AssignmentSweepJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *AssignmentSweepJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
