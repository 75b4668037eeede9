package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/google/uuid"
	"github.com/graintrack/mill_backend/config"
	"github.com/graintrack/mill_backend/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OutboxHeartbeatKey holds the last-dispatch timestamp in redis so ops
// tooling can tell whether a dispatcher is alive.
const OutboxHeartbeatKey = "outbox:dispatcher:heartbeat"

type OutboxDispatcher struct {
	DB           *gorm.DB
	Logger       *logrus.Logger
	DispatcherID string

	BatchSize      int
	PollInterval   time.Duration
	LockTimeout    time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
}

func NewOutboxDispatcher(db *gorm.DB, logger *logrus.Logger) *OutboxDispatcher {
	return &OutboxDispatcher{
		DB:             db,
		Logger:         logger,
		DispatcherID:   uuid.NewString(),
		BatchSize:      50,
		PollInterval:   500 * time.Millisecond,
		LockTimeout:    30 * time.Second,
		MaxAttempts:    20,
		InitialBackoff: 5 * time.Second,
	}
}

func (d *OutboxDispatcher) Run(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		d.dispatchOnce(ctx)
		_ = config.SetRedisValue(OutboxHeartbeatKey, time.Now().UTC().Format(time.RFC3339), d.LockTimeout)
		select {
		case <-ctx.Done():
			return
		case <-time.After(d.PollInterval):
		}
	}
}

func (d *OutboxDispatcher) dispatchOnce(ctx context.Context) {
	now := time.Now().UTC()
	staleBefore := now.Add(-d.LockTimeout)
	db := d.DB
	if db == nil {
		return
	}

	var claimed []models.StockPostingRecord
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Eligible:
		// - PENDING / FAILED and ready to retry
		// - PROCESSING but lock is stale (dispatcher crashed mid-batch), reclaim after LockTimeout
		q := tx.
			Where(`
				(
					status IN ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
				)
				OR
				(
					status = ? AND locked_at IS NOT NULL AND locked_at <= ?
				)
			`, []models.StockPostingStatus{models.StockPostingStatusPending, models.StockPostingStatusFailed}, now, models.StockPostingStatusProcessing, staleBefore).
			Order("id ASC").
			Limit(d.BatchSize).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		if err := q.Find(&claimed).Error; err != nil {
			return err
		}
		if len(claimed) == 0 {
			return nil
		}
		for i := range claimed {
			// Enforce max attempts: poison postings go terminal.
			if d.MaxAttempts > 0 && claimed[i].Attempts >= d.MaxAttempts {
				msg := fmt.Sprintf("max posting attempts exceeded (%d)", d.MaxAttempts)
				claimed[i].Status = models.StockPostingStatusDead
				if err := tx.Model(&models.StockPostingRecord{}).Where("id = ?", claimed[i].ID).Updates(map[string]interface{}{
					"status":          models.StockPostingStatusDead,
					"last_error":      &msg,
					"next_attempt_at": nil,
					"locked_at":       nil,
					"locked_by":       nil,
				}).Error; err != nil {
					return err
				}
				continue
			}

			// Claim for posting.
			claimed[i].Status = models.StockPostingStatusProcessing
			claimed[i].LockedAt = &now
			claimed[i].LockedBy = &d.DispatcherID
			claimed[i].Attempts = claimed[i].Attempts + 1
			claimed[i].LastError = nil
			if err := tx.Model(&models.StockPostingRecord{}).Where("id = ?", claimed[i].ID).Updates(map[string]interface{}{
				"status":          claimed[i].Status,
				"locked_at":       claimed[i].LockedAt,
				"locked_by":       claimed[i].LockedBy,
				"attempts":        gorm.Expr("attempts + 1"),
				"last_error":      nil,
				"next_attempt_at": nil,
			}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil || len(claimed) == 0 {
		return
	}

	for _, rec := range claimed {
		// Skip terminal rows that were marked DEAD in the claim transaction.
		if rec.Status == models.StockPostingStatusDead {
			continue
		}
		if postErr := d.postOne(ctx, rec); postErr != nil {
			d.markPostingFailed(ctx, rec.ID, rec.MillId, postErr, rec.Attempts)
			continue
		}
		d.markPosted(ctx, rec.ID, now)
	}
}

// postOne runs the ledger posting for a single claimed record.
// The redis lock is a best-effort optimization to reduce summary-row
// contention across dispatchers; correctness comes from the row locks
// inside ProcessStockPosting's transaction.
func (d *OutboxDispatcher) postOne(ctx context.Context, rec models.StockPostingRecord) error {
	if redisLock := config.GetRedisLock(); redisLock != nil {
		lock, err := redisLock.Obtain(ctx, fmt.Sprintf("lock:%s", rec.MillId), 30*time.Second, nil)
		if err == nil {
			defer func() {
				if releaseErr := lock.Release(ctx); releaseErr != nil && d.Logger != nil {
					d.Logger.WithFields(logrus.Fields{
						"field":     "OutboxDispatcher",
						"mill_id":   rec.MillId,
						"record_id": rec.ID,
					}).Warn("failed to release redis lock: " + releaseErr.Error())
				}
			}()
		} else if err != redislock.ErrNotObtained && d.Logger != nil {
			d.Logger.WithFields(logrus.Fields{
				"field":     "OutboxDispatcher",
				"mill_id":   rec.MillId,
				"record_id": rec.ID,
			}).Warn("error obtaining redis lock; proceeding without redis lock: " + err.Error())
		}
	}

	return d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return ProcessStockPosting(tx, &rec)
	})
}

func (d *OutboxDispatcher) markPosted(ctx context.Context, recordID int, now time.Time) {
	db := d.DB.WithContext(ctx)
	_ = db.Model(&models.StockPostingRecord{}).
		Where("id = ?", recordID).
		Updates(map[string]interface{}{
			"status":          models.StockPostingStatusPosted,
			"posted_at":       &now,
			"locked_at":       nil,
			"locked_by":       nil,
			"next_attempt_at": nil,
		}).Error
}

func (d *OutboxDispatcher) markPostingFailed(ctx context.Context, recordID int, millID string, err error, attempt int) {
	db := d.DB.WithContext(ctx)
	now := time.Now().UTC()
	msg := err.Error()

	// Terminal after MaxAttempts.
	if d.MaxAttempts > 0 && attempt >= d.MaxAttempts {
		_ = db.Model(&models.StockPostingRecord{}).
			Where("id = ?", recordID).
			Updates(map[string]interface{}{
				"status":          models.StockPostingStatusDead,
				"last_error":      &msg,
				"next_attempt_at": nil,
				"locked_at":       nil,
				"locked_by":       nil,
			}).Error

		if d.Logger != nil {
			d.Logger.WithFields(logrus.Fields{
				"field":     "OutboxDispatcher",
				"mill_id":   millID,
				"record_id": recordID,
				"attempt":   attempt,
			}).Error("stock posting moved to DEAD after max attempts: " + fmt.Sprintf("%v", err))
		}
		return
	}

	next := now.Add(BackoffForAttempt(d.InitialBackoff, attempt))
	_ = db.Model(&models.StockPostingRecord{}).
		Where("id = ?", recordID).
		Updates(map[string]interface{}{
			"status":          models.StockPostingStatusFailed,
			"last_error":      &msg,
			"next_attempt_at": &next,
			"locked_at":       nil,
			"locked_by":       nil,
		}).Error

	if d.Logger != nil {
		d.Logger.WithFields(logrus.Fields{
			"field":           "OutboxDispatcher",
			"mill_id":         millID,
			"record_id":       recordID,
			"attempt":         attempt,
			"next_attempt_at": next.Format(time.RFC3339Nano),
		}).Error("stock posting failed: " + fmt.Sprintf("%v", err))
	}
}

// BackoffForAttempt doubles the initial backoff per prior attempt, capped at 10m.
func BackoffForAttempt(initial time.Duration, attempt int) time.Duration {
	backoff := initial
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if backoff > time.Minute*10 {
			backoff = time.Minute * 10
			break
		}
	}
	return backoff
}
