package jobs

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/pandoapps/videoSoryBoard/internal/domain"
	"github.com/pandoapps/videoSoryBoard/internal/platform/dbctx"
	"github.com/pandoapps/videoSoryBoard/internal/platform/logger"
)

type JobRunRepo interface {
	Create(dbc dbctx.Context, jobs []*types.JobRun) ([]*types.JobRun, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.JobRun, error)
	ListByOwner(dbc dbctx.Context, ownerUserID uuid.UUID, entityID *uuid.UUID, limit int) ([]*types.JobRun, error)
	ClaimNextRunnable(dbc dbctx.Context, maxAttempts int, retryDelay time.Duration, staleRunning time.Duration) (*types.JobRun, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	UpdateFieldsUnlessStatus(dbc dbctx.Context, id uuid.UUID, disallowedStatuses []string, updates map[string]interface{}) (bool, error)
	Heartbeat(dbc dbctx.Context, id uuid.UUID) error
	ExistsRunnable(dbc dbctx.Context, ownerUserID uuid.UUID, jobType string, entityType string, entityID *uuid.UUID) (bool, error)
	RequeueStale(dbc dbctx.Context, staleRunning time.Duration) (int64, error)
	CancelRunnableForEntity(dbc dbctx.Context, entityType string, entityID uuid.UUID, jobTypes []string) (int64, error)
}

const maxListLimit = 200

var activeStatuses = []string{types.JobStatusQueued, types.JobStatusRunning}

type jobRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewJobRunRepo(db *gorm.DB, baseLog *logger.Logger) JobRunRepo {
	return &jobRunRepo{db: db, log: baseLog.With("repo", "JobRunRepo")}
}

// tx joins the caller's transaction when there is one.
func (r *jobRunRepo) tx(dbc dbctx.Context) *gorm.DB {
	base := dbc.Tx
	if base == nil {
		base = r.db
	}
	return base.WithContext(dbc.Context())
}

func active(q *gorm.DB) *gorm.DB { return q.Where("status IN ?", activeStatuses) }

func forEntity(entityType string, entityID *uuid.UUID) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		if entityType != "" {
			q = q.Where("entity_type = ?", entityType)
		}
		if entityID != nil && *entityID != uuid.Nil {
			q = q.Where("entity_id = ?", *entityID)
		}
		return q
	}
}

// runnableAt matches queued jobs that are due, non-terminal failed jobs with attempts
// left whose retry delay elapsed, and running jobs whose heartbeat went stale.
func runnableAt(now time.Time, maxAttempts int, retryDelay, staleRunning time.Duration) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		due := q.Session(&gorm.Session{NewDB: true}).
			Where("(status = ? AND (run_after IS NULL OR run_after <= ?))", types.JobStatusQueued, now)
		retry := q.Session(&gorm.Session{NewDB: true}).
			Where("(status = ? AND terminal = ? AND attempts < ? AND (last_error_at IS NULL OR last_error_at < ?))",
				types.JobStatusFailed, false, maxAttempts, now.Add(-retryDelay))
		stale := q.Session(&gorm.Session{NewDB: true}).
			Where("(status = ? AND heartbeat_at IS NOT NULL AND heartbeat_at < ?)",
				types.JobStatusRunning, now.Add(-staleRunning))
		return q.Where(due.Or(retry).Or(stale))
	}
}

func stamp(updates map[string]interface{}) map[string]interface{} {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return updates
}

func (r *jobRunRepo) Create(dbc dbctx.Context, jobs []*types.JobRun) ([]*types.JobRun, error) {
	if len(jobs) == 0 {
		return []*types.JobRun{}, nil
	}
	if err := r.tx(dbc).Create(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *jobRunRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.JobRun, error) {
	var out []*types.JobRun
	if len(ids) == 0 {
		return out, nil
	}
	err := r.tx(dbc).Where("id IN ?", ids).Find(&out).Error
	return out, err
}

func (r *jobRunRepo) ListByOwner(dbc dbctx.Context, ownerUserID uuid.UUID, entityID *uuid.UUID, limit int) ([]*types.JobRun, error) {
	var out []*types.JobRun
	if ownerUserID == uuid.Nil {
		return out, nil
	}
	if limit <= 0 || limit > maxListLimit {
		limit = 50
	}
	err := r.tx(dbc).
		Where("owner_user_id = ?", ownerUserID).
		Scopes(forEntity("", entityID)).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ClaimNextRunnable marks the oldest runnable job as running and returns it, or nil
// when nothing is due. Postgres uses SKIP LOCKED so concurrent workers never share a row.
func (r *jobRunRepo) ClaimNextRunnable(dbc dbctx.Context, maxAttempts int, retryDelay time.Duration, staleRunning time.Duration) (*types.JobRun, error) {
	now := time.Now().UTC()
	var claimed *types.JobRun
	err := r.tx(dbc).Transaction(func(txx *gorm.DB) error {
		q := txx.Scopes(runnableAt(now, maxAttempts, retryDelay, staleRunning))
		if txx.Dialector.Name() == "postgres" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}
		var job types.JobRun
		if err := q.Order("created_at ASC").First(&job).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		err := txx.Model(&types.JobRun{}).Where("id = ?", job.ID).Updates(map[string]interface{}{
			"status":       types.JobStatusRunning,
			"attempts":     gorm.Expr("attempts + 1"),
			"locked_at":    now,
			"heartbeat_at": now,
			"run_after":    nil,
			"updated_at":   now,
		}).Error
		if err != nil {
			return err
		}
		job.Status = types.JobStatusRunning
		job.Attempts++
		job.LockedAt, job.HeartbeatAt = &now, &now
		job.RunAfter = nil
		claimed = &job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *jobRunRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return nil
	}
	return r.tx(dbc).Model(&types.JobRun{}).Where("id = ?", id).Updates(stamp(updates)).Error
}

// UpdateFieldsUnlessStatus reports false when the row was missing or already in a
// disallowed status.
func (r *jobRunRepo) UpdateFieldsUnlessStatus(dbc dbctx.Context, id uuid.UUID, disallowedStatuses []string, updates map[string]interface{}) (bool, error) {
	if id == uuid.Nil {
		return false, nil
	}
	q := r.tx(dbc).Model(&types.JobRun{}).Where("id = ?", id)
	if len(disallowedStatuses) > 0 {
		q = q.Where("status NOT IN ?", disallowedStatuses)
	}
	res := q.Updates(stamp(updates))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *jobRunRepo) Heartbeat(dbc dbctx.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return nil
	}
	now := time.Now().UTC()
	return r.tx(dbc).Model(&types.JobRun{}).
		Where("id = ? AND status = ?", id, types.JobStatusRunning).
		Updates(map[string]interface{}{"heartbeat_at": now, "updated_at": now}).Error
}

func (r *jobRunRepo) ExistsRunnable(dbc dbctx.Context, ownerUserID uuid.UUID, jobType string, entityType string, entityID *uuid.UUID) (bool, error) {
	if ownerUserID == uuid.Nil || jobType == "" {
		return false, nil
	}
	var count int64
	err := r.tx(dbc).Model(&types.JobRun{}).
		Where("owner_user_id = ? AND job_type = ?", ownerUserID, jobType).
		Scopes(active, forEntity(entityType, entityID)).
		Count(&count).Error
	return count > 0, err
}

// RequeueStale moves running jobs whose heartbeat stopped back to queued.
func (r *jobRunRepo) RequeueStale(dbc dbctx.Context, staleRunning time.Duration) (int64, error) {
	now := time.Now().UTC()
	res := r.tx(dbc).Model(&types.JobRun{}).
		Where("status = ? AND (heartbeat_at IS NULL OR heartbeat_at < ?)", types.JobStatusRunning, now.Add(-staleRunning)).
		Updates(map[string]interface{}{
			"status":     types.JobStatusQueued,
			"locked_at":  nil,
			"message":    "Re-queued after worker heartbeat expired",
			"updated_at": now,
		})
	return res.RowsAffected, res.Error
}

// CancelRunnableForEntity cancels queued or running jobs for the entity. An empty
// jobTypes cancels every type.
func (r *jobRunRepo) CancelRunnableForEntity(dbc dbctx.Context, entityType string, entityID uuid.UUID, jobTypes []string) (int64, error) {
	if entityID == uuid.Nil {
		return 0, nil
	}
	q := r.tx(dbc).Model(&types.JobRun{}).Scopes(active, forEntity(entityType, &entityID))
	if len(jobTypes) > 0 {
		q = q.Where("job_type IN ?", jobTypes)
	}
	res := q.Updates(map[string]interface{}{
		"status":     types.JobStatusCanceled,
		"stage":      types.JobStatusCanceled,
		"locked_at":  nil,
		"run_after":  nil,
		"updated_at": time.Now().UTC(),
	})
	return res.RowsAffected, res.Error
}
