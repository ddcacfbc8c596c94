package jobs

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/pandoapps/videoSoryBoard/internal/domain"
	"github.com/pandoapps/videoSoryBoard/internal/platform/dbctx"
	"github.com/pandoapps/videoSoryBoard/internal/platform/logger"
)

type JobRunEventRepo interface {
	Append(dbc dbctx.Context, ev *types.JobRunEvent) error
	ListByJob(dbc dbctx.Context, jobID uuid.UUID, limit int) ([]*types.JobRunEvent, error)
}

type jobRunEventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewJobRunEventRepo(db *gorm.DB, baseLog *logger.Logger) JobRunEventRepo {
	return &jobRunEventRepo{db: db, log: baseLog.With("repo", "JobRunEventRepo")}
}

func (r *jobRunEventRepo) Append(dbc dbctx.Context, ev *types.JobRunEvent) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if ev == nil || ev.JobID == uuid.Nil {
		return nil
	}
	return transaction.WithContext(dbc.Context()).Create(ev).Error
}

func (r *jobRunEventRepo) ListByJob(dbc dbctx.Context, jobID uuid.UUID, limit int) ([]*types.JobRunEvent, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.JobRunEvent
	if jobID == uuid.Nil {
		return out, nil
	}
	if limit <= 0 {
		limit = 100
	}
	err := transaction.WithContext(dbc.Context()).
		Where("job_id = ?", jobID).
		Order("created_at ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
