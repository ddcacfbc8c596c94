package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	temporalsdkclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/pandoapps/videoSoryBoard/internal/data/repos"
	types "github.com/pandoapps/videoSoryBoard/internal/domain"
	"github.com/pandoapps/videoSoryBoard/internal/domain/story"
	"github.com/pandoapps/videoSoryBoard/internal/platform/ctxutil"
	"github.com/pandoapps/videoSoryBoard/internal/platform/dbctx"
	"github.com/pandoapps/videoSoryBoard/internal/platform/logger"
)

var ErrJobNotRestartable = errors.New("job not restartable")

type JobService interface {
	Enqueue(dbc dbctx.Context, ownerUserID uuid.UUID, jobType string, entityType string, entityID *uuid.UUID, payload map[string]any) (*types.JobRun, error)
	// EnqueueIfAbsent skips the enqueue when a queued or running job of the same type exists for the entity.
	EnqueueIfAbsent(dbc dbctx.Context, ownerUserID uuid.UUID, jobType string, entityType string, entityID uuid.UUID, payload map[string]any) (*types.JobRun, bool, error)
	Dispatch(dbc dbctx.Context, jobID uuid.UUID) error
	CancelForEntity(dbc dbctx.Context, entityType string, entityID uuid.UUID, jobTypes []string) (int64, error)
	Get(dbc dbctx.Context, userID uuid.UUID, jobID uuid.UUID) (*types.JobRun, error)
	List(dbc dbctx.Context, userID uuid.UUID, entityID *uuid.UUID, limit int) ([]*types.JobRun, error)
	Events(dbc dbctx.Context, userID uuid.UUID, jobID uuid.UUID, limit int) ([]*types.JobRunEvent, error)
	Cancel(dbc dbctx.Context, userID uuid.UUID, jobID uuid.UUID) (*types.JobRun, error)
	Restart(dbc dbctx.Context, userID uuid.UUID, jobID uuid.UUID) (*types.JobRun, error)
}

type jobService struct {
	db     *gorm.DB
	log    *logger.Logger
	repo   repos.JobRunRepo
	events repos.JobRunEventRepo
	notify JobNotifier

	// temporal is nil when jobs run on the local claim-loop worker.
	temporal          temporalsdkclient.Client
	temporalTaskQueue string
}

func NewJobService(
	db *gorm.DB,
	baseLog *logger.Logger,
	repo repos.JobRunRepo,
	events repos.JobRunEventRepo,
	notify JobNotifier,
	tc temporalsdkclient.Client,
	taskQueue string,
) JobService {
	return &jobService{
		db:                db,
		log:               baseLog.With("service", "JobService"),
		repo:              repo,
		events:            events,
		notify:            notify,
		temporal:          tc,
		temporalTaskQueue: strings.TrimSpace(taskQueue),
	}
}

func (s *jobService) tx(dbc dbctx.Context) dbctx.Context {
	if dbc.Tx == nil {
		return dbctx.Context{Ctx: dbc.Ctx, Tx: s.db}
	}
	return dbc
}

func (s *jobService) Enqueue(dbc dbctx.Context, ownerUserID uuid.UUID, jobType string, entityType string, entityID *uuid.UUID, payload map[string]any) (*types.JobRun, error) {
	if ownerUserID == uuid.Nil {
		return nil, fmt.Errorf("missing owner_user_id")
	}
	if jobType == "" {
		return nil, fmt.Errorf("missing job_type")
	}
	if payload == nil {
		payload = map[string]any{}
	}
	if td := ctxutil.GetTraceData(dbc.Ctx); td != nil {
		if td.TraceID != "" {
			if _, ok := payload["trace_id"]; !ok {
				payload["trace_id"] = td.TraceID
			}
		}
		if td.RequestID != "" {
			if _, ok := payload["request_id"]; !ok {
				payload["request_id"] = td.RequestID
			}
		}
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	now := time.Now().UTC()
	job := &types.JobRun{
		ID:          uuid.New(),
		OwnerUserID: ownerUserID,
		JobType:     jobType,
		EntityType:  entityType,
		EntityID:    entityID,
		Status:      types.JobStatusQueued,
		Stage:       "queued",
		Message:     "Queued",
		Payload:     datatypes.JSON(b),
		Result:      datatypes.JSON([]byte(`{}`)),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	inner := s.tx(dbc)
	if _, err := s.repo.Create(inner, []*types.JobRun{job}); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	if s.events != nil {
		_ = s.events.Append(inner, &types.JobRunEvent{
			JobID:       job.ID,
			OwnerUserID: job.OwnerUserID,
			JobType:     job.JobType,
			EntityID:    job.EntityID,
			Kind:        types.JobEventCreated,
			Status:      job.Status,
			Stage:       job.Stage,
			Message:     job.Message,
		})
	}
	s.notify.JobCreated(ownerUserID, job)

	// Inside a real transaction the workflow must not start before commit;
	// callers run Dispatch afterwards (the local worker needs nothing).
	if isDBTransaction(dbc.Tx) {
		s.log.Debug("Job enqueued inside transaction; awaiting dispatch after commit", "job_id", job.ID, "job_type", job.JobType)
		return job, nil
	}
	if err := s.Dispatch(dbctx.Context{Ctx: dbc.Ctx}, job.ID); err != nil {
		return job, err
	}
	return job, nil
}

func (s *jobService) EnqueueIfAbsent(dbc dbctx.Context, ownerUserID uuid.UUID, jobType string, entityType string, entityID uuid.UUID, payload map[string]any) (*types.JobRun, bool, error) {
	if entityID == uuid.Nil {
		return nil, false, fmt.Errorf("missing entity id")
	}
	inner := s.tx(dbc)
	exists, err := s.repo.ExistsRunnable(inner, ownerUserID, jobType, entityType, &entityID)
	if err != nil {
		return nil, false, err
	}
	if exists {
		s.log.Debug("Runnable job already exists; skipping enqueue", "job_type", jobType, "entity_id", entityID)
		return nil, false, nil
	}
	job, err := s.Enqueue(dbc, ownerUserID, jobType, entityType, &entityID, payload)
	if err != nil {
		return job, false, err
	}
	return job, true, nil
}

type txCommitter interface {
	Commit() error
	Rollback() error
}

// gorm.DB pointers are cloned freely, so pointer identity is not a transaction test.
func isDBTransaction(db *gorm.DB) bool {
	if db == nil || db.Statement == nil || db.Statement.ConnPool == nil {
		return false
	}
	_, ok := db.Statement.ConnPool.(txCommitter)
	return ok
}

func (s *jobService) Dispatch(dbc dbctx.Context, jobID uuid.UUID) error {
	if jobID == uuid.Nil {
		return fmt.Errorf("missing job id")
	}
	if s.temporal == nil {
		return nil
	}
	ctx := dbc.Context()

	err := s.startTemporalJobWorkflow(ctx, jobID, enums.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE)
	if err == nil {
		return nil
	}
	var already *serviceerror.WorkflowExecutionAlreadyStarted
	if errors.As(err, &already) {
		return nil
	}

	now := time.Now().UTC()
	inner := dbctx.Context{Ctx: ctx, Tx: s.db}
	_ = s.repo.UpdateFields(inner, jobID, map[string]interface{}{
		"status":        types.JobStatusFailed,
		"stage":         "dispatch",
		"message":       "",
		"error":         err.Error(),
		"last_error_at": now,
		"locked_at":     nil,
		"updated_at":    now,
	})
	if rows, rerr := s.repo.GetByIDs(inner, []uuid.UUID{jobID}); rerr == nil && len(rows) > 0 && rows[0] != nil {
		s.notify.JobFailed(rows[0].OwnerUserID, rows[0], "dispatch", err.Error())
	}
	return fmt.Errorf("start temporal workflow: %w", err)
}

func (s *jobService) CancelForEntity(dbc dbctx.Context, entityType string, entityID uuid.UUID, jobTypes []string) (int64, error) {
	return s.repo.CancelRunnableForEntity(s.tx(dbc), entityType, entityID, jobTypes)
}

func (s *jobService) Get(dbc dbctx.Context, userID uuid.UUID, jobID uuid.UUID) (*types.JobRun, error) {
	if jobID == uuid.Nil {
		return nil, story.ErrNotFound
	}
	rows, err := s.repo.GetByIDs(s.tx(dbc), []uuid.UUID{jobID})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 || rows[0] == nil || rows[0].OwnerUserID != userID {
		return nil, story.ErrNotFound
	}
	return rows[0], nil
}

func (s *jobService) List(dbc dbctx.Context, userID uuid.UUID, entityID *uuid.UUID, limit int) ([]*types.JobRun, error) {
	return s.repo.ListByOwner(s.tx(dbc), userID, entityID, limit)
}

func (s *jobService) Events(dbc dbctx.Context, userID uuid.UUID, jobID uuid.UUID, limit int) ([]*types.JobRunEvent, error) {
	if _, err := s.Get(dbc, userID, jobID); err != nil {
		return nil, err
	}
	return s.events.ListByJob(s.tx(dbc), jobID, limit)
}

func (s *jobService) Cancel(dbc dbctx.Context, userID uuid.UUID, jobID uuid.UUID) (*types.JobRun, error) {
	job, err := s.Get(dbc, userID, jobID)
	if err != nil {
		return nil, err
	}
	switch job.Status {
	case types.JobStatusSucceeded, types.JobStatusFailed, types.JobStatusCanceled:
		return job, nil
	}
	now := time.Now().UTC()
	if err := s.repo.UpdateFields(s.tx(dbc), jobID, map[string]interface{}{
		"status":       types.JobStatusCanceled,
		"message":      "Canceled",
		"locked_at":    nil,
		"heartbeat_at": now,
		"updated_at":   now,
	}); err != nil {
		return nil, err
	}
	job.Status = types.JobStatusCanceled
	job.Message = "Canceled"
	job.LockedAt = nil
	job.UpdatedAt = now
	s.notify.JobFailed(userID, job, "canceled", "Canceled")

	if s.temporal != nil {
		_ = s.temporal.CancelWorkflow(dbc.Context(), jobID.String(), "")
	}
	return job, nil
}

func (s *jobService) Restart(dbc dbctx.Context, userID uuid.UUID, jobID uuid.UUID) (*types.JobRun, error) {
	job, err := s.Get(dbc, userID, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != types.JobStatusCanceled && job.Status != types.JobStatusFailed {
		return nil, ErrJobNotRestartable
	}
	now := time.Now().UTC()
	// A restart starts the poll budget over, so previous wait state is dropped.
	if err := s.repo.UpdateFields(s.tx(dbc), jobID, map[string]interface{}{
		"status":        types.JobStatusQueued,
		"stage":         "queued",
		"progress":      0,
		"attempts":      0,
		"message":       "Restarting…",
		"error":         "",
		"last_error_at": nil,
		"run_after":     nil,
		"result":        datatypes.JSON([]byte(`{}`)),
		"locked_at":     nil,
		"heartbeat_at":  now,
		"updated_at":    now,
	}); err != nil {
		return nil, err
	}
	job.Status = types.JobStatusQueued
	job.Stage = "queued"
	job.Progress = 0
	job.Attempts = 0
	job.Message = "Restarting…"
	job.Error = ""
	job.UpdatedAt = now

	s.notify.JobProgress(userID, job, "queued", 0, job.Message)

	if s.temporal != nil {
		if err := s.startTemporalJobWorkflow(dbc.Context(), jobID, enums.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE); err != nil {
			return nil, fmt.Errorf("restart temporal workflow: %w", err)
		}
	}
	return job, nil
}

func (s *jobService) startTemporalJobWorkflow(ctx context.Context, jobID uuid.UUID, reusePolicy enums.WorkflowIdReusePolicy) error {
	if s.temporal == nil || jobID == uuid.Nil {
		return fmt.Errorf("temporal not configured")
	}
	tq := s.temporalTaskQueue
	if tq == "" {
		tq = "pipeline"
	}
	opts := temporalsdkclient.StartWorkflowOptions{
		ID:                    jobID.String(),
		TaskQueue:             tq,
		WorkflowIDReusePolicy: reusePolicy,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    30 * time.Second,
			BackoffCoefficient: 1.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    5,
		},
	}
	// Literal workflow name; importing temporalx/jobrun here would be a cycle.
	_, err := s.temporal.ExecuteWorkflow(ctx, opts, "job_run")
	return err
}
