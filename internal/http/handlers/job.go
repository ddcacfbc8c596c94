package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pandoapps/videoSoryBoard/internal/http/response"
	"github.com/pandoapps/videoSoryBoard/internal/services"
)

type JobHandler struct {
	jobs services.JobService
}

func NewJobHandler(jobs services.JobService) *JobHandler {
	return &JobHandler{jobs: jobs}
}

func queryLimit(c *gin.Context, def int) int {
	n, err := strconv.Atoi(c.Query("limit"))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// GET /api/jobs?entity_id=&limit=
func (h *JobHandler) ListJobs(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	var entityID *uuid.UUID
	if raw := c.Query("entity_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_entity_id", err)
			return
		}
		entityID = &id
	}
	jobs, err := h.jobs.List(dbc(c), userID, entityID, queryLimit(c, 50))
	if err != nil {
		respondErr(c, "list_jobs_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"jobs": jobs})
}

// GET /api/jobs/:id
func (h *JobHandler) GetJob(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	jobID, ok := pathID(c, "id", "invalid_job_id")
	if !ok {
		return
	}
	job, err := h.jobs.Get(dbc(c), userID, jobID)
	if err != nil {
		respondErr(c, "job_not_found", err)
		return
	}
	response.RespondOK(c, gin.H{"job": job})
}

// GET /api/jobs/:id/events
func (h *JobHandler) ListJobEvents(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	jobID, ok := pathID(c, "id", "invalid_job_id")
	if !ok {
		return
	}
	events, err := h.jobs.Events(dbc(c), userID, jobID, queryLimit(c, 200))
	if err != nil {
		respondErr(c, "job_events_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"events": events})
}

// POST /api/jobs/:id/cancel
func (h *JobHandler) CancelJob(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	jobID, ok := pathID(c, "id", "invalid_job_id")
	if !ok {
		return
	}
	job, err := h.jobs.Cancel(dbc(c), userID, jobID)
	if err != nil {
		respondErr(c, "cancel_job_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"job": job})
}

// POST /api/jobs/:id/restart
func (h *JobHandler) RestartJob(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	jobID, ok := pathID(c, "id", "invalid_job_id")
	if !ok {
		return
	}
	job, err := h.jobs.Restart(dbc(c), userID, jobID)
	if err != nil {
		respondErr(c, "restart_job_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"job": job})
}
