package batch

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wealthdesk/exchange-gateway/pkg/response"
)

// GinHandlers exposes the operations view of background jobs: what is
// registered, how recent runs went, and a manual trigger.
type GinHandlers struct {
	registry *Registry
	tracker  *Tracker
}

func NewGinHandlers(registry *Registry, tracker *Tracker) *GinHandlers {
	return &GinHandlers{registry: registry, tracker: tracker}
}

type jobSummary struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Schedule    string  `json:"schedule"`
	Manual      bool    `json:"manual"`
	LatestRun   *RunLog `json:"latest_run,omitempty"`
	Runs24h     int     `json:"runs_24h"`
	Failures24h int     `json:"failures_24h"`
}

// ListHandler handles GET /batch/jobs.
func (h *GinHandlers) ListHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		since := time.Now().Add(-24 * time.Hour)
		summaries := make([]jobSummary, 0)
		for _, job := range h.registry.List() {
			summary := jobSummary{
				ID:       job.ID,
				Name:     job.Name,
				Schedule: job.Schedule,
				Manual:   job.Manual,
			}
			latest, err := h.tracker.Database().LatestRun(job.ID)
			if err != nil {
				response.InternalError(c, "Failed to load run history")
				return
			}
			summary.LatestRun = latest

			runs, err := h.tracker.Database().RunsSince(job.ID, since)
			if err != nil {
				response.InternalError(c, "Failed to load run history")
				return
			}
			summary.Runs24h = len(runs)
			for _, run := range runs {
				if run.Status == RunFailed {
					summary.Failures24h++
				}
			}
			summaries = append(summaries, summary)
		}
		response.Success(c, gin.H{"jobs": summaries})
	}
}

// RunsHandler handles GET /batch/jobs/:job_id/runs.
func (h *GinHandlers) RunsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		jobID := c.Param("job_id")
		if _, ok := h.registry.Get(jobID); !ok {
			response.NotFound(c, "Unknown job")
			return
		}

		page := intQuery(c, "page", 1)
		limit := intQuery(c, "limit", 20)
		runs, total, err := h.tracker.Database().RunsPage(jobID, page, limit)
		if err != nil {
			response.InternalError(c, "Failed to load runs")
			return
		}
		response.Success(c, gin.H{
			"runs":  runs,
			"total": total,
			"page":  page,
			"limit": limit,
		})
	}
}

// TriggerHandler handles POST /batch/jobs/:job_id/trigger.
func (h *GinHandlers) TriggerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		jobID := c.Param("job_id")
		job, ok := h.registry.Get(jobID)
		if !ok {
			response.NotFound(c, "Unknown job")
			return
		}
		if !job.Manual {
			response.BadRequest(c, "Job cannot be triggered manually")
			return
		}

		if err := job.Run(c.Request.Context()); err != nil {
			response.Success(c, gin.H{
				"job_id": jobID,
				"status": string(RunFailed),
				"error":  err.Error(),
			})
			return
		}
		response.Success(c, gin.H{
			"job_id": jobID,
			"status": string(RunCompleted),
		})
	}
}

func intQuery(c *gin.Context, name string, fallback int) int {
	if raw := c.Query(name); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
