package routes

import (
	"net/http"

	"github.com/weftlabs/weft/internal/pipeline"
	"github.com/weftlabs/weft/internal/queue"
	"github.com/weftlabs/weft/internal/server/middleware"
	"github.com/weftlabs/weft/pkg/logger"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
)

// RebuildHandler triggers a graph rebuild. With a queue configured the
// job is handed to the worker and accepted asynchronously; otherwise the
// pipeline runs in-process and the finished report is returned.
func RebuildHandler(c echo.Context) error {
	type rebuildBody struct {
		DataDir             string  `json:"data_dir"`
		RelevanceThreshold  float64 `json:"relevance_threshold"`
		ResolutionThreshold float64 `json:"resolution_threshold"`
	}

	type rebuildResponse struct {
		Message string           `json:"message"`
		JobID   string           `json:"job_id,omitempty"`
		Report  *pipeline.Report `json:"report,omitempty"`
	}

	data := new(rebuildBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, rebuildResponse{
			Message: "Invalid request body",
		})
	}

	job := queue.RebuildJob{
		DataDir:             data.DataDir,
		RelevanceThreshold:  data.RelevanceThreshold,
		ResolutionThreshold: data.ResolutionThreshold,
	}

	app := c.(*middleware.AppContext).App

	if app.Queue != nil {
		jobID, err := queue.PublishRebuild(app.Queue, job)
		if err != nil {
			logger.Error("[Server] Failed to enqueue rebuild", "err", err)
			return c.JSON(http.StatusInternalServerError, rebuildResponse{
				Message: "Failed to enqueue rebuild",
			})
		}
		logger.Info("[Server] Enqueued rebuild", "job_id", jobID)
		return c.JSON(http.StatusAccepted, rebuildResponse{
			Message: "Rebuild enqueued",
			JobID:   jobID,
		})
	}

	if app.Rebuild == nil {
		return c.JSON(http.StatusServiceUnavailable, rebuildResponse{
			Message: "Rebuild is not configured",
		})
	}

	report, err := app.Rebuild(c.Request().Context(), job)
	if err != nil {
		logger.Error("[Server] Rebuild failed", "err", err)
		return c.JSON(http.StatusInternalServerError, rebuildResponse{
			Message: "Rebuild failed",
		})
	}

	return c.JSON(http.StatusOK, rebuildResponse{
		Message: "Rebuild complete",
		Report:  report,
	})
}
