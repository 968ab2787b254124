package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"contestwatch/app/database"
	"contestwatch/app/monitor"
	"contestwatch/app/tasks"
)

const defaultHistoryLimit = 20

func NewHandler(workRepo database.WorkRepository, markerRepo database.MarkerRepository,
	stateRepo database.StateRepository, runner CheckRunnerInterface,
	scheduler tasks.TaskSchedulerInterface) *Handler {
	return &Handler{
		workRepo:   workRepo,
		markerRepo: markerRepo,
		stateRepo:  stateRepo,
		runner:     runner,
		scheduler:  scheduler,
	}
}

func (h *Handler) ListWorks(c *gin.Context) {
	works, err := h.workRepo.GetAll()
	if err != nil {
		slog.Error("Database error", "operation", "list_works", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"works": works,
		"total": len(works),
	})
}

func (h *Handler) GetWork(c *gin.Context) {
	key := c.Param("key")
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing business key parameter"})
		return
	}

	work, err := h.workRepo.GetByBusinessKey(key)
	if err != nil {
		slog.Error("Database error", "operation", "get_work", "business_key", key, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if work == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Work not found"})
		return
	}

	response := gin.H{"work": work}

	if marker, err := h.markerRepo.Get(key); err == nil && marker != nil {
		response["marker"] = marker
	}

	c.JSON(http.StatusOK, response)
}

type updateWorkRequest struct {
	RatingTotal *int    `json:"rating_total"`
	Review      *string `json:"review"`
	IsPlayed    *bool   `json:"is_played"`
}

// UpdateWork is the user-edit path: only the user-owned fields are
// writable here, and omitted fields keep their stored values.
func (h *Handler) UpdateWork(c *gin.Context) {
	key := c.Param("key")
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing business key parameter"})
		return
	}

	var req updateWorkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	work, err := h.workRepo.GetByBusinessKey(key)
	if err != nil {
		slog.Error("Database error", "operation", "get_work", "business_key", key, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if work == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Work not found"})
		return
	}

	ratingTotal := work.RatingTotal
	if req.RatingTotal != nil {
		ratingTotal = *req.RatingTotal
	}
	review := work.Review
	if req.Review != nil {
		review = *req.Review
	}
	isPlayed := work.IsPlayed
	if req.IsPlayed != nil {
		isPlayed = *req.IsPlayed
	}

	if err := h.workRepo.UpdateUserFields(key, ratingTotal, review, isPlayed); err != nil {
		slog.Error("Database error", "operation", "update_user_fields", "business_key", key, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	updated, err := h.workRepo.GetByBusinessKey(key)
	if err != nil || updated == nil {
		c.JSON(http.StatusOK, gin.H{"success": true})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "work": updated})
}

type checkRequest struct {
	Trigger string `json:"trigger"`
}

// TriggerCheck runs a check synchronously so the caller gets the result
// back. Manual checks bypass the time gates; auto triggers honor them.
func (h *Handler) TriggerCheck(c *gin.Context) {
	var req checkRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
			return
		}
	}

	trigger := req.Trigger
	if trigger == "" {
		trigger = monitor.TriggerManual
	}

	switch trigger {
	case monitor.TriggerManual, monitor.TriggerAutoVisit, monitor.TriggerAutoOpen:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown trigger", "trigger": trigger})
		return
	}

	result := h.runner.RunCheck(c.Request.Context(), trigger)

	status := http.StatusOK
	if !result.Success {
		status = http.StatusBadGateway
	}

	c.JSON(status, gin.H{
		"success":            result.Success,
		"skipped":            result.Skipped,
		"degraded":           result.Degraded,
		"new_works":          result.NewWorks,
		"updated_works":      result.UpdatedWorks,
		"total_works":        result.TotalWorks,
		"error":              result.Error,
		"consecutive_errors": result.ConsecutiveErrors,
	})
}

func (h *Handler) ListMarkers(c *gin.Context) {
	markers, err := h.markerRepo.GetAll()
	if err != nil {
		slog.Error("Database error", "operation", "list_markers", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"markers": markers,
		"total":   len(markers),
	})
}

// ConfirmMarker acknowledges a change badge: the marker is confirmed and
// the work's version status settles to latest.
func (h *Handler) ConfirmMarker(c *gin.Context) {
	key := c.Param("key")
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing business key parameter"})
		return
	}

	marker, err := h.markerRepo.Get(key)
	if err != nil {
		slog.Error("Database error", "operation", "get_marker", "business_key", key, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if marker == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Marker not found"})
		return
	}

	if err := h.markerRepo.Confirm(key); err != nil {
		slog.Error("Database error", "operation", "confirm_marker", "business_key", key, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	if err := h.workRepo.SetVersionStatus(key, database.StatusLatest); err != nil {
		slog.Error("Database error", "operation", "set_version_status", "business_key", key, "error", err)
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "business_key": key})
}

func (h *Handler) GetHistory(c *gin.Context) {
	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit parameter"})
			return
		}
		limit = parsed
	}

	history, err := h.stateRepo.GetRunHistory(limit)
	if err != nil {
		slog.Error("Database error", "operation", "get_history", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"runs":  history,
		"total": len(history),
	})
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if count, err := h.workRepo.GetCount(); err == nil {
		health["works"] = count
	}

	if state, err := h.stateRepo.GetRunState(); err == nil && state != nil {
		health["last_check_at"] = state.LastCheckAt
		health["consecutive_errors"] = state.ConsecutiveErrors
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats := map[string]interface{}{}

	if count, err := h.workRepo.GetCount(); err == nil {
		stats["works"] = count
	}

	if markers, err := h.markerRepo.GetAll(); err == nil {
		unconfirmed := 0
		for _, marker := range markers {
			if !marker.Confirmed {
				unconfirmed++
			}
		}
		stats["markers"] = map[string]interface{}{
			"total":       len(markers),
			"unconfirmed": unconfirmed,
		}
	}

	if state, err := h.stateRepo.GetRunState(); err == nil && state != nil {
		stats["monitoring"] = map[string]interface{}{
			"last_check_at":            state.LastCheckAt,
			"last_error_at":            state.LastErrorAt,
			"consecutive_errors":       state.ConsecutiveErrors,
			"current_interval_minutes": state.CurrentIntervalMinutes,
		}
	}

	c.JSON(http.StatusOK, stats)
}
