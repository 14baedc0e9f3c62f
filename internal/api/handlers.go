package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/danpasecinic/taskwarden/internal/types"
)

// DefaultFailureLimit is the number of failures returned when no limit is given
const DefaultFailureLimit = 50

// RebootResponse is returned by GET /api/v1/reboot
type RebootResponse struct {
	RebootRequested bool `json:"rebootRequested"`
}

// StopResponse is returned by POST /api/v1/tasks/:id/stop
type StopResponse struct {
	TaskID  types.TaskID `json:"taskId"`
	Stopped bool         `json:"stopped"`
}

// ListTasks handles GET /api/v1/tasks.
// Returns every registered task in registration order.
func (s *Server) ListTasks(c echo.Context) error {
	return c.JSON(http.StatusOK, s.tasks.List())
}

// GetTask handles GET /api/v1/tasks/:id.
func (s *Server) GetTask(c echo.Context) error {
	id, err := types.ParseTaskID(c.Param("id"))
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}

	info, ok := s.tasks.Info(id)
	if !ok {
		return errorJSON(c, http.StatusNotFound, "task not found")
	}

	return c.JSON(http.StatusOK, info)
}

// PauseTask handles POST /api/v1/tasks/:id/pause.
// Only alive tasks can be paused.
func (s *Server) PauseTask(c echo.Context) error {
	return s.transition(c, "pause", s.tasks.Pause)
}

// ResumeTask handles POST /api/v1/tasks/:id/resume.
// Starts a task that was registered but never run, or resumes a paused one.
func (s *Server) ResumeTask(c echo.Context) error {
	return s.transition(c, "resume", s.tasks.Continue)
}

// StopTask handles POST /api/v1/tasks/:id/stop.
// Blocks until the task exited or was forcibly terminated.
func (s *Server) StopTask(c echo.Context) error {
	id, err := types.ParseTaskID(c.Param("id"))
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}

	if _, ok := s.tasks.Info(id); !ok {
		return errorJSON(c, http.StatusNotFound, "task not found")
	}

	if !s.tasks.Stop(id) {
		return errorJSON(c, http.StatusConflict, "task already stopped or dead")
	}

	s.log.Infow("task stopped via api", "id", id)
	return c.JSON(http.StatusOK, StopResponse{TaskID: id, Stopped: true})
}

// transition applies a state change and returns the task's new snapshot
func (s *Server) transition(c echo.Context, action string, apply func(types.TaskID) bool) error {
	id, err := types.ParseTaskID(c.Param("id"))
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}

	before, ok := s.tasks.Info(id)
	if !ok {
		return errorJSON(c, http.StatusNotFound, "task not found")
	}

	if !apply(id) {
		return errorJSON(c, http.StatusConflict, "cannot "+action+" task in state "+string(before.State))
	}

	s.log.Infow("task state changed via api", "id", id, "action", action)

	after, ok := s.tasks.Info(id)
	if !ok {
		return errorJSON(c, http.StatusNotFound, "task not found")
	}
	return c.JSON(http.StatusOK, after)
}

// ListFailures handles GET /api/v1/failures?limit=N.
// Returns the most recent failures, newest first.
func (s *Server) ListFailures(c echo.Context) error {
	limit := DefaultFailureLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return errorJSON(c, http.StatusBadRequest, "limit must be a non-negative integer")
		}
		limit = n
	}

	records, err := s.journal.List(limit)
	if err != nil {
		s.log.Errorw("failed to list failures", "error", err)
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	if records == nil {
		records = []types.FailureRecord{}
	}

	return c.JSON(http.StatusOK, records)
}

// GetReboot handles GET /api/v1/reboot.
func (s *Server) GetReboot(c echo.Context) error {
	return c.JSON(http.StatusOK, RebootResponse{RebootRequested: s.tasks.RebootRequested()})
}
