// Package api exposes the task registry over HTTP.
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/danpasecinic/taskwarden/internal/journal"
	"github.com/danpasecinic/taskwarden/internal/types"
)

// Supervisor is the part of the registry served over HTTP
type Supervisor interface {
	List() []types.TaskInfo
	Info(id types.TaskID) (types.TaskInfo, bool)
	Pause(id types.TaskID) bool
	Continue(id types.TaskID) bool
	Stop(id types.TaskID) bool
	RebootRequested() bool
}

// Server handles HTTP requests for the daemon API.
type Server struct {
	tasks   Supervisor
	journal journal.Journal
	log     *zap.SugaredLogger
}

// NewServer creates a new API server over the given registry and failure
// journal. A nil logger discards diagnostics.
func NewServer(tasks Supervisor, j journal.Journal, log *zap.SugaredLogger) *Server {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Server{
		tasks:   tasks,
		journal: j,
		log:     log,
	}
}

// RegisterRoutes registers all API endpoints with the Echo router.
// Routes are grouped under /api/v1 for versioning.
func (s *Server) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", s.Health)
	e.GET("/version", s.Version)

	v1 := e.Group("/api/v1")

	// Task routes
	v1.GET("/tasks", s.ListTasks)
	v1.GET("/tasks/:id", s.GetTask)
	v1.POST("/tasks/:id/pause", s.PauseTask)
	v1.POST("/tasks/:id/resume", s.ResumeTask)
	v1.POST("/tasks/:id/stop", s.StopTask)

	// Supervision routes
	v1.GET("/failures", s.ListFailures)
	v1.GET("/reboot", s.GetReboot)
}

// Health handles GET /health
func (s *Server) Health(c echo.Context) error {
	return c.JSON(
		http.StatusOK, map[string]interface{}{
			"status":  "ok",
			"service": "wardend",
			"tasks":   len(s.tasks.List()),
		},
	)
}

// Version handles GET /version
func (s *Server) Version(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"version": types.Version})
}

func errorJSON(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]string{"error": msg})
}
