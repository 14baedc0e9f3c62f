package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/danpasecinic/taskwarden/internal/journal"
	"github.com/danpasecinic/taskwarden/internal/task"
	"github.com/danpasecinic/taskwarden/internal/types"
)

func TestServer_WithRegistry(t *testing.T) {
	reg, err := task.New(task.Config{SweepInterval: time.Hour, StopInterval: 10 * time.Millisecond, StopRetries: 100})
	if err != nil {
		t.Fatalf("task.New() error = %v", err)
	}
	t.Cleanup(
		func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = reg.Close(ctx)
		},
	)

	id, err := reg.Register(
		types.Registration{Attributes: types.Attributes{Name: "api worker"}},
		func(ctx context.Context, id types.TaskID) {
			for reg.Heartbeat(id) {
				time.Sleep(time.Millisecond)
			}
		},
	)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	server := NewServer(reg, journal.NewInMemoryJournal(4), nil)
	e := setupEcho(server)

	steps := []struct {
		method     string
		path       string
		wantStatus int
		wantState  types.State
	}{
		{http.MethodPost, "/api/v1/tasks/" + id.String() + "/pause", http.StatusConflict, ""},
		{http.MethodPost, "/api/v1/tasks/" + id.String() + "/resume", http.StatusOK, types.StateAlive},
		{http.MethodPost, "/api/v1/tasks/" + id.String() + "/pause", http.StatusOK, types.StateWait},
		{http.MethodPost, "/api/v1/tasks/" + id.String() + "/resume", http.StatusOK, types.StateAlive},
		{http.MethodPost, "/api/v1/tasks/" + id.String() + "/stop", http.StatusOK, ""},
		{http.MethodGet, "/api/v1/tasks/" + id.String(), http.StatusNotFound, ""},
	}

	for _, step := range steps {
		rec := do(e, step.method, step.path)
		if rec.Code != step.wantStatus {
			t.Fatalf("%s %s status = %d, want %d", step.method, step.path, rec.Code, step.wantStatus)
		}
		if step.wantState == "" {
			continue
		}

		var info types.TaskInfo
		if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}
		if info.State != step.wantState {
			t.Errorf("%s state = %q, want %q", step.path, info.State, step.wantState)
		}
	}
}
