package cli

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/danpasecinic/taskwarden/internal/types"
)

func TestClient_ListTasks(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		response   interface{}
		wantCount  int
		wantErr    bool
	}{
		{
			name:       "successful list",
			statusCode: http.StatusOK,
			response: []types.TaskInfo{
				{TaskID: 1, Name: "alpha", State: types.StateAlive, CreatedAt: time.Now()},
				{TaskID: 2, Name: "beta", State: types.StateWait, CreatedAt: time.Now()},
			},
			wantCount: 2,
		},
		{
			name:       "empty list",
			statusCode: http.StatusOK,
			response:   []types.TaskInfo{},
			wantCount:  0,
		},
		{
			name:       "server error",
			statusCode: http.StatusInternalServerError,
			response:   map[string]string{"error": "internal server error"},
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(
			tt.name, func(t *testing.T) {
				server := httptest.NewServer(
					http.HandlerFunc(
						func(w http.ResponseWriter, r *http.Request) {
							if r.URL.Path != "/api/v1/tasks" {
								t.Errorf("unexpected path: %s", r.URL.Path)
							}
							if r.Method != http.MethodGet {
								t.Errorf("unexpected method: %s", r.Method)
							}

							w.WriteHeader(tt.statusCode)
							_ = json.NewEncoder(w).Encode(tt.response)
						},
					),
				)
				defer server.Close()

				tasks, err := NewClient(server.URL).ListTasks()
				if (err != nil) != tt.wantErr {
					t.Fatalf("ListTasks() error = %v, wantErr %v", err, tt.wantErr)
				}
				if !tt.wantErr && len(tasks) != tt.wantCount {
					t.Errorf("ListTasks() returned %d tasks, want %d", len(tasks), tt.wantCount)
				}
			},
		)
	}
}

func TestClient_StatusError(t *testing.T) {
	server := httptest.NewServer(
		http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusConflict)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "cannot pause task in state wait"})
			},
		),
	)
	defer server.Close()

	_, err := NewClient(server.URL).PauseTask(7)

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.Code != http.StatusConflict {
		t.Errorf("Code = %d, want %d", statusErr.Code, http.StatusConflict)
	}
	if statusErr.Message != "cannot pause task in state wait" {
		t.Errorf("Message = %q", statusErr.Message)
	}
}

func TestClient_Transitions(t *testing.T) {
	var (
		mu       sync.Mutex
		gotPaths []string
	)
	server := httptest.NewServer(
		http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("unexpected method: %s", r.Method)
				}
				mu.Lock()
				gotPaths = append(gotPaths, r.URL.Path)
				mu.Unlock()

				switch r.URL.Path {
				case "/api/v1/tasks/5/stop":
					_ = json.NewEncoder(w).Encode(map[string]interface{}{"taskId": 5, "stopped": true})
				default:
					_ = json.NewEncoder(w).Encode(types.TaskInfo{TaskID: 5, Name: "worker", State: types.StateAlive})
				}
			},
		),
	)
	defer server.Close()

	client := NewClient(server.URL)

	if task, err := client.PauseTask(5); err != nil || task.TaskID != 5 {
		t.Errorf("PauseTask() = %+v, %v", task, err)
	}
	if task, err := client.ResumeTask(5); err != nil || task.State != types.StateAlive {
		t.Errorf("ResumeTask() = %+v, %v", task, err)
	}
	if err := client.StopTask(5); err != nil {
		t.Errorf("StopTask() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()

	want := []string{"/api/v1/tasks/5/pause", "/api/v1/tasks/5/resume", "/api/v1/tasks/5/stop"}
	if len(gotPaths) != len(want) {
		t.Fatalf("paths = %v, want %v", gotPaths, want)
	}
	for i := range want {
		if gotPaths[i] != want[i] {
			t.Errorf("path[%d] = %s, want %s", i, gotPaths[i], want[i])
		}
	}
}

func TestClient_ListFailures(t *testing.T) {
	server := httptest.NewServer(
		http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/v1/failures" {
					t.Errorf("unexpected path: %s", r.URL.Path)
				}
				if got := r.URL.Query().Get("limit"); got != "3" {
					t.Errorf("limit = %q, want 3", got)
				}
				_ = json.NewEncoder(w).Encode(
					[]types.FailureRecord{
						{TaskID: 4, Name: "worker", Reason: types.ReasonTimeout, Time: time.Now()},
					},
				)
			},
		),
	)
	defer server.Close()

	records, err := NewClient(server.URL).ListFailures(3)
	if err != nil {
		t.Fatalf("ListFailures() error = %v", err)
	}
	if len(records) != 1 || records[0].Reason != types.ReasonTimeout {
		t.Errorf("ListFailures() = %+v", records)
	}
}

func TestClient_Unreachable(t *testing.T) {
	client := NewClient("http://127.0.0.1:1")
	if _, err := client.ListTasks(); err == nil {
		t.Error("expected error for unreachable server")
	}
}
