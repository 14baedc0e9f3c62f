package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/danpasecinic/taskwarden/internal/journal"
	"github.com/danpasecinic/taskwarden/internal/types"
)

// fakeSupervisor is a Supervisor driven by a map of tasks
type fakeSupervisor struct {
	tasks     map[types.TaskID]types.TaskInfo
	order     []types.TaskID
	reboot    bool
	stopCalls int
}

func newFakeSupervisor(infos ...types.TaskInfo) *fakeSupervisor {
	f := &fakeSupervisor{tasks: make(map[types.TaskID]types.TaskInfo)}
	for _, info := range infos {
		f.tasks[info.TaskID] = info
		f.order = append(f.order, info.TaskID)
	}
	return f
}

func (f *fakeSupervisor) List() []types.TaskInfo {
	out := make([]types.TaskInfo, 0, len(f.order))
	for _, id := range f.order {
		if info, ok := f.tasks[id]; ok {
			out = append(out, info)
		}
	}
	return out
}

func (f *fakeSupervisor) Info(id types.TaskID) (types.TaskInfo, bool) {
	info, ok := f.tasks[id]
	return info, ok
}

func (f *fakeSupervisor) move(id types.TaskID, from, to types.State) bool {
	info, ok := f.tasks[id]
	if !ok || info.State != from {
		return false
	}
	info.State = to
	f.tasks[id] = info
	return true
}

func (f *fakeSupervisor) Pause(id types.TaskID) bool {
	return f.move(id, types.StateAlive, types.StateWait)
}

func (f *fakeSupervisor) Continue(id types.TaskID) bool {
	return f.move(id, types.StateWait, types.StateAlive)
}

func (f *fakeSupervisor) Stop(id types.TaskID) bool {
	f.stopCalls++
	info, ok := f.tasks[id]
	if !ok || info.State.Terminal() {
		return false
	}
	delete(f.tasks, id)
	return true
}

func (f *fakeSupervisor) RebootRequested() bool {
	return f.reboot
}

func setupTestServer(sup *fakeSupervisor, j journal.Journal) *echo.Echo {
	if j == nil {
		j = journal.NewInMemoryJournal(16)
	}
	return setupEcho(NewServer(sup, j, nil))
}

func setupEcho(server *Server) *echo.Echo {
	e := echo.New()
	server.RegisterRoutes(e)
	return e
}

func do(e *echo.Echo, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func sampleTasks() []types.TaskInfo {
	return []types.TaskInfo{
		{TaskID: 1, Name: "alpha", State: types.StateAlive, Policy: types.PolicyDefault},
		{TaskID: 2, Name: "beta", State: types.StateWait, Policy: types.PolicyIgnore},
		{TaskID: 3, Name: "gamma", State: types.StateDead, Policy: types.PolicyRestart},
	}
}

func TestHealthAndVersion(t *testing.T) {
	e := setupTestServer(newFakeSupervisor(sampleTasks()...), nil)

	rec := do(e, http.MethodGet, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d, want 200", rec.Code)
	}
	var health map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if health["status"] != "ok" || health["tasks"] != float64(3) {
		t.Errorf("health = %v", health)
	}

	rec = do(e, http.MethodGet, "/version")
	var version map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &version); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if version["version"] != types.Version {
		t.Errorf("version = %q, want %q", version["version"], types.Version)
	}
}

func TestListTasks(t *testing.T) {
	e := setupTestServer(newFakeSupervisor(sampleTasks()...), nil)

	rec := do(e, http.MethodGet, "/api/v1/tasks")
	if rec.Code != http.StatusOK {
		t.Fatalf("ListTasks() status = %d, want 200", rec.Code)
	}

	var tasks []types.TaskInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &tasks); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if len(tasks) != 3 || tasks[0].Name != "alpha" || tasks[2].State != types.StateDead {
		t.Errorf("ListTasks() = %+v", tasks)
	}
}

func TestGetTask(t *testing.T) {
	tests := []struct {
		name       string
		id         string
		wantStatus int
		wantName   string
	}{
		{name: "existing task", id: "2", wantStatus: http.StatusOK, wantName: "beta"},
		{name: "unknown task", id: "42", wantStatus: http.StatusNotFound},
		{name: "malformed id", id: "abc", wantStatus: http.StatusBadRequest},
		{name: "reserved id", id: "0", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(
			tt.name, func(t *testing.T) {
				e := setupTestServer(newFakeSupervisor(sampleTasks()...), nil)

				rec := do(e, http.MethodGet, "/api/v1/tasks/"+tt.id)
				if rec.Code != tt.wantStatus {
					t.Fatalf("GetTask() status = %d, want %d", rec.Code, tt.wantStatus)
				}

				if tt.wantStatus == http.StatusOK {
					var info types.TaskInfo
					if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
						t.Fatalf("Failed to unmarshal response: %v", err)
					}
					if info.Name != tt.wantName {
						t.Errorf("GetTask() name = %q, want %q", info.Name, tt.wantName)
					}
				}
			},
		)
	}
}

func TestTaskTransitions(t *testing.T) {
	tests := []struct {
		name       string
		action     string
		id         string
		wantStatus int
		wantState  types.State
	}{
		{name: "pause alive", action: "pause", id: "1", wantStatus: http.StatusOK, wantState: types.StateWait},
		{name: "pause waiting", action: "pause", id: "2", wantStatus: http.StatusConflict},
		{name: "resume waiting", action: "resume", id: "2", wantStatus: http.StatusOK, wantState: types.StateAlive},
		{name: "resume alive", action: "resume", id: "1", wantStatus: http.StatusConflict},
		{name: "resume dead", action: "resume", id: "3", wantStatus: http.StatusConflict},
		{name: "pause unknown", action: "pause", id: "99", wantStatus: http.StatusNotFound},
		{name: "resume malformed", action: "resume", id: "-1", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(
			tt.name, func(t *testing.T) {
				e := setupTestServer(newFakeSupervisor(sampleTasks()...), nil)

				rec := do(e, http.MethodPost, "/api/v1/tasks/"+tt.id+"/"+tt.action)
				if rec.Code != tt.wantStatus {
					t.Fatalf("%s status = %d, want %d: %s", tt.action, rec.Code, tt.wantStatus, rec.Body.String())
				}

				if tt.wantStatus == http.StatusOK {
					var info types.TaskInfo
					if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
						t.Fatalf("Failed to unmarshal response: %v", err)
					}
					if info.State != tt.wantState {
						t.Errorf("%s state = %q, want %q", tt.action, info.State, tt.wantState)
					}
				}
			},
		)
	}
}

func TestStopTask(t *testing.T) {
	sup := newFakeSupervisor(sampleTasks()...)
	e := setupTestServer(sup, nil)

	rec := do(e, http.MethodPost, "/api/v1/tasks/1/stop")
	if rec.Code != http.StatusOK {
		t.Fatalf("StopTask() status = %d, want 200", rec.Code)
	}
	var resp StopResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if resp.TaskID != 1 || !resp.Stopped {
		t.Errorf("StopTask() = %+v", resp)
	}

	if rec := do(e, http.MethodPost, "/api/v1/tasks/1/stop"); rec.Code != http.StatusNotFound {
		t.Errorf("second stop status = %d, want 404", rec.Code)
	}
	if rec := do(e, http.MethodPost, "/api/v1/tasks/3/stop"); rec.Code != http.StatusConflict {
		t.Errorf("stop of dead task status = %d, want 409", rec.Code)
	}
	if rec := do(e, http.MethodPost, "/api/v1/tasks/x/stop"); rec.Code != http.StatusBadRequest {
		t.Errorf("stop of malformed id status = %d, want 400", rec.Code)
	}
	if sup.stopCalls != 2 {
		t.Errorf("Stop() called %d times, want 2", sup.stopCalls)
	}
}

func TestListFailures(t *testing.T) {
	j := journal.NewInMemoryJournal(16)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 1; i <= 5; i++ {
		_ = j.Append(
			types.FailureRecord{
				TaskID: types.TaskID(i),
				Name:   "worker",
				Reason: types.ReasonTimeout,
				Time:   base.Add(time.Duration(i) * time.Second),
			},
		)
	}
	e := setupTestServer(newFakeSupervisor(), j)

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantCount  int
		wantFirst  types.TaskID
	}{
		{name: "default limit", query: "", wantStatus: http.StatusOK, wantCount: 5, wantFirst: 5},
		{name: "explicit limit", query: "?limit=2", wantStatus: http.StatusOK, wantCount: 2, wantFirst: 5},
		{name: "zero means all", query: "?limit=0", wantStatus: http.StatusOK, wantCount: 5, wantFirst: 5},
		{name: "bad limit", query: "?limit=many", wantStatus: http.StatusBadRequest},
		{name: "negative limit", query: "?limit=-3", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(
			tt.name, func(t *testing.T) {
				rec := do(e, http.MethodGet, "/api/v1/failures"+tt.query)
				if rec.Code != tt.wantStatus {
					t.Fatalf("ListFailures() status = %d, want %d", rec.Code, tt.wantStatus)
				}
				if tt.wantStatus != http.StatusOK {
					return
				}

				var records []types.FailureRecord
				if err := json.Unmarshal(rec.Body.Bytes(), &records); err != nil {
					t.Fatalf("Failed to unmarshal response: %v", err)
				}
				if len(records) != tt.wantCount {
					t.Fatalf("ListFailures() returned %d records, want %d", len(records), tt.wantCount)
				}
				if records[0].TaskID != tt.wantFirst {
					t.Errorf("first record = %d, want %d", records[0].TaskID, tt.wantFirst)
				}
			},
		)
	}
}

func TestListFailures_Empty(t *testing.T) {
	e := setupTestServer(newFakeSupervisor(), nil)

	rec := do(e, http.MethodGet, "/api/v1/failures")
	if rec.Code != http.StatusOK {
		t.Fatalf("ListFailures() status = %d, want 200", rec.Code)
	}
	if got := rec.Body.String(); got != "[]\n" {
		t.Errorf("ListFailures() body = %q, want empty array", got)
	}
}

func TestListFailures_JournalError(t *testing.T) {
	j := journal.NewInMemoryJournal(4)
	_ = j.Close()
	e := setupTestServer(newFakeSupervisor(), j)

	if rec := do(e, http.MethodGet, "/api/v1/failures"); rec.Code != http.StatusInternalServerError {
		t.Errorf("ListFailures() status = %d, want 500", rec.Code)
	}
}

func TestGetReboot(t *testing.T) {
	sup := newFakeSupervisor()
	e := setupTestServer(sup, nil)

	for _, want := range []bool{false, true} {
		sup.reboot = want

		rec := do(e, http.MethodGet, "/api/v1/reboot")
		var resp RebootResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}
		if resp.RebootRequested != want {
			t.Errorf("RebootRequested = %v, want %v", resp.RebootRequested, want)
		}
	}
}
