package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/danpasecinic/taskwarden/internal/types"
)

// Client calls the wardend control API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// StatusError is returned for non-2xx responses
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Message)
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			// Stop blocks server side for the bounded stop window
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) ListTasks() ([]types.TaskInfo, error) {
	var tasks []types.TaskInfo
	if err := c.get("/api/v1/tasks", &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (c *Client) GetTask(id types.TaskID) (*types.TaskInfo, error) {
	var task types.TaskInfo
	if err := c.get("/api/v1/tasks/"+id.String(), &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (c *Client) PauseTask(id types.TaskID) (*types.TaskInfo, error) {
	var task types.TaskInfo
	if err := c.post("/api/v1/tasks/"+id.String()+"/pause", &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (c *Client) ResumeTask(id types.TaskID) (*types.TaskInfo, error) {
	var task types.TaskInfo
	if err := c.post("/api/v1/tasks/"+id.String()+"/resume", &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (c *Client) StopTask(id types.TaskID) error {
	var resp struct {
		Stopped bool `json:"stopped"`
	}
	if err := c.post("/api/v1/tasks/"+id.String()+"/stop", &resp); err != nil {
		return err
	}
	if !resp.Stopped {
		return fmt.Errorf("task %s was not stopped", id)
	}
	return nil
}

// ListFailures returns up to limit failures, newest first
func (c *Client) ListFailures(limit int) ([]types.FailureRecord, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))

	var records []types.FailureRecord
	if err := c.get("/api/v1/failures?"+q.Encode(), &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (c *Client) RebootRequested() (bool, error) {
	var resp struct {
		RebootRequested bool `json:"rebootRequested"`
	}
	if err := c.get("/api/v1/reboot", &resp); err != nil {
		return false, err
	}
	return resp.RebootRequested, nil
}

func (c *Client) ServerVersion() (string, error) {
	var resp map[string]string
	if err := c.get("/version", &resp); err != nil {
		return "", err
	}
	return resp["version"], nil
}

func (c *Client) get(path string, out interface{}) error {
	resp, err := c.httpClient.Get(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("get request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	return decode(resp, out)
}

func (c *Client) post(path string, out interface{}) error {
	resp, err := c.httpClient.Post(c.baseURL+path, "application/json", nil)
	if err != nil {
		return fmt.Errorf("post request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	return decode(resp, out)
}

func decode(resp *http.Response, out interface{}) error {
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)

		var apiErr struct {
			Error string `json:"error"`
		}
		msg := string(body)
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			msg = apiErr.Error
		}
		return &StatusError{Code: resp.StatusCode, Message: msg}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
