package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/platewise/printrelay/internal/core"
)

// ErrRelayUnavailable wraps transport-level failures talking to the relay,
// as opposed to the relay rejecting a request.
var ErrRelayUnavailable = errors.New("relay unavailable")

// Client is the bridge agent's HTTP client for the relay service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type registerRequest struct {
	PrinterID    string `json:"printerId"`
	Name         string `json:"name"`
	Address      string `json:"address"`
	Port         int    `json:"port"`
	Type         string `json:"type,omitempty"`
	RestaurantID string `json:"restaurantId"`
}

type envelope struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Jobs    []core.PrintJob `json:"jobs,omitempty"`
	Job     *core.PrintJob  `json:"printJob,omitempty"`
	Count   int             `json:"count,omitempty"`
}

// RegisterPrinter announces this agent's printer to the relay. Registration
// is idempotent; the agent calls it on every start.
func (c *Client) RegisterPrinter(ctx context.Context, restaurantID, printerID, name, address string, port int, printerType string) error {
	body := registerRequest{
		PrinterID:    printerID,
		Name:         name,
		Address:      address,
		Port:         port,
		Type:         printerType,
		RestaurantID: restaurantID,
	}
	return c.do(ctx, http.MethodPost, "/printers/register", body, nil)
}

// FetchJobs claims the next batch of pending jobs for the printer.
func (c *Client) FetchJobs(ctx context.Context, printerID string) ([]core.PrintJob, error) {
	var env envelope
	path := fmt.Sprintf("/printers/%s/jobs?status=pending", url.PathEscape(printerID))
	if err := c.do(ctx, http.MethodGet, path, nil, &env); err != nil {
		return nil, err
	}
	return env.Jobs, nil
}

// GetJob fetches a single job, used to re-check for cancellation between
// claim and print.
func (c *Client) GetJob(ctx context.Context, jobID string) (*core.PrintJob, error) {
	var env envelope
	path := fmt.Sprintf("/print-jobs/%s", url.PathEscape(jobID))
	if err := c.do(ctx, http.MethodGet, path, nil, &env); err != nil {
		return nil, err
	}
	if env.Job == nil {
		return nil, core.ErrJobNotFound
	}
	return env.Job, nil
}

// ReportStatus reports a job's terminal outcome back to the queue.
func (c *Client) ReportStatus(ctx context.Context, jobID string, status core.JobStatus, errMsg string) error {
	body := map[string]string{"status": string(status)}
	if errMsg != "" {
		body["error"] = errMsg
	}
	path := fmt.Sprintf("/print-jobs/%s/status", url.PathEscape(jobID))
	return c.do(ctx, http.MethodPut, path, body, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRelayUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrRelayUnavailable, err)
	}

	var env envelope
	if len(data) > 0 {
		if err := json.Unmarshal(data, &env); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	if resp.StatusCode >= 400 || (len(data) > 0 && !env.Success) {
		msg := env.Error
		if msg == "" {
			msg = fmt.Sprintf("http %d", resp.StatusCode)
		}
		return fmt.Errorf("relay rejected request: %s", msg)
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
