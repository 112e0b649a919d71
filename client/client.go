// Package client talks to a conductor's HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sethgrid/pester"
	log "github.com/sirupsen/logrus"

	"github.com/rayos/conductor/api"
	"github.com/rayos/conductor/domain"
	"github.com/rayos/conductor/handlers"
	"github.com/rayos/conductor/monitor"
)

// ~2min total of trying with exponential backoff.
const DefaultHttpTries = 7

// Doer sends HTTP requests; *pester.Client and *http.Client both qualify.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

func MakePesterClient(tries int) *pester.Client {
	client := pester.New()
	client.Backoff = pester.ExponentialBackoff
	client.MaxRetries = tries
	client.LogHook = func(e pester.ErrEntry) {
		log.Errorf("Retrying after failed attempt: %+v", e)
	}
	return client
}

// StatusError is a response the server refused with.
type StatusError struct {
	Code int
	Msg  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Code, http.StatusText(e.Code), e.Msg)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	se, ok := errors.Cause(err).(*StatusError)
	return ok && se.Code == code
}

type Client struct {
	addr string
	// Reads are retried. Submissions are not idempotent and are sent once.
	reads  Doer
	writes Doer
}

// New returns a client for the server at addr ("host:port" or a URL).
func New(addr string) *Client {
	return MakeCustomClient(addr, MakePesterClient(DefaultHttpTries), MakePesterClient(1))
}

func MakeCustomClient(addr string, reads, writes Doer) *Client {
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	return &Client{addr: strings.TrimSuffix(addr, "/"), reads: reads, writes: writes}
}

// Submit sends the requests as one batch. When the server refuses part of
// the batch the accepted ids are returned along with a *StatusError.
func (c *Client) Submit(ctx context.Context, reqs ...domain.TaskRequest) ([]domain.TaskID, error) {
	var body interface{} = reqs
	if len(reqs) == 1 {
		body = reqs[0]
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "encoding task requests")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.addr+api.TasksPath, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.writes.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "submitting tasks")
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "reading submit response")
	}

	var out api.SubmitResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, statusError(resp.StatusCode, raw)
	}
	if resp.StatusCode != http.StatusAccepted {
		msg := out.Error
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		return out.IDs, &StatusError{Code: resp.StatusCode, Msg: msg}
	}
	return out.IDs, nil
}

func (c *Client) Status(ctx context.Context, id domain.TaskID) (domain.Status, error) {
	var out api.TaskStatusResponse
	err := c.get(ctx, api.TasksPath+"/"+id.String(), &out)
	return out.Status, err
}

func (c *Client) Stats(ctx context.Context) (domain.OrchestratorStatistics, error) {
	var out domain.OrchestratorStatistics
	err := c.get(ctx, api.StatsPath, &out)
	return out, err
}

func (c *Client) Load(ctx context.Context) (domain.SystemLoad, error) {
	var out domain.SystemLoad
	err := c.get(ctx, api.LoadPath, &out)
	return out, err
}

func (c *Client) Violations(ctx context.Context, n int) ([]monitor.LatencyViolation, error) {
	var out []monitor.LatencyViolation
	err := c.get(ctx, api.ViolationsPath+"?n="+strconv.Itoa(n), &out)
	return out, err
}

// OptimizerStats fetches the self-optimization summary.
func (c *Client) OptimizerStats(ctx context.Context) (handlers.OptimizerStats, error) {
	var out handlers.OptimizerStats
	err := c.get(ctx, api.OptimizerPath, &out)
	return out, err
}

// Activity tells the server a user is present.
func (c *Client) Activity(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.addr+api.ActivityPath, nil)
	if err != nil {
		return err
	}
	resp, err := c.writes.Do(req)
	if err != nil {
		return errors.Wrap(err, "reporting activity")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		raw, _ := io.ReadAll(resp.Body)
		return statusError(resp.StatusCode, raw)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.addr+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.reads.Do(req)
	if err != nil {
		return errors.Wrapf(err, "GET %s", path)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(err, "reading %s", path)
	}
	if resp.StatusCode != http.StatusOK {
		return statusError(resp.StatusCode, raw)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.Wrapf(err, "decoding %s", path)
	}
	return nil
}

func statusError(code int, raw []byte) error {
	var e api.ErrorResponse
	if err := json.Unmarshal(raw, &e); err == nil && e.Error != "" {
		return &StatusError{Code: code, Msg: e.Error}
	}
	return &StatusError{Code: code, Msg: strings.TrimSpace(string(raw))}
}
