package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/mesh-intelligence/taski/pkg/types"
)

// DefaultBaseURL is the collection URL used when none is configured.
const DefaultBaseURL = "http://localhost:5000/api/todos"

// Breaker defaults.
const (
	DefaultMaxFailures = 3
	DefaultOpenTimeout = 5 * time.Second
)

const maxResponseBytes = 4 << 20

// Options configures a Client. Zero values select defaults.
type Options struct {
	HTTPClient *http.Client

	// MaxFailures is how many consecutive transport failures are tolerated
	// before the breaker opens.
	MaxFailures uint32

	// OpenTimeout is how long the breaker stays open before letting a
	// probe request through.
	OpenTimeout time.Duration

	Logger logrus.FieldLogger
}

// Client talks to the /api/todos collection at baseURL.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
}

// New returns a client for the collection at baseURL.
func New(baseURL string, opts Options) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	maxFailures := opts.MaxFailures
	if maxFailures == 0 {
		maxFailures = DefaultMaxFailures
	}
	openTimeout := opts.OpenTimeout
	if openTimeout == 0 {
		openTimeout = DefaultOpenTimeout
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "taski-api",
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > maxFailures
		},
		// 4xx answers prove the server is up.
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, types.ErrTransport)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("circuit breaker state changed")
		},
	})

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		breaker: breaker,
	}
}

// BaseURL returns the collection URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// List fetches every task.
func (c *Client) List(ctx context.Context) ([]*types.Task, error) {
	var tasks []*types.Task
	if err := c.do(ctx, "list todos", http.MethodGet, c.baseURL, nil, &tasks); err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []*types.Task{}
	}
	return tasks, nil
}

// Get fetches one task.
func (c *Client) Get(ctx context.Context, id int64) (*types.Task, error) {
	var task types.Task
	if err := c.do(ctx, "get todo "+idString(id), http.MethodGet, c.itemURL(id), nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// Create posts a task and returns the server's copy.
func (c *Client) Create(ctx context.Context, task *types.Task) (*types.Task, error) {
	var created types.Task
	if err := c.do(ctx, "create todo", http.MethodPost, c.baseURL, task, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// Update sends a partial update and returns the server's copy.
func (c *Client) Update(ctx context.Context, id int64, patch types.Patch) (*types.Task, error) {
	var updated types.Task
	if err := c.do(ctx, "update todo "+idString(id), http.MethodPut, c.itemURL(id), patch, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// Delete removes one task.
func (c *Client) Delete(ctx context.Context, id int64) error {
	return c.do(ctx, "delete todo "+idString(id), http.MethodDelete, c.itemURL(id), nil, nil)
}

// DeleteCompleted removes every completed task.
func (c *Client) DeleteCompleted(ctx context.Context) error {
	return c.do(ctx, "delete completed todos", http.MethodDelete, c.baseURL+"/completed", nil, nil)
}

func (c *Client) itemURL(id int64) string {
	return c.baseURL + "/" + idString(id)
}

func idString(id int64) string {
	return strconv.FormatInt(id, 10)
}

// do runs one round trip through the breaker.
func (c *Client) do(ctx context.Context, op, method, url string, body, out any) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.roundTrip(ctx, op, method, url, body, out)
	})
	if err == nil {
		return nil
	}
	var clientErr *Error
	if errors.As(err, &clientErr) {
		return clientErr
	}
	// gobreaker.ErrOpenState or ErrTooManyRequests.
	return &Error{Op: op, Err: err}
}

func (c *Client) roundTrip(ctx context.Context, op, method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &Error{Op: op, Err: fmt.Errorf("encoding request: %w", err)}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return &Error{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &Error{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("reading response: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{Op: op, StatusCode: resp.StatusCode, Message: serverMessage(data)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Op: op, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}
