// Package aiservice talks to the external AI analysis service: it submits
// ideas and opens the server-sent status stream for a task.
package aiservice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	submitPath = "/analyses/projects/overview"
	statusPath = "/analyses/projects/overview/status"

	RequestSchemaV2     = "v2"
	RequestSchemaLegacy = "legacy"
)

// Config configures Client.
type Config struct {
	BaseURL       string
	Timeout       time.Duration
	RetryCount    int
	RequestSchema string
}

// Idea is the submission body the analysis is run against.
type Idea struct {
	Problem  string
	Solution string
}

type submitV2Body struct {
	Problem  string `json:"problem"`
	Solution string `json:"solution"`
}

type submitLegacyBody struct {
	Problem     string `json:"problem"`
	Motivation  string `json:"motivation"`
	Features    string `json:"features"`
	Method      string `json:"method"`
	Deliverable string `json:"deliverable"`
}

type submitResponse struct {
	TaskID string `json:"task_id"`
}

// Client is the AI analysis service HTTP client.
type Client struct {
	baseURL       string
	requestSchema string
	api           *resty.Client
	stream        *resty.Client
}

// NewClient builds a Client. The stream transport has no overall timeout,
// since a status stream stays open for the whole analysis.
func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("ai service base url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	retries := cfg.RetryCount
	if retries < 0 {
		retries = 0
	}
	schema := strings.ToLower(strings.TrimSpace(cfg.RequestSchema))
	if schema != RequestSchemaLegacy {
		schema = RequestSchemaV2
	}

	api := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json").
		SetTimeout(timeout).
		SetRetryCount(retries).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(4 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			// only failures where the task was certainly not created
			if err != nil {
				return r == nil || r.StatusCode() == 0
			}
			return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() == http.StatusServiceUnavailable
		})

	stream := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "text/event-stream").
		SetHeader("Cache-Control", "no-cache")

	return &Client{
		baseURL:       baseURL,
		requestSchema: schema,
		api:           api,
		stream:        stream,
	}, nil
}

// RequestSchema reports which submission body shape is in force.
func (c *Client) RequestSchema() string {
	return c.requestSchema
}

// SubmitIdea starts an analysis task and returns its id.
func (c *Client) SubmitIdea(ctx context.Context, idea Idea) (string, error) {
	var body any = submitV2Body{Problem: idea.Problem, Solution: idea.Solution}
	if c.requestSchema == RequestSchemaLegacy {
		body = submitLegacyBody{Problem: idea.Problem, Features: idea.Solution}
	}

	resp, err := c.api.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&submitResponse{}).
		Post(submitPath)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("%w: submit: %v", ErrUnavailable, err)
	}
	if !resp.IsSuccess() {
		return "", classify(resp.StatusCode(), resp.Body())
	}
	out, ok := resp.Result().(*submitResponse)
	if !ok || strings.TrimSpace(out.TaskID) == "" {
		return "", fmt.Errorf("%w: submit response missing task_id", ErrUnavailable)
	}
	return out.TaskID, nil
}

// OpenStatusStream opens the server-sent status stream for taskID. The caller
// owns the returned stream and must Close it. Cancelling ctx also tears down
// the connection.
func (c *Client) OpenStatusStream(ctx context.Context, taskID string) (*EventStream, error) {
	if strings.TrimSpace(taskID) == "" {
		return nil, errors.New("task id is required")
	}
	resp, err := c.stream.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		SetQueryParam("task_id", taskID).
		Get(statusPath)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: open status stream: %v", ErrUnavailable, err)
	}
	body := resp.RawBody()
	if !resp.IsSuccess() {
		var payload []byte
		if body != nil {
			payload, _ = io.ReadAll(io.LimitReader(body, 64<<10))
			_ = body.Close()
		}
		return nil, classify(resp.StatusCode(), payload)
	}
	if body == nil {
		return nil, fmt.Errorf("%w: status stream has no body", ErrUnavailable)
	}
	return newEventStream(body), nil
}
