package store

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"india-blood-connect/internal/domain"
)

// TableClient PostgREST-style client for the hosted data service. It exposes
// only the five primitives the rest of the code relies on.
type TableClient struct {
	http   *resty.Client
	logger *zap.Logger
}

// TableClientConfig connection settings of the hosted service.
type TableClientConfig struct {
	BaseURL string // e.g. https://xyz.supabase.co
	APIKey  string
	Timeout time.Duration
	Retries int
}

// apiError PostgREST error body.
type apiError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

// BackendError an operation the hosted service failed or rejected. Error()
// carries the service's own message so it can be shown to the user as is.
// Status is zero when the request never got a response.
type BackendError struct {
	Op      string
	Status  int
	Code    string
	Message string
}

func (e *BackendError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("failed to %s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("failed to %s: %s (status %d)", e.Op, e.Message, e.Status)
}

// Unwrap unique violations report domain.ErrDuplicate.
func (e *BackendError) Unwrap() error {
	if e.Code == "23505" || e.Status == http.StatusConflict {
		return domain.ErrDuplicate
	}
	return nil
}

func NewTableClient(cfg TableClientConfig, logger *zap.Logger) *TableClient {
	c := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")+"/rest/v1").
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(200 * time.Millisecond)
	if cfg.Timeout > 0 {
		c.SetTimeout(cfg.Timeout)
	}
	if cfg.APIKey != "" {
		c.SetHeader("apikey", cfg.APIKey)
		c.SetAuthToken(cfg.APIKey)
	}
	return &TableClient{http: c, logger: logger}
}

func (t *TableClient) Insert(ctx context.Context, table string, record any) error {
	resp, err := t.http.R().
		SetContext(ctx).
		SetHeader("Prefer", "return=minimal").
		SetBody(record).
		SetError(&apiError{}).
		Post("/" + table)
	return t.check("insert into "+table, resp, err)
}

func (t *TableClient) SelectAll(ctx context.Context, table string, out any) error {
	resp, err := t.http.R().
		SetContext(ctx).
		SetQueryParam("select", "*").
		SetResult(out).
		SetError(&apiError{}).
		Get("/" + table)
	return t.check("select from "+table, resp, err)
}

func (t *TableClient) SelectEq(ctx context.Context, table, column, value string, out any) error {
	resp, err := t.http.R().
		SetContext(ctx).
		SetQueryParam("select", "*").
		SetQueryParam(column, "eq."+value).
		SetResult(out).
		SetError(&apiError{}).
		Get("/" + table)
	return t.check("select from "+table, resp, err)
}

func (t *TableClient) UpdateByID(ctx context.Context, table, id string, patch map[string]any) error {
	resp, err := t.http.R().
		SetContext(ctx).
		SetHeader("Prefer", "return=minimal").
		SetQueryParam("id", "eq."+id).
		SetBody(patch).
		SetError(&apiError{}).
		Patch("/" + table)
	return t.check("update "+table, resp, err)
}

func (t *TableClient) DeleteByID(ctx context.Context, table, id string) error {
	resp, err := t.http.R().
		SetContext(ctx).
		SetQueryParam("id", "eq."+id).
		SetError(&apiError{}).
		Delete("/" + table)
	return t.check("delete from "+table, resp, err)
}

// check surfaces the backend's own error text as a *BackendError.
func (t *TableClient) check(op string, resp *resty.Response, err error) error {
	if err != nil {
		return &BackendError{Op: op, Message: err.Error()}
	}
	if !resp.IsError() {
		return nil
	}
	be := &BackendError{Op: op, Status: resp.StatusCode(), Message: strings.TrimSpace(resp.String())}
	if e, ok := resp.Error().(*apiError); ok && e.Message != "" {
		be.Message, be.Code = e.Message, e.Code
	}
	t.logger.Warn("hosted service rejected request",
		zap.String("op", op),
		zap.Int("status", be.Status),
		zap.String("code", be.Code),
		zap.String("message", be.Message),
	)
	return be
}
