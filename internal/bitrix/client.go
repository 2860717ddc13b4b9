// Package bitrix is a small client for the Bitrix24 REST API, limited to the
// smart process item calls needed to mirror the paint catalog.
package bitrix

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/wichananm65/paint-sync/internal/config"
)

const (
	methodItemAdd    = "crm.item.add"
	methodItemUpdate = "crm.item.update"
	methodItemDelete = "crm.item.delete"
	methodItemList   = "crm.item.list"
	methodTypeList   = "crm.type.list"
)

// Client talks to one CRM entity type through an inbound webhook URL.
type Client struct {
	baseURL         string
	entityTypeID    int
	adminUserID     int
	timeout         time.Duration
	syncConcurrency int
	http            *http.Client
	now             func() time.Time
}

// New returns ErrNotConfigured when cfg lacks a webhook URL or entity type.
// A nil httpClient gets a default client with cfg.RequestTimeout.
func New(cfg config.BitrixConfig, httpClient *http.Client) (*Client, error) {
	if !cfg.Configured() {
		return nil, ErrNotConfigured
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	concurrency := cfg.SyncConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	base := strings.TrimSpace(cfg.WebhookURL)
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return &Client{
		baseURL:         base,
		entityTypeID:    cfg.EntityTypeID,
		adminUserID:     cfg.AdminUserID,
		timeout:         timeout,
		syncConcurrency: concurrency,
		http:            httpClient,
		now:             time.Now,
	}, nil
}

// envelope is the common shape of every REST response.
type envelope struct {
	Result           json.RawMessage `json:"result"`
	Error            string          `json:"error,omitempty"`
	ErrorDescription string          `json:"error_description,omitempty"`
}

func (c *Client) methodURL(method string) string {
	return c.baseURL + method + ".json"
}

// call POSTs params as JSON and decodes the envelope's result into out.
func (c *Client) call(ctx context.Context, method string, params any, out any) error {
	body, err := json.Marshal(params)
	if err != nil {
		return errors.Wrapf(err, "bitrix %s: encode params", method)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(method), bytes.NewReader(body))
	if err != nil {
		return errors.Wrapf(err, "bitrix %s: build request", method)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		return errors.WithStack(&TransportError{Method: method, Err: err})
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return errors.WithStack(&TransportError{Method: method, Err: err})
	}

	log.WithFields(log.Fields{
		"method":  method,
		"status":  res.StatusCode,
		"latency": time.Since(start).String(),
	}).Debug("bitrix call")

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return errors.WithStack(&APIError{
			Method:      method,
			Status:      res.StatusCode,
			Code:        "INVALID_RESPONSE",
			Description: "unparsable response from Bitrix: " + err.Error(),
		})
	}
	if env.Error != "" {
		return errors.WithStack(&APIError{Method: method, Status: res.StatusCode, Code: env.Error, Description: env.ErrorDescription})
	}
	if res.StatusCode >= http.StatusBadRequest {
		return errors.WithStack(&APIError{Method: method, Status: res.StatusCode})
	}
	if out == nil || len(env.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return errors.WithStack(&APIError{
			Method:      method,
			Status:      res.StatusCode,
			Code:        "INVALID_RESPONSE",
			Description: "unexpected result shape from Bitrix: " + err.Error(),
		})
	}
	return nil
}

// RawResponse is a CRM response passed through untouched.
type RawResponse struct {
	Status      int
	ContentType string
	Body        []byte
}

func (c *Client) raw(ctx context.Context, method string, query url.Values) (RawResponse, error) {
	u := c.methodURL(method)
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return RawResponse{}, errors.Wrapf(err, "bitrix %s: build request", method)
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return RawResponse{}, errors.WithStack(&TransportError{Method: method, Err: err})
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return RawResponse{}, errors.WithStack(&TransportError{Method: method, Err: err})
	}
	return RawResponse{Status: res.StatusCode, ContentType: res.Header.Get("Content-Type"), Body: body}, nil
}

// ListItems proxies crm.item.list for the configured entity type, passing
// the caller's pagination through.
func (c *Client) ListItems(ctx context.Context, start, limit string) (RawResponse, error) {
	q := url.Values{}
	q.Set("entityTypeId", strconv.Itoa(c.entityTypeID))
	if start != "" {
		q.Set("start", start)
	}
	if limit != "" {
		q.Set("limit", limit)
	}
	return c.raw(ctx, methodItemList, q)
}

// ListTypes proxies crm.type.list; it doubles as a connectivity check.
func (c *Client) ListTypes(ctx context.Context) (RawResponse, error) {
	return c.raw(ctx, methodTypeList, nil)
}
