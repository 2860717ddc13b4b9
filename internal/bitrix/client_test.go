package bitrix

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wichananm65/paint-sync/internal/bitrix/bitrixtest"
	"github.com/wichananm65/paint-sync/internal/config"
	"github.com/wichananm65/paint-sync/internal/paint"
)

const testEntityType = 1032

func newTestClient(t *testing.T, srv *bitrixtest.Server, concurrency int) *Client {
	t.Helper()
	c, err := New(config.BitrixConfig{
		WebhookURL:      srv.WebhookURL(),
		EntityTypeID:    testEntityType,
		AdminUserID:     7,
		RequestTimeout:  5 * time.Second,
		SyncConcurrency: concurrency,
	}, srv.Client())
	require.NoError(t, err)
	c.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return c
}

func TestNew_NotConfigured(t *testing.T) {
	_, err := New(config.BitrixConfig{EntityTypeID: 5}, nil)
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = New(config.BitrixConfig{WebhookURL: "https://x.bitrix24.com/rest/1/s/"}, nil)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestNew_AddsTrailingSlash(t *testing.T) {
	c, err := New(config.BitrixConfig{WebhookURL: "https://x.bitrix24.com/rest/1/s", EntityTypeID: 5}, nil)
	require.NoError(t, err)
	assert.Equal(t, "https://x.bitrix24.com/rest/1/s/crm.item.add.json", c.methodURL(methodItemAdd))
	assert.Equal(t, 1, c.syncConcurrency)
}

func TestListTypes_PassThrough(t *testing.T) {
	srv := bitrixtest.New()
	defer srv.Close()
	c := newTestClient(t, srv, 1)

	res, err := c.ListTypes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.Status)
	assert.Contains(t, string(res.Body), `"Paint products"`)
	assert.Equal(t, 1, srv.Calls(methodTypeList))
}

func TestListItems_PassThroughKeepsBody(t *testing.T) {
	srv := bitrixtest.New()
	defer srv.Close()
	c := newTestClient(t, srv, 1)
	srv.Seed(map[string]any{FieldTitle: "Acme Matte", FieldExternalID: "1"})

	res, err := c.ListItems(context.Background(), "0", "50")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.Status)
	assert.Contains(t, string(res.Body), `"Acme Matte"`)
	assert.Contains(t, string(res.Body), `"total":1`)
}

func TestCall_TransportError(t *testing.T) {
	srv := bitrixtest.New()
	c := newTestClient(t, srv, 1)
	srv.Close()

	_, err := c.ListTypes(context.Background())
	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, methodTypeList, te.Method)

	_, err = c.SyncProduct(context.Background(), paint.Product{ID: 1, Brand: "A", Paint: "B"}, false)
	assert.True(t, errors.As(err, &te))
}

func TestCall_APIErrorCarriesDescription(t *testing.T) {
	srv := bitrixtest.New()
	defer srv.Close()
	c := newTestClient(t, srv, 1)
	srv.FailProduct("3", "ACCESS_DENIED", "Access denied.")

	_, err := c.SyncProduct(context.Background(), paint.Product{ID: 3, Brand: "A", Paint: "B"}, false)
	require.Error(t, err)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "ACCESS_DENIED", apiErr.Code)
	assert.Equal(t, "Access denied.", err.Error())
	assert.False(t, IsNotFound(err))
}

func TestAPIError_Message(t *testing.T) {
	assert.Equal(t, "desc", (&APIError{Code: "X", Description: "desc"}).Error())
	assert.Equal(t, "X", (&APIError{Code: "X"}).Error())
	assert.Equal(t, "bitrix crm.item.add: unexpected status 502", (&APIError{Method: methodItemAdd, Status: 502}).Error())
}
