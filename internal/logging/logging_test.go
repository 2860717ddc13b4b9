package logging

import (
	"bytes"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Setup("debug", "json", &buf))
	t.Cleanup(func() { _ = Setup("info", "text", nil) })

	log.WithField("k", "v").Debug("hello")
	out := buf.String()
	assert.Contains(t, out, `"msg":"hello"`)
	assert.Contains(t, out, `"k":"v"`)

	assert.Error(t, Setup("loud", "text", nil))
	assert.Error(t, Setup("info", "xml", nil))
}

func TestMiddleware_AssignsRequestID(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Setup("info", "text", &buf))
	t.Cleanup(func() { _ = Setup("info", "text", nil) })

	app := fiber.New()
	app.Use(Middleware())
	app.Get("/ping", func(c *fiber.Ctx) error {
		return c.SendString(RequestID(c))
	})

	res, err := app.Test(httptest.NewRequest("GET", "/ping", nil))
	require.NoError(t, err)
	id := res.Header.Get(RequestIDHeader)
	assert.NotEmpty(t, id)

	req := httptest.NewRequest("GET", "/ping", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	res, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "abc-123", res.Header.Get(RequestIDHeader))

	assert.True(t, strings.Contains(buf.String(), "request_id=abc-123"), buf.String())
	assert.Contains(t, buf.String(), "path=/ping")
}
