package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wichananm65/paint-sync/internal/bitrix"
	"github.com/wichananm65/paint-sync/internal/paint"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("PAINTSYNC_STORE_DRIVER", "file")
	t.Setenv("PAINTSYNC_PRODUCTS_FILE", filepath.Join(dir, "products.json"))
	t.Setenv("PAINTSYNC_BITRIX_WEBHOOK_URL", "")
	t.Setenv("PAINTSYNC_BITRIX_ENTITY_TYPE_ID", "0")
	t.Setenv("PAINTSYNC_ADMIN_JWT_SECRET", "")
	return dir
}

func TestTokenCmd(t *testing.T) {
	isolate(t)
	t.Setenv("PAINTSYNC_ADMIN_JWT_SECRET", "cli-secret")

	out, err := run(t, "token", "--subject", "alice")
	require.NoError(t, err)

	parsed, err := jwt.Parse(strings.TrimSpace(out), func(*jwt.Token) (any, error) {
		return []byte("cli-secret"), nil
	})
	require.NoError(t, err)
	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, "alice", claims["sub"])
	assert.Equal(t, "operator", claims["role"])
}

func TestTokenCmd_NoSecret(t *testing.T) {
	isolate(t)
	_, err := run(t, "token")
	assert.Error(t, err)
}

func TestImportCmd(t *testing.T) {
	dir := isolate(t)
	csvPath := filepath.Join(dir, "catalog.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(
		"brand,paint,interior,exterior,residentialPrice,commercialPrice,coverage\n"+
			"Acme,Shield,yes,no,1.2,1.1,300\n"+
			"Acme,Guard,no,yes,1.5,1.3,320\n"), 0o644))

	out, err := run(t, "import", csvPath)
	require.NoError(t, err)
	assert.Contains(t, out, "imported 2 products")

	raw, err := os.ReadFile(filepath.Join(dir, "products.json"))
	require.NoError(t, err)
	var products []paint.Product
	require.NoError(t, json.Unmarshal(raw, &products))
	assert.Len(t, products, len(paint.SeedCatalog())+2)
}

func TestImportCmd_DryRun(t *testing.T) {
	dir := isolate(t)
	csvPath := filepath.Join(dir, "catalog.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("brand,paint\nAcme,Shield\n"), 0o644))

	out, err := run(t, "import", "--dry-run", csvPath)
	require.NoError(t, err)
	assert.Contains(t, out, "parsed 1 products")
	_, err = os.Stat(filepath.Join(dir, "products.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestImportCmd_BadRow(t *testing.T) {
	dir := isolate(t)
	csvPath := filepath.Join(dir, "catalog.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("brand,paint\n,Shield\n"), 0o644))

	_, err := run(t, "import", csvPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestSyncCmd_Unconfigured(t *testing.T) {
	isolate(t)
	_, err := run(t, "sync")
	assert.ErrorIs(t, err, bitrix.ErrNotConfigured)
}
