// internal/adminapi/adminapi_test.go
package adminapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"aerogate/internal/adminapi"
	"aerogate/pkg/credentials"
	"aerogate/pkg/manifest"
)

const adminManifest = `
api_base_url: https://api.tenant.example.com
entities:
  pilot: {path: /pilots, id_field: pilot_id, read: true}
`

func newAdminHandler(t *testing.T, adminToken string) (http.Handler, credentials.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "manifest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(adminManifest), 0o600))
	reg, err := manifest.NewRegistry(path)
	require.NoError(t, err)

	creds := credentials.NewMemoryStore()
	r := chi.NewRouter()
	adminapi.NewApp(creds, reg, adminToken, zap.NewNop().Sugar()).Routes(r)
	return r, creds, path
}

func do(h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestTenantLifecycle(t *testing.T) {
	h, creds, _ := newAdminHandler(t, "admin-secret")

	rec := do(h, http.MethodPut, "/v1/tenants/tenant-a", "admin-secret",
		`{"api_token": "k4-token-value", "name": "Tenant A"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var put map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &put))
	assert.Equal(t, "k4-tok****", put["api_token"], "response must never echo the full token")

	tok, err := creds.Get(context.Background(), "tenant-a")
	require.NoError(t, err)
	assert.Equal(t, "k4-token-value", tok)

	rec = do(h, http.MethodGet, "/v1/tenants", "admin-secret", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tenant-a")
	assert.NotContains(t, rec.Body.String(), "k4-token-value")

	rec = do(h, http.MethodDelete, "/v1/tenants/tenant-a", "admin-secret", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(h, http.MethodDelete, "/v1/tenants/tenant-a", "admin-secret", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPutTenantRequiresToken(t *testing.T) {
	h, _, _ := newAdminHandler(t, "admin-secret")

	rec := do(h, http.MethodPut, "/v1/tenants/tenant-a", "", `{"api_token": "x"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(h, http.MethodPut, "/v1/tenants/tenant-a", "wrong", `{"api_token": "x"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOpenModeSkipsAuth(t *testing.T) {
	h, _, _ := newAdminHandler(t, "")

	rec := do(h, http.MethodPut, "/v1/tenants/tenant-a", "", `{"api_token": "x"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPutTenantValidation(t *testing.T) {
	h, _, _ := newAdminHandler(t, "admin-secret")

	rec := do(h, http.MethodPut, "/v1/tenants/tenant-a", "admin-secret", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h, http.MethodPut, "/v1/tenants/tenant-a", "admin-secret", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestManifestReload(t *testing.T) {
	h, _, path := newAdminHandler(t, "admin-secret")

	next := `
api_base_url: https://api.tenant.example.com
entities:
  aircraft: {path: /aircraft, id_field: tail_number, read: true}
`
	require.NoError(t, os.WriteFile(path, []byte(next), 0o600))
	rec := do(h, http.MethodPost, "/v1/manifest/reload", "admin-secret", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "aircraft")

	// Broken manifest: reload fails, endpoint reports it.
	require.NoError(t, os.WriteFile(path, []byte("entities: {}"), 0o600))
	rec = do(h, http.MethodPost, "/v1/manifest/reload", "admin-secret", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
