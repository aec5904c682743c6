// internal/adminapi/adminapi.go
package adminapi

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"aerogate/pkg/credentials"
	"aerogate/pkg/manifest"
)

// App is the operator-facing surface: tenant credential management and
// manifest reload. It listens on a separate port from the agent gateway
// and authenticates with a static bearer token.
type App struct {
	creds     credentials.Store
	manifests *manifest.Registry
	token     string // empty = open, dev only
	log       *zap.SugaredLogger
}

func NewApp(creds credentials.Store, manifests *manifest.Registry, token string, log *zap.SugaredLogger) *App {
	if token == "" {
		log.Warnw("admin API running without authentication; set GATEWAY_ADMIN_TOKEN in production")
	}
	return &App{creds: creds, manifests: manifests, token: token, log: log}
}

func (a *App) Routes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(a.requireToken)
		r.Put("/v1/tenants/{tenantID}", a.putTenant)
		r.Get("/v1/tenants", a.listTenants)
		r.Delete("/v1/tenants/{tenantID}", a.deleteTenant)
		r.Post("/v1/manifest/reload", a.reloadManifest)
	})
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

func (a *App) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.token != "" {
			got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if subtle.ConstantTimeCompare([]byte(got), []byte(a.token)) != 1 {
				writeError(w, http.StatusUnauthorized, "invalid admin token")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

type tenantBody struct {
	APIToken string `json:"api_token"`
	Name     string `json:"name,omitempty"`
}

func (a *App) putTenant(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	var body tenantBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.APIToken == "" {
		writeError(w, http.StatusBadRequest, "body must include api_token")
		return
	}
	if err := a.creds.Register(r.Context(), tenantID, body.APIToken, body.Name); err != nil {
		a.log.Errorw("register tenant", "tenant", tenantID, "err", err)
		writeError(w, http.StatusInternalServerError, "could not store credential")
		return
	}
	a.log.Infow("tenant credential registered", "tenant", tenantID, "name", body.Name)
	writeJSON(w, http.StatusOK, map[string]any{
		"tenant_id": tenantID,
		"api_token": credentials.Redact(body.APIToken),
	})
}

func (a *App) listTenants(w http.ResponseWriter, r *http.Request) {
	entries, err := a.creds.List(r.Context())
	if err != nil {
		a.log.Errorw("list tenants", "err", err)
		writeError(w, http.StatusInternalServerError, "could not list tenants")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tenants": entries})
}

func (a *App) deleteTenant(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	removed, err := a.creds.Remove(r.Context(), tenantID)
	if err != nil {
		a.log.Errorw("remove tenant", "tenant", tenantID, "err", err)
		writeError(w, http.StatusInternalServerError, "could not remove credential")
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "no such tenant")
		return
	}
	a.log.Infow("tenant credential removed", "tenant", tenantID)
	writeJSON(w, http.StatusOK, map[string]any{"tenant_id": tenantID, "removed": true})
}

func (a *App) reloadManifest(w http.ResponseWriter, r *http.Request) {
	if err := a.manifests.Reload(); err != nil {
		a.log.Errorw("manifest reload", "err", err)
		writeError(w, http.StatusUnprocessableEntity, "manifest reload failed: "+err.Error())
		return
	}
	m := a.manifests.Current()
	a.log.Infow("manifest reloaded", "entities", len(m.Entities))
	writeJSON(w, http.StatusOK, map[string]any{"reloaded": true, "entities": a.manifests.EntityNames()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}
