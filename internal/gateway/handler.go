// internal/gateway/handler.go
package gateway

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"aerogate/internal/router"
	"aerogate/pkg/apiclient"
	"aerogate/pkg/manifest"
	"aerogate/pkg/middleware"
	"aerogate/pkg/problems"
)

// App is the agent-facing HTTP surface.
type App struct {
	svc       *router.Service
	manifests *manifest.Registry
	log       *zap.SugaredLogger
}

func NewApp(svc *router.Service, manifests *manifest.Registry, log *zap.SugaredLogger) *App {
	return &App{svc: svc, manifests: manifests, log: log}
}

// callBody is the JSON envelope for POST /v1/call.
type callBody struct {
	Kind       string            `json:"kind"`
	Entity     string            `json:"entity,omitempty"`
	ID         string            `json:"id,omitempty"`
	Action     string            `json:"action,omitempty"`
	Params     map[string]any    `json:"params,omitempty"`
	Query      map[string]string `json:"query,omitempty"`
	ProposalID string            `json:"proposal_id,omitempty"`
	Approvals  []string          `json:"approvals,omitempty"`
}

func (a *App) Routes(r chi.Router) {
	r.Post("/v1/call", a.handleCall)
	r.Get("/v1/entities", a.handleEntities)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

func (a *App) handleCall(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		a.writeFault(w, r, &router.Fault{Slug: "unauthorized", Status: http.StatusUnauthorized,
			Title: "Unauthorized", Detail: "missing bearer token"})
		return
	}

	var body callBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&body); err != nil {
		a.writeFault(w, r, &router.Fault{Slug: "invalid-request", Status: http.StatusBadRequest,
			Title: "Invalid request", Detail: "request body is not valid JSON"})
		return
	}

	out, fault := a.svc.Handle(r.Context(), router.Request{
		Kind:       body.Kind,
		Entity:     body.Entity,
		ID:         body.ID,
		Action:     body.Action,
		Params:     body.Params,
		Query:      body.Query,
		Token:      token,
		ProposalID: body.ProposalID,
		Approvals:  body.Approvals,
	})
	if fault != nil {
		a.writeFault(w, r, fault)
		return
	}
	// Transport failures (no downstream response exists) are the gateway's
	// fault class; everything the downstream actually answered, including
	// its own 502s, passes through verbatim in the envelope.
	if res, ok := out.(apiclient.Result); ok && res.Transport {
		a.writeFault(w, r, &router.Fault{Slug: "downstream-error", Status: res.StatusCode,
			Title: "Downstream unavailable", Detail: res.Error})
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleEntities lists the manifest's entities so agents can discover
// what is callable. It requires no token: the manifest shape is not a
// secret, only tenant data is.
func (a *App) handleEntities(w http.ResponseWriter, _ *http.Request) {
	m := a.manifests.Current()
	type entityInfo struct {
		Name    string   `json:"name"`
		Read    bool     `json:"read"`
		Search  bool     `json:"search"`
		Actions []string `json:"actions"`
	}
	out := make([]entityInfo, 0, len(m.Entities))
	for name, ent := range m.Entities {
		out = append(out, entityInfo{Name: name, Read: ent.Read, Search: ent.Search, Actions: ent.ActionNames()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	writeJSON(w, http.StatusOK, map[string]any{"entities": out})
}

// writeFault renders a Fault as RFC 7807 problem+json.
func (a *App) writeFault(w http.ResponseWriter, r *http.Request, f *router.Fault) {
	doc := map[string]any{
		"type":   problems.Type(f.Slug),
		"title":  f.Title,
		"status": f.Status,
		"detail": f.Detail,
	}
	for k, v := range f.Extra {
		doc[k] = v
	}
	if rid := middleware.RequestIDFrom(r.Context()); rid != "" {
		doc["request_id"] = rid
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(f.Status)
	_ = json.NewEncoder(w).Encode(doc)
	if f.Status >= http.StatusInternalServerError {
		a.log.Errorw("request failed", "slug", f.Slug, "detail", f.Detail, "path", r.URL.Path)
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
