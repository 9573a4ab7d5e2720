// ABOUTME: Per-request entry point: classifies paths, resolves sessions, routes operations
// ABOUTME: Produces the JSON envelope and cookie mutations for every response

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/openacd/cpx-gateway/internal/agent"
	"github.com/openacd/cpx-gateway/internal/auth"
	"github.com/openacd/cpx-gateway/internal/session"
	"github.com/openacd/cpx-gateway/internal/store"
)

const (
	// SessionCookieName carries the opaque session token.
	SessionCookieName = "cpx_id"

	// LocaleCookieName carries the negotiated locale code, set
	// opportunistically on file serves.
	LocaleCookieName = "cpx_lang"
)

// Fixed client-facing failure messages.
const (
	msgBadCookie     = "Your session was reset due to a bad cookie"
	msgLoginRequired = "login required"
	msgNotLoggedIn   = "not logged in"
	msgNoSalt        = "No salt set"
	msgInvalidEnd    = "Invalid endpoint"
	msgAuthFailed    = "Authentication failed"
	msgConnRefused   = "Connection refused"
)

// ConnectionFactory provisions a new agent worker for a validated login.
type ConnectionFactory interface {
	Start(login string, claims *auth.Claims) (*agent.Connection, error)
}

// DataStore is the subset of the store the dispatcher serves directly.
type DataStore interface {
	ListBrands(ctx context.Context) ([]store.Brand, error)
	ListReleaseOptions(ctx context.Context) ([]store.ReleaseOption, error)
}

// Dispatcher handles every inbound request: static file serves and API
// operations, bootstrap or forwarded.
type Dispatcher struct {
	registry   *session.Registry
	validator  auth.Validator
	factory    ConnectionFactory
	supervisor *Supervisor
	data       DataStore
	classifier *Classifier
	locales    *localeMatcher
	apiTimeout time.Duration
	logger     *slog.Logger
}

// DispatcherConfig carries the dispatcher's collaborators.
type DispatcherConfig struct {
	Registry   *session.Registry
	Validator  auth.Validator
	Factory    ConnectionFactory
	Supervisor *Supervisor
	Data       DataStore
	Classifier *Classifier
	Locales    *localeMatcher
	APITimeout time.Duration
	Logger     *slog.Logger
}

// NewDispatcher creates a Dispatcher from its collaborators.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.Locales == nil {
		cfg.Locales = &localeMatcher{}
	}
	return &Dispatcher{
		registry:   cfg.Registry,
		validator:  cfg.Validator,
		factory:    cfg.Factory,
		supervisor: cfg.Supervisor,
		data:       cfg.Data,
		classifier: cfg.Classifier,
		locales:    cfg.Locales,
		apiTimeout: cfg.APITimeout,
		logger:     cfg.Logger,
	}
}

func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch req := d.classifier.Classify(r.URL.Path).(type) {
	case StaticRequest:
		d.serveStatic(w, r, req)
	case APIRequest:
		d.serveAPI(w, r, req)
	}
}

// serveStatic resolves or creates a session token as needed, attaches a
// best-effort locale cookie, and serves the file.
func (d *Dispatcher) serveStatic(w http.ResponseWriter, r *http.Request, req StaticRequest) {
	if !d.hasValidSession(r) {
		token := d.registry.Create()
		setSessionCookie(w, token)
	}

	if _, err := r.Cookie(LocaleCookieName); err != nil {
		if code := d.locales.Match(r.Header.Get("Accept-Language")); code != "" {
			http.SetCookie(w, &http.Cookie{
				Name:  LocaleCookieName,
				Value: code,
				Path:  "/",
			})
		}
	}

	if req.Name == "" {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, filepath.Join(req.Root, filepath.FromSlash(req.Name)))
}

// serveAPI resolves the session by cookie and routes the operation.
func (d *Dispatcher) serveAPI(w http.ResponseWriter, r *http.Request, req APIRequest) {
	rec, ok := d.resolveSession(r)
	if !ok {
		token := d.registry.Create()
		setSessionCookie(w, token)
		if req.Op == OpCheckCookie {
			// checkcookie tolerates an unknown token: the fresh anonymous
			// record is the side effect, the failure body the answer.
			writeJSON(w, http.StatusOK, failBody(msgNotLoggedIn))
			return
		}
		writeJSON(w, http.StatusForbidden, failBody(msgBadCookie))
		return
	}

	switch req.Op {
	case OpCheckCookie:
		d.handleCheckCookie(w, rec)
	case OpGetSalt:
		d.handleGetSalt(w, rec)
	case OpLogin:
		d.handleLogin(w, r, rec)
	case OpLogout:
		d.handleLogout(w, rec)
	case OpBrandList:
		d.handleBrandList(w, r)
	case OpReleaseOpts:
		d.handleReleaseOpts(w, r)
	case OpPoll, OpState, OpAck, OpErr, OpDial, OpSupervisor:
		d.forward(w, r, rec, req.Op, req.Args)
	}
}

// forward relays an operation to the bound agent connection and returns its
// reply verbatim. Requires an authenticated session.
func (d *Dispatcher) forward(w http.ResponseWriter, r *http.Request, rec session.Record, op Operation, args []string) {
	if rec.Conn == nil {
		writeJSON(w, http.StatusOK, failBody(msgLoginRequired))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), d.apiTimeout)
	defer cancel()

	reply, err := rec.Conn.API(ctx, op.String(), args)
	if err != nil {
		d.logger.Error("forwarded call failed",
			"op", op.String(),
			"login", rec.Conn.Login,
			"error", err,
		)
		writeJSON(w, http.StatusInternalServerError, failBody("agent connection error"))
		return
	}

	for k, v := range reply.Headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(reply.Status)
	_, _ = w.Write(reply.Body)
}

// hasValidSession reports whether the request carries a known session token.
func (d *Dispatcher) hasValidSession(r *http.Request) bool {
	_, ok := d.resolveSession(r)
	return ok
}

// resolveSession looks up the session record for the request's cpx_id cookie.
func (d *Dispatcher) resolveSession(r *http.Request) (session.Record, bool) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return session.Record{}, false
	}
	return d.registry.Lookup(cookie.Value)
}

func setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
	})
}

type apiEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func failBody(message string) apiEnvelope {
	return apiEnvelope{Success: false, Message: message}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil && !errors.Is(err, http.ErrHandlerTimeout) {
		slog.Default().Debug("writing response", "error", err)
	}
}
