// ABOUTME: Bootstrap operations: the challenge-response login handshake and its relatives
// ABOUTME: Implements getsalt, login, logout, checkcookie, brandlist, releaseopts

package gateway

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/http"

	"github.com/openacd/cpx-gateway/internal/agent"
	"github.com/openacd/cpx-gateway/internal/auth"
	"github.com/openacd/cpx-gateway/internal/session"
)

// handleGetSalt generates a new random salt, stores it on the session
// (overwriting any previous one), and returns it to the client.
func (d *Dispatcher) handleGetSalt(w http.ResponseWriter, rec session.Record) {
	salt, err := newSalt()
	if err != nil {
		d.logger.Error("generating salt", "error", err)
		writeJSON(w, http.StatusInternalServerError, failBody("internal error"))
		return
	}

	if err := d.registry.IssueSalt(rec.Token, salt); err != nil {
		// The record vanished between resolution and the salt write; treat
		// it like the bad-cookie case so the client recovers the same way.
		token := d.registry.Create()
		setSessionCookie(w, token)
		writeJSON(w, http.StatusForbidden, failBody(msgBadCookie))
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Success bool   `json:"success"`
		Salt    string `json:"salt"`
	}{Success: true, Salt: salt})
}

// handleLogin runs the salted-credential exchange and, on success,
// provisions an agent connection and promotes the session.
func (d *Dispatcher) handleLogin(w http.ResponseWriter, r *http.Request, rec session.Record) {
	if rec.Salt == "" {
		writeJSON(w, http.StatusOK, failBody(msgNoSalt))
		return
	}

	username := r.PostFormValue("username")
	password := r.PostFormValue("password")

	endpoint, err := agent.ParseEndpoint(
		r.PostFormValue("voipendpoint"),
		r.PostFormValue("voipendpointdata"),
		username,
	)
	if err != nil {
		writeJSON(w, http.StatusOK, failBody(msgInvalidEnd))
		return
	}

	claims, err := d.validator.Auth(r.Context(), username, password, rec.Salt)
	if errors.Is(err, auth.ErrAuthFailed) {
		// Salt stays usable for another attempt; the record is unchanged.
		writeJSON(w, http.StatusOK, failBody(msgAuthFailed))
		return
	}
	if err != nil {
		d.logger.Error("credential validation", "username", username, "error", err)
		writeJSON(w, http.StatusInternalServerError, failBody("internal error"))
		return
	}

	conn, err := d.factory.Start(username, claims)
	if errors.Is(err, agent.ErrDuplicateLogin) {
		writeJSON(w, http.StatusOK, failBody(msgConnRefused))
		return
	}
	if err != nil {
		writeJSON(w, http.StatusOK, failBody(fmt.Sprintf("Connection start failed: %v", err)))
		return
	}

	conn.SetEndpoint(endpoint)
	d.supervisor.Link(conn)

	if err := d.registry.Promote(rec.Token, conn); err != nil {
		// Session vanished while we were provisioning; tear the worker
		// back down cleanly so the supervisor reclaims nothing stale.
		conn.Stop(agent.ExitNormal)
		token := d.registry.Create()
		setSessionCookie(w, token)
		writeJSON(w, http.StatusForbidden, failBody(msgBadCookie))
		return
	}

	d.logger.Info("agent logged in", "username", username, "endpoint", endpoint.Type.String())
	writeJSON(w, http.StatusOK, apiEnvelope{Success: true})
}

// handleLogout instructs the bound connection to log out and replaces the
// session with a brand-new anonymous token.
func (d *Dispatcher) handleLogout(w http.ResponseWriter, rec session.Record) {
	if rec.Conn == nil {
		writeJSON(w, http.StatusOK, failBody(msgNotLoggedIn))
		return
	}

	rec.Conn.Logout()
	newToken := d.registry.Reset(rec.Token)
	setSessionCookie(w, newToken)
	writeJSON(w, http.StatusOK, apiEnvelope{Success: true})
}

// handleCheckCookie reports the session's authentication state, including a
// synchronous state snapshot when a connection is bound.
func (d *Dispatcher) handleCheckCookie(w http.ResponseWriter, rec session.Record) {
	if rec.Conn == nil {
		writeJSON(w, http.StatusOK, failBody(msgNotLoggedIn))
		return
	}

	login, state, stateData := rec.Conn.DumpState()
	writeJSON(w, http.StatusOK, struct {
		Success   bool   `json:"success"`
		Login     string `json:"login"`
		State     string `json:"state"`
		StateData string `json:"statedata"`
	}{Success: true, Login: login, State: state, StateData: stateData})
}

// handleBrandList serves the brand list from the store.
func (d *Dispatcher) handleBrandList(w http.ResponseWriter, r *http.Request) {
	brands, err := d.data.ListBrands(r.Context())
	if err != nil {
		d.logger.Error("listing brands", "error", err)
		writeJSON(w, http.StatusInternalServerError, failBody("internal error"))
		return
	}

	type brandEntry struct {
		Label  string `json:"label"`
		Tenant string `json:"tenant"`
		Brand  string `json:"brand"`
	}
	entries := make([]brandEntry, 0, len(brands))
	for _, b := range brands {
		entries = append(entries, brandEntry{Label: b.Label, Tenant: b.Tenant, Brand: b.Brand})
	}

	writeJSON(w, http.StatusOK, struct {
		Success bool         `json:"success"`
		Brands  []brandEntry `json:"brands"`
	}{Success: true, Brands: entries})
}

// handleReleaseOpts serves the release options as a bare array.
func (d *Dispatcher) handleReleaseOpts(w http.ResponseWriter, r *http.Request) {
	opts, err := d.data.ListReleaseOptions(r.Context())
	if err != nil {
		d.logger.Error("listing release options", "error", err)
		writeJSON(w, http.StatusInternalServerError, failBody("internal error"))
		return
	}

	type optEntry struct {
		Label string `json:"label"`
		ID    int    `json:"id"`
	}
	entries := make([]optEntry, 0, len(opts))
	for _, o := range opts {
		entries = append(entries, optEntry{Label: o.Label, ID: o.ID})
	}

	writeJSON(w, http.StatusOK, entries)
}

// saltSpace bounds the random numeric salt at 32 bits, matching what
// deployed clients expect to concatenate into their digest.
var saltSpace = big.NewInt(1 << 32)

// newSalt returns a random numeric salt as a decimal string.
func newSalt() (string, error) {
	n, err := rand.Int(rand.Reader, saltSpace)
	if err != nil {
		return "", fmt.Errorf("reading random salt: %w", err)
	}
	return n.String(), nil
}
