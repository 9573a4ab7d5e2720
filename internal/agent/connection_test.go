// ABOUTME: Tests for the agent connection worker's API surface
// ABOUTME: Covers state transitions, event delivery, and call semantics

package agent

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openacd/cpx-gateway/internal/auth"
)

func startTestConn(t *testing.T, login string, claims *auth.Claims) *Connection {
	t.Helper()
	if claims == nil {
		claims = &auth.Claims{Profile: "Default"}
	}
	mgr := NewManager(slog.Default())
	conn, err := mgr.Start(login, claims)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Stop(ExitShutdown) })
	return conn
}

func call(t *testing.T, c *Connection, op string, args ...string) map[string]any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	reply, err := c.API(ctx, op, args)
	require.NoError(t, err)
	require.Equal(t, 200, reply.Status)

	var body map[string]any
	require.NoError(t, json.Unmarshal(reply.Body, &body))
	return body
}

func TestConnection_InitialState(t *testing.T) {
	conn := startTestConn(t, "alice", nil)

	login, state, stateData := conn.DumpState()
	assert.Equal(t, "alice", login)
	assert.Equal(t, StateReleased, state)
	assert.Equal(t, "default", stateData)
}

func TestConnection_PollEmpty(t *testing.T) {
	conn := startTestConn(t, "alice", nil)

	body := call(t, conn, "poll")
	assert.Equal(t, true, body["success"])
	assert.Equal(t, []any{}, body["data"])
}

func TestConnection_StateTransition(t *testing.T) {
	conn := startTestConn(t, "alice", nil)

	body := call(t, conn, "state", "idle")
	assert.Equal(t, true, body["success"])

	_, state, stateData := conn.DumpState()
	assert.Equal(t, StateIdle, state)
	assert.Equal(t, "", stateData)

	body = call(t, conn, "state", "released", "lunch")
	assert.Equal(t, true, body["success"])

	_, state, stateData = conn.DumpState()
	assert.Equal(t, StateReleased, state)
	assert.Equal(t, "lunch", stateData)
}

func TestConnection_StateRejectsUnknown(t *testing.T) {
	conn := startTestConn(t, "alice", nil)

	body := call(t, conn, "state", "daydreaming")
	assert.Equal(t, false, body["success"])

	_, state, _ := conn.DumpState()
	assert.Equal(t, StateReleased, state, "rejected transition leaves state untouched")
}

func TestConnection_StateChangePushesEvent(t *testing.T) {
	conn := startTestConn(t, "alice", nil)

	call(t, conn, "state", "idle")
	call(t, conn, "state", "ringing")

	body := call(t, conn, "poll")
	events, ok := body["data"].([]any)
	require.True(t, ok)
	require.Len(t, events, 2)

	first := events[0].(map[string]any)
	assert.Equal(t, "astate", first["command"])
	assert.Equal(t, float64(1), first["counter"])
	assert.Equal(t, "idle", first["data"].(map[string]any)["state"])

	second := events[1].(map[string]any)
	assert.Equal(t, float64(2), second["counter"])

	// Events are delivered once.
	body = call(t, conn, "poll")
	assert.Equal(t, []any{}, body["data"])
}

func TestConnection_AckAndErr(t *testing.T) {
	conn := startTestConn(t, "alice", nil)

	call(t, conn, "state", "idle")
	call(t, conn, "state", "wrapup")

	body := call(t, conn, "ack", "1")
	assert.Equal(t, true, body["success"])

	body = call(t, conn, "err", "2", "render failed")
	assert.Equal(t, true, body["success"])

	body = call(t, conn, "ack", "not-a-number")
	assert.Equal(t, false, body["success"])

	body = call(t, conn, "ack")
	assert.Equal(t, false, body["success"])
}

func TestConnection_Dial(t *testing.T) {
	conn := startTestConn(t, "alice", nil)

	body := call(t, conn, "dial", "5551234")
	assert.Equal(t, true, body["success"])

	_, state, stateData := conn.DumpState()
	assert.Equal(t, StateOnCall, state)
	assert.Equal(t, "5551234", stateData)

	// Cannot dial while already on a call.
	body = call(t, conn, "dial", "5555678")
	assert.Equal(t, false, body["success"])

	body = call(t, conn, "dial")
	assert.Equal(t, false, body["success"])
}

func TestConnection_SupervisorRequiresLevel(t *testing.T) {
	agentConn := startTestConn(t, "alice", &auth.Claims{Profile: "Default", Security: auth.LevelAgent})

	body := call(t, agentConn, "supervisor", "status")
	assert.Equal(t, false, body["success"])

	boss := startTestConn(t, "boss", &auth.Claims{Profile: "Supervisors", Security: auth.LevelSupervisor})

	body = call(t, boss, "supervisor", "status")
	assert.Equal(t, true, body["success"])

	agents, ok := body["agents"].([]any)
	require.True(t, ok)
	require.Len(t, agents, 1)
	entry := agents[0].(map[string]any)
	assert.Equal(t, "boss", entry["login"])
	assert.Equal(t, StateReleased, entry["state"])
}

func TestConnection_SupervisorUnknownRequest(t *testing.T) {
	boss := startTestConn(t, "boss", &auth.Claims{Security: auth.LevelSupervisor})

	body := call(t, boss, "supervisor", "fireworks")
	assert.Equal(t, false, body["success"])
}

func TestConnection_UnknownOp(t *testing.T) {
	conn := startTestConn(t, "alice", nil)

	body := call(t, conn, "frobnicate")
	assert.Equal(t, false, body["success"])
}

func TestConnection_APITimeout(t *testing.T) {
	// An unstarted connection never services its request channel, so the
	// call must come back as a timeout rather than hang.
	conn := newConnection("alice", &auth.Claims{}, nil, slog.Default())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := conn.API(ctx, "poll", nil)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestConnection_APIAfterStop(t *testing.T) {
	conn := startTestConn(t, "alice", nil)
	conn.Stop(ExitNormal)
	<-conn.Done()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := conn.API(ctx, "poll", nil)
	assert.ErrorIs(t, err, ErrWorkerGone)
}

func TestConnection_StopReasonSticks(t *testing.T) {
	conn := startTestConn(t, "alice", nil)

	conn.Stop(ExitNormal)
	conn.Stop(ExitShutdown)

	assert.Equal(t, ExitNormal, conn.ExitReason())
}

func TestConnection_SetEndpoint(t *testing.T) {
	conn := startTestConn(t, "alice", nil)

	conn.SetEndpoint(Endpoint{Type: EndpointSIP, Address: "sip:alice@pbx"})
	ep := conn.Endpoint()
	assert.Equal(t, EndpointSIP, ep.Type)
	assert.Equal(t, "sip:alice@pbx", ep.Address)
}
