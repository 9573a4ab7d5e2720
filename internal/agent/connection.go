// ABOUTME: Represents a single live agent connection worker and its state
// ABOUTME: Serializes API calls through a request channel and exposes a done signal

package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/openacd/cpx-gateway/internal/auth"
)

// Exit reasons observed by whoever is watching Done().
const (
	ExitNormal   = "normal"
	ExitShutdown = "shutdown"
)

// ErrTimeout indicates a blocking API call did not complete in time.
var ErrTimeout = errors.New("agent call timed out")

// ErrWorkerGone indicates the agent connection terminated before or during a call.
var ErrWorkerGone = errors.New("agent connection is gone")

// Agent states as reported to the client.
const (
	StateReleased = "released"
	StateIdle     = "idle"
	StateRinging  = "ringing"
	StateOnCall   = "oncall"
	StateWrapup   = "wrapup"
)

var validStates = map[string]bool{
	StateReleased: true,
	StateIdle:     true,
	StateRinging:  true,
	StateOnCall:   true,
	StateWrapup:   true,
}

// Reply is a worker's verbatim response to a forwarded API call.
type Reply struct {
	Status  int
	Headers map[string]string
	Body    []byte
}

// Event is a server-push item delivered to the client on the next poll.
type Event struct {
	ID      int            `json:"counter"`
	Command string         `json:"command"`
	Data    map[string]any `json:"data,omitempty"`
}

type apiRequest struct {
	op   string
	args []string
	resp chan Reply
}

// Connection is one logged-in agent's live worker. The gateway holds it only
// by handle; its lifetime is independent and observed through Done().
type Connection struct {
	ID       string
	Login    string
	Profile  string
	Security auth.Level
	Skills   []string

	mgr      *Manager
	requests chan *apiRequest
	done     chan struct{}
	stopOnce sync.Once
	logger   *slog.Logger

	mu         sync.Mutex
	state      string
	stateData  string
	endpoint   Endpoint
	events     []Event
	unacked    map[int]Event
	counter    int
	exitReason string
}

func newConnection(login string, claims *auth.Claims, mgr *Manager, logger *slog.Logger) *Connection {
	c := &Connection{
		ID:       uuid.New().String(),
		Login:    login,
		Profile:  claims.Profile,
		Security: claims.Security,
		Skills:   claims.Skills,
		mgr:       mgr,
		requests:  make(chan *apiRequest),
		done:      make(chan struct{}),
		logger:    logger,
		state:     StateReleased,
		stateData: "default",
		unacked:   make(map[int]Event),
	}
	return c
}

// run is the worker loop. All forwarded API calls are serialized here.
func (c *Connection) run() {
	for {
		select {
		case req := <-c.requests:
			req.resp <- c.handle(req.op, req.args)
		case <-c.done:
			return
		}
	}
}

// API forwards an operation to the worker and blocks until it replies, the
// context expires, or the worker goes away. Timeouts come back as ErrTimeout
// so the caller can surface a server error instead of hanging.
func (c *Connection) API(ctx context.Context, op string, args []string) (Reply, error) {
	req := &apiRequest{
		op:   op,
		args: args,
		resp: make(chan Reply, 1),
	}

	select {
	case c.requests <- req:
	case <-c.done:
		return Reply{}, ErrWorkerGone
	case <-ctx.Done():
		return Reply{}, timeoutErr(ctx)
	}

	select {
	case reply := <-req.resp:
		return reply, nil
	case <-c.done:
		return Reply{}, ErrWorkerGone
	case <-ctx.Done():
		return Reply{}, timeoutErr(ctx)
	}
}

func timeoutErr(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrTimeout
	}
	return ctx.Err()
}

// handle executes one API operation. Runs only on the worker goroutine.
func (c *Connection) handle(op string, args []string) Reply {
	switch op {
	case "poll":
		return c.handlePoll()
	case "state":
		return c.handleState(args)
	case "ack":
		return c.handleAck(args)
	case "err":
		return c.handleErr(args)
	case "dial":
		return c.handleDial(args)
	case "supervisor":
		return c.handleSupervisor(args)
	default:
		return failReply(fmt.Sprintf("unknown api call %q", op))
	}
}

func (c *Connection) handlePoll() Reply {
	c.mu.Lock()
	events := c.events
	c.events = nil
	c.mu.Unlock()

	if events == nil {
		events = []Event{}
	}
	return okReply(map[string]any{
		"success": true,
		"data":    events,
	})
}

func (c *Connection) handleState(args []string) Reply {
	if len(args) == 0 {
		return failReply("missing state name")
	}
	name := args[0]
	if !validStates[name] {
		return failReply(fmt.Sprintf("unknown state %q", name))
	}

	data := ""
	if len(args) > 1 {
		data = args[1]
	}

	c.mu.Lock()
	c.state = name
	c.stateData = data
	c.pushEventLocked("astate", map[string]any{
		"state":     name,
		"statedata": data,
	})
	c.mu.Unlock()

	c.logger.Debug("agent state changed", "login", c.Login, "state", name, "statedata", data)
	return okReply(map[string]any{"success": true})
}

func (c *Connection) handleAck(args []string) Reply {
	n, err := parseCounter(args)
	if err != nil {
		return failReply(err.Error())
	}
	c.mu.Lock()
	delete(c.unacked, n)
	c.mu.Unlock()
	return okReply(map[string]any{"success": true})
}

func (c *Connection) handleErr(args []string) Reply {
	n, err := parseCounter(args)
	if err != nil {
		return failReply(err.Error())
	}
	msg := ""
	if len(args) > 1 {
		msg = args[1]
	}
	c.mu.Lock()
	delete(c.unacked, n)
	c.mu.Unlock()
	c.logger.Warn("client reported event error", "login", c.Login, "counter", n, "message", msg)
	return okReply(map[string]any{"success": true})
}

func (c *Connection) handleDial(args []string) Reply {
	if len(args) == 0 || args[0] == "" {
		return failReply("missing number")
	}
	number := args[0]

	c.mu.Lock()
	if c.state != StateIdle && c.state != StateReleased {
		state := c.state
		c.mu.Unlock()
		return failReply(fmt.Sprintf("cannot dial while %s", state))
	}
	c.state = StateOnCall
	c.stateData = number
	c.pushEventLocked("astate", map[string]any{
		"state":     StateOnCall,
		"statedata": number,
	})
	c.mu.Unlock()

	c.logger.Info("agent originated call", "login", c.Login, "number", number)
	return okReply(map[string]any{"success": true})
}

func (c *Connection) handleSupervisor(args []string) Reply {
	if c.Security < auth.LevelSupervisor {
		return failReply("insufficient security level")
	}
	if len(args) == 0 {
		return failReply("missing supervisor request")
	}

	switch args[0] {
	case "status":
		return okReply(map[string]any{
			"success": true,
			"agents":  c.mgr.Statuses(),
		})
	default:
		return failReply(fmt.Sprintf("unknown supervisor request %q", args[0]))
	}
}

// pushEventLocked queues a push event. Caller must hold c.mu.
func (c *Connection) pushEventLocked(command string, data map[string]any) {
	c.counter++
	ev := Event{ID: c.counter, Command: command, Data: data}
	c.events = append(c.events, ev)
	c.unacked[ev.ID] = ev
}

// SetEndpoint binds the media endpoint descriptor onto the worker.
func (c *Connection) SetEndpoint(ep Endpoint) {
	c.mu.Lock()
	c.endpoint = ep
	c.mu.Unlock()
	c.logger.Debug("endpoint bound", "login", c.Login, "type", ep.Type.String(), "address", ep.Address)
}

// Endpoint returns the currently bound media endpoint.
func (c *Connection) Endpoint() Endpoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.endpoint
}

// DumpState returns a synchronous snapshot of the agent's login, state,
// and state data.
func (c *Connection) DumpState() (login, state, stateData string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Login, c.state, c.stateData
}

// Logout stops the worker with a clean exit.
func (c *Connection) Logout() {
	c.Stop(ExitNormal)
}

// Stop terminates the worker with the given exit reason. Safe to call more
// than once; only the first reason sticks.
func (c *Connection) Stop(reason string) {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		c.exitReason = reason
		c.mu.Unlock()
		close(c.done)
	})
}

// Done is closed when the worker terminates for any reason.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// ExitReason reports why the worker stopped. Empty until Done is closed.
func (c *Connection) ExitReason() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exitReason
}

func parseCounter(args []string) (int, error) {
	if len(args) == 0 {
		return 0, errors.New("missing counter")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("invalid counter %q", args[0])
	}
	return n, nil
}

func okReply(body any) Reply {
	data, err := json.Marshal(body)
	if err != nil {
		// Only reachable if body contains an unmarshalable type, which
		// would be a programming error in the worker itself.
		return failReply("internal encoding error")
	}
	return Reply{
		Status:  http.StatusOK,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    data,
	}
}

func failReply(message string) Reply {
	body, _ := json.Marshal(map[string]any{
		"success": false,
		"message": message,
	})
	return Reply{
		Status:  http.StatusOK,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    body,
	}
}
