// ABOUTME: Pure path classification mapping request paths to typed operations
// ABOUTME: Closed operation variants give compile-time exhaustiveness in the dispatcher

package gateway

import (
	"path"
	"path/filepath"
	"strings"
)

// Operation enumerates every recognized API operation.
type Operation int

const (
	OpPoll Operation = iota
	OpLogout
	OpLogin
	OpGetSalt
	OpReleaseOpts
	OpBrandList
	OpCheckCookie
	OpState
	OpAck
	OpErr
	OpDial
	OpSupervisor
)

func (o Operation) String() string {
	switch o {
	case OpPoll:
		return "poll"
	case OpLogout:
		return "logout"
	case OpLogin:
		return "login"
	case OpGetSalt:
		return "getsalt"
	case OpReleaseOpts:
		return "releaseopts"
	case OpBrandList:
		return "brandlist"
	case OpCheckCookie:
		return "checkcookie"
	case OpState:
		return "state"
	case OpAck:
		return "ack"
	case OpErr:
		return "err"
	case OpDial:
		return "dial"
	case OpSupervisor:
		return "supervisor"
	default:
		return "unknown"
	}
}

// Request is a classified inbound request: either a static file to serve or
// a named API operation with its positional parameters.
type Request interface {
	request()
}

// StaticRequest names a file to serve and the root tree to serve it from.
type StaticRequest struct {
	Name string
	Root string
}

// APIRequest names an API operation and its captured path segments.
type APIRequest struct {
	Op   Operation
	Args []string
}

func (StaticRequest) request() {}
func (APIRequest) request()    {}

var namedOps = map[string]Operation{
	"poll":        OpPoll,
	"logout":      OpLogout,
	"login":       OpLogin,
	"getsalt":     OpGetSalt,
	"releaseopts": OpReleaseOpts,
	"brandlist":   OpBrandList,
	"checkcookie": OpCheckCookie,
}

// Classifier maps URL paths to typed requests. Exists is the single boundary
// call it makes: a filesystem-existence probe used to pick the agent tree
// over the contrib tree for unmatched paths.
type Classifier struct {
	AgentRoot   string
	ContribRoot string
	Exists      func(path string) bool
}

// Classify maps a URL path to a StaticRequest or APIRequest.
func (c *Classifier) Classify(p string) Request {
	if p == "/" {
		return StaticRequest{Name: "index.html", Root: c.AgentRoot}
	}

	trimmed := strings.TrimPrefix(p, "/")
	segments := strings.Split(trimmed, "/")

	if len(segments) == 1 {
		if op, ok := namedOps[segments[0]]; ok {
			return APIRequest{Op: op}
		}
	}

	if req, ok := classifySegments(segments); ok {
		return req
	}

	return c.classifyStatic(trimmed)
}

// classifySegments matches the positional path-segment patterns. A head that
// matches with the wrong arity falls through to static lookup.
func classifySegments(segments []string) (APIRequest, bool) {
	head, rest := segments[0], segments[1:]
	switch head {
	case "state":
		if len(rest) == 1 || len(rest) == 2 {
			return APIRequest{Op: OpState, Args: rest}, true
		}
	case "ack":
		if len(rest) == 1 {
			return APIRequest{Op: OpAck, Args: rest}, true
		}
	case "err":
		if len(rest) == 1 || len(rest) == 2 {
			return APIRequest{Op: OpErr, Args: rest}, true
		}
	case "dial":
		if len(rest) == 1 {
			return APIRequest{Op: OpDial, Args: rest}, true
		}
	case "supervisor":
		if len(rest) >= 1 {
			return APIRequest{Op: OpSupervisor, Args: rest}, true
		}
	}
	return APIRequest{}, false
}

// classifyStatic resolves an unmatched path against the two static trees:
// the agent tree wins when the file exists there, otherwise contrib.
func (c *Classifier) classifyStatic(name string) StaticRequest {
	clean := path.Clean(name)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		// Traversal attempt; empty name makes the dispatcher answer 404.
		return StaticRequest{Name: "", Root: c.AgentRoot}
	}

	root := c.ContribRoot
	if c.Exists(filepath.Join(c.AgentRoot, filepath.FromSlash(clean))) {
		root = c.AgentRoot
	}
	return StaticRequest{Name: clean, Root: root}
}
