// ABOUTME: Tests for the path classifier covering every routing rule
// ABOUTME: Table-driven over named ops, positional patterns, and static fallbacks

package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testClassifier(existing ...string) *Classifier {
	present := make(map[string]bool, len(existing))
	for _, p := range existing {
		present[p] = true
	}
	return &Classifier{
		AgentRoot:   "/srv/agent",
		ContribRoot: "/srv/contrib",
		Exists:      func(path string) bool { return present[path] },
	}
}

func TestClassify(t *testing.T) {
	c := testClassifier("/srv/agent/lib/app.js")

	tests := []struct {
		name string
		path string
		want Request
	}{
		{"root serves index", "/", StaticRequest{Name: "index.html", Root: "/srv/agent"}},

		{"poll", "/poll", APIRequest{Op: OpPoll}},
		{"logout", "/logout", APIRequest{Op: OpLogout}},
		{"login", "/login", APIRequest{Op: OpLogin}},
		{"getsalt", "/getsalt", APIRequest{Op: OpGetSalt}},
		{"releaseopts", "/releaseopts", APIRequest{Op: OpReleaseOpts}},
		{"brandlist", "/brandlist", APIRequest{Op: OpBrandList}},
		{"checkcookie", "/checkcookie", APIRequest{Op: OpCheckCookie}},

		{"state with name", "/state/idle", APIRequest{Op: OpState, Args: []string{"idle"}}},
		{"state with data", "/state/released/lunch", APIRequest{Op: OpState, Args: []string{"released", "lunch"}}},
		{"ack", "/ack/42", APIRequest{Op: OpAck, Args: []string{"42"}}},
		{"err without message", "/err/7", APIRequest{Op: OpErr, Args: []string{"7"}}},
		{"err with message", "/err/7/oops", APIRequest{Op: OpErr, Args: []string{"7", "oops"}}},
		{"dial", "/dial/5551234", APIRequest{Op: OpDial, Args: []string{"5551234"}}},
		{"supervisor status", "/supervisor/status", APIRequest{Op: OpSupervisor, Args: []string{"status"}}},
		{"supervisor deep", "/supervisor/spy/alice", APIRequest{Op: OpSupervisor, Args: []string{"spy", "alice"}}},

		// Wrong arity falls through to static lookup.
		{"bare state is static", "/state", StaticRequest{Name: "state", Root: "/srv/contrib"}},
		{"state too deep is static", "/state/a/b/c", StaticRequest{Name: "state/a/b/c", Root: "/srv/contrib"}},
		{"bare ack is static", "/ack", StaticRequest{Name: "ack", Root: "/srv/contrib"}},
		{"ack too deep is static", "/ack/1/2", StaticRequest{Name: "ack/1/2", Root: "/srv/contrib"}},
		{"bare dial is static", "/dial", StaticRequest{Name: "dial", Root: "/srv/contrib"}},
		{"bare supervisor is static", "/supervisor", StaticRequest{Name: "supervisor", Root: "/srv/contrib"}},

		// Named ops only match as a single segment.
		{"nested poll is static", "/poll/extra", StaticRequest{Name: "poll/extra", Root: "/srv/contrib"}},

		// Existence probe picks the agent tree over contrib.
		{"file present under agent root", "/lib/app.js", StaticRequest{Name: "lib/app.js", Root: "/srv/agent"}},
		{"file absent falls to contrib", "/lib/vendor.js", StaticRequest{Name: "lib/vendor.js", Root: "/srv/contrib"}},
		{"plain file", "/style.css", StaticRequest{Name: "style.css", Root: "/srv/contrib"}},

		// Traversal attempts resolve to an empty name so the dispatcher 404s.
		{"parent traversal", "/../etc/passwd", StaticRequest{Name: "", Root: "/srv/agent"}},
		{"nested traversal", "/a/../../etc/passwd", StaticRequest{Name: "", Root: "/srv/agent"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.path))
		})
	}
}

func TestClassify_CleansDotSegments(t *testing.T) {
	c := testClassifier()

	got := c.Classify("/lib/./app.js")
	assert.Equal(t, StaticRequest{Name: "lib/app.js", Root: "/srv/contrib"}, got)
}

func TestOperationString(t *testing.T) {
	tests := []struct {
		op   Operation
		want string
	}{
		{OpPoll, "poll"},
		{OpLogout, "logout"},
		{OpLogin, "login"},
		{OpGetSalt, "getsalt"},
		{OpReleaseOpts, "releaseopts"},
		{OpBrandList, "brandlist"},
		{OpCheckCookie, "checkcookie"},
		{OpState, "state"},
		{OpAck, "ack"},
		{OpErr, "err"},
		{OpDial, "dial"},
		{OpSupervisor, "supervisor"},
		{Operation(99), "unknown"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.op.String())
	}
}
