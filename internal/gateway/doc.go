// Package gateway is the front-door session gateway: it classifies inbound
// request paths, resolves browser sessions by cookie, runs the salted
// challenge-response login handshake, and multiplexes authenticated requests
// to the bound agent connection worker.
//
// # Request flow
//
// Every request passes through the Dispatcher:
//
//  1. The Classifier maps the URL path to either a StaticRequest (a file
//     under the agent or contrib tree) or an APIRequest (a closed Operation
//     variant with positional arguments).
//  2. Static serves resolve or mint a cpx_id session cookie, attach a
//     best-effort cpx_lang locale cookie, and stream the file.
//  3. API calls resolve the session record. An unknown token answers 403
//     with a fresh cookie (checkcookie instead mints a record and reports
//     failure at 200).
//  4. Bootstrap operations (checkcookie, getsalt, login, logout, brandlist,
//     releaseopts) are handled in handshake.go regardless of authentication
//     state. Everything else requires a bound connection and is forwarded
//     to the worker, whose reply is returned verbatim.
//
// # Handshake
//
// The login protocol is a three-step exchange per session:
//
//	getsalt  -> server stores and returns a fresh random numeric salt
//	login    -> client posts username + hex(md5(salt + hex(md5(password))))
//	checkcookie -> reports login name and state once authenticated
//
// A failed login leaves the session record untouched; the salt stays usable
// until the next getsalt. Logout abandons the token entirely and issues a
// brand-new anonymous one.
//
// # Lifecycle
//
// The Supervisor watches every connection the handshake provisions. A clean
// worker exit purges any registry records still pointing at the handle; an
// abnormal exit is logged and its records are discovered stale on next use.
package gateway
