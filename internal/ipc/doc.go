// Package ipc exposes the daemon over JSON-RPC on a Unix domain socket.
//
// The server registers the CRMFlow service; the client offers one typed
// method per RPC for the CLI. Errors cross the socket as strings, so the
// taxonomy prefix of a services error ("not found: ...") is the only kind
// information clients receive.
package ipc
