// Package daemonrun hosts the long-running daemon process: logging setup, pid
// file, store and engine construction, IPC server and signal handling.
package daemonrun
