// Package daemonctl launches, stops and inspects the crmflow daemon on behalf
// of the CLI, talking to it over the IPC socket and falling back to local
// checks when it is not running.
package daemonctl
