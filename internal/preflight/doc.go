// Package preflight runs readiness checks for the data directories and the
// configured delivery channels. `crmflow status` renders the results.
package preflight
