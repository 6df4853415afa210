// Package logs reads the daemon log file for `crmflow logs`: the last N
// lines, incremental reads from a byte offset, and a polling follow mode that
// survives truncation.
package logs
