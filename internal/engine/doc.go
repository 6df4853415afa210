// Package engine assembles the stage controller, timeline recorder,
// notification router and reminder scheduler from configuration so the
// daemon, IPC server and tests share one wiring.
package engine
