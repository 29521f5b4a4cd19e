// Package drainrun is the caller side of a detail session: it opens the work
// file through the runtime, reads and acknowledges every record, journals each
// acknowledgment and stops once the session is drained or the context ends.
//
// Example:
//
//	cfg := config.Default()
//	cfg.WorkFile = "/var/log/radius/detail.work"
//	stats, err := drainrun.Run(ctx, drainrun.Options{Config: cfg})
package drainrun
