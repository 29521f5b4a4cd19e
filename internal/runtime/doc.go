// Package runtime wires configuration, the journal store and logging into
// one object the drain driver and CLI share.
//
// Example:
//
//	cfg := config.Default()
//	cfg.WorkFile = "/var/log/detail.work"
//	rt, _ := runtime.Open(runtime.Options{Config: cfg, JournalDir: "./journal"})
//	defer rt.Close()
//	s, _ := rt.OpenSession(cfg.WorkFile)
//	defer s.ForceClose()
package runtime
