// Package pebblestore is the small Pebble wrapper the acknowledgment journal
// is stored in. It fixes commit durability at open time and adds prefix scans.
//
// Usage:
//
//	db, err := pebblestore.Open(pebblestore.Options{
//	    Dir:   "./journal",
//	    Fsync: pebblestore.FsyncModeAlways,
//	})
//	if err != nil { /* handle */ }
//	defer db.Close()
//
//	_ = db.Set([]byte("wf/a/cursor"), v)
//	_ = db.Scan([]byte("wf/a/ack/"), true, func(k, v []byte) bool { return true })
package pebblestore
