// Package diag serves read-only diagnostics for a running node.
//
// Endpoints:
//
//	GET /status   current Status as JSON
//	GET /ws       websocket pushing a Status every Interval
//	GET /healthz  "ok"
//
// Status combines the advertised registry with a scheduler Snapshot. Nothing
// in the node reads these values back; the server only observes.
//
// # Usage Example
//
//	srv := diag.New(diag.Config{Listen: "127.0.0.1:8086"}, sources)
//	if err := srv.Start(); err != nil {
//	    log.Fatal(err)
//	}
//	defer srv.Shutdown(context.Background())
//
// The monitor command consumes /ws through Dial.
package diag
