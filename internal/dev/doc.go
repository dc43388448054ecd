// Package dev provides the development server.
//
// The Server owns the HTTP listener and wires the other engine components
// together:
//
//   - watch: debounced file change events trigger a build and a reload
//   - build: one build at a time, results are logged, timed and broadcast
//   - logs: every engine log line lands in a ring buffer served at /api/logs
//   - metrics: request, error and build counters served at /api/status and
//     /metrics
//   - reload: connected clients receive reload, build, log, metrics and
//     error messages over /ws
//
// # Lifecycle
//
//	idle → starting → running → stopping → stopped
//
// Any failure while starting moves the server to the error state and is
// returned from Start. Start is valid from idle, stopped or error.
//
// # Usage
//
//	srv := dev.NewServer(dev.ServerOptions{Config: cfg})
//	if err := srv.Start(ctx); err != nil {
//	    return err
//	}
//	defer srv.Stop(context.Background())
//
// # HTTP Surface
//
//	GET      /api/status        uptime, metrics, clients and last build
//	GET|POST /api/build         run a build and return its result
//	GET      /api/logs          buffered log entries (level, source, since)
//	DELETE   /api/logs          clear the log buffer
//	GET      /ws                hot reload WebSocket
//	GET      /metrics           Prometheus exposition
//	GET      /__devd/client.js  hot reload client script
//	GET      /*                 public dir, then dist dir, then dashboard
package dev
