// Package errors provides structured, coded errors for the devd engine.
//
// Every error raised across a component boundary carries a code that maps to
// a registered template:
//   - config: configuration errors, fatal before the server starts (E120-E139)
//   - build: toolchain and build scheduling errors (E200-E219)
//   - watch: filesystem watcher errors (E220-E239)
//   - server/transport: lifecycle and client delivery errors (E240-E259)
//   - cli: command line errors (E260-E279)
//
// # Usage
//
//	err := errors.New("E122").
//	    WithDetail("port 70000 is out of range").
//	    WithSuggestion("Use a port between 1 and 65535")
//
//	fmt.Println(err.Format())
//
// Location-aware errors read a few lines of surrounding source so the
// terminal output can point at the offending column:
//
//	err := errors.New("E200").WithLocation("src/a.ts", 10, 5)
package errors
