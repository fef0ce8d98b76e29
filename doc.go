// Package esbuild drives a long-running esbuild process in service mode.
//
// The service speaks a length-prefixed binary protocol over the process's
// stdin and stdout. This package encodes transform requests, correlates the
// asynchronously arriving responses by request id, answers the service's
// keepalive pings and shares one process between all callers of a Registry.
//
// # Transforming
//
// Start acquires the shared service; every Start must be paired with Stop:
//
//	ctx := context.Background()
//	service, err := esbuild.Start(ctx, esbuild.WithWorkDir("."))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer service.Stop()
//
//	future, err := service.Transform(ctx, "app.ts", source, "--platform=browser")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := future.Wait(ctx)
//	if err != nil {
//	    log.Fatal(err) // transport or protocol failure
//	}
//
//	if !result.OK() {
//	    fmt.Println(result.Error) // syntax error with line and column
//	}
//
// Transforms may be issued from any number of goroutines; their responses
// arrive in whatever order the service produces them. A compile error is a
// result, not a Go error.
//
// # Lifecycle
//
// The first Start spawns esbuild, later calls join the running process and
// increment a reference count. The last Stop terminates the process and fails
// any transform still waiting with ErrServiceStopped. WithService wraps the
// pairing for callers that need the service for one block of work.
//
// # One-shot runs
//
// Run invokes esbuild once with command line arguments, e.g. to bundle:
//
//	output, err := esbuild.Run(ctx, ".", []string{"src/app.ts", "--bundle", "--outfile=out.js"})
//
// # Locating esbuild
//
// The executable is taken from WithExecutablePath, or from
// <workdir>/target/esbuild-<os>-<arch>-<version>, which is provisioned from
// <workdir>/resources/ on first use, or from the PATH.
package esbuild
