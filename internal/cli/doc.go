// Package cli provides esbuild discovery, provisioning, version validation and
// command building for the esbuild binary.
//
// This package provides three main capabilities:
//
// # Discovery and Provisioning
//
// The Discoverer interface locates the esbuild binary:
//
//	discoverer := cli.NewDiscoverer(&cli.Config{
//	    Version: "0.19.7",
//	    WorkDir: workDir,
//	    Logger:  slog.Default(),
//	})
//	exePath, err := discoverer.Discover(ctx)
//
// Discovery searches in the following order:
//  1. Explicit path in Config.ExecutablePath (if provided, nothing else is tried)
//  2. The provisioned copy <WorkDir>/target/esbuild-<os>-<arch>-<version>[.exe]
//  3. <WorkDir>/resources/<same name>, copied into target/ and made executable
//  4. esbuild on the system PATH
//  5. Common installation directories (/usr/local/bin, /usr/bin, ~/.local/bin)
//
// Steps 2 and 3 need a supported platform (linux, darwin or windows on amd64
// or arm64); on other platforms they are skipped, and UnsupportedPlatformError
// is returned when nothing else matched either.
//
// # Version Validation
//
// After discovery `esbuild --version` is compared against Config.Version and a
// warning is logged on mismatch. Checking can be skipped via
// Config.SkipVersionCheck or the ESBUILD_SKIP_VERSION_CHECK environment
// variable.
//
// # Command Building
//
//	args := cli.ServiceArgs(version)  // --service=<version> --ping
//	args := cli.RunArgs(userArgs)     // --color=false <userArgs...>
//	env := cli.BuildEnvironment(extra)
package cli
