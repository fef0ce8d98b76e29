package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/wagiedev/esbuild-service-go/internal/errors"
)

const (
	// VersionCheckTimeout is the timeout for the esbuild version check command.
	VersionCheckTimeout = 2 * time.Second

	// executableName is the binary name looked up on PATH.
	executableName = "esbuild"
)

// provisionMu serializes copying executables into target directories.
var provisionMu sync.Mutex

// Config holds configuration for esbuild discovery.
type Config struct {
	// ExecutablePath is an explicit path that skips every other location.
	ExecutablePath string

	// Version names the provisioned executable and is compared against
	// `esbuild --version`.
	Version string

	// WorkDir holds the target/ and resources/ directories. If empty, the
	// current working directory is used.
	WorkDir string

	// SkipVersionCheck skips version validation during discovery.
	// Can also be controlled via ESBUILD_SKIP_VERSION_CHECK env var.
	SkipVersionCheck bool

	// OS and Arch override runtime.GOOS and runtime.GOARCH.
	OS   string
	Arch string

	// Logger is an optional logger for discovery operations.
	// If nil, a no-op logger is used.
	Logger *slog.Logger
}

// Discoverer locates and validates the esbuild binary.
type Discoverer interface {
	// Discover locates or provisions the esbuild binary and validates its
	// version. Returns the absolute path to the binary or an error.
	Discover(ctx context.Context) (string, error)
}

// discoverer implements the Discoverer interface.
type discoverer struct {
	cfg *Config
	log *slog.Logger
}

// Compile-time verification that discoverer implements Discoverer.
var _ Discoverer = (*discoverer)(nil)

// NewDiscoverer creates a new esbuild discoverer with the given configuration.
func NewDiscoverer(cfg *Config) Discoverer {
	if cfg == nil {
		cfg = &Config{}
	}

	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	return &discoverer{
		cfg: cfg,
		log: log.With("component", "discovery"),
	}
}

// Discover locates the esbuild binary and validates its version.
func (d *discoverer) Discover(ctx context.Context) (string, error) {
	d.log.Debug("Discovering esbuild binary")

	exePath, err := d.find()
	if err != nil {
		d.log.Error("Failed to find esbuild", "error", err)

		return "", err
	}

	d.log.Debug("Found esbuild binary", "path", exePath)

	d.checkVersion(ctx, exePath)

	return exePath, nil
}

// PlatformExecutableName returns the provisioned executable name for the
// given platform, e.g. esbuild-linux-x64-0.19.7 or esbuild-win32-x64-0.19.7.exe.
func PlatformExecutableName(goos, goarch, version string) (string, error) {
	var osName, extension string

	switch goos {
	case "linux", "darwin":
		osName = goos
	case "windows":
		osName, extension = "win32", ".exe"
	default:
		return "", &errors.UnsupportedPlatformError{OS: goos, Arch: goarch}
	}

	var arch string

	switch goarch {
	case "amd64":
		arch = "x64"
	case "arm64":
		arch = "arm64"
	default:
		return "", &errors.UnsupportedPlatformError{OS: goos, Arch: goarch}
	}

	return fmt.Sprintf("esbuild-%s-%s-%s%s", osName, arch, version, extension), nil
}

func (d *discoverer) find() (string, error) {
	// If explicit path provided, use it and only it
	if d.cfg.ExecutablePath != "" {
		d.log.Debug("Using explicit esbuild path", "path", d.cfg.ExecutablePath)

		if _, err := os.Stat(d.cfg.ExecutablePath); err == nil {
			return d.cfg.ExecutablePath, nil
		}

		return "", &errors.ExecutableNotFoundError{
			Name:          filepath.Base(d.cfg.ExecutablePath),
			SearchedPaths: []string{d.cfg.ExecutablePath},
		}
	}

	searchedPaths := make([]string, 0, 6)

	goos, goarch := d.platform()

	name, platformErr := PlatformExecutableName(goos, goarch, d.cfg.Version)
	if platformErr == nil {
		path, searched, err := d.provision(name)
		if err != nil {
			return "", err
		}

		if path != "" {
			return path, nil
		}

		searchedPaths = append(searchedPaths, searched...)
	} else {
		d.log.Debug("No provisioned executable for platform", "os", goos, "arch", goarch)
	}

	d.log.Debug("Searching for 'esbuild' in PATH")

	if path, err := exec.LookPath(executableName); err == nil {
		d.log.Debug("Found 'esbuild' in PATH", "path", path)

		return path, nil
	}

	searchedPaths = append(searchedPaths, "$PATH")

	commonPaths := []string{
		"/usr/local/bin/esbuild",
		"/usr/bin/esbuild",
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		commonPaths = append(commonPaths, filepath.Join(homeDir, ".local/bin/esbuild"))
	}

	for _, path := range commonPaths {
		searchedPaths = append(searchedPaths, path)

		if _, err := os.Stat(path); err == nil {
			d.log.Debug("Found esbuild at common path", "path", path)

			return path, nil
		}
	}

	if platformErr != nil {
		return "", platformErr
	}

	d.log.Warn("esbuild not found in any searched paths", "searched_paths", searchedPaths)

	return "", &errors.ExecutableNotFoundError{Name: name, SearchedPaths: searchedPaths}
}

func (d *discoverer) platform() (string, string) {
	goos, goarch := d.cfg.OS, d.cfg.Arch
	if goos == "" {
		goos = runtime.GOOS
	}

	if goarch == "" {
		goarch = runtime.GOARCH
	}

	return goos, goarch
}

// provision returns the target/ copy of name, creating it from resources/
// when needed. An empty path without error means neither location holds the
// executable.
func (d *discoverer) provision(name string) (string, []string, error) {
	workDir := d.cfg.WorkDir
	if workDir == "" {
		var err error
		if workDir, err = os.Getwd(); err != nil {
			return "", nil, fmt.Errorf("get working directory: %w", err)
		}
	}

	workDir, err := filepath.Abs(workDir)
	if err != nil {
		return "", nil, fmt.Errorf("resolve work dir: %w", err)
	}

	target := filepath.Join(workDir, "target", name)
	source := filepath.Join(workDir, "resources", name)

	provisionMu.Lock()
	defer provisionMu.Unlock()

	if _, err := os.Stat(target); err == nil {
		d.log.Debug("Using provisioned executable", "path", target)

		return target, nil, nil
	}

	if _, err := os.Stat(source); err != nil {
		return "", []string{target, source}, nil
	}

	d.log.Info("Provisioning esbuild executable", "source", source, "target", target)

	if err := copyExecutable(source, target); err != nil {
		return "", nil, &errors.ConnectionError{Err: fmt.Errorf("provision %s: %w", name, err)}
	}

	return target, nil, nil
}

func copyExecutable(source, target string) (err error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	in, err := os.Open(source)
	if err != nil {
		return err
	}
	defer in.Close()

	// Write to a temporary name so a concurrent process never runs a
	// partially copied file.
	tmp, err := os.CreateTemp(filepath.Dir(target), filepath.Base(target)+".*")
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err := io.Copy(tmp, in); err != nil {
		_ = tmp.Close()

		return err
	}

	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmp.Name(), 0o755); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), target)
}

// checkVersion compares `esbuild --version` with the configured version.
// Logs a warning on mismatch. Errors are silently ignored.
func (d *discoverer) checkVersion(ctx context.Context, exePath string) {
	if d.cfg.SkipVersionCheck {
		d.log.Debug("Skipping esbuild version check (configured)")

		return
	}

	if os.Getenv("ESBUILD_SKIP_VERSION_CHECK") != "" {
		d.log.Debug("Skipping esbuild version check (ESBUILD_SKIP_VERSION_CHECK set)")

		return
	}

	if d.cfg.Version == "" {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, VersionCheckTimeout)
	defer cancel()

	//nolint:gosec // G204: the executable path comes from discovery
	output, err := exec.CommandContext(ctx, exePath, "--version").Output()
	if err != nil {
		d.log.Debug("esbuild version check failed", "error", err)

		return
	}

	version := strings.TrimSpace(string(output))
	if version != d.cfg.Version {
		d.log.Warn("esbuild version differs from the requested service version",
			"version", version,
			"requested", d.cfg.Version,
		)

		return
	}

	d.log.Debug("esbuild version check passed", "version", version)
}
