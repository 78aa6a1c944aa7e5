// Package capability decides whether the hosting environment supports
// the nested, broker-mediated authentication protocol.
package capability

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/tasksuite/addin-auth/internal/host"
)

// Thresholds holds the minimum desktop host versions that support
// nested auth. The values come from vendor changelog data and have no
// derivation beyond that, so they stay configurable rather than
// hard-coded invariants.
type Thresholds struct {
	// WindowsMinBuild is the minimum build number on Windows hosts,
	// compared against the third segment of a "16.0.<build>.<rev>"
	// version string.
	WindowsMinBuild int `yaml:"windows_min_build"`

	// MacMinVersion is the minimum "major.minor" version on Mac hosts.
	MacMinVersion string `yaml:"mac_min_version"`
}

// DefaultThresholds returns the known-good minimums.
func DefaultThresholds() Thresholds {
	return Thresholds{
		WindowsMinBuild: 13530,
		MacMinVersion:   "16.52",
	}
}

// Detector inspects host diagnostics once during initialization.
type Detector struct {
	bridge     host.Bridge
	thresholds Thresholds
	logger     *slog.Logger
}

// New creates a Detector. bridge may be nil when the add-in is not
// running inside the expected host; detection then reports unsupported.
func New(bridge host.Bridge, thresholds Thresholds, logger *slog.Logger) *Detector {
	return &Detector{
		bridge:     bridge,
		thresholds: thresholds,
		logger:     logger,
	}
}

// DetectNestedAuthSupport reports whether the nested-auth path is
// usable. It never fails: every error is absorbed and mapped to false,
// and unknown platforms are optimistically true so nested auth can be
// attempted and fail gracefully downstream.
func (d *Detector) DetectNestedAuthSupport(ctx context.Context) bool {
	if d.bridge == nil {
		d.logger.Debug("no host integration context, nested auth unsupported")
		return false
	}

	if err := d.bridge.Ready(ctx); err != nil {
		d.logger.Warn("host never signaled ready", slog.String("error", err.Error()))
		return false
	}

	diag, err := d.bridge.Diagnostics(ctx)
	if err != nil {
		d.logger.Warn("reading host diagnostics failed", slog.String("error", err.Error()))
		return false
	}

	supported := d.evaluate(diag)
	d.logger.Info("nested auth capability detected",
		slog.String("platform", diag.Platform),
		slog.String("version", diag.Version),
		slog.Bool("supported", supported),
	)

	return supported
}

func (d *Detector) evaluate(diag host.Diagnostics) bool {
	if host.IsWebPlatform(diag.Platform) {
		return true
	}

	switch diag.Platform {
	case host.PlatformPC:
		ok, err := windowsSupports(diag.Version, d.thresholds.WindowsMinBuild)
		if err != nil {
			d.logger.Warn("unparseable Windows host version",
				slog.String("version", diag.Version),
				slog.String("error", err.Error()),
			)

			return false
		}

		return ok

	case host.PlatformMac:
		ok, err := macSupports(diag.Version, d.thresholds.MacMinVersion)
		if err != nil {
			d.logger.Warn("unparseable Mac host version",
				slog.String("version", diag.Version),
				slog.String("error", err.Error()),
			)

			return false
		}

		return ok
	}

	// Unknown platform: attempt nested auth and let it fail downstream.
	return true
}

// windowsSupports compares a "16.0.<build>.<rev>" version string
// against the minimum build number.
func windowsSupports(version string, minBuild int) (bool, error) {
	parts := strings.Split(version, ".")
	if len(parts) < 3 {
		return false, fmt.Errorf("expected at least 3 version segments, got %q", version)
	}

	build, err := strconv.Atoi(parts[2])
	if err != nil {
		return false, fmt.Errorf("parsing build segment of %q: %w", version, err)
	}

	return build >= minBuild, nil
}

// macSupports compares "major.minor[.patch]" version strings.
func macSupports(version, minVersion string) (bool, error) {
	major, minor, err := majorMinor(version)
	if err != nil {
		return false, err
	}

	minMajor, minMinor, err := majorMinor(minVersion)
	if err != nil {
		return false, err
	}

	if major != minMajor {
		return major > minMajor, nil
	}

	return minor >= minMinor, nil
}

func majorMinor(version string) (int, int, error) {
	parts := strings.Split(version, ".")
	if len(parts) < 2 {
		return 0, 0, fmt.Errorf("expected at least 2 version segments, got %q", version)
	}

	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("parsing major segment of %q: %w", version, err)
	}

	minor, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("parsing minor segment of %q: %w", version, err)
	}

	return major, minor, nil
}
