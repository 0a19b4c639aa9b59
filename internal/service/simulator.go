package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// SimulatorDevice represents an available simulator.
type SimulatorDevice struct {
	Name         string `json:"name"`
	UDID         string `json:"udid"`
	Runtime      string `json:"runtime"`        // e.g. "iOS 18.1"
	DeviceTypeID string `json:"device_type_id"` // e.g. "com.apple.CoreSimulator.SimDeviceType.iPhone-16-Pro"
}

// LaunchResult reports a simulator launch. Launch problems never fail a
// build; they are carried as warnings.
type LaunchResult struct {
	Launched  bool     `json:"launched"`
	Simulator string   `json:"simulator,omitempty"`
	Warnings  []string `json:"warnings,omitempty"`
}

// Launcher installs and starts a built app on an iOS simulator.
type Launcher struct {
	simulator string
	run       Runner
	logger    zerolog.Logger
}

// NewLauncher returns a Launcher. An empty simulator name picks the best
// available iPhone.
func NewLauncher(simulator string, logger zerolog.Logger) *Launcher {
	return &Launcher{simulator: simulator, run: execRunner, logger: logger}
}

// InstallAndLaunch boots the simulator, installs appPath and launches
// bundleID.
func (l *Launcher) InstallAndLaunch(ctx context.Context, appPath, bundleID string) LaunchResult {
	res := LaunchResult{}
	warn := func(format string, args ...any) LaunchResult {
		msg := fmt.Sprintf(format, args...)
		res.Warnings = append(res.Warnings, msg)
		l.logger.Warn().Str("simulator", res.Simulator).Msg(msg)
		return res
	}

	if appPath == "" {
		return warn("no app bundle to launch")
	}

	devices, err := l.ListSimulators(ctx)
	if err != nil {
		return warn("simulator unavailable: %v", err)
	}
	device, ok := pickSimulator(devices, l.simulator)
	if !ok {
		return warn("no available iPhone simulator")
	}
	res.Simulator = device.Name

	if out, err := l.run(ctx, "", "xcrun", "simctl", "boot", device.UDID); err != nil && !isAlreadyBootedSimError(err, out) {
		return warn("failed to boot simulator %s: %v%s", device.Name, err, commandOutputSuffix(out))
	}

	if out, err := l.run(ctx, "", "open", "-a", "Simulator"); err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("could not open Simulator.app: %v%s", err, commandOutputSuffix(out)))
	}

	if out, err := l.run(ctx, "", "xcrun", "simctl", "install", device.UDID, appPath); err != nil {
		return warn("failed to install app on simulator: %v%s", err, commandOutputSuffix(out))
	}

	if out, err := l.run(ctx, "", "xcrun", "simctl", "launch", device.UDID, bundleID); err != nil {
		return warn("failed to launch app %s on simulator: %v%s", bundleID, err, commandOutputSuffix(out))
	}

	res.Launched = true
	l.logger.Info().Str("simulator", device.Name).Str("bundle_id", bundleID).Msg("app launched")
	return res
}

// ListSimulators returns available iPhone simulators, newest runtime and
// best-ranked device first, one entry per device name.
func (l *Launcher) ListSimulators(ctx context.Context) ([]SimulatorDevice, error) {
	out, err := l.run(ctx, "", "xcrun", "simctl", "list", "devices", "available", "-j")
	if err != nil {
		return nil, fmt.Errorf("failed to list simulators: %w", err)
	}
	return parseSimulatorList(out)
}

func parseSimulatorList(out []byte) ([]SimulatorDevice, error) {
	var result struct {
		Devices map[string][]struct {
			Name                 string `json:"name"`
			UDID                 string `json:"udid"`
			IsAvailable          bool   `json:"isAvailable"`
			DeviceTypeIdentifier string `json:"deviceTypeIdentifier"`
		} `json:"devices"`
	}
	if err := json.Unmarshal(out, &result); err != nil {
		return nil, fmt.Errorf("failed to parse simulator list: %w", err)
	}

	var devices []SimulatorDevice
	for runtime, devs := range result.Devices {
		if !strings.Contains(runtime, "iOS") {
			continue
		}
		runtimeName := parseRuntimeName(runtime)
		for _, d := range devs {
			if !d.IsAvailable || rankSimulator(d.DeviceTypeIdentifier) < 0 {
				continue
			}
			devices = append(devices, SimulatorDevice{
				Name:         d.Name,
				UDID:         d.UDID,
				Runtime:      runtimeName,
				DeviceTypeID: d.DeviceTypeIdentifier,
			})
		}
	}

	sort.Slice(devices, func(i, j int) bool {
		if devices[i].Runtime != devices[j].Runtime {
			return devices[i].Runtime > devices[j].Runtime
		}
		ri := rankSimulator(devices[i].DeviceTypeID)
		rj := rankSimulator(devices[j].DeviceTypeID)
		if ri != rj {
			return ri > rj
		}
		return devices[i].Name < devices[j].Name
	})

	seen := map[string]bool{}
	var unique []SimulatorDevice
	for _, d := range devices {
		if seen[d.Name] {
			continue
		}
		seen[d.Name] = true
		unique = append(unique, d)
	}
	return unique, nil
}

// pickSimulator returns the device named want, or the best-ranked one when
// want is empty.
func pickSimulator(devices []SimulatorDevice, want string) (SimulatorDevice, bool) {
	if len(devices) == 0 {
		return SimulatorDevice{}, false
	}
	if want != "" {
		for _, d := range devices {
			if d.Name == want || d.UDID == want {
				return d, true
			}
		}
		return SimulatorDevice{}, false
	}
	best := devices[0]
	for _, d := range devices[1:] {
		if rankSimulator(d.DeviceTypeID) > rankSimulator(best.DeviceTypeID) {
			best = d
		}
	}
	return best, true
}

// rankSimulator scores an iPhone device type; higher is preferred and -1
// rejects the device. Type identifiers are used instead of marketing names,
// which change across Xcode versions.
func rankSimulator(deviceTypeID string) int {
	lower := strings.ToLower(deviceTypeID)
	if !strings.Contains(lower, "iphone") {
		return -1
	}
	switch {
	case strings.Contains(lower, "pro-max"):
		return 100
	case strings.Contains(lower, "pro"):
		return 90
	case strings.Contains(lower, "plus"):
		return 80
	case strings.Contains(lower, "air"):
		return 70
	case strings.Contains(lower, "se"):
		return 50
	default:
		return 75
	}
}

// parseRuntimeName converts "com.apple.CoreSimulator.SimRuntime.iOS-18-1" to "iOS 18.1".
func parseRuntimeName(runtime string) string {
	parts := strings.Split(runtime, "SimRuntime.")
	if len(parts) < 2 {
		return runtime
	}
	name := strings.Replace(parts[1], "-", " ", 1)
	return strings.ReplaceAll(name, "-", ".")
}

func isAlreadyBootedSimError(err error, output []byte) bool {
	if err == nil {
		return false
	}
	text := strings.ToLower(err.Error())
	if len(output) > 0 {
		text += " " + strings.ToLower(string(output))
	}
	return strings.Contains(text, "already booted") ||
		strings.Contains(text, "current state: booted")
}
