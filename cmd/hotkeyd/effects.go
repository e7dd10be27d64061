package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
)

// ============================================================================
// Action Sink - side effect execution
// ============================================================================
// The sink is the only layer that touches power-state, backlight, and mixer
// control surfaces. The state machine never performs I/O; the monitor loop
// hands it actions through runAction. Failures are logged and swallowed:
// the device keeps monitoring whatever still works.
// ============================================================================

// ActionSink is the abstract capability set the state machine emits into.
// Implementations must be effectively synchronous and tolerate repeated calls.
type ActionSink interface {
	Suspend() error
	SetBrightness(percent int) error
	AdjustVolume(deltaPercent int) error
}

// runAction executes one action against the sink. Shutdown is never executed
// here; it is reported back so the caller's main loop can terminate and run
// the poweroff sequence itself.
func runAction(sink ActionSink, act Action, logger *slog.Logger) (shutdown bool) {
	switch a := act.(type) {
	case Shutdown:
		return true

	case Suspend:
		if err := sink.Suspend(); err != nil {
			logger.Error("suspend failed", "error", err)
		}

	case SetBrightness:
		if err := sink.SetBrightness(a.Percent); err != nil {
			logger.Error("set brightness failed", "percent", a.Percent, "error", err)
		}

	case AdjustVolume:
		if err := sink.AdjustVolume(a.DeltaPercent); err != nil {
			logger.Error("adjust volume failed", "delta", a.DeltaPercent, "error", err)
		}

	case SetBacklight:
		// State-only action; handled by the monitor before reaching here.

	default:
		logger.Warn("unknown action type", "action", act.String())
	}
	return false
}

// sysfsSink is the real sink: sysfs writes for suspend and backlight, amixer
// for the mixer volume.
type sysfsSink struct {
	suspendPath  string
	suspendValue string

	brightnessPath string

	mixerCmd  string
	mixerArgs []string

	logger *slog.Logger
}

func newSysfsSink(cfg *Config, logger *slog.Logger) *sysfsSink {
	return &sysfsSink{
		suspendPath:    cfg.Power.SuspendPath,
		suspendValue:   cfg.Power.SuspendValue,
		brightnessPath: cfg.Backlight.BrightnessPath,
		mixerCmd:       cfg.Volume.MixerCmd,
		mixerArgs:      cfg.Volume.MixerArgs,
		logger:         logger,
	}
}

// Suspend writes the suspend value to the power-state node. The write blocks
// until the system resumes, which is exactly the synchronous behavior the
// debounce logic relies on.
func (s *sysfsSink) Suspend() error {
	s.logger.Info("suspending", "path", s.suspendPath, "value", s.suspendValue)
	if err := os.WriteFile(s.suspendPath, []byte(s.suspendValue+"\n"), 0o644); err != nil {
		return fmt.Errorf("write power state: %w", err)
	}
	return nil
}

// SetBrightness scales the percent to the kernel's 0-255 range and writes it
// to the backlight node.
func (s *sysfsSink) SetBrightness(percent int) error {
	raw := percent * 255 / 100
	s.logger.Info("setting brightness", "percent", percent, "raw", raw)
	if err := os.WriteFile(s.brightnessPath, []byte(strconv.Itoa(raw)+"\n"), 0o644); err != nil {
		return fmt.Errorf("write backlight: %w", err)
	}
	return nil
}

// AdjustVolume shells out to the mixer tool with a relative percent change,
// e.g. `amixer -q -c 0 sset Master 5%+`.
func (s *sysfsSink) AdjustVolume(deltaPercent int) error {
	var vol string
	if deltaPercent >= 0 {
		vol = fmt.Sprintf("%d%%+", deltaPercent)
	} else {
		vol = fmt.Sprintf("%d%%-", -deltaPercent)
	}

	args := append(append([]string{}, s.mixerArgs...), vol)
	s.logger.Debug("adjusting volume", "cmd", s.mixerCmd, "args", args)
	if err := exec.Command(s.mixerCmd, args...).Run(); err != nil {
		return fmt.Errorf("run %s: %w", s.mixerCmd, err)
	}
	return nil
}
