package main

import "time"

// This file implements the button/switch state machine as a pure reducer:
//
//   - reduceEvent(): one raw edge in, zero or more Actions out
//   - checkLongHold(): end-of-tick re-check of an already-held power button
//
// Rules:
// - Must not perform I/O
// - Must not block
// - Must not mutate anything outside ButtonState
//
// The monitor loop is the only caller; it executes the returned Actions
// through the action sink and owns the ButtonState for the process lifetime.
// All timestamps are time.Time values produced by the same loop, so duration
// arithmetic uses the monotonic clock reading and is immune to wall-clock
// adjustments.

// Thresholds holds the timing and range knobs the reducer operates with.
type Thresholds struct {
	// LongPress is the minimum power-button hold duration that turns a
	// press into a Shutdown request.
	LongPress time.Duration

	// WakeDebounce is the minimum spacing between two suspend/wake
	// actions triggered by short power presses.
	WakeDebounce time.Duration

	// Brightness ladder (percent).
	BrightnessMin  int
	BrightnessMax  int
	BrightnessStep int

	// Mixer volume step per press (percent).
	VolumeStep int
}

// ButtonState is the process-lifetime state of the button/switch machine.
// It is mutated only by the monitor loop, one event at a time.
type ButtonState struct {
	// ModeHeld is a plain level: true between a press-or-repeat and the
	// matching release. It has no timing behavior of its own; it only
	// gates the volume-to-brightness reinterpretation.
	ModeHeld bool

	// PowerHeld is true iff a press edge has been observed without a
	// matching release edge. PowerPressedAt is only meaningful while
	// PowerHeld is true.
	PowerHeld      bool
	PowerPressedAt time.Time

	// ShutdownSignaled marks that a Shutdown was already emitted for the
	// current press cycle, so the eventual release does not re-signal it.
	ShutdownSignaled bool

	// LastWakeAt is the time of the most recent suspend/wake-triggering
	// action; short power presses inside the debounce window are dropped.
	LastWakeAt time.Time

	// BacklightOn mirrors the external display state. While false,
	// mode+volume falls through to the mixer instead of the backlight.
	BacklightOn bool

	// Brightness is the current backlight percent, always within
	// [BrightnessMin, BrightnessMax].
	Brightness int
}

// newButtonState returns the initial state for the given thresholds.
func newButtonState(th Thresholds, brightness int) ButtonState {
	return ButtonState{
		BacklightOn: true,
		Brightness:  clampBrightness(brightness, th),
	}
}

// clampBrightness forces a percent value into the configured ladder range.
func clampBrightness(percent int, th Thresholds) int {
	if percent < th.BrightnessMin {
		return th.BrightnessMin
	}
	if percent > th.BrightnessMax {
		return th.BrightnessMax
	}
	return percent
}

// reduceEvent applies one raw event to the state and returns the actions it
// produces. Malformed sequences (press/press, release/release) are tolerated
// by trusting the latest observed level.
func reduceEvent(s *ButtonState, ev RawEvent, now time.Time, th Thresholds) []Action {
	switch ev.Code {
	case CodeMode:
		s.ModeHeld = ev.Value == evValuePress || ev.Value == evValueRepeat
		return nil

	case CodePower:
		return reducePower(s, ev, now, th)

	case CodeVolumeUp:
		return reduceVolume(s, +1, ev.Value, th)

	case CodeVolumeDown:
		return reduceVolume(s, -1, ev.Value, th)

	case CodeLid:
		// Lid-close is an unambiguous intent; it suspends even inside
		// the debounce window of a prior power-button suspend.
		if ev.Value == evValuePress {
			s.LastWakeAt = now
			return []Action{Suspend{}}
		}
		return nil
	}

	return nil
}

// reducePower handles press and release edges of the power button.
// Repeat edges carry no information here: held state is tracked from the
// press edge and the long-hold check runs every tick regardless.
func reducePower(s *ButtonState, ev RawEvent, now time.Time, th Thresholds) []Action {
	switch ev.Value {
	case evValuePress:
		if !s.PowerHeld {
			s.PowerHeld = true
			s.PowerPressedAt = now
			s.ShutdownSignaled = false
		}

	case evValueRelease:
		if !s.PowerHeld {
			return nil
		}
		held := now.Sub(s.PowerPressedAt)
		s.PowerHeld = false

		if held >= th.LongPress {
			// Shutdown takes priority and is never debounced.
			if s.ShutdownSignaled {
				return nil
			}
			s.ShutdownSignaled = true
			return []Action{Shutdown{}}
		}

		// Short press: suspend, unless we woke up moments ago.
		if now.Sub(s.LastWakeAt) < th.WakeDebounce {
			return nil
		}
		s.LastWakeAt = now
		return []Action{Suspend{}}
	}

	return nil
}

// reduceVolume handles a volume button edge. Only press edges act;
// repeat and release are ignored.
func reduceVolume(s *ButtonState, dir int, value int32, th Thresholds) []Action {
	if value != evValuePress {
		return nil
	}

	if s.ModeHeld && s.BacklightOn {
		next := clampBrightness(s.Brightness+dir*th.BrightnessStep, th)
		if next == s.Brightness {
			// Already at the edge of the ladder: silent no-op.
			return nil
		}
		s.Brightness = next
		return []Action{SetBrightness{Percent: next}}
	}

	return []Action{AdjustVolume{DeltaPercent: dir * th.VolumeStep}}
}

// checkLongHold re-examines a depressed power button at the end of a tick.
// A long hold produces no edge event by itself, so the shutdown decision must
// be evaluated continuously while the button stays down; once signaled it is
// not signaled again for this press cycle.
func checkLongHold(s *ButtonState, now time.Time, th Thresholds) []Action {
	if !s.PowerHeld || s.ShutdownSignaled {
		return nil
	}
	if now.Sub(s.PowerPressedAt) < th.LongPress {
		return nil
	}
	s.ShutdownSignaled = true
	return []Action{Shutdown{}}
}
