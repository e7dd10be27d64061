package main

import (
	"testing"
	"time"
)

func testThresholds() Thresholds {
	return Thresholds{
		LongPress:      time.Duration(defaultLongPressMS) * time.Millisecond,
		WakeDebounce:   time.Duration(defaultWakeDebounceMS) * time.Millisecond,
		BrightnessMin:  defaultBrightnessMin,
		BrightnessMax:  defaultBrightnessMax,
		BrightnessStep: defaultBrightnessStep,
		VolumeStep:     defaultVolumeStepPercent,
	}
}

func press(code EventCode) RawEvent   { return RawEvent{Code: code, Value: evValuePress} }
func release(code EventCode) RawEvent { return RawEvent{Code: code, Value: evValueRelease} }
func repeat(code EventCode) RawEvent  { return RawEvent{Code: code, Value: evValueRepeat} }

// at offsets a fixed base time, so durations in tests read naturally.
func at(d time.Duration) time.Time {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return base.Add(d)
}

// TestReducer_ShortPowerPress_Suspends tests that a short power press emits
// exactly one Suspend on release.
func TestReducer_ShortPowerPress_Suspends(t *testing.T) {
	th := testThresholds()
	s := newButtonState(th, defaultBrightnessPercent)
	// Move past the boot debounce window.
	s.LastWakeAt = at(-time.Hour)

	acts := reduceEvent(&s, press(CodePower), at(0), th)
	if len(acts) != 0 {
		t.Fatalf("expected no actions on press edge, got %v", acts)
	}
	if !s.PowerHeld {
		t.Fatal("expected PowerHeld after press edge")
	}

	acts = reduceEvent(&s, release(CodePower), at(300*time.Millisecond), th)
	if len(acts) != 1 {
		t.Fatalf("expected 1 action on release, got %d", len(acts))
	}
	if _, ok := acts[0].(Suspend); !ok {
		t.Fatalf("expected Suspend, got %T", acts[0])
	}
	if s.PowerHeld {
		t.Fatal("expected PowerHeld cleared after release")
	}
	if !s.LastWakeAt.Equal(at(300 * time.Millisecond)) {
		t.Errorf("expected LastWakeAt updated to release time, got %v", s.LastWakeAt)
	}
}

// TestReducer_LongPowerPress_ShutdownOnRelease tests the threshold decision
// when the release edge itself crosses the long-press boundary.
func TestReducer_LongPowerPress_ShutdownOnRelease(t *testing.T) {
	th := testThresholds()
	s := newButtonState(th, defaultBrightnessPercent)

	reduceEvent(&s, press(CodePower), at(0), th)
	acts := reduceEvent(&s, release(CodePower), at(2000*time.Millisecond), th)

	if len(acts) != 1 {
		t.Fatalf("expected 1 action, got %d", len(acts))
	}
	if _, ok := acts[0].(Shutdown); !ok {
		t.Fatalf("expected Shutdown, got %T", acts[0])
	}
}

// TestReducer_LongHold_SignalsWithoutRelease tests that checkLongHold emits
// Shutdown while the button is still down, and only once per press cycle.
func TestReducer_LongHold_SignalsWithoutRelease(t *testing.T) {
	th := testThresholds()
	s := newButtonState(th, defaultBrightnessPercent)

	reduceEvent(&s, press(CodePower), at(0), th)

	if acts := checkLongHold(&s, at(1000*time.Millisecond), th); len(acts) != 0 {
		t.Fatalf("expected no actions before threshold, got %v", acts)
	}

	acts := checkLongHold(&s, at(1800*time.Millisecond), th)
	if len(acts) != 1 {
		t.Fatalf("expected 1 action past threshold, got %d", len(acts))
	}
	if _, ok := acts[0].(Shutdown); !ok {
		t.Fatalf("expected Shutdown, got %T", acts[0])
	}

	// Still held, later ticks: no re-signal.
	if acts := checkLongHold(&s, at(2500*time.Millisecond), th); len(acts) != 0 {
		t.Fatalf("expected no re-signal while held, got %v", acts)
	}

	// The eventual release must not signal again either.
	if acts := reduceEvent(&s, release(CodePower), at(3000*time.Millisecond), th); len(acts) != 0 {
		t.Fatalf("expected no actions on release after signaled shutdown, got %v", acts)
	}
}

// TestReducer_ShutdownIgnoresDebounce tests that a long press right after a
// wake still shuts down; only suspends are debounced.
func TestReducer_ShutdownIgnoresDebounce(t *testing.T) {
	th := testThresholds()
	s := newButtonState(th, defaultBrightnessPercent)
	s.LastWakeAt = at(0)

	reduceEvent(&s, press(CodePower), at(100*time.Millisecond), th)
	acts := checkLongHold(&s, at(100*time.Millisecond+th.LongPress), th)

	if len(acts) != 1 {
		t.Fatalf("expected 1 action, got %d", len(acts))
	}
	if _, ok := acts[0].(Shutdown); !ok {
		t.Fatalf("expected Shutdown, got %T", acts[0])
	}
}

// TestReducer_WakeDebounce_DropsSecondPress tests that a second short press
// inside the debounce window is silently dropped.
func TestReducer_WakeDebounce_DropsSecondPress(t *testing.T) {
	th := testThresholds()
	s := newButtonState(th, defaultBrightnessPercent)
	s.LastWakeAt = at(-time.Hour)

	reduceEvent(&s, press(CodePower), at(0), th)
	acts := reduceEvent(&s, release(CodePower), at(100*time.Millisecond), th)
	if len(acts) != 1 {
		t.Fatalf("expected first press to suspend, got %v", acts)
	}

	// The press that wakes the device arrives 300ms after the suspend.
	reduceEvent(&s, press(CodePower), at(300*time.Millisecond), th)
	acts = reduceEvent(&s, release(CodePower), at(400*time.Millisecond), th)
	if len(acts) != 0 {
		t.Fatalf("expected debounced press to emit nothing, got %v", acts)
	}

	// Past the window, presses act again.
	reduceEvent(&s, press(CodePower), at(2*time.Second), th)
	acts = reduceEvent(&s, release(CodePower), at(2*time.Second+100*time.Millisecond), th)
	if len(acts) != 1 {
		t.Fatalf("expected suspend after debounce window, got %v", acts)
	}
}

// TestReducer_LidClose_SuspendsUnconditionally tests that lid-close suspends
// even inside the debounce window, and that lid-open does nothing.
func TestReducer_LidClose_SuspendsUnconditionally(t *testing.T) {
	th := testThresholds()
	s := newButtonState(th, defaultBrightnessPercent)
	s.LastWakeAt = at(0) // freshly woken, debounce window active

	acts := reduceEvent(&s, press(CodeLid), at(100*time.Millisecond), th)
	if len(acts) != 1 {
		t.Fatalf("expected 1 action on lid close, got %d", len(acts))
	}
	if _, ok := acts[0].(Suspend); !ok {
		t.Fatalf("expected Suspend, got %T", acts[0])
	}
	if !s.LastWakeAt.Equal(at(100 * time.Millisecond)) {
		t.Errorf("expected LastWakeAt updated on lid close, got %v", s.LastWakeAt)
	}

	if acts := reduceEvent(&s, release(CodeLid), at(5*time.Second), th); len(acts) != 0 {
		t.Fatalf("expected no actions on lid open, got %v", acts)
	}
}

// TestReducer_VolumeWithoutMode_AdjustsMixer tests the plain volume path.
func TestReducer_VolumeWithoutMode_AdjustsMixer(t *testing.T) {
	th := testThresholds()
	s := newButtonState(th, defaultBrightnessPercent)

	acts := reduceEvent(&s, press(CodeVolumeUp), at(0), th)
	if len(acts) != 1 {
		t.Fatalf("expected 1 action, got %d", len(acts))
	}
	up, ok := acts[0].(AdjustVolume)
	if !ok {
		t.Fatalf("expected AdjustVolume, got %T", acts[0])
	}
	if up.DeltaPercent != th.VolumeStep {
		t.Errorf("expected delta %+d, got %+d", th.VolumeStep, up.DeltaPercent)
	}

	acts = reduceEvent(&s, press(CodeVolumeDown), at(time.Second), th)
	down, ok := acts[0].(AdjustVolume)
	if !ok {
		t.Fatalf("expected AdjustVolume, got %T", acts[0])
	}
	if down.DeltaPercent != -th.VolumeStep {
		t.Errorf("expected delta %+d, got %+d", -th.VolumeStep, down.DeltaPercent)
	}

	// Release and repeat edges are ignored for volume.
	if acts := reduceEvent(&s, release(CodeVolumeUp), at(2*time.Second), th); len(acts) != 0 {
		t.Fatalf("expected no actions on volume release, got %v", acts)
	}
	if acts := reduceEvent(&s, repeat(CodeVolumeUp), at(3*time.Second), th); len(acts) != 0 {
		t.Fatalf("expected no actions on volume repeat, got %v", acts)
	}
}

// TestReducer_ModeVolume_StepsBrightness tests the mode+volume brightness
// ladder, including silent clamping at both edges.
func TestReducer_ModeVolume_StepsBrightness(t *testing.T) {
	th := testThresholds()
	s := newButtonState(th, defaultBrightnessPercent) // 52%

	reduceEvent(&s, press(CodeMode), at(0), th)
	if !s.ModeHeld {
		t.Fatal("expected ModeHeld after mode press")
	}

	acts := reduceEvent(&s, press(CodeVolumeUp), at(time.Second), th)
	if len(acts) != 1 {
		t.Fatalf("expected 1 action, got %d", len(acts))
	}
	b, ok := acts[0].(SetBrightness)
	if !ok {
		t.Fatalf("expected SetBrightness, got %T", acts[0])
	}
	if b.Percent != 68 {
		t.Errorf("expected 68%%, got %d%%", b.Percent)
	}

	// Step up twice more: 84, then clamped to 100.
	reduceEvent(&s, press(CodeVolumeUp), at(2*time.Second), th)
	acts = reduceEvent(&s, press(CodeVolumeUp), at(3*time.Second), th)
	b = acts[0].(SetBrightness)
	if b.Percent != th.BrightnessMax {
		t.Errorf("expected clamp to %d%%, got %d%%", th.BrightnessMax, b.Percent)
	}

	// At the top of the ladder another press is a silent no-op.
	if acts := reduceEvent(&s, press(CodeVolumeUp), at(4*time.Second), th); len(acts) != 0 {
		t.Fatalf("expected no-op at ladder top, got %v", acts)
	}

	// All the way down: 84, 68, 52, 36, 20, then clamped to the minimum.
	for i := 0; i < 6; i++ {
		reduceEvent(&s, press(CodeVolumeDown), at(time.Duration(5+i)*time.Second), th)
	}
	if s.Brightness != th.BrightnessMin {
		t.Errorf("expected brightness at minimum %d%%, got %d%%", th.BrightnessMin, s.Brightness)
	}
	if acts := reduceEvent(&s, press(CodeVolumeDown), at(12*time.Second), th); len(acts) != 0 {
		t.Fatalf("expected no-op at ladder bottom, got %v", acts)
	}

	// Releasing mode restores the mixer path.
	reduceEvent(&s, release(CodeMode), at(13*time.Second), th)
	acts = reduceEvent(&s, press(CodeVolumeUp), at(14*time.Second), th)
	if _, ok := acts[0].(AdjustVolume); !ok {
		t.Fatalf("expected AdjustVolume after mode release, got %T", acts[0])
	}
}

// TestReducer_BacklightOff_DisablesBrightnessPath tests that mode+volume falls
// through to the mixer while the display is blanked.
func TestReducer_BacklightOff_DisablesBrightnessPath(t *testing.T) {
	th := testThresholds()
	s := newButtonState(th, defaultBrightnessPercent)
	s.BacklightOn = false

	reduceEvent(&s, press(CodeMode), at(0), th)
	acts := reduceEvent(&s, press(CodeVolumeUp), at(time.Second), th)

	if len(acts) != 1 {
		t.Fatalf("expected 1 action, got %d", len(acts))
	}
	if _, ok := acts[0].(AdjustVolume); !ok {
		t.Fatalf("expected AdjustVolume with backlight off, got %T", acts[0])
	}
	if s.Brightness != defaultBrightnessPercent {
		t.Errorf("expected brightness unchanged, got %d%%", s.Brightness)
	}
}

// TestReducer_DuplicateEdges_Tolerated tests press/press and release/release
// sequences from flaky hardware.
func TestReducer_DuplicateEdges_Tolerated(t *testing.T) {
	th := testThresholds()
	s := newButtonState(th, defaultBrightnessPercent)
	s.LastWakeAt = at(-time.Hour)

	reduceEvent(&s, press(CodePower), at(0), th)
	// A second press edge must not restart the hold timer.
	reduceEvent(&s, press(CodePower), at(1500*time.Millisecond), th)

	acts := checkLongHold(&s, at(1800*time.Millisecond), th)
	if len(acts) != 1 {
		t.Fatalf("expected shutdown from the original press time, got %v", acts)
	}

	reduceEvent(&s, release(CodePower), at(2*time.Second), th)
	// Release without a press is ignored.
	if acts := reduceEvent(&s, release(CodePower), at(3*time.Second), th); len(acts) != 0 {
		t.Fatalf("expected no actions on duplicate release, got %v", acts)
	}
}

// TestReducer_PowerRepeat_Ignored tests that autorepeat on the power key
// neither emits actions nor perturbs the hold timer.
func TestReducer_PowerRepeat_Ignored(t *testing.T) {
	th := testThresholds()
	s := newButtonState(th, defaultBrightnessPercent)

	reduceEvent(&s, press(CodePower), at(0), th)
	if acts := reduceEvent(&s, repeat(CodePower), at(500*time.Millisecond), th); len(acts) != 0 {
		t.Fatalf("expected no actions on power repeat, got %v", acts)
	}
	if !s.PowerPressedAt.Equal(at(0)) {
		t.Errorf("expected press time unchanged by repeat, got %v", s.PowerPressedAt)
	}
}

// TestNewButtonState_ClampsBrightness tests initial-state construction.
func TestNewButtonState_ClampsBrightness(t *testing.T) {
	th := testThresholds()

	s := newButtonState(th, 250)
	if s.Brightness != th.BrightnessMax {
		t.Errorf("expected initial brightness clamped to %d, got %d", th.BrightnessMax, s.Brightness)
	}
	if !s.BacklightOn {
		t.Error("expected backlight assumed on at startup")
	}

	s = newButtonState(th, 0)
	if s.Brightness != th.BrightnessMin {
		t.Errorf("expected initial brightness clamped to %d, got %d", th.BrightnessMin, s.Brightness)
	}
}
