package main

import (
	"encoding/json"
	"fmt"
)

// ============================================================================
// Raw input events and device-control actions
// ============================================================================
// RawEvents are what the multiplexer hands the state machine: one decoded
// edge from one input source. Actions are what the state machine hands back:
// the abstract device-control requests executed by the action sink.
// ============================================================================

// DeviceRole is the logical function assigned to an input source at
// discovery time.
type DeviceRole string

const (
	RoleMode  DeviceRole = "mode"  // mode/function button (gamepad node)
	RolePower DeviceRole = "power" // power key
	RoleKeys  DeviceRole = "keys"  // volume buttons + lid switch
)

// EventCode is the semantic meaning of a raw event's key/switch code.
// Unhandled codes are discarded before reaching the state machine.
type EventCode int

const (
	CodeUnhandled EventCode = iota
	CodePower
	CodeMode
	CodeVolumeUp
	CodeVolumeDown
	CodeLid
)

// RawEvent is one decoded edge from an input source.
// Value follows evdev semantics: 0=release, 1=press, 2=repeat.
type RawEvent struct {
	Role  DeviceRole
	Code  EventCode
	Value int32
}

// translateCode maps an evdev key/switch code to its semantic meaning.
// The event type must already be EV_KEY or EV_SW.
func translateCode(evType uint16, code uint16) EventCode {
	if evType == EV_SW {
		if code == SW_LID {
			return CodeLid
		}
		return CodeUnhandled
	}
	switch code {
	case KEY_POWER:
		return CodePower
	case BTN_MODE:
		return CodeMode
	case KEY_VOLUMEUP:
		return CodeVolumeUp
	case KEY_VOLUMEDOWN:
		return CodeVolumeDown
	default:
		return CodeUnhandled
	}
}

// ============================================================================
// Actions
// ============================================================================

// Action is a marker interface for device-control requests emitted by the
// state machine (and injected over IPC).
type Action interface {
	actionMarker()
	String() string
}

// Suspend requests a system suspend-to-memory.
type Suspend struct{}

func (Suspend) actionMarker()  {}
func (Suspend) String() string { return "Suspend()" }

// Shutdown signals a long-power-press poweroff request. It is never executed
// by the action sink; it is returned to the caller's main loop instead.
type Shutdown struct{}

func (Shutdown) actionMarker()  {}
func (Shutdown) String() string { return "Shutdown()" }

// SetBrightness requests the backlight be set to an absolute percent.
// The state machine only emits values already clamped to the panel's range.
type SetBrightness struct {
	Percent int `json:"percent"`
}

func (SetBrightness) actionMarker() {}
func (a SetBrightness) String() string {
	return fmt.Sprintf("SetBrightness(percent=%d)", a.Percent)
}

// AdjustVolume requests a relative mixer volume change.
type AdjustVolume struct {
	DeltaPercent int `json:"delta_percent"`
}

func (AdjustVolume) actionMarker() {}
func (a AdjustVolume) String() string {
	return fmt.Sprintf("AdjustVolume(delta=%+d%%)", a.DeltaPercent)
}

// SetBacklight tells the daemon whether the display is currently on.
// The menu UI sends this over IPC when it blanks or restores the screen;
// while the backlight is off, mode+volume no longer steps brightness.
type SetBacklight struct {
	On bool `json:"on"`
}

func (SetBacklight) actionMarker() {}
func (a SetBacklight) String() string {
	return fmt.Sprintf("SetBacklight(on=%v)", a.On)
}

// ============================================================================
// JSON envelope for IPC
// ============================================================================
// Since Go doesn't have union types, actions cross the IPC socket wrapped in
// an envelope with a type discriminator.
// ============================================================================

// ActionEnvelope wraps an action with a type discriminator for JSON marshaling.
type ActionEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// UnmarshalAction deserializes a JSON action envelope into a concrete Action.
func UnmarshalAction(data []byte) (Action, error) {
	var env ActionEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	switch env.Type {
	case "suspend":
		return Suspend{}, nil

	case "set_brightness":
		var a SetBrightness
		if err := json.Unmarshal(env.Data, &a); err != nil {
			return nil, fmt.Errorf("unmarshal SetBrightness: %w", err)
		}
		return a, nil

	case "adjust_volume":
		var a AdjustVolume
		if err := json.Unmarshal(env.Data, &a); err != nil {
			return nil, fmt.Errorf("unmarshal AdjustVolume: %w", err)
		}
		return a, nil

	case "backlight":
		var a SetBacklight
		if err := json.Unmarshal(env.Data, &a); err != nil {
			return nil, fmt.Errorf("unmarshal SetBacklight: %w", err)
		}
		return a, nil

	default:
		return nil, fmt.Errorf("unknown action type: %q", env.Type)
	}
}

// MarshalAction serializes an Action into a JSON envelope with type
// discriminator.
func MarshalAction(a Action) ([]byte, error) {
	var env ActionEnvelope

	switch a := a.(type) {
	case Suspend:
		env.Type = "suspend"

	case SetBrightness:
		env.Type = "set_brightness"
		data, err := json.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("marshal SetBrightness: %w", err)
		}
		env.Data = data

	case AdjustVolume:
		env.Type = "adjust_volume"
		data, err := json.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("marshal AdjustVolume: %w", err)
		}
		env.Data = data

	case SetBacklight:
		env.Type = "backlight"
		data, err := json.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("marshal SetBacklight: %w", err)
		}
		env.Data = data

	default:
		return nil, fmt.Errorf("unsupported action type: %T", a)
	}

	return json.Marshal(env)
}
