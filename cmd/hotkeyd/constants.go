package main

// Linux input event types and codes (from <linux/input-event-codes.h>)
const (
	EV_KEY = 0x01
	EV_SW  = 0x05

	KEY_VOLUMEDOWN = 114
	KEY_VOLUMEUP   = 115
	KEY_POWER      = 116
	BTN_MODE       = 0x13c

	SW_LID = 0x00
)

// Input event value constants
const (
	evValueRelease = 0
	evValuePress   = 1
	evValueRepeat  = 2
)

// evdev wire format: struct input_event is 24 bytes on 64-bit Linux
// (two 8-byte timeval fields, u16 type, u16 code, s32 value).
const inputEventSize = 24

// Timing defaults
const (
	defaultPollHz = 30

	// Holding the power button at least this long requests a poweroff
	// instead of a suspend.
	defaultLongPressMS = 1750

	// Minimum spacing between two suspend/wake-triggering power presses.
	// Without this, the press that wakes the device immediately suspends
	// it again.
	defaultWakeDebounceMS = 500
)

// Backlight defaults. The panel supports 7 usable steps between 4% and 100%;
// going below 4% turns the screen completely dark.
const (
	defaultBrightnessMin     = 4
	defaultBrightnessMax     = 100
	defaultBrightnessStep    = 16
	defaultBrightnessPercent = 52
)

// Mixer volume step per button press (percent)
const defaultVolumeStepPercent = 5
