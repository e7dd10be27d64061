package main

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strconv"
)

// ============================================================================
// hotkey-ctl - Command-line IPC Client
// ============================================================================
// This tool sends actions to the hotkeyd daemon via its Unix socket.
//
// Usage:
//   hotkey-ctl suspend
//   hotkey-ctl brightness 52
//   hotkey-ctl volume-up
//   hotkey-ctl volume-down 10
//   hotkey-ctl backlight off
//
// Options:
//   -socket PATH    Unix domain socket path (default: /tmp/hotkeyd.sock)
// ============================================================================

// Action types (duplicated from the daemon's wire format for a standalone binary)

type SetBrightness struct {
	Percent int `json:"percent"`
}

type AdjustVolume struct {
	DeltaPercent int `json:"delta_percent"`
}

type SetBacklight struct {
	On bool `json:"on"`
}

// ActionEnvelope wraps actions for JSON
type ActionEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// IPCResponse represents the daemon's response
type IPCResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

const defaultVolumeStep = 5

func main() {
	socketPath := "/tmp/hotkeyd.sock"

	args := os.Args[1:]
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	// Check for -socket flag
	if args[0] == "-socket" || args[0] == "--socket" {
		if len(args) < 2 {
			fmt.Fprintf(os.Stderr, "error: -socket requires an argument\n")
			os.Exit(1)
		}
		socketPath = args[1]
		args = args[2:]
	}

	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	// Parse command
	var env ActionEnvelope

	switch args[0] {
	case "suspend":
		env.Type = "suspend"

	case "brightness":
		if len(args) < 2 {
			fmt.Fprintf(os.Stderr, "error: brightness requires a percent value\n")
			os.Exit(1)
		}
		percent, err := strconv.Atoi(args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: invalid percent value: %v\n", err)
			os.Exit(1)
		}
		env.Type = "set_brightness"
		env.Data = mustMarshal(SetBrightness{Percent: percent})

	case "volume-up", "up":
		env.Type = "adjust_volume"
		env.Data = mustMarshal(AdjustVolume{DeltaPercent: parseStep(args, defaultVolumeStep)})

	case "volume-down", "down":
		env.Type = "adjust_volume"
		env.Data = mustMarshal(AdjustVolume{DeltaPercent: -parseStep(args, defaultVolumeStep)})

	case "backlight":
		if len(args) < 2 || (args[1] != "on" && args[1] != "off") {
			fmt.Fprintf(os.Stderr, "error: backlight requires 'on' or 'off'\n")
			os.Exit(1)
		}
		env.Type = "backlight"
		env.Data = mustMarshal(SetBacklight{On: args[1] == "on"})

	case "help", "-h", "--help":
		printUsage()
		os.Exit(0)

	default:
		fmt.Fprintf(os.Stderr, "error: unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}

	if err := sendAction(socketPath, env); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("ok")
}

// parseStep reads an optional step-percent argument after the command.
func parseStep(args []string, def int) int {
	if len(args) < 2 {
		return def
	}
	n, err := strconv.Atoi(args[1])
	if err != nil || n <= 0 {
		fmt.Fprintf(os.Stderr, "error: invalid step value: %s\n", args[1])
		os.Exit(1)
	}
	return n
}

func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: marshal action: %v\n", err)
		os.Exit(1)
	}
	return data
}

func sendAction(socketPath string, env ActionEnvelope) error {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal action: %w", err)
	}

	// Line-delimited JSON
	if _, err := fmt.Fprintf(conn, "%s\n", data); err != nil {
		return fmt.Errorf("send action: %w", err)
	}

	var response IPCResponse
	if err := json.NewDecoder(conn).Decode(&response); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	if response.Status == "error" {
		return fmt.Errorf("daemon error: %s", response.Error)
	}

	return nil
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `hotkey-ctl - Control the hotkeyd daemon via IPC

Usage:
  hotkey-ctl [options] <command> [args]

Options:
  -socket PATH    Unix domain socket path (default: /tmp/hotkeyd.sock)

Commands:
  suspend                  Suspend the device now
  brightness <percent>     Set backlight brightness (clamped to panel range)
  volume-up, up [step]     Raise mixer volume (default step %d%%)
  volume-down, down [step] Lower mixer volume (default step %d%%)
  backlight on|off         Tell the daemon the display state
  help, -h, --help         Show this help message

Examples:
  hotkey-ctl brightness 52
  hotkey-ctl volume-up 10
  hotkey-ctl -socket /var/run/hotkeyd.sock suspend
`, defaultVolumeStep, defaultVolumeStep)
}
