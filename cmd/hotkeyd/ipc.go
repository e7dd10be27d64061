package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
)

// ============================================================================
// IPC Server - Unix Domain Socket Interface
// ============================================================================
// The IPC server lets external processes inject actions into the monitor loop
// via a Unix domain socket. This enables:
//   - The menu UI telling the daemon when it blanks/restores the display
//   - Brightness/volume/suspend control from scripts and hotkey-ctl
//
// Protocol: line-delimited JSON
//   - Client sends: {"type": "action_name", "data": {...}}
//   - Server responds: {"status": "ok"} or {"status": "error", "error": "msg"}
//
// Actions are queued onto the monitor's loop, never executed on the
// connection goroutine; the button state stays single-owner.
// ============================================================================

// IPCResponse represents the response sent back to IPC clients.
type IPCResponse struct {
	Status string `json:"status"`          // "ok" or "error"
	Error  string `json:"error,omitempty"` // error message if status == "error"
}

// runIPCServer starts the Unix domain socket server. It runs until ctx is
// canceled, at which point it closes the listener and exits.
func runIPCServer(ctx context.Context, socketPath string, mon *Monitor, logger *slog.Logger) error {
	// Remove a stale socket from a previous run.
	if err := os.RemoveAll(socketPath); err != nil {
		return fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", socketPath, err)
	}
	defer listener.Close()
	defer os.Remove(socketPath)

	// The launcher UI runs as a different user on some builds.
	if err := os.Chmod(socketPath, 0666); err != nil {
		return fmt.Errorf("chmod socket: %w", err)
	}

	logger.Info("IPC listening", "socket", socketPath)

	// Close the listener on shutdown. This unblocks Accept().
	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				logger.Debug("IPC listener closed (shutdown)")
				return nil
			}
			if errors.Is(err, net.ErrClosed) || strings.Contains(err.Error(), "use of closed network connection") {
				logger.Debug("IPC listener closed")
				return nil
			}
			logger.Error("IPC accept error", "error", err)
			continue
		}

		go handleIPCConnection(conn, mon, logger)
	}
}

// handleIPCConnection processes a single IPC client connection.
func handleIPCConnection(conn net.Conn, mon *Monitor, logger *slog.Logger) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	encoder := json.NewEncoder(conn)

	for scanner.Scan() {
		line := scanner.Text()
		logger.Debug("IPC received", "line", line)

		act, err := UnmarshalAction([]byte(line))
		if err != nil {
			writeIPCResponse(encoder, IPCResponse{
				Status: "error",
				Error:  fmt.Sprintf("parse action: %v", err),
			}, logger)
			continue
		}

		if mon.Inject(act) {
			writeIPCResponse(encoder, IPCResponse{Status: "ok"}, logger)
		} else {
			writeIPCResponse(encoder, IPCResponse{
				Status: "error",
				Error:  "action queue full",
			}, logger)
		}
	}

	logger.Debug("IPC connection closed")
}

func writeIPCResponse(encoder *json.Encoder, resp IPCResponse, logger *slog.Logger) {
	if err := encoder.Encode(resp); err != nil {
		logger.Error("IPC failed to send response", "error", err)
	}
}

// SendIPCAction sends an action to a running daemon via IPC and waits for the
// response. Used by hotkey-ctl and tests.
func SendIPCAction(socketPath string, act Action) error {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()

	data, err := MarshalAction(act)
	if err != nil {
		return fmt.Errorf("marshal action: %w", err)
	}

	if _, err := fmt.Fprintf(conn, "%s\n", strings.TrimSpace(string(data))); err != nil {
		return fmt.Errorf("send action: %w", err)
	}

	var resp IPCResponse
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.Status != "ok" {
		return fmt.Errorf("ipc error: %s", resp.Error)
	}
	return nil
}
