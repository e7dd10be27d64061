package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unsafe"

	"golang.org/x/sys/unix"
)

// ============================================================================
// Device Registry
// ============================================================================
// Discovers the small fixed set of raw input sources by matching each role's
// name substring against the devices enumerated under /dev/input. Handles are
// opened non-blocking and owned by the registry result until Cleanup.
// ============================================================================

// DevicePattern maps a logical role to a substring of the kernel-reported
// device name, e.g. {power, "pwrkey"}.
type DevicePattern struct {
	Role  DeviceRole `yaml:"role"`
	Match string     `yaml:"match"`
}

// inputSource is an open evdev handle tagged with its role.
type inputSource struct {
	role DeviceRole
	path string
	name string

	fd     int
	closed bool

	buf [inputEventSize]byte
}

// Close releases the file descriptor. Safe to call more than once.
func (s *inputSource) Close() {
	if s.closed {
		return
	}
	s.closed = true
	_ = unix.Close(s.fd)
}

const inputDevDir = "/dev/input"

// eviocgname builds the EVIOCGNAME ioctl request for a buffer of the given
// length: _IOC(_IOC_READ, 'E', 0x06, len).
func eviocgname(length int) uintptr {
	return uintptr(2<<30 | length<<16 | 'E'<<8 | 0x06)
}

// deviceName queries the kernel-reported name of an open evdev handle.
func deviceName(fd int) (string, error) {
	buf := make([]byte, 256)
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), eviocgname(len(buf)), uintptr(unsafe.Pointer(&buf[0])))
	if errno != 0 {
		return "", errno
	}
	if i := strings.IndexByte(string(buf), 0); i >= 0 {
		buf = buf[:i]
	}
	return string(buf), nil
}

// openInputDevices resolves each requested role to an open input source.
//
// For each role it scans /dev/input/event* in sorted order, opens candidates
// read-only and non-blocking, queries the declared name, and accepts the
// first device whose name contains the requested substring (case-sensitive).
// Non-matching candidates are closed before moving on.
//
// A role that matches nothing is skipped with a warning. The call fails only
// if zero roles resolved; in that case no handles remain open.
func openInputDevices(patterns []DevicePattern, logger *slog.Logger) ([]*inputSource, error) {
	entries, err := os.ReadDir(inputDevDir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", inputDevDir, err)
	}

	var nodes []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "event") {
			nodes = append(nodes, filepath.Join(inputDevDir, e.Name()))
		}
	}
	sort.Strings(nodes)

	var sources []*inputSource
	for _, p := range patterns {
		src := findDevice(nodes, p)
		if src == nil {
			logger.Warn("no input device matched role", "role", p.Role, "match", p.Match)
			continue
		}
		logger.Info("found input device", "role", src.role, "path", src.path, "name", src.name)
		sources = append(sources, src)
	}

	if len(sources) == 0 {
		return nil, fmt.Errorf("no input devices opened for %d configured roles", len(patterns))
	}
	return sources, nil
}

// findDevice scans the given nodes for the first one whose declared name
// contains the pattern's substring. Devices that cannot be opened (permission,
// hot-unplug race) are skipped.
func findDevice(nodes []string, p DevicePattern) *inputSource {
	for _, path := range nodes {
		fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
		if err != nil {
			continue
		}

		name, err := deviceName(fd)
		if err != nil || !strings.Contains(name, p.Match) {
			_ = unix.Close(fd)
			continue
		}

		return &inputSource{
			role: p.Role,
			path: path,
			name: name,
			fd:   fd,
		}
	}
	return nil
}
