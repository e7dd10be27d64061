package main

import (
	"encoding/binary"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sys/unix"
)

// ============================================================================
// Monitor - event multiplexer and caller API
// ============================================================================
// The caller owns one Monitor and drives it from a single loop:
//
//	Init() once at startup (false/error means abort, not run degraded)
//	PollTick() once per tick; returns true when a poweroff was requested
//	Cleanup() once on any exit path
//
// Nothing here blocks: every device read is non-blocking and drained to
// exhaustion each tick, so no backlog accumulates even at low tick rates.
// All ButtonState mutation happens on the caller's goroutine; externally
// sourced actions (IPC) cross over through a queue drained at tick start.
// ============================================================================

// eventSource is one pollable input source. ReadEvent returns the next
// decoded event, (_, false, nil) when the source would block, or a hard
// error after which the source must not be polled again.
type eventSource interface {
	Role() DeviceRole
	ReadEvent() (RawEvent, bool, error)
	Close()
}

func (s *inputSource) Role() DeviceRole { return s.role }

// ReadEvent performs non-blocking reads until it decodes a key/switch event,
// runs out of queued data, or hits a hard error. Short reads and events of
// other classes are discarded here, before the state machine sees them.
func (s *inputSource) ReadEvent() (RawEvent, bool, error) {
	for {
		n, err := unix.Read(s.fd, s.buf[:])
		if err != nil {
			if err == unix.EAGAIN {
				return RawEvent{}, false, nil
			}
			if err == unix.EINTR {
				continue
			}
			return RawEvent{}, false, err
		}
		if n == 0 {
			return RawEvent{}, false, io.EOF
		}
		if n != inputEventSize {
			continue
		}

		ev, ok := decodeEvent(s.role, s.buf[:])
		if !ok {
			continue
		}
		return ev, true, nil
	}
}

// decodeEvent extracts type/code/value from a raw input_event buffer and
// translates the code. Returns false for event classes other than key/switch
// and for codes the state machine does not handle.
func decodeEvent(role DeviceRole, buf []byte) (RawEvent, bool) {
	evType := binary.LittleEndian.Uint16(buf[16:18])
	if evType != EV_KEY && evType != EV_SW {
		return RawEvent{}, false
	}

	code := translateCode(evType, binary.LittleEndian.Uint16(buf[18:20]))
	if code == CodeUnhandled {
		return RawEvent{}, false
	}

	return RawEvent{
		Role:  role,
		Code:  code,
		Value: int32(binary.LittleEndian.Uint32(buf[20:24])),
	}, true
}

// MonitorConfig is what the monitor needs from the daemon configuration.
type MonitorConfig struct {
	Patterns   []DevicePattern
	Thresholds Thresholds

	// Brightness is the assumed backlight percent at startup.
	Brightness int
}

// monSource pairs a source with its liveness. A source that reported a hard
// read error stays in the slice (stable order) but is skipped forever after.
type monSource struct {
	src  eventSource
	dead bool
}

// Monitor multiplexes the open input sources into the button state machine
// and executes the resulting actions through the sink.
type Monitor struct {
	cfg    MonitorConfig
	sink   ActionSink
	logger *slog.Logger

	sources []monSource
	state   ButtonState

	// injected carries externally sourced actions (IPC) onto the loop.
	injected chan Action

	// onAction, if set, observes every dispatched action together with a
	// copy of the state after it applied. Runs on the loop goroutine.
	onAction func(Action, ButtonState)
}

func NewMonitor(cfg MonitorConfig, sink ActionSink, logger *slog.Logger) *Monitor {
	return &Monitor{
		cfg:      cfg,
		sink:     sink,
		logger:   logger,
		state:    newButtonState(cfg.Thresholds, cfg.Brightness),
		injected: make(chan Action, 16),
	}
}

// OnAction registers the action observer. Must be called before the loop starts.
func (m *Monitor) OnAction(fn func(Action, ButtonState)) { m.onAction = fn }

// Init discovers and opens the configured input devices.
func (m *Monitor) Init() error {
	sources, err := openInputDevices(m.cfg.Patterns, m.logger)
	if err != nil {
		return err
	}
	for _, s := range sources {
		m.sources = append(m.sources, monSource{src: s})
	}
	m.logger.Info("monitoring input devices", "count", len(sources))
	return nil
}

// Cleanup closes every open handle. Safe to call more than once.
func (m *Monitor) Cleanup() {
	for i := range m.sources {
		m.sources[i].src.Close()
	}
	m.sources = nil
}

// SetBacklightEnabled records the external display state. While disabled,
// mode+volume adjusts the mixer instead of the backlight. Takes effect on
// the next tick.
func (m *Monitor) SetBacklightEnabled(on bool) {
	m.Inject(SetBacklight{On: on})
}

// Inject queues an externally sourced action for the next tick. It never
// blocks; when the queue is full the action is dropped and logged.
func (m *Monitor) Inject(act Action) bool {
	select {
	case m.injected <- act:
		return true
	default:
		m.logger.Warn("injected action queue full, dropping", "action", act.String())
		return false
	}
}

// PollTick runs one polling cycle: injected actions, then a full drain of
// every live source in stable order, then the long-hold re-check. Returns
// true when a poweroff was requested this tick.
func (m *Monitor) PollTick(now time.Time) bool {
	shutdown := false

drain:
	for {
		select {
		case act := <-m.injected:
			if m.dispatch(act, now) {
				shutdown = true
			}
		default:
			break drain
		}
	}

	for i := range m.sources {
		ms := &m.sources[i]
		if ms.dead {
			continue
		}
		for {
			ev, ok, err := ms.src.ReadEvent()
			if err != nil {
				// One broken source must not take down the rest.
				ms.dead = true
				m.logger.Warn("input source failed, excluding from polling",
					"role", ms.src.Role(), "error", err)
				break
			}
			if !ok {
				break
			}
			for _, act := range reduceEvent(&m.state, ev, now, m.cfg.Thresholds) {
				if m.dispatch(act, now) {
					shutdown = true
				}
			}
		}
	}

	// A long hold produces no edge; re-check the held power button so the
	// caller doesn't have to wait for the release.
	for _, act := range checkLongHold(&m.state, now, m.cfg.Thresholds) {
		if m.dispatch(act, now) {
			shutdown = true
		}
	}

	return shutdown
}

// dispatch applies one action: state-only actions mutate ButtonState, the
// rest go through the sink. Injected actions get the same clamping and
// debounce bookkeeping as reducer-emitted ones.
func (m *Monitor) dispatch(act Action, now time.Time) bool {
	shutdown := false

	switch a := act.(type) {
	case SetBacklight:
		m.state.BacklightOn = a.On

	case SetBrightness:
		a.Percent = clampBrightness(a.Percent, m.cfg.Thresholds)
		m.state.Brightness = a.Percent
		act = a
		shutdown = runAction(m.sink, act, m.logger)

	case Suspend:
		m.state.LastWakeAt = now
		shutdown = runAction(m.sink, act, m.logger)

	default:
		shutdown = runAction(m.sink, act, m.logger)
	}

	if m.onAction != nil {
		m.onAction(act, m.state)
	}
	return shutdown
}
