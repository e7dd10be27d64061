package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

// hotkey-watch tails the hotkeyd state websocket and prints every event.
// Useful for debugging button mappings and the UI handshake without a UI.

type stateEnvelope struct {
	Type string          `json:"type"`
	Ts   *time.Time      `json:"ts,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

type stateSnapshot struct {
	Brightness  int  `json:"brightness_percent"`
	BacklightOn bool `json:"backlight_on"`
	ModeHeld    bool `json:"mode_held"`
	PowerHeld   bool `json:"power_held"`
}

func main() {
	var (
		wsURL = flag.String("ws", "ws://127.0.0.1:3002/ws/state", "hotkeyd state websocket URL")
		raw   = flag.Bool("raw", false, "Print raw JSON frames instead of decoded events")
	)
	flag.Parse()

	u, err := url.Parse(*wsURL)
	if err != nil {
		log.Fatalf("invalid websocket URL: %v", err)
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	d := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	log.Printf("connecting to %s...", u.String())
	conn, _, err := d.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()

	log.Printf("connected! (press Ctrl+C to exit)")

	// Mutex to protect concurrent writes to the websocket
	var writeMu sync.Mutex

	// Ping/pong keepalive
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	pingTicker := time.NewTicker(30 * time.Second)
	defer pingTicker.Stop()

	go func() {
		for range pingTicker.C {
			writeMu.Lock()
			err := conn.WriteMessage(websocket.PingMessage, nil)
			writeMu.Unlock()
			if err != nil {
				log.Printf("ping failed: %v", err)
				return
			}
		}
	}()

	// Track the last snapshot so only changed fields are printed.
	var last *stateSnapshot

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			messageType, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("websocket error: %v", err)
				}
				return
			}
			if messageType != websocket.TextMessage {
				continue
			}

			if *raw {
				fmt.Printf("%s\n", string(message))
				continue
			}
			last = printEvent(message, last)
		}
	}()

	select {
	case <-sigc:
		log.Printf("shutting down...")
		writeMu.Lock()
		err := conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		writeMu.Unlock()
		if err != nil {
			log.Printf("error closing connection: %v", err)
		}
	case <-done:
		log.Printf("connection closed")
	}
}

// printEvent decodes one state frame, prints it, and reports field-level
// changes against the previous snapshot.
func printEvent(message []byte, last *stateSnapshot) *stateSnapshot {
	var env stateEnvelope
	if err := json.Unmarshal(message, &env); err != nil {
		fmt.Printf("[TEXT] %s\n", string(message))
		return last
	}

	var snap stateSnapshot
	if err := json.Unmarshal(env.Data, &snap); err != nil {
		fmt.Printf("[%s]\n", env.Type)
		return last
	}

	fmt.Printf("[%s] brightness=%d%% backlight=%v mode_held=%v power_held=%v\n",
		env.Type, snap.Brightness, snap.BacklightOn, snap.ModeHeld, snap.PowerHeld)

	if last != nil {
		if snap.Brightness != last.Brightness {
			fmt.Printf("  brightness: %d%% -> %d%%\n", last.Brightness, snap.Brightness)
		}
		if snap.BacklightOn != last.BacklightOn {
			fmt.Printf("  backlight: %v -> %v\n", last.BacklightOn, snap.BacklightOn)
		}
	}

	return &snap
}
