package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"
)

const version = "1.0.0"

func printVersion() {
	fmt.Printf("hotkeyd v%s\n", version)
	fmt.Println("Hardware button and lid switch daemon for handheld devices")
}

func printUsage() {
	printVersion()
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  hotkeyd [OPTIONS]")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Always-on daemon that polls the device's raw input sources (power")
	fmt.Println("  button, mode button, volume buttons, lid switch) and turns them into")
	fmt.Println("  device control: suspend, poweroff, backlight brightness and mixer")
	fmt.Println("  volume. External processes can inject actions over a Unix socket,")
	fmt.Println("  and a WebSocket endpoint mirrors the daemon state for UIs.")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -config string")
	fmt.Println("        Path to a YAML config file (optional; flags override it)")
	fmt.Println()
	fmt.Println("  -poll-hz int")
	fmt.Printf("        Input polling frequency in Hz (default %d)\n", defaultPollHz)
	fmt.Println()
	fmt.Println("  -ipc-socket string")
	fmt.Println("        Unix domain socket path for IPC (default \"/tmp/hotkeyd.sock\")")
	fmt.Println()
	fmt.Println("  -ws-enabled")
	fmt.Println("        Enable the state WebSocket server (default true)")
	fmt.Println()
	fmt.Println("  -ws-port int")
	fmt.Println("        State WebSocket server port (default 3002)")
	fmt.Println()
	fmt.Println("  -log-level string")
	fmt.Println("        Log level: error, warn, info, debug (default \"info\")")
	fmt.Println()
	fmt.Println("  -version")
	fmt.Println("        Print version and exit")
	fmt.Println()
	fmt.Println("  -help")
	fmt.Println("        Print this help message")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  # Start with defaults")
	fmt.Println("  hotkeyd")
	fmt.Println()
	fmt.Println("  # Load a config file, bump the poll rate")
	fmt.Println("  hotkeyd -config /etc/hotkeyd.yaml -poll-hz 60")
	fmt.Println()
	fmt.Println("  # Inject an action from a script")
	fmt.Println("  hotkey-ctl brightness 52")
	fmt.Println()
	fmt.Println("NOTES:")
	fmt.Println("  - Requires read access to /dev/input/event* and write access to the")
	fmt.Println("    configured sysfs nodes (typically runs as root)")
	fmt.Println("  - A long power-button press (>=1.75s by default) powers the device off")
	fmt.Println()
}

func main() {
	// Check for version/help flags early
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" {
			printVersion()
			return
		}
		if arg == "-help" || arg == "--help" || arg == "-h" {
			printUsage()
			return
		}
	}

	var (
		configPath    = flag.String("config", "", "Path to a YAML config file")
		pollHz        = flag.Int("poll-hz", defaultPollHz, "Input polling frequency in Hz")
		ipcSocketPath = flag.String("ipc-socket", "/tmp/hotkeyd.sock", "Unix domain socket path for IPC")
		wsEnabled     = flag.Bool("ws-enabled", true, "Enable the state WebSocket server")
		wsPort        = flag.Int("ws-port", 3002, "State WebSocket server port")
		logLevelStr   = flag.String("log-level", "info", "Log level: error, warn, info, debug")
		showVersion   = flag.Bool("version", false, "Print version and exit")
		showHelp      = flag.Bool("help", false, "Print help message")
	)

	flag.Usage = printUsage
	flag.Parse()

	if *showHelp {
		printUsage()
		return
	}
	if *showVersion {
		printVersion()
		return
	}

	cfg := DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = LoadConfigFile(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	}

	// Only flags the user actually passed override the file.
	overrides := FlagOverrides{}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "poll-hz":
			overrides.PollHz = pollHz
		case "ipc-socket":
			overrides.IPCSocketPath = ipcSocketPath
		case "ws-enabled":
			overrides.WSEnabled = wsEnabled
		case "ws-port":
			overrides.WSPort = wsPort
		case "log-level":
			overrides.LogLevel = logLevelStr
		}
	})
	overrides.Apply(&cfg)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	logLevel, err := parseLogLevel(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	logger := setupLogger(logLevel)

	sink := newSysfsSink(&cfg, logger)
	mon := NewMonitor(cfg.MonitorConfig(), sink, logger)

	if err := mon.Init(); err != nil {
		logger.Error("failed to open input devices", "error", err,
			"tip", "run as root or add user to 'input' group")
		os.Exit(1)
	}
	defer mon.Cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	// Start IPC server
	go func() {
		if err := runIPCServer(ctx, cfg.IPC.SocketPath, mon, logger); err != nil {
			logger.Error("IPC server error", "error", err)
		}
	}()

	// Start state WebSocket server
	if cfg.WS.Enabled {
		stateSrv := NewStateServer(logger)
		mon.OnAction(stateSrv.Publish)

		go stateSrv.Hub().Run(ctx)
		go func() {
			if err := runStateWSServer(ctx, cfg.WS.Port, stateSrv, logger); err != nil {
				logger.Error("state ws server error", "error", err)
			}
		}()
	}

	logger.Debug("starting hotkeyd", "version", version)
	logger.Info("listening",
		"poll_hz", cfg.Input.PollHz,
		"ipc", cfg.IPC.SocketPath,
		"ws_enabled", cfg.WS.Enabled,
		"ws_port", cfg.WS.Port,
		"long_press_ms", cfg.Power.LongPressMS,
		"wake_debounce_ms", cfg.Power.WakeDebounceMS)

	ticker := time.NewTicker(time.Second / time.Duration(cfg.Input.PollHz))
	defer ticker.Stop()

	for {
		select {
		case <-sigc:
			logger.Info("shutting down")
			return

		case now := <-ticker.C:
			if mon.PollTick(now) {
				logger.Info("poweroff requested, stopping monitor", "cmd", cfg.Power.PoweroffCmd)
				cancel()
				mon.Cleanup()
				runPoweroff(cfg.Power.PoweroffCmd, logger)
				return
			}
		}
	}
}

// runPoweroff executes the configured poweroff command. If it fails the daemon
// still exits; there is nothing sensible left to do with the hardware.
func runPoweroff(cmd string, logger *slog.Logger) {
	if cmd == "" {
		return
	}
	if err := exec.Command(cmd).Run(); err != nil {
		logger.Error("poweroff command failed", "cmd", cmd, "error", err)
	}
}
