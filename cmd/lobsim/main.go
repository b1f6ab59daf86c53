// Command lobsim runs the synthetic market: stream L3 events to stdout,
// profile generator throughput, or broadcast snapshots over websocket.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	lob "github.com/lobforge/lobsim"
	"github.com/lobforge/lobsim/sim"
	"github.com/lobforge/lobsim/stream"
)

const (
	exitOK      = 0
	exitUsage   = 1
	exitRuntime = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) < 1 {
		usage()
		return exitUsage
	}

	switch args[0] {
	case "stream":
		return runStream(args[1:])
	case "profile":
		return runProfile(args[1:])
	case "ws":
		return runWS(args[1:])
	case "-h", "--help", "help":
		usage()
		return exitOK
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", args[0])
		usage()
		return exitUsage
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `usage: lobsim <command> [flags]

commands:
  stream   run the generator and write L3 events to stdout as JSON lines
  profile  run the generator silently and report throughput to stderr
  ws       broadcast book snapshots over websocket

run "lobsim <command> -h" for command flags
`)
}

// loadConfig builds the effective config: file if given, defaults otherwise,
// then flag overrides on top.
func loadConfig(path string, seed int64) (sim.Config, error) {
	cfg := sim.DefaultConfig()
	if path != "" {
		var err error
		cfg, err = sim.LoadConfig(path)
		if err != nil {
			return cfg, err
		}
	}
	if seed != 0 {
		cfg.Seed = seed
	}
	return cfg, cfg.Validate()
}

func runStream(args []string) int {
	fs := flag.NewFlagSet("stream", flag.ContinueOnError)
	configPath := fs.String("config", "", "yaml config file")
	seed := fs.Int64("seed", 0, "override the RNG seed (0 keeps the config value)")
	steps := fs.Int("steps", 1000, "number of generator ticks to run")
	sleepSec := fs.Float64("sleep-sec", 0, "pause between ticks in seconds")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *steps < 1 {
		fmt.Fprintln(os.Stderr, "steps must be at least 1")
		return exitUsage
	}

	cfg, err := loadConfig(*configPath, *seed)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitUsage
	}

	gen, err := sim.NewGenerator(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitRuntime
	}

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()
	enc := json.NewEncoder(out)

	sleep := time.Duration(*sleepSec * float64(time.Second))
	for i := 0; i < *steps; i++ {
		for _, res := range gen.Step() {
			for j := range res.Events {
				if err := enc.Encode(&res.Events[j]); err != nil {
					fmt.Fprintln(os.Stderr, err)
					return exitRuntime
				}
			}
		}
		if sleep > 0 {
			out.Flush()
			time.Sleep(sleep)
		}
	}
	return exitOK
}

func runProfile(args []string) int {
	fs := flag.NewFlagSet("profile", flag.ContinueOnError)
	configPath := fs.String("config", "", "yaml config file")
	seed := fs.Int64("seed", 0, "override the RNG seed (0 keeps the config value)")
	steps := fs.Int("steps", 100000, "number of generator ticks to run")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *steps < 1 {
		fmt.Fprintln(os.Stderr, "steps must be at least 1")
		return exitUsage
	}

	cfg, err := loadConfig(*configPath, *seed)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitUsage
	}

	gen, err := sim.NewGenerator(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitRuntime
	}

	events := 0
	trades := 0
	start := time.Now()
	for i := 0; i < *steps; i++ {
		for _, res := range gen.Step() {
			events += len(res.Events)
			trades += len(res.Trades)
		}
	}
	elapsed := time.Since(start)

	fmt.Fprintf(os.Stderr, "steps=%d events=%d trades=%d elapsed=%s events/sec=%.0f\n",
		*steps, events, trades, elapsed,
		float64(events)/elapsed.Seconds())
	return exitOK
}

func runWS(args []string) int {
	fs := flag.NewFlagSet("ws", flag.ContinueOnError)
	configPath := fs.String("config", "", "yaml config file")
	seed := fs.Int64("seed", 0, "override the RNG seed (0 keeps the config value)")
	host := fs.String("host", "", "listen host (empty binds all interfaces)")
	port := fs.Int("port", 8787, "listen port")
	logFile := fs.String("log-file", "", "log file with rotation (stdout when empty)")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	cfg, err := loadConfig(*configPath, *seed)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitUsage
	}
	cfg.Addr = fmt.Sprintf("%s:%d", *host, *port)

	if *logFile != "" {
		lob.SetLogger(slog.New(slog.NewJSONHandler(&lumberjack.Logger{
			Filename:   *logFile,
			MaxSize:    100, // megabytes
			MaxBackups: 3,
			MaxAge:     7, // days
		}, nil)))
	}

	gen, err := sim.NewGenerator(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitRuntime
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// single writer: the generator steps the book on its own goroutine
	go func() {
		ticker := time.NewTicker(time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				gen.Step()
			}
		}
	}()

	srv := stream.NewServer(stream.ServerConfig{
		Addr:           cfg.Addr,
		TargetHz:       cfg.TargetHz,
		MaxSubscribers: cfg.MaxSubscribers,
	}, stream.NewSampler(gen.Book(), cfg.Depth))

	if err := srv.Run(ctx); err != nil {
		lob.Logger().Error("broadcaster failed", "err", err)
		return exitRuntime
	}
	return exitOK
}
