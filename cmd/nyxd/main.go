// Package main is the entry point for the nyx editor server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/nyxed/nyx/internal/applog"
	"github.com/nyxed/nyx/internal/config"
	"github.com/nyxed/nyx/internal/editor"
	"github.com/nyxed/nyx/internal/engine/worddb"
	"github.com/nyxed/nyx/internal/plugin"
	"github.com/nyxed/nyx/internal/server"
	"github.com/nyxed/nyx/internal/server/buffers"
	"github.com/nyxed/nyx/internal/server/events"
	"github.com/nyxed/nyx/internal/server/pool"
	"github.com/nyxed/nyx/internal/server/process"
	"github.com/nyxed/nyx/internal/session"
)

func main() {
	os.Exit(run())
}

type flags struct {
	configPath  string
	sessionName string
	printSocket bool
	logLevel    string
}

func parseFlags() flags {
	var f flags
	flag.StringVar(&f.configPath, "config", "", "path to the server's TOML config file")
	flag.StringVar(&f.sessionName, "session", "", "session name (default: a stable hash of the working directory)")
	flag.BoolVar(&f.printSocket, "print-socket", false, "print the derived socket path and exit")
	flag.StringVar(&f.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "nyxd - nyx editor server\n\nUsage: nyxd [options]\n\nOptions:\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	return f
}

func run() int {
	f := parseFlags()

	sessionName := f.sessionName
	if sessionName == "" {
		name, err := session.DeriveName()
		if err != nil {
			fmt.Fprintf(os.Stderr, "nyxd: deriving session name: %v\n", err)
			return 1
		}
		sessionName = name
	}
	socketPath := session.SocketPath(sessionName)

	if f.printSocket {
		fmt.Println(socketPath)
		return 0
	}

	log := applog.New(applog.WithLevel(parseLevel(f.logLevel))).WithComponent("nyxd")

	cfg, closeCfg, err := loadConfig(f.configPath, log)
	if err != nil {
		log.Error("loading config", "err", err)
		return 1
	}
	defer closeCfg()

	if cfg.SessionName != "" && f.sessionName == "" {
		socketPath = session.SocketPath(cfg.SessionName)
	}

	_ = os.Remove(socketPath)
	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		log.Error("listening on socket", "path", socketPath, "err", err)
		return 1
	}
	defer listener.Close()
	defer os.Remove(socketPath)

	log.Info("listening", "socket", socketPath, "session", sessionName)

	p := pool.New(cfg.ConnectionBufferLen)
	procs := process.New(p, process.WithMaxProcesses(cfg.MaxProcesses))
	bufs := buffers.New()
	queue := events.New()
	ed := editor.New(bufs, worddb.New(), queue, p, cfg.TabSize, log)

	if len(cfg.PluginPaths) > 0 {
		sync := plugin.NewSynchroniser(bufs, log)
		for _, path := range cfg.PluginPaths {
			if err := sync.Load(filepath.Base(path), path); err != nil {
				log.Error("loading plugin", "path", path, "err", err)
			}
		}
		ed.SetPlugins(sync)
	}

	loop := server.New(listener, p, procs, ed, cfg.IdleDuration, cfg.MaxClients)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info("shutting down")
		cancel()
	}()

	if err := loop.Run(ctx); err != nil {
		log.Error("server loop exited with error", "err", err)
		return 1
	}
	return 0
}

func loadConfig(path string, log *applog.Logger) (config.Config, func(), error) {
	if path == "" {
		return config.Default(), func() {}, nil
	}
	if _, err := os.Stat(path); err != nil {
		cfg, err := config.Load(path)
		return cfg, func() {}, err
	}
	w, err := config.Watch(path, config.WithErrorHandler(func(err error) {
		log.Error("config reload failed, keeping previous config", "err", err)
	}))
	if err != nil {
		return config.Config{}, nil, err
	}
	return w.Current(), func() { _ = w.Close() }, nil
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
