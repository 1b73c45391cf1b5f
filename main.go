package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/baconls/bacon-lsp/internal/lsp"
)

const (
	serverName    = "bacon-lsp"
	serverVersion = "0.1.0"
)

func main() {
	showVersion := pflag.BoolP("version", "v", false, "display version information")
	logLevel := pflag.String("log-level", os.Getenv("BACON_LS_LOG"), "log level (debug, info, warn, error, off)")
	logFile := pflag.String("log-file", serverName+".log", "log file path")
	pflag.Parse()

	if *showVersion {
		fmt.Printf("%s v%s\n", serverName, serverVersion)
		return
	}

	// stdout carries the RPC stream, so logs go to a file or nowhere.
	if err := configureLogging(*logLevel, *logFile); err != nil {
		fmt.Fprintf(os.Stderr, "failed to configure logging: %v\n", err)
		os.Exit(1)
	}

	server := lsp.NewServer(serverName, serverVersion)
	if err := server.Start(os.Stdin, os.Stdout); err != nil {
		slog.Error("lsp server error", "err", err)
		os.Exit(1)
	}
}

func configureLogging(level, path string) error {
	if level == "" || level == "off" {
		slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
		return nil
	}

	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "info":
		l = slog.LevelInfo
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(file, &slog.HandlerOptions{Level: l})))
	slog.Info("logging initialized", "level", level, "file", path)
	return nil
}
