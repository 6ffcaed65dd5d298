package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"gravitylevel/internal/config"
	"gravitylevel/internal/logging"
	"gravitylevel/internal/web"
)

func main() {
	var configPath string
	var summarizePath string
	flag.StringVar(&configPath, "config", "./dev.yaml", "Path to YAML config")
	flag.StringVar(&summarizePath, "summarize", "", "Print a summary of a recorded status log and exit")
	flag.Parse()

	if summarizePath != "" {
		if err := printRecordSummary(os.Stdout, summarizePath); err != nil {
			fmt.Fprintf(os.Stderr, "summarize failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	boot := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	cfg, err := config.Load(configPath)
	if err != nil {
		boot.Fatal().Err(err).Str("path", configPath).Msg("config load failed")
	}

	logs := web.NewLogBuffer(2000)
	log, logCloser, err := logging.Setup(cfg.Log, logs)
	if err != nil {
		boot.Fatal().Err(err).Msg("logging setup failed")
	}
	defer logCloser.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(cfg, configPath, log)
	if err != nil {
		log.Error().Err(err).Msg("startup failed")
		return
	}

	log.Info().Str("config", configPath).Dur("interval", cfg.Program.Interval).Msg("gravitylevel starting")
	if err := a.run(ctx, cancel, os.Stdin, logs); err != nil {
		log.Error().Err(err).Msg("runtime error")
	}
	a.close()
	log.Info().Msg("gravitylevel stopped")
}
