// Command paramgw runs the parameter gateway: a protocol-translation
// bridge between the uplink and the parambus.
//
// Configuration resolves in three tiers (explicit path argument, a
// well-known default path, then hardcoded defaults) and shutdown is
// signal-driven.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tenzoki/agen/paramgw/internal/config"
	"github.com/tenzoki/agen/paramgw/internal/logging"
	"github.com/tenzoki/agen/paramgw/internal/service"
	"github.com/tenzoki/agen/paramgw/internal/uplink"
)

const defaultConfigPath = "config/paramgw.yaml"

func main() {
	cfg, source := resolveConfig()
	log := logging.New(cfg.Component, cfg.Debug || cfg.LogLevel >= 2)
	log.Info("starting parameter gateway (config from %s, mode=%s)", source, cfg.Mode)

	transport := resolveTransport(cfg)

	svc := service.New()
	if err := svc.Init(cfg, transport, nil); err != nil {
		log.Error("failed to initialize gateway: %v", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("received signal %v, shutting down", sig)
		cancel()
	}()

	svc.Run(ctx)

	if err := svc.Shutdown(); err != nil {
		log.Error("error during shutdown: %v", err)
		os.Exit(1)
	}
	log.Info("parameter gateway stopped")
}

// resolveConfig implements the three-tier resolution: os.Args[1], then
// the well-known default path, then the hardcoded Default().
func resolveConfig() (*config.Config, string) {
	if len(os.Args) > 1 {
		path := os.Args[1]
		cfg, err := config.Load(path)
		if err == nil {
			return cfg, path
		}
		fmt.Fprintf(os.Stderr, "paramgw: failed to load config %s: %v\n", path, err)
		os.Exit(1)
	}

	if cfg, err := config.Load(defaultConfigPath); err == nil {
		return cfg, defaultConfigPath
	}

	return config.Default(), "built-in defaults"
}

func resolveTransport(cfg *config.Config) uplink.Transport {
	if cfg.Mode == "mock" {
		return uplink.NewMockTransport(os.Stdin, os.Stdout)
	}
	// A "real" deployment supplies a Transport bound to the actual
	// uplink framing library, which lives outside this module; mock
	// mode is the only binding shipped here.
	return uplink.NewMockTransport(os.Stdin, os.Stdout)
}
