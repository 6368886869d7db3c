// Package service wires the gateway's components into one process-wide
// Service: config -> cache -> parambus adapter -> translator -> event
// pipeline -> uplink session, with init-once/shutdown-once semantics.
//
// Shutdown is context-driven: a goroutine watches ctx.Done() and tears
// the session down through its cooperative Stop flag rather than
// closing a net.Listener directly.
package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/tenzoki/agen/paramgw/internal/authz"
	"github.com/tenzoki/agen/paramgw/internal/cache"
	"github.com/tenzoki/agen/paramgw/internal/config"
	"github.com/tenzoki/agen/paramgw/internal/events"
	"github.com/tenzoki/agen/paramgw/internal/logging"
	"github.com/tenzoki/agen/paramgw/internal/parambus"
	"github.com/tenzoki/agen/paramgw/internal/translator"
	"github.com/tenzoki/agen/paramgw/internal/txn"
	"github.com/tenzoki/agen/paramgw/internal/uplink"
)

// Service is the process-wide gateway instance. Init wires the
// components only once per Service value; later calls do nothing and
// return the first call's result. Shutdown is likewise idempotent.
type Service struct {
	cfg *config.Config
	log *logging.Logger

	cache       *cache.Cache
	adapter     *parambus.Adapter
	authzHook   *authz.Hook
	jwtResolver *authz.Resolver
	pipeline    *events.Pipeline
	translator  *translator.Translator
	txnEngine   *txn.Engine
	session     *uplink.Session

	initOnce     sync.Once
	shutdownOnce sync.Once
	initErr      error
}

// New constructs an uninitialized Service. Call Init before use.
func New() *Service {
	return &Service{}
}

// Init wires every component from cfg and opens the parambus driver.
// transport supplies the uplink framing (mock or real); driver
// supplies the parambus binding (nil selects an in-memory reference
// driver, used by mock mode and tests).
func (s *Service) Init(cfg *config.Config, transport uplink.Transport, driver parambus.Driver) error {
	s.initOnce.Do(func() {
		s.initErr = s.init(cfg, transport, driver)
	})
	return s.initErr
}

func (s *Service) init(cfg *config.Config, transport uplink.Transport, driver parambus.Driver) error {
	s.cfg = cfg
	// log_level 0 and 1 map to the default info verbosity, 2 and 3
	// enable debug output, same as the per-component Debug flag.
	s.log = logging.New(cfg.Component, cfg.Debug || cfg.LogLevel >= 2)

	if driver == nil {
		driver = parambus.NewMemoryDriver()
	}
	s.adapter = parambus.NewAdapter(driver)
	if err := s.adapter.Open(cfg.Component); err != nil {
		return fmt.Errorf("service: failed to open parambus: %w", err)
	}

	s.cache = cache.New(cache.Config{
		MaxEntries:             cfg.Cache.MaxEntries,
		DefaultTTLSeconds:      cfg.Cache.DefaultTTLSeconds,
		CleanupIntervalSeconds: cfg.Cache.CleanupIntervalSeconds,
		EnableStats:            cfg.Cache.EnableStats,
	})

	s.authzHook = authz.NewHook(cfg.Authz.Rules)
	if cfg.Authz.JWKSURL != "" {
		resolver, err := authz.NewResolver(cfg.Authz.JWKSURL, cfg.Authz.RedisAddr, cfg.Authz.CacheTTLSeconds, s.log)
		if err != nil {
			return fmt.Errorf("service: failed to build authorization resolver: %w", err)
		}
		s.jwtResolver = resolver
	}

	session := uplink.NewSession(transport, nil, s.resolveAuth, s.log, cfg.ServiceName, cfg.Event.EventsEndpoint, cfg.AwaitTimeoutSeconds)
	s.session = session

	s.pipeline = events.NewPipeline(s.adapter, s.cache, session, s.log, cfg.ServiceName, cfg.Event.EventsEndpoint, cfg.Event.FillOldValue())

	s.translator = translator.New(s.adapter, s.cache, s.authzHook, s.pipeline, s.log)
	session.SetHandler(s.translator.Handle)

	s.txnEngine = txn.NewEngine(s.adapter, txn.Config{
		MaxTransactionSize:        cfg.Txn.MaxTransactionSize,
		TransactionTimeoutSeconds: cfg.Txn.TransactionTimeoutSeconds,
		EnableRollback:            cfg.Txn.EnableRollback,
		EnableValidation:          cfg.Txn.EnableValidation,
	}, s.pipeline, s.log)

	for _, eventName := range cfg.Event.SubscribedEvents {
		if err := s.pipeline.Subscribe(eventName); err != nil {
			s.log.Warn("failed to subscribe to %s at startup: %v", eventName, err)
		}
	}

	return nil
}

func (s *Service) resolveAuth(f uplink.Frame) authz.AuthContext {
	if s.jwtResolver == nil {
		return authz.AuthContext{}
	}
	authCtx, err := s.jwtResolver.Resolve(context.Background(), f.ContentType)
	if err != nil {
		s.log.Warn("authorization resolution failed for frame from %s: %v", f.Source, err)
		return authz.AuthContext{}
	}
	return authCtx
}

// TransactionEngine exposes the wired Transaction Engine so a caller
// (e.g. a bulk-config entry point layered on top of the uplink session)
// can run multi-parameter transactions directly.
func (s *Service) TransactionEngine() *txn.Engine { return s.txnEngine }

// Run drives the uplink session's receive loop until ctx is cancelled.
// Must be called after a successful Init.
func (s *Service) Run(ctx context.Context) {
	go func() {
		<-ctx.Done()
		s.log.Info("shutdown signal received, draining uplink session")
		s.session.Stop()
	}()
	s.session.Run()
}

// Shutdown unsubscribes every configured event (reverse order) and
// closes the parambus handle. Idempotent.
func (s *Service) Shutdown() error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		for i := len(s.cfg.Event.SubscribedEvents) - 1; i >= 0; i-- {
			if err := s.pipeline.Unsubscribe(s.cfg.Event.SubscribedEvents[i]); err != nil {
				s.log.Warn("failed to unsubscribe from %s during shutdown: %v", s.cfg.Event.SubscribedEvents[i], err)
			}
		}
		if err := s.adapter.Close(); err != nil {
			shutdownErr = fmt.Errorf("service: failed to close parambus: %w", err)
		}
	})
	return shutdownErr
}
