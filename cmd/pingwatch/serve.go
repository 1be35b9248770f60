package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"pingwatch/internal/adapter"
	"pingwatch/internal/browse"
	"pingwatch/internal/config"
	"pingwatch/internal/handler"
	"pingwatch/internal/hub"
	"pingwatch/internal/notify"
	"pingwatch/internal/preflight"
	"pingwatch/internal/repository"
	"pingwatch/internal/repository/sqlite"
	"pingwatch/internal/service"
	"pingwatch/internal/watcher"
)

func newServeCmd(a *app) *cobra.Command {
	var noWatch bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the monitor and its HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx, !noWatch)
		},
	}
	cmd.Flags().String("addr", "", "HTTP listen address")
	cmd.Flags().String("db", "", "SQLite database path")
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "do not reload when the config file changes")
	return cmd
}

func (a *app) serve(ctx context.Context, watch bool) error {
	cfg, log := a.cfg, a.log

	var repo repository.Repository
	repo, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer repo.Close()
	log.WithField("path", cfg.Database.Path).Info("database opened")

	prober := a.prober()
	report := a.preflight(ctx, prober)
	report.Log(log)

	bus := service.NewEventBus()
	deps := service.Deps{
		Store:      repo,
		Prober:     prober,
		Interfaces: adapter.NewInventory(),
		Bus:        bus,
		Log:        log,
	}
	if e := newEnricher(ctx, cfg, log, report.OK(preflight.CheckRawICMP)); e != nil {
		deps.Enricher = e
	}
	if rc := cfg.Notify.Redis; rc.Addr != "" {
		r := notify.NewRedis(notify.RedisConfig{
			Addr:     rc.Addr,
			Password: rc.Password,
			DB:       rc.DB,
			Channel:  rc.Channel,
		})
		defer r.Close()
		deps.Notifier, deps.Publisher = r, r
		log.WithField("addr", rc.Addr).Info("publishing to redis")
	}

	mon := service.NewMonitor(cfg, a.cfgPath, deps)

	sse := hub.New(log)
	events := make(chan service.Event, 100)
	bus.Subscribe(events)
	defer bus.Unsubscribe(events)

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           handler.New(mon, log).Router(sse),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return mon.Run(gctx) })
	g.Go(func() error {
		sse.Run(gctx)
		return nil
	})
	g.Go(func() error {
		hub.Forward[service.Event](gctx, sse, events)
		return nil
	})
	g.Go(func() error {
		log.WithField("addr", srv.Addr).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if watch && a.cfgPath != "" {
		w := watcher.New(a.cfgPath, mon.Reload, log)
		g.Go(func() error {
			if err := w.Watch(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("config watcher: %w", err)
			}
			return nil
		})
	}

	err = g.Wait()
	log.Info("pingwatch stopped")
	return err
}

// newEnricher collects the MAC and vendor resolvers usable on this host.
// It returns nil when no MAC source is available. privileged lets nmap use
// raw sockets.
func newEnricher(ctx context.Context, cfg *config.Config, log logrus.FieldLogger, privileged bool) browse.Enricher {
	var (
		macs    []adapter.MACResolver
		vendors []adapter.VendorResolver
	)
	if arp := adapter.NewARPTable(cfg.Enrich.ARPPath); arp != nil {
		macs = append(macs, arp)
	}
	if cfg.Enrich.Nmap {
		if n := adapter.NewNmapLookup(ctx,
			adapter.WithNmapLogger(log),
			adapter.WithNmapPrivileged(privileged),
		); n != nil {
			macs = append(macs, n)
			vendors = append(vendors, n)
		}
	}
	if path := cfg.Enrich.MACPrefixesPath; path != "" {
		prefixes, err := adapter.LoadMACPrefixes(path)
		if err != nil {
			log.WithError(err).WithField("path", path).Warn("cannot load MAC prefixes, vendor lookup limited")
		} else {
			vendors = append(vendors, prefixes)
		}
	}

	e := adapter.NewEnricher(macs, vendors, log)
	if e == nil {
		log.Info("no MAC source available, detected hosts will not be enriched")
		return nil
	}
	return e
}
