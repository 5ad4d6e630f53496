package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/netpins/netpins-panel/internal/api"
	"github.com/netpins/netpins-panel/internal/device"
	"github.com/netpins/netpins-panel/internal/discovery"
	"github.com/netpins/netpins-panel/internal/dispatch"
	"github.com/netpins/netpins-panel/internal/logging"
	"github.com/netpins/netpins-panel/internal/metrics"
	"github.com/netpins/netpins-panel/internal/notify"
	"github.com/netpins/netpins-panel/internal/state"
)

var servePort int

// serveCmd runs the panel web server
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the configuration panel",
	Long: `Serve the configuration panel over HTTP.

The device state is polled every device.poll_interval, heartbeats are
collected from the UDP port when discovery is enabled, and notifications
are pushed to open browser tabs over a websocket.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Listen port, overrides server.port")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
	}

	logBuf := logging.NewLogBuffer(cfg.Log.BufferSize)
	log := newLogger(cfg, logBuf)
	log.Info().Str("device", cfg.Device.URL).Str("config", cfg.ConfigPath).Msg("NetPins panel starting")

	registry, err := loadForms(cfg)
	if err != nil {
		return err
	}

	m := metrics.New()
	client := device.NewClient(cfg.Device.URL, cfg.Device.Timeout)
	client.SetObserver(m.ObserveRequest)

	sender, closeSender, err := newSender(cfg, client, log)
	if err != nil {
		return err
	}
	defer closeSender()

	hub := notify.NewHub(log, func(n int) { m.WSClients.Set(float64(n)) })
	defer hub.Stop()

	store := state.NewStore(client, log)
	store.Subscribe(func(s state.Snapshot) {
		m.SetOnline(s.Online)
		hub.Broadcast(notify.NewMessage(notify.TypeState, s))
	})

	d := dispatch.New(dispatch.Options{
		Sender:         sender,
		Refresher:      store,
		Hub:            hub,
		History:        dispatch.NewHistory(cfg.Server.HistorySize),
		Metrics:        m,
		Logger:         log,
		RefreshTimeout: cfg.Device.Timeout,
	})
	defer d.Close()

	poller := state.NewPoller(store, cfg.Device.PollInterval, cfg.Device.Timeout)
	poller.Start()
	defer poller.Stop()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	var devices *discovery.Registry
	if cfg.Discovery.Enabled {
		reg := discovery.NewRegistry(cfg.Discovery.TTL, func(n int) { m.Discovered.Set(float64(n)) })
		listener, err := discovery.Listen(cfg.Discovery.Listen, reg, log)
		if err != nil {
			log.Warn().Err(err).Msg("Heartbeat discovery disabled")
		} else {
			devices = reg
			g.Go(func() error { return listener.Run(gctx) })
		}
	}

	srv := api.NewServer(api.Options{
		Config:     cfg,
		Forms:      registry,
		Store:      store,
		Dispatcher: d,
		Hub:        hub,
		Devices:    devices,
		Logs:       logBuf,
		Metrics:    m,
		Logger:     log,
	})

	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
