// Command aggregator is the composition root: it loads configuration,
// wires the orchestrator, rolling-window engine, signal detector, and
// WebSocket fan-out hubs together, serves the HTTP surface, and tears
// everything down in reverse order on SIGINT/SIGTERM.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quantedge/spreadarb/adapter"
	"github.com/quantedge/spreadarb/adapter/reference"
	"github.com/quantedge/spreadarb/config"
	"github.com/quantedge/spreadarb/httpapi"
	"github.com/quantedge/spreadarb/ingest"
	"github.com/quantedge/spreadarb/logging"
	"github.com/quantedge/spreadarb/metrics"
	"github.com/quantedge/spreadarb/model"
	sig "github.com/quantedge/spreadarb/signal"
	"github.com/quantedge/spreadarb/window"
	"github.com/quantedge/spreadarb/wsfanout"
	"github.com/shopspring/decimal"
)

func main() {
	logger := logging.NewLogger(logging.INFO)

	configPath := os.Getenv("AGGREGATOR_CONFIG")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", err, logging.Component("main"))
	}

	logger.Info("starting spread aggregator", logging.Component("main"), logging.String("port", cfg.Port))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine := window.New(cfg.Window, logger)
	go engine.RunCleanup(ctx)

	realtimeHub := wsfanout.New("/ws/realtime", cfg.WS, logger)
	chartsHub := wsfanout.New("/ws/realtime_charts", cfg.WS, logger)
	signalsHub := wsfanout.New("/ws/signals", cfg.WS, logger)
	stopHubs := make(chan struct{})
	go realtimeHub.Run(stopHubs)
	go chartsHub.Run(stopHubs)
	go signalsHub.Run(stopHubs)

	detector := sig.New(cfg.Signals, func(s model.Signal) {
		signalsHub.Publish(wsfanout.TopicGlobal, s)
	})

	engine.SubscribeAll(detector.OnSpreadPoint)
	engine.SubscribeAll(func(key model.WindowKey, _ []model.SpreadPoint) {
		frame, ok := engine.ChartFrame(key.Exchange1, key.Exchange2, key.Symbol, cfg.Chart)
		if !ok {
			return
		}
		chartsHub.Publish(key.String(), frame)
	})

	adapters := buildAdapters(cfg, logger)
	orchestrator := ingest.New(*cfg, adapters, func(t model.Tick) {
		realtimeHub.Publish(wsfanout.TopicGlobal, wsfanout.Envelope{Type: "Spread", Payload: t})
	}, logger)
	if err := orchestrator.Start(ctx); err != nil {
		logger.Fatal("failed to start orchestrator", err, logging.Component("main"))
	}

	go pumpWindowChannel(ctx, orchestrator, engine)

	healthChecker := httpapi.NewHealthChecker()
	healthChecker.RegisterCheck("orchestrator", func() httpapi.ComponentHealth {
		reconnecting := orchestrator.AdaptersReconnecting()
		metrics.AdaptersReconnecting.Set(float64(reconnecting))
		status := httpapi.StatusHealthy
		if reconnecting > 0 {
			status = httpapi.StatusDegraded
		}
		return httpapi.ComponentHealth{Status: status, LastChecked: time.Now()}
	})
	healthChecker.RegisterCheck("window_engine", func() httpapi.ComponentHealth {
		return httpapi.ComponentHealth{
			Status:      httpapi.StatusHealthy,
			LastChecked: time.Now(),
			Metadata: map[string]interface{}{
				"windows_active":     engine.WindowCount(),
				"latest_ticks_cached": engine.LatestTickCount(),
			},
		}
	})

	mux := httpapi.Mux(healthChecker, func(mux *http.ServeMux) {
		httpapi.RegisterChartRoute(mux, engine, cfg.Chart)
		mux.HandleFunc("/ws/realtime", func(w http.ResponseWriter, r *http.Request) {
			realtimeHub.ServeWs(w, r, wsfanout.TopicGlobal)
		})
		mux.HandleFunc("/ws/realtime_charts", func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			key := model.NewWindowKey(q.Get("ex1"), q.Get("ex2"), q.Get("symbol"))
			chartsHub.ServeWs(w, r, key.String())
		})
		mux.HandleFunc("/ws/signals", func(w http.ResponseWriter, r *http.Request) {
			signalsHub.ServeWs(w, r, wsfanout.TopicGlobal)
		})
	})

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: mux,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server failed", err, logging.Component("main"))
		}
	}()

	waitForShutdown(logger)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)

	cancel()
	close(stopHubs)
	orchestrator.Stop()

	logger.Info("shutdown complete", logging.Component("main"))
}

// pumpWindowChannel feeds every tick from the orchestrator's Window channel
// into the rolling-window engine. The signal detector and charts hub are
// wired once via Engine.SubscribeAll in main, so every window's appends
// reach them without per-pair subscription bookkeeping here.
func pumpWindowChannel(ctx context.Context, o *ingest.Orchestrator, engine *window.Engine) {
	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-o.WindowChan():
			if !ok {
				return
			}
			engine.OnTick(t)
		}
	}
}

// buildAdapters constructs one adapter per enabled exchange. The only
// adapter shipped in this repository is the synthetic reference adapter;
// production deployments supply real exchange adapters satisfying
// adapter.Adapter instead.
func buildAdapters(cfg *config.Config, logger *logging.Logger) []adapter.Adapter {
	basePrices := map[string]decimal.Decimal{
		"BTCUSDT": decimal.NewFromInt(50000),
		"ETHUSDT": decimal.NewFromInt(3000),
		"SOLUSDT": decimal.NewFromInt(150),
	}

	var adapters []adapter.Adapter
	for name, exCfg := range cfg.Exchanges {
		if !exCfg.Enabled {
			continue
		}
		adapters = append(adapters, reference.New(reference.Config{
			Name:       name,
			BasePrices: basePrices,
			MinVolume:  exCfg.MinUSDVolume,
			MaxVolume:  exCfg.MaxUSDVolume,
			Logger:     logger,
		}))
	}
	return adapters
}

func waitForShutdown(logger *logging.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received shutdown signal", logging.Component("main"), logging.String("signal", sig.String()))
}
