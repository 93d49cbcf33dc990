package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/edgegate-io/edgegate/internal/balancer"
	"github.com/edgegate-io/edgegate/internal/cache"
	"github.com/edgegate-io/edgegate/internal/config"
	"github.com/edgegate-io/edgegate/internal/health"
	"github.com/edgegate-io/edgegate/internal/logging"
	"github.com/edgegate-io/edgegate/internal/metrics"
	"github.com/edgegate-io/edgegate/internal/origin"
	"github.com/edgegate-io/edgegate/internal/proxy"
	"github.com/edgegate-io/edgegate/internal/retry"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to configuration file")
	flag.Parse()

	logger := logging.NewLogger("edgegate")
	defer logger.Sync()
	logger.Info("starting_edge_traffic_manager")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Error("failed_to_load_config", "error", err.Error())
		log.Fatal(err)
	}

	parsed, err := cfg.ParseOrigins()
	if err != nil {
		logger.Error("failed_to_parse_origins", "error", err.Error())
		log.Fatal(err)
	}

	origins := make([]*origin.Origin, 0, len(parsed))
	for _, po := range parsed {
		o := origin.New(po.URL, po.Weight)
		origins = append(origins, o)
		logger.Info("origin_added", "url", o.URL().String(), "weight", o.Weight())
	}

	registry, err := origin.NewRegistry(origins)
	if err != nil {
		logger.Error("failed_to_build_registry", "error", err.Error())
		log.Fatal(err)
	}

	collector := metrics.NewCollector()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Health prober
	probeClient := health.NewHTTPProbeClient(time.Duration(cfg.HealthCheck.Timeout) * time.Second)
	prober := health.NewProber(registry, probeClient, cfg.HealthCheck, collector, logger)
	go prober.Start(ctx)

	// Selection engine
	engine, err := balancer.NewEngine(registry, prober, balancer.Options{
		Algorithm: cfg.Strategy,
		FailOpen:  cfg.FailOpenEnabled(),
		MaxHops:   cfg.Failover.MaxHops,
	}, collector, logger)
	if err != nil {
		logger.Error("failed_to_create_engine", "error", err.Error())
		log.Fatal(err)
	}
	logger.Info("strategy_selected", "strategy", engine.Algorithm(), "fail_open", cfg.FailOpenEnabled())

	if err := applyGeoMappings(engine, cfg, logger); err != nil {
		log.Fatal(err)
	}

	// Response cache
	var responseCache *cache.Cache
	if cfg.Cache.Enabled {
		store, err := cache.NewLevelStore(cfg.Cache.Dir, logger)
		if err != nil {
			logger.Error("failed_to_open_cache_store", "dir", cfg.Cache.Dir, "error", err.Error())
			log.Fatal(err)
		}
		defer store.Close()
		go store.Sweep(ctx, 5*time.Minute)

		policy := cache.Policy{
			MaxTTL:       time.Duration(cfg.Cache.MaxTTL) * time.Second,
			MaxBodyBytes: cfg.Cache.MaxBodyBytes,
		}
		responseCache = cache.New(store, policy, collector, logger)
		logger.Info("cache_enabled", "dir", cfg.Cache.Dir, "max_ttl_seconds", cfg.Cache.MaxTTL)
	}

	// Failover policy
	failoverPolicy := retry.NewPolicy(cfg.Failover.MaxHops, cfg.Failover.BudgetPercent, logger)
	logger.Info("failover_configured",
		"max_hops", cfg.Failover.MaxHops,
		"budget_percent", cfg.Failover.BudgetPercent)

	// Request path
	requestTimeout := time.Duration(cfg.RequestTimeout) * time.Second
	handler := proxy.NewHandler(engine, prober, responseCache, failoverPolicy, requestTimeout, collector, logger)
	admin := proxy.NewAdmin(engine, prober, handler, logger)

	// Metrics exporter
	exporter := metrics.NewExporter(collector, registry, prober, failoverPolicy.Budget())
	go exporter.Start(ctx)

	// Config hot reload: weights, strategy and geo mappings apply live;
	// origin membership changes require a restart.
	watcher, err := config.NewWatcher(*configPath, logger, func(newCfg *config.Config) error {
		if err := engine.SetAlgorithm(newCfg.Strategy); err != nil {
			return err
		}
		for _, oc := range newCfg.Origins {
			weight := oc.Weight
			if weight == 0 {
				weight = 1
			}
			if err := engine.SetWeight(oc.URL, weight); err != nil {
				logger.Warn("reload_weight_skipped", "origin", oc.URL, "error", err.Error())
			}
		}
		return applyGeoMappings(engine, newCfg, logger)
	})
	if err != nil {
		logger.Error("failed_to_create_config_watcher", "error", err.Error())
	} else {
		go watcher.Start(ctx)
	}

	mux := http.NewServeMux()
	mux.Handle("/", handler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/edge-health", admin.HandleHealth)
	mux.HandleFunc("/stats", admin.HandleStats)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: mux,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("server_starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server_error", "error", err.Error())
			log.Fatal(err)
		}
	}()

	<-sigChan
	logger.Info("shutdown_signal_received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown_error", "error", err.Error())
	}

	cancel()
	logger.Info("shutdown_complete")
}

// applyGeoMappings installs the configured colo and continent routing tables.
func applyGeoMappings(engine *balancer.Engine, cfg *config.Config, logger *logging.Logger) error {
	for colo, originURL := range cfg.Geo.Colos {
		if err := engine.AddGeographicMapping(colo, originURL); err != nil {
			logger.Error("invalid_colo_mapping", "colo", colo, "origin", originURL, "error", err.Error())
			return err
		}
	}
	for continent, originURL := range cfg.Geo.Continents {
		if err := engine.AddContinentMapping(continent, originURL); err != nil {
			logger.Error("invalid_continent_mapping", "continent", continent, "origin", originURL, "error", err.Error())
			return err
		}
	}
	return nil
}
