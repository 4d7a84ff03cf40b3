package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/samvad-hq/samvad-newsdesk/internal/api"
	"github.com/samvad-hq/samvad-newsdesk/internal/cache"
	"github.com/samvad-hq/samvad-newsdesk/internal/config"
	"github.com/samvad-hq/samvad-newsdesk/internal/gateway"
	"github.com/samvad-hq/samvad-newsdesk/internal/logger"
	"github.com/samvad-hq/samvad-newsdesk/internal/metrics"
	"github.com/samvad-hq/samvad-newsdesk/internal/scheduler"
	"github.com/samvad-hq/samvad-newsdesk/internal/storage"
	"github.com/samvad-hq/samvad-newsdesk/pkg/publishers"
	"github.com/samvad-hq/samvad-newsdesk/pkg/sources"
)

// Newsdesk is the assembled runtime: source adapters, store, scheduler,
// gateway and the optional publisher fanout. The store is opened here and
// closed by Close.
type Newsdesk struct {
	cfg       *config.Config
	sourceReg *sources.Registry
	store     storage.Store
	cache     cache.Cache
	fanout    *publishers.Fanout
	metrics   *metrics.Metrics
	scheduler *scheduler.Service
	gateway   *gateway.Service
	log       logger.Logger
}

// New builds a newsdesk runtime from config files.
func New(ctx context.Context, cfg *config.Config, log logger.Logger) (*Newsdesk, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	log = logger.OrNop(log)
	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := scheduler.ParseSchedule(cfg.ScrapeSchedule); err != nil {
		return nil, fmt.Errorf("invalid scrape_schedule: %w", err)
	}

	sourceReg, err := sources.LoadRegistry(cfg.SourcesFile)
	if err != nil {
		return nil, fmt.Errorf("load sources registry: %w", err)
	}
	srcList := sourceReg.Sources()
	sourceIDs := make([]string, 0, len(srcList))
	for _, s := range srcList {
		sourceIDs = append(sourceIDs, s.ID)
	}
	log.InfoObj("sources registry loaded", "sources_meta", map[string]any{
		"count": len(sourceIDs),
		"ids":   sourceIDs,
	})

	adapters, err := sources.BuildAdapters(sourceReg, sources.DefaultVariants(log), sources.DefaultHTTPClient(cfg.FetchTimeout), log)
	if err != nil {
		return nil, fmt.Errorf("build source adapters: %w", err)
	}
	fetchers := make([]sources.Fetcher, 0, len(adapters))
	for _, a := range adapters {
		fetchers = append(fetchers, a)
	}

	nd := &Newsdesk{cfg: cfg, sourceReg: sourceReg, log: log}
	if cfg.MetricsEnabled {
		nd.metrics = metrics.New()
	}

	nd.fanout, err = buildFanout(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	nd.store, err = storage.NewStore(cfg.StorageType, cfg.BBoltPath, storage.Options{})
	if err != nil {
		nd.Close()
		return nil, fmt.Errorf("init storage: %w", err)
	}
	log.InfoObj("storage initialized", "storage_config", map[string]any{
		"type": cfg.StorageType,
		"path": cfg.BBoltPath,
	})

	nd.cache, err = cache.New(cfg.CacheType, cache.Options{
		TTL:           cfg.CacheTTL,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
	})
	if err != nil {
		nd.Close()
		return nil, fmt.Errorf("init cache: %w", err)
	}

	var dispatcher publishers.Dispatcher
	if nd.fanout.Size() > 0 {
		dispatcher = nd.fanout
	}
	nd.scheduler, err = scheduler.NewService(nd.store, fetchers, dispatcher, nd.metrics, log, scheduler.Options{
		Cooldown:   cfg.ScrapeCooldown,
		RunTimeout: cfg.RunTimeout,
	})
	if err != nil {
		nd.Close()
		return nil, fmt.Errorf("init scheduler: %w", err)
	}

	projection := cache.NewProjection(nd.store, nd.cache, log)
	nd.gateway = gateway.NewService(nd.store, projection, nd.scheduler, log)
	return nd, nil
}

// buildFanout returns an empty fanout when no publishers file is configured.
func buildFanout(ctx context.Context, cfg *config.Config, log logger.Logger) (*publishers.Fanout, error) {
	if cfg.PublishersFile == "" {
		log.InfoObj("no publishers file configured; downstream events disabled", "publishers_file", "")
		return publishers.NewFanout(nil), nil
	}
	publisherReg, err := publishers.LoadRegistry(cfg.PublishersFile)
	if err != nil {
		return nil, fmt.Errorf("load publishers registry: %w", err)
	}
	enabled := publisherReg.Enabled()
	pubClients, err := publishers.BuildAll(ctx, publishers.DefaultRegistry(), enabled, log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}

	summaries := make([]map[string]string, 0, len(enabled))
	for _, pubCfg := range enabled {
		summaries = append(summaries, map[string]string{"id": pubCfg.ID, "type": pubCfg.Type})
	}
	log.InfoObj("publishers registry loaded", "publishers_meta", map[string]any{
		"count":      len(summaries),
		"publishers": summaries,
	})
	return publishers.NewFanout(pubClients), nil
}

// Gateway exposes the gateway for command-line operations.
func (n *Newsdesk) Gateway() *gateway.Service { return n.gateway }

// Sources returns the enabled source registry.
func (n *Newsdesk) Sources() []sources.Source { return n.sourceReg.Sources() }

// Serve runs the periodic scheduler and the HTTP gateway until ctx is cancelled.
// Either side failing cancels the other.
func (n *Newsdesk) Serve(ctx context.Context) error {
	if n == nil || n.scheduler == nil {
		return fmt.Errorf("newsdesk is not initialized")
	}
	if n.cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	var metricsHandler http.Handler
	if n.metrics != nil {
		metricsHandler = n.metrics.Handler()
	}
	router := api.NewRouter(api.NewHandler(n.gateway, n.log), metricsHandler, n.log)
	server := api.NewServer(n.cfg.HTTPAddr, router, n.log)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := n.scheduler.Run(ctx, n.cfg.ScrapeSchedule); err != nil {
			return fmt.Errorf("scheduler: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return server.Run(ctx)
	})
	return g.Wait()
}

// Close releases publishers, the cache and the store.
func (n *Newsdesk) Close() {
	if n == nil {
		return
	}
	if err := n.fanout.Close(); err != nil {
		n.log.ErrorObj("publisher close failed", "error", err)
	}
	if n.cache != nil {
		if err := n.cache.Close(); err != nil {
			n.log.ErrorObj("cache close failed", "error", err)
		}
	}
	if n.store != nil {
		if err := n.store.Close(); err != nil {
			n.log.ErrorObj("storage close failed", "error", err)
		}
	}
}
