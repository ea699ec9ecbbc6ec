package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"GuildFM/cache"
	"GuildFM/config"
	"GuildFM/core/auth"
	"GuildFM/core/channel"
	"GuildFM/core/command"
	"GuildFM/core/metrics"
	"GuildFM/core/node"
	"GuildFM/core/notify"
	"GuildFM/core/queue"
	"GuildFM/core/reconciler"
	"GuildFM/core/voice"
	"GuildFM/db"
	"GuildFM/logger"
	"GuildFM/model"
	"GuildFM/repository"
	"GuildFM/storage"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Start initializes every component, serves HTTP and blocks until SIGINT/SIGTERM.
func Start(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// 设置服务器超时
	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	registry := queue.NewRegistry()
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(promRegistry)
	metrics.RegisterTenantGauge(promRegistry, registry.Len)

	// 通知频道
	hub := channel.NewHub()
	go hub.Run()
	defer hub.Stop()

	var telegram notify.Notifier
	if cfg.TelegramEnabled() {
		tg, err := notify.NewTelegram(cfg.TelegramToken)
		if err != nil {
			return err
		}
		telegram = tg
	}
	notifier := notify.NewRouter(hub, telegram)

	// 队列镜像
	var mirror *cache.QueueCache
	if cfg.RedisEnabled() {
		if err := cache.ConnectRedis(cfg); err != nil {
			return err
		}
		defer cache.CloseRedis()
		mirror = cache.NewQueueCache(cache.RedisClient)
		logger.Info("Successfully connected to Redis", logger.String("host", cfg.RedisHost))
	}

	// 播放记录
	var history repository.HistoryRepository
	if cfg.DBEnabled() {
		gdb, err := db.ConnectGormDB(cfg)
		if err != nil {
			return err
		}
		defer db.CloseGormDB()
		history = repository.NewGormHistoryRepository(gdb)
	}

	// 歌单导出
	var exporter *storage.PlaylistStore
	if cfg.MinioEnabled() {
		store, err := storage.NewPlaylistStore(ctx, cfg)
		if err != nil {
			return err
		}
		exporter = store
	}

	var issuer *auth.Issuer
	if cfg.JWTSecret != "" {
		iss, err := auth.NewIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)
		if err != nil {
			return err
		}
		issuer = iss
	} else {
		logger.Warn("JWT_SECRET not set, command API is disabled")
	}

	nodeClient := node.NewClient(node.Config{
		WSURL:    cfg.NodeWSURL,
		HTTPURL:  cfg.NodeHTTPURL,
		Password: cfg.NodePassword,
		UserID:   cfg.NodeUserID,
		Shards:   cfg.NodeShards,
	})

	rec := reconciler.New(registry, nodeClient, notifier, reconcilerOptions(history, mirror, m))
	dispatcher := reconciler.NewDispatcher(rec, reconciler.DispatcherConfig{
		IdleTimeout:  cfg.WorkerIdle,
		EventTimeout: cfg.CommandTimeout,
		Metrics:      m,
	})

	table := command.NewTable(commandDeps(registry, nodeClient, exporter, history, mirror, m))

	nodeDone := make(chan struct{})
	go func() {
		defer close(nodeDone)
		err := nodeClient.Run(ctx, func(ev model.NodeEvent) {
			if err := dispatcher.Dispatch(ev); err != nil {
				logger.Warn("dropped node event", logger.Tenant(ev.TenantID), logger.ErrorField(err))
			}
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("node client stopped", logger.ErrorField(err))
		}
	}()

	handler := NewAPIHandler(table, registry, hub, issuer, cfg.CommandTimeout)
	srv.Handler = NewRouter(handler, promRegistry)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting", logger.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// 等待中断信号
	select {
	case <-ctx.Done():
	case err := <-errCh:
		cancel()
		<-nodeDone
		dispatcher.Close()
		return fmt.Errorf("failed to start server: %w", err)
	}
	logger.Info("Shutting down server...")

	// 创建一个5秒超时的上下文
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	// 优雅关闭服务器
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", logger.ErrorField(err))
	}
	<-nodeDone
	dispatcher.Close()

	logger.Info("Server stopped")
	return nil
}

// reconcilerOptions 只传入已启用的组件，避免接口中出现 typed nil
func reconcilerOptions(history repository.HistoryRepository, mirror *cache.QueueCache, m *metrics.Metrics) reconciler.Options {
	opts := reconciler.Options{History: history, Metrics: m}
	if mirror != nil {
		opts.Mirror = mirror
	}
	return opts
}

func commandDeps(
	registry *queue.Registry,
	n command.Node,
	exporter *storage.PlaylistStore,
	history repository.HistoryRepository,
	mirror *cache.QueueCache,
	m *metrics.Metrics,
) command.Deps {
	deps := command.Deps{
		Registry: registry,
		Node:     n,
		Voice:    voice.NewTracker(),
		History:  history,
		Metrics:  m,
	}
	if exporter != nil {
		deps.Exporter = exporter
	}
	if mirror != nil {
		deps.Mirror = mirror
	}
	return deps
}
