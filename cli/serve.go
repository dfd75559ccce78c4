package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"beacon/config"
	"beacon/cron"
	"beacon/database"
	notificationRepo "beacon/database/repository/notification"
	preferenceRepo "beacon/database/repository/preference"
	subscriptionRepo "beacon/database/repository/subscription"
	"beacon/handlers"
	"beacon/middleware"
	"beacon/models"
	"beacon/routes"
	"beacon/services/channels"
	"beacon/services/notification"
	"beacon/services/preference"
	"beacon/services/router"
	"beacon/services/subscription"
	"beacon/services/views"
	"beacon/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the delivery engine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()
			return runServe(ctx)
		},
	}
}

func pushTransports(ctx context.Context, logger *zap.Logger) (map[models.SubscriptionKind]channels.PushTransport, error) {
	cfg := config.AppConfig
	transports := map[models.SubscriptionKind]channels.PushTransport{}
	if config.WebPushEnabled() {
		transports[models.SubscriptionWebPush] = &channels.WebPushTransport{
			PublicKey:  cfg.VAPIDPublicKey,
			PrivateKey: cfg.VAPIDPrivateKey,
			Subject:    cfg.VAPIDSubject,
			TTL:        int(cfg.PushTTL.Seconds()),
			Client:     &http.Client{Timeout: 10 * time.Second},
		}
	} else {
		logger.Warn("VAPID keys not configured; web push disabled")
	}
	if config.FCMEnabled() {
		client, err := utils.FirebaseInit(ctx)
		if err != nil {
			return nil, err
		}
		transports[models.SubscriptionFCM] = &channels.FCMTransport{Client: client}
	}
	return transports, nil
}

func runServe(ctx context.Context) error {
	cfg := config.AppConfig
	logger := utils.GetLogger()

	if err := database.InitDB(); err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = database.Close(closeCtx)
	}()

	// repositories.
	notifRepo := notificationRepo.NewMongoNotificationRepo()
	prefRepo := preferenceRepo.NewMongoPreferenceRepo()
	subRepo := subscriptionRepo.NewMongoSubscriptionRepo()

	// services.
	resolver := preference.NewDefaultResolver(prefRepo, preference.NewRedisCache(utils.GetCacheClient(), cfg.PreferenceCacheTTL), logger)
	subs := subscription.NewDefaultSubscriptionService(subRepo, cfg.VAPIDPublicKey, logger)
	registry := views.NewRegistry(logger)

	transports, err := pushTransports(ctx, logger)
	if err != nil {
		return err
	}
	queue := cron.NewQueueClient()
	defer queue.Close()

	queueRedis := utils.NewQueueRedisClient()
	defer queueRedis.Close()
	utils.StartHealthMonitor(ctx, time.Minute, []*redis.Client{utils.GetCacheClient(), queueRedis}, database.MongoClient)

	outbound := []channels.Sender{
		channels.NewPush(subs, transports, channels.PushAssets{Icon: cfg.PushIcon, Badge: cfg.PushBadge}, logger),
		channels.NewEmail(&channels.AsynqDispatcher{Client: queue}, logger),
	}
	policy := router.New(cfg.Channels())
	policy.Location = cfg.Location()
	notificationService := notification.NewDefaultNotificationService(
		notifRepo,
		resolver,
		policy,
		channels.NewInApp(notifRepo, registry, logger),
		outbound,
		registry,
		logger,
	)

	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(utils.ErrorHandler())
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.RateLimitMiddleware(cfg.MaxRequestsPerMin))
	routes.RegisterRoutes(r, handlers.NewHandlerBundle(notificationService, resolver, subs, registry))

	srv := &http.Server{
		Addr:    "0.0.0.0:" + cfg.AppPort,
		Handler: r,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Sugar().Infof("Starting server on %s...", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed to start: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Server is shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("Server stopped gracefully")
	return nil
}
