package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"go.uber.org/zap"

	"github.com/vertextoedge/estateshare/internal/adapter/amqp"
	"github.com/vertextoedge/estateshare/internal/adapter/filesystem"
	"github.com/vertextoedge/estateshare/internal/adapter/googledrive"
	"github.com/vertextoedge/estateshare/internal/adapter/redis"
	"github.com/vertextoedge/estateshare/internal/adapter/sqlstore"
	"github.com/vertextoedge/estateshare/internal/config"
	"github.com/vertextoedge/estateshare/internal/crypto"
	"github.com/vertextoedge/estateshare/internal/domain/event"
	"github.com/vertextoedge/estateshare/internal/domain/vo"
	"github.com/vertextoedge/estateshare/internal/logger"
	"github.com/vertextoedge/estateshare/internal/port"
	"github.com/vertextoedge/estateshare/internal/secret"
	"github.com/vertextoedge/estateshare/internal/service/cacher"
	"github.com/vertextoedge/estateshare/internal/service/catalog"
	"github.com/vertextoedge/estateshare/internal/service/credential"
	"github.com/vertextoedge/estateshare/internal/service/maintenance"
	"github.com/vertextoedge/estateshare/internal/service/resolver"
	"github.com/vertextoedge/estateshare/internal/service/server"
	"github.com/vertextoedge/estateshare/internal/service/sharing"
)

const version = "0.1.0"

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	zapLogger, err := logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	zapLogger.Info("starting estateshare", zap.String("version", version), zap.String("config", *configPath))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// AWS is only loaded when a backend needs it
	var awsCfg aws.Config
	if cfg.NeedsAWS() {
		var opts []func(*awsconfig.LoadOptions) error
		if cfg.AWS.Region != "" {
			opts = append(opts, awsconfig.WithRegion(cfg.AWS.Region))
		}
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			zapLogger.Fatal("failed to load AWS config", zap.Error(err))
		}
	}

	secrets := newSecretResolver(cfg, awsCfg)
	clientSecret, err := secrets.GetSecret(ctx, cfg.Secrets.ClientSecretParam)
	if err != nil {
		zapLogger.Fatal("failed to resolve google client secret", zap.Error(err))
	}
	jwtSecret, err := secrets.GetSecret(ctx, cfg.Secrets.JWTSecretParam)
	if err != nil {
		zapLogger.Fatal("failed to resolve jwt secret", zap.Error(err))
	}

	encryptor := newEncryptor(cfg, awsCfg)

	// Storage
	dsn := cfg.Database.Path
	if cfg.Database.Driver == "mysql" {
		dsn = cfg.Database.DSN
	}
	store, err := sqlstore.Open(cfg.Database.Driver, dsn)
	if err != nil {
		zapLogger.Fatal("failed to open database", zap.Error(err), zap.String("driver", cfg.Database.Driver))
	}
	defer store.Close()

	fsManager, err := filesystem.NewManagerWithBufferSize(cfg.Cache.RootDir, cfg.Cache.GetBufferSize())
	if err != nil {
		zapLogger.Fatal("failed to create cache directory manager", zap.Error(err))
	}

	// Events
	dispatcher := event.NewInMemoryDispatcher(cfg.Events.Async, logger.Named("events"))
	dispatcher.Subscribe(event.NewLoggingHandler(logger.Named("events")))
	metrics := event.NewMetricsHandler()
	dispatcher.Subscribe(metrics)

	var publisher *amqp.Publisher
	if cfg.Events.AMQPURL != "" {
		publisher = amqp.NewPublisher(amqp.Config{
			URL:      cfg.Events.AMQPURL,
			Exchange: cfg.Events.Exchange,
		}, logger.Named("amqp"))
		dispatcher.Subscribe(publisher)
	}

	// Remote storage provider
	provider := googledrive.NewProvider(googledrive.ProviderConfig{
		ClientID:       cfg.Google.ClientID,
		ClientSecret:   clientSecret,
		RedirectURL:    cfg.Google.RedirectURL,
		Scopes:         cfg.Google.Scopes,
		RevokeURL:      cfg.Google.RevokeURL,
		RequestTimeout: cfg.Provider.GetRequestTimeout(),
	})
	catalogFactory := googledrive.NewCatalogFactory(googledrive.CatalogConfig{
		RequestTimeout: cfg.Provider.GetRequestTimeout(),
		HeaderTimeout:  cfg.Provider.GetDownloadHeaderTimeout(),
	})

	// Services
	credentials := credential.NewManager(&credential.Config{
		SerializeRefresh:    cfg.Provider.SerializeRefresh,
		DirectTokenLifetime: time.Hour,
	}, provider, store, encryptor, dispatcher, logger.Named("credential"))

	catalogClient := catalog.NewClient(credentials, catalogFactory, logger.Named("catalog"))

	spaceManager := cacher.NewSpaceManager(fsManager, cfg.Cache.GetMaxCacheSize(), float64(cfg.Cache.MaxDiskUsagePercent))
	copier := cacher.NewCopier(catalogClient, fsManager, spaceManager,
		vo.FileSizeFromMB(int64(cfg.Cache.MaxCopySizeMB)), logger.Named("cacher"))

	issuer := sharing.NewIssuer(&sharing.Config{
		FrontendURL:           cfg.Share.FrontendURL,
		APIURL:                cfg.Share.APIURL,
		DefaultExpirationDays: cfg.Share.DefaultExpirationDays,
	}, catalogClient, copier, store, dispatcher, logger.Named("sharing"))

	fileResolver := resolver.New(store, fsManager, catalogClient, dispatcher, logger.Named("resolver"))

	maintenanceService := maintenance.New(&maintenance.Config{
		StatsInterval:   cfg.Maintenance.GetStatsInterval(),
		CleanupInterval: cfg.Maintenance.GetInterval(),
		TempFileMaxAge:  cfg.Cache.GetTempFileMaxAge(),
	}, store, fsManager, fileResolver, logger.Named("maintenance"))

	// Public endpoint rate limiting
	var limiter port.RateLimiter
	if cfg.Redis.Addr != "" {
		redisCfg := redis.Config{
			Addr:           cfg.Redis.Addr,
			Password:       cfg.Redis.Password,
			DB:             cfg.Redis.DB,
			Prefix:         cfg.Redis.KeyPrefix,
			Capacity:       cfg.Redis.Burst,
			RefillTokens:   cfg.Redis.RatePerSecond,
			RefillInterval: time.Second,
		}
		redisClient, err := redis.NewClient(ctx, redisCfg)
		if err != nil {
			zapLogger.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer redisClient.Close()
		limiter = redis.NewLimiter(redisClient, redisCfg)
	}

	trustedProxies, err := cfg.HTTP.GetTrustedProxies()
	if err != nil {
		zapLogger.Fatal("invalid trusted proxies", zap.Error(err))
	}

	httpServer := server.New(&server.Config{
		BindAddr:       cfg.HTTP.BindAddr,
		JWTSecret:      jwtSecret,
		JWTIssuer:      cfg.Auth.JWTIssuer,
		ReadTimeout:    cfg.HTTP.GetReadTimeout(),
		WriteTimeout:   cfg.HTTP.GetWriteTimeout(),
		IdleTimeout:    cfg.HTTP.GetIdleTimeout(),
		TrustedProxies: trustedProxies,
	}, server.Deps{
		Credentials: credentials,
		Catalog:     catalogClient,
		Shares:      issuer,
		Resolver:    fileResolver,
		Store:       store,
		Metrics:     metrics,
		RateLimiter: limiter,
	}, logger.Named("http"))

	go func() {
		if err := httpServer.Start(); err != nil {
			zapLogger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	go func() {
		if err := maintenanceService.Start(ctx); err != nil && err != context.Canceled {
			zapLogger.Error("maintenance service stopped with error", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	zapLogger.Info("application started successfully",
		zap.String("http_addr", cfg.HTTP.BindAddr),
		zap.String("database", store.Driver()),
		zap.String("cache_dir", fsManager.RootDir()),
		zap.Bool("rate_limited", limiter != nil),
		zap.Bool("amqp", publisher != nil))
	<-sigChan

	zapLogger.Info("shutdown signal received, stopping services...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	maintenanceService.Stop()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		zapLogger.Error("failed to stop HTTP server gracefully", zap.Error(err))
	}

	dispatcher.Wait()
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			zapLogger.Warn("failed to close event publisher", zap.Error(err))
		}
	}

	zapLogger.Info("application stopped successfully")
}

func newSecretResolver(cfg *config.Config, awsCfg aws.Config) secret.Resolver {
	switch cfg.Secrets.Backend {
	case "ssm":
		return secret.NewSSMResolver(ssm.NewFromConfig(awsCfg))
	case "env":
		return secret.NewEnvResolver()
	default:
		return secret.StaticResolver{
			cfg.Secrets.ClientSecretParam: cfg.Google.ClientSecret,
			cfg.Secrets.JWTSecretParam:    cfg.Auth.JWTSecret,
		}
	}
}

func newEncryptor(cfg *config.Config, awsCfg aws.Config) crypto.Encryptor {
	switch cfg.Encryption.Backend {
	case "kms":
		return crypto.NewKMSService(kms.NewFromConfig(awsCfg), cfg.Encryption.KMSKeyID)
	case "mock":
		return crypto.NewMockEncryptor()
	default:
		return crypto.Passthrough{}
	}
}
