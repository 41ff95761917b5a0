package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/glhm/console/config"
	"github.com/glhm/console/internal/adapters/cookiejar"
	"github.com/glhm/console/internal/adapters/keycache"
	"github.com/glhm/console/internal/adapters/tokenstore"
	"github.com/glhm/console/internal/apiclient"
	"github.com/glhm/console/internal/backend"
	"github.com/glhm/console/internal/credential"
	"github.com/glhm/console/internal/observability/statsd"
	"github.com/glhm/console/internal/ports"
	"github.com/glhm/console/internal/router"
	"github.com/glhm/console/internal/rsacrypto"
	"github.com/glhm/console/internal/service"
)

// Console holds the wired client: credential channels, the API client, the
// backend wrappers, the session and the router.
type Console struct {
	Config      *config.AppConfig
	Storage     ports.DurableStorage
	Cookies     *cookiejar.Channel
	Credentials *credential.Store
	Client      *apiclient.Client
	Auth        *backend.Auth
	Images      *backend.Images
	Encryptor   *rsacrypto.Gateway
	Session     *service.SessionService
	Router      *router.Router
	Metrics     *Metrics
	Logger      *slog.Logger

	redis     redis.UniversalClient
	ownsRedis bool
}

// ConsoleDeps groups dependencies for Build.
type ConsoleDeps struct {
	Config *config.AppConfig
	// Redis is used when the config needs it. Build connects on its own when nil.
	Redis redis.UniversalClient
	// HTTPClient overrides the transport used for backend calls.
	HTTPClient *http.Client
	// ExtraMetrics receives every metric alongside the configured backend.
	ExtraMetrics statsd.Sink
	Logger       *slog.Logger
}

// Build wires the console from configuration. Nothing talks to the backend
// until the session is initialized.
func Build(ctx context.Context, deps ConsoleDeps) (*Console, error) {
	if deps.Config == nil {
		return nil, errors.New("console config is required")
	}
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Console{Config: cfg, Logger: logger, redis: deps.Redis}
	ok := false
	defer func() {
		if !ok {
			_ = c.Close()
		}
	}()

	if cfg.RequiresRedis() && c.redis == nil {
		client, err := ConnectRedis(ctx, RedisOptions{Redis: cfg.Redis, Logger: logger})
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		c.redis = client
		c.ownsRedis = true
	}

	metrics, err := BuildMetrics(ctx, cfg.Observability.Metrics, logger)
	if err != nil {
		return nil, err
	}
	c.Metrics = metrics
	sink := metrics.Sink
	if deps.ExtraMetrics != nil {
		sink = statsd.Fanout{metrics.Sink, deps.ExtraMetrics}
	}

	if c.Storage, err = buildStorage(cfg.Store, c.redis, logger); err != nil {
		return nil, err
	}

	c.Cookies, err = cookiejar.NewChannel(cookiejar.Options{
		BaseURL: cfg.API.BaseURL,
		Name:    cfg.Auth.TokenKey,
		MaxAge:  cfg.Auth.CookieMaxAge,
	})
	if err != nil {
		return nil, fmt.Errorf("create cookie channel: %w", err)
	}

	c.Credentials, err = credential.NewStore(credential.StoreOptions{
		Storage: c.Storage,
		Cookie:  c.Cookies,
		Key:     cfg.Auth.TokenKey,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create credential store: %w", err)
	}

	c.Client, err = apiclient.New(apiclient.Options{
		BaseURL:     cfg.API.BaseURL,
		Timeout:     cfg.API.Timeout,
		AuthHeader:  cfg.API.AuthHeader,
		UserAgent:   cfg.API.UserAgent,
		Credentials: c.Credentials,
		Jar:         c.Cookies.Jar(),
		HTTPClient:  deps.HTTPClient,
		Metrics:     sink,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create api client: %w", err)
	}

	if c.Auth, err = backend.NewAuth(c.Client); err != nil {
		return nil, err
	}
	if c.Images, err = backend.NewImages(c.Client); err != nil {
		return nil, err
	}

	c.Encryptor, err = rsacrypto.NewGateway(rsacrypto.GatewayOptions{
		Keys:     c.Auth,
		Cache:    buildKeyCache(cfg.Auth, c.redis),
		CacheTTL: cfg.Auth.PublicKeyCacheTTL,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create rsa gateway: %w", err)
	}

	c.Session, err = service.NewSessionService(service.SessionServiceOptions{
		API:            c.Auth,
		Credentials:    c.Credentials,
		Encryptor:      c.Encryptor,
		Events:         c.Client,
		PublicRoute:    cfg.Auth.PublicRoute,
		LoginRoute:     cfg.Auth.LoginRoute,
		RootRoute:      cfg.Auth.RootRoute,
		RequireProfile: cfg.Auth.RequireProfile,
		Metrics:        sink,
		Logger:         logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create session service: %w", err)
	}

	c.Router, err = router.New(router.Options{
		Session:     c.Session,
		PublicRoute: cfg.Auth.PublicRoute,
		RootRoute:   cfg.Auth.RootRoute,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create router: %w", err)
	}
	c.Session.SetNavigator(c.Router)

	ok = true
	return c, nil
}

// Close detaches the session and releases owned connections.
func (c *Console) Close() error {
	if c == nil {
		return nil
	}
	if c.Session != nil {
		c.Session.Close()
	}
	var errs []error
	if err := c.Metrics.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close metrics: %w", err))
	}
	if c.ownsRedis && c.redis != nil {
		if err := c.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	return errors.Join(errs...)
}

//nolint:ireturn // the storage backend is chosen at runtime.
func buildStorage(cfg config.StoreConfig, client redis.UniversalClient, logger *slog.Logger) (ports.DurableStorage, error) {
	switch cfg.Backend {
	case config.StoreBackendMemory:
		return tokenstore.NewMemoryStorage(), nil
	case config.StoreBackendRedis:
		if client == nil {
			return nil, errors.New("redis storage backend requires a redis client")
		}
		return tokenstore.NewRedisStorageWithPrefix(client, cfg.RedisPrefix), nil
	default:
		fs, err := tokenstore.NewFileStorage(tokenstore.FileStorageOptions{
			Path:   cfg.Path,
			Sealer: CreateSealer(cfg.EncryptionKey, logger),
			Logger: logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create file storage: %w", err)
		}
		return fs, nil
	}
}

//nolint:ireturn // the key cache is chosen at runtime.
func buildKeyCache(cfg config.AuthConfig, client redis.UniversalClient) ports.KeyCache {
	if !cfg.KeyCacheEnabled() {
		return nil
	}
	if cfg.PublicKeyCache == config.KeyCacheRedis && client != nil {
		return keycache.NewRedis(client, "")
	}
	return keycache.NewMemory()
}
