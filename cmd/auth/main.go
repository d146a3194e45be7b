package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-chi/jwtauth/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	red "github.com/redis/go-redis/v9"
	"github.com/tendant/chi-demo/app"
	dbutils "github.com/tendant/db-utils/db"

	"github.com/tendant/simple-auth/pkg/bannedtoken"
	"github.com/tendant/simple-auth/pkg/config"
	"github.com/tendant/simple-auth/pkg/loginflow"
	"github.com/tendant/simple-auth/pkg/loginflow/api"
	"github.com/tendant/simple-auth/pkg/notification"
	tg "github.com/tendant/simple-auth/pkg/tokengenerator"
	"github.com/tendant/simple-auth/pkg/twofa"
	"github.com/tendant/simple-auth/pkg/user"
)

func main() {
	envFile := flag.String("env", ".env", "path to an optional .env file")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		slog.Error("Failed to load configuration", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
		Level:     cfg.Log.SlogLevel(),
	}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "err", err)
		os.Exit(1)
	}

	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.Sentry.Environment,
		}); err != nil {
			slog.Error("Failed to initialize sentry", "err", err)
			os.Exit(1)
		}
		defer sentry.Flush(2 * time.Second)
	}

	ctx := context.Background()

	var userRepoConfig user.RepositoryConfig
	userRepoConfig.DataDir = cfg.Persistence.DataDir
	if cfg.Persistence.UserStore == config.StorePostgres {
		dbConfig := cfg.Database.ToDbConfig()
		pool, err := dbutils.NewDbPool(ctx, dbConfig)
		if err != nil {
			slog.Error("Failed creating dbpool", "db", dbConfig.Database, "host", dbConfig.Host, "port", dbConfig.Port, "user", dbConfig.User)
			os.Exit(1)
		}
		defer pool.Close()
		userRepoConfig.DB = pool
	}

	var redisClient *red.Client
	if cfg.Persistence.UsesRedis() {
		redisClient = red.NewClient(&red.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			slog.Error("Failed to connect to redis", "addr", cfg.Redis.Addr, "err", err)
			os.Exit(1)
		}
	}

	userRepo, err := user.NewUserRepository(cfg.Persistence.UserStore, userRepoConfig)
	if err != nil {
		slog.Error("Failed to create user repository", "store", cfg.Persistence.UserStore, "err", err)
		os.Exit(1)
	}
	hasher, err := user.NewPasswordHasher(cfg.Password.Algorithm, cfg.Password.BcryptCost)
	if err != nil {
		slog.Error("Failed to create password hasher", "err", err)
		os.Exit(1)
	}
	userService := user.NewUserService(userRepo, user.WithPasswordHasher(hasher))

	// Banned entries only need to outlive the tokens they block.
	bannedTokens, err := bannedtoken.NewRepository(cfg.Persistence.TokenStore, bannedtoken.RepositoryConfig{
		RedisClient: redisClient,
		KeyPrefix:   cfg.Redis.Prefix("banned"),
		TTL:         cfg.JWT.TokenExpiry,
	})
	if err != nil {
		slog.Error("Failed to create banned token repository", "store", cfg.Persistence.TokenStore, "err", err)
		os.Exit(1)
	}

	challenges, err := twofa.NewChallengeRepository(cfg.Persistence.TwoFAStore, twofa.RepositoryConfig{
		DataDir:     cfg.Persistence.DataDir,
		RedisClient: redisClient,
		KeyPrefix:   cfg.Redis.Prefix("2fa"),
		TTL:         cfg.Login.ChallengeTTL,
	})
	if err != nil {
		slog.Error("Failed to create 2fa challenge repository", "store", cfg.Persistence.TwoFAStore, "err", err)
		os.Exit(1)
	}

	tokenOpts := []tg.JwtTokenServiceOption{
		tg.WithTokenExpiry(cfg.JWT.TokenExpiry),
		tg.WithIssuer(cfg.JWT.Issuer),
	}
	if cfg.JWT.Audience != "" {
		tokenOpts = append(tokenOpts, tg.WithAudience(cfg.JWT.Audience))
	}
	tokenService := tg.NewJwtTokenService(tg.StaticSecretProvider{Secret: cfg.JWT.Secret}, tokenOpts...)

	var notifier notification.Notifier = notification.LogNotifier{}
	if cfg.Email.Enabled {
		emailNotifier, err := notification.NewEmailNotifier(cfg.Email.ToSMTPConfig())
		if err != nil {
			slog.Error("Failed to create email notifier", "host", cfg.Email.Host, "err", err)
			os.Exit(1)
		}
		notifier = emailNotifier
	} else {
		slog.Warn("Email disabled, 2FA codes will be written to the log")
	}

	loginFlowService := loginflow.NewLoginFlowService(loginflow.ServiceDependencies{
		UserStore:    userService,
		BannedTokens: bannedTokens,
		Challenges:   challenges,
		TokenService: tokenService,
		Notifier:     notifier,
	}, loginflow.WithLogoutBanCheck(cfg.Login.LogoutBanCheck))

	handle := api.NewHandle(
		loginFlowService,
		tg.NewCookieSetter(cfg.JWT.CookieSecure),
		jwtauth.New("HS256", []byte(cfg.JWT.Secret), nil),
	)

	server := app.DefaultApp()
	app.RoutesHealthz(server.R)
	server.R.Handle("/metrics", promhttp.Handler())
	handle.RegisterRoutes(server.R)

	slog.Info("Starting simple-auth",
		"user_store", cfg.Persistence.UserStore,
		"token_store", cfg.Persistence.TokenStore,
		"twofa_store", cfg.Persistence.TwoFAStore,
	)
	server.Run()
}
