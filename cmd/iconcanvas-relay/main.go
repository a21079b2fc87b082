package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/dakshx9/IconCanvas/internal/auth"
	"github.com/dakshx9/IconCanvas/internal/collab"
	"github.com/dakshx9/IconCanvas/internal/config"
	"github.com/dakshx9/IconCanvas/internal/database"
	"github.com/dakshx9/IconCanvas/internal/logging"
	"github.com/dakshx9/IconCanvas/internal/server"
	"github.com/dakshx9/IconCanvas/internal/store"
	"github.com/dakshx9/IconCanvas/internal/syncnet"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "iconcanvas-relay",
		Short: "IconCanvas collaboration relay service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("redis-addr", defaults.GetString("redis.addr"), "Redis address (enables networked store and transport)")
	cmd.PersistentFlags().Int("invite-ttl-minutes", defaults.GetInt("invite.ttl_minutes"), "Invite token TTL in minutes")
	cmd.PersistentFlags().Int("session-expiry-minutes", defaults.GetInt("session.expiry_minutes"), "Session snapshot expiry in minutes (Redis store only)")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("signing-secret", "", "Invite signing secret (overrides env)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "redis.addr", "redis-addr")
	bindFlag(cmd, "invite.ttl_minutes", "invite-ttl-minutes")
	bindFlag(cmd, "session.expiry_minutes", "session-expiry-minutes")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "invite.signing_secret", "signing-secret")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	var (
		stateStore collab.Store
		broker     collab.Broker
	)
	if appConfig.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: appConfig.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return err
		}
		stateStore = store.NewRedisStore(rdb, appConfig.SessionExpiry)
		broker = syncnet.NewRedisBroker(rdb, logger)
		logger.Info("using redis store and transport", zap.String("addr", appConfig.RedisAddr))
	} else {
		db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
		if err != nil {
			return err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		defer sqlDB.Close()

		sqliteStore, err := store.NewSQLiteStore(db, time.Now)
		if err != nil {
			return err
		}
		stateStore = sqliteStore
		broker = syncnet.NewLocalBroker()
	}

	inviteIssuer := auth.NewInviteIssuer(auth.InviteIssuerConfig{
		SigningSecret: []byte(appConfig.InviteSigningSecret),
		Issuer:        "iconcanvas-relay",
		Audience:      "iconcanvas-clients",
		InviteTTL:     appConfig.InviteTTL,
	})

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Store:      stateStore,
		Broker:     broker,
		Invites:    inviteIssuer,
		IDProvider: collab.NewUUIDProvider(),
		Clock:      time.Now,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("relay starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
