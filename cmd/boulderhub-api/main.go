package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/boulderhub/boulderhub/internal/auth"
	"github.com/boulderhub/boulderhub/internal/boulders"
	"github.com/boulderhub/boulderhub/internal/config"
	"github.com/boulderhub/boulderhub/internal/logging"
	"github.com/boulderhub/boulderhub/internal/navigation"
	"github.com/boulderhub/boulderhub/internal/server"
	"github.com/boulderhub/boulderhub/internal/storage"
	"github.com/boulderhub/boulderhub/internal/ticklist"
	"github.com/boulderhub/boulderhub/internal/users"
	"github.com/boulderhub/boulderhub/internal/walls"
)

var cfgFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "boulderhub-api",
		Short: "BoulderHub catalog and navigation backend",
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
	cmd.PersistentFlags().String("mongo-uri", defaults.GetString("mongo.uri"), "MongoDB connection URI")
	cmd.PersistentFlags().String("mongo-database", defaults.GetString("mongo.database"), "MongoDB database name")
	cmd.PersistentFlags().Int("token-ttl-minutes", defaults.GetInt("auth.token_ttl_minutes"), "Bearer token TTL in minutes")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("signing-secret", "", "Token signing secret (overrides env)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "mongo.uri", "mongo-uri")
	bindFlag(cmd, "mongo.database", "mongo-database")
	bindFlag(cmd, "auth.token_ttl_minutes", "token-ttl-minutes")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
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

	connectCtx, cancelConnect := context.WithTimeout(ctx, 15*time.Second)
	defer cancelConnect()
	db, closeDB, err := storage.OpenMongo(connectCtx, storage.MongoConfig{
		URI:      appConfig.MongoURI,
		Database: appConfig.MongoDatabase,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		disconnectCtx, cancelDisconnect := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelDisconnect()
		if err := closeDB(disconnectCtx); err != nil {
			logger.Warn("failed to close storage", zap.Error(err))
		}
	}()

	tokenManager, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(appConfig.AuthSigningSecret),
		Issuer:        appConfig.AuthIssuer,
		Audience:      appConfig.AuthAudience,
		TokenTTL:      appConfig.TokenTTL,
	})
	if err != nil {
		return err
	}

	wallService, err := walls.NewService(walls.ServiceConfig{Database: db, Logger: logger})
	if err != nil {
		return err
	}
	boulderService, err := boulders.NewService(boulders.ServiceConfig{
		Database: db,
		Walls:    wallService,
		Clock:    time.Now,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	ticklistService, err := ticklist.NewService(ticklist.ServiceConfig{
		Database: db,
		Clock:    time.Now,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	navigationService, err := navigation.NewService(navigation.ServiceConfig{
		Database: db,
		Walls:    wallService,
		Boulders: boulderService,
		Ticklist: ticklistService,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	userService, err := users.NewService(users.ServiceConfig{
		Database: db,
		IDs:      users.NewUUIDProvider(),
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		TokenManager: tokenManager,
		Walls:        wallService,
		Boulders:     boulderService,
		Ticklist:     ticklistService,
		Navigation:   navigationService,
		Users:        userService,
		Logger:       logger,
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
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
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
