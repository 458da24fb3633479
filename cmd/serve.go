package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Eddiekoma/partyquiz-platform-sub000/internal/cache"
	"github.com/Eddiekoma/partyquiz-platform-sub000/internal/database"
	"github.com/Eddiekoma/partyquiz-platform-sub000/internal/logging"
	"github.com/Eddiekoma/partyquiz-platform-sub000/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the session engine",
	Long: `Start the session engine with the specified configuration.
This opens the WebSocket endpoint, the read-side HTTP API and the
internal platform API, and begins accepting sessions.`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if err := os.MkdirAll(viper.GetString("data_dir"), 0755); err != nil {
			return fmt.Errorf("failed to create data directory: %v", err)
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := initLogging(); err != nil {
			return err
		}

		cfg := server.Config{
			Addr:           viper.GetString("addr"),
			DataDir:        viper.GetString("data_dir"),
			RedisAddr:      viper.GetString("redis_addr"),
			JWTSecret:      viper.GetString("jwt_secret"),
			PlatformSecret: viper.GetString("platform_secret"),
			LogLevel:       viper.GetString("log_level"),
		}
		if origins := viper.GetString("allowed_origins"); origins != "" {
			cfg.AllowedOrigins = strings.Split(origins, ",")
		}
		if cfg.JWTSecret == "" {
			logging.Warn("jwt_secret is not set, host tokens will not validate across restarts", nil)
		}

		db, err := database.New(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("failed to open database: %v", err)
		}
		defer db.Close()

		cacheStore := cache.New(cfg.RedisAddr)
		defer cacheStore.Close()

		srv := server.New(cfg, db, cacheStore)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return srv.Run(ctx)
	},
}

// initLogging sets the global logger up from the config
func initLogging() error {
	return logging.InitDefaultLogger(logging.Config{
		Level:       logging.ParseLevel(viper.GetString("log_level")),
		Prefix:      "engine",
		Colored:     true,
		LogToFile:   viper.GetBool("log_to_file"),
		LogFilePath: viper.GetString("log_file_path"),
	})
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", ":8080", "listen address")
	serveCmd.Flags().String("redis-addr", "", "Redis address; empty selects the in-memory cache")
	serveCmd.Flags().String("jwt-secret", "", "secret for host token signing")
	serveCmd.Flags().String("platform-secret", "", "shared secret for the internal API")
	serveCmd.Flags().String("allowed-origins", "", "comma-separated origin allowlist; empty allows all")
	serveCmd.Flags().VisitAll(func(f *pflag.Flag) {
		viper.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f)
	})
}
