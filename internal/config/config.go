package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/corray333/backend-labs/fulfillment/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. FULFILLMENT_SERVER_HTTP_PORT.
const EnvPrefix = "FULFILLMENT"

func MustInit() {
	if err := godotenv.Load("./.env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic("error while loading .env file: " + err.Error())
	}

	setDefaults()

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("/etc/fulfillment-svc")
	viper.AddConfigPath(".")
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			panic("error while reading config file: " + err.Error())
		}
	}
	SetupLogger()
}

func setDefaults() {
	viper.SetDefault("app.env", "development")
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("server.http.port", "8080")
	viper.SetDefault("server.grpc.port", "9090")
	viper.SetDefault("storage.driver", "postgres")
	viper.SetDefault("postgres.migrations_path", "./migrations")
	viper.SetDefault("postgres.tx_timeout_seconds", 20)
	viper.SetDefault("fulfillment.draft_prefix", "draft-")
	viper.SetDefault("rabbitmq.queue", "fulfillment.events")
	viper.SetDefault("rabbitmq.outbox.max_retries", 5)
	viper.SetDefault("reconcile.max_retries", 5)
	viper.SetDefault("reconcile.retry_interval_seconds", 30)
}

func SetupLogger() {
	handler := logger.NewHandler(os.Stdout, logger.ParseLevel(viper.GetString("logger.level")))
	log := slog.New(handler)
	slog.SetDefault(log)
}
