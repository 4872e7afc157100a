package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/app/configs")

	viper.SetEnvPrefix("APP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Allow common env vars without APP_ prefix for Docker/VM deploys
	viper.BindEnv("http.port", "HTTP_PORT", "APP_HTTP_PORT")
	viper.BindEnv("database.url", "DATABASE_URL", "APP_DATABASE_URL")
	viper.BindEnv("redis.url", "REDIS_URL", "APP_REDIS_URL")
	viper.BindEnv("nats.url", "NATS_URL", "APP_NATS_URL")
	viper.BindEnv("rabbitmq.url", "RABBITMQ_URL", "APP_RABBITMQ_URL")
	viper.BindEnv("vault.address", "VAULT_ADDR", "APP_VAULT_ADDRESS")
	viper.BindEnv("vault.token", "VAULT_TOKEN", "APP_VAULT_TOKEN")
	viper.BindEnv("jwt.ops_signing_key", "JWT_OPS_SIGNING_KEY", "APP_JWT_OPS_SIGNING_KEY")
	viper.BindEnv("maf.base_url", "MAF_BASE_URL", "APP_MAF_BASE_URL")
	viper.BindEnv("maf.bearer_token", "MAF_BEARER_TOKEN", "APP_MAF_BEARER_TOKEN")
	viper.BindEnv("solver_engine.base_url", "SOLVER_ENGINE_BASE_URL", "APP_SOLVER_ENGINE_BASE_URL")
	viper.BindEnv("solver_engine.api_key", "SOLVER_ENGINE_API_KEY", "APP_SOLVER_ENGINE_API_KEY")
	viper.BindEnv("sendgrid.api_key", "SENDGRID_API_KEY", "APP_SENDGRID_API_KEY")
	viper.BindEnv("app.environment", "APP_ENVIRONMENT")
	viper.BindEnv("logging.level", "LOG_LEVEL")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// no config file on disk, env vars and defaults carry the run
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("limits.default_allocation_window_hours", 18)
	viper.SetDefault("limits.default_max_routes_per_vehicle_in_window", 5)
	viper.SetDefault("limits.solver_time_limit", "20s")
	viper.SetDefault("solver_engine.health_check_interval", "30s")
	viper.SetDefault("solver_engine.timeout", "10s")
	viper.SetDefault("maf.timeout", "5s")
}
