/**
 * @description
 * This file handles configuration management for the bookkeeping service.
 * It loads settings from environment variables, providing defaults for the
 * automation schedule and timezone.
 */
package config

import (
	"errors"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the service.
type Config struct {
	DatabaseURL      string `mapstructure:"DATABASE_URL"`
	ListenAddr       string `mapstructure:"LISTEN_ADDR"`
	RedisURL         string `mapstructure:"REDIS_URL"`
	RabbitMQURL      string `mapstructure:"RABBITMQ_URL"`
	InternalAPIKey   string `mapstructure:"INTERNAL_API_KEY"`
	DailyJobSchedule string `mapstructure:"DAILY_JOB_SCHEDULE"`
	Timezone         string `mapstructure:"TIMEZONE"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	viper.SetDefault("LISTEN_ADDR", ":8080")
	viper.SetDefault("DAILY_JOB_SCHEDULE", "0 2 * * *") // At 02:00 every day.
	viper.SetDefault("TIMEZONE", "Asia/Jakarta")
	viper.AutomaticEnv()

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("LISTEN_ADDR")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("INTERNAL_API_KEY")
	_ = viper.BindEnv("DAILY_JOB_SCHEDULE")
	_ = viper.BindEnv("TIMEZONE")

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Blank environment values fall back to the defaults rather than
	// clobbering them.
	if strings.TrimSpace(config.ListenAddr) == "" {
		config.ListenAddr = ":8080"
	}
	if strings.TrimSpace(config.DailyJobSchedule) == "" {
		config.DailyJobSchedule = "0 2 * * *"
	}
	if strings.TrimSpace(config.Timezone) == "" {
		config.Timezone = "Asia/Jakarta"
	}

	if strings.TrimSpace(config.DatabaseURL) == "" {
		return nil, errors.New("DATABASE_URL must be configured")
	}

	return &config, nil
}
