package config

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Timeplus  TimeplusConfig  `mapstructure:"timeplus"`
	Fleet     FleetConfig     `mapstructure:"fleet"`
	SMTP      SMTPConfig      `mapstructure:"smtp"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// ServerConfig holds the HTTP server configuration
type ServerConfig struct {
	Port            string `mapstructure:"port"`
	AllowedOrigins  string `mapstructure:"allowedOrigins"`
	ShutdownTimeout int    `mapstructure:"shutdownTimeout"`
}

// TimeplusConfig holds the Timeplus connection configuration
type TimeplusConfig struct {
	Address   string `mapstructure:"address"`
	Password  string `mapstructure:"password"`
	Username  string `mapstructure:"username"`
	Workspace string `mapstructure:"workspace"`
}

// FleetConfig holds the polling configuration for the monitored fleet
type FleetConfig struct {
	ManagementPort string `mapstructure:"managementPort"` // well-known port of the hosts' management API
	PollWorkers    int    `mapstructure:"pollWorkers"`    // max targets polled concurrently
	PollTimeout    int    `mapstructure:"pollTimeout"`    // per-request timeout in seconds
}

// SMTPConfig holds the outbound email configuration
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// SchedulerConfig holds the monitoring cycle schedule
type SchedulerConfig struct {
	CycleSpec string `mapstructure:"cycleSpec"` // cron expression driving monitoring cycles
}

// LoadConfig loads the application configuration from file or environment variables
func LoadConfig(configPath string) (*Config, error) {
	var config Config

	// Set default values
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.allowedOrigins", "*")
	viper.SetDefault("server.shutdownTimeout", 10)
	viper.SetDefault("fleet.managementPort", "8000")
	viper.SetDefault("fleet.pollWorkers", 8)
	viper.SetDefault("fleet.pollTimeout", 10)
	viper.SetDefault("smtp.port", 587)
	viper.SetDefault("smtp.from", "alerts@localhost")
	viper.SetDefault("scheduler.cycleSpec", "*/5 * * * *")

	// Allow environment variables to override config file
	viper.SetEnvPrefix("FLEET_ALERT")
	viper.AutomaticEnv()

	// If config file is provided, read it
	if configPath != "" {
		viper.SetConfigFile(configPath)
		if err := viper.ReadInConfig(); err != nil {
			logrus.Warnf("Error reading config file: %v", err)
		}
	}

	// Unmarshal config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
