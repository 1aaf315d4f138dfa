package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	Secret     string        `mapstructure:"secret"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`

	// Coordinator tuning. A pending admission request older than
	// admission_timeout resolves to denied; an empty session survives
	// for grace_period before teardown. max_participants 0 means
	// unlimited.
	AdmissionTimeout time.Duration `mapstructure:"admission_timeout"`
	GracePeriod      time.Duration `mapstructure:"grace_period"`
	MaxParticipants  int           `mapstructure:"max_participants"`
	SubscriberBuffer int           `mapstructure:"subscriber_buffer"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("admission_timeout", "2m")
	v.SetDefault("grace_period", "30s")
	v.SetDefault("max_participants", 0)
	v.SetDefault("subscriber_buffer", 16)

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("config file not found (%s), using defaults\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
