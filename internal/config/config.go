package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	Env         string    `yaml:"env" env:"ENV" env-default:"local"`
	StoragePath string    `yaml:"storage_path" env:"STORAGE_PATH" env-required:"true"`
	RedisAddr   string    `yaml:"redis_addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	HTTPServer  `yaml:"http_server"`
	Scheduler   Scheduler `yaml:"scheduler"`
	Reminders   Reminders `yaml:"reminders"`
}

type HTTPServer struct {
	Address         string        `yaml:"address" env:"HTTP_ADDRESS" env-default:"localhost:8080"`
	Timeout         time.Duration `yaml:"timeout" env-default:"4s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env-default:"15s"`
}

type Scheduler struct {
	HorizonDays int `yaml:"horizon_days" env:"SCHEDULER_HORIZON_DAYS" env-default:"30"`
	StepMinutes int `yaml:"step_minutes" env:"SCHEDULER_STEP_MINUTES" env-default:"15"`
}

type Reminders struct {
	Offsets     []time.Duration `yaml:"offsets" env:"REMINDER_OFFSETS" env-default:"24h,4h,1h,15m"`
	Channels    []string        `yaml:"channels" env:"REMINDER_CHANNELS" env-default:"email,sms"`
	SweepSecret string          `yaml:"sweep_secret" env:"SWEEP_SECRET"`
	SweepLimit  int             `yaml:"sweep_limit" env:"SWEEP_LIMIT" env-default:"500"`
}

func MustLoad() *Config {
	// .env is optional, environment variables win either way
	_ = godotenv.Load(".env")

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	var cfg Config

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("Config file does not exist: %s", configPath)
	}

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("Failed to read config file: %v", err)
	}

	return &cfg
}
