package config

import (
	"flag"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env        string           `yaml:"env" env-default:"development"` // environment
	HTTPServer HTTPServerConfig `yaml:"http_server"`
	Database   DatabaseConfig   `yaml:"database"`
	JWT        JWTConfig        `yaml:"jwt"`
	Migrations MigrationsConfig `yaml:"migrations"`
	Redis      RedisConfig      `yaml:"redis"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Storage    StorageConfig    `yaml:"storage"`
	Mailer     MailerConfig     `yaml:"mailer"`
	Checkout   CheckoutConfig   `yaml:"checkout"`
}

// HTTPServerConfig структура http сервера
type HTTPServerConfig struct {
	Address     string        `yaml:"address" env-default:"localhost:8080"`
	Timeout     time.Duration `yaml:"timeout" env-default:"4s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// DatabaseConfig структура по работе с БД
type DatabaseConfig struct {
	Host     string `yaml:"host" env-default:"localhost"`
	Port     int    `yaml:"port" env-default:"5432"`
	User     string `yaml:"user" env-required:"true"`
	Password string `yaml:"-" env:"DB_PASSWORD" env-required:"true"`
	Name     string `yaml:"name" env-required:"true"`
	SSLMode  string `yaml:"ssl_mode" env-default:"disable"`
}

// JWTConfig настройка jwt
type JWTConfig struct {
	Secret   string `yaml:"-" env:"JWT_SECRET" env-required:"true"`
	TokenTTL int    `yaml:"token_ttl" env-default:"60"` // в минутах
}

type MigrationsConfig struct {
	Path string `yaml:"path" env-default:"./migrations"`
}

// RedisConfig — хранилище ключей идемпотентности. Пустой адрес отключает проверку
type RedisConfig struct {
	Addr           string        `yaml:"addr" env:"REDIS_ADDR"`
	Password       string        `yaml:"-" env:"REDIS_PASSWORD"`
	DB             int           `yaml:"db" env-default:"0"`
	IdempotencyTTL time.Duration `yaml:"idempotency_ttl" env-default:"24h"`
}

// KafkaConfig — брокеры через запятую. Пустой список отключает публикацию событий
type KafkaConfig struct {
	Brokers string `yaml:"brokers" env:"KAFKA_BROKERS"`
	Topic   string `yaml:"topic" env-default:"dentmall.orders"`
}

const (
	StorageDriverGCS   = "gcs"
	StorageDriverLocal = "local"
)

// StorageConfig — где хранятся PDF-счета
type StorageConfig struct {
	Driver        string `yaml:"driver" env-default:"local"`
	Bucket        string `yaml:"bucket"`
	PublicBaseURL string `yaml:"public_base_url" env-default:"http://localhost:8080/files"`
	LocalDir      string `yaml:"local_dir" env-default:"./data/files"`
}

// MailerConfig — SMTP. Пустой хост означает, что письма только пишутся в лог
type MailerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port" env-default:"587"`
	Username string `yaml:"username"`
	Password string `yaml:"-" env:"SMTP_PASSWORD"`
	From     string `yaml:"from" env-default:"orders@dentalmall.local"`
}

type CheckoutConfig struct {
	OrderPrefix       string        `yaml:"order_prefix" env-default:"DM"`
	SideEffectTimeout time.Duration `yaml:"side_effect_timeout" env-default:"15s"`
	MaxNumberAttempts int           `yaml:"max_number_attempts" env-default:"10"`
}

// MustLoad - если не загружаем - паникуем
func MustLoad() *Config {
	configPath := fetchConfigPath()
	if configPath == "" {
		log.Fatal("CONFIG_PATH not exists")
	}
	return MustLoadByPath(configPath)
}

func fetchConfigPath() string {
	var path string

	flag.StringVar(&path, "config", "", "path to config file")
	flag.Parse()

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	return path
}

func MustLoadByPath(configPath string) *Config {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file not found: " + configPath)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("can't read config file %s: %v", configPath, err)
	}

	if cfg.Storage.Driver != StorageDriverGCS && cfg.Storage.Driver != StorageDriverLocal {
		log.Fatalf("unknown storage driver %q", cfg.Storage.Driver)
	}
	if cfg.Storage.Driver == StorageDriverGCS && cfg.Storage.Bucket == "" {
		log.Fatal("storage.bucket is required for gcs driver")
	}

	return &cfg
}
