// Package config предоставляет структуры и функцию для парсинга и загрузки конфига
package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config общая структура для хранения настроек
type Config struct {
	Env                     string            `yaml:"env" env-default:"local"`
	AppID                   string            `yaml:"app_id"`
	StorageConnectionString string            `yaml:"storage_connection_string"`
	OperatorEmail           string            `yaml:"operator_email"`
	PriceTable              map[string]string `yaml:"price_table"`
	RedisConnection         `yaml:"redis_connection"`
	HTTPServer              `yaml:"http_server"`
	JWTToken                `yaml:"jwttoken"`
	RabbitMQ                `yaml:"rabbitmq"`
	SMTP                    `yaml:"smtp"`
	Payment                 `yaml:"payment"`
	AuthProvider            `yaml:"auth_provider"`
	Sweeper                 `yaml:"sweeper"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp"`
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis"`
	Password     string        `yaml:"password"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	TimeoutRedis time.Duration `yaml:"timeoutredis"`
}

// JWTToken структура для работы с jwt-токеном
type JWTToken struct {
	JWTSecretKey string        `yaml:"jwt_secret_key"`
	TokenTTL     time.Duration `yaml:"token_ttl"`
}

// RabbitMQ структура для настройки подключения к брокеру сообщений
type RabbitMQ struct {
	RabbitMQURL        string        `yaml:"url"`
	RabbitMQMaxRetries int           `yaml:"max_retries" env-default:"5"`
	RabbitMQRetryDelay time.Duration `yaml:"retry_delay" env-default:"3s"`
}

// SMTP структура для настройки почтового транспорта
type SMTP struct {
	SMTPHost string `yaml:"host"`
	SMTPPort string `yaml:"port"`
	SMTPUser string `yaml:"user"`
	SMTPPass string `yaml:"pass"`
}

// Payment структура для настройки платёжного провайдера.
// WebhookSecret используется для проверки подписи входящих событий.
type Payment struct {
	PaymentAPIURL    string `yaml:"api_url"`
	PaymentAccountID string `yaml:"account_id"`
	PaymentSecretKey string `yaml:"secret_key"`
	WebhookSecret    string `yaml:"webhook_secret"`
	SuccessURL       string `yaml:"success_url"`
	CancelURL        string `yaml:"cancel_url"`
	PassDurationDays int    `yaml:"pass_duration_days" env-default:"7"`
}

// AuthProvider структура для настройки клиента внешнего провайдера
// аутентификации (чтение пользователей и смена ролей).
type AuthProvider struct {
	AuthProviderURL    string `yaml:"url"`
	AuthProviderAPIKey string `yaml:"api_key"`
}

// Sweeper структура для настройки периодической очистки просроченных записей
type Sweeper struct {
	SweepInterval time.Duration `yaml:"interval" env-default:"24h"`
}

// MustLoad функция для загрузки конфига, путь берётся из CONFIG_PATH
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("file: %s - does not exist", configPath)
	}
	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return &cfg
}
