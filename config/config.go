package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// minSecretLength is the shortest accepted HMAC or shared callback secret.
const minSecretLength = 16

type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Booking   BookingConfig   `yaml:"booking"`
	Payments  PaymentsConfig  `yaml:"payments"`
	Auth      AuthConfig      `yaml:"auth"`
	Contracts ContractsConfig `yaml:"contracts"`
	Worker    WorkerConfig    `yaml:"worker"`
	Log       LogConfig       `yaml:"log"`
}

type HTTPConfig struct {
	Address           string   `yaml:"address"`
	SwaggerDir        string   `yaml:"swagger_dir"`
	AllowedOrigins    []string `yaml:"allowed_origins"`
	RequestsPerMinute int      `yaml:"requests_per_minute"`
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// InMemory reports whether the process should run without Postgres.
func (d DatabaseConfig) InMemory() bool {
	return d.Driver == "memory"
}

type RedisConfig struct {
	Addr        string `yaml:"addr"`
	Password    string `yaml:"password"`
	DB          int    `yaml:"db"`
	TasksDB     int    `yaml:"tasks_db"`
	ListTTLSecs int    `yaml:"list_cache_ttl_seconds"`
}

type KafkaConfig struct {
	Brokers            []string `yaml:"brokers"`
	NotificationsTopic string   `yaml:"notifications_topic"`
	GroupID            string   `yaml:"group_id"`
}

// BookingConfig holds the engine policy values. Creation and acceptance
// conflict checks each have their own buffer.
type BookingConfig struct {
	CreationBufferMinutes   int    `yaml:"creation_buffer_minutes"`
	AcceptanceBufferMinutes int    `yaml:"acceptance_buffer_minutes"`
	StoreTimeoutSeconds     int    `yaml:"store_timeout_seconds"`
	DispatchTimeoutSeconds  int    `yaml:"dispatch_timeout_seconds"`
	AdvancePercent          int    `yaml:"advance_percent"`
	ReminderLeadHours       int    `yaml:"reminder_lead_hours"`
	DefaultCurrency         string `yaml:"default_currency"`
}

func (b BookingConfig) CreationBuffer() time.Duration {
	return time.Duration(b.CreationBufferMinutes) * time.Minute
}

func (b BookingConfig) AcceptanceBuffer() time.Duration {
	return time.Duration(b.AcceptanceBufferMinutes) * time.Minute
}

func (b BookingConfig) StoreTimeout() time.Duration {
	return time.Duration(b.StoreTimeoutSeconds) * time.Second
}

func (b BookingConfig) DispatchTimeout() time.Duration {
	return time.Duration(b.DispatchTimeoutSeconds) * time.Second
}

func (b BookingConfig) ReminderLead() time.Duration {
	return time.Duration(b.ReminderLeadHours) * time.Hour
}

type PaymentsConfig struct {
	StripeSecretKey     string `yaml:"stripe_secret_key"`
	StripeWebhookSecret string `yaml:"stripe_webhook_secret"`
	CallbackSecret      string `yaml:"callback_secret"`
	SuccessRedirectURL  string `yaml:"success_redirect_url"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type ContractsConfig struct {
	CloudName string `yaml:"cloud_name"`
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	Folder    string `yaml:"folder"`
}

// Enabled reports whether contract documents can be uploaded.
func (c ContractsConfig) Enabled() bool {
	return c.CloudName != "" && c.APIKey != "" && c.APISecret != ""
}

type WorkerConfig struct {
	Concurrency int `yaml:"concurrency"`
}

type LogConfig struct {
	Env   string `yaml:"env"`
	Level string `yaml:"level"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	applyEnv(cfg)

	if cfg.Booking.CreationBufferMinutes < 0 || cfg.Booking.AcceptanceBufferMinutes < 0 {
		return nil, fmt.Errorf("booking buffers must not be negative")
	}
	if cfg.Booking.AdvancePercent < 0 || cfg.Booking.AdvancePercent > 100 {
		return nil, fmt.Errorf("booking.advance_percent must be within 0..100")
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("auth.jwt_secret (or JWT_SECRET) is required")
	}
	if len(cfg.Auth.JWTSecret) < minSecretLength {
		return nil, fmt.Errorf("auth.jwt_secret must be at least %d bytes", minSecretLength)
	}
	if cfg.Payments.CallbackSecret != "" && len(cfg.Payments.CallbackSecret) < minSecretLength {
		return nil, fmt.Errorf("payments.callback_secret must be at least %d bytes", minSecretLength)
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Address:           ":8080",
			RequestsPerMinute: 200,
		},
		Database: DatabaseConfig{
			Driver:  "postgres",
			Port:    5432,
			SSLMode: "disable",
		},
		Redis: RedisConfig{
			TasksDB:     1,
			ListTTLSecs: 30,
		},
		Kafka: KafkaConfig{
			NotificationsTopic: "booking-notifications",
			GroupID:            "artbooking-worker",
		},
		Booking: BookingConfig{
			CreationBufferMinutes:   30,
			AcceptanceBufferMinutes: 15,
			StoreTimeoutSeconds:     5,
			DispatchTimeoutSeconds:  10,
			AdvancePercent:          30,
			ReminderLeadHours:       24,
			DefaultCurrency:         "usd",
		},
		Contracts: ContractsConfig{
			Folder: "contracts",
		},
		Worker: WorkerConfig{
			Concurrency: 10,
		},
		Log: LogConfig{
			Env:   "development",
			Level: "info",
		},
	}
}

// applyEnv lets secrets come from the environment (or a .env file) instead
// of the YAML file.
func applyEnv(cfg *Config) {
	override := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	override(&cfg.Database.Password, "DATABASE_PASSWORD")
	override(&cfg.Redis.Password, "REDIS_PASSWORD")
	override(&cfg.Auth.JWTSecret, "JWT_SECRET")
	override(&cfg.Payments.StripeSecretKey, "STRIPE_SECRET_KEY")
	override(&cfg.Payments.StripeWebhookSecret, "STRIPE_WEBHOOK_SECRET")
	override(&cfg.Payments.CallbackSecret, "PAYMENT_CALLBACK_SECRET")
	override(&cfg.Contracts.APISecret, "CLOUDINARY_API_SECRET")
	override(&cfg.Log.Env, "ENV")
}
