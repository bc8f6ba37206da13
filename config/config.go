package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Weather  WeatherConfig  `yaml:"weather"`
	Booking  BookingConfig  `yaml:"booking"`
	Flight   FlightConfig   `yaml:"flight"`
	Payments PaymentsConfig `yaml:"payments"`
	Evidence EvidenceConfig `yaml:"evidence"`
	Worker   WorkerConfig   `yaml:"worker"`
	Log      LogConfig      `yaml:"log"`
}

type HTTPConfig struct {
	Address         string        `yaml:"address" env:"HTTP_ADDRESS" env-default:":8080"`
	SwaggerPath     string        `yaml:"swagger_path" env:"HTTP_SWAGGER_PATH" env-default:"api/swagger/bushcharter.swagger.json"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env-default:"5s"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host" env:"DB_HOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"DB_PORT" env-default:"5432"`
	User     string `yaml:"user" env:"DB_USER" env-default:"postgres"`
	Password string `yaml:"password" env:"DB_PASSWORD"`
	Name     string `yaml:"name" env:"DB_NAME" env-default:"bushcharter"`
	SSLMode  string `yaml:"ssl_mode" env:"DB_SSLMODE" env-default:"disable"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

type KafkaConfig struct {
	Brokers            []string `yaml:"brokers" env:"KAFKA_BROKERS" env-separator:"," env-default:"localhost:9092"`
	BookingTopic       string   `yaml:"booking_topic" env-default:"bushcharter.bookings"`
	NotificationsTopic string   `yaml:"notifications_topic" env-default:"bushcharter.notifications"`
	TelemetryTopic     string   `yaml:"telemetry_topic" env-default:"bushcharter.telemetry"`
	GroupID            string   `yaml:"group_id" env-default:"bushcharter-worker"`
}

type WeatherConfig struct {
	BaseURL         string        `yaml:"base_url" env:"WEATHER_BASE_URL" env-default:"https://aviationweather.gov/api/data"`
	RequestTimeout  time.Duration `yaml:"request_timeout" env-default:"10s"`
	CacheTTL        time.Duration `yaml:"cache_ttl" env-default:"4m"`
	RefreshInterval time.Duration `yaml:"refresh_interval" env-default:"5m"`
	MaxRetries      int           `yaml:"max_retries" env-default:"1"`
	LegTimeout      time.Duration `yaml:"leg_timeout" env-default:"15s"`
	RulesPath       string        `yaml:"rules_path" env:"WEATHER_RULES_PATH"`
	Airports        []string      `yaml:"airports"`
	Safety          SafetyConfig  `yaml:"safety"`
}

type SafetyConfig struct {
	MinCeilingFt    int     `yaml:"min_ceiling_ft" env-default:"1000"`
	MinVisibilitySM float64 `yaml:"min_visibility_miles" env-default:"3"`
	MaxWindKts      int     `yaml:"max_wind_kts" env-default:"25"`
}

type BookingConfig struct {
	BasePriceCents     int64 `yaml:"base_price_cents" env-default:"35000"`
	CreditValidityDays int   `yaml:"credit_validity_days" env-default:"365"`
}

type FlightConfig struct {
	FixMaxAge               time.Duration `yaml:"fix_max_age" env-default:"30s"`
	TelemetryPerSecond      float64       `yaml:"telemetry_per_second" env-default:"1"`
	TelemetryBurst          int           `yaml:"telemetry_burst" env-default:"5"`
	LandingProximityM       float64       `yaml:"landing_proximity_m" env-default:"5000"`
	EnforceLandingProximity bool          `yaml:"enforce_landing_proximity" env-default:"false"`
}

type PaymentsConfig struct {
	StripeKey string `yaml:"stripe_key" env:"STRIPE_SECRET_KEY"`
	Currency  string `yaml:"currency" env-default:"usd"`
}

type EvidenceConfig struct {
	CloudinaryURL string `yaml:"cloudinary_url" env:"CLOUDINARY_URL"`
	Folder        string `yaml:"folder" env-default:"bushcharter/landings"`
}

type WorkerConfig struct {
	ReconcileSchedule      string        `yaml:"reconcile_schedule" env-default:"@every 1m"`
	WeatherRefreshSchedule string        `yaml:"weather_refresh_schedule" env-default:"@every 5m"`
	WeatherSweepSchedule   string        `yaml:"weather_sweep_schedule" env-default:"@every 15m"`
	WeatherSweepLookahead  time.Duration `yaml:"weather_sweep_lookahead" env-default:"3h"`
	BatchSize              int           `yaml:"batch_size" env-default:"50"`
	MaxSettlementAttempts  int           `yaml:"max_settlement_attempts" env-default:"10"`
}

type LogConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
}

// LoadConfig reads an optional .env, then the YAML file at path with
// environment overrides applied on top.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return &cfg, nil
}
