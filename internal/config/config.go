package config

import (
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/go-playground/validator/v10"
)

// Drivers de persistencia soportados.
const (
	StoreMongo    = "mongo"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config centraliza la configuración del servicio. Se construye una vez en main
// y se inyecta en cada componente; ningún componente lee variables de entorno.
type Config struct {
	HTTPPort      string        `env:"HTTP_PORT" envDefault:"8080"`
	AllowedOrigin string        `env:"ALLOWED_ORIGIN" envDefault:"*" validate:"eq=*|url"`
	LogLevel      string        `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
	LogFormat     string        `env:"LOG_FORMAT" envDefault:"json" validate:"oneof=json console"`
	JWTSecret     string        `env:"JWT_SECRET,required" validate:"required"`
	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"168h" validate:"gt=0"`

	GoogleClientID string `env:"GOOGLE_CLIENT_ID,required" validate:"required"`
	GoogleCertsURL string `env:"GOOGLE_CERTS_URL" envDefault:"https://www.googleapis.com/oauth2/v3/certs" validate:"url"`

	StoreDriver   string `env:"STORE_DRIVER" envDefault:"mongo" validate:"oneof=mongo postgres memory"`
	MongoURI      string `env:"MONGO_URI" validate:"required_if=StoreDriver mongo"`
	MongoDatabase string `env:"MONGO_DATABASE" envDefault:"psy_relay"`
	DatabaseURL   string `env:"DATABASE_URL" validate:"required_if=StoreDriver postgres"`

	LLMAPIKey      string        `env:"LLM_API_KEY,required" validate:"required"`
	LLMBaseURL     string        `env:"LLM_BASE_URL" envDefault:"https://api.openai.com/v1" validate:"url"`
	LLMModel       string        `env:"LLM_MODEL" envDefault:"gpt-4o-mini"`
	LLMTemperature float64       `env:"LLM_TEMPERATURE" envDefault:"0.7" validate:"gte=0,lte=2"`
	LLMTimeout     time.Duration `env:"LLM_TIMEOUT" envDefault:"60s" validate:"gt=0"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	TranscriptWorkers   int `env:"TRANSCRIPT_WORKERS" envDefault:"4" validate:"gte=1"`
	TranscriptQueueSize int `env:"TRANSCRIPT_QUEUE_SIZE" envDefault:"256" validate:"gte=1"`
}

// LoadConfig carga la configuración desde variables de entorno y la valida.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
