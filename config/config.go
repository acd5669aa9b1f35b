package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config is read from defaults, an optional config file and the environment, in that
// order of precedence from low to high. Every key maps to the upper cased environment
// variable, db_dsn to DB_DSN.
type Config struct {
	HTTPAddr string `mapstructure:"http_addr" validate:"required"`

	DBDriver string `mapstructure:"db_driver" validate:"oneof=mysql postgres sqlite"`
	DBDSN    string `mapstructure:"db_dsn" validate:"required"`

	BlobBackend       string `mapstructure:"blob_backend" validate:"oneof=database s3"`
	S3Endpoint        string `mapstructure:"s3_endpoint" validate:"required_if=BlobBackend s3"`
	S3AccessKeyID     string `mapstructure:"s3_access_key_id"`
	S3SecretAccessKey string `mapstructure:"s3_secret_access_key"`
	S3Bucket          string `mapstructure:"s3_bucket" validate:"required_if=BlobBackend s3"`
	S3UseSSL          bool   `mapstructure:"s3_use_ssl"`

	// Empty RabbitMQURL disables the event bus.
	RabbitMQURL      string `mapstructure:"rabbitmq_url"`
	RabbitMQExchange string `mapstructure:"rabbitmq_exchange" validate:"required_with=RabbitMQURL"`
	RabbitMQQueue    string `mapstructure:"rabbitmq_queue" validate:"required_with=RabbitMQURL"`

	// Empty RedisAddr disables progress tracking.
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db" validate:"min=0"`

	ExtractorProvider string `mapstructure:"extractor_provider" validate:"oneof=unipdf gemini"`
	DocumentModel     string `mapstructure:"document_model" validate:"required_if=ExtractorProvider gemini"`
	UnidocLicenseKey  string `mapstructure:"unidoc_license_key" validate:"required_if=ExtractorProvider unipdf"`

	ScoringProvider  string `mapstructure:"scoring_provider" validate:"oneof=openai gemini vertex"`
	ScoringModel     string `mapstructure:"scoring_model" validate:"required"`
	OpenAIAPIKey     string `mapstructure:"openai_api_key" validate:"required_if=ScoringProvider openai"`
	OpenAIBaseURL    string `mapstructure:"openai_base_url" validate:"required_if=OpenAIAzure true"`
	OpenAIAzure      bool   `mapstructure:"openai_azure"`
	OpenAIAPIVersion string `mapstructure:"openai_api_version"`
	GeminiAPIKey     string `mapstructure:"gemini_api_key"`
	VertexProject    string `mapstructure:"vertex_project" validate:"required_if=ScoringProvider vertex"`
	VertexLocation   string `mapstructure:"vertex_location"`

	AnalysisMaxParallelism int           `mapstructure:"analysis_max_parallelism" validate:"min=1"`
	AnalysisPollInterval   time.Duration `mapstructure:"analysis_poll_interval" validate:"min=1s"`
	CandidateCvsPageSize   int           `mapstructure:"candidate_cvs_page_size" validate:"min=1"`
	PdfMaxPages            int           `mapstructure:"pdf_max_pages" validate:"min=1"`

	LogLevel string `mapstructure:"log_level" validate:"oneof=trace debug info warn warning error"`
	LogJSON  bool   `mapstructure:"log_json"`
}

var defaults = map[string]any{
	"http_addr":                ":8080",
	"db_driver":                "mysql",
	"db_dsn":                   "",
	"blob_backend":             "database",
	"s3_endpoint":              "",
	"s3_access_key_id":         "",
	"s3_secret_access_key":     "",
	"s3_bucket":                "",
	"s3_use_ssl":               false,
	"rabbitmq_url":             "",
	"rabbitmq_exchange":        "job_openings",
	"rabbitmq_queue":           "analysis_requests",
	"redis_addr":               "",
	"redis_password":           "",
	"redis_db":                 0,
	"extractor_provider":       "unipdf",
	"document_model":           "gemini-2.5-flash",
	"unidoc_license_key":       "",
	"scoring_provider":         "openai",
	"scoring_model":            "gpt-5-mini",
	"openai_api_key":           "",
	"openai_base_url":          "",
	"openai_azure":             false,
	"openai_api_version":       "",
	"gemini_api_key":           "",
	"vertex_project":           "",
	"vertex_location":          "us-central1",
	"analysis_max_parallelism": 10,
	"analysis_poll_interval":   "1m",
	"candidate_cvs_page_size":  25,
	"pdf_max_pages":            5,
	"log_level":                "info",
	"log_json":                 false,
}

// New returns a viper instance holding the defaults and reading the environment.
func New() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()
	return v
}

// Load reads cfgFile when given and validates the result.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]error, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Errorf("config %s: failed on %s", fe.Field(), fe.Tag()))
			}
			return errors.Join(msgs...)
		}
		return err
	}

	usesGemini := c.ScoringProvider == "gemini" || c.ExtractorProvider == "gemini"
	if usesGemini && c.GeminiAPIKey == "" {
		return errors.New("config GeminiAPIKey: required when a gemini provider is selected")
	}
	return nil
}

func (c *Config) ProgressEnabled() bool { return c.RedisAddr != "" }

func (c *Config) EventBusEnabled() bool { return c.RabbitMQURL != "" }
