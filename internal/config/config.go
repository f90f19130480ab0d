package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/smartgrade/grader-api/internal/dto"
)

// Config holds runtime configuration values for the grading engine.
type Config struct {
	AppName          string
	AppEnv           string
	SimilarityWeight float64
	QualityWeight    float64
	RubricWeight     float64
	NumKeywords      int
	GrammarTimeout   time.Duration
	LanguageToolURL  string
	EmbeddingModel   string
	EmbeddingAPIKey  string
	EmbeddingBaseURL string
	LogLevel         string
}

// Weights returns the configured blend of the three scoring signals.
func (c Config) Weights() dto.Weights {
	return dto.Weights{
		Similarity: c.SimilarityWeight,
		Quality:    c.QualityWeight,
		Rubric:     c.RubricWeight,
	}
}

// LoggerLevel parses the configured log level, defaulting to info.
func (c Config) LoggerLevel() zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("GRADER")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Grader API")
	v.SetDefault("app.env", "development")
	v.SetDefault("weights.similarity", 0.6)
	v.SetDefault("weights.quality", 0.3)
	v.SetDefault("weights.rubric", 0.1)
	v.SetDefault("keyword.num_keywords", 15)
	v.SetDefault("quality.languagetool_timeout_seconds", 6.0)
	v.SetDefault("similarity.model_name", "text-embedding-3-small")
	v.SetDefault("logging.level", "info")

	timeoutSeconds := v.GetFloat64("quality.languagetool_timeout_seconds")
	if timeoutSeconds <= 0 {
		timeoutSeconds = 6.0
	}

	cfg := Config{
		AppName:          v.GetString("app.name"),
		AppEnv:           v.GetString("app.env"),
		SimilarityWeight: v.GetFloat64("weights.similarity"),
		QualityWeight:    v.GetFloat64("weights.quality"),
		RubricWeight:     v.GetFloat64("weights.rubric"),
		NumKeywords:      v.GetInt("keyword.num_keywords"),
		GrammarTimeout:   time.Duration(timeoutSeconds * float64(time.Second)),
		LanguageToolURL:  v.GetString("quality.languagetool_url"),
		EmbeddingModel:   v.GetString("similarity.model_name"),
		EmbeddingAPIKey:  v.GetString("similarity.api_key"),
		EmbeddingBaseURL: v.GetString("similarity.base_url"),
		LogLevel:         v.GetString("logging.level"),
	}

	if cfg.SimilarityWeight < 0 || cfg.QualityWeight < 0 || cfg.RubricWeight < 0 {
		return Config{}, fmt.Errorf("scoring weights must be non-negative")
	}

	if cfg.NumKeywords <= 0 {
		cfg.NumKeywords = 15
	}

	return cfg, nil
}
