package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"hifz-quiz-service/internal/domain"
	"hifz-quiz-service/internal/rewards"
)

type Config struct {
	Server struct {
		Port        string   `yaml:"port"`
		CORSOrigins []string `yaml:"cors_origins"`
		AdminToken  string   `yaml:"admin_token"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Content struct {
		BaseURL string `yaml:"base_url"`
		Edition string `yaml:"edition"`
		Timeout string `yaml:"timeout"`
		TTL     string `yaml:"ttl"`
	} `yaml:"content"`
	Game struct {
		AnswerDelay string `yaml:"answer_delay"`
		ConfigTTL   string `yaml:"config_ttl"`
		AudioURL    string `yaml:"audio_url"`
		// Seed data used when Postgres is not configured.
		Progression *domain.ProgressionSettings `yaml:"progression"`
		Questions   []domain.QuestionConfig     `yaml:"questions"`
		LiveEvents  []domain.LiveEvent          `yaml:"live_events"`
		Quests      []rewards.QuestTemplate     `yaml:"quests"`
	} `yaml:"game"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
