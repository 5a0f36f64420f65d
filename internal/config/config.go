package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rpggio/searchstudy/internal/domain/assignment"
)

// Config defines server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	DB        DBConfig        `yaml:"db"`
	Log       LogConfig       `yaml:"log"`
	Study     StudyConfig     `yaml:"study"`
	Providers ProvidersConfig `yaml:"providers"`
	Console   ConsoleConfig   `yaml:"console"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// SecureCookies marks the device cookie Secure; enable behind TLS.
	SecureCookies bool `yaml:"secure_cookies"`
}

type DBConfig struct {
	// Path of the SQLite file. ":memory:" keeps everything in process.
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// StudyConfig holds the experiment design.
type StudyConfig struct {
	ID                   string             `yaml:"id"`
	TimeThreshold        int                `yaml:"time_threshold_seconds"`
	InteractionThreshold int                `yaml:"interaction_threshold"`
	ResultsPerQuery      int                `yaml:"results_per_query"`
	CellCap              int                `yaml:"cell_cap"`
	FlushTimeout         time.Duration      `yaml:"flush_timeout"`
	CompletionURL        string             `yaml:"completion_url"`
	DeclineURL           string             `yaml:"decline_url"`
	Topics               []assignment.Topic `yaml:"topics"`
}

type ProvidersConfig struct {
	Search   SearchConfig   `yaml:"search"`
	Gemini   GeminiConfig   `yaml:"gemini"`
	Airtable AirtableConfig `yaml:"airtable"`
	Article  ArticleConfig  `yaml:"article"`
}

type SearchConfig struct {
	APIKey   string `yaml:"api_key"`
	EngineID string `yaml:"engine_id"`
	BaseURL  string `yaml:"base_url"`
}

type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

type AirtableConfig struct {
	APIKey           string `yaml:"api_key"`
	BaseID           string `yaml:"base_id"`
	BaseURL          string `yaml:"base_url"`
	PreSurveyTable   string `yaml:"pre_survey_table"`
	PostSurveyTable  string `yaml:"post_survey_table"`
	DemographicTable string `yaml:"demographic_table"`
	ConsentTable     string `yaml:"consent_table"`
	LogTable         string `yaml:"log_table"`
}

type ArticleConfig struct {
	Timeout  time.Duration `yaml:"timeout"`
	MaxChars int           `yaml:"max_chars"`
}

// ConsoleConfig guards the researcher console. An empty token disables it.
type ConsoleConfig struct {
	Token string `yaml:"token"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		DB: DBConfig{
			Path: "searchstudy.db",
		},
		Log: LogConfig{
			Level: "info",
		},
		Study: StudyConfig{
			ID:                   "study",
			TimeThreshold:        240,
			InteractionThreshold: 5,
			ResultsPerQuery:      10,
			CellCap:              assignment.DefaultCellCap,
			FlushTimeout:         5 * time.Second,
		},
		Providers: ProvidersConfig{
			Gemini: GeminiConfig{Model: "gemini-2.5-flash"},
			Airtable: AirtableConfig{
				PreSurveyTable:   "Pre-Survey",
				PostSurveyTable:  "post_survey",
				DemographicTable: "Demographic",
				ConsentTable:     "consent",
				LogTable:         "experiment_log",
			},
			Article: ArticleConfig{
				Timeout:  8 * time.Second,
				MaxChars: 20000,
			},
		},
	}
}

// Load reads configuration from an optional YAML file and environment variables.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("STUDY_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if len(cfg.Study.Topics) == 0 {
		cfg.Study.Topics = assignment.DefaultTopics()
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) error {
		v := os.Getenv(key)
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = n
		return nil
	}

	setString("STUDY_SERVER_HOST", &cfg.Server.Host)
	if err := setInt("STUDY_SERVER_PORT", &cfg.Server.Port); err != nil {
		return err
	}
	if v := os.Getenv("STUDY_SECURE_COOKIES"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid STUDY_SECURE_COOKIES: %w", err)
		}
		cfg.Server.SecureCookies = b
	}
	setString("STUDY_DB_PATH", &cfg.DB.Path)
	setString("STUDY_LOG_LEVEL", &cfg.Log.Level)

	setString("STUDY_ID", &cfg.Study.ID)
	if err := setInt("STUDY_TIME_THRESHOLD", &cfg.Study.TimeThreshold); err != nil {
		return err
	}
	if err := setInt("STUDY_INTERACTION_THRESHOLD", &cfg.Study.InteractionThreshold); err != nil {
		return err
	}
	if err := setInt("STUDY_CELL_CAP", &cfg.Study.CellCap); err != nil {
		return err
	}
	setString("STUDY_COMPLETION_URL", &cfg.Study.CompletionURL)
	setString("STUDY_DECLINE_URL", &cfg.Study.DeclineURL)
	setString("STUDY_CONSOLE_TOKEN", &cfg.Console.Token)

	// Provider credentials keep the names the deployment already uses.
	setString("GOOGLE_CSE_API_KEY", &cfg.Providers.Search.APIKey)
	setString("GOOGLE_CSE_CX", &cfg.Providers.Search.EngineID)
	setString("GEMINI_API_KEY", &cfg.Providers.Gemini.APIKey)
	setString("GEMINI_MODEL", &cfg.Providers.Gemini.Model)
	setString("AIRTABLE_API_KEY", &cfg.Providers.Airtable.APIKey)
	setString("AIRTABLE_BASE_ID", &cfg.Providers.Airtable.BaseID)
	setString("AIRTABLE_PRE_SURVEY_TABLE", &cfg.Providers.Airtable.PreSurveyTable)
	setString("AIRTABLE_POST_SURVEY_TABLE", &cfg.Providers.Airtable.PostSurveyTable)
	return nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}
