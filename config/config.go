package config

import (
	"time"
)

type (
	Config struct {
		Log     LogConfig     `yaml:"log"`
		Store   StoreConfig   `yaml:"store"`
		Query   QueryConfig   `yaml:"query"`
		Session SessionConfig `yaml:"session"`
		Server  ServerConfig  `yaml:"server"`
	}

	LogConfig struct {
		LogLevel   string `yaml:"level"`
		LogHandler string `yaml:"handler"`
	}

	StoreConfig struct {
		// SqlitePath specifies the file path for the SQLite database.
		// ":memory:" keeps everything in-process, which is what tests use.
		SqlitePath string `yaml:"sqlitePath"`

		// VectorDimension is the fixed embedding dimension. Every stored and
		// queried vector is checked against it.
		VectorDimension int `yaml:"vectorDimension"`
	}

	QueryConfig struct {
		// CandidateLimit caps how many hits each retrieval strategy contributes
		// before merging and ranking.
		CandidateLimit int `yaml:"candidateLimit"`

		// ResultLimit caps the ranked candidate list handed to the resolver.
		ResultLimit int `yaml:"resultLimit"`

		// KeywordLookupLimit caps rule-set and hypothesis-template keyword
		// lookups.
		KeywordLookupLimit int `yaml:"keywordLookupLimit"`

		// HistoryRelevanceThreshold is the minimum cosine similarity for a
		// past exchange to count as relevant context.
		HistoryRelevanceThreshold float32 `yaml:"historyRelevanceThreshold"`

		// Ranking multipliers, strict precedence: rule-set bonus >
		// hypothesis-template bonus > validated > pending.
		RuleMatchBonus      float32 `yaml:"ruleMatchBonus"`
		TemplateMatchBonus  float32 `yaml:"templateMatchBonus"`
		ValidatedMultiplier float32 `yaml:"validatedMultiplier"`
		PendingMultiplier   float32 `yaml:"pendingMultiplier"`

		// MinStepLength drops fragments shorter than this during sentence
		// splitting of compound queries.
		MinStepLength int `yaml:"minStepLength"`

		// EmbedTimeout bounds every call to the embedding capability.
		EmbedTimeout time.Duration `yaml:"embedTimeout"`

		DefaultFallbackResponse string `yaml:"defaultFallbackResponse"`
	}

	SessionConfig struct {
		HistoryLimit    int    `yaml:"historyLimit"`
		DefaultLanguage string `yaml:"defaultLanguage"`

		// MaintenanceInterval drives the background validation-backlog and
		// index reconciliation loop.
		MaintenanceInterval time.Duration `yaml:"maintenanceInterval"`
	}

	ServerConfig struct {
		Addr string `yaml:"addr"`
	}
)

func NewConfig() *Config {
	return &Config{
		Log:     LogConfig{LogLevel: "info", LogHandler: "default"},
		Store:   *NewStoreConfig(),
		Query:   *NewQueryConfig(),
		Session: *NewSessionConfig(),
		Server:  ServerConfig{Addr: "127.0.0.1:8710"},
	}
}

func NewStoreConfig() *StoreConfig {
	return &StoreConfig{
		SqlitePath:      ":memory:",
		VectorDimension: 768,
	}
}

func NewQueryConfig() *QueryConfig {
	return &QueryConfig{
		CandidateLimit:            30,
		ResultLimit:               7,
		KeywordLookupLimit:        10,
		HistoryRelevanceThreshold: 0.6,
		RuleMatchBonus:            1.5,
		TemplateMatchBonus:        1.2,
		ValidatedMultiplier:       2.0,
		PendingMultiplier:         1.0,
		MinStepLength:             5,
		EmbedTimeout:              10 * time.Second,
		DefaultFallbackResponse:   "No answer was found or the request could not be processed.",
	}
}

func NewSessionConfig() *SessionConfig {
	return &SessionConfig{
		HistoryLimit:        15,
		DefaultLanguage:     "tr",
		MaintenanceInterval: 5 * time.Minute,
	}
}
