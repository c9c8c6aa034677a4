package config

import "time"

// LLMConfig represents the configuration for the LLM provider
type LLMConfig struct {
	Provider string
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region         string
	ModelID        string
	MaxTokens      int
	Temperature    float32
	TopP           float32
	MaxContextSize int
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey         string
	ModelName      string
	MaxTokens      int
	Temperature    float32
	TopP           float32
	MaxContextSize int
}

// OpenAIConfig represents the configuration for OpenAI
type OpenAIConfig struct {
	APIKey         string
	ModelName      string
	MaxTokens      int
	Temperature    float32
	TopP           float32
	MaxContextSize int
}

// OracleConfig controls how classification requests are batched and paced
type OracleConfig struct {
	BatchSize    int
	RequestDelay time.Duration
}

// ClassifierConfig controls a classification pass
type ClassifierConfig struct {
	TopSenders        int
	SubjectsPerSender int
	Learn             bool
	ReuseAIVerdicts   bool
	RuleTable         string
	MatchTimeout      time.Duration
	Interval          time.Duration
}

// LearningConfig controls rule synthesis and the learned rule lifecycle
type LearningConfig struct {
	Positives         int
	Negatives         int
	MinConfidence     float64
	StaleAfter        time.Duration
	CorrectionPenalty float64
}

// StoreConfig selects the record and learned rule database
type StoreConfig struct {
	Type        string
	SQLitePath  string
	MySQLDSN    string
	PostgresDSN string
}

// RuleSetConfig selects where the sender rule-set is persisted
type RuleSetConfig struct {
	Type          string
	Path          string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisKey      string
}

// IngestConfig represents the configuration for the SMTP ingest endpoint
type IngestConfig struct {
	Enabled         bool
	ListenAddress   string
	Domain          string
	LocalDomains    []string
	SnippetSize     int
	MaxMessageBytes int64
}

// MetricsConfig represents the configuration for the metrics endpoint
type MetricsConfig struct {
	Enabled       bool
	ListenAddress string
}

// LoggingConfig represents the logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// GetLLM returns the LLM configuration
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		Provider: c.GetString("llm.provider"),
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:         c.GetString("bedrock.region"),
		ModelID:        c.GetString("bedrock.model_id"),
		MaxTokens:      c.GetInt("bedrock.max_tokens"),
		Temperature:    float32(c.GetFloat64("bedrock.temperature")),
		TopP:           float32(c.GetFloat64("bedrock.top_p")),
		MaxContextSize: c.GetInt("bedrock.max_context_size"),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:         c.GetString("gemini.api_key"),
		ModelName:      c.GetString("gemini.model_name"),
		MaxTokens:      c.GetInt("gemini.max_tokens"),
		Temperature:    float32(c.GetFloat64("gemini.temperature")),
		TopP:           float32(c.GetFloat64("gemini.top_p")),
		MaxContextSize: c.GetInt("gemini.max_context_size"),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:         c.GetString("openai.api_key"),
		ModelName:      c.GetString("openai.model_name"),
		MaxTokens:      c.GetInt("openai.max_tokens"),
		Temperature:    float32(c.GetFloat64("openai.temperature")),
		TopP:           float32(c.GetFloat64("openai.top_p")),
		MaxContextSize: c.GetInt("openai.max_context_size"),
	}
}

// GetOracle returns the oracle batching configuration
func (c *Config) GetOracle() OracleConfig {
	return OracleConfig{
		BatchSize:    c.GetInt("oracle.batch_size"),
		RequestDelay: c.GetDuration("oracle.request_delay"),
	}
}

// GetClassifier returns the classification pass configuration
func (c *Config) GetClassifier() ClassifierConfig {
	return ClassifierConfig{
		TopSenders:        c.GetInt("classifier.top_senders"),
		SubjectsPerSender: c.GetInt("classifier.subjects_per_sender"),
		Learn:             c.GetBool("classifier.learn"),
		ReuseAIVerdicts:   c.GetBool("classifier.reuse_ai_verdicts"),
		RuleTable:         c.GetString("classifier.rule_table"),
		MatchTimeout:      c.GetDuration("classifier.match_timeout"),
		Interval:          c.GetDuration("classifier.interval"),
	}
}

// GetLearning returns the learning configuration
func (c *Config) GetLearning() LearningConfig {
	return LearningConfig{
		Positives:         c.GetInt("learning.positives"),
		Negatives:         c.GetInt("learning.negatives"),
		MinConfidence:     c.GetFloat64("learning.min_confidence"),
		StaleAfter:        c.GetDuration("learning.stale_after"),
		CorrectionPenalty: c.GetFloat64("learning.correction_penalty"),
	}
}

// GetStore returns the store configuration
func (c *Config) GetStore() StoreConfig {
	return StoreConfig{
		Type:        c.GetString("store.type"),
		SQLitePath:  c.GetString("store.sqlite_path"),
		MySQLDSN:    c.GetString("store.mysql_dsn"),
		PostgresDSN: c.GetString("store.postgres_dsn"),
	}
}

// GetRuleSet returns the rule-set persistence configuration
func (c *Config) GetRuleSet() RuleSetConfig {
	return RuleSetConfig{
		Type:          c.GetString("ruleset.type"),
		Path:          c.GetString("ruleset.path"),
		RedisAddr:     c.GetString("ruleset.redis_addr"),
		RedisPassword: c.GetString("ruleset.redis_password"),
		RedisDB:       c.GetInt("ruleset.redis_db"),
		RedisKey:      c.GetString("ruleset.redis_key"),
	}
}

// GetIngest returns the ingest configuration
func (c *Config) GetIngest() IngestConfig {
	return IngestConfig{
		Enabled:         c.GetBool("ingest.enabled"),
		ListenAddress:   c.GetString("ingest.listen_address"),
		Domain:          c.GetString("ingest.domain"),
		LocalDomains:    c.GetStringSlice("ingest.local_domains"),
		SnippetSize:     c.GetInt("ingest.snippet_size"),
		MaxMessageBytes: int64(c.GetInt("ingest.max_message_bytes")),
	}
}

// GetMetrics returns the metrics configuration
func (c *Config) GetMetrics() MetricsConfig {
	return MetricsConfig{
		Enabled:       c.GetBool("metrics.enabled"),
		ListenAddress: c.GetString("metrics.listen_address"),
	}
}

// GetLogging returns the logging configuration
func (c *Config) GetLogging() LoggingConfig {
	return LoggingConfig{
		Level:  c.GetString("logging.level"),
		Format: c.GetString("logging.format"),
	}
}
