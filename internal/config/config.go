// internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type QdrantConfig struct {
	Host string
	Port int
}

type TypesenseConfig struct {
	Host   string
	Port   int
	APIKey string
}

// AnalysisConfig holds the knobs of the brand analysis pipeline.
type AnalysisConfig struct {
	PromptsPerTopic   int
	NumberOfTopics    int // 0 keeps every derived topic
	PromptDelay       time.Duration
	RetryAttempts     int
	RetryTimeout      time.Duration
	CategorizeTimeout time.Duration
	ScrapeTimeout     time.Duration
}

// ScheduleConfig drives the daily re-run. An empty BrandName disables it.
type ScheduleConfig struct {
	BrandName string
	BrandURL  string
	Cron      string
}

type Config struct {
	Port                      string
	Environment               string
	InngestEventKey           string
	InngestSigningKey         string
	LLMProvider               string
	OpenAIAPIKey              string
	OpenAIModel               string
	// Azure OpenAI replaces api.openai.com when all three are set
	AzureOpenAIEndpoint       string
	AzureOpenAIKey            string
	AzureOpenAIDeploymentName string
	AnthropicAPIKey           string
	AnthropicModel            string
	EmbeddingModel            string
	SlackWebhookURL           string
	LogLevel                  string
	LogFormat                 string
	CORSOrigins               []string
	RateLimitPerMinute        int
	SearchIndexEnabled        bool
	DatabaseURL               string
	Database                  DatabaseConfig
	Analysis                  AnalysisConfig
	Schedule                  ScheduleConfig
	Qdrant                    QdrantConfig
	Typesense                 TypesenseConfig
}

// DatabaseConfig describes the Postgres connection and pool settings.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int
}

// DSN renders the lib/pq keyword/value connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func Load() *Config {
	config := &Config{
		Port:                      getEnv("PORT", "8000"),
		Environment:               getEnv("ENVIRONMENT", "development"),
		InngestEventKey:           os.Getenv("INNGEST_EVENT_KEY"),
		InngestSigningKey:         os.Getenv("INNGEST_SIGNING_KEY"),
		LLMProvider:               strings.ToLower(getEnv("LLM_PROVIDER", "openai")),
		OpenAIAPIKey:              os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:               getEnv("OPENAI_MODEL", "gpt-4o"),
		AzureOpenAIEndpoint:       os.Getenv("AZURE_OPENAI_ENDPOINT"),
		AzureOpenAIKey:            os.Getenv("AZURE_OPENAI_KEY"),
		AzureOpenAIDeploymentName: os.Getenv("AZURE_OPENAI_DEPLOYMENT_NAME"),
		AnthropicAPIKey:           os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:            getEnv("ANTHROPIC_MODEL", "claude-sonnet-4-20250514"),
		EmbeddingModel:            getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		SlackWebhookURL:           os.Getenv("SLACK_WEBHOOK_URL"),
		LogLevel:                  getEnv("LOG_LEVEL", "info"),
		LogFormat:                 getEnv("LOG_FORMAT", "json"),
		CORSOrigins:               getEnvList("CORS_ORIGINS", []string{"*"}),
		RateLimitPerMinute:        getEnvInt("RATE_LIMIT_PER_MINUTE", 100),
		SearchIndexEnabled:        getEnvBool("SEARCH_INDEX_ENABLED", false),
		DatabaseURL:               os.Getenv("DATABASE_URL"),
	}

	dbConfig, err := parseDatabaseConfig()
	if err != nil {
		// Fall back to discrete DB_* variables
		dbConfig = DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			Name:            getEnv("DB_NAME", "brand_visibility"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 25),
			ConnMaxLifetime: getEnvInt("DB_CONN_MAX_LIFETIME", 300),
		}
	}
	config.Database = dbConfig

	config.Analysis = AnalysisConfig{
		PromptsPerTopic:   getEnvInt("PROMPTS_PER_TOPIC", 20),
		NumberOfTopics:    getEnvInt("NUMBER_OF_TOPICS", 0),
		PromptDelay:       getEnvDuration("PROMPT_DELAY", 2*time.Second),
		RetryAttempts:     getEnvInt("RETRY_ATTEMPTS", 3),
		RetryTimeout:      getEnvDuration("RETRY_TIMEOUT", 30*time.Second),
		CategorizeTimeout: getEnvDuration("CATEGORIZE_TIMEOUT", 15*time.Second),
		ScrapeTimeout:     getEnvDuration("SCRAPE_TIMEOUT", 10*time.Second),
	}

	config.Schedule = ScheduleConfig{
		BrandName: os.Getenv("SCHEDULED_BRAND_NAME"),
		BrandURL:  os.Getenv("SCHEDULED_BRAND_URL"),
		Cron:      getEnv("SCHEDULE_CRON", "0 2 * * *"),
	}

	config.Qdrant = QdrantConfig{
		Host: getEnv("QDRANT_HOST", "qdrant"),
		Port: getEnvInt("QDRANT_PORT", 6334),
	}
	config.Typesense = TypesenseConfig{
		Host:   getEnv("TYPESENSE_HOST", "typesense"),
		Port:   getEnvInt("TYPESENSE_PORT", 8108),
		APIKey: getEnv("TYPESENSE_API_KEY", "xyz"),
	}

	return config
}

// ActiveAPIKey returns the credential of the configured LLM backend.
func (c *Config) ActiveAPIKey() string {
	switch c.LLMProvider {
	case "anthropic", "claude":
		return c.AnthropicAPIKey
	default:
		if c.UseAzureOpenAI() {
			return c.AzureOpenAIKey
		}
		return c.OpenAIAPIKey
	}
}

// UseAzureOpenAI reports whether the OpenAI backend should talk to Azure.
func (c *Config) UseAzureOpenAI() bool {
	return c.AzureOpenAIEndpoint != "" && c.AzureOpenAIKey != "" && c.AzureOpenAIDeploymentName != ""
}

func parseDatabaseConfig() (DatabaseConfig, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return DatabaseConfig{}, fmt.Errorf("DATABASE_URL not set")
	}

	parsedURL, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, fmt.Errorf("invalid DATABASE_URL: %w", err)
	}
	if parsedURL.Hostname() == "" || len(parsedURL.Path) < 2 {
		return DatabaseConfig{}, fmt.Errorf("invalid DATABASE_URL: missing host or database name")
	}

	sslMode := parsedURL.Query().Get("sslmode")
	if sslMode == "" {
		sslMode = getEnv("DB_SSLMODE", "require")
	}

	config := DatabaseConfig{
		Host:            parsedURL.Hostname(),
		Port:            5432,
		User:            parsedURL.User.Username(),
		Name:            parsedURL.Path[1:],
		SSLMode:         sslMode,
		MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 25),
		ConnMaxLifetime: getEnvInt("DB_CONN_MAX_LIFETIME", 300),
	}

	if password, ok := parsedURL.User.Password(); ok {
		config.Password = password
	}

	if parsedURL.Port() != "" {
		if port, err := strconv.Atoi(parsedURL.Port()); err == nil {
			config.Port = port
		}
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
