package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	SQLite    SQLiteConfig
	Redis     RedisConfig
	Analytics AnalyticsConfig
	Search    SearchConfig
	Export    ExportConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	Enabled  bool
}

// AnalyticsConfig holds the knowledge-gap and aggregation tunables.
// LowConfidenceThreshold is the single source of truth for what counts as a
// low-confidence bot reply across the whole engine.
type AnalyticsConfig struct {
	LowConfidenceThreshold float64
	MinOccurrences         int
	ReplyWindowSec         int
	TopCategories          int
	CacheTTLSec            int
}

type SearchConfig struct {
	MaxResults        int
	MinRelevanceScore float64
	MaxSuggestions    int
}

type ExportConfig struct {
	ExpiryHours int
	MaxRecords  int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/clara-analytics")

	viper.SetEnvPrefix("CLARA")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 30)
	viper.SetDefault("server.bodyLimit", 10485760)

	viper.SetDefault("sqlite.path", "./data/clara.db")

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.enabled", true)

	viper.SetDefault("analytics.lowConfidenceThreshold", 0.7)
	viper.SetDefault("analytics.minOccurrences", 3)
	viper.SetDefault("analytics.replyWindowSec", 60)
	viper.SetDefault("analytics.topCategories", 10)
	viper.SetDefault("analytics.cacheTTLSec", 300)

	viper.SetDefault("search.maxResults", 20)
	viper.SetDefault("search.minRelevanceScore", 0.1)
	viper.SetDefault("search.maxSuggestions", 5)

	viper.SetDefault("export.expiryHours", 24)
	viper.SetDefault("export.maxRecords", 10000)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
