package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	SQLite   SQLiteConfig
	Redis    RedisConfig
	Oracle   OracleConfig
	Analysis AnalysisConfig
	Chat     ChatConfig
	Logging  LoggingConfig
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
	Enabled    bool
	Host       string
	Port       int
	Password   string
	DB         int
	TTLMinutes int
}

// OracleConfig configures the classification oracle endpoint.
type OracleConfig struct {
	Endpoint   string
	APIKey     string
	Model      string
	MaxTokens  int
	TimeoutSec int
	MaxRetries int
}

type AnalysisConfig struct {
	MaxTextSampleLength int
	MinViableTextLength int
	ClassifyConcurrency int
	CostPerDocument     float64
	TimePerDocument     float64
	AllowedExtensions   []string
	RunTimeoutSec       int
}

type ChatConfig struct {
	HistoryLimit    int
	MaxContextChars int
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
	viper.AddConfigPath("/etc/contractscan")

	viper.SetEnvPrefix("CONTRACTSCAN")
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

	viper.SetDefault("sqlite.path", "./data/contractscan.db")

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.ttlMinutes", 60)

	viper.SetDefault("oracle.endpoint", "https://api.anthropic.com/v1/messages")
	viper.SetDefault("oracle.model", "claude-3-sonnet-20240229")
	viper.SetDefault("oracle.maxTokens", 300)
	viper.SetDefault("oracle.timeoutSec", 60)
	viper.SetDefault("oracle.maxRetries", 3)

	viper.SetDefault("analysis.maxTextSampleLength", 2000)
	viper.SetDefault("analysis.minViableTextLength", 50)
	viper.SetDefault("analysis.classifyConcurrency", 3)
	viper.SetDefault("analysis.costPerDocument", 0.02)
	viper.SetDefault("analysis.timePerDocument", 2.0)
	viper.SetDefault("analysis.allowedExtensions", []string{"pdf", "txt", "html", "htm"})
	viper.SetDefault("analysis.runTimeoutSec", 1800)

	viper.SetDefault("chat.historyLimit", 20)
	viper.SetDefault("chat.maxContextChars", 8000)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
