package config

import (
	"time"

	"github.com/Keoroanthony/orders-api/internal/utils"
)

const (
	atSandboxSMSURL = "https://api.sandbox.africastalking.com/version1/messaging"
	atLiveSMSURL    = "https://api.africastalking.com/version1/messaging"
)

type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	AfricaTalking AfricaTalkingConfig
	Email         EmailConfig
	Slack         SlackConfig
	OIDC          OIDCConfig
	Session       SessionConfig
	Redis         RedisConfig
	Log           LogConfig

	// SSM parameter holding a YAML secrets document, see LoadSecrets.
	SecretsParameter string
}

type ServerConfig struct {
	Addr string
}

type DatabaseConfig struct {
	Driver   string // postgres, mysql or sqlite
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	TimeZone string
	// Path is the sqlite file, or the full DSN when DSN is empty.
	Path     string
	DSN      string
	MaxConns int
}

// AfricaTalkingConfig is left with an empty Username or APIKey to run the
// SMS client in simulated mode.
type AfricaTalkingConfig struct {
	Username string
	APIKey   string
	SMSURL   string
	SenderID string
	Timeout  time.Duration
}

func (c AfricaTalkingConfig) Configured() bool {
	return c.Username != "" && c.APIKey != ""
}

type EmailConfig struct {
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSRegion          string
	SenderEmail        string
}

func (c EmailConfig) Enabled() bool {
	return c.SenderEmail != ""
}

type SlackConfig struct {
	BotToken       string
	InfoChannelID  string
	ErrorChannelID string
}

func (c SlackConfig) Enabled() bool {
	return c.BotToken != "" && c.ErrorChannelID != ""
}

type OIDCConfig struct {
	Issuer       string
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

type SessionConfig struct {
	Secret string
	Name   string
}

type RedisConfig struct {
	Addr           string
	IdempotencyTTL time.Duration
}

type LogConfig struct {
	Level  string
	Format string // json or text
}

func Load() Config {
	return Config{
		Server:           ServerConfig{Addr: utils.GetEnv("HTTP_ADDR", ":8080")},
		Database:         LoadDatabaseConfig(),
		AfricaTalking:    LoadAfricaTalkingConfig(),
		Email:            LoadEmailConfig(),
		Slack:            LoadSlackConfig(),
		OIDC:             LoadOIDCConfig(),
		Session:          LoadSessionConfig(),
		Redis:            LoadRedisConfig(),
		Log:              LoadLogConfig(),
		SecretsParameter: utils.GetEnv("SSM_SECRETS_PARAMETER", ""),
	}
}

func LoadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:   utils.GetEnv("DB_DRIVER", "postgres"),
		Host:     utils.GetEnv("POSTGRES_HOST", "localhost"),
		Port:     utils.GetEnv("DB_PORT", "5432"),
		User:     utils.GetEnv("POSTGRES_USER", "test"),
		Password: utils.GetEnv("POSTGRES_PASSWORD", "test"),
		Name:     utils.GetEnv("POSTGRES_DB", "test"),
		TimeZone: utils.GetEnv("DB_TIMEZONE", "Africa/Nairobi"),
		Path:     utils.GetEnv("SQLITE_PATH", "orders.db"),
		DSN:      utils.GetEnv("DATABASE_DSN", ""),
		MaxConns: utils.GetEnvInt("DB_MAX_CONNS", 10),
	}
}

func LoadAfricaTalkingConfig() AfricaTalkingConfig {
	username := utils.GetEnv("AFRICASTALKING_USERNAME", "")

	return AfricaTalkingConfig{
		Username: username,
		APIKey:   utils.GetEnv("AFRICASTALKING_API_KEY", ""),
		SMSURL:   utils.GetEnv("AT_SMS_URL", defaultSMSURL(username)),
		SenderID: utils.GetEnv("AT_SENDER_ID", ""),
		Timeout:  utils.GetEnvDuration("AT_TIMEOUT", 10*time.Second),
	}
}

func LoadEmailConfig() EmailConfig {
	return EmailConfig{
		AWSAccessKeyID:     utils.GetEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey: utils.GetEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSRegion:          utils.GetEnv("AWS_REGION", "us-east-1"),
		SenderEmail:        utils.GetEnv("AWS_SENDER_ADDRESS", ""),
	}
}

func LoadSlackConfig() SlackConfig {
	return SlackConfig{
		BotToken:       utils.GetEnv("SLACK_BOT_TOKEN", ""),
		InfoChannelID:  utils.GetEnv("SLACK_INFO_CHANNEL", ""),
		ErrorChannelID: utils.GetEnv("SLACK_ERROR_CHANNEL", ""),
	}
}

func LoadOIDCConfig() OIDCConfig {
	return OIDCConfig{
		Issuer:       utils.GetEnv("OIDC_ISSUER", "https://accounts.google.com"),
		ClientID:     utils.GetEnv("OIDC_CLIENT_ID", ""),
		ClientSecret: utils.GetEnv("OIDC_CLIENT_SECRET", ""),
		RedirectURL:  utils.GetEnv("OIDC_REDIRECT_URL", ""),
	}
}

func LoadSessionConfig() SessionConfig {
	return SessionConfig{
		Secret: utils.GetEnv("SESSION_SECRET", "change-me"),
		Name:   utils.GetEnv("SESSION_NAME", "gosess"),
	}
}

func LoadRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:           utils.GetEnv("REDIS_ADDR", ""),
		IdempotencyTTL: utils.GetEnvDuration("IDEMPOTENCY_TTL", 24*time.Hour),
	}
}

func LoadLogConfig() LogConfig {
	return LogConfig{
		Level:  utils.GetEnv("LOG_LEVEL", "info"),
		Format: utils.GetEnv("LOG_FORMAT", "json"),
	}
}

func defaultSMSURL(username string) string {
	if username == "" || username == "sandbox" {
		return atSandboxSMSURL
	}
	return atLiveSMSURL
}
