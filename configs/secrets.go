package config

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"gopkg.in/yaml.v3"
)

// Secrets is the YAML document stored in the SSM parameter named by
// SSM_SECRETS_PARAMETER.
type Secrets struct {
	AfricasTalkingUsername string `yaml:"africastalking_username"`
	AfricasTalkingAPIKey   string `yaml:"africastalking_api_key"`
	OIDCClientID           string `yaml:"oidc_client_id"`
	OIDCClientSecret       string `yaml:"oidc_client_secret"`
	SessionSecret          string `yaml:"session_secret"`
	SlackBotToken          string `yaml:"slack_bot_token"`
	DatabasePassword       string `yaml:"database_password"`
}

type parameterGetter interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// LoadSecrets overlays secrets from SSM onto cfg. Values already present in the
// environment win. It is a no-op when no parameter is configured.
func LoadSecrets(ctx context.Context, cfg *Config) error {
	if cfg.SecretsParameter == "" {
		return nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Email.AWSRegion))
	if err != nil {
		return fmt.Errorf("load aws config: %w", err)
	}

	return loadSecretsFrom(ctx, ssm.NewFromConfig(awsCfg), cfg)
}

func loadSecretsFrom(ctx context.Context, client parameterGetter, cfg *Config) error {
	out, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(cfg.SecretsParameter),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("get parameter %s: %w", cfg.SecretsParameter, err)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return fmt.Errorf("parameter %s has no value", cfg.SecretsParameter)
	}

	secrets, err := ParseSecrets([]byte(*out.Parameter.Value))
	if err != nil {
		return err
	}

	secrets.Apply(cfg)
	return nil
}

func ParseSecrets(doc []byte) (Secrets, error) {
	var s Secrets
	if err := yaml.Unmarshal(doc, &s); err != nil {
		return Secrets{}, fmt.Errorf("unmarshal secrets yaml: %w", err)
	}
	return s, nil
}

// Apply fills only the fields that are still empty in cfg.
func (s Secrets) Apply(cfg *Config) {
	fill(&cfg.AfricaTalking.Username, s.AfricasTalkingUsername)
	fill(&cfg.AfricaTalking.APIKey, s.AfricasTalkingAPIKey)
	fill(&cfg.OIDC.ClientID, s.OIDCClientID)
	fill(&cfg.OIDC.ClientSecret, s.OIDCClientSecret)
	fill(&cfg.Slack.BotToken, s.SlackBotToken)

	if s.SessionSecret != "" && (cfg.Session.Secret == "" || cfg.Session.Secret == "change-me") {
		cfg.Session.Secret = s.SessionSecret
	}
	if s.DatabasePassword != "" && (cfg.Database.Password == "" || cfg.Database.Password == "test") {
		cfg.Database.Password = s.DatabasePassword
	}

	// The messaging URL default depends on the username, which may only be
	// known now.
	if cfg.AfricaTalking.SMSURL == atSandboxSMSURL {
		cfg.AfricaTalking.SMSURL = defaultSMSURL(cfg.AfricaTalking.Username)
	}
}

func fill(dst *string, value string) {
	if *dst == "" && value != "" {
		*dst = value
	}
}
