// Package app assembles the relay from configuration. Both entrypoints share it.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/prometheus/client_golang/prometheus"

	"kopiloka-assistant/handler"
	"kopiloka-assistant/internal/config"
	"kopiloka-assistant/internal/credential"
	"kopiloka-assistant/internal/integrations/paramstore"
	"kopiloka-assistant/internal/metrics"
	"kopiloka-assistant/internal/persona"
	"kopiloka-assistant/internal/provider"
	"kopiloka-assistant/internal/repository"
	"kopiloka-assistant/internal/tokens"
	"kopiloka-assistant/internal/usecase"
)

type App struct {
	Handler *handler.Handler
	Metrics *metrics.Collector
}

// AWSLoader loads the AWS SDK configuration. It is only called when the
// configuration needs SSM or DynamoDB.
type AWSLoader func(ctx context.Context) (aws.Config, error)

func DefaultAWSLoader(ctx context.Context) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx)
}

// Build wires the relay described by cfg. registry may be nil.
func Build(ctx context.Context, cfg config.Config, loadAWS AWSLoader, registry *prometheus.Registry, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var awsCfg *aws.Config
	needAWS := func() (aws.Config, error) {
		if awsCfg != nil {
			return *awsCfg, nil
		}
		if loadAWS == nil {
			loadAWS = DefaultAWSLoader
		}
		c, err := loadAWS(ctx)
		if err != nil {
			return aws.Config{}, fmt.Errorf("app: load AWS config: %w", err)
		}
		awsCfg = &c
		return c, nil
	}

	key, err := keySource(cfg, needAWS)
	if err != nil {
		return nil, err
	}

	llm, err := provider.New(cfg, key)
	if err != nil {
		return nil, err
	}

	system, err := persona.SystemPrompt()
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	collector := metrics.NewCollector(registry)
	opts := []usecase.Option{
		usecase.WithRecorder(collector),
		usecase.WithLogger(logger),
	}

	counter, err := tokens.New()
	if err != nil {
		// The estimate is optional; the relay works without it.
		logger.Warn("token counter unavailable", "err", err)
	} else {
		opts = append(opts, usecase.WithTokenCounter(counter.Count))
	}

	if cfg.JournalTable != "" {
		c, err := needAWS()
		if err != nil {
			return nil, err
		}
		journal, err := repository.New(awsdynamodb.NewFromConfig(c), cfg.JournalTable)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		opts = append(opts, usecase.WithJournal(journal))
	}

	chat, err := usecase.NewChatService(llm, usecase.ChatOptions{
		SystemPrompt: system,
		MaxTokens:    cfg.MaxOutputTokens,
		Temperature:  cfg.Temperature,
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	h, err := handler.NewHandler(chat, handler.WithTimeout(cfg.RequestTimeout), handler.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	logger.Info("relay configured",
		"provider", llm.Name(),
		"model", llm.Model(),
		"journal", cfg.JournalTable != "",
		"key_source", keySourceName(cfg),
	)
	return &App{Handler: h, Metrics: collector}, nil
}

// keySource prefers the key from the environment; otherwise the key is read
// from SSM on first use.
func keySource(cfg config.Config, needAWS func() (aws.Config, error)) (credential.Source, error) {
	if cfg.APIKey != "" {
		return credential.Static(cfg.APIKey)
	}
	if cfg.APIKeyParameter == "" {
		return nil, fmt.Errorf("app: %w: set %s or API_KEY_PARAMETER", credential.ErrMissing, cfg.KeyEnv())
	}
	c, err := needAWS()
	if err != nil {
		return nil, err
	}
	store, err := paramstore.New(awsssm.NewFromConfig(c))
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	src, err := credential.FromParamStore(store, cfg.APIKeyParameter)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	return src, nil
}

func keySourceName(cfg config.Config) string {
	if cfg.APIKey != "" {
		return "env"
	}
	return "ssm"
}
