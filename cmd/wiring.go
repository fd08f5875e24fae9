package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/planbot/internal/aggregate"
	"github.com/planbot/internal/collect"
	"github.com/planbot/internal/config"
	"github.com/planbot/internal/figma"
	"github.com/planbot/internal/generate"
	"github.com/planbot/internal/github"
	"github.com/planbot/internal/jira"
	"github.com/planbot/internal/llm"
	"github.com/planbot/internal/logging"
	"github.com/planbot/internal/quality"
	"github.com/planbot/internal/tokenhealth"
)

// app bundles the wired clients a command needs.
type app struct {
	cfg    *config.Config
	jira   *jira.Client
	github *github.Client
	figma  *figma.Client
}

// loadApp loads config, sets up logging and builds the source clients.
func loadApp(c *cli.Context) (*app, error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logging.Setup(cfg.Log.Level)

	jiraClient, err := jira.NewClient(jira.Config{
		BaseURL: cfg.Jira.BaseURL,
		Email:   cfg.Jira.Email,
		Token:   cfg.Jira.Token,
		Quality: quality.Config{MinChars: cfg.Quality.MinChars, MinWords: cfg.Quality.MinWords},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create jira client: %w", err)
	}

	return &app{
		cfg:    cfg,
		jira:   jiraClient,
		github: github.NewClient(c.Context, cfg.GitHub.Token),
		figma:  figma.NewClient(cfg.Figma.Token),
	}, nil
}

// buildService wires the full generation pipeline.
func (a *app) buildService(ctx context.Context) (*generate.Service, error) {
	gateway, err := llm.New(ctx, llm.Config{
		Provider:    a.cfg.LLM.Provider,
		Model:       a.cfg.LLM.Model,
		APIKey:      a.cfg.LLM.APIKey,
		BaseURL:     a.cfg.LLM.BaseURL,
		Temperature: a.cfg.LLM.Temperature,
		MaxTokens:   a.cfg.LLM.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create llm gateway: %w", err)
	}

	collectors := []collect.Collector{
		&collect.DevActivityCollector{Tracker: a.jira, Enricher: a.github},
		&collect.LinkedCollector{},
		&collect.ParentCollector{Tracker: a.jira, Design: a.figma},
		&collect.DesignCollector{Design: a.figma},
		&collect.RepoDocCollector{Tracker: a.jira, Docs: a.github},
	}

	return &generate.Service{
		Tracker:          a.jira,
		Attachments:      a.jira,
		Collectors:       collectors,
		Gateway:          gateway,
		Aggregate:        aggregate.Config{MultiCategoryThreshold: a.cfg.Limits.MultiCategory},
		CollectorTimeout: time.Duration(a.cfg.Limits.CollectorTimeout) * time.Second,
	}, nil
}

// buildHealthMonitor wires the credential probes.
func (a *app) buildHealthMonitor() *tokenhealth.Monitor {
	probes := []tokenhealth.Probe{
		{Name: "jira", Check: a.jira.CheckAuth},
		{Name: "llm", Check: func(context.Context) error {
			if a.cfg.LLM.Provider != "ollama" && a.cfg.LLM.APIKey == "" {
				return fmt.Errorf("llm api_key not configured")
			}
			return nil
		}},
	}
	if a.github.Enabled() {
		probes = append(probes, tokenhealth.Probe{Name: "github", Optional: true, Check: a.github.CheckAuth})
	}
	if a.figma.Enabled() {
		probes = append(probes, tokenhealth.Probe{Name: "figma", Optional: true, Check: a.figma.CheckToken})
	}
	return tokenhealth.NewMonitor(probes...)
}
