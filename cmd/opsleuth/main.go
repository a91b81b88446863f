/*
Copyright 2026 Opsleuth Authors
SPDX-License-Identifier: Apache-2.0
*/

// opsleuth is a single-shot CLI: given a natural-language question about a
// cloud service, it routes the request through the workflow (log analysis,
// issue authoring and filing, recommendations, automated remediation) and
// prints the terminal result as JSON.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"cloud.google.com/go/logging/logadmin"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/chainguard-dev/clog"
	"github.com/google/go-github/v84/github"
	"github.com/openai/openai-go"
	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"
	"google.golang.org/genai"

	"github.com/opsleuth/opsleuth/agents/inference"
	"github.com/opsleuth/opsleuth/agents/trace"
	"github.com/opsleuth/opsleuth/handlers"
	"github.com/opsleuth/opsleuth/logquery"
	"github.com/opsleuth/opsleuth/remedy"
	"github.com/opsleuth/opsleuth/router"
	"github.com/opsleuth/opsleuth/tracker"
	"github.com/opsleuth/opsleuth/workflow"
)

type config struct {
	ProjectID string `env:"OPSLEUTH_PROJECT_ID, required"`
	Backend   string `env:"OPSLEUTH_BACKEND, default=gemini"`
	Model     string `env:"OPSLEUTH_MODEL"`
	Identity  string `env:"OPSLEUTH_IDENTITY, default=opsleuth"`

	GitHubToken          string `env:"GITHUB_TOKEN"`
	GitHubAppID          int64  `env:"OPSLEUTH_GITHUB_APP_ID"`
	GitHubInstallationID int64  `env:"OPSLEUTH_GITHUB_INSTALLATION_ID"`
	GitHubAppKeyPath     string `env:"OPSLEUTH_GITHUB_APP_KEY"`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var serviceHint, kindHint, repoHint string

	cmd := &cobra.Command{
		Use:   "opsleuth \"<question>\"",
		Short: "Diagnose and remediate cloud service problems from their logs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return run(cmd.Context(), strings.Join(args, " "), serviceHint, kindHint, repoHint)
		},
	}
	cmd.Flags().StringVar(&serviceHint, "service", "", "service name hint, skips extraction from the question")
	cmd.Flags().StringVar(&kindHint, "kind", "", "service kind hint (cloud_run, cloud_build, cloud_functions, gce, gke, app_engine)")
	cmd.Flags().StringVar(&repoHint, "repo", "", "repository URL hint for issue filing and remediation")

	if err := cmd.ExecuteContext(ctx); err != nil {
		clog.FromContext(ctx).Errorf("%v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, query, serviceHint, kindHint, repoHint string) error {
	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return fmt.Errorf("processing config: %w", err)
	}

	provider, err := buildProvider(ctx, cfg)
	if err != nil {
		return err
	}
	provider = trace.Wrap(provider)

	logClient, err := logadmin.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return fmt.Errorf("creating logging client: %w", err)
	}
	defer logClient.Close()
	store, err := logquery.NewGCPStore(logClient, cfg.ProjectID)
	if err != nil {
		return err
	}
	retriever, err := logquery.NewRetriever(store, cfg.ProjectID)
	if err != nil {
		return err
	}

	gh, tokens, err := buildGitHub(ctx, cfg)
	if err != nil {
		return err
	}
	issues, err := tracker.NewGitHub(gh)
	if err != nil {
		return err
	}
	prs, err := remedy.NewGitHubPR(gh)
	if err != nil {
		return err
	}
	pipeline, err := remedy.NewPipeline(provider, prs,
		remedy.WithTokenSource(tokens),
		remedy.WithIdentity(cfg.Identity))
	if err != nil {
		return err
	}

	o, err := buildOrchestrator(retriever, provider, issues, pipeline)
	if err != nil {
		return err
	}

	query = applyHints(query, serviceHint, kindHint, repoHint)
	res := o.Run(ctx, query)

	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("rendering result: %w", err)
	}
	fmt.Println(string(out))

	return res.Err
}

func buildOrchestrator(retriever *logquery.Retriever, provider inference.Provider, issues tracker.Tracker, pipeline *remedy.Pipeline) (*workflow.Orchestrator, error) {
	rt, err := router.New(provider)
	if err != nil {
		return nil, err
	}
	analysis, err := handlers.NewLogAnalysis(retriever, provider)
	if err != nil {
		return nil, err
	}
	authoring, err := handlers.NewIssueAuthoring(retriever, provider, issues)
	if err != nil {
		return nil, err
	}
	filing, err := handlers.NewIssueFiling(issues)
	if err != nil {
		return nil, err
	}
	recommend, err := handlers.NewRecommendation(retriever, provider)
	if err != nil {
		return nil, err
	}
	remediation, err := handlers.NewRemediation(pipeline)
	if err != nil {
		return nil, err
	}

	return workflow.New(map[workflow.Handler]workflow.StepFunc{
		workflow.HandlerRouter:         rt.Step,
		workflow.HandlerLogAnalysis:    analysis.Step,
		workflow.HandlerIssueAuthoring: authoring.Step,
		workflow.HandlerIssueFiling:    filing.Step,
		workflow.HandlerRecommendation: recommend.Step,
		workflow.HandlerRemediation:    remediation.Step,
		workflow.HandlerClarification:  handlers.NewClarification().Step,
	})
}

// buildProvider selects the inference backend. Each SDK reads its API key
// from its conventional environment variable.
func buildProvider(ctx context.Context, cfg config) (inference.Provider, error) {
	switch cfg.Backend {
	case "gemini":
		client, err := genai.NewClient(ctx, &genai.ClientConfig{})
		if err != nil {
			return nil, fmt.Errorf("creating gemini client: %w", err)
		}
		var opts []inference.GeminiOption
		if cfg.Model != "" {
			opts = append(opts, inference.WithGeminiModel(cfg.Model))
		}
		return inference.NewGemini(client, opts...)

	case "claude":
		var opts []inference.ClaudeOption
		if cfg.Model != "" {
			opts = append(opts, inference.WithClaudeModel(cfg.Model))
		}
		return inference.NewClaude(anthropic.NewClient(), opts...)

	case "openai":
		var opts []inference.OpenAIOption
		if cfg.Model != "" {
			opts = append(opts, inference.WithOpenAIModel(cfg.Model))
		}
		return inference.NewOpenAI(openai.NewClient(), opts...)

	default:
		return nil, fmt.Errorf("unknown backend %q (want gemini, claude, or openai)", cfg.Backend)
	}
}

// buildGitHub prefers App credentials when configured and falls back to a
// personal access token.
func buildGitHub(ctx context.Context, cfg config) (*github.Client, oauth2.TokenSource, error) {
	if cfg.GitHubAppID > 0 {
		client, err := tracker.NewAppClient(cfg.GitHubAppID, cfg.GitHubInstallationID, cfg.GitHubAppKeyPath)
		if err != nil {
			return nil, nil, err
		}
		// Pushes still need a token; GitHub Apps mint installation tokens
		// through the same transport-backed client, but go-git wants a
		// static credential, so a PAT is required alongside for pushes.
		var ts oauth2.TokenSource
		if cfg.GitHubToken != "" {
			ts = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.GitHubToken})
		}
		return client, ts, nil
	}
	if cfg.GitHubToken == "" {
		return nil, nil, fmt.Errorf("no GitHub credentials: set GITHUB_TOKEN or OPSLEUTH_GITHUB_APP_ID")
	}
	client, err := tracker.NewTokenClient(ctx, cfg.GitHubToken)
	if err != nil {
		return nil, nil, err
	}
	return client, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.GitHubToken}), nil
}

// applyHints folds explicit flags into the query text so the router's
// extraction sees them ahead of anything in the prose.
func applyHints(query, service, kind, repo string) string {
	var hints []string
	if service != "" {
		kindPhrase := "cloud run service"
		if kind != "" {
			if k, err := logquery.ParseKind(kind); err == nil {
				kindPhrase = strings.ReplaceAll(string(k), "_", " ")
			}
		}
		hints = append(hints, fmt.Sprintf("%s %s", kindPhrase, service))
	}
	if repo != "" {
		hints = append(hints, repo)
	}
	if len(hints) == 0 {
		return query
	}
	return query + "\n(context: " + strings.Join(hints, ", ") + ")"
}
