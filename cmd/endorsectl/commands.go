package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/unclebandit/endorsenyc-backend/internal/classifier"
	"github.com/unclebandit/endorsenyc-backend/internal/config"
	"github.com/unclebandit/endorsenyc-backend/internal/db"
	"github.com/unclebandit/endorsenyc-backend/internal/logger"
	"github.com/unclebandit/endorsenyc-backend/internal/model"
	"github.com/unclebandit/endorsenyc-backend/internal/repository"
	"github.com/unclebandit/endorsenyc-backend/internal/scraper"
)

// env is loaded once per invocation by the root command.
type env struct {
	cfg *config.Config
	log *zap.Logger
}

func newRootCmd() *cobra.Command {
	e := &env{}
	root := &cobra.Command{
		Use:          "endorsectl",
		Short:        "Operate the endorsement tracker database and pipeline",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			e.cfg = config.Load()
			l, err := logger.New(e.cfg.LogLevel)
			if err != nil {
				return err
			}
			e.log = l
			logger.Warnings(l, e.cfg.Warnings)
			return nil
		},
	}
	root.AddCommand(
		newMigrateCmd(e),
		newSeedCmd(e),
		newDedupeCmd(e),
		newScrapeCmd(e),
		newClassifyCmd(e),
	)
	return root
}

func (e *env) open(ctx context.Context) (*sql.DB, error) {
	conn, err := db.Open(e.cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping DB: %w", err)
	}
	return conn, nil
}

func newMigrateCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			conn, err := e.open(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := db.Migrate(cmd.Context(), conn); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Schema applied")
			return nil
		},
	}
}

func newSeedCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert reference candidates, endorsers and feeds",
		RunE: func(cmd *cobra.Command, _ []string) error {
			conn, err := e.open(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := db.Seed(cmd.Context(), conn); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Database seeding completed successfully!")
			return nil
		},
	}
}

func newDedupeCmd(e *env) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "dedupe",
		Short: "Remove duplicate candidates, endorsers, endorsements and feeds",
		RunE: func(cmd *cobra.Command, _ []string) error {
			conn, err := e.open(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close()

			repo := &repository.MaintenanceRepository{DB: conn}
			if dryRun {
				groups, err := repo.DuplicateGroups(cmd.Context())
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), map[string]any{"duplicate_groups": groups})
			}
			report, err := repo.Dedupe(cmd.Context())
			if err != nil {
				return err
			}
			e.log.Info("🧹 duplicates removed",
				zap.Int64("candidates", report.Candidates),
				zap.Int64("endorsers", report.Endorsers),
				zap.Int64("endorsements", report.Endorsements),
				zap.Int64("feeds", report.Feeds))
			return writeJSON(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "only list duplicate endorsement groups")
	return cmd
}

func newScrapeCmd(e *env) *cobra.Command {
	var mode, id string
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Search the web for endorsements with the configured model",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if e.cfg.OpenAIAPIKey == "" {
				return fmt.Errorf("OPENAI_API_KEY is not set")
			}
			req := scraper.Request{Type: mode}
			if id != "" {
				parsed, err := uuid.Parse(id)
				if err != nil {
					return fmt.Errorf("invalid --id: %w", err)
				}
				req.ID = &parsed
			}

			conn, err := e.open(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close()

			sc := scraper.New(
				scraper.NewOpenAISearcher(e.cfg.OpenAIAPIKey, e.cfg.OpenAIModel, "", e.log),
				&repository.EndorserRepository{DB: conn},
				&repository.CandidateRepository{DB: conn},
				&repository.EndorsementRepository{DB: conn},
				e.cfg.ScraperDelay,
				e.log,
			)
			res, err := sc.Run(cmd.Context(), req)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVar(&mode, "type", scraper.ModeAll, "all, endorser or candidate")
	cmd.Flags().StringVar(&id, "id", "", "endorser or candidate ID")
	return cmd
}

func newClassifyCmd(e *env) *cobra.Command {
	var in classifier.Input
	var sourceType, rulesPath string
	cmd := &cobra.Command{
		Use:   "classify [text]",
		Short: "Score a piece of text with the endorsement classifier",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if rulesPath == "" {
				rulesPath = e.cfg.RulesPath
			}
			rules, err := classifier.LoadRules(rulesPath)
			if err != nil {
				return err
			}
			in.Text = strings.Join(args, " ")
			in.SourceType = model.SourceType(sourceType)
			return writeJSON(cmd.OutOrStdout(), classifier.New(rules).Classify(in))
		},
	}
	cmd.Flags().StringVar(&sourceType, "source-type", string(model.SourceWebsite), "twitter, instagram, press_release, interview, event or website")
	cmd.Flags().StringVar(&in.Author, "author", "", "author of the text")
	cmd.Flags().StringVar(&in.Organization, "organization", "", "organization of the author")
	cmd.Flags().StringVar(&in.SourceURL, "url", "", "source URL")
	cmd.Flags().StringVar(&rulesPath, "rules", "", "classifier rules YAML (defaults to the built-in rules)")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
