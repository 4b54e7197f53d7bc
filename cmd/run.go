package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"grant-scout/internal/ai"
	"grant-scout/internal/ai/gemini"
	"grant-scout/internal/filtering"
	"grant-scout/internal/grantsgov"
	"grant-scout/internal/history"
	"grant-scout/internal/logger"
	"grant-scout/internal/matching"
	"grant-scout/internal/secrets"
)

const (
	PromptReportByAgency      = "Report by agencies"
	PromptBriefing            = "Get an AI briefing for a grant"
	PromptGrantsToFile        = "Dump grants to file"
	PromptAppendToExcludeFile = "Append all grants to exclude file"
	PromptExit                = "Exit"
	PromptBack                = "back"

	excludedFromPromptReason = "discarded from prompt"
)

var errExit = errors.New("exit requested")

var prompt = promptui.Select{
	Label: "What next?",
	Items: []string{PromptReportByAgency, PromptBriefing, PromptGrantsToFile, PromptAppendToExcludeFile, PromptExit},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the grant-scout main command",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolP("do-not-exclude-seen", "f", false, "do not exclude grants already seen in previous runs")
	runCmd.Flags().BoolP("report-only", "r", false, "print the report by agencies and exit without prompting")
	runCmd.Flags().StringP("exclude-file", "e", "", "special file with grants to exclude. Default is unset.")

	viper.BindPFlag("exclude-file", runCmd.Flags().Lookup("exclude-file"))
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	logger = logger.With(zap.String("run_id", uuid.NewString()))

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the grant-scout", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	if config == nil {
		logger.Fatal("config is required")
	}

	if config.Search == nil {
		logger.Fatal("search section is required to look for grants")
	}

	profile := config.Profile
	if profile == nil {
		logger.Warn("no profile section in config, scoring against a neutral default profile")
		profile = defaultProfile()
	}

	token, err := resolveToken(config)
	if err != nil {
		logger.Fatal(
			"loading grants api token",
			zap.Error(err),
			zap.String("hint", "set GRANT_SCOUT_TOKEN_FILE environment variable or the 'token-file' key in the configuration file"),
		)
	}

	client := grantsgov.New(ctx, logger, token)

	if config.UserAgent != "" {
		client.UserAgent = config.UserAgent
	}

	logger.Info("starting the search", zap.String("search", config.Search.Text))

	grants, err := getGrants(client, config, logger)
	if err != nil {
		logger.Fatal("getting available grants", zap.Error(err))
	}

	if grants.Len() == 0 {
		logger.Info("exiting", zap.String("reason", "no grants found"))
		return
	}

	store := prepareHistory(ctx, config.History, logger)
	if store != nil {
		defer store.Close()
	}

	filterCfg := &filtering.Config{
		ExcludeFile:  strings.TrimSpace(viper.GetString("exclude-file")),
		Profile:      profile,
		MinimumScore: config.MinimumScore,
	}
	if config.Exclude != nil {
		filterCfg.Agencies = config.Exclude.Agencies
	}

	deps := filtering.Deps{
		Logger:  logger,
		History: store,
		Now:     time.Now().UTC(),
	}

	steps := []filtering.Filter{
		filtering.NewDeadline(),
		filtering.NewHistory(cmd),
		filtering.NewAgencies(),
		filtering.NewExcludeFile(),
		filtering.NewFit(),
	}

	filtered, _, err := filtering.Run(ctx, filterCfg, deps, steps, grants)
	if err != nil {
		logger.Fatal("filtering failed", zap.Error(err))
	}
	grants = filtered

	if grants.Len() == 0 {
		logger.Info("exiting", zap.String("reason", "no grants left after filters"))
		return
	}

	if store != nil {
		ids := make([]string, 0, grants.Len())
		for _, grant := range grants.Items {
			ids = append(ids, grant.ID)
		}
		if err := store.MarkSeen(ctx, ids...); err != nil {
			logger.Warn("recording seen grants failed", zap.Error(err))
		}
	}

	summarizer := prepareSummarizer(ctx, config.AI, logger)

	if cmd.Flag("report-only").Value.String() == "true" {
		reportByAgency(grants, logger)
		return
	}

	for {
		_, action, err := prompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}

		logger.Info("current list of grants", zap.Int("count", grants.Len()))

		if err := handleAction(ctx, action, logger, profile, grants, summarizer); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}
	}
}

func handleAction(ctx context.Context, action string, logger *zap.Logger, profile *matching.Profile, grants *grantsgov.Grants, summarizer ai.Summarizer) error {
	switch action {
	case PromptReportByAgency:
		reportByAgency(grants, logger)
		return nil
	case PromptBriefing:
		return briefing(ctx, logger, profile, grants, summarizer)
	case PromptGrantsToFile:
		filename, err := grants.DumpToTmpFile()
		if err != nil {
			return fmt.Errorf("dump results to file: %w", err)
		}
		logger.Info("dumping result to file", zap.String("filename", filename))
		return nil
	case PromptAppendToExcludeFile:
		return appendToExcludeFile(logger, grants)
	case PromptExit:
		logger.Info("exiting", zap.String("reason", "got exit from prompt"))
		return errExit
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func reportByAgency(grants *grantsgov.Grants, logger *zap.Logger) {
	grants.SortByScore()
	pretty, _ := json.MarshalIndent(grants.ReportByAgency(), "", "  ")
	logger.Info(string(pretty), zap.Int("grants count", grants.Len()))
}

// briefing lets the user pick a single grant and prints an AI-written
// application briefing for it.
func briefing(ctx context.Context, logger *zap.Logger, profile *matching.Profile, grants *grantsgov.Grants, summarizer ai.Summarizer) error {
	if summarizer == nil {
		logger.Info("ai briefing is not available", zap.String("hint", "enable the ai section in the configuration file"))
		return nil
	}

	for {
		items := make([]string, 0, grants.Len()+1)
		for _, grant := range grants.Items {
			label := fmt.Sprintf("%s %s / %s / %s", grant.ID, grant.Title, grant.Agency, grant.FundingLabel())
			if grant.Match != nil {
				label = fmt.Sprintf("%s / score %d", label, grant.Match.Score)
			}
			items = append(items, label)
		}

		grantPrompt := promptui.Select{
			Label: "Choose a grant and press ENTER",
			Items: append(items, PromptBack),
		}

		_, selected, err := grantPrompt.Run()
		if err != nil {
			return err
		}

		if selected == PromptBack {
			return nil
		}

		grantID := strings.Split(selected, " ")[0]
		grant := grants.FindByID(grantID)
		if grant == nil {
			return fmt.Errorf("there is no such grant id %s", grantID)
		}

		summary, err := summarizer.Summarize(ctx, grant, profile)
		if err != nil {
			logger.Warn("briefing failed", zap.String("grant_id", grantID), zap.Error(err))
			continue
		}

		logger.Info(summary.Headline,
			zap.String("grant_id", grantID),
			zap.Strings("tips", summary.Tips),
		)
	}
}

func appendToExcludeFile(logger *zap.Logger, grants *grantsgov.Grants) error {
	excludeFile := strings.TrimSpace(viper.GetString("exclude-file"))
	if excludeFile == "" {
		logger.Info("exclude file is not configured", zap.String("hint", "pass --exclude-file or set the 'exclude-file' key"))
		return nil
	}

	excluded, err := grantsgov.GetExcludedGrantsFromFile(excludeFile)
	if err != nil {
		return err
	}

	excluded.Append(grants.ToExcluded(grantsgov.ExcludeActorUser, excludedFromPromptReason))

	if err = excluded.ToFile(excludeFile); err != nil {
		return err
	}

	logger.Info("appended to exclude file", zap.String("filename", excludeFile))

	grants.Exclude(grantsgov.GrantIDField, excluded.GrantIDs())
	return nil
}

func resolveToken(config *Config) (string, error) {
	if config == nil {
		return "", errors.New("config is required")
	}

	tokenFile := strings.TrimSpace(config.TokenFile)
	if tokenFile == "" {
		tokenFile = strings.TrimSpace(viper.GetString("token-file"))
	}

	if tokenFile == "" {
		return "", errors.New("grants api token file is not configured")
	}

	return secrets.Load(secrets.Source{
		Name: "grants api token",
		File: tokenFile,
	})
}

// getGrants returns a list of grants that match the config.
func getGrants(client *grantsgov.Client, config *Config, logger *zap.Logger) (*grantsgov.Grants, error) {
	results, err := client.Search(config.Search)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	logger.Info("getting grants", zap.Int("count", results.Len()))
	return results, nil
}

func prepareHistory(ctx context.Context, config *HistoryConfig, logger *zap.Logger) *history.Store {
	if config == nil || !config.Enabled {
		return nil
	}

	addr := strings.TrimSpace(config.RedisAddr)
	if addr == "" {
		addr = "localhost:6379"
	}

	store := history.New(addr, config.TTL)
	if err := store.Ping(ctx); err != nil {
		logger.Warn("history store is unreachable, continuing without it",
			zap.String("addr", addr),
			zap.Error(err),
		)
		store.Close()
		return nil
	}

	return store
}

func prepareSummarizer(ctx context.Context, config *AIConfig, logger *zap.Logger) ai.Summarizer {
	if config == nil || !config.Enabled {
		return nil
	}

	summarizer, err := newSummarizer(ctx, config, logger)
	if err != nil {
		logger.Warn("ai briefing is unavailable", zap.Error(err))
		return nil
	}

	return summarizer
}

func newSummarizer(ctx context.Context, cfg *AIConfig, logger *zap.Logger) (ai.Summarizer, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}

	if cfg.Gemini == nil {
		return nil, errors.New("gemini configuration is required when ai is enabled")
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name: "gemini api key",
		File: cfg.Gemini.APIKeyFile,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file)", err)
	}

	genLogger := logger.With(
		zap.String("provider", "gemini"),
		zap.String("model", cfg.Gemini.Model),
		zap.Int("ai_retry_attempts", cfg.Gemini.MaxRetries),
	)

	generator, err := gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model, cfg.Gemini.MaxRetries, genLogger)
	if err != nil {
		return nil, err
	}

	return gemini.NewSummarizer(generator, genLogger, cfg.Gemini.MaxLogLength), nil
}
