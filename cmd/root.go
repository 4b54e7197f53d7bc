package cmd

import (
	"log"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"grant-scout/internal/grantsgov"
	"grant-scout/internal/matching"
)

const (
	app = "grant-scout"
)

type Config struct {
	Search       *grantsgov.SearchParams `mapstructure:"search"`
	Profile      *matching.Profile       `mapstructure:"profile"`
	MinimumScore int                     `mapstructure:"minimum-score"`
	ExcludeFile  string                  `mapstructure:"exclude-file"`
	UserAgent    string                  `mapstructure:"user-agent"`
	TokenFile    string                  `mapstructure:"token-file"`
	Exclude      *struct {
		Agencies []string
	} `mapstructure:"exclude"`
	History *HistoryConfig `mapstructure:"history"`
	AI      *AIConfig      `mapstructure:"ai"`
}

type HistoryConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	RedisAddr string        `mapstructure:"redis-addr"`
	TTL       time.Duration `mapstructure:"ttl"`
}

type AIConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxRetries   int    `mapstructure:"max-retries"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "grant-scout is a simple cli for searching grants and scoring them against your researcher profile",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("token-file", "GRANT_SCOUT_TOKEN_FILE"); err != nil {
		log.Fatalf("binding GRANT_SCOUT_TOKEN_FILE environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is grant-scout.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// Config needed only for run and score commands. If there is no config, we can skip initialization
	if runCmd.CalledAs() == "" && scoreCmd.CalledAs() == "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
	}

	// We can't proceed if the config file parsed with error.
	if err := viper.ReadInConfig(); err != nil {
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}

// defaultProfile is used when the config carries no profile section. It is
// deliberately neutral so every factor falls back to its documented default.
func defaultProfile() *matching.Profile {
	return &matching.Profile{
		FundingRange:    matching.FundingRange{Min: 0, Max: 1_000_000},
		ExperienceLevel: matching.ExperienceIntermediate,
		DeadlineBuffer:  30,
	}
}
