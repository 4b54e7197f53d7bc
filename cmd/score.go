package cmd

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"grant-scout/internal/grantsgov"
	"grant-scout/internal/logger"
	"grant-scout/internal/matching"
)

var scoreCmd = &cobra.Command{
	Use:   "score <grants.json>",
	Short: "Score grants from a file against the configured profile, without touching the api",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		score(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(scoreCmd)

	scoreCmd.Flags().IntP("top", "t", 0, "print only the given number of best matches. Default is all.")
}

// score runs the match scoring on a local grants dump, for tuning a profile
// without hitting the search api.
func score(cmd *cobra.Command, path string) {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	profile := defaultProfile()
	if config != nil && config.Profile != nil {
		profile = config.Profile
	} else {
		logger.Warn("no profile section in config, scoring against a neutral default profile")
	}

	grants, err := readGrantsFile(path)
	if err != nil {
		logger.Fatal("reading grants file", zap.String("path", path), zap.Error(err))
	}

	logger.Info("scoring grants", zap.String("path", path), zap.Int("count", grants.Len()))

	scored := matching.ScoreBatch(grants, profile, time.Now().UTC())

	top, _ := cmd.Flags().GetInt("top")
	if top > 0 && top < len(scored) {
		scored = scored[:top]
	}

	pretty, err := json.MarshalIndent(scored, "", "  ")
	if err != nil {
		logger.Fatal("rendering results", zap.Error(err))
	}

	fmt.Println(string(pretty))
}

func readGrantsFile(path string) (*grantsgov.Grants, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var grants grantsgov.Grants
	if err := json.NewDecoder(file).Decode(&grants); err != nil {
		return nil, fmt.Errorf("decode grants: %w", err)
	}

	return &grants, nil
}
