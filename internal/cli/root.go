package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lazypower/habitcity/internal/config"
	"github.com/lazypower/habitcity/internal/engine"
	"github.com/lazypower/habitcity/internal/store"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "habitcity",
	Short: "Adaptive habit coaching behind a city builder",
	Long:  "HabitCity turns habit completions into a growing city and picks a motivational action for each user through a policy model behind safety rules.",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default $HABITCITY_CONFIG or ~/.habitcity/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(cityCmd)
	rootCmd.AddCommand(decayCmd)
	rootCmd.AddCommand(decideCmd)
	rootCmd.AddCommand(completeCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(tokenCmd)
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// openDB opens the configured database for CLI commands.
func openDB(cfg config.Config) (*store.DB, string, error) {
	dbPath := cfg.Database.Path
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return nil, "", fmt.Errorf("resolve db path: %w", err)
		}
	}
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, "", fmt.Errorf("open database: %w", err)
	}
	return db, dbPath, nil
}

// localEngine is an engine without a policy model, for commands that
// only touch progression.
func localEngine() (*engine.Engine, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	db, _, err := openDB(cfg)
	if err != nil {
		return nil, nil, err
	}
	return engine.New(db, nil, nil), func() { db.Close() }, nil
}
