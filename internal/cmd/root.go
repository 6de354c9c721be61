package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Rajchodisetti/stock-insights/internal/config"
	"github.com/Rajchodisetti/stock-insights/internal/observ"
)

const defaultConfigPath = "config/config.yaml"

var (
	cfgFile string
	envFile string

	// loaded by the root pre-run hook
	cfg config.Root

	versionInfo struct {
		Version   string
		Commit    string
		BuildDate string
	}
)

// SetVersionInfo is called by main package to set version information
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
	observ.SetVersion(version)
}

var rootCmd = &cobra.Command{
	Use:   "stockcore",
	Short: "Quota-aware Alpha Vantage client for NSE/BSE market data",
	Long: `stockcore fetches Indian equity data from Alpha Vantage inside the free
tier's call budget (per-minute and per-day caps plus call spacing), and falls
back to a static catalogue when the budget runs out.

Use the subcommands to perform specific operations.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", defaultConfigPath, "config file (YAML)")
	pf.StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	pf.String("log-level", "", "log level override (debug, info, warn, error)")
	pf.Bool("json", false, "print raw JSON instead of tables")

	_ = viper.BindPFlag("log_level", pf.Lookup("log-level"))
	_ = viper.BindPFlag("json", pf.Lookup("json"))
	viper.SetEnvPrefix("STOCKCORE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()
}

// loadConfig layers defaults, the YAML file, .env and the process
// environment, then flag overrides.
func loadConfig(cmd *cobra.Command, _ []string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	c := config.Default()
	if _, err := os.Stat(cfgFile); err == nil {
		if c, err = config.Load(cfgFile); err != nil {
			return err
		}
	} else if cmd.Flags().Changed("config") {
		return fmt.Errorf("config file %s: %w", cfgFile, err)
	}

	if err := c.ApplyEnv(os.LookupEnv); err != nil {
		return err
	}
	if lvl := viper.GetString("log_level"); lvl != "" {
		c.Logging.Level = strings.ToLower(lvl)
	}
	if err := observ.Init(c.Logging.Level, c.Logging.Development); err != nil {
		return err
	}
	cfg = c
	return nil
}

func jsonOutput() bool {
	return viper.GetBool("json")
}
