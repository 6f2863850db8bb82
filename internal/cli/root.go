package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/heatsheet/internal/model"
)

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "heatsheet",
	Short: "Heatsheet - swim meet results crawler and identity resolver",
	Long: `Heatsheet crawls swim meet result pages event by event, joins each
event's heats and ranking tables into one record per competitor, and
builds per-meet identity dictionaries of swimmers and teams.

It does not decide who a swimmer is. When sources disagree on a gender
or a birth year, the conflict is recorded as an issue for the review
workflow; nothing is guessed and nothing is silently dropped.

Heatsheet records what the tables say, and what they leave unsettled.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Display the version number and build information for Heatsheet.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("heatsheet v0.3.0")
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.heatsheet/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Bind flags to viper
	_ = viper.BindPFlag("output.verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		// Search for config in home directory
		viper.AddConfigPath(home + "/.heatsheet")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// Read in environment variables that match HEATSHEET_*
	viper.SetEnvPrefix("HEATSHEET")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// loadConfig assembles the effective configuration: defaults first, then
// the config file and HEATSHEET_* environment. Flags are applied afterwards
// by each command.
func loadConfig() *model.Config {
	cfg := model.DefaultConfig()

	if v := viper.GetDuration("http.timeout"); v > 0 {
		cfg.HTTP.Timeout = v
	}
	if v := viper.GetString("http.user_agent"); v != "" {
		cfg.HTTP.UserAgent = v
	}
	if v := viper.GetInt64("http.max_body_bytes"); v > 0 {
		cfg.HTTP.MaxBodyBytes = v
	}
	if viper.IsSet("http.insecure_tls") {
		cfg.HTTP.InsecureTLS = viper.GetBool("http.insecure_tls")
	}
	if v := viper.GetFloat64("http.requests_per_second"); v > 0 {
		cfg.HTTP.RequestsPerSecond = v
	}
	if v := viper.GetInt("http.burst"); v > 0 {
		cfg.HTTP.Burst = v
	}
	if v := viper.GetString("http.http_proxy"); v != "" {
		cfg.HTTP.HTTPProxy = v
	}
	if v := viper.GetString("http.https_proxy"); v != "" {
		cfg.HTTP.HTTPSProxy = v
	}
	if v := viper.GetString("http.no_proxy"); v != "" {
		cfg.HTTP.NoProxy = v
	}

	if v := viper.GetDuration("crawl.meet_timeout"); v > 0 {
		cfg.Crawl.MeetTimeout = v
	}
	if v := viper.GetDuration("crawl.poll_timeout"); v > 0 {
		cfg.Crawl.PollTimeout = v
	}
	if v := viper.GetDuration("crawl.poll_interval"); v > 0 {
		cfg.Crawl.PollInterval = v
	}
	if v := viper.GetInt("crawl.workers"); v > 0 {
		cfg.Crawl.Workers = v
	}
	if v := viper.GetString("crawl.results_dir"); v != "" {
		cfg.Crawl.ResultsDir = v
	}
	if v := viper.GetString("crawl.debug_dir"); v != "" {
		cfg.Crawl.DebugDir = v
	}

	if v := viper.GetString("server.addr"); v != "" {
		cfg.Server.Addr = v
	}

	if viper.IsSet("cache.enabled") {
		cfg.Cache.Enabled = viper.GetBool("cache.enabled")
	}
	if v := viper.GetString("cache.dir"); v != "" {
		cfg.Cache.Dir = v
	}
	if v := viper.GetDuration("cache.memory_ttl"); v > 0 {
		cfg.Cache.MemoryTTL = v
	}
	if v := viper.GetDuration("cache.disk_ttl"); v > 0 {
		cfg.Cache.DiskTTL = v
	}

	if v := viper.GetString("llm.provider"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := viper.GetString("llm.model"); v != "" {
		cfg.LLM.Model = v
	}
	if v := viper.GetString("llm.base_url"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := viper.GetInt("llm.timeout"); v > 0 {
		cfg.LLM.Timeout = v
	}
	if v := viper.GetInt("llm.max_tokens"); v > 0 {
		cfg.LLM.MaxTokens = v
	}

	if v := viper.GetStringSlice("notify.brokers"); len(v) > 0 {
		cfg.Notify.Brokers = v
	}
	if v := viper.GetString("notify.topic"); v != "" {
		cfg.Notify.Topic = v
	}

	if v := viper.GetString("output.format"); v != "" {
		cfg.Output.Format = v
	}
	cfg.Output.Verbose = verbose

	return cfg
}

// newLogger builds the process logger. The CLI logs to stderr so document
// output can go to stdout; verbose lifts the level to Debug.
func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
