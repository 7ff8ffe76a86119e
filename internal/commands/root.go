package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/balkashynov/tasktime/internal/config"
	"github.com/balkashynov/tasktime/internal/log"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	cfgFile    string
	cfg        config.Config
	v          = viper.New()
	logCleanup func()
)

var rootCmd = &cobra.Command{
	Use:   "tasktime",
	Short: "Per-task time tracking with a shared session server",
	Long: `tasktime records how long users spend on tasks. The server keeps one
authoritative session per task and user; the client commands start, pause and
stop timers against it and show aggregated totals.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(*cobra.Command, []string) {
		if logCleanup != nil {
			logCleanup()
		}
	},
}

// setup loads configuration and initializes logging before any command runs.
func setup(cmd *cobra.Command, _ []string) error {
	path := cfgFile
	if path == "" {
		path = config.DefaultConfigPath()
	}

	loaded, err := config.Load(v, path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg = loaded

	level := log.ParseLevel(cfg.Log.Level)
	if cfg.Log.File != "" {
		cleanup, err := log.InitFile(cfg.Log.File, level)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		logCleanup = cleanup
	} else {
		log.Init(cmd.ErrOrStderr(), level)
	}

	log.Debug(log.CatConfig, "configuration loaded", "file", v.ConfigFileUsed(), "command", cmd.Name())
	return nil
}

// SetVersion sets the version information
func SetVersion(ver, c, d string) {
	version = ver
	commit = c
	date = d
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ~/.config/tasktime/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("server", "", "tasktime server URL")
	rootCmd.PersistentFlags().String("token", "", "bearer token for the server")

	_ = v.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = v.BindPFlag("client.server_url", rootCmd.PersistentFlags().Lookup("server"))
	_ = v.BindPFlag("client.token", rootCmd.PersistentFlags().Lookup("token"))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(orgCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(timerCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(totalsCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "tasktime %s (commit %s, built %s)\n", version, commit, date)
	},
}
