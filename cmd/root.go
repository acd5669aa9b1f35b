package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"cv-shortlist/config"
	"cv-shortlist/infrastructure"
)

var (
	cfgFile  string
	settings = config.New()
)

var rootCmd = &cobra.Command{
	Use:           "cv-shortlist",
	Short:         "Shortlist candidate CVs against job openings with a language model",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "log at debug level")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "log as json")

	_ = settings.BindPFlag("log_json", rootCmd.PersistentFlags().Lookup("json"))
}

// loadConfig reads the configuration and builds the logger from it.
func loadConfig(cmd *cobra.Command) (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(settings, cfgFile)
	if err != nil {
		return nil, nil, err
	}
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		cfg.LogLevel = logrus.DebugLevel.String()
	}

	log, err := infrastructure.NewLogger(cfg.LogLevel, cfg.LogJSON)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}
