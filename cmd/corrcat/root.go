package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sipcat/corrcore/internal/pkg/config"
	"github.com/sipcat/corrcore/internal/pkg/logger"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "corrcat",
	Short: "corrcat correlates SIP calls and their media streams",
	Long:  `corrcat runs the SIP call/media correlation core against a recorded packet fixture.`,
}

// Execute runs the corrcat CLI, grounded on cmd/root.go's
// rootCmd.Execute()/os.Exit(1) shape.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.corrcat.yaml)")
	rootCmd.PersistentFlags().Int("capture.limit", 0, "maximum retained calls (0 = unbounded)")
	rootCmd.PersistentFlags().Bool("capture.rotate", true, "accepted but not read by the correlator; eviction is driven by --capture.limit alone")
	rootCmd.PersistentFlags().Bool("capture.rtp_capture", true, "admit RTP/RTCP packets into the media correlator")
	rootCmd.PersistentFlags().String("match.mexpr", "", "regular expression a new call's first SIP message must match")
	rootCmd.PersistentFlags().Bool("match.minvert", false, "invert the match expression's result")
	rootCmd.PersistentFlags().Bool("match.invite", false, "admit only calls that start with INVITE")
	rootCmd.PersistentFlags().Bool("match.complete", false, "admit only calls started by a dialog-initiating request")
	rootCmd.PersistentFlags().String(config.SettingSortField, "call-index", "call list sort field")
	rootCmd.PersistentFlags().String(config.SettingSortOrder, "asc", "call list sort order (asc or desc)")

	_ = viper.BindPFlag("capture.limit", rootCmd.PersistentFlags().Lookup("capture.limit"))
	_ = viper.BindPFlag("capture.rotate", rootCmd.PersistentFlags().Lookup("capture.rotate"))
	_ = viper.BindPFlag("capture.rtp_capture", rootCmd.PersistentFlags().Lookup("capture.rtp_capture"))
	_ = viper.BindPFlag("match.mexpr", rootCmd.PersistentFlags().Lookup("match.mexpr"))
	_ = viper.BindPFlag("match.minvert", rootCmd.PersistentFlags().Lookup("match.minvert"))
	_ = viper.BindPFlag("match.invite", rootCmd.PersistentFlags().Lookup("match.invite"))
	_ = viper.BindPFlag("match.complete", rootCmd.PersistentFlags().Lookup("match.complete"))
	_ = viper.BindPFlag(config.SettingSortField, rootCmd.PersistentFlags().Lookup(config.SettingSortField))
	_ = viper.BindPFlag(config.SettingSortOrder, rootCmd.PersistentFlags().Lookup(config.SettingSortOrder))

	rootCmd.AddCommand(runCmd)
}

// initConfig applies an optional YAML file through config.LoadFile, whose
// values take precedence over the bound flags; grounded on cmd/root.go's
// initConfig (home-directory default config path, silent skip when absent).
func initConfig() {
	logger.Initialize()

	if cfgFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return
		}
		cfgFile = filepath.Join(home, ".corrcat.yaml")
	}
	if _, err := config.LoadFile(cfgFile); err != nil {
		fmt.Fprintln(os.Stderr, "corrcat: failed to load config file:", err)
		os.Exit(1)
	}
}
