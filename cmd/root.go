package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"charm.land/log/v2"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/abe-nagisa/fmscan/mission"
	"github.com/abe-nagisa/fmscan/zipfast"
)

var cfgFile string

// appFs is where mission directories are read and archives are extracted.
var appFs = afero.NewOsFs()

var rootCmd = &cobra.Command{
	Use:   "fmscan",
	Short: "Inspect Thief fan mission archives",
	Long: `fmscan reads fan mission archives for Thief: The Dark Project,
Thief Gold and Thief 2 without unpacking them. It lists and extracts
entries, and tells which game and engine revision a mission needs.

Archives may be local paths or http(s) URLs on servers that accept
range requests.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging(cmd)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "fmscan:", describe(err))
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.fmscan.yaml)")
	pf.String("encoding", "windows-1252", "code page of entry names without the UTF-8 flag")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.Int("workers", 4, "missions classified in parallel")
	pf.Int64("max-buffer", mission.DefaultMaxBuffer, "largest zipped mission held in memory")

	for _, name := range []string{"encoding", "log-level", "workers", "max-buffer"} {
		if err := viper.BindPFlag(name, pf.Lookup(name)); err != nil {
			panic(err)
		}
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := homedir.Dir()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		// Search config in home directory with name ".fmscan" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigName(".fmscan")
	}

	viper.SetEnvPrefix("fmscan")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		slog.Debug("Using config file", "file", viper.ConfigFileUsed())
	}
}

// setupLogging routes slog through a leveled stderr logger.
func setupLogging(cmd *cobra.Command) error {
	level, err := log.ParseLevel(viper.GetString("log-level"))
	if err != nil {
		return errors.Wrap(err, "log-level")
	}
	logger := log.NewWithOptions(cmd.ErrOrStderr(), log.Options{
		Level:  level,
		Prefix: "fmscan",
	})
	slog.SetDefault(slog.New(logger))
	return nil
}

// describe prefixes an error with the kind of failure: a format the reader
// does not handle, or damaged input.
func describe(err error) string {
	switch {
	case errors.Is(err, zipfast.ErrUnsupportedCompression),
		errors.Is(err, zipfast.ErrSplitArchiveUnsupported):
		return "not supported: " + err.Error()
	case errors.Is(err, zipfast.ErrNotAnArchive),
		errors.Is(err, zipfast.ErrCorruptEOCD),
		errors.Is(err, zipfast.ErrCorruptCentralDirectory),
		errors.Is(err, zipfast.ErrCorruptLocalHeader),
		errors.Is(err, mission.ErrTruncatedOrCorruptMission):
		return "corrupt: " + err.Error()
	}
	return err.Error()
}
