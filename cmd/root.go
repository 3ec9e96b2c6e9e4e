// cmd/root.go - Root command implementation
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tilemani",
	Short: "Build road and building map tiles from OpenStreetMap",
	Long: `tilemani takes a directory of slippy-map tiles for a city and, for every tile,
retrieves the surrounding OpenStreetMap road network and building footprints from
the Overpass API, renders them into a fan of styled images, computes road network
statistics and persists everything next to a versioned batch of tile records.

Tile failures never stop a run: a layer that cannot be retrieved is recorded as
absent and the tile moves on.

Examples:
  # Process every tile of data/paris/StamenTonerLines/14
  tilemani process --city paris

  # Different style and zoom, with records written elsewhere
  tilemani process --city berlin --style Watercolor --zoom 15 --records_dir_root ./records

  # Inspect where a tile lands on the ground
  tilemani locate --x 8301 --y 5639 --z 14

  # Find the tile of a coordinate and reverse-geocode it
  tilemani locate --lat 48.8566 --lng 2.3522 --zoom 14 --address

  # Use configuration file
  tilemani process --config tilemani.yaml --city paris`,
	Version:      "1.0.0",
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./.tilemani.yaml or $HOME/.tilemani.yaml)")
	rootCmd.PersistentFlags().Bool("verbose", false, "verbose output")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")

	viper.BindPFlag("logging.verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(".")
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".tilemani")
	}

	// TILEMANI_RETRIEVAL_OVERPASS_URL overrides retrieval.overpass_url
	viper.SetEnvPrefix("TILEMANI")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("logging.verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	} else if cfgFile != "" {
		fmt.Fprintf(os.Stderr, "Failed to read config file %s: %v\n", cfgFile, err)
		os.Exit(1)
	}
}
