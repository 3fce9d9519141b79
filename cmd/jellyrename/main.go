package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Nomadcxx/jellyrename/internal/ui"
)

var (
	version     = "dev" // Set by build flags: -ldflags="-X main.version=1.0.0"
	cfgFile     string
	verbose     bool
	catalogFile string
	noColor     bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "jellyrename",
		Short: "Rename TV episode files from catalog metadata",
		Long: `jellyrename parses loose episode file names, looks the show and episode
up in TMDB and renames the files from a naming template. Every batch can be
undone, including after the program exits.

Examples:
  jellyrename preview ~/downloads/tv
  jellyrename rename Show.Name.S01E01.mkv Show.Name.S01E02.mkv
  jellyrename rename --mode serial --prefix "Trip-" ~/videos/trip
  jellyrename undo`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				ui.DisableColors()
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/jellyrename/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&catalogFile, "catalog", "", "JSON catalog to use instead of TMDB")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(newPreviewCmd())
	rootCmd.AddCommand(newRenameCmd())
	rootCmd.AddCommand(newUndoCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newParseCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("jellyrename %s\n", version)
		},
	}
}
