package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Nomadcxx/jellyrename/internal/catalog"
	"github.com/Nomadcxx/jellyrename/internal/config"
	"github.com/Nomadcxx/jellyrename/internal/logging"
	"github.com/Nomadcxx/jellyrename/internal/ui"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage jellyrename configuration",
		Long: `Commands for managing jellyrename configuration.

The config file is stored at: ~/.config/jellyrename/config.toml

Examples:
  jellyrename config init              # Create default config file
  jellyrename config show              # Display current configuration
  jellyrename config test              # Check the catalog connection
  jellyrename config path              # Show config file path`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigTestCmd())
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

func configTarget() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	return config.ConfigPath()
}

func newConfigInitCmd() *cobra.Command {
	var (
		force  bool
		apiKey string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create default configuration file",
		Long: `Create a new configuration file with default values.

The config file will be created at ~/.config/jellyrename/config.toml with a
random API server token. Set your TMDB API key there or in TMDB_API_KEY.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configTarget()
			if err != nil {
				return err
			}
			if fileExists(path) && !force {
				return fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
			}

			cfg := config.DefaultConfig()
			cfg.Catalog.APIKey = apiKey
			if cfg.Server.Token, err = config.GenerateToken(); err != nil {
				return err
			}

			if err := cfg.SaveTo(path); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			ui.SuccessMsg("Created config file: %s", path)
			fmt.Println("\nNext steps:")
			fmt.Println("  1. Set [catalog] api_key or export TMDB_API_KEY")
			fmt.Println("  2. Run 'jellyrename config test' to verify the catalog connection")
			fmt.Println("  3. Run 'jellyrename preview <dir>' to see what would be renamed")

			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing config file")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "TMDB API key to store")

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Long:  "Print the effective configuration, defaults and environment included, with secrets masked.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			path, _ := configTarget()
			if fileExists(path) {
				fmt.Printf("Config file: %s\n\n", path)
			} else {
				fmt.Printf("Config file: %s (not created, showing defaults)\n\n", path)
			}

			out, err := cfg.Redacted().ToTOML()
			if err != nil {
				return err
			}
			fmt.Print(string(out))
			return nil
		},
	}
}

func newConfigTestCmd() *cobra.Command {
	var query string

	cmd := &cobra.Command{
		Use:   "test",
		Short: "Check the catalog connection",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ui.SuccessMsg("Configuration is valid")

			if catalogFile != "" || cfg.Catalog.Static != "" {
				lookup, err := openLookup(cfg, logging.Nop(), true)
				if err != nil {
					return err
				}
				shows := lookup.SearchShow(cmd.Context(), query)
				ui.SuccessMsg("Static catalog loaded, %s for %q", ui.Count(len(shows), "show", "shows"), query)
				return nil
			}
			if !cfg.HasCredentials() {
				return errNoCatalog
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()

			client := catalog.NewTMDB(cfg.TMDBConfig())
			start := time.Now()
			shows, err := client.SearchTV(ctx, query)
			if err != nil {
				ui.ErrorMsg("TMDB: %v", err)
				return err
			}
			ui.SuccessMsg("TMDB reachable in %s, %s for %q",
				ui.FormatDuration(time.Since(start)), ui.Count(len(shows), "show", "shows"), query)
			return nil
		},
	}

	cmd.Flags().StringVar(&query, "query", "Doctor Who", "search used for the check")
	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configTarget()
			if err != nil {
				return err
			}
			fmt.Println(path)
			return nil
		},
	}
}
