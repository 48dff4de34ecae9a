package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/alekspetrov/linerelay/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage linerelay configuration",
		Long: `Create, view, and validate the linerelay configuration file.

Subcommands:
  init         Write a config file with default values
  show         Show the effective configuration
  validate     Validate the configuration

Configuration File Location:
  Default: ~/.linerelay/config.yaml
  Override with --config flag

Credentials may be left out of the file and supplied through
LINE_CHANNEL_ACCESS_TOKEN, LINE_CHANNEL_SECRET and XAI_API_KEY.`,
	}

	cmd.AddCommand(
		newConfigInitCmd(),
		newConfigShowCmd(),
		newConfigValidateCmd(),
	)

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath()
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
			}

			cfg := config.DefaultConfig()
			cfg.Line.AccessToken = "${LINE_CHANNEL_ACCESS_TOKEN}"
			cfg.Line.ChannelSecret = "${LINE_CHANNEL_SECRET}"
			cfg.Generator.APIKey = "${XAI_API_KEY}"

			if err := config.Save(cfg, path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var outputJSON bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Long: `Display the effective configuration after the environment overlay.

Credentials are masked.

Examples:
  linerelay config show
  linerelay config show --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			maskCredentials(cfg)

			var data []byte
			if outputJSON {
				data, err = json.MarshalIndent(cfg, "", "  ")
				data = append(data, '\n')
			} else {
				data, err = yaml.Marshal(cfg)
			}
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().BoolVar(&outputJSON, "json", false, "Output as JSON")

	return cmd
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Configuration is valid")
			return nil
		},
	}
}

func maskCredentials(cfg *config.Config) {
	if cfg.Line != nil {
		cfg.Line.AccessToken = mask(cfg.Line.AccessToken)
		cfg.Line.ChannelSecret = mask(cfg.Line.ChannelSecret)
	}
	if cfg.Generator != nil {
		cfg.Generator.APIKey = mask(cfg.Generator.APIKey)
	}
	if cfg.Auth != nil {
		cfg.Auth.Token = mask(cfg.Auth.Token)
	}
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "********"
}
