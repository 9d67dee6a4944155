package main

import (
	"fmt"
	"os"

	"chanarchive/pkg/config"
	"chanarchive/pkg/discord"
	"chanarchive/pkg/ui"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage chanarchive configuration files.

Configuration is loaded from, highest priority first:
  - Command line flags
  - CHANARCHIVE_* environment variables (also read from .env)
  - Configuration file
  - Default values`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with every default",
	Long: `Write the default configuration to .chanarchive.yaml, or to the
path given with --config. An existing file is never overwritten.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = ".chanarchive.yaml"
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration file already exists: %s", path)
	}

	cfg := config.DefaultConfig()
	cfg.Targets = map[string][]string{
		"GUILD_ID": {"CHANNEL_ID"},
	}
	if err := cfg.Save(path); err != nil {
		return err
	}

	ui.PrintSuccess("Configuration file created: " + path)
	fmt.Fprintln(cmd.OutOrStdout(), "\nNext steps:")
	fmt.Fprintln(cmd.OutOrStdout(), "1. Replace the example targets with your guild and channel IDs")
	fmt.Fprintln(cmd.OutOrStdout(), "2. Store a token with 'chanarchive auth login'")
	fmt.Fprintln(cmd.OutOrStdout(), "3. Run 'chanarchive config validate', then 'chanarchive archive'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	ui.PrintHighlight("Current Configuration")
	ui.PrintInfo("Token", discord.MaskToken(cfg.Discord.Token))
	fmt.Fprint(cmd.OutOrStdout(), string(data))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return err
	}
	if len(cfg.Targets) == 0 {
		ui.PrintWarning("No targets configured", "pass channels on the command line")
	}
	for g, channels := range cfg.Targets {
		for _, c := range channels {
			if _, _, err := config.ParseTarget(g + "/" + c); err != nil {
				return err
			}
		}
	}
	ui.PrintSuccess("Configuration is valid")
	return nil
}
