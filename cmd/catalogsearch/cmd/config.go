package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/shopfront/catalogsearch/configs"
	"github.com/shopfront/catalogsearch/internal/config"
	"github.com/shopfront/catalogsearch/internal/output"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage the catalogsearch configuration.

Configuration precedence (lowest to highest):
  1. Built-in defaults
  2. User config (~/.config/catalogsearch/config.yaml)
  3. Project config (.catalogsearch.yaml)
  4. --config file
  5. Environment variables (CATALOGSEARCH_*)`,
		Example: `  catalogsearch config init
  catalogsearch config show --json
  catalogsearch config restore`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())
	cmd.AddCommand(newConfigRestoreCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the user configuration file from the template",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := output.New(cmd.OutOrStdout())
			path := config.GetUserConfigPath()

			var backup string
			if config.UserConfigExists() {
				if !force {
					out.Warning("User configuration already exists")
					out.Statusf("", "Location: %s", path)
					out.Status("", "Use --force to replace it (a backup is kept)")
					return nil
				}
				var err error
				if backup, err = config.BackupUserConfig(); err != nil {
					return fmt.Errorf("failed to backup config: %w", err)
				}
			}

			if err := os.MkdirAll(config.GetUserConfigDir(), 0o755); err != nil {
				return fmt.Errorf("failed to create config directory: %w", err)
			}
			if err := os.WriteFile(path, []byte(configs.ConfigTemplate), 0o644); err != nil {
				return fmt.Errorf("failed to write config file: %w", err)
			}

			out.Success("Created user configuration")
			out.Statusf("", "Location: %s", path)
			if backup != "" {
				out.Statusf("", "Backup: %s", backup)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration")

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(cfg)
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the user config file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), config.GetUserConfigPath())
			return err
		},
	}
}

func newConfigRestoreCmd() *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "restore [backup]",
		Short: "Restore the user config from a backup (newest by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.New(cmd.OutOrStdout())
			backups, err := config.ListUserConfigBackups()
			if err != nil {
				return err
			}

			if list {
				if len(backups) == 0 {
					out.Warning("No backups found")
					return nil
				}
				for i, b := range backups {
					out.Item(i+1, b, "")
				}
				return nil
			}

			target := ""
			switch {
			case len(args) == 1:
				target = args[0]
			case len(backups) > 0:
				target = backups[0]
			default:
				return fmt.Errorf("no config backups in %s", config.GetUserConfigDir())
			}

			if err := config.RestoreUserConfig(target); err != nil {
				return err
			}
			out.Successf("Restored user configuration from %s", target)
			return nil
		},
	}

	cmd.Flags().BoolVar(&list, "list", false, "List available backups")

	return cmd
}
