// Package configcmder provides the config command for managing persistent
// tether configuration stored in the .tether/ directory.
package configcmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/tether/cmd/tether/cmdutil"
	"github.com/papercomputeco/tether/pkg/cliui"
	"github.com/papercomputeco/tether/pkg/config"
)

const configLongDesc string = `Manage persistent tether configuration.

Configuration is stored as config.toml in the .tether/ directory and provides
default values for command flags. CLI flags and TETHER_* environment
variables take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  storage.driver, storage.sqlite_path, storage.postgres_dsn,
  llm.provider, llm.base_url, llm.model, llm.max_tokens, llm.api_key_env,
  agent.max_iterations, agent.default_user, agent.system_prompt,
  memory.enabled, api.listen,
  eventstream.provider, eventstream.brokers, eventstream.topic

Use subcommands to get, set, or list configuration values:
  tether config set <key> <value>    Set a configuration value
  tether config get <key>            Get a configuration value
  tether config list                 List all configuration values

Examples:
  tether config set llm.model claude-sonnet-4-20250514
  tether config set agent.max_iterations 5
  tether config get storage.driver
  tether config list`

const configShortDesc string = "Manage persistent tether configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

func validateKey(key string) error {
	if !config.IsValidConfigKey(key) {
		return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
			key, strings.Join(config.ValidConfigKeys(), ", "))
	}
	return nil
}

// openConfiger loads the configer of cmd and prints which file is in use.
func openConfiger(cmd *cobra.Command, out io.Writer) (*config.Configer, error) {
	cfger, err := config.NewConfiger(cmdutil.ConfigDir(cmd))
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if target := cfger.GetTarget(); target != "" {
		fmt.Fprintf(out, "\n  %s %s\n\n",
			cliui.KeyStyle.Render("Config file:"),
			cliui.DimStyle.Render(target),
		)
	} else {
		fmt.Fprintf(out, "\n  %s\n\n", cliui.DimStyle.Render("No config file found. Using defaults."))
	}

	return cfger, nil
}
