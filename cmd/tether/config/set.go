package configcmder

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/tether/pkg/cliui"
)

const setLongDesc string = `Set a configuration value.

Sets the given key to the provided value in the config.toml file
stored in the .tether/ directory. Numeric keys (llm.max_tokens,
agent.max_iterations) must be non-negative integers and memory.enabled
must be a boolean.

The API key itself is never stored. llm.api_key_env names the
environment variable it is read from.

Examples:
  tether config set storage.driver postgres
  tether config set storage.postgres_dsn postgres://localhost/tether
  tether config set eventstream.provider kafka`

const setShortDesc string = "Set a configuration value"

func newSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "set <key> <value>",
		Short:             setShortDesc,
		Long:              setLongDesc,
		Args:              cobra.ExactArgs(2),
		ValidArgsFunction: completeKeys,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSet(cmd, cmd.OutOrStdout(), args[0], args[1])
		},
	}
}

func runSet(cmd *cobra.Command, out io.Writer, key, value string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	cfger, err := openConfiger(cmd, out)
	if err != nil {
		return err
	}

	if err := cfger.SetConfigValue(key, value); err != nil {
		return err
	}

	fmt.Fprintf(out, "  %s Set %s = %s\n\n",
		cliui.SuccessMark,
		cliui.KeyStyle.Render(key),
		cliui.ValueStyle.Render(value),
	)
	return nil
}
