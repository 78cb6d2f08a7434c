package configcmder

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/tether/pkg/cliui"
)

const getLongDesc string = `Get a configuration value.

Reads the value for the given key from the config.toml file
stored in the .tether/ directory. Unset keys show their default.

Examples:
  tether config get llm.model
  tether config get memory.enabled`

const getShortDesc string = "Get a configuration value"

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "get <key>",
		Short:             getShortDesc,
		Long:              getLongDesc,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeKeys,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(cmd, cmd.OutOrStdout(), args[0])
		},
	}
}

func runGet(cmd *cobra.Command, out io.Writer, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	cfger, err := openConfiger(cmd, out)
	if err != nil {
		return err
	}

	value, err := cfger.GetConfigValue(key)
	if err != nil {
		return err
	}

	if value == "" {
		fmt.Fprintf(out, "  %s  %s\n\n", cliui.KeyStyle.Render(key), cliui.DimStyle.Render("<not set>"))
	} else {
		fmt.Fprintf(out, "  %s  %s\n\n", cliui.KeyStyle.Render(key), cliui.ValueStyle.Render(value))
	}

	return nil
}
