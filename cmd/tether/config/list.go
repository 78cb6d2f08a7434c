package configcmder

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/tether/pkg/config"
)

const listLongDesc string = `List all configuration values.

Displays all configuration keys and their values from the
config.toml file stored in the .tether/ directory, with defaults
filled in for unset keys.

Examples:
  tether config list`

const listShortDesc string = "List all configuration values"

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: listShortDesc,
		Long:  listLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd, cmd.OutOrStdout())
		},
	}
}

func runList(cmd *cobra.Command, out io.Writer) error {
	cfger, err := openConfiger(cmd, out)
	if err != nil {
		return err
	}

	keys := config.ValidConfigKeys()

	// Find the longest key name for alignment.
	maxLen := 0
	for _, k := range keys {
		maxLen = max(maxLen, len(k))
	}

	for _, key := range keys {
		value, err := cfger.GetConfigValue(key)
		if err != nil {
			return err
		}

		if value == "" {
			fmt.Fprintf(out, "  %-*s = <not set>\n", maxLen, key)
		} else {
			fmt.Fprintf(out, "  %-*s = %q\n", maxLen, key, value)
		}
	}
	fmt.Fprintln(out)

	return nil
}
