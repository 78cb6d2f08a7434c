// Package versioncmder
package versioncmder

import (
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/tether/pkg/cliui"
	"github.com/papercomputeco/tether/pkg/utils"
)

type VersionCommander struct {
	short bool
}

func NewVersionCmd() *cobra.Command {
	cmder := &VersionCommander{}

	cmd := &cobra.Command{
		Use:   "version",
		Short: "displays version",
		Long:  "displays the version of this CLI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&cmder.short, "short", false, "Print only the version")

	return cmd
}

func (c *VersionCommander) run(out io.Writer) error {
	if c.short {
		fmt.Fprintln(out, utils.Version)
		return nil
	}

	rows := [][2]string{
		{"Version:", utils.Version},
		{"Sha:", utils.Sha},
		{"Built at:", utils.Buildtime},
		{"Go:", runtime.Version()},
	}
	for _, row := range rows {
		fmt.Fprintf(out, "%s %s\n", cliui.KeyStyle.Render(fmt.Sprintf("%-9s", row[0])), cliui.ValueStyle.Render(row[1]))
	}
	return nil
}
