// Package memoriescmder provides commands for inspecting and clearing the
// memories tether keeps about a user.
package memoriescmder

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/tether/cmd/tether/cmdutil"
	"github.com/papercomputeco/tether/pkg/app"
	"github.com/papercomputeco/tether/pkg/cliui"
	"github.com/papercomputeco/tether/pkg/memory"
)

const memoriesLongDesc string = `Inspect and clear user memories.

Memories are short facts extracted from user messages ("My name is Ana",
"I work with Go") and injected into later conversations.

  tether memories list [--user <id>]            List a user's memories
  tether memories clear [--user <id>] [--yes]   Delete a user's memories`

const memoriesShortDesc string = "Inspect and clear user memories"

type memoriesCommander struct {
	userID  string
	yes     bool
	storage cmdutil.StorageFlags

	in  io.Reader
	out io.Writer
}

func NewMemoriesCmd() *cobra.Command {
	cmder := &memoriesCommander{}

	cmd := &cobra.Command{
		Use:     "memories",
		Aliases: []string{"mem"},
		Short:   memoriesShortDesc,
		Long:    memoriesLongDesc,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List a user's memories, most recently updated first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.withManager(cmd, cmder.list)
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every memory of a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.withManager(cmd, cmder.clear)
		},
	}
	clearCmd.Flags().BoolVarP(&cmder.yes, "yes", "y", false, "Do not ask for confirmation")

	for _, sub := range []*cobra.Command{listCmd, clearCmd} {
		sub.Flags().StringVarP(&cmder.userID, "user", "u", "", "User whose memories to use (default: agent.default_user)")
		cmdutil.AddStorageFlags(sub, &cmder.storage)
		cmd.AddCommand(sub)
	}

	return cmd
}

func (c *memoriesCommander) withManager(cmd *cobra.Command, fn func(context.Context, *memory.Manager) error) error {
	cfg, err := cmdutil.LoadConfig(cmd, cmdutil.StorageFlagKeys...)
	if err != nil {
		return err
	}

	log := cmdutil.NewLogger(cmd, slog.LevelWarn, false)
	c.in = cmd.InOrStdin()
	c.out = cmd.OutOrStdout()
	if c.userID == "" {
		c.userID = cfg.Agent.DefaultUser
	}

	store, err := app.OpenStore(cmd.Context(), cfg.Storage, cmdutil.ConfigDir(cmd), log)
	if err != nil {
		return err
	}
	defer store.Close()

	manager, err := memory.NewManager(memory.ManagerConfig{Store: store, Logger: log})
	if err != nil {
		return err
	}

	return fn(cmd.Context(), manager)
}

func (c *memoriesCommander) list(ctx context.Context, manager *memory.Manager) error {
	mems, err := manager.List(ctx, c.userID)
	if err != nil {
		return fmt.Errorf("listing memories: %w", err)
	}

	if len(mems) == 0 {
		fmt.Fprintf(c.out, "\n  %s\n\n", cliui.DimStyle.Render(fmt.Sprintf("No memories for %s.", c.userID)))
		return nil
	}

	fmt.Fprintf(c.out, "\n  %s %s\n\n", cliui.KeyStyle.Render("User:"), cliui.NameStyle.Render(c.userID))
	for _, m := range mems {
		fmt.Fprintf(c.out, "  %s  %s  %s\n",
			cliui.DimStyle.Render(fmt.Sprintf("#%-4d", m.ID)),
			cliui.KeyStyle.Render(fmt.Sprintf("%.2f", m.Confidence)),
			cliui.ValueStyle.Render(m.Content),
		)
	}
	fmt.Fprintln(c.out)
	return nil
}

func (c *memoriesCommander) clear(ctx context.Context, manager *memory.Manager) error {
	if !c.yes && !c.confirm(fmt.Sprintf("Delete every memory of %s? [y/N] ", c.userID)) {
		fmt.Fprintf(c.out, "  %s\n", cliui.DimStyle.Render("Nothing deleted."))
		return nil
	}

	n, err := manager.Clear(ctx, c.userID)
	if err != nil {
		return fmt.Errorf("clearing memories: %w", err)
	}

	fmt.Fprintf(c.out, "  %s Deleted %d memories of %s\n", cliui.SuccessMark, n, cliui.NameStyle.Render(c.userID))
	return nil
}

func (c *memoriesCommander) confirm(prompt string) bool {
	fmt.Fprint(c.out, "  "+prompt)
	line, _ := bufio.NewReader(c.in).ReadString('\n')
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
