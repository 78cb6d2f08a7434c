// Package conversationscmder provides commands for browsing stored
// conversations.
package conversationscmder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/tether/cmd/tether/cmdutil"
	"github.com/papercomputeco/tether/pkg/app"
	"github.com/papercomputeco/tether/pkg/cliui"
	"github.com/papercomputeco/tether/pkg/llm"
	"github.com/papercomputeco/tether/pkg/storage"
	"github.com/papercomputeco/tether/pkg/utils"
)

const conversationsLongDesc string = `Browse stored conversations.

  tether conversations list [--user <id>]    List conversations
  tether conversations show <id>             Print a conversation`

const conversationsShortDesc string = "Browse stored conversations"

// previewWidth bounds a message line in "show".
const previewWidth = 400

type conversationsCommander struct {
	userID  string
	storage cmdutil.StorageFlags
	out     io.Writer
}

func NewConversationsCmd() *cobra.Command {
	cmder := &conversationsCommander{}

	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"conv"},
		Short:   conversationsShortDesc,
		Long:    conversationsLongDesc,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List conversations, most recently updated first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.withStore(cmd, func(ctx context.Context, store storage.ConversationStore) error {
				return cmder.list(ctx, store)
			})
		},
	}
	listCmd.Flags().StringVarP(&cmder.userID, "user", "u", "", "Only list conversations of this user")
	cmdutil.AddStorageFlags(listCmd, &cmder.storage)

	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a conversation and its messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid conversation id %q", args[0])
			}
			return cmder.withStore(cmd, func(ctx context.Context, store storage.ConversationStore) error {
				return cmder.show(ctx, store, id)
			})
		},
	}
	cmdutil.AddStorageFlags(showCmd, &cmder.storage)

	cmd.AddCommand(listCmd, showCmd)
	return cmd
}

// withStore opens the configured store for fn. No API key is needed.
func (c *conversationsCommander) withStore(cmd *cobra.Command, fn func(context.Context, storage.ConversationStore) error) error {
	cfg, err := cmdutil.LoadConfig(cmd, cmdutil.StorageFlagKeys...)
	if err != nil {
		return err
	}

	log := cmdutil.NewLogger(cmd, slog.LevelWarn, false)
	c.out = cmd.OutOrStdout()

	store, err := app.OpenStore(cmd.Context(), cfg.Storage, cmdutil.ConfigDir(cmd), log)
	if err != nil {
		return err
	}
	defer store.Close()

	return fn(cmd.Context(), store)
}

func (c *conversationsCommander) list(ctx context.Context, store storage.ConversationStore) error {
	var (
		convs []*storage.Conversation
		err   error
	)
	if c.userID != "" {
		convs, err = store.ListConversationsByUser(ctx, c.userID)
	} else {
		convs, err = store.ListConversations(ctx)
	}
	if err != nil {
		return fmt.Errorf("listing conversations: %w", err)
	}

	if len(convs) == 0 {
		fmt.Fprintf(c.out, "\n  %s\n\n", cliui.DimStyle.Render("No conversations yet."))
		return nil
	}

	fmt.Fprintln(c.out)
	for _, conv := range convs {
		fmt.Fprintf(c.out, "  %s  %s  %s  %s\n",
			cliui.NameStyle.Render(fmt.Sprintf("#%-4d", conv.ID)),
			cliui.DimStyle.Render(cliui.FormatTime(conv.UpdatedAt)),
			cliui.KeyStyle.Render(conv.UserID),
			cliui.ValueStyle.Render(conv.Title),
		)
	}
	fmt.Fprintln(c.out)
	return nil
}

func (c *conversationsCommander) show(ctx context.Context, store storage.ConversationStore, id int64) error {
	conv, err := store.GetConversation(ctx, id)
	if err != nil {
		if storage.IsNotFound(err) {
			return fmt.Errorf("conversation %d not found", id)
		}
		return err
	}

	msgs, err := store.GetMessages(ctx, id)
	if err != nil {
		return fmt.Errorf("loading messages: %w", err)
	}

	fmt.Fprintf(c.out, "\n  %s %s\n", cliui.NameStyle.Render(fmt.Sprintf("#%d", conv.ID)), cliui.ValueStyle.Render(conv.Title))
	fmt.Fprintf(c.out, "  %s %s  %s %s\n\n",
		cliui.KeyStyle.Render("User:"), cliui.ValueStyle.Render(conv.UserID),
		cliui.KeyStyle.Render("Created:"), cliui.DimStyle.Render(cliui.FormatTime(conv.CreatedAt)),
	)

	for _, msg := range msgs {
		for _, line := range describe(msg.Content) {
			fmt.Fprintf(c.out, "  %s %s\n", cliui.KeyStyle.Render(fmt.Sprintf("%-9s", msg.Role)), line)
		}
	}
	fmt.Fprintln(c.out)
	return nil
}

// describe renders each block of a message as one line.
func describe(content llm.Content) []string {
	lines := make([]string, 0, len(content))
	for _, block := range content {
		switch b := block.(type) {
		case llm.TextBlock:
			lines = append(lines, utils.Truncate(utils.OneLine(b.Text), previewWidth))
		case llm.ToolUseBlock:
			lines = append(lines, cliui.ToolStyle.Render(fmt.Sprintf("→ %s %v", b.Name, b.Input)))
		case llm.ToolResultBlock:
			mark := cliui.SuccessMark
			if b.IsError {
				mark = cliui.FailMark
			}
			lines = append(lines, mark+" "+cliui.DimStyle.Render(utils.Truncate(utils.OneLine(b.Content), previewWidth)))
		case llm.UnknownBlock:
			lines = append(lines, cliui.DimStyle.Render("["+b.Type+"]"))
		}
	}
	return lines
}
