// Package chatcmder provides the chat command for talking to the tether agent
// from the terminal.
package chatcmder

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/tether/cmd/tether/cmdutil"
	"github.com/papercomputeco/tether/pkg/agent"
	"github.com/papercomputeco/tether/pkg/cliui"
	"github.com/papercomputeco/tether/pkg/config"
	"github.com/papercomputeco/tether/pkg/dotdir"
	"github.com/papercomputeco/tether/pkg/utils"
)

var (
	userPrompt      = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true).Render("you> ")
	assistantPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render("assistant> ")
)

// maxToolPreview bounds the tool input and result shown inline.
const maxToolPreview = 120

// Turner runs agent turns. *agent.Agent implements it.
type Turner interface {
	Run(ctx context.Context, req agent.TurnRequest) (*agent.TurnResult, error)
	Stream(ctx context.Context, req agent.TurnRequest) iter.Seq2[agent.Event, error]
}

type chatCommander struct {
	userID          string
	conversationID  int64
	newConversation bool
	noStream        bool
	markdown        bool

	model         string
	system        string
	maxIterations uint
	storage       cmdutil.StorageFlags

	configDir string
	logger    *slog.Logger
	session   *dotdir.Manager
	out       io.Writer
}

const chatLongDesc string = `Talk to the tether agent.

Without a message, chat starts an interactive session. With a message, it runs
a single turn, prints the reply and exits.

The agent can call its tools (calculator, get_weather, get_time) and remembers
facts about each user across conversations. The last conversation of every
user is stored in .tether/session.json and resumed by default. Use --new to
start over or --conversation to pick one.

Inside the interactive session:
  /new     start a new conversation
  /exit    quit (Ctrl+D works too)

Ctrl+C cancels the turn in progress.

Examples:
  tether chat
  tether chat --user ana "What's the weather in Madrid?"
  tether chat --new --markdown
  tether chat -c 12 --no-stream`

const chatShortDesc string = "Talk to the tether agent"

var chatFlagKeys = append([]string{
	config.FlagModel,
	config.FlagSystemPrompt,
	config.FlagMaxIterations,
}, cmdutil.StorageFlagKeys...)

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{
		session: dotdir.NewManager(),
	}

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdutil.LoadConfig(cmd, chatFlagKeys...)
			if err != nil {
				return err
			}

			// Routine Info logs would interleave with the conversation.
			cmder.logger = cmdutil.NewLogger(cmd, slog.LevelWarn, false)
			cmder.configDir = cmdutil.ConfigDir(cmd)
			cmder.out = cmd.OutOrStdout()
			if cmder.userID == "" {
				cmder.userID = cfg.Agent.DefaultUser
			}

			a, err := cmdutil.NewApp(cmd.Context(), cmd, cfg, cmder.logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					cmder.logger.Error("closing runtime", "error", err)
				}
			}()

			conversationID, err := cmder.startConversation(cmd.Flags().Changed("conversation"))
			if err != nil {
				return err
			}

			if len(args) > 0 {
				_, err := cmder.turn(cmd.Context(), a.Agent, strings.Join(args, " "), conversationID)
				return err
			}

			return cmder.repl(cmd.Context(), a.Agent, cmd.InOrStdin(), conversationID, cfg.LLM.Model)
		},
	}

	cmd.Flags().StringVarP(&cmder.userID, "user", "u", "", "User to chat as (default: agent.default_user)")
	cmd.Flags().Int64VarP(&cmder.conversationID, "conversation", "c", 0, "Conversation to continue")
	cmd.Flags().BoolVar(&cmder.newConversation, "new", false, "Start a new conversation instead of resuming the last one")
	cmd.Flags().BoolVar(&cmder.noStream, "no-stream", false, "Wait for the full reply instead of streaming it")
	cmd.Flags().BoolVar(&cmder.markdown, "markdown", false, "Render replies as markdown")
	config.AddStringFlag(cmd, config.Flags, config.FlagModel, &cmder.model)
	config.AddStringFlag(cmd, config.Flags, config.FlagSystemPrompt, &cmder.system)
	config.AddUintFlag(cmd, config.Flags, config.FlagMaxIterations, &cmder.maxIterations)
	cmdutil.AddStorageFlags(cmd, &cmder.storage)

	cmd.MarkFlagsMutuallyExclusive("new", "conversation")

	return cmd
}

// startConversation picks the conversation the first turn continues. Zero
// starts a new one.
func (c *chatCommander) startConversation(explicit bool) (int64, error) {
	switch {
	case c.newConversation:
		return 0, nil
	case explicit:
		return c.conversationID, nil
	}

	state, err := c.session.LoadSession(c.configDir)
	if err != nil {
		return 0, fmt.Errorf("loading session state: %w", err)
	}
	return state.LastConversation(c.userID), nil
}

func (c *chatCommander) repl(ctx context.Context, turner Turner, in io.Reader, conversationID int64, model string) error {
	fmt.Fprintln(c.out)
	if conversationID != 0 {
		fmt.Fprintf(c.out, "  %s Resuming conversation %s\n",
			cliui.SuccessMark,
			cliui.NameStyle.Render(fmt.Sprintf("#%d", conversationID)),
		)
	} else {
		fmt.Fprintf(c.out, "  %s New conversation\n", cliui.DimStyle.Render("●"))
	}
	fmt.Fprintf(c.out, "  %s %s\n", cliui.KeyStyle.Render("User:"), cliui.ValueStyle.Render(c.userID))
	fmt.Fprintf(c.out, "  %s %s\n\n", cliui.KeyStyle.Render("Model:"), cliui.NameStyle.Render(model))
	fmt.Fprintf(c.out, "  %s\n\n", cliui.DimStyle.Render("Type your message and press Enter. /new starts over, /exit or Ctrl+D quits."))

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for {
		fmt.Fprint(c.out, userPrompt)
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		switch input {
		case "":
			continue
		case "/exit":
			fmt.Fprintln(c.out)
			return nil
		case "/new":
			conversationID = 0
			if err := c.session.ClearLastConversation(c.userID, c.configDir); err != nil {
				return fmt.Errorf("clearing session state: %w", err)
			}
			fmt.Fprintf(c.out, "  %s New conversation\n\n", cliui.DimStyle.Render("●"))
			continue
		}

		result, err := c.interruptibleTurn(ctx, turner, input, conversationID)
		if result != nil {
			conversationID = result.ConversationID
		}
		if err != nil {
			fmt.Fprintf(c.out, "\n  %s %v\n\n", cliui.FailMark, err)
			continue
		}
		fmt.Fprintln(c.out)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Fprintln(c.out)
	return nil
}

// interruptibleTurn runs a turn that Ctrl+C cancels without leaving the
// session.
func (c *chatCommander) interruptibleTurn(ctx context.Context, turner Turner, message string, conversationID int64) (*agent.TurnResult, error) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	return c.turn(ctx, turner, message, conversationID)
}

// turn runs one turn, prints it and remembers its conversation.
func (c *chatCommander) turn(ctx context.Context, turner Turner, message string, conversationID int64) (*agent.TurnResult, error) {
	req := agent.TurnRequest{
		Message:        message,
		ConversationID: conversationID,
		UserID:         c.userID,
	}

	var (
		result *agent.TurnResult
		err    error
	)
	if c.noStream {
		result, err = turner.Run(ctx, req)
		if result != nil {
			c.printFallback(result.FellBack, result.RequestedConversationID, result.ConversationID)
			if err == nil {
				c.printReply(result.Reply)
			}
		}
	} else {
		result, err = c.stream(ctx, turner, req)
	}

	if result != nil && result.ConversationID != 0 {
		if saveErr := c.session.SaveLastConversation(c.userID, result.ConversationID, c.configDir); saveErr != nil {
			c.logger.Warn("could not save session state", "error", saveErr)
		}
	}
	if err != nil {
		return result, err
	}

	c.printOutcome(result)
	return result, nil
}

// stream prints a streamed turn as it happens. A failed turn still returns
// a result carrying the conversation it used.
func (c *chatCommander) stream(ctx context.Context, turner Turner, req agent.TurnRequest) (*agent.TurnResult, error) {
	var (
		conversationID int64
		text           strings.Builder
		midLine        bool
	)

	for ev, err := range turner.Stream(ctx, req) {
		if err != nil {
			if conversationID == 0 {
				return nil, err
			}
			return &agent.TurnResult{ConversationID: conversationID, UserID: req.UserID}, err
		}

		switch ev.Type {
		case agent.EventConversation:
			conversationID = ev.ConversationID
			c.printFallback(ev.FellBack, ev.RequestedConversationID, ev.ConversationID)
			fmt.Fprint(c.out, assistantPrompt)

		case agent.EventText:
			text.WriteString(ev.Text)
			if !c.markdown {
				fmt.Fprint(c.out, ev.Text)
				midLine = !strings.HasSuffix(ev.Text, "\n")
			}

		case agent.EventToolCall:
			if midLine {
				fmt.Fprintln(c.out)
				midLine = false
			} else if text.Len() == 0 {
				fmt.Fprintln(c.out)
			}
			input, _ := json.Marshal(ev.ToolCall.Input)
			fmt.Fprintf(c.out, "  %s %s\n",
				cliui.ToolStyle.Render("→ "+ev.ToolCall.Name),
				cliui.DimStyle.Render(utils.Truncate(string(input), maxToolPreview)),
			)

		case agent.EventToolResult:
			mark := cliui.SuccessMark
			if ev.ToolResult.IsError {
				mark = cliui.FailMark
			}
			fmt.Fprintf(c.out, "  %s %s\n", mark,
				cliui.DimStyle.Render(utils.Truncate(utils.OneLine(ev.ToolResult.Content), maxToolPreview)))
			text.Reset()

		case agent.EventDone:
			if c.markdown {
				fmt.Fprintln(c.out)
				c.printReply(ev.Result.Reply)
			} else if midLine {
				fmt.Fprintln(c.out)
			}
			return ev.Result, nil
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, errors.New("turn ended without a result")
}

func (c *chatCommander) printReply(reply string) {
	if c.markdown {
		rendered, err := cliui.RenderMarkdown(reply)
		if err != nil {
			c.logger.Debug("markdown rendering failed", "error", err)
		}
		fmt.Fprint(c.out, rendered)
		return
	}
	if c.noStream {
		fmt.Fprint(c.out, assistantPrompt)
	}
	fmt.Fprintln(c.out, reply)
}

func (c *chatCommander) printFallback(fellBack bool, requested, actual int64) {
	if !fellBack {
		return
	}
	fmt.Fprintf(c.out, "  %s Conversation #%d is not available, started #%d\n",
		cliui.WarnMark, requested, actual)
}

func (c *chatCommander) printOutcome(result *agent.TurnResult) {
	switch result.Outcome {
	case agent.OutcomeAborted:
		fmt.Fprintf(c.out, "  %s The model stopped early (%s)\n", cliui.WarnMark, result.StopReason)
	case agent.OutcomeMaxIterations:
		fmt.Fprintf(c.out, "  %s Stopped after %d model calls without a final answer\n", cliui.WarnMark, result.Iterations)
	}
	if result.MemoriesSaved > 0 {
		fmt.Fprintf(c.out, "  %s\n", cliui.DimStyle.Render(fmt.Sprintf("remembered %d new fact(s)", result.MemoriesSaved)))
	}
}
