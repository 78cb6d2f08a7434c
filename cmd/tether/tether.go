// Package tethercmder
package tethercmder

import (
	"github.com/spf13/cobra"

	chatcmder "github.com/papercomputeco/tether/cmd/tether/chat"
	"github.com/papercomputeco/tether/cmd/tether/cmdutil"
	configcmder "github.com/papercomputeco/tether/cmd/tether/config"
	conversationscmder "github.com/papercomputeco/tether/cmd/tether/conversations"
	memoriescmder "github.com/papercomputeco/tether/cmd/tether/memories"
	servecmder "github.com/papercomputeco/tether/cmd/tether/serve"
	versioncmder "github.com/papercomputeco/tether/cmd/version"
)

const tetherLongDesc string = `Tether is a tool-using agent that remembers its users.

Every conversation is stored, and short facts about each user are kept as
memories and brought back into later conversations.

  tether chat              Talk to the agent in the terminal
  tether serve             Run the HTTP API, MCP endpoint and metrics
  tether conversations     Browse stored conversations
  tether memories          Inspect and clear user memories
  tether config            Manage .tether/config.toml`

const tetherShortDesc string = "Tether - an agent with memory"

func NewTetherCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "tether",
		Short:        tetherShortDesc,
		Long:         tetherLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP(cmdutil.FlagDebug, "d", false, "Enable debug logging")
	cmd.PersistentFlags().String(cmdutil.FlagConfigDir, "", "Override the .tether/ directory")

	// Add subcommands
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(conversationscmder.NewConversationsCmd())
	cmd.AddCommand(memoriescmder.NewMemoriesCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
