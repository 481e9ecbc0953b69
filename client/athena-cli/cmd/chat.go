package cmd

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

var (
	chatConversation string
	chatSystem       string
)

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Send a message to the tutor",
	Long:  `Send a message to the tutor. Without --conversation a new conversation is started and its id is printed.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		var resp struct {
			ConversationID    string `json:"conversationId"`
			Response          string `json:"response"`
			IsNewConversation bool   `json:"isNewConversation"`
		}
		req := map[string]string{"message": args[0], "conversationId": chatConversation, "systemPrompt": chatSystem}
		if err := c.Post(cmd.Context(), "/chat", req, &resp); err != nil {
			return err
		}
		if resp.IsNewConversation {
			fmt.Fprintf(cmd.OutOrStdout(), "conversation: %s\n\n", resp.ConversationID)
		}
		fmt.Fprintln(cmd.OutOrStdout(), resp.Response)
		return nil
	},
}

var conversationsCmd = &cobra.Command{
	Use:     "conversations",
	Aliases: []string{"conv"},
	Short:   "Manage tutoring conversations",
}

var listConversationsCmd = &cobra.Command{
	Use:   "list",
	Short: "List conversations, most recently active first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return getAndPrint(cmd, "/conversations")
	},
}

var historyCmd = &cobra.Command{
	Use:   "history [conversation-id]",
	Short: "Print every message of a conversation in order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getAndPrint(cmd, "/conversations/"+url.PathEscape(args[0])+"/messages")
	},
}

var deleteConversationCmd = &cobra.Command{
	Use:   "delete [conversation-id]",
	Short: "Delete a conversation and its messages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return deleteAndReport(cmd, "/conversations/"+url.PathEscape(args[0]))
	},
}

func init() {
	chatCmd.Flags().StringVarP(&chatConversation, "conversation", "c", "", "continue an existing conversation")
	chatCmd.Flags().StringVar(&chatSystem, "system", "", "override the tutor system prompt")

	rootCmd.AddCommand(chatCmd, conversationsCmd)
	conversationsCmd.AddCommand(listConversationsCmd, historyCmd, deleteConversationCmd)
}
