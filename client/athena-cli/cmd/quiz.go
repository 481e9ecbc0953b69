package cmd

import (
	"net/url"

	"github.com/spf13/cobra"
)

var quizCmd = &cobra.Command{
	Use:   "quiz",
	Short: "Generate and review quizzes",
}

var quizTitle string

var generateQuizCmd = &cobra.Command{
	Use:   "generate [document-id...]",
	Short: "Generate a ten-question quiz from one or more documents",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		var result map[string]interface{}
		req := map[string]interface{}{"documentIds": args, "title": quizTitle}
		if err := c.Post(cmd.Context(), "/quizzes", req, &result); err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), result)
	},
}

var listQuizzesCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored quizzes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return getAndPrint(cmd, "/quizzes")
	},
}

var getQuizCmd = &cobra.Command{
	Use:   "get [quiz-id]",
	Short: "Show a quiz with its questions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getAndPrint(cmd, "/quizzes/"+url.PathEscape(args[0]))
	},
}

var deleteQuizCmd = &cobra.Command{
	Use:   "delete [quiz-id]",
	Short: "Delete a quiz",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return deleteAndReport(cmd, "/quizzes/"+url.PathEscape(args[0]))
	},
}

func init() {
	generateQuizCmd.Flags().StringVar(&quizTitle, "title", "", "quiz title (defaults to the document titles)")

	rootCmd.AddCommand(quizCmd)
	quizCmd.AddCommand(generateQuizCmd, listQuizzesCmd, getQuizCmd, deleteQuizCmd)
}
