package cmd

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

var docsCmd = &cobra.Command{
	Use:     "docs",
	Aliases: []string{"documents"},
	Short:   "Manage uploaded study documents",
}

var uploadMeta UploadMeta

var uploadCmd = &cobra.Command{
	Use:   "upload [file-path]",
	Short: "Upload a file to be indexed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		meta := uploadMeta
		if meta.Title == "" {
			base := filepath.Base(args[0])
			meta.Title = strings.TrimSuffix(base, filepath.Ext(base))
		}
		var result map[string]interface{}
		if err := c.Upload(cmd.Context(), args[0], meta, &result); err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), result)
	},
}

var listSubject string

var listDocsCmd = &cobra.Command{
	Use:   "list",
	Short: "List documents, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		path := "/documents"
		if listSubject != "" {
			path += "?subject=" + url.QueryEscape(listSubject)
		}
		var docs []map[string]interface{}
		if err := c.Get(cmd.Context(), path, &docs); err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), docs)
	},
}

var getDocCmd = &cobra.Command{
	Use:   "get [document-id]",
	Short: "Show a document and its chunk count",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getAndPrint(cmd, "/documents/"+url.PathEscape(args[0]))
	},
}

var deleteDocCmd = &cobra.Command{
	Use:   "delete [document-id]",
	Short: "Delete a document, its chunks and its vectors",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return deleteAndReport(cmd, "/documents/"+url.PathEscape(args[0]))
	},
}

var (
	searchCategory string
	searchTopK     int
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Find the chunks most similar to a query",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		var result map[string]interface{}
		req := map[string]interface{}{"query": args[0], "category": searchCategory, "topK": searchTopK}
		if err := c.Post(cmd.Context(), "/search", req, &result); err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), result)
	},
}

func getAndPrint(cmd *cobra.Command, path string) error {
	c, err := newClient()
	if err != nil {
		return err
	}
	var out interface{}
	if err := c.Get(cmd.Context(), path, &out); err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), out)
}

func deleteAndReport(cmd *cobra.Command, path string) error {
	c, err := newClient()
	if err != nil {
		return err
	}
	if err := c.Delete(cmd.Context(), path); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "deleted")
	return nil
}

func init() {
	uploadCmd.Flags().StringVar(&uploadMeta.Title, "title", "", "document title (defaults to the file name)")
	uploadCmd.Flags().StringVar(&uploadMeta.Subject, "subject", "", "subject used as the search category")
	uploadCmd.Flags().StringVar(&uploadMeta.Description, "description", "", "optional description")
	_ = uploadCmd.MarkFlagRequired("subject")
	listDocsCmd.Flags().StringVar(&listSubject, "subject", "", "only list documents of this subject")
	searchCmd.Flags().StringVar(&searchCategory, "category", "", "restrict results to one subject")
	searchCmd.Flags().IntVar(&searchTopK, "top-k", 0, "number of results (server default when 0)")

	rootCmd.AddCommand(docsCmd, searchCmd)
	docsCmd.AddCommand(uploadCmd, listDocsCmd, getDocCmd, deleteDocCmd)
}
