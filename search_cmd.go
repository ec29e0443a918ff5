package main

import (
	"fmt"

	"github.com/dgnsrekt/readaloud/internal/source"
	"github.com/spf13/cobra"
)

var (
	searchLimit int

	searchCmd = &cobra.Command{
		Use:     "search FILE QUERY",
		Short:   "Find the nodes of a document matching a query",
		Long:    paragraph(fmt.Sprintf("\n%s search the text of a document. Each match is printed with its position so reading can start there.", keyword("Fuzzy"))),
		Example: paragraph("readaloud search book.md \"white rabbit\"\nreadaloud search -n 3 chapter.xhtml tea"),
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := source.Open(expandPath(args[0]))
			if err != nil {
				return err
			}

			tree := doc.Tree()
			matches := tree.Search(args[1])
			if len(matches) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), subtle("No matches."))
				return nil
			}
			if searchLimit > 0 && len(matches) > searchLimit {
				matches = matches[:searchLimit]
			}
			for _, m := range matches {
				loc := ""
				if text, ok := tree.Text(m.Node); ok && text.Language != "" {
					loc = " [" + text.Language + "]"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s%s\n", keyword(fmt.Sprintf("%5d", m.Node)), m.Text, subtle(loc))
			}
			return nil
		},
	}
)

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum number of matches (0 for all)")
}
