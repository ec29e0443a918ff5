package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readaloud/internal/source"
	"github.com/dustin/go-humanize"
	"github.com/muesli/gitcha"
	"github.com/spf13/cobra"
)

var (
	showAllFiles bool

	listCmd = &cobra.Command{
		Use:     "list [DIR]",
		Short:   "List the documents readaloud can open",
		Long:    paragraph(fmt.Sprintf("\n%s a directory for documents readaloud can read. Files ignored by git are skipped unless --all is set.", keyword("Search"))),
		Example: paragraph("readaloud list\nreadaloud list --all ~/books"),
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = expandPath(args[0])
			}
			dir, err := filepath.Abs(dir)
			if err != nil {
				return err
			}
			log.Debug("listing documents", "dir", dir, "all", showAllFiles)

			// Switch between FindFiles and FindAllFiles to bypass .gitignore rules
			var ch chan gitcha.SearchResult
			if showAllFiles {
				ch, err = gitcha.FindAllFilesExcept(dir, documentPatterns(), nil)
			} else {
				ch, err = gitcha.FindFilesExcept(dir, documentPatterns(), ignorePatterns())
			}
			if err != nil {
				return fmt.Errorf("unable to search %s: %w", dir, err)
			}

			found := 0
			for res := range ch {
				rel, err := filepath.Rel(dir, res.Path)
				if err != nil {
					rel = res.Path
				}
				found++
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", rel, subtle(fmt.Sprintf("%s, %s",
					humanize.Bytes(uint64(max(res.Info.Size(), 0))), //nolint:gosec
					humanize.Time(res.Info.ModTime()),
				)))
			}
			if found == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), subtle("No documents found."))
			}
			return nil
		},
	}
)

func documentPatterns() []string {
	exts := source.Extensions()
	patterns := make([]string, 0, len(exts))
	for _, ext := range exts {
		patterns = append(patterns, "*"+ext)
	}
	return patterns
}

// ignorePatterns skips directories that are large and never hold
// documents.
func ignorePatterns() []string {
	patterns := []string{"node_modules", "vendor", ".git"}
	if home, err := os.UserHomeDir(); err == nil {
		patterns = append(patterns,
			filepath.Join(home, "Library"),
			filepath.Join(home, ".cache"),
			filepath.Join(home, ".local", "share", "Trash"),
		)
	}
	return patterns
}

func init() {
	listCmd.Flags().BoolVarP(&showAllFiles, "all", "a", false, "show files ignored by git")
}
