package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/dgnsrekt/readaloud/guided"
	"github.com/dgnsrekt/readaloud/internal/source"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	style     string
	width     uint
	showRoles bool

	outlineCmd = &cobra.Command{
		Use:     "outline FILE",
		Short:   "Print the reading order of a document",
		Long:    paragraph(fmt.Sprintf("\nPrint the nodes of a document in the order they are %s.", keyword("read"))),
		Example: paragraph("readaloud outline book.md\nreadaloud outline --roles --style dark chapter.xhtml"),
		Args:    cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateRenderOptions(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := source.Open(expandPath(args[0]))
			if err != nil {
				return err
			}
			out, err := render(outlineMarkdown(doc, showRoles))
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}
)

// validateStyle checks if the style is a default style, if not, checks that
// the custom style exists.
func validateStyle(style string) error {
	if style != styles.AutoStyle && styles.DefaultStyles[style] == nil {
		style = expandPath(style)
		if _, err := os.Stat(style); errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("specified style does not exist: %s", style)
		} else if err != nil {
			return fmt.Errorf("unable to stat file: %w", err)
		}
	}
	return nil
}

func validateRenderOptions(cmd *cobra.Command) error {
	if err := validateStyle(style); err != nil {
		return err
	}

	isTerminal := term.IsTerminal(int(os.Stdout.Fd()))
	if !isTerminal && !cmd.Flags().Changed("style") {
		style = styles.NoTTYStyle
	}

	// Detect terminal width
	if !cmd.Flags().Changed("width") {
		if isTerminal && width == 0 {
			w, _, err := term.GetSize(int(os.Stdout.Fd()))
			if err == nil {
				width = uint(w) //nolint:gosec
			}
			if width > 120 {
				width = 120
			}
		}
		if width == 0 {
			width = 80
		}
	}
	return nil
}

func glamourStyle(style string) glamour.TermRendererOption {
	if style == styles.AutoStyle {
		return glamour.WithAutoStyle()
	}
	if styles.DefaultStyles[style] != nil {
		return glamour.WithStandardStyle(style)
	}
	return glamour.WithStylesFromJSONFile(expandPath(style))
}

func render(markdown string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithColorProfile(lipgloss.ColorProfile()),
		glamourStyle(style),
		glamour.WithWordWrap(int(width)), //nolint:gosec
	)
	if err != nil {
		return "", fmt.Errorf("unable to create renderer: %w", err)
	}
	out, err := r.Render(markdown)
	if err != nil {
		return "", fmt.Errorf("unable to render outline: %w", err)
	}
	return out, nil
}

// outlineMarkdown writes every node with text in reading order. Headings
// keep their depth, notes and asides become quotes.
func outlineMarkdown(doc *guided.Document, withRoles bool) string {
	var b strings.Builder
	if doc.Title != "" {
		fmt.Fprintf(&b, "# %s\n\n", doc.Title)
	}

	tree := doc.Tree()
	tree.Walk(tree.Root(), func(id guided.NodeID, depth int) bool {
		text, ok := tree.Text(id)
		if !ok || strings.TrimSpace(text.Plain) == "" {
			return true
		}
		label := markdownEscaper.Replace(tree.Label(id))
		roles := tree.Roles(id)
		if withRoles && len(roles) > 0 {
			label += " *(" + roles.String() + ")*"
		}

		switch {
		case roles.Has(guided.RoleHeading):
			fmt.Fprintf(&b, "%s %s\n\n", strings.Repeat("#", min(depth+1, 6)), label)
		case roles.Intersects(guided.NewRoleSet(guided.RoleAside, guided.RoleFootnote, guided.RoleEndnotes, guided.RolePullquote)):
			fmt.Fprintf(&b, "> %s\n\n", label)
		case roles.Has(guided.RoleListItem):
			fmt.Fprintf(&b, "- %s\n\n", label)
		default:
			fmt.Fprintf(&b, "%s\n\n", label)
		}
		return true
	})
	return b.String()
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"*", `\*`,
	"_", `\_`,
	"`", "\\`",
	"#", `\#`,
	"[", `\[`,
	"]", `\]`,
	"<", `\<`,
)

func init() {
	outlineCmd.Flags().StringVarP(&style, "style", "s", styles.AutoStyle, "style name or JSON path")
	outlineCmd.Flags().UintVarP(&width, "width", "w", 0, "word-wrap at width (set to 0 to disable)")
	outlineCmd.Flags().BoolVar(&showRoles, "roles", false, "show the roles of each node")
}
