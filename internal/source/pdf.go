package source

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readaloud/guided"
	"github.com/dgnsrekt/readaloud/internal/text"
	"github.com/ledongthuc/pdf"
)

var blankLines = regexp.MustCompile(`\n\s*\n`)

// PDF converts the text layer of a PDF, one section per page.
type PDF struct {
	splitter *text.Splitter
}

// NewPDF returns a PDF parser.
func NewPDF() *PDF {
	return &PDF{splitter: text.NewSplitter()}
}

// Parse implements Parser. Pages without extractable text are skipped.
func (p *PDF) Parse(r io.Reader, name string) (*guided.Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read pdf: %w", err)
	}
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}

	pages := make([]string, reader.NumPage())
	for i := range pages {
		page := reader.Page(i + 1)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			log.Debug("skipping unreadable pdf page", "page", i+1, "err", err)
			continue
		}
		pages[i] = content
	}
	return p.document(name, pages)
}

// document builds the tree from page texts. Each page starts with a page
// break node so that page numbers can be skipped.
func (p *PDF) document(name string, pages []string) (*guided.Document, error) {
	root := &block{}
	for i, content := range pages {
		if strings.TrimSpace(content) == "" {
			continue
		}
		number := strconv.Itoa(i + 1)
		ref := name + "#page=" + number
		page := root.add(&block{roles: []guided.Role{guided.RoleSection}, textRef: ref})
		page.add(&block{roles: []guided.Role{guided.RolePagebreak}, text: "Page " + number, textRef: ref})
		for _, para := range blankLines.Split(content, -1) {
			page.add(paragraph(p.splitter, para, ref, ""))
		}
	}
	return document(name, "", "", "application/pdf", root)
}
