package speech

import (
	"strings"

	"github.com/dgnsrekt/readaloud/internal/text"
	"golang.org/x/net/html"
)

// StripSSML returns the text content of an SSML document. Breaks become
// spaces; sub elements are replaced by their alias.
func StripSSML(ssml string) string {
	z := html.NewTokenizer(strings.NewReader(ssml))

	var (
		b    strings.Builder
		skip int // depth inside an aliased sub
	)
	for {
		switch z.Next() {
		case html.ErrorToken:
			return text.Normalize(b.String())

		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}

		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			switch string(name) {
			case "break", "p", "s":
				b.WriteByte(' ')
			case "sub":
				for hasAttr {
					var key, val []byte
					key, val, hasAttr = z.TagAttr()
					if string(key) == "alias" {
						b.Write(val)
						skip++
						break
					}
				}
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "sub":
				if skip > 0 {
					skip--
				}
			case "p", "s":
				b.WriteByte(' ')
			}
		}
	}
}
