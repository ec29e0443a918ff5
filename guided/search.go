package guided

import "github.com/sahilm/fuzzy"

// Match is a node whose text matched a search query.
type Match struct {
	Node  NodeID
	Text  string
	Score int
}

type textSource struct {
	ids   []NodeID
	texts []string
}

func (s textSource) String(i int) string { return s.texts[i] }
func (s textSource) Len() int            { return len(s.texts) }

// Search runs a fuzzy search over the inline text of every node and returns
// the matches, best first.
func (t *Tree) Search(query string) []Match {
	var src textSource
	for id := range t.nodes {
		if label := t.Label(NodeID(id)); label != "" && t.nodes[id].text != nil {
			src.ids = append(src.ids, NodeID(id))
			src.texts = append(src.texts, label)
		}
	}

	results := fuzzy.FindFrom(query, src)
	matches := make([]Match, 0, len(results))
	for _, r := range results {
		matches = append(matches, Match{
			Node:  src.ids[r.Index],
			Text:  r.Str,
			Score: r.Score,
		})
	}
	return matches
}
