// Package briefing builds a deterministic morning briefing for missions that
// combine crypto prices with sports, quote or tech sources. No model is
// involved; every line comes from node outputs.
package briefing

import (
	"regexp"

	"github.com/nova-hud/nova/pkg/models"
)

// Category is one recognized briefing section.
type Category string

const (
	CategoryNBA    Category = "nba"
	CategoryQuote  Category = "quote"
	CategoryCrypto Category = "crypto"
	CategoryTech   Category = "tech"
)

var categoryPatterns = []struct {
	category Category
	pattern  *regexp.Regexp
}{
	{CategoryNBA, regexp.MustCompile(`(?i)\b(nba|basketball|final scores?|box scores?|lakers|celtics|warriors|knicks|playoffs?)\b`)},
	{CategoryQuote, regexp.MustCompile(`(?i)\b(quotes?|quotation|inspiration(al)?|motivation(al)?|wisdom|affirmation)\b`)},
	{CategoryTech, regexp.MustCompile(`(?i)\b(tech|technology|ai|artificial intelligence|startups?|software|gadgets?|silicon valley|semiconductors?)\b`)},
}

// Shape maps each recognized category to the node ids feeding it.
type Shape map[Category][]string

// Has reports whether the category has at least one source node.
func (s Shape) Has(c Category) bool {
	return len(s[c]) > 0
}

// Detect classifies the data nodes of a mission by label and query. Only
// web search, RSS and HTTP nodes are sources; AI, transform and output
// nodes never count, whatever their label. The mission matches when it has
// a coinbase node plus at least one sports, quote or tech source, with at
// least two categories present.
func Detect(mission *models.Mission) (Shape, bool) {
	if mission == nil {
		return nil, false
	}

	shape := Shape{}

	for _, node := range mission.Nodes {
		base := node.Base()

		if base.Type == models.NodeTypeCoinbase {
			shape[CategoryCrypto] = append(shape[CategoryCrypto], base.ID)

			continue
		}

		source, ok := query(node)
		if !ok {
			continue
		}

		subject := base.Label + " " + source

		for _, cp := range categoryPatterns {
			if cp.pattern.MatchString(subject) {
				shape[cp.category] = append(shape[cp.category], base.ID)

				break
			}
		}
	}

	if !shape.Has(CategoryCrypto) {
		return nil, false
	}

	if !shape.Has(CategoryNBA) && !shape.Has(CategoryQuote) && !shape.Has(CategoryTech) {
		return nil, false
	}

	return shape, len(shape) >= 2
}

// query returns what a source node fetches, and false for nodes that do not
// fetch anything.
func query(node models.Node) (string, bool) {
	switch n := node.(type) {
	case *models.WebSearchNode:
		return n.Query, true
	case *models.RSSFeedNode:
		return n.URL, true
	case *models.HTTPRequestNode:
		return n.URL, true
	default:
		return "", false
	}
}
