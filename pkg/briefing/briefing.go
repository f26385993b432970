package briefing

import (
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/nova-hud/nova/pkg/execution"
	"github.com/nova-hud/nova/pkg/textutil"
)

// Budgets in characters.
const (
	TotalBudget  = 3000
	NBABudget    = 680
	QuoteBudget  = 380
	CryptoBudget = 260
	TechBudget   = 560

	maxSections     = 4
	sectionSep      = "\n\n"
	techSentences   = 2
	easternTimezone = "America/New_York"
)

var cryptoAssets = []string{"ETH", "SUI"}

const (
	HeaderNBA    = "**NBA Final Scores**"
	HeaderQuote  = "**Quote of the Day**"
	HeaderCrypto = "**Crypto Prices**"
	HeaderTech   = "**Tech Headline**"
)

// Build renders the briefing for the run, or reports false when the mission
// does not have the briefing shape. It never fails: missing data becomes an
// "unavailable" line.
func Build(ec *execution.Context) (string, bool) {
	shape, ok := Detect(ec.Mission)
	if !ok {
		return "", false
	}

	var sections []string

	if shape.Has(CategoryNBA) {
		sections = append(sections, budget(nbaSection(sources(ec, shape[CategoryNBA])), NBABudget))
	}

	if shape.Has(CategoryQuote) {
		sections = append(sections, budget(quoteSection(sources(ec, shape[CategoryQuote])), QuoteBudget))
	}

	sections = append(sections, budget(cryptoSection(ec, shape[CategoryCrypto]), CryptoBudget))

	if shape.Has(CategoryTech) {
		sections = append(sections, budget(techSection(sources(ec, shape[CategoryTech])), TechBudget))
	}

	if len(sections) > maxSections {
		sections = sections[:maxSections]
	}

	return fit(sections, TotalBudget), true
}

// fit joins sections within total, cutting the first section that would
// overflow word-safely and dropping the rest.
func fit(sections []string, total int) string {
	var b strings.Builder

	used := 0

	for i, section := range sections {
		sep := ""
		if i > 0 {
			sep = sectionSep
		}

		size := len([]rune(sep)) + len([]rune(section))
		if used+size > total {
			remaining := total - used - len([]rune(sep))
			if remaining > 0 {
				b.WriteString(sep)
				b.WriteString(textutil.TruncateWords(section, remaining))
			}

			break
		}

		b.WriteString(sep)
		b.WriteString(section)

		used += size
	}

	return b.String()
}

func budget(section string, limit int) string {
	return textutil.TruncateWords(section, limit)
}

// source is what one data node contributed.
type source struct {
	text    string
	results []map[string]any
}

func sources(ec *execution.Context, nodeIDs []string) []source {
	var out []source

	for _, id := range nodeIDs {
		output, ok := ec.NodeOutput(id)
		if !ok || !output.OK {
			continue
		}

		src := source{text: output.Text}

		rows, _ := output.Data["results"].([]any)
		if len(rows) == 0 {
			rows = output.Items
		}

		for _, row := range rows {
			if m, ok := row.(map[string]any); ok {
				src.results = append(src.results, m)
			}
		}

		out = append(out, src)
	}

	return out
}

func field(row map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := row[key].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}

	return ""
}

// corpus is every line of text a set of sources offers, titles first.
func corpus(srcs []source) string {
	var lines []string

	for _, src := range srcs {
		for _, row := range src.results {
			for _, key := range []string{"title", "snippet", "pageText", "description"} {
				if s := field(row, key); s != "" {
					lines = append(lines, s)
				}
			}
		}

		if src.text != "" {
			lines = append(lines, src.text)
		}
	}

	return strings.Join(lines, "\n")
}

func nbaSection(srcs []source) string {
	scores := ExtractNbaFinalScores(corpus(srcs))
	if len(scores) == 0 {
		return HeaderNBA + "\n- NBA scores unavailable right now."
	}

	return HeaderNBA + "\n- " + strings.Join(scores, "\n- ")
}

func quoteSection(srcs []source) string {
	quote, ok := ExtractQuote(corpus(srcs))
	if !ok {
		return HeaderQuote + "\n- Quote unavailable right now."
	}

	return HeaderQuote + "\n" + quote.String()
}

func cryptoSection(ec *execution.Context, nodeIDs []string) string {
	prices := map[string]float64{}

	for _, id := range nodeIDs {
		output, ok := ec.NodeOutput(id)
		if !ok || !output.OK {
			continue
		}

		rows, _ := output.Data["prices"].([]any)
		for _, row := range rows {
			m, ok := row.(map[string]any)
			if !ok {
				continue
			}

			symbol := strings.ToUpper(field(m, "symbol", "asset", "base"))
			if price, ok := number(m["price"]); ok && symbol != "" {
				if _, seen := prices[symbol]; !seen {
					prices[symbol] = price
				}
			}
		}
	}

	lines := []string{HeaderCrypto}

	for _, asset := range cryptoAssets {
		if price, ok := prices[asset]; ok {
			lines = append(lines, "- "+asset+": "+FormatUSD(price))
		} else {
			lines = append(lines, "- "+asset+": unavailable")
		}
	}

	lines = append(lines, "Checked "+checkedAt(ec.Now))

	return strings.Join(lines, "\n")
}

func techSection(srcs []source) string {
	for _, src := range srcs {
		for _, row := range src.results {
			title := field(row, "title")
			if title == "" {
				continue
			}

			section := HeaderTech + "\n- " + title

			if why := textutil.FirstSentences(field(row, "pageText", "snippet", "description"), techSentences); why != "" {
				section += "\nWhy it matters: " + why
			}

			return section
		}
	}

	return HeaderTech + "\n- Tech headline unavailable right now."
}

// FormatUSD renders an amount as US dollars, e.g. "$3,012.45".
func FormatUSD(amount float64) string {
	formatted := message.NewPrinter(language.AmericanEnglish).Sprint(currency.Symbol(currency.USD.Amount(amount)))

	return strings.Replace(formatted, "$ ", "$", 1)
}

func checkedAt(now time.Time) string {
	if now.IsZero() {
		now = time.Now()
	}

	if loc, err := time.LoadLocation(easternTimezone); err == nil {
		now = now.In(loc)
	}

	return now.Format("Jan 2, 3:04 PM MST")
}

func number(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)

		return f, err == nil
	default:
		return 0, false
	}
}
