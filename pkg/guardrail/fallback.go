package guardrail

import (
	"regexp"
	"strings"

	"github.com/nova-hud/nova/pkg/textutil"
)

const (
	minSentenceChars = 30
	maxSentenceChars = 280
	maxSources       = 3
)

var (
	sentenceLimits = map[string]int{"concise": 3, "standard": 5, "detailed": 8}
	urlPattern     = regexp.MustCompile(`https?://[^\s)\]>"']+`)
)

// BuildFallback assembles up to 3, 5 or 8 sentences (concise, standard,
// detailed) from evidence rows, followed by a Sources line. It returns ""
// when the evidence holds no usable sentence.
func BuildFallback(evidence []any, detailLevel string) string {
	limit, ok := sentenceLimits[strings.ToLower(detailLevel)]
	if !ok {
		limit = sentenceLimits["standard"]
	}

	seen := map[string]struct{}{}
	lines := make([]string, 0, limit)

	for _, text := range evidenceTexts(evidence) {
		for _, sentence := range textutil.Sentences(text) {
			if len(lines) == limit {
				break
			}

			if !usableSentence(sentence) {
				continue
			}

			key := strings.ToLower(textutil.CollapseSpace(sentence))
			if _, dup := seen[key]; dup {
				continue
			}

			seen[key] = struct{}{}
			lines = append(lines, "- "+sentence)
		}
	}

	if len(lines) == 0 {
		return ""
	}

	var b strings.Builder

	b.WriteString(strings.Join(lines, "\n"))

	if urls := EvidenceURLs(evidence, maxSources); len(urls) > 0 {
		b.WriteString("\n\nSources: ")
		b.WriteString(strings.Join(urls, ", "))
	}

	return b.String()
}

func usableSentence(sentence string) bool {
	n := len([]rune(sentence))
	if n < minSentenceChars || n > maxSentenceChars {
		return false
	}

	if strings.Contains(sentence, "{{") || urlPattern.MatchString(sentence) {
		return false
	}

	return len(textutil.Words(sentence)) >= 5
}

// evidenceTexts flattens evidence rows into text. A row is a string, or an
// object carrying text/content/summary and optionally a results array whose
// entries contribute pageText, else snippet.
func evidenceTexts(evidence []any) []string {
	var texts []string

	for _, row := range evidence {
		switch v := row.(type) {
		case string:
			texts = append(texts, v)
		case map[string]any:
			for _, key := range []string{"text", "content", "summary"} {
				if s, ok := v[key].(string); ok && strings.TrimSpace(s) != "" {
					texts = append(texts, s)

					break
				}
			}

			if page := resultText(v); page != "" {
				texts = append(texts, page)
			}

			if results, ok := v["results"].([]any); ok {
				texts = append(texts, evidenceTexts(results)...)
			}
		}
	}

	return texts
}

func resultText(row map[string]any) string {
	for _, key := range []string{"pageText", "snippet", "description"} {
		if s, ok := row[key].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}

	return ""
}

// EvidenceURLs returns up to limit unique URLs carried by evidence rows.
func EvidenceURLs(evidence []any, limit int) []string {
	seen := map[string]struct{}{}

	var urls []string

	var walk func(rows []any)

	walk = func(rows []any) {
		for _, row := range rows {
			if len(urls) >= limit {
				return
			}

			v, ok := row.(map[string]any)
			if !ok {
				continue
			}

			for _, key := range []string{"url", "link"} {
				s, ok := v[key].(string)
				if !ok || !urlPattern.MatchString(s) {
					continue
				}

				if _, dup := seen[s]; !dup && len(urls) < limit {
					seen[s] = struct{}{}
					urls = append(urls, s)
				}
			}

			if results, ok := v["results"].([]any); ok {
				walk(results)
			}
		}
	}

	walk(evidence)

	return urls
}
