package briefing

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

const (
	minScore       = 70
	maxScore       = 180
	maxScoreLines  = 3
	minQuoteChars  = 20
	maxQuoteChars  = 240
	minAuthorChars = 2
	maxAuthorChars = 80
	maxTeamWords   = 3
)

const team = `([A-Za-z][A-Za-z0-9 .'&]{0,40}?)`

var (
	// "A 110-102 B"
	dashScore = regexp.MustCompile(team + `\s+(\d{2,3})\s*[-–]\s*(\d{2,3})\s+([A-Za-z][A-Za-z0-9 .'&]{0,40})`)
	// "A 110, B 102"
	commaScore = regexp.MustCompile(team + `\s+(\d{2,3}),\s*` + team + `\s+(\d{2,3})\b`)
	// "A 110 B 102"
	spaceScore = regexp.MustCompile(team + `\s+(\d{2,3})\s+` + team + `\s+(\d{2,3})\b`)

	qualifiers = regexp.MustCompile(`(?i)\b(final|ot|\dot|overtime|f/ot)\b`)
	digitsOnly = regexp.MustCompile(`^[\d\s.]+$`)

	quotePattern = regexp.MustCompile(`["“]([^"“”\n]+)["”]\s*(?:[-–—~]\s*([^\n"“”()|,;–—]+)|\(([^()\n,;]+)[^()\n]*\))`)
	listicle     = regexp.MustCompile(`(?i)(\b(top|best)\s+\d+\b|^\s*\d+\s+\w+|\bquotes?\s+(of|about|for|to)\b|\b(inspirational|motivational)\s+quotes?\b|\bclick\b|\bsubscribe\b|\bbreaking\b)`)
	authorNoise  = regexp.MustCompile(`(?i)(https?://|www\.|\.com\b|\|)`)
)

// ExtractNbaFinalScores returns up to three final scores rendered as
// "A 110 - 102 B". Team names are the capitalized words next to the scores.
// Scores outside [70,180] and numeric team names are rejected. Lines are
// deduplicated by their rendering.
func ExtractNbaFinalScores(text string) []string {
	var (
		scores []string
		seen   = map[string]struct{}{}
	)

	for _, line := range strings.Split(text, "\n") {
		for _, pattern := range []*regexp.Regexp{dashScore, commaScore, spaceScore} {
			matched := false

			for _, m := range pattern.FindAllStringSubmatch(line, -1) {
				var rendered string

				var ok bool

				if pattern == dashScore {
					rendered, ok = renderScore(m[1], m[2], m[3], m[4], true)
				} else {
					rendered, ok = renderScore(m[1], m[2], m[4], m[3], false)
				}

				if !ok {
					continue
				}

				matched = true

				if _, dup := seen[rendered]; dup {
					continue
				}

				seen[rendered] = struct{}{}
				scores = append(scores, rendered)

				if len(scores) == maxScoreLines {
					return scores
				}
			}

			if matched {
				break
			}
		}
	}

	return scores
}

// renderScore formats one score. Lenient matches accept lowercase team
// names; the dash form is explicit enough for that.
func renderScore(home, homeScore, awayScore, away string, lenient bool) (string, bool) {
	s1, err1 := strconv.Atoi(homeScore)
	s2, err2 := strconv.Atoi(awayScore)

	if err1 != nil || err2 != nil || !validScore(s1) || !validScore(s2) {
		return "", false
	}

	home = lastWords(cleanTeam(home), maxTeamWords, lenient)
	away = firstWords(cleanTeam(away), maxTeamWords, lenient)

	if home == "" || away == "" || digitsOnly.MatchString(home) || digitsOnly.MatchString(away) {
		return "", false
	}

	return fmt.Sprintf("%s %d - %d %s", home, s1, s2, away), true
}

func validScore(score int) bool {
	return score >= minScore && score <= maxScore
}

func cleanTeam(name string) string {
	name = qualifiers.ReplaceAllString(name, " ")

	return strings.Trim(strings.Join(strings.Fields(name), " "), " .:-–'&")
}

// lastWords keeps the trailing run of capitalized words, at most n. When
// lenient, text without capitals yields its last word, capitalized.
func lastWords(s string, n int, lenient bool) string {
	words := strings.Fields(s)
	start := len(words)

	for start > 0 && len(words)-start < n && capitalized(words[start-1]) {
		start--
	}

	if lenient && start == len(words) && start > 0 {
		return capitalize(words[start-1])
	}

	return strings.Join(words[start:], " ")
}

// firstWords keeps the leading run of capitalized words, at most n. When
// lenient, text without capitals yields its first word, capitalized.
func firstWords(s string, n int, lenient bool) string {
	words := strings.Fields(s)
	end := 0

	for end < len(words) && end < n && capitalized(words[end]) {
		end++
	}

	if lenient && end == 0 && len(words) > 0 {
		return capitalize(words[0])
	}

	return strings.Join(words[:end], " ")
}

func capitalized(word string) bool {
	r := []rune(word)[0]

	return unicode.IsUpper(r) || unicode.IsDigit(r)
}

func capitalize(word string) string {
	r := []rune(word)
	r[0] = unicode.ToUpper(r[0])

	return string(r)
}

// Quote is an attributed quotation.
type Quote struct {
	Text   string
	Author string
}

func (q Quote) String() string {
	return fmt.Sprintf("“%s” - %s", q.Text, q.Author)
}

// ExtractQuote finds the first `"..." - Author` or `"..." (Author)` span that
// is not shaped like a headline or listicle.
func ExtractQuote(text string) (Quote, bool) {
	for _, m := range quotePattern.FindAllStringSubmatch(text, -1) {
		body := strings.TrimSpace(m[1])

		author := m[2]
		if author == "" {
			author = m[3]
		}

		author = trimAuthor(author)

		if n := len([]rune(body)); n < minQuoteChars || n > maxQuoteChars {
			continue
		}

		if n := len([]rune(author)); n < minAuthorChars || n > maxAuthorChars {
			continue
		}

		if listicle.MatchString(body) || listicle.MatchString(author) || authorNoise.MatchString(author) {
			continue
		}

		return Quote{Text: body, Author: author}, true
	}

	return Quote{}, false
}

// trimAuthor cuts an attribution down to the name: it ends at a spaced
// dash and is shortened to maxAuthorChars on a word boundary.
func trimAuthor(author string) string {
	if i := strings.Index(author, " - "); i >= 0 {
		author = author[:i]
	}

	author = strings.Join(strings.Fields(author), " ")

	if r := []rune(author); len(r) > maxAuthorChars {
		author = string(r[:maxAuthorChars])
		if i := strings.LastIndexByte(author, ' '); i > 0 {
			author = author[:i]
		}
	}

	return strings.Trim(author, " .,;:")
}
