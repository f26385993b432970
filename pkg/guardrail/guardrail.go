// Package guardrail scores mission output before it reaches a human and
// substitutes an evidence-grounded fallback when the output is low signal.
package guardrail

import (
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/nova-hud/nova/pkg/metrics"
	"github.com/nova-hud/nova/pkg/textutil"
)

const (
	// DefaultThreshold is the score below which output is low signal.
	DefaultThreshold = 46
	// FallbackMargin is how much a fallback must outscore the original.
	FallbackMargin = 8
	// ThresholdEnv overrides DefaultThreshold.
	ThresholdEnv = "NOVA_MISSION_QUALITY_THRESHOLD"

	minChars          = 90
	minWords          = 24
	minDiversity      = 0.48
	lowSignalPenalty  = 14
	lowSignalCap      = 42
	penaltyShort      = 28
	penaltyFewWords   = 24
	penaltyRepetitive = 14
	penaltyTemplate   = 24
	penaltyRawJSON    = 20
	penaltyNoSources  = 12
)

var (
	templateToken = regexp.MustCompile(`\{\{[^{}]*\}\}|<no value>`)
	bulletLine    = regexp.MustCompile(`(?m)^\s*(?:[-*•]|\d+[.)])\s+\S`)
	sourcesLine   = regexp.MustCompile(`(?im)^\s*(?:\*\*)?sources?(?:\*\*)?\s*:`)

	lowSignalPhrases = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bno reliable (?:data|information|sources?)\b`),
		regexp.MustCompile(`(?i)\bunable to (?:find|retrieve|access|locate)\b`),
		regexp.MustCompile(`(?i)\bno (?:relevant |recent )?(?:information|results|data|news) (?:was |were )?(?:found|available)\b`),
		regexp.MustCompile(`(?i)\bi (?:don't|do not|cannot|can't) (?:have )?access\b`),
		regexp.MustCompile(`(?i)\bas an ai\b`),
		regexp.MustCompile(`(?i)\binsufficient (?:data|information|context)\b`),
		regexp.MustCompile(`(?i)\bcould not be (?:determined|verified|confirmed)\b`),
	}
)

// Penalty is one deduction applied to a score.
type Penalty struct {
	Reason string `json:"reason"`
	Points int    `json:"points"`
}

// Report is the result of scoring one text.
type Report struct {
	Score     int       `json:"score"`
	LowSignal bool      `json:"lowSignal"`
	CharCount int       `json:"charCount"`
	WordCount int       `json:"wordCount"`
	Diversity float64   `json:"diversity"`
	Penalties []Penalty `json:"penalties,omitempty"`
}

// Decision is the outcome of Apply.
type Decision struct {
	Text        string  `json:"text"`
	Original    Report  `json:"original"`
	Fallback    *Report `json:"fallback,omitempty"`
	Substituted bool    `json:"substituted"`
}

// Guardrail scores text against a threshold.
type Guardrail struct {
	threshold int
	metrics   *metrics.Metrics
}

// New returns a guardrail. A threshold outside (0,100] falls back to
// DefaultThreshold.
func New(threshold int, m *metrics.Metrics) *Guardrail {
	if threshold <= 0 || threshold > 100 {
		threshold = DefaultThreshold
	}

	return &Guardrail{threshold: threshold, metrics: m}
}

// ThresholdFromEnv reads ThresholdEnv, defaulting to DefaultThreshold.
func ThresholdFromEnv() int {
	value, err := strconv.Atoi(strings.TrimSpace(os.Getenv(ThresholdEnv)))
	if err != nil || value <= 0 || value > 100 {
		return DefaultThreshold
	}

	return value
}

func (g *Guardrail) Threshold() int {
	return g.threshold
}

// Evaluate scores text with the default threshold.
func Evaluate(text string, evidence []any) Report {
	return New(DefaultThreshold, nil).Evaluate(text, evidence)
}

// Evaluate scores text from 100 down. Evidence is only consulted for URLs.
func (g *Guardrail) Evaluate(text string, evidence []any) Report {
	trimmed := strings.TrimSpace(text)
	words := textutil.Words(trimmed)

	report := Report{
		CharCount: len([]rune(trimmed)),
		WordCount: len(words),
		Diversity: diversity(words),
	}

	deduct := func(reason string, points int) {
		report.Penalties = append(report.Penalties, Penalty{Reason: reason, Points: points})
	}

	if report.CharCount < minChars {
		deduct("too short", penaltyShort)
	}

	if report.WordCount < minWords {
		deduct("too few words", penaltyFewWords)
	}

	if report.Diversity < minDiversity {
		deduct("repetitive wording", penaltyRepetitive)
	}

	if templateToken.MatchString(trimmed) {
		deduct("unresolved template token", penaltyTemplate)
	}

	phrasePoints := 0

	for _, phrase := range lowSignalPhrases {
		if phrase.MatchString(trimmed) {
			phrasePoints += lowSignalPenalty
		}
	}

	if phrasePoints > 0 {
		deduct("low-signal phrasing", min(phrasePoints, lowSignalCap))
	}

	if rawJSON(trimmed) {
		deduct("raw JSON output", penaltyRawJSON)
	}

	if len(EvidenceURLs(evidence, 1)) > 0 && !sourcesLine.MatchString(trimmed) {
		deduct("missing sources", penaltyNoSources)
	}

	score := 100
	for _, p := range report.Penalties {
		score -= p.Points
	}

	report.Score = max(0, min(100, score))
	report.LowSignal = report.Score < g.threshold

	return report
}

// Apply returns the text to dispatch. A low-signal text is replaced by the
// evidence fallback only when the fallback outscores it by FallbackMargin.
func (g *Guardrail) Apply(text string, evidence []any, detailLevel string) Decision {
	decision := Decision{Text: text, Original: g.Evaluate(text, evidence)}

	if decision.Original.LowSignal {
		if fallback := BuildFallback(evidence, detailLevel); fallback != "" {
			report := g.Evaluate(fallback, evidence)
			decision.Fallback = &report

			if Substitutes(decision.Original.Score, report.Score) {
				decision.Text = fallback
				decision.Substituted = true
			}
		}
	}

	g.metrics.ObserveGuardrail(decision.Original.Score, decision.Substituted)

	return decision
}

// Substitutes reports whether a fallback score clears the hysteresis margin.
func Substitutes(originalScore, fallbackScore int) bool {
	return fallbackScore >= originalScore+FallbackMargin
}

func diversity(words []string) float64 {
	if len(words) == 0 {
		return 0
	}

	unique := make(map[string]struct{}, len(words))
	for _, w := range words {
		unique[strings.ToLower(strings.Trim(w, ".,;:!?\"'()[]"))] = struct{}{}
	}

	return float64(len(unique)) / float64(len(words))
}

func rawJSON(text string) bool {
	if text == "" {
		return false
	}

	shaped := (strings.HasPrefix(text, "{") && strings.HasSuffix(text, "}")) ||
		(strings.HasPrefix(text, "[") && strings.HasSuffix(text, "]"))

	return shaped && !bulletLine.MatchString(text)
}
