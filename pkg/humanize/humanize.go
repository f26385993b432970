// Package humanize turns mission output into clean chat text: HTML becomes
// markdown, entities are unescaped and whitespace and bullets are normalized.
package humanize

import (
	"html"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
)

var (
	htmlTag        = regexp.MustCompile(`</?(?:p|br|div|span|b|strong|i|em|ul|ol|li|a|h[1-6]|table|tr|td|th|blockquote|code|pre)\b[^>]*>`)
	scriptRe       = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleRe        = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	bulletRe       = regexp.MustCompile(`(?m)^[ \t]*(?:[•·▪●◦*]|-{1,2})[ \t]+`)
	trailingSpace  = regexp.MustCompile(`(?m)[ \t]+$`)
	excessiveLines = regexp.MustCompile(`\n{3,}`)
	wrappingFence  = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*\\n(.*?)\\n?```$")
)

// Humanizer converts text for delivery.
type Humanizer struct {
	converter *md.Converter
}

func New() *Humanizer {
	converter := md.NewConverter("", true, &md.Options{
		BulletListMarker: "-",
		EscapeMode:       "disabled",
	})
	converter.Use(plugin.GitHubFlavored())

	return &Humanizer{converter: converter}
}

// Text humanizes s. It never fails; a conversion error keeps the input.
func (h *Humanizer) Text(s string) string {
	s = strings.ReplaceAll(strings.TrimSpace(s), "\r\n", "\n")

	if m := wrappingFence.FindStringSubmatch(s); m != nil {
		s = m[1]
	}

	if htmlTag.MatchString(s) {
		cleaned := styleRe.ReplaceAllString(scriptRe.ReplaceAllString(s, ""), "")
		if converted, err := h.converter.ConvertString(cleaned); err == nil {
			s = converted
		}
	}

	s = html.UnescapeString(s)
	s = bulletRe.ReplaceAllString(s, "- ")
	s = trailingSpace.ReplaceAllString(s, "")
	s = excessiveLines.ReplaceAllString(s, "\n\n")

	return strings.TrimSpace(s)
}
