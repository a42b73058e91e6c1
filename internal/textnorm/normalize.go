package textnorm

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	citationPatterns = []*regexp.Regexp{
		// law and decree numbers: "lei nº 12.345", "decreto 9.876"
		regexp.MustCompile(`\b(lei|decreto|medida provisoria|resolucao|portaria)\s+(n\s*[ºo°]\.?\s*)?\d[\d.]*`),
		// full dates: "de 10 de marco de 2020"
		regexp.MustCompile(`\bde\s+\d{1,2}[ºo°]?\s+de\s+[a-z]+\s+de\s+\d{4}\b`),
		// partial dates: "de 7 de dezembro"
		regexp.MustCompile(`\bde\s+\d{1,2}[ºo°]?\s+de\s+[a-z]+\b`),
		// articles: "art. 5º", "art 10"
		regexp.MustCompile(`\bart[.\s]\s*\d+[ºo°]?`),
		// paragraphs: "§ 2º"
		regexp.MustCompile(`§+\s*\d+[ºo°]?`),
		// incisos with roman numerals: "inciso iv"
		regexp.MustCompile(`\binciso\s+[ivxlcdm]+\b`),
	}
	punctuation = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
	whitespace  = regexp.MustCompile(`\s+`)
)

// Normalizer canonicalizes bill summaries for embedding. The zero value is not
// usable; construct with New or use Default.
type Normalizer struct {
	phrases     *regexp.Regexp
	fingerprint string
}

// New builds a Normalizer removing the given boilerplate phrases. Phrases are
// matched on word boundaries after case folding and accent stripping, in the
// order given.
func New(stopPhrases []string) *Normalizer {
	alternatives := make([]string, 0, len(stopPhrases))
	for _, p := range stopPhrases {
		p = strings.TrimSpace(NormalizeBasic(p))
		if p == "" {
			continue
		}
		alternatives = append(alternatives, regexp.QuoteMeta(p))
	}
	n := &Normalizer{}
	if len(alternatives) > 0 {
		n.phrases = regexp.MustCompile(`\b(?:` + strings.Join(alternatives, "|") + `)\b`)
	}
	sum := sha256.Sum256([]byte(strings.Join(alternatives, "\n")))
	n.fingerprint = hex.EncodeToString(sum[:6])
	return n
}

// Fingerprint identifies the phrase list, so derived data can be keyed by it
func (n *Normalizer) Fingerprint() string {
	return n.fingerprint
}

var defaultNormalizer = New(DefaultStopPhrases)

// Default returns the Normalizer configured with the Portuguese legislative phrase list
func Default() *Normalizer {
	return defaultNormalizer
}

// Normalize lower-cases, strips accents, removes legal citations and
// boilerplate phrases, strips punctuation and collapses whitespace.
// The result is a fixpoint: Normalize(Normalize(s)) == Normalize(s).
func (n *Normalizer) Normalize(raw string) string {
	if raw == "" {
		return ""
	}
	// after the first pass no punctuation or repeated whitespace is left, so
	// any later change removes a match and shortens the text
	text := NormalizeBasic(raw)
	for {
		next := n.pass(text)
		if next == text {
			return text
		}
		text = next
	}
}

func (n *Normalizer) pass(text string) string {
	for _, re := range citationPatterns {
		text = re.ReplaceAllString(text, " ")
	}
	if n.phrases != nil {
		text = n.phrases.ReplaceAllString(text, " ")
	}
	text = punctuation.ReplaceAllString(text, " ")
	text = whitespace.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// Normalize runs the default Normalizer
func Normalize(raw string) string {
	return defaultNormalizer.Normalize(raw)
}

// NormalizeBasic lower-cases and strips diacritics only. It is used for tag
// comparison where the full pipeline is too aggressive.
func NormalizeBasic(raw string) string {
	if raw == "" {
		return ""
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, strings.ToLower(raw))
	if err != nil {
		// transform only fails on invalid state; fall back to the folded input
		return strings.ToLower(raw)
	}
	return stripped
}
