package extraction

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Lllllllleong/checklistrenamer/internal/models"
)

const (
	StrategyLabeledField   = "labeled_field"
	StrategyGenericPattern = "generic_pattern"
)

var serialShape = regexp.MustCompile(models.SerialPattern)

// LabeledField matches a known label immediately followed by a serial value.
// Labels compare case-insensitively; the value must have the exact canonical shape.
type LabeledField struct {
	re *regexp.Regexp
}

// NewLabeledField compiles the label list into a single matcher. Longer labels
// are tried first so "Serial Number" wins over "Serial". A list with no
// usable label falls back to DefaultLabels.
func NewLabeledField(labels []string) *LabeledField {
	quoted := quoteLabels(labels)
	if len(quoted) == 0 {
		quoted = quoteLabels(DefaultLabels)
	}
	sort.SliceStable(quoted, func(i, j int) bool { return len(quoted[i]) > len(quoted[j]) })

	expr := `(?i:` + strings.Join(quoted, "|") + `)[\s:#.=\-]*(` + models.SerialPattern + `)`
	return &LabeledField{re: regexp.MustCompile(expr)}
}

func quoteLabels(labels []string) []string {
	quoted := make([]string, 0, len(labels))
	seen := make(map[string]bool, len(labels))
	for _, l := range labels {
		l = strings.TrimSpace(Normalize(l))
		if l == "" || seen[strings.ToLower(l)] {
			continue
		}
		seen[strings.ToLower(l)] = true
		quoted = append(quoted, regexp.QuoteMeta(l))
	}
	return quoted
}

func (*LabeledField) Name() string { return StrategyLabeledField }

func (l *LabeledField) Find(text string) []string {
	var out []string
	for _, m := range l.re.FindAllStringSubmatchIndex(text, -1) {
		labelStart, valueStart, valueEnd := m[0], m[2], m[3]
		if !boundaryBefore(text, labelStart) || !boundaryAfter(text, valueEnd) {
			continue
		}
		out = append(out, text[valueStart:valueEnd])
	}
	return out
}

// GenericPattern finds any canonical-shape token that is not part of a longer
// alphanumeric run.
type GenericPattern struct{}

func (GenericPattern) Name() string { return StrategyGenericPattern }

func (GenericPattern) Find(text string) []string {
	var out []string
	for _, m := range serialShape.FindAllStringIndex(text, -1) {
		if boundaryBefore(text, m[0]) && boundaryAfter(text, m[1]) {
			out = append(out, text[m[0]:m[1]])
		}
	}
	return out
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func boundaryBefore(text string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(text[:i])
	return !isWordRune(r)
}

func boundaryAfter(text string, i int) bool {
	if i >= len(text) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(text[i:])
	return !isWordRune(r)
}
