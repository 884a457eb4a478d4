package extraction

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/Lllllllleong/checklistrenamer/internal/models"
)

// Outcome is the classification of one extraction.
type Outcome int

const (
	NotFound Outcome = iota
	Found
)

func (o Outcome) String() string {
	if o == Found {
		return "found"
	}
	return "not_found"
}

// Result is what an Engine reports for a document.
// Serial, Strategy and Page are set only when Outcome is Found; Page is 1-based.
type Result struct {
	Outcome  Outcome
	Serial   string
	Strategy string
	Page     int
}

// Strategy finds a serial candidate in the text of a single page.
type Strategy interface {
	Name() string
	// Find returns candidates in reading order.
	Find(text string) []string
}

// Engine runs the strategy cascade over a document's pages.
type Engine struct {
	strategies []Strategy
}

// DefaultLabels are the field labels printed next to the serial on checklist forms.
var DefaultLabels = []string{
	"Número de Série",
	"Numero de Serie",
	"Nº de Série",
	"N° de Série",
	"Nº Série",
	"N° Série",
	"Serial Number",
	"Serial No",
	"Serial",
	"S/N",
	"SN",
}

// New builds an Engine with the labeled-field strategy (using labels, or
// DefaultLabels when empty) followed by the generic pattern scan.
func New(labels []string) *Engine {
	if len(labels) == 0 {
		labels = DefaultLabels
	}
	return NewWithStrategies(NewLabeledField(labels), GenericPattern{})
}

// NewWithStrategies builds an Engine from an explicit, ordered strategy list.
func NewWithStrategies(strategies ...Strategy) *Engine {
	return &Engine{strategies: strategies}
}

// Extract scans pages in order and returns the first canonical serial found.
func (e *Engine) Extract(pages []string) Result {
	for i, page := range pages {
		text := Normalize(page)
		if strings.TrimSpace(text) == "" {
			continue
		}
		for _, s := range e.strategies {
			for _, candidate := range s.Find(text) {
				serial, err := models.NormalizeSerial(candidate)
				if err != nil {
					continue
				}
				return Result{Outcome: Found, Serial: serial, Strategy: s.Name(), Page: i + 1}
			}
		}
	}
	return Result{Outcome: NotFound}
}

// Normalize folds compatibility characters (full-width digits, ligatures,
// superscripts) so that printed serials compare equal to their ASCII form.
func Normalize(text string) string {
	return norm.NFKC.String(text)
}
