package ranker

import (
	"strings"

	"github.com/lox/bill-relevance-ranker/internal/textnorm"
	"github.com/lox/bill-relevance-ranker/internal/types"
)

// BoostScorer flags bills whose tag fields literally contain a target tag
type BoostScorer struct {
	targets []string
}

// NewBoostScorer takes the upper-cased, accent-stripped target tags of a query
func NewBoostScorer(targets []string) *BoostScorer {
	return &BoostScorer{targets: targets}
}

// Score returns 1 if any target tag is a substring of the bill's normalized
// tag fields, otherwise 0
func (s *BoostScorer) Score(bill types.Bill) float64 {
	if len(s.targets) == 0 {
		return 0
	}
	// whitespace is collapsed the same way vocabulary terms are built
	field := strings.Join(strings.Fields(strings.ToUpper(textnorm.NormalizeBasic(bill.RawTags()))), " ")
	if field == "" {
		return 0
	}
	for _, tag := range s.targets {
		if strings.Contains(field, tag) {
			return 1
		}
	}
	return 0
}
