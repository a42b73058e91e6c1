package types

// ScoreRecord holds the per-bill scores of a single ranking run
type ScoreRecord struct {
	BillID   string  `json:"bill_id"`
	Semantic float64 `json:"semantic"`
	Boost    float64 `json:"boost"`
	Fused    float64 `json:"fused"`
	Passed   bool    `json:"passed"`
}

// RankedBill is a bill selected by the ranker together with its scores
type RankedBill struct {
	Bill
	Scores ScoreRecord `json:"scores"`
}

// RankResults represents the outcome of a ranking run
type RankResults struct {
	Results    []RankedBill `json:"results"`
	Scored     int          `json:"scored"`
	Passed     int          `json:"passed"`
	TargetTags []string     `json:"target_tags"`
}
