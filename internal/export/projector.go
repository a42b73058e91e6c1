package export

import (
	"strings"

	"github.com/lox/bill-relevance-ranker/internal/types"
	"github.com/shopspring/decimal"
)

const (
	// NotInformed marks a missing author list
	NotInformed = "Não informado"
	// ScorePlaces is the number of decimal places of exported similarity scores
	ScorePlaces = 4
)

// Columns is the header of the tabular export, in column order
var Columns = []string{
	"Norma",
	"Similaridade Semantica",
	"Descricao da Sigla",
	"Data de Apresentacao",
	"Autor",
	"Partido",
	"Ementa",
	"Link Documento PDF",
	"Link Página Web",
	"Indexacao",
	"Último Estado",
	"Data Último Estado",
	"Situação",
}

// Project maps a ranked bill to its export row
func Project(rb types.RankedBill) types.Project {
	b := rb.Bill

	authors := NotInformed
	if names := b.Authors(); len(names) > 0 {
		authors = strings.Join(names, ", ")
	}

	lastStage := b.Status.LastStage
	if lastStage == "" {
		lastStage = b.Status.LastStageDispatch
	}

	description := b.TypeDescription
	if description == "" {
		description = b.TypeCode
	}

	return types.Project{
		Norm:            b.Identification(),
		Similarity:      decimal.NewFromFloat(rb.Scores.Fused).StringFixed(ScorePlaces),
		TypeDescription: description,
		PresentedAt:     calendarDate(b.PresentedAt),
		Authors:         authors,
		Party:           b.AuthorParty,
		Summary:         strings.TrimSpace(b.Summary),
		DocumentURL:     b.DocumentURL,
		PageURL:         b.PageURL,
		Indexing:        b.TagField(),
		LastStage:       lastStage,
		LastStageAt:     calendarDate(b.Status.LastStageAt),
		Situation:       b.Status.Situation,
	}
}

// ProjectAll maps ranked bills to rows, preserving order
func ProjectAll(results []types.RankedBill) []types.Project {
	rows := make([]types.Project, len(results))
	for i, rb := range results {
		rows[i] = Project(rb)
	}
	return rows
}

// Record returns the row's values in Columns order
func Record(p types.Project) []string {
	return []string{
		p.Norm,
		p.Similarity,
		p.TypeDescription,
		p.PresentedAt,
		p.Authors,
		p.Party,
		p.Summary,
		p.DocumentURL,
		p.PageURL,
		p.Indexing,
		p.LastStage,
		p.LastStageAt,
		p.Situation,
	}
}

// calendarDate truncates an ISO timestamp such as "2023-05-02T10:30" to its date
func calendarDate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 10 {
		return s[:10]
	}
	return s
}
