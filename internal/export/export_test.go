package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lox/bill-relevance-ranker/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rankedBill() types.RankedBill {
	return types.RankedBill{
		Bill: types.Bill{
			ID:              "2345678",
			TypeCode:        "PL",
			TypeDescription: "Projeto de Lei",
			Number:          "1234",
			Year:            "2023",
			Summary:         "  Regulamenta o uso de inteligência artificial.  ",
			Keywords:        "Inteligência artificial",
			Indexing:        "Tecnologia",
			PresentedAt:     "2023-03-15T14:22",
			DocumentURL:     "https://example.org/doc.pdf",
			PageURL:         "https://example.org/page",
			Status: types.Status{
				Situation:   "Aguardando Parecer",
				LastStage:   "Recebimento pela CCTI",
				LastStageAt: "2023-04-01T09:00",
			},
			Author:      "Fulano",
			AuthorParty: "ABC",
			CoAuthors:   []string{"Beltrano", "Fulano", " Ciclano "},
		},
		Scores: types.ScoreRecord{BillID: "2345678", Semantic: 0.3, Boost: 1, Fused: 0.65, Passed: true},
	}
}

func TestProject(t *testing.T) {
	p := Project(rankedBill())

	assert.Equal(t, "PL 1234/2023", p.Norm)
	assert.Equal(t, "0.6500", p.Similarity)
	assert.Equal(t, "Projeto de Lei", p.TypeDescription)
	assert.Equal(t, "2023-03-15", p.PresentedAt)
	assert.Equal(t, "Fulano, Beltrano, Ciclano", p.Authors)
	assert.Equal(t, "ABC", p.Party)
	assert.Equal(t, "Regulamenta o uso de inteligência artificial.", p.Summary)
	assert.Equal(t, "Inteligência artificial", p.Indexing)
	assert.Equal(t, "2023-04-01", p.LastStageAt)
	assert.Equal(t, "Aguardando Parecer", p.Situation)
	assert.Len(t, Record(p), len(Columns))
}

func TestProjectMissingFields(t *testing.T) {
	p := Project(types.RankedBill{Bill: types.Bill{
		ID:       "99",
		TypeCode: "PEC",
		Status:   types.Status{LastStageDispatch: "Arquive-se"},
	}})

	assert.Equal(t, "99", p.Norm)
	assert.Equal(t, "0.0000", p.Similarity)
	assert.Equal(t, "PEC", p.TypeDescription)
	assert.Equal(t, NotInformed, p.Authors)
	assert.Equal(t, "", p.PresentedAt)
	assert.Equal(t, "", p.Party)
	assert.Equal(t, "Arquive-se", p.LastStage)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, ProjectAll([]types.RankedBill{rankedBill()})))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, Columns, records[0])
	assert.Equal(t, "PL 1234/2023", records[1][0])
	assert.Equal(t, "Fulano, Beltrano, Ciclano", records[1][4])
}

func TestWriteCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	assert.Equal(t, strings.Join(Columns, ",")+"\n", buf.String())
}

func TestWriteFileJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "results.json")
	require.NoError(t, WriteFile(path, ProjectAll([]types.RankedBill{rankedBill()}), WriteJSON))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var rows []map[string]string
	require.NoError(t, json.Unmarshal(data, &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "PL 1234/2023", rows[0]["norma"])
	assert.Equal(t, "0.6500", rows[0]["similaridade_semantica"])

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file should be gone")
}

func TestWriteFileReplaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.csv")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0644))

	require.NoError(t, WriteFile(path, nil, WriteCSV))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "Norma,"))
}
