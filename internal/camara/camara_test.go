package camara

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	*httptest.Server
	listCalls    atomic.Int32
	partyCalls   atomic.Int32
	failingCalls atomic.Int32
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	api := &fakeAPI{}
	mux := http.NewServeMux()

	mux.HandleFunc("/proposicoes", func(w http.ResponseWriter, r *http.Request) {
		api.listCalls.Add(1)
		q := r.URL.Query()
		assert.Equal(t, "PL,PEC", q.Get("siglaTipo"))
		assert.Equal(t, "100", q.Get("itens"))

		if q.Get("pagina") == "2" {
			writeJSON(w, map[string]any{"dados": []map[string]any{{"id": 3}, {"id": 1}}})
			return
		}
		next := api.URL + "/proposicoes?" + q.Encode() + "&pagina=2"
		writeJSON(w, map[string]any{
			"dados": []map[string]any{{"id": 1}, {"id": 2}},
			"links": []map[string]string{{"rel": "self", "href": "x"}, {"rel": "next", "href": next}},
		})
	})
	mux.HandleFunc("/proposicoes/1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"dados": map[string]any{
			"id": 1, "siglaTipo": "PL", "descricaoTipo": "Projeto de Lei", "numero": 10, "ano": 2024,
			"ementa": "Dispõe sobre inteligência artificial.", "keywords": "Inteligência artificial",
			"dataApresentacao": "2024-01-10T10:00", "uriAutores": api.URL + "/proposicoes/1/autores",
			"urlInteiroTeor": "https://example.org/1.pdf",
			"statusProposicao": map[string]any{
				"dataHora": "2024-02-01T09:00", "descricaoTramitacao": "Recebimento",
				"descricaoSituacao": "Aguardando Parecer", "despacho": "À CCTI",
			},
		}})
	})
	mux.HandleFunc("/proposicoes/1/autores", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"dados": []map[string]any{
			{"nome": "Fulano", "uri": api.URL + "/deputados/7"},
			{"nome": "Beltrano", "uri": api.URL + "/deputados/8"},
		}})
	})
	// transient failure on the first attempt
	mux.HandleFunc("/proposicoes/2", func(w http.ResponseWriter, r *http.Request) {
		if api.failingCalls.Add(1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, map[string]any{"dados": map[string]any{
			"id": 2, "siglaTipo": "PEC", "numero": 5, "ano": 2024, "ementa": "Altera a Constituição.",
			"uriAutores": api.URL + "/proposicoes/2/autores",
		}})
	})
	mux.HandleFunc("/proposicoes/2/autores", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"dados": []map[string]any{{"nome": "Fulano", "uri": api.URL + "/deputados/7"}}})
	})
	mux.HandleFunc("/proposicoes/3", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/deputados/7", func(w http.ResponseWriter, r *http.Request) {
		api.partyCalls.Add(1)
		writeJSON(w, map[string]any{"dados": map[string]any{"ultimoStatus": map[string]any{"siglaPartido": "ABC"}}})
	})

	api.Server = httptest.NewServer(mux)
	t.Cleanup(api.Close)
	return api
}

func newTestCollector(t *testing.T, api *fakeAPI) *Collector {
	t.Helper()
	logger := log.New(io.Discard)
	client, err := NewClient(NewClientConfig().
		WithBaseURL(api.URL).
		WithRetryDelay(time.Millisecond).
		WithLogger(logger))
	require.NoError(t, err)
	return NewCollector(client, logger)
}

func TestCollect(t *testing.T) {
	api := newFakeAPI(t)
	c := newTestCollector(t, api)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bills, err := c.Collect(context.Background(), CollectOptions{
		Start:     start,
		End:       start.AddDate(0, 0, 30),
		TypeCodes: []string{"PL", "PEC"},
		Workers:   1,
	})
	require.NoError(t, err)

	// proposition 3 is missing and skipped
	require.Len(t, bills, 2)
	assert.Equal(t, int32(2), api.listCalls.Load())

	b := bills[0]
	assert.Equal(t, "1", b.ID)
	assert.Equal(t, "PL 10/2024", b.Identification())
	assert.Equal(t, "Inteligência artificial", b.Keywords)
	assert.Equal(t, "Fulano", b.Author)
	assert.Equal(t, "ABC", b.AuthorParty)
	assert.Equal(t, []string{"Beltrano"}, b.CoAuthors)
	assert.Equal(t, "Aguardando Parecer", b.Status.Situation)
	assert.Equal(t, "Recebimento", b.Status.LastStage)
	assert.Equal(t, "https://www.camara.leg.br/proposicoesWeb/fichadetramitacao?idProposicao=1", b.PageURL)

	assert.Equal(t, "2", bills[1].ID)
	assert.Equal(t, "ABC", bills[1].AuthorParty)
	assert.Empty(t, bills[1].CoAuthors)

	// the party of deputy 7 is fetched once for both bills
	assert.Equal(t, int32(1), api.partyCalls.Load())
}

func TestListPropositionIDsWindows(t *testing.T) {
	var mu sync.Mutex
	var windows []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		mu.Lock()
		windows = append(windows, q.Get("dataApresentacaoInicio")+".."+q.Get("dataApresentacaoFim"))
		mu.Unlock()
		writeJSON(w, map[string]any{"dados": []map[string]any{}})
	}))
	defer srv.Close()

	client, err := NewClient(NewClientConfig().WithBaseURL(srv.URL).WithLogger(log.New(io.Discard)))
	require.NoError(t, err)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ids, err := client.ListPropositionIDs(context.Background(), start, start.AddDate(0, 0, 100), []string{"PL"}, 60)
	require.NoError(t, err)
	assert.Empty(t, ids)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"2024-01-01..2024-03-01", "2024-03-02..2024-04-10"}, windows)
}

func TestGetJSONDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	client, err := NewClient(NewClientConfig().
		WithBaseURL(srv.URL).
		WithRetryDelay(time.Millisecond).
		WithLogger(log.New(io.Discard)))
	require.NoError(t, err)

	_, err = client.fetchProposition(context.Background(), 1)
	require.Error(t, err)
	var se *statusError
	assert.ErrorAs(t, err, &se)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCollectValidatesOptions(t *testing.T) {
	api := newFakeAPI(t)
	c := newTestCollector(t, api)
	now := time.Now()

	_, err := c.Collect(context.Background(), CollectOptions{Start: now, End: now, TypeCodes: []string{"PL"}})
	assert.Error(t, err)

	_, err = c.Collect(context.Background(), CollectOptions{Start: now.AddDate(0, 0, -1), End: now})
	assert.Error(t, err)
	assert.Equal(t, int32(0), api.listCalls.Load())
}
