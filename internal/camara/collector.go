package camara

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lox/bill-relevance-ranker/internal/progress"
	"github.com/lox/bill-relevance-ranker/internal/types"
	"github.com/panjf2000/ants/v2"
)

const (
	UnknownAuthor = "Desconhecido"
	UnknownParty  = "S/P"
)

// CollectOptions selects which propositions to collect
type CollectOptions struct {
	Start      time.Time
	End        time.Time
	TypeCodes  []string
	WindowDays int
	Workers    int
	Progress   progress.Progress
}

// Collector gathers bills with their authors and parties
type Collector struct {
	client *Client
	logger *log.Logger

	mu      sync.Mutex
	parties map[string]string
}

func NewCollector(client *Client, logger *log.Logger) *Collector {
	return &Collector{
		client:  client,
		logger:  logger,
		parties: make(map[string]string),
	}
}

// Collect lists the matching propositions and fetches their details on a worker
// pool. Bills are returned in listing order; a proposition whose details cannot
// be fetched is logged and skipped.
func (c *Collector) Collect(ctx context.Context, opts CollectOptions) ([]types.Bill, error) {
	if !opts.Start.Before(opts.End) {
		return nil, fmt.Errorf("start date %s must be before end date %s",
			opts.Start.Format(time.DateOnly), opts.End.Format(time.DateOnly))
	}
	if len(opts.TypeCodes) == 0 {
		return nil, fmt.Errorf("at least one proposition type is required")
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}
	tracker := opts.Progress
	if tracker == nil {
		tracker = progress.NewNoopProgress()
	}

	ids, err := c.client.ListPropositionIDs(ctx, opts.Start, opts.End, opts.TypeCodes, opts.WindowDays)
	if err != nil {
		return nil, err
	}
	c.logger.Info("Listed propositions", "count", len(ids), "types", opts.TypeCodes)

	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	defer pool.Release()

	results := make([]*types.Bill, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			bill, err := c.FetchBill(ctx, id)
			if err != nil {
				c.logger.Warn("Skipping proposition", "id", id, "error", err)
			} else {
				results[i] = bill
			}
			if err := tracker.Add(1); err != nil {
				c.logger.Debug("Failed to update progress", "error", err)
			}
		})
		if err != nil {
			wg.Done()
			wg.Wait()
			return nil, fmt.Errorf("failed to submit proposition %d: %w", id, err)
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bills := make([]types.Bill, 0, len(ids))
	for _, b := range results {
		if b != nil {
			bills = append(bills, *b)
		}
	}
	c.logger.Info("Collected bills", "count", len(bills), "skipped", len(ids)-len(bills))
	return bills, nil
}

// FetchBill fetches a proposition with its authors. Failing to resolve authors
// or party leaves the defaults in place rather than failing the bill.
func (c *Collector) FetchBill(ctx context.Context, id int) (*types.Bill, error) {
	p, err := c.client.fetchProposition(ctx, id)
	if err != nil {
		return nil, err
	}

	bill := &types.Bill{
		ID:              strconv.Itoa(p.ID),
		TypeCode:        p.SiglaTipo,
		TypeDescription: p.DescricaoTipo,
		Summary:         p.Ementa,
		Keywords:        p.Keywords,
		PresentedAt:     p.DataApresentacao,
		DocumentURL:     p.URLInteiroTeor,
		PageURL:         fmt.Sprintf(pageURLFormat, p.ID),
		Author:          UnknownAuthor,
		AuthorParty:     UnknownParty,
	}
	if p.Numero > 0 {
		bill.Number = strconv.Itoa(p.Numero)
	}
	if p.Ano > 0 {
		bill.Year = strconv.Itoa(p.Ano)
	}
	if s := p.StatusProposicao; s != nil {
		bill.Status = types.Status{
			Situation:         s.DescricaoSituacao,
			LastStage:         s.DescricaoTramitacao,
			LastStageAt:       s.DataHora,
			LastStageDispatch: s.Despacho,
		}
	}

	if p.URIAutores == "" {
		return bill, nil
	}
	authors, err := c.client.fetchAuthors(ctx, p.URIAutores)
	if err != nil {
		c.logger.Debug("Failed to fetch authors", "id", id, "error", err)
		return bill, nil
	}
	if len(authors) == 0 {
		return bill, nil
	}

	if authors[0].Nome != "" {
		bill.Author = authors[0].Nome
	}
	if authors[0].URI != "" {
		bill.AuthorParty = c.party(ctx, authors[0].URI)
	}
	for _, a := range authors[1:] {
		bill.CoAuthors = append(bill.CoAuthors, a.Nome)
	}
	return bill, nil
}

// party resolves a deputy's party, caching answers for the collector's lifetime
func (c *Collector) party(ctx context.Context, uri string) string {
	c.mu.Lock()
	if p, ok := c.parties[uri]; ok {
		c.mu.Unlock()
		return p
	}
	c.mu.Unlock()

	p, err := c.client.fetchParty(ctx, uri)
	if err != nil {
		c.logger.Debug("Failed to fetch party", "uri", uri, "error", err)
		return UnknownParty
	}
	if p == "" {
		p = UnknownParty
	}

	c.mu.Lock()
	c.parties[uri] = p
	c.mu.Unlock()
	return p
}
