package camara

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/charmbracelet/log"
)

const (
	DefaultBaseURL = "https://dadosabertos.camara.leg.br/api/v2"
	pageURLFormat  = "https://www.camara.leg.br/proposicoesWeb/fichadetramitacao?idProposicao=%d"
)

// ClientConfig holds configuration for the Chamber open data client
type ClientConfig struct {
	BaseURL       string
	Timeout       time.Duration
	RetryAttempts uint
	RetryDelay    time.Duration
	Logger        *log.Logger
}

// NewClientConfig creates a new ClientConfig with default values
func NewClientConfig() ClientConfig {
	return ClientConfig{
		BaseURL:       DefaultBaseURL,
		Timeout:       10 * time.Second,
		RetryAttempts: 3,
		RetryDelay:    500 * time.Millisecond,
	}
}

func (c ClientConfig) WithBaseURL(baseURL string) ClientConfig {
	c.BaseURL = baseURL
	return c
}

func (c ClientConfig) WithRetryAttempts(attempts uint) ClientConfig {
	c.RetryAttempts = attempts
	return c
}

func (c ClientConfig) WithRetryDelay(delay time.Duration) ClientConfig {
	c.RetryDelay = delay
	return c
}

func (c ClientConfig) WithLogger(logger *log.Logger) ClientConfig {
	c.Logger = logger
	return c
}

// Validate checks if the configuration is valid
func (c ClientConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL is required")
	}
	if _, err := url.Parse(c.BaseURL); err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if c.RetryAttempts == 0 {
		return fmt.Errorf("retry attempts must be greater than 0")
	}
	if c.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	return nil
}

// Client talks to the Chamber of Deputies open data API
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	logger     *log.Logger
}

func NewClient(config ClientConfig) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     config.Logger,
	}, nil
}

type link struct {
	Rel  string `json:"rel"`
	Href string `json:"href"`
}

type listResponse struct {
	Dados []struct {
		ID int `json:"id"`
	} `json:"dados"`
	Links []link `json:"links"`
}

type proposition struct {
	ID               int    `json:"id"`
	SiglaTipo        string `json:"siglaTipo"`
	DescricaoTipo    string `json:"descricaoTipo"`
	Numero           int    `json:"numero"`
	Ano              int    `json:"ano"`
	Ementa           string `json:"ementa"`
	Keywords         string `json:"keywords"`
	DataApresentacao string `json:"dataApresentacao"`
	URIAutores       string `json:"uriAutores"`
	URLInteiroTeor   string `json:"urlInteiroTeor"`
	StatusProposicao *struct {
		DataHora            string `json:"dataHora"`
		DescricaoTramitacao string `json:"descricaoTramitacao"`
		DescricaoSituacao   string `json:"descricaoSituacao"`
		Despacho            string `json:"despacho"`
	} `json:"statusProposicao"`
}

type author struct {
	Nome string `json:"nome"`
	URI  string `json:"uri"`
}

type deputy struct {
	UltimoStatus struct {
		SiglaPartido string `json:"siglaPartido"`
	} `json:"ultimoStatus"`
}

// statusError is a non-2xx API response
type statusError struct {
	Code int
	Body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("api returned status %d: %s", e.Code, e.Body)
}

// getJSON fetches rawURL and decodes the body into out. Transport errors, 429
// and 5xx responses are retried with backoff.
func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	return retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("failed to create request: %w", err))
			}
			req.Header.Set("Accept", "application/json")

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return fmt.Errorf("failed to make request: %w", err)
			}
			defer resp.Body.Close()
			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("failed to read response: %w", err)
			}
			if resp.StatusCode != http.StatusOK {
				err := &statusError{Code: resp.StatusCode, Body: truncate(string(body), 200)}
				if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
					return err
				}
				return retry.Unrecoverable(err)
			}
			if err := json.Unmarshal(body, out); err != nil {
				return retry.Unrecoverable(fmt.Errorf("failed to unmarshal response: %w", err))
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(c.config.RetryAttempts),
		retry.Delay(c.config.RetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Warn("Retrying request", "url", rawURL, "attempt", n+1, "max_attempts", c.config.RetryAttempts, "error", err)
		}),
	)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// ListPropositionIDs returns the ids of propositions of the given types presented
// between start and end, in API order with duplicates removed. The range is
// queried in windows of windowDays days, following pagination links.
func (c *Client) ListPropositionIDs(ctx context.Context, start, end time.Time, typeCodes []string, windowDays int) ([]int, error) {
	if windowDays <= 0 {
		windowDays = 60
	}
	var ids []int
	seen := make(map[int]struct{})

	for curr := start; curr.Before(end); {
		next := curr.AddDate(0, 0, windowDays)
		if next.After(end) {
			next = end
		}

		params := url.Values{}
		params.Set("dataApresentacaoInicio", curr.Format(time.DateOnly))
		params.Set("dataApresentacaoFim", next.Format(time.DateOnly))
		params.Set("siglaTipo", strings.Join(typeCodes, ","))
		params.Set("itens", "100")
		params.Set("ordem", "ASC")
		params.Set("ordenarPor", "id")
		pageURL := strings.TrimRight(c.config.BaseURL, "/") + "/proposicoes?" + params.Encode()

		c.logger.Debug("Listing propositions", "from", curr.Format(time.DateOnly), "to", next.Format(time.DateOnly))
		for pageURL != "" {
			var page listResponse
			if err := c.getJSON(ctx, pageURL, &page); err != nil {
				return nil, fmt.Errorf("failed to list propositions from %s: %w", curr.Format(time.DateOnly), err)
			}
			for _, d := range page.Dados {
				if _, ok := seen[d.ID]; ok {
					continue
				}
				seen[d.ID] = struct{}{}
				ids = append(ids, d.ID)
			}
			pageURL = nextLink(page.Links)
		}

		curr = next.AddDate(0, 0, 1)
	}
	return ids, nil
}

func nextLink(links []link) string {
	for _, l := range links {
		if l.Rel == "next" {
			return l.Href
		}
	}
	return ""
}

// fetchProposition returns the details of a single proposition without authors
func (c *Client) fetchProposition(ctx context.Context, id int) (*proposition, error) {
	var resp struct {
		Dados proposition `json:"dados"`
	}
	u := strings.TrimRight(c.config.BaseURL, "/") + "/proposicoes/" + strconv.Itoa(id)
	if err := c.getJSON(ctx, u, &resp); err != nil {
		return nil, err
	}
	if resp.Dados.ID == 0 {
		return nil, errors.New("proposition response has no id")
	}
	return &resp.Dados, nil
}

// fetchAuthors returns the authors listed at uri, principal author first
func (c *Client) fetchAuthors(ctx context.Context, uri string) ([]author, error) {
	var resp struct {
		Dados []author `json:"dados"`
	}
	if err := c.getJSON(ctx, uri, &resp); err != nil {
		return nil, err
	}
	return resp.Dados, nil
}

// fetchParty returns the current party acronym of the deputy at uri
func (c *Client) fetchParty(ctx context.Context, uri string) (string, error) {
	var resp struct {
		Dados deputy `json:"dados"`
	}
	if err := c.getJSON(ctx, uri, &resp); err != nil {
		return "", err
	}
	return resp.Dados.UltimoStatus.SiglaPartido, nil
}
