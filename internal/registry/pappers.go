// Package registry holds the clients for the two upstream company registries:
// the paid detail/search API (keyed by an api-key header) and the free public
// search API. Both apply the same bounded retry policy on rate limiting and a
// per-client rate limiter for the inter-call delay.
package registry

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"sirenscope/internal/model"
)

const (
	defaultPappersBaseURL = "https://api.pappers.fr/v2"
	pappersTimeout        = 25 * time.Second
	pappersDelay          = 150 * time.Millisecond

	// maxAttempts bounds the retry loop on a permanently rate-limited call.
	maxAttempts    = 3
	rateLimitPause = 5 * time.Second
)

// ErrNotFound marks an HTTP 404: a normal "no data" outcome, never fatal.
var ErrNotFound = eris.New("registry: not found")

type apiClient struct {
	baseURL    string
	retryPause time.Duration
	http       *http.Client
	limiter    *rate.Limiter
	headers    map[string]string
	log        *zap.Logger
}

// get performs one rate-limited GET. HTTP 429 is retried in place up to
// maxAttempts with a fixed pause; 404 maps to ErrNotFound; any other non-200
// status or transport failure is returned to the caller, which decides whether
// to skip the identifier or abort the branch.
func (a *apiClient) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var body []byte
	backoff := retry.WithMaxRetries(maxAttempts-1, retry.NewConstant(a.retryPause))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path+"?"+params.Encode(), nil)
		if err != nil {
			return err
		}
		for k, v := range a.headers {
			req.Header.Set(k, v)
		}

		resp, err := a.http.Do(req)
		if err != nil {
			return eris.Wrapf(err, "GET %s", path)
		}
		defer resp.Body.Close()

		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return eris.Wrapf(err, "read response of %s", path)
		}

		switch resp.StatusCode {
		case http.StatusOK:
			body = b
			return nil
		case http.StatusNotFound:
			return ErrNotFound
		case http.StatusTooManyRequests:
			a.log.Warn("rate limited, backing off", zap.String("path", path), zap.Duration("pause", a.retryPause))
			return retry.RetryableError(eris.Errorf("rate limited (HTTP 429) on %s", path))
		default:
			return eris.Errorf("unexpected status %d on %s", resp.StatusCode, path)
		}
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// PappersClient talks to the paid registry API.
type PappersClient struct {
	apiClient
}

// NewPappersClient creates a client for the paid API. The key is sent as the
// api-key header on every call.
func NewPappersClient(apiKey string, log *zap.Logger) *PappersClient {
	return &PappersClient{apiClient{
		baseURL:    defaultPappersBaseURL,
		retryPause: rateLimitPause,
		http:       &http.Client{Timeout: pappersTimeout},
		limiter:    rate.NewLimiter(rate.Every(pappersDelay), 1),
		headers:    map[string]string{"api-key": apiKey},
		log:        log,
	}}
}

// WithBaseURL points the client at a different endpoint. Used by tests.
func (c *PappersClient) WithBaseURL(u string) *PappersClient {
	c.baseURL = u
	return c
}

// WithRetryPause overrides the fixed pause applied after a 429.
func (c *PappersClient) WithRetryPause(d time.Duration) *PappersClient {
	c.retryPause = d
	return c
}

// SearchFilter is one parameter combination for the cursor search endpoint.
type SearchFilter struct {
	NAFCode       string
	Departments   string // comma-separated geography codes
	Keyword       string // free-text search
	Purpose       string // match against the declared company purpose
	MaxBirthDate  string // DD-MM-YYYY, upstream director birth-date filter
	IncludeCeased bool
}

// CursorPage is one page of a cursor traversal. ResultCount is the raw entry
// count of the page, so callers can tell an exhausted search from a page
// whose entries all failed identifier validation.
type CursorPage struct {
	Sirens      []string
	NextCursor  string
	Total       int
	ResultCount int
}

// SearchCompanies fetches one page of the search endpoint for the given
// opaque cursor (initial value "*").
func (c *PappersClient) SearchCompanies(ctx context.Context, f SearchFilter, cursor string, pageSize int) (*CursorPage, error) {
	params := url.Values{}
	params.Set("bases", "entreprises")
	params.Set("precision", "standard")
	params.Set("curseur", cursor)
	params.Set("par_curseur", strconv.Itoa(pageSize))
	if f.NAFCode != "" {
		params.Set("code_naf", f.NAFCode)
	}
	if f.Departments != "" {
		params.Set("departement", f.Departments)
	}
	if !f.IncludeCeased {
		params.Set("entreprise_cessee", "false")
	}
	if f.Keyword != "" {
		params.Set("q", f.Keyword)
	}
	if f.Purpose != "" {
		params.Set("objet_social", f.Purpose)
	}
	if f.MaxBirthDate != "" {
		params.Set("date_de_naissance_dirigeant_max", f.MaxBirthDate)
	}

	body, err := c.get(ctx, "/recherche", params)
	if err != nil {
		return nil, eris.Wrap(err, "company search")
	}

	d, err := parseDoc(body)
	if err != nil {
		return nil, eris.Wrap(err, "decode search response")
	}

	results := d.list("resultats")
	page := &CursorPage{
		NextCursor:  d.str("curseurSuivant"),
		Total:       d.intv("total"),
		ResultCount: len(results),
	}
	for _, r := range results {
		if id, ok := r.identifier(); ok {
			page.Sirens = append(page.Sirens, id)
		}
	}
	return page, nil
}

// GetCompany fetches the detail record for one identifier. Returns
// ErrNotFound on a 404.
func (c *PappersClient) GetCompany(ctx context.Context, siren string) (*model.Company, error) {
	params := url.Values{}
	params.Set("siren", siren)
	params.Set("integrer_diffusions_partielles", "true")
	params.Set("champs_supplementaires", "enseigne_1,enseigne_2,enseigne_3,sites_internet")

	body, err := c.get(ctx, "/entreprise", params)
	if err != nil {
		return nil, err
	}

	d, err := parseDoc(body)
	if err != nil {
		return nil, eris.Wrapf(err, "decode detail record of %s", siren)
	}
	return buildCompany(d, siren), nil
}

// directorsPerPage is the page size of the directors search endpoint.
const directorsPerPage = 50

// SearchDirectors lists the physical-person directors registered for one
// company via the directors search endpoint, billed per returned director
// rather than per company record. maxBirthDate (DD-MM-YYYY, optional) is an
// upstream pre-filter; callers still apply their own exact cutoff. The same
// mandate can appear on several pages, so entries are de-duplicated on
// name, first name and birth field.
func (c *PappersClient) SearchDirectors(ctx context.Context, siren, maxBirthDate string) ([]model.Director, error) {
	var out []model.Director
	seen := make(map[string]struct{})

	for page := 1; ; {
		params := url.Values{}
		params.Set("siren", siren)
		params.Set("type_dirigeant", "physique")
		params.Set("precision", "standard")
		params.Set("par_page", strconv.Itoa(directorsPerPage))
		params.Set("page", strconv.Itoa(page))
		if maxBirthDate != "" {
			params.Set("date_de_naissance_dirigeant_max", maxBirthDate)
		}

		body, err := c.get(ctx, "/recherche-dirigeants", params)
		if err != nil {
			return nil, err
		}
		d, err := parseDoc(body)
		if err != nil {
			return nil, eris.Wrapf(err, "decode directors of %s", siren)
		}

		results := d.list("resultats")
		for _, r := range results {
			dir := model.Director{
				LastName:  r.str(directorNamePaths...),
				FirstName: r.str(directorFirstPaths...),
				Role:      r.str(directorRolePaths...),
				BirthRaw:  r.str(directorBirthPaths...),
			}
			key := dir.LastName + "|" + dir.FirstName + "|" + dir.BirthRaw
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, dir)
		}

		total := d.intv("total")
		if total == 0 {
			total = len(results)
		}
		totalPages := (total + directorsPerPage - 1) / directorsPerPage
		current := d.intv("page")
		if current == 0 {
			current = page
		}
		if len(results) == 0 || current >= totalPages {
			return out, nil
		}
		page = current + 1
	}
}
