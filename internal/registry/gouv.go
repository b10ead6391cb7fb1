package registry

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"sirenscope/internal/csvio"
)

const (
	defaultGouvBaseURL = "https://recherche-entreprises.api.gouv.fr"
	gouvTimeout        = 20 * time.Second
	gouvDelay          = 200 * time.Millisecond

	// GouvMaxPerPage is the documented page-size ceiling of the free API.
	GouvMaxPerPage = 25
)

// GouvClient talks to the free public search API. No authentication.
type GouvClient struct {
	apiClient
}

// NewGouvClient creates a client for the free registry search API.
func NewGouvClient(log *zap.Logger) *GouvClient {
	return &GouvClient{apiClient{
		baseURL:    defaultGouvBaseURL,
		retryPause: rateLimitPause,
		http:       &http.Client{Timeout: gouvTimeout},
		limiter:    rate.NewLimiter(rate.Every(gouvDelay), 1),
		log:        log,
	}}
}

// WithBaseURL points the client at a different endpoint. Used by tests.
func (c *GouvClient) WithBaseURL(u string) *GouvClient {
	c.baseURL = u
	return c
}

// WithRetryPause overrides the fixed pause applied after a 429.
func (c *GouvClient) WithRetryPause(d time.Duration) *GouvClient {
	c.retryPause = d
	return c
}

// GouvFilter is one parameter combination for the page-based search endpoint.
type GouvFilter struct {
	NAFCode      string
	Department   string
	Keyword      string
	MaxBirthDate string // YYYY-MM-DD, upstream director birth-date filter
	ActiveOnly   bool
}

// Page is one page of a page-number traversal.
type Page struct {
	Sirens       []string
	TotalPages   int
	TotalResults int
}

// SearchPage fetches one page of the free search endpoint.
func (c *GouvClient) SearchPage(ctx context.Context, f GouvFilter, page, perPage int) (*Page, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("per_page", strconv.Itoa(perPage))
	if f.NAFCode != "" {
		params.Set("activite_principale", f.NAFCode)
	}
	if f.Department != "" {
		params.Set("departement", f.Department)
	}
	if f.Keyword != "" {
		params.Set("q", f.Keyword)
	}
	if f.MaxBirthDate != "" {
		params.Set("type_personne", "dirigeant")
		params.Set("date_naissance_personne_max", f.MaxBirthDate)
	}
	if f.ActiveOnly {
		params.Set("etat_administratif", "A")
	}

	body, err := c.get(ctx, "/search", params)
	if err != nil {
		return nil, eris.Wrap(err, "public search")
	}

	d, err := parseDoc(body)
	if err != nil {
		return nil, eris.Wrap(err, "decode public search response")
	}

	res := &Page{
		TotalPages:   d.intv("total_pages", "totalPages"),
		TotalResults: d.intv("total_results"),
	}
	results := d.list("results")
	if len(results) == 0 {
		results = d.list("resultats")
	}
	for _, r := range results {
		if id, ok := r.identifier(); ok {
			res.Sirens = append(res.Sirens, id)
		}
	}
	return res, nil
}

// Count returns the declared result total for a filter without traversing
// pages. Used by estimate mode.
func (c *GouvClient) Count(ctx context.Context, f GouvFilter) (int, error) {
	page, err := c.SearchPage(ctx, f, 1, 1)
	if err != nil {
		return 0, err
	}
	return page.TotalResults, nil
}

// Hint is the low-cost metadata the free API can supply for one identifier.
// Fields it fills are preferred over the paid record to save credits.
type Hint struct {
	Name    string
	Siret   string
	City    string
	NAFCode string
}

// CompanyHint looks an identifier up on the free API. Best effort: any
// failure yields an empty hint, never an error.
func (c *GouvClient) CompanyHint(ctx context.Context, siren string) Hint {
	params := url.Values{}
	params.Set("q", siren)
	params.Set("page", "1")
	params.Set("per_page", "1")

	body, err := c.get(ctx, "/search", params)
	if err != nil {
		c.log.Debug("free lookup failed", zap.String("siren", siren), zap.Error(err))
		return Hint{}
	}

	d, err := parseDoc(body)
	if err != nil {
		return Hint{}
	}
	results := d.list("results")
	if len(results) == 0 {
		results = d.list("resultats")
	}
	if len(results) == 0 {
		return Hint{}
	}

	first := results[0]
	return Hint{
		Name:    first.str(hintNamePaths...),
		Siret:   csvio.Digits(first.str(hintSiretPaths...)),
		City:    first.str(hintCityPaths...),
		NAFCode: first.str(hintNAFPaths...),
	}
}
