// Package discover produces de-duplicated sets of company identifiers from
// the upstream search endpoints, traversing either the paid API's opaque
// cursor or the free API's page numbers over the Cartesian product of the
// requested filter dimensions.
package discover

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"sirenscope/internal/filter"
	"sirenscope/internal/registry"
)

// Source selects the search API to traverse.
type Source string

const (
	SourcePappers Source = "pappers"
	SourceGouv    Source = "gouv"
)

// ParseSource validates a source flag value.
func ParseSource(s string) (Source, error) {
	switch Source(s) {
	case SourcePappers, SourceGouv:
		return Source(s), nil
	default:
		return "", eris.Errorf("unknown search source %q (want pappers or gouv)", s)
	}
}

// Dimensions are the filter axes. Discovery iterates their Cartesian product
// and unions the identifier sets of every combination.
type Dimensions struct {
	NAFCodes      []string
	Departments   []string
	Keywords      []string
	Purposes      []string
	MaxBirthDate  string // already formatted for the target API
	IncludeCeased bool
	Limit         int // 0 = unlimited
}

const defaultCursorPageSize = 500

// Discovery runs identifier searches against one or both registries.
type Discovery struct {
	pappers *registry.PappersClient
	gouv    *registry.GouvClient
	log     *zap.Logger

	// PageSize is the cursor page size for the paid API (max 1000).
	PageSize int
}

// New creates a Discovery. Either client may be nil when the corresponding
// source is not used.
func New(pappers *registry.PappersClient, gouv *registry.GouvClient, log *zap.Logger) *Discovery {
	return &Discovery{pappers: pappers, gouv: gouv, log: log, PageSize: defaultCursorPageSize}
}

// collector is an ordered set with an optional size cap.
type collector struct {
	seen  map[string]struct{}
	order []string
	limit int
}

func newCollector(limit int) *collector {
	return &collector{seen: make(map[string]struct{}), limit: limit}
}

// add returns false once the cap is reached.
func (c *collector) add(id string) bool {
	if c.full() {
		return false
	}
	if _, dup := c.seen[id]; !dup {
		c.seen[id] = struct{}{}
		c.order = append(c.order, id)
	}
	return !c.full()
}

func (c *collector) full() bool {
	return c.limit > 0 && len(c.order) >= c.limit
}

// Run unions the identifier sets of every dimension combination. A failing
// combination is logged and skipped; only context cancellation aborts the
// whole discovery.
func (d *Discovery) Run(ctx context.Context, source Source, dims Dimensions) ([]string, error) {
	out := newCollector(dims.Limit)

	nafs := dims.NAFCodes
	if len(nafs) == 0 {
		nafs = []string{""}
	}

	switch source {
	case SourceGouv:
		deps := dims.Departments
		if len(deps) == 0 {
			deps = []string{""}
		}
		for _, dep := range deps {
			for _, naf := range nafs {
				if out.full() {
					break
				}
				f := registry.GouvFilter{
					NAFCode:      naf,
					Department:   dep,
					MaxBirthDate: dims.MaxBirthDate,
					ActiveOnly:   !dims.IncludeCeased,
				}
				if err := d.pageTraversal(ctx, f, out); err != nil {
					if ctx.Err() != nil {
						return out.order, ctx.Err()
					}
					d.log.Warn("search combination failed, skipping",
						zap.String("naf", naf), zap.String("department", dep), zap.Error(err))
				}
			}
		}

	case SourcePappers:
		// The paid search accepts a comma list of departments in one call.
		deps := strings.Join(dims.Departments, ",")
		for _, naf := range nafs {
			base := registry.SearchFilter{
				NAFCode:       naf,
				Departments:   deps,
				MaxBirthDate:  dims.MaxBirthDate,
				IncludeCeased: dims.IncludeCeased,
			}
			for _, f := range expand(base, dims.Keywords, dims.Purposes) {
				if out.full() {
					break
				}
				if err := d.cursorTraversal(ctx, f, out); err != nil {
					if ctx.Err() != nil {
						return out.order, ctx.Err()
					}
					d.log.Warn("search combination failed, skipping",
						zap.String("naf", naf), zap.String("keyword", f.Keyword),
						zap.String("purpose", f.Purpose), zap.Error(err))
				}
				d.log.Info("search combination done",
					zap.String("naf", naf), zap.String("keyword", f.Keyword),
					zap.String("purpose", f.Purpose), zap.Int("cumulative", len(out.order)))
			}
		}
	}

	return out.order, nil
}

// expand turns the keyword and purpose variants into concrete filters. With
// no variants the base filter is searched once.
func expand(base registry.SearchFilter, keywords, purposes []string) []registry.SearchFilter {
	if len(keywords) == 0 && len(purposes) == 0 {
		return []registry.SearchFilter{base}
	}
	var out []registry.SearchFilter
	for _, kw := range keywords {
		f := base
		f.Keyword = kw
		out = append(out, f)
	}
	for _, p := range purposes {
		f := base
		f.Purpose = p
		out = append(out, f)
	}
	return out
}

// cursorTraversal walks the opaque-cursor search. It stops on a raw-empty
// page, an absent next cursor, or a next cursor equal to the current one
// (which would otherwise loop forever on a misbehaving upstream). A page
// whose entries all failed identifier validation still advances: later pages
// may carry valid identifiers.
func (d *Discovery) cursorTraversal(ctx context.Context, f registry.SearchFilter, out *collector) error {
	cursor := "*"
	for {
		page, err := d.pappers.SearchCompanies(ctx, f, cursor, d.PageSize)
		if err != nil {
			return err
		}
		for _, id := range page.Sirens {
			if !out.add(id) {
				return nil
			}
		}
		if page.ResultCount == 0 || page.NextCursor == "" || page.NextCursor == cursor {
			return nil
		}
		cursor = page.NextCursor
	}
}

// pageTraversal walks the numbered-page search until past total_pages.
func (d *Discovery) pageTraversal(ctx context.Context, f registry.GouvFilter, out *collector) error {
	page, totalPages := 1, 1
	for page <= totalPages {
		res, err := d.gouv.SearchPage(ctx, f, page, registry.GouvMaxPerPage)
		if err != nil {
			return err
		}
		for _, id := range res.Sirens {
			if !out.add(id) {
				return nil
			}
		}
		if res.TotalPages > 0 {
			totalPages = res.TotalPages
		}
		d.log.Debug("page fetched",
			zap.Int("page", page), zap.Int("total_pages", totalPages),
			zap.Int("cumulative", len(out.order)))
		page++
	}
	return nil
}

// Validate fetches each candidate's detail record and keeps those the keyword
// profile classifies into the target sector. Lookup failures discard the
// candidate.
func (d *Discovery) Validate(ctx context.Context, candidates []string, profile filter.Profile) ([]string, error) {
	var kept []string
	for i, siren := range candidates {
		if ctx.Err() != nil {
			return kept, ctx.Err()
		}
		rec, err := d.pappers.GetCompany(ctx, siren)
		if err != nil {
			d.log.Debug("validation lookup failed, discarding",
				zap.String("siren", siren), zap.Error(err))
			continue
		}
		if profile.Keep(rec) {
			kept = append(kept, siren)
		}
		if (i+1)%25 == 0 {
			d.log.Info("validating candidates",
				zap.Int("checked", i+1), zap.Int("total", len(candidates)), zap.Int("kept", len(kept)))
		}
	}
	return kept, nil
}
