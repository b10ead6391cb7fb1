package enrich

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"sirenscope/internal/dates"
	"sirenscope/internal/filter"
	"sirenscope/internal/registry"
)

func detailServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		siren := r.URL.Query().Get("siren")
		switch siren {
		case "000000404":
			w.WriteHeader(http.StatusNotFound)
		case "000000500":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			fmt.Fprintf(w, `{"siren": %q, "denomination": "Company %s", "siege": {"ville": "Paris"}}`, siren, siren)
		}
	}))
}

func testEnricher(t *testing.T, srv *httptest.Server, opts Options) *Enricher {
	t.Helper()
	pappers := registry.NewPappersClient("k", zap.NewNop()).
		WithBaseURL(srv.URL).WithRetryPause(time.Millisecond)
	return New(pappers, nil, opts, zap.NewNop())
}

func TestRunPreservesInputOrder(t *testing.T) {
	srv := detailServer(t)
	defer srv.Close()

	sirens := []string{"111111111", "222222222", "333333333", "444444444", "555555555"}
	e := testEnricher(t, srv, Options{
		Concurrency: 3,
		BatchSize:   2,
		Spec:        filter.Spec{Mode: filter.ModeCompanies},
	})

	rows, stats, err := e.Run(context.Background(), sirens)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(rows) != len(sirens) {
		t.Fatalf("rows = %d, want %d", len(rows), len(sirens))
	}
	for i, siren := range sirens {
		if got := rows[i]["siren"]; got != siren {
			t.Errorf("rows[%d] siren = %q, want %q (output order must follow input order)", i, got, siren)
		}
	}
	if stats.Processed != 5 || stats.Failed != 0 || stats.Rows != 5 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestRunSkipsFailuresAndCountsNotFound(t *testing.T) {
	srv := detailServer(t)
	defer srv.Close()

	sirens := []string{"111111111", "000000404", "000000500", "222222222"}
	e := testEnricher(t, srv, Options{Spec: filter.Spec{Mode: filter.ModeCompanies}})

	rows, stats, err := e.Run(context.Background(), sirens)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want the two resolvable identifiers", len(rows))
	}
	if rows[0]["siren"] != "111111111" || rows[1]["siren"] != "222222222" {
		t.Errorf("rows = %v, %v", rows[0]["siren"], rows[1]["siren"])
	}
	if stats.Total != 4 || stats.Processed != 3 || stats.NotFound != 1 || stats.Failed != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestRunAppliesFilter(t *testing.T) {
	srv := detailServer(t)
	defer srv.Close()

	e := testEnricher(t, srv, Options{Spec: filter.Spec{
		Mode:   filter.ModeCompanies,
		Cities: []string{"Lyon"},
	}})

	rows, stats, err := e.Run(context.Background(), []string{"111111111"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("rows = %d, want 0 after the city filter", len(rows))
	}
	// Filtered out is still processed.
	if stats.Processed != 1 || stats.Rows != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestEconomyModePrefersFreeFields(t *testing.T) {
	paid := detailServer(t)
	defer paid.Close()

	free := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results": [{
			"nom_complet": "FREE NAME",
			"siege": {"ville": "Lyon"},
			"activite_principale": "78.20Z"
		}]}`)
	}))
	defer free.Close()

	pappers := registry.NewPappersClient("k", zap.NewNop()).
		WithBaseURL(paid.URL).WithRetryPause(time.Millisecond)
	gouv := registry.NewGouvClient(zap.NewNop()).
		WithBaseURL(free.URL).WithRetryPause(time.Millisecond)
	e := New(pappers, gouv, Options{
		Economy: true,
		Spec:    filter.Spec{Mode: filter.ModeCompanies},
	}, zap.NewNop())

	rows, _, err := e.Run(context.Background(), []string{"111111111"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	if got := rows[0]["denomination"]; got != "FREE NAME" {
		t.Errorf("denomination = %q, want the free registry's value", got)
	}
	if got := rows[0]["ville_siege"]; got != "Lyon" {
		t.Errorf("ville_siege = %q, want the free registry's value", got)
	}
	if got := rows[0]["code_naf"]; got != "78.20Z" {
		t.Errorf("code_naf = %q, want the free registry's value", got)
	}
}

func TestEconomyDirectorsModeAvoidsDetailEndpoint(t *testing.T) {
	paid := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/recherche-dirigeants":
			if got := r.URL.Query().Get("date_de_naissance_dirigeant_max"); got != "31-12-1962" {
				t.Errorf("date_de_naissance_dirigeant_max = %q", got)
			}
			fmt.Fprint(w, `{"total": 2, "page": 1, "resultats": [
				{"nom": "Martin", "prenom": "Claire", "qualite": "Président", "date_de_naissance": "1955-03-02"},
				{"nom": "Petit", "prenom": "Luc", "qualite": "Gérant", "date_de_naissance": "1970-01-01"}
			]}`)
		default:
			t.Errorf("economy directors run called the detail endpoint: %s", r.URL.Path)
			w.WriteHeader(http.StatusForbidden)
		}
	}))
	defer paid.Close()

	free := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results": [{
			"nom_complet": "ACME INTERIM",
			"siege": {"ville": "Paris"},
			"activite_principale": "78.20Z"
		}]}`)
	}))
	defer free.Close()

	pappers := registry.NewPappersClient("k", zap.NewNop()).
		WithBaseURL(paid.URL).WithRetryPause(time.Millisecond)
	gouv := registry.NewGouvClient(zap.NewNop()).
		WithBaseURL(free.URL).WithRetryPause(time.Millisecond)
	e := New(pappers, gouv, Options{
		Economy: true,
		Spec: filter.Spec{
			Mode:   filter.ModeDirectors,
			Cutoff: dates.Parse("1962-12-31"),
		},
	}, zap.NewNop())

	rows, stats, err := e.Run(context.Background(), []string{"552081317"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// The 1970 director passes the upstream pre-filter here but not the
	// local strict cutoff.
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	row := rows[0]
	if row["dir_nom"] != "Martin" || row["dir_date_naissance"] != "1955-03-02" {
		t.Errorf("director row = %v", row)
	}
	if row["denomination"] != "ACME INTERIM" || row["ville_siege"] != "Paris" || row["code_naf"] != "78.20Z" {
		t.Errorf("company fields = %q/%q/%q, want the free registry's values",
			row["denomination"], row["ville_siege"], row["code_naf"])
	}
	if stats.Processed != 1 || stats.Rows != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestEconomyDirectorsModeTreats404AsNoDirectors(t *testing.T) {
	paid := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer paid.Close()
	free := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results": []}`)
	}))
	defer free.Close()

	pappers := registry.NewPappersClient("k", zap.NewNop()).
		WithBaseURL(paid.URL).WithRetryPause(time.Millisecond)
	gouv := registry.NewGouvClient(zap.NewNop()).
		WithBaseURL(free.URL).WithRetryPause(time.Millisecond)
	e := New(pappers, gouv, Options{
		Economy: true,
		Spec:    filter.Spec{Mode: filter.ModeDirectors},
	}, zap.NewNop())

	rows, stats, err := e.Run(context.Background(), []string{"552081317"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("rows = %d, want 0", len(rows))
	}
	if stats.Processed != 1 || stats.Failed != 0 || stats.NotFound != 0 {
		t.Errorf("stats = %+v, want the identifier processed without error", stats)
	}
}

func TestRunCancellation(t *testing.T) {
	srv := detailServer(t)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := testEnricher(t, srv, Options{Spec: filter.Spec{Mode: filter.ModeCompanies}})
	_, _, err := e.Run(ctx, []string{"111111111", "222222222"})
	if err == nil {
		t.Fatalf("Run succeeded on a cancelled context")
	}
}
