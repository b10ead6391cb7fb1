package discover

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"sirenscope/internal/registry"
)

func sirenJSON(ids ...string) string {
	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = fmt.Sprintf(`{"siren": %q}`, id)
	}
	return "[" + strings.Join(quoted, ",") + "]"
}

func TestCursorTraversal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("curseur") {
		case "*":
			fmt.Fprintf(w, `{"resultats": %s, "curseurSuivant": "c2", "total": 3}`, sirenJSON("111111111", "222222222"))
		case "c2":
			// Overlapping page with a repeated cursor: traversal must
			// de-duplicate and stop instead of looping.
			fmt.Fprintf(w, `{"resultats": %s, "curseurSuivant": "c2", "total": 3}`, sirenJSON("222222222", "333333333"))
		default:
			t.Errorf("unexpected cursor %q", r.URL.Query().Get("curseur"))
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	defer srv.Close()

	pappers := registry.NewPappersClient("k", zap.NewNop()).
		WithBaseURL(srv.URL).WithRetryPause(time.Millisecond)
	d := New(pappers, nil, zap.NewNop())

	got, err := d.Run(context.Background(), SourcePappers, Dimensions{NAFCodes: []string{"78.20Z"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []string{"111111111", "222222222", "333333333"}
	if len(got) != len(want) {
		t.Fatalf("identifiers = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("identifiers = %v, want %v", got, want)
		}
	}
}

func TestCursorTraversalSkipsMalformedPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("curseur") {
		case "*":
			// Every entry on this page fails the 9-digit check, but the
			// cursor chain continues.
			fmt.Fprintf(w, `{"resultats": %s, "curseurSuivant": "c2", "total": 3}`, sirenJSON("12AB3", "1234"))
		case "c2":
			fmt.Fprintf(w, `{"resultats": %s, "total": 3}`, sirenJSON("111111111"))
		default:
			t.Errorf("unexpected cursor %q", r.URL.Query().Get("curseur"))
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	defer srv.Close()

	pappers := registry.NewPappersClient("k", zap.NewNop()).
		WithBaseURL(srv.URL).WithRetryPause(time.Millisecond)
	d := New(pappers, nil, zap.NewNop())

	got, err := d.Run(context.Background(), SourcePappers, Dimensions{NAFCodes: []string{"78.20Z"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(got) != 1 || got[0] != "111111111" {
		t.Fatalf("identifiers = %v, want the valid identifier from the second page", got)
	}
}

func TestPageTraversalAcrossDimensions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		naf := r.URL.Query().Get("activite_principale")
		page := r.URL.Query().Get("page")
		switch {
		case naf == "78.20Z" && page == "1":
			fmt.Fprintf(w, `{"results": %s, "total_pages": 2}`, sirenJSON("111111111"))
		case naf == "78.20Z" && page == "2":
			fmt.Fprintf(w, `{"results": %s, "total_pages": 2}`, sirenJSON("222222222"))
		case naf == "78.30Z":
			// Overlaps the first code's result set.
			fmt.Fprintf(w, `{"results": %s, "total_pages": 1}`, sirenJSON("222222222", "333333333"))
		default:
			fmt.Fprint(w, `{"results": [], "total_pages": 1}`)
		}
	}))
	defer srv.Close()

	gouv := registry.NewGouvClient(zap.NewNop()).
		WithBaseURL(srv.URL).WithRetryPause(time.Millisecond)
	d := New(nil, gouv, zap.NewNop())

	got, err := d.Run(context.Background(), SourceGouv, Dimensions{
		NAFCodes:    []string{"78.20Z", "78.30Z"},
		Departments: []string{"75"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []string{"111111111", "222222222", "333333333"}
	if len(got) != len(want) {
		t.Fatalf("identifiers = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("identifiers = %v, want %v", got, want)
		}
	}
}

func TestLimitStopsEarly(t *testing.T) {
	var pagesServed int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pagesServed++
		fmt.Fprintf(w, `{"results": %s, "total_pages": 100}`,
			sirenJSON("100000001", "100000002", "100000003"))
	}))
	defer srv.Close()

	gouv := registry.NewGouvClient(zap.NewNop()).
		WithBaseURL(srv.URL).WithRetryPause(time.Millisecond)
	d := New(nil, gouv, zap.NewNop())

	got, err := d.Run(context.Background(), SourceGouv, Dimensions{Limit: 3})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("identifiers = %d, want limit of 3", len(got))
	}
	if pagesServed != 1 {
		t.Errorf("pages served = %d, want traversal to stop at the limit", pagesServed)
	}
}

func TestFailingCombinationIsSkipped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("activite_principale") == "78.20Z" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprintf(w, `{"results": %s, "total_pages": 1}`, sirenJSON("111111111"))
	}))
	defer srv.Close()

	gouv := registry.NewGouvClient(zap.NewNop()).
		WithBaseURL(srv.URL).WithRetryPause(time.Millisecond)
	d := New(nil, gouv, zap.NewNop())

	got, err := d.Run(context.Background(), SourceGouv, Dimensions{
		NAFCodes: []string{"78.20Z", "78.30Z"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(got) != 1 || got[0] != "111111111" {
		t.Fatalf("identifiers = %v, want the surviving combination only", got)
	}
}

func TestRateLimitedRunMatchesCleanRun(t *testing.T) {
	pages := func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "1" {
			fmt.Fprintf(w, `{"results": %s, "total_pages": 2}`, sirenJSON("111111111", "222222222"))
			return
		}
		fmt.Fprintf(w, `{"results": %s, "total_pages": 2}`, sirenJSON("333333333"))
	}

	clean := httptest.NewServer(http.HandlerFunc(pages))
	defer clean.Close()

	var calls int
	flaky := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		pages(w, r)
	}))
	defer flaky.Close()

	run := func(url string) []string {
		gouv := registry.NewGouvClient(zap.NewNop()).
			WithBaseURL(url).WithRetryPause(time.Millisecond)
		got, err := New(nil, gouv, zap.NewNop()).Run(context.Background(), SourceGouv, Dimensions{})
		if err != nil {
			t.Fatalf("Run against %s: %v", url, err)
		}
		return got
	}

	cleanIDs, flakyIDs := run(clean.URL), run(flaky.URL)
	if len(cleanIDs) != len(flakyIDs) {
		t.Fatalf("rate-limited run = %v, clean run = %v", flakyIDs, cleanIDs)
	}
	for i := range cleanIDs {
		if cleanIDs[i] != flakyIDs[i] {
			t.Fatalf("rate-limited run = %v, clean run = %v", flakyIDs, cleanIDs)
		}
	}
}

func TestParseSource(t *testing.T) {
	if _, err := ParseSource("pappers"); err != nil {
		t.Errorf("ParseSource(pappers): %v", err)
	}
	if _, err := ParseSource("insee"); err == nil {
		t.Errorf("ParseSource accepted an unknown source")
	}
}
