package app_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"bank_reviews/internal/app"
	"bank_reviews/internal/domain"
)

func newSearch(opts app.SearchOptions) *app.ListingSearch {
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = app.NoRetry()
	}
	return app.NewListingSearch(app.NoDelay(), opts)
}

func TestSearch_CapsAtMaxInFeedOrder(t *testing.T) {
	web := newWeb()
	web.pageSize = 4
	var feed []domain.Entry
	for i := 0; i < 15; i++ {
		feed = append(feed, listing(fmt.Sprintf("Test Bank %02d", i), fmt.Sprintf("u%02d", i)))
	}
	web.listings["Test Bank Testville"] = feed

	s := &fakeSession{web: web}
	got, st, err := newSearch(app.SearchOptions{}).Search(context.Background(), s, "Test Bank", "Testville", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 10 {
		t.Fatalf("candidates: %d", len(got))
	}
	for i, c := range got {
		if c.URL != fmt.Sprintf("u%02d", i) || c.Bank != "Test Bank" || c.City != "Testville" {
			t.Fatalf("candidate %d: %+v", i, c)
		}
	}
	if st.Loads != 2 {
		t.Fatalf("loads: %d (4 visible, then 8, then 12)", st.Loads)
	}
}

func TestSearch_DedupFilterAndMalformed(t *testing.T) {
	web := newWeb()
	web.listings["CIH Bank Rabat Morocco"] = []domain.Entry{
		listing("CIH Bank Agdal", "a"),
		listing("CIH Bank Agdal (ATM)", "a"), // same place
		listing("Pizza Palace", "p"),         // not a bank
		{Name: "", URL: "x"},                 // malformed
		{Name: "Agence Hassan", URL: ""},     // malformed
		{Name: "Agence Hassan", URL: "h"},    // generic keyword
	}
	s := &fakeSession{web: web}
	got, st, err := newSearch(app.SearchOptions{Region: "Morocco", RelevanceKeywords: app.DefaultRelevanceKeywords}).
		Search(context.Background(), s, "CIH Bank", "Rabat", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].URL != "a" || got[1].URL != "h" {
		t.Fatalf("candidates: %+v", got)
	}
	if got[1].Address != "Rabat" {
		t.Fatalf("missing address should fall back to the city, got %q", got[1].Address)
	}
	if st.Duplicates != 1 || st.Filtered != 1 || st.Malformed != 2 {
		t.Fatalf("stats: %+v", st)
	}
	if navs := web.navigated(); len(navs) != 1 || navs[0] != "CIH Bank Rabat Morocco" {
		t.Fatalf("navigations: %v", navs)
	}
}

func TestSearch_ZeroResultsIsNotAnError(t *testing.T) {
	s := &fakeSession{web: newWeb()}
	got, _, err := newSearch(app.SearchOptions{}).Search(context.Background(), s, "Nobank", "Nowhere", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("got %d", len(got))
	}
}

func TestSearch_NeverReadyIsQueryFailure(t *testing.T) {
	web := newWeb()
	web.notReady["Test Bank Testville"] = true
	s := &fakeSession{web: web}

	_, _, err := newSearch(app.SearchOptions{Retry: fastRetry(2)}).Search(context.Background(), s, "Test Bank", "Testville", 10)
	var wf *domain.WorkUnitFailure
	if !errors.As(err, &wf) {
		t.Fatalf("want WorkUnitFailure, got %v", err)
	}
	if wf.Kind != domain.UnitQuery || wf.Bank != "Test Bank" || !errors.Is(err, domain.ErrTransientRender) {
		t.Fatalf("failure: %+v", wf)
	}
	if n := len(web.navigated()); n != 2 {
		t.Fatalf("navigations: %d, want one per attempt", n)
	}
}
