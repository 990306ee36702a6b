package browser

import (
	"strings"
	"testing"
)

func TestListingStateScript_ReportsEmptySearch(t *testing.T) {
	for _, want := range []string{`'empty'`, `"div.Q2vNVc"`, `"ne trouve pas"`} {
		if !strings.Contains(listingStateScript, want) {
			t.Fatalf("listing state script lacks %s", want)
		}
	}
}

func TestScrollScript_EndsEmptySearch(t *testing.T) {
	s := scrollScript("listing")
	if !strings.Contains(s, `("listing", "div.Q2vNVc", [`) {
		t.Fatalf("arguments not bound: %s", s[len(s)-120:])
	}
	if !strings.Contains(s, "noResults(sel, phrases)") {
		t.Fatal("scroll script does not check the empty-search banner")
	}
}
