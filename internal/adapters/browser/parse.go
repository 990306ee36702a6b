package browser

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"bank_reviews/internal/domain"
)

// Maps markup. Class names are generated by the site and change without
// notice; every field keeps a fallback.
const (
	selListingCard    = "div.Nv2PK"
	selListingName    = ".qBF1Pd, .fontHeadlineSmall"
	selListingLink    = "a.hfpxzc"
	selListingRow     = "div.W4Efsd div.W4Efsd"
	selListingRowAlt  = "div.W4Efsd"
	selListingStats   = ".MW4etd, .UY7F9, .ZkP5Je"
	selPlaceTitle     = "h1.DUwDvf"
	selPlaceAddress   = "button[data-item-id='address'], div.rogA2c"
	selReviewCard     = "div.jftiEf"
	selReviewFallback = "div[data-review-id], div.gws-localreviews__google-review"
	selReviewText     = "span.wiI7pd, div.MyEned span"
	selReviewDate     = "span.rsqaWe, span.dehysf"
	selReviewAuthor   = "div.d4r55, .WNxzHc"
	selReviewStars    = "span.kvMYJc, span[role='img'][aria-label]"
	selActiveStar     = "img[src*='star_active'], span.vzX5Ic"
	selNoResults      = "div.Q2vNVc"
	selMainPane       = "div[role='main']"
)

// noResultsPhrases are matched against the lowercased main pane when the
// empty-search banner has no recognizable class.
var noResultsPhrases = []string{"can't find", "can’t find", "no results", "ne trouve pas", "aucun résultat"}

// infoSeparators are the glyphs Maps puts between category and address.
var infoSeparators = []string{"·", "⋅", "•"}

// ParseListings extracts the result cards of a search page. A search that
// matched exactly one place renders that place instead of a feed; it is
// returned as a single entry located at pageURL.
func ParseListings(html, pageURL string) ([]domain.Entry, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse listings: %w", err)
	}

	cards := doc.Find(selListingCard)
	if cards.Length() == 0 {
		if noResults(doc.Selection) {
			return nil, nil
		}
		title := text(doc.Find(selPlaceTitle).First())
		if title == "" {
			return nil, nil
		}
		return []domain.Entry{{
			Name:    title,
			Address: placeAddress(doc.Selection),
			URL:     pageURL,
		}}, nil
	}

	out := make([]domain.Entry, 0, cards.Length())
	cards.Each(func(_ int, card *goquery.Selection) {
		link := card.Find(selListingLink).First()
		name := text(card.Find(selListingName).First())
		if name == "" {
			name, _ = link.Attr("aria-label")
		}
		href, _ := link.Attr("href")
		out = append(out, domain.Entry{
			Name:    strings.TrimSpace(name),
			Address: listingAddress(card),
			URL:     strings.TrimSpace(href),
		})
	})
	return out, nil
}

// listingAddress reads the first info line, "Bank · 12 Rue X", and keeps
// its last text span.
func listingAddress(card *goquery.Selection) string {
	row := card.Find(selListingRow).First()
	if row.Length() == 0 {
		row = card.Find(selListingRowAlt).First()
	}
	var addr string
	row.Find("span").Each(func(_ int, s *goquery.Selection) {
		if s.Children().Length() > 0 || s.Is(selListingStats) {
			return
		}
		t := text(s)
		for _, sep := range infoSeparators {
			t = strings.TrimSpace(strings.TrimPrefix(t, sep))
		}
		if t == "" || isSeparator(t) {
			return
		}
		addr = t
	})
	return addr
}

func placeAddress(root *goquery.Selection) string {
	s := root.Find(selPlaceAddress).First()
	if a, ok := s.Attr("aria-label"); ok {
		if i := strings.Index(a, ":"); i >= 0 {
			a = a[i+1:]
		}
		return strings.TrimSpace(a)
	}
	return text(s)
}

// ParseReviews extracts the review cards currently rendered in the reviews
// panel, in page order. Nested cards carrying the same review are read once.
func ParseReviews(html string) ([]domain.Entry, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse reviews: %w", err)
	}

	cards := doc.Find(selReviewCard)
	if cards.Length() == 0 {
		// outermost fallback cards only
		cards = doc.Find(selReviewFallback).FilterFunction(func(_ int, s *goquery.Selection) bool {
			return s.ParentsFiltered(selReviewFallback).Length() == 0
		})
	}

	out := make([]domain.Entry, 0, cards.Length())
	cards.Each(func(_ int, card *goquery.Selection) {
		out = append(out, domain.Entry{
			Text:       text(card.Find(selReviewText).First()),
			Rating:     reviewRating(card),
			TimePhrase: text(card.Find(selReviewDate).First()),
			Author:     text(card.Find(selReviewAuthor).First()),
		})
	})
	return out, nil
}

// reviewRating returns the raw star label ("4 stars", "4 étoiles"); when
// only star icons are rendered the active ones are counted.
func reviewRating(card *goquery.Selection) string {
	var label string
	card.Find(selReviewStars).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		a, _ := s.Attr("aria-label")
		la := strings.ToLower(a)
		if strings.Contains(la, "star") || strings.Contains(la, "étoile") {
			label = strings.TrimSpace(a)
			return false
		}
		return true
	})
	if label != "" {
		return label
	}
	if n := card.Find(selActiveStar).Length(); n > 0 {
		return fmt.Sprint(n)
	}
	return ""
}

// noResults reports the banner Maps shows for a search that matched
// nothing. The side panel may still hold the title of a place opened
// earlier, so the banner wins over the place fallback.
func noResults(root *goquery.Selection) bool {
	if root.Find(selNoResults).Length() > 0 {
		return true
	}
	if root.Find(selPlaceTitle).Length() > 0 {
		return false
	}
	pane := strings.ToLower(text(root.Find(selMainPane)))
	for _, p := range noResultsPhrases {
		if strings.Contains(pane, p) {
			return true
		}
	}
	return false
}

func text(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}

func isSeparator(s string) bool {
	for _, sep := range infoSeparators {
		if s == sep {
			return true
		}
	}
	return false
}
