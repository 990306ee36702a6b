package app

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"bank_reviews/internal/domain"
)

/********** tiny helpers **********/

var (
	whitespace = regexp.MustCompile(`\s+`)
	firstNum   = regexp.MustCompile(`\d+(?:[.,]\d+)?`)
)

// normalizeText lowercases, trims and squeezes inner whitespace so the same
// review read again after a scroll compares equal.
func normalizeText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return whitespace.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), " ")
}

func cleanText(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\u00a0", " "))
}

/********** listing mapper **********/

// mapCandidate turns a listing entry into a candidate, or ErrMalformedEntry
// when the name or url is missing.
func mapCandidate(e domain.Entry, bank, city string) (domain.BranchCandidate, error) {
	name, url := cleanText(e.Name), strings.TrimSpace(e.URL)
	if name == "" || url == "" {
		return domain.BranchCandidate{}, fmt.Errorf("%w: listing name=%q url=%q", domain.ErrMalformedEntry, name, url)
	}
	addr := cleanText(e.Address)
	if addr == "" {
		addr = city
	}
	return domain.BranchCandidate{Name: name, Bank: bank, City: city, Address: addr, URL: url}, nil
}

// relevant reports whether a listing name looks like a branch of bank.
// An empty keyword list accepts everything.
func relevant(name, bank string, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	n := normalizeText(name)
	if strings.Contains(n, normalizeText(bank)) {
		return true
	}
	for _, k := range keywords {
		if k = normalizeText(k); k != "" && strings.Contains(n, k) {
			return true
		}
	}
	return false
}

/********** review mapper **********/

// parseRating reads the star count from text like "4", "4 stars",
// "Rated 4.0 out of 5" or "4 étoiles".
func parseRating(s string) (int, bool) {
	m := firstNum.FindString(s)
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", "."), 64)
	if err != nil {
		return 0, false
	}
	n := int(f)
	if float64(n) != f || n < 1 || n > 5 {
		return 0, false
	}
	return n, true
}

func mapRawReview(e domain.Entry) (domain.RawReview, error) {
	rating, ok := parseRating(e.Rating)
	if !ok {
		return domain.RawReview{}, fmt.Errorf("%w: review rating %q", domain.ErrMalformedEntry, e.Rating)
	}
	return domain.RawReview{
		Text:       cleanText(e.Text),
		Rating:     rating,
		TimePhrase: cleanText(e.TimePhrase),
		Author:     cleanText(e.Author),
	}, nil
}

// fingerprint identifies a review within a branch when the source exposes no
// stable id: normalized text, rating and normalized relative phrase.
func fingerprint(r domain.RawReview) string {
	sig := strings.Join([]string{normalizeText(r.Text), strconv.Itoa(r.Rating), normalizeText(r.TimePhrase)}, "|")
	sum := sha1.Sum([]byte(sig))
	return hex.EncodeToString(sum[:])
}

func mapRecord(b domain.BranchCandidate, r domain.RawReview, fp string, now time.Time, lang LanguageDetector) domain.ReviewRecord {
	return domain.ReviewRecord{
		AgencyName:  b.Name,
		Bank:        b.Bank,
		Location:    b.Address,
		City:        b.City,
		Text:        r.Text,
		Rating:      r.Rating,
		Date:        formatDate(r.TimePhrase, now),
		Language:    lang.Detect(r.Text),
		URL:         b.URL,
		Fingerprint: fp,
	}
}
