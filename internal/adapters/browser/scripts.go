package browser

import (
	"encoding/json"
	"fmt"
)

const consentScript = `(function () {
  const selectors = [
    'button[aria-label="Accept all"]',
    'button[aria-label="Tout accepter"]',
    'button[aria-label="I agree"]',
    'button.VfPpkd-LgbsSe-OWXEXe-k8QpJ'
  ];
  for (const sel of selectors) {
    const btn = document.querySelector(sel);
    if (btn) {
      btn.click();
      return true;
    }
  }
  return false;
})();`

// noResultsJS is true when the page shows the empty-search banner. It
// mirrors noResults in parse.go.
const noResultsJS = `function noResults(sel, phrases) {
  if (document.querySelector(sel)) return true;
  if (document.querySelector('h1.DUwDvf')) return false;
  const main = document.querySelector('div[role="main"]');
  const txt = ((main && main.innerText) || '').toLowerCase();
  return phrases.some(p => txt.includes(p));
}`

// listingStateScript: "feed" | "empty" | "place" | "".
var listingStateScript = fmt.Sprintf(`(function (sel, phrases) {
  %s
  if (document.querySelector('div[role="feed"]')) return 'feed';
  if (noResults(sel, phrases)) return 'empty';
  if (document.querySelector('h1.DUwDvf')) return 'place';
  return '';
})(%q, %s);`, noResultsJS, selNoResults, jsStrings(noResultsPhrases))

// reviewStateScript: "reviews" when review cards are rendered, "clicked"
// after opening the reviews tab, "none" when the place has no reviews tab,
// "" while the place is still loading.
const reviewStateScript = `(function () {
  if (document.querySelector('div.jftiEf, div[data-review-id]')) return 'reviews';
  if (!document.querySelector('h1.DUwDvf')) return '';
  const candidates = Array.from(document.querySelectorAll('button.hh2c6, button[role="tab"], button[aria-label*="review" i], button[aria-label*="avis" i]'));
  const tab = candidates.find(b => /review|avis/i.test((b.getAttribute('aria-label') || '') + ' ' + b.textContent));
  if (!tab) return 'none';
  tab.click();
  return 'clicked';
})();`

const expandScript = `(function () {
  const buttons = document.querySelectorAll('button.w8nwRe, button[aria-label="See more"], button[aria-label="Voir plus"]');
  buttons.forEach(b => b.click());
  return buttons.length;
})();`

// snapshotScript returns the smallest subtree holding the entries.
const snapshotScript = `(function () {
  const feed = document.querySelector('div[role="feed"]');
  if (feed) return feed.outerHTML;
  const card = document.querySelector('div.jftiEf, div[data-review-id]');
  if (card) {
    const pane = card.closest('div.m6QErb');
    if (pane) return pane.outerHTML;
  }
  return document.body ? document.body.outerHTML : '';
})();`

// scrollScript scrolls the container of the given role to the bottom and
// reports {found, end}. end is set when the feed prints its end marker, or
// when a search has no feed because nothing matched.
func scrollScript(role string) string {
	return fmt.Sprintf(scrollScriptTmpl, noResultsJS, role, selNoResults, jsStrings(noResultsPhrases))
}

const scrollScriptTmpl = `(function (role, sel, phrases) {
  %s
  let box = null;
  if (role === 'listing') {
    box = document.querySelector('div[role="feed"]');
  } else {
    const card = document.querySelector('div.jftiEf, div[data-review-id]');
    box = card ? card.closest('div.m6QErb') : null;
    if (!box) box = document.querySelector('div.m6QErb.DxyBCb');
  }
  if (!box) return {found: false, end: role === 'listing' && noResults(sel, phrases)};
  box.scrollTo(0, box.scrollHeight);
  const end = role === 'listing' && !!document.querySelector('span.HlvSq');
  return {found: true, end: end};
})(%q, %q, %s);`

func jsStrings(ss []string) string {
	b, _ := json.Marshal(ss)
	return string(b)
}
