package mysql

// Note: `text` is reserved; keep it quoted everywhere.
const insertReviewsPrefix = "INSERT INTO reviews\n  (url, fingerprint, agency_name, bank, location, city, `text`, rating, review_date, language)\nVALUES "

// A re-crawl refreshes branch details; a review date once resolved is kept
// when the new phrase is not understood.
const insertReviewsOnDup = " ON DUPLICATE KEY UPDATE\n" +
	"  agency_name = VALUES(agency_name),\n" +
	"  location    = VALUES(location),\n" +
	"  `text`      = VALUES(`text`),\n" +
	"  review_date = COALESCE(VALUES(review_date), reviews.review_date),\n" +
	"  language    = VALUES(language),\n" +
	"  updated_at  = CURRENT_TIMESTAMP\n"

const insertFailureSQL = `
INSERT INTO crawl_failures (kind, bank, city, branch, url, reason)
VALUES (?, ?, ?, ?, ?, ?)
`

// -----------------------------------------------------------------------------
// READ QUERIES
// -----------------------------------------------------------------------------

// NULL filters match everything.
const listReviewsSQL = `
SELECT
  agency_name,
  bank,
  location,
  city,
  ` + "`text`" + `,
  rating,
  review_date,
  language,
  url,
  fingerprint
FROM reviews
WHERE (? IS NULL OR bank = ?)
  AND (? IS NULL OR city = ?)
ORDER BY crawled_at DESC, id DESC
LIMIT ?
`

const bankStatsSQL = `
SELECT
  bank,
  city,
  COUNT(DISTINCT url_hash) AS branches,
  COUNT(*)                 AS reviews,
  AVG(rating)              AS avg_rating
FROM reviews
WHERE (? IS NULL OR bank = ?)
GROUP BY bank, city
ORDER BY bank, city
`
