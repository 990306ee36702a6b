package mysql

import (
	"context"
	"database/sql"
	"strings"

	"bank_reviews/internal/domain"
)

// maxBatch keeps a multi-row insert well under max_allowed_packet.
const maxBatch = 200

func valStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func nonEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

// Append makes the repo usable as a crawl sink.
func (r *Repo) Append(ctx context.Context, recs []domain.ReviewRecord) error {
	return r.UpsertReviews(ctx, recs)
}

// UpsertReviews is idempotent on (url, fingerprint): re-running a crawl
// updates rows instead of duplicating them.
func (r *Repo) UpsertReviews(ctx context.Context, recs []domain.ReviewRecord) error {
	for len(recs) > 0 {
		n := min(len(recs), maxBatch)
		if err := r.upsertBatch(ctx, recs[:n]); err != nil {
			return err
		}
		recs = recs[n:]
	}
	return nil
}

func (r *Repo) upsertBatch(ctx context.Context, rs []domain.ReviewRecord) error {
	values := make([]string, 0, len(rs))
	args := make([]any, 0, len(rs)*10) // 10 params per row
	for _, rv := range rs {
		values = append(values, "(?,?,?,?,?,?,?,?,?,?)")
		args = append(args,
			rv.URL,
			rv.Fingerprint,
			rv.AgencyName,
			rv.Bank,
			rv.Location,
			rv.City,
			rv.Text,
			rv.Rating,
			valStr(rv.Date), // review_date, NULL when unresolved
			rv.Language,
		)
	}
	sqlStr := insertReviewsPrefix + strings.Join(values, ",") + insertReviewsOnDup
	_, err := r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *Repo) LogFailure(ctx context.Context, f domain.WorkUnitFailure) error {
	reason := ""
	if f.Err != nil {
		reason = f.Err.Error()
	}
	_, err := r.db.ExecContext(ctx, insertFailureSQL,
		string(f.Kind), f.Bank, f.City, nonEmpty(f.Branch), nonEmpty(f.URL), reason)
	return err
}

func (r *Repo) ListReviews(ctx context.Context, q domain.ReviewsQuery) (domain.ReviewsPage, error) {
	bank, city := valStr(q.Bank), valStr(q.City)
	rows, err := r.db.QueryContext(ctx, listReviewsSQL, bank, bank, city, city, q.Limit)
	if err != nil {
		return domain.ReviewsPage{}, err
	}
	defer rows.Close()

	out := []domain.ReviewRecord{}
	for rows.Next() {
		var rv domain.ReviewRecord
		var date sql.NullTime
		if err := rows.Scan(
			&rv.AgencyName,
			&rv.Bank,
			&rv.Location,
			&rv.City,
			&rv.Text,
			&rv.Rating,
			&date, // DATE, needs parseTime=true in the DSN
			&rv.Language,
			&rv.URL,
			&rv.Fingerprint,
		); err != nil {
			return domain.ReviewsPage{}, err
		}
		if date.Valid {
			d := date.Time.Format("2006-01-02")
			rv.Date = &d
		}
		out = append(out, rv)
	}
	if err := rows.Err(); err != nil {
		return domain.ReviewsPage{}, err
	}
	return domain.ReviewsPage{Items: out}, nil
}

func (r *Repo) BankStats(ctx context.Context, bank *string) ([]domain.BankStats, error) {
	b := valStr(bank)
	rows, err := r.db.QueryContext(ctx, bankStatsSQL, b, b)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.BankStats{}
	for rows.Next() {
		var st domain.BankStats
		var avg sql.NullFloat64
		if err := rows.Scan(&st.Bank, &st.City, &st.Branches, &st.Reviews, &avg); err != nil {
			return nil, err
		}
		st.AvgRating = avg.Float64
		out = append(out, st)
	}
	return out, rows.Err()
}
