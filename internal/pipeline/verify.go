package pipeline

import (
	"context"
	"fmt"

	"github.com/sparkifydata/sparkify-etl/internal/db"
)

// Check is a post-load consistency query returning a single count.
type Check struct {
	// Name identifies the check.
	Name string

	// Description explains what the count means.
	Description string

	// SQL is a query returning exactly one bigint column.
	SQL string

	// WantZero marks checks whose count indicates a defect when non-zero.
	WantZero bool
}

// CheckResult is the outcome of one executed check.
type CheckResult struct {
	Check Check
	Count int64
}

// Failed reports whether the result violates the check's expectation.
func (r CheckResult) Failed() bool {
	return r.Check.WantZero && r.Count != 0
}

// Checks returns the consistency checks run by the verify command: row
// counts for reporting, plus duplicate-key and orphaned-reference counts
// that must all be zero after a successful run.
func Checks() []Check {
	counts := []Check{
		{Name: "staging_events_rows", Description: "rows loaded into staging_events",
			SQL: "SELECT COUNT(*) FROM staging_events"},
		{Name: "staging_songs_rows", Description: "rows loaded into staging_songs",
			SQL: "SELECT COUNT(*) FROM staging_songs"},
		{Name: "songplays_rows", Description: "fact rows in songplays",
			SQL: "SELECT COUNT(*) FROM songplays"},
	}

	for _, dim := range []struct{ table, key string }{
		{TableUsers, "user_id"},
		{TableTime, "start_time"},
		{TableSongs, "song_id"},
		{TableArtists, "artist_id"},
	} {
		counts = append(counts, Check{
			Name:        "duplicate_" + dim.table,
			Description: fmt.Sprintf("%s values appearing more than once in %s", dim.key, dim.table),
			SQL: fmt.Sprintf(`
SELECT COUNT(*) FROM (
    SELECT %s FROM %s GROUP BY %s HAVING COUNT(*) > 1
) dups`, dim.key, dim.table, dim.key),
			WantZero: true,
		})
	}

	for _, ref := range []struct{ dim, key string }{
		{TableUsers, "user_id"},
		{TableSongs, "song_id"},
		{TableArtists, "artist_id"},
		{TableTime, "start_time"},
	} {
		counts = append(counts, Check{
			Name:        "orphaned_songplays_" + ref.key,
			Description: fmt.Sprintf("songplays rows whose %s is missing from %s", ref.key, ref.dim),
			SQL: fmt.Sprintf(`
SELECT COUNT(*)
FROM songplays sp
LEFT JOIN %s d ON d.%s = sp.%s
WHERE sp.%s IS NOT NULL AND d.%s IS NULL`,
				ref.dim, ref.key, ref.key, ref.key, ref.key),
			WantZero: true,
		})
	}

	return counts
}

// RunChecks executes every check and returns the results in order. A query
// failure aborts the whole verification.
func RunChecks(ctx context.Context, exec db.Executor) ([]CheckResult, error) {
	checks := Checks()
	results := make([]CheckResult, 0, len(checks))
	for _, check := range checks {
		var count int64
		if err := exec.QueryRow(ctx, check.SQL).Scan(&count); err != nil {
			return nil, &StatementError{
				Statement: Statement{Name: "check_" + check.Name, SQL: check.SQL},
				Err:       err,
			}
		}
		results = append(results, CheckResult{Check: check, Count: count})
	}
	return results, nil
}
