// Package pipeline defines the ordered SQL statement batches that load the
// Sparkify source data into staging tables and reshape it into the star
// schema, plus the runner that executes them over a single warehouse
// connection.
//
// Statements are represented as data (ordered name/table/SQL triples) rather
// than inline literals so the ordering invariants - staging before targets,
// dimensions before fact - are enforceable and testable without a warehouse.
package pipeline

// Table names managed by the pipeline.
const (
	TableStagingEvents = "staging_events"
	TableStagingSongs  = "staging_songs"
	TableUsers         = "users"
	TableTime          = "time"
	TableArtists       = "artists"
	TableSongs         = "songs"
	TableSongplays     = "songplays"
)

// Statement is one SQL statement in the pipeline, tagged with the table it
// targets.
type Statement struct {
	// Name identifies the statement in logs and errors.
	Name string

	// Table is the table the statement writes to (or drops/creates).
	Table string

	// SQL is the statement text.
	SQL string
}

// StagingTables returns the staging tables in load order.
func StagingTables() []string {
	return []string{TableStagingEvents, TableStagingSongs}
}

// DimensionTables returns the dimension tables in population order.
func DimensionTables() []string {
	return []string{TableUsers, TableTime, TableSongs, TableArtists}
}

// TargetTables returns the star schema tables in population order. The fact
// table is last because its INSERT joins the songs and artists dimensions.
func TargetTables() []string {
	return append(DimensionTables(), TableSongplays)
}

// AllTables returns every table the pipeline owns, staging first.
func AllTables() []string {
	return append(StagingTables(), TargetTables()...)
}
