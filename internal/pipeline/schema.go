package pipeline

import (
	"fmt"
)

// Dialect selects the DDL variant. Redshift is the production target; the
// postgres dialect lets the same pipeline run against stock PostgreSQL so
// the transform statements can be integration tested.
type Dialect string

const (
	DialectRedshift Dialect = "redshift"
	DialectPostgres Dialect = "postgres"
)

// ParseDialect validates a dialect name.
func ParseDialect(s string) (Dialect, error) {
	switch Dialect(s) {
	case DialectRedshift, DialectPostgres:
		return Dialect(s), nil
	default:
		return "", fmt.Errorf("unknown dialect: %q", s)
	}
}

// Column order in staging_events must match datagen.EventJSONPaths, which
// COPY uses to map event attributes onto columns positionally.
const createStagingEventsSQL = `
CREATE TABLE staging_events (
    artist          VARCHAR(512),
    auth            VARCHAR(32),
    first_name      VARCHAR(128),
    gender          VARCHAR(4),
    item_in_session INTEGER,
    last_name       VARCHAR(128),
    length          DOUBLE PRECISION,
    level           VARCHAR(16),
    location        VARCHAR(512),
    method          VARCHAR(8),
    page            VARCHAR(64),
    registration    DOUBLE PRECISION,
    session_id      INTEGER,
    song            VARCHAR(512),
    status          INTEGER,
    ts              BIGINT,
    user_agent      VARCHAR(512),
    user_id         INTEGER
)`

const createStagingSongsSQL = `
CREATE TABLE staging_songs (
    num_songs        INTEGER,
    artist_id        VARCHAR(32),
    artist_latitude  DOUBLE PRECISION,
    artist_longitude DOUBLE PRECISION,
    artist_location  VARCHAR(512),
    artist_name      VARCHAR(512),
    song_id          VARCHAR(32),
    title            VARCHAR(512),
    duration         DOUBLE PRECISION,
    year             INTEGER
)`

func createUsersSQL(d Dialect) string {
	attrs := ""
	if d == DialectRedshift {
		attrs = "\nDISTSTYLE ALL\nSORTKEY (user_id)"
	}
	return `
CREATE TABLE users (
    user_id    INTEGER NOT NULL PRIMARY KEY,
    first_name VARCHAR(128),
    last_name  VARCHAR(128),
    gender     VARCHAR(4),
    level      VARCHAR(16)
)` + attrs
}

func createTimeSQL(d Dialect) string {
	attrs := ""
	if d == DialectRedshift {
		attrs = "\nDISTSTYLE ALL\nSORTKEY (start_time)"
	}
	return `
CREATE TABLE time (
    start_time TIMESTAMP NOT NULL PRIMARY KEY,
    hour       SMALLINT NOT NULL,
    day        SMALLINT NOT NULL,
    week       SMALLINT NOT NULL,
    month      SMALLINT NOT NULL,
    year       SMALLINT NOT NULL,
    weekday    SMALLINT NOT NULL
)` + attrs
}

func createArtistsSQL(d Dialect) string {
	attrs := ""
	if d == DialectRedshift {
		attrs = "\nDISTSTYLE ALL\nSORTKEY (artist_id)"
	}
	return `
CREATE TABLE artists (
    artist_id VARCHAR(32) NOT NULL PRIMARY KEY,
    name      VARCHAR(512),
    location  VARCHAR(512),
    latitude  DOUBLE PRECISION,
    longitude DOUBLE PRECISION
)` + attrs
}

func createSongsSQL(d Dialect) string {
	attrs := ""
	if d == DialectRedshift {
		attrs = "\nSORTKEY (song_id)"
	}
	return `
CREATE TABLE songs (
    song_id   VARCHAR(32) NOT NULL PRIMARY KEY,
    title     VARCHAR(512),
    artist_id VARCHAR(32),
    year      INTEGER,
    duration  DOUBLE PRECISION
)` + attrs
}

func createSongplaysSQL(d Dialect) string {
	key := "songplay_id BIGINT IDENTITY(0,1)"
	attrs := "\nDISTKEY (song_id)\nSORTKEY (start_time)"
	if d == DialectPostgres {
		key = "songplay_id BIGSERIAL"
		attrs = ""
	}
	return fmt.Sprintf(`
CREATE TABLE songplays (
    %s,
    start_time TIMESTAMP NOT NULL,
    user_id    INTEGER,
    level      VARCHAR(16),
    song_id    VARCHAR(32),
    artist_id  VARCHAR(32),
    session_id INTEGER,
    location   VARCHAR(512),
    user_agent VARCHAR(512)
)`, key) + attrs
}

// DropStatements returns DROP IF EXISTS statements for every managed table,
// fact table first so the drops stay valid if foreign keys are ever added.
func DropStatements() []Statement {
	order := []string{
		TableSongplays,
		TableUsers,
		TableTime,
		TableArtists,
		TableSongs,
		TableStagingEvents,
		TableStagingSongs,
	}
	stmts := make([]Statement, 0, len(order))
	for _, table := range order {
		stmts = append(stmts, Statement{
			Name:  "drop_" + table,
			Table: table,
			SQL:   fmt.Sprintf("DROP TABLE IF EXISTS %s", table),
		})
	}
	return stmts
}

// CreateStatements returns CREATE statements for every managed table in the
// given dialect: staging first, then dimensions, then the fact table.
func CreateStatements(d Dialect) []Statement {
	return []Statement{
		{Name: "create_" + TableStagingEvents, Table: TableStagingEvents, SQL: createStagingEventsSQL},
		{Name: "create_" + TableStagingSongs, Table: TableStagingSongs, SQL: createStagingSongsSQL},
		{Name: "create_" + TableUsers, Table: TableUsers, SQL: createUsersSQL(d)},
		{Name: "create_" + TableTime, Table: TableTime, SQL: createTimeSQL(d)},
		{Name: "create_" + TableArtists, Table: TableArtists, SQL: createArtistsSQL(d)},
		{Name: "create_" + TableSongs, Table: TableSongs, SQL: createSongsSQL(d)},
		{Name: "create_" + TableSongplays, Table: TableSongplays, SQL: createSongplaysSQL(d)},
	}
}
