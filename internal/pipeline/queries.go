package pipeline

import (
	"fmt"

	"github.com/sparkifydata/sparkify-etl/internal/config"
)

// copyEventsSQLTmpl bulk-loads event log NDJSON into staging_events. The
// JSONPaths file maps the camelCase log attributes onto the staging columns
// positionally; ts stays an epoch-millisecond BIGINT until the transform.
const copyEventsSQLTmpl = `
COPY staging_events
FROM '%s'
IAM_ROLE '%s'
REGION '%s'
FORMAT AS JSON '%s'`

// copySongsSQLTmpl bulk-loads song metadata NDJSON into staging_songs. The
// document fields already match the staging column names, so 'auto' mapping
// is enough.
const copySongsSQLTmpl = `
COPY staging_songs
FROM '%s'
IAM_ROLE '%s'
REGION '%s'
FORMAT AS JSON 'auto'`

// CopyStatements returns the two bulk-load statements for the configured
// bucket prefixes, events first.
func CopyStatements(cfg *config.Config) []Statement {
	return []Statement{
		{
			Name:  "copy_" + TableStagingEvents,
			Table: TableStagingEvents,
			SQL: fmt.Sprintf(copyEventsSQLTmpl,
				cfg.S3.LogData, cfg.IAMRole.ARN, cfg.S3.Region, cfg.S3.LogJSONPath),
		},
		{
			Name:  "copy_" + TableStagingSongs,
			Table: TableStagingSongs,
			SQL: fmt.Sprintf(copySongsSQLTmpl,
				cfg.S3.SongData, cfg.IAMRole.ARN, cfg.S3.Region),
		},
	}
}

// insertUsersSQL keeps one row per user_id, taking the attributes from the
// user's most recent event so a mid-month free-to-paid upgrade lands on the
// current level.
const insertUsersSQL = `
INSERT INTO users (user_id, first_name, last_name, gender, level)
SELECT user_id, first_name, last_name, gender, level
FROM (
    SELECT user_id, first_name, last_name, gender, level,
           ROW_NUMBER() OVER (PARTITION BY user_id ORDER BY ts DESC) AS rn
    FROM staging_events
    WHERE page = 'NextSong' AND user_id IS NOT NULL
) ranked
WHERE rn = 1`

// insertTimeSQL expands each distinct play timestamp into calendar parts.
// Timestamps arrive as epoch milliseconds.
const insertTimeSQL = `
INSERT INTO time (start_time, hour, day, week, month, year, weekday)
SELECT start_time,
       EXTRACT(hour FROM start_time),
       EXTRACT(day FROM start_time),
       EXTRACT(week FROM start_time),
       EXTRACT(month FROM start_time),
       EXTRACT(year FROM start_time),
       EXTRACT(dow FROM start_time)
FROM (
    SELECT DISTINCT TIMESTAMP 'epoch' + ts / 1000 * INTERVAL '1 second' AS start_time
    FROM staging_events
    WHERE page = 'NextSong'
) stamps`

const insertSongsSQL = `
INSERT INTO songs (song_id, title, artist_id, year, duration)
SELECT song_id, title, artist_id, year, duration
FROM (
    SELECT song_id, title, artist_id, year, duration,
           ROW_NUMBER() OVER (PARTITION BY song_id ORDER BY title) AS rn
    FROM staging_songs
    WHERE song_id IS NOT NULL
) ranked
WHERE rn = 1`

const insertArtistsSQL = `
INSERT INTO artists (artist_id, name, location, latitude, longitude)
SELECT artist_id, artist_name, artist_location, artist_latitude, artist_longitude
FROM (
    SELECT artist_id, artist_name, artist_location, artist_latitude, artist_longitude,
           ROW_NUMBER() OVER (PARTITION BY artist_id ORDER BY artist_name) AS rn
    FROM staging_songs
    WHERE artist_id IS NOT NULL
) ranked
WHERE rn = 1`

// insertSongplaysSQL matches log events against the song catalog by title,
// artist name, and duration. LEFT JOINs keep plays with no catalog match;
// their song_id/artist_id stay NULL, which is the normal case for this
// dataset.
const insertSongplaysSQL = `
INSERT INTO songplays (start_time, user_id, level, song_id, artist_id, session_id, location, user_agent)
SELECT TIMESTAMP 'epoch' + e.ts / 1000 * INTERVAL '1 second',
       e.user_id,
       e.level,
       s.song_id,
       a.artist_id,
       e.session_id,
       e.location,
       e.user_agent
FROM staging_events e
LEFT JOIN songs s
       ON s.title = e.song
      AND s.duration = e.length
LEFT JOIN artists a
       ON a.artist_id = s.artist_id
      AND a.name = e.artist
WHERE e.page = 'NextSong'`

// InsertStatements returns the INSERT...SELECT statements that populate the
// star schema from staging. Order matters: songplays is last because its
// SELECT joins the songs and artists dimensions.
func InsertStatements() []Statement {
	return []Statement{
		{Name: "insert_" + TableUsers, Table: TableUsers, SQL: insertUsersSQL},
		{Name: "insert_" + TableTime, Table: TableTime, SQL: insertTimeSQL},
		{Name: "insert_" + TableSongs, Table: TableSongs, SQL: insertSongsSQL},
		{Name: "insert_" + TableArtists, Table: TableArtists, SQL: insertArtistsSQL},
		{Name: "insert_" + TableSongplays, Table: TableSongplays, SQL: insertSongplaysSQL},
	}
}
