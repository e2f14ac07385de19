// Package datagen generates Sparkify-shaped source data: song metadata
// documents and app event log lines, encoded as newline-delimited JSON the
// warehouse COPY can ingest.
package datagen

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
)

// Event is one app log line. Field names match the original event log
// schema, which is why they are camelCase.
type Event struct {
	Artist        string   `json:"artist"`
	Auth          string   `json:"auth"`
	FirstName     string   `json:"firstName"`
	Gender        string   `json:"gender"`
	ItemInSession int      `json:"itemInSession"`
	LastName      string   `json:"lastName"`
	Length        *float64 `json:"length"`
	Level         string   `json:"level"`
	Location      string   `json:"location"`
	Method        string   `json:"method"`
	Page          string   `json:"page"`
	Registration  float64  `json:"registration"`
	SessionID     int      `json:"sessionId"`
	Song          string   `json:"song"`
	Status        int      `json:"status"`
	TS            int64    `json:"ts"`
	UserAgent     string   `json:"userAgent"`
	UserID        *int     `json:"userId"`
}

// Song is one song metadata document.
type Song struct {
	NumSongs        int      `json:"num_songs"`
	ArtistID        string   `json:"artist_id"`
	ArtistLatitude  *float64 `json:"artist_latitude"`
	ArtistLongitude *float64 `json:"artist_longitude"`
	ArtistLocation  string   `json:"artist_location"`
	ArtistName      string   `json:"artist_name"`
	SongID          string   `json:"song_id"`
	Title           string   `json:"title"`
	Duration        float64  `json:"duration"`
	Year            int      `json:"year"`
}

// EventJSONPaths is the JSONPaths document COPY uses to map event
// attributes onto staging_events columns. Entry order must match the
// staging_events column order in the schema DDL.
const EventJSONPaths = `{
    "jsonpaths": [
        "$['artist']",
        "$['auth']",
        "$['firstName']",
        "$['gender']",
        "$['itemInSession']",
        "$['lastName']",
        "$['length']",
        "$['level']",
        "$['location']",
        "$['method']",
        "$['page']",
        "$['registration']",
        "$['sessionId']",
        "$['song']",
        "$['status']",
        "$['ts']",
        "$['userAgent']",
        "$['userId']"
    ]
}`

// Generator produces fake source data using gofakeit.
type Generator struct {
	faker *gofakeit.Faker
}

// NewGenerator creates a Generator with a random seed.
func NewGenerator() *Generator {
	return &Generator{faker: gofakeit.New(uint64(time.Now().UnixNano()))}
}

// NewGeneratorWithSeed creates a Generator with a specific seed for
// reproducibility.
func NewGeneratorWithSeed(seed uint64) *Generator {
	return &Generator{faker: gofakeit.New(seed)}
}

// Songs generates n song metadata documents with unique song and artist ids.
func (g *Generator) Songs(n int) []Song {
	songs := make([]Song, 0, n)
	for i := 0; i < n; i++ {
		var lat, lon *float64
		if g.faker.Bool() {
			la := g.faker.Latitude()
			lo := g.faker.Longitude()
			lat, lon = &la, &lo
		}
		songs = append(songs, Song{
			NumSongs:        1,
			ArtistID:        "AR" + strings.ToUpper(g.faker.LetterN(12)),
			ArtistLatitude:  lat,
			ArtistLongitude: lon,
			ArtistLocation:  fmt.Sprintf("%s, %s", g.faker.City(), g.faker.StateAbr()),
			ArtistName:      g.faker.Name(),
			SongID:          "SO" + strings.ToUpper(g.faker.LetterN(12)),
			Title:           strings.TrimSuffix(g.faker.Sentence(3), "."),
			Duration:        g.faker.Float64Range(60, 600),
			Year:            g.faker.Number(1960, 2018),
		})
	}
	return songs
}

// listener is the per-user state shared across that user's events.
type listener struct {
	id       int
	first    string
	last     string
	gender   string
	level    string
	location string
	agent    string
	regTS    int64
}

// Events generates n event log lines over a 30-day window. Roughly 80% are
// NextSong plays; of those, about a third reference a generated song by
// title, artist name, and duration so the fact-table join finds matches.
func (g *Generator) Events(n int, songs []Song) []Event {
	numUsers := max(1, n/25)
	window := time.Date(2018, time.November, 1, 0, 0, 0, 0, time.UTC)

	users := make([]listener, 0, numUsers)
	for i := 0; i < numUsers; i++ {
		users = append(users, listener{
			id:       i + 1,
			first:    g.faker.FirstName(),
			last:     g.faker.LastName(),
			gender:   g.faker.RandomString([]string{"F", "M"}),
			level:    g.faker.RandomString([]string{"free", "free", "paid"}),
			location: fmt.Sprintf("%s, %s", g.faker.City(), g.faker.StateAbr()),
			agent:    g.faker.UserAgent(),
			regTS:    window.Add(-time.Duration(g.faker.Number(1, 365*24)) * time.Hour).UnixMilli(),
		})
	}

	events := make([]Event, 0, n)
	for i := 0; i < n; i++ {
		u := users[g.faker.Number(0, len(users)-1)]
		ts := window.Add(time.Duration(g.faker.Number(0, 30*24*3600)) * time.Second).UnixMilli()

		ev := Event{
			Auth:          "Logged In",
			FirstName:     u.first,
			Gender:        u.gender,
			ItemInSession: g.faker.Number(0, 50),
			LastName:      u.last,
			Level:         u.level,
			Location:      u.location,
			Method:        "GET",
			Page:          g.faker.RandomString([]string{"Home", "Roll Advert", "Settings", "Logout"}),
			Registration:  float64(u.regTS),
			SessionID:     g.faker.Number(1, n),
			Status:        200,
			TS:            ts,
			UserAgent:     u.agent,
			UserID:        &u.id,
		}

		if g.faker.Number(1, 100) <= 80 {
			ev.Page = "NextSong"
			ev.Method = "PUT"
			if len(songs) > 0 && g.faker.Number(1, 100) <= 33 {
				s := songs[g.faker.Number(0, len(songs)-1)]
				ev.Artist = s.ArtistName
				ev.Song = s.Title
				ev.Length = &s.Duration
			} else {
				length := g.faker.Float64Range(60, 600)
				ev.Artist = g.faker.Name()
				ev.Song = strings.TrimSuffix(g.faker.Sentence(3), ".")
				ev.Length = &length
			}
		}

		events = append(events, ev)
	}
	return events
}

// EncodeNDJSON marshals items as newline-delimited JSON, one object per
// line, the format COPY expects.
func EncodeNDJSON[T any](items []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, item := range items {
		if err := enc.Encode(item); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
