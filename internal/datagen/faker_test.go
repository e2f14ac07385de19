package datagen

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestSongs(t *testing.T) {
	g := NewGeneratorWithSeed(42)
	songs := g.Songs(50)

	if len(songs) != 50 {
		t.Fatalf("Expected 50 songs, got %d", len(songs))
	}

	seenSongs := make(map[string]bool)
	for _, s := range songs {
		if !strings.HasPrefix(s.SongID, "SO") || len(s.SongID) != 14 {
			t.Errorf("Malformed song id: %q", s.SongID)
		}
		if !strings.HasPrefix(s.ArtistID, "AR") || len(s.ArtistID) != 14 {
			t.Errorf("Malformed artist id: %q", s.ArtistID)
		}
		if seenSongs[s.SongID] {
			t.Errorf("Duplicate song id: %s", s.SongID)
		}
		seenSongs[s.SongID] = true

		if s.NumSongs != 1 {
			t.Errorf("Song %s has num_songs %d, want 1", s.SongID, s.NumSongs)
		}
		if s.Title == "" || s.ArtistName == "" {
			t.Errorf("Song %s missing title or artist", s.SongID)
		}
		if s.Duration < 60 || s.Duration > 600 {
			t.Errorf("Song %s duration %f out of range", s.SongID, s.Duration)
		}
		if s.Year < 1960 || s.Year > 2018 {
			t.Errorf("Song %s year %d out of range", s.SongID, s.Year)
		}
		if (s.ArtistLatitude == nil) != (s.ArtistLongitude == nil) {
			t.Errorf("Song %s has mismatched coordinates", s.SongID)
		}
	}
}

func TestEvents(t *testing.T) {
	g := NewGeneratorWithSeed(42)
	songs := g.Songs(20)
	events := g.Events(500, songs)

	if len(events) != 500 {
		t.Fatalf("Expected 500 events, got %d", len(events))
	}

	catalog := make(map[string]Song, len(songs))
	for _, s := range songs {
		catalog[s.Title] = s
	}

	windowStart := time.Date(2018, time.November, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	windowEnd := time.Date(2018, time.December, 1, 0, 0, 0, 0, time.UTC).UnixMilli()

	var plays, matched int
	for _, e := range events {
		if e.TS < windowStart || e.TS > windowEnd {
			t.Errorf("Event timestamp %d outside the generation window", e.TS)
		}
		if e.UserID == nil || *e.UserID < 1 {
			t.Error("Event missing user id")
		}

		if e.Page != "NextSong" {
			if e.Song != "" || e.Length != nil {
				t.Errorf("Non-play event on page %q carries song fields", e.Page)
			}
			continue
		}

		plays++
		if e.Method != "PUT" {
			t.Errorf("Play event uses method %q, want PUT", e.Method)
		}
		if e.Song == "" || e.Artist == "" || e.Length == nil {
			t.Error("Play event missing song, artist, or length")
			continue
		}
		if s, ok := catalog[e.Song]; ok && s.ArtistName == e.Artist && s.Duration == *e.Length {
			matched++
		}
	}

	// Roughly 80% of events are plays and about a third of those reference
	// the generated catalog. Bounds are loose; the shape is what matters.
	if plays < 300 {
		t.Errorf("Only %d of 500 events are plays", plays)
	}
	if matched == 0 {
		t.Error("No play references the generated song catalog")
	}
	if matched == plays {
		t.Error("Every play matched the catalog; expected unmatched plays too")
	}
}

func TestEventsWithoutCatalog(t *testing.T) {
	g := NewGeneratorWithSeed(7)
	events := g.Events(100, nil)

	for _, e := range events {
		if e.Page == "NextSong" && (e.Song == "" || e.Length == nil) {
			t.Error("Play event missing song fields with an empty catalog")
		}
	}
}

func TestGeneratorDeterminism(t *testing.T) {
	a := NewGeneratorWithSeed(99)
	b := NewGeneratorWithSeed(99)

	songsA, songsB := a.Songs(30), b.Songs(30)
	encA, err := EncodeNDJSON(songsA)
	if err != nil {
		t.Fatalf("EncodeNDJSON failed: %v", err)
	}
	encB, err := EncodeNDJSON(songsB)
	if err != nil {
		t.Fatalf("EncodeNDJSON failed: %v", err)
	}
	if !bytes.Equal(encA, encB) {
		t.Error("Same seed should generate identical songs")
	}

	eventsA, eventsB := a.Events(100, songsA), b.Events(100, songsB)
	encA, _ = EncodeNDJSON(eventsA)
	encB, _ = EncodeNDJSON(eventsB)
	if !bytes.Equal(encA, encB) {
		t.Error("Same seed should generate identical events")
	}
}

func TestEncodeNDJSON(t *testing.T) {
	g := NewGeneratorWithSeed(42)
	events := g.Events(10, nil)

	data, err := EncodeNDJSON(events)
	if err != nil {
		t.Fatalf("EncodeNDJSON failed: %v", err)
	}

	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	if len(lines) != 10 {
		t.Fatalf("Expected 10 lines, got %d", len(lines))
	}

	for _, line := range lines {
		var decoded map[string]any
		if err := json.Unmarshal([]byte(line), &decoded); err != nil {
			t.Fatalf("Line is not valid JSON: %v\n%s", err, line)
		}
		// Attribute names must match the app log schema exactly or the
		// JSONPaths mapping misses them during COPY.
		for _, key := range []string{"firstName", "lastName", "itemInSession", "sessionId", "userAgent", "userId", "ts"} {
			if _, ok := decoded[key]; !ok {
				t.Errorf("Encoded event missing attribute %q", key)
			}
		}
	}
}

func TestEventJSONPaths(t *testing.T) {
	var doc struct {
		JSONPaths []string `json:"jsonpaths"`
	}
	if err := json.Unmarshal([]byte(EventJSONPaths), &doc); err != nil {
		t.Fatalf("EventJSONPaths is not valid JSON: %v", err)
	}

	// One path per staging_events column, in column order.
	if len(doc.JSONPaths) != 18 {
		t.Fatalf("Expected 18 jsonpaths, got %d", len(doc.JSONPaths))
	}
	if doc.JSONPaths[0] != "$['artist']" {
		t.Errorf("First path is %q, want $['artist']", doc.JSONPaths[0])
	}
	if doc.JSONPaths[len(doc.JSONPaths)-1] != "$['userId']" {
		t.Errorf("Last path is %q, want $['userId']", doc.JSONPaths[len(doc.JSONPaths)-1])
	}
}
