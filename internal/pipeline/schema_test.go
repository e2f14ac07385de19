package pipeline

import (
	"strings"
	"testing"
)

func TestParseDialect(t *testing.T) {
	tests := []struct {
		in      string
		want    Dialect
		wantErr bool
	}{
		{in: "redshift", want: DialectRedshift},
		{in: "postgres", want: DialectPostgres},
		{in: "mysql", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDialect(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseDialect(%q) expected error, got %q", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDialect(%q) failed: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseDialect(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDropStatementsCoverAllTables(t *testing.T) {
	drops := DropStatements()
	if len(drops) != len(AllTables()) {
		t.Fatalf("Expected %d drop statements, got %d", len(AllTables()), len(drops))
	}

	dropped := make(map[string]bool)
	for _, stmt := range drops {
		if !strings.HasPrefix(stmt.SQL, "DROP TABLE IF EXISTS ") {
			t.Errorf("Statement %s is not a guarded drop: %q", stmt.Name, stmt.SQL)
		}
		if !strings.Contains(stmt.SQL, stmt.Table) {
			t.Errorf("Statement %s does not reference its table %s", stmt.Name, stmt.Table)
		}
		dropped[stmt.Table] = true
	}

	for _, table := range AllTables() {
		if !dropped[table] {
			t.Errorf("Table %s is never dropped", table)
		}
	}

	// The fact table must be dropped before the tables it references.
	if drops[0].Table != TableSongplays {
		t.Errorf("Expected songplays dropped first, got %s", drops[0].Table)
	}
}

func TestCreateStatementsOrder(t *testing.T) {
	creates := CreateStatements(DialectRedshift)
	if len(creates) != len(AllTables()) {
		t.Fatalf("Expected %d create statements, got %d", len(AllTables()), len(creates))
	}

	// Staging tables come first so loads never race schema creation, and the
	// fact table comes last.
	if creates[0].Table != TableStagingEvents || creates[1].Table != TableStagingSongs {
		t.Errorf("Expected staging tables first, got %s, %s",
			creates[0].Table, creates[1].Table)
	}
	if creates[len(creates)-1].Table != TableSongplays {
		t.Errorf("Expected songplays created last, got %s", creates[len(creates)-1].Table)
	}

	for _, stmt := range creates {
		if !strings.Contains(stmt.SQL, "CREATE TABLE "+stmt.Table) {
			t.Errorf("Statement %s does not create its table %s", stmt.Name, stmt.Table)
		}
	}
}

func TestCreateStatementsRedshiftDialect(t *testing.T) {
	for _, stmt := range CreateStatements(DialectRedshift) {
		if stmt.Table == TableSongplays {
			if !strings.Contains(stmt.SQL, "IDENTITY(0,1)") {
				t.Error("Redshift songplays should use an IDENTITY surrogate key")
			}
			if !strings.Contains(stmt.SQL, "DISTKEY") || !strings.Contains(stmt.SQL, "SORTKEY") {
				t.Error("Redshift songplays should carry distribution and sort keys")
			}
			if strings.Contains(stmt.SQL, "BIGSERIAL") {
				t.Error("Redshift songplays must not use BIGSERIAL")
			}
		}
	}
}

func TestCreateStatementsPostgresDialect(t *testing.T) {
	for _, stmt := range CreateStatements(DialectPostgres) {
		if strings.Contains(stmt.SQL, "DISTKEY") ||
			strings.Contains(stmt.SQL, "SORTKEY") ||
			strings.Contains(stmt.SQL, "DISTSTYLE") {
			t.Errorf("Postgres dialect statement %s contains Redshift attributes", stmt.Name)
		}
		if stmt.Table == TableSongplays && !strings.Contains(stmt.SQL, "BIGSERIAL") {
			t.Error("Postgres songplays should use a BIGSERIAL surrogate key")
		}
	}
}

func TestTableGroups(t *testing.T) {
	if len(StagingTables()) != 2 {
		t.Errorf("Expected 2 staging tables, got %d", len(StagingTables()))
	}
	if len(DimensionTables()) != 4 {
		t.Errorf("Expected 4 dimension tables, got %d", len(DimensionTables()))
	}
	if len(AllTables()) != 7 {
		t.Errorf("Expected 7 managed tables, got %d", len(AllTables()))
	}

	targets := TargetTables()
	if targets[len(targets)-1] != TableSongplays {
		t.Errorf("Fact table must be last target, got %s", targets[len(targets)-1])
	}
}
