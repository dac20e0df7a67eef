package sink

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/motillonc/leetify-tools/model"
)

// Document is one archived text of a run. Summaries have an empty MatchID.
type Document struct {
	RunID     string
	MatchID   string
	Kind      string
	Body      string
	CreatedAt time.Time
}

// Archive keeps the documents of every run in a SQLite database, so runs can be compared later.
type Archive struct {
	db    *sql.DB
	runID string
}

// OpenArchive opens (and creates, if needed) the archive at path. All writes are attributed to runID.
func OpenArchive(path, runID string) (*Archive, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sink: create archive directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sink: open archive: %w", err)
	}
	// SQLite allows a single writer; serialize at the pool.
	db.SetMaxOpenConns(1)

	archive := &Archive{db, runID}
	if err := archive.init(); err != nil {
		db.Close()
		return nil, err
	}
	return archive, nil
}

func (a *Archive) init() error {
	_, err := a.db.Exec(`
		CREATE TABLE IF NOT EXISTS documents (
			run_id TEXT NOT NULL,
			match_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			body TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			PRIMARY KEY (run_id, match_id, kind)
		)
	`)
	if err != nil {
		return fmt.Errorf("sink: create archive table: %w", err)
	}
	return nil
}

func (a *Archive) WriteReport(matchID model.MatchID, text string) error {
	return a.insert(string(matchID), "report", text)
}

func (a *Archive) WriteAnalysis(matchID model.MatchID, text string) error {
	return a.insert(string(matchID), "analysis", text)
}

func (a *Archive) WriteSummary(text string) error {
	return a.insert("", "summary", text)
}

func (a *Archive) insert(matchID, kind, body string) error {
	_, err := a.db.Exec(
		`INSERT OR REPLACE INTO documents (run_id, match_id, kind, body, created_at) VALUES (?, ?, ?, ?, ?)`,
		a.runID, matchID, kind, body, time.Now().UnixMilli(),
	)
	if err != nil {
		writesCounter.WithLabelValues("archive", kind, "error").Inc()
		return fmt.Errorf("sink: archive %s for %q: %w", kind, matchID, err)
	}
	writesCounter.WithLabelValues("archive", kind, "ok").Inc()
	return nil
}

// Documents returns all documents of a run, ordered by match id and kind.
func (a *Archive) Documents(runID string) ([]Document, error) {
	rows, err := a.db.Query(
		`SELECT run_id, match_id, kind, body, created_at FROM documents WHERE run_id = ? ORDER BY match_id, kind`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("sink: query archive: %w", err)
	}
	defer rows.Close()

	var documents []Document
	for rows.Next() {
		var document Document
		var createdAt int64
		if err := rows.Scan(&document.RunID, &document.MatchID, &document.Kind, &document.Body, &createdAt); err != nil {
			return nil, fmt.Errorf("sink: scan archive row: %w", err)
		}
		document.CreatedAt = time.UnixMilli(createdAt)
		documents = append(documents, document)
	}
	return documents, rows.Err()
}

func (a *Archive) Close() error {
	return a.db.Close()
}
