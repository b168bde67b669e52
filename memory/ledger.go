// Package memory holds the two memory systems of the application: a durable
// sqlite ledger of completed creations and an ephemeral per-session cache of
// last-result fields.
package memory

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// DefaultUserID is the sentinel used when no user identifier is supplied.
const DefaultUserID = "super-user"

// Creation is one durable row summarizing a pipeline run that reached
// persistence. Artifact paths are empty when the corresponding stage did not
// produce output; they are stored as NULLs.
type Creation struct {
	ID             int64
	CreationDate   string
	Prompt         string
	EnhancedPrompt string
	ImagePath      string
	ModelPath      string
	VideoPath      string
	Tags           []string
	UserID         string
}

// Ledger is the durable record store. Rows are append-only; this layer never
// updates or deletes them.
type Ledger struct {
	db *sql.DB
}

// NewLedger opens (or creates) the ledger database at the given path.
func NewLedger(dbPath string) (*Ledger, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	ledger := &Ledger{db: db}
	if err := ledger.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return ledger, nil
}

func (l *Ledger) createTables() error {
	query := `
	CREATE TABLE IF NOT EXISTS creations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		creation_date TEXT,
		prompt TEXT,
		enhanced_prompt TEXT,
		image_path TEXT,
		model_path TEXT,
		video_path TEXT,
		tags TEXT,
		user_id TEXT
	);`

	_, err := l.db.Exec(query)
	return err
}

// SaveCreation persists one creation and returns its assigned id. The video
// path is an ordinary optional field; callers never branch on its presence.
func (l *Ledger) SaveCreation(c Creation) (int64, error) {
	if c.UserID == "" {
		c.UserID = DefaultUserID
	}
	if c.CreationDate == "" {
		c.CreationDate = time.Now().Format(time.RFC3339)
	}

	query := `
	INSERT INTO creations (creation_date, prompt, enhanced_prompt, image_path, model_path, video_path, tags, user_id)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := l.db.Exec(query,
		c.CreationDate,
		c.Prompt,
		c.EnhancedPrompt,
		nullable(c.ImagePath),
		nullable(c.ModelPath),
		nullable(c.VideoPath),
		strings.Join(c.Tags, ","),
		c.UserID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save creation: %w", err)
	}

	return result.LastInsertId()
}

// SearchCreations returns creations whose prompt, enhanced prompt, or tags
// contain the term, case-insensitively, most recent first. An empty userID
// matches all users.
func (l *Ledger) SearchCreations(term, userID string) ([]Creation, error) {
	query := `
	SELECT id, creation_date, prompt, enhanced_prompt, image_path, model_path, video_path, tags, user_id
	FROM creations
	WHERE (LOWER(prompt) LIKE ? OR LOWER(enhanced_prompt) LIKE ? OR LOWER(tags) LIKE ?)
	`
	pattern := "%" + strings.ToLower(term) + "%"
	params := []any{pattern, pattern, pattern}

	if userID != "" {
		query += " AND user_id = ?"
		params = append(params, userID)
	}
	query += " ORDER BY creation_date DESC, id DESC"

	rows, err := l.db.Query(query, params...)
	if err != nil {
		return nil, fmt.Errorf("failed to search creations: %w", err)
	}
	defer rows.Close()

	return scanCreations(rows)
}

// RecentCreations returns up to limit creations, most recent first. An empty
// userID matches all users.
func (l *Ledger) RecentCreations(limit int, userID string) ([]Creation, error) {
	query := `
	SELECT id, creation_date, prompt, enhanced_prompt, image_path, model_path, video_path, tags, user_id
	FROM creations
	`
	var params []any

	if userID != "" {
		query += " WHERE user_id = ?"
		params = append(params, userID)
	}

	query += " ORDER BY creation_date DESC LIMIT ?"
	params = append(params, limit)

	rows, err := l.db.Query(query, params...)
	if err != nil {
		return nil, fmt.Errorf("failed to list creations: %w", err)
	}
	defer rows.Close()

	return scanCreations(rows)
}

// Close releases the underlying database handle.
func (l *Ledger) Close() error {
	return l.db.Close()
}

func scanCreations(rows *sql.Rows) ([]Creation, error) {
	var creations []Creation
	for rows.Next() {
		var c Creation
		var imagePath, modelPath, videoPath, tags sql.NullString
		err := rows.Scan(
			&c.ID,
			&c.CreationDate,
			&c.Prompt,
			&c.EnhancedPrompt,
			&imagePath,
			&modelPath,
			&videoPath,
			&tags,
			&c.UserID,
		)
		if err != nil {
			return nil, err
		}
		c.ImagePath = imagePath.String
		c.ModelPath = modelPath.String
		c.VideoPath = videoPath.String
		if tags.String != "" {
			c.Tags = strings.Split(tags.String, ",")
		}
		creations = append(creations, c)
	}
	return creations, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
