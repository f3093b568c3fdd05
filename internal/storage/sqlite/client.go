// Package sqlite persists analysis runs, extracted document texts, and chat
// history. One database file per deployment; schema is created on startup.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/contractscan/backend/internal/analyze"
	"github.com/contractscan/backend/internal/storage/models"
	"github.com/contractscan/backend/pkg/logger"
)

var ErrNotFound = errors.New("not found")

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS analysis_runs (
		id TEXT PRIMARY KEY,
		job_name TEXT NOT NULL,
		job_number TEXT,
		directory_path TEXT,
		main_contract TEXT,
		payload TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_job ON analysis_runs(job_name);
	CREATE INDEX IF NOT EXISTS idx_runs_created ON analysis_runs(created_at);

	CREATE TABLE IF NOT EXISTS ranked_documents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		filename TEXT NOT NULL,
		document_type TEXT,
		importance TEXT,
		status TEXT,
		importance_score INTEGER,
		rank INTEGER,
		priority_level TEXT,
		is_main_contract INTEGER DEFAULT 0,
		FOREIGN KEY (run_id) REFERENCES analysis_runs(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_ranked_run ON ranked_documents(run_id);

	CREATE TABLE IF NOT EXISTS failed_files (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		filename TEXT NOT NULL,
		reason TEXT,
		FOREIGN KEY (run_id) REFERENCES analysis_runs(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_failed_run ON failed_files(run_id);

	CREATE TABLE IF NOT EXISTS document_texts (
		document_id TEXT PRIMARY KEY,
		run_id TEXT,
		filename TEXT NOT NULL,
		text TEXT NOT NULL,
		text_length INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_texts_run ON document_texts(run_id);

	CREATE TABLE IF NOT EXISTS chat_messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		document_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chat_session ON chat_messages(session_id);
	CREATE INDEX IF NOT EXISTS idx_chat_created ON chat_messages(created_at);
	`

	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

// SaveRun persists the full run payload plus queryable ranking and failure
// rows, atomically.
func (c *Client) SaveRun(run *analyze.AnalysisRun) error {
	payload, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to serialize run: %w", err)
	}

	mainContract := ""
	if run.MainContract != nil {
		mainContract = run.MainContract.Filename
	}

	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO analysis_runs (id, job_name, job_number, directory_path, main_contract, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Job.Name, run.Job.Number, run.Job.DirectoryPath, mainContract, string(payload), run.Timestamp.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for _, doc := range run.RankedDocuments {
		isMain := 0
		if doc.IsMainContract {
			isMain = 1
		}
		_, err = tx.Exec(`
			INSERT INTO ranked_documents (run_id, filename, document_type, importance, status, importance_score, rank, priority_level, is_main_contract)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, run.ID, doc.Filename, string(doc.DocumentType), string(doc.Importance), string(doc.Status),
			doc.ImportanceScore, doc.Rank, string(doc.PriorityLevel), isMain)
		if err != nil {
			return fmt.Errorf("failed to insert ranked document: %w", err)
		}
	}

	for _, failed := range run.FailedFiles {
		_, err = tx.Exec(`
			INSERT INTO failed_files (run_id, filename, reason) VALUES (?, ?, ?)
		`, run.ID, failed.Filename, failed.Reason)
		if err != nil {
			return fmt.Errorf("failed to insert failed file: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}

	logger.Info("analysis run saved",
		zap.String("run_id", run.ID),
		zap.String("job_name", run.Job.Name),
	)
	return nil
}

// GetRun loads a persisted run by ID.
func (c *Client) GetRun(id string) (*analyze.AnalysisRun, error) {
	var payload string
	err := c.db.QueryRow(`SELECT payload FROM analysis_runs WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: run %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	var run analyze.AnalysisRun
	if err := json.Unmarshal([]byte(payload), &run); err != nil {
		return nil, fmt.Errorf("failed to deserialize run: %w", err)
	}

	return &run, nil
}

// ListRuns returns recent runs, newest first, without payloads.
func (c *Client) ListRuns(limit int) ([]models.StoredRun, error) {
	rows, err := c.db.Query(`
		SELECT id, job_name, job_number, directory_path, main_contract, created_at
		FROM analysis_runs
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []models.StoredRun
	for rows.Next() {
		var r models.StoredRun
		var createdAt int64
		if err := rows.Scan(&r.ID, &r.JobName, &r.JobNumber, &r.DirectoryPath, &r.MainContract, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		r.CreatedAt = time.Unix(createdAt, 0)
		runs = append(runs, r)
	}

	return runs, rows.Err()
}

// SaveDocumentText stores an extracted text for the chat feature, replacing
// any previous copy of the same document.
func (c *Client) SaveDocumentText(doc *models.StoredDocumentText) error {
	_, err := c.db.Exec(`
		INSERT INTO document_texts (document_id, run_id, filename, text, text_length, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(document_id) DO UPDATE SET
			run_id = excluded.run_id,
			text = excluded.text,
			text_length = excluded.text_length,
			created_at = excluded.created_at
	`, doc.DocumentID, doc.RunID, doc.Filename, doc.Text, doc.TextLength, doc.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to save document text: %w", err)
	}

	logger.Debug("document text saved",
		zap.String("document_id", doc.DocumentID),
		zap.Int("text_length", doc.TextLength),
	)
	return nil
}

func (c *Client) GetDocumentText(documentID string) (*models.StoredDocumentText, error) {
	var doc models.StoredDocumentText
	var createdAt int64

	err := c.db.QueryRow(`
		SELECT document_id, run_id, filename, text, text_length, created_at
		FROM document_texts WHERE document_id = ?
	`, documentID).Scan(&doc.DocumentID, &doc.RunID, &doc.Filename, &doc.Text, &doc.TextLength, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: document %s", ErrNotFound, documentID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document text: %w", err)
	}

	doc.CreatedAt = time.Unix(createdAt, 0)
	return &doc, nil
}

func (c *Client) SaveChatMessage(msg *models.ChatMessage) error {
	_, err := c.db.Exec(`
		INSERT INTO chat_messages (session_id, document_id, role, content, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, msg.SessionID, msg.DocumentID, msg.Role, msg.Content, msg.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to save chat message: %w", err)
	}
	return nil
}

// GetChatHistory returns a session's messages oldest first, capped at limit.
func (c *Client) GetChatHistory(sessionID string, limit int) ([]models.ChatMessage, error) {
	rows, err := c.db.Query(`
		SELECT id, session_id, document_id, role, content, created_at FROM (
			SELECT id, session_id, document_id, role, content, created_at
			FROM chat_messages
			WHERE session_id = ?
			ORDER BY id DESC
			LIMIT ?
		) ORDER BY id ASC
	`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get chat history: %w", err)
	}
	defer rows.Close()

	var messages []models.ChatMessage
	for rows.Next() {
		var m models.ChatMessage
		var createdAt int64
		if err := rows.Scan(&m.ID, &m.SessionID, &m.DocumentID, &m.Role, &m.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		m.CreatedAt = time.Unix(createdAt, 0)
		messages = append(messages, m)
	}

	return messages, rows.Err()
}
