package models

import "time"

// StoredRun is an analysis run persisted for later retrieval. The ranked
// list, summary, and diagnostics travel as serialized JSON payloads; the
// columns hold only what queries filter on.
type StoredRun struct {
	ID            string
	JobName       string
	JobNumber     string
	DirectoryPath string
	MainContract  string
	Payload       string
	CreatedAt     time.Time
}

// StoredDocumentText is an extracted document text kept for the chat
// feature, keyed by the document's path hash.
type StoredDocumentText struct {
	DocumentID string
	RunID      string
	Filename   string
	Text       string
	TextLength int
	CreatedAt  time.Time
}

// ChatMessage is one turn of a document conversation.
type ChatMessage struct {
	ID         int
	SessionID  string
	DocumentID string
	Role       string
	Content    string
	CreatedAt  time.Time
}

// RankedRow is the per-document ranking record stored alongside a run so
// rankings can be queried without deserializing the full payload.
type RankedRow struct {
	ID              int
	RunID           string
	Filename        string
	DocumentType    string
	Importance      string
	Status          string
	ImportanceScore int
	Rank            int
	PriorityLevel   string
	IsMainContract  bool
}

// FailedRow records a file that produced no classification in a run.
type FailedRow struct {
	ID       int
	RunID    string
	Filename string
	Reason   string
}
