// Package chat answers questions about a single document. Answers come from
// the oracle, grounded on the stored extraction and a bounded slice of the
// conversation so far.
package chat

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jdkato/prose/v2"
	"go.uber.org/zap"

	"github.com/contractscan/backend/internal/storage/models"
	"github.com/contractscan/backend/internal/storage/sqlite"
	"github.com/contractscan/backend/pkg/logger"
)

// Completer is the oracle contract, shared with the classifier.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// TextSource extracts document text when no stored copy exists.
type TextSource interface {
	Extract(ctx context.Context, path string) (string, error)
}

type Config struct {
	HistoryLimit    int
	MaxContextChars int
}

type Service struct {
	store           *sqlite.Client
	oracle          Completer
	source          TextSource
	historyLimit    int
	maxContextChars int
}

func NewService(store *sqlite.Client, oracle Completer, source TextSource, cfg Config) *Service {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 20
	}
	if cfg.MaxContextChars <= 0 {
		cfg.MaxContextChars = 8000
	}
	return &Service{
		store:           store,
		oracle:          oracle,
		source:          source,
		historyLimit:    cfg.HistoryLimit,
		maxContextChars: cfg.MaxContextChars,
	}
}

// DocumentSession is the loaded-document response: everything the client
// needs to open a conversation.
type DocumentSession struct {
	DocumentID         string            `json:"document_id"`
	Filename           string            `json:"filename"`
	Pages              int               `json:"pages"`
	Preview            string            `json:"preview"`
	AnalysisSummary    map[string]string `json:"analysis_summary"`
	SuggestedQuestions []string          `json:"suggested_questions"`
}

// Answer is one assistant reply.
type Answer struct {
	Message        string    `json:"message"`
	ResponseSource string    `json:"response_source"`
	Confidence     string    `json:"confidence"`
	Timestamp      time.Time `json:"timestamp"`
}

// LoadDocument prepares a document for chat: ensures its text is stored,
// then produces a summary, a preview, and suggested opening questions.
func (s *Service) LoadDocument(ctx context.Context, documentID, path, filename string) (*DocumentSession, error) {
	text, err := s.documentText(ctx, documentID, path, filename)
	if err != nil {
		return nil, err
	}

	session := &DocumentSession{
		DocumentID: documentID,
		Filename:   filename,
		Pages:      estimatePages(text),
		Preview:    leadSentences(text, 3),
	}

	summary, err := s.generateSummary(ctx, text, filename)
	if err != nil {
		logger.Warn("failed to generate document summary", zap.Error(err))
		summary = map[string]string{"error": "Could not generate summary"}
	}
	session.AnalysisSummary = summary

	session.SuggestedQuestions = s.SuggestedQuestions(ctx, text, filename)

	logger.Info("document loaded for chat",
		zap.String("document_id", documentID),
		zap.String("filename", filename),
		zap.Int("pages", session.Pages),
	)

	return session, nil
}

// Ask answers a question about a loaded document and appends both turns to
// the session history.
func (s *Service) Ask(ctx context.Context, sessionID, documentID, question string) (*Answer, error) {
	stored, err := s.store.GetDocumentText(documentID)
	if err != nil {
		return nil, fmt.Errorf("document not loaded for chat: %w", err)
	}

	history, err := s.store.GetChatHistory(sessionID, s.historyLimit)
	if err != nil {
		logger.Warn("failed to load chat history", zap.Error(err))
	}

	prompt := s.buildQuestionPrompt(stored, question, history)

	response, err := s.oracle.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("chat response failed: %w", err)
	}

	now := time.Now().UTC()
	for _, msg := range []models.ChatMessage{
		{SessionID: sessionID, DocumentID: documentID, Role: "user", Content: question, CreatedAt: now},
		{SessionID: sessionID, DocumentID: documentID, Role: "assistant", Content: response, CreatedAt: now},
	} {
		msg := msg
		if err := s.store.SaveChatMessage(&msg); err != nil {
			logger.Warn("failed to persist chat message", zap.Error(err))
		}
	}

	return &Answer{
		Message:        response,
		ResponseSource: fmt.Sprintf("Document: %s", stored.Filename),
		Confidence:     assessConfidence(response),
		Timestamp:      now,
	}, nil
}

// History returns the session's saved messages, oldest first.
func (s *Service) History(sessionID string) ([]models.ChatMessage, error) {
	return s.store.GetChatHistory(sessionID, s.historyLimit)
}

func (s *Service) documentText(ctx context.Context, documentID, path, filename string) (string, error) {
	if stored, err := s.store.GetDocumentText(documentID); err == nil {
		return stored.Text, nil
	}

	text, err := s.source.Extract(ctx, path)
	if err != nil {
		return "", fmt.Errorf("could not extract text for %s: %w", filename, err)
	}

	if err := s.store.SaveDocumentText(&models.StoredDocumentText{
		DocumentID: documentID,
		Filename:   filename,
		Text:       text,
		TextLength: len(text),
		CreatedAt:  time.Now().UTC(),
	}); err != nil {
		logger.Warn("failed to store document text", zap.Error(err))
	}

	return text, nil
}

func (s *Service) buildQuestionPrompt(doc *models.StoredDocumentText, question string, history []models.ChatMessage) string {
	text := doc.Text
	if len(text) > s.maxContextChars {
		text = text[:s.maxContextChars] + "\n[Document truncated for analysis...]"
	}

	return fmt.Sprintf(`
You are an expert construction contract analyst. Answer the user's question based ONLY on the provided contract document.

DOCUMENT INFORMATION:
- Filename: %s

PREVIOUS CONVERSATION:
%s

DOCUMENT CONTENT:
%s

USER QUESTION: %s

INSTRUCTIONS:
1. Answer based ONLY on information found in this document
2. Be specific and cite relevant sections when possible
3. If the information isn't in the document, clearly state that
4. Provide practical, actionable insights when relevant
5. Format your response clearly with bullet points or sections when appropriate

RESPONSE:
`, doc.Filename, chatContext(history), text, question)
}

// chatContext flattens recent history into the prompt; only the last six
// turns matter for follow-up questions.
func chatContext(history []models.ChatMessage) string {
	if len(history) == 0 {
		return "This is the start of the conversation."
	}

	if len(history) > 6 {
		history = history[len(history)-6:]
	}

	lines := make([]string, 0, len(history))
	for _, msg := range history {
		lines = append(lines, fmt.Sprintf("%s: %s", strings.ToUpper(msg.Role), msg.Content))
	}
	return strings.Join(lines, "\n")
}

var summaryFields = map[string]string{
	"purpose":   "DOCUMENT_PURPOSE",
	"parties":   "KEY_PARTIES",
	"scope":     "PROJECT_SCOPE",
	"dates":     "IMPORTANT_DATES",
	"financial": "FINANCIAL_TERMS",
	"clauses":   "CRITICAL_CLAUSES",
	"risks":     "RISK_FACTORS",
}

func (s *Service) generateSummary(ctx context.Context, text, filename string) (map[string]string, error) {
	sample := text
	if len(sample) > 5000 {
		sample = sample[:5000]
	}

	prompt := fmt.Sprintf(`
Analyze this construction contract document and provide a comprehensive summary.

DOCUMENT INFO:
- Filename: %s

DOCUMENT TEXT:
%s

Provide a summary in this format:

DOCUMENT_PURPOSE: [Brief description of what this document is for]
KEY_PARTIES: [Main companies/individuals involved]
PROJECT_SCOPE: [What work/project this covers]
IMPORTANT_DATES: [Key dates, deadlines, or timeframes]
FINANCIAL_TERMS: [Contract values, payment terms, or financial obligations]
CRITICAL_CLAUSES: [Important terms, conditions, or requirements]
RISK_FACTORS: [Potential issues or important considerations]
`, filename, sample)

	response, err := s.oracle.Complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	return parseSummary(response), nil
}

func parseSummary(response string) map[string]string {
	summary := map[string]string{}
	for key, label := range summaryFields {
		re := regexp.MustCompile(`(?im)` + label + `:\s*(.+)`)
		if m := re.FindStringSubmatch(response); m != nil {
			summary[key] = strings.TrimSpace(m[1])
		} else {
			summary[key] = "Not specified"
		}
	}
	return summary
}

var defaultQuestions = []string{
	"What are the key terms and conditions in this contract?",
	"What are the important dates and deadlines?",
	"What are the payment terms and financial obligations?",
	"What is the scope of work covered?",
	"What are the main risks or potential issues?",
	"Who are the key parties and their responsibilities?",
}

// SuggestedQuestions asks the oracle for opening questions, falling back to
// a fixed set when the oracle is unavailable or returns nothing usable.
func (s *Service) SuggestedQuestions(ctx context.Context, text, filename string) []string {
	sample := text
	if len(sample) > 3000 {
		sample = sample[:3000]
	}

	prompt := fmt.Sprintf(`
Based on this construction contract document, suggest 6 relevant questions that a user might want to ask.

FILENAME: %s

DOCUMENT SAMPLE:
%s

Generate practical questions that would help someone understand:
- Key terms and obligations
- Important dates and deadlines
- Financial aspects
- Risk factors
- Scope of work
- Performance requirements

Return ONLY a numbered list of questions, no other text.
`, filename, sample)

	response, err := s.oracle.Complete(ctx, prompt)
	if err != nil {
		logger.Warn("failed to generate suggested questions", zap.Error(err))
		return defaultQuestions
	}

	questions := parseQuestions(response)
	if len(questions) == 0 {
		return defaultQuestions
	}
	if len(questions) > 6 {
		questions = questions[:6]
	}
	return questions
}

var (
	numberedRe = regexp.MustCompile(`^\d+\.?\s*`)
	bulletRe   = regexp.MustCompile(`^[-•]\s*`)
)

func parseQuestions(response string) []string {
	var questions []string
	for _, line := range strings.Split(strings.TrimSpace(response), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		first := line[0]
		if !(first >= '0' && first <= '9') && !strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "•") {
			continue
		}
		q := numberedRe.ReplaceAllString(line, "")
		q = bulletRe.ReplaceAllString(q, "")
		if q = strings.TrimSpace(q); q != "" {
			questions = append(questions, q)
		}
	}
	return questions
}

var uncertaintyPhrases = []string{
	"i don't see",
	"not mentioned",
	"doesn't appear",
	"unclear",
	"not specified",
	"not found",
	"unable to determine",
}

// assessConfidence grades the answer by its own wording: hedged answers are
// LOW, long specific ones HIGH, everything else MEDIUM.
func assessConfidence(response string) string {
	lower := strings.ToLower(response)
	for _, phrase := range uncertaintyPhrases {
		if strings.Contains(lower, phrase) {
			return "LOW"
		}
	}
	if len(response) > 200 && strings.Contains(lower, "specifically") {
		return "HIGH"
	}
	return "MEDIUM"
}

// leadSentences returns the first n sentences of the text for a preview.
// Falls back to a raw character cut when segmentation fails.
func leadSentences(text string, n int) string {
	sample := text
	if len(sample) > 2000 {
		sample = sample[:2000]
	}

	doc, err := prose.NewDocument(sample, prose.WithExtraction(false), prose.WithTagging(false))
	if err != nil {
		if len(sample) > 300 {
			return sample[:300]
		}
		return sample
	}

	sentences := doc.Sentences()
	if len(sentences) > n {
		sentences = sentences[:n]
	}

	parts := make([]string, 0, len(sentences))
	for _, s := range sentences {
		parts = append(parts, strings.TrimSpace(s.Text))
	}
	return strings.Join(parts, " ")
}

func estimatePages(text string) int {
	pages := len(text) / 2500
	if pages < 1 {
		return 1
	}
	return pages
}
