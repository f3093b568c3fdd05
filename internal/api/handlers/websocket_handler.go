package handlers

import (
	"context"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/contractscan/backend/internal/chat"
	"github.com/contractscan/backend/internal/metrics"
	"github.com/contractscan/backend/pkg/logger"
)

// WebSocketHandler streams chat answers word by word so the client can
// render the response as it arrives.
type WebSocketHandler struct {
	service *chat.Service
}

func NewWebSocketHandler(service *chat.Service) *WebSocketHandler {
	return &WebSocketHandler{service: service}
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg struct {
			Type       string `json:"type"`
			SessionID  string `json:"session_id"`
			DocumentID string `json:"document_id"`
			Content    string `json:"content"`
		}

		if err := c.ReadJSON(&msg); err != nil {
			logger.Error("Failed to read WebSocket message", zap.Error(err))
			break
		}

		if msg.Type != "question" {
			continue
		}

		logger.Info("Processing WebSocket question",
			zap.String("document_id", msg.DocumentID),
		)

		if err := h.streamAnswer(c, msg.SessionID, msg.DocumentID, msg.Content); err != nil {
			logger.Error("Failed to stream answer", zap.Error(err))
			h.sendError(c, "Failed to process question")
		}
	}
}

func (h *WebSocketHandler) streamAnswer(c *websocket.Conn, sessionID, documentID, question string) error {
	ctx := context.Background()

	h.sendChunk(c, "status", "Analyzing document...")

	answer, err := h.service.Ask(ctx, sessionID, documentID, question)
	if err != nil {
		return err
	}

	metrics.ChatMessages.WithLabelValues("user").Inc()
	metrics.ChatMessages.WithLabelValues("assistant").Inc()

	words := splitIntoWords(answer.Message)
	for i, word := range words {
		chunk := word
		if i < len(words)-1 {
			chunk += " "
		}

		if err := h.sendChunk(c, "chunk", chunk); err != nil {
			return err
		}
	}

	return c.WriteJSON(map[string]interface{}{
		"type":            "complete",
		"response_source": answer.ResponseSource,
		"confidence":      answer.Confidence,
		"timestamp":       answer.Timestamp,
	})
}

func (h *WebSocketHandler) sendChunk(c *websocket.Conn, msgType, content string) error {
	return c.WriteJSON(map[string]interface{}{
		"type":    msgType,
		"content": content,
	})
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	c.WriteJSON(map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	})
}

func splitIntoWords(text string) []string {
	words := []string{}
	currentWord := ""

	for _, char := range text {
		if char == ' ' || char == '\n' {
			if currentWord != "" {
				words = append(words, currentWord)
				currentWord = ""
			}
			if char == '\n' {
				words = append(words, "\n")
			}
		} else {
			currentWord += string(char)
		}
	}

	if currentWord != "" {
		words = append(words, currentWord)
	}

	return words
}
