package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/contractscan/backend/internal/chat"
	"github.com/contractscan/backend/internal/metrics"
	"github.com/contractscan/backend/pkg/logger"
	"github.com/contractscan/backend/pkg/utils"
)

type ChatHandler struct {
	service *chat.Service
}

func NewChatHandler(service *chat.Service) *ChatHandler {
	return &ChatHandler{service: service}
}

type loadDocumentRequest struct {
	FilePath string `json:"file_path"`
	Filename string `json:"filename"`
}

// LoadDocument prepares a document for chat and returns its summary,
// preview, and suggested questions.
func (h *ChatHandler) LoadDocument(c *fiber.Ctx) error {
	var req loadDocumentRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.FilePath == "" || req.Filename == "" {
		return fiber.NewError(fiber.StatusBadRequest, "file_path and filename are required")
	}

	documentID := utils.DocumentID(req.FilePath)

	session, err := h.service.LoadDocument(c.Context(), documentID, req.FilePath, req.Filename)
	if err != nil {
		logger.Error("failed to load document for chat",
			zap.String("filename", req.Filename),
			zap.Error(err),
		)
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	}

	return c.JSON(session)
}

type askRequest struct {
	SessionID  string `json:"session_id"`
	DocumentID string `json:"document_id"`
	Message    string `json:"message"`
}

// Ask answers a question about a loaded document.
func (h *ChatHandler) Ask(c *fiber.Ctx) error {
	var req askRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.SessionID == "" || req.DocumentID == "" || req.Message == "" {
		return fiber.NewError(fiber.StatusBadRequest, "session_id, document_id and message are required")
	}

	answer, err := h.service.Ask(c.Context(), req.SessionID, req.DocumentID, req.Message)
	if err != nil {
		logger.Error("chat message failed",
			zap.String("document_id", req.DocumentID),
			zap.Error(err),
		)
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	}

	metrics.ChatMessages.WithLabelValues("user").Inc()
	metrics.ChatMessages.WithLabelValues("assistant").Inc()

	return c.JSON(answer)
}

// History returns a chat session's saved messages, oldest first.
func (h *ChatHandler) History(c *fiber.Ctx) error {
	sessionID := c.Params("sessionId")
	if sessionID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "session id is required")
	}

	history, err := h.service.History(sessionID)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load history")
	}

	return c.JSON(fiber.Map{"messages": history, "count": len(history)})
}
