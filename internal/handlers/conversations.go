package handlers

import (
	"context"
	"encoding/json"
	"html"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/modkit/chatstream/internal/models"
)

type conversationSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
}

type transcriptMessage struct {
	ID        string           `json:"id,omitempty"`
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	Timestamp time.Time        `json:"timestamp,omitempty"`
	Metadata  *models.Metadata `json:"metadata,omitempty"`
}

type saveTurnRequest struct {
	ConversationID string              `json:"conversationId,omitempty"`
	Messages       []transcriptMessage `json:"messages"`
}

type saveTurnResponse struct {
	ConversationID string `json:"conversationId"`
}

// HandleConversations lists stored conversations, most recent first.
func (m Main) HandleConversations(w http.ResponseWriter, r *http.Request) {
	conversations, err := m.store.Conversations(r.Context())
	if err != nil {
		m.logger.Error("Failed to get conversations", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	summaries := make([]conversationSummary, len(conversations))
	for i, conversation := range conversations {
		summaries[i] = conversationSummary{
			ID:        conversation.ID,
			Title:     conversation.Title,
			CreatedAt: conversation.CreatedAt,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(summaries); err != nil {
		m.logger.Error("Failed to encode response", slog.String(errLoggerKey, err.Error()))
	}
}

// HandleConversation returns one conversation's transcript. With
// ?format=html, assistant markdown is rendered to HTML for display.
func (m Main) HandleConversation(w http.ResponseWriter, r *http.Request) {
	conversationID := r.PathValue("id")
	if conversationID == "" {
		http.Error(w, "Conversation id is required", http.StatusBadRequest)
		return
	}

	messages, err := m.store.Messages(r.Context(), conversationID)
	if err != nil {
		m.logger.Error("Failed to get messages",
			slog.String("conversationID", conversationID),
			slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if r.URL.Query().Get("format") == "html" {
		m.writeTranscriptHTML(w, messages)
		return
	}

	transcript := make([]transcriptMessage, len(messages))
	for i, msg := range messages {
		transcript[i] = transcriptMessage{
			ID:        msg.ID,
			Role:      string(msg.Role),
			Content:   msg.Content,
			Timestamp: msg.Timestamp,
			Metadata:  msg.Metadata,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(transcript); err != nil {
		m.logger.Error("Failed to encode response", slog.String(errLoggerKey, err.Error()))
	}
}

// HandleSaveTurn persists completed turns. A request without a conversation id
// creates a new conversation and kicks off title generation from its first
// user message; the (possibly new) conversation id is returned.
func (m Main) HandleSaveTurn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req saveTurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		m.logger.Error("Failed to decode request", slog.String(errLoggerKey, err.Error()))
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Messages) == 0 {
		http.Error(w, "At least one message is required", http.StatusBadRequest)
		return
	}

	conversationID := req.ConversationID
	if conversationID == "" {
		var err error
		conversationID, err = m.store.AddConversation(r.Context(), models.Conversation{
			ID:        uuid.New().String(),
			CreatedAt: time.Now(),
		})
		if err != nil {
			m.logger.Error("Failed to add conversation", slog.String(errLoggerKey, err.Error()))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		if first := firstUserContent(req.Messages); first != "" {
			go m.generateTitle(conversationID, first)
		}
	}

	for _, msg := range req.Messages {
		id := msg.ID
		if id == "" {
			id = uuid.New().String()
		}
		timestamp := msg.Timestamp
		if timestamp.IsZero() {
			timestamp = time.Now()
		}
		if _, err := m.store.AddMessage(r.Context(), conversationID, models.Message{
			ID:        id,
			Role:      models.Role(msg.Role),
			Content:   msg.Content,
			Timestamp: timestamp,
			Metadata:  msg.Metadata,
		}); err != nil {
			m.logger.Error("Failed to add message",
				slog.String("conversationID", conversationID),
				slog.String(errLoggerKey, err.Error()))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(saveTurnResponse{ConversationID: conversationID}); err != nil {
		m.logger.Error("Failed to encode response", slog.String(errLoggerKey, err.Error()))
	}
}

func firstUserContent(messages []transcriptMessage) string {
	for _, msg := range messages {
		if msg.Role == string(models.RoleUser) {
			return msg.Content
		}
	}
	return ""
}

func (m Main) generateTitle(conversationID, message string) {
	title, err := m.titleGenerator.GenerateTitle(context.Background(), m.titlePrompt, message)
	if err != nil {
		m.logger.Error("Error generating conversation title",
			slog.String("message", message),
			slog.String(errLoggerKey, err.Error()))
		return
	}

	// Re-read the stored record so only the title changes.
	conversations, err := m.store.Conversations(context.Background())
	if err != nil {
		m.logger.Error("Failed to get conversations",
			slog.String(errLoggerKey, err.Error()))
		return
	}
	idx := slices.IndexFunc(conversations, func(c models.Conversation) bool {
		return c.ID == conversationID
	})
	if idx < 0 {
		return
	}

	conversation := conversations[idx]
	conversation.Title = title
	if err := m.store.UpdateConversation(context.Background(), conversation); err != nil {
		m.logger.Error("Failed to update conversation title",
			slog.String(errLoggerKey, err.Error()))
	}
}

func (m Main) writeTranscriptHTML(w http.ResponseWriter, messages []models.Message) {
	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>Transcript</title></head><body>\n")
	for _, msg := range messages {
		sb.WriteString("<section class=\"message message-" + string(msg.Role) + "\">\n")
		switch msg.Role {
		case models.RoleAssistant:
			rendered, err := models.RenderHTML(msg.Content)
			if err != nil {
				m.logger.Error("Failed to render content",
					slog.String("messageID", msg.ID),
					slog.String(errLoggerKey, err.Error()))
				rendered = "<p>" + html.EscapeString(msg.Content) + "</p>"
			}
			sb.WriteString(rendered)
		default:
			sb.WriteString("<p>" + html.EscapeString(msg.Content) + "</p>\n")
		}
		sb.WriteString("</section>\n")
	}
	sb.WriteString("</body></html>\n")

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(sb.String()))
}
