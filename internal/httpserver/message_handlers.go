package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"dmcore/internal/domain"
	"dmcore/internal/service"
)

type messageCreateRequest struct {
	Text      string `json:"text"`
	ReplyToID string `json:"replyToId,omitempty"`
}

type reactionRequest struct {
	Emoji string `json:"emoji"`
}

type reactionResponse struct {
	MessageID string                   `json:"messageId"`
	Reactions []domain.ReactionSummary `json:"reactions"`
}

// @Summary      Send a message into a conversation
// @Tags         messages
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        conversationID  path  string                true  "Conversation ID"
// @Param        input           body  messageCreateRequest  true  "Message"
// @Success      201  {object}  service.SendResult
// @Failure      400  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Failure      429  {object}  errorResponse
// @Router       /conversations/{conversationID}/messages [post]
func handleSendToConversation(gw *service.Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req messageCreateRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		res, err := gw.Send(r.Context(), CurrentUser(r), service.SendInput{
			ConversationID: chi.URLParam(r, "conversationID"),
			Text:           req.Text,
			ReplyToID:      req.ReplyToID,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, res)
	}
}

// @Summary      Send a message to a user
// @Description  Creates the conversation on the first message
// @Tags         messages
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        userID  path  string                true  "Recipient user ID"
// @Param        input   body  messageCreateRequest  true  "Message"
// @Success      201  {object}  service.SendResult
// @Failure      400  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Failure      429  {object}  errorResponse
// @Router       /users/{userID}/messages [post]
func handleSendToUser(gw *service.Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req messageCreateRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		res, err := gw.Send(r.Context(), CurrentUser(r), service.SendInput{
			RecipientID: chi.URLParam(r, "userID"),
			Text:        req.Text,
			ReplyToID:   req.ReplyToID,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, res)
	}
}

// @Summary      Toggle a reaction
// @Tags         messages
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        conversationID  path  string           true  "Conversation ID"
// @Param        messageID       path  string           true  "Message ID"
// @Param        input           body  reactionRequest  true  "Emoji"
// @Success      200  {object}  reactionResponse
// @Failure      400  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /conversations/{conversationID}/messages/{messageID}/reactions [post]
func handleReact(gw *service.Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req reactionRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		viewer := CurrentUser(r)
		messageID := chi.URLParam(r, "messageID")
		reactions, err := gw.React(r.Context(), viewer, chi.URLParam(r, "conversationID"), messageID, req.Emoji)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, reactionResponse{
			MessageID: messageID,
			Reactions: reactions.Summaries(viewer),
		})
	}
}

// @Summary      Delete a message
// @Description  Soft delete; only the author may delete
// @Tags         messages
// @Produce      json
// @Security     BearerAuth
// @Param        conversationID  path  string  true  "Conversation ID"
// @Param        messageID       path  string  true  "Message ID"
// @Success      200  {object}  statusResponse
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /conversations/{conversationID}/messages/{messageID} [delete]
func handleDeleteMessage(gw *service.Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := gw.DeleteMessage(r.Context(), CurrentUser(r), chi.URLParam(r, "conversationID"), chi.URLParam(r, "messageID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, success)
	}
}
