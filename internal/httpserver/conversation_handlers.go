package httpserver

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"dmcore/internal/service"
)

type typingRequest struct {
	Typing bool `json:"typing"`
}

type statusResponse struct {
	Status string `json:"status"`
}

var success = statusResponse{Status: "success"}

// @Summary      List conversations
// @Description  Visible conversations of the caller, newest activity first
// @Tags         conversations
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  service.Inbox
// @Failure      401  {object}  errorResponse
// @Router       /conversations [get]
func handleListConversations(dir *service.Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inbox, err := dir.Inbox(r.Context(), CurrentUser(r))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, inbox)
	}
}

// @Summary      Get conversation
// @Tags         conversations
// @Produce      json
// @Security     BearerAuth
// @Param        conversationID  path  string  true  "Conversation ID"
// @Success      200  {object}  domain.Conversation
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /conversations/{conversationID} [get]
func handleGetConversation(dir *service.Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conv, err := dir.Conversation(r.Context(), CurrentUser(r), chi.URLParam(r, "conversationID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, conv)
	}
}

// @Summary      List messages
// @Description  Newest page of the message log, oldest first
// @Tags         messages
// @Produce      json
// @Security     BearerAuth
// @Param        conversationID  path   string  true   "Conversation ID"
// @Param        limit           query  int     false  "Page size"
// @Success      200  {array}   service.MessageView
// @Failure      400  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Router       /conversations/{conversationID}/messages [get]
func handleListMessages(dir *service.Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				writeError(w, r, badRequest("invalid limit"))
				return
			}
			limit = n
		}
		viewer := CurrentUser(r)
		msgs, err := dir.Messages(r.Context(), viewer, chi.URLParam(r, "conversationID"), limit)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, service.RenderMessages(viewer, msgs))
	}
}

// @Summary      Mark conversation read
// @Tags         conversations
// @Produce      json
// @Security     BearerAuth
// @Param        conversationID  path  string  true  "Conversation ID"
// @Success      200  {object}  statusResponse
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /conversations/{conversationID}/read [post]
func handleMarkConversationRead(gw *service.Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := gw.MarkRead(r.Context(), CurrentUser(r), chi.URLParam(r, "conversationID")); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, success)
	}
}

// @Summary      Hide conversation
// @Description  Removes the conversation from the caller's inbox until the next message
// @Tags         conversations
// @Produce      json
// @Security     BearerAuth
// @Param        conversationID  path  string  true  "Conversation ID"
// @Success      200  {object}  statusResponse
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /conversations/{conversationID}/hide [post]
func handleHideConversation(gw *service.Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := gw.HideConversation(r.Context(), CurrentUser(r), chi.URLParam(r, "conversationID")); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, success)
	}
}

// @Summary      Set typing state
// @Tags         conversations
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        conversationID  path  string         true  "Conversation ID"
// @Param        input           body  typingRequest  true  "Typing state"
// @Success      200  {object}  statusResponse
// @Failure      403  {object}  errorResponse
// @Router       /conversations/{conversationID}/typing [post]
func handleSetTyping(gw *service.Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req typingRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		if err := gw.SetTyping(r.Context(), CurrentUser(r), chi.URLParam(r, "conversationID"), req.Typing); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, success)
	}
}
