package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"dmcore/internal/service"
)

// @Summary      Get user profile
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        userID  path  string  true  "User ID"
// @Success      200  {object}  domain.Profile
// @Failure      404  {object}  errorResponse
// @Router       /users/{userID} [get]
func handleGetUser(profiles *service.Profiles) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := profiles.Get(r.Context(), chi.URLParam(r, "userID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}
