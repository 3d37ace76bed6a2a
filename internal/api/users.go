package api

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/sitegate-io/sitegate/internal/db"
	"github.com/sitegate-io/sitegate/internal/repositories"
)

// UserHandler serves the user endpoints of the JSON API.
type UserHandler struct {
	users  repositories.UserRepository
	logger *zap.Logger
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(users repositories.UserRepository, logger *zap.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger.Named("user_handler")}
}

// userResponse is the JSON shape of a user record.
type userResponse struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture,omitempty"`
	Admin   bool   `json:"admin"`
}

func toUserResponse(u *db.User) userResponse {
	return userResponse{
		ID:      u.ID,
		Email:   u.Email,
		Name:    u.Name,
		Picture: u.Picture,
		Admin:   u.Admin,
	}
}

// GetMe handles GET /api/v1/users/me and returns the authenticated user.
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	user := userFromCtx(r.Context())
	if user == nil {
		ErrUnauthorized(w)
		return
	}
	Ok(w, toUserResponse(user))
}

// List handles GET /api/v1/users (admin only).
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	opts := listOptionsFromQuery(r)

	users, total, err := h.users.List(r.Context(), opts)
	if err != nil {
		h.logger.Error("listing users failed", zap.Error(err))
		ErrInternal(w)
		return
	}

	out := make([]userResponse, 0, len(users))
	for i := range users {
		out = append(out, toUserResponse(&users[i]))
	}

	Ok(w, envelope{"users": out, "total": total})
}

// listOptionsFromQuery reads limit/offset pagination from the query string,
// defaulting to the first 50 records.
func listOptionsFromQuery(r *http.Request) repositories.ListOptions {
	opts := repositories.ListOptions{Limit: 50}
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 200 {
		opts.Limit = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
		opts.Offset = v
	}
	return opts
}
