package handler

import (
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/cbt/internal/model"
)

type createUserRequest struct {
	Username    string         `json:"username" validate:"required,username,max=64"`
	DisplayName string         `json:"display_name" validate:"max=128"`
	Password    string         `json:"password" validate:"required,min=8,max=72"`
	Role        model.UserRole `json:"role" validate:"required,oneof=student teacher admin"`
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	ok(w, users)
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decode(r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}

	existing, err := h.store.GetUserByUsername(r.Context(), req.Username)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	if existing != nil {
		h.handleError(w, r, validationError("username", "is already taken"))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		slog.Error("failed to hash password", "error", err)
		h.handleError(w, r, err)
		return
	}

	if req.DisplayName == "" {
		req.DisplayName = req.Username
	}

	id, err := h.store.CreateUser(r.Context(), model.User{
		Username:     req.Username,
		DisplayName:  req.DisplayName,
		PasswordHash: string(hash),
		Role:         req.Role,
		Active:       true,
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	u, err := h.store.GetUserByID(r.Context(), id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	created(w, u)
}

func (h *Handler) handleToggleUserActive(w http.ResponseWriter, r *http.Request) {
	id, found := idParam(w, r, "userID")
	if !found {
		return
	}
	if me := model.UserFromContext(r.Context()); me != nil && me.ID == id {
		h.handleError(w, r, validationError("user_id", "cannot deactivate yourself"))
		return
	}

	u, err := h.store.GetUserByID(r.Context(), id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	if u == nil {
		fail(w, r, http.StatusNotFound, "ErrNotFound")
		return
	}
	if err := h.store.ToggleUserActive(r.Context(), id); err != nil {
		slog.Error("failed to toggle user active", "id", id, "error", err)
		h.handleError(w, r, err)
		return
	}
	u.Active = !u.Active
	ok(w, u)
}
