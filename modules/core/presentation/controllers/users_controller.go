package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"

	"github.com/rescueranger/rescueranger/modules/core/domain/aggregates/user"
	"github.com/rescueranger/rescueranger/modules/core/services"
	"github.com/rescueranger/rescueranger/pkg/application"
)

type UsersController struct {
	app      application.Application
	basePath string
}

func NewUsersController(app application.Application) application.Controller {
	return &UsersController{
		app:      app,
		basePath: "/users",
	}
}

func (c *UsersController) Key() string {
	return c.basePath
}

func (c *UsersController) Register(r *mux.Router) {
	router := r.PathPrefix(c.basePath).Subrouter()
	router.HandleFunc("", c.list).Methods(http.MethodGet)
	router.HandleFunc("", c.invite).Methods(http.MethodPost)
	router.HandleFunc("/{id}", c.get).Methods(http.MethodGet)
	router.HandleFunc("/{id}", c.update).Methods(http.MethodPut)
	router.HandleFunc("/{id}", c.remove).Methods(http.MethodDelete)
	router.HandleFunc("/{id}/role", c.assignRole).Methods(http.MethodPost)
}

func (c *UsersController) userService() *services.UserService {
	return c.app.Service(services.UserService{}).(*services.UserService)
}

type userResponse struct {
	ID            uuid.UUID `json:"id"`
	TenantID      uuid.UUID `json:"tenant_id"`
	Email         string    `json:"email"`
	FirstName     string    `json:"first_name"`
	LastName      string    `json:"last_name"`
	Role          string    `json:"role"`
	IsSystemAdmin bool      `json:"is_system_admin"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func toUserResponse(u *user.User) *userResponse {
	return &userResponse{
		ID:            u.ID(),
		TenantID:      u.TenantID(),
		Email:         u.Email(),
		FirstName:     u.FirstName(),
		LastName:      u.LastName(),
		Role:          string(u.Role()),
		IsSystemAdmin: u.IsSystemAdmin(),
		CreatedAt:     u.CreatedAt(),
		UpdatedAt:     u.UpdatedAt(),
	}
}

func (c *UsersController) list(w http.ResponseWriter, r *http.Request) {
	users, err := c.userService().List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]*userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	writeJSON(w, http.StatusOK, out)
}

type inviteUserRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
	Password  string `json:"password"`
}

func (c *UsersController) invite(w http.ResponseWriter, r *http.Request) {
	var req inviteUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Email == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email and password are required"})
		return
	}
	role := user.Role(req.Role)
	if req.Role == "" {
		role = user.RoleMember
	}
	if !role.IsValid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown role"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, r, err)
		return
	}

	created, err := c.userService().Invite(r.Context(), user.New(
		req.FirstName,
		req.LastName,
		req.Email,
		user.WithRole(role),
		user.WithPasswordHash(string(hash)),
	))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserResponse(created))
}

func (c *UsersController) get(w http.ResponseWriter, r *http.Request) {
	id, ok := c.userID(w, r)
	if !ok {
		return
	}
	u, err := c.userService().GetByID(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(u))
}

type updateUserRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
}

func (c *UsersController) update(w http.ResponseWriter, r *http.Request) {
	id, ok := c.userID(w, r)
	if !ok {
		return
	}
	var req updateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	u, err := c.userService().GetByID(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	firstName := u.FirstName()
	if req.FirstName != nil {
		firstName = *req.FirstName
	}
	lastName := u.LastName()
	if req.LastName != nil {
		lastName = *req.LastName
	}
	u.SetName(firstName, lastName)

	updated, err := c.userService().Update(r.Context(), u)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(updated))
}

type assignRoleRequest struct {
	Role string `json:"role"`
}

func (c *UsersController) assignRole(w http.ResponseWriter, r *http.Request) {
	id, ok := c.userID(w, r)
	if !ok {
		return
	}
	var req assignRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	role := user.Role(req.Role)
	if !role.IsValid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown role"})
		return
	}

	updated, err := c.userService().AssignRole(r.Context(), id, role)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(updated))
}

func (c *UsersController) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := c.userID(w, r)
	if !ok {
		return
	}
	if err := c.userService().Remove(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (c *UsersController) userID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid user id"})
		return uuid.Nil, false
	}
	return id, true
}
