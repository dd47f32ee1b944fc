package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/rescueranger/rescueranger/modules/rescue/domain/entities/horse"
	"github.com/rescueranger/rescueranger/modules/rescue/infrastructure/persistence"
	"github.com/rescueranger/rescueranger/modules/rescue/services"
	"github.com/rescueranger/rescueranger/pkg/application"
	"github.com/rescueranger/rescueranger/pkg/httpapi"
)

type HorsesController struct {
	app      application.Application
	basePath string
}

func NewHorsesController(app application.Application) application.Controller {
	return &HorsesController{
		app:      app,
		basePath: "/horses",
	}
}

func (c *HorsesController) Key() string {
	return c.basePath
}

func (c *HorsesController) Register(r *mux.Router) {
	router := r.PathPrefix(c.basePath).Subrouter()
	router.HandleFunc("", c.list).Methods(http.MethodGet)
	router.HandleFunc("", c.intake).Methods(http.MethodPost)
	router.HandleFunc("/report", c.report).Methods(http.MethodGet)
	router.HandleFunc("/{id}", c.get).Methods(http.MethodGet)
	router.HandleFunc("/{id}", c.update).Methods(http.MethodPut)
	router.HandleFunc("/{id}", c.remove).Methods(http.MethodDelete)
}

func (c *HorsesController) horseService() *services.HorseService {
	return c.app.Service(services.HorseService{}).(*services.HorseService)
}

type horseResponse struct {
	ID         uuid.UUID `json:"id"`
	TenantID   uuid.UUID `json:"tenant_id"`
	Name       string    `json:"name"`
	Breed      string    `json:"breed,omitempty"`
	Microchip  string    `json:"microchip,omitempty"`
	Status     string    `json:"status"`
	IntakeDate time.Time `json:"intake_date"`
	Notes      string    `json:"notes,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func toHorseResponse(h *horse.Horse) *horseResponse {
	return &horseResponse{
		ID:         h.ID(),
		TenantID:   h.TenantID(),
		Name:       h.Name(),
		Breed:      h.Breed(),
		Microchip:  h.Microchip(),
		Status:     string(h.Status()),
		IntakeDate: h.IntakeDate(),
		Notes:      h.Notes(),
		CreatedAt:  h.CreatedAt(),
		UpdatedAt:  h.UpdatedAt(),
	}
}

func (c *HorsesController) list(w http.ResponseWriter, r *http.Request) {
	horses, err := c.horseService().List(r.Context())
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	c.writeJSON(w, http.StatusOK, toHorseResponses(horses))
}

// report aggregates across every tenant and is restricted to system
// administrators; the escape from tenant scoping is audited downstream.
func (c *HorsesController) report(w http.ResponseWriter, r *http.Request) {
	horses, err := c.horseService().ListAllTenants(r.Context())
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	c.writeJSON(w, http.StatusOK, toHorseResponses(horses))
}

type intakeHorseRequest struct {
	Name       string     `json:"name"`
	Breed      string     `json:"breed"`
	Microchip  string     `json:"microchip"`
	IntakeDate *time.Time `json:"intake_date"`
	Notes      string     `json:"notes"`
}

func (c *HorsesController) intake(w http.ResponseWriter, r *http.Request) {
	var req intakeHorseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		c.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Name == "" {
		c.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	opts := []horse.Option{
		horse.WithBreed(req.Breed),
		horse.WithMicrochip(req.Microchip),
		horse.WithNotes(req.Notes),
	}
	if req.IntakeDate != nil {
		opts = append(opts, horse.WithIntakeDate(*req.IntakeDate))
	}

	created, err := c.horseService().Intake(r.Context(), horse.New(req.Name, opts...))
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	c.writeJSON(w, http.StatusCreated, toHorseResponse(created))
}

func (c *HorsesController) get(w http.ResponseWriter, r *http.Request) {
	id, ok := c.horseID(w, r)
	if !ok {
		return
	}
	h, err := c.horseService().GetByID(r.Context(), id)
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	c.writeJSON(w, http.StatusOK, toHorseResponse(h))
}

type updateHorseRequest struct {
	Name   *string `json:"name"`
	Status *string `json:"status"`
	Notes  *string `json:"notes"`
}

func (c *HorsesController) update(w http.ResponseWriter, r *http.Request) {
	id, ok := c.horseID(w, r)
	if !ok {
		return
	}
	var req updateHorseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		c.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	h, err := c.horseService().GetByID(r.Context(), id)
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	if req.Name != nil {
		h.SetName(*req.Name)
	}
	if req.Status != nil {
		status := horse.Status(*req.Status)
		if !status.IsValid() {
			c.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown horse status"})
			return
		}
		h.SetStatus(status)
	}
	if req.Notes != nil {
		h.SetNotes(*req.Notes)
	}

	updated, err := c.horseService().Update(r.Context(), h)
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	c.writeJSON(w, http.StatusOK, toHorseResponse(updated))
}

func (c *HorsesController) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := c.horseID(w, r)
	if !ok {
		return
	}
	if err := c.horseService().Delete(r.Context(), id); err != nil {
		c.writeError(w, r, err)
		return
	}
	c.writeJSON(w, http.StatusNoContent, nil)
}

func (c *HorsesController) horseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		c.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid horse id"})
		return uuid.Nil, false
	}
	return id, true
}

func toHorseResponses(horses []*horse.Horse) []*horseResponse {
	out := make([]*horseResponse, 0, len(horses))
	for _, h := range horses {
		out = append(out, toHorseResponse(h))
	}
	return out
}

func (c *HorsesController) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		panic(err)
	}
}

func (c *HorsesController) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, persistence.ErrHorseNotFound) {
		c.writeJSON(w, http.StatusNotFound, map[string]string{"error": "horse not found"})
		return
	}
	_ = httpapi.WriteProblem(w, r, err)
}
