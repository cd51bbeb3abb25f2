package decisions

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-compliance/meridian/internal/authz"
	"github.com/meridian-compliance/meridian/internal/directory"
	"github.com/meridian-compliance/meridian/internal/platform/httpx"
	"github.com/meridian-compliance/meridian/internal/shared"
)

// Handler wires the decision API endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	directory *directory.Service
	guard     Middleware
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, directorySvc *directory.Service, guard Middleware) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		directory: directorySvc,
		guard:     guard,
		validator: validator.New(),
	}
}

// MountRoutes registers the decision API on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireActor)
		r.Post("/decisions", h.check)
		r.Get("/actor", h.currentActor)
		r.Get("/accounts/{accountID}/clients", h.accountClients)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequirePermission(authz.ModuleSettings, authz.ActionView))
		r.Get("/roles", h.listRoles)
		r.Get("/roles/{role}", h.getRole)
	})
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	var input CheckInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if !h.validateInput(w, input) {
		return
	}

	actor, _ := authz.ActorFromContext(r.Context())
	// Asking about someone else's permissions is user administration.
	if input.UserID != actor.UserID {
		if err := authz.AssertPermission(actor, authz.ModuleUsers, authz.ActionView); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}

	decision, err := h.service.Check(r.Context(), input)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, decision)
}

type actorResponse struct {
	UserID       string                          `json:"user_id"`
	Role         authz.Role                      `json:"role"`
	TenantID     int64                           `json:"tenant_id"`
	Unrestricted bool                            `json:"unrestricted"`
	Capabilities map[authz.Module][]authz.Action `json:"capabilities,omitempty"`
}

func (h *Handler) currentActor(w http.ResponseWriter, r *http.Request) {
	actor, _ := authz.ActorFromContext(r.Context())
	profile := ProfileFor(actor.Role)
	httpx.JSON(w, http.StatusOK, actorResponse{
		UserID:       actor.UserID,
		Role:         actor.Role,
		TenantID:     actor.TenantID,
		Unrestricted: profile.Unrestricted,
		Capabilities: profile.Capabilities,
	})
}

type assignmentDTO struct {
	ClientID  int64      `json:"client_id"`
	GrantedAt time.Time  `json:"granted_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type accountClientsResponse struct {
	AccountID   int64           `json:"account_id"`
	Role        authz.Role      `json:"role"`
	ClientIDs   []int64         `json:"client_ids"`
	Assignments []assignmentDTO `json:"assignments"`
	Page        int             `json:"page"`
	PerPage     int             `json:"per_page"`
	Total       int             `json:"total"`
	TotalPages  int             `json:"total_pages"`
}

func (h *Handler) accountClients(w http.ResponseWriter, r *http.Request) {
	accountID, err := strconv.ParseInt(chi.URLParam(r, "accountID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "account id must be an integer")
		return
	}
	actor, _ := authz.ActorFromContext(r.Context())

	account, err := h.directory.Account(r.Context(), accountID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := authz.AssertTenantAccess(actor.TenantID, account.TenantID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	// Reading another account's assignments is user administration; reading
	// your own is always fine.
	if actor.UserID != strconv.FormatInt(accountID, 10) {
		if err := authz.AssertPermission(actor, authz.ModuleUsers, authz.ActionView); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}

	subject := authz.Actor{UserID: strconv.FormatInt(account.ID, 10), Role: account.Role, TenantID: account.TenantID}
	clientIDs, err := h.directory.AssignedClients(r.Context(), subject)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	page, perPage := shared.PageFromQuery(r)
	assignments, pagination, err := h.directory.Assignments(r.Context(), accountID, page, perPage)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	response := accountClientsResponse{
		AccountID:   account.ID,
		Role:        account.Role,
		ClientIDs:   clientIDs,
		Assignments: make([]assignmentDTO, 0, len(assignments)),
		Page:        pagination.Page,
		PerPage:     pagination.PerPage,
		Total:       pagination.Total,
		TotalPages:  pagination.TotalPages,
	}
	for _, assignment := range assignments {
		response.Assignments = append(response.Assignments, assignmentDTO{
			ClientID:  assignment.ClientID,
			GrantedAt: assignment.GrantedAt,
			ExpiresAt: assignment.ExpiresAt,
		})
	}
	httpx.JSON(w, http.StatusOK, response)
}

type rolesResponse struct {
	Roles []RoleProfile `json:"roles"`
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, rolesResponse{Roles: Profiles()})
}

func (h *Handler) getRole(w http.ResponseWriter, r *http.Request) {
	role, err := authz.ParseRole(chi.URLParam(r, "role"))
	if err != nil {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "unknown role")
		return
	}
	httpx.JSON(w, http.StatusOK, ProfileFor(role))
}

func (h *Handler) validateInput(w http.ResponseWriter, input CheckInput) bool {
	err := h.validator.Struct(input)
	if err == nil {
		return true
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		fields := make([]string, 0, len(fieldErrs))
		for _, fieldErr := range fieldErrs {
			fields = append(fields, strings.ToLower(fieldErr.Field()))
		}
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", fmt.Sprintf("missing or invalid fields: %s", strings.Join(fields, ", ")))
		return false
	}
	httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	return false
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, directory.ErrNotFound) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "account not found")
		return
	}
	if !authz.IsForbidden(err) && h.logger != nil {
		h.logger.Error("decision api failure", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
