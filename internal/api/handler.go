package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fatimaafzal05/medi-trax/domain"
	"github.com/fatimaafzal05/medi-trax/internal/catalog"
	"github.com/fatimaafzal05/medi-trax/internal/credentials"
	"github.com/fatimaafzal05/medi-trax/internal/dispense"
	"github.com/fatimaafzal05/medi-trax/internal/ledger"
	"github.com/fatimaafzal05/medi-trax/internal/observability/metrics"
)

type ctxKey string

const (
	ctxUserID ctxKey = "userID"
	ctxRole   ctxKey = "role"
)

// Handler bundles dependencies for HTTP handlers.
type Handler struct {
	catalog   *catalog.Catalog
	ledger    *ledger.Ledger
	workflow  *dispense.Workflow
	creds     *credentials.Store
	secret    string
	threshold int64
	logger    *slog.Logger
}

// New constructs a Handler.
func New(c *catalog.Catalog, l *ledger.Ledger, w *dispense.Workflow, cr *credentials.Store, secret string, lowStockThreshold int64, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		catalog:   c,
		ledger:    l,
		workflow:  w,
		creds:     cr,
		secret:    secret,
		threshold: lowStockThreshold,
		logger:    logger,
	}
}

// Router wires up the HTTP API.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.HTTPMiddleware)

	r.Get("/health", h.health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.register)
		r.Post("/login", h.login)
		r.Group(func(protected chi.Router) {
			protected.Use(h.authMiddleware)
			protected.Post("/change-password", h.changePassword)
			protected.Put("/profile", h.updateProfile)
		})
	})

	r.Group(func(pr chi.Router) {
		pr.Use(h.authMiddleware)

		pr.Route("/medications", func(r chi.Router) {
			r.Get("/", h.listMedications)
			r.Post("/", h.addMedication)
			r.Get("/summary", h.stockSummary)
			r.Get("/{id}", h.getMedication)
			r.Put("/{id}", h.updateMedication)
			r.Delete("/{id}", h.removeMedication)
			r.Post("/{id}/stock", h.adjustStock)
			r.Get("/{id}/history", h.stockHistory)
		})

		pr.Post("/dispense", h.dispense)

		pr.Route("/users", func(r chi.Router) {
			r.Get("/", h.listUsers)
			r.Delete("/{id}", h.deactivateUser)
		})
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Authentication helpers

type authClaims struct {
	UserID int64       `json:"user_id"`
	Role   domain.Role `json:"role"`
	jwt.RegisteredClaims
}

func (h *Handler) generateToken(userID int64, role domain.Role) (string, error) {
	claims := authClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.secret))
}

func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			respondError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		tokenString := strings.TrimSpace(header[len("Bearer "):])
		token, err := jwt.ParseWithClaims(tokenString, &authClaims{}, func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwt.SigningMethodHS256 {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(h.secret), nil
		})
		if err != nil || !token.Valid {
			respondError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		claims, ok := token.Claims.(*authClaims)
		if !ok {
			respondError(w, http.StatusUnauthorized, "invalid token claims")
			return
		}
		ctx := context.WithValue(r.Context(), ctxUserID, claims.UserID)
		ctx = context.WithValue(ctx, ctxRole, claims.Role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) requireRole(w http.ResponseWriter, r *http.Request, allowed ...domain.Role) bool {
	role := r.Context().Value(ctxRole)
	if role == nil {
		respondError(w, http.StatusUnauthorized, "missing role")
		return false
	}
	current := role.(domain.Role)
	for _, allowedRole := range allowed {
		if current == allowedRole {
			return true
		}
	}
	respondError(w, http.StatusForbidden, "insufficient permissions")
	return false
}

func actorID(r *http.Request) *int64 {
	if v := r.Context().Value(ctxUserID); v != nil {
		id := v.(int64)
		return &id
	}
	return nil
}

// respondCoreError maps the core error taxonomy onto HTTP statuses. Unknown
// errors are logged and surfaced as a generic failure.
func (h *Handler) respondCoreError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInsufficientStock):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrConflict):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrBusy):
		respondError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, domain.ErrAuthFailed):
		respondError(w, http.StatusUnauthorized, "invalid credentials")
	default:
		h.logger.Error("unexpected failure", "operation", op, "error", err)
		respondError(w, http.StatusInternalServerError, "unable to "+op)
	}
}

// Auth handlers

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	FullName string `json:"fullname"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Role     string `json:"role"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	user, err := h.creds.Register(r.Context(), credentials.RegisterInput{
		Username: req.Username,
		Password: req.Password,
		FullName: req.FullName,
		Email:    req.Email,
		Phone:    req.Phone,
		Role:     domain.Role(req.Role),
	})
	if err != nil {
		h.respondCoreError(w, "register", err)
		return
	}
	token, err := h.generateToken(user.ID, user.Role)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to generate token")
		return
	}
	respondJSON(w, http.StatusCreated, authResponse{Token: token, User: user})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	user, err := h.creds.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		h.respondCoreError(w, "login", err)
		return
	}
	token, err := h.generateToken(user.ID, user.Role)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to generate token")
		return
	}
	respondJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	uid := r.Context().Value(ctxUserID).(int64)
	if err := h.creds.ChangePassword(r.Context(), uid, payload.CurrentPassword, payload.NewPassword); err != nil {
		h.respondCoreError(w, "change password", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "password updated"})
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		FullName string `json:"fullname"`
		Email    string `json:"email"`
		Phone    string `json:"phone"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	uid := r.Context().Value(ctxUserID).(int64)
	if err := h.creds.UpdateProfile(r.Context(), uid, payload.FullName, payload.Email, payload.Phone); err != nil {
		h.respondCoreError(w, "update profile", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "profile updated"})
}

// Medication handlers

type medicationRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Stock       int64   `json:"stock"`
	Price       float64 `json:"price"`
}

func (h *Handler) addMedication(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleAdmin) {
		return
	}
	var req medicationRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	med, err := h.catalog.Add(r.Context(), catalog.AddInput{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Stock:       req.Stock,
		Price:       req.Price,
	})
	if err != nil {
		h.respondCoreError(w, "add medication", err)
		return
	}
	respondJSON(w, http.StatusCreated, med)
}

func (h *Handler) listMedications(w http.ResponseWriter, r *http.Request) {
	meds, err := h.catalog.Search(r.Context(), r.URL.Query().Get("query"))
	if err != nil {
		h.respondCoreError(w, "list medications", err)
		return
	}
	respondJSON(w, http.StatusOK, meds)
}

func (h *Handler) getMedication(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid medication id")
		return
	}
	med, err := h.catalog.Get(r.Context(), id)
	if err != nil {
		h.respondCoreError(w, "get medication", err)
		return
	}
	respondJSON(w, http.StatusOK, med)
}

// medicationUpdateRequest carries no stock field; stock only changes
// through the stock endpoint.
type medicationUpdateRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Price       float64 `json:"price"`
}

func (h *Handler) updateMedication(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleAdmin) {
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid medication id")
		return
	}
	var req medicationUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	med, err := h.catalog.Update(r.Context(), id, catalog.UpdateInput{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Price:       req.Price,
	})
	if err != nil {
		h.respondCoreError(w, "update medication", err)
		return
	}
	respondJSON(w, http.StatusOK, med)
}

func (h *Handler) removeMedication(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleAdmin) {
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid medication id")
		return
	}
	if err := h.catalog.Remove(r.Context(), id); err != nil {
		h.respondCoreError(w, "remove medication", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

func (h *Handler) stockSummary(w http.ResponseWriter, r *http.Request) {
	threshold := h.threshold
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid threshold")
			return
		}
		threshold = parsed
	}
	summary, err := h.catalog.Summary(r.Context(), threshold)
	if err != nil {
		h.respondCoreError(w, "stock summary", err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// Ledger handlers

type adjustRequest struct {
	Action   string `json:"action"`
	Quantity int64  `json:"quantity"`
	Reason   string `json:"reason"`
}

func (h *Handler) adjustStock(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleAdmin, domain.RolePharmacist) {
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid medication id")
		return
	}
	var req adjustRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var med domain.Medication
	switch req.Action {
	case "add", "remove":
		if req.Quantity <= 0 {
			respondError(w, http.StatusBadRequest, "quantity must be positive")
			return
		}
		delta := req.Quantity
		if req.Action == "remove" {
			delta = -delta
		}
		med, err = h.ledger.AdjustBy(r.Context(), id, delta, req.Reason, actorID(r))
	case "set":
		med, err = h.ledger.SetStock(r.Context(), id, req.Quantity, req.Reason, actorID(r))
	default:
		respondError(w, http.StatusBadRequest, "action must be add, remove or set")
		return
	}
	if err != nil {
		h.respondCoreError(w, "adjust stock", err)
		return
	}
	respondJSON(w, http.StatusOK, med)
}

func (h *Handler) stockHistory(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleAdmin, domain.RolePharmacist) {
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid medication id")
		return
	}
	entries, err := h.ledger.History(r.Context(), id)
	if err != nil {
		h.respondCoreError(w, "fetch history", err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

// Dispense handler

type dispenseRequest struct {
	MedicationID int64  `json:"medication_id"`
	Quantity     int64  `json:"quantity"`
	Recipient    string `json:"recipient"`
	Prescriber   string `json:"prescriber"`
	Notes        string `json:"notes"`
}

func (h *Handler) dispense(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleAdmin, domain.RolePharmacist) {
		return
	}
	var req dispenseRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	receipt, err := h.workflow.Dispense(r.Context(), dispense.Request{
		MedicationID: req.MedicationID,
		Quantity:     req.Quantity,
		Recipient:    req.Recipient,
		Prescriber:   req.Prescriber,
		Notes:        req.Notes,
		ActorID:      actorID(r),
	})
	if err != nil {
		h.respondCoreError(w, "dispense", err)
		return
	}
	respondJSON(w, http.StatusCreated, receipt)
}

// User handlers

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleAdmin) {
		return
	}
	users, err := h.creds.ListUsers(r.Context())
	if err != nil {
		h.respondCoreError(w, "list users", err)
		return
	}
	respondJSON(w, http.StatusOK, users)
}

func (h *Handler) deactivateUser(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleAdmin) {
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	if err := h.creds.Deactivate(r.Context(), id); err != nil {
		h.respondCoreError(w, "deactivate user", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}

// Helpers

func decodeJSON(r *http.Request, dest interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	_ = encoder.Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
