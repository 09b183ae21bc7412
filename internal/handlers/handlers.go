// Package handlers implements the JSON HTTP API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"expense-tracker/internal/auth"
	"expense-tracker/internal/events"
	"expense-tracker/internal/guard"
	"expense-tracker/internal/log"
	"expense-tracker/internal/models"
	"expense-tracker/internal/reports"
)

// Context key type to avoid collisions.
type contextKey string

// UserContextKey is the context key for the authenticated user.
const UserContextKey contextKey = "user"

// Store is the persistence the handlers need.
type Store interface {
	CreateExpense(ctx context.Context, e models.Expense) (*models.Expense, error)
	GetExpense(ctx context.Context, id int64) (*models.Expense, error)
	ListExpensesByOwner(ctx context.Context, ownerID int64, filter models.ExpenseFilter) ([]models.Expense, error)
	UpdateExpense(ctx context.Context, id int64, patch models.ExpensePatch) (*models.Expense, error)
	DeleteExpense(ctx context.Context, id int64) error

	CreateUser(ctx context.Context, username, passwordHash string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)

	Ping(ctx context.Context) error
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	store     Store
	tokens    *auth.TokenIssuer
	guard     *guard.Guard
	reports   *reports.Engine
	publisher events.Publisher
}

// NewHandlers creates a new Handlers instance. A nil publisher drops events.
func NewHandlers(store Store, tokens *auth.TokenIssuer, policy guard.Policy, publisher events.Publisher) *Handlers {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Handlers{
		store:     store,
		tokens:    tokens,
		guard:     guard.New(tokens, store, policy),
		reports:   reports.NewEngine(store),
		publisher: publisher,
	}
}

// Routes returns the API router.
func (h *Handlers) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", h.Health)
	mux.HandleFunc("POST /users/register", h.Register)
	mux.HandleFunc("POST /users/login", h.Login)

	mux.Handle("POST /expenses", h.RequireAuth(http.HandlerFunc(h.CreateExpense)))
	mux.Handle("GET /expenses", h.RequireAuth(http.HandlerFunc(h.ListExpenses)))
	mux.Handle("GET /expenses/export", h.RequireAuth(http.HandlerFunc(h.ExportExpenses)))
	mux.Handle("GET /expenses/{id}", h.RequireAuth(http.HandlerFunc(h.GetExpense)))
	mux.Handle("PUT /expenses/{id}", h.RequireAuth(http.HandlerFunc(h.UpdateExpense)))
	mux.Handle("DELETE /expenses/{id}", h.RequireAuth(http.HandlerFunc(h.DeleteExpense)))
	mux.Handle("GET /reports/expenses", h.RequireAuth(http.HandlerFunc(h.ExpenseReport)))

	return mux
}

// GetUserFromContext retrieves the authenticated user from request context.
func GetUserFromContext(r *http.Request) *models.User {
	if user, ok := r.Context().Value(UserContextKey).(*models.User); ok {
		return user
	}
	return nil
}

// RequireAuth wraps handlers to require a valid bearer token.
func (h *Handlers) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		credential := guard.BearerToken(r.Header.Get("Authorization"))
		user, err := h.guard.ResolveCaller(r.Context(), credential)
		if err != nil {
			if errors.Is(err, guard.ErrUnauthenticated) {
				log.FromContext(r.Context()).WithComponent(log.ComponentAuth).
					Debug("Rejected credential", log.FieldError, err)
			}
			writeError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		ctx = log.NewContext(ctx, log.FromContext(ctx).With(log.FieldUserID, user.ID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Health reports whether the database is reachable.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		log.FromContext(r.Context()).Error("Health check failed", log.FieldError, err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) publish(ctx context.Context, t events.Type, e *models.Expense) {
	if err := h.publisher.Publish(ctx, events.NewEvent(t, e.ID, e.UserID)); err != nil {
		log.FromContext(ctx).WithComponent(log.ComponentEvents).Warn("Failed to publish event",
			log.FieldEvent, t,
			log.FieldExpenseID, e.ID,
			log.FieldError, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
