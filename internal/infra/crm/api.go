package crm

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/boddenberg/sellernotes-bot-go/internal/domain"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// HTTP API
// ============================================================
//
//	POST /login                          {"username","password"} → {"id_token","success"}
//	GET  /customers?type=code&term=1     Bearer → LookupResult
//	GET  /customers/{id}                 Bearer → Customer
//	POST /contacts                       Bearer, ContactMessage → SaveResult
//	GET  /contacts?customer_id=1         Bearer → []StoredContact

// LoginRequest is the body of POST /login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Router exposes the mock CRM over HTTP.
func Router(identity *IdentityService, directory *Directory, contacts *ContactStore, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Post("/login", loginHandler(identity, logger))

	r.Group(func(r chi.Router) {
		r.Use(bearerAuth(identity, logger))
		r.Get("/customers", searchHandler(directory))
		r.Get("/customers/{id}", getCustomerHandler(directory))
		r.Post("/contacts", saveContactHandler(contacts, logger))
		r.Get("/contacts", listContactsHandler(contacts, logger))
	})
	return r
}

func loginHandler(identity *IdentityService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid body"})
			return
		}
		res, err := identity.Login(r.Context(), req.Username, req.Password)
		if err != nil {
			logger.Error("crm login failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "login failed"})
			return
		}
		if !res.Success {
			writeJSON(w, http.StatusUnauthorized, res)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func searchHandler(directory *Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := parseQuery(r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		// the token was already checked by bearerAuth
		res, err := directory.Search(r.Context(), bearerToken(r), q)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
			return
		}
		writeJSON(w, res.StatusCode, res)
	}
}

func getCustomerHandler(directory *Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "id must be a number"})
			return
		}
		c, err := directory.Get(id)
		if err != nil {
			var nf *domain.ErrNotFound
			if errors.As(err, &nf) {
				writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
				return
			}
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

func saveContactHandler(contacts *ContactStore, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var msg domain.ContactMessage
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			writeJSON(w, http.StatusBadRequest, domain.SaveResult{ErrorMessage: "invalid body"})
			return
		}
		res, err := contacts.Save(r.Context(), bearerToken(r), &msg)
		if err != nil {
			logger.Error("crm save failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, domain.SaveResult{ErrorMessage: "storage failure"})
			return
		}
		status := http.StatusCreated
		if !res.Success {
			status = http.StatusUnprocessableEntity
		}
		writeJSON(w, status, res)
	}
}

func listContactsHandler(contacts *ContactStore, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(r.URL.Query().Get("customer_id"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "customer_id must be a number"})
			return
		}
		list, err := contacts.List(r.Context(), id)
		if err != nil {
			logger.Error("crm list failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "storage failure"})
			return
		}
		if list == nil {
			list = []StoredContact{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// parseQuery reads ?type=code|vat|name&term=...
func parseQuery(r *http.Request) (domain.CustomerQuery, error) {
	term := r.URL.Query().Get("term")
	q := domain.CustomerQuery{Type: domain.SearchType(r.URL.Query().Get("type"))}
	switch q.Type {
	case domain.SearchByCode:
		code, err := strconv.Atoi(term)
		if err != nil {
			return q, &domain.ErrValidation{Field: "term", Message: "code must be a number"}
		}
		q.Code = code
	case domain.SearchByVAT:
		q.VAT = term
	case domain.SearchByNamePart:
		q.NamePart = term
	default:
		return q, &domain.ErrValidation{Field: "type", Message: "unknown search type"}
	}
	return q, nil
}

// bearerAuth rejects requests without a valid access token.
func bearerAuth(identity *IdentityService, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing bearer token"})
				return
			}
			if _, err := identity.ValidateToken(token); err != nil {
				logger.Warn("crm: invalid or expired token",
					zap.String("path", r.URL.Path),
					zap.Error(err),
				)
				writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
