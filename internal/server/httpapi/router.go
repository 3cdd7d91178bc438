package httpapi

import (
	"net/http"

	"github.com/dkarpov/papersync/internal/server/services"
	"github.com/gorilla/mux"
)

// NewRouter assembles the full API surface. Everything except registration,
// login, and refresh sits behind the auth middleware.
func NewRouter(users *services.UserService, documents *services.DocumentService, objects *services.ObjectService, secretKey []byte) *mux.Router {
	authHandler := NewAuthHandler(users)
	documentHandler := NewDocumentHandler(documents)
	objectHandler := NewObjectHandler(objects)

	r := mux.NewRouter()

	r.HandleFunc("/api/auth/register", authHandler.Register).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/login", authHandler.Login).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/refresh", authHandler.Refresh).Methods(http.MethodPost)

	protected := r.PathPrefix("/api").Subrouter()
	protected.Use(AuthMiddleware(secretKey))

	protected.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	protected.HandleFunc("/documents", documentHandler.List).Methods(http.MethodGet)
	protected.HandleFunc("/documents/{syncId}", documentHandler.Put).Methods(http.MethodPut)
	protected.HandleFunc("/documents/{syncId}", documentHandler.Get).Methods(http.MethodGet)
	protected.HandleFunc("/documents/{syncId}", documentHandler.Delete).Methods(http.MethodDelete)

	protected.HandleFunc("/objects/presign-put", objectHandler.PresignPut).Methods(http.MethodPost)
	protected.HandleFunc("/objects/presign-get", objectHandler.PresignGet).Methods(http.MethodPost)
	protected.HandleFunc("/objects/delete", objectHandler.Delete).Methods(http.MethodPost)

	return r
}
