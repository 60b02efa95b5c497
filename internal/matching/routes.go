package matching

import (
	"github.com/gorilla/mux"

	"github.com/collabmatch/collabmatch-backend/internal/auth"
)

func RegisterRoutes(router *mux.Router, handler *Handler, authMiddleware *auth.Middleware) {
	api := router.PathPrefix("/api/v1/matching").Subrouter()
	api.Use(authMiddleware.Authenticate)

	// Swipes
	api.HandleFunc("/swipes", handler.CreateSwipe).Methods("POST")
	api.HandleFunc("/swipes", handler.GetSwipes).Methods("GET")
	api.HandleFunc("/swipes/undo", handler.UndoSwipe).Methods("POST")

	// Matches
	api.HandleFunc("/matches", handler.GetMatches).Methods("GET")

	// Compatibility & discovery
	api.HandleFunc("/compatibility/{userId}", handler.GetCompatibility).Methods("GET")
	api.HandleFunc("/discover", handler.Discover).Methods("GET")
}
