package routes

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/nurbekov/courtside/handlers"
	"github.com/nurbekov/courtside/middleware"
)

func SetupRoutes(
	router *chi.Mux,
	jwtSecret string,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	partyHandler *handlers.PartyHandler,
	memberHandler *handlers.MemberHandler,
	sessionHandler *handlers.SessionHandler,
	listingHandler *handlers.ListingHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authenticate := middleware.Authenticate(jwtSecret)

	router.Post("/auth/register", authHandler.Register)
	router.Post("/auth/login", authHandler.Login)

	router.Group(func(r chi.Router) {
		r.Use(authenticate)
		r.Get("/me", userHandler.GetMe)
		r.Post("/me/avatar", userHandler.UploadAvatar)
	})

	router.Route("/parties", func(r chi.Router) {
		// Public: anyone can browse parties and watch a session.
		r.Get("/", partyHandler.List)
		r.Get("/{partyID}", partyHandler.GetByID)
		r.Get("/{partyID}/members", memberHandler.List)
		r.Get("/{partyID}/session", sessionHandler.GetState)
		r.Get("/{partyID}/session/rankings", sessionHandler.Rankings)
		r.Get("/{partyID}/bill", partyHandler.Bill)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)

			r.Post("/", partyHandler.Create)
			r.Put("/{partyID}", partyHandler.Update)
			r.Post("/{partyID}/cancel", partyHandler.Cancel)

			r.Post("/{partyID}/members", memberHandler.Join)
			r.Delete("/{partyID}/members/{userID}", memberHandler.Leave)
			r.Put("/{partyID}/members/{userID}/level", memberHandler.SetLevel)

			// Session controls, host-gated in the service layer.
			r.Route("/{partyID}/session", func(r chi.Router) {
				r.Post("/start", sessionHandler.Start)
				r.Post("/stop", sessionHandler.Stop)
				r.Post("/auto-assign", sessionHandler.AutoAssign)
				r.Post("/reset", sessionHandler.Reset)
				r.Post("/refresh-players", sessionHandler.RefreshPlayers)
				r.Post("/guests", sessionHandler.AddGuest)
				r.Post("/remove-player", sessionHandler.RemovePlayer)
				r.Post("/toggle-pause", sessionHandler.TogglePause)
				r.Post("/swap-queue", sessionHandler.SwapQueue)
				r.Put("/court-count", sessionHandler.SetCourtCount)
				r.Put("/rotation-mode", sessionHandler.SetRotationMode)
				r.Put("/algorithm", sessionHandler.SetAlgorithm)

				r.Route("/courts/{courtID}", func(r chi.Router) {
					r.Post("/fill", sessionHandler.FillCourt)
					r.Post("/start-match", sessionHandler.StartMatch)
					r.Post("/finish-match", sessionHandler.FinishMatch)
					r.Post("/swap-players", sessionHandler.SwapPlayers)
					r.Post("/substitute", sessionHandler.Substitute)
					r.Put("/name", sessionHandler.RenameCourt)
				})
			})
		})
	})

	router.Route("/listings", func(r chi.Router) {
		r.Get("/", listingHandler.List)
		r.Get("/{listingID}", listingHandler.GetByID)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Post("/", listingHandler.Create)
			r.Put("/{listingID}", listingHandler.Update)
			r.Post("/{listingID}/sold", listingHandler.MarkSold)
			r.Delete("/{listingID}", listingHandler.Delete)
			r.Post("/{listingID}/photo", listingHandler.UploadPhoto)
		})
	})

	router.Get("/ws/parties/{partyID}", webSocketHandler.ServeWs)
}
