package http

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "optionbooking/docs"
	"optionbooking/internal/delivery/http/controllers"
	"optionbooking/internal/delivery/http/middleware"
	"optionbooking/internal/domain"
)

// Controllers groups the handler sets wired into the router.
type Controllers struct {
	Auth         *controllers.AuthController
	Registration *controllers.RegistrationController
	Selection    *controllers.SelectionController
	Options      *controllers.OptionController
	Transfers    *controllers.TransferController
}

// NewRouter initializes the HTTP router with all application routes.
// Admin routes additionally require the admin role.
func NewRouter(c Controllers, verifier domain.TokenVerifier, logger *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	authed := middleware.RequireAuth(verifier, logger)
	admin := func(fn http.HandlerFunc) http.HandlerFunc {
		return authed(middleware.RequireRole("admin")(fn))
	}

	// Auth
	mux.HandleFunc("POST /auth/signup", c.Auth.SignUp)
	mux.HandleFunc("POST /auth/login", c.Auth.Login)
	mux.HandleFunc("GET /users/me", authed(c.Auth.Me))

	// Public catalog
	mux.HandleFunc("GET /instances/{instanceID}/options", c.Options.ListOptions)
	mux.HandleFunc("GET /options/{optionID}/availability", c.Registration.GetAvailability)

	// Selection validation reads the caller's credit budget, so it needs the
	// authenticated user.
	mux.HandleFunc("POST /selection/validate", authed(c.Selection.ValidateSelection))

	// Answers
	mux.HandleFunc("POST /options/{optionID}/answers", authed(c.Registration.SubmitAnswer))
	mux.HandleFunc("DELETE /options/{optionID}/answers", authed(c.Registration.CancelAnswer))
	mux.HandleFunc("POST /options/{optionID}/answers/confirm", authed(c.Registration.ConfirmReservation))
	mux.HandleFunc("DELETE /options/{optionID}/answers/reservation", authed(c.Registration.ReleaseReservation))
	mux.HandleFunc("GET /instances/{instanceID}/answers/me", authed(c.Registration.ListMyAnswers))

	// Admin
	mux.HandleFunc("POST /admin/instances", admin(c.Options.CreateInstance))
	mux.HandleFunc("POST /admin/instances/{instanceID}/options", admin(c.Options.CreateOption))
	mux.HandleFunc("PUT /admin/options/{optionID}/capacity", admin(c.Options.UpdateCapacity))
	mux.HandleFunc("GET /admin/options/{optionID}/answers", admin(c.Options.ListOptionAnswers))
	mux.HandleFunc("POST /admin/combination-rules", admin(c.Options.CreateCombinationRule))
	mux.HandleFunc("POST /admin/transfers", admin(c.Transfers.MoveUsers))

	// Operational
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.Handle("/swagger/", httpSwagger.WrapHandler)

	return mux
}
