package controllers

import (
	"errors"
	"log/slog"
	"net/http"
	"regexp"

	h "optionbooking/internal/delivery/http/helpers"
	"optionbooking/internal/delivery/http/middleware"
	"optionbooking/internal/domain"
	"optionbooking/internal/services"
)

// uuidRegex matches a canonical UUID string (8-4-4-4-12 hex).
var uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

type RegistrationController struct {
	Logger      *slog.Logger
	Coordinator *services.RegistrationCoordinator
}

func NewRegistrationController(logger *slog.Logger, coordinator *services.RegistrationCoordinator) *RegistrationController {
	return &RegistrationController{
		Logger:      logger,
		Coordinator: coordinator,
	}
}

// SubmitAnswerRequest is the request body for POST /options/{optionID}/answers.
type SubmitAnswerRequest struct {
	// Reserve asks for a checkout hold instead of a final booking.
	Reserve bool `json:"reserve"`
	// NotifyOnly asks to be told when a seat frees instead of claiming one.
	NotifyOnly bool `json:"notify_only"`
	// PendingSelection is the client's in-flight cart, included in the
	// credit check so a multi-option selection cannot overshoot the budget.
	PendingSelection []string `json:"pending_selection"`
}

// writeAllocationError maps the allocation error kinds onto HTTP statuses.
func (c *RegistrationController) writeAllocationError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		h.WriteJSONError(w, http.StatusNotFound, h.ErrCodeNotFound, "option not found")
	case errors.Is(err, domain.ErrOptionFull):
		h.WriteJSONError(w, http.StatusConflict, h.ErrCodeConflict, "option is full, including its waiting list")
	case errors.Is(err, domain.ErrQuotaExceeded),
		errors.Is(err, domain.ErrCreditExceeded),
		errors.Is(err, domain.ErrCombinationConflict):
		h.WriteJSONError(w, http.StatusConflict, h.ErrCodeConflict, err.Error())
	case errors.Is(err, domain.ErrConcurrencyConflict):
		h.WriteJSONError(w, http.StatusConflict, h.ErrCodeConflict, "concurrent update, please retry")
	case errors.Is(err, domain.ErrInvalidInput):
		h.WriteJSONError(w, http.StatusBadRequest, h.ErrCodeBadRequest, err.Error())
	default:
		c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		h.WriteJSONError(w, http.StatusInternalServerError, h.ErrCodeInternalError, err.Error())
	}
}

func optionIDFromPath(w http.ResponseWriter, r *http.Request) (string, bool) {
	optionID := r.PathValue("optionID")
	if optionID == "" {
		h.WriteJSONError(w, http.StatusBadRequest, h.ErrCodeBadRequest, "missing optionID")
		return "", false
	}
	if !uuidRegex.MatchString(optionID) {
		h.WriteJSONError(w, http.StatusBadRequest, h.ErrCodeBadRequest, "invalid optionID")
		return "", false
	}
	return optionID, true
}

// SubmitAnswer godoc
// @Summary Submit an answer for an option
// @Description Registers the authenticated user on the option. The resulting status is booked, waiting (overflow), or reserved when reserve=true. With notify_only=true a seat-availability notification request is recorded instead of a claim. Idempotent: re-submitting returns the existing answer with 200. A full option (including its waiting list) yields 409.
// @Tags answers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param optionID path string true "Option ID (UUID)"
// @Param body body SubmitAnswerRequest false "Submit flags"
// @Success 200 {object} helpers.APIResponse "Already answered; data contains the existing answer"
// @Success 201 {object} helpers.APIResponse "data contains the created answer"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict (full, quota, credits, combination)"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /options/{optionID}/answers [post]
func (c *RegistrationController) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	optionID, ok := optionIDFromPath(w, r)
	if !ok {
		return
	}
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		h.WriteJSONError(w, http.StatusUnauthorized, h.ErrCodeUnauthorized, "unauthorized")
		return
	}

	var req SubmitAnswerRequest
	if r.ContentLength > 0 && !h.DecodeAndValidate(w, r, &req) {
		return
	}

	answer, created, err := c.Coordinator.Submit(r.Context(), userID, optionID, services.SubmitOptions{
		Reserve:          req.Reserve,
		NotifyOnly:       req.NotifyOnly,
		PendingSelection: req.PendingSelection,
	})
	if err != nil {
		c.writeAllocationError(w, r, err)
		return
	}
	if created {
		h.WriteJSONSuccess(w, http.StatusCreated, answer)
		return
	}
	h.WriteJSONSuccess(w, http.StatusOK, answer)
}

// CancelAnswer godoc
// @Summary Cancel the authenticated user's answer for an option
// @Description Deletes the user's active answer. Freeing a primary seat promotes the earliest waiting answer. Cancelling twice yields 404.
// @Tags answers
// @Produce json
// @Security BearerAuth
// @Param optionID path string true "Option ID (UUID)"
// @Success 200 {object} helpers.APIResponse "data is null"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /options/{optionID}/answers [delete]
func (c *RegistrationController) CancelAnswer(w http.ResponseWriter, r *http.Request) {
	optionID, ok := optionIDFromPath(w, r)
	if !ok {
		return
	}
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		h.WriteJSONError(w, http.StatusUnauthorized, h.ErrCodeUnauthorized, "unauthorized")
		return
	}

	if err := c.Coordinator.Cancel(r.Context(), userID, optionID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.WriteJSONError(w, http.StatusNotFound, h.ErrCodeNotFound, "no active answer for this option")
			return
		}
		c.writeAllocationError(w, r, err)
		return
	}
	h.WriteJSONSuccess(w, http.StatusOK, nil)
}

// ConfirmReservation godoc
// @Summary Confirm a checkout hold
// @Description Finalizes the user's reserved answer into a completed booking. Confirming an already booked answer is a no-op.
// @Tags answers
// @Produce json
// @Security BearerAuth
// @Param optionID path string true "Option ID (UUID)"
// @Success 200 {object} helpers.APIResponse "data contains the confirmed answer"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request (answer not reserved)"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /options/{optionID}/answers/confirm [post]
func (c *RegistrationController) ConfirmReservation(w http.ResponseWriter, r *http.Request) {
	optionID, ok := optionIDFromPath(w, r)
	if !ok {
		return
	}
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		h.WriteJSONError(w, http.StatusUnauthorized, h.ErrCodeUnauthorized, "unauthorized")
		return
	}

	answer, err := c.Coordinator.ConfirmReservation(r.Context(), userID, optionID)
	if err != nil {
		c.writeAllocationError(w, r, err)
		return
	}
	h.WriteJSONSuccess(w, http.StatusOK, answer)
}

// ReleaseReservation godoc
// @Summary Abandon a checkout hold
// @Description Releases the user's reserved answer, freeing the seat for promotion.
// @Tags answers
// @Produce json
// @Security BearerAuth
// @Param optionID path string true "Option ID (UUID)"
// @Success 200 {object} helpers.APIResponse "data is null"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request (answer not reserved)"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /options/{optionID}/answers/reservation [delete]
func (c *RegistrationController) ReleaseReservation(w http.ResponseWriter, r *http.Request) {
	optionID, ok := optionIDFromPath(w, r)
	if !ok {
		return
	}
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		h.WriteJSONError(w, http.StatusUnauthorized, h.ErrCodeUnauthorized, "unauthorized")
		return
	}

	if err := c.Coordinator.ReleaseReservation(r.Context(), userID, optionID); err != nil {
		c.writeAllocationError(w, r, err)
		return
	}
	h.WriteJSONSuccess(w, http.StatusOK, nil)
}

// GetAvailability godoc
// @Summary Get an option's seat availability
// @Description Returns booked and waiting counts plus remaining seats and waitlist slots. Served from a cache invalidated on every answer mutation.
// @Tags options
// @Produce json
// @Param optionID path string true "Option ID (UUID)"
// @Success 200 {object} helpers.APIResponse "data contains the availability"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /options/{optionID}/availability [get]
func (c *RegistrationController) GetAvailability(w http.ResponseWriter, r *http.Request) {
	optionID, ok := optionIDFromPath(w, r)
	if !ok {
		return
	}
	availability, err := c.Coordinator.Availability(r.Context(), optionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.WriteJSONError(w, http.StatusNotFound, h.ErrCodeNotFound, "option not found")
			return
		}
		c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		h.WriteJSONError(w, http.StatusInternalServerError, h.ErrCodeInternalError, err.Error())
		return
	}
	h.WriteJSONSuccess(w, http.StatusOK, availability)
}

// ListMyAnswers godoc
// @Summary List the authenticated user's answers in an instance
// @Tags answers
// @Produce json
// @Security BearerAuth
// @Param instanceID path string true "Booking instance ID (UUID)"
// @Success 200 {object} helpers.APIResponse "data is an array of answers"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /instances/{instanceID}/answers/me [get]
func (c *RegistrationController) ListMyAnswers(w http.ResponseWriter, r *http.Request) {
	instanceID := r.PathValue("instanceID")
	if instanceID == "" || !uuidRegex.MatchString(instanceID) {
		h.WriteJSONError(w, http.StatusBadRequest, h.ErrCodeBadRequest, "invalid instanceID")
		return
	}
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		h.WriteJSONError(w, http.StatusUnauthorized, h.ErrCodeUnauthorized, "unauthorized")
		return
	}

	answers, err := c.Coordinator.MyAnswers(r.Context(), instanceID, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.WriteJSONError(w, http.StatusNotFound, h.ErrCodeNotFound, "instance not found")
			return
		}
		c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		h.WriteJSONError(w, http.StatusInternalServerError, h.ErrCodeInternalError, err.Error())
		return
	}
	if answers == nil {
		answers = []*domain.Answer{}
	}
	h.WriteJSONSuccess(w, http.StatusOK, answers)
}
