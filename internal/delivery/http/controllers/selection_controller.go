package controllers

import (
	"errors"
	"log/slog"
	"net/http"

	h "optionbooking/internal/delivery/http/helpers"
	"optionbooking/internal/delivery/http/middleware"
	"optionbooking/internal/domain"
	"optionbooking/internal/services"
)

type SelectionController struct {
	Logger      *slog.Logger
	Eligibility *services.EligibilityEngine
	Instances   domain.InstanceRepository
}

func NewSelectionController(logger *slog.Logger, eligibility *services.EligibilityEngine, instances domain.InstanceRepository) *SelectionController {
	return &SelectionController{
		Logger:      logger,
		Eligibility: eligibility,
		Instances:   instances,
	}
}

// ValidateSelectionRequest is the request body for POST /selection/validate.
type ValidateSelectionRequest struct {
	InstanceID string   `json:"instance_id"`
	OptionIDs  []string `json:"option_ids"`
}

// Validate implements helpers.Validator.
func (v ValidateSelectionRequest) Validate() []string {
	var errs []string
	if !uuidRegex.MatchString(v.InstanceID) {
		errs = append(errs, "instance_id must be a valid UUID")
	}
	if len(v.OptionIDs) == 0 {
		errs = append(errs, "option_ids is required")
	}
	for _, id := range v.OptionIDs {
		if !uuidRegex.MatchString(id) {
			errs = append(errs, "option_ids must contain valid UUIDs")
			break
		}
	}
	return errs
}

// ValidateSelectionResponse is the response body for POST /selection/validate.
type ValidateSelectionResponse struct {
	Bookable bool   `json:"bookable"`
	Reason   string `json:"reason,omitempty"`
}

// ValidateSelection godoc
// @Summary Validate a multi-option selection before checkout
// @Description Checks the combination rules (every must-combine partner present, no must-not-combine partner) and that the caller's credit budget covers the selection on top of what they already hold.
// @Tags selection
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body ValidateSelectionRequest true "Instance and selected option IDs"
// @Success 200 {object} helpers.APIResponse "data contains bookable and, when false, a reason"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /selection/validate [post]
func (c *SelectionController) ValidateSelection(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		h.WriteJSONError(w, http.StatusUnauthorized, h.ErrCodeUnauthorized, "authentication required")
		return
	}
	var req ValidateSelectionRequest
	if !h.DecodeAndValidate(w, r, &req) {
		return
	}

	instance, err := c.Instances.GetByID(r.Context(), req.InstanceID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.WriteJSONError(w, http.StatusNotFound, h.ErrCodeNotFound, "instance not found")
			return
		}
		c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		h.WriteJSONError(w, http.StatusInternalServerError, h.ErrCodeInternalError, err.Error())
		return
	}

	bookable, err := c.Eligibility.IsBookableCombination(r.Context(), req.OptionIDs)
	if err != nil {
		c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		h.WriteJSONError(w, http.StatusInternalServerError, h.ErrCodeInternalError, err.Error())
		return
	}
	if !bookable {
		h.WriteJSONSuccess(w, http.StatusOK, ValidateSelectionResponse{Bookable: false, Reason: "combination rules not satisfied"})
		return
	}

	if err := c.Eligibility.CheckSelectionCredits(r.Context(), instance, userID, req.OptionIDs); err != nil {
		if errors.Is(err, domain.ErrCreditExceeded) {
			h.WriteJSONSuccess(w, http.StatusOK, ValidateSelectionResponse{Bookable: false, Reason: err.Error()})
			return
		}
		c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		h.WriteJSONError(w, http.StatusInternalServerError, h.ErrCodeInternalError, err.Error())
		return
	}
	h.WriteJSONSuccess(w, http.StatusOK, ValidateSelectionResponse{Bookable: true})
}
