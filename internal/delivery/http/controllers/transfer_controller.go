package controllers

import (
	"errors"
	"log/slog"
	"net/http"

	h "optionbooking/internal/delivery/http/helpers"
	"optionbooking/internal/domain"
	"optionbooking/internal/services"
)

type TransferController struct {
	Logger      *slog.Logger
	Coordinator *services.TransferCoordinator
}

func NewTransferController(logger *slog.Logger, coordinator *services.TransferCoordinator) *TransferController {
	return &TransferController{
		Logger:      logger,
		Coordinator: coordinator,
	}
}

// TransferRequest is the request body for POST /admin/transfers.
type TransferRequest struct {
	SourceOptionID string   `json:"source_option_id"`
	DestOptionID   string   `json:"dest_option_id"`
	UserIDs        []string `json:"user_ids"`
}

// Validate implements helpers.Validator.
func (t TransferRequest) Validate() []string {
	var errs []string
	if !uuidRegex.MatchString(t.SourceOptionID) {
		errs = append(errs, "source_option_id must be a valid UUID")
	}
	if !uuidRegex.MatchString(t.DestOptionID) {
		errs = append(errs, "dest_option_id must be a valid UUID")
	}
	if len(t.UserIDs) == 0 {
		errs = append(errs, "user_ids is required")
	}
	return errs
}

// MoveUsers godoc
// @Summary Transfer users between options
// @Description Moves each user from the source option to the destination. Per-user atomic: a user refused by the destination keeps the source seat and is reported in failed. The destination seat is granted before the source answer is cancelled.
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body TransferRequest true "Transfer data"
// @Success 200 {object} helpers.APIResponse "data contains the per-user transfer result"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /admin/transfers [post]
func (c *TransferController) MoveUsers(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if !h.DecodeAndValidate(w, r, &req) {
		return
	}

	result, err := c.Coordinator.MoveUsers(r.Context(), req.SourceOptionID, req.DestOptionID, req.UserIDs)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.WriteJSONError(w, http.StatusNotFound, h.ErrCodeNotFound, "option not found")
			return
		}
		if errors.Is(err, domain.ErrInvalidInput) {
			h.WriteJSONError(w, http.StatusBadRequest, h.ErrCodeBadRequest, err.Error())
			return
		}
		c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		h.WriteJSONError(w, http.StatusInternalServerError, h.ErrCodeInternalError, err.Error())
		return
	}
	h.WriteJSONSuccess(w, http.StatusOK, result)
}
