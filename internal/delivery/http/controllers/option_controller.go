package controllers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"optionbooking/internal/cache"
	h "optionbooking/internal/delivery/http/helpers"
	"optionbooking/internal/domain"
	"optionbooking/internal/services"
)

// OptionController carries the admin surface: instance and option management,
// capacity edits with resync, and combination rules.
type OptionController struct {
	Logger       *slog.Logger
	Options      domain.OptionRepository
	Instances    domain.InstanceRepository
	Rules        domain.CombinationRuleRepository
	Answers      domain.AnswerRepository
	Promoter     *services.WaitlistPromoter
	Availability *cache.Cache[string, domain.OptionAvailability]
	Clock        func() time.Time
}

func NewOptionController(
	logger *slog.Logger,
	options domain.OptionRepository,
	instances domain.InstanceRepository,
	rules domain.CombinationRuleRepository,
	answers domain.AnswerRepository,
	promoter *services.WaitlistPromoter,
	availability *cache.Cache[string, domain.OptionAvailability],
	clock func() time.Time,
) *OptionController {
	return &OptionController{
		Logger:       logger,
		Options:      options,
		Instances:    instances,
		Rules:        rules,
		Answers:      answers,
		Promoter:     promoter,
		Availability: availability,
		Clock:        clock,
	}
}

// CreateInstanceRequest is the request body for POST /admin/instances.
type CreateInstanceRequest struct {
	Name          string `json:"name"`
	MaxPerUser    int    `json:"max_per_user"`
	MaxCredits    int    `json:"max_credits"`
	ConsumeAtOnce bool   `json:"consume_at_once"`
}

// Validate implements helpers.Validator.
func (c CreateInstanceRequest) Validate() []string {
	var errs []string
	if strings.TrimSpace(c.Name) == "" {
		errs = append(errs, "name is required")
	}
	if c.MaxPerUser < 0 {
		errs = append(errs, "max_per_user must not be negative")
	}
	if c.MaxCredits < 0 {
		errs = append(errs, "max_credits must not be negative")
	}
	return errs
}

// CreateInstance godoc
// @Summary Create a booking instance
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body CreateInstanceRequest true "Instance data"
// @Success 201 {object} helpers.APIResponse "data contains the created instance"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /admin/instances [post]
func (c *OptionController) CreateInstance(w http.ResponseWriter, r *http.Request) {
	var req CreateInstanceRequest
	if !h.DecodeAndValidate(w, r, &req) {
		return
	}

	now := c.Clock()
	instance := domain.NewBookingInstance(strings.TrimSpace(req.Name), req.MaxPerUser, req.MaxCredits, req.ConsumeAtOnce, now, now)
	if err := c.Instances.Create(r.Context(), instance); err != nil {
		c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		h.WriteJSONError(w, http.StatusInternalServerError, h.ErrCodeInternalError, err.Error())
		return
	}
	h.WriteJSONSuccess(w, http.StatusCreated, instance)
}

// CreateOptionRequest is the request body for POST /admin/instances/{instanceID}/options.
type CreateOptionRequest struct {
	Title          string `json:"title"`
	MaxAnswers     int    `json:"max_answers"`
	MaxOverbooking int    `json:"max_overbooking"`
	LimitAnswers   bool   `json:"limit_answers"`
	Credits        int    `json:"credits"`
}

// Validate implements helpers.Validator.
func (c CreateOptionRequest) Validate() []string {
	var errs []string
	if strings.TrimSpace(c.Title) == "" {
		errs = append(errs, "title is required")
	}
	if c.MaxAnswers < 0 {
		errs = append(errs, "max_answers must not be negative")
	}
	if c.MaxOverbooking < 0 {
		errs = append(errs, "max_overbooking must not be negative")
	}
	if c.Credits < 0 {
		errs = append(errs, "credits must not be negative")
	}
	return errs
}

// CreateOption godoc
// @Summary Create an option in a booking instance
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param instanceID path string true "Booking instance ID (UUID)"
// @Param body body CreateOptionRequest true "Option data"
// @Success 201 {object} helpers.APIResponse "data contains the created option"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /admin/instances/{instanceID}/options [post]
func (c *OptionController) CreateOption(w http.ResponseWriter, r *http.Request) {
	instanceID := r.PathValue("instanceID")
	if instanceID == "" || !uuidRegex.MatchString(instanceID) {
		h.WriteJSONError(w, http.StatusBadRequest, h.ErrCodeBadRequest, "invalid instanceID")
		return
	}
	var req CreateOptionRequest
	if !h.DecodeAndValidate(w, r, &req) {
		return
	}

	if _, err := c.Instances.GetByID(r.Context(), instanceID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.WriteJSONError(w, http.StatusNotFound, h.ErrCodeNotFound, "instance not found")
			return
		}
		c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		h.WriteJSONError(w, http.StatusInternalServerError, h.ErrCodeInternalError, err.Error())
		return
	}

	now := c.Clock()
	option := domain.NewOption(instanceID, strings.TrimSpace(req.Title), req.MaxAnswers, req.MaxOverbooking, req.LimitAnswers, req.Credits, now, now)
	if err := c.Options.Create(r.Context(), option); err != nil {
		c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		h.WriteJSONError(w, http.StatusInternalServerError, h.ErrCodeInternalError, err.Error())
		return
	}
	h.WriteJSONSuccess(w, http.StatusCreated, option)
}

// ListOptions godoc
// @Summary List the options of a booking instance
// @Tags options
// @Produce json
// @Param instanceID path string true "Booking instance ID (UUID)"
// @Success 200 {object} helpers.APIResponse "data is an array of options"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /instances/{instanceID}/options [get]
func (c *OptionController) ListOptions(w http.ResponseWriter, r *http.Request) {
	instanceID := r.PathValue("instanceID")
	if instanceID == "" || !uuidRegex.MatchString(instanceID) {
		h.WriteJSONError(w, http.StatusBadRequest, h.ErrCodeBadRequest, "invalid instanceID")
		return
	}
	options, err := c.Options.ListByInstanceID(r.Context(), instanceID)
	if err != nil {
		c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		h.WriteJSONError(w, http.StatusInternalServerError, h.ErrCodeInternalError, err.Error())
		return
	}
	h.WriteJSONSuccess(w, http.StatusOK, options)
}

// UpdateCapacityRequest is the request body for PUT /admin/options/{optionID}/capacity.
type UpdateCapacityRequest struct {
	MaxAnswers     int  `json:"max_answers"`
	MaxOverbooking int  `json:"max_overbooking"`
	LimitAnswers   bool `json:"limit_answers"`
	// Resync re-ranks all existing answers against the new capacity.
	// Without it the new limits only apply to future submissions.
	Resync bool `json:"resync"`
}

// Validate implements helpers.Validator.
func (u UpdateCapacityRequest) Validate() []string {
	var errs []string
	if u.MaxAnswers < 0 {
		errs = append(errs, "max_answers must not be negative")
	}
	if u.MaxOverbooking < 0 {
		errs = append(errs, "max_overbooking must not be negative")
	}
	return errs
}

// UpdateCapacityResponse is the response body for PUT /admin/options/{optionID}/capacity.
type UpdateCapacityResponse struct {
	Option *domain.Option         `json:"option"`
	Resync *services.ResyncResult `json:"resync,omitempty"`
}

// UpdateCapacity godoc
// @Summary Update an option's capacity configuration
// @Description Changes max_answers, max_overbooking, and limit_answers. With resync=true the existing answers are destructively re-ranked by creation order: the first max_answers stay booked, the next max_overbooking wait, the rest are evicted.
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param optionID path string true "Option ID (UUID)"
// @Param body body UpdateCapacityRequest true "New capacity"
// @Success 200 {object} helpers.APIResponse "data contains the option and, when requested, the resync summary"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /admin/options/{optionID}/capacity [put]
func (c *OptionController) UpdateCapacity(w http.ResponseWriter, r *http.Request) {
	optionID, ok := optionIDFromPath(w, r)
	if !ok {
		return
	}
	var req UpdateCapacityRequest
	if !h.DecodeAndValidate(w, r, &req) {
		return
	}

	option, err := c.Options.UpdateCapacity(r.Context(), optionID, req.MaxAnswers, req.MaxOverbooking, req.LimitAnswers, c.Clock())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.WriteJSONError(w, http.StatusNotFound, h.ErrCodeNotFound, "option not found")
			return
		}
		c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		h.WriteJSONError(w, http.StatusInternalServerError, h.ErrCodeInternalError, err.Error())
		return
	}

	// New limits change the derived seat picture even without a resync.
	c.Availability.Invalidate(optionID)

	resp := UpdateCapacityResponse{Option: option}
	if req.Resync {
		result, err := c.Promoter.Resync(r.Context(), option)
		if err != nil {
			c.Logger.ErrorContext(r.Context(), "resync failed", "option_id", optionID, "err", err)
			h.WriteJSONError(w, http.StatusInternalServerError, h.ErrCodeInternalError, err.Error())
			return
		}
		resp.Resync = result
	}
	h.WriteJSONSuccess(w, http.StatusOK, resp)
}

// CreateCombinationRuleRequest is the request body for POST /admin/combination-rules.
type CreateCombinationRuleRequest struct {
	OptionID      string `json:"option_id"`
	OtherOptionID string `json:"other_option_id"`
	MustCombine   bool   `json:"must_combine"`
}

// Validate implements helpers.Validator.
func (c CreateCombinationRuleRequest) Validate() []string {
	var errs []string
	if !uuidRegex.MatchString(c.OptionID) {
		errs = append(errs, "option_id must be a valid UUID")
	}
	if !uuidRegex.MatchString(c.OtherOptionID) {
		errs = append(errs, "other_option_id must be a valid UUID")
	}
	if c.OptionID != "" && c.OptionID == c.OtherOptionID {
		errs = append(errs, "option_id and other_option_id must differ")
	}
	return errs
}

// CreateCombinationRule godoc
// @Summary Create a combination rule between two options
// @Description Stores the rule symmetrically. A pair cannot carry both a must-combine and a must-not-combine assertion.
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body CreateCombinationRuleRequest true "Rule data"
// @Success 201 {object} helpers.APIResponse "data contains the created rule"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request (incl. opposite assertion exists)"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /admin/combination-rules [post]
func (c *OptionController) CreateCombinationRule(w http.ResponseWriter, r *http.Request) {
	var req CreateCombinationRuleRequest
	if !h.DecodeAndValidate(w, r, &req) {
		return
	}

	rule := domain.NewCombinationRule(req.OptionID, req.OtherOptionID, req.MustCombine)
	if err := c.Rules.Create(r.Context(), rule); err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			h.WriteJSONError(w, http.StatusBadRequest, h.ErrCodeBadRequest, err.Error())
			return
		}
		c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		h.WriteJSONError(w, http.StatusInternalServerError, h.ErrCodeInternalError, err.Error())
		return
	}
	h.WriteJSONSuccess(w, http.StatusCreated, rule)
}

// ListOptionAnswersResponse is the response body for GET /admin/options/{optionID}/answers.
type ListOptionAnswersResponse struct {
	Answers    []*domain.Answer `json:"answers"`
	Pagination h.PaginationMeta `json:"pagination"`
}

// ListOptionAnswers godoc
// @Summary List an option's active answers (admin)
// @Description Returns active answers ordered by creation time, paginated with page and page_size query parameters.
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param optionID path string true "Option ID (UUID)"
// @Param page query int false "Page (default 1)"
// @Param page_size query int false "Page size (default 20, max 100)"
// @Success 200 {object} helpers.APIResponse "data contains answers and pagination"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /admin/options/{optionID}/answers [get]
func (c *OptionController) ListOptionAnswers(w http.ResponseWriter, r *http.Request) {
	optionID, ok := optionIDFromPath(w, r)
	if !ok {
		return
	}
	if _, err := c.Options.GetByID(r.Context(), optionID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.WriteJSONError(w, http.StatusNotFound, h.ErrCodeNotFound, "option not found")
			return
		}
		c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		h.WriteJSONError(w, http.StatusInternalServerError, h.ErrCodeInternalError, err.Error())
		return
	}

	answers, err := c.Answers.ListActiveByOption(r.Context(), optionID)
	if err != nil {
		c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		h.WriteJSONError(w, http.StatusInternalServerError, h.ErrCodeInternalError, err.Error())
		return
	}

	params := h.ParsePagination(r)
	total := len(answers)
	start := params.Offset()
	if start > total {
		start = total
	}
	end := start + params.PageSize
	if end > total {
		end = total
	}
	page := answers[start:end]
	if page == nil {
		page = []*domain.Answer{}
	}
	h.WriteJSONSuccess(w, http.StatusOK, ListOptionAnswersResponse{
		Answers:    page,
		Pagination: h.NewPaginationMeta(params.Page, params.PageSize, total),
	})
}
