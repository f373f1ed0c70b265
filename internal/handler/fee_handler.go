package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mta-academy/academy-api/internal/models"
	"github.com/mta-academy/academy-api/internal/service"
	appErrors "github.com/mta-academy/academy-api/pkg/errors"
	"github.com/mta-academy/academy-api/pkg/response"
)

// FeeHandler exposes monthly fee endpoints.
type FeeHandler struct {
	fees *service.FeeService
}

// NewFeeHandler constructs FeeHandler.
func NewFeeHandler(fees *service.FeeService) *FeeHandler {
	return &FeeHandler{fees: fees}
}

func monthYearFromQuery(c *gin.Context) (int, int) {
	now := time.Now().UTC()
	month, err := strconv.Atoi(c.DefaultQuery("month", strconv.Itoa(int(now.Month()))))
	if err != nil {
		month = int(now.Month())
	}
	year, err := strconv.Atoi(c.DefaultQuery("year", strconv.Itoa(now.Year())))
	if err != nil {
		year = now.Year()
	}
	return month, year
}

// List godoc
// @Summary List monthly fee records for a billing period
// @Tags Fees
// @Produce json
// @Param month query int false "Billing month, defaults to current"
// @Param year query int false "Billing year, defaults to current"
// @Param status query string false "Filter by payment status"
// @Param studentId query string false "Filter by student"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /fees [get]
func (h *FeeHandler) List(c *gin.Context) {
	month, year := monthYearFromQuery(c)
	filter := models.MonthlyFeeFilter{Month: month, Year: year}
	filter.StudentID = c.Query("studentId")
	if status := c.Query("status"); status != "" {
		s := models.PaymentStatus(status)
		if !s.Valid() {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown payment status"))
			return
		}
		filter.Status = &s
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil {
		filter.PageSize = size
	}

	fees, pagination, err := h.fees.ListForMonth(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, fees, pagination)
}

// Summary godoc
// @Summary Get collection totals for a billing period
// @Tags Fees
// @Produce json
// @Param month query int false "Billing month, defaults to current"
// @Param year query int false "Billing year, defaults to current"
// @Success 200 {object} response.Envelope
// @Router /fees/summary [get]
func (h *FeeHandler) Summary(c *gin.Context) {
	month, year := monthYearFromQuery(c)
	summary, err := h.fees.MonthSummary(c.Request.Context(), month, year)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Get godoc
// @Summary Get a monthly fee record
// @Tags Fees
// @Produce json
// @Param id path string true "Fee ID"
// @Success 200 {object} response.Envelope
// @Router /fees/{id} [get]
func (h *FeeHandler) Get(c *gin.Context) {
	fee, err := h.fees.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, fee, nil)
}

// UpdateStatus godoc
// @Summary Update payment status of a monthly fee record
// @Tags Fees
// @Accept json
// @Produce json
// @Param id path string true "Fee ID"
// @Param payload body service.UpdateFeeStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Router /fees/{id}/status [patch]
func (h *FeeHandler) UpdateStatus(c *gin.Context) {
	var req service.UpdateFeeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	fee, err := h.fees.UpdateStatus(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, fee, nil)
}
