package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mta-academy/academy-api/internal/models"
	"github.com/mta-academy/academy-api/internal/service"
	appErrors "github.com/mta-academy/academy-api/pkg/errors"
	"github.com/mta-academy/academy-api/pkg/response"
)

// BeltTestHandler exposes belt test endpoints.
type BeltTestHandler struct {
	beltTests *service.BeltTestService
}

// NewBeltTestHandler constructs BeltTestHandler.
func NewBeltTestHandler(beltTests *service.BeltTestService) *BeltTestHandler {
	return &BeltTestHandler{beltTests: beltTests}
}

// List godoc
// @Summary List belt tests split into upcoming and past
// @Tags BeltTests
// @Produce json
// @Param studentId query string false "Filter by student"
// @Param result query string false "Filter by result"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /belt-tests [get]
func (h *BeltTestHandler) List(c *gin.Context) {
	var filter models.BeltTestFilter
	filter.StudentID = c.Query("studentId")
	if result := c.Query("result"); result != "" {
		r := models.TestResult(result)
		filter.Result = &r
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil {
		filter.PageSize = size
	}

	upcoming, past, pagination, err := h.beltTests.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"upcoming": upcoming, "past": past}, pagination)
}

// Get godoc
// @Summary Get a belt test
// @Tags BeltTests
// @Produce json
// @Param id path string true "Belt test ID"
// @Success 200 {object} response.Envelope
// @Router /belt-tests/{id} [get]
func (h *BeltTestHandler) Get(c *gin.Context) {
	test, err := h.beltTests.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, test, nil)
}

// Schedule godoc
// @Summary Schedule a belt test
// @Tags BeltTests
// @Accept json
// @Produce json
// @Param payload body service.ScheduleBeltTestRequest true "Belt test payload"
// @Success 201 {object} response.Envelope
// @Router /belt-tests [post]
func (h *BeltTestHandler) Schedule(c *gin.Context) {
	var req service.ScheduleBeltTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	test, err := h.beltTests.Schedule(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, test)
}

// Update godoc
// @Summary Amend a pending belt test
// @Tags BeltTests
// @Accept json
// @Produce json
// @Param id path string true "Belt test ID"
// @Param payload body service.UpdateBeltTestRequest true "Belt test payload"
// @Success 200 {object} response.Envelope
// @Router /belt-tests/{id} [put]
func (h *BeltTestHandler) Update(c *gin.Context) {
	var req service.UpdateBeltTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	test, err := h.beltTests.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, test, nil)
}

// Promote godoc
// @Summary Promote a student to a new belt rank
// @Tags BeltTests
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body service.PromoteStudentRequest false "Promotion payload, target defaults to the next rank"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/promote [post]
func (h *BeltTestHandler) Promote(c *gin.Context) {
	var req service.PromoteStudentRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return
		}
	}
	student, err := h.beltTests.Promote(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// RecordResult godoc
// @Summary Record the outcome of a belt test
// @Tags BeltTests
// @Accept json
// @Produce json
// @Param id path string true "Belt test ID"
// @Param payload body service.RecordBeltTestResultRequest true "Result payload"
// @Success 200 {object} response.Envelope
// @Router /belt-tests/{id}/result [patch]
func (h *BeltTestHandler) RecordResult(c *gin.Context) {
	var req service.RecordBeltTestResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	test, err := h.beltTests.RecordResult(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, test, nil)
}
