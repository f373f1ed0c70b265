package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mta-academy/academy-api/internal/service"
	appErrors "github.com/mta-academy/academy-api/pkg/errors"
	"github.com/mta-academy/academy-api/pkg/response"
)

// InvoiceHandler exposes invoice generation endpoints.
type InvoiceHandler struct {
	invoices *service.InvoiceService
}

// NewInvoiceHandler constructs InvoiceHandler.
func NewInvoiceHandler(invoices *service.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{invoices: invoices}
}

// Generate godoc
// @Summary Generate a fee invoice PDF for selected months
// @Tags Invoices
// @Accept json
// @Produce application/pdf
// @Param id path string true "Student ID"
// @Param payload body service.GenerateInvoiceRequest true "Invoice payload"
// @Success 200 {file} file
// @Router /students/{id}/invoice [post]
func (h *InvoiceHandler) Generate(c *gin.Context) {
	var req service.GenerateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.invoices.Generate(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Document.Filename))
	c.Data(http.StatusOK, "application/pdf", result.PDF)
}
