package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/Keoroanthony/orders-api/internal/db"
	"github.com/Keoroanthony/orders-api/internal/models"
)

const duplicateCodeMessage = "customer with this code already exists."

type CustomerRequest struct {
	Name        string  `json:"name" binding:"required,max=100"`
	Code        string  `json:"code" binding:"required,max=50"`
	PhoneNumber *string `json:"phone_number" binding:"omitempty,max=20"`
}

// CustomerPatch holds the fields of a PATCH. Absent fields are left alone and
// a null phone_number removes the number.
type CustomerPatch struct {
	Name        *string `json:"name" binding:"omitempty,min=1,max=100"`
	Code        *string `json:"code" binding:"omitempty,min=1,max=50"`
	PhoneNumber *string `json:"phone_number" binding:"omitempty,max=20"`
}

func (h *Handler) ListCustomers(c *gin.Context) {
	customers, err := h.store.ListCustomers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, customers)
}

func (h *Handler) CreateCustomer(c *gin.Context) {
	var req CustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	customer := models.Customer{
		Name:        strings.TrimSpace(req.Name),
		Code:        strings.TrimSpace(req.Code),
		PhoneNumber: req.PhoneNumber,
	}
	if customer.Name == "" || customer.Code == "" {
		respondBlank(c, customer)
		return
	}

	if err := h.store.CreateCustomer(c.Request.Context(), &customer); err != nil {
		respondCustomerError(c, err)
		return
	}

	c.JSON(http.StatusCreated, customer)
}

func (h *Handler) GetCustomer(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	customer, err := h.store.GetCustomer(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

// UpdateCustomer handles PUT, which replaces every field.
func (h *Handler) UpdateCustomer(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	var req CustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	customer := models.Customer{
		ID:          id,
		Name:        strings.TrimSpace(req.Name),
		Code:        strings.TrimSpace(req.Code),
		PhoneNumber: req.PhoneNumber,
	}
	if customer.Name == "" || customer.Code == "" {
		respondBlank(c, customer)
		return
	}

	if err := h.store.UpdateCustomer(c.Request.Context(), &customer); err != nil {
		respondCustomerError(c, err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

func (h *Handler) PatchCustomer(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	var req CustomerPatch
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
		respondBindingError(c, err)
		return
	}
	// A nil pointer cannot tell an absent phone_number from an explicit null,
	// which clears the number.
	var sent map[string]json.RawMessage
	if err := c.ShouldBindBodyWith(&sent, binding.JSON); err != nil {
		respondBindingError(c, err)
		return
	}

	customer, err := h.store.GetCustomer(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	if req.Name != nil {
		customer.Name = strings.TrimSpace(*req.Name)
	}
	if req.Code != nil {
		customer.Code = strings.TrimSpace(*req.Code)
	}
	if _, ok := sent["phone_number"]; ok {
		customer.PhoneNumber = req.PhoneNumber
	}
	if customer.Name == "" || customer.Code == "" {
		respondBlank(c, *customer)
		return
	}

	if err := h.store.UpdateCustomer(c.Request.Context(), customer); err != nil {
		respondCustomerError(c, err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

// DeleteCustomer also deletes the customer's orders.
func (h *Handler) DeleteCustomer(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	if err := h.store.DeleteCustomer(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func respondCustomerError(c *gin.Context, err error) {
	if errors.Is(err, db.ErrConflict) {
		fieldError(c, "code", duplicateCodeMessage)
		return
	}
	respondError(c, err)
}

func respondBlank(c *gin.Context, customer models.Customer) {
	fields := map[string][]string{}
	if customer.Name == "" {
		fields["name"] = []string{"This field may not be blank."}
	}
	if customer.Code == "" {
		fields["code"] = []string{"This field may not be blank."}
	}
	c.JSON(http.StatusBadRequest, errorResponse{Error: "validation failed", Fields: fields})
}

// idParam parses :id, writing a 404 for anything that is not a positive
// integer, since no such record can exist.
func idParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 0)
	if err != nil || id == 0 {
		c.JSON(http.StatusNotFound, errorResponse{Error: "not found"})
		return 0, false
	}
	return uint(id), true
}
