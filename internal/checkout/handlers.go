package checkout

import (
	"encoding/json"
	"net/http"

	"github.com/noah-isme/service-checkout/internal/common"
)

// Handler exposes POST /api/create-order.
type Handler struct {
	Svc *Service
}

type createResponse struct {
	Success     bool   `json:"success"`
	CheckoutURL string `json:"checkoutUrl"`
	OrderID     string `json:"orderId"`
	Status      string `json:"status"`
}

// Create handles a checkout form submission.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Svc == nil || h.Svc.Catalog == nil || h.Svc.Gateway == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "Checkout unavailable", "checkout service not configured")
		return
	}
	var payload Request
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.WriteError(w, common.BadRequest(common.CodeBadRequest, "Invalid request body", err))
		return
	}
	out, err := h.Svc.CreateOrder(r.Context(), payload)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, createResponse{
		Success:     true,
		CheckoutURL: out.CheckoutURL,
		OrderID:     out.OrderID,
		Status:      out.Status,
	})
}
