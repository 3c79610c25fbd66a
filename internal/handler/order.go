package handler

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dgtech/storefront/internal/domain/order"
)

type deliveryRequest struct {
	FirstName       string          `json:"first_name"`
	LastName        string          `json:"last_name"`
	Email           string          `json:"email"`
	PhoneNumber     string          `json:"phone_number"`
	ShippingAddress string          `json:"shipping_address"`
	City            string          `json:"city"`
	ZipCode         string          `json:"zip_code"`
	PaymentMethod   string          `json:"payment_method"`
	ShippingFee     decimal.Decimal `json:"shipping_fee"`
}

func (d *deliveryRequest) toDomain() order.Delivery {
	return order.Delivery{
		FirstName:       d.FirstName,
		LastName:        d.LastName,
		Email:           d.Email,
		PhoneNumber:     d.PhoneNumber,
		ShippingAddress: d.ShippingAddress,
		City:            d.City,
		ZipCode:         d.ZipCode,
		PaymentMethod:   d.PaymentMethod,
		ShippingFee:     d.ShippingFee,
	}
}

type orderItemResponse struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Color     string          `json:"color,omitempty"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type orderResponse struct {
	ID        string              `json:"id"`
	Status    string              `json:"status"`
	Items     []orderItemResponse `json:"items"`
	Subtotal  decimal.Decimal     `json:"subtotal"`
	Discount  decimal.Decimal     `json:"discount"`
	Total     decimal.Decimal     `json:"total"`
	CreatedAt time.Time           `json:"created_at"`
}

func toOrderResponse(o *order.Order) orderResponse {
	out := orderResponse{
		ID:        o.ID,
		Status:    o.Status,
		Items:     make([]orderItemResponse, len(o.Items)),
		Subtotal:  o.Subtotal(),
		CreatedAt: o.CreatedAt,
	}
	for i, it := range o.Items {
		out.Items[i] = orderItemResponse{
			ProductID: it.ProductID,
			Name:      it.Name,
			Color:     it.Color,
			Quantity:  it.Quantity,
			Price:     it.Price,
		}
	}
	out.Total = out.Subtotal
	if o.Delivery != nil {
		out.Discount = o.Delivery.Discount
		out.Total = o.Delivery.PaymentAmount
	}
	return out
}

// Checkout creates an order from cart lines and ad-hoc items, attaches the
// delivery and places it.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CartIDs []int64 `json:"cart_ids"`
		Items   []struct {
			ProductID string `json:"product_id"`
			Quantity  int    `json:"quantity"`
			Color     string `json:"color"`
		} `json:"items"`
		CouponCode string          `json:"coupon_code"`
		Delivery   deliveryRequest `json:"delivery"`
	}
	if err := decode(r, &req); err != nil {
		badRequest(w, "malformed request body")
		return
	}

	co := order.CheckoutRequest{
		UserID:     userID(r),
		CartIDs:    req.CartIDs,
		CouponCode: req.CouponCode,
		Delivery:   req.Delivery.toDomain(),
	}
	for _, it := range req.Items {
		co.Items = append(co.Items, order.ItemRequest{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Color:     it.Color,
		})
	}

	o, err := h.orders.Checkout(r.Context(), co)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusCreated, toOrderResponse(o))
}

// AttachDelivery attaches delivery details to an existing order.
func (h *Handler) AttachDelivery(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrderID string `json:"order_id"`
		deliveryRequest
	}
	if err := decode(r, &req); err != nil {
		badRequest(w, "malformed request body")
		return
	}
	if req.OrderID == "" {
		badRequest(w, "order_id is required")
		return
	}

	if err := h.orders.AttachDelivery(r.Context(), req.OrderID, req.toDomain()); err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, struct {
		OrderID string `json:"order_id"`
		Status  string `json:"status"`
	}{OrderID: req.OrderID, Status: order.StatusPlaced})
}

// ListOrders returns the caller's orders, newest first.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}
	orders, err := h.orders.List(r.Context(), uid)
	if err != nil {
		respondError(w, r, err)
		return
	}
	out := make([]orderResponse, len(orders))
	for i := range orders {
		out[i] = toOrderResponse(&orders[i])
	}
	respond(w, http.StatusOK, out)
}

// GetOrder returns a single order with its items.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, toOrderResponse(o))
}

// UpdateOrderStatus moves an order to a new lifecycle status.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := decode(r, &req); err != nil {
		badRequest(w, "malformed request body")
		return
	}

	id := r.PathValue("id")
	if err := h.orders.UpdateStatus(r.Context(), id, req.Status); err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, struct {
		OrderID string `json:"order_id"`
		Status  string `json:"status"`
	}{OrderID: id, Status: req.Status})
}
