package transport

import (
	"encoding/json"
	"net/http"
	"strconv"

	"campusmarket-be/internal/assignment"
	"campusmarket-be/internal/auth"
	"campusmarket-be/internal/cart"
	"campusmarket-be/internal/checkout"
	"campusmarket-be/internal/delivery"
	"campusmarket-be/internal/metrics"
	"campusmarket-be/internal/order"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

const maxBodyBytes = 1 << 20

type Handler struct {
	carts      cart.Service
	checkout   checkout.Service
	orders     order.Engine
	deliveries assignment.Engine
}

func NewHandler(carts cart.Service, co checkout.Service, orders order.Engine, deliveries assignment.Engine) *Handler {
	return &Handler{
		carts:      carts,
		checkout:   co,
		orders:     orders,
		deliveries: deliveries,
	}
}

type AddItemRequestDTO struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type OptionsDTO struct {
	DeliveryOption      order.DeliveryOption `json:"delivery_option"`
	DeliveryFee         decimal.Decimal      `json:"delivery_fee"`
	Location            delivery.Location    `json:"location"`
	SpecialInstructions *string              `json:"special_instructions,omitempty"`
}

func (o OptionsDTO) options() checkout.Options {
	return checkout.Options{
		DeliveryOption:      o.DeliveryOption,
		DeliveryFee:         o.DeliveryFee,
		Location:            o.Location,
		SpecialInstructions: o.SpecialInstructions,
	}
}

type CheckoutRequestDTO struct {
	SellerID *int64 `json:"seller_id,omitempty"`
	OptionsDTO
}

type DirectOrderRequestDTO struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
	OptionsDTO
}

// CartLineDTO is a cart line as the buyer sees it, priced.
type CartLineDTO struct {
	cart.Line
	Subtotal decimal.Decimal `json:"subtotal"`
}

type CompleteDeliveryRequestDTO struct {
	Rating *int    `json:"rating,omitempty"`
	Review *string `json:"review,omitempty"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"counters": metrics.Snapshot(),
	})
}

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	p := principal(r)

	sellerID, ok := optionalIDQuery(w, r, "seller_id")
	if !ok {
		return
	}

	lines, err := h.carts.GetCart(r.Context(), p.ID, sellerID)
	if err != nil {
		respondDomainError(r.Context(), w, err)
		return
	}

	out := make([]CartLineDTO, 0, len(lines))
	for _, l := range lines {
		out = append(out, CartLineDTO{Line: l, Subtotal: l.Subtotal()})
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	p := principal(r)

	var req AddItemRequestDTO
	if !decode(w, r, &req) {
		return
	}
	if req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive")
		return
	}

	qty, err := h.carts.AddToCart(r.Context(), cart.AddToCartParams{
		BuyerID:   p.ID,
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
	})
	if err != nil {
		respondDomainError(r.Context(), w, err)
		return
	}

	respondJSON(w, http.StatusCreated, AddItemRequestDTO{ProductID: req.ProductID, Quantity: qty})
}

func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	p := principal(r)

	productID, ok := pathID(w, r, "productID")
	if !ok {
		return
	}

	if err := h.carts.RemoveFromCart(r.Context(), p.ID, productID); err != nil {
		respondDomainError(r.Context(), w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	p := principal(r)

	sellerID, ok := optionalIDQuery(w, r, "seller_id")
	if !ok {
		return
	}

	if err := h.carts.ClearCart(r.Context(), p.ID, sellerID); err != nil {
		respondDomainError(r.Context(), w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	p := principal(r)

	var req CheckoutRequestDTO
	if !decode(w, r, &req) {
		return
	}

	res, err := h.checkout.Checkout(r.Context(), p, checkout.Request{
		SellerID: req.SellerID,
		Options:  req.options(),
	})
	if err != nil {
		respondDomainError(r.Context(), w, err)
		return
	}
	if res.Placed == nil {
		res.Placed = []order.Placement{}
	}
	if res.Failed == nil {
		res.Failed = []checkout.LineFailure{}
	}

	// every line failed: nothing was created
	status := http.StatusCreated
	if len(res.Placed) == 0 {
		status = http.StatusConflict
	}
	respondJSON(w, status, res)
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	p := principal(r)

	var req DirectOrderRequestDTO
	if !decode(w, r, &req) {
		return
	}
	if req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive")
		return
	}

	placement, err := h.checkout.CreateDirectOrder(r.Context(), p, req.ProductID, req.Quantity, req.options())
	if err != nil {
		respondDomainError(r.Context(), w, err)
		return
	}

	respondJSON(w, http.StatusCreated, placement)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	placement, err := h.orders.Get(r.Context(), principal(r), id)
	if err != nil {
		respondDomainError(r.Context(), w, err)
		return
	}

	respondJSON(w, http.StatusOK, placement)
}

func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	o, err := h.orders.Cancel(r.Context(), principal(r), id)
	if err != nil {
		respondDomainError(r.Context(), w, err)
		return
	}

	respondJSON(w, http.StatusOK, o)
}

func (h *Handler) ConfirmPickup(w http.ResponseWriter, r *http.Request) {
	productID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	o, err := h.orders.ConfirmPickupDelivered(r.Context(), principal(r), productID)
	if err != nil {
		respondDomainError(r.Context(), w, err)
		return
	}

	respondJSON(w, http.StatusOK, o)
}

func (h *Handler) PendingDeliveries(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be a number")
			return
		}
		limit = n
	}

	pool, err := h.deliveries.Pool(r.Context(), principal(r), limit)
	if err != nil {
		respondDomainError(r.Context(), w, err)
		return
	}
	if pool == nil {
		pool = []delivery.Delivery{}
	}

	respondJSON(w, http.StatusOK, pool)
}

func (h *Handler) AcceptDelivery(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	d, err := h.deliveries.Accept(r.Context(), principal(r), id)
	if err != nil {
		respondDomainError(r.Context(), w, err)
		return
	}

	respondJSON(w, http.StatusOK, d)
}

func (h *Handler) CompleteDelivery(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req CompleteDeliveryRequestDTO
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}

	d, err := h.deliveries.Complete(r.Context(), principal(r), id, req.Rating, req.Review)
	if err != nil {
		respondDomainError(r.Context(), w, err)
		return
	}

	respondJSON(w, http.StatusOK, d)
}

// principal is only called behind RequireAuth.
func principal(r *http.Request) auth.Principal {
	p, _ := auth.PrincipalFrom(r.Context())
	return p
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_id", name+" must be a positive integer")
		return 0, false
	}
	return id, true
}

func optionalIDQuery(w http.ResponseWriter, r *http.Request, name string) (*int64, bool) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return nil, true
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a positive integer")
		return nil, false
	}
	return &id, true
}
