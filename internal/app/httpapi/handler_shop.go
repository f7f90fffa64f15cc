package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	shopsvc "github.com/EduShopX/edushop/internal/app/services/shop"
	apperrors "github.com/EduShopX/edushop/internal/errors"
	"github.com/EduShopX/edushop/internal/httputil"
	"github.com/EduShopX/edushop/internal/middleware"
)

type cartItemRequest struct {
	Book     int64 `json:"book"`
	Quantity int   `json:"quantity"`
}

type verifyRequest struct {
	Authority string `json:"authority"`
}

func (h *handler) registerShopRoutes(api *mux.Router) {
	api.HandleFunc("/store/books/", h.listStoreBooks).Methods(http.MethodGet)

	buy := api.PathPrefix("/buy").Subrouter()
	buy.Use(middleware.Require(middleware.IsAuthenticated))
	buy.HandleFunc("/cart/", h.getCart).Methods(http.MethodGet)
	buy.HandleFunc("/cart/items/", h.addToCart).Methods(http.MethodPost)
	buy.HandleFunc("/checkout/", h.checkout).Methods(http.MethodPost)
	buy.HandleFunc("/orders/", h.listMyOrders).Methods(http.MethodGet)
	buy.HandleFunc("/orders/{id:[0-9]+}/", h.getOrder).Methods(http.MethodGet)
	buy.HandleFunc("/payments/request/", h.requestPayment).Methods(http.MethodPost)
	buy.HandleFunc("/payments/verify/", h.verifyPayment).Methods(http.MethodPost)
}

func (h *handler) listStoreBooks(w http.ResponseWriter, r *http.Request) {
	items, err := h.app.Shop.ListInStock(r.Context())
	writeList(h, w, r, items, err)
}

func (h *handler) listBooks(w http.ResponseWriter, r *http.Request) {
	items, err := h.app.Shop.ListBooks(r.Context())
	writePage(h, w, r, items, err)
}

func (h *handler) createBook(w http.ResponseWriter, r *http.Request) {
	var in shopsvc.BookInput
	if !h.decode(w, r, &in) {
		return
	}
	book, err := h.app.Shop.CreateBook(r.Context(), in)
	write(h, w, r, http.StatusCreated, book, err)
}

func (h *handler) getBook(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	book, err := h.app.Shop.GetBook(r.Context(), id)
	write(h, w, r, http.StatusOK, book, err)
}

func (h *handler) updateBook(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var in shopsvc.BookInput
	if !h.decode(w, r, &in) {
		return
	}
	book, err := h.app.Shop.UpdateBook(r.Context(), id, in)
	write(h, w, r, http.StatusOK, book, err)
}

func (h *handler) deleteBook(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.noContent(w, r, h.app.Shop.DeleteBook(r.Context(), id))
}

func (h *handler) getCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.app.Shop.Cart(r.Context(), principal(r).UserID)
	write(h, w, r, http.StatusOK, cart, err)
}

func (h *handler) addToCart(w http.ResponseWriter, r *http.Request) {
	var in cartItemRequest
	if !h.decode(w, r, &in) {
		return
	}
	if in.Book == 0 {
		h.writeError(w, r, apperrors.Validation("book", "This field is required."))
		return
	}
	if _, err := h.app.Shop.AddToCart(r.Context(), principal(r).UserID, in.Book, in.Quantity); err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "added to cart"})
}

func (h *handler) checkout(w http.ResponseWriter, r *http.Request) {
	order, err := h.app.Shop.Checkout(r.Context(), principal(r).UserID)
	write(h, w, r, http.StatusCreated, order, err)
}

func (h *handler) listMyOrders(w http.ResponseWriter, r *http.Request) {
	items, err := h.app.Shop.ListUserOrders(r.Context(), principal(r).UserID)
	writeList(h, w, r, items, err)
}

func (h *handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	order, err := h.app.Shop.GetOrder(r.Context(), principal(r), id)
	write(h, w, r, http.StatusOK, order, err)
}

func (h *handler) requestPayment(w http.ResponseWriter, r *http.Request) {
	var in shopsvc.PaymentRequest
	if !h.decode(w, r, &in) {
		return
	}
	_, payURL, err := h.app.Shop.RequestPayment(r.Context(), principal(r).UserID, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"payment_url": payURL})
}

func (h *handler) verifyPayment(w http.ResponseWriter, r *http.Request) {
	var in verifyRequest
	if !h.decode(w, r, &in) {
		return
	}
	if in.Authority == "" {
		h.writeError(w, r, apperrors.Validation("authority", "This field is required."))
		return
	}
	if _, err := h.app.Shop.VerifyPayment(r.Context(), principal(r).UserID, in.Authority); err != nil {
		if se := apperrors.GetServiceError(err); se != nil && se.HTTPStatus == http.StatusNotFound {
			httputil.WriteDetail(w, http.StatusNotFound, se.Message)
			return
		}
		h.writeError(w, r, err)
		return
	}
	httputil.WriteDetail(w, http.StatusOK, "Payment verified successfully.")
}
