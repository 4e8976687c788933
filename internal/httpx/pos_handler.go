package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/ariefcatur/go-pos/internal/pos"
	"github.com/ariefcatur/go-pos/internal/redisx"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

type POSHandler struct {
	POS   *pos.Service
	Redis *redis.Client // optional; enables Idempotency-Key on checkout
}

type CreateProductReq struct {
	Name          *string          `json:"name"`
	Price         *decimal.Decimal `json:"price"`
	Category      *string          `json:"category"`
	StockQuantity *int             `json:"stock_quantity"`
}

type CreateProductResp struct {
	Message   string `json:"message"`
	ProductID int64  `json:"product_id"`
}

type CheckoutReq struct {
	Items []pos.SaleItem `json:"items"`
}

type CheckoutResp struct {
	TransactionID string `json:"transaction_id"`
	Idempotent    bool   `json:"idempotent"`
}

func (h *POSHandler) Register(r *chi.Mux) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/products", h.listProducts)
		r.Post("/products", h.createProduct)
		r.Get("/products/{id}", h.getProduct)
		r.Put("/products/{id}", h.updateProduct)
		r.Delete("/products/{id}", h.deleteProduct)

		r.Get("/sales", h.listSales)
		r.Post("/sales", h.checkout)

		r.Get("/reports/summary", h.summary)
		r.Get("/reports/top-products", h.topProducts)

		r.Get("/sync/unsynced", h.unsynced)
		r.Post("/sync/{txn}", h.markSynced)
		r.Get("/sync/{txn}/log", h.syncLog)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors to status codes; anything else is a 500.
func writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case pos.IsValidation(err):
		code = http.StatusBadRequest
	case pos.IsNotFound(err):
		code = http.StatusNotFound
	case pos.IsInsufficientStock(err), pos.IsIntegrity(err):
		code = http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		code = http.StatusGatewayTimeout
	}
	if code == http.StatusInternalServerError {
		log.Printf("internal error: %v", err)
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func productID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, &pos.ValidationError{Field: "id", Reason: "must be a positive integer"}
	}
	return id, nil
}

func dateRange(r *http.Request) (pos.DateRange, error) {
	q := r.URL.Query()
	return pos.ParseDateRange(q.Get("start_date"), q.Get("end_date"))
}

func (h *POSHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.POS.ListProducts(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (req CreateProductReq) input() (pos.ProductInput, bool) {
	if req.Name == nil || req.Price == nil || req.Category == nil {
		return pos.ProductInput{}, false
	}
	in := pos.ProductInput{Name: *req.Name, Price: *req.Price, Category: *req.Category}
	if req.StockQuantity != nil {
		in.StockQuantity = *req.StockQuantity
	}
	return in, true
}

func (h *POSHandler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	in, ok := req.input()
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing required fields"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	id, err := h.POS.CreateProduct(ctx, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, CreateProductResp{Message: "Product added successfully", ProductID: id})
}

func (h *POSHandler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := productID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.POS.GetProduct(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *POSHandler) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := productID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req CreateProductReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	in, ok := req.input()
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing required fields"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.POS.UpdateProduct(ctx, id, in); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Product updated successfully"})
}

func (h *POSHandler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := productID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.POS.DeleteProduct(ctx, id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *POSHandler) checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	// Replay of a checkout the register already sent: answer with the
	// original transaction instead of selling twice. The key is claimed
	// before selling so concurrent replays cannot both get through.
	idemKey := ""
	if k := r.Header.Get("Idempotency-Key"); k != "" && h.Redis != nil {
		idemKey = fmt.Sprintf(redisx.KeyIdemSale, k)
		claimed, err := redisx.Claim(ctx, h.Redis, idemKey, redisx.IdemPending, redisx.TTLIdemPending)
		if err != nil {
			writeError(w, fmt.Errorf("idempotency claim: %w", err))
			return
		}
		if !claimed {
			h.replay(ctx, w, idemKey)
			return
		}
	}

	txn, err := h.POS.ProcessSale(ctx, req.Items)
	if err != nil {
		if idemKey != "" {
			// nothing was sold; let the register retry with the same key
			if derr := h.Redis.Del(context.WithoutCancel(ctx), idemKey).Err(); derr != nil {
				log.Printf("idempotency release %s: %v", idemKey, derr)
			}
		}
		writeError(w, err)
		return
	}
	if idemKey != "" {
		if err := h.Redis.Set(context.WithoutCancel(ctx), idemKey, txn, redisx.TTLIdempotency).Err(); err != nil {
			// the pending marker still blocks replays until it expires
			log.Printf("idempotency store %s -> %s: %v", idemKey, txn, err)
		}
	}
	writeJSON(w, http.StatusCreated, CheckoutResp{TransactionID: txn})
}

// replay answers a checkout whose Idempotency-Key is already claimed.
func (h *POSHandler) replay(ctx context.Context, w http.ResponseWriter, idemKey string) {
	txn, err := h.Redis.Get(ctx, idemKey).Result()
	switch {
	case errors.Is(err, redis.Nil), err == nil && txn == redisx.IdemPending:
		writeJSON(w, http.StatusConflict, map[string]string{"error": "checkout with this Idempotency-Key is in progress"})
	case err != nil:
		writeError(w, fmt.Errorf("idempotency lookup: %w", err))
	default:
		writeJSON(w, http.StatusOK, CheckoutResp{TransactionID: txn, Idempotent: true})
	}
}

func (h *POSHandler) listSales(w http.ResponseWriter, r *http.Request) {
	dr, err := dateRange(r)
	if err != nil {
		writeError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	lines, err := h.POS.ListSales(ctx, dr)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lines)
}

func (h *POSHandler) summary(w http.ResponseWriter, r *http.Request) {
	dr, err := dateRange(r)
	if err != nil {
		writeError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	sum, err := h.POS.Summary(ctx, dr)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (h *POSHandler) topProducts(w http.ResponseWriter, r *http.Request) {
	dr, err := dateRange(r)
	if err != nil {
		writeError(w, err)
		return
	}
	limit := pos.DefaultTopLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		if limit, err = strconv.Atoi(s); err != nil || limit <= 0 {
			writeError(w, &pos.ValidationError{Field: "limit", Reason: "must be a positive integer"})
			return
		}
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	top, err := h.POS.TopProducts(ctx, dr, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, top)
}

func (h *POSHandler) unsynced(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	lines, err := h.POS.UnsyncedSales(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lines)
}

func (h *POSHandler) markSynced(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ok, err := h.POS.MarkSynced(ctx, chi.URLParam(r, "txn"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": ok})
}

func (h *POSHandler) syncLog(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	entries, err := h.POS.SyncLog(ctx, chi.URLParam(r, "txn"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
