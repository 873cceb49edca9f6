package trading

import (
	"context"
	"net/http"

	"github.com/HtFilia/trading-board/errs"
	"github.com/HtFilia/trading-board/internal/schema"

	httpserver "github.com/HtFilia/trading-board/internal/infra/server/http"
)

// SessionReader resolves opaque session tokens to live sessions.
type SessionReader interface {
	Get(ctx context.Context, token string) (schema.Session, error)
}

// BookReader loads the latest order book snapshot for an instrument.
type BookReader interface {
	GetOrderBook(ctx context.Context, instrumentID string) (schema.OrderBookSnapshot, error)
}

// HandlerConfig carries the HTTP-facing knobs for the trading service.
type HandlerConfig struct {
	CookieName         string
	CORSOrigins        []string
	RateLimitPerSecond float64
	RateLimitBurst     int
}

type handler struct {
	service  *OrderService
	sessions SessionReader
	books    BookReader
	cfg      HandlerConfig
}

// orderResponse is the POST /orders body. average_price is null for orders
// that did not fill.
type orderResponse struct {
	OrderID        string             `json:"order_id"`
	InstrumentID   string             `json:"instrument_id"`
	Side           schema.Side        `json:"side"`
	Quantity       int64              `json:"quantity"`
	FilledQuantity int64              `json:"filled_quantity"`
	Status         schema.OrderStatus `json:"status"`
	AveragePrice   *float64           `json:"average_price"`
}

// NewHandler builds the trading HTTP surface: order submission and health.
func NewHandler(service *OrderService, sessions SessionReader, books BookReader, cfg HandlerConfig) http.Handler {
	h := &handler{service: service, sessions: sessions, books: books, cfg: cfg}
	limiter := httpserver.NewClientRateLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst)

	mux := http.NewServeMux()
	mux.Handle("/orders", limiter.Middleware(httpserver.MethodHandlers(map[string]http.HandlerFunc{
		http.MethodPost: h.handleSubmitOrder,
	})))
	mux.Handle("/health", httpserver.MethodHandlers(map[string]http.HandlerFunc{
		http.MethodGet: h.handleHealth,
	}))

	return httpserver.WithCORS(cfg.CORSOrigins, mux)
}

func (h *handler) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	httpserver.LimitRequestBody(w, r)
	defer func() { _ = r.Body.Close() }()

	var req schema.OrderRequest
	if err := httpserver.DecodeJSON(r, &req); err != nil {
		httpserver.WriteDecodeError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		httpserver.WriteErr(w, err)
		return
	}

	book, err := h.books.GetOrderBook(r.Context(), req.InstrumentID)
	if err != nil {
		httpserver.WriteErr(w, err)
		return
	}

	order, err := h.service.Submit(r.Context(), sess.UserID, req, book)
	if err != nil {
		httpserver.WriteErr(w, err)
		return
	}
	httpserver.WriteJSON(w, http.StatusCreated, orderResponse{
		OrderID:        order.OrderID,
		InstrumentID:   order.InstrumentID,
		Side:           order.Side,
		Quantity:       order.Quantity,
		FilledQuantity: order.FilledQuantity,
		Status:         order.Status,
		AveragePrice:   order.AveragePrice,
	})
}

// authenticate resolves the session cookie. Missing, unknown and expired
// tokens all answer 401 without distinguishing the cause.
func (h *handler) authenticate(w http.ResponseWriter, r *http.Request) (schema.Session, bool) {
	cookie, err := r.Cookie(h.cfg.CookieName)
	if err != nil || cookie.Value == "" {
		httpserver.WriteErr(w, errs.New("trading/http", errs.KindAuth,
			errs.WithMessage("authentication required")))
		return schema.Session{}, false
	}
	sess, err := h.sessions.Get(r.Context(), cookie.Value)
	if err != nil {
		httpserver.WriteErr(w, err)
		return schema.Session{}, false
	}
	return sess, true
}

func (h *handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	httpserver.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
