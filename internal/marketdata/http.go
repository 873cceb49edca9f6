package marketdata

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coder/websocket"
	json "github.com/goccy/go-json"

	"github.com/HtFilia/trading-board/config"
	"github.com/HtFilia/trading-board/internal/bus/tickbus"
	"github.com/HtFilia/trading-board/internal/observability"
	"github.com/HtFilia/trading-board/internal/schema"

	httpserver "github.com/HtFilia/trading-board/internal/infra/server/http"
)

// defaultWSWriteTimeout bounds each websocket tick write so one stalled
// client cannot pin its writer goroutine.
const defaultWSWriteTimeout = 5 * time.Second

// HandlerConfig carries the management API knobs.
type HandlerConfig struct {
	CORSOrigins    []string
	WSWriteTimeout time.Duration
}

func (c HandlerConfig) writeTimeout() time.Duration {
	if c.WSWriteTimeout <= 0 {
		return defaultWSWriteTimeout
	}
	return c.WSWriteTimeout
}

type handler struct {
	engine   *Engine
	ticks    *tickbus.Bus
	cfg      HandlerConfig
	patterns []string
}

// instrumentHealth is one instrument's entry in the health payload. A feed
// that has not emitted yet reports a null last tick.
type instrumentHealth struct {
	LastTick        *schema.TickEvent      `json:"last_tick"`
	LiquidityRegime schema.LiquidityRegime `json:"liquidity_regime"`
}

type healthResponse struct {
	Status      string                      `json:"status"`
	Instruments map[string]instrumentHealth `json:"instruments"`
}

type instrumentMetrics struct {
	UpdateIntervalMS int64                  `json:"update_interval_ms"`
	TickSize         float64                `json:"tick_size"`
	LiquidityRegime  schema.LiquidityRegime `json:"liquidity_regime"`
	Scenario         string                 `json:"scenario,omitempty"`
}

type metricsResponse struct {
	Instruments map[string]instrumentMetrics       `json:"instruments"`
	Scenarios   map[string]config.ScenarioSettings `json:"scenarios"`
}

// NewHandler builds the management HTTP surface: feed health, per-instrument
// cadence metrics, and the live tick websocket. A nil tick bus disables
// /ws/ticks with a 503.
func NewHandler(engine *Engine, ticks *tickbus.Bus, cfg HandlerConfig) http.Handler {
	h := &handler{
		engine:   engine,
		ticks:    ticks,
		cfg:      cfg,
		patterns: originPatterns(cfg.CORSOrigins),
	}

	mux := http.NewServeMux()
	mux.Handle("/health", httpserver.MethodHandlers(map[string]http.HandlerFunc{
		http.MethodGet: h.handleHealth,
	}))
	mux.Handle("/metrics", httpserver.MethodHandlers(map[string]http.HandlerFunc{
		http.MethodGet: h.handleMetrics,
	}))
	mux.Handle("/ws/ticks", httpserver.MethodHandlers(map[string]http.HandlerFunc{
		http.MethodGet: h.handleTicks,
	}))

	return httpserver.WithCORS(cfg.CORSOrigins, mux)
}

func (h *handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	feeds := h.engine.Feeds()
	instruments := make(map[string]instrumentHealth, len(feeds))
	for _, feed := range feeds {
		entry := instrumentHealth{LastTick: nil, LiquidityRegime: feed.LiquidityRegime()}
		if tick, ok := h.engine.LastTick(feed.InstrumentID()); ok {
			entry.LastTick = &tick
		}
		instruments[feed.InstrumentID()] = entry
	}
	httpserver.WriteJSON(w, http.StatusOK, healthResponse{Status: "ok", Instruments: instruments})
}

func (h *handler) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	feeds := h.engine.Feeds()
	instruments := make(map[string]instrumentMetrics, len(feeds))
	for _, feed := range feeds {
		instruments[feed.InstrumentID()] = instrumentMetrics{
			UpdateIntervalMS: feed.UpdateInterval().Milliseconds(),
			TickSize:         feed.TickSize(),
			LiquidityRegime:  feed.LiquidityRegime(),
			Scenario:         feed.Scenario(),
		}
	}
	httpserver.WriteJSON(w, http.StatusOK, metricsResponse{
		Instruments: instruments,
		Scenarios:   config.PresetScenarios(),
	})
}

// handleTicks upgrades to a websocket and relays the live tick fanout until
// the client goes away. Delivery is lossy: ticks the subscription buffer
// cannot hold are dropped by the bus, never blocking the pump.
func (h *handler) handleTicks(w http.ResponseWriter, r *http.Request) {
	if h.ticks == nil {
		httpserver.WriteError(w, http.StatusServiceUnavailable, "live tick feed disabled")
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.patterns})
	if err != nil {
		// Accept has already written the handshake failure.
		return
	}
	defer func() { _ = conn.Close(websocket.StatusInternalError, "tick stream aborted") }()

	ctx := r.Context()
	id, ticks, err := h.ticks.Subscribe(ctx)
	if err != nil {
		_ = conn.Close(websocket.StatusTryAgainLater, "tick feed unavailable")
		return
	}
	defer h.ticks.Unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		case tick, ok := <-ticks:
			if !ok {
				_ = conn.Close(websocket.StatusGoingAway, "tick feed closed")
				return
			}
			if err := h.writeTick(ctx, conn, tick); err != nil {
				observability.Log().Debug("tick websocket write failed",
					observability.F("instrument_id", tick.InstrumentID),
					observability.F("error", err.Error()))
				return
			}
		}
	}
}

func (h *handler) writeTick(ctx context.Context, conn *websocket.Conn, tick schema.TickEvent) error {
	payload, err := json.Marshal(tick)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, h.cfg.writeTimeout())
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, payload)
}

// originPatterns converts configured CORS origins into the host patterns the
// websocket handshake checks. A "*" origin disables the origin check.
func originPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, origin := range origins {
		origin = strings.TrimSpace(origin)
		if origin == "" {
			continue
		}
		if origin == "*" {
			return []string{"*"}
		}
		if u, err := url.Parse(origin); err == nil && u.Host != "" {
			patterns = append(patterns, u.Host)
			continue
		}
		patterns = append(patterns, origin)
	}
	return patterns
}
