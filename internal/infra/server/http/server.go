// Package httpserver carries the HTTP plumbing shared by the market data,
// auth, and trading services: method routing, the JSON response envelope,
// body decoding with a size cap, CORS, and per-client rate limiting.
package httpserver

import (
	"bytes"
	"errors"
	"net"
	"net/http"
	"sort"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/HtFilia/trading-board/errs"
)

// MaxJSONBodyBytes caps request bodies before JSON decoding.
const MaxJSONBodyBytes int64 = 1 << 20 // 1 MiB

// MethodHandlers routes by method and answers 405 with an Allow header for
// everything else.
func MethodHandlers(handlers map[string]http.HandlerFunc) http.Handler {
	allowed := allowedMethods(handlers)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handler, ok := handlers[r.Method]; ok {
			handler(w, r)
			return
		}
		MethodNotAllowed(w, allowed...)
	})
}

func allowedMethods(handlers map[string]http.HandlerFunc) []string {
	if len(handlers) == 0 {
		return nil
	}
	allowed := make([]string, 0, len(handlers))
	for method := range handlers {
		allowed = append(allowed, method)
	}
	sort.Strings(allowed)
	return allowed
}

// MethodNotAllowed writes the 405 envelope with the Allow header set.
func MethodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
}

// WriteJSON writes the payload as JSON without HTML escaping.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	buf := &bytes.Buffer{}
	encoder := json.NewEncoder(buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(payload); err != nil {
		return
	}
	data := buf.Bytes()
	if len(data) > 0 && data[len(data)-1] == '\n' {
		data = data[:len(data)-1]
	}
	_, _ = w.Write(data)
}

// WriteError writes the error envelope with an explicit status.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"status": "error", "error": message})
}

// WriteErr maps a structured error to its HTTP status and envelope. Caller
// mistakes surface their message; infrastructure failures surface a generic
// message so internals never leak.
func WriteErr(w http.ResponseWriter, err error) {
	status := errs.HTTPStatus(err)
	message := "internal error"

	var e *errs.E
	if errors.As(err, &e) && e != nil && e.Message != "" {
		switch e.Kind {
		case errs.KindTransient, errs.KindFatal:
		default:
			message = e.Message
		}
	}

	envelope := map[string]string{"status": "error", "error": message}
	if reason := errs.Reason(err); reason != "" {
		envelope["reason"] = reason
	}
	WriteJSON(w, status, envelope)
}

// LimitRequestBody caps the request body at MaxJSONBodyBytes.
func LimitRequestBody(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxJSONBodyBytes)
}

// DecodeJSON decodes the capped request body into dst, rejecting unknown
// trailing payloads.
func DecodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(dst); err != nil {
		return err
	}
	return nil
}

// WriteDecodeError classifies a body decode failure: 413 for oversized
// bodies, 422 for everything else.
func WriteDecodeError(w http.ResponseWriter, err error) {
	if isRequestTooLarge(err) {
		WriteError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	WriteError(w, http.StatusUnprocessableEntity, "invalid request body")
}

func isRequestTooLarge(err error) bool {
	var maxBytesErr *http.MaxBytesError
	return errors.As(err, &maxBytesErr)
}

// WithCORS answers preflight and stamps CORS headers for allowed origins.
// Origins are matched exactly unless the list contains "*"; allowed origins
// are echoed back with credentials enabled so session cookies survive
// cross-origin calls.
func WithCORS(origins []string, handler http.Handler) http.Handler {
	allowAll := false
	allowed := make(map[string]struct{}, len(origins))
	for _, origin := range origins {
		origin = strings.TrimSpace(origin)
		if origin == "*" {
			allowAll = true
			continue
		}
		if origin != "" {
			allowed[origin] = struct{}{}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			_, ok := allowed[origin]
			if ok || allowAll {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				w.Header().Add("Vary", "Origin")
			}
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		handler.ServeHTTP(w, r)
	})
}

// RemoteIP extracts the client IP for rate limiting: the first
// X-Forwarded-For hop when present, otherwise the connection peer.
func RemoteIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if first, _, ok := strings.Cut(forwarded, ","); ok {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(forwarded)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
