package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/fintova/paycore/internal/domain"
	"github.com/fintova/paycore/internal/processor"
	"github.com/fintova/paycore/internal/service"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paycore_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "paycore_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "endpoint"})

	webhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paycore_webhook_events_total",
		Help: "Processor webhook deliveries, labeled by event type and outcome",
	}, []string{"event_type", "outcome"})
)

// moneyMover is the executor surface the HTTP layer consumes.
type moneyMover interface {
	Transfer(ctx context.Context, ownerID, token, recipientPhone string, amount int64) (domain.TransferResponse, error)
	Payout(ctx context.Context, ownerID, token string, amount int64) (domain.TransferResponse, error)
}

// reconciler is the engine surface the webhook endpoint consumes.
type reconciler interface {
	HandleEvent(ctx context.Context, event processor.Event) (service.Outcome, error)
}

type Handler struct {
	executor      moneyMover
	engine        reconciler
	webhookSecret string
	log           *slog.Logger
}

func NewHandler(executor *service.Executor, engine *service.Engine, webhookSecret string, log *slog.Logger) *Handler {
	return &Handler{executor: executor, engine: engine, webhookSecret: webhookSecret, log: log}
}

func (h *Handler) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// apiError is one element of the error response body. ShowUser tells the
// client whether the message is safe to display verbatim.
type apiError struct {
	Code     domain.Code `json:"code"`
	Message  string      `json:"message"`
	ShowUser bool        `json:"show_user"`
}

type apiErrorResponse struct {
	Errors []apiError `json:"errors"`
}

// statusForCode maps the typed taxonomy onto HTTP statuses. Distinctness
// lives in the code values; statuses only group them coarsely.
func statusForCode(code domain.Code) int {
	switch code {
	case domain.CodeInProgress:
		// Not a failure: the request is accepted and being worked on.
		// The caller retries the same token.
		return http.StatusAccepted
	case domain.CodeTokenFailed:
		return http.StatusConflict
	case domain.CodeSelfTransfer,
		domain.CodeNotEnoughFunds, domain.CodeNoPayoutDestination:
		return http.StatusUnprocessableEntity
	case domain.CodeRecipientNotFound, domain.CodeUserNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) respondDomainError(w http.ResponseWriter, method, endpoint string, err error) {
	derr, ok := domain.AsError(err)
	if !ok {
		derr = domain.Internal(domain.CodeUnexpected, "unexpected error", err)
	}

	message := derr.Message
	if !derr.ShowUser {
		// Internal detail never crosses the boundary.
		h.log.Error("request failed", "endpoint", endpoint, "error", err)
		message = "Unexpected error"
	}

	status := statusForCode(derr.Code)
	httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	respondWithJSON(w, status, apiErrorResponse{
		Errors: []apiError{{Code: derr.Code, Message: message, ShowUser: derr.ShowUser}},
	})
}

// ownerID returns the authenticated user id injected by the auth gateway.
// Session handling itself lives outside this service.
func ownerID(r *http.Request) string {
	return r.Header.Get("X-User-Id")
}

func (h *Handler) CreateTransferHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/v1/transfers"
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("POST", endpoint))
	defer timer.ObserveDuration()

	owner := ownerID(r)
	if owner == "" {
		httpRequestsTotal.WithLabelValues("POST", endpoint, "401").Inc()
		respondWithError(w, http.StatusUnauthorized, "Missing user identity")
		return
	}

	token := r.Header.Get("Idempotency-Key")
	if token == "" {
		httpRequestsTotal.WithLabelValues("POST", endpoint, "400").Inc()
		respondWithError(w, http.StatusBadRequest, "Missing Idempotency-Key header")
		return
	}

	var req domain.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpRequestsTotal.WithLabelValues("POST", endpoint, "400").Inc()
		respondWithError(w, http.StatusBadRequest, "Malformed JSON body")
		return
	}
	if req.Amount <= 0 {
		httpRequestsTotal.WithLabelValues("POST", endpoint, "422").Inc()
		respondWithError(w, http.StatusUnprocessableEntity, "Positive amount required")
		return
	}
	if req.RecipientPhone == "" {
		httpRequestsTotal.WithLabelValues("POST", endpoint, "422").Inc()
		respondWithError(w, http.StatusUnprocessableEntity, "Recipient phone required")
		return
	}

	resp, err := h.executor.Transfer(r.Context(), owner, token, req.RecipientPhone, req.Amount)
	if err != nil {
		h.respondDomainError(w, "POST", endpoint, err)
		return
	}

	httpRequestsTotal.WithLabelValues("POST", endpoint, "200").Inc()
	respondWithJSON(w, http.StatusOK, resp)
}

func (h *Handler) CreatePayoutHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/v1/payouts"
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("POST", endpoint))
	defer timer.ObserveDuration()

	owner := ownerID(r)
	if owner == "" {
		httpRequestsTotal.WithLabelValues("POST", endpoint, "401").Inc()
		respondWithError(w, http.StatusUnauthorized, "Missing user identity")
		return
	}

	token := r.Header.Get("Idempotency-Key")
	if token == "" {
		httpRequestsTotal.WithLabelValues("POST", endpoint, "400").Inc()
		respondWithError(w, http.StatusBadRequest, "Missing Idempotency-Key header")
		return
	}

	var req domain.PayoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpRequestsTotal.WithLabelValues("POST", endpoint, "400").Inc()
		respondWithError(w, http.StatusBadRequest, "Malformed JSON body")
		return
	}
	if req.Amount <= 0 {
		httpRequestsTotal.WithLabelValues("POST", endpoint, "422").Inc()
		respondWithError(w, http.StatusUnprocessableEntity, "Positive amount required")
		return
	}

	resp, err := h.executor.Payout(r.Context(), owner, token, req.Amount)
	if err != nil {
		h.respondDomainError(w, "POST", endpoint, err)
		return
	}

	httpRequestsTotal.WithLabelValues("POST", endpoint, "200").Inc()
	respondWithJSON(w, http.StatusOK, resp)
}

// WebhookHandler receives processor lifecycle deliveries. The signature is
// verified against the raw body before anything is parsed; a delivery that
// fails verification is rejected without inspection.
func (h *Handler) WebhookHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/v1/webhooks/processor"
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("POST", endpoint))
	defer timer.ObserveDuration()

	signature := r.Header.Get("Processor-Signature")
	if signature == "" {
		httpRequestsTotal.WithLabelValues("POST", endpoint, "400").Inc()
		respondWithText(w, http.StatusBadRequest, "signature missing")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		httpRequestsTotal.WithLabelValues("POST", endpoint, "500").Inc()
		respondWithText(w, http.StatusInternalServerError, "stream read error")
		return
	}

	if err := processor.VerifySignature(body, signature, h.webhookSecret); err != nil {
		h.log.Warn("rejected webhook delivery", "error", err)
		httpRequestsTotal.WithLabelValues("POST", endpoint, "400").Inc()
		webhookEventsTotal.WithLabelValues("unverified", "bad_signature").Inc()
		respondWithText(w, http.StatusBadRequest, "bad signature")
		return
	}

	event, err := processor.ParseEvent(body)
	if err != nil {
		h.log.Error("failed to parse webhook event", "error", err)
		httpRequestsTotal.WithLabelValues("POST", endpoint, "400").Inc()
		webhookEventsTotal.WithLabelValues("unparsed", "malformed").Inc()
		respondWithText(w, http.StatusBadRequest, "bad event")
		return
	}

	outcome, err := h.engine.HandleEvent(r.Context(), event)
	eventName := processor.EventName(event)
	if err != nil {
		h.log.Error("failed to reconcile webhook event", "event_type", eventName, "error", err)
		httpRequestsTotal.WithLabelValues("POST", endpoint, "500").Inc()
		webhookEventsTotal.WithLabelValues(eventName, "error").Inc()
		respondWithText(w, http.StatusInternalServerError, "event processing failed")
		return
	}

	httpRequestsTotal.WithLabelValues("POST", endpoint, "200").Inc()
	webhookEventsTotal.WithLabelValues(eventName, string(outcome)).Inc()
	respondWithText(w, http.StatusOK, string(outcome))
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, apiErrorResponse{
		Errors: []apiError{{Code: domain.CodeUnexpected, Message: message, ShowUser: true}},
	})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

func respondWithText(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	w.Write([]byte(message))
}
