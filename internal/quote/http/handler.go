// Package quotehttp serves the tax API as JSON over HTTP.
package quotehttp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"golang.org/x/text/language"

	"github.com/odyssey-erp/odyssey-tax/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-tax/internal/quote"
	"github.com/odyssey-erp/odyssey-tax/internal/tax"
)

type quoteService interface {
	Line(ctx context.Context, req quote.LineRequest) (tax.LineTotals, error)
	Order(ctx context.Context, req quote.OrderRequest) (tax.OrderTaxBreakdown, error)
	Config(ctx context.Context, req quote.ConfigRequest) (tax.TaxConfig, error)
	Reverse(ctx context.Context, req quote.ReverseRequest) (tax.ReverseResult, error)
	Settings() tax.Settings
}

type snapshotEnqueuer interface {
	EnqueueOrderSnapshot(ctx context.Context, orderID int64) (*asynq.TaskInfo, error)
}

// Handler wires the JSON tax API.
type Handler struct {
	logger    *slog.Logger
	service   quoteService
	enqueuer  snapshotEnqueuer
	locale    language.Tag
	supported []language.Tag
	matcher   language.Matcher
}

// NewHandler builds Handler instance. enqueuer may be nil, in which case
// snapshot requests answer 503. locale is the default display locale.
func NewHandler(logger *slog.Logger, service quoteService, enqueuer snapshotEnqueuer, locale language.Tag) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	supported := []language.Tag{locale, language.English, language.Indonesian}
	return &Handler{
		logger:    logger,
		service:   service,
		enqueuer:  enqueuer,
		locale:    locale,
		supported: supported,
		matcher:   language.NewMatcher(supported),
	}
}

// MountRoutes registers tax routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/lines", h.line)
	r.Post("/orders", h.order)
	r.Post("/orders/{id}/snapshot", h.snapshot)
	r.Post("/config", h.config)
	r.Post("/reverse", h.reverse)
	r.Get("/rates/format", h.formatRate)
	r.Get("/settings", h.settings)
}

func (h *Handler) line(w http.ResponseWriter, r *http.Request) {
	var req quote.LineRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	totals, err := h.service.Line(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, totals)
}

// orderResponse carries the numeric breakdown plus the same amounts formatted
// for the caller's locale.
type orderResponse struct {
	tax.OrderTaxBreakdown
	Display orderDisplay `json:"display"`
}

type orderDisplay struct {
	Locale    string        `json:"locale"`
	Subtotal  string        `json:"subtotal"`
	TotalTax  string        `json:"total_tax"`
	Total     string        `json:"total"`
	Breakdown []rateDisplay `json:"breakdown"`
}

type rateDisplay struct {
	Label  string `json:"label"`
	Amount string `json:"amount"`
}

func (h *Handler) order(w http.ResponseWriter, r *http.Request) {
	var req quote.OrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	breakdown, err := h.service.Order(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	tag := h.displayLocale(r)
	precision := h.service.Settings().RoundingPrecision
	display := orderDisplay{
		Locale:    tag.String(),
		Subtotal:  tax.FormatAmount(breakdown.Subtotal, precision, tag),
		TotalTax:  tax.FormatAmount(breakdown.TotalTax, precision, tag),
		Total:     tax.FormatAmount(breakdown.Total, precision, tag),
		Breakdown: make([]rateDisplay, 0, len(breakdown.Breakdown)),
	}
	for _, b := range breakdown.Breakdown {
		display.Breakdown = append(display.Breakdown, rateDisplay{
			Label:  tax.FormatTaxRate(b.Rate, tax.WithVerbose()),
			Amount: tax.FormatAmount(b.Amount, precision, tag),
		})
	}
	httpx.JSON(w, http.StatusOK, orderResponse{OrderTaxBreakdown: breakdown, Display: display})
}

func (h *Handler) config(w http.ResponseWriter, r *http.Request) {
	var req quote.ConfigRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	cfg, err := h.service.Config(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, cfg)
}

func (h *Handler) reverse(w http.ResponseWriter, r *http.Request) {
	var req quote.ReverseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.Reverse(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) formatRate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rate, err := strconv.ParseFloat(q.Get("rate"), 64)
	if err != nil || !tax.IsValidTaxRate(rate) {
		httpx.Problem(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest), "rate must be a number between 0 and 100")
		return
	}
	var opts []tax.FormatOption
	if v := q.Get("verbose"); v != "" {
		verbose, err := strconv.ParseBool(v)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest), "verbose must be a boolean")
			return
		}
		if verbose {
			opts = append(opts, tax.WithVerbose())
		}
	}
	if v := q.Get("zero_as_exempt"); v != "" {
		zeroAsExempt, err := strconv.ParseBool(v)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest), "zero_as_exempt must be a boolean")
			return
		}
		opts = append(opts, tax.WithZeroAsExempt(zeroAsExempt))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"rate":  rate,
		"label": tax.FormatTaxRate(rate, opts...),
	})
}

func (h *Handler) settings(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.service.Settings())
}

func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || orderID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest), "order id must be a positive integer")
		return
	}
	if h.enqueuer == nil {
		httpx.RespondError(w, fmt.Errorf("%w: snapshot queue not configured", httpx.ErrUnavailable))
		return
	}

	info, err := h.enqueuer.EnqueueOrderSnapshot(r.Context(), orderID)
	switch {
	case errors.Is(err, asynq.ErrTaskIDConflict):
		httpx.JSON(w, http.StatusAccepted, map[string]any{"order_id": orderID, "status": "already_queued"})
	case err != nil:
		h.fail(w, r, err)
	default:
		httpx.JSON(w, http.StatusAccepted, map[string]any{"order_id": orderID, "status": "queued", "task_id": info.ID})
	}
}

func (h *Handler) displayLocale(r *http.Request) language.Tag {
	accept := r.Header.Get("Accept-Language")
	if accept == "" {
		return h.locale
	}
	tags, _, err := language.ParseAcceptLanguage(accept)
	if err != nil || len(tags) == 0 {
		return h.locale
	}
	_, index, confidence := h.matcher.Match(tags...)
	if confidence == language.No {
		return h.locale
	}
	return h.supported[index]
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error("tax api", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
