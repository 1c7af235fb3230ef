package handler

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/caixa-pos/api/internal/database"
	"github.com/caixa-pos/api/internal/enum"
	"github.com/caixa-pos/api/internal/money"
	"github.com/caixa-pos/api/internal/report"
	"github.com/caixa-pos/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// SessionManager is the session lifecycle as the caixa endpoints use it.
// Satisfied by *service.SessionService.
type SessionManager interface {
	Open(ctx context.Context, base money.Cents, by string) (*service.CashSession, error)
	Pause(ctx context.Context, by string) (*service.CashSession, error)
	Resume(ctx context.Context, by string) (*service.CashSession, error)
	Close(ctx context.Context, by string) (*service.CashSession, error)
	GetActive(ctx context.Context) (*service.CashSession, error)
	Get(ctx context.Context, id uuid.UUID) (*service.CashSession, error)
	ListClosed(ctx context.Context, limit, offset int32) ([]service.SessionSummary, error)
}

// MovementRecorder records manual entradas and saidas.
// Satisfied by *service.Ledger.
type MovementRecorder interface {
	RecordEntrada(ctx context.Context, req service.MovementRequest) (*service.CashSession, error)
	RecordSaida(ctx context.Context, req service.MovementRequest) (*service.CashSession, error)
}

// PinAuthorizer resolves a PIN to the operator performing an action.
// Satisfied by *service.PinGate.
type PinAuthorizer interface {
	Authorize(ctx context.Context, pin string, roles ...enum.OperatorRole) (database.Operator, error)
}

// CaixaHandler handles the cash register endpoints.
type CaixaHandler struct {
	sessions SessionManager
	ledger   MovementRecorder
	pins     PinAuthorizer
	loc      *time.Location
	now      func() time.Time
}

// NewCaixaHandler creates a new CaixaHandler. loc is the time zone reports
// are rendered in.
func NewCaixaHandler(sessions SessionManager, ledger MovementRecorder, pins PinAuthorizer, loc *time.Location) *CaixaHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &CaixaHandler{sessions: sessions, ledger: ledger, pins: pins, loc: loc, now: time.Now}
}

// RegisterRoutes registers caixa endpoints.
func (h *CaixaHandler) RegisterRoutes(r chi.Router) {
	r.Get("/caixa", h.Get)
	r.Post("/caixa", h.Action)
	r.Get("/caixa/historico", h.History)
	r.Get("/caixa/{id}/relatorio", h.Report)
	r.Get("/caixa/{id}/relatorio.csv", h.ReportCSV)
	r.Get("/caixa/{id}/relatorio.pdf", h.ReportPDF)
}

// Actions accepted by POST /caixa.
const (
	actionAbrir   = "abrir"
	actionPausar  = "pausar"
	actionRetomar = "retomar"
	actionFechar  = "fechar"
	actionEntrada = "entrada"
	actionSaida   = "saida"
)

type caixaActionRequest struct {
	Action    string `json:"action" validate:"required,oneof=abrir pausar retomar fechar entrada saida"`
	Pin       string `json:"pin" validate:"required"`
	Base      string `json:"base"`
	Value     string `json:"value" validate:"required_if=Action entrada,required_if=Action saida"`
	Desc      string `json:"desc" validate:"max=200"`
	RequestID string `json:"requestId" validate:"max=100"`
}

// Get handles GET /caixa.
func (h *CaixaHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.GetActive(r.Context())
	if err != nil {
		if errors.Is(err, service.ErrNoActiveSession) {
			writeJSON(w, http.StatusOK, toCaixaResponse(nil))
			return
		}
		writeServiceError(w, r, "get caixa", err)
		return
	}
	writeJSON(w, http.StatusOK, toCaixaResponse(s))
}

// Action handles POST /caixa. Every action is authorized by PIN; the
// operator owning the PIN is recorded as the actor.
func (h *CaixaHandler) Action(w http.ResponseWriter, r *http.Request) {
	var req caixaActionRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	op, err := h.pins.Authorize(r.Context(), req.Pin, enum.CashRoles...)
	if err != nil {
		writeServiceError(w, r, "authorize pin", err)
		return
	}
	by := op.AccessID
	ctx := r.Context()

	var s *service.CashSession
	switch req.Action {
	case actionAbrir:
		var base money.Cents
		if base, err = parseAmount(req.Base); err == nil {
			s, err = h.sessions.Open(ctx, base, by)
		}
	case actionPausar:
		s, err = h.sessions.Pause(ctx, by)
	case actionRetomar:
		s, err = h.sessions.Resume(ctx, by)
	case actionFechar:
		s, err = h.sessions.Close(ctx, by)
	case actionEntrada, actionSaida:
		var value money.Cents
		if value, err = money.FromDecimalString(req.Value); err == nil {
			mv := service.MovementRequest{Value: value, By: by, Desc: req.Desc, RequestID: req.RequestID}
			if req.Action == actionEntrada {
				s, err = h.ledger.RecordEntrada(ctx, mv)
			} else {
				s, err = h.ledger.RecordSaida(ctx, mv)
			}
		}
	}
	if err != nil {
		writeServiceError(w, r, "caixa "+req.Action, err)
		return
	}

	log.Info().Str("action", req.Action).Str("by", by).Str("session_id", s.ID.String()).Msg("caixa action")
	writeJSON(w, http.StatusOK, toCaixaResponse(s))
}

// History handles GET /caixa/historico.
func (h *CaixaHandler) History(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := parsePage(r, 20, 100)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid limit or offset")
		return
	}
	rows, err := h.sessions.ListClosed(r.Context(), limit, offset)
	if err != nil {
		writeServiceError(w, r, "list closed sessions", err)
		return
	}
	out := make([]sessionSummaryResponse, 0, len(rows))
	for _, s := range rows {
		out = append(out, toSessionSummaryResponse(s))
	}
	writeJSON(w, http.StatusOK, out)
}

// Report handles GET /caixa/{id}/relatorio.
func (h *CaixaHandler) Report(w http.ResponseWriter, r *http.Request) {
	sum, ok := h.summary(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// ReportCSV handles GET /caixa/{id}/relatorio.csv.
func (h *CaixaHandler) ReportCSV(w http.ResponseWriter, r *http.Request) {
	sum, ok := h.summary(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := report.WriteCSV(&buf, sum); err != nil {
		writeServiceError(w, r, "report csv", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="caixa-`+sum.SessionID.String()+`.csv"`)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes()) //nolint:errcheck
}

// ReportPDF handles GET /caixa/{id}/relatorio.pdf.
func (h *CaixaHandler) ReportPDF(w http.ResponseWriter, r *http.Request) {
	sum, ok := h.summary(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := report.WritePDF(&buf, sum); err != nil {
		writeServiceError(w, r, "report pdf", err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `inline; filename="caixa-`+sum.SessionID.String()+`.pdf"`)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes()) //nolint:errcheck
}

func (h *CaixaHandler) summary(w http.ResponseWriter, r *http.Request) (report.Summary, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return report.Summary{}, false
	}
	s, err := h.sessions.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, "get session", err)
		return report.Summary{}, false
	}
	return report.Build(s, h.loc, h.now()), true
}
