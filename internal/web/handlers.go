package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/dexsnipe/internal/domain"
	"github.com/vadiminshakov/dexsnipe/internal/services/executor"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
	Class string `json:"class,omitempty"`
}

type tradeResponse struct {
	domain.TradeResult
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Class   string `json:"class,omitempty"`
	Warning string `json:"warning,omitempty"`
}

type statusResponse struct {
	executor.StatusEvent
	Health domain.Health `json:"health"`
}

type tradeRequest struct {
	Mint string           `json:"mint"`
	Pct  *decimal.Decimal `json:"pct,omitempty"`
}

type editRequest struct {
	Levels string `json:"levels"`
	Parts  string `json:"parts"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to write response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, domain.ErrValidation) {
		status = http.StatusBadRequest
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error(), Class: domain.Classify(err)})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return errors.Wrap(domain.ErrValidation, "decode request: "+err.Error())
	}
	return nil
}

func (s *Server) handleCandidates(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.bot.Candidates())
}

func (s *Server) handleScan(w http.ResponseWriter, _ *http.Request) {
	s.bot.TriggerScan()
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, statusResponse{StatusEvent: s.status.Current(), Health: s.bot.Health()})
}

func (s *Server) handleLadders(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.bot.Ladders())
}

func (s *Server) handleArm(w http.ResponseWriter, r *http.Request) {
	l, err := s.bot.Arm(r.PathValue("mint"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, l)
}

func (s *Server) handleDisarm(w http.ResponseWriter, r *http.Request) {
	l, err := s.bot.Disarm(r.PathValue("mint"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, l)
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	var req editRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	l, err := s.bot.EditLadder(r.PathValue("mint"), req.Levels, req.Parts)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, l)
}

func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeTrade(w, s.bot.Buy(r.Context(), req.Mint))
}

func (s *Server) handleSell(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeTrade(w, s.bot.Sell(r.Context(), req.Mint, req.Pct))
}

func (s *Server) writeTrade(w http.ResponseWriter, res domain.TradeResult) {
	resp := tradeResponse{TradeResult: res, Status: res.Status()}
	status := http.StatusOK
	if res.Err != nil {
		resp.Error = res.Err.Error()
		resp.Class = domain.Classify(res.Err)
		status = http.StatusUnprocessableEntity
	}
	if res.Warning != nil {
		resp.Warning = res.Warning.Error()
	}
	s.writeJSON(w, status, resp)
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	var after uint64
	if raw := strings.TrimSpace(r.URL.Query().Get("after")); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			s.writeError(w, errors.Wrapf(domain.ErrValidation, "after %q is not an index", raw))
			return
		}
		after = v
	}

	entries, err := s.bot.Trades(after)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleExportSettings(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Disposition", `attachment; filename="settings.json"`)
	s.writeJSON(w, http.StatusOK, s.bot.ExportSettings())
}

func (s *Server) handleImportSettings(w http.ResponseWriter, r *http.Request) {
	if err := s.bot.ImportSettings(http.MaxBytesReader(w, r.Body, maxBodyBytes)); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.bot.ExportSettings())
}

func (s *Server) handleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	heartbeat := time.NewTicker(s.heartbeat)
	defer heartbeat.Stop()

	lastIndex := s.parseLastEventID(r.Header.Get("Last-Event-ID"), r.URL.Query().Get("last_event_id"))
	send := func() {
		for _, ev := range s.status.EventsAfter(lastIndex) {
			payload, err := json.Marshal(ev)
			if err != nil {
				s.logger.Warn("failed to encode status event", zap.Error(err))
				continue
			}
			fmt.Fprintf(w, "id: %d\n", ev.Index)
			fmt.Fprintf(w, "event: status\n")
			fmt.Fprintf(w, "data: %s\n\n", payload)
			lastIndex = ev.Index
		}
		flusher.Flush()
	}

	for {
		// subscribe before reading so a Set between the two is not missed
		changed := s.status.Changed()
		send()

		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case <-changed:
		}
	}
}

// parseLastEventID extracts an SSE event ID from the Last-Event-ID header or a query parameter.
func (s *Server) parseLastEventID(headerVal, queryVal string) uint64 {
	idStr := strings.TrimSpace(headerVal)
	if idStr == "" {
		idStr = strings.TrimSpace(queryVal)
	}
	if idStr == "" {
		return 0
	}

	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		s.logger.Debug("invalid last event id", zap.String("id", idStr), zap.Error(err))
		return 0
	}
	return id
}
