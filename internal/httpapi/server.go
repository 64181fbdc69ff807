// Package httpapi exposes the evaluation service over HTTP.
package httpapi

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goaiso/brandrank/internal/evaluation"
	"github.com/goaiso/brandrank/internal/store"
	"github.com/goaiso/brandrank/internal/toon"
)

// LeadStore is the lead-capture slice of the sqlite store.
type LeadStore interface {
	CreateLead(ctx context.Context, lead *evaluation.Lead) error
	ListLeads(ctx context.Context, filter store.LeadFilter) ([]evaluation.Lead, error)
}

// PDFRenderer prints a report for download.
type PDFRenderer interface {
	Render(ctx context.Context, report *evaluation.Report) ([]byte, error)
}

type Server struct {
	svc   *evaluation.Service
	leads LeadStore
	pdf   PDFRenderer
}

func NewServer(svc *evaluation.Service, leads LeadStore, pdf PDFRenderer) http.Handler {
	s := &Server{svc: svc, leads: leads, pdf: pdf}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/health", s.handleHealth)
	mux.HandleFunc("/v1/evaluations", s.handleEvaluations)
	mux.HandleFunc("/v1/evaluations/", s.handleEvaluationSubpath)
	mux.HandleFunc("/v1/toon/encode", s.handleToonEncode)
	mux.HandleFunc("/v1/leads", s.handleLeads)
	mux.HandleFunc("/v1/leads/export", s.handleLeadsExport)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleEvaluations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.createEvaluation(w, r)
	case http.MethodGet:
		evals, err := s.svc.List(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"results": evals})
	default:
		writeJSON(w, http.StatusMethodNotAllowed, errorEnvelope("method not allowed"))
	}
}

type createRequest struct {
	ProductType string   `json:"product_type"`
	Criteria    []string `json:"criteria"`
	Country     string   `json:"country"`
	Location    string   `json:"location"`
}

func (s *Server) createEvaluation(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, evaluation.NewValidationError("invalid json: "+err.Error()))
		return
	}
	ev, err := s.svc.Create(r.Context(), req.ProductType, req.Criteria, req.Country, req.Location)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"uuid": ev.ID, "status": ev.Status})
}

// handleEvaluationSubpath routes /v1/evaluations/{id}[/run|/report|/report.pdf].
func (s *Server) handleEvaluationSubpath(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/evaluations/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" {
		writeError(w, evaluation.NewValidationError("evaluation id required"))
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		ev, err := s.svc.Get(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ev)
	case action == "run" && r.Method == http.MethodPost:
		ev, err := s.svc.Run(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"uuid": ev.ID, "status": ev.Status})
	case action == "report" && r.Method == http.MethodGet:
		report, err := s.svc.Report(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, report)
	case action == "report.pdf" && r.Method == http.MethodGet:
		s.reportPDF(w, r, id)
	default:
		writeJSON(w, http.StatusNotFound, errorEnvelope("unknown route"))
	}
}

func (s *Server) reportPDF(w http.ResponseWriter, r *http.Request, id string) {
	if s.pdf == nil {
		writeJSON(w, http.StatusNotImplemented, errorEnvelope("pdf rendering not configured"))
		return
	}
	report, err := s.svc.Report(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	blob, err := s.pdf.Render(r.Context(), report)
	if err != nil {
		writeError(w, fmt.Errorf("render pdf: %w", err))
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "brandrank_"+id+".pdf"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(blob)
}

// handleToonEncode converts a JSON body to its TOON rendering. Debug aid
// for inspecting what the provider is asked to produce.
func (s *Server) handleToonEncode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorEnvelope("method not allowed"))
		return
	}
	blob, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, evaluation.NewValidationError("read body: "+err.Error()))
		return
	}
	var payload any
	if err := json.Unmarshal(blob, &payload); err != nil {
		writeError(w, evaluation.NewValidationError("invalid json: "+err.Error()))
		return
	}
	text, err := toon.Encode(payload)
	if err != nil {
		writeError(w, evaluation.NewValidationError(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"toon": text})
}

type leadRequest struct {
	UUID  string `json:"uuid"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

func (s *Server) handleLeads(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req leadRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, evaluation.NewValidationError("invalid json: "+err.Error()))
			return
		}
		if _, err := s.svc.Get(r.Context(), req.UUID); err != nil {
			writeError(w, err)
			return
		}
		lead := &evaluation.Lead{
			EvaluationID: req.UUID,
			Name:         strings.TrimSpace(req.Name),
			Email:        strings.TrimSpace(req.Email),
			Phone:        strings.TrimSpace(req.Phone),
		}
		if err := s.leads.CreateLead(r.Context(), lead); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "id": lead.ID, "evaluation_uuid": lead.EvaluationID})
	case http.MethodGet:
		rows, err := s.leads.ListLeads(r.Context(), leadFilterFromQuery(r))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"count": len(rows), "results": rows})
	default:
		writeJSON(w, http.StatusMethodNotAllowed, errorEnvelope("method not allowed"))
	}
}

func (s *Server) handleLeadsExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, errorEnvelope("method not allowed"))
		return
	}
	rows, err := s.leads.ListLeads(r.Context(), leadFilterFromQuery(r))
	if err != nil {
		writeError(w, err)
		return
	}

	filename := "leads_" + time.Now().Format("20060102_1504") + ".csv"
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"id", "evaluation_uuid", "name", "email", "phone", "created_at"})
	for _, lead := range rows {
		_ = cw.Write([]string{
			strconv.FormatInt(lead.ID, 10),
			lead.EvaluationID,
			lead.Name,
			lead.Email,
			lead.Phone,
			lead.CreatedAt.Format(time.RFC3339),
		})
	}
	cw.Flush()
}

func leadFilterFromQuery(r *http.Request) store.LeadFilter {
	return store.LeadFilter{
		EvaluationID: strings.TrimSpace(r.URL.Query().Get("uuid")),
		Search:       strings.TrimSpace(r.URL.Query().Get("search")),
	}
}

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	return json.NewDecoder(r.Body).Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func errorEnvelope(message string) map[string]any {
	return map[string]any{"ok": false, "error": map[string]any{"code": evaluation.CodeInternal, "message": message}}
}

func writeError(w http.ResponseWriter, err error) {
	var e *evaluation.Error
	if errors.As(err, &e) {
		payload := map[string]any{
			"ok": false,
			"error": map[string]any{
				"code":    e.Code,
				"message": e.Message,
			},
		}
		if len(e.Detail) > 0 {
			payload["error"].(map[string]any)["detail"] = e.Detail
		}
		writeJSON(w, e.Status(), payload)
		return
	}
	writeJSON(w, http.StatusInternalServerError, errorEnvelope(err.Error()))
}
