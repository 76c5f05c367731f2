// internal/adapters/http_server/handlers.go
package httpserver

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"app_reviews/internal/app"
	"app_reviews/internal/domain"
	"app_reviews/internal/export"
)

// Defaults fill query parameters the caller left out.
type Defaults struct {
	MaxCount int
	Country  string
	Lang     string
}

type Handlers struct {
	P        *app.Pipeline
	Store    domain.ExportStore // nil disables /v1/exports
	Defaults Defaults
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

type reviewsResponse struct {
	Source       domain.Source   `json:"source"`
	AppID        string          `json:"app_id"`
	Message      string          `json:"message"`
	Count        int             `json:"count"`
	Distribution map[int]int     `json:"distribution"`
	Rows         []domain.Review `json:"rows"`
}

// sourceResult is one store's entry in the combined listing. Status carries
// what the single-source route would have answered.
type sourceResult struct {
	reviewsResponse
	Status int    `json:"status"`
	Error  string `json:"error,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Get("/v1/reviews", h.listBoth)
	s.mux.Get("/v1/reviews/{source}", h.listReviews)
	s.mux.Get("/v1/reviews/{source}/export", h.exportReviews)
	s.mux.Get("/v1/exports/{source}/{file}", h.publishedExport)
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// runStatus maps a run error onto an HTTP status and problem title.
func runStatus(err error) (int, string) {
	var te *domain.TransportError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "App Not Found"
	case errors.Is(err, domain.ErrInvalidAppID):
		return http.StatusBadRequest, "Invalid App ID"
	case errors.As(err, &te):
		return http.StatusBadGateway, "Upstream Error"
	default:
		return http.StatusInternalServerError, "Internal Error"
	}
}

// writeRunError writes a failed run as a problem response. detail is the
// user-facing message from the pipeline.
func writeRunError(w http.ResponseWriter, err error, detail string) {
	status, title := runStatus(err)
	writeProblem(w, status, title, detail)
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

// runConfig reads the source path param, app_id and the shared query parameters.
func (h *Handlers) runConfig(r *http.Request) (domain.RunConfig, error) {
	src, err := domain.ParseSource(chi.URLParam(r, "source"))
	if err != nil {
		return domain.RunConfig{}, err
	}
	cfg, err := h.sharedConfig(r)
	if err != nil {
		return cfg, err
	}
	cfg.Source = src
	cfg.AppID = strings.TrimSpace(r.URL.Query().Get("app_id"))
	if cfg.AppID == "" {
		return cfg, errors.New("app_id is required")
	}
	return cfg, nil
}

// sharedConfig applies country, lang, max and since over the defaults.
func (h *Handlers) sharedConfig(r *http.Request) (domain.RunConfig, error) {
	q := r.URL.Query()
	cfg := domain.RunConfig{
		Country:  h.Defaults.Country,
		Lang:     h.Defaults.Lang,
		MaxCount: h.Defaults.MaxCount,
	}
	if v := q.Get("country"); v != "" {
		cfg.Country = strings.ToLower(v)
	}
	if v := q.Get("lang"); v != "" {
		cfg.Lang = v
	}
	if v := q.Get("max"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return cfg, errors.New("max must be a positive integer")
		}
		cfg.MaxCount = n
	}
	if v := q.Get("since"); v != "" {
		since, err := h.P.Normalizer().Since(v)
		if err != nil {
			return cfg, errors.New("since must be YYYY-MM-DD")
		}
		cfg.Since = since
	}
	return cfg, nil
}

func newReviewsResponse(res domain.RunResult) reviewsResponse {
	rows := res.Rows
	if rows == nil {
		rows = []domain.Review{}
	}
	return reviewsResponse{
		Source:       res.Source,
		AppID:        res.AppID,
		Message:      res.Message,
		Count:        len(rows),
		Distribution: res.Distribution,
		Rows:         rows,
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("failed to write JSON body")
	}
}

func (h *Handlers) listReviews(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.runConfig(r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Request", err.Error())
		return
	}
	res := h.P.Run(r.Context(), cfg)
	if res.Err != nil {
		writeRunError(w, res.Err, res.Message)
		return
	}
	writeJSON(w, r, newReviewsResponse(res))
}

// listBoth runs Google then Apple for one product listed in both stores.
// A failing store only marks its own entry; the request fails when every
// requested store failed.
func (h *Handlers) listBoth(w http.ResponseWriter, r *http.Request) {
	base, err := h.sharedConfig(r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Request", err.Error())
		return
	}
	q := r.URL.Query()
	var cfgs []domain.RunConfig
	for _, s := range []struct {
		src domain.Source
		id  string
	}{
		{domain.SourceGoogle, strings.TrimSpace(q.Get("google_id"))},
		{domain.SourceApple, strings.TrimSpace(q.Get("apple_id"))},
	} {
		if s.id == "" {
			continue
		}
		cfg := base
		cfg.Source, cfg.AppID = s.src, s.id
		cfgs = append(cfgs, cfg)
	}
	if len(cfgs) == 0 {
		writeProblem(w, http.StatusBadRequest, "Invalid Request", "google_id or apple_id is required")
		return
	}

	results := h.P.RunAll(r.Context(), cfgs...)
	out := make([]sourceResult, 0, len(results))
	failed := 0
	for _, res := range results {
		sr := sourceResult{reviewsResponse: newReviewsResponse(res), Status: http.StatusOK}
		if res.Err != nil {
			failed++
			sr.Status, sr.Error = runStatus(res.Err)
		}
		out = append(out, sr)
	}
	if failed == len(results) {
		writeRunError(w, results[0].Err, results[0].Message)
		return
	}
	writeJSON(w, r, struct {
		Results []sourceResult `json:"results"`
	}{out})
}

func (h *Handlers) exportReviews(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.runConfig(r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Request", err.Error())
		return
	}
	f, err := domain.ParseExportFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Format", "format must be csv or xlsx")
		return
	}
	cfg.Format = f

	res := h.P.Run(r.Context(), cfg)
	if res.Err != nil {
		writeRunError(w, res.Err, res.Message)
		return
	}
	body, name, err := h.P.Export(res, f)
	if errors.Is(err, domain.ErrNoReviews) {
		writeProblem(w, http.StatusNotFound, "No Reviews", res.Message)
		return
	}
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Export Failed", err.Error())
		return
	}
	writeAttachment(w, f, name, body)
}

// publishedExport serves the buffer the ingestor last stored for
// /v1/exports/{source}/{app_id}.{csv|xlsx}.
func (h *Handlers) publishedExport(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		writeProblem(w, http.StatusServiceUnavailable, "Export Store Disabled", "REDIS_ADDR is not configured")
		return
	}
	src, err := domain.ParseSource(chi.URLParam(r, "source"))
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Source", "source must be google or apple")
		return
	}
	file := chi.URLParam(r, "file")
	dot := strings.LastIndexByte(file, '.')
	if dot <= 0 {
		writeProblem(w, http.StatusBadRequest, "Invalid File", "expected {app_id}.{csv|xlsx}")
		return
	}
	f, err := domain.ParseExportFormat(file[dot+1:])
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Format", "format must be csv or xlsx")
		return
	}
	appID := file[:dot]

	b, ok, err := h.Store.Get(r.Context(), export.Key(src, appID, f))
	if err != nil {
		log.Error().Err(err).Str("app_id", appID).Msg("export store read failed")
		writeProblem(w, http.StatusBadGateway, "Export Store Error", "could not read published export")
		return
	}
	if !ok {
		writeProblem(w, http.StatusNotFound, "Not Found", "no published export for "+appID)
		return
	}
	writeAttachment(w, f, export.Filename(src, f), bytes.NewReader(b))
}

func writeAttachment(w http.ResponseWriter, f domain.ExportFormat, name string, body io.Reader) {
	w.Header().Set("Content-Type", export.ContentType(f))
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		log.Error().Err(err).Str("file", name).Msg("failed to write export body")
	}
}
