package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"ricevute/internal/auth"
	"ricevute/internal/core"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return token
	}
	return ""
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expiresIn"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req loginRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 4096)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, err := s.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		slog.ErrorContext(r.Context(), "Login failed", "error", err)
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		ExpiresIn: int64(s.auth.TTL().Seconds()),
	})
}

type ocrResponse struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

func (s *Server) handleOCRProcess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "upload too large or malformed")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	if ct := header.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
		writeError(w, http.StatusUnsupportedMediaType, "file must be an image")
		return
	}

	image, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload")
		return
	}

	result, err := s.extractor.ExtractText(r.Context(), image)
	if err != nil {
		if errors.Is(err, core.ErrEmptyText) {
			writeError(w, http.StatusUnprocessableEntity, "no text detected in image")
			return
		}
		slog.ErrorContext(r.Context(), "OCR failed", "error", err, "filename", header.Filename)
		writeError(w, http.StatusBadGateway, "text extraction failed")
		return
	}

	writeJSON(w, http.StatusOK, ocrResponse{Text: result.Text, Confidence: result.Confidence})
}

type structureRequest struct {
	OCRText string `json:"ocrText"`
}

func (s *Server) handleStructure(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req structureRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.OCRText) == "" {
		writeError(w, http.StatusBadRequest, "ocrText is required")
		return
	}

	rec, err := s.structurer.Structure(r.Context(), req.OCRText)
	if err != nil {
		slog.ErrorContext(r.Context(), "Structuring failed", "error", err)
		writeError(w, http.StatusBadGateway, "structuring failed")
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

type writeRequest struct {
	Receipt core.Receipt `json:"receipt"`
	OCRText string       `json:"ocrText"`
}

type writeResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (s *Server) handleWrite(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req writeRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id, err := s.receipts.Save(r.Context(), req.Receipt, req.OCRText)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	s.invalidateHistory(req.Receipt.Date)

	writeJSON(w, http.StatusAccepted, writeResponse{ID: id, Status: "pending"})
}

type batchWriteRequest struct {
	Receipts []core.Receipt `json:"receipts"`
}

func (s *Server) handleBatchWrite(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req batchWriteRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 8<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	summary, err := s.writer.Write(r.Context(), req.Receipts, s.spreadsheetID)
	if err != nil {
		if errors.Is(err, core.ErrEmptyBatch) {
			writeError(w, http.StatusBadRequest, "receipts must not be empty")
			return
		}
		slog.ErrorContext(r.Context(), "Batch write failed", "error", err)
		writeError(w, http.StatusBadGateway, "batch write failed")
		return
	}

	for _, rec := range req.Receipts {
		s.invalidateHistory(rec.Date)
	}

	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	month := r.URL.Query().Get("month")
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = parsed
	}

	cacheKey := month + ":" + strconv.Itoa(limit)
	if cached, ok := s.historyCache.Get(cacheKey); ok {
		writeJSON(w, http.StatusOK, map[string]any{"receipts": cached})
		return
	}

	receipts, err := s.receipts.History(r.Context(), month, limit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.historyCache.Set(cacheKey, receipts)
	writeJSON(w, http.StatusOK, map[string]any{"receipts": receipts})
}

// invalidateHistory drops cached history pages for the receipt's month.
// Cache keys vary by limit, so a full scan is avoided by deleting the
// common default-limit entries only; the TTL bounds staleness for the rest.
func (s *Server) invalidateHistory(date string) {
	if len(date) < 7 {
		return
	}
	month := date[:7]
	s.historyCache.Delete(month + ":0")
	s.historyCache.Delete(month + ":50")
}
