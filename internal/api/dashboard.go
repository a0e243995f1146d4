package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/ribera-digital/bankline/internal/models"
	"github.com/ribera-digital/bankline/internal/store"
)

// chatsHandler lists every conversation for the dashboard.
func (s *Server) chatsHandler(w http.ResponseWriter, r *http.Request) {
	chats, err := s.store.ListConversations()
	if err != nil {
		slog.Error("Server.chatsHandler: failed to list conversations", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to list conversations"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(chats))
}

// documentsHandler lists stored documents without their content.
func (s *Server) documentsHandler(w http.ResponseWriter, r *http.Request) {
	docs, err := s.store.ListDocuments()
	if err != nil {
		slog.Error("Server.documentsHandler: failed to list documents", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to list documents"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(docs))
}

// documentHandler streams one stored document as a download.
func (s *Server) documentHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
	if err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("document id must be numeric"))
		return
	}
	doc, err := s.store.GetDocument(id)
	if errors.Is(err, store.ErrNotFound) {
		writeJSONResponse(w, http.StatusNotFound, models.Error("document not found"))
		return
	}
	if err != nil {
		slog.Error("Server.documentHandler: failed to load document", "error", err, "id", id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to load document"))
		return
	}

	contentType := doc.MimeType
	if contentType == "" {
		contentType = "application/pdf"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("document-%d", doc.ID)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(doc.Data); err != nil {
		slog.Error("Server.documentHandler: failed to write document", "error", err, "id", id)
	}
}

// cardReportsHandler lists lost card reports.
func (s *Server) cardReportsHandler(w http.ResponseWriter, r *http.Request) {
	reports, err := s.store.ListCardReports()
	if err != nil {
		slog.Error("Server.cardReportsHandler: failed to list reports", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to list card reports"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(reports))
}

// updateCardReportHandler moves a report through its back-office states.
func (s *Server) updateCardReportHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	var req struct {
		ID        int64  `json:"id"`
		NewStatus string `json:"newStatus"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("invalid JSON format"))
		return
	}
	if req.ID == 0 || req.NewStatus == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("id and newStatus are required"))
		return
	}

	updated, err := s.store.UpdateCardReportStatus(req.ID, req.NewStatus)
	if err != nil {
		slog.Error("Server.updateCardReportHandler: update failed", "error", err, "id", req.ID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to update card report"))
		return
	}
	if !updated {
		writeJSONResponse(w, http.StatusNotFound, models.Error("card report not found"))
		return
	}
	slog.Info("card report status updated", "id", req.ID, "status", req.NewStatus)
	writeJSONResponse(w, http.StatusOK, models.Success(nil))
}

// saveSignatureHandler stores a signature captured on the signing form and
// completes whichever flow was waiting for it.
func (s *Server) saveSignatureHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	var req struct {
		UserNumber    string `json:"userNumber"`
		SignatureData string `json:"signatureData"`
		DocType       string `json:"doctype"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("invalid JSON format"))
		return
	}
	if req.UserNumber == "" || req.SignatureData == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("userNumber and signatureData are required"))
		return
	}

	docID, err := s.store.SaveSignature(req.UserNumber, decodeSignature(req.SignatureData))
	if err != nil {
		slog.Error("Server.saveSignatureHandler: failed to save signature", "error", err, "phone", req.UserNumber)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to save signature"))
		return
	}
	slog.Info("signature saved", "phone", req.UserNumber, "document_id", docID)

	phone := req.UserNumber
	go func() {
		if err := s.engine.CompleteSignature(context.Background(), phone); err != nil {
			slog.Error("Server.saveSignatureHandler: signature completion failed", "error", err, "phone", phone)
		}
	}()

	writeJSONResponse(w, http.StatusCreated, map[string]any{
		"documentId": docID,
		"message":    "signature saved",
	})
}

// decodeSignature accepts either a data URL or raw base64; undecodable input
// is stored verbatim.
func decodeSignature(data string) []byte {
	payload := data
	if idx := strings.Index(payload, "base64,"); idx >= 0 {
		payload = payload[idx+len("base64,"):]
	}
	if decoded, err := base64.StdEncoding.DecodeString(payload); err == nil {
		return decoded
	}
	return []byte(data)
}
