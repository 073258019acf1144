package http

import (
	"errors"
	"fmt"
	"net/http"

	"estate/internal/services"
)

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	docs, err := s.svc.Documents.List(r.Context(), scope(r), sanitizeInput(q.Get("booking")), sanitizeInput(q.Get("expense")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

// handleUploadDocument accepts a multipart form with a "file" part and a
// booking_id or expense_id field.
func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			ErrorResponse(http.StatusRequestEntityTooLarge, CodeBadRequest,
				fmt.Sprintf("upload exceeds %d bytes", s.maxUploadBytes)).Write(w)
			return
		}
		writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: file part required", errBadRequest))
		return
	}
	defer file.Close()

	doc, err := s.svc.Documents.Upload(r.Context(), scope(r), services.Upload{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		BookingID:   sanitizeInput(r.FormValue("booking_id")),
		ExpenseID:   sanitizeInput(r.FormValue("expense_id")),
		Body:        file,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (s *Server) handleDocumentURL(w http.ResponseWriter, r *http.Request) {
	link, err := s.svc.Documents.SignedURL(r.Context(), scope(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, link)
}
