package http

import (
	"net/http"

	"estate/internal/core"
	"estate/internal/services"
)

type createBookingRequest struct {
	UnitID      string    `json:"unit_id" validate:"required,max=64"`
	CustomerID  string    `json:"customer_id" validate:"required,max=64"`
	BookingDate core.Date `json:"booking_date"`
	AmountPaid  Amount    `json:"amount_paid"`
	Notes       string    `json:"notes" validate:"max=500"`
}

type paymentRequest struct {
	Amount      Amount    `json:"amount"`
	PaymentDate core.Date `json:"payment_date"`
	PaymentType string    `json:"payment_type" validate:"max=40"`
	AccountID   string    `json:"account_id" validate:"max=64"`
	Notes       string    `json:"notes" validate:"max=500"`
}

type extraPaymentRequest struct {
	Amount      Amount    `json:"amount"`
	PaymentDate core.Date `json:"payment_date"`
	Description string    `json:"description" validate:"max=200"`
}

func (s *Server) handleListBookings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	bookings, err := s.svc.Bookings.List(r.Context(), scope(r), services.BookingFilter{
		ProjectID: sanitizeInput(q.Get("project")),
		Status:    core.BookingStatus(sanitizeInput(q.Get("status"))),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bookings)
}

func (s *Server) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	b, err := s.svc.Bookings.Get(r.Context(), scope(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var req createBookingRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	b, err := s.svc.Bookings.Create(r.Context(), scope(r), core.Booking{
		UnitID:      sanitizeInput(req.UnitID),
		CustomerID:  sanitizeInput(req.CustomerID),
		BookingDate: req.BookingDate,
		AmountPaid:  float64(req.AmountPaid),
		Notes:       sanitizeInput(req.Notes),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (s *Server) handleStatement(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Ledger.Statement(r.Context(), scope(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleRecordPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	receipt, err := s.svc.Bookings.RecordPayment(r.Context(), scope(r), core.Payment{
		BookingID:   r.PathValue("id"),
		Amount:      float64(req.Amount),
		PaymentDate: req.PaymentDate,
		PaymentType: sanitizeInput(req.PaymentType),
		AccountID:   sanitizeInput(req.AccountID),
		Notes:       sanitizeInput(req.Notes),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, receipt)
}

func (s *Server) handleRecordExtraPayment(w http.ResponseWriter, r *http.Request) {
	var req extraPaymentRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	receipt, err := s.svc.Bookings.RecordExtraPayment(r.Context(), scope(r), core.ExtraPayment{
		BookingID:   r.PathValue("id"),
		Amount:      float64(req.Amount),
		PaymentDate: req.PaymentDate,
		Description: sanitizeInput(req.Description),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, receipt)
}

func (s *Server) handleCancelBooking(w http.ResponseWriter, r *http.Request) {
	b, err := s.svc.Bookings.Cancel(r.Context(), scope(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleDeleteBooking(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Bookings.Delete(r.Context(), scope(r), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
