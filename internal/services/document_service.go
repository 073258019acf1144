package services

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"estate/internal/attachments"
	"estate/internal/core"
	"estate/internal/log"
	"estate/internal/storage"
)

// Upload is an attachment to store against a booking or an expense.
type Upload struct {
	Name        string
	ContentType string
	BookingID   string
	ExpenseID   string
	Body        io.Reader
}

// SignedLink is a temporary download URL for a document.
type SignedLink struct {
	DocumentID string    `json:"document_id"`
	URL        string    `json:"url"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// DocumentService stores attachments and hands out signed download links.
type DocumentService struct {
	store storage.Store
	files attachments.Store
	ttl   time.Duration
	fx    effects
	now   func() time.Time
}

func NewDocumentService(d Deps, files attachments.Store, ttl time.Duration) *DocumentService {
	return &DocumentService{
		store: d.Store,
		files: files,
		ttl:   ttl,
		fx:    newEffects(d, log.ComponentAttachments),
		now:   time.Now,
	}
}

// owner resolves the project and key prefix of the record a document
// belongs to, enforcing scope on it.
func (s *DocumentService) owner(ctx context.Context, scope core.Scope, bookingID, expenseID string) (kind, id, projectID string, err error) {
	switch {
	case bookingID != "":
		b, err := s.store.GetBooking(ctx, bookingID)
		if err != nil {
			return "", "", "", fmt.Errorf("get booking: %w", err)
		}
		if err := checkScope(scope, b.ProjectID, "booking "+bookingID); err != nil {
			return "", "", "", err
		}
		return string(storage.KindBookings), b.ID, b.ProjectID, nil
	case expenseID != "":
		e, err := s.store.GetExpense(ctx, expenseID)
		if err != nil {
			return "", "", "", fmt.Errorf("get expense: %w", err)
		}
		if err := checkScope(scope, e.ProjectID, "expense "+expenseID); err != nil {
			return "", "", "", err
		}
		return string(storage.KindExpenses), e.ID, e.ProjectID, nil
	}
	return "", "", "", core.ErrMissingLinkage
}

// Upload stores the file and records its document. The stored object is
// removed again if the document cannot be saved.
func (s *DocumentService) Upload(ctx context.Context, scope core.Scope, in Upload) (core.Document, error) {
	doc := core.Document{
		Name:        strings.TrimSpace(in.Name),
		ContentType: in.ContentType,
		BookingID:   in.BookingID,
		ExpenseID:   in.ExpenseID,
		UploadedBy:  scope.Username,
	}
	if err := doc.Validate(); err != nil {
		return core.Document{}, err
	}
	kind, ownerID, projectID, err := s.owner(ctx, scope, in.BookingID, in.ExpenseID)
	if err != nil {
		return core.Document{}, err
	}
	if doc.ContentType == "" {
		doc.ContentType = "application/octet-stream"
	}

	key := attachments.ObjectKey(kind, ownerID, doc.Name)
	size, err := s.files.Upload(ctx, key, doc.ContentType, in.Body)
	if err != nil {
		return core.Document{}, fmt.Errorf("upload %s: %w", doc.Name, err)
	}

	doc.Path = key
	doc.Size = size
	doc.ProjectID = projectID
	doc.CreatedAt = s.now().UTC()
	saved, err := s.store.SaveDocument(ctx, doc)
	if err != nil {
		if derr := s.files.Delete(ctx, key); derr != nil {
			s.fx.logger.ErrorContext(ctx, "Failed to remove orphaned upload", "key", key, log.FieldError, derr)
		}
		return core.Document{}, fmt.Errorf("save document: %w", err)
	}

	s.fx.logger.InfoContext(ctx, "Document uploaded",
		"document_id", saved.ID, "key", key, "size", size, log.FieldProjectID, projectID)
	s.fx.changed(ctx, storage.KindDocuments)
	return saved, nil
}

// List returns the documents of one booking or expense.
func (s *DocumentService) List(ctx context.Context, scope core.Scope, bookingID, expenseID string) ([]core.Document, error) {
	if _, _, _, err := s.owner(ctx, scope, bookingID, expenseID); err != nil {
		return nil, err
	}
	docs, err := s.store.ListDocuments(ctx, storage.Query{BookingID: bookingID, ExpenseID: expenseID})
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// SignedURL returns a temporary link to a document's file.
func (s *DocumentService) SignedURL(ctx context.Context, scope core.Scope, documentID string) (SignedLink, error) {
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return SignedLink{}, fmt.Errorf("get document: %w", err)
	}
	if err := checkScope(scope, doc.ProjectID, "document "+documentID); err != nil {
		return SignedLink{}, err
	}
	url, err := s.files.SignedURL(ctx, doc.Path, s.ttl)
	if err != nil {
		return SignedLink{}, fmt.Errorf("sign %s: %w", doc.Path, err)
	}
	// A cached URL may have been signed earlier; half the TTL is the
	// lifetime still guaranteed.
	return SignedLink{DocumentID: doc.ID, URL: url, ExpiresAt: s.now().Add(s.ttl / 2).UTC()}, nil
}
