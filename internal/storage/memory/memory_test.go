package memory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"estate/internal/core"
	"estate/internal/storage"
)

func TestNewFromFiles(t *testing.T) {
	dir := t.TempDir()
	seed := `{
		"projects": [{"id": "P1", "name": "Tower"}],
		"units": [{"id": "U1", "name": "A-1", "price": 50000, "status": "reserved", "project_id": "P1"}],
		"bookings": [{"id": "B2", "unit_id": "U1", "customer_id": "C1", "booking_date": "2023-05-01", "amount_paid": 10000, "status": "active", "project_id": "P1"}],
		"payments": [{"id": "p1", "booking_id": "B2", "amount": 15000, "payment_date": "2023-06-01"}]
	}`
	if err := os.WriteFile(filepath.Join(dir, "seed.json"), []byte(seed), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "seed_categories.txt"), []byte("# shared\nSite Works\nPermits\n\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := NewFromFiles(dir)
	if err != nil {
		t.Fatalf("NewFromFiles: %v", err)
	}
	ctx := context.Background()

	b, err := s.GetBooking(ctx, "B2")
	if err != nil || b.AmountPaid != 10000 || !b.BookingDate.Equal(core.NewDate(2023, 5, 1).Time) {
		t.Fatalf("booking = %+v, %v", b, err)
	}
	ps, _ := s.ListPayments(ctx, storage.Query{ProjectID: "P1"})
	if len(ps) != 1 {
		t.Fatalf("payments = %+v", ps)
	}
	cats, _ := s.ListCategories(ctx, storage.Query{})
	if len(cats) != 2 || cats[0].Name != "Permits" || cats[1].ID != "site-works" {
		t.Fatalf("categories = %+v", cats)
	}
}

func TestNewFromFilesWithoutSeed(t *testing.T) {
	s, err := NewFromFiles(t.TempDir())
	if err != nil {
		t.Fatalf("NewFromFiles: %v", err)
	}
	ps, _ := s.ListProjects(context.Background())
	if len(ps) != 0 {
		t.Fatalf("expected empty store, got %+v", ps)
	}
}

func TestBookingsAreCopied(t *testing.T) {
	s := New()
	flag := true
	b, _ := s.SaveBooking(context.Background(), core.Booking{ID: "b", DepositReconciled: &flag})
	*b.DepositReconciled = false
	flag = false

	got, _ := s.GetBooking(context.Background(), "b")
	if !*got.DepositReconciled {
		t.Fatal("store state leaked through the returned pointer")
	}
}
