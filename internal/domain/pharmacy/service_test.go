package pharmacy

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/hms/hms/internal/domain/billing"
	"github.com/hms/hms/internal/platform/db"
	"github.com/hms/hms/internal/platform/hmserr"
)

type mockItemRepo struct {
	items map[uuid.UUID]*MedicationItem
}

func newMockItemRepo() *mockItemRepo {
	return &mockItemRepo{items: make(map[uuid.UUID]*MedicationItem)}
}

func (m *mockItemRepo) Create(_ context.Context, item *MedicationItem) error {
	item.ID = uuid.New()
	m.items[item.ID] = item
	return nil
}

func (m *mockItemRepo) GetByID(_ context.Context, id uuid.UUID) (*MedicationItem, error) {
	item, ok := m.items[id]
	if !ok {
		return nil, hmserr.NotFound("medication item", id.String())
	}
	cp := *item
	return &cp, nil
}

func (m *mockItemRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*MedicationItem, error) {
	return m.GetByID(ctx, id)
}

func (m *mockItemRepo) Search(_ context.Context, params ItemSearchParams, limit, offset int) ([]*MedicationItem, int, error) {
	var out []*MedicationItem
	for _, item := range m.items {
		if params.BelowReorder && !item.BelowReorderLevel() {
			continue
		}
		if params.Query != "" && !strings.Contains(strings.ToLower(item.Name), strings.ToLower(params.Query)) {
			continue
		}
		out = append(out, item)
	}
	return out, len(out), nil
}

func (m *mockItemRepo) Update(_ context.Context, item *MedicationItem) error {
	if _, ok := m.items[item.ID]; !ok {
		return hmserr.NotFound("medication item", item.ID.String())
	}
	m.items[item.ID] = item
	return nil
}

func (m *mockItemRepo) AdjustStock(_ context.Context, id uuid.UUID, delta int) error {
	item, ok := m.items[id]
	if !ok {
		return hmserr.NotFound("medication item", id.String())
	}
	if item.StockQuantity+delta < 0 {
		return hmserr.Conflict("stock adjustment would leave a negative quantity")
	}
	item.StockQuantity += delta
	return nil
}

type mockDispenseRepo struct {
	records map[uuid.UUID]*DispenseRecord
}

func newMockDispenseRepo() *mockDispenseRepo {
	return &mockDispenseRepo{records: make(map[uuid.UUID]*DispenseRecord)}
}

func (m *mockDispenseRepo) Create(_ context.Context, rec *DispenseRecord) error {
	rec.ID = uuid.New()
	for _, line := range rec.Lines {
		line.ID = uuid.New()
		line.DispenseID = rec.ID
	}
	m.records[rec.ID] = rec
	return nil
}

func (m *mockDispenseRepo) GetByID(_ context.Context, id uuid.UUID) (*DispenseRecord, error) {
	rec, ok := m.records[id]
	if !ok {
		return nil, hmserr.NotFound("dispense record", id.String())
	}
	return rec, nil
}

func (m *mockDispenseRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*DispenseRecord, int, error) {
	var out []*DispenseRecord
	for _, rec := range m.records {
		if rec.PatientID == patientID {
			out = append(out, rec)
		}
	}
	return out, len(out), nil
}

type mockLiner struct {
	added []*billing.LineItem
}

func (m *mockLiner) AddLineItem(_ context.Context, _ uuid.UUID, li *billing.LineItem) error {
	m.added = append(m.added, li)
	return nil
}

type fixture struct {
	svc       *Service
	items     *mockItemRepo
	dispenses *mockDispenseRepo
	liner     *mockLiner
}

func newFixture() *fixture {
	f := &fixture{
		items:     newMockItemRepo(),
		dispenses: newMockDispenseRepo(),
		liner:     &mockLiner{},
	}
	f.svc = NewService(f.items, f.dispenses, f.liner, db.PassthroughTxRunner())
	return f
}

func (f *fixture) item(t *testing.T, name string, price float64, stock int) *MedicationItem {
	t.Helper()
	item := &MedicationItem{
		Code:          strings.ToUpper(name[:3]) + "-001",
		Name:          name,
		Form:          "tablet",
		UnitPrice:     price,
		StockQuantity: stock,
		ReorderLevel:  10,
	}
	if err := f.svc.CreateItem(context.Background(), item); err != nil {
		t.Fatalf("create item: %v", err)
	}
	return item
}

func TestDispenseDecrementsStock(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	amox := f.item(t, "Amoxicillin 500mg", 2.50, 40)

	rec, err := f.svc.Dispense(ctx, DispenseRequest{
		PatientID:   uuid.New(),
		DispensedBy: uuid.New(),
		Lines:       []DispenseLineRequest{{ItemID: amox.ID, Quantity: 12}},
	})
	if err != nil {
		t.Fatalf("dispense: %v", err)
	}
	if len(rec.Lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(rec.Lines))
	}
	if rec.Lines[0].UnitPrice != 2.50 {
		t.Errorf("expected unit price snapshot 2.50, got %v", rec.Lines[0].UnitPrice)
	}
	if rec.DispensedAt.IsZero() {
		t.Error("expected dispensed_at to be set")
	}

	item, err := f.svc.GetItem(ctx, amox.ID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if item.StockQuantity != 28 {
		t.Errorf("expected stock 28 after dispensing 12 of 40, got %d", item.StockQuantity)
	}
}

func TestDispenseInsufficientStock(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	ibu := f.item(t, "Ibuprofen 400mg", 1.20, 5)

	_, err := f.svc.Dispense(ctx, DispenseRequest{
		PatientID:   uuid.New(),
		DispensedBy: uuid.New(),
		Lines:       []DispenseLineRequest{{ItemID: ibu.ID, Quantity: 6}},
	})
	if !hmserr.IsKind(err, hmserr.KindConflict) {
		t.Fatalf("expected conflict for shortage, got %v", err)
	}
	if len(f.dispenses.records) != 0 {
		t.Error("expected no dispense record after shortage")
	}

	item, err := f.svc.GetItem(ctx, ibu.ID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if item.StockQuantity != 5 {
		t.Errorf("expected stock untouched at 5, got %d", item.StockQuantity)
	}
}

func TestDispensePricesOntoInvoice(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	para := f.item(t, "Paracetamol 500mg", 0.50, 100)
	amox := f.item(t, "Amoxicillin 250mg", 1.75, 100)
	invoiceID := uuid.New()

	_, err := f.svc.Dispense(ctx, DispenseRequest{
		PatientID:   uuid.New(),
		DispensedBy: uuid.New(),
		InvoiceID:   &invoiceID,
		Lines: []DispenseLineRequest{
			{ItemID: para.ID, Quantity: 20},
			{ItemID: amox.ID, Quantity: 14},
		},
	})
	if err != nil {
		t.Fatalf("dispense: %v", err)
	}
	if len(f.liner.added) != 2 {
		t.Fatalf("expected 2 invoice lines, got %d", len(f.liner.added))
	}
	first := f.liner.added[0]
	if first.Description != "Paracetamol 500mg x20" {
		t.Errorf("unexpected line description %q", first.Description)
	}
	if first.Quantity != 20 || first.UnitPrice != 0.50 {
		t.Errorf("unexpected line pricing: qty %d price %v", first.Quantity, first.UnitPrice)
	}
}

func TestDispenseWithoutInvoiceSkipsBilling(t *testing.T) {
	f := newFixture()
	para := f.item(t, "Paracetamol 500mg", 0.50, 100)

	_, err := f.svc.Dispense(context.Background(), DispenseRequest{
		PatientID:   uuid.New(),
		DispensedBy: uuid.New(),
		Lines:       []DispenseLineRequest{{ItemID: para.ID, Quantity: 5}},
	})
	if err != nil {
		t.Fatalf("dispense: %v", err)
	}
	if len(f.liner.added) != 0 {
		t.Errorf("expected no invoice lines, got %d", len(f.liner.added))
	}
}

func TestDispenseValidation(t *testing.T) {
	f := newFixture()
	item := f.item(t, "Cetirizine 10mg", 0.30, 50)
	patientID := uuid.New()
	staffID := uuid.New()

	cases := []struct {
		name string
		req  DispenseRequest
	}{
		{"missing patient", DispenseRequest{
			DispensedBy: staffID,
			Lines:       []DispenseLineRequest{{ItemID: item.ID, Quantity: 1}},
		}},
		{"missing dispenser", DispenseRequest{
			PatientID: patientID,
			Lines:     []DispenseLineRequest{{ItemID: item.ID, Quantity: 1}},
		}},
		{"no lines", DispenseRequest{
			PatientID:   patientID,
			DispensedBy: staffID,
		}},
		{"zero quantity", DispenseRequest{
			PatientID:   patientID,
			DispensedBy: staffID,
			Lines:       []DispenseLineRequest{{ItemID: item.ID, Quantity: 0}},
		}},
		{"negative quantity", DispenseRequest{
			PatientID:   patientID,
			DispensedBy: staffID,
			Lines:       []DispenseLineRequest{{ItemID: item.ID, Quantity: -3}},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.svc.Dispense(context.Background(), tc.req); !hmserr.IsKind(err, hmserr.KindValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestRestock(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	item := f.item(t, "Metformin 500mg", 0.80, 8)

	updated, err := f.svc.Restock(ctx, item.ID, 50)
	if err != nil {
		t.Fatalf("restock: %v", err)
	}
	if updated.StockQuantity != 58 {
		t.Errorf("expected stock 58, got %d", updated.StockQuantity)
	}

	if _, err := f.svc.Restock(ctx, item.ID, 0); !hmserr.IsKind(err, hmserr.KindValidation) {
		t.Errorf("expected validation error for zero quantity, got %v", err)
	}
	if _, err := f.svc.Restock(ctx, item.ID, -10); !hmserr.IsKind(err, hmserr.KindValidation) {
		t.Errorf("expected validation error for negative quantity, got %v", err)
	}
}

func TestItemValidation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	cases := []struct {
		name string
		item MedicationItem
	}{
		{"missing code", MedicationItem{Name: "Aspirin"}},
		{"missing name", MedicationItem{Code: "ASP-001"}},
		{"negative price", MedicationItem{Code: "ASP-001", Name: "Aspirin", UnitPrice: -1}},
		{"negative stock", MedicationItem{Code: "ASP-001", Name: "Aspirin", StockQuantity: -5}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			item := tc.item
			if err := f.svc.CreateItem(ctx, &item); !hmserr.IsKind(err, hmserr.KindValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestBelowReorderLevel(t *testing.T) {
	item := &MedicationItem{StockQuantity: 10, ReorderLevel: 10}
	if !item.BelowReorderLevel() {
		t.Error("stock at reorder level should flag restock")
	}
	item.StockQuantity = 11
	if item.BelowReorderLevel() {
		t.Error("stock above reorder level should not flag restock")
	}
}

func TestSearchBelowReorder(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	low := f.item(t, "Insulin Glargine", 12.00, 4)
	f.item(t, "Omeprazole 20mg", 0.60, 200)

	items, total, err := f.svc.SearchItems(ctx, ItemSearchParams{BelowReorder: true}, 20, 0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if total != 1 || len(items) != 1 {
		t.Fatalf("expected 1 low-stock item, got %d", total)
	}
	if items[0].ID != low.ID {
		t.Errorf("expected low-stock item %s, got %s", low.ID, items[0].ID)
	}
}
