package pos

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// MemStore is an in-process Store. Transactions run on a copy of the state
// that replaces the live state only when fn succeeds.
type MemStore struct {
	mu    sync.Mutex
	state memState
	// Now stamps sale lines and sync log entries; defaults to time.Now.
	Now func() time.Time
}

var _ Store = (*MemStore)(nil)

type memState struct {
	products []Product // ordered by id
	sales    []SaleLine
	syncLog  []SyncLogEntry
	lastID   struct{ product, sale, log int64 }
}

func (st memState) clone() memState {
	c := st
	c.products = append([]Product(nil), st.products...)
	c.sales = append([]SaleLine(nil), st.sales...)
	c.syncLog = append([]SyncLogEntry(nil), st.syncLog...)
	return c
}

func (st *memState) product(id int64) (int, bool) {
	for i := range st.products {
		if st.products[i].ID == id {
			return i, true
		}
	}
	return -1, false
}

func (s *MemStore) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *MemStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.state.clone()
	if err := fn(&memTx{st: &work, now: s.now}); err != nil {
		return err
	}
	s.state = work
	return nil
}

func (s *MemStore) CreateProduct(_ context.Context, in ProductInput) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.lastID.product++
	p := Product{
		ID:            s.state.lastID.product,
		Name:          in.Name,
		Price:         in.Price,
		Category:      in.Category,
		StockQuantity: in.StockQuantity,
	}
	s.state.products = append(s.state.products, p)
	return p.ID, nil
}

func (s *MemStore) ListProducts(context.Context) ([]Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Product{}, s.state.products...), nil
}

func (s *MemStore) GetProduct(_ context.Context, id int64) (Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.state.product(id)
	if !ok {
		return Product{}, productNotFound(id)
	}
	return s.state.products[i], nil
}

func (s *MemStore) UpdateProduct(_ context.Context, id int64, in ProductInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.state.product(id)
	if !ok {
		return productNotFound(id)
	}
	p := &s.state.products[i]
	p.Name, p.Price, p.Category, p.StockQuantity = in.Name, in.Price, in.Category, in.StockQuantity
	return nil
}

func (s *MemStore) DeleteProduct(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.state.product(id)
	if !ok {
		return productNotFound(id)
	}
	for _, l := range s.state.sales {
		if l.ProductID == id {
			return &IntegrityError{ProductID: id, Reason: "cannot delete product with existing sales records"}
		}
	}
	s.state.products = append(s.state.products[:i], s.state.products[i+1:]...)
	return nil
}

// withName copies l and fills in the product name.
func (st *memState) withName(l SaleLine) SaleLine {
	if i, ok := st.product(l.ProductID); ok {
		l.ProductName = st.products[i].Name
	}
	return l
}

func (s *MemStore) ListSales(_ context.Context, r DateRange) ([]SaleLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []SaleLine{}
	for _, l := range s.state.sales {
		if r.Contains(l.Timestamp) {
			out = append(out, s.state.withName(l))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *MemStore) Summary(_ context.Context, r DateRange) (Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum := Summary{TotalRevenue: decimal.Zero}
	seen := map[string]bool{}
	for _, l := range s.state.sales {
		if !r.Contains(l.Timestamp) {
			continue
		}
		if !seen[l.TransactionID] {
			seen[l.TransactionID] = true
			sum.TransactionsCount++
		}
		sum.ItemsSold += l.Quantity
		sum.TotalRevenue = sum.TotalRevenue.Add(l.LineTotal)
	}
	return sum, nil
}

func (s *MemStore) TopProducts(_ context.Context, r DateRange, limit int) ([]TopProduct, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	agg := map[int64]*TopProduct{}
	for _, l := range s.state.sales {
		if !r.Contains(l.Timestamp) {
			continue
		}
		t, ok := agg[l.ProductID]
		if !ok {
			t = &TopProduct{ProductID: l.ProductID, TotalRevenue: decimal.Zero}
			if i, ok := s.state.product(l.ProductID); ok {
				t.Name, t.Category = s.state.products[i].Name, s.state.products[i].Category
			}
			agg[l.ProductID] = t
		}
		t.TotalSold += l.Quantity
		t.TotalRevenue = t.TotalRevenue.Add(l.LineTotal)
	}
	out := make([]TopProduct, 0, len(agg))
	for _, t := range agg {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalSold != out[j].TotalSold {
			return out[i].TotalSold > out[j].TotalSold
		}
		return out[i].ProductID < out[j].ProductID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemStore) UnsyncedSales(context.Context) ([]SaleLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []SaleLine{}
	for _, l := range s.state.sales {
		if !l.Synced {
			out = append(out, s.state.withName(l))
		}
	}
	return out, nil
}

func (s *MemStore) SyncLog(_ context.Context, txnID string) ([]SyncLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []SyncLogEntry{}
	for _, e := range s.state.syncLog {
		if e.TransactionID == txnID {
			out = append(out, e)
		}
	}
	return out, nil
}

type memTx struct {
	st  *memState
	now func() time.Time
}

func (t *memTx) LockProduct(_ context.Context, id int64) (Product, error) {
	i, ok := t.st.product(id)
	if !ok {
		return Product{}, productNotFound(id)
	}
	return t.st.products[i], nil
}

func (t *memTx) DecrementStock(_ context.Context, id int64, qty int) error {
	i, ok := t.st.product(id)
	if !ok {
		return productNotFound(id)
	}
	p := &t.st.products[i]
	if p.StockQuantity < qty {
		return &InsufficientStockError{ProductID: id, Requested: qty, Available: p.StockQuantity}
	}
	p.StockQuantity -= qty
	return nil
}

func (t *memTx) InsertSaleLine(_ context.Context, l *SaleLine) error {
	t.st.lastID.sale++
	l.ID = t.st.lastID.sale
	l.Timestamp = t.now()
	l.Synced = false
	t.st.sales = append(t.st.sales, *l)
	return nil
}

func (t *memTx) CountLines(_ context.Context, txnID string) (int, error) {
	n := 0
	for _, l := range t.st.sales {
		if l.TransactionID == txnID {
			n++
		}
	}
	return n, nil
}

func (t *memTx) MarkSynced(_ context.Context, txnID string) error {
	for i := range t.st.sales {
		if t.st.sales[i].TransactionID == txnID {
			t.st.sales[i].Synced = true
		}
	}
	return nil
}

func (t *memTx) AppendSyncLog(_ context.Context, txnID string, status SyncStatus, detail string) error {
	t.st.lastID.log++
	t.st.syncLog = append(t.st.syncLog, SyncLogEntry{
		ID:            t.st.lastID.log,
		TransactionID: txnID,
		SyncTime:      t.now(),
		Status:        status,
		Detail:        detail,
	})
	return nil
}
