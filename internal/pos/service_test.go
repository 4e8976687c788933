package pos_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ariefcatur/go-pos/internal/pos"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// fixedClock returns t and advances it by step on every call.
func fixedClock(t time.Time, step time.Duration) func() time.Time {
	return func() time.Time {
		now := t
		t = t.Add(step)
		return now
	}
}

func newService(t *testing.T) (*pos.Service, *pos.MemStore) {
	t.Helper()
	st := &pos.MemStore{Now: fixedClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC), time.Minute)}
	return &pos.Service{Store: st}, st
}

// seed adds the Laptop (999.99 x10) and Mouse (24.99 x50) products.
func seed(t *testing.T, svc *pos.Service) (laptop, mouse int64) {
	t.Helper()
	ctx := context.Background()
	var err error
	laptop, err = svc.CreateProduct(ctx, pos.ProductInput{Name: "Laptop", Price: dec("999.99"), Category: "Electronics", StockQuantity: 10})
	require.NoError(t, err)
	mouse, err = svc.CreateProduct(ctx, pos.ProductInput{Name: "Mouse", Price: dec("24.99"), Category: "Electronics", StockQuantity: 50})
	require.NoError(t, err)
	return laptop, mouse
}

func stockOf(t *testing.T, svc *pos.Service, id int64) int {
	t.Helper()
	p, err := svc.GetProduct(context.Background(), id)
	require.NoError(t, err)
	return p.StockQuantity
}

func TestProcessSale(t *testing.T) {
	ctx := context.Background()

	t.Run("ProcessSale_DecrementsStockAndRecordsLines", func(t *testing.T) {
		svc, _ := newService(t)
		laptop, mouse := seed(t, svc)

		txn, err := svc.ProcessSale(ctx, []pos.SaleItem{{ProductID: laptop, Quantity: 1}, {ProductID: mouse, Quantity: 2}})
		require.NoError(t, err)
		require.NotEmpty(t, txn)

		require.Equal(t, 9, stockOf(t, svc, laptop))
		require.Equal(t, 48, stockOf(t, svc, mouse))

		lines, err := svc.ListSales(ctx, pos.DateRange{})
		require.NoError(t, err)
		require.Len(t, lines, 2)
		totals := map[int64]decimal.Decimal{}
		for _, l := range lines {
			require.Equal(t, txn, l.TransactionID)
			require.False(t, l.Synced)
			totals[l.ProductID] = l.LineTotal
		}
		require.True(t, totals[laptop].Equal(dec("999.99")))
		require.True(t, totals[mouse].Equal(dec("49.98")))
	})

	t.Run("ProcessSale_InsufficientStockLeavesStoreUnchanged", func(t *testing.T) {
		svc, _ := newService(t)
		laptop, _ := seed(t, svc)

		_, err := svc.ProcessSale(ctx, []pos.SaleItem{{ProductID: laptop, Quantity: 11}})
		var stockErr *pos.InsufficientStockError
		require.ErrorAs(t, err, &stockErr)
		require.Equal(t, laptop, stockErr.ProductID)
		require.Equal(t, 11, stockErr.Requested)
		require.Equal(t, 10, stockErr.Available)
		require.Equal(t, 10, stockOf(t, svc, laptop))
	})

	t.Run("ProcessSale_FailingLaterLineRollsBackEarlierLines", func(t *testing.T) {
		svc, _ := newService(t)
		laptop, mouse := seed(t, svc)

		_, err := svc.ProcessSale(ctx, []pos.SaleItem{
			{ProductID: mouse, Quantity: 5},
			{ProductID: laptop, Quantity: 2},
			{ProductID: laptop, Quantity: 9}, // sees 8 left after the previous line
		})
		require.True(t, pos.IsInsufficientStock(err))

		require.Equal(t, 10, stockOf(t, svc, laptop))
		require.Equal(t, 50, stockOf(t, svc, mouse))
		lines, err := svc.ListSales(ctx, pos.DateRange{})
		require.NoError(t, err)
		require.Empty(t, lines)
	})

	t.Run("ProcessSale_UnknownProductRollsBack", func(t *testing.T) {
		svc, _ := newService(t)
		_, mouse := seed(t, svc)

		_, err := svc.ProcessSale(ctx, []pos.SaleItem{{ProductID: mouse, Quantity: 1}, {ProductID: 999, Quantity: 1}})
		var nf *pos.NotFoundError
		require.ErrorAs(t, err, &nf)
		require.Equal(t, "product", nf.Entity)
		require.Equal(t, 50, stockOf(t, svc, mouse))
	})

	t.Run("ProcessSale_RejectsEmptyAndNonPositiveLines", func(t *testing.T) {
		svc, _ := newService(t)
		laptop, _ := seed(t, svc)

		_, err := svc.ProcessSale(ctx, nil)
		require.True(t, pos.IsValidation(err))

		_, err = svc.ProcessSale(ctx, []pos.SaleItem{{ProductID: laptop, Quantity: 0}})
		require.True(t, pos.IsValidation(err))

		_, err = svc.ProcessSale(ctx, []pos.SaleItem{{ProductID: laptop, Quantity: -3}})
		require.True(t, pos.IsValidation(err))
		require.Equal(t, 10, stockOf(t, svc, laptop))
	})

	t.Run("ProcessSale_StockDecrementsMatchRequestedQuantities", func(t *testing.T) {
		svc, _ := newService(t)
		laptop, mouse := seed(t, svc)

		items := []pos.SaleItem{{ProductID: mouse, Quantity: 3}, {ProductID: laptop, Quantity: 4}, {ProductID: mouse, Quantity: 7}}
		_, err := svc.ProcessSale(ctx, items)
		require.NoError(t, err)

		decremented := (10 - stockOf(t, svc, laptop)) + (50 - stockOf(t, svc, mouse))
		require.Equal(t, 14, decremented)
	})

	t.Run("ProcessSale_UnitPriceIsSnapshotAtSaleTime", func(t *testing.T) {
		svc, _ := newService(t)
		laptop, _ := seed(t, svc)

		_, err := svc.ProcessSale(ctx, []pos.SaleItem{{ProductID: laptop, Quantity: 2}})
		require.NoError(t, err)
		require.NoError(t, svc.UpdateProduct(ctx, laptop, pos.ProductInput{Name: "Laptop", Price: dec("1299.00"), Category: "Electronics", StockQuantity: 8}))

		lines, err := svc.ListSales(ctx, pos.DateRange{})
		require.NoError(t, err)
		require.Len(t, lines, 1)
		require.True(t, lines[0].UnitPrice.Equal(dec("999.99")))
		require.True(t, lines[0].LineTotal.Equal(dec("1999.98")))
	})

	t.Run("ProcessSale_TransactionIDsAreUnique", func(t *testing.T) {
		svc, _ := newService(t)
		_, mouse := seed(t, svc)

		seen := map[string]bool{}
		for i := 0; i < 20; i++ {
			txn, err := svc.ProcessSale(ctx, []pos.SaleItem{{ProductID: mouse, Quantity: 1}})
			require.NoError(t, err)
			require.False(t, seen[txn], "duplicate transaction id %s", txn)
			seen[txn] = true
		}
	})

	t.Run("ProcessSale_UsesInjectedIDGenerator", func(t *testing.T) {
		svc, _ := newService(t)
		_, mouse := seed(t, svc)
		n := 0
		svc.NewTxnID = func() string { n++; return fmt.Sprintf("T%d", n) }

		txn, err := svc.ProcessSale(ctx, []pos.SaleItem{{ProductID: mouse, Quantity: 1}})
		require.NoError(t, err)
		require.Equal(t, "T1", txn)
	})
}

func TestCatalog(t *testing.T) {
	ctx := context.Background()

	t.Run("CreateProduct_FailsOnMissingFields", func(t *testing.T) {
		svc, _ := newService(t)

		_, err := svc.CreateProduct(ctx, pos.ProductInput{Price: dec("1"), Category: "X"})
		var ve *pos.ValidationError
		require.ErrorAs(t, err, &ve)
		require.Equal(t, "name", ve.Field)

		_, err = svc.CreateProduct(ctx, pos.ProductInput{Name: "Pen", Price: dec("1")})
		require.ErrorAs(t, err, &ve)
		require.Equal(t, "category", ve.Field)

		_, err = svc.CreateProduct(ctx, pos.ProductInput{Name: "Pen", Price: dec("-1"), Category: "X"})
		require.ErrorAs(t, err, &ve)
		require.Equal(t, "price", ve.Field)
	})

	t.Run("CreateProduct_RejectsSubCentPrices", func(t *testing.T) {
		svc, _ := newService(t)

		_, err := svc.CreateProduct(ctx, pos.ProductInput{Name: "Pen", Price: dec("1.999"), Category: "X"})
		var ve *pos.ValidationError
		require.ErrorAs(t, err, &ve)
		require.Equal(t, "price", ve.Field)

		id, err := svc.CreateProduct(ctx, pos.ProductInput{Name: "Pen", Price: dec("1.500"), Category: "X"})
		require.NoError(t, err)
		err = svc.UpdateProduct(ctx, id, pos.ProductInput{Name: "Pen", Price: dec("0.001"), Category: "X"})
		require.True(t, pos.IsValidation(err))
	})

	t.Run("UpdateProduct_FailsOnUnknownID", func(t *testing.T) {
		svc, _ := newService(t)
		err := svc.UpdateProduct(ctx, 42, pos.ProductInput{Name: "Pen", Price: dec("1"), Category: "X"})
		require.True(t, pos.IsNotFound(err))
	})

	t.Run("DeleteProduct_BlockedBySales", func(t *testing.T) {
		svc, _ := newService(t)
		laptop, mouse := seed(t, svc)
		_, err := svc.ProcessSale(ctx, []pos.SaleItem{{ProductID: laptop, Quantity: 1}})
		require.NoError(t, err)

		err = svc.DeleteProduct(ctx, laptop)
		var ie *pos.IntegrityError
		require.ErrorAs(t, err, &ie)
		require.Equal(t, laptop, ie.ProductID)
		_, err = svc.GetProduct(ctx, laptop)
		require.NoError(t, err)

		require.NoError(t, svc.DeleteProduct(ctx, mouse))
		_, err = svc.GetProduct(ctx, mouse)
		require.True(t, pos.IsNotFound(err))
	})

	t.Run("DeleteProduct_FailsOnUnknownID", func(t *testing.T) {
		svc, _ := newService(t)
		require.True(t, pos.IsNotFound(svc.DeleteProduct(ctx, 7)))
	})

	t.Run("ListProducts_OrderedByID", func(t *testing.T) {
		svc, _ := newService(t)
		laptop, mouse := seed(t, svc)
		ps, err := svc.ListProducts(ctx)
		require.NoError(t, err)
		require.Len(t, ps, 2)
		require.Equal(t, laptop, ps[0].ID)
		require.Equal(t, mouse, ps[1].ID)
	})
}

func TestReports(t *testing.T) {
	ctx := context.Background()

	t.Run("Summary_EmptyStoreIsZero", func(t *testing.T) {
		svc, _ := newService(t)
		sum, err := svc.Summary(ctx, pos.DateRange{})
		require.NoError(t, err)
		require.Equal(t, 0, sum.TransactionsCount)
		require.Equal(t, 0, sum.ItemsSold)
		require.True(t, sum.TotalRevenue.IsZero())
	})

	t.Run("Summary_CountsDistinctTransactions", func(t *testing.T) {
		svc, _ := newService(t)
		laptop, mouse := seed(t, svc)
		_, err := svc.ProcessSale(ctx, []pos.SaleItem{{ProductID: laptop, Quantity: 1}, {ProductID: mouse, Quantity: 2}})
		require.NoError(t, err)
		_, err = svc.ProcessSale(ctx, []pos.SaleItem{{ProductID: mouse, Quantity: 1}})
		require.NoError(t, err)

		sum, err := svc.Summary(ctx, pos.DateRange{})
		require.NoError(t, err)
		require.Equal(t, 2, sum.TransactionsCount)
		require.Equal(t, 4, sum.ItemsSold)
		require.True(t, sum.TotalRevenue.Equal(dec("1074.96")))
	})

	t.Run("Summary_HonoursDateRange", func(t *testing.T) {
		svc, st := newService(t)
		_, mouse := seed(t, svc)

		st.Now = fixedClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), 0)
		_, err := svc.ProcessSale(ctx, []pos.SaleItem{{ProductID: mouse, Quantity: 1}})
		require.NoError(t, err)
		st.Now = fixedClock(time.Date(2024, 3, 5, 23, 30, 0, 0, time.UTC), 0)
		_, err = svc.ProcessSale(ctx, []pos.SaleItem{{ProductID: mouse, Quantity: 2}})
		require.NoError(t, err)
		st.Now = fixedClock(time.Date(2024, 3, 9, 8, 0, 0, 0, time.UTC), 0)
		_, err = svc.ProcessSale(ctx, []pos.SaleItem{{ProductID: mouse, Quantity: 4}})
		require.NoError(t, err)

		cases := []struct {
			start, end string
			items      int
		}{
			{"", "", 7},
			{"2024-03-02", "", 6},
			{"", "2024-03-05", 3},
			{"2024-03-05", "2024-03-05", 2},
			{"2024-03-01T12:00:00Z", "2024-03-01T12:00:00Z", 1},
			{"2024-03-10", "", 0},
		}
		for _, c := range cases {
			r, err := pos.ParseDateRange(c.start, c.end)
			require.NoError(t, err)
			sum, err := svc.Summary(ctx, r)
			require.NoError(t, err)
			require.Equal(t, c.items, sum.ItemsSold, "range %q..%q", c.start, c.end)
		}
	})

	t.Run("TopProducts_RanksByUnitsSold", func(t *testing.T) {
		svc, _ := newService(t)
		a, b := seed(t, svc)
		_, err := svc.ProcessSale(ctx, []pos.SaleItem{{ProductID: a, Quantity: 2}})
		require.NoError(t, err)
		_, err = svc.ProcessSale(ctx, []pos.SaleItem{{ProductID: b, Quantity: 5}})
		require.NoError(t, err)

		top, err := svc.TopProducts(ctx, pos.DateRange{}, 1)
		require.NoError(t, err)
		require.Len(t, top, 1)
		require.Equal(t, b, top[0].ProductID)
		require.Equal(t, "Mouse", top[0].Name)
		require.Equal(t, 5, top[0].TotalSold)
		require.True(t, top[0].TotalRevenue.Equal(dec("124.95")))
	})

	t.Run("TopProducts_TiesBrokenByProductID", func(t *testing.T) {
		svc, _ := newService(t)
		a, b := seed(t, svc)
		_, err := svc.ProcessSale(ctx, []pos.SaleItem{{ProductID: b, Quantity: 3}, {ProductID: a, Quantity: 3}})
		require.NoError(t, err)

		top, err := svc.TopProducts(ctx, pos.DateRange{}, 0)
		require.NoError(t, err)
		require.Len(t, top, 2)
		require.Equal(t, a, top[0].ProductID)
		require.Equal(t, b, top[1].ProductID)
	})

	t.Run("TopProducts_RejectsNegativeLimit", func(t *testing.T) {
		svc, _ := newService(t)
		_, err := svc.TopProducts(ctx, pos.DateRange{}, -1)
		require.True(t, pos.IsValidation(err))
	})

	t.Run("ListSales_NewestFirst", func(t *testing.T) {
		svc, _ := newService(t)
		_, mouse := seed(t, svc)
		first, err := svc.ProcessSale(ctx, []pos.SaleItem{{ProductID: mouse, Quantity: 1}})
		require.NoError(t, err)
		second, err := svc.ProcessSale(ctx, []pos.SaleItem{{ProductID: mouse, Quantity: 1}})
		require.NoError(t, err)

		lines, err := svc.ListSales(ctx, pos.DateRange{})
		require.NoError(t, err)
		require.Len(t, lines, 2)
		require.Equal(t, second, lines[0].TransactionID)
		require.Equal(t, first, lines[1].TransactionID)
		require.Equal(t, "Mouse", lines[0].ProductName)
	})
}

func TestSyncTracker(t *testing.T) {
	ctx := context.Background()

	t.Run("MarkSynced_FlagsEveryLineAndLogsSuccess", func(t *testing.T) {
		svc, _ := newService(t)
		laptop, mouse := seed(t, svc)
		txn, err := svc.ProcessSale(ctx, []pos.SaleItem{{ProductID: laptop, Quantity: 1}, {ProductID: mouse, Quantity: 1}})
		require.NoError(t, err)
		other, err := svc.ProcessSale(ctx, []pos.SaleItem{{ProductID: mouse, Quantity: 1}})
		require.NoError(t, err)

		unsynced, err := svc.UnsyncedSales(ctx)
		require.NoError(t, err)
		require.Len(t, unsynced, 3)

		ok, err := svc.MarkSynced(ctx, txn)
		require.NoError(t, err)
		require.True(t, ok)

		unsynced, err = svc.UnsyncedSales(ctx)
		require.NoError(t, err)
		require.Len(t, unsynced, 1)
		require.Equal(t, other, unsynced[0].TransactionID)

		log, err := svc.SyncLog(ctx, txn)
		require.NoError(t, err)
		require.Len(t, log, 1)
		require.Equal(t, pos.SyncSuccess, log[0].Status)
	})

	t.Run("MarkSynced_UnknownTransaction", func(t *testing.T) {
		svc, _ := newService(t)
		ok, err := svc.MarkSynced(ctx, "TXN-missing")
		require.False(t, ok)
		require.True(t, pos.IsNotFound(err))

		_, err = svc.MarkSynced(ctx, " ")
		require.True(t, pos.IsValidation(err))
	})

	t.Run("RecordSyncFailure_AppendsWithoutFlagging", func(t *testing.T) {
		svc, _ := newService(t)
		_, mouse := seed(t, svc)
		txn, err := svc.ProcessSale(ctx, []pos.SaleItem{{ProductID: mouse, Quantity: 1}})
		require.NoError(t, err)

		require.NoError(t, svc.RecordSyncFailure(ctx, txn, "upstream timeout"))
		_, err = svc.MarkSynced(ctx, txn)
		require.NoError(t, err)

		log, err := svc.SyncLog(ctx, txn)
		require.NoError(t, err)
		require.Len(t, log, 2)
		require.Equal(t, pos.SyncFailed, log[0].Status)
		require.Equal(t, "upstream timeout", log[0].Detail)
		require.Equal(t, pos.SyncSuccess, log[1].Status)
	})
}

func TestMemStoreInTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	st := &pos.MemStore{}
	id, err := st.CreateProduct(ctx, pos.ProductInput{Name: "Desk", Price: dec("149.99"), Category: "Furniture", StockQuantity: 8})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = st.InTx(ctx, func(tx pos.Tx) error {
		require.NoError(t, tx.DecrementStock(ctx, id, 3))
		require.NoError(t, tx.InsertSaleLine(ctx, &pos.SaleLine{TransactionID: "T", ProductID: id, Quantity: 3}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	p, err := st.GetProduct(ctx, id)
	require.NoError(t, err)
	require.Equal(t, 8, p.StockQuantity)
	lines, err := st.UnsyncedSales(ctx)
	require.NoError(t, err)
	require.Empty(t, lines)
}
