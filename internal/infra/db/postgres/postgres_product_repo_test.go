//go:build integration

package postgres

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v4"
	"github.com/shopspring/decimal"

	"discord-storefront/internal/domain"
	"discord-storefront/internal/domain/model"
	"discord-storefront/internal/domain/ports/repository"
)

func int64Ptr(v int64) *int64 { return &v }

func (s *storeSuite) TestProduct_SaveAndFind() {
	ctx := s.T().Context()
	p := s.fakeProduct(model.ProductTypeRole, int64Ptr(3))

	got, err := s.products.FindByID(ctx, nil, p.ID)
	s.Require().NoError(err)
	s.Equal(p.Name, got.Name)
	s.True(p.Price.Equal(got.Price), "price %s != %s", p.Price, got.Price)
	s.Equal("usd", got.Currency)
	s.Require().NotNil(got.Stock)
	s.EqualValues(3, *got.Stock)
	s.Require().NotNil(got.Role)
	s.Equal(p.Role.RoleID, got.Role.RoleID)
	s.Equal(p.Role.Duration, got.Role.Duration)
	s.Nil(got.File)

	got.Name = "renamed"
	got.Active = false
	got.Stock = nil
	s.Require().NoError(s.products.Save(ctx, nil, got))

	again, err := s.products.FindByID(ctx, nil, p.ID)
	s.Require().NoError(err)
	s.Equal("renamed", again.Name)
	s.False(again.Active)
	s.Nil(again.Stock)

	_, err = s.products.FindByID(ctx, nil, "00000000-0000-0000-0000-000000000000")
	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *storeSuite) TestProduct_ListByServer() {
	ctx := s.T().Context()
	a := s.fakeProduct(model.ProductTypeSerialPool, nil)
	b := s.fakeProduct(model.ProductTypeSerialPool, nil)
	b.ServerID = a.ServerID
	b.ID = "11111111-1111-1111-1111-111111111111"
	b.Active = false
	s.Require().NoError(s.products.Save(ctx, nil, b))

	all, err := s.products.ListByServer(ctx, nil, a.ServerID, false)
	s.Require().NoError(err)
	s.Len(all, 2)

	active, err := s.products.ListByServer(ctx, nil, a.ServerID, true)
	s.Require().NoError(err)
	s.Require().Len(active, 1)
	s.Equal(a.ID, active[0].ID)
}

func (s *storeSuite) TestProduct_RecordSale() {
	ctx := s.T().Context()

	unlimited := s.fakeProduct(model.ProductTypeFile, nil)
	out, err := s.products.RecordSale(ctx, nil, unlimited.ID)
	s.Require().NoError(err)
	s.Equal(repository.SaleUntracked, out)

	tracked := s.fakeProduct(model.ProductTypeFile, int64Ptr(1))
	out, err = s.products.RecordSale(ctx, nil, tracked.ID)
	s.Require().NoError(err)
	s.Equal(repository.SaleDecremented, out)

	out, err = s.products.RecordSale(ctx, nil, tracked.ID)
	s.Require().NoError(err)
	s.Equal(repository.SaleOversold, out)

	got, err := s.products.FindByID(ctx, nil, tracked.ID)
	s.Require().NoError(err)
	s.EqualValues(0, *got.Stock)
	s.EqualValues(2, got.SalesCount)

	_, err = s.products.RecordSale(ctx, nil, "00000000-0000-0000-0000-000000000000")
	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *storeSuite) TestProduct_RecordSaleConcurrent() {
	ctx := s.T().Context()
	p := s.fakeProduct(model.ProductTypeFile, int64Ptr(5))

	const buyers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		outcomes = map[repository.SaleOutcome]int{}
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := s.products.RecordSale(ctx, nil, p.ID)
			if err != nil {
				s.T().Errorf("record sale: %v", err)
				return
			}
			mu.Lock()
			outcomes[out]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	s.Equal(5, outcomes[repository.SaleDecremented])
	s.Equal(3, outcomes[repository.SaleOversold])
	got, err := s.products.FindByID(ctx, nil, p.ID)
	s.Require().NoError(err)
	s.EqualValues(0, *got.Stock)
	s.EqualValues(buyers, got.SalesCount)
}

func (s *storeSuite) TestProduct_AdjustStock() {
	ctx := s.T().Context()
	p := s.fakeProduct(model.ProductTypeFile, int64Ptr(2))

	s.Require().NoError(s.products.AdjustStock(ctx, nil, p.ID, 3))
	got, _ := s.products.FindByID(ctx, nil, p.ID)
	s.EqualValues(5, *got.Stock)

	s.Require().NoError(s.products.AdjustStock(ctx, nil, p.ID, -10))
	got, _ = s.products.FindByID(ctx, nil, p.ID)
	s.EqualValues(0, *got.Stock)

	unlimited := s.fakeProduct(model.ProductTypeFile, nil)
	s.Require().NoError(s.products.AdjustStock(ctx, nil, unlimited.ID, 4))
	got, _ = s.products.FindByID(ctx, nil, unlimited.ID)
	s.Nil(got.Stock)
}

func (s *storeSuite) TestProduct_DeleteInUse() {
	ctx := s.T().Context()
	sold := s.fakeProduct(model.ProductTypeFile, nil)
	s.fakeOrder(sold)

	s.ErrorIs(s.products.Delete(ctx, nil, sold.ID), domain.ErrInUse)

	unsold := s.fakeProduct(model.ProductTypeSerialPool, nil)
	_, err := s.serials.AddSerials(ctx, nil, unsold.ID, []string{"K-1"})
	s.Require().NoError(err)
	s.Require().NoError(s.products.Delete(ctx, nil, unsold.ID))
	s.ErrorIs(s.products.Delete(ctx, nil, unsold.ID), domain.ErrNotFound)

	n, err := s.serials.CountAvailable(ctx, nil, unsold.ID)
	s.Require().NoError(err)
	s.Zero(n)
}

func (s *storeSuite) TestSerial_AddAndPop() {
	ctx := s.T().Context()
	p := s.fakeProduct(model.ProductTypeSerialPool, nil)

	added, err := s.serials.AddSerials(ctx, nil, p.ID, []string{"A", "B"})
	s.Require().NoError(err)
	s.Equal(2, added)
	added, err = s.serials.AddSerials(ctx, nil, p.ID, []string{"B", "C"})
	s.Require().NoError(err)
	s.Equal(1, added)

	o := s.completedOrder(p)
	first, err := s.serials.PopSerial(ctx, nil, p.ID, o.ID)
	s.Require().NoError(err)
	s.Equal("A", first)

	// retry for the same order hands back the same serial
	again, err := s.serials.PopSerial(ctx, nil, p.ID, o.ID)
	s.Require().NoError(err)
	s.Equal(first, again)

	n, err := s.serials.CountAvailable(ctx, nil, p.ID)
	s.Require().NoError(err)
	s.EqualValues(2, n)
}

func (s *storeSuite) TestSerial_PopConcurrentNeverShares() {
	ctx := s.T().Context()
	p := s.fakeProduct(model.ProductTypeSerialPool, nil)

	const pool = 10
	values := make([]string, pool)
	for i := range values {
		values[i] = fmt.Sprintf("KEY-%02d", i)
	}
	_, err := s.serials.AddSerials(ctx, nil, p.ID, values)
	s.Require().NoError(err)

	orders := make([]*model.Order, pool+2)
	for i := range orders {
		orders[i] = s.completedOrder(p)
	}

	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		handed     = map[string]string{}
		outOfStock int
	)
	for _, o := range orders {
		wg.Add(1)
		go func(orderID string) {
			defer wg.Done()
			v, err := s.serials.PopSerial(ctx, nil, p.ID, orderID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				handed[v] = orderID
			case err == domain.ErrOutOfStock:
				outOfStock++
			default:
				s.T().Errorf("pop serial: %v", err)
			}
		}(o.ID)
	}
	wg.Wait()

	s.Len(handed, pool)
	s.Equal(2, outOfStock)

	n, err := s.serials.CountAvailable(ctx, nil, p.ID)
	s.Require().NoError(err)
	s.Zero(n)
}

func (s *storeSuite) TestTxManager_RollbackOnError() {
	ctx := s.T().Context()
	p := s.fakeProduct(model.ProductTypeFile, int64Ptr(1))

	boom := fmt.Errorf("boom")
	err := s.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		locked, err := s.products.FindByID(ctx, tx, p.ID)
		if err != nil {
			return err
		}
		locked.Price = decimal.NewFromInt(500)
		if err := s.products.Save(ctx, tx, locked); err != nil {
			return err
		}
		if _, err := s.products.RecordSale(ctx, tx, p.ID); err != nil {
			return err
		}
		return boom
	})
	s.ErrorIs(err, boom)

	got, err := s.products.FindByID(ctx, nil, p.ID)
	s.Require().NoError(err)
	s.True(p.Price.Equal(got.Price))
	s.EqualValues(1, *got.Stock)
	s.Zero(got.SalesCount)
}
