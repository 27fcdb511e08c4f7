//go:build integration

package postgres

import (
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"

	"discord-storefront/internal/domain"
	"discord-storefront/internal/domain/model"
	"discord-storefront/internal/domain/ports/repository"
)

func (s *storeSuite) TestOrder_CreateAndFind() {
	ctx := s.T().Context()
	p := s.fakeProduct(model.ProductTypeFile, nil)
	o := s.fakeOrder(p)

	got, err := s.orders.FindByPaymentIntent(ctx, nil, o.PaymentIntentID)
	s.Require().NoError(err)
	s.Equal(o.ID, got.ID)
	s.Equal(model.OrderStatusPending, got.Status)
	s.True(o.Amount.Equal(got.Amount))
	s.True(o.CommissionAmount.Equal(got.CommissionAmount), "commission %s != %s", o.CommissionAmount, got.CommissionAmount)
	s.False(got.Delivered)
	s.Nil(got.DeliveryData)

	dup := *o
	dup.ID = "22222222-2222-2222-2222-222222222222"
	s.ErrorIs(s.orders.Create(ctx, nil, &dup), domain.ErrAlreadyExists)

	_, err = s.orders.FindByPaymentIntent(ctx, nil, "pi_missing")
	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *storeSuite) TestOrder_UpdateStatusIfPending() {
	ctx := s.T().Context()
	o := s.fakeOrder(s.fakeProduct(model.ProductTypeFile, nil))

	ok, err := s.orders.UpdateStatusIfPending(ctx, nil, o.ID, model.OrderStatusCompleted)
	s.Require().NoError(err)
	s.True(ok)

	// a terminal order never changes again
	ok, err = s.orders.UpdateStatusIfPending(ctx, nil, o.ID, model.OrderStatusFailed)
	s.Require().NoError(err)
	s.False(ok)

	got, err := s.orders.FindByID(ctx, nil, o.ID)
	s.Require().NoError(err)
	s.Equal(model.OrderStatusCompleted, got.Status)
}

func (s *storeSuite) TestOrder_MarkDelivered() {
	ctx := s.T().Context()
	p := s.fakeProduct(model.ProductTypeSerialPool, nil)

	pending := s.fakeOrder(p)
	data := &model.DeliveryData{
		Fulfillment: model.SerialAssignment{Serial: "XYZ"},
		Channels:    []model.NoticeChannel{model.ChannelDirectMessage},
		FulfilledAt: time.Now().UTC().Truncate(time.Second),
	}
	ok, err := s.orders.MarkDelivered(ctx, nil, pending.ID, data, time.Now())
	s.Require().NoError(err)
	s.False(ok, "pending orders cannot be delivered")

	o := s.completedOrder(p)
	ok, err = s.orders.MarkDelivered(ctx, nil, o.ID, data, time.Now())
	s.Require().NoError(err)
	s.True(ok)

	ok, err = s.orders.MarkDelivered(ctx, nil, o.ID, data, time.Now())
	s.Require().NoError(err)
	s.False(ok)

	got, err := s.orders.FindByID(ctx, nil, o.ID)
	s.Require().NoError(err)
	s.True(got.Delivered)
	s.NotNil(got.DeliveredAt)
	s.Require().NotNil(got.DeliveryData)
	s.Equal(model.SerialAssignment{Serial: "XYZ"}, got.DeliveryData.Fulfillment)
	s.True(got.DeliveryData.HasChannel(model.ChannelDirectMessage))
}

func (s *storeSuite) TestOrder_ListUndelivered() {
	ctx := s.T().Context()
	p := s.fakeProduct(model.ProductTypeFile, nil)

	waiting := s.completedOrder(p)
	partial := s.completedOrder(p)
	s.Require().NoError(s.orders.SaveDeliveryData(ctx, nil, partial.ID, &model.DeliveryData{
		Fulfillment: model.FileLink{URL: "https://cdn.example.com/a.zip"},
		Partial:     true,
		LastError:   "dm blocked",
		FulfilledAt: time.Now(),
	}))
	blocked := s.completedOrder(p)
	s.Require().NoError(s.orders.SaveDeliveryData(ctx, nil, blocked.ID, &model.DeliveryData{
		Blocked:   true,
		LastError: "product is misconfigured",
	}))
	s.fakeOrder(p) // still pending

	got, err := s.orders.ListUndelivered(ctx, nil, time.Now().Add(time.Minute), 10)
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal(waiting.ID, got[0].ID)

	got, err = s.orders.ListUndelivered(ctx, nil, time.Now().Add(-time.Hour), 10)
	s.Require().NoError(err)
	s.Empty(got)
}

func (s *storeSuite) TestOrder_List() {
	ctx := s.T().Context()
	p := s.fakeProduct(model.ProductTypeFile, nil)
	a := s.completedOrder(p)
	s.fakeOrder(p)

	all, err := s.orders.List(ctx, nil, repository.OrderFilter{ServerID: p.ServerID})
	s.Require().NoError(err)
	s.Len(all, 2)

	done, err := s.orders.List(ctx, nil, repository.OrderFilter{ServerID: p.ServerID, Status: model.OrderStatusCompleted})
	s.Require().NoError(err)
	s.Require().Len(done, 1)
	s.Equal(a.ID, done[0].ID)

	mine, err := s.orders.List(ctx, nil, repository.OrderFilter{BuyerID: a.BuyerID})
	s.Require().NoError(err)
	s.Len(mine, 1)
}

func (s *storeSuite) TestLedger_AppendOncePerOrder() {
	ctx := s.T().Context()
	p := s.fakeProduct(model.ProductTypeFile, nil)
	p.Price = decimal.RequireFromString("9.99")
	s.Require().NoError(s.products.Save(ctx, nil, p))

	for i := 0; i < 2; i++ {
		o := s.completedOrder(p)
		e, err := model.NewLedgerEntry(o)
		s.Require().NoError(err)
		s.Require().NoError(s.ledger.Append(ctx, nil, e))

		dup, _ := model.NewLedgerEntry(o)
		s.ErrorIs(s.ledger.Append(ctx, nil, dup), domain.ErrAlreadyExists)

		got, err := s.ledger.FindByOrder(ctx, nil, o.ID)
		s.Require().NoError(err)
		s.Equal(e.ID, got.ID)
	}

	totals, err := s.ledger.TotalsByServer(ctx, nil, p.ServerID)
	s.Require().NoError(err)
	s.Require().Len(totals, 1)
	s.EqualValues(2, totals[0].Sales)
	s.Equal("19.98", totals[0].Revenue.StringFixed(2))
	s.True(decimal.RequireFromString("0.999").Equal(totals[0].Commission), "commission %s", totals[0].Commission)
	s.Equal("usd", totals[0].Currency)
}

func (s *storeSuite) TestServer_UpsertAndFind() {
	ctx := s.T().Context()
	srv := &model.ServerSettings{
		ServerID:        gofakeit.Numerify("##################"),
		CommissionRate:  decimal.RequireFromString("0.05"),
		StripeSecretKey: "sk_test_" + gofakeit.LetterN(12),
		WebhookSecret:   "whsec_" + gofakeit.LetterN(12),
		Currency:        "usd",
		UpdatedAt:       time.Now(),
	}
	s.Require().NoError(s.servers.Upsert(ctx, nil, srv))

	srv.CommissionRate = decimal.RequireFromString("0.125")
	s.Require().NoError(s.servers.Upsert(ctx, nil, srv))

	got, err := s.servers.FindByID(ctx, nil, srv.ServerID)
	s.Require().NoError(err)
	s.True(got.CommissionRate.Equal(srv.CommissionRate))
	s.Equal(srv.StripeSecretKey, got.StripeSecretKey)
	s.Equal(srv.WebhookSecret, got.WebhookSecret)
	s.True(got.PaymentReady())

	var stored string
	s.Require().NoError(s.pool.QueryRow(ctx, `SELECT stripe_secret_key FROM servers WHERE server_id = $1`, srv.ServerID).Scan(&stored))
	s.True(strings.HasPrefix(stored, "v1:"), "credentials must be sealed at rest")
	s.NotContains(stored, srv.StripeSecretKey)

	srv.CommissionRate = decimal.NewFromInt(2)
	s.ErrorIs(s.servers.Upsert(ctx, nil, srv), domain.ErrInvalidArgument)

	_, err = s.servers.FindByID(ctx, nil, "unknown")
	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *storeSuite) TestReview_OnePerOrder() {
	ctx := s.T().Context()
	p := s.fakeProduct(model.ProductTypeFile, nil)
	o := s.completedOrder(p)

	rv, err := model.NewReview(o.ID, p.ID, o.BuyerID, 4, gofakeit.Sentence(6))
	s.Require().NoError(err)
	s.Require().NoError(s.reviews.Create(ctx, nil, rv))

	again, _ := model.NewReview(o.ID, p.ID, o.BuyerID, 1, "changed my mind")
	s.ErrorIs(s.reviews.Create(ctx, nil, again), domain.ErrAlreadyExists)

	got, err := s.reviews.FindByOrder(ctx, nil, o.ID)
	s.Require().NoError(err)
	s.Equal(4, got.Rating)

	list, err := s.reviews.ListByProduct(ctx, nil, p.ID, 10)
	s.Require().NoError(err)
	s.Len(list, 1)
}

func (s *storeSuite) TestRoleGrant_ListDueAndRevoke() {
	ctx := s.T().Context()
	p := s.fakeProduct(model.ProductTypeRole, nil)
	now := time.Now().UTC().Truncate(time.Second)

	expired := model.NewRoleGrant(s.completedOrder(p), &model.RolePolicy{RoleID: "r", Duration: time.Hour}, now.Add(-2*time.Hour))
	inGrace := model.NewRoleGrant(s.completedOrder(p), &model.RolePolicy{RoleID: "r", Duration: time.Hour, GracePeriod: 2 * time.Hour}, now.Add(-2*time.Hour))
	renewing := model.NewRoleGrant(s.completedOrder(p), &model.RolePolicy{RoleID: "r", Duration: time.Hour, AutoRenew: true}, now.Add(-2*time.Hour))
	for _, g := range []*model.RoleGrant{expired, inGrace, renewing} {
		s.Require().NoError(s.grants.Save(ctx, nil, g))
	}

	due, err := s.grants.ListDue(ctx, nil, now, 10)
	s.Require().NoError(err)
	s.Require().Len(due, 1)
	s.Equal(expired.ID, due[0].ID)

	s.Require().NoError(s.grants.MarkRevoked(ctx, nil, expired.ID, now))
	s.ErrorIs(s.grants.MarkRevoked(ctx, nil, expired.ID, now), domain.ErrNotFound)

	due, err = s.grants.ListDue(ctx, nil, now.Add(2*time.Hour), 10)
	s.Require().NoError(err)
	s.Require().Len(due, 1)
	s.Equal(inGrace.ID, due[0].ID)
	s.Equal(2*time.Hour, due[0].GracePeriod)
}
