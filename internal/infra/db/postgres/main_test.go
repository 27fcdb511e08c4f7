//go:build integration

package postgres

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"discord-storefront/internal/domain/model"
	"discord-storefront/internal/infra/security"
)

// findProjectRoot travels up from the current directory to find the project root,
// marked by the presence of a go.mod file.
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for i := 0; i < 6; i++ {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", errors.New("could not find project root containing go.mod")
}

// startPostgres runs a throwaway postgres with deploy/postgres/init.sql applied.
func startPostgres(ctx context.Context) (testcontainers.Container, string, error) {
	root, err := findProjectRoot()
	if err != nil {
		return nil, "", err
	}
	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("storefront"),
		tcpostgres.WithUsername("user"),
		tcpostgres.WithPassword("password"),
		tcpostgres.WithInitScripts(filepath.Join(root, "deploy", "postgres", "init.sql")),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		return nil, "", err
	}
	connStr, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return ctr, "", err
	}
	return ctr, connStr, nil
}

// storeSuite runs every repository against one container; tables are truncated between tests.
type storeSuite struct {
	suite.Suite

	container testcontainers.Container
	pool      *pgxpool.Pool
	tm        *TxManager

	products *productRepo
	serials  *serialRepo
	orders   *orderRepo
	ledger   *ledgerRepo
	servers  *serverRepo
	reviews  *reviewRepo
	grants   *roleGrantRepo
}

func TestStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	suite.Run(t, new(storeSuite))
}

func (s *storeSuite) SetupSuite() {
	ctx := s.T().Context()

	var (
		connStr string
		err     error
	)
	s.container, connStr, err = startPostgres(ctx)
	s.Require().NoError(err)

	s.pool, err = Connect(ctx, connStr)
	s.Require().NoError(err)

	s.tm = NewTxManager(s.pool)
	s.products = NewProductRepo(s.pool)
	s.serials = NewSerialRepo(s.pool)
	s.orders = NewOrderRepo(s.pool)
	s.ledger = NewLedgerRepo(s.pool)
	box, err := security.NewSecretBox("0123456789abcdef0123456789abcdef")
	s.Require().NoError(err)
	s.servers = NewServerRepo(s.pool, box)
	s.reviews = NewReviewRepo(s.pool)
	s.grants = NewRoleGrantRepo(s.pool)
}

func (s *storeSuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.container != nil {
		s.NoError(s.container.Terminate(context.Background()))
	}
}

func (s *storeSuite) SetupTest() {
	_, err := s.pool.Exec(context.Background(), `
		TRUNCATE servers, products, orders, product_serials, ledger_entries, reviews, role_grants
		RESTART IDENTITY CASCADE`)
	s.Require().NoError(err)
}

// fakeProduct builds a valid product with random catalog data.
func (s *storeSuite) fakeProduct(typ model.ProductType, stock *int64) *model.Product {
	price := decimal.NewFromFloat(gofakeit.Price(1, 100)).Round(2)
	p, err := model.NewProduct("guild-"+gofakeit.Numerify("####"), gofakeit.UUID(), gofakeit.ProductName(), price, "usd", typ)
	s.Require().NoError(err)
	p.Description = gofakeit.Sentence(8)
	p.Stock = stock
	switch typ {
	case model.ProductTypeFile:
		p.File = &model.FileAsset{URL: gofakeit.URL(), Name: gofakeit.Word() + ".zip"}
	case model.ProductTypeRole:
		p.Role = &model.RolePolicy{RoleID: gofakeit.Numerify("##########"), Duration: 30 * 24 * time.Hour}
	}
	p.CreatedAt = p.CreatedAt.Truncate(time.Microsecond)
	p.UpdatedAt = p.CreatedAt
	s.Require().NoError(s.products.Save(context.Background(), nil, p))
	return p
}

// fakeOrder stores a PENDING order for p.
func (s *storeSuite) fakeOrder(p *model.Product) *model.Order {
	o, err := model.NewPendingOrder(p, gofakeit.Numerify("##################"), gofakeit.Email(), "pi_"+gofakeit.UUID(), decimal.RequireFromString("0.05"))
	s.Require().NoError(err)
	s.Require().NoError(s.orders.Create(context.Background(), nil, o))
	return o
}

// completedOrder stores an order and moves it to COMPLETED.
func (s *storeSuite) completedOrder(p *model.Product) *model.Order {
	o := s.fakeOrder(p)
	ok, err := s.orders.UpdateStatusIfPending(context.Background(), nil, o.ID, model.OrderStatusCompleted)
	s.Require().NoError(err)
	s.Require().True(ok)
	o.Status = model.OrderStatusCompleted
	return o
}
