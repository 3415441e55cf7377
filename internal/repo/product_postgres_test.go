//go:build integration

package repo

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/rogerio-castellano/product-catalog/internal/db"
	"github.com/rogerio-castellano/product-catalog/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

type PostgresProductRepositorySuite struct {
	suite.Suite
	ctx       context.Context
	container *postgres.PostgresContainer
	database  *sql.DB
	repo      *PostgresProductRepository
}

func (s *PostgresProductRepositorySuite) SetupSuite() {
	s.ctx = context.Background()

	var err error
	s.container, err = postgres.Run(
		s.ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("catalog_test"),
		postgres.WithUsername("test_user"),
		postgres.WithPassword("test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	s.Require().NoError(err)

	connStr, err := s.container.ConnectionString(s.ctx, "sslmode=disable")
	s.Require().NoError(err)

	s.database, err = db.Connect(s.ctx, connStr)
	s.Require().NoError(err)

	// twice on purpose: the statement must be idempotent
	s.Require().NoError(db.EnsureSchema(s.ctx, s.database))
	s.Require().NoError(db.EnsureSchema(s.ctx, s.database))

	s.repo = NewPostgresProductRepository(s.database)
}

func (s *PostgresProductRepositorySuite) TearDownSuite() {
	if s.database != nil {
		s.database.Close()
	}
	if s.container != nil {
		s.Require().NoError(s.container.Terminate(s.ctx))
	}
}

func (s *PostgresProductRepositorySuite) SetupTest() {
	_, err := s.database.ExecContext(s.ctx, "TRUNCATE TABLE products RESTART IDENTITY")
	s.Require().NoError(err)
}

func (s *PostgresProductRepositorySuite) newWidget() models.Product {
	return models.Product{Name: "Widget", Image: "http://x/i.png", Price: decimal.RequireFromString("9.99")}
}

func (s *PostgresProductRepositorySuite) TestCreateAndGet() {
	created, err := s.repo.Create(s.ctx, s.newWidget())
	s.Require().NoError(err)
	s.Require().Equal(1, created.ID)
	s.Require().False(created.CreatedAt.IsZero())

	got, err := s.repo.GetByID(s.ctx, created.ID)
	s.Require().NoError(err)
	s.Require().Equal(created.Name, got.Name)
	s.Require().Equal(created.Image, got.Image)
	s.Require().True(got.Price.Equal(decimal.RequireFromString("9.99")))

	second, err := s.repo.Create(s.ctx, s.newWidget())
	s.Require().NoError(err)
	s.Require().Greater(second.ID, created.ID)
}

func (s *PostgresProductRepositorySuite) TestPriceIsRoundedToTwoDecimals() {
	p := s.newWidget()
	p.Price = decimal.RequireFromString("1.005")

	created, err := s.repo.Create(s.ctx, p)
	s.Require().NoError(err)
	s.Require().Equal("1.01", created.Price.StringFixed(2))
}

func (s *PostgresProductRepositorySuite) TestUpdate() {
	created, err := s.repo.Create(s.ctx, s.newWidget())
	s.Require().NoError(err)

	updated, err := s.repo.Update(s.ctx, models.Product{
		ID: created.ID, Name: "Gadget", Image: "/g.png", Price: decimal.NewFromInt(3),
	})
	s.Require().NoError(err)
	s.Require().Equal("Gadget", updated.Name)
	s.Require().Equal(created.CreatedAt, updated.CreatedAt)

	_, err = s.repo.Update(s.ctx, models.Product{ID: 999, Name: "ghost", Image: "-", Price: decimal.Zero})
	s.Require().ErrorIs(err, ErrProductNotFound)

	all, err := s.repo.GetAll(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(all, 1)
}

func (s *PostgresProductRepositorySuite) TestDelete() {
	created, err := s.repo.Create(s.ctx, s.newWidget())
	s.Require().NoError(err)

	deleted, err := s.repo.Delete(s.ctx, created.ID)
	s.Require().NoError(err)
	s.Require().Equal(created.ID, deleted.ID)

	_, err = s.repo.GetByID(s.ctx, created.ID)
	s.Require().ErrorIs(err, ErrProductNotFound)

	_, err = s.repo.Delete(s.ctx, created.ID)
	s.Require().ErrorIs(err, ErrProductNotFound)
}

func (s *PostgresProductRepositorySuite) TestGetAllEmpty() {
	all, err := s.repo.GetAll(s.ctx)
	s.Require().NoError(err)
	s.Require().NotNil(all)
	s.Require().Empty(all)
}

func (s *PostgresProductRepositorySuite) TestContextTimeout() {
	ctx, cancel := context.WithTimeout(s.ctx, time.Microsecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	_, err := s.repo.GetAll(ctx)
	s.Require().ErrorIs(err, context.DeadlineExceeded)
}

func TestPostgresProductRepositorySuite(t *testing.T) {
	suite.Run(t, new(PostgresProductRepositorySuite))
}
