package store

import (
	"context"
	"embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/ayush/storefinder/internal/models"
)

//go:embed migrations/*.sql
var migrations embed.FS

// PostgresStore handles reviews in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate applies the embedded goose migrations.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}

	db := stdlib.OpenDBFromPool(s.pool)
	defer db.Close()

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateReview(ctx context.Context, r *models.Review) (*models.Review, error) {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO reviews (store_id, author_id, author_name, text, rating)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id::text, created_at`,
		r.StoreID, r.AuthorID, r.AuthorName, r.Text, r.Rating,
	).Scan(&r.ID, &r.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create review: %w", err)
	}
	return r, nil
}

// ListReviews returns a store's reviews, newest first.
func (s *PostgresStore) ListReviews(ctx context.Context, storeID string) ([]models.Review, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id::text, store_id, author_id, author_name, text, rating, created_at
		 FROM reviews WHERE store_id = $1
		 ORDER BY created_at DESC`, storeID,
	)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	reviews := []models.Review{}
	for rows.Next() {
		var r models.Review
		if err := rows.Scan(&r.ID, &r.StoreID, &r.AuthorID, &r.AuthorName, &r.Text, &r.Rating, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		reviews = append(reviews, r)
	}
	return reviews, rows.Err()
}

// TopRated ranks stores with at least minReviews reviews by average rating.
func (s *PostgresStore) TopRated(ctx context.Context, minReviews, limit int) ([]models.StoreRating, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT store_id, AVG(rating)::float8, COUNT(*)
		 FROM reviews
		 GROUP BY store_id
		 HAVING COUNT(*) >= $1
		 ORDER BY AVG(rating) DESC, COUNT(*) DESC
		 LIMIT $2`, minReviews, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("top rated: %w", err)
	}
	defer rows.Close()

	ratings := []models.StoreRating{}
	for rows.Next() {
		var r models.StoreRating
		if err := rows.Scan(&r.StoreID, &r.AverageRating, &r.ReviewCount); err != nil {
			return nil, fmt.Errorf("scan rating: %w", err)
		}
		ratings = append(ratings, r)
	}
	return ratings, rows.Err()
}
