package meals

import (
	"context"
	"database/sql"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS meals (
	id          UUID PRIMARY KEY,
	user_id     TEXT NOT NULL,
	name        TEXT NOT NULL,
	calories    DOUBLE PRECISION NOT NULL,
	protein     DOUBLE PRECISION NOT NULL,
	carbs       DOUBLE PRECISION NOT NULL,
	fat         DOUBLE PRECISION NOT NULL,
	image_url   TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS meals_user_created_idx ON meals (user_id, created_at DESC);
`

// PostgresStore implements Store on PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the meals table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create meals schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Insert(ctx context.Context, meal Meal) error {
	query := `
		INSERT INTO meals (id, user_id, name, calories, protein, carbs, fat, image_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(ctx, query,
		meal.ID,
		meal.UserID,
		meal.Name,
		meal.Calories,
		meal.Protein,
		meal.Carbs,
		meal.Fat,
		meal.ImageURL,
		meal.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert meal: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID string) ([]Meal, error) {
	query := `
		SELECT id, user_id, name, calories, protein, carbs, fat, image_url, created_at
		FROM meals
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query meals: %w", err)
	}
	defer rows.Close()

	out := []Meal{}
	for rows.Next() {
		var m Meal
		if err := rows.Scan(&m.ID, &m.UserID, &m.Name, &m.Calories, &m.Protein, &m.Carbs, &m.Fat, &m.ImageURL, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan meal: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate meals: %w", err)
	}
	return out, nil
}
