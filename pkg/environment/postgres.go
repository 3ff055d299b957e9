package environment

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

// Querier is the query side of *pgxpool.Pool and *pgx.Conn.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresStore reads composite keys out of a table with the columns
// (key, field, value), one row per property.
type PostgresStore struct {
	db      Querier
	query   string
	timeout time.Duration
}

// NewPostgresStore reads table through db, bounding every fetch by timeout.
func NewPostgresStore(db Querier, table string, timeout time.Duration) *PostgresStore {
	return &PostgresStore{
		db:      db,
		query:   "SELECT field, value FROM " + pgx.Identifier{table}.Sanitize() + " WHERE key = $1 ORDER BY field",
		timeout: timeout,
	}
}

// Name identifies the store in property source names.
func (s *PostgresStore) Name() string {
	return "postgres"
}

func (s *PostgresStore) Fetch(key string) (map[string]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	rows, err := s.db.Query(ctx, s.query, key)
	if err != nil {
		return nil, unavailable(s.Name(), key, err)
	}
	defer rows.Close()

	properties := map[string]string{}
	for rows.Next() {
		var field, value string
		if err = rows.Scan(&field, &value); err != nil {
			return nil, malformed(s.Name(), key, err)
		}
		properties[field] = value
	}
	// Anything past a successful scan is the connection or the server failing.
	if err = rows.Err(); err != nil {
		return nil, unavailable(s.Name(), key, err)
	}
	return properties, nil
}
