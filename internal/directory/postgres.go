package directory

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"courier-dispatch/internal/geo"
)

const schema = `
CREATE TABLE IF NOT EXISTS restaurants (
    id         BIGSERIAL PRIMARY KEY,
    name_key   TEXT NOT NULL,
    name       TEXT NOT NULL,
    item       TEXT NOT NULL,
    price_eur  DOUBLE PRECISION NOT NULL DEFAULT 0,
    lat        DOUBLE PRECISION NOT NULL,
    lon        DOUBLE PRECISION NOT NULL
);
CREATE INDEX IF NOT EXISTS restaurants_name_key_idx ON restaurants (name_key);
`

// Postgres serves the directory from the restaurants table the importer
// fills.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres { return &Postgres{pool: pool} }

func (p *Postgres) Lookup(ctx context.Context, name string) (geo.Point, bool, error) {
	var pt geo.Point
	err := p.pool.QueryRow(ctx,
		`SELECT lat, lon FROM restaurants WHERE name_key = $1 ORDER BY id LIMIT 1`,
		NormalizeName(name),
	).Scan(&pt.Lat, &pt.Lon)
	if err == pgx.ErrNoRows {
		return geo.Point{}, false, nil
	}
	if err != nil {
		return geo.Point{}, false, fmt.Errorf("lookup restaurant: %w", err)
	}
	return pt, true, nil
}

func (p *Postgres) Restaurants(ctx context.Context) ([]Restaurant, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT DISTINCT ON (name_key) name, lat, lon FROM restaurants ORDER BY name_key, id`)
	if err != nil {
		return nil, fmt.Errorf("list restaurants: %w", err)
	}
	defer rows.Close()

	var out []Restaurant
	for rows.Next() {
		var r Restaurant
		if err := rows.Scan(&r.Name, &r.Pos.Lat, &r.Pos.Lon); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *Postgres) Menu(ctx context.Context, name string) ([]string, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT item FROM restaurants WHERE name_key = $1 ORDER BY id`,
		NormalizeName(name))
	if err != nil {
		return nil, fmt.Errorf("load menu: %w", err)
	}
	defer rows.Close()

	var items []string
	for rows.Next() {
		var item string
		if err := rows.Scan(&item); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Import truncate-and-loads the menu CSV rows into Postgres. Idempotent:
// rerunning replaces the whole directory.
func Import(ctx context.Context, pool *pgxpool.Pool, csvRows []Row) (int64, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return 0, fmt.Errorf("ensure schema: %w", err)
	}
	if _, err := pool.Exec(ctx, `TRUNCATE restaurants`); err != nil {
		return 0, fmt.Errorf("truncate restaurants: %w", err)
	}

	src := make([][]any, 0, len(csvRows))
	for _, r := range csvRows {
		src = append(src, []any{NormalizeName(r.Restaurant), r.Restaurant, r.Item, r.PriceEUR, r.Lat, r.Lon})
	}
	n, err := pool.CopyFrom(ctx,
		pgx.Identifier{"restaurants"},
		[]string{"name_key", "name", "item", "price_eur", "lat", "lon"},
		pgx.CopyFromRows(src),
	)
	if err != nil {
		return 0, fmt.Errorf("copy restaurants: %w", err)
	}
	return n, nil
}
