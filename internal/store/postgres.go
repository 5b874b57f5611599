package store

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sparehub/harvester/internal/db"
	"github.com/sparehub/harvester/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool. Used by tests with pgxmock.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS suppliers (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name       TEXT NOT NULL UNIQUE,
	website    TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS parts (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	reference   TEXT NOT NULL UNIQUE,
	name        TEXT NOT NULL,
	description TEXT,
	category    TEXT,
	image_url   TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS availability (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	part_id      TEXT NOT NULL REFERENCES parts(id) ON DELETE CASCADE,
	supplier_id  TEXT NOT NULL REFERENCES suppliers(id),
	price        DOUBLE PRECISION,
	in_stock     BOOLEAN NOT NULL DEFAULT false,
	url          TEXT,
	last_checked TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE(part_id, supplier_id)
);

CREATE TABLE IF NOT EXISTS api_keys (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	key        TEXT NOT NULL UNIQUE,
	name       TEXT NOT NULL,
	email      TEXT,
	active     BOOLEAN NOT NULL DEFAULT true,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_used  TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_parts_reference ON parts(reference);
CREATE INDEX IF NOT EXISTS idx_parts_category ON parts(category);
CREATE INDEX IF NOT EXISTS idx_availability_part ON availability(part_id);
CREATE INDEX IF NOT EXISTS idx_api_keys_key ON api_keys(key);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) GetSupplierByName(ctx context.Context, name string) (*model.Supplier, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, website, created_at FROM suppliers WHERE name = $1`, name)

	var sup model.Supplier
	err := row.Scan(&sup.ID, &sup.Name, &sup.Website, &sup.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get supplier %s", name)
	}
	return &sup, nil
}

func (s *PostgresStore) CreateSupplier(ctx context.Context, name, website string) (*model.Supplier, error) {
	sup := &model.Supplier{
		ID:        uuid.New().String(),
		Name:      name,
		Website:   website,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO suppliers (id, name, website, created_at) VALUES ($1, $2, $3, $4)`,
		sup.ID, sup.Name, sup.Website, sup.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert supplier %s", name)
	}
	return sup, nil
}

func (s *PostgresStore) ListSuppliers(ctx context.Context) ([]model.Supplier, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, website, created_at FROM suppliers ORDER BY name`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list suppliers")
	}
	defer rows.Close()

	var out []model.Supplier
	for rows.Next() {
		var sup model.Supplier
		if err := rows.Scan(&sup.ID, &sup.Name, &sup.Website, &sup.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan supplier")
		}
		out = append(out, sup)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list suppliers iterate")
}

func (s *PostgresStore) GetPartByReference(ctx context.Context, reference string) (*model.Part, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, reference, name, description, category, image_url, created_at, updated_at
		 FROM parts WHERE reference = $1`, reference)
	p, err := scanPgPart(row)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get part %s", reference)
	}
	return p, nil
}

func (s *PostgresStore) ListParts(ctx context.Context, filter PartFilter) ([]model.Part, error) {
	query := `SELECT id, reference, name, description, category, image_url, created_at, updated_at
	          FROM parts WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if filter.Query != "" {
		like := "%" + filter.Query + "%"
		p1, p2 := arg(like), arg(like)
		query += ` AND (reference ILIKE ` + p1 + ` OR name ILIKE ` + p2 + `)`
	}
	if filter.Category != "" {
		query += ` AND category = ` + arg(filter.Category)
	}
	query += ` ORDER BY reference`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ` + arg(limit)
	if filter.Offset > 0 {
		query += ` OFFSET ` + arg(filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list parts")
	}
	defer rows.Close()

	var parts []model.Part
	for rows.Next() {
		var p model.Part
		var desc, cat, img *string
		if err := rows.Scan(&p.ID, &p.Reference, &p.Name, &desc, &cat, &img, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan part")
		}
		p.Description, p.Category, p.ImageURL = deref(desc), deref(cat), deref(img)
		parts = append(parts, p)
	}
	return parts, eris.Wrap(rows.Err(), "postgres: list parts iterate")
}

func (s *PostgresStore) DeletePart(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM parts WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete part %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: part %s not found", id)
	}
	return nil
}

func (s *PostgresStore) ListAvailability(ctx context.Context, partID string) ([]model.Availability, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT a.id, a.part_id, a.supplier_id, s.name, a.price, a.in_stock, a.url, a.last_checked
		 FROM availability a JOIN suppliers s ON s.id = a.supplier_id
		 WHERE a.part_id = $1 ORDER BY s.name`, partID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list availability for %s", partID)
	}
	defer rows.Close()

	var out []model.Availability
	for rows.Next() {
		var a model.Availability
		var url *string
		if err := rows.Scan(&a.ID, &a.PartID, &a.SupplierID, &a.SupplierName, &a.Price, &a.InStock, &url, &a.LastChecked); err != nil {
			return nil, eris.Wrap(err, "postgres: scan availability")
		}
		a.URL = deref(url)
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list availability iterate")
}

func (s *PostgresStore) CreateAPIKey(ctx context.Context, name, email string) (*model.APIKey, error) {
	k := &model.APIKey{
		ID:        uuid.New().String(),
		Key:       newAPIKeyValue(),
		Name:      name,
		Email:     email,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_keys (id, key, name, email, active, created_at) VALUES ($1, $2, $3, $4, true, $5)`,
		k.ID, k.Key, k.Name, k.Email, k.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert api key %s", name)
	}
	return k, nil
}

func (s *PostgresStore) GetAPIKey(ctx context.Context, key string) (*model.APIKey, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, key, name, email, active, created_at, last_used FROM api_keys WHERE key = $1`, key)

	var k model.APIKey
	var email *string
	err := row.Scan(&k.ID, &k.Key, &k.Name, &email, &k.Active, &k.CreatedAt, &k.LastUsed)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get api key")
	}
	k.Email = deref(email)
	return &k, nil
}

func (s *PostgresStore) TouchAPIKey(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used = $1 WHERE id = $2`, time.Now().UTC(), id)
	return eris.Wrapf(err, "postgres: touch api key %s", id)
}

// Begin opens an ingestion batch backed by a Postgres transaction.
func (s *PostgresStore) Begin(ctx context.Context) (Batch, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin batch")
	}
	return &pgBatch{tx: tx}, nil
}

type pgBatch struct {
	tx   pgx.Tx
	done bool
}

func (b *pgBatch) GetPartByReference(ctx context.Context, reference string) (*model.Part, error) {
	row := b.tx.QueryRow(ctx,
		`SELECT id, reference, name, description, category, image_url, created_at, updated_at
		 FROM parts WHERE reference = $1`, reference)
	p, err := scanPgPart(row)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: batch get part %s", reference)
	}
	return p, nil
}

func (b *pgBatch) InsertPart(ctx context.Context, p *model.Part) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	_, err := b.tx.Exec(ctx,
		`INSERT INTO parts (id, reference, name, description, category, image_url, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.Reference, p.Name, nullIfEmpty(p.Description), nullIfEmpty(p.Category),
		nullIfEmpty(p.ImageURL), p.CreatedAt, p.UpdatedAt,
	)
	return eris.Wrapf(err, "postgres: batch insert part %s", p.Reference)
}

func (b *pgBatch) UpdatePart(ctx context.Context, p *model.Part) error {
	_, err := b.tx.Exec(ctx,
		`UPDATE parts SET name = $1, description = $2, category = $3, image_url = $4, updated_at = $5
		 WHERE id = $6`,
		p.Name, nullIfEmpty(p.Description), nullIfEmpty(p.Category), nullIfEmpty(p.ImageURL),
		p.UpdatedAt, p.ID,
	)
	return eris.Wrapf(err, "postgres: batch update part %s", p.Reference)
}

func (b *pgBatch) GetAvailability(ctx context.Context, partID, supplierID string) (*model.Availability, error) {
	row := b.tx.QueryRow(ctx,
		`SELECT id, part_id, supplier_id, price, in_stock, url, last_checked
		 FROM availability WHERE part_id = $1 AND supplier_id = $2`, partID, supplierID)

	var a model.Availability
	var url *string
	err := row.Scan(&a.ID, &a.PartID, &a.SupplierID, &a.Price, &a.InStock, &url, &a.LastChecked)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: batch get availability")
	}
	a.URL = deref(url)
	return &a, nil
}

func (b *pgBatch) InsertAvailability(ctx context.Context, a *model.Availability) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	_, err := b.tx.Exec(ctx,
		`INSERT INTO availability (id, part_id, supplier_id, price, in_stock, url, last_checked)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.PartID, a.SupplierID, a.Price, a.InStock, nullIfEmpty(a.URL), a.LastChecked,
	)
	return eris.Wrap(err, "postgres: batch insert availability")
}

func (b *pgBatch) UpdateAvailability(ctx context.Context, a *model.Availability) error {
	_, err := b.tx.Exec(ctx,
		`UPDATE availability SET price = $1, in_stock = $2, url = $3, last_checked = $4 WHERE id = $5`,
		a.Price, a.InStock, nullIfEmpty(a.URL), a.LastChecked, a.ID,
	)
	return eris.Wrap(err, "postgres: batch update availability")
}

func (b *pgBatch) Commit(ctx context.Context) error {
	b.done = true
	return eris.Wrap(b.tx.Commit(ctx), "postgres: batch commit")
}

func (b *pgBatch) Rollback(ctx context.Context) error {
	if b.done {
		return nil
	}
	b.done = true
	if err := b.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return eris.Wrap(err, "postgres: batch rollback")
	}
	return nil
}

// scanPgPart scans a part row, returning (nil, nil) when no row matched.
func scanPgPart(row pgx.Row) (*model.Part, error) {
	var p model.Part
	var desc, cat, img *string
	err := row.Scan(&p.ID, &p.Reference, &p.Name, &desc, &cat, &img, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.Description, p.Category, p.ImageURL = deref(desc), deref(cat), deref(img)
	return &p, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

