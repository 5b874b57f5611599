package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sparehub/harvester/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS suppliers (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL UNIQUE,
	website    TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS parts (
	id          TEXT PRIMARY KEY,
	reference   TEXT NOT NULL UNIQUE,
	name        TEXT NOT NULL,
	description TEXT,
	category    TEXT,
	image_url   TEXT,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS availability (
	id           TEXT PRIMARY KEY,
	part_id      TEXT NOT NULL REFERENCES parts(id) ON DELETE CASCADE,
	supplier_id  TEXT NOT NULL REFERENCES suppliers(id),
	price        REAL,
	in_stock     INTEGER NOT NULL DEFAULT 0,
	url          TEXT,
	last_checked DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE(part_id, supplier_id)
);

CREATE TABLE IF NOT EXISTS api_keys (
	id         TEXT PRIMARY KEY,
	key        TEXT NOT NULL UNIQUE,
	name       TEXT NOT NULL,
	email      TEXT,
	active     INTEGER NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	last_used  DATETIME
);

CREATE INDEX IF NOT EXISTS idx_parts_reference ON parts(reference);
CREATE INDEX IF NOT EXISTS idx_parts_category ON parts(category);
CREATE INDEX IF NOT EXISTS idx_availability_part ON availability(part_id);
CREATE INDEX IF NOT EXISTS idx_api_keys_key ON api_keys(key);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetSupplierByName(ctx context.Context, name string) (*model.Supplier, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, website, created_at FROM suppliers WHERE name = ?`, name)

	var sup model.Supplier
	err := row.Scan(&sup.ID, &sup.Name, &sup.Website, &sup.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get supplier %s", name)
	}
	return &sup, nil
}

func (s *SQLiteStore) CreateSupplier(ctx context.Context, name, website string) (*model.Supplier, error) {
	sup := &model.Supplier{
		ID:        uuid.New().String(),
		Name:      name,
		Website:   website,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO suppliers (id, name, website, created_at) VALUES (?, ?, ?, ?)`,
		sup.ID, sup.Name, sup.Website, sup.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert supplier %s", name)
	}
	return sup, nil
}

func (s *SQLiteStore) ListSuppliers(ctx context.Context) ([]model.Supplier, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, website, created_at FROM suppliers ORDER BY name`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list suppliers")
	}
	defer rows.Close()

	var out []model.Supplier
	for rows.Next() {
		var sup model.Supplier
		if err := rows.Scan(&sup.ID, &sup.Name, &sup.Website, &sup.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan supplier")
		}
		out = append(out, sup)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list suppliers iterate")
}

func (s *SQLiteStore) GetPartByReference(ctx context.Context, reference string) (*model.Part, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, reference, name, description, category, image_url, created_at, updated_at
		 FROM parts WHERE reference = ?`, reference)
	p, err := scanPart(row)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get part %s", reference)
	}
	return p, nil
}

func (s *SQLiteStore) ListParts(ctx context.Context, filter PartFilter) ([]model.Part, error) {
	query := `SELECT id, reference, name, description, category, image_url, created_at, updated_at
	          FROM parts WHERE 1=1`
	var args []any

	if filter.Query != "" {
		query += ` AND (reference LIKE ? OR name LIKE ?)`
		like := "%" + filter.Query + "%"
		args = append(args, like, like)
	}
	if filter.Category != "" {
		query += ` AND category = ?`
		args = append(args, filter.Category)
	}
	query += ` ORDER BY reference`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list parts")
	}
	defer rows.Close()

	var parts []model.Part
	for rows.Next() {
		var p model.Part
		var desc, cat, img sql.NullString
		if err := rows.Scan(&p.ID, &p.Reference, &p.Name, &desc, &cat, &img, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan part")
		}
		p.Description, p.Category, p.ImageURL = desc.String, cat.String, img.String
		parts = append(parts, p)
	}
	return parts, eris.Wrap(rows.Err(), "sqlite: list parts iterate")
}

func (s *SQLiteStore) DeletePart(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM parts WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete part %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: delete part rows affected")
	}
	if n == 0 {
		return eris.Errorf("sqlite: part %s not found", id)
	}
	return nil
}

func (s *SQLiteStore) ListAvailability(ctx context.Context, partID string) ([]model.Availability, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT a.id, a.part_id, a.supplier_id, s.name, a.price, a.in_stock, a.url, a.last_checked
		 FROM availability a JOIN suppliers s ON s.id = a.supplier_id
		 WHERE a.part_id = ? ORDER BY s.name`, partID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list availability for %s", partID)
	}
	defer rows.Close()

	var out []model.Availability
	for rows.Next() {
		var a model.Availability
		var price sql.NullFloat64
		var url sql.NullString
		if err := rows.Scan(&a.ID, &a.PartID, &a.SupplierID, &a.SupplierName, &price, &a.InStock, &url, &a.LastChecked); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan availability")
		}
		if price.Valid {
			v := price.Float64
			a.Price = &v
		}
		a.URL = url.String
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list availability iterate")
}

func (s *SQLiteStore) CreateAPIKey(ctx context.Context, name, email string) (*model.APIKey, error) {
	k := &model.APIKey{
		ID:        uuid.New().String(),
		Key:       newAPIKeyValue(),
		Name:      name,
		Email:     email,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO api_keys (id, key, name, email, active, created_at) VALUES (?, ?, ?, ?, 1, ?)`,
		k.ID, k.Key, k.Name, k.Email, k.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert api key %s", name)
	}
	return k, nil
}

func (s *SQLiteStore) GetAPIKey(ctx context.Context, key string) (*model.APIKey, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, key, name, email, active, created_at, last_used FROM api_keys WHERE key = ?`, key)

	var k model.APIKey
	var email sql.NullString
	var lastUsed sql.NullTime
	err := row.Scan(&k.ID, &k.Key, &k.Name, &email, &k.Active, &k.CreatedAt, &lastUsed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get api key")
	}
	k.Email = email.String
	if lastUsed.Valid {
		t := lastUsed.Time
		k.LastUsed = &t
	}
	return &k, nil
}

func (s *SQLiteStore) TouchAPIKey(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE api_keys SET last_used = ? WHERE id = ?`, time.Now().UTC(), id)
	return eris.Wrapf(err, "sqlite: touch api key %s", id)
}

// Begin opens an ingestion batch backed by a SQLite transaction.
func (s *SQLiteStore) Begin(ctx context.Context) (Batch, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin batch")
	}
	return &sqliteBatch{tx: tx}, nil
}

type sqliteBatch struct {
	tx   *sql.Tx
	done bool
}

func (b *sqliteBatch) GetPartByReference(ctx context.Context, reference string) (*model.Part, error) {
	row := b.tx.QueryRowContext(ctx,
		`SELECT id, reference, name, description, category, image_url, created_at, updated_at
		 FROM parts WHERE reference = ?`, reference)
	p, err := scanPart(row)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: batch get part %s", reference)
	}
	return p, nil
}

func (b *sqliteBatch) InsertPart(ctx context.Context, p *model.Part) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	_, err := b.tx.ExecContext(ctx,
		`INSERT INTO parts (id, reference, name, description, category, image_url, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Reference, p.Name, nullIfEmpty(p.Description), nullIfEmpty(p.Category),
		nullIfEmpty(p.ImageURL), p.CreatedAt, p.UpdatedAt,
	)
	return eris.Wrapf(err, "sqlite: batch insert part %s", p.Reference)
}

func (b *sqliteBatch) UpdatePart(ctx context.Context, p *model.Part) error {
	_, err := b.tx.ExecContext(ctx,
		`UPDATE parts SET name = ?, description = ?, category = ?, image_url = ?, updated_at = ?
		 WHERE id = ?`,
		p.Name, nullIfEmpty(p.Description), nullIfEmpty(p.Category), nullIfEmpty(p.ImageURL),
		p.UpdatedAt, p.ID,
	)
	return eris.Wrapf(err, "sqlite: batch update part %s", p.Reference)
}

func (b *sqliteBatch) GetAvailability(ctx context.Context, partID, supplierID string) (*model.Availability, error) {
	row := b.tx.QueryRowContext(ctx,
		`SELECT id, part_id, supplier_id, price, in_stock, url, last_checked
		 FROM availability WHERE part_id = ? AND supplier_id = ?`, partID, supplierID)

	var a model.Availability
	var price sql.NullFloat64
	var url sql.NullString
	err := row.Scan(&a.ID, &a.PartID, &a.SupplierID, &price, &a.InStock, &url, &a.LastChecked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: batch get availability")
	}
	if price.Valid {
		v := price.Float64
		a.Price = &v
	}
	a.URL = url.String
	return &a, nil
}

func (b *sqliteBatch) InsertAvailability(ctx context.Context, a *model.Availability) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	_, err := b.tx.ExecContext(ctx,
		`INSERT INTO availability (id, part_id, supplier_id, price, in_stock, url, last_checked)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.PartID, a.SupplierID, nullFloat(a.Price), a.InStock, nullIfEmpty(a.URL), a.LastChecked,
	)
	return eris.Wrap(err, "sqlite: batch insert availability")
}

func (b *sqliteBatch) UpdateAvailability(ctx context.Context, a *model.Availability) error {
	_, err := b.tx.ExecContext(ctx,
		`UPDATE availability SET price = ?, in_stock = ?, url = ?, last_checked = ? WHERE id = ?`,
		nullFloat(a.Price), a.InStock, nullIfEmpty(a.URL), a.LastChecked, a.ID,
	)
	return eris.Wrap(err, "sqlite: batch update availability")
}

func (b *sqliteBatch) Commit(ctx context.Context) error {
	b.done = true
	return eris.Wrap(b.tx.Commit(), "sqlite: batch commit")
}

func (b *sqliteBatch) Rollback(ctx context.Context) error {
	if b.done {
		return nil
	}
	b.done = true
	if err := b.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return eris.Wrap(err, "sqlite: batch rollback")
	}
	return nil
}

// scanPart scans a part row, returning (nil, nil) when no row matched.
func scanPart(row *sql.Row) (*model.Part, error) {
	var p model.Part
	var desc, cat, img sql.NullString
	err := row.Scan(&p.ID, &p.Reference, &p.Name, &desc, &cat, &img, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.Description, p.Category, p.ImageURL = desc.String, cat.String, img.String
	return &p, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}
