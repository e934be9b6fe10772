package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"rfpquote/internal"
)

type DB struct {
	conn *sql.DB
}

// QuoteRecord is a stored quote. Payload holds the full quote (or analysis) as JSON.
type QuoteRecord struct {
	ID         string          `json:"id"`
	RFPID      *string         `json:"rfp_id,omitempty"`
	Policy     string          `json:"policy"`
	GrandTotal decimal.Decimal `json:"grand_total"`
	Payload    json.RawMessage `json:"payload"`
	CreatedAt  string          `json:"created_at"`
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS products (
  sku TEXT PRIMARY KEY,
  position INTEGER NOT NULL,
  name TEXT NOT NULL,
  category TEXT NOT NULL,
  basePricePerMeter TEXT NOT NULL,
  specsJson TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_products_position ON products(position);
CREATE INDEX IF NOT EXISTS idx_products_category ON products(category);

CREATE TABLE IF NOT EXISTS test_prices (
  name TEXT PRIMARY KEY,
  position INTEGER NOT NULL,
  price TEXT NOT NULL,
  durationDays INTEGER NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS discount_tiers (
  minQuantity TEXT PRIMARY KEY,
  position INTEGER NOT NULL,
  discountPercent TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS rfps (
  id TEXT PRIMARY KEY,
  position INTEGER NOT NULL,
  title TEXT NOT NULL,
  client TEXT NOT NULL,
  submissionDeadline TEXT NOT NULL,
  rawJson TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS quotes (
  id TEXT PRIMARY KEY,
  rfpId TEXT,
  policy TEXT NOT NULL,
  grandTotal TEXT NOT NULL,
  payloadJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_quotes_rfpId ON quotes(rfpId);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

// ReplaceReference overwrites all three reference tables in one transaction.
func (d *DB) ReplaceReference(products []internal.CatalogProduct, tests []internal.TestPriceEntry, tiers []internal.DiscountTier) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"products", "test_prices", "discount_tiers"} {
		if _, err := tx.Exec(`DELETE FROM ` + table); err != nil {
			return err
		}
	}

	for i, p := range products {
		specsJSON, err := json.Marshal(p.Specs)
		if err != nil {
			return fmt.Errorf("product %s specs: %w", p.SKU, err)
		}
		if _, err := tx.Exec(`
INSERT INTO products (sku, position, name, category, basePricePerMeter, specsJson)
VALUES (?, ?, ?, ?, ?, ?)
`, p.SKU, i, p.Name, p.Category, p.BasePricePerMeter, string(specsJSON)); err != nil {
			return err
		}
	}

	for i, t := range tests {
		if _, err := tx.Exec(`INSERT INTO test_prices (name, position, price, durationDays) VALUES (?, ?, ?, ?)`,
			t.Name, i, t.Price, t.DurationDays); err != nil {
			return err
		}
	}

	if err := insertTiers(tx, tiers); err != nil {
		return err
	}

	return tx.Commit()
}

func insertTiers(tx *sql.Tx, tiers []internal.DiscountTier) error {
	for i, t := range tiers {
		if _, err := tx.Exec(`INSERT INTO discount_tiers (minQuantity, position, discountPercent) VALUES (?, ?, ?)`,
			t.MinQuantity.String(), i, t.DiscountPercent); err != nil {
			return err
		}
	}
	return nil
}

// UpsertProduct updates a product in place or appends it at the end of the catalog.
func (d *DB) UpsertProduct(p internal.CatalogProduct) error {
	specsJSON, err := json.Marshal(p.Specs)
	if err != nil {
		return err
	}
	_, err = d.conn.Exec(`
INSERT INTO products (sku, position, name, category, basePricePerMeter, specsJson)
VALUES (?, (SELECT COALESCE(MAX(position), -1) + 1 FROM products), ?, ?, ?, ?)
ON CONFLICT(sku) DO UPDATE SET
  name=excluded.name,
  category=excluded.category,
  basePricePerMeter=excluded.basePricePerMeter,
  specsJson=excluded.specsJson,
  updatedAt=CURRENT_TIMESTAMP
`, p.SKU, p.Name, p.Category, p.BasePricePerMeter, string(specsJSON))
	return err
}

func (d *DB) DeleteProduct(sku string) (bool, error) {
	result, err := d.conn.Exec(`DELETE FROM products WHERE sku = ?`, sku)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

func (d *DB) ListProducts() ([]internal.CatalogProduct, error) {
	rows, err := d.conn.Query(`
SELECT sku, name, category, basePricePerMeter, specsJson
FROM products ORDER BY position ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []internal.CatalogProduct{}
	for rows.Next() {
		var p internal.CatalogProduct
		var specsJSON string
		if err := rows.Scan(&p.SKU, &p.Name, &p.Category, &p.BasePricePerMeter, &specsJSON); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(specsJSON), &p.Specs); err != nil {
			return nil, fmt.Errorf("product %s specs: %w", p.SKU, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (d *DB) UpsertTestPrice(t internal.TestPriceEntry) error {
	_, err := d.conn.Exec(`
INSERT INTO test_prices (name, position, price, durationDays)
VALUES (?, (SELECT COALESCE(MAX(position), -1) + 1 FROM test_prices), ?, ?)
ON CONFLICT(name) DO UPDATE SET
  price=excluded.price,
  durationDays=excluded.durationDays,
  updatedAt=CURRENT_TIMESTAMP
`, t.Name, t.Price, t.DurationDays)
	return err
}

func (d *DB) DeleteTestPrice(name string) (bool, error) {
	result, err := d.conn.Exec(`DELETE FROM test_prices WHERE name = ?`, name)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

func (d *DB) ListTestPrices() ([]internal.TestPriceEntry, error) {
	rows, err := d.conn.Query(`SELECT name, price, durationDays FROM test_prices ORDER BY position ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []internal.TestPriceEntry{}
	for rows.Next() {
		var t internal.TestPriceEntry
		if err := rows.Scan(&t.Name, &t.Price, &t.DurationDays); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (d *DB) ReplaceDiscountTiers(tiers []internal.DiscountTier) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM discount_tiers`); err != nil {
		return err
	}
	if err := insertTiers(tx, tiers); err != nil {
		return err
	}
	return tx.Commit()
}

func (d *DB) ListDiscountTiers() ([]internal.DiscountTier, error) {
	rows, err := d.conn.Query(`SELECT minQuantity, discountPercent FROM discount_tiers ORDER BY position ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []internal.DiscountTier{}
	for rows.Next() {
		var t internal.DiscountTier
		if err := rows.Scan(&t.MinQuantity, &t.DiscountPercent); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// UpsertRFPs stores RFPs keeping the given order for new records.
func (d *DB) UpsertRFPs(rfps []internal.RFP) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
INSERT INTO rfps (id, position, title, client, submissionDeadline, rawJson)
VALUES (?, (SELECT COALESCE(MAX(position), -1) + 1 FROM rfps), ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  title=excluded.title,
  client=excluded.client,
  submissionDeadline=excluded.submissionDeadline,
  rawJson=excluded.rawJson,
  updatedAt=CURRENT_TIMESTAMP
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range rfps {
		raw, err := json.Marshal(r)
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(r.ID, r.Title, r.Client, r.SubmissionDeadline, string(raw)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (d *DB) ListRFPs() ([]internal.RFP, error) {
	rows, err := d.conn.Query(`SELECT rawJson FROM rfps ORDER BY position ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []internal.RFP{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var r internal.RFP
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (d *DB) GetRFP(id string) (*internal.RFP, error) {
	var raw string
	err := d.conn.QueryRow(`SELECT rawJson FROM rfps WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var r internal.RFP
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// InsertQuote stores payload (marshalled to JSON) under id. Re-inserting an id overwrites it.
func (d *DB) InsertQuote(id string, rfpID *string, policy string, grandTotal decimal.Decimal, payload any) error {
	blob, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = d.conn.Exec(`
INSERT INTO quotes (id, rfpId, policy, grandTotal, payloadJson) VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  rfpId=excluded.rfpId,
  policy=excluded.policy,
  grandTotal=excluded.grandTotal,
  payloadJson=excluded.payloadJson,
  createdAt=CURRENT_TIMESTAMP
`, id, rfpID, policy, grandTotal, string(blob))
	return err
}

func (d *DB) GetQuote(id string) (*QuoteRecord, error) {
	var rec QuoteRecord
	var payload string
	err := d.conn.QueryRow(`SELECT id, rfpId, policy, grandTotal, payloadJson, createdAt FROM quotes WHERE id = ?`, id).
		Scan(&rec.ID, &rec.RFPID, &rec.Policy, &rec.GrandTotal, &payload, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec.Payload = json.RawMessage(payload)
	return &rec, nil
}

func (d *DB) ListQuotesByRFP(rfpID string) ([]QuoteRecord, error) {
	rows, err := d.conn.Query(`
SELECT id, rfpId, policy, grandTotal, payloadJson, createdAt
FROM quotes WHERE rfpId = ? ORDER BY createdAt DESC, id ASC`, rfpID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []QuoteRecord{}
	for rows.Next() {
		var rec QuoteRecord
		var payload string
		if err := rows.Scan(&rec.ID, &rec.RFPID, &rec.Policy, &rec.GrandTotal, &payload, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Payload = json.RawMessage(payload)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}
