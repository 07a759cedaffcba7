package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"supplyaudit/internal"
)

type DB struct {
	conn *sql.DB
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
  id INTEGER PRIMARY KEY,
  sku TEXT NOT NULL,
  oem_number TEXT,
  wholesaler_code TEXT,
  distributor_sku TEXT,
  depot_code TEXT,
  name TEXT NOT NULL,
  brand TEXT,
  model TEXT,
  category TEXT NOT NULL,
  color TEXT,
  yield_class INTEGER NOT NULL DEFAULT 0,
  page_yield REAL,
  family_series TEXT,
  list_price REAL,
  reference_price REAL,
  raw_cost REAL,
  active INTEGER NOT NULL DEFAULT 1,
  embedding TEXT,
  lastSeenAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_products_sku ON products(sku);
CREATE INDEX IF NOT EXISTS idx_products_family ON products(family_series);

CREATE TABLE IF NOT EXISTS jobs (
  id TEXT PRIMARY KEY,
  fileName TEXT NOT NULL,
  fileRef TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  progress INTEGER NOT NULL DEFAULT 0,
  currentStep TEXT NOT NULL DEFAULT '',
  chunkCursor INTEGER NOT NULL DEFAULT 0,
  totalItems INTEGER NOT NULL DEFAULT 0,
  artifactRef TEXT,
  error TEXT,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);

CREATE TABLE IF NOT EXISTS line_items (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  jobId TEXT NOT NULL,
  rowNo INTEGER NOT NULL,
  description TEXT NOT NULL,
  skuCandidates TEXT NOT NULL,
  qty INTEGER NOT NULL,
  unitPrice REAL NOT NULL,
  unit TEXT,
  confidence REAL NOT NULL,
  UNIQUE(jobId, rowNo),
  FOREIGN KEY(jobId) REFERENCES jobs(id)
);

CREATE TABLE IF NOT EXISTS matches (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  jobId TEXT NOT NULL,
  rowNo INTEGER NOT NULL,
  method TEXT NOT NULL,
  score REAL NOT NULL,
  productId INTEGER,
  attemptsJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(jobId, rowNo),
  FOREIGN KEY(jobId) REFERENCES jobs(id)
);

CREATE TABLE IF NOT EXISTS recommendations (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  jobId TEXT NOT NULL,
  rowNo INTEGER NOT NULL,
  type TEXT NOT NULL,
  productId INTEGER,
  qty INTEGER NOT NULL,
  totalCost REAL NOT NULL,
  savings REAL NOT NULL,
  reason TEXT NOT NULL,
  priceSource TEXT NOT NULL,
  customerPrice REAL NOT NULL,
  unitsAvoided INTEGER NOT NULL,
  co2SavedKg REAL NOT NULL,
  UNIQUE(jobId, rowNo),
  FOREIGN KEY(jobId) REFERENCES jobs(id)
);

CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  jobId TEXT NOT NULL,
  timingsJson TEXT NOT NULL,
  countsJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(jobId) REFERENCES jobs(id)
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

func (d *DB) UpsertProducts(products []internal.CatalogProduct) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
INSERT INTO products (
  id, sku, oem_number, wholesaler_code, distributor_sku, depot_code,
  name, brand, model, category, color, yield_class, page_yield, family_series,
  list_price, reference_price, raw_cost, active, lastSeenAt
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(id) DO UPDATE SET
  sku=excluded.sku,
  oem_number=excluded.oem_number,
  wholesaler_code=excluded.wholesaler_code,
  distributor_sku=excluded.distributor_sku,
  depot_code=excluded.depot_code,
  name=excluded.name,
  brand=excluded.brand,
  model=excluded.model,
  category=excluded.category,
  color=excluded.color,
  yield_class=excluded.yield_class,
  page_yield=excluded.page_yield,
  family_series=excluded.family_series,
  list_price=excluded.list_price,
  reference_price=excluded.reference_price,
  raw_cost=excluded.raw_cost,
  active=excluded.active,
  lastSeenAt=CURRENT_TIMESTAMP
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range products {
		if _, err := stmt.Exec(
			p.ID, p.SKU, p.OEMNumber, p.WholesalerCode, p.DistributorSKU, p.DepotCode,
			p.Name, p.Brand, p.Model, string(p.Category), p.Color, int(p.YieldClass), p.PageYield, p.FamilySeries,
			p.ListPrice, p.ReferencePrice, p.RawCost, boolToInt(p.Active),
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (d *DB) ListProducts() ([]internal.CatalogProduct, error) {
	rows, err := d.conn.Query(`
SELECT id, sku, oem_number, wholesaler_code, distributor_sku, depot_code,
       name, brand, model, category, color, yield_class, page_yield, family_series,
       list_price, reference_price, raw_cost, active
FROM products ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.CatalogProduct
	for rows.Next() {
		var p internal.CatalogProduct
		var category string
		var yieldClass, active int
		if err := rows.Scan(
			&p.ID, &p.SKU, &p.OEMNumber, &p.WholesalerCode, &p.DistributorSKU, &p.DepotCode,
			&p.Name, &p.Brand, &p.Model, &category, &p.Color, &yieldClass, &p.PageYield, &p.FamilySeries,
			&p.ListPrice, &p.ReferencePrice, &p.RawCost, &active,
		); err != nil {
			return nil, err
		}
		p.Category = internal.ProductCategory(category)
		p.YieldClass = internal.YieldClass(yieldClass)
		p.Active = active != 0
		out = append(out, p)
	}

	return out, rows.Err()
}

func (d *DB) SetProductEmbedding(productID int, vector []float32) error {
	vectorJSON, _ := json.Marshal(vector)
	_, err := d.conn.Exec(`UPDATE products SET embedding = ? WHERE id = ?`, string(vectorJSON), productID)
	return err
}

func (d *DB) LoadEmbeddings() (map[int][]float32, error) {
	rows, err := d.conn.Query(`SELECT id, embedding FROM products WHERE embedding IS NOT NULL`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int][]float32)
	for rows.Next() {
		var id int
		var vectorJSON string
		if err := rows.Scan(&id, &vectorJSON); err != nil {
			return nil, err
		}
		var vector []float32
		if err := json.Unmarshal([]byte(vectorJSON), &vector); err != nil {
			continue
		}
		out[id] = vector
	}
	return out, rows.Err()
}

func (d *DB) CreateJob(job internal.ProcessingJob) error {
	_, err := d.conn.Exec(`
INSERT INTO jobs (id, fileName, fileRef, status) VALUES (?, ?, ?, ?)
`, job.ID, job.FileName, job.FileRef, string(internal.JobPending))
	return err
}

func (d *DB) GetJob(id string) (*internal.ProcessingJob, error) {
	var job internal.ProcessingJob
	var status string
	err := d.conn.QueryRow(`
SELECT id, fileName, fileRef, status, progress, currentStep, chunkCursor, totalItems, artifactRef, error, createdAt, updatedAt
FROM jobs WHERE id = ?
`, id).Scan(
		&job.ID, &job.FileName, &job.FileRef, &status, &job.Progress, &job.CurrentStep,
		&job.ChunkCursor, &job.TotalItems, &job.ArtifactRef, &job.Error, &job.CreatedAt, &job.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	job.Status = internal.JobStatus(status)
	return &job, nil
}

func (d *DB) ListJobsByStatus(status internal.JobStatus, limit int) ([]internal.ProcessingJob, error) {
	rows, err := d.conn.Query(`
SELECT id, fileName, fileRef, status, progress, currentStep, chunkCursor, totalItems, artifactRef, error, createdAt, updatedAt
FROM jobs WHERE status = ? ORDER BY createdAt ASC LIMIT ?
`, string(status), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.ProcessingJob
	for rows.Next() {
		var job internal.ProcessingJob
		var s string
		if err := rows.Scan(
			&job.ID, &job.FileName, &job.FileRef, &s, &job.Progress, &job.CurrentStep,
			&job.ChunkCursor, &job.TotalItems, &job.ArtifactRef, &job.Error, &job.CreatedAt, &job.UpdatedAt,
		); err != nil {
			return nil, err
		}
		job.Status = internal.JobStatus(s)
		out = append(out, job)
	}
	return out, rows.Err()
}

func (d *DB) UpdateJobStatus(id string, status internal.JobStatus, errMsg *string) error {
	_, err := d.conn.Exec(`
UPDATE jobs SET status = ?, error = ?, updatedAt = CURRENT_TIMESTAMP WHERE id = ?
`, string(status), errMsg, id)
	return err
}

// UpdateJobProgress never moves progress backwards.
func (d *DB) UpdateJobProgress(id string, progress int, step string, chunkCursor int) error {
	_, err := d.conn.Exec(`
UPDATE jobs SET
  progress = CASE WHEN ? > progress THEN ? ELSE progress END,
  currentStep = ?,
  chunkCursor = ?,
  updatedAt = CURRENT_TIMESTAMP
WHERE id = ?
`, progress, progress, step, chunkCursor, id)
	return err
}

func (d *DB) SetJobTotalItems(id string, totalItems int) error {
	_, err := d.conn.Exec(`UPDATE jobs SET totalItems = ?, updatedAt = CURRENT_TIMESTAMP WHERE id = ?`, totalItems, id)
	return err
}

func (d *DB) CompleteJob(id, artifactRef string) error {
	_, err := d.conn.Exec(`
UPDATE jobs SET status = ?, progress = 100, currentStep = 'done', artifactRef = ?, updatedAt = CURRENT_TIMESTAMP
WHERE id = ?
`, string(internal.JobCompleted), artifactRef, id)
	return err
}

// ClearJobResults drops any partial output so a fresh start of the same
// job does not trip the unique row constraints.
func (d *DB) ClearJobResults(jobID string) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"recommendations", "matches", "line_items"} {
		if _, err := tx.Exec(fmt.Sprintf(`DELETE FROM %s WHERE jobId = ?`, table), jobID); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (d *DB) InsertLineItems(jobID string, items []internal.RawLineItem) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
INSERT INTO line_items (jobId, rowNo, description, skuCandidates, qty, unitPrice, unit, confidence)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, item := range items {
		skusJSON, _ := json.Marshal(item.SKUCandidates)
		if _, err := stmt.Exec(
			jobID, item.RowNumber, item.Description, string(skusJSON),
			item.Quantity, item.UnitPrice, item.Unit, item.Confidence,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (d *DB) ListLineItems(jobID string) ([]internal.RawLineItem, error) {
	rows, err := d.conn.Query(`
SELECT rowNo, description, skuCandidates, qty, unitPrice, unit, confidence
FROM line_items WHERE jobId = ? ORDER BY rowNo ASC
`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.RawLineItem
	for rows.Next() {
		var item internal.RawLineItem
		var skusJSON string
		if err := rows.Scan(
			&item.RowNumber, &item.Description, &skusJSON,
			&item.Quantity, &item.UnitPrice, &item.Unit, &item.Confidence,
		); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(skusJSON), &item.SKUCandidates)
		out = append(out, item)
	}
	return out, rows.Err()
}

// InsertMatches writes a batch in one transaction. If the batch fails it
// falls back to row-at-a-time inserts so one bad row cannot sink the
// whole chunk; the per-row failures come back joined.
func (d *DB) InsertMatches(jobID string, results []internal.MatchResult) error {
	if err := d.insertMatchBatch(jobID, results); err == nil {
		return nil
	}

	var failures []error
	for _, result := range results {
		if err := d.insertMatchRow(d.conn, jobID, result); err != nil {
			failures = append(failures, fmt.Errorf("row %d: %w", result.Item.RowNumber, err))
		}
	}
	return errors.Join(failures...)
}

func (d *DB) insertMatchBatch(jobID string, results []internal.MatchResult) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, result := range results {
		if err := d.insertMatchRow(tx, jobID, result); err != nil {
			return err
		}
	}

	return tx.Commit()
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func (d *DB) insertMatchRow(e execer, jobID string, result internal.MatchResult) error {
	attemptsJSON, _ := json.Marshal(result.Attempts)
	var productID *int
	if result.Product != nil {
		productID = &result.Product.ID
	}

	_, err := e.Exec(`
INSERT INTO matches (jobId, rowNo, method, score, productId, attemptsJson)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(jobId, rowNo) DO UPDATE SET
  method=excluded.method,
  score=excluded.score,
  productId=excluded.productId,
  attemptsJson=excluded.attemptsJson
`, jobID, result.Item.RowNumber, string(result.Method), result.Score, productID, string(attemptsJSON))
	return err
}

// ListMatches reconstructs results from the line_items/matches/products
// join, in input order.
func (d *DB) ListMatches(jobID string) ([]internal.MatchResult, error) {
	rows, err := d.conn.Query(`
SELECT
  li.rowNo, li.description, li.skuCandidates, li.qty, li.unitPrice, li.unit, li.confidence,
  m.method, m.score, m.attemptsJson, m.productId
FROM line_items li
JOIN matches m ON m.jobId = li.jobId AND m.rowNo = li.rowNo
WHERE li.jobId = ?
ORDER BY li.rowNo ASC
`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products, err := d.productsByID()
	if err != nil {
		return nil, err
	}

	var out []internal.MatchResult
	for rows.Next() {
		var result internal.MatchResult
		var skusJSON, method, attemptsJSON string
		var productID *int
		if err := rows.Scan(
			&result.Item.RowNumber, &result.Item.Description, &skusJSON,
			&result.Item.Quantity, &result.Item.UnitPrice, &result.Item.Unit, &result.Item.Confidence,
			&method, &result.Score, &attemptsJSON, &productID,
		); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(skusJSON), &result.Item.SKUCandidates)
		_ = json.Unmarshal([]byte(attemptsJSON), &result.Attempts)
		result.Method = internal.MatchMethod(method)
		if productID != nil {
			if p, ok := products[*productID]; ok {
				result.Product = &p
			}
		}
		out = append(out, result)
	}

	return out, rows.Err()
}

func (d *DB) productsByID() (map[int]internal.CatalogProduct, error) {
	list, err := d.ListProducts()
	if err != nil {
		return nil, err
	}
	out := make(map[int]internal.CatalogProduct, len(list))
	for _, p := range list {
		out[p.ID] = p
	}
	return out, nil
}

func (d *DB) InsertRecommendations(jobID string, recs map[int]*internal.Recommendation) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
INSERT INTO recommendations (jobId, rowNo, type, productId, qty, totalCost, savings, reason, priceSource, customerPrice, unitsAvoided, co2SavedKg)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(jobId, rowNo) DO UPDATE SET
  type=excluded.type,
  productId=excluded.productId,
  qty=excluded.qty,
  totalCost=excluded.totalCost,
  savings=excluded.savings,
  reason=excluded.reason,
  priceSource=excluded.priceSource,
  customerPrice=excluded.customerPrice,
  unitsAvoided=excluded.unitsAvoided,
  co2SavedKg=excluded.co2SavedKg
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for rowNo, rec := range recs {
		if rec == nil {
			continue
		}
		var productID *int
		if rec.Product != nil {
			productID = &rec.Product.ID
		}
		if _, err := stmt.Exec(
			jobID, rowNo, string(rec.Type), productID, rec.Quantity, rec.TotalCost,
			rec.Savings, rec.Reason, string(rec.PriceSource), rec.CustomerPrice,
			rec.UnitsAvoided, rec.CO2SavedKg,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (d *DB) ListRecommendations(jobID string) (map[int]*internal.Recommendation, error) {
	rows, err := d.conn.Query(`
SELECT rowNo, type, productId, qty, totalCost, savings, reason, priceSource, customerPrice, unitsAvoided, co2SavedKg
FROM recommendations WHERE jobId = ?
`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products, err := d.productsByID()
	if err != nil {
		return nil, err
	}

	out := make(map[int]*internal.Recommendation)
	for rows.Next() {
		var rowNo int
		var recType, priceSource string
		var productID *int
		rec := &internal.Recommendation{}
		if err := rows.Scan(
			&rowNo, &recType, &productID, &rec.Quantity, &rec.TotalCost,
			&rec.Savings, &rec.Reason, &priceSource, &rec.CustomerPrice,
			&rec.UnitsAvoided, &rec.CO2SavedKg,
		); err != nil {
			return nil, err
		}
		rec.Type = internal.RecommendationType(recType)
		rec.PriceSource = internal.PriceSource(priceSource)
		if productID != nil {
			if p, ok := products[*productID]; ok {
				rec.Product = &p
			}
		}
		out[rowNo] = rec
	}
	return out, rows.Err()
}

func (d *DB) InsertRun(jobID string, timings map[string]float64, counts map[string]int) error {
	timingsJSON, _ := json.Marshal(timings)
	countsJSON, _ := json.Marshal(counts)
	_, err := d.conn.Exec(`INSERT INTO runs (jobId, timingsJson, countsJson) VALUES (?, ?, ?)`, jobID, string(timingsJSON), string(countsJSON))
	return err
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

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
