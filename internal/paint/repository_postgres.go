package paint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PostgresRepository stores products in the paint_products table. It is an
// alternative to the JSON file for deployments that already run Postgres.
type PostgresRepository struct {
	db  *sql.DB
	now func() time.Time
}

var _ Repository = (*PostgresRepository)(nil)

const productColumns = `id, brand, paint, interior, exterior, finishes, primer, primer_note, residential_price, commercial_price, coverage, bitrix_id`

const (
	createTableQuery = `
		CREATE TABLE IF NOT EXISTS paint_products (
			id BIGINT PRIMARY KEY,
			brand TEXT NOT NULL DEFAULT '',
			paint TEXT NOT NULL DEFAULT '',
			interior BOOLEAN NOT NULL DEFAULT FALSE,
			exterior BOOLEAN NOT NULL DEFAULT FALSE,
			finishes TEXT NOT NULL DEFAULT '',
			primer BOOLEAN NOT NULL DEFAULT FALSE,
			primer_note TEXT NOT NULL DEFAULT '',
			residential_price DOUBLE PRECISION NOT NULL DEFAULT 0,
			commercial_price DOUBLE PRECISION NOT NULL DEFAULT 0,
			coverage DOUBLE PRECISION NOT NULL DEFAULT 0,
			bitrix_id BIGINT
		)
	`
	countProductsQuery = `SELECT COUNT(*) FROM paint_products`
	listProductsQuery  = `SELECT ` + productColumns + ` FROM paint_products ORDER BY id`
	getProductQuery    = `SELECT ` + productColumns + ` FROM paint_products WHERE id = $1`
	lockProductQuery   = `SELECT ` + productColumns + ` FROM paint_products WHERE id = $1 FOR UPDATE`
	// the id is time based but never lower than max(id)+1
	insertProductQuery = `
		INSERT INTO paint_products (` + productColumns + `)
		VALUES (GREATEST($1, (SELECT COALESCE(MAX(id), 0) + 1 FROM paint_products)), $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`
	insertSeedQuery = `
		INSERT INTO paint_products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	updateProductQuery = `
		UPDATE paint_products
		SET brand = $1,
			paint = $2,
			interior = $3,
			exterior = $4,
			finishes = $5,
			primer = $6,
			primer_note = $7,
			residential_price = $8,
			commercial_price = $9,
			coverage = $10,
			bitrix_id = $11
		WHERE id = $12
	`
	deleteProductQuery     = `DELETE FROM paint_products WHERE id = $1 RETURNING ` + productColumns
	deleteAllProductsQuery = `DELETE FROM paint_products`
)

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db, now: time.Now}
}

// EnsureSchema creates the table when missing and seeds it when empty.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createTableQuery); err != nil {
		return fmt.Errorf("create paint_products: %w", err)
	}
	var count int
	if err := r.db.QueryRowContext(ctx, countProductsQuery).Scan(&count); err != nil {
		return fmt.Errorf("count paint_products: %w", err)
	}
	if count > 0 {
		return nil
	}
	return r.Reset(ctx, SeedCatalog())
}

func (r *PostgresRepository) List(ctx context.Context) ([]Product, error) {
	rows, err := r.db.QueryContext(ctx, listProductsQuery)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	out := make([]Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id int64) (Product, error) {
	p, err := scanProduct(r.db.QueryRowContext(ctx, getProductQuery, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	if err != nil {
		return Product{}, fmt.Errorf("get product %d: %w", id, err)
	}
	return p, nil
}

func (r *PostgresRepository) Create(ctx context.Context, p Product) (Product, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, insertProductQuery, productArgs(r.now().UnixMilli(), p)...).Scan(&id)
	if err != nil {
		return Product{}, fmt.Errorf("insert product: %w", err)
	}
	p.ID = id
	return p, nil
}

func (r *PostgresRepository) Update(ctx context.Context, id int64, patch Patch) (Product, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Product{}, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	current, err := scanProduct(tx.QueryRowContext(ctx, lockProductQuery, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	if err != nil {
		return Product{}, fmt.Errorf("load product %d: %w", id, err)
	}

	updated := patch.Apply(current)
	_, err = tx.ExecContext(ctx, updateProductQuery,
		updated.Brand,
		updated.Paint,
		updated.Interior,
		updated.Exterior,
		updated.Finishes,
		updated.Primer,
		updated.PrimerNote,
		updated.ResidentialPrice,
		updated.CommercialPrice,
		updated.Coverage,
		nullInt(updated.BitrixID),
		id,
	)
	if err != nil {
		return Product{}, fmt.Errorf("update product %d: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return Product{}, err
	}
	return updated, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) (Product, error) {
	p, err := scanProduct(r.db.QueryRowContext(ctx, deleteProductQuery, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	if err != nil {
		return Product{}, fmt.Errorf("delete product %d: %w", id, err)
	}
	return p, nil
}

// Reset deletes all products and inserts the provided list in a single transaction.
func (r *PostgresRepository) Reset(ctx context.Context, products []Product) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, deleteAllProductsQuery); err != nil {
		return fmt.Errorf("clear products: %w", err)
	}
	for _, p := range products {
		if _, err := tx.ExecContext(ctx, insertSeedQuery, productArgs(p.ID, p)...); err != nil {
			return fmt.Errorf("insert product %d: %w", p.ID, err)
		}
	}
	return tx.Commit()
}

func productArgs(id int64, p Product) []any {
	return []any{
		id,
		p.Brand,
		p.Paint,
		p.Interior,
		p.Exterior,
		p.Finishes,
		p.Primer,
		p.PrimerNote,
		p.ResidentialPrice,
		p.CommercialPrice,
		p.Coverage,
		nullInt(p.BitrixID),
	}
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(scanner rowScanner) (Product, error) {
	p := Product{}
	var bitrixID sql.NullInt64
	if err := scanner.Scan(
		&p.ID,
		&p.Brand,
		&p.Paint,
		&p.Interior,
		&p.Exterior,
		&p.Finishes,
		&p.Primer,
		&p.PrimerNote,
		&p.ResidentialPrice,
		&p.CommercialPrice,
		&p.Coverage,
		&bitrixID,
	); err != nil {
		return Product{}, err
	}
	if bitrixID.Valid {
		id := bitrixID.Int64
		p.BitrixID = &id
	}
	return p, nil
}
