package products

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-inventory/internal/audit"
	"github.com/odyssey-erp/odyssey-inventory/internal/masterdata/references"
	"github.com/odyssey-erp/odyssey-inventory/internal/masterdata/shared"
	"github.com/odyssey-erp/odyssey-inventory/internal/platform/db"
)

// ErrProductNotFound indicates a missing product row.
var ErrProductNotFound = fmt.Errorf("product %w", shared.ErrNotFound)

// TxRepository exposes the transactional operations used by Service.
type TxRepository interface {
	SKUTaken(ctx context.Context, sku string, excludeID int64) (bool, error)
	Insert(ctx context.Context, p Product) (int64, error)
	Update(ctx context.Context, id int64, changes Changes) (int64, error)
	Get(ctx context.Context, id int64) (Product, error)
	GetForUpdate(ctx context.Context, id int64) (Product, error)
	Delete(ctx context.Context, id int64) (int64, error)
	SetQuantity(ctx context.Context, id int64, quantity int64) error
	References() references.Lookup
	Audit() audit.Writer
}

// Repository persists products in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx executes the callback inside a read-committed transaction. Rows
// locked with GetForUpdate are re-read after competing writers commit.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{
			tx:    tx,
			refs:  references.NewLookup(tx),
			audit: audit.NewStore(tx),
		})
	})
}

const selectView = `SELECT p.id, p.name, p.sku, p.category_id, p.supplier_id, p.quantity, p.price, p.location, p.created_at, p.updated_at, c.name, s.name
FROM products p
LEFT JOIN categories c ON c.id = p.category_id
LEFT JOIN suppliers s ON s.id = p.supplier_id`

// List returns every product, newest first.
func (r *Repository) List(ctx context.Context) ([]ProductView, error) {
	rows, err := r.pool.Query(ctx, selectView+` ORDER BY p.created_at DESC, p.id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := []ProductView{}
	for rows.Next() {
		v, err := scanView(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, v)
	}
	return products, rows.Err()
}

func (r *Repository) Get(ctx context.Context, id int64) (ProductView, error) {
	v, err := scanView(r.pool.QueryRow(ctx, selectView+` WHERE p.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return ProductView{}, ErrProductNotFound
	}
	return v, err
}

func scanView(row pgx.Row) (ProductView, error) {
	var v ProductView
	err := row.Scan(&v.ID, &v.Name, &v.SKU, &v.CategoryID, &v.SupplierID, &v.Quantity, &v.Price, &v.Location, &v.CreatedAt, &v.UpdatedAt, &v.CategoryName, &v.SupplierName)
	return v, err
}

type txRepo struct {
	tx    pgx.Tx
	refs  references.Lookup
	audit *audit.Store
}

func (r *txRepo) References() references.Lookup { return r.refs }

func (r *txRepo) Audit() audit.Writer { return r.audit }

func (r *txRepo) SKUTaken(ctx context.Context, sku string, excludeID int64) (bool, error) {
	var taken bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE sku = $1 AND id <> $2)`, sku, excludeID).Scan(&taken)
	return taken, err
}

func (r *txRepo) Insert(ctx context.Context, p Product) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx,
		`INSERT INTO products (name, sku, category_id, supplier_id, quantity, price, location) VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		p.Name, p.SKU, p.CategoryID, p.SupplierID, p.Quantity, p.Price, p.Location).Scan(&id)
	if db.IsUniqueViolation(err) {
		return 0, fmt.Errorf("%w: sku %q already exists", shared.ErrConflict, p.SKU)
	}
	return id, err
}

func (r *txRepo) Update(ctx context.Context, id int64, c Changes) (int64, error) {
	var (
		sets []string
		args []any
	)
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, column+" = $"+strconv.Itoa(len(args)))
	}
	if c.Name != nil {
		set("name", *c.Name)
	}
	if c.SKU != nil {
		set("sku", *c.SKU)
	}
	if c.CategoryID.Set {
		set("category_id", c.CategoryID.Value)
	}
	if c.SupplierID.Set {
		set("supplier_id", c.SupplierID.Value)
	}
	if c.Quantity != nil {
		set("quantity", *c.Quantity)
	}
	if c.Price != nil {
		set("price", *c.Price)
	}
	if c.Location.Set {
		set("location", c.Location.Value)
	}
	if len(sets) == 0 {
		return 0, errors.New("products: empty update")
	}
	args = append(args, id)
	query := `UPDATE products SET ` + strings.Join(sets, ", ") + `, updated_at = NOW() WHERE id = $` + strconv.Itoa(len(args))

	tag, err := r.tx.Exec(ctx, query, args...)
	if db.IsUniqueViolation(err) {
		return 0, fmt.Errorf("%w: sku already exists", shared.ErrConflict)
	}
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const selectProduct = `SELECT id, name, sku, category_id, supplier_id, quantity, price, location, created_at, updated_at FROM products WHERE id = $1`

func (r *txRepo) Get(ctx context.Context, id int64) (Product, error) {
	return r.getProduct(ctx, selectProduct, id)
}

func (r *txRepo) GetForUpdate(ctx context.Context, id int64) (Product, error) {
	return r.getProduct(ctx, selectProduct+` FOR UPDATE`, id)
}

func (r *txRepo) getProduct(ctx context.Context, query string, id int64) (Product, error) {
	var p Product
	err := r.tx.QueryRow(ctx, query, id).Scan(&p.ID, &p.Name, &p.SKU, &p.CategoryID, &p.SupplierID, &p.Quantity, &p.Price, &p.Location, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrProductNotFound
	}
	return p, err
}

func (r *txRepo) Delete(ctx context.Context, id int64) (int64, error) {
	tag, err := r.tx.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *txRepo) SetQuantity(ctx context.Context, id int64, quantity int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE products SET quantity = $1, updated_at = NOW() WHERE id = $2`, quantity, id)
	return err
}

var _ RepositoryPort = (*Repository)(nil)
