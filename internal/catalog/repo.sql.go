package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockpile-erp/stockpile-erp/internal/shared"
)

// Repository persists items and categories.
type Repository interface {
	CreateItem(ctx context.Context, item Item) (Item, error)
	GetItem(ctx context.Context, id int64) (Item, error)
	UpdateItem(ctx context.Context, item Item) error
	SoftDeleteItem(ctx context.Context, id int64) error
	ListItems(ctx context.Context, filter ItemFilter) ([]Item, int, error)
	ListLowStock(ctx context.Context) ([]Item, error)
	CountItems(ctx context.Context) (int, error)
	CountLowStock(ctx context.Context) (int, error)
	CountOutOfStock(ctx context.Context) (int, error)
	TotalValue(ctx context.Context) (float64, error)

	CreateCategory(ctx context.Context, c Category) (Category, error)
	GetCategory(ctx context.Context, id int64) (Category, error)
	ListCategories(ctx context.Context) ([]Category, error)
	UpdateCategory(ctx context.Context, c Category) error
	SoftDeleteCategory(ctx context.Context, id int64) error
	CategoryExists(ctx context.Context, id int64) (bool, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the PostgreSQL-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const itemColumns = `id, sku, name, COALESCE(description,''), category_id, unit_price, cost, quantity, min_stock, max_stock, is_active, created_at, updated_at`

func scanItem(row pgx.Row) (Item, error) {
	var item Item
	err := row.Scan(&item.ID, &item.SKU, &item.Name, &item.Description, &item.CategoryID, &item.UnitPrice, &item.Cost, &item.Quantity, &item.MinStock, &item.MaxStock, &item.IsActive, &item.CreatedAt, &item.UpdatedAt)
	return item, err
}

func (r *repository) CreateItem(ctx context.Context, item Item) (Item, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO items (sku, name, description, category_id, unit_price, cost, quantity, min_stock, max_stock, is_active, created_at, updated_at)
VALUES ($1,$2,NULLIF($3,''),$4,$5,$6,$7,$8,$9,TRUE,NOW(),NOW())
RETURNING `+itemColumns,
		item.SKU, item.Name, item.Description, item.CategoryID, item.UnitPrice, item.Cost, item.Quantity, item.MinStock, item.MaxStock)
	created, err := scanItem(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Item{}, fmt.Errorf("sku %q: %w", item.SKU, shared.ErrDuplicate)
		}
		return Item{}, err
	}
	return created, nil
}

func (r *repository) GetItem(ctx context.Context, id int64) (Item, error) {
	item, err := scanItem(r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, fmt.Errorf("item %d: %w", id, shared.ErrNotFound)
		}
		return Item{}, err
	}
	return item, nil
}

func (r *repository) UpdateItem(ctx context.Context, item Item) error {
	tag, err := r.pool.Exec(ctx, `UPDATE items SET name=$2, description=NULLIF($3,''), category_id=$4, unit_price=$5, cost=$6, quantity=$7, min_stock=$8, max_stock=$9, is_active=$10, updated_at=NOW()
WHERE id=$1`,
		item.ID, item.Name, item.Description, item.CategoryID, item.UnitPrice, item.Cost, item.Quantity, item.MinStock, item.MaxStock, item.IsActive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("item %d: %w", item.ID, shared.ErrNotFound)
	}
	return nil
}

func (r *repository) SoftDeleteItem(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE items SET is_active=FALSE, updated_at=NOW() WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("item %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

func (r *repository) ListItems(ctx context.Context, filter ItemFilter) ([]Item, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	argCount := 0

	if filter.Search != "" {
		argCount++
		where += ` AND (name ILIKE $` + strconv.Itoa(argCount) + ` OR sku ILIKE $` + strconv.Itoa(argCount) + `)`
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.CategoryID != nil {
		argCount++
		where += ` AND category_id = $` + strconv.Itoa(argCount)
		args = append(args, *filter.CategoryID)
	}
	if filter.IsActive != nil {
		argCount++
		where += ` AND is_active = $` + strconv.Itoa(argCount)
		args = append(args, *filter.IsActive)
	}
	if filter.LowStockOnly {
		where += ` AND quantity < min_stock`
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM items`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + itemColumns + ` FROM items` + where + ` ORDER BY name ASC, id ASC`
	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = 20
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	argCount++
	query += ` LIMIT $` + strconv.Itoa(argCount)
	args = append(args, perPage)
	argCount++
	query += ` OFFSET $` + strconv.Itoa(argCount)
	args = append(args, (page-1)*perPage)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items, err := collectItems(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *repository) ListLowStock(ctx context.Context) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+itemColumns+` FROM items WHERE is_active AND quantity < min_stock ORDER BY quantity ASC, name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectItems(rows)
}

func collectItems(rows pgx.Rows) ([]Item, error) {
	items := []Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) CountItems(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM items WHERE is_active`).Scan(&n)
	return n, err
}

func (r *repository) CountLowStock(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM items WHERE is_active AND quantity < min_stock`).Scan(&n)
	return n, err
}

func (r *repository) CountOutOfStock(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM items WHERE is_active AND quantity = 0`).Scan(&n)
	return n, err
}

func (r *repository) TotalValue(ctx context.Context) (float64, error) {
	var v float64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(quantity * unit_price), 0) FROM items WHERE is_active`).Scan(&v)
	return v, err
}

const categoryColumns = `id, name, COALESCE(description,''), is_active, created_at, updated_at`

func scanCategory(row pgx.Row) (Category, error) {
	var c Category
	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (r *repository) CreateCategory(ctx context.Context, c Category) (Category, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO categories (name, description, is_active, created_at, updated_at)
VALUES ($1,NULLIF($2,''),TRUE,NOW(),NOW()) RETURNING `+categoryColumns, c.Name, c.Description)
	created, err := scanCategory(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Category{}, fmt.Errorf("category %q: %w", c.Name, shared.ErrDuplicate)
		}
		return Category{}, err
	}
	return created, nil
}

func (r *repository) GetCategory(ctx context.Context, id int64) (Category, error) {
	c, err := scanCategory(r.pool.QueryRow(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Category{}, fmt.Errorf("category %d: %w", id, shared.ErrNotFound)
		}
		return Category{}, err
	}
	return c, nil
}

func (r *repository) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+categoryColumns+` FROM categories WHERE is_active ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	categories := []Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return categories, nil
}

func (r *repository) UpdateCategory(ctx context.Context, c Category) error {
	tag, err := r.pool.Exec(ctx, `UPDATE categories SET name=$2, description=NULLIF($3,''), updated_at=NOW() WHERE id=$1`, c.ID, c.Name, c.Description)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("category %d: %w", c.ID, shared.ErrNotFound)
	}
	return nil
}

func (r *repository) SoftDeleteCategory(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE categories SET is_active=FALSE, updated_at=NOW() WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("category %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

func (r *repository) CategoryExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM categories WHERE id=$1 AND is_active)`, id).Scan(&exists)
	return exists, err
}
