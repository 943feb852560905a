package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/linemk/dental-mall/internal/domain/models"
)

var (
	ErrProductNotFound = fmt.Errorf("product %w", models.ErrNotFound)
	ErrVariantNotFound = fmt.Errorf("variant %w", models.ErrNotFound)
)

// ProductStorage — чтение каталога, нужное корзине. CRUD каталога здесь нет
type ProductStorage interface {
	// GetProduct возвращает только активный товар
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	// GetVariant возвращает вариант, принадлежащий товару
	GetVariant(ctx context.Context, productID, variantID int64) (*models.Variant, error)
}

type productRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) ProductStorage {
	return &productRepository{db: db}
}

func (r *productRepository) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	p := &models.Product{}
	query := "SELECT id, name, sku, price, sale_price, is_active FROM products WHERE id = $1 AND is_active"
	row := r.db.QueryRowContext(ctx, query, id)
	if err := row.Scan(&p.ID, &p.Name, &p.SKU, &p.Price, &p.SalePrice, &p.IsActive); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *productRepository) GetVariant(ctx context.Context, productID, variantID int64) (*models.Variant, error) {
	v := &models.Variant{}
	query := "SELECT id, product_id, name, price, sale_price FROM product_variants WHERE id = $1 AND product_id = $2"
	row := r.db.QueryRowContext(ctx, query, variantID, productID)
	if err := row.Scan(&v.ID, &v.ProductID, &v.Name, &v.Price, &v.SalePrice); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrVariantNotFound
		}
		return nil, err
	}
	return v, nil
}
