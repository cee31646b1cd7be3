package repository

import (
	"context"
	"fmt"

	"github.com/ignatzorin/campus-trade/internal/models"
	"github.com/ignatzorin/campus-trade/internal/repository/common"
)

// ListingRepository даёт доступ к каталогу товаров.
type ListingRepository struct{}

// NewListingRepository создаёт экземпляр репозитория.
func NewListingRepository() *ListingRepository {
	return &ListingRepository{}
}

// Create выставляет товар на продажу.
func (r *ListingRepository) Create(ctx context.Context, q Querier, listing *models.Listing) error {
	if listing.Status == "" {
		listing.Status = models.ListingStatusOnSale
	}
	if err := q.GetContext(ctx, listing, `
		INSERT INTO listings (owner_id, title, base_price, status)
		VALUES ($1, $2, $3, $4)
		RETURNING *
	`, listing.OwnerID, listing.Title, listing.BasePrice, listing.Status); err != nil {
		return fmt.Errorf("listing repository: create %w", err)
	}
	return nil
}

// GetByID возвращает товар по идентификатору.
func (r *ListingRepository) GetByID(ctx context.Context, q Querier, id int64) (*models.Listing, error) {
	listing, err := common.GetByID[models.Listing](ctx, q, "listings", id, ErrListingNotFound)
	if err != nil && err != ErrListingNotFound {
		return nil, fmt.Errorf("listing repository: get by id %w", err)
	}
	return listing, err
}

// UpdateStatus меняет статус товара.
func (r *ListingRepository) UpdateStatus(ctx context.Context, q Querier, id int64, status models.ListingStatus) error {
	res, err := q.ExecContext(ctx, `UPDATE listings SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("listing repository: update status %w", err)
	}
	return common.RequireAffected(res, ErrListingNotFound)
}
