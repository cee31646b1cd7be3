package service

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ignatzorin/campus-trade/internal/models"
	"github.com/ignatzorin/campus-trade/internal/repository"
	"github.com/ignatzorin/campus-trade/internal/txn"
)

// UserCreator создаёт пользователей.
type UserCreator interface {
	Create(ctx context.Context, q repository.Querier, user *models.User) error
}

// ListingCreator выставляет товары.
type ListingCreator interface {
	Create(ctx context.Context, q repository.Querier, listing *models.Listing) error
}

// SeedAccount данные созданного пользователя для входа с фронтенда.
type SeedAccount struct {
	UserID      int64           `json:"user_id"`
	Username    string          `json:"username"`
	Balance     decimal.Decimal `json:"balance"`
	AccessToken string          `json:"access_token"`
}

// SeedResult итог генерации.
type SeedResult struct {
	Accounts   []SeedAccount `json:"accounts"`
	ListingIDs []int64       `json:"listing_ids"`
}

// SeedService генерирует тестовые данные для разработки.
type SeedService struct {
	coord    Coordinator
	users    UserCreator
	listings ListingCreator
	ledger   *LedgerService
	tokens   *TokenVerifier
}

// NewSeedService создаёт новый сервис для генерации данных.
func NewSeedService(coord Coordinator, users UserCreator, listings ListingCreator, ledger *LedgerService, tokens *TokenVerifier) *SeedService {
	return &SeedService{coord: coord, users: users, listings: listings, ledger: ledger, tokens: tokens}
}

var seedTitles = []string{
	"Учебник по матанализу",
	"Настольная лампа",
	"Велосипед городской",
	"Электрочайник",
	"Конспекты по физике",
	"Наушники",
	"Калькулятор инженерный",
	"Рюкзак",
}

// SeedData создаёт numUsers пользователей со стартовым балансом и по numListings товаров у каждого.
func (s *SeedService) SeedData(ctx context.Context, numUsers, numListings int) (*SeedResult, error) {
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	result := &SeedResult{}

	err := s.coord.Run(ctx, func(ctx context.Context, scope *txn.Scope) error {
		for i := 0; i < numUsers; i++ {
			user := &models.User{Username: fmt.Sprintf("student_%d_%d", time.Now().Unix(), i)}
			if err := s.users.Create(ctx, scope.Q(), user); err != nil {
				return err
			}

			balance := decimal.NewFromInt(int64(500 + rnd.Intn(1500)))
			if _, err := s.ledger.CreditIn(ctx, scope, user.ID, balance, "стартовый баланс"); err != nil {
				return err
			}

			for j := 0; j < numListings; j++ {
				listing := &models.Listing{
					OwnerID:   user.ID,
					Title:     seedTitles[rnd.Intn(len(seedTitles))],
					BasePrice: decimal.NewFromInt(int64(50 + rnd.Intn(450))),
				}
				if err := s.listings.Create(ctx, scope.Q(), listing); err != nil {
					return err
				}
				result.ListingIDs = append(result.ListingIDs, listing.ID)
			}

			result.Accounts = append(result.Accounts, SeedAccount{UserID: user.ID, Username: user.Username, Balance: balance})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("seed service: %w", err)
	}

	for i := range result.Accounts {
		token, err := s.tokens.Issue(result.Accounts[i].UserID, RoleUser, 24*time.Hour)
		if err != nil {
			return nil, fmt.Errorf("seed service: issue token %w", err)
		}
		result.Accounts[i].AccessToken = token
	}

	return result, nil
}
