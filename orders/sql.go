package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/BaSui01/agentswarm/config"
	"github.com/BaSui01/agentswarm/internal/database"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const importBatchSize = 100

// SQLStore serves orders from the "orders" table.
type SQLStore struct {
	pool   *database.PoolManager
	logger *zap.Logger
}

func NewSQLStore(pool *database.PoolManager, logger *zap.Logger) *SQLStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLStore{pool: pool, logger: logger.With(zap.String("component", "order_store"))}
}

// OpenSQLStore connects with cfg and migrates the schema.
func OpenSQLStore(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*SQLStore, error) {
	pool, err := database.Open(cfg, logger)
	if err != nil {
		return nil, err
	}
	s := NewSQLStore(pool, logger)
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) Migrate(ctx context.Context) error {
	if err := s.db(ctx).AutoMigrate(&Order{}); err != nil {
		return fmt.Errorf("migrate orders: %w", err)
	}
	return nil
}

func (s *SQLStore) Close() error { return s.pool.Close() }

func (s *SQLStore) db(ctx context.Context) *gorm.DB {
	return s.pool.DB().WithContext(ctx)
}

func (s *SQLStore) Get(ctx context.Context, id string) (*Order, error) {
	var o Order
	err := s.db(ctx).Where("order_id = ?", id).First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", id, err)
	}
	return &o, nil
}

func (s *SQLStore) ByEmail(ctx context.Context, email string) ([]Order, error) {
	var out []Order
	err := s.db(ctx).
		Where("LOWER(customer_email) = LOWER(?)", email).
		Order("order_id").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("orders by email: %w", err)
	}
	return out, nil
}

func (s *SQLStore) All(ctx context.Context) ([]Order, error) {
	var out []Order
	if err := s.db(ctx).Order("order_id").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return out, nil
}

// Import upserts orders in one transaction, retried on transient failures.
func (s *SQLStore) Import(ctx context.Context, orders []Order) error {
	if len(orders) == 0 {
		return nil
	}
	err := s.pool.WithTransactionRetry(ctx, 3, func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_id"}},
			UpdateAll: true,
		}).CreateInBatches(orders, importBatchSize).Error
	})
	if err != nil {
		return fmt.Errorf("import orders: %w", err)
	}
	s.logger.Info("orders imported", zap.Int("count", len(orders)))
	return nil
}
