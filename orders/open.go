package orders

import (
	"context"
	"fmt"

	"github.com/BaSui01/agentswarm/config"
	"go.uber.org/zap"
)

// OpenStore opens the source selected by oc. The SQL store is seeded from
// oc.CSVPath when oc.ImportCSV is set. The returned close func is never nil.
func OpenStore(ctx context.Context, oc config.OrdersConfig, db config.DatabaseConfig, logger *zap.Logger) (Store, func() error, error) {
	noop := func() error { return nil }
	if logger == nil {
		logger = zap.NewNop()
	}
	switch oc.Source {
	case "", "csv":
		return NewCSVStore(oc.CSVPath), noop, nil
	case "sql":
		store, err := OpenSQLStore(ctx, db, logger)
		if err != nil {
			return nil, noop, err
		}
		if oc.ImportCSV {
			list, err := LoadCSV(oc.CSVPath)
			if err == nil {
				err = store.Import(ctx, list)
			}
			if err != nil {
				_ = store.Close()
				return nil, noop, fmt.Errorf("import orders: %w", err)
			}
			logger.Info("orders imported", zap.Int("count", len(list)), zap.String("path", oc.CSVPath))
		}
		return store, store.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown orders source %q", oc.Source)
	}
}
