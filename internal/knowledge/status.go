package knowledge

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cloo-solutions/outreachai/internal/logging"
)

// StoreStatus is the outcome of opening the knowledge store: Ready or
// Unavailable. Consumers switch on the concrete type.
type StoreStatus interface {
	storeStatus()
}

// Ready carries an initialized store.
type Ready struct {
	Store  *Store
	Status InitStatus
}

// Unavailable records why the store could not be opened.
type Unavailable struct {
	Reason error
}

func (Ready) storeStatus()       {}
func (Unavailable) storeStatus() {}

// Open initializes a store and reports the result as a StoreStatus. Failures,
// including panics from the storage or embedding layers, become Unavailable.
func Open(ctx context.Context, store *Store, forceRebuild bool, logger *zap.Logger) (status StoreStatus) {
	logger = logging.OrNop(logger)
	defer func() {
		if r := recover(); r != nil {
			status = Unavailable{Reason: unavailable(fmt.Errorf("panic during initialization: %v", r))}
			logger.Error("knowledge store initialization panicked", zap.Any("panic", r))
		}
	}()

	if store == nil {
		return Unavailable{Reason: unavailable(fmt.Errorf("no store configured"))}
	}
	res, err := store.Initialize(ctx, forceRebuild)
	if err != nil {
		logger.Warn("knowledge store unavailable", zap.Error(err))
		return Unavailable{Reason: err}
	}
	return Ready{Store: store, Status: *res}
}

// StoreOf returns the store held by a Ready status, or nil.
func StoreOf(status StoreStatus) *Store {
	if r, ok := status.(Ready); ok {
		return r.Store
	}
	return nil
}
