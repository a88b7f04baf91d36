package repositories

import (
	"context"
	"errors"
)

var (
	// ErrStockConflict means a conditional stock decrement matched no row
	// because current stock is below the requested quantity.
	ErrStockConflict = errors.New("stock below requested quantity")
	// ErrStatusConflict means a compare-and-set on a status column found the
	// row in a different state than expected.
	ErrStatusConflict = errors.New("status changed concurrently")
	// ErrDuplicate means a unique constraint rejected the insert.
	ErrDuplicate = errors.New("duplicate record")
)

// Store groups the repositories and opens units of work over them.
// Repositories obtained from the Store passed to fn share fn's transaction.
type Store interface {
	Garments() GarmentRepository
	Variants() VariantRepository
	Orders() OrderRepository
	Payments() PaymentRepository
	Fines() FineRepository
	Users() UserRepository
	Customers() CustomerRepository

	// WithinTx runs fn in a transaction, committing when fn returns nil and
	// rolling back otherwise. Calling it on a Store that is already inside a
	// transaction opens a savepoint.
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}
