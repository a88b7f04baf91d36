package repositories

import (
	"context"
	"errors"

	"sewabaju/internal/apperr"

	"gorm.io/gorm"
)

// GORMStore is the gorm-backed Store.
type GORMStore struct {
	db *gorm.DB
}

// NewGORMStore creates a Store over db. db may itself be a transaction.
func NewGORMStore(db *gorm.DB) *GORMStore {
	return &GORMStore{db: db}
}

func (s *GORMStore) Garments() GarmentRepository   { return NewGORMGarmentRepository(s.db) }
func (s *GORMStore) Variants() VariantRepository   { return NewGORMVariantRepository(s.db) }
func (s *GORMStore) Orders() OrderRepository       { return NewGORMOrderRepository(s.db) }
func (s *GORMStore) Payments() PaymentRepository   { return NewGORMPaymentRepository(s.db) }
func (s *GORMStore) Fines() FineRepository         { return NewGORMFineRepository(s.db) }
func (s *GORMStore) Users() UserRepository         { return NewGORMUserRepository(s.db) }
func (s *GORMStore) Customers() CustomerRepository { return NewGORMCustomerRepository(s.db) }

// WithinTx runs fn inside a gorm transaction (or a savepoint when s is already
// transactional).
func (s *GORMStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewGORMStore(tx))
	})
}

// notFoundOr maps gorm.ErrRecordNotFound to a NotFoundError and anything else
// to a StorageError.
func notFoundOr(err error, entity, id, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(entity, id)
	}
	return apperr.Storage(op, err)
}

// duplicateOr maps a unique-constraint violation to ErrDuplicate.
func duplicateOr(err error, op string) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return apperr.Storage(op, err)
}
