package repository

import (
	"context"

	"gorm.io/gorm"
)

// Tx runs a function inside one store transaction. Repositories are rebound
// to the transaction handle via their WithTx method.
type Tx struct {
	db *gorm.DB
}

func NewTx(db *gorm.DB) *Tx {
	return &Tx{db: db}
}

func (t *Tx) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return t.db.WithContext(ctx).Transaction(fn)
}
