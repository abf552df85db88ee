package database

import (
	"transaction-summary-api/internal/models"
)

// transactionTable adds the belongs-to relations needed to emit the foreign
// key constraints. It exists only for migration; application code works with
// models.Transaction and its explicit id fields.
type transactionTable struct {
	models.Transaction
	User    models.User    `gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:RESTRICT,OnDelete:RESTRICT"`
	Product models.Product `gorm:"foreignKey:ProductID;references:ID;constraint:OnUpdate:RESTRICT,OnDelete:RESTRICT"`
}

func (transactionTable) TableName() string {
	return "transactions"
}

// autoMigrate creates missing tables, indexes and constraints.
func (s *Store) autoMigrate() error {
	return s.db.AutoMigrate(
		&models.User{},
		&models.Product{},
		&transactionTable{},
	)
}
