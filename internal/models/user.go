package models

// User is identified by an externally assigned id and has no other attributes.
type User struct {
	ID int64 `json:"id" gorm:"primaryKey;autoIncrement:false"`
}

// TableName specifies the table name
func (User) TableName() string {
	return "users"
}

// Product has the same lifecycle as User: created on first reference, never deleted.
type Product struct {
	ID int64 `json:"id" gorm:"primaryKey;autoIncrement:false"`
}

// TableName specifies the table name
func (Product) TableName() string {
	return "products"
}
