package models

type OrderStatus string

const (
	StatusUnconfirmed OrderStatus = "UNCONFIRMED"
	StatusConfirmed   OrderStatus = "CONFIRMED"
	StatusCancelled   OrderStatus = "CANCELLED"
	StatusCompleted   OrderStatus = "COMPLETED"
)

// AllStatuses is the full enum, in workflow order.
var AllStatuses = []OrderStatus{StatusUnconfirmed, StatusConfirmed, StatusCancelled, StatusCompleted}

func (s OrderStatus) Valid() bool {
	switch s {
	case StatusUnconfirmed, StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

func (s OrderStatus) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

type Category struct {
	ID   uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name string `gorm:"not null"                 json:"name"`
}

type Product struct {
	ID          uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string  `gorm:"not null"                 json:"name"`
	Description string  `json:"description"`
	Price       float64 `gorm:"not null"                 json:"price"`
	Weight      float64 `gorm:"not null"                 json:"weight"`
	CategoryID  uint    `gorm:"index;not null"           json:"category_id"`
}

type Customer struct {
	ID       uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Username string `gorm:"not null"                 json:"username"`
	Email    string `gorm:"uniqueIndex;not null"     json:"email"`
	Phone    string `gorm:"uniqueIndex;not null"     json:"phone"`
}

// User is the credential record. The latest issued token pair is stored on
// the row: only the most recent access token is honored, so logging in from
// a second place invalidates the first session.
type User struct {
	ID           uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Login        string `gorm:"uniqueIndex;not null"     json:"login"`
	PasswordHash string `gorm:"not null"                 json:"-"`
	Role         string `gorm:"not null"                 json:"role"`
	CustomerID   *uint  `gorm:"index"                    json:"customer_id,omitempty"`
	AccessToken  string `json:"-"`
	RefreshToken string `json:"-"`
}

type Order struct {
	ID         uint        `gorm:"primaryKey;autoIncrement" json:"id"`
	CustomerID uint        `gorm:"index;not null"           json:"customer_id"`
	Status     OrderStatus `gorm:"not null"                 json:"status"`
	CreatedAt  int64       `gorm:"not null"                 json:"created_at"`
}

type OrderItem struct {
	ID        uint    `gorm:"primaryKey;autoIncrement"    json:"id"`
	OrderID   uint    `gorm:"index;not null"              json:"order_id"`
	ProductID uint    `gorm:"not null"                    json:"product_id"`
	Quantity  uint    `gorm:"not null;check:quantity>0"   json:"quantity"`
	UnitPrice float64 `gorm:"not null"                    json:"unit_price"`
	VAT       float64 `gorm:"column:vat"                  json:"vat"`
	Discount  float64 `json:"discount"`
}

// Opinion is write-once per order, enforced with the unique index.
type Opinion struct {
	ID      uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID uint   `gorm:"uniqueIndex;not null"     json:"order_id"`
	Rating  int    `gorm:"not null"                 json:"rating"`
	Content string `json:"content,omitempty"`
}
