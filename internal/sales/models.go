package sales

import (
	"time"

	"github.com/google/uuid"
)

// ID is an opaque entity identifier. Two ids are equal only if their values are equal.
type ID string

func NewID() ID { return ID(uuid.NewString()) }

func (id ID) String() string { return string(id) }

// Identity is the authenticated salesperson making a request.
type Identity struct {
	ID      ID     `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Surname string `json:"surname,omitempty"`
}

func (i Identity) Anonymous() bool { return i.ID == "" }

type User struct {
	ID           ID        `json:"id" bson:"_id"`
	Name         string    `json:"name" bson:"name"`
	Surname      string    `json:"surname" bson:"surname"`
	Email        string    `json:"email" bson:"email"`
	PasswordHash string    `json:"-" bson:"password_hash"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
}

func (u User) Identity() Identity {
	return Identity{ID: u.ID, Email: u.Email, Name: u.Name, Surname: u.Surname}
}

type Product struct {
	ID         ID        `json:"id" bson:"_id"`
	Name       string    `json:"name" bson:"name"`
	Stock      int       `json:"stock" bson:"stock"`
	PriceCents int       `json:"price_cents" bson:"price_cents"`
	CreatedAt  time.Time `json:"created_at" bson:"created_at"`
}

type Client struct {
	ID        ID        `json:"id" bson:"_id"`
	Name      string    `json:"name" bson:"name"`
	Surname   string    `json:"surname" bson:"surname"`
	Company   string    `json:"company" bson:"company"`
	Email     string    `json:"email" bson:"email"`
	Phone     string    `json:"phone,omitempty" bson:"phone,omitempty"`
	Owner     ID        `json:"owner" bson:"owner"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

type Order struct {
	ID         ID         `json:"id" bson:"_id"`
	ClientID   ID         `json:"client_id" bson:"client_id"`
	Owner      ID         `json:"owner" bson:"owner"`
	Status     Status     `json:"status" bson:"status"` // lihat status.go
	Items      []LineItem `json:"items" bson:"items"`
	TotalCents int        `json:"total_cents" bson:"total_cents"`
	CreatedAt  time.Time  `json:"created_at" bson:"created_at"`

	// Version naik 1 tiap revisi; dipakai buat compare-and-set di store.
	Version int `json:"version" bson:"version"`
}

// LineItem keeps the unit price at the time the item was reserved.
type LineItem struct {
	ProductID  ID  `json:"product_id" bson:"product_id"`
	Qty        int `json:"qty" bson:"qty"`
	PriceCents int `json:"price_cents" bson:"price_cents"`
}

// Quantities sums item quantities per product.
func (o Order) Quantities() map[ID]int {
	out := make(map[ID]int, len(o.Items))
	for _, it := range o.Items {
		out[it.ProductID] += it.Qty
	}
	return out
}

type ClientRank struct {
	Client     Client `json:"client"`
	TotalCents int    `json:"total_cents"`
}

type SalespersonRank struct {
	Salesperson User `json:"salesperson"`
	TotalCents  int  `json:"total_cents"`
}

type ClientFilter struct {
	Owner ID
}

type OrderFilter struct {
	Owner  ID
	Status Status
}

// Match reports whether o passes the filter. Empty fields match everything.
func (f OrderFilter) Match(o Order) bool {
	if f.Owner != "" && o.Owner != f.Owner {
		return false
	}
	if f.Status != "" && o.Status != f.Status {
		return false
	}
	return true
}
