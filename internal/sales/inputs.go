package sales

import (
	"math"
	"net/mail"
	"strings"
)

const (
	// MaxPriceCents caps a unit price at one billion.
	MaxPriceCents = 100_000_000_000
	// MaxOrderTotalCents keeps totals exact when exposed as a float64.
	MaxOrderTotalCents = 1 << 53
)

// CentsFromAmount converts a decimal amount to cents, rejecting values that cannot be
// a price.
func CentsFromAmount(v float64) (int, error) {
	switch {
	case math.IsNaN(v) || math.IsInf(v, 0):
		return 0, invalid("price", "not a number")
	case v < 0:
		return 0, invalid("price", "must not be negative")
	case v*100 > MaxPriceCents:
		return 0, invalid("price", "too large")
	}
	return int(math.Round(v * 100)), nil
}

func validPrice(cents int) error {
	if cents < 0 {
		return invalid("price", "must not be negative")
	}
	if cents > MaxPriceCents {
		return invalid("price", "too large")
	}
	return nil
}

type UserInput struct {
	Name     string
	Surname  string
	Email    string
	Password string
}

type Credentials struct {
	Email    string
	Password string
}

type ProductInput struct {
	Name       string
	Stock      int
	PriceCents int
}

// ProductPatch leaves nil fields unchanged.
type ProductPatch struct {
	Name       *string
	Stock      *int
	PriceCents *int
}

type ClientInput struct {
	Name    string
	Surname string
	Company string
	Email   string
	Phone   string
}

type ClientPatch struct {
	Name    *string
	Surname *string
	Company *string
	Email   *string
	Phone   *string
}

type ItemInput struct {
	ProductID ID
	Qty       int
}

type PlaceOrderInput struct {
	ClientID ID
	Items    []ItemInput
}

// ReviseOrderInput: ClientID nil keeps the current client, Items nil keeps the current items.
type ReviseOrderInput struct {
	ClientID *ID
	Items    []ItemInput
	Status   *Status
}

func normalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func validEmail(s string) bool {
	_, err := mail.ParseAddress(s)
	return err == nil && !strings.ContainsAny(s, " <>")
}

func required(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return invalid(field, "required")
	}
	return nil
}

func (in UserInput) validate() error {
	if err := required("name", in.Name); err != nil {
		return err
	}
	if !validEmail(normalizeEmail(in.Email)) {
		return invalid("email", "malformed address")
	}
	if len(in.Password) < 6 {
		return invalid("password", "must have at least 6 characters")
	}
	return nil
}

func (in ProductInput) validate() error {
	if err := required("name", in.Name); err != nil {
		return err
	}
	if in.Stock < 0 {
		return invalid("stock", "must not be negative")
	}
	return validPrice(in.PriceCents)
}

func (p ProductPatch) apply(dst *Product) error {
	if p.Name != nil {
		if err := required("name", *p.Name); err != nil {
			return err
		}
		dst.Name = strings.TrimSpace(*p.Name)
	}
	if p.Stock != nil {
		if *p.Stock < 0 {
			return invalid("stock", "must not be negative")
		}
		dst.Stock = *p.Stock
	}
	if p.PriceCents != nil {
		if err := validPrice(*p.PriceCents); err != nil {
			return err
		}
		dst.PriceCents = *p.PriceCents
	}
	return nil
}

func (in ClientInput) validate() error {
	for _, f := range []struct{ name, v string }{
		{"name", in.Name}, {"surname", in.Surname}, {"company", in.Company},
	} {
		if err := required(f.name, f.v); err != nil {
			return err
		}
	}
	if !validEmail(normalizeEmail(in.Email)) {
		return invalid("email", "malformed address")
	}
	return nil
}

func (p ClientPatch) apply(dst *Client) error {
	set := func(field string, src *string, dst *string) error {
		if src == nil {
			return nil
		}
		if err := required(field, *src); err != nil {
			return err
		}
		*dst = strings.TrimSpace(*src)
		return nil
	}
	if err := set("name", p.Name, &dst.Name); err != nil {
		return err
	}
	if err := set("surname", p.Surname, &dst.Surname); err != nil {
		return err
	}
	if err := set("company", p.Company, &dst.Company); err != nil {
		return err
	}
	if p.Email != nil {
		e := normalizeEmail(*p.Email)
		if !validEmail(e) {
			return invalid("email", "malformed address")
		}
		dst.Email = e
	}
	if p.Phone != nil {
		dst.Phone = strings.TrimSpace(*p.Phone)
	}
	return nil
}

func validateItems(items []ItemInput) error {
	if len(items) == 0 {
		return invalid("items", "at least one item is required")
	}
	for _, it := range items {
		if it.ProductID == "" {
			return invalid("items", "product id is required")
		}
		if it.Qty <= 0 {
			return invalid("items", "invalid qty for product "+it.ProductID.String())
		}
	}
	return nil
}
