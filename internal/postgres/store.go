package postgres

import (
	"context"
	"encoding/json"

	"github.com/ariefcatur/go-sales-graphql/internal/sales"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

type Store struct{ DB *pgxpool.Pool }

var _ sales.Store = (*Store)(nil)

const uniqueViolation = "23505"

// alreadyExists maps a unique index violation to the domain error.
func alreadyExists(err error, kind, key string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return &sales.AlreadyExistsError{Kind: kind, Key: key}
	}
	return errors.Wrapf(err, "insert %s", kind)
}

func notFound(err error, kind string, id sales.ID) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return sales.NotFound(kind, id)
	}
	return errors.Wrapf(err, "get %s %s", kind, id)
}

// exactlyOne turns a zero-row UPDATE/DELETE into NotFound.
func exactlyOne(ct pgconn.CommandTag, err error, kind string, id sales.ID) error {
	if err != nil {
		return errors.Wrapf(err, "write %s %s", kind, id)
	}
	if ct.RowsAffected() == 0 {
		return sales.NotFound(kind, id)
	}
	return nil
}

// ---- users ----

const userCols = `id, name, surname, email, password_hash, created_at`

func scanUser(row pgx.Row) (sales.User, error) {
	var u sales.User
	err := row.Scan(&u.ID, &u.Name, &u.Surname, &u.Email, &u.PasswordHash, &u.CreatedAt)
	return u, err
}

func (s *Store) CreateUser(ctx context.Context, u sales.User) error {
	_, err := s.DB.Exec(ctx, `INSERT INTO users(`+userCols+`) VALUES ($1,$2,$3,$4,$5,$6)`,
		u.ID, u.Name, u.Surname, u.Email, u.PasswordHash, u.CreatedAt)
	if err != nil {
		return alreadyExists(err, sales.KindUser, u.Email)
	}
	return nil
}

func (s *Store) UserByID(ctx context.Context, id sales.ID) (sales.User, error) {
	u, err := scanUser(s.DB.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id=$1`, id))
	if err != nil {
		return sales.User{}, notFound(err, sales.KindUser, id)
	}
	return u, nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (sales.User, error) {
	u, err := scanUser(s.DB.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE email=$1`, email))
	if err != nil {
		return sales.User{}, notFound(err, sales.KindUser, sales.ID(email))
	}
	return u, nil
}

// ---- products ----

const productCols = `id, name, stock, price_cents, created_at`

func scanProduct(row pgx.Row) (sales.Product, error) {
	var p sales.Product
	err := row.Scan(&p.ID, &p.Name, &p.Stock, &p.PriceCents, &p.CreatedAt)
	return p, err
}

func collectProducts(rows pgx.Rows, err error) ([]sales.Product, error) {
	if err != nil {
		return nil, errors.Wrap(err, "query products")
	}
	defer rows.Close()

	var out []sales.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan product")
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) CreateProduct(ctx context.Context, p sales.Product) error {
	_, err := s.DB.Exec(ctx, `INSERT INTO products(`+productCols+`) VALUES ($1,$2,$3,$4,$5)`,
		p.ID, p.Name, p.Stock, p.PriceCents, p.CreatedAt)
	if err != nil {
		return alreadyExists(err, sales.KindProduct, p.ID.String())
	}
	return nil
}

func (s *Store) Product(ctx context.Context, id sales.ID) (sales.Product, error) {
	p, err := scanProduct(s.DB.QueryRow(ctx, `SELECT `+productCols+` FROM products WHERE id=$1`, id))
	if err != nil {
		return sales.Product{}, notFound(err, sales.KindProduct, id)
	}
	return p, nil
}

func (s *Store) Products(ctx context.Context) ([]sales.Product, error) {
	return collectProducts(s.DB.Query(ctx, `SELECT `+productCols+` FROM products ORDER BY name, id`))
}

func (s *Store) SearchProducts(ctx context.Context, text string, limit int) ([]sales.Product, error) {
	return collectProducts(s.DB.Query(ctx, `
		SELECT `+productCols+` FROM products
		WHERE to_tsvector('simple', name) @@ plainto_tsquery('simple', $1)
		ORDER BY name, id
		LIMIT $2`, text, limit))
}

func (s *Store) UpdateProduct(ctx context.Context, p sales.Product) error {
	ct, err := s.DB.Exec(ctx, `UPDATE products SET name=$2, stock=$3, price_cents=$4 WHERE id=$1`,
		p.ID, p.Name, p.Stock, p.PriceCents)
	return exactlyOne(ct, err, sales.KindProduct, p.ID)
}

func (s *Store) DeleteProduct(ctx context.Context, id sales.ID) error {
	ct, err := s.DB.Exec(ctx, `DELETE FROM products WHERE id=$1`, id)
	return exactlyOne(ct, err, sales.KindProduct, id)
}

// ---- clients ----

const clientCols = `id, name, surname, company, email, phone, owner, created_at`

func scanClient(row pgx.Row) (sales.Client, error) {
	var c sales.Client
	err := row.Scan(&c.ID, &c.Name, &c.Surname, &c.Company, &c.Email, &c.Phone, &c.Owner, &c.CreatedAt)
	return c, err
}

func (s *Store) CreateClient(ctx context.Context, c sales.Client) error {
	_, err := s.DB.Exec(ctx, `INSERT INTO clients(`+clientCols+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		c.ID, c.Name, c.Surname, c.Company, c.Email, c.Phone, c.Owner, c.CreatedAt)
	if err != nil {
		return alreadyExists(err, sales.KindClient, c.Email)
	}
	return nil
}

func (s *Store) Client(ctx context.Context, id sales.ID) (sales.Client, error) {
	c, err := scanClient(s.DB.QueryRow(ctx, `SELECT `+clientCols+` FROM clients WHERE id=$1`, id))
	if err != nil {
		return sales.Client{}, notFound(err, sales.KindClient, id)
	}
	return c, nil
}

func (s *Store) ClientByEmail(ctx context.Context, email string) (sales.Client, error) {
	c, err := scanClient(s.DB.QueryRow(ctx, `SELECT `+clientCols+` FROM clients WHERE email=$1`, email))
	if err != nil {
		return sales.Client{}, notFound(err, sales.KindClient, sales.ID(email))
	}
	return c, nil
}

func (s *Store) Clients(ctx context.Context, f sales.ClientFilter) ([]sales.Client, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT `+clientCols+` FROM clients
		WHERE ($1 = '' OR owner = $1)
		ORDER BY created_at, id`, f.Owner)
	if err != nil {
		return nil, errors.Wrap(err, "query clients")
	}
	defer rows.Close()

	var out []sales.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan client")
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) UpdateClient(ctx context.Context, c sales.Client) error {
	ct, err := s.DB.Exec(ctx, `
		UPDATE clients SET name=$2, surname=$3, company=$4, email=$5, phone=$6
		WHERE id=$1`, c.ID, c.Name, c.Surname, c.Company, c.Email, c.Phone)
	if err != nil {
		return alreadyExists(err, sales.KindClient, c.Email)
	}
	return exactlyOne(ct, nil, sales.KindClient, c.ID)
}

func (s *Store) DeleteClient(ctx context.Context, id sales.ID) error {
	ct, err := s.DB.Exec(ctx, `DELETE FROM clients WHERE id=$1`, id)
	return exactlyOne(ct, err, sales.KindClient, id)
}

// ---- orders ----

const orderCols = `id, client_id, owner, status, items, total_cents, created_at, version`

func scanOrder(row pgx.Row) (sales.Order, error) {
	var (
		o     sales.Order
		items []byte
	)
	if err := row.Scan(&o.ID, &o.ClientID, &o.Owner, &o.Status, &items, &o.TotalCents, &o.CreatedAt, &o.Version); err != nil {
		return o, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return o, errors.Wrapf(err, "decode items of order %s", o.ID)
	}
	return o, nil
}

func (s *Store) Order(ctx context.Context, id sales.ID) (sales.Order, error) {
	o, err := scanOrder(s.DB.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE id=$1`, id))
	if err != nil {
		return sales.Order{}, notFound(err, sales.KindOrder, id)
	}
	return o, nil
}

func (s *Store) Orders(ctx context.Context, f sales.OrderFilter) ([]sales.Order, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT `+orderCols+` FROM orders
		WHERE ($1 = '' OR owner = $1) AND ($2 = '' OR status = $2)
		ORDER BY created_at, id`, f.Owner, f.Status)
	if err != nil {
		return nil, errors.Wrap(err, "query orders")
	}
	defer rows.Close()

	var out []sales.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan order")
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *Store) DeleteOrder(ctx context.Context, id sales.ID) error {
	ct, err := s.DB.Exec(ctx, `DELETE FROM orders WHERE id=$1`, id)
	return exactlyOne(ct, err, sales.KindOrder, id)
}

// CommitOrder: satu transaksi. Tiap perubahan stok pakai UPDATE bersyarat
// (stock + delta >= 0); kalau ada yang gagal, semua di-rollback.
func (s *Store) CommitOrder(ctx context.Context, plan sales.Plan) (sales.Order, error) {
	items, err := json.Marshal(plan.Order.Items)
	if err != nil {
		return sales.Order{}, errors.Wrap(err, "encode items")
	}

	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return sales.Order{}, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// order dulu: baris order terkunci, revisi lain yang basi langsung gagal
	o := plan.Order
	if plan.Replace {
		if err := replaceOrder(ctx, tx, o, string(items)); err != nil {
			return sales.Order{}, err
		}
	}

	for _, c := range plan.Changes {
		if err := applyChange(ctx, tx, c); err != nil {
			return sales.Order{}, err
		}
	}

	if !plan.Replace {
		_, err := tx.Exec(ctx, `INSERT INTO orders(`+orderCols+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			o.ID, o.ClientID, o.Owner, o.Status, string(items), o.TotalCents, o.CreatedAt, o.Version)
		if err != nil {
			return sales.Order{}, alreadyExists(err, sales.KindOrder, o.ID.String())
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return sales.Order{}, errors.Wrap(err, "commit order")
	}
	return o, nil
}

// replaceOrder writes o only while the stored row is still at the version it was read at.
func replaceOrder(ctx context.Context, tx pgx.Tx, o sales.Order, items string) error {
	ct, err := tx.Exec(ctx, `
		UPDATE orders SET client_id=$2, status=$3, items=$4, total_cents=$5, version=$6
		WHERE id=$1 AND version=$7`, o.ID, o.ClientID, o.Status, items, o.TotalCents, o.Version, o.Version-1)
	if err != nil {
		return errors.Wrapf(err, "update order %s", o.ID)
	}
	if ct.RowsAffected() == 1 {
		return nil
	}
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE id=$1)`, o.ID).Scan(&exists); err != nil {
		return errors.Wrapf(err, "check order %s", o.ID)
	}
	if !exists {
		return sales.NotFound(sales.KindOrder, o.ID)
	}
	return &sales.ConflictError{Kind: sales.KindOrder, ID: o.ID}
}

func applyChange(ctx context.Context, tx pgx.Tx, c sales.StockChange) error {
	var stock int
	err := tx.QueryRow(ctx, `
		UPDATE products SET stock = stock + $2
		WHERE id=$1 AND stock + $2 >= 0
		RETURNING stock`, c.ProductID, c.Delta).Scan(&stock)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return errors.Wrapf(err, "update stock of %s", c.ProductID)
	}

	// gak ada row: produk hilang atau stok kurang
	var name string
	err = tx.QueryRow(ctx, `SELECT name, stock FROM products WHERE id=$1`, c.ProductID).Scan(&name, &stock)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		if c.Delta > 0 {
			return nil
		}
		return sales.NotFound(sales.KindProduct, c.ProductID)
	case err != nil:
		return errors.Wrapf(err, "read stock of %s", c.ProductID)
	}
	return &sales.InsufficientStockError{
		ProductID: c.ProductID, Name: name, Requested: -c.Delta, Available: stock,
	}
}

// ---- reports ----

func (s *Store) TopClients(ctx context.Context, limit int) ([]sales.ClientRank, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT c.id, c.name, c.surname, c.company, c.email, c.phone, c.owner, c.created_at, t.total
		FROM (
			SELECT client_id, SUM(total_cents) AS total
			FROM orders WHERE status = $1
			GROUP BY client_id
		) t
		JOIN clients c ON c.id = t.client_id
		ORDER BY t.total DESC, c.id
		LIMIT $2`, sales.StatusCompleted, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query top clients")
	}
	defer rows.Close()

	var out []sales.ClientRank
	for rows.Next() {
		var r sales.ClientRank
		c := &r.Client
		if err := rows.Scan(&c.ID, &c.Name, &c.Surname, &c.Company, &c.Email, &c.Phone, &c.Owner, &c.CreatedAt, &r.TotalCents); err != nil {
			return nil, errors.Wrap(err, "scan top client")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) TopSalespeople(ctx context.Context, limit int) ([]sales.SalespersonRank, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT u.id, u.name, u.surname, u.email, u.password_hash, u.created_at, t.total
		FROM (
			SELECT owner, SUM(total_cents) AS total
			FROM orders WHERE status = $1
			GROUP BY owner
		) t
		JOIN users u ON u.id = t.owner
		ORDER BY t.total DESC, u.id
		LIMIT $2`, sales.StatusCompleted, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query top salespeople")
	}
	defer rows.Close()

	var out []sales.SalespersonRank
	for rows.Next() {
		var r sales.SalespersonRank
		u := &r.Salesperson
		if err := rows.Scan(&u.ID, &u.Name, &u.Surname, &u.Email, &u.PasswordHash, &u.CreatedAt, &r.TotalCents); err != nil {
			return nil, errors.Wrap(err, "scan top salesperson")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
