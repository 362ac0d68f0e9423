package mongo

import (
	"context"

	"github.com/ariefcatur/go-sales-graphql/internal/metrics"
	"github.com/ariefcatur/go-sales-graphql/internal/sales"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Store keeps every entity as a document keyed by its id. Order commits use
// conditional $inc updates and undo the ones already applied when a later one fails.
type Store struct {
	users    *mongo.Collection
	products *mongo.Collection
	clients  *mongo.Collection
	orders   *mongo.Collection
	log      *zap.Logger
}

var _ sales.Store = (*Store)(nil)

func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	c, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(err, "connect mongo")
	}
	if err := c.Ping(ctx, nil); err != nil {
		_ = c.Disconnect(ctx)
		return nil, errors.Wrap(err, "ping mongo")
	}
	return c, nil
}

func NewStore(db *mongo.Database, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		users:    db.Collection("users"),
		products: db.Collection("products"),
		clients:  db.Collection("clients"),
		orders:   db.Collection("orders"),
		log:      log,
	}
}

// EnsureIndexes creates the unique and search indexes the store relies on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)
	idx := []struct {
		coll   *mongo.Collection
		models []mongo.IndexModel
	}{
		{s.users, []mongo.IndexModel{{Keys: bson.D{{Key: "email", Value: 1}}, Options: unique}}},
		{s.clients, []mongo.IndexModel{
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "owner", Value: 1}}},
		}},
		{s.products, []mongo.IndexModel{{Keys: bson.D{{Key: "name", Value: "text"}}}}},
		{s.orders, []mongo.IndexModel{
			{Keys: bson.D{{Key: "owner", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}}},
		}},
	}
	for _, x := range idx {
		if _, err := x.coll.Indexes().CreateMany(ctx, x.models); err != nil {
			return errors.Wrapf(err, "create indexes on %s", x.coll.Name())
		}
	}
	return nil
}

func insertErr(err error, kind, key string) error {
	if mongo.IsDuplicateKeyError(err) {
		return &sales.AlreadyExistsError{Kind: kind, Key: key}
	}
	return errors.Wrapf(err, "insert %s", kind)
}

func findOne[T any](ctx context.Context, coll *mongo.Collection, filter any, kind string, id sales.ID) (T, error) {
	var out T
	err := coll.FindOne(ctx, filter).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return out, sales.NotFound(kind, id)
	}
	if err != nil {
		return out, errors.Wrapf(err, "get %s %s", kind, id)
	}
	return out, nil
}

func findAll[T any](ctx context.Context, coll *mongo.Collection, filter any, opts *options.FindOptions) ([]T, error) {
	cur, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "find in %s", coll.Name())
	}
	var out []T
	if err := cur.All(ctx, &out); err != nil {
		return nil, errors.Wrapf(err, "decode %s", coll.Name())
	}
	return out, nil
}

func byID(id sales.ID) bson.M { return bson.M{"_id": id} }

func replaceOne(ctx context.Context, coll *mongo.Collection, id sales.ID, doc any, kind, key string) error {
	res, err := coll.ReplaceOne(ctx, byID(id), doc)
	if err != nil {
		return insertErr(err, kind, key)
	}
	if res.MatchedCount == 0 {
		return sales.NotFound(kind, id)
	}
	return nil
}

func deleteOne(ctx context.Context, coll *mongo.Collection, id sales.ID, kind string) error {
	res, err := coll.DeleteOne(ctx, byID(id))
	if err != nil {
		return errors.Wrapf(err, "delete %s %s", kind, id)
	}
	if res.DeletedCount == 0 {
		return sales.NotFound(kind, id)
	}
	return nil
}

var oldestFirst = options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

// ---- users ----

func (s *Store) CreateUser(ctx context.Context, u sales.User) error {
	if _, err := s.users.InsertOne(ctx, u); err != nil {
		return insertErr(err, sales.KindUser, u.Email)
	}
	return nil
}

func (s *Store) UserByID(ctx context.Context, id sales.ID) (sales.User, error) {
	return findOne[sales.User](ctx, s.users, byID(id), sales.KindUser, id)
}

func (s *Store) UserByEmail(ctx context.Context, email string) (sales.User, error) {
	return findOne[sales.User](ctx, s.users, bson.M{"email": email}, sales.KindUser, sales.ID(email))
}

// ---- products ----

func (s *Store) CreateProduct(ctx context.Context, p sales.Product) error {
	if _, err := s.products.InsertOne(ctx, p); err != nil {
		return insertErr(err, sales.KindProduct, p.ID.String())
	}
	return nil
}

func (s *Store) Product(ctx context.Context, id sales.ID) (sales.Product, error) {
	return findOne[sales.Product](ctx, s.products, byID(id), sales.KindProduct, id)
}

func (s *Store) Products(ctx context.Context) ([]sales.Product, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}})
	return findAll[sales.Product](ctx, s.products, bson.M{}, opts)
}

func (s *Store) SearchProducts(ctx context.Context, text string, limit int) ([]sales.Product, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit))
	return findAll[sales.Product](ctx, s.products, bson.M{"$text": bson.M{"$search": text}}, opts)
}

func (s *Store) UpdateProduct(ctx context.Context, p sales.Product) error {
	return replaceOne(ctx, s.products, p.ID, p, sales.KindProduct, p.ID.String())
}

func (s *Store) DeleteProduct(ctx context.Context, id sales.ID) error {
	return deleteOne(ctx, s.products, id, sales.KindProduct)
}

// ---- clients ----

func (s *Store) CreateClient(ctx context.Context, c sales.Client) error {
	if _, err := s.clients.InsertOne(ctx, c); err != nil {
		return insertErr(err, sales.KindClient, c.Email)
	}
	return nil
}

func (s *Store) Client(ctx context.Context, id sales.ID) (sales.Client, error) {
	return findOne[sales.Client](ctx, s.clients, byID(id), sales.KindClient, id)
}

func (s *Store) ClientByEmail(ctx context.Context, email string) (sales.Client, error) {
	return findOne[sales.Client](ctx, s.clients, bson.M{"email": email}, sales.KindClient, sales.ID(email))
}

func (s *Store) Clients(ctx context.Context, f sales.ClientFilter) ([]sales.Client, error) {
	filter := bson.M{}
	if f.Owner != "" {
		filter["owner"] = f.Owner
	}
	return findAll[sales.Client](ctx, s.clients, filter, oldestFirst)
}

func (s *Store) UpdateClient(ctx context.Context, c sales.Client) error {
	return replaceOne(ctx, s.clients, c.ID, c, sales.KindClient, c.Email)
}

func (s *Store) DeleteClient(ctx context.Context, id sales.ID) error {
	return deleteOne(ctx, s.clients, id, sales.KindClient)
}

// ---- orders ----

func (s *Store) Order(ctx context.Context, id sales.ID) (sales.Order, error) {
	return findOne[sales.Order](ctx, s.orders, byID(id), sales.KindOrder, id)
}

func (s *Store) Orders(ctx context.Context, f sales.OrderFilter) ([]sales.Order, error) {
	filter := bson.M{}
	if f.Owner != "" {
		filter["owner"] = f.Owner
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	return findAll[sales.Order](ctx, s.orders, filter, oldestFirst)
}

func (s *Store) DeleteOrder(ctx context.Context, id sales.ID) error {
	return deleteOne(ctx, s.orders, id, sales.KindOrder)
}

// CommitOrder claims the order first when replacing, so a stale revision fails before
// any stock moves. Stock changes follow; if one of them or the insert fails, everything
// already applied is rolled back.
func (s *Store) CommitOrder(ctx context.Context, plan sales.Plan) (sales.Order, error) {
	o := plan.Order
	var prior *sales.Order
	if plan.Replace {
		p, err := s.claimOrder(ctx, o)
		if err != nil {
			return sales.Order{}, err
		}
		prior = &p
	}

	applied, err := s.applyChanges(ctx, plan.Changes)
	if err == nil && !plan.Replace {
		if _, ierr := s.orders.InsertOne(ctx, o); ierr != nil {
			err = insertErr(ierr, sales.KindOrder, o.ID.String())
		}
	}
	if err != nil {
		if rerr := s.rollback(ctx, applied, prior, o.Version); rerr != nil {
			return sales.Order{}, errors.Wrapf(rerr, "%v; rollback incomplete", err)
		}
		return sales.Order{}, err
	}
	return o, nil
}

// claimOrder swaps in o while the stored order is still at o.Version-1 and returns
// what it replaced.
func (s *Store) claimOrder(ctx context.Context, o sales.Order) (sales.Order, error) {
	var prior sales.Order
	err := s.orders.FindOneAndReplace(ctx, bson.M{"_id": o.ID, "version": o.Version - 1}, o).Decode(&prior)
	if err == nil {
		return prior, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return prior, errors.Wrapf(err, "replace order %s", o.ID)
	}
	n, err := s.orders.CountDocuments(ctx, byID(o.ID))
	if err != nil {
		return prior, errors.Wrapf(err, "check order %s", o.ID)
	}
	if n == 0 {
		return prior, sales.NotFound(sales.KindOrder, o.ID)
	}
	return prior, &sales.ConflictError{Kind: sales.KindOrder, ID: o.ID}
}

// applyChanges returns the changes that went through, also when a later one fails.
func (s *Store) applyChanges(ctx context.Context, changes []sales.StockChange) ([]sales.StockChange, error) {
	var applied []sales.StockChange
	for _, c := range changes {
		filter := byID(c.ProductID)
		if c.Delta < 0 {
			filter["stock"] = bson.M{"$gte": -c.Delta}
		}
		res, err := s.products.UpdateOne(ctx, filter, bson.M{"$inc": bson.M{"stock": c.Delta}})
		if err != nil {
			return applied, errors.Wrapf(err, "update stock of %s", c.ProductID)
		}
		if res.MatchedCount == 0 {
			if c.Delta > 0 {
				continue
			}
			p, err := s.Product(ctx, c.ProductID)
			if err != nil {
				return applied, err
			}
			return applied, &sales.InsufficientStockError{
				ProductID: p.ID, Name: p.Name, Requested: -c.Delta, Available: p.Stock,
			}
		}
		applied = append(applied, c)
	}
	return applied, nil
}

// rollback reverses applied stock changes and puts the prior order back, even if the
// request context is gone. Every step that fails is logged and counted; the first
// failure is returned.
func (s *Store) rollback(ctx context.Context, applied []sales.StockChange, prior *sales.Order, version int) error {
	ctx = context.WithoutCancel(ctx)
	var first error
	failed := func(target string, err error, fields ...zap.Field) {
		metrics.RollbackFailures.WithLabelValues(target).Inc()
		s.log.Error("order rollback failed", append(fields, zap.Error(err))...)
		if first == nil {
			first = err
		}
	}

	for i := len(applied) - 1; i >= 0; i-- {
		c := applied[i]
		_, err := s.products.UpdateOne(ctx, byID(c.ProductID), bson.M{"$inc": bson.M{"stock": -c.Delta}})
		if err != nil {
			failed("stock", errors.Wrapf(err, "restore stock of %s", c.ProductID),
				zap.String("product_id", c.ProductID.String()),
				zap.Int("delta", -c.Delta))
		}
	}

	if prior != nil {
		res, err := s.orders.ReplaceOne(ctx, bson.M{"_id": prior.ID, "version": version}, *prior)
		if err == nil && res.MatchedCount == 0 {
			err = errors.Errorf("order %s moved past version %d", prior.ID, version)
		}
		if err != nil {
			failed("order", errors.Wrapf(err, "restore order %s", prior.ID),
				zap.String("order_id", prior.ID.String()),
				zap.Int("version", prior.Version))
		}
	}
	return first
}

// ---- reports ----

func completedTotals(groupBy, from string, limit int) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "status", Value: sales.StatusCompleted}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$" + groupBy},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: "$total_cents"}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "total", Value: -1}, {Key: "_id", Value: 1}}}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: from},
			{Key: "localField", Value: "_id"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "entity"},
		}}},
		{{Key: "$unwind", Value: "$entity"}},
		{{Key: "$limit", Value: int64(limit)}},
	}
}

func aggregate[T any](ctx context.Context, coll *mongo.Collection, p mongo.Pipeline) ([]T, error) {
	cur, err := coll.Aggregate(ctx, p)
	if err != nil {
		return nil, errors.Wrap(err, "aggregate orders")
	}
	var out []T
	if err := cur.All(ctx, &out); err != nil {
		return nil, errors.Wrap(err, "decode aggregate")
	}
	return out, nil
}

func (s *Store) TopClients(ctx context.Context, limit int) ([]sales.ClientRank, error) {
	rows, err := aggregate[struct {
		Total  int          `bson:"total"`
		Client sales.Client `bson:"entity"`
	}](ctx, s.orders, completedTotals("client_id", s.clients.Name(), limit))
	if err != nil {
		return nil, err
	}
	out := make([]sales.ClientRank, 0, len(rows))
	for _, r := range rows {
		out = append(out, sales.ClientRank{Client: r.Client, TotalCents: r.Total})
	}
	return out, nil
}

func (s *Store) TopSalespeople(ctx context.Context, limit int) ([]sales.SalespersonRank, error) {
	rows, err := aggregate[struct {
		Total int        `bson:"total"`
		User  sales.User `bson:"entity"`
	}](ctx, s.orders, completedTotals("owner", s.users.Name(), limit))
	if err != nil {
		return nil, err
	}
	out := make([]sales.SalespersonRank, 0, len(rows))
	for _, r := range rows {
		out = append(out, sales.SalespersonRank{Salesperson: r.User, TotalCents: r.Total})
	}
	return out, nil
}
