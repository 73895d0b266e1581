// Package mongostore implements the store port on MongoDB.
package mongostore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/greenstem/order-pipeline/internal/model"
	"github.com/greenstem/order-pipeline/internal/store"
)

// Store binds the pipeline collections to a Mongo database.
type Store struct {
	products     *mongo.Collection
	orders       *mongo.Collection
	reservations *mongo.Collection
	profiles     *mongo.Collection
	audit        *mongo.Collection
	intents      *mongo.Collection
}

// Connect dials uri and returns a Store over the named database.
func Connect(ctx context.Context, uri, db string) (*Store, *mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, model.Wrap(model.CodeInternal, err, "mongo connect")
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, nil, model.Wrap(model.CodeInternal, err, "mongo ping")
	}
	return New(client.Database(db)), client, nil
}

// New wires a Store onto an existing database handle.
func New(db *mongo.Database) *Store {
	return &Store{
		products:     db.Collection("products"),
		orders:       db.Collection("orders"),
		reservations: db.Collection("reservations"),
		profiles:     db.Collection("users"),
		audit:        db.Collection("auditLogs"),
		intents:      db.Collection("roleIntents"),
	}
}

func (s *Store) Products() store.Products       { return &products{c: s.products} }
func (s *Store) Orders() store.Orders           { return &orders{c: s.orders, res: s.reservations} }
func (s *Store) Profiles() store.Profiles       { return &profiles{c: s.profiles} }
func (s *Store) Audit() store.Audit             { return &audit{c: s.audit} }
func (s *Store) RoleIntents() store.RoleIntents { return &intents{c: s.intents} }

type products struct{ c *mongo.Collection }

func (p *products) Get(ctx context.Context, id string) (model.Product, error) {
	var doc model.Product
	err := p.c.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.Product{}, model.E(model.CodeNotFound, "product %s not found", id)
	}
	if err != nil {
		return model.Product{}, model.Wrap(model.CodeInternal, err, "find product")
	}
	return doc, nil
}

func (p *products) GetMulti(ctx context.Context, ids []string) (map[string]model.Product, error) {
	cursor, err := p.c.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, model.Wrap(model.CodeInternal, err, "find products")
	}
	var docs []model.Product
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, model.Wrap(model.CodeInternal, err, "decode products")
	}
	out := make(map[string]model.Product, len(docs))
	for _, d := range docs {
		out[d.ID] = d
	}
	return out, nil
}

func (p *products) Put(ctx context.Context, doc model.Product) error {
	_, err := p.c.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return model.Wrap(model.CodeInternal, err, "put product")
}

// DecrementStock relies on the filter and $inc applying atomically on a
// single document, so a concurrent decrement can never push stock below
// zero.
func (p *products) DecrementStock(ctx context.Context, id string, qty int64) error {
	filter := bson.M{"_id": id, "stock": bson.M{"$gte": qty}}
	update := bson.M{"$inc": bson.M{"stock": -qty}}
	err := p.c.FindOneAndUpdate(ctx, filter, update).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		// Either the product is missing or stock is short.
		if exErr := p.c.FindOne(ctx, bson.M{"_id": id}).Err(); errors.Is(exErr, mongo.ErrNoDocuments) {
			return model.E(model.CodeNotFound, "product %s not found", id)
		}
		return model.E(model.CodeInsufficientStock, "product %s stock below %d", id, qty)
	}
	return model.Wrap(model.CodeInternal, err, "decrement stock")
}

func (p *products) IncrementStock(ctx context.Context, id string, qty int64) error {
	res, err := p.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{"stock": qty}})
	if err != nil {
		return model.Wrap(model.CodeInternal, err, "increment stock")
	}
	if res.MatchedCount == 0 {
		return model.E(model.CodeNotFound, "product %s not found", id)
	}
	return nil
}

type orders struct{ c, res *mongo.Collection }

func (o *orders) Get(ctx context.Context, id string) (model.Order, error) {
	var doc model.Order
	err := o.c.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.Order{}, model.E(model.CodeNotFound, "order %s not found", id)
	}
	if err != nil {
		return model.Order{}, model.Wrap(model.CodeInternal, err, "find order")
	}
	return doc, nil
}

func (o *orders) Put(ctx context.Context, doc model.Order) error {
	_, err := o.c.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return model.Wrap(model.CodeInternal, err, "put order")
}

func (o *orders) GetReservation(ctx context.Context, orderID string) (model.Reservation, error) {
	var doc model.Reservation
	err := o.res.FindOne(ctx, bson.M{"_id": orderID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.Reservation{}, model.E(model.CodeNotFound, "reservation for order %s not found", orderID)
	}
	if err != nil {
		return model.Reservation{}, model.Wrap(model.CodeInternal, err, "find reservation")
	}
	return doc, nil
}

func (o *orders) PutReservation(ctx context.Context, r model.Reservation) error {
	_, err := o.res.ReplaceOne(ctx, bson.M{"_id": r.OrderID}, r, options.Replace().SetUpsert(true))
	return model.Wrap(model.CodeInternal, err, "put reservation")
}

type profiles struct{ c *mongo.Collection }

func (p *profiles) Get(ctx context.Context, uid string) (model.UserProfile, error) {
	var doc model.UserProfile
	err := p.c.FindOne(ctx, bson.M{"_id": uid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.UserProfile{}, model.E(model.CodeNotFound, "profile %s not found", uid)
	}
	if err != nil {
		return model.UserProfile{}, model.Wrap(model.CodeInternal, err, "find profile")
	}
	return doc, nil
}

func (p *profiles) Put(ctx context.Context, doc model.UserProfile) error {
	_, err := p.c.ReplaceOne(ctx, bson.M{"_id": doc.UID}, doc, options.Replace().SetUpsert(true))
	return model.Wrap(model.CodeInternal, err, "put profile")
}

func (p *profiles) SetRole(ctx context.Context, uid string, role model.Role, now time.Time) error {
	update := bson.M{"$set": bson.M{"role": role, "updated_at": now}}
	_, err := p.c.UpdateOne(ctx, bson.M{"_id": uid}, update, options.Update().SetUpsert(true))
	return model.Wrap(model.CodeInternal, err, "set role")
}

type audit struct{ c *mongo.Collection }

func (a *audit) Append(ctx context.Context, e model.AuditLogEntry) error {
	_, err := a.c.InsertOne(ctx, e)
	return model.Wrap(model.CodeInternal, err, "append audit entry")
}

func (a *audit) List(ctx context.Context) ([]model.AuditLogEntry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})
	cursor, err := a.c.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, model.Wrap(model.CodeInternal, err, "list audit entries")
	}
	var docs []model.AuditLogEntry
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, model.Wrap(model.CodeInternal, err, "decode audit entries")
	}
	return docs, nil
}

func (a *audit) Exists(ctx context.Context, action model.AuditAction, orderID string) (bool, error) {
	n, err := a.c.CountDocuments(ctx, bson.M{"action": action, "order_id": orderID})
	if err != nil {
		return false, model.Wrap(model.CodeInternal, err, "count audit entries")
	}
	return n > 0, nil
}

type intents struct{ c *mongo.Collection }

func (i *intents) Put(ctx context.Context, in model.RoleIntent) error {
	_, err := i.c.ReplaceOne(ctx, bson.M{"_id": in.UID}, in, options.Replace().SetUpsert(true))
	return model.Wrap(model.CodeInternal, err, "put role intent")
}

func (i *intents) Delete(ctx context.Context, uid string) error {
	_, err := i.c.DeleteOne(ctx, bson.M{"_id": uid})
	return model.Wrap(model.CodeInternal, err, "delete role intent")
}

func (i *intents) Pending(ctx context.Context) ([]model.RoleIntent, error) {
	cursor, err := i.c.Find(ctx, bson.M{})
	if err != nil {
		return nil, model.Wrap(model.CodeInternal, err, "find role intents")
	}
	var docs []model.RoleIntent
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, model.Wrap(model.CodeInternal, err, "decode role intents")
	}
	return docs, nil
}
