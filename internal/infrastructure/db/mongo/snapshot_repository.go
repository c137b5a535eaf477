package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/marketledger/marketledger/internal/core/domain"
	"github.com/marketledger/marketledger/internal/ledger"
)

const (
	grantsCollection        = "role_grants"
	productsCollection      = "products"
	bidsCollection          = "shipping_bids"
	notificationsCollection = "notifications"
)

// SnapshotRepository is the durable side of the ledger: a write-behind
// journal of committed records plus the boot-time load of everything
// journaled so far. The in-memory ledger stays authoritative; these
// collections are upserted after commit and replayed at startup.
type SnapshotRepository struct {
	db *mongo.Database
}

func NewSnapshotRepository(db *mongo.Database) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

type mongoGrant struct {
	Account   string `bson:"account"`
	Role      string `bson:"role"`
	GrantedAt int64  `bson:"granted_at"`
	// Order preserves grant order across reloads.
	Order int64 `bson:"order"`
}

type mongoBidList struct {
	ProductID int64    `bson:"_id"`
	Bidders   []string `bson:"bidders"`
}

// SaveGrant upserts one role grant keyed by (account, role).
func (r *SnapshotRepository) SaveGrant(ctx context.Context, grant domain.RoleGrant) error {
	n, err := r.db.Collection(grantsCollection).CountDocuments(ctx, bson.M{})
	if err != nil {
		return fmt.Errorf("count grants: %w", err)
	}

	filter := bson.M{"account": string(grant.Account), "role": string(grant.Tag)}
	update := bson.M{"$setOnInsert": mongoGrant{
		Account:   string(grant.Account),
		Role:      string(grant.Tag),
		GrantedAt: grant.GrantedAt.Unix(),
		Order:     n,
	}}
	_, err = r.db.Collection(grantsCollection).
		UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

// SaveProduct upserts the full product document keyed by id.
func (r *SnapshotRepository) SaveProduct(ctx context.Context, product domain.Product) error {
	filter := bson.M{"_id": product.ID}
	_, err := r.db.Collection(productsCollection).
		ReplaceOne(ctx, filter, product, options.Replace().SetUpsert(true))
	return err
}

// SaveBids replaces the product's whole ordered bid list. The list is small
// and append-mostly; replacing it wholesale keeps order trivially correct.
func (r *SnapshotRepository) SaveBids(ctx context.Context, productID int64, bidders []domain.Account) error {
	doc := mongoBidList{ProductID: productID, Bidders: make([]string, len(bidders))}
	for i, b := range bidders {
		doc.Bidders[i] = string(b)
	}

	_, err := r.db.Collection(bidsCollection).
		ReplaceOne(ctx, bson.M{"_id": productID}, doc, options.Replace().SetUpsert(true))
	return err
}

// SaveNotification inserts the outbox entry keyed by sequence number.
// Duplicate key errors are ignored: a replayed commit journals the same seq.
func (r *SnapshotRepository) SaveNotification(ctx context.Context, note domain.Notification) error {
	_, err := r.db.Collection(notificationsCollection).InsertOne(ctx, note)
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return err
}

// LoadSnapshot reads all four collections back into a ledger snapshot.
func (r *SnapshotRepository) LoadSnapshot(ctx context.Context) (ledger.Snapshot, error) {
	snap := ledger.Snapshot{Bids: make(map[int64][]domain.Account)}

	cur, err := r.db.Collection(grantsCollection).
		Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "order", Value: 1}}))
	if err != nil {
		return snap, fmt.Errorf("load grants: %w", err)
	}
	var grants []mongoGrant
	if err := cur.All(ctx, &grants); err != nil {
		return snap, fmt.Errorf("decode grants: %w", err)
	}
	for _, g := range grants {
		snap.Grants = append(snap.Grants, domain.RoleGrant{
			Account:   domain.Account(g.Account),
			Tag:       domain.RoleTag(g.Role),
			GrantedAt: time.Unix(g.GrantedAt, 0).UTC(),
		})
	}

	cur, err = r.db.Collection(productsCollection).
		Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return snap, fmt.Errorf("load products: %w", err)
	}
	if err := cur.All(ctx, &snap.Products); err != nil {
		return snap, fmt.Errorf("decode products: %w", err)
	}

	cur, err = r.db.Collection(bidsCollection).Find(ctx, bson.M{})
	if err != nil {
		return snap, fmt.Errorf("load bids: %w", err)
	}
	var bidLists []mongoBidList
	if err := cur.All(ctx, &bidLists); err != nil {
		return snap, fmt.Errorf("decode bids: %w", err)
	}
	for _, bl := range bidLists {
		bidders := make([]domain.Account, len(bl.Bidders))
		for i, b := range bl.Bidders {
			bidders[i] = domain.Account(b)
		}
		snap.Bids[bl.ProductID] = bidders
	}

	cur, err = r.db.Collection(notificationsCollection).
		Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return snap, fmt.Errorf("load notifications: %w", err)
	}
	if err := cur.All(ctx, &snap.Notifications); err != nil {
		return snap, fmt.Errorf("decode notifications: %w", err)
	}

	return snap, nil
}

// EnsureIndexes creates the unique (account, role) index on grants.
func (r *SnapshotRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := r.db.Collection(grantsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "account", Value: 1}, {Key: "role", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}
