package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/wize-works/helpNINJA-sub004/models"
)

type TenantStore struct {
	collection *mongo.Collection
}

func NewTenantStore(db *mongo.Database) *TenantStore {
	return &TenantStore{collection: db.Collection("tenants")}
}

func (s *TenantStore) Create(ctx context.Context, tenant *models.Tenant) error {
	now := time.Now()
	tenant.CreatedAt = now
	tenant.UpdatedAt = now
	if tenant.Status == "" {
		tenant.Status = "active"
	}
	result, err := s.collection.InsertOne(ctx, tenant)
	if err != nil {
		return err
	}
	tenant.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

func (s *TenantStore) Update(ctx context.Context, tenantID primitive.ObjectID, fields bson.M) error {
	fields["updated_at"] = time.Now()
	result, err := s.collection.UpdateOne(ctx, bson.M{"_id": tenantID}, bson.M{"$set": fields})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

func (s *TenantStore) List(ctx context.Context) ([]models.Tenant, error) {
	cursor, err := s.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	tenants := make([]models.Tenant, 0)
	if err := cursor.All(ctx, &tenants); err != nil {
		return nil, err
	}
	return tenants, nil
}

// AddSite appends a site registration. The site arrives unverified;
// widget traffic from it is rejected until VerifySite runs, unless the
// deployment allows unverified sites.
func (s *TenantStore) AddSite(ctx context.Context, tenantID primitive.ObjectID, site models.Site) error {
	site.CreatedAt = time.Now()
	result, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": tenantID, "sites.domain": bson.M{"$ne": site.Domain}},
		bson.M{
			"$push": bson.M{"sites": site},
			"$set":  bson.M{"updated_at": time.Now()},
		})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("tenant not found or domain already registered")
	}
	return nil
}

func (s *TenantStore) VerifySite(ctx context.Context, tenantID primitive.ObjectID, siteID string) error {
	result, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": tenantID, "sites.id": siteID},
		bson.M{"$set": bson.M{"sites.$.verified": true, "updated_at": time.Now()}})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

func (s *TenantStore) Get(ctx context.Context, tenantID primitive.ObjectID) (*models.Tenant, error) {
	var tenant models.Tenant
	err := s.collection.FindOne(ctx, bson.M{"_id": tenantID}).Decode(&tenant)
	if err != nil {
		return nil, err
	}
	return &tenant, nil
}

// GetActive fetches a tenant and rejects anything not serving traffic.
func (s *TenantStore) GetActive(ctx context.Context, tenantID primitive.ObjectID) (*models.Tenant, error) {
	tenant, err := s.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if tenant.Status == "inactive" || tenant.Status == "suspended" {
		return nil, fmt.Errorf("tenant %s is %s", tenant.Name, tenant.Status)
	}
	return tenant, nil
}

// ConsumeTokens charges a reply's token cost against the tenant's
// budget. The filter re-checks the limit so two concurrent replies
// cannot push usage past it.
func (s *TenantStore) ConsumeTokens(ctx context.Context, tenantID primitive.ObjectID, cost int) error {
	result, err := s.collection.UpdateOne(ctx,
		bson.M{
			"_id": tenantID,
			"$expr": bson.M{"$lte": bson.A{
				bson.M{"$add": bson.A{"$token_used", cost}},
				"$token_limit",
			}},
		},
		bson.M{
			"$inc": bson.M{"token_used": cost},
			"$set": bson.M{"updated_at": time.Now()},
		})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("token limit exceeded")
	}
	return nil
}

// SiteForDomain matches an Origin/Referer host against the tenant's
// registered sites.
func SiteForDomain(tenant *models.Tenant, host string) (*models.Site, bool) {
	for i := range tenant.Sites {
		if tenant.Sites[i].Domain == host {
			return &tenant.Sites[i], true
		}
	}
	return nil, false
}

// SetAlertLevel records the highest token alert already mailed so the
// cron scan does not repeat it. An empty level clears the marker after
// a limit raise or usage reset.
func (s *TenantStore) SetAlertLevel(ctx context.Context, tenantID primitive.ObjectID, level string) error {
	update := bson.M{"$set": bson.M{"alert_level_sent": level, "updated_at": time.Now()}}
	if level == "" {
		update = bson.M{
			"$unset": bson.M{"alert_level_sent": ""},
			"$set":   bson.M{"updated_at": time.Now()},
		}
	}
	_, err := s.collection.UpdateOne(ctx, bson.M{"_id": tenantID}, update)
	return err
}

// EachTenant streams every tenant through fn; used by cron scans.
func (s *TenantStore) EachTenant(ctx context.Context, fn func(models.Tenant) error) error {
	cursor, err := s.collection.Find(ctx, bson.M{})
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var tenant models.Tenant
		if err := cursor.Decode(&tenant); err != nil {
			continue
		}
		if err := fn(tenant); err != nil {
			return err
		}
	}
	return cursor.Err()
}
