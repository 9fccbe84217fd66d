package database

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wize-works/helpNINJA-sub004/models"
)

type RuleStore struct {
	rules       *mongo.Collection
	escalations *mongo.Collection
}

func NewRuleStore(db *mongo.Database) *RuleStore {
	return &RuleStore{
		rules:       db.Collection("rules"),
		escalations: db.Collection("escalations"),
	}
}

// FindEnabled returns the rules evaluated for a tenant's message. A
// site-scoped lookup also includes tenant-wide rules.
func (s *RuleStore) FindEnabled(ctx context.Context, tenantID primitive.ObjectID, siteID string) ([]models.EscalationRule, error) {
	filter := bson.M{"tenant_id": tenantID, "enabled": true}
	if siteID != "" {
		filter["$or"] = []bson.M{
			{"site_id": siteID},
			{"site_id": bson.M{"$in": []interface{}{nil, ""}}},
		}
	}

	cursor, err := s.rules.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	rules := make([]models.EscalationRule, 0)
	if err := cursor.All(ctx, &rules); err != nil {
		return nil, err
	}
	return rules, nil
}

func (s *RuleStore) Insert(ctx context.Context, rule *models.EscalationRule) error {
	now := time.Now()
	rule.CreatedAt = now
	rule.UpdatedAt = now
	result, err := s.rules.InsertOne(ctx, rule)
	if err != nil {
		return err
	}
	rule.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

func (s *RuleStore) List(ctx context.Context, tenantID primitive.ObjectID) ([]models.EscalationRule, error) {
	cursor, err := s.rules.Find(ctx, bson.M{"tenant_id": tenantID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	rules := make([]models.EscalationRule, 0)
	if err := cursor.All(ctx, &rules); err != nil {
		return nil, err
	}
	return rules, nil
}

func (s *RuleStore) Update(ctx context.Context, tenantID, ruleID primitive.ObjectID, fields bson.M) error {
	fields["updated_at"] = time.Now()
	result, err := s.rules.UpdateOne(ctx,
		bson.M{"_id": ruleID, "tenant_id": tenantID},
		bson.M{"$set": fields})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

func (s *RuleStore) Delete(ctx context.Context, tenantID, ruleID primitive.ObjectID) error {
	result, err := s.rules.DeleteOne(ctx, bson.M{"_id": ruleID, "tenant_id": tenantID})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

func (s *RuleStore) Get(ctx context.Context, tenantID, ruleID primitive.ObjectID) (*models.EscalationRule, error) {
	var rule models.EscalationRule
	err := s.rules.FindOne(ctx, bson.M{"_id": ruleID, "tenant_id": tenantID}).Decode(&rule)
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

func (s *RuleStore) RecordEscalation(ctx context.Context, escalation *models.Escalation) error {
	escalation.CreatedAt = time.Now()
	if escalation.Status == "" {
		escalation.Status = models.EscalationStatusPending
	}
	result, err := s.escalations.InsertOne(ctx, escalation)
	if err != nil {
		return err
	}
	escalation.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

func (s *RuleStore) MarkEscalationDispatched(ctx context.Context, escalationID primitive.ObjectID, dispatchErr error) error {
	now := time.Now()
	update := bson.M{
		"status":        models.EscalationStatusDispatched,
		"dispatched_at": now,
	}
	if dispatchErr != nil {
		update["status"] = models.EscalationStatusFailed
		update["dispatch_error"] = dispatchErr.Error()
	}
	_, err := s.escalations.UpdateOne(ctx, bson.M{"_id": escalationID}, bson.M{"$set": update})
	return err
}

func (s *RuleStore) GetEscalation(ctx context.Context, escalationID primitive.ObjectID) (*models.Escalation, error) {
	var escalation models.Escalation
	err := s.escalations.FindOne(ctx, bson.M{"_id": escalationID}).Decode(&escalation)
	if err != nil {
		return nil, err
	}
	return &escalation, nil
}

func (s *RuleStore) CountEscalations(ctx context.Context, tenantID primitive.ObjectID) (int64, error) {
	return s.escalations.CountDocuments(ctx, bson.M{"tenant_id": tenantID})
}

func (s *RuleStore) ListEscalations(ctx context.Context, tenantID primitive.ObjectID, limit int64) ([]models.Escalation, error) {
	cursor, err := s.escalations.Find(ctx, bson.M{"tenant_id": tenantID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	escalations := make([]models.Escalation, 0)
	if err := cursor.All(ctx, &escalations); err != nil {
		return nil, err
	}
	return escalations, nil
}
