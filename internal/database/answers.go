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

// AnswerStore reads curated answers for the resolver. Tenant and site
// scoping live in the query filter so an unscoped row can never leave
// the database layer.
type AnswerStore struct {
	collection *mongo.Collection
}

func NewAnswerStore(db *mongo.Database) *AnswerStore {
	return &AnswerStore{collection: db.Collection("answers")}
}

// FindActive returns the tenant's active answers, ordered by creation
// time so the resolver's tie-break is stable. A site-scoped query also
// matches tenant-wide answers (empty site_id).
func (s *AnswerStore) FindActive(ctx context.Context, tenantID primitive.ObjectID, siteID string) ([]models.CuratedAnswer, error) {
	filter := bson.M{
		"tenant_id": tenantID,
		"status":    models.AnswerStatusActive,
	}
	if siteID != "" {
		filter["$or"] = []bson.M{
			{"site_id": siteID},
			{"site_id": bson.M{"$in": []interface{}{nil, ""}}},
		}
	}

	cursor, err := s.collection.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	answers := make([]models.CuratedAnswer, 0)
	if err := cursor.All(ctx, &answers); err != nil {
		return nil, err
	}
	return answers, nil
}

func (s *AnswerStore) Insert(ctx context.Context, answer *models.CuratedAnswer) error {
	answer.CreatedAt = time.Now()
	answer.UpdatedAt = answer.CreatedAt
	result, err := s.collection.InsertOne(ctx, answer)
	if err != nil {
		return err
	}
	answer.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

func (s *AnswerStore) Get(ctx context.Context, tenantID, answerID primitive.ObjectID) (*models.CuratedAnswer, error) {
	var answer models.CuratedAnswer
	err := s.collection.FindOne(ctx, bson.M{"_id": answerID, "tenant_id": tenantID}).Decode(&answer)
	if err != nil {
		return nil, err
	}
	return &answer, nil
}

func (s *AnswerStore) List(ctx context.Context, tenantID primitive.ObjectID, siteID string) ([]models.CuratedAnswer, error) {
	filter := bson.M{"tenant_id": tenantID}
	if siteID != "" {
		filter["site_id"] = siteID
	}

	cursor, err := s.collection.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "priority", Value: -1}, {Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	answers := make([]models.CuratedAnswer, 0)
	if err := cursor.All(ctx, &answers); err != nil {
		return nil, err
	}
	return answers, nil
}

func (s *AnswerStore) Update(ctx context.Context, tenantID, answerID primitive.ObjectID, fields bson.M) error {
	fields["updated_at"] = time.Now()
	result, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": answerID, "tenant_id": tenantID},
		bson.M{"$set": fields})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

func (s *AnswerStore) Delete(ctx context.Context, tenantID, answerID primitive.ObjectID) error {
	result, err := s.collection.DeleteOne(ctx, bson.M{"_id": answerID, "tenant_id": tenantID})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// InsertSuggestions stores FAQ pairs found by the crawler as inactive
// answers tagged "suggested". Questions the tenant already has an
// answer for are skipped.
func (s *AnswerStore) InsertSuggestions(ctx context.Context, tenantID primitive.ObjectID, siteID string, faqs []models.FAQEntry) (int, error) {
	inserted := 0
	for _, faq := range faqs {
		count, err := s.collection.CountDocuments(ctx, bson.M{
			"tenant_id": tenantID,
			"question":  faq.Question,
		})
		if err != nil {
			return inserted, err
		}
		if count > 0 {
			continue
		}

		answer := models.CuratedAnswer{
			TenantID:  tenantID,
			SiteID:    siteID,
			Question:  faq.Question,
			Answer:    faq.Answer,
			Status:    models.AnswerStatusInactive,
			Tags:      []string{"suggested"},
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}
		if _, err := s.collection.InsertOne(ctx, answer); err != nil {
			return inserted, err
		}
		inserted++
	}
	return inserted, nil
}
