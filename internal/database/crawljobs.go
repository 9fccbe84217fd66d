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

// CrawlJobStore tracks site crawl jobs.
type CrawlJobStore struct {
	collection *mongo.Collection
}

func NewCrawlJobStore(db *mongo.Database) *CrawlJobStore {
	return &CrawlJobStore{collection: db.Collection("crawl_jobs")}
}

func (s *CrawlJobStore) Insert(ctx context.Context, job *models.CrawlJob) error {
	job.Status = "pending"
	job.CreatedAt = time.Now()
	job.UpdatedAt = job.CreatedAt
	result, err := s.collection.InsertOne(ctx, job)
	if err != nil {
		return err
	}
	job.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

func (s *CrawlJobStore) StartJob(ctx context.Context, jobID primitive.ObjectID) error {
	_, err := s.collection.UpdateOne(ctx, bson.M{"_id": jobID}, bson.M{"$set": bson.M{
		"status":     "crawling",
		"updated_at": time.Now(),
	}})
	return err
}

func (s *CrawlJobStore) FinishJob(ctx context.Context, jobID primitive.ObjectID, status string, pagesFound, pagesCrawled int, errMsg string) error {
	now := time.Now()
	update := bson.M{
		"status":        status,
		"pages_found":   pagesFound,
		"pages_crawled": pagesCrawled,
		"updated_at":    now,
		"completed_at":  now,
	}
	if errMsg != "" {
		update["error"] = errMsg
	}
	_, err := s.collection.UpdateOne(ctx, bson.M{"_id": jobID}, bson.M{"$set": update})
	return err
}

func (s *CrawlJobStore) Get(ctx context.Context, tenantID, jobID primitive.ObjectID) (*models.CrawlJob, error) {
	var job models.CrawlJob
	err := s.collection.FindOne(ctx, bson.M{"_id": jobID, "tenant_id": tenantID}).Decode(&job)
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *CrawlJobStore) List(ctx context.Context, tenantID primitive.ObjectID, limit int64) ([]models.CrawlJob, error) {
	if limit <= 0 {
		limit = 50
	}
	cursor, err := s.collection.Find(ctx, bson.M{"tenant_id": tenantID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	jobs := make([]models.CrawlJob, 0)
	if err := cursor.All(ctx, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}
