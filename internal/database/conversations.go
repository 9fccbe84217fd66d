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

type ConversationStore struct {
	conversations *mongo.Collection
	messages      *mongo.Collection
}

func NewConversationStore(db *mongo.Database) *ConversationStore {
	return &ConversationStore{
		conversations: db.Collection("conversations"),
		messages:      db.Collection("messages"),
	}
}

// Touch upserts the conversation row for a session and bumps its
// message counter, returning the current state (used by the escalation
// context for conversation length and session duration).
func (s *ConversationStore) Touch(ctx context.Context, tenantID primitive.ObjectID, siteID, sessionKey, userEmail, userName string) (*models.Conversation, error) {
	now := time.Now()

	update := bson.M{
		"$setOnInsert": bson.M{
			"tenant_id":  tenantID,
			"site_id":    siteID,
			"started_at": now,
		},
		"$set": bson.M{"updated_at": now},
		"$inc": bson.M{"message_count": 1},
	}
	if userEmail != "" {
		update["$set"].(bson.M)["user_email"] = userEmail
	}
	if userName != "" {
		update["$set"].(bson.M)["user_name"] = userName
	}

	var conversation models.Conversation
	err := s.conversations.FindOneAndUpdate(ctx,
		bson.M{"tenant_id": tenantID, "session_key": sessionKey},
		update,
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&conversation)
	if err != nil {
		return nil, err
	}
	return &conversation, nil
}

func (s *ConversationStore) MarkEscalated(ctx context.Context, conversationID primitive.ObjectID) error {
	_, err := s.conversations.UpdateOne(ctx,
		bson.M{"_id": conversationID},
		bson.M{"$set": bson.M{"escalated": true, "updated_at": time.Now()}})
	return err
}

func (s *ConversationStore) InsertMessage(ctx context.Context, message *models.Message) error {
	message.Timestamp = time.Now()
	result, err := s.messages.InsertOne(ctx, message)
	if err != nil {
		return err
	}
	message.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

func (s *ConversationStore) History(ctx context.Context, tenantID primitive.ObjectID, conversationID string) (*models.ConversationHistory, error) {
	cursor, err := s.messages.Find(ctx,
		bson.M{"tenant_id": tenantID, "conversation_id": conversationID},
		options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	messages := make([]models.Message, 0)
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, err
	}

	history := &models.ConversationHistory{
		ConversationID: conversationID,
		Messages:       messages,
	}
	for _, msg := range messages {
		history.TotalTokens += msg.TokenCost
	}
	if len(messages) > 0 {
		history.CreatedAt = messages[0].Timestamp
		history.UpdatedAt = messages[len(messages)-1].Timestamp
	}
	return history, nil
}

// ListConversations returns a tenant's sessions, newest activity first.
func (s *ConversationStore) CountMessages(ctx context.Context, tenantID primitive.ObjectID) (int64, error) {
	return s.messages.CountDocuments(ctx, bson.M{"tenant_id": tenantID})
}

func (s *ConversationStore) ListConversations(ctx context.Context, tenantID primitive.ObjectID, limit int64) ([]models.Conversation, error) {
	cursor, err := s.conversations.Find(ctx, bson.M{"tenant_id": tenantID},
		options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}}).SetLimit(limit))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	conversations := make([]models.Conversation, 0)
	if err := cursor.All(ctx, &conversations); err != nil {
		return nil, err
	}
	return conversations, nil
}
