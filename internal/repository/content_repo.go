package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vcruvinelr/share-notes/internal/models"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// ContentRepositoryImpl stores note text and the append-only operation
// log in the MongoDB note_contents collection. One document per note:
//
//	{ _id, content: "...", operations: [...], created_at, updated_at }
//
// Real-time edits only append to operations; the content field is
// rewritten by explicit saves (REST PUT), which is why the gateway
// re-reads it on get_content instead of trusting its cache.
type ContentRepositoryImpl struct {
	contents *mongo.Collection
}

func NewContentRepository(db *mongo.Database) *ContentRepositoryImpl {
	return &ContentRepositoryImpl{contents: db.Collection("note_contents")}
}

type contentDoc struct {
	ID         bson.ObjectID      `bson:"_id,omitempty"`
	Content    string             `bson:"content"`
	Operations []models.Operation `bson:"operations"`
	CreatedAt  time.Time          `bson:"created_at"`
	UpdatedAt  time.Time          `bson:"updated_at"`
}

// CreateContent inserts a new content document and returns its hex ID,
// which the note row stores as ContentID.
func (r *ContentRepositoryImpl) CreateContent(ctx context.Context, content string) (string, error) {
	now := time.Now().UTC()
	doc := contentDoc{
		Content:    content,
		Operations: []models.Operation{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	res, err := r.contents.InsertOne(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("failed to create note content: %w", err)
	}
	oid, ok := res.InsertedID.(bson.ObjectID)
	if !ok {
		return "", fmt.Errorf("unexpected inserted id type %T", res.InsertedID)
	}
	return oid.Hex(), nil
}

// GetContent returns the durable text for a content ID.
func (r *ContentRepositoryImpl) GetContent(ctx context.Context, contentID string) (string, error) {
	oid, err := bson.ObjectIDFromHex(contentID)
	if err != nil {
		return "", fmt.Errorf("content %s: %w", contentID, ErrNotFound)
	}

	var doc contentDoc
	err = r.contents.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", fmt.Errorf("content %s: %w", contentID, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get note content: %w", err)
	}
	return doc.Content, nil
}

// UpdateContent overwrites the durable text (the out-of-band save path).
func (r *ContentRepositoryImpl) UpdateContent(ctx context.Context, contentID string, content string) error {
	oid, err := bson.ObjectIDFromHex(contentID)
	if err != nil {
		return fmt.Errorf("content %s: %w", contentID, ErrNotFound)
	}

	res, err := r.contents.UpdateOne(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": bson.M{"content": content, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("failed to update note content: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("content %s: %w", contentID, ErrNotFound)
	}
	return nil
}

// AppendOperation appends one edit to the operation log.
func (r *ContentRepositoryImpl) AppendOperation(ctx context.Context, contentID string, op *models.Operation) error {
	oid, err := bson.ObjectIDFromHex(contentID)
	if err != nil {
		return fmt.Errorf("content %s: %w", contentID, ErrNotFound)
	}

	res, err := r.contents.UpdateOne(ctx,
		bson.M{"_id": oid},
		bson.M{
			"$push": bson.M{"operations": op},
			"$set":  bson.M{"updated_at": time.Now().UTC()},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to append operation: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("content %s: %w", contentID, ErrNotFound)
	}
	return nil
}

// Operations returns the full operation log for a content document.
func (r *ContentRepositoryImpl) Operations(ctx context.Context, contentID string) ([]models.Operation, error) {
	oid, err := bson.ObjectIDFromHex(contentID)
	if err != nil {
		return nil, fmt.Errorf("content %s: %w", contentID, ErrNotFound)
	}

	var doc contentDoc
	err = r.contents.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("content %s: %w", contentID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get operations: %w", err)
	}
	return doc.Operations, nil
}

// DeleteContent removes the content document when its note is deleted.
func (r *ContentRepositoryImpl) DeleteContent(ctx context.Context, contentID string) error {
	oid, err := bson.ObjectIDFromHex(contentID)
	if err != nil {
		return fmt.Errorf("content %s: %w", contentID, ErrNotFound)
	}

	if _, err := r.contents.DeleteOne(ctx, bson.M{"_id": oid}); err != nil {
		return fmt.Errorf("failed to delete note content: %w", err)
	}
	return nil
}
