package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	countersCollection = "counters"
	projectsCollection = "projects"
	chatsCollection    = "chats"

	projectCounterID = "project_id"
)

// MongoStore implements Store using the MongoDB driver.
type MongoStore struct {
	client   *mongo.Client
	database string
}

// NewMongoStore connects to MongoDB and verifies the connection.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("pinging MongoDB: %w", err)
	}

	return &MongoStore{client: client, database: database}, nil
}

func (m *MongoStore) collection(name string) *mongo.Collection {
	return m.client.Database(m.database).Collection(name)
}

// NextProjectID increments the project counter with an upsert, so the first
// call on an empty database returns 1.
func (m *MongoStore) NextProjectID(ctx context.Context) (int64, error) {
	var counter struct {
		Value int64 `bson:"sequence_value"`
	}
	err := m.collection(countersCollection).FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: projectCounterID}},
		bson.D{{Key: "$inc", Value: bson.D{{Key: "sequence_value", Value: int64(1)}}}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("incrementing project counter: %w", err)
	}
	return counter.Value, nil
}

// InsertProject stores a new project document.
func (m *MongoStore) InsertProject(ctx context.Context, p *Project) error {
	if _, err := m.collection(projectsCollection).InsertOne(ctx, p); err != nil {
		return fmt.Errorf("inserting project %d: %w", p.ID, err)
	}
	return nil
}

// GetProject loads a project by id.
func (m *MongoStore) GetProject(ctx context.Context, id int64) (*Project, error) {
	var p Project
	err := m.collection(projectsCollection).FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("project %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading project %d: %w", id, err)
	}
	return &p, nil
}

// TouchProject records an access to a project.
func (m *MongoStore) TouchProject(ctx context.Context, id int64, at time.Time) error {
	res, err := m.collection(projectsCollection).UpdateOne(ctx,
		bson.D{{Key: "_id", Value: id}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "last_accessed", Value: at}}}},
	)
	if err != nil {
		return fmt.Errorf("updating project %d: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("project %d: %w", id, ErrNotFound)
	}
	return nil
}

// InsertChatMessage appends a message to the chat history.
func (m *MongoStore) InsertChatMessage(ctx context.Context, msg *ChatMessage) error {
	if _, err := m.collection(chatsCollection).InsertOne(ctx, msg); err != nil {
		return fmt.Errorf("inserting chat message: %w", err)
	}
	return nil
}

// ListChatMessages returns the chat's messages sorted by timestamp.
func (m *MongoStore) ListChatMessages(ctx context.Context, chatID string) ([]ChatMessage, error) {
	cursor, err := m.collection(chatsCollection).Find(ctx,
		bson.D{{Key: "chat_id", Value: chatID}},
		options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("listing chat %s: %w", chatID, err)
	}
	defer cursor.Close(ctx)

	msgs := []ChatMessage{}
	if err := cursor.All(ctx, &msgs); err != nil {
		return nil, fmt.Errorf("decoding chat %s: %w", chatID, err)
	}
	return msgs, nil
}

// Ping checks the connection.
func (m *MongoStore) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

// Close disconnects from MongoDB.
func (m *MongoStore) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
