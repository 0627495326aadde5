package sink

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/turnere/Migrator-Tools/pkg/logger"
)

// MongoConfig represents the MongoDB summary target
type MongoConfig struct {
	ConnectionString string `json:"connectionString" yaml:"connectionString"`
	Database         string `json:"database" yaml:"database"`
	Collection       string `json:"collection" yaml:"collection"`
}

// MongoWriter stores one document per resource run, keyed by run id and
// resource
type MongoWriter struct {
	client     *mongo.Client
	collection *mongo.Collection
	log        *logger.Logger
}

// NewMongoWriter connects to MongoDB and verifies the connection
func NewMongoWriter(ctx context.Context, cfg MongoConfig, log *logger.Logger) (*MongoWriter, error) {
	if cfg.Collection == "" {
		cfg.Collection = "migration_runs"
	}

	clientOptions := options.Client().
		ApplyURI(cfg.ConnectionString).
		SetConnectTimeout(30 * time.Second).
		SetSocketTimeout(60 * time.Second)

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	log.Infof("Writing run summaries to MongoDB %s.%s", cfg.Database, cfg.Collection)

	return &MongoWriter{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
		log:        log,
	}, nil
}

func (w *MongoWriter) Name() string { return "mongodb" }

// Write upserts the summary so a re-closed run replaces its document
func (w *MongoWriter) Write(ctx context.Context, s Summary) error {
	doc := summaryDocument(s)
	_, err := w.collection.ReplaceOne(ctx,
		bson.D{{Key: "_id", Value: s.DocumentID()}},
		doc,
		options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to store summary: %w", err)
	}
	return nil
}

// Close disconnects the client
func (w *MongoWriter) Close(ctx context.Context) error {
	return w.client.Disconnect(ctx)
}

func summaryDocument(s Summary) bson.D {
	entries := make(bson.A, 0, len(s.Entries))
	for _, e := range s.Entries {
		entries = append(entries, e)
	}
	return bson.D{
		{Key: "_id", Value: s.DocumentID()},
		{Key: "runId", Value: s.RunID},
		{Key: "resource", Value: s.Resource},
		{Key: "startedAt", Value: s.StartedAt},
		{Key: "finishedAt", Value: s.FinishedAt},
		{Key: "created", Value: s.Created},
		{Key: "skipped", Value: s.Skipped},
		{Key: "failed", Value: s.Failed},
		{Key: "entries", Value: entries},
	}
}
