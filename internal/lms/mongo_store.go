package lms

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/event"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/life-stream-dev/life-stream-go-scorm-session/internal/config"
	"github.com/life-stream-dev/life-stream-go-scorm-session/internal/logger"
	"github.com/life-stream-dev/life-stream-go-scorm-session/internal/scorm"
	"github.com/life-stream-dev/life-stream-go-scorm-session/internal/utils"
)

const AttemptCollectionName = "attempts"

// Element names contain dots, so the data model is stored as a list rather
// than as a subdocument.
type elementDocument struct {
	Name  string `bson:"name"`
	Value string `bson:"value"`
}

type attemptDocument struct {
	AttemptID string            `bson:"attempt_id"`
	LearnerID string            `bson:"learner_id"`
	CourseID  string            `bson:"course_id"`
	Version   string            `bson:"version"`
	Sessions  int               `bson:"sessions"`
	Elements  []elementDocument `bson:"elements"`
	CreatedAt time.Time         `bson:"created_at"`
	UpdatedAt time.Time         `bson:"updated_at"`
}

func toDocument(a *Attempt) *attemptDocument {
	doc := &attemptDocument{
		AttemptID: a.AttemptID,
		LearnerID: a.LearnerID,
		CourseID:  a.CourseID,
		Version:   string(a.Version),
		Sessions:  a.Sessions,
		Elements:  make([]elementDocument, 0, len(a.Data)),
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
	for name, value := range a.Data {
		doc.Elements = append(doc.Elements, elementDocument{Name: name, Value: value})
	}
	return doc
}

func (d *attemptDocument) attempt() *Attempt {
	a := &Attempt{
		AttemptID: d.AttemptID,
		LearnerID: d.LearnerID,
		CourseID:  d.CourseID,
		Version:   scorm.Version(d.Version),
		Sessions:  d.Sessions,
		Data:      make(map[string]string, len(d.Elements)),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	for _, e := range d.Elements {
		a.Data[e.Name] = e.Value
	}
	return a
}

type MongoStore struct {
	client     *mongo.Client
	attempts   *mongo.Collection
	opTimeout  time.Duration
	closeLimit time.Duration
}

func mongoURI(cfg config.MongoConfig) string {
	if cfg.Username == "" {
		return fmt.Sprintf("mongodb://%s:%d/", cfg.Host, cfg.Port)
	}
	return fmt.Sprintf("mongodb://%s:%s@%s:%d/?authSource=admin",
		url.QueryEscape(cfg.Username), url.QueryEscape(cfg.Password), cfg.Host, cfg.Port)
}

func mongoClientOptions(uri, appName string, cfg config.MongoConfig) *options.ClientOptions {
	clientOptions := options.Client().ApplyURI(uri).SetAppName(appName)
	if cfg.MinPoolSize > 0 {
		clientOptions.SetMinPoolSize(cfg.MinPoolSize)
	}
	if cfg.MaxPoolSize > 0 {
		clientOptions.SetMaxPoolSize(cfg.MaxPoolSize)
	}
	if d, err := utils.ParseDuration(cfg.ConnectIdleTimeout); err == nil {
		clientOptions.SetMaxConnIdleTime(d)
	}
	if d, err := utils.ParseDuration(cfg.ConnectTimeout); err == nil {
		clientOptions.SetConnectTimeout(d)
	}
	if d, err := utils.ParseDuration(cfg.SocketTimeout); err == nil {
		clientOptions.SetSocketTimeout(d)
	}
	if d, err := utils.ParseDuration(cfg.Heartbeat); err == nil {
		clientOptions.SetHeartbeatInterval(d)
	}
	if cfg.UseTLS {
		clientOptions.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	clientOptions.SetPoolMonitor(&event.PoolMonitor{
		Event: func(evt *event.PoolEvent) {
			switch evt.Type {
			case event.ConnectionCreated:
				logger.DebugF("Database connection created: %s #%d", evt.Address, evt.ConnectionID)
			case event.ConnectionClosed:
				logger.DebugF("Database connection closed: %s #%d (%s)", evt.Address, evt.ConnectionID, evt.Reason)
			}
		},
	})
	return clientOptions
}

// ConnectMongoStore connects using the store configuration, pings the server
// and makes sure the (learner_id, course_id) unique index exists.
func ConnectMongoStore(ctx context.Context, cfg config.StoreConfig) (*MongoStore, error) {
	return connectMongo(ctx, mongoURI(cfg.Mongo), cfg)
}

func connectMongo(ctx context.Context, uri string, cfg config.StoreConfig) (*MongoStore, error) {
	logger.DebugF("Connecting to database...")
	appName := "scorm-session"
	if global, err := config.GetConfig(); err == nil && global.AppName != "" {
		appName = global.AppName
	}

	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, mongoClientOptions(uri, appName, cfg.Mongo))
	if err != nil {
		return nil, fmt.Errorf("error occured while connecting to database: %w", err)
	}
	if err = client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(connectCtx)
		return nil, fmt.Errorf("error occured while pinging database: %w", err)
	}

	database := cfg.Mongo.Database
	if database == "" {
		database = "scorm"
	}
	attempts := client.Database(database).Collection(AttemptCollectionName)
	_, err = attempts.Indexes().CreateOne(connectCtx, mongo.IndexModel{
		Keys:    bson.D{{Key: "learner_id", Value: 1}, {Key: "course_id", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("attempts_learner_course_unique"),
	})
	if err != nil {
		_ = client.Disconnect(connectCtx)
		return nil, fmt.Errorf("error occured while creating database indexes: %w", err)
	}

	timeout := operationTimeout(cfg)
	return &MongoStore{client: client, attempts: attempts, opTimeout: timeout, closeLimit: timeout}, nil
}

func (ms *MongoStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, ms.opTimeout)
}

func wrapMongoError(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("unique key conflicts: %w", err)
	}
	return fmt.Errorf("database operation failed: %w", err)
}

func (ms *MongoStore) LoadAttempt(ctx context.Context, learnerID, courseID string) (*Attempt, error) {
	if learnerID == "" {
		return nil, ErrEmptyLearnerID
	}
	ctx, cancel := ms.withTimeout(ctx)
	defer cancel()

	var doc attemptDocument
	startTime := time.Now()
	err := ms.attempts.FindOne(ctx, bson.D{{Key: "learner_id", Value: learnerID}, {Key: "course_id", Value: courseID}}).Decode(&doc)
	logger.DebugF("attempt query cost: %v", time.Since(startTime))
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrAttemptNotFound
	}
	if err != nil {
		return nil, wrapMongoError(err)
	}
	return doc.attempt(), nil
}

func (ms *MongoStore) SaveAttempt(ctx context.Context, attempt *Attempt) error {
	if err := attempt.validate(); err != nil {
		return err
	}
	ctx, cancel := ms.withTimeout(ctx)
	defer cancel()

	filter := bson.D{{Key: "learner_id", Value: attempt.LearnerID}, {Key: "course_id", Value: attempt.CourseID}}
	result, err := ms.attempts.ReplaceOne(ctx, filter, toDocument(attempt), options.Replace().SetUpsert(true))
	if err != nil {
		return wrapMongoError(err)
	}
	logger.DebugF("attempt saved, matched=%d upserted=%v", result.MatchedCount, result.UpsertedID != nil)
	return nil
}

func (ms *MongoStore) DeleteAttempt(ctx context.Context, learnerID, courseID string) error {
	if learnerID == "" {
		return ErrEmptyLearnerID
	}
	ctx, cancel := ms.withTimeout(ctx)
	defer cancel()

	if _, err := ms.attempts.DeleteOne(ctx, bson.D{{Key: "learner_id", Value: learnerID}, {Key: "course_id", Value: courseID}}); err != nil {
		return wrapMongoError(err)
	}
	return nil
}

func (ms *MongoStore) Close(ctx context.Context) error {
	logger.InfoF("Closing database connection")
	ctx, cancel := context.WithTimeout(ctx, ms.closeLimit)
	defer cancel()
	return ms.client.Disconnect(ctx)
}
