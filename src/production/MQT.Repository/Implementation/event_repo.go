package implementation

import (
	"context"
	"errors"
	"fmt"
	"time"

	mqtmodels "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Models"
	interfaces "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Repository/Interfaces"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoEventRepository struct {
	coll    *mongo.Collection
	timeout time.Duration
}

func NewMongoEventRepository(coll *mongo.Collection, timeout time.Duration) *MongoEventRepository {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &MongoEventRepository{coll: coll, timeout: timeout}
}

func (r *MongoEventRepository) InsertOne(ctx context.Context, e mqtmodels.DeviceEvent) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	_, err := r.coll.InsertOne(ctx, e.ToDocument())
	return err
}

func (r *MongoEventRepository) InsertMany(ctx context.Context, es []mqtmodels.DeviceEvent) error {
	if len(es) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 3*r.timeout)
	defer cancel()
	docs := make([]interface{}, 0, len(es))
	for i := range es {
		docs = append(docs, es[i].ToDocument())
	}
	_, err := r.coll.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	return err
}

func (r *MongoEventRepository) FindLatest(ctx context.Context, q interfaces.EventQuery) ([]mqtmodels.DeviceEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	filter := bson.D{
		{Key: mqtmodels.EventFieldDeviceID, Value: q.DeviceID},
		{Key: mqtmodels.EventFieldEntityName, Value: q.EntityName},
		{Key: mqtmodels.EventFieldModuleID, Value: q.ModuleID},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: mqtmodels.EventFieldCreatedAt, Value: -1}}).
		SetLimit(int64(q.Limit))

	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	events := make([]mqtmodels.DeviceEvent, 0, q.Limit)
	for cur.Next(ctx) {
		var doc bson.M
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		event, err := mqtmodels.EventFromDocument(doc)
		if err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		events = append(events, *event)
	}

	if err := cur.Err(); err != nil {
		return nil, err
	}

	return events, nil
}

func (r *MongoEventRepository) FindLatestByDeviceModule(ctx context.Context, deviceID string, moduleID int) (*mqtmodels.DeviceEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	filter := bson.D{
		{Key: mqtmodels.EventFieldDeviceID, Value: deviceID},
		{Key: mqtmodels.EventFieldModuleID, Value: moduleID},
	}
	opts := options.FindOne().SetSort(bson.D{{Key: mqtmodels.EventFieldCreatedAt, Value: -1}})

	var doc bson.M
	err := r.coll.FindOne(ctx, filter, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}

	return mqtmodels.EventFromDocument(doc)
}

// EnsureIndexes creates the lookup indexes used by the latest-event queries
func (r *MongoEventRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*r.timeout)
	defer cancel()
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: mqtmodels.EventFieldDeviceID, Value: 1},
				{Key: mqtmodels.EventFieldEntityName, Value: 1},
				{Key: mqtmodels.EventFieldModuleID, Value: 1},
				{Key: mqtmodels.EventFieldCreatedAt, Value: -1},
			},
			Options: options.Index().SetName("device_entity_module_created"),
		},
		{
			Keys: bson.D{
				{Key: mqtmodels.EventFieldDeviceID, Value: 1},
				{Key: mqtmodels.EventFieldModuleID, Value: 1},
				{Key: mqtmodels.EventFieldCreatedAt, Value: -1},
			},
			Options: options.Index().SetName("device_module_created"),
		},
	})
	return err
}
