package implementation

import (
	"context"
	"errors"
	"time"

	mqtmodels "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Models"
	interfaces "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Repository/Interfaces"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	siteFieldName      = "siteName"
	siteFieldDevices   = "Devices"
	siteFieldVersion   = "version"
	siteFieldUpdatedAt = "updatedAt"
)

type MongoSiteRepository struct {
	coll    *mongo.Collection
	timeout time.Duration
	now     func() time.Time
}

func NewMongoSiteRepository(coll *mongo.Collection, timeout time.Duration) *MongoSiteRepository {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &MongoSiteRepository{coll: coll, timeout: timeout, now: time.Now}
}

// Read site
func (r *MongoSiteRepository) GetSite(ctx context.Context, siteName string) (*mqtmodels.Site, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var site mqtmodels.Site
	err := r.coll.FindOne(ctx, bson.D{{Key: siteFieldName, Value: siteName}}).Decode(&site)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}

	return &site, nil
}

// Create site
func (r *MongoSiteRepository) CreateSite(ctx context.Context, site mqtmodels.Site) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if site.UpdatedAt.IsZero() {
		site.UpdatedAt = r.now().UTC()
	}
	site.Devices = withSubdocumentIDs(site.Devices)

	_, err := r.coll.InsertOne(ctx, site)
	if mongo.IsDuplicateKeyError(err) {
		return interfaces.ErrDuplicateSite
	}
	return err
}

// Update site devices under the expected version
func (r *MongoSiteRepository) ReplaceDevices(ctx context.Context, siteName string, expectedVersion int, devices []mqtmodels.Device) (*mqtmodels.Site, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	update := bson.D{
		{Key: "$set", Value: bson.D{
			{Key: siteFieldDevices, Value: withSubdocumentIDs(devices)},
			{Key: siteFieldUpdatedAt, Value: r.now().UTC()},
		}},
		{Key: "$inc", Value: bson.D{{Key: siteFieldVersion, Value: 1}}},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var site mqtmodels.Site
	err := r.coll.FindOneAndUpdate(ctx, versionFilter(siteName, expectedVersion), update, opts).Decode(&site)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, interfaces.ErrVersionConflict
		}
		return nil, err
	}

	return &site, nil
}

// EnsureIndexes creates the unique site name index
func (r *MongoSiteRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*r.timeout)
	defer cancel()
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: siteFieldName, Value: 1}},
		Options: options.Index().SetName("site_name_unique").SetUnique(true),
	})
	return err
}

// withSubdocumentIDs returns a copy of devices where every device and field
// carries an _id, keeping existing ones, the way the admin writer stores them.
func withSubdocumentIDs(devices []mqtmodels.Device) []mqtmodels.Device {
	out := mqtmodels.CloneDevices(devices)
	for i := range out {
		if out[i].ID == nil {
			id := primitive.NewObjectID()
			out[i].ID = &id
		}
		for j := range out[i].DynamicFields {
			if out[i].DynamicFields[j].ID == nil {
				id := primitive.NewObjectID()
				out[i].DynamicFields[j].ID = &id
			}
		}
	}
	return out
}

// Documents written before versioning have no version field and count as 0.
func versionFilter(siteName string, version int) bson.D {
	if version == 0 {
		return bson.D{
			{Key: siteFieldName, Value: siteName},
			{Key: "$or", Value: bson.A{
				bson.D{{Key: siteFieldVersion, Value: 0}},
				bson.D{{Key: siteFieldVersion, Value: bson.D{{Key: "$exists", Value: false}}}},
			}},
		}
	}
	return bson.D{
		{Key: siteFieldName, Value: siteName},
		{Key: siteFieldVersion, Value: version},
	}
}
