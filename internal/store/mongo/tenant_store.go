package mongo

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/wolfeidau/orgtenant/internal/models"
	"github.com/wolfeidau/orgtenant/internal/store"
)

const (
	organizationsCollection = "organizations"
	adminsCollection        = "admins"
)

var _ store.TenantStore = (*TenantStore)(nil)

type organizationDoc struct {
	OrgID            string    `bson:"_id"`
	OrganizationName string    `bson:"organization_name"`
	CollectionName   string    `bson:"collection_name"`
	AdminID          string    `bson:"admin_id"`
	CreatedAt        time.Time `bson:"created_at"`
	UpdatedAt        time.Time `bson:"updated_at"`
}

func (d *organizationDoc) model() (*models.Organization, error) {
	orgID, err := uuid.Parse(d.OrgID)
	if err != nil {
		return nil, fmt.Errorf("invalid org_id %q: %w", d.OrgID, err)
	}
	adminID, err := uuid.Parse(d.AdminID)
	if err != nil {
		return nil, fmt.Errorf("invalid admin_id %q: %w", d.AdminID, err)
	}
	return &models.Organization{
		OrgID:            orgID,
		OrganizationName: d.OrganizationName,
		CollectionName:   d.CollectionName,
		AdminID:          adminID,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}, nil
}

type adminDoc struct {
	AdminID          string    `bson:"_id"`
	Email            string    `bson:"email"`
	PasswordHash     string    `bson:"password_hash"`
	OrganizationName string    `bson:"organization_name"`
	CreatedAt        time.Time `bson:"created_at"`
	UpdatedAt        time.Time `bson:"updated_at"`
}

func (d *adminDoc) model() (*models.Admin, error) {
	adminID, err := uuid.Parse(d.AdminID)
	if err != nil {
		return nil, fmt.Errorf("invalid admin_id %q: %w", d.AdminID, err)
	}
	return &models.Admin{
		AdminID:          adminID,
		Email:            d.Email,
		PasswordHash:     d.PasswordHash,
		OrganizationName: d.OrganizationName,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}, nil
}

// TenantStore implements store.TenantStore on a MongoDB database. Every
// tenant container is a collection of the same database.
type TenantStore struct {
	db *mongo.Database
}

// NewTenantStore creates a tenant store on the named database.
func NewTenantStore(client *mongo.Client, database string) *TenantStore {
	return &TenantStore{db: client.Database(database)}
}

// EnsureIndexes creates the unique indexes the lifecycle relies on.
// It is safe to call on every startup.
func (s *TenantStore) EnsureIndexes(ctx context.Context) error {
	indexes := []struct {
		collection string
		model      mongo.IndexModel
	}{
		{
			collection: organizationsCollection,
			model: mongo.IndexModel{
				Keys:    bson.D{{Key: "organization_name", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("organization_name_unique"),
			},
		},
		{
			collection: adminsCollection,
			model: mongo.IndexModel{
				Keys:    bson.D{{Key: "email", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("email_unique"),
			},
		},
		{
			collection: adminsCollection,
			model: mongo.IndexModel{
				Keys:    bson.D{{Key: "organization_name", Value: 1}},
				Options: options.Index().SetName("organization_name"),
			},
		},
	}

	for _, idx := range indexes {
		name, err := s.db.Collection(idx.collection).Indexes().CreateOne(ctx, idx.model)
		if err != nil {
			return fmt.Errorf("failed to create index on %s: %w", idx.collection, mapMongoError(err))
		}
		log.Debug().Str("collection", idx.collection).Str("index", name).Msg("Ensured index")
	}

	return nil
}

// Ping verifies the primary is reachable.
func (s *TenantStore) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, readpref.Primary())
}

// FindOrganizationByName retrieves an organization by name.
func (s *TenantStore) FindOrganizationByName(ctx context.Context, name string) (*models.Organization, error) {
	var doc organizationDoc
	err := s.db.Collection(organizationsCollection).FindOne(ctx, bson.D{{Key: "organization_name", Value: name}}).Decode(&doc)
	if err != nil {
		return nil, mapMongoError(err)
	}
	return doc.model()
}

// InsertOrganization inserts a new organization.
func (s *TenantStore) InsertOrganization(ctx context.Context, org *models.Organization) error {
	doc := organizationDoc{
		OrgID:            org.OrgID.String(),
		OrganizationName: org.OrganizationName,
		CollectionName:   org.CollectionName,
		AdminID:          org.AdminID.String(),
		CreatedAt:        org.CreatedAt,
		UpdatedAt:        org.UpdatedAt,
	}

	if _, err := s.db.Collection(organizationsCollection).InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert organization: %w", mapMongoError(err))
	}

	log.Debug().
		Str("org_id", doc.OrgID).
		Str("organization_name", doc.OrganizationName).
		Msg("Inserted organization")

	return nil
}

// UpdateOrganization sets the name and collection of one organization.
func (s *TenantStore) UpdateOrganization(ctx context.Context, orgID uuid.UUID, update store.OrganizationUpdate) error {
	set := bson.D{
		{Key: "organization_name", Value: update.OrganizationName},
		{Key: "collection_name", Value: update.CollectionName},
		{Key: "updated_at", Value: time.Now().UTC()},
	}

	res, err := s.db.Collection(organizationsCollection).UpdateByID(ctx, orgID.String(), bson.D{{Key: "$set", Value: set}})
	if err != nil {
		return fmt.Errorf("failed to update organization: %w", mapMongoError(err))
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}

	return nil
}

// DeleteOrganization deletes an organization by ID.
func (s *TenantStore) DeleteOrganization(ctx context.Context, orgID uuid.UUID) error {
	res, err := s.db.Collection(organizationsCollection).DeleteOne(ctx, bson.D{{Key: "_id", Value: orgID.String()}})
	if err != nil {
		return fmt.Errorf("failed to delete organization: %w", mapMongoError(err))
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *TenantStore) findAdmin(ctx context.Context, filter bson.D) (*models.Admin, error) {
	var doc adminDoc
	if err := s.db.Collection(adminsCollection).FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, mapMongoError(err)
	}
	return doc.model()
}

// FindAdminByEmail retrieves an admin by email.
func (s *TenantStore) FindAdminByEmail(ctx context.Context, email string) (*models.Admin, error) {
	return s.findAdmin(ctx, bson.D{{Key: "email", Value: email}})
}

// FindAdminByID retrieves an admin by ID.
func (s *TenantStore) FindAdminByID(ctx context.Context, adminID uuid.UUID) (*models.Admin, error) {
	return s.findAdmin(ctx, bson.D{{Key: "_id", Value: adminID.String()}})
}

// InsertAdmin inserts a new admin.
func (s *TenantStore) InsertAdmin(ctx context.Context, admin *models.Admin) error {
	doc := adminDoc{
		AdminID:          admin.AdminID.String(),
		Email:            admin.Email,
		PasswordHash:     admin.PasswordHash,
		OrganizationName: admin.OrganizationName,
		CreatedAt:        admin.CreatedAt,
		UpdatedAt:        admin.UpdatedAt,
	}

	if _, err := s.db.Collection(adminsCollection).InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert admin: %w", mapMongoError(err))
	}

	return nil
}

// UpdateAdminCredentials changes the email and/or password hash of one admin.
func (s *TenantStore) UpdateAdminCredentials(ctx context.Context, adminID uuid.UUID, update store.AdminCredentialsUpdate) error {
	set := bson.D{{Key: "updated_at", Value: time.Now().UTC()}}
	if update.Email != nil {
		set = append(set, bson.E{Key: "email", Value: *update.Email})
	}
	if update.PasswordHash != nil {
		set = append(set, bson.E{Key: "password_hash", Value: *update.PasswordHash})
	}

	res, err := s.db.Collection(adminsCollection).UpdateByID(ctx, adminID.String(), bson.D{{Key: "$set", Value: set}})
	if err != nil {
		return fmt.Errorf("failed to update admin: %w", mapMongoError(err))
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}

	return nil
}

// RenameAdminsOrganization rewrites the organization back-reference of every matching admin.
func (s *TenantStore) RenameAdminsOrganization(ctx context.Context, oldName, newName string) (int64, error) {
	res, err := s.db.Collection(adminsCollection).UpdateMany(ctx,
		bson.D{{Key: "organization_name", Value: oldName}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "organization_name", Value: newName},
			{Key: "updated_at", Value: time.Now().UTC()},
		}}},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to rename admin organization: %w", mapMongoError(err))
	}

	return res.ModifiedCount, nil
}

// DeleteAdmin removes one admin.
func (s *TenantStore) DeleteAdmin(ctx context.Context, adminID uuid.UUID) error {
	res, err := s.db.Collection(adminsCollection).DeleteOne(ctx, bson.D{{Key: "_id", Value: adminID.String()}})
	if err != nil {
		return fmt.Errorf("failed to delete admin: %w", mapMongoError(err))
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// DeleteAdminsByOrganization removes every admin referencing the organization.
func (s *TenantStore) DeleteAdminsByOrganization(ctx context.Context, organizationName string) (int64, error) {
	res, err := s.db.Collection(adminsCollection).DeleteMany(ctx, bson.D{{Key: "organization_name", Value: organizationName}})
	if err != nil {
		return 0, fmt.Errorf("failed to delete admins: %w", mapMongoError(err))
	}
	return res.DeletedCount, nil
}

func validateContainer(name string) error {
	if !store.ValidContainerName(name) {
		return fmt.Errorf("%w: %q", store.ErrInvalidContainerName, name)
	}
	return nil
}

// ListContainers returns the tenant collection names in sorted order.
func (s *TenantStore) ListContainers(ctx context.Context) ([]string, error) {
	filter := bson.D{{Key: "name", Value: bson.D{{Key: "$regex", Value: "^" + models.ContainerPrefix}}}}

	names, err := s.db.ListCollectionNames(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", mapMongoError(err))
	}

	containers := names[:0]
	for _, name := range names {
		if store.ValidContainerName(name) {
			containers = append(containers, name)
		}
	}
	slices.Sort(containers)

	return containers, nil
}

func (s *TenantStore) containerExists(ctx context.Context, name string) (bool, error) {
	names, err := s.db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return false, fmt.Errorf("failed to look up container %s: %w", name, mapMongoError(err))
	}
	return len(names) > 0, nil
}

// CreateContainer creates an empty collection if it doesn't exist yet.
func (s *TenantStore) CreateContainer(ctx context.Context, name string) error {
	if err := validateContainer(name); err != nil {
		return err
	}

	err := s.db.CreateCollection(ctx, name)
	if code, ok := commandErrorCode(err); ok && code == codeNamespaceExists {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to create container %s: %w", name, mapMongoError(err))
	}

	return nil
}

// RenameContainer renames a collection with the renameCollection admin command.
func (s *TenantStore) RenameContainer(ctx context.Context, from, to string) error {
	if err := validateContainer(from); err != nil {
		return err
	}
	if err := validateContainer(to); err != nil {
		return err
	}

	cmd := bson.D{
		{Key: "renameCollection", Value: s.db.Name() + "." + from},
		{Key: "to", Value: s.db.Name() + "." + to},
	}

	if err := s.db.Client().Database("admin").RunCommand(ctx, cmd).Err(); err != nil {
		return fmt.Errorf("failed to rename container %s to %s: %w", from, to, mapRenameError(err))
	}

	log.Debug().Str("from", from).Str("to", to).Msg("Renamed container")

	return nil
}

// DropContainer drops a collection; a missing collection is ignored.
func (s *TenantStore) DropContainer(ctx context.Context, name string) error {
	if err := validateContainer(name); err != nil {
		return err
	}

	if err := s.db.Collection(name).Drop(ctx); err != nil {
		return fmt.Errorf("failed to drop container %s: %w", name, mapMongoError(err))
	}

	return nil
}

// InsertDocuments inserts documents with an ordered insert. When a duplicate
// ID stops the insert, the documents written before it are removed again so
// the batch is all or nothing from the caller's point of view.
func (s *TenantStore) InsertDocuments(ctx context.Context, name string, docs []models.Document) error {
	if err := validateContainer(name); err != nil {
		return err
	}
	if len(docs) == 0 {
		return nil
	}

	batch := make([]any, len(docs))
	for i, doc := range docs {
		d := bson.D{{Key: "_id", Value: doc.ID}}
		for k, v := range doc.Fields {
			if k == "_id" {
				continue
			}
			d = append(d, bson.E{Key: k, Value: v})
		}
		batch[i] = d
	}

	coll := s.db.Collection(name)
	_, err := coll.InsertMany(ctx, batch, options.InsertMany().SetOrdered(true))
	if err == nil {
		return nil
	}

	if mongo.IsDuplicateKeyError(err) {
		var bwe mongo.BulkWriteException
		if errors.As(err, &bwe) && len(bwe.WriteErrors) > 0 && bwe.WriteErrors[0].Index > 0 {
			inserted := make([]string, 0, bwe.WriteErrors[0].Index)
			for _, doc := range docs[:bwe.WriteErrors[0].Index] {
				inserted = append(inserted, doc.ID)
			}
			if _, delErr := coll.DeleteMany(ctx, bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: inserted}}}}); delErr != nil {
				log.Error().Err(delErr).Str("container", name).Int("documents", len(inserted)).Msg("Failed to remove partial insert")
			}
		}
	}

	return fmt.Errorf("failed to insert documents into %s: %w", name, mapMongoError(err))
}

// ListDocuments returns every document of a collection in natural order.
func (s *TenantStore) ListDocuments(ctx context.Context, name string) ([]models.Document, error) {
	if err := validateContainer(name); err != nil {
		return nil, err
	}

	exists, err := s.containerExists(ctx, name)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, store.ErrContainerNotFound
	}

	cur, err := s.db.Collection(name).Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "$natural", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list documents in %s: %w", name, mapMongoError(err))
	}

	var raw []bson.M
	if err := cur.All(ctx, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode documents in %s: %w", name, mapMongoError(err))
	}

	docs := make([]models.Document, 0, len(raw))
	for _, m := range raw {
		doc := models.Document{ID: documentID(m["_id"]), Fields: make(map[string]any, len(m))}
		for k, v := range m {
			if k != "_id" {
				doc.Fields[k] = v
			}
		}
		docs = append(docs, doc)
	}

	return docs, nil
}

// documentID renders an _id written by another client as a string.
func documentID(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case primitive.ObjectID:
		return id.Hex()
	default:
		return fmt.Sprint(id)
	}
}
