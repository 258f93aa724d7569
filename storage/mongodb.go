package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"entitysvc/core"
	"entitysvc/metadata"
	"entitysvc/search"

	"github.com/spf13/cast"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// namespaceExists is the server code for creating an existing collection
const namespaceExists = 48

// MongoDB holds the MongoDB client and database. Transactions require the
// server to run as a replica set.
type MongoDB struct {
	Client   *mongo.Client
	Database *mongo.Database
	Logger   *zap.SugaredLogger
}

// NewMongoDB creates a new MongoDB connection
func NewMongoDB(uri, dbName string, maxPoolSize uint64, logger *zap.SugaredLogger) (*MongoDB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientOptions := options.Client().ApplyURI(uri).SetMaxPoolSize(maxPoolSize)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	logger.Info("Connected to MongoDB successfully")

	return &MongoDB{
		Client:   client,
		Database: client.Database(dbName),
		Logger:   logger,
	}, nil
}

// HealthCheck performs a health check on the MongoDB connection
func (m *MongoDB) HealthCheck(ctx context.Context) error {
	return m.Client.Ping(ctx, nil)
}

// Close closes the MongoDB connection
func (m *MongoDB) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.Client.Disconnect(ctx)
}

// Session opens a read-only session
func (m *MongoDB) Session(_ context.Context) (Session, error) {
	return &mongoSession{db: m.Database, logger: m.Logger}, nil
}

// Begin starts a client session with an open transaction
func (m *MongoDB) Begin(ctx context.Context) (Tx, error) {
	sess, err := m.Client.StartSession()
	if err != nil {
		return nil, fault("start session", err)
	}
	if err := sess.StartTransaction(); err != nil {
		sess.EndSession(ctx)
		return nil, fault("begin transaction", err)
	}
	return &mongoTx{
		mongoSession: mongoSession{db: m.Database, logger: m.Logger, sess: sess, uow: unitOfWork{writable: true}},
	}, nil
}

// EnsureSchema creates collections and indexes for unique and relation fields
func (m *MongoDB) EnsureSchema(ctx context.Context, descs []*metadata.EntityDescriptor) error {
	for _, d := range descs {
		if err := m.Database.CreateCollection(ctx, d.TableName()); err != nil {
			var ce mongo.CommandError
			if !errors.As(err, &ce) || ce.Code != namespaceExists {
				return fault("create collection "+d.TableName(), err)
			}
		}

		var models []mongo.IndexModel
		for _, name := range d.FieldNames() {
			f, _ := d.Field(name)
			if !f.Unique && !f.IsRelation() {
				continue
			}
			opts := options.Index().SetName("idx_" + d.TableName() + "_" + f.Name)
			if f.Unique {
				// absent values are omitted from documents, so sparse lets many rows leave it unset
				opts.SetUnique(true).SetSparse(true)
			}
			models = append(models, mongo.IndexModel{Keys: bson.D{{Key: f.Name, Value: 1}}, Options: opts})
		}
		if len(models) == 0 {
			continue
		}
		if _, err := m.Database.Collection(d.TableName()).Indexes().CreateMany(ctx, models); err != nil {
			return fault("create indexes "+d.TableName(), err)
		}
	}
	m.Logger.Infof("MongoDB schema ensured for %d entity types", len(descs))
	return nil
}

type mongoSession struct {
	db     *mongo.Database
	logger *zap.SugaredLogger
	sess   mongo.Session
	uow    unitOfWork
}

// bind attaches the transaction's session to ctx
func (s *mongoSession) bind(ctx context.Context) context.Context {
	if s.sess == nil {
		return ctx
	}
	return mongo.NewSessionContext(ctx, s.sess)
}

func (s *mongoSession) FindByID(ctx context.Context, desc *metadata.EntityDescriptor, id string) (*core.Entity, error) {
	return s.FindByUnique(ctx, desc, core.IdentifierField, id)
}

func (s *mongoSession) FindByUnique(ctx context.Context, desc *metadata.EntityDescriptor, field string, value any) (*core.Entity, error) {
	f, ok := desc.Field(field)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no field %q", core.ErrUnknownField, desc.Key(), field)
	}
	if !f.Unique {
		return nil, fmt.Errorf("%w: %s.%s is not unique", core.ErrInvalidParameter, desc.Key(), field)
	}

	var doc bson.M
	err := s.db.Collection(desc.TableName()).
		FindOne(s.bind(ctx), bson.M{search.MongoField(f.Name): documentValue(f, value)}).
		Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %s with %s %v", core.ErrNotFound, desc.Key(), field, value)
	}
	if err != nil {
		return nil, fault("find "+desc.TableName(), err)
	}
	return decodeDocument(desc, doc)
}

func (s *mongoSession) Execute(ctx context.Context, q *search.Query) ([]*core.Entity, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	filter, err := search.MongoFilter(q.Where)
	if err != nil {
		return nil, err
	}

	opts := options.Find().SetSort(search.MongoSort(q.Sort))
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	s.logger.Debugw("executing query", "entity", q.Entity.Key(), "filter", filter)
	ctx = s.bind(ctx)
	cursor, err := s.db.Collection(q.Entity.TableName()).Find(ctx, filter, opts)
	if err != nil {
		return nil, fault("find "+q.Entity.TableName(), err)
	}

	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fault("read cursor "+q.Entity.TableName(), err)
	}

	entities := make([]*core.Entity, 0, len(docs))
	for _, doc := range docs {
		e, err := decodeDocument(q.Entity, doc)
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	return entities, nil
}

func (s *mongoSession) Count(ctx context.Context, q *search.Query) (int64, error) {
	if q.Entity == nil {
		return 0, fmt.Errorf("%w: query has no entity type", core.ErrInvalidParameter)
	}
	filter, err := search.MongoFilter(q.Where)
	if err != nil {
		return 0, err
	}
	n, err := s.db.Collection(q.Entity.TableName()).CountDocuments(s.bind(ctx), filter)
	if err != nil {
		return 0, fault("count "+q.Entity.TableName(), err)
	}
	return n, nil
}

func (s *mongoSession) Persist(desc *metadata.EntityDescriptor, e *core.Entity) error {
	return s.uow.persist(desc, e)
}

func (s *mongoSession) Remove(desc *metadata.EntityDescriptor, e *core.Entity) error {
	return s.uow.remove(desc, e)
}

func (s *mongoSession) Flush(ctx context.Context) error {
	ctx = s.bind(ctx)
	return s.uow.drain(func(op pendingOp) error {
		return s.apply(ctx, op)
	})
}

func (s *mongoSession) apply(ctx context.Context, op pendingOp) error {
	coll := s.db.Collection(op.desc.TableName())
	byID := bson.M{search.MongoIDField: op.entity.ID}
	name := op.kind.String() + " " + op.desc.TableName()

	switch op.kind {
	case opInsert:
		doc := bson.D{{Key: search.MongoIDField, Value: op.entity.ID}}
		for _, f := range fieldsOf(op.desc, op.entity) {
			v, _ := op.entity.Get(f.Name)
			if v == nil {
				continue
			}
			doc = append(doc, bson.E{Key: f.Name, Value: documentValue(f, v)})
		}
		if _, err := coll.InsertOne(ctx, doc); err != nil {
			return fault(name, err)
		}

	case opUpdate:
		set, unset := bson.M{}, bson.M{}
		for _, f := range changedFieldsOf(op.desc, op.entity) {
			v, _ := op.entity.Get(f.Name)
			if v == nil {
				unset[f.Name] = ""
			} else {
				set[f.Name] = documentValue(f, v)
			}
		}
		update := bson.M{}
		if len(set) > 0 {
			update["$set"] = set
		}
		if len(unset) > 0 {
			update["$unset"] = unset
		}
		if len(update) == 0 {
			return nil
		}
		res, err := coll.UpdateOne(ctx, byID, update)
		if err != nil {
			return fault(name, err)
		}
		if res.MatchedCount == 0 {
			return fmt.Errorf("%w: %s %s", core.ErrNotFound, op.desc.Key(), op.entity.ID)
		}

	case opDelete:
		res, err := coll.DeleteOne(ctx, byID)
		if err != nil {
			return fault(name, err)
		}
		if res.DeletedCount == 0 {
			return fmt.Errorf("%w: %s %s", core.ErrNotFound, op.desc.Key(), op.entity.ID)
		}
	}

	s.logger.Debugw("flushed entity", "op", op.kind.String(), "entity", op.desc.Key(), "id", op.entity.ID)
	return nil
}

func decodeDocument(desc *metadata.EntityDescriptor, doc bson.M) (*core.Entity, error) {
	e := core.NewEntity(desc.Key())
	for key, raw := range doc {
		if key == search.MongoIDField {
			e.ID = cast.ToString(raw)
			continue
		}
		f, ok := desc.Field(key)
		if !ok || f.Name == core.IdentifierField {
			continue
		}
		v, err := decodeValue(desc, f, raw)
		if err != nil {
			return nil, fault("decode "+desc.TableName(), err)
		}
		e.Set(f.Name, v)
	}
	e.MarkClean()
	return e, nil
}

// mongoTx is a mongoSession with an open multi-document transaction
type mongoTx struct {
	mongoSession
	done bool
}

// Commit flushes any queued work and commits
func (t *mongoTx) Commit(ctx context.Context) error {
	if t.done {
		return ErrTxDone
	}
	if err := t.Flush(ctx); err != nil {
		return err
	}
	t.done = true
	defer t.sess.EndSession(ctx)

	if err := t.sess.CommitTransaction(ctx); err != nil {
		t.uow.discard()
		return fault("commit", err)
	}
	t.uow.settle()
	return nil
}

// Rollback aborts the transaction and discards queued work
func (t *mongoTx) Rollback(ctx context.Context) error {
	if t.done {
		return ErrTxDone
	}
	t.done = true
	t.uow.discard()
	defer t.sess.EndSession(ctx)

	if err := t.sess.AbortTransaction(ctx); err != nil {
		return fault("rollback", err)
	}
	return nil
}
