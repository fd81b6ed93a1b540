package mongodb

import (
	"context"
	"sort"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
)

var systemDatabases = map[string]bool{"admin": true, "local": true, "config": true}

// GetTables lists the collections of database (or the configured one) with
// their estimated document counts. Views and system collections are skipped.
func (a *Adapter) GetTables(ctx context.Context, database string) ([]adapter.Table, error) {
	db, err := a.database(database)
	if err != nil {
		return nil, err
	}
	names, err := db.ListCollectionNames(ctx, bson.D{{Key: "type", Value: "collection"}})
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_tables", err)
	}
	sort.Strings(names)

	tables := make([]adapter.Table, 0, len(names))
	for _, name := range names {
		if strings.HasPrefix(name, "system.") {
			continue
		}
		t := adapter.Table{Name: name, Schema: db.Name(), Type: adapter.TableKindCollection}
		if n, err := db.Collection(name).EstimatedDocumentCount(ctx); err == nil {
			t.RowCount = &n
		}
		tables = append(tables, t)
	}
	return tables, nil
}

// GetColumns infers fields from a sample of documents. _id is always the
// first column and the primary key.
func (a *Adapter) GetColumns(ctx context.Context, table, schema string) ([]adapter.Column, error) {
	db, err := a.database(schema)
	if err != nil {
		return nil, err
	}
	sampler := adapter.NewFieldSampler(a.config.SampleSize, IDField, classify)

	cursor, err := db.Collection(table).Find(ctx, bson.D{}, options.Find().SetLimit(int64(sampler.SampleSize())))
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_columns", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			continue
		}
		sampler.Observe(map[string]interface{}(doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_columns", err)
	}
	return sampler.Columns(), nil
}

type indexSpec struct {
	Name   string `bson:"name"`
	Key    bson.D `bson:"key"`
	Unique bool   `bson:"unique"`
}

// GetIndexes lists the indexes of a collection. The _id_ index is primary.
func (a *Adapter) GetIndexes(ctx context.Context, table, schema string) ([]adapter.Index, error) {
	db, err := a.database(schema)
	if err != nil {
		return nil, err
	}
	cursor, err := db.Collection(table).Indexes().List(ctx)
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_indexes", err)
	}
	defer cursor.Close(ctx)

	var specs []indexSpec
	if err := cursor.All(ctx, &specs); err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_indexes", err)
	}
	return indexesFromSpecs(specs), nil
}

func indexesFromSpecs(specs []indexSpec) []adapter.Index {
	indexes := make([]adapter.Index, 0, len(specs))
	for _, s := range specs {
		cols := make([]string, 0, len(s.Key))
		for _, e := range s.Key {
			cols = append(cols, e.Key)
		}
		primary := s.Name == "_id_"
		indexes = append(indexes, adapter.Index{
			Name:    s.Name,
			Columns: cols,
			Unique:  s.Unique || primary,
			Primary: primary,
		})
	}
	return indexes
}

type collectionSpec struct {
	Name    string `bson:"name"`
	Type    string `bson:"type"`
	Options struct {
		ViewOn   string `bson:"viewOn"`
		Pipeline bson.A `bson:"pipeline"`
	} `bson:"options"`
}

func (a *Adapter) listViews(ctx context.Context, database string, filter bson.D) (string, []collectionSpec, error) {
	db, err := a.database(database)
	if err != nil {
		return "", nil, err
	}
	filter = append(bson.D{{Key: "type", Value: "view"}}, filter...)
	cursor, err := db.ListCollections(ctx, filter)
	if err != nil {
		return "", nil, adapter.WrapError(a.GetDatabaseType(), "get_views", err)
	}
	defer cursor.Close(ctx)

	var specs []collectionSpec
	if err := cursor.All(ctx, &specs); err != nil {
		return "", nil, adapter.WrapError(a.GetDatabaseType(), "get_views", err)
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return db.Name(), specs, nil
}

// viewDefinition renders a view as {"viewOn": ..., "pipeline": [...]} in
// relaxed Extended JSON.
func viewDefinition(spec collectionSpec) string {
	def := bson.D{{Key: "viewOn", Value: spec.Options.ViewOn}, {Key: "pipeline", Value: spec.Options.Pipeline}}
	out, err := bson.MarshalExtJSON(def, false, false)
	if err != nil {
		return ""
	}
	return string(out)
}

// GetViews lists the views of database.
func (a *Adapter) GetViews(ctx context.Context, database string) ([]adapter.View, error) {
	dbName, specs, err := a.listViews(ctx, database, nil)
	if err != nil {
		return nil, err
	}
	views := make([]adapter.View, 0, len(specs))
	for _, s := range specs {
		views = append(views, adapter.View{Name: s.Name, Schema: dbName, Definition: viewDefinition(s)})
	}
	return views, nil
}

// GetViewDefinition returns the source collection and pipeline of a view.
func (a *Adapter) GetViewDefinition(ctx context.Context, view, schema string) (string, error) {
	_, specs, err := a.listViews(ctx, schema, bson.D{{Key: "name", Value: view}})
	if err != nil {
		return "", err
	}
	if len(specs) == 0 {
		return "", adapter.NewNotFoundError(a.GetDatabaseType(), "view", view)
	}
	return viewDefinition(specs[0]), nil
}

// GetDatabases lists user databases.
func (a *Adapter) GetDatabases(ctx context.Context) ([]string, error) {
	a.mu.RLock()
	client := a.client
	a.mu.RUnlock()
	if client == nil {
		return nil, adapter.NotConnected(a.GetDatabaseType())
	}
	names, err := client.ListDatabaseNames(ctx, bson.D{})
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_databases", err)
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		if !systemDatabases[n] {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out, nil
}

// GetUsers lists the users defined on the configured database.
func (a *Adapter) GetUsers(ctx context.Context) ([]adapter.User, error) {
	db, err := a.database("")
	if err != nil {
		return nil, err
	}
	var info struct {
		Users []struct {
			User string `bson:"user"`
			DB   string `bson:"db"`
		} `bson:"users"`
	}
	if err := db.RunCommand(ctx, bson.D{{Key: "usersInfo", Value: 1}}).Decode(&info); err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_users", err)
	}
	users := make([]adapter.User, 0, len(info.Users))
	for _, u := range info.Users {
		users = append(users, adapter.User{Name: u.User})
	}
	return users, nil
}

// GetRoles lists user defined and built-in roles of the configured database.
func (a *Adapter) GetRoles(ctx context.Context) ([]adapter.Role, error) {
	db, err := a.database("")
	if err != nil {
		return nil, err
	}
	var info struct {
		Roles []struct {
			Role string `bson:"role"`
		} `bson:"roles"`
	}
	cmd := bson.D{{Key: "rolesInfo", Value: 1}, {Key: "showBuiltinRoles", Value: true}}
	if err := db.RunCommand(ctx, cmd).Decode(&info); err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_roles", err)
	}
	roles := make([]adapter.Role, 0, len(info.Roles))
	for _, r := range info.Roles {
		roles = append(roles, adapter.Role{Name: r.Role})
	}
	return roles, nil
}
