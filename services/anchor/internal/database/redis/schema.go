package redis

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
)

// Redis value types as reported by TYPE.
const (
	typeString = "string"
	typeHash   = "hash"
	typeList   = "list"
	typeSet    = "set"
	typeZSet   = "zset"
	typeStream = "stream"
)

const defaultScanLimit = 10000

var (
	colKey    = adapter.Column{Name: "key", Type: adapter.InferredString, PrimaryKey: true}
	colValue  = adapter.Column{Name: "value", Type: adapter.InferredString, Nullable: true}
	colTTL    = adapter.Column{Name: "ttl", Type: adapter.InferredNumber, Nullable: true}
	colField  = adapter.Column{Name: "field", Type: adapter.InferredString, Nullable: true}
	colIndex  = adapter.Column{Name: "index", Type: adapter.InferredNumber, Nullable: true}
	colMember = adapter.Column{Name: "member", Type: adapter.InferredString, Nullable: true}
	colScore  = adapter.Column{Name: "score", Type: adapter.InferredNumber, Nullable: true}
	colID     = adapter.Column{Name: "id", Type: adapter.InferredString, Nullable: true}
	colFields = adapter.Column{Name: "fields", Type: adapter.InferredMap, Nullable: true}
)

// typeColumns lists the row shape of each value type.
var typeColumns = map[string][]adapter.Column{
	typeString: {colKey, colValue, colTTL},
	typeHash:   {colKey, colField, colValue},
	typeList:   {colKey, colIndex, colValue},
	typeSet:    {colKey, colMember},
	typeZSet:   {colKey, colMember, colScore},
	typeStream: {colKey, colID, colFields},
}

// BucketOf returns the prefix before the first colon, or DefaultBucket.
func BucketOf(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return DefaultBucket
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func matchPattern(bucket string) string {
	if bucket == "" || bucket == DefaultBucket {
		return "*"
	}
	return globEscaper.Replace(bucket) + ":*"
}

func (a *Adapter) scanLimit() int {
	return a.config.GetInt("scan_limit", defaultScanLimit)
}

// scanKeys returns up to limit sorted keys. An empty bucket scans every key.
func scanKeys(ctx context.Context, client *redis.Client, bucket string, limit int) ([]string, error) {
	seen := make(map[string]bool)
	var keys []string
	var cursor uint64
	for {
		batch, next, err := client.Scan(ctx, cursor, matchPattern(bucket), 500).Result()
		if err != nil {
			return nil, err
		}
		for _, k := range batch {
			if seen[k] || (bucket != "" && BucketOf(k) != bucket) {
				continue
			}
			seen[k] = true
			keys = append(keys, k)
		}
		cursor = next
		if cursor == 0 || (limit > 0 && len(keys) >= limit) {
			break
		}
	}
	sort.Strings(keys)
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}
	return keys, nil
}

// GetTables groups the scanned keys into buckets. RowCount is the number of
// keys in the bucket, capped by the scan_limit option.
func (a *Adapter) GetTables(ctx context.Context, database string) ([]adapter.Table, error) {
	client, err := a.redisClient()
	if err != nil {
		return nil, err
	}
	keys, err := scanKeys(ctx, client, "", a.scanLimit())
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_tables", err)
	}
	return bucketTables(keys), nil
}

func bucketTables(keys []string) []adapter.Table {
	counts := make(map[string]int64)
	var names []string
	for _, k := range keys {
		b := BucketOf(k)
		if _, ok := counts[b]; !ok {
			names = append(names, b)
		}
		counts[b]++
	}
	sort.Strings(names)

	tables := make([]adapter.Table, 0, len(names))
	for _, n := range names {
		count := counts[n]
		tables = append(tables, adapter.Table{Name: n, Type: adapter.TableKindBucket, RowCount: &count})
	}
	return tables
}

// GetColumns unions the row shapes of the value types found in a sample of
// the bucket. key is always first.
func (a *Adapter) GetColumns(ctx context.Context, table, schema string) ([]adapter.Column, error) {
	client, err := a.redisClient()
	if err != nil {
		return nil, err
	}
	sampleSize := a.config.SampleSize
	if sampleSize <= 0 {
		sampleSize = adapter.DefaultSampleSize
	}
	keys, err := scanKeys(ctx, client, table, sampleSize)
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_columns", err)
	}

	var types []string
	for _, k := range keys {
		t, err := client.Type(ctx, k).Result()
		if err != nil {
			return nil, adapter.WrapError(a.GetDatabaseType(), "get_columns", err)
		}
		types = append(types, t)
	}
	return columnsForTypes(types), nil
}

func columnsForTypes(types []string) []adapter.Column {
	cols := []adapter.Column{colKey}
	seen := map[string]bool{colKey.Name: true}
	for _, t := range types {
		for _, c := range typeColumns[t] {
			if seen[c.Name] {
				continue
			}
			seen[c.Name] = true
			cols = append(cols, c)
		}
	}
	for i := range cols {
		cols[i].OrdinalPosition = i + 1
	}
	return cols
}

// GetIndexes returns no indexes, Redis has none.
func (a *Adapter) GetIndexes(ctx context.Context, table, schema string) ([]adapter.Index, error) {
	if _, err := a.redisClient(); err != nil {
		return nil, err
	}
	return []adapter.Index{}, nil
}

// GetDatabases lists the logical databases as db0..dbN-1 from CONFIG GET
// databases, falling back to the populated ones in INFO keyspace.
func (a *Adapter) GetDatabases(ctx context.Context) ([]string, error) {
	client, err := a.redisClient()
	if err != nil {
		return nil, err
	}
	if cfg, err := client.ConfigGet(ctx, "databases").Result(); err == nil {
		if n, err := strconv.Atoi(cfg["databases"]); err == nil && n > 0 {
			dbs := make([]string, n)
			for i := range dbs {
				dbs[i] = "db" + strconv.Itoa(i)
			}
			return dbs, nil
		}
	}

	info, err := client.Info(ctx, "keyspace").Result()
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_databases", err)
	}
	var dbs []string
	for k := range parseInfo(info) {
		if strings.HasPrefix(k, "db") {
			dbs = append(dbs, k)
		}
	}
	sort.Slice(dbs, func(i, j int) bool { return databaseIndex(dbs[i]) < databaseIndex(dbs[j]) })
	return dbs, nil
}
