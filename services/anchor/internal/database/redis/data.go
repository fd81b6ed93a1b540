package redis

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
)

// readKey expands one key into rows shaped by its value type.
func readKey(ctx context.Context, client *redis.Client, key string) ([]map[string]interface{}, error) {
	t, err := client.Type(ctx, key).Result()
	if err != nil {
		return nil, err
	}

	var rows []map[string]interface{}
	switch t {
	case "none":
		return nil, nil
	case typeString:
		v, err := client.Get(ctx, key).Result()
		if err == redis.Nil {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		ttl, err := client.TTL(ctx, key).Result()
		if err != nil {
			return nil, err
		}
		rows = append(rows, map[string]interface{}{"key": key, "value": v, "ttl": ttlSeconds(ttl)})
	case typeHash:
		m, err := client.HGetAll(ctx, key).Result()
		if err != nil {
			return nil, err
		}
		fields := make([]string, 0, len(m))
		for f := range m {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		for _, f := range fields {
			rows = append(rows, map[string]interface{}{"key": key, "field": f, "value": m[f]})
		}
	case typeList:
		items, err := client.LRange(ctx, key, 0, -1).Result()
		if err != nil {
			return nil, err
		}
		for i, v := range items {
			rows = append(rows, map[string]interface{}{"key": key, "index": int64(i), "value": v})
		}
	case typeSet:
		members, err := client.SMembers(ctx, key).Result()
		if err != nil {
			return nil, err
		}
		sort.Strings(members)
		for _, m := range members {
			rows = append(rows, map[string]interface{}{"key": key, "member": m})
		}
	case typeZSet:
		zs, err := client.ZRangeWithScores(ctx, key, 0, -1).Result()
		if err != nil {
			return nil, err
		}
		for _, z := range zs {
			rows = append(rows, map[string]interface{}{"key": key, "member": fmt.Sprint(z.Member), "score": z.Score})
		}
	case typeStream:
		msgs, err := client.XRange(ctx, key, "-", "+").Result()
		if err != nil {
			return nil, err
		}
		for _, m := range msgs {
			rows = append(rows, map[string]interface{}{"key": key, "id": m.ID, "fields": m.Values})
		}
	default:
		rows = append(rows, map[string]interface{}{"key": key, "type": t})
	}
	return rows, nil
}

// ttlSeconds keeps the -1 (no expiry) and -2 (missing) markers.
func ttlSeconds(d time.Duration) int64 {
	if d < 0 {
		return int64(d)
	}
	return int64(d / time.Second)
}

// GetTableData reads the keys of a bucket in key order. A key in where
// reads that key only. Filtering, ordering and paging happen client side.
func (a *Adapter) GetTableData(ctx context.Context, table string, opts adapter.TableDataOptions) *adapter.QueryResult {
	started := time.Now()
	client, err := a.redisClient()
	if err != nil {
		return adapter.ErrorResult(err, started)
	}

	var keys []string
	where := opts.Where
	if k, ok := where["key"]; ok {
		key, err := fullKey(table, fmt.Sprint(k))
		if err != nil {
			return adapter.ErrorResult(adapter.WrapError(a.GetDatabaseType(), "get_table_data", err), started)
		}
		keys = []string{key}
		where = make(map[string]interface{}, len(opts.Where))
		for wk, wv := range opts.Where {
			where[wk] = wv
		}
		where["key"] = key
	} else if keys, err = scanKeys(ctx, client, table, a.scanLimit()); err != nil {
		return adapter.ErrorResult(adapter.WrapError(a.GetDatabaseType(), "get_table_data", err), started)
	}

	// Without an order the scan can stop once the page is filled.
	want := -1
	if len(opts.OrderBy) == 0 && opts.Limit > 0 {
		want = opts.Offset + opts.Limit
	}

	var rows []map[string]interface{}
	for _, k := range keys {
		if BucketOf(k) != table {
			continue
		}
		expanded, err := readKey(ctx, client, k)
		if err != nil {
			return adapter.ErrorResult(adapter.WrapError(a.GetDatabaseType(), "get_table_data", err), started)
		}
		for _, r := range expanded {
			if adapter.MatchesWhere(r, where) {
				rows = append(rows, r)
			}
		}
		if want > 0 && len(rows) >= want {
			break
		}
	}

	adapter.SortRows(rows, opts.OrderBy)
	rows = adapter.PageRows(rows, opts.Offset, opts.Limit)
	return adapter.NewResult(adapter.ColumnsFromRows(rows, "key", nil), rows, started)
}

// fullKey resolves a row key against its bucket. A key outside the bucket
// gets the bucket prefix.
func fullKey(bucket string, v interface{}) (string, error) {
	key, ok := v.(string)
	if !ok || key == "" {
		return "", fmt.Errorf("%w: key must be a non-empty string", adapter.ErrInvalidArgument)
	}
	if BucketOf(key) == bucket {
		return key, nil
	}
	if bucket == DefaultBucket {
		return "", fmt.Errorf("%w: key %q does not belong to bucket %s", adapter.ErrInvalidArgument, key, bucket)
	}
	return bucket + ":" + key, nil
}

// inferType picks the value type for an insert from the fields present.
func inferType(data map[string]interface{}) string {
	if t, ok := data["type"].(string); ok {
		return t
	}
	switch {
	case data["fields"] != nil:
		return typeStream
	case data["field"] != nil:
		return typeHash
	case data["score"] != nil:
		return typeZSet
	case data["member"] != nil:
		return typeSet
	}
	return typeString
}

// write runs the commands in order. It returns the last integer reply and
// whether the commands were queued by an open transaction.
func (a *Adapter) write(ctx context.Context, cmds ...[]interface{}) (int64, bool, error) {
	p, err := a.writer()
	if err != nil {
		return 0, false, err
	}
	var (
		last   int64
		queued bool
	)
	for _, args := range cmds {
		reply, err := do(ctx, p, args...).Result()
		if err != nil && err != redis.Nil {
			return 0, false, err
		}
		switch v := reply.(type) {
		case int64:
			last = v
		case string:
			queued = queued || v == "QUEUED"
		}
	}
	return last, queued, nil
}

func (a *Adapter) mutationResult(affected int64, queued bool, started time.Time) *adapter.QueryResult {
	if queued {
		return adapter.NewResult(nil, nil, started)
	}
	return adapter.MutationResult(affected, started)
}

// InsertRow writes one value. The type comes from the "type" field or the
// fields present: fields (stream), field (hash), score (zset), member (set),
// otherwise value (string, with optional ttl in seconds). Strings and hash
// fields are overwritten when they exist.
func (a *Adapter) InsertRow(ctx context.Context, table string, data map[string]interface{}) *adapter.QueryResult {
	started := time.Now()
	fail := func(err error) *adapter.QueryResult {
		return adapter.ErrorResult(adapter.WrapError(a.GetDatabaseType(), "insert_row", err), started)
	}
	key, err := fullKey(table, data["key"])
	if err != nil {
		return fail(err)
	}

	var cmds [][]interface{}
	switch t := inferType(data); t {
	case typeString:
		cmd := []interface{}{"SET", key, data["value"]}
		if ttl, ok := intValue(data["ttl"]); ok && ttl > 0 {
			cmd = append(cmd, "EX", ttl)
		}
		cmds = append(cmds, cmd)
	case typeHash:
		cmds = append(cmds, []interface{}{"HSET", key, data["field"], data["value"]})
	case typeList:
		cmds = append(cmds, []interface{}{"RPUSH", key, data["value"]})
	case typeSet:
		cmds = append(cmds, []interface{}{"SADD", key, data["member"]})
	case typeZSet:
		cmds = append(cmds, []interface{}{"ZADD", key, data["score"], data["member"]})
	case typeStream:
		fields, ok := data["fields"].(map[string]interface{})
		if !ok || len(fields) == 0 {
			return fail(fmt.Errorf("%w: stream entries need a fields map", adapter.ErrInvalidArgument))
		}
		id := "*"
		if s, ok := data["id"].(string); ok && s != "" {
			id = s
		}
		cmd := []interface{}{"XADD", key, id}
		for _, f := range adapter.SortedKeys(fields) {
			cmd = append(cmd, f, fields[f])
		}
		cmds = append(cmds, cmd)
	default:
		return fail(fmt.Errorf("%w: unsupported value type %q", adapter.ErrInvalidArgument, t))
	}
	if t := inferType(data); t != typeString {
		if ttl, ok := intValue(data["ttl"]); ok && ttl > 0 {
			cmds = append(cmds, []interface{}{"EXPIRE", key, ttl})
		}
	}

	for _, c := range cmds {
		for _, arg := range c {
			if arg == nil {
				return fail(fmt.Errorf("%w: missing value for %v", adapter.ErrInvalidArgument, c[0]))
			}
		}
	}
	_, queued, err := a.write(ctx, cmds...)
	if err != nil {
		return fail(err)
	}
	return a.mutationResult(1, queued, started)
}

func intValue(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	}
	return 0, false
}

// UpdateRow changes the value addressed by where. where must name the key;
// field, index and member select the element of a hash, list, set or
// sorted set. A ttl in data sets or clears (ttl <= 0) the expiry.
func (a *Adapter) UpdateRow(ctx context.Context, table string, data, where map[string]interface{}) *adapter.QueryResult {
	started := time.Now()
	fail := func(err error) *adapter.QueryResult {
		return adapter.ErrorResult(adapter.WrapError(a.GetDatabaseType(), "update_row", err), started)
	}
	client, err := a.redisClient()
	if err != nil {
		return adapter.ErrorResult(err, started)
	}
	if len(where) == 0 || where["key"] == nil {
		return fail(fmt.Errorf("%w: where must contain key", adapter.ErrInvalidArgument))
	}
	key, err := fullKey(table, where["key"])
	if err != nil {
		return fail(err)
	}
	t, err := client.Type(ctx, key).Result()
	if err != nil {
		return fail(err)
	}
	if t == "none" {
		return adapter.MutationResult(0, started)
	}

	var cmds [][]interface{}
	switch t {
	case typeString:
		if v, ok := data["value"]; ok {
			cmds = append(cmds, []interface{}{"SET", key, v, "KEEPTTL"})
		}
	case typeHash:
		set := []interface{}{"HSET", key}
		switch {
		case where["field"] != nil:
			set = append(set, where["field"], data["value"])
		case data["field"] != nil:
			set = append(set, data["field"], data["value"])
		default:
			for _, f := range adapter.SortedKeys(data) {
				if f != "key" && f != "ttl" {
					set = append(set, f, data[f])
				}
			}
		}
		if len(set) > 2 {
			cmds = append(cmds, set)
		}
	case typeList:
		idx, ok := intValue(where["index"])
		if !ok {
			return fail(fmt.Errorf("%w: list updates need an index", adapter.ErrInvalidArgument))
		}
		cmds = append(cmds, []interface{}{"LSET", key, idx, data["value"]})
	case typeSet:
		if where["member"] == nil || data["member"] == nil {
			return fail(fmt.Errorf("%w: set updates need the old and new member", adapter.ErrInvalidArgument))
		}
		cmds = append(cmds, []interface{}{"SREM", key, where["member"]}, []interface{}{"SADD", key, data["member"]})
	case typeZSet:
		member := where["member"]
		if member == nil {
			member = data["member"]
		}
		if member == nil || data["score"] == nil {
			return fail(fmt.Errorf("%w: sorted set updates need member and score", adapter.ErrInvalidArgument))
		}
		cmds = append(cmds, []interface{}{"ZADD", key, "XX", data["score"], member})
	default:
		return fail(fmt.Errorf("%w: %s values cannot be updated", adapter.ErrInvalidArgument, t))
	}
	if v, ok := data["ttl"]; ok {
		if ttl, ok := intValue(v); ok && ttl > 0 {
			cmds = append(cmds, []interface{}{"EXPIRE", key, ttl})
		} else {
			cmds = append(cmds, []interface{}{"PERSIST", key})
		}
	}
	if len(cmds) == 0 {
		return fail(fmt.Errorf("%w: no fields to update", adapter.ErrInvalidArgument))
	}

	_, queued, err := a.write(ctx, cmds...)
	if err != nil {
		return fail(err)
	}
	return a.mutationResult(1, queued, started)
}

// DeleteRow removes the key named in where, or one element of it when
// field (hash), member (set, sorted set) or id (stream) is given.
func (a *Adapter) DeleteRow(ctx context.Context, table string, where map[string]interface{}) *adapter.QueryResult {
	started := time.Now()
	fail := func(err error) *adapter.QueryResult {
		return adapter.ErrorResult(adapter.WrapError(a.GetDatabaseType(), "delete_row", err), started)
	}
	client, err := a.redisClient()
	if err != nil {
		return adapter.ErrorResult(err, started)
	}
	if len(where) == 0 || where["key"] == nil {
		return fail(fmt.Errorf("%w: where must contain key", adapter.ErrInvalidArgument))
	}
	key, err := fullKey(table, where["key"])
	if err != nil {
		return fail(err)
	}

	cmd := []interface{}{"DEL", key}
	switch {
	case where["field"] != nil:
		cmd = []interface{}{"HDEL", key, where["field"]}
	case where["id"] != nil:
		cmd = []interface{}{"XDEL", key, where["id"]}
	case where["member"] != nil:
		t, err := client.Type(ctx, key).Result()
		if err != nil {
			return fail(err)
		}
		if t == typeZSet {
			cmd = []interface{}{"ZREM", key, where["member"]}
		} else {
			cmd = []interface{}{"SREM", key, where["member"]}
		}
	}

	n, queued, err := a.write(ctx, cmd)
	if err != nil {
		return fail(err)
	}
	return a.mutationResult(n, queued, started)
}
