package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
)

// GetTableData scans the table with the where map as a filter. Ordering and
// paging happen client side, so an ordered read scans up to max_rows items.
func (a *Adapter) GetTableData(ctx context.Context, table string, opts adapter.TableDataOptions) *adapter.QueryResult {
	started := time.Now()
	fail := func(err error) *adapter.QueryResult {
		return adapter.ErrorResult(adapter.WrapError(a.GetDatabaseType(), "get_table_data", err), started)
	}
	client, err := a.dynamoClient()
	if err != nil {
		return adapter.ErrorResult(err, started)
	}
	desc, err := a.describe(ctx, table)
	if err != nil {
		return adapter.ErrorResult(err, started)
	}

	input := &dynamodb.ScanInput{TableName: aws.String(table)}
	expr := newExpression()
	filter, err := expr.equals(opts.Where)
	if err != nil {
		return fail(fmt.Errorf("%w: %v", adapter.ErrInvalidArgument, err))
	}
	if filter != "" {
		input.FilterExpression = aws.String(filter)
		input.ExpressionAttributeNames = expr.Names()
		input.ExpressionAttributeValues = expr.Values()
	}

	want := a.config.GetInt("max_rows", 10000)
	if len(opts.OrderBy) == 0 && opts.Limit > 0 {
		want = opts.Offset + opts.Limit
	}

	var items []map[string]types.AttributeValue
	p := dynamodb.NewScanPaginator(client, input)
	for p.HasMorePages() && (want <= 0 || len(items) < want) {
		page, err := p.NextPage(ctx)
		if err != nil {
			return fail(err)
		}
		items = append(items, page.Items...)
	}

	rows, err := fromItems(items)
	if err != nil {
		return fail(err)
	}
	adapter.SortRows(rows, opts.OrderBy)
	rows = adapter.PageRows(rows, opts.Offset, opts.Limit)

	hash := ""
	if keys := keyNames(desc.KeySchema); len(keys) > 0 {
		hash = keys[0]
	}
	return adapter.NewResult(adapter.ColumnsFromRows(rows, hash, nil), rows, started)
}

// InsertRow puts one item. It fails when an item with the same key exists.
func (a *Adapter) InsertRow(ctx context.Context, table string, data map[string]interface{}) *adapter.QueryResult {
	started := time.Now()
	fail := func(err error) *adapter.QueryResult {
		return adapter.ErrorResult(adapter.WrapError(a.GetDatabaseType(), "insert_row", err), started)
	}
	desc, err := a.describe(ctx, table)
	if err != nil {
		return adapter.ErrorResult(err, started)
	}
	keys := keyNames(desc.KeySchema)
	for _, k := range keys {
		if _, ok := data[k]; !ok {
			return fail(fmt.Errorf("%w: missing key attribute %s", adapter.ErrInvalidArgument, k))
		}
	}
	item, err := toItem(data)
	if err != nil {
		return fail(fmt.Errorf("%w: %v", adapter.ErrInvalidArgument, err))
	}

	expr := newExpression()
	cond := expr.notExists(keys[0])
	put := &types.Put{
		TableName:                aws.String(table),
		Item:                     item,
		ConditionExpression:      aws.String(cond),
		ExpressionAttributeNames: expr.Names(),
	}
	if a.enqueue(types.TransactWriteItem{Put: put}) {
		return adapter.NewResult(nil, nil, started)
	}

	client, err := a.dynamoClient()
	if err != nil {
		return adapter.ErrorResult(err, started)
	}
	_, err = client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                put.TableName,
		Item:                     put.Item,
		ConditionExpression:      put.ConditionExpression,
		ExpressionAttributeNames: put.ExpressionAttributeNames,
	})
	if isConditionFailed(err) {
		return fail(fmt.Errorf("%w: item already exists", adapter.ErrInvalidArgument))
	}
	if err != nil {
		return fail(err)
	}
	return adapter.MutationResult(1, started)
}

// UpdateRow sets attributes on the item named by the key in where. Other
// where attributes become conditions. A missing or non-matching item
// affects zero rows.
func (a *Adapter) UpdateRow(ctx context.Context, table string, data, where map[string]interface{}) *adapter.QueryResult {
	started := time.Now()
	fail := func(err error) *adapter.QueryResult {
		return adapter.ErrorResult(adapter.WrapError(a.GetDatabaseType(), "update_row", err), started)
	}
	if len(data) == 0 {
		return fail(fmt.Errorf("%w: no attributes to update", adapter.ErrInvalidArgument))
	}
	desc, err := a.describe(ctx, table)
	if err != nil {
		return adapter.ErrorResult(err, started)
	}
	keys := keyNames(desc.KeySchema)
	for _, k := range keys {
		if _, ok := data[k]; ok {
			return fail(fmt.Errorf("%w: key attribute %s cannot be updated", adapter.ErrInvalidArgument, k))
		}
	}
	key, rest, err := splitKey(keys, where)
	if err != nil {
		return fail(err)
	}

	expr := newExpression()
	update, err := expr.set(data)
	if err != nil {
		return fail(fmt.Errorf("%w: %v", adapter.ErrInvalidArgument, err))
	}
	extra, err := expr.equals(rest)
	if err != nil {
		return fail(fmt.Errorf("%w: %v", adapter.ErrInvalidArgument, err))
	}
	upd := &types.Update{
		TableName:                 aws.String(table),
		Key:                       key,
		UpdateExpression:          aws.String(update),
		ConditionExpression:       aws.String(and(expr.exists(keys[0]), extra)),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}
	if a.enqueue(types.TransactWriteItem{Update: upd}) {
		return adapter.NewResult(nil, nil, started)
	}

	client, err := a.dynamoClient()
	if err != nil {
		return adapter.ErrorResult(err, started)
	}
	_, err = client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 upd.TableName,
		Key:                       upd.Key,
		UpdateExpression:          upd.UpdateExpression,
		ConditionExpression:       upd.ConditionExpression,
		ExpressionAttributeNames:  upd.ExpressionAttributeNames,
		ExpressionAttributeValues: upd.ExpressionAttributeValues,
	})
	if isConditionFailed(err) {
		return adapter.MutationResult(0, started)
	}
	if err != nil {
		return fail(err)
	}
	return adapter.MutationResult(1, started)
}

// DeleteRow deletes the item named by the key in where. Other where
// attributes become conditions.
func (a *Adapter) DeleteRow(ctx context.Context, table string, where map[string]interface{}) *adapter.QueryResult {
	started := time.Now()
	fail := func(err error) *adapter.QueryResult {
		return adapter.ErrorResult(adapter.WrapError(a.GetDatabaseType(), "delete_row", err), started)
	}
	desc, err := a.describe(ctx, table)
	if err != nil {
		return adapter.ErrorResult(err, started)
	}
	key, rest, err := splitKey(keyNames(desc.KeySchema), where)
	if err != nil {
		return fail(err)
	}

	expr := newExpression()
	cond, err := expr.equals(rest)
	if err != nil {
		return fail(fmt.Errorf("%w: %v", adapter.ErrInvalidArgument, err))
	}
	del := &types.Delete{
		TableName:                 aws.String(table),
		Key:                       key,
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}
	if cond != "" {
		del.ConditionExpression = aws.String(cond)
	}
	if a.enqueue(types.TransactWriteItem{Delete: del}) {
		return adapter.NewResult(nil, nil, started)
	}

	client, err := a.dynamoClient()
	if err != nil {
		return adapter.ErrorResult(err, started)
	}
	out, err := client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                 del.TableName,
		Key:                       del.Key,
		ConditionExpression:       del.ConditionExpression,
		ExpressionAttributeNames:  del.ExpressionAttributeNames,
		ExpressionAttributeValues: del.ExpressionAttributeValues,
		ReturnValues:              types.ReturnValueAllOld,
	})
	if isConditionFailed(err) {
		return adapter.MutationResult(0, started)
	}
	if err != nil {
		return fail(err)
	}
	if len(out.Attributes) == 0 {
		return adapter.MutationResult(0, started)
	}
	return adapter.MutationResult(1, started)
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}
