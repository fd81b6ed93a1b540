package dynamodb

import (
	"context"
	"errors"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
)

func (a *Adapter) describe(ctx context.Context, table string) (*types.TableDescription, error) {
	client, err := a.dynamoClient()
	if err != nil {
		return nil, err
	}
	out, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(table)})
	var notFound *types.ResourceNotFoundException
	if errors.As(err, &notFound) {
		return nil, adapter.NewNotFoundError(a.GetDatabaseType(), "table", table)
	}
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "describe_table", err)
	}
	return out.Table, nil
}

// keyNames returns the hash key then the range key, if any.
func keyNames(schema []types.KeySchemaElement) []string {
	var hash, rng []string
	for _, k := range schema {
		if k.KeyType == types.KeyTypeHash {
			hash = append(hash, aws.ToString(k.AttributeName))
		} else {
			rng = append(rng, aws.ToString(k.AttributeName))
		}
	}
	return append(hash, rng...)
}

// GetTables lists tables with their approximate item counts.
func (a *Adapter) GetTables(ctx context.Context, database string) ([]adapter.Table, error) {
	client, err := a.dynamoClient()
	if err != nil {
		return nil, err
	}

	var names []string
	p := dynamodb.NewListTablesPaginator(client, &dynamodb.ListTablesInput{})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, adapter.WrapError(a.GetDatabaseType(), "get_tables", err)
		}
		names = append(names, page.TableNames...)
	}
	sort.Strings(names)

	tables := make([]adapter.Table, 0, len(names))
	for _, name := range names {
		t := adapter.Table{Name: name, Type: adapter.TableKindTable}
		if desc, err := a.describe(ctx, name); err == nil && desc.ItemCount != nil {
			n := *desc.ItemCount
			t.RowCount = &n
		}
		tables = append(tables, t)
	}
	return tables, nil
}

// GetColumns returns the key attributes with their declared types, then the
// other attributes found in a sample of items.
func (a *Adapter) GetColumns(ctx context.Context, table, schema string) ([]adapter.Column, error) {
	desc, err := a.describe(ctx, table)
	if err != nil {
		return nil, err
	}
	client, err := a.dynamoClient()
	if err != nil {
		return nil, err
	}

	sampler := adapter.NewFieldSampler(a.config.SampleSize, "", nil)
	out, err := client.Scan(ctx, &dynamodb.ScanInput{
		TableName: aws.String(table),
		Limit:     aws.Int32(int32(sampler.SampleSize())),
	})
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_columns", err)
	}
	rows, err := fromItems(out.Items)
	if err != nil {
		return nil, adapter.WrapError(a.GetDatabaseType(), "get_columns", err)
	}
	for _, r := range rows {
		sampler.Observe(r)
	}
	return mergeColumns(desc, sampler.Columns()), nil
}

// mergeColumns puts the key attributes first, typed from the attribute
// definitions, and appends the sampled attributes that are not keys.
func mergeColumns(desc *types.TableDescription, sampled []adapter.Column) []adapter.Column {
	defs := make(map[string]types.ScalarAttributeType, len(desc.AttributeDefinitions))
	for _, d := range desc.AttributeDefinitions {
		defs[aws.ToString(d.AttributeName)] = d.AttributeType
	}

	var cols []adapter.Column
	keys := make(map[string]bool)
	for _, k := range keyNames(desc.KeySchema) {
		keys[k] = true
		cols = append(cols, adapter.Column{Name: k, Type: attributeTypeName(defs[k]), PrimaryKey: true})
	}
	for _, c := range sampled {
		if keys[c.Name] {
			continue
		}
		if t, ok := defs[c.Name]; ok {
			c.Type = attributeTypeName(t)
		}
		c.Nullable = true
		cols = append(cols, c)
	}
	for i := range cols {
		cols[i].OrdinalPosition = i + 1
	}
	return cols
}

// GetIndexes returns the primary key, then global and local secondary
// indexes.
func (a *Adapter) GetIndexes(ctx context.Context, table, schema string) ([]adapter.Index, error) {
	desc, err := a.describe(ctx, table)
	if err != nil {
		return nil, err
	}
	return indexesFromDescription(desc), nil
}

func indexesFromDescription(desc *types.TableDescription) []adapter.Index {
	indexes := []adapter.Index{{
		Name:    "PRIMARY",
		Columns: keyNames(desc.KeySchema),
		Unique:  true,
		Primary: true,
	}}
	for _, g := range desc.GlobalSecondaryIndexes {
		indexes = append(indexes, adapter.Index{Name: aws.ToString(g.IndexName), Columns: keyNames(g.KeySchema)})
	}
	for _, l := range desc.LocalSecondaryIndexes {
		indexes = append(indexes, adapter.Index{Name: aws.ToString(l.IndexName), Columns: keyNames(l.KeySchema)})
	}
	return indexes
}
