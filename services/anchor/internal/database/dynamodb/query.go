package dynamodb

import (
	"context"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/redbco/redb-anchor/pkg/anchor/adapter"
)

// ExecuteQuery runs a PartiQL statement. Positional ? parameters are bound
// from params. SELECT follows NextToken until the result is exhausted or
// the configured row cap is reached. Writes report one affected item since
// PartiQL does not return a count.
func (a *Adapter) ExecuteQuery(ctx context.Context, stmt string, params ...interface{}) *adapter.QueryResult {
	started := time.Now()
	client, err := a.dynamoClient()
	if err != nil {
		return adapter.ErrorResult(err, started)
	}
	stmt = strings.TrimSpace(stmt)
	if stmt == "" {
		return adapter.ErrorResult(adapter.InvalidArgument(a.GetDatabaseType(), "execute", "empty statement"), started)
	}

	input := &dynamodb.ExecuteStatementInput{Statement: aws.String(stmt)}
	if len(params) > 0 {
		input.Parameters, err = attributeParams(params)
		if err != nil {
			return adapter.ErrorResult(adapter.InvalidArgument(a.GetDatabaseType(), "execute", err.Error()), started)
		}
	}

	if !adapter.IsQueryStatement(stmt) {
		if _, err := client.ExecuteStatement(ctx, input); err != nil {
			return adapter.ErrorResult(adapter.WrapError(a.GetDatabaseType(), "execute", err), started)
		}
		return adapter.MutationResult(1, started)
	}

	limit := a.config.GetInt("max_rows", 10000)
	var items []map[string]types.AttributeValue
	for {
		out, err := client.ExecuteStatement(ctx, input)
		if err != nil {
			return adapter.ErrorResult(adapter.WrapError(a.GetDatabaseType(), "execute", err), started)
		}
		items = append(items, out.Items...)
		if out.NextToken == nil || (limit > 0 && len(items) >= limit) {
			break
		}
		input.NextToken = out.NextToken
	}

	rows, err := fromItems(items)
	if err != nil {
		return adapter.ErrorResult(adapter.WrapError(a.GetDatabaseType(), "execute", err), started)
	}
	return adapter.NewResult(adapter.ColumnsFromRows(rows, "", nil), rows, started)
}

func attributeParams(params []interface{}) ([]types.AttributeValue, error) {
	out := make([]types.AttributeValue, len(params))
	for i, p := range params {
		av, err := toAttributeValue(p)
		if err != nil {
			return nil, err
		}
		out[i] = av
	}
	return out, nil
}
