package dynamodb

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// toAttributeValue converts a plain Go value. Maps and slices recurse;
// types without a direct mapping go through attributevalue.Marshal.
func toAttributeValue(v interface{}) (types.AttributeValue, error) {
	switch val := v.(type) {
	case nil:
		return &types.AttributeValueMemberNULL{Value: true}, nil
	case types.AttributeValue:
		return val, nil
	case string:
		return &types.AttributeValueMemberS{Value: val}, nil
	case bool:
		return &types.AttributeValueMemberBOOL{Value: val}, nil
	case []byte:
		return &types.AttributeValueMemberB{Value: val}, nil
	case int:
		return number(strconv.FormatInt(int64(val), 10)), nil
	case int8:
		return number(strconv.FormatInt(int64(val), 10)), nil
	case int16:
		return number(strconv.FormatInt(int64(val), 10)), nil
	case int32:
		return number(strconv.FormatInt(int64(val), 10)), nil
	case int64:
		return number(strconv.FormatInt(val, 10)), nil
	case uint:
		return number(strconv.FormatUint(uint64(val), 10)), nil
	case uint8:
		return number(strconv.FormatUint(uint64(val), 10)), nil
	case uint16:
		return number(strconv.FormatUint(uint64(val), 10)), nil
	case uint32:
		return number(strconv.FormatUint(uint64(val), 10)), nil
	case uint64:
		return number(strconv.FormatUint(val, 10)), nil
	case float32:
		return number(strconv.FormatFloat(float64(val), 'f', -1, 32)), nil
	case float64:
		return number(strconv.FormatFloat(val, 'f', -1, 64)), nil
	case json.Number:
		return number(val.String()), nil
	case time.Time:
		return &types.AttributeValueMemberS{Value: val.UTC().Format(time.RFC3339Nano)}, nil
	case []string:
		return &types.AttributeValueMemberSS{Value: val}, nil
	case map[string]interface{}:
		m, err := toItem(val)
		if err != nil {
			return nil, err
		}
		return &types.AttributeValueMemberM{Value: m}, nil
	case []interface{}:
		list := make([]types.AttributeValue, len(val))
		for i, item := range val {
			av, err := toAttributeValue(item)
			if err != nil {
				return nil, err
			}
			list[i] = av
		}
		return &types.AttributeValueMemberL{Value: list}, nil
	}
	av, err := attributevalue.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("cannot convert %T to an attribute value: %w", v, err)
	}
	return av, nil
}

func number(s string) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: s}
}

// toItem converts a row into an item.
func toItem(row map[string]interface{}) (map[string]types.AttributeValue, error) {
	item := make(map[string]types.AttributeValue, len(row))
	for k, v := range row {
		av, err := toAttributeValue(v)
		if err != nil {
			return nil, fmt.Errorf("attribute %s: %w", k, err)
		}
		item[k] = av
	}
	return item, nil
}

// fromAttributeValue converts an attribute value into a plain Go value.
// Numbers become int64 when integral, float64 when they fit, otherwise
// they keep their decimal text.
func fromAttributeValue(av types.AttributeValue) (interface{}, error) {
	switch val := av.(type) {
	case *types.AttributeValueMemberS:
		return val.Value, nil
	case *types.AttributeValueMemberN:
		return parseNumber(val.Value), nil
	case *types.AttributeValueMemberB:
		return val.Value, nil
	case *types.AttributeValueMemberBOOL:
		return val.Value, nil
	case *types.AttributeValueMemberNULL:
		return nil, nil
	case *types.AttributeValueMemberM:
		return fromItem(val.Value)
	case *types.AttributeValueMemberL:
		list := make([]interface{}, len(val.Value))
		for i, item := range val.Value {
			v, err := fromAttributeValue(item)
			if err != nil {
				return nil, err
			}
			list[i] = v
		}
		return list, nil
	case *types.AttributeValueMemberSS:
		return val.Value, nil
	case *types.AttributeValueMemberNS:
		nums := make([]interface{}, len(val.Value))
		for i, n := range val.Value {
			nums[i] = parseNumber(n)
		}
		return nums, nil
	case *types.AttributeValueMemberBS:
		return val.Value, nil
	}
	return nil, fmt.Errorf("unknown attribute value type %T", av)
}

func parseNumber(s string) interface{} {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// fromItem converts an item into a row.
func fromItem(item map[string]types.AttributeValue) (map[string]interface{}, error) {
	row := make(map[string]interface{}, len(item))
	for k, av := range item {
		v, err := fromAttributeValue(av)
		if err != nil {
			return nil, fmt.Errorf("attribute %s: %w", k, err)
		}
		row[k] = v
	}
	return row, nil
}

func fromItems(items []map[string]types.AttributeValue) ([]map[string]interface{}, error) {
	rows := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		row, err := fromItem(item)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func attributeTypeName(t types.ScalarAttributeType) string {
	switch t {
	case types.ScalarAttributeTypeS:
		return "string"
	case types.ScalarAttributeTypeN:
		return "number"
	case types.ScalarAttributeTypeB:
		return "binary"
	}
	return "unknown"
}
