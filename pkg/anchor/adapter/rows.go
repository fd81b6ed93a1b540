package adapter

import (
	"fmt"
	"sort"
)

// MatchesWhere reports whether row equals every where value. Values are
// compared by their printed form so numbers decoded by different drivers
// still match.
func MatchesWhere(row, where map[string]interface{}) bool {
	for k, v := range where {
		if fmt.Sprint(row[k]) != fmt.Sprint(v) {
			return false
		}
	}
	return true
}

// SortRows orders rows in place for engines that cannot sort server side.
// Numbers compare numerically, everything else by printed form.
func SortRows(rows []map[string]interface{}, order []OrderBy) {
	if len(order) == 0 {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, o := range order {
			x, y := rows[i][o.Column], rows[j][o.Column]
			if fmt.Sprint(x) == fmt.Sprint(y) {
				continue
			}
			if o.Desc {
				return lessValue(y, x)
			}
			return lessValue(x, y)
		}
		return false
	})
}

// PageRows applies offset and limit. A zero limit means no limit.
func PageRows(rows []map[string]interface{}, offset, limit int) []map[string]interface{} {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(rows) {
		return nil
	}
	rows = rows[offset:]
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}

func lessValue(x, y interface{}) bool {
	fx, okx := toFloat(x)
	fy, oky := toFloat(y)
	if okx && oky {
		return fx < fy
	}
	return fmt.Sprint(x) < fmt.Sprint(y)
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
