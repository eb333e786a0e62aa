// data.go
package processor

import (
	"sort"
	"strconv"
	"strings"

	"github.com/go-gota/gota/series"

	"BiodivQuality/src/utils"
)

// ValueCount 类别值及其出现次数
type ValueCount struct {
	Value string
	Count int
}

// isMissing 缺失值判定：NA、空串、或浮点列中的NaN
func isMissing(el series.Element) bool {
	if el.IsNA() {
		return true
	}
	s := el.String()
	return s == "" || s == "NaN"
}

func missingCount(s series.Series) int {
	n := 0
	for i := 0; i < s.Len(); i++ {
		if isMissing(s.Elem(i)) {
			n++
		}
	}
	return n
}

// valueCounts 统计非缺失值的出现次数
func valueCounts(s series.Series) map[string]int {
	counts := make(map[string]int)
	for i := 0; i < s.Len(); i++ {
		el := s.Elem(i)
		if isMissing(el) {
			continue
		}
		counts[el.String()]++
	}
	return counts
}

// sortedCounts 按次数降序排列，次数相同按值升序，保证输出确定
func sortedCounts(counts map[string]int) []ValueCount {
	out := make([]ValueCount, 0, len(counts))
	for _, k := range utils.SortedKeys(counts) {
		out = append(out, ValueCount{Value: k, Count: counts[k]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})
	return out
}

// numericValues 提取列中可解析的数值，跳过缺失与非数值
func numericValues(s series.Series) []float64 {
	var vals []float64
	for i := 0; i < s.Len(); i++ {
		el := s.Elem(i)
		if isMissing(el) {
			continue
		}
		if s.Type() == series.Float || s.Type() == series.Int {
			vals = append(vals, el.Float())
			continue
		}
		str := strings.TrimSpace(el.String())
		if !utils.IsNumeric(str) {
			continue
		}
		if v, err := strconv.ParseFloat(str, 64); err == nil {
			vals = append(vals, v)
		}
	}
	return vals
}

// isNumericColumn 非缺失值全部为数值且至少有一个
func isNumericColumn(s series.Series) bool {
	if s.Type() == series.Float || s.Type() == series.Int {
		return true
	}
	seen := 0
	for i := 0; i < s.Len(); i++ {
		el := s.Elem(i)
		if isMissing(el) {
			continue
		}
		if !utils.IsNumeric(strings.TrimSpace(el.String())) {
			return false
		}
		seen++
	}
	return seen > 0
}

// rowKey 整行拼接为重复检测的键
func rowKey(record []string) string {
	return strings.Join(record, "\x1f")
}
