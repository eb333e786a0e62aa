// quality.go
package processor

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"gonum.org/v1/gonum/stat"

	"BiodivQuality/src/config"
	"BiodivQuality/src/utils"
)

// 唯一值少于该数量的文本列才进入一致性报告
const maxCategoricalUniques = 10

// ColumnMissing 单列的缺失统计
type ColumnMissing struct {
	Column  string
	Count   int
	Percent float64
}

// OutlierStat 单列的IQR离群统计
type OutlierStat struct {
	Column       string
	Count        int
	Lower, Upper float64
	Min, Max     float64
}

// QualityReport 原始数据质量报告
type QualityReport struct {
	Rows int
	Cols int

	Missing       []ColumnMissing
	DuplicateRows int
	DuplicateName []ValueCount // 出现多次的学名

	Categorical map[string][]ValueCount // 低基数文本列的取值分布
	MixedTypes  map[string]int          // 文本列中数值单元格的数量
	Outliers    []OutlierStat

	InvalidLat int
	InvalidLon int

	DateSamples map[string][]string // 日期列的写法采样
	SpecialCols []string            // 含非字母数字字符的列名
}

// QualityAnalyzer 对原始数据集做体检，只读不改
type QualityAnalyzer struct {
	Dcfg *config.DataConfig
}

func NewQualityAnalyzer(dcfg *config.DataConfig) *QualityAnalyzer {
	return &QualityAnalyzer{Dcfg: dcfg}
}

// Analyze 运行全部质量检查
func (qa *QualityAnalyzer) Analyze(df dataframe.DataFrame) (*QualityReport, error) {
	if df.Nrow() == 0 {
		return nil, fmt.Errorf("数据集为空")
	}

	report := &QualityReport{
		Rows:        df.Nrow(),
		Cols:        df.Ncol(),
		Categorical: make(map[string][]ValueCount),
		MixedTypes:  make(map[string]int),
		DateSamples: make(map[string][]string),
	}

	qa.analyzeMissing(df, report)
	qa.analyzeDuplicates(df, report)
	qa.analyzeInconsistent(df, report)
	qa.analyzeOutliers(df, report)
	qa.analyzeMixedTypes(df, report)
	qa.analyzeDateFormats(df, report)
	qa.analyzeCoordinates(df, report)
	qa.analyzeStructure(df, report)

	return report, nil
}

// analyzeMissing 1. 缺失值分析
func (qa *QualityAnalyzer) analyzeMissing(df dataframe.DataFrame, r *QualityReport) {
	for _, col := range df.Names() {
		n := missingCount(df.Col(col))
		if n == 0 {
			continue
		}
		r.Missing = append(r.Missing, ColumnMissing{
			Column:  col,
			Count:   n,
			Percent: float64(n) / float64(df.Nrow()) * 100,
		})
	}
}

// analyzeDuplicates 2. 重复数据分析：整行重复 + 学名重复
func (qa *QualityAnalyzer) analyzeDuplicates(df dataframe.DataFrame, r *QualityReport) {
	seen := make(map[string]int)
	records := df.Records()
	for _, row := range records[1:] {
		seen[rowKey(row)]++
	}
	for _, c := range seen {
		if c > 1 {
			r.DuplicateRows += c - 1
		}
	}

	nameCol := qa.Dcfg.GetColumn("scientificName")
	if utils.HasColumn(df, nameCol) {
		counts := valueCounts(df.Col(nameCol))
		for _, vc := range sortedCounts(counts) {
			if vc.Count > 1 {
				r.DuplicateName = append(r.DuplicateName, vc)
			}
			if len(r.DuplicateName) >= 5 {
				break
			}
		}
	}
}

// analyzeInconsistent 3. 一致性分析：低基数文本列的取值分布
func (qa *QualityAnalyzer) analyzeInconsistent(df dataframe.DataFrame, r *QualityReport) {
	for _, col := range df.Names() {
		s := df.Col(col)
		if isNumericColumn(s) {
			continue
		}
		counts := valueCounts(s)
		if len(counts) == 0 || len(counts) >= maxCategoricalUniques {
			continue
		}
		r.Categorical[col] = sortedCounts(counts)
	}
}

// analyzeOutliers 4. 离群值分析（1.5倍IQR）
func (qa *QualityAnalyzer) analyzeOutliers(df dataframe.DataFrame, r *QualityReport) {
	for _, col := range df.Names() {
		s := df.Col(col)
		if !isNumericColumn(s) {
			continue
		}
		vals := numericValues(s)
		if len(vals) < 4 {
			continue
		}
		sorted := append([]float64(nil), vals...)
		sort.Float64s(sorted)

		q1 := stat.Quantile(0.25, stat.Empirical, sorted, nil)
		q3 := stat.Quantile(0.75, stat.Empirical, sorted, nil)
		iqr := q3 - q1
		lower := q1 - 1.5*iqr
		upper := q3 + 1.5*iqr

		count := 0
		for _, v := range vals {
			if v < lower || v > upper {
				count++
			}
		}
		if count == 0 {
			continue
		}
		r.Outliers = append(r.Outliers, OutlierStat{
			Column: col,
			Count:  count,
			Lower:  lower,
			Upper:  upper,
			Min:    sorted[0],
			Max:    sorted[len(sorted)-1],
		})
	}
}

// analyzeMixedTypes 5. 类型分析：文本列中部分单元格是数值
func (qa *QualityAnalyzer) analyzeMixedTypes(df dataframe.DataFrame, r *QualityReport) {
	for _, col := range df.Names() {
		s := df.Col(col)
		if isNumericColumn(s) {
			continue
		}
		numeric := 0
		total := 0
		for i := 0; i < s.Len(); i++ {
			el := s.Elem(i)
			if isMissing(el) {
				continue
			}
			total++
			if utils.IsNumeric(strings.TrimSpace(el.String())) {
				numeric++
			}
		}
		if numeric > 0 && numeric < total {
			r.MixedTypes[col] = numeric
		}
	}
}

// analyzeDateFormats 6. 日期写法采样
func (qa *QualityAnalyzer) analyzeDateFormats(df dataframe.DataFrame, r *QualityReport) {
	for _, col := range df.Names() {
		if !strings.Contains(strings.ToLower(col), "date") {
			continue
		}
		s := df.Col(col)
		var samples []string
		seen := make(map[string]bool)
		for i := 0; i < s.Len() && len(samples) < 5; i++ {
			el := s.Elem(i)
			if isMissing(el) || seen[el.String()] {
				continue
			}
			seen[el.String()] = true
			samples = append(samples, el.String())
		}
		if len(samples) > 0 {
			r.DateSamples[col] = samples
		}
	}
}

// analyzeCoordinates 7. 坐标取值范围检查
func (qa *QualityAnalyzer) analyzeCoordinates(df dataframe.DataFrame, r *QualityReport) {
	latCol := qa.Dcfg.GetColumn("lat")
	lonCol := qa.Dcfg.GetColumn("lon")

	if utils.HasColumn(df, latCol) {
		r.InvalidLat = countOutOfRange(df, latCol, -90, 90)
	}
	if utils.HasColumn(df, lonCol) {
		r.InvalidLon = countOutOfRange(df, lonCol, -180, 180)
	}
}

func countOutOfRange(df dataframe.DataFrame, col string, lo, hi float64) int {
	s := df.Col(col)
	n := 0
	for i := 0; i < s.Len(); i++ {
		el := s.Elem(i)
		if isMissing(el) {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(el.String()), 64)
		if err != nil {
			continue
		}
		if v < lo || v > hi {
			n++
		}
	}
	return n
}

// analyzeStructure 8. 结构性检查
func (qa *QualityAnalyzer) analyzeStructure(df dataframe.DataFrame, r *QualityReport) {
	for _, col := range df.Names() {
		for _, ch := range col {
			if !isAlnum(ch) {
				r.SpecialCols = append(r.SpecialCols, col)
				break
			}
		}
	}
}

func isAlnum(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9')
}

// Format 生成控制台报告
func (r *QualityReport) Format() string {
	var b strings.Builder
	line := strings.Repeat("-", 50)

	fmt.Fprintf(&b, "\n1. 缺失值分析\n%s\n", line)
	if len(r.Missing) == 0 {
		b.WriteString("无缺失值\n")
	}
	for _, m := range r.Missing {
		fmt.Fprintf(&b, "%s: %d (%.2f%%)\n", m.Column, m.Count, m.Percent)
	}

	fmt.Fprintf(&b, "\n2. 重复数据分析\n%s\n", line)
	fmt.Fprintf(&b, "整行重复: %d\n", r.DuplicateRows)
	for _, vc := range r.DuplicateName {
		fmt.Fprintf(&b, "学名多次出现: %s (%d)\n", vc.Value, vc.Count)
	}

	fmt.Fprintf(&b, "\n3. 一致性分析\n%s\n", line)
	for _, col := range sortedReportKeys(r.Categorical) {
		fmt.Fprintf(&b, "%s 的取值:\n", col)
		for _, vc := range r.Categorical[col] {
			fmt.Fprintf(&b, "  %s: %d\n", vc.Value, vc.Count)
		}
	}

	fmt.Fprintf(&b, "\n4. 离群值分析\n%s\n", line)
	for _, o := range r.Outliers {
		fmt.Fprintf(&b, "%s: %d 条记录越界 [%.2f, %.2f]，实际范围 %g ~ %g\n",
			o.Column, o.Count, o.Lower, o.Upper, o.Min, o.Max)
	}

	fmt.Fprintf(&b, "\n5. 混合类型分析\n%s\n", line)
	for _, col := range utils.SortedKeys(r.MixedTypes) {
		fmt.Fprintf(&b, "%s: %d 个数值单元格\n", col, r.MixedTypes[col])
	}

	fmt.Fprintf(&b, "\n6. 日期格式分析\n%s\n", line)
	for _, col := range sortedSampleKeys(r.DateSamples) {
		fmt.Fprintf(&b, "%s 的写法: %s\n", col, strings.Join(r.DateSamples[col], ", "))
	}

	fmt.Fprintf(&b, "\n7. 坐标检查\n%s\n", line)
	fmt.Fprintf(&b, "纬度越界: %d\n经度越界: %d\n", r.InvalidLat, r.InvalidLon)

	fmt.Fprintf(&b, "\n8. 结构检查\n%s\n", line)
	fmt.Fprintf(&b, "总行数: %d, 总列数: %d\n", r.Rows, r.Cols)
	if len(r.SpecialCols) > 0 {
		fmt.Fprintf(&b, "含特殊字符的列名: %s\n", strings.Join(r.SpecialCols, ", "))
	}

	return b.String()
}

func sortedReportKeys(m map[string][]ValueCount) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedSampleKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
