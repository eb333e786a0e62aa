// cleaner.go
package processor

import (
	"fmt"
	"math"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"gonum.org/v1/gonum/stat"

	"BiodivQuality/src/config"
	"BiodivQuality/src/utils"
)

// 清洗后日期的统一写法
const CleanDateFormat = "2006-01-02"

// 预编译：连续空白折叠
var spaceRe = regexp.MustCompile(`\s+`)

// CleaningReport 清洗前后对比报告
type CleaningReport struct {
	RowsBefore int
	RowsAfter  int

	MissingBefore map[string]int
	MissingAfter  map[string]int

	TypeChanges        map[string]string  // 列 -> "string -> float" 等
	ImputedNumeric     map[string]float64 // 列 -> 填充用的均值
	ImputedCategorical map[string]string  // 列 -> 填充用的众数
	OutliersCapped     map[string]int     // 列 -> 被截断的单元格数

	DroppedCoordinates int // 坐标越界被删除的行数
	DroppedDuplicates  int // 重复被删除的行数
}

// Cleaner 按固定顺序执行逐列清洗规则
// 规则顺序不可调整，保证同一输入得到字节一致的输出
type Cleaner struct {
	Dcfg *config.DataConfig
}

func NewCleaner(dcfg *config.DataConfig) *Cleaner {
	return &Cleaner{Dcfg: dcfg}
}

// Clean 运行全部清洗步骤，返回清洗后的数据与报告
func (c *Cleaner) Clean(df dataframe.DataFrame) (dataframe.DataFrame, *CleaningReport, error) {
	if df.Nrow() == 0 {
		return df, nil, fmt.Errorf("数据集为空")
	}

	report := &CleaningReport{
		RowsBefore:         df.Nrow(),
		MissingBefore:      make(map[string]int),
		MissingAfter:       make(map[string]int),
		TypeChanges:        make(map[string]string),
		ImputedNumeric:     make(map[string]float64),
		ImputedCategorical: make(map[string]string),
		OutliersCapped:     make(map[string]int),
	}
	for _, col := range df.Names() {
		report.MissingBefore[col] = missingCount(df.Col(col))
	}

	df = c.trimWhitespace(df)
	df = c.canonicalizeIucn(df)
	df = c.canonicalizeTaxonRank(df)
	df = c.normalizeDates(df)
	df = c.convertNumeric(df, report)
	df = c.imputeMissing(df, report)
	df = c.capOutliers(df, report)
	df = c.dropBadCoordinates(df, report)
	df = c.dropDuplicates(df, report)

	if df.Err != nil {
		return df, nil, fmt.Errorf("清洗失败: %w", df.Err)
	}

	for _, col := range df.Names() {
		report.MissingAfter[col] = missingCount(df.Col(col))
	}
	report.RowsAfter = df.Nrow()

	return df, report, nil
}

// trimWhitespace a. 去除文本首尾空白并折叠连续空白
func (c *Cleaner) trimWhitespace(df dataframe.DataFrame) dataframe.DataFrame {
	if c.Dcfg.GetCleaning("去除字符串首尾空白") != 1 {
		return df
	}
	for _, col := range df.Names() {
		s := df.Col(col)
		if s.Type() != series.String {
			continue
		}
		df = df.Mutate(s.Map(func(el series.Element) series.Element {
			if el.IsNA() {
				return el
			}
			trimmed := spaceRe.ReplaceAllString(strings.TrimSpace(el.String()), " ")
			el.Set(trimmed)
			return el
		}))
	}
	return df
}

// canonicalizeIucn b. IUCN代码统一到标准词表，未知值归为NE
func (c *Cleaner) canonicalizeIucn(df dataframe.DataFrame) dataframe.DataFrame {
	if c.Dcfg.GetCleaning("IUCN代码标准化") != 1 {
		return df
	}
	col := c.Dcfg.GetColumn("iucn")
	if !utils.HasColumn(df, col) {
		return df
	}
	df = df.Mutate(df.Col(col).Map(func(el series.Element) series.Element {
		if isMissing(el) {
			return el
		}
		el.Set(c.Dcfg.CanonicalIucn(strings.ToUpper(strings.TrimSpace(el.String()))))
		return el
	}))
	return df
}

// canonicalizeTaxonRank c. 分类阶元按GBIF惯例统一大写
func (c *Cleaner) canonicalizeTaxonRank(df dataframe.DataFrame) dataframe.DataFrame {
	if c.Dcfg.GetCleaning("分类阶元大写标准化") != 1 {
		return df
	}
	col := c.Dcfg.GetColumn("taxonRank")
	if !utils.HasColumn(df, col) {
		return df
	}
	df = df.Mutate(df.Col(col).Map(func(el series.Element) series.Element {
		if isMissing(el) {
			return el
		}
		el.Set(strings.ToUpper(el.String()))
		return el
	}))
	return df
}

// normalizeDates d. 日期列統一为 2006-01-02，解析失败置空
func (c *Cleaner) normalizeDates(df dataframe.DataFrame) dataframe.DataFrame {
	if c.Dcfg.GetCleaning("日期字段标准化") != 1 {
		return df
	}
	for _, col := range df.Names() {
		if !strings.Contains(strings.ToLower(col), "date") {
			continue
		}
		df = df.Mutate(df.Col(col).Map(func(el series.Element) series.Element {
			if isMissing(el) {
				el.Set("")
				return el
			}
			t, err := utils.ParseDate(el.String())
			if err != nil {
				el.Set("")
				return el
			}
			el.Set(t.Format(CleanDateFormat))
			return el
		}))
	}
	return df
}

// convertNumeric e. 非缺失值全为数值的文本列转为浮点列
func (c *Cleaner) convertNumeric(df dataframe.DataFrame, report *CleaningReport) dataframe.DataFrame {
	if c.Dcfg.GetCleaning("数值列自动转换") != 1 {
		return df
	}
	for _, col := range df.Names() {
		s := df.Col(col)
		if s.Type() != series.String || strings.Contains(strings.ToLower(col), "date") {
			continue
		}
		if !isNumericColumn(s) {
			continue
		}
		floats := make([]float64, s.Len())
		for i := 0; i < s.Len(); i++ {
			el := s.Elem(i)
			if isMissing(el) {
				floats[i] = math.NaN()
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(el.String()), 64)
			if err != nil {
				floats[i] = math.NaN()
				continue
			}
			floats[i] = v
		}
		df = df.Mutate(series.New(floats, series.Float, col))
		report.TypeChanges[col] = "string -> float"
	}
	return df
}

// imputeMissing f. 数值列均值填充，类别列众数填充
func (c *Cleaner) imputeMissing(df dataframe.DataFrame, report *CleaningReport) dataframe.DataFrame {
	for _, col := range df.Names() {
		s := df.Col(col)
		missing := missingCount(s)
		if missing == 0 || missing == s.Len() {
			continue
		}

		if s.Type() == series.Float {
			if c.Dcfg.GetCleaning("数值列均值填充") != 1 {
				continue
			}
			mean := stat.Mean(numericValues(s), nil)
			floats := make([]float64, s.Len())
			for i := 0; i < s.Len(); i++ {
				el := s.Elem(i)
				if isMissing(el) {
					floats[i] = mean
				} else {
					floats[i] = el.Float()
				}
			}
			df = df.Mutate(series.New(floats, series.Float, col))
			report.ImputedNumeric[col] = mean
			continue
		}

		if c.Dcfg.GetCleaning("类别列众数填充") != 1 {
			continue
		}
		mode := modeValue(valueCounts(s))
		df = df.Mutate(s.Map(func(el series.Element) series.Element {
			if isMissing(el) {
				el.Set(mode)
			}
			return el
		}))
		report.ImputedCategorical[col] = mode
	}
	return df
}

// modeValue 众数；次数相同时取字典序最小，保证确定性
func modeValue(counts map[string]int) string {
	best := ""
	bestCount := -1
	for _, k := range utils.SortedKeys(counts) {
		if counts[k] > bestCount {
			best = k
			bestCount = counts[k]
		}
	}
	return best
}

// capOutliers g. 数值列按1.5倍IQR截断离群值
func (c *Cleaner) capOutliers(df dataframe.DataFrame, report *CleaningReport) dataframe.DataFrame {
	if c.Dcfg.GetCleaning("IQR截断异常值") != 1 {
		return df
	}
	for _, col := range df.Names() {
		s := df.Col(col)
		if s.Type() != series.Float {
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

		capped := 0
		floats := make([]float64, s.Len())
		for i := 0; i < s.Len(); i++ {
			v := s.Elem(i).Float()
			switch {
			case v < lower:
				floats[i] = lower
				capped++
			case v > upper:
				floats[i] = upper
				capped++
			default:
				floats[i] = v
			}
		}
		if capped == 0 {
			continue
		}
		df = df.Mutate(series.New(floats, series.Float, col))
		report.OutliersCapped[col] = capped
	}
	return df
}

// dropBadCoordinates h. 删除坐标越界的行
func (c *Cleaner) dropBadCoordinates(df dataframe.DataFrame, report *CleaningReport) dataframe.DataFrame {
	if c.Dcfg.GetCleaning("删除坐标越界行") != 1 {
		return df
	}
	latCol := c.Dcfg.GetColumn("lat")
	lonCol := c.Dcfg.GetColumn("lon")
	if !utils.HasColumn(df, latCol) && !utils.HasColumn(df, lonCol) {
		return df
	}

	var keep []int
	for i := 0; i < df.Nrow(); i++ {
		if coordinateValid(df, latCol, i, 90) && coordinateValid(df, lonCol, i, 180) {
			keep = append(keep, i)
		}
	}
	if len(keep) == df.Nrow() {
		return df
	}
	report.DroppedCoordinates = df.Nrow() - len(keep)
	return df.Subset(keep)
}

func coordinateValid(df dataframe.DataFrame, col string, row int, bound float64) bool {
	if !utils.HasColumn(df, col) {
		return true
	}
	el := df.Col(col).Elem(row)
	if isMissing(el) {
		return true
	}
	v := el.Float()
	if math.IsNaN(v) {
		return true
	}
	return v >= -bound && v <= bound
}

// dropDuplicates i. 删除整行重复，保留首次出现
func (c *Cleaner) dropDuplicates(df dataframe.DataFrame, report *CleaningReport) dataframe.DataFrame {
	if c.Dcfg.GetCleaning("删除重复行") != 1 {
		return df
	}
	records := df.Records()
	seen := make(map[string]bool, len(records))
	var keep []int
	for i, row := range records[1:] {
		key := rowKey(row)
		if seen[key] {
			continue
		}
		seen[key] = true
		keep = append(keep, i)
	}
	if len(keep) == df.Nrow() {
		return df
	}
	report.DroppedDuplicates = df.Nrow() - len(keep)
	return df.Subset(keep)
}

// WriteCleaned 将清洗后的数据写为逗号分隔的CSV
func (c *Cleaner) WriteCleaned(df dataframe.DataFrame, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("创建输出文件失败: %w", err)
	}
	defer f.Close()

	if err := df.WriteCSV(f, dataframe.WriteHeader(true)); err != nil {
		return fmt.Errorf("写入清洗结果失败: %w", err)
	}
	return nil
}

// Format 生成清洗报告
func (r *CleaningReport) Format() string {
	var b strings.Builder
	line := strings.Repeat("-", 50)

	fmt.Fprintf(&b, "\n清洗报告\n%s\n", line)
	fmt.Fprintf(&b, "行数: %d -> %d\n", r.RowsBefore, r.RowsAfter)
	fmt.Fprintf(&b, "坐标越界删除: %d 行，重复删除: %d 行\n", r.DroppedCoordinates, r.DroppedDuplicates)

	b.WriteString("\n缺失值变化:\n")
	for _, col := range utils.SortedKeys(r.MissingBefore) {
		before := r.MissingBefore[col]
		after := r.MissingAfter[col]
		if before > after {
			fmt.Fprintf(&b, "  %s: %d -> %d\n", col, before, after)
		}
	}

	b.WriteString("\n类型变化:\n")
	for _, col := range sortedStringKeys(r.TypeChanges) {
		fmt.Fprintf(&b, "  %s: %s\n", col, r.TypeChanges[col])
	}

	b.WriteString("\n均值填充:\n")
	for _, col := range sortedFloatKeys(r.ImputedNumeric) {
		fmt.Fprintf(&b, "  %s: %.2f\n", col, r.ImputedNumeric[col])
	}
	b.WriteString("\n众数填充:\n")
	for _, col := range sortedStringKeys(r.ImputedCategorical) {
		fmt.Fprintf(&b, "  %s: %s\n", col, r.ImputedCategorical[col])
	}
	b.WriteString("\n离群值截断:\n")
	for _, col := range utils.SortedKeys(r.OutliersCapped) {
		fmt.Fprintf(&b, "  %s: %d\n", col, r.OutliersCapped[col])
	}

	return b.String()
}

func sortedStringKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedFloatKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
