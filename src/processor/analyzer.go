// analyzer.go
package processor

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-gota/gota/dataframe"

	"BiodivQuality/src/config"
	"BiodivQuality/src/utils"
)

// YearCount 某一年份的记录数
type YearCount struct {
	Year  int
	Count int
}

// ColumnCompleteness 单列的完整度百分比
type ColumnCompleteness struct {
	Column  string
	Percent float64
}

// AnalysisSummary 清洗后数据集的描述性统计
type AnalysisSummary struct {
	TotalRecords int

	// 分类多样性：各阶元的唯一分类单元数，顺序与配置一致
	TaxonRanks  []string
	RankUniques []int
	TopTaxa     map[string][]ValueCount // 阶元 -> Top5分类单元

	IucnCounts []ValueCount

	YearCounts []YearCount
	Earliest   string
	Latest     string
	PeakYear   int
	PeakCount  int

	StateCounts []ValueCount

	Completeness        []ColumnCompleteness // 按完整度升序
	OverallCompleteness float64

	UniqueSpecies  int
	UniqueGenera   int
	UniqueFamilies int
	GeoCoverage    int
}

// Analyzer 对清洗后数据生成分类/保护/时间/地理四类汇总
type Analyzer struct {
	Dcfg *config.DataConfig
}

func NewAnalyzer(dcfg *config.DataConfig) *Analyzer {
	return &Analyzer{Dcfg: dcfg}
}

// Summarize 运行全部汇总，只读不改
func (a *Analyzer) Summarize(df dataframe.DataFrame) (*AnalysisSummary, error) {
	if df.Nrow() == 0 {
		return nil, fmt.Errorf("数据集为空")
	}

	s := &AnalysisSummary{
		TotalRecords: df.Nrow(),
		TopTaxa:      make(map[string][]ValueCount),
	}

	a.taxonomic(df, s)
	a.conservation(df, s)
	a.temporal(df, s)
	a.geographic(df, s)
	a.completeness(df, s)

	s.UniqueSpecies = uniqueNonMissing(df, a.Dcfg.GetColumn("species"))
	s.UniqueGenera = uniqueNonMissing(df, a.Dcfg.GetColumn("genus"))
	s.UniqueFamilies = uniqueNonMissing(df, a.Dcfg.GetColumn("family"))
	s.GeoCoverage = uniqueNonMissing(df, a.Dcfg.GetColumn("stateProvince"))

	return s, nil
}

func uniqueNonMissing(df dataframe.DataFrame, col string) int {
	if !utils.HasColumn(df, col) {
		return 0
	}
	return len(valueCounts(df.Col(col)))
}

// taxonomic 1. 分类多样性
func (a *Analyzer) taxonomic(df dataframe.DataFrame, s *AnalysisSummary) {
	for _, rank := range a.Dcfg.TaxonRanks {
		col := a.Dcfg.GetColumn(rank)
		if !utils.HasColumn(df, col) {
			continue
		}
		counts := valueCounts(df.Col(col))
		s.TaxonRanks = append(s.TaxonRanks, rank)
		s.RankUniques = append(s.RankUniques, len(counts))

		top := sortedCounts(counts)
		if len(top) > 5 {
			top = top[:5]
		}
		s.TopTaxa[rank] = top
	}
}

// conservation 2. IUCN红色名录分布
func (a *Analyzer) conservation(df dataframe.DataFrame, s *AnalysisSummary) {
	col := a.Dcfg.GetColumn("iucn")
	if !utils.HasColumn(df, col) {
		return
	}
	s.IucnCounts = sortedCounts(valueCounts(df.Col(col)))
}

// temporal 3. 时间分布：按年份统计记录数
func (a *Analyzer) temporal(df dataframe.DataFrame, s *AnalysisSummary) {
	col := a.Dcfg.GetColumn("eventDate")
	if !utils.HasColumn(df, col) {
		return
	}

	yearCounts := make(map[int]int)
	sd := df.Col(col)
	for i := 0; i < sd.Len(); i++ {
		el := sd.Elem(i)
		if isMissing(el) {
			continue
		}
		t, err := utils.ParseDate(el.String())
		if err != nil {
			continue
		}
		yearCounts[t.Year()]++

		date := t.Format(CleanDateFormat)
		if s.Earliest == "" || date < s.Earliest {
			s.Earliest = date
		}
		if date > s.Latest {
			s.Latest = date
		}
	}

	years := make([]int, 0, len(yearCounts))
	for y := range yearCounts {
		years = append(years, y)
	}
	sort.Ints(years)
	for _, y := range years {
		s.YearCounts = append(s.YearCounts, YearCount{Year: y, Count: yearCounts[y]})
		if yearCounts[y] > s.PeakCount {
			s.PeakYear = y
			s.PeakCount = yearCounts[y]
		}
	}
}

// geographic 4. 按省/州的地理分布
func (a *Analyzer) geographic(df dataframe.DataFrame, s *AnalysisSummary) {
	col := a.Dcfg.GetColumn("stateProvince")
	if !utils.HasColumn(df, col) {
		return
	}
	s.StateCounts = sortedCounts(valueCounts(df.Col(col)))
}

// completeness 5. 各列完整度
func (a *Analyzer) completeness(df dataframe.DataFrame, s *AnalysisSummary) {
	total := 0.0
	for _, col := range df.Names() {
		sc := df.Col(col)
		pct := float64(sc.Len()-missingCount(sc)) / float64(sc.Len()) * 100
		s.Completeness = append(s.Completeness, ColumnCompleteness{Column: col, Percent: pct})
		total += pct
	}
	sort.SliceStable(s.Completeness, func(i, j int) bool {
		return s.Completeness[i].Percent < s.Completeness[j].Percent
	})
	s.OverallCompleteness = total / float64(df.Ncol())
}

// Format 生成控制台汇总报告
func (s *AnalysisSummary) Format() string {
	var b strings.Builder
	line := strings.Repeat("-", 50)

	fmt.Fprintf(&b, "\n1. 分类多样性\n%s\n", line)
	for i, rank := range s.TaxonRanks {
		fmt.Fprintf(&b, "%s: %d 个唯一分类单元\n", rank, s.RankUniques[i])
		for _, vc := range s.TopTaxa[rank] {
			fmt.Fprintf(&b, "  %s: %d\n", vc.Value, vc.Count)
		}
	}

	fmt.Fprintf(&b, "\n2. 保护状态分布\n%s\n", line)
	for _, vc := range s.IucnCounts {
		fmt.Fprintf(&b, "%s: %d\n", vc.Value, vc.Count)
	}

	fmt.Fprintf(&b, "\n3. 时间分布\n%s\n", line)
	fmt.Fprintf(&b, "最早记录: %s\n最晚记录: %s\n", s.Earliest, s.Latest)
	fmt.Fprintf(&b, "记录峰值年份: %d (%d 条)\n", s.PeakYear, s.PeakCount)

	fmt.Fprintf(&b, "\n4. 地理分布\n%s\n", line)
	for _, vc := range s.StateCounts {
		fmt.Fprintf(&b, "%s: %d\n", vc.Value, vc.Count)
	}

	fmt.Fprintf(&b, "\n5. 数据汇总\n%s\n", line)
	fmt.Fprintf(&b, "总记录数: %d\n", s.TotalRecords)
	fmt.Fprintf(&b, "唯一物种: %d\n唯一属: %d\n唯一科: %d\n", s.UniqueSpecies, s.UniqueGenera, s.UniqueFamilies)
	fmt.Fprintf(&b, "地理覆盖: %d 个省/州\n", s.GeoCoverage)
	fmt.Fprintf(&b, "整体完整度: %.2f%%\n", s.OverallCompleteness)

	return b.String()
}
