package processor

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"BiodivQuality/src/config"
)

// 测试用的数据集配置，开关全开
func testDataConfig() *config.DataConfig {
	return &config.DataConfig{
		Columns: map[string]string{
			"scientificName": "scientificName",
			"taxonRank":      "taxonRank",
			"iucn":           "iucnRedListCategory",
			"eventDate":      "eventDate",
			"lat":            "decimalLatitude",
			"lon":            "decimalLongitude",
			"stateProvince":  "stateProvince",
			"species":        "species",
			"genus":          "genus",
			"family":         "family",
		},
		IucnCodes: []string{"EX", "EW", "CR", "EN", "VU", "NT", "LC", "DD", "NE"},
		IucnSynonyms: map[string]string{
			"LEAST CONCERN":         "LC",
			"NEAR THREATENED":       "NT",
			"VULNERABLE":            "VU",
			"ENDANGERED":            "EN",
			"CRITICALLY ENDANGERED": "CR",
		},
		TaxonRanks: []string{"phylum", "class", "order", "family", "genus"},
		Cleaning: map[string]int{
			"去除字符串首尾空白": 1,
			"IUCN代码标准化":  1,
			"分类阶元大写标准化": 1,
			"日期字段标准化":   1,
			"数值列自动转换":   1,
			"数值列均值填充":   1,
			"类别列众数填充":   1,
			"IQR截断异常值":   1,
			"删除坐标越界行":   1,
			"删除重复行":     1,
		},
	}
}

func TestCleanIucnCanonical(t *testing.T) {
	df := dataframe.New(
		series.New([]string{"a", "b", "c", "d"}, series.String, "scientificName"),
		series.New([]string{" least  concern ", "VULNERABLE", "weird", "LC"}, series.String, "iucnRedListCategory"),
	)

	cleaned, _, err := NewCleaner(testDataConfig()).Clean(df)
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"LC", "VU", "NE", "LC"}
	got := cleaned.Col("iucnRedListCategory").Records()
	if !reflect.DeepEqual(got, want) {
		t.Errorf("IUCN标准化结果不对: got %v, want %v", got, want)
	}

	// 清洗后不允许出现词表外的代码
	codes := testDataConfig().IucnCodes
	for _, v := range got {
		found := false
		for _, c := range codes {
			if v == c {
				found = true
			}
		}
		if !found {
			t.Errorf("出现词表外的IUCN代码: %s", v)
		}
	}
}

func TestCleanNormalizesDates(t *testing.T) {
	df := dataframe.New(
		series.New([]string{"a", "b", "c", "d"}, series.String, "scientificName"),
		series.New([]string{"2021/05/03", "2021-05-03T10:00:00Z", "notadate", "2021-05-03"}, series.String, "eventDate"),
	)

	cleaned, _, err := NewCleaner(testDataConfig()).Clean(df)
	if err != nil {
		t.Fatal(err)
	}

	// 解析失败的写法先置空，再被众数填充
	want := []string{"2021-05-03", "2021-05-03", "2021-05-03", "2021-05-03"}
	got := cleaned.Col("eventDate").Records()
	if !reflect.DeepEqual(got, want) {
		t.Errorf("日期标准化结果不对: got %v, want %v", got, want)
	}
}

func TestCleanImputesMeanAndMode(t *testing.T) {
	df := dataframe.New(
		series.New([]string{"a", "b", "c"}, series.String, "scientificName"),
		series.New([]string{"10", "20", ""}, series.String, "decimalLatitude"),
		series.New([]string{"X", "X", ""}, series.String, "stateProvince"),
	)

	cleaned, report, err := NewCleaner(testDataConfig()).Clean(df)
	if err != nil {
		t.Fatal(err)
	}

	if got := cleaned.Col("decimalLatitude").Elem(2).Float(); got != 15 {
		t.Errorf("均值填充不对: got %v, want 15", got)
	}
	if report.ImputedNumeric["decimalLatitude"] != 15 {
		t.Errorf("报告里的均值不对: %v", report.ImputedNumeric)
	}
	if got := cleaned.Col("stateProvince").Elem(2).String(); got != "X" {
		t.Errorf("众数填充不对: got %v, want X", got)
	}
	if report.ImputedCategorical["stateProvince"] != "X" {
		t.Errorf("报告里的众数不对: %v", report.ImputedCategorical)
	}

	for col, n := range report.MissingAfter {
		if n != 0 {
			t.Errorf("填充后仍有缺失: %s=%d", col, n)
		}
	}
	if report.TypeChanges["decimalLatitude"] != "string -> float" {
		t.Errorf("数值列未被转换: %v", report.TypeChanges)
	}
}

func TestCleanDropsBadCoordinatesAndDuplicates(t *testing.T) {
	dcfg := testDataConfig()
	// 小样本下IQR会先截断坐标，这里单独验证删行逻辑
	dcfg.SetCleaning("IQR截断异常值", 0)

	df := dataframe.New(
		series.New([]string{"a", "b", "b", "c"}, series.String, "scientificName"),
		series.New([]string{"10", "20", "20", "95"}, series.String, "decimalLatitude"),
		series.New([]string{"30", "40", "40", "50"}, series.String, "decimalLongitude"),
	)

	cleaned, report, err := NewCleaner(dcfg).Clean(df)
	if err != nil {
		t.Fatal(err)
	}

	if report.DroppedCoordinates != 1 {
		t.Errorf("坐标越界删除行数不对: %d", report.DroppedCoordinates)
	}
	if report.DroppedDuplicates != 1 {
		t.Errorf("重复删除行数不对: %d", report.DroppedDuplicates)
	}
	if cleaned.Nrow() != 2 {
		t.Errorf("清洗后行数不对: %d", cleaned.Nrow())
	}
	if cleaned.Nrow() > report.RowsBefore {
		t.Errorf("清洗后行数不能多于清洗前")
	}
}

func TestCleanCapsOutliers(t *testing.T) {
	df := dataframe.New(
		series.New([]string{"a", "b", "c", "d", "e"}, series.String, "scientificName"),
		series.New([]string{"1", "2", "3", "4", "1000"}, series.String, "individualCount"),
	)

	cleaned, report, err := NewCleaner(testDataConfig()).Clean(df)
	if err != nil {
		t.Fatal(err)
	}

	if report.OutliersCapped["individualCount"] == 0 {
		t.Errorf("离群值没有被截断: %v", report.OutliersCapped)
	}
	max := 0.0
	s := cleaned.Col("individualCount")
	for i := 0; i < s.Len(); i++ {
		if v := s.Elem(i).Float(); v > max {
			max = v
		}
	}
	if max >= 1000 {
		t.Errorf("截断后仍有离群值: %v", max)
	}
}

func TestCleanDeterministic(t *testing.T) {
	build := func() dataframe.DataFrame {
		return dataframe.New(
			series.New([]string{"a", "b", "b", "c"}, series.String, "scientificName"),
			series.New([]string{"LC", "", "VULNERABLE", "weird"}, series.String, "iucnRedListCategory"),
			series.New([]string{"10", "", "20", "30"}, series.String, "decimalLatitude"),
			series.New([]string{"2021/05/03", "2021-05-04", "", "2021-05-04"}, series.String, "eventDate"),
		)
	}

	c1, _, err := NewCleaner(testDataConfig()).Clean(build())
	if err != nil {
		t.Fatal(err)
	}
	c2, _, err := NewCleaner(testDataConfig()).Clean(build())
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(c1.Records(), c2.Records()) {
		t.Errorf("同一输入两次清洗结果不一致")
	}

	// 落盘后的CSV也要逐字节一致
	dir := t.TempDir()
	p1 := filepath.Join(dir, "run1.csv")
	p2 := filepath.Join(dir, "run2.csv")
	cl := NewCleaner(testDataConfig())
	if err := cl.WriteCleaned(c1, p1); err != nil {
		t.Fatal(err)
	}
	if err := cl.WriteCleaned(c2, p2); err != nil {
		t.Fatal(err)
	}
	b1, err := os.ReadFile(p1)
	if err != nil {
		t.Fatal(err)
	}
	b2, err := os.ReadFile(p2)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(b1, b2) {
		t.Errorf("两次清洗写出的CSV不一致")
	}
}

func TestCleanEmptyDataset(t *testing.T) {
	df := dataframe.New(
		series.New([]string{}, series.String, "scientificName"),
	)
	if _, _, err := NewCleaner(testDataConfig()).Clean(df); err == nil {
		t.Errorf("空数据集应当报错")
	}
}

func TestModeValueTieBreak(t *testing.T) {
	counts := map[string]int{"b": 2, "a": 2, "c": 1}
	if got := modeValue(counts); got != "a" {
		t.Errorf("众数并列时应取字典序最小: got %s", got)
	}
}
