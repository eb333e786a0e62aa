package visual

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"BiodivQuality/src/processor"
)

func testPlotDataFrame() dataframe.DataFrame {
	return dataframe.New(
		series.New([]string{"Aus bus", "Cus dus", "", "Eus fus"}, series.String, "scientificName"),
		series.New([]string{"LC", "LC", "EN", "VU"}, series.String, "iucnRedListCategory"),
		series.New([]string{"10.5", "-20.1", "33.3", "45.0"}, series.String, "decimalLatitude"),
	)
}

func assertPNG(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("图片未生成: %v", err)
	}
	if info.Size() == 0 {
		t.Errorf("图片为空: %s", path)
	}
}

func TestMissingHeatmap(t *testing.T) {
	dir := t.TempDir()
	p, err := NewPlotter(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := p.MissingHeatmap(testPlotDataFrame(), "heatmap.png"); err != nil {
		t.Fatal(err)
	}
	assertPNG(t, filepath.Join(dir, "heatmap.png"))
}

func TestNumericalDistributions(t *testing.T) {
	dir := t.TempDir()
	p, err := NewPlotter(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := p.NumericalDistributions(testPlotDataFrame(), "hist.png"); err != nil {
		t.Fatal(err)
	}
	assertPNG(t, filepath.Join(dir, "hist.png"))
}

func TestCategoricalAndIucnBars(t *testing.T) {
	dir := t.TempDir()
	p, err := NewPlotter(dir)
	if err != nil {
		t.Fatal(err)
	}
	df := testPlotDataFrame()

	if err := p.CategoricalBars(df, []string{"iucnRedListCategory", "missingCol"}, "cats.png"); err != nil {
		t.Fatal(err)
	}
	assertPNG(t, filepath.Join(dir, "cats.png"))

	if err := p.IucnBar(CountValues(df.Col("iucnRedListCategory")), "iucn.png"); err != nil {
		t.Fatal(err)
	}
	assertPNG(t, filepath.Join(dir, "iucn.png"))
}

func TestAnalysisPlots(t *testing.T) {
	dir := t.TempDir()
	p, err := NewPlotter(dir)
	if err != nil {
		t.Fatal(err)
	}

	if err := p.TaxonomicDiversity([]string{"phylum", "family"}, []int{3, 12}, "tax.png"); err != nil {
		t.Fatal(err)
	}
	assertPNG(t, filepath.Join(dir, "tax.png"))

	years := []processor.YearCount{{Year: 2019, Count: 4}, {Year: 2020, Count: 9}, {Year: 2021, Count: 2}}
	if err := p.TemporalLine(years, "temporal.png"); err != nil {
		t.Fatal(err)
	}
	assertPNG(t, filepath.Join(dir, "temporal.png"))

	states := []processor.ValueCount{{Value: "A", Count: 5}, {Value: "B", Count: 2}}
	if err := p.GeographicBars(states, "geo.png"); err != nil {
		t.Fatal(err)
	}
	assertPNG(t, filepath.Join(dir, "geo.png"))

	completeness := []processor.ColumnCompleteness{
		{Column: "eventDate", Percent: 62.5},
		{Column: "scientificName", Percent: 100},
	}
	if err := p.CompletenessBars(completeness, "completeness.png"); err != nil {
		t.Fatal(err)
	}
	assertPNG(t, filepath.Join(dir, "completeness.png"))
}

func TestPlotsEmptyInput(t *testing.T) {
	p, err := NewPlotter(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := p.IucnBar(nil, "iucn.png"); err == nil {
		t.Errorf("空输入应报错")
	}
	if err := p.TemporalLine(nil, "temporal.png"); err == nil {
		t.Errorf("空输入应报错")
	}
}

func TestCountValues(t *testing.T) {
	s := series.New([]string{"b", "a", "b", "", "c", "c"}, series.String, "col")
	got := CountValues(s)

	if len(got) != 3 {
		t.Fatalf("取值数不对: %+v", got)
	}
	// 次数相同按字典序
	if got[0].Value != "b" || got[1].Value != "c" || got[2].Value != "a" {
		t.Errorf("排序不对: %+v", got)
	}
}
