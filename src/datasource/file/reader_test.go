package file

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDetectDelimiter(t *testing.T) {
	cases := map[string]rune{
		"a,b,c":   ',',
		"a\tb\tc": '\t',
		"a;b;c":   ';',
		"a|b|c":   '|',
		"a,b\tc\td\te": '\t',
	}
	for line, want := range cases {
		if got := DetectDelimiter(line); got != want {
			t.Errorf("DetectDelimiter(%q) = %q, want %q", line, got, want)
		}
	}
}

func TestReadCSVToDataFrameTab(t *testing.T) {
	// GBIF occurrence导出是制表符分隔
	content := "scientificName\tiucnRedListCategory\tdecimalLatitude\n" +
		"Aus bus\tLC\t10.5\n" +
		"Cus dus\tEN\t-20.1\n"
	path := filepath.Join(t.TempDir(), "occurrence.txt")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	df, err := ReadCSVToDataFrame(path)
	if err != nil {
		t.Fatal(err)
	}

	if df.Nrow() != 2 || df.Ncol() != 3 {
		t.Errorf("规模不对: %d x %d", df.Nrow(), df.Ncol())
	}
	if got := df.Col("scientificName").Elem(0).String(); got != "Aus bus" {
		t.Errorf("内容不对: %s", got)
	}
	// 全部按字符串读入
	if got := df.Col("decimalLatitude").Elem(1).String(); got != "-20.1" {
		t.Errorf("数值列应保持字符串: %s", got)
	}
}

func TestReadCSVToDataFrameBOM(t *testing.T) {
	content := "\xEF\xBB\xBFname,value\na,1\n"
	path := filepath.Join(t.TempDir(), "data.csv")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	df, err := ReadCSVToDataFrame(path)
	if err != nil {
		t.Fatal(err)
	}
	if df.Names()[0] != "name" {
		t.Errorf("BOM未被去除: %q", df.Names()[0])
	}
}

func TestReadCSVToDataFrameMissingFile(t *testing.T) {
	if _, err := ReadCSVToDataFrame(filepath.Join(t.TempDir(), "nope.csv")); err == nil {
		t.Errorf("不存在的文件应报错")
	}
}

func TestIsDataFile(t *testing.T) {
	if !isDataFile("a.txt") || !isDataFile("b.CSV") || !isDataFile("c.xlsx") {
		t.Errorf("数据文件扩展名判断不对")
	}
	if isDataFile("d.log") || isDataFile("e") {
		t.Errorf("非数据文件不应命中")
	}
}
