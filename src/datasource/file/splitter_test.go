package file

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func writeTestCSV(t *testing.T, rows int) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("scientificName\tstateProvince\n")
	for i := 0; i < rows; i++ {
		b.WriteString("species" + strconv.Itoa(i) + "\tprovince\n")
	}
	path := filepath.Join(t.TempDir(), "dataset.txt")
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSplitCSV(t *testing.T) {
	input := writeTestCSV(t, 10)
	outDir := filepath.Join(t.TempDir(), "parts")

	files, err := SplitCSV(input, outDir, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 3 {
		t.Fatalf("分片数不对: %d", len(files))
	}

	totalRows := 0
	for _, f := range files {
		fh, err := os.Open(f)
		if err != nil {
			t.Fatal(err)
		}
		records, err := csv.NewReader(fh).ReadAll()
		fh.Close()
		if err != nil {
			t.Fatal(err)
		}
		// 每个分片都带标题行
		if records[0][0] != "scientificName" {
			t.Errorf("分片缺少标题行: %v", records[0])
		}
		totalRows += len(records) - 1
	}
	if totalRows != 10 {
		t.Errorf("分片总行数不对: %d", totalRows)
	}
}

func TestSplitCSVMorePartsThanRows(t *testing.T) {
	input := writeTestCSV(t, 2)
	outDir := filepath.Join(t.TempDir(), "parts")

	files, err := SplitCSV(input, outDir, 5)
	if err != nil {
		t.Fatal(err)
	}
	// 行数不够时分片数自然减少
	if len(files) > 2 {
		t.Errorf("分片数过多: %d", len(files))
	}
}

func TestSplitCSVInvalidParts(t *testing.T) {
	input := writeTestCSV(t, 2)
	if _, err := SplitCSV(input, t.TempDir(), 0); err == nil {
		t.Errorf("分片数为0应报错")
	}
}
