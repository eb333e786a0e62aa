// splitter.go
package file

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
)

// SplitCSV 将大数据文件按行数近似均分为若干CSV文件
// 每个分片都带标题行，输出统一为逗号分隔
func SplitCSV(inputPath, outputDir string, parts int) ([]string, error) {
	if parts <= 0 {
		return nil, fmt.Errorf("分片数必须大于0: %d", parts)
	}

	f, err := os.Open(inputPath)
	if err != nil {
		return nil, fmt.Errorf("打开数据文件失败: %w", err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	firstLine, err := br.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("读取首行失败: %w", err)
	}
	delim := DetectDelimiter(firstLine)

	// 回到文件开头重新按推断的分隔符解析
	if _, err := f.Seek(0, 0); err != nil {
		return nil, err
	}
	reader := csv.NewReader(bufio.NewReader(f))
	reader.Comma = delim
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("解析数据文件失败: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("数据文件没有数据行")
	}

	header := records[0]
	rows := records[1:]

	if err := EnsureDir(outputDir); err != nil {
		return nil, err
	}

	// 每片行数向上取整，最后一片可能不足
	rowsPerPart := (len(rows) + parts - 1) / parts

	var outputs []string
	for i := 0; i < parts; i++ {
		start := i * rowsPerPart
		if start >= len(rows) {
			break
		}
		end := start + rowsPerPart
		if end > len(rows) {
			end = len(rows)
		}

		outPath := filepath.Join(outputDir, fmt.Sprintf("part_%d.csv", i+1))
		if err := writePart(outPath, header, rows[start:end]); err != nil {
			return outputs, err
		}
		outputs = append(outputs, outPath)
	}

	return outputs, nil
}

func writePart(path string, header []string, rows [][]string) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("创建分片文件失败: %w", err)
	}
	defer out.Close()

	w := csv.NewWriter(out)
	if err := w.Write(header); err != nil {
		return err
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
