package main

import (
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"BiodivQuality/src/config"
	"BiodivQuality/src/datapush"
	"BiodivQuality/src/processor"
	"BiodivQuality/src/storage"
)

var errSyncFailed = errors.New("同步失败")

func stubPushFuncs(t *testing.T) {
	t.Helper()
	origQ, origC, origA, origN := syncQuality, syncCleaning, syncAnalysis, notifyFail
	t.Cleanup(func() {
		syncQuality, syncCleaning, syncAnalysis, notifyFail = origQ, origC, origA, origN
	})
}

func testReports() (*processor.QualityReport, *processor.CleaningReport, *processor.AnalysisSummary) {
	return &processor.QualityReport{Rows: 10, DuplicateRows: 2},
		&processor.CleaningReport{RowsBefore: 10, RowsAfter: 8},
		&processor.AnalysisSummary{TotalRecords: 8}
}

func newTestLogger(t *testing.T) *storage.Logger {
	t.Helper()
	logger, err := storage.NewLogger(filepath.Join(t.TempDir(), "test.log"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { logger.Close() })
	return logger
}

// 三份报告在pushReports返回前必须全部推完
func TestPushReportsCompletesBeforeReturn(t *testing.T) {
	stubPushFuncs(t)

	var calls []string
	syncQuality = func(data map[string]interface{}) error {
		if data["数据文件"] != "occurrence.txt" {
			t.Errorf("数据文件字段不对: %v", data["数据文件"])
		}
		if data["总行数"] != 10 {
			t.Errorf("总行数字段不对: %v", data["总行数"])
		}
		calls = append(calls, "quality")
		return nil
	}
	syncCleaning = func(data map[string]interface{}) error {
		if data["清洗后行数"] != 8 {
			t.Errorf("清洗后行数字段不对: %v", data["清洗后行数"])
		}
		calls = append(calls, "cleaning")
		return nil
	}
	syncAnalysis = func(data map[string]interface{}) error {
		calls = append(calls, "analysis")
		return nil
	}
	notified := false
	notifyFail = func(content string, receiverIds []string) error {
		notified = true
		return nil
	}

	cfg := &config.Config{PlotDir: "plots", RawPlotDir: "rawplots"}
	report, cleanReport, summary := testReports()
	pushReports(cfg, newTestLogger(t), "occurrence.txt", report, cleanReport, summary)

	if !reflect.DeepEqual(calls, []string{"quality", "cleaning", "analysis"}) {
		t.Errorf("返回前三份报告应按序推完: %v", calls)
	}
	if notified {
		t.Errorf("推送成功不应发钉钉通知")
	}
}

// 任一报告推送失败要发钉钉通知
func TestPushReportsNotifiesOnFailure(t *testing.T) {
	stubPushFuncs(t)

	syncQuality = func(map[string]interface{}) error { return errSyncFailed }
	syncCleaning = func(map[string]interface{}) error { return nil }
	syncAnalysis = func(map[string]interface{}) error { return nil }

	var gotContent string
	var gotReceivers []string
	notifyFail = func(content string, receiverIds []string) error {
		gotContent = content
		gotReceivers = receiverIds
		return nil
	}

	cfg := &config.Config{PlotDir: "plots", RawPlotDir: "rawplots"}
	report, cleanReport, summary := testReports()
	pushReports(cfg, newTestLogger(t), "occurrence.txt", report, cleanReport, summary)

	if !strings.Contains(gotContent, "质量报告") {
		t.Errorf("通知内容应包含失败的报告名: %s", gotContent)
	}
	if !reflect.DeepEqual(gotReceivers, []string{datapush.USER_ID}) {
		t.Errorf("通知接收人不对: %v", gotReceivers)
	}
}
