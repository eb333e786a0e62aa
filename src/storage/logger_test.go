package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"BiodivQuality/src/config"
)

func TestLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	logger, err := NewLogger(path)
	if err != nil {
		t.Fatal(err)
	}
	logger.console = false

	logger.Info("流水线启动")
	logger.Error("出错了")
	logger.Report("阶段报告\n第二行")
	logger.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	if !strings.Contains(text, "INFO: 流水线启动") {
		t.Errorf("缺少INFO日志: %s", text)
	}
	if !strings.Contains(text, "ERROR: 出错了") {
		t.Errorf("缺少ERROR日志: %s", text)
	}
	if !strings.Contains(text, "阶段报告\n第二行") {
		t.Errorf("缺少阶段报告: %s", text)
	}
}

func TestLoggerSubscribe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	logger, err := NewLogger(path)
	if err != nil {
		t.Fatal(err)
	}
	defer logger.Close()
	logger.console = false

	ch := logger.Subscribe()
	logger.Warning("磁盘空间不足")

	msg := <-ch
	if !strings.Contains(msg, "WARNING: 磁盘空间不足") {
		t.Errorf("订阅消息不对: %s", msg)
	}
}

func TestLoggerRotate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.log")
	logger, err := NewLogger(path)
	if err != nil {
		t.Fatal(err)
	}
	defer logger.Close()
	logger.console = false

	logger.Info("一条足够长的日志，确保超过轮转上限")

	cfg := &config.Config{LogMaxSize: "1"}
	if err := logger.CheckRotate(cfg); err != nil {
		t.Fatal(err)
	}

	// 轮转后原路径重新开始，旧日志带时间戳后缀
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) < 2 {
		t.Errorf("轮转后应有两个日志文件: %d", len(entries))
	}

	// 轮转后的句柄仍可写
	logger.Info("轮转后的日志")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "轮转后的日志") {
		t.Errorf("轮转后写入失效: %s", data)
	}
}

func TestLoggerReopen(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(filepath.Join(dir, "old.log"))
	if err != nil {
		t.Fatal(err)
	}
	defer logger.Close()
	logger.console = false

	newPath := filepath.Join(dir, "new.log")
	if err := logger.Reopen(newPath); err != nil {
		t.Fatal(err)
	}
	logger.Info("切换日志文件")

	data, err := os.ReadFile(newPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "切换日志文件") {
		t.Errorf("Reopen后写入失效: %s", data)
	}
}

func TestLogLevelString(t *testing.T) {
	cases := map[LogLevel]string{
		DEBUG:        "DEBUG",
		INFO:         "INFO",
		WARNING:      "WARNING",
		ERROR:        "ERROR",
		FATAL:        "FATAL",
		LogLevel(99): "UNKNOWN",
	}
	for level, want := range cases {
		if got := level.String(); got != want {
			t.Errorf("LogLevel(%d).String() = %s, want %s", level, got, want)
		}
	}
}
