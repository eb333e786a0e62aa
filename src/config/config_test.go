package config

import (
	"encoding/json"
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	jsonFolder := "../../config"
	jsonFile := "config.json"
	dataJsonFile := "dataconfig.json"

	cfg, dcfg, err := LoadConfig(jsonFolder, jsonFile, dataJsonFile)
	if err != nil {
		t.Fatal("加载配置失败:", err)
	}

	if cfg.Email.Server != "imap.qq.com:993" {
		t.Errorf("邮件服务器配置不对: %s", cfg.Email.Server)
	}
	if time.Duration(cfg.Email.CheckInterval) != 5*time.Minute {
		t.Errorf("检查间隔不对: %v", cfg.Email.CheckInterval)
	}
	if cfg.SplitParts <= 0 {
		t.Errorf("分片数不对: %d", cfg.SplitParts)
	}

	if dcfg.GetColumn("iucn") != "iucnRedListCategory" {
		t.Errorf("列映射不对: %s", dcfg.GetColumn("iucn"))
	}
	// 未配置的逻辑列原样返回
	if dcfg.GetColumn("phylum") != "phylum" {
		t.Errorf("缺省列映射不对: %s", dcfg.GetColumn("phylum"))
	}
	if dcfg.GetCleaning("删除重复行") != 1 {
		t.Errorf("清洗开关不对")
	}
	if len(dcfg.IucnCodes) != 9 {
		t.Errorf("IUCN代码集不对: %v", dcfg.IucnCodes)
	}

	dcfg.SetColumn("remark", "occurrenceRemarks")
	if dcfg.GetColumn("remark") != "occurrenceRemarks" {
		t.Errorf("SetColumn未生效")
	}
	dcfg.SetCleaning("删除重复行", 0)
	if dcfg.GetCleaning("删除重复行") != 0 {
		t.Errorf("SetCleaning未生效")
	}
	dcfg.SetCleaning("删除重复行", 1)

	// 单例：重复调用返回同一实例和同一错误
	cfg2, dcfg2, err2 := LoadConfig("no-such-folder", jsonFile, dataJsonFile)
	if cfg2 != cfg || dcfg2 != dcfg || err2 != nil {
		t.Errorf("重复加载应返回首次结果: %v", err2)
	}
}

func TestLoadConfigsBadPath(t *testing.T) {
	if _, _, err := loadConfigs("no-such-folder", "config.json", "dataconfig.json"); err == nil {
		t.Errorf("配置文件不存在应报错")
	}
}

func TestCanonicalIucn(t *testing.T) {
	dcfg := &DataConfig{
		IucnCodes:    []string{"EX", "EW", "CR", "EN", "VU", "NT", "LC", "DD", "NE"},
		IucnSynonyms: map[string]string{"LEAST CONCERN": "LC", "VULNERABLE": "VU"},
	}

	cases := map[string]string{
		"LC":            "LC",
		"LEAST CONCERN": "LC",
		"VULNERABLE":    "VU",
		"WHATEVER":      "NE",
		"":              "NE",
	}
	for in, want := range cases {
		if got := dcfg.CanonicalIucn(in); got != want {
			t.Errorf("CanonicalIucn(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestDurationUnmarshal(t *testing.T) {
	var v struct {
		Interval Duration `json:"interval"`
	}
	if err := json.Unmarshal([]byte(`{"interval": "90s"}`), &v); err != nil {
		t.Fatal(err)
	}
	if time.Duration(v.Interval) != 90*time.Second {
		t.Errorf("Duration解析不对: %v", v.Interval)
	}

	if err := json.Unmarshal([]byte(`{"interval": "bad"}`), &v); err == nil {
		t.Errorf("非法Duration应报错")
	}
}
