package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Config 结构体定义了应用程序的配置结构
type Config struct {
	Email struct {
		Server        string   `json:"server"`         // 邮件服务器地址
		Username      string   `json:"username"`       // 邮箱用户名
		Password      string   `json:"password"`       // 邮箱密码
		TargetSubject string   `json:"target_subject"` // 需要匹配的邮件主题
		CheckInterval Duration `json:"check_interval"` // 检查新邮件的间隔时间
	} `json:"email"`

	DataDir    string `json:"data_dir"`    // 原始数据存储目录
	RawFile    string `json:"raw_file"`    // 原始数据文件(GBIF occurrence导出)
	CleanedCSV string `json:"cleaned_csv"` // 清洗后数据集输出路径
	RawPlotDir string `json:"raw_plot_dir"`
	PlotDir    string `json:"plot_dir"` // 清洗后图表输出目录
	SplitDir   string `json:"split_dir"`
	SplitParts int    `json:"split_parts"`
	SheetName  string `json:"sheet_name"` // xlsx附件的工作表名
	Watch      bool   `json:"watch"`      // 是否开启目录监控+定时运行
	LogName    string `json:"log_name"`
	LogMaxSize string `json:"log_max_size"`
	SendEmail  struct {
		Server        string `json:"server"`         // SMTP服务器地址
		Username      string `json:"username"`       // 邮箱用户名
		Password      string `json:"password"`       // 邮箱密码
		TargetSubject string `json:"target_subject"` // 报告邮件主题
		Attachment    string `json:"attachment"`     // 随报告发送的附件
	} `json:"send_email"`
}

// DataConfig 数据集相关配置：列名映射、IUCN词表、清洗策略开关
type DataConfig struct {
	Columns      map[string]string `json:"columns"`      // 逻辑列名 -> 数据集物理列名
	IucnCodes    []string          `json:"iucncodes"`    // IUCN红色名录标准代码集
	IucnSynonyms map[string]string `json:"iucnsynonyms"` // 非标准写法 -> 标准代码
	TaxonRanks   []string          `json:"taxonranks"`   // 分类阶元列，按层级排序
	Cleaning     map[string]int    `json:"cleaning"`     // 清洗策略开关
}

var (
	once               sync.Once
	instance           *Config
	dataConfigInstance *DataConfig
	loadErr            error
	mu                 sync.RWMutex
)

// LoadConfig 加载配置单例，首次加载的结果（包括错误）对后续调用生效
func LoadConfig(jsonFolder, jsonFile, dataJsonFile string) (*Config, *DataConfig, error) {
	once.Do(func() {
		instance, dataConfigInstance, loadErr = loadConfigs(jsonFolder, jsonFile, dataJsonFile)
	})
	return instance, dataConfigInstance, loadErr
}

func loadConfigs(jsonFolder, jsonFile, dataJsonFile string) (*Config, *DataConfig, error) {
	configFile := filepath.Join(jsonFolder, jsonFile)
	dataConfigFile := filepath.Join(jsonFolder, dataJsonFile)

	configData, err := readFile(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	dataConfigData, err := readFile(dataConfigFile)
	if err != nil {
		return nil, nil, fmt.Errorf("读取数据配置文件失败: %w", err)
	}

	cfgChan := make(chan *Config, 1)
	dcfgChan := make(chan *DataConfig, 1)
	errChan := make(chan error, 2)

	go parseConfig(configData, cfgChan, errChan)
	go parseDataConfig(dataConfigData, dcfgChan, errChan)

	cfg, dcfg, err := waitForResults(cfgChan, dcfgChan, errChan)
	if err != nil {
		return nil, nil, err
	}

	return cfg, dcfg, nil
}

func readFile(filePath string) ([]byte, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("无法读取文件 %s: %w", filePath, err)
	}
	return data, nil
}

func parseConfig(data []byte, resultChan chan<- *Config, errChan chan<- error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		errChan <- fmt.Errorf("解析Config失败: %w", err)
		return
	}
	resultChan <- &cfg
}

func parseDataConfig(data []byte, resultChan chan<- *DataConfig, errChan chan<- error) {
	var dcfg DataConfig
	if err := json.Unmarshal(data, &dcfg); err != nil {
		errChan <- fmt.Errorf("解析DataConfig失败: %w", err)
		return
	}
	resultChan <- &dcfg
}

func waitForResults(
	cfgChan <-chan *Config,
	dcfgChan <-chan *DataConfig,
	errChan <-chan error,
) (*Config, *DataConfig, error) {
	var (
		cfg    *Config
		dcfg   *DataConfig
		errors []error
	)

	for i := 0; i < 2; i++ {
		select {
		case c := <-cfgChan:
			cfg = c
		case d := <-dcfgChan:
			dcfg = d
		case err := <-errChan:
			errors = append(errors, err)
		}
	}

	if len(errors) > 0 {
		return nil, nil, combineErrors(errors)
	}

	if cfg == nil || dcfg == nil {
		return nil, nil, fmt.Errorf("部分配置未加载成功")
	}

	return cfg, dcfg, nil
}

func combineErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}

	msg := "配置加载遇到多个错误:"
	for _, err := range errs {
		msg = fmt.Sprintf("%s\n- %v", msg, err)
	}
	return fmt.Errorf("%s", msg)
}

// Duration 是time.Duration的自定义包装类型
// 用于支持JSON序列化和反序列化
type Duration time.Duration

// UnmarshalJSON 实现json.Unmarshaler接口
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalJSON 实现json.Marshaler接口
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// GetColumn 获取逻辑列对应的物理列名，未配置时原样返回
func (dc *DataConfig) GetColumn(name string) string {
	mu.RLock()
	defer mu.RUnlock()
	if col, ok := dc.Columns[name]; ok {
		return col
	}
	return name
}

func (dc *DataConfig) SetColumn(name, value string) {
	mu.Lock()
	defer mu.Unlock()
	dc.Columns[name] = value
}

// GetCleaning 查询清洗策略开关，1为启用
func (dc *DataConfig) GetCleaning(name string) int {
	mu.RLock()
	defer mu.RUnlock()
	return dc.Cleaning[name]
}

func (dc *DataConfig) SetCleaning(name string, value int) {
	mu.Lock()
	defer mu.Unlock()
	dc.Cleaning[name] = value
}

// CanonicalIucn 将任意写法的IUCN代码归一到标准代码
// 未命中词表的值返回 "NE"（未评估）
func (dc *DataConfig) CanonicalIucn(value string) string {
	mu.RLock()
	defer mu.RUnlock()
	for _, code := range dc.IucnCodes {
		if value == code {
			return code
		}
	}
	if code, ok := dc.IucnSynonyms[value]; ok {
		return code
	}
	return "NE"
}
