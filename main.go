package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/robfig/cron"

	"BiodivQuality/src/config"
	"BiodivQuality/src/datapush"
	"BiodivQuality/src/datasource/email"
	"BiodivQuality/src/datasource/file"
	"BiodivQuality/src/processor"
	"BiodivQuality/src/storage"
	"BiodivQuality/src/utils"
	"BiodivQuality/src/visual"
)

func main() {
	jsonFolder := "./config"
	jsonFile := "config.json"
	dataJsonFile := "dataconfig.json"
	cfg, dcfg, err := config.LoadConfig(jsonFolder, jsonFile, dataJsonFile)
	if err != nil {
		log.Fatal("加载配置失败:", err)
	}

	// 初始化日志系统
	logger, err := storage.NewLogger(cfg.LogName)
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Close()

	// 先对配置里的原始文件完整跑一遍
	if err := runPipeline(cfg, dcfg, logger, cfg.RawFile); err != nil {
		logger.Error("数据处理失败: " + err.Error())
		if !cfg.Watch {
			os.Exit(1)
		}
	}

	if !cfg.Watch {
		return
	}

	// 目录监控：新数据文件落盘即重跑流水线
	monitor, err := file.NewFileMonitor(cfg.DataDir)
	if err != nil {
		logger.Error("创建目录监控失败: " + err.Error())
		return
	}
	defer monitor.Close()

	go func() {
		err := monitor.Watch(func(filePath string) {
			logger.Info("检测到数据文件更新: " + filePath)
			if err := runPipeline(cfg, dcfg, logger, filePath); err != nil {
				logger.Error("数据处理失败: " + err.Error())
			}
		})
		if err != nil {
			logger.Error("目录监控出错: " + err.Error())
		}
	}()

	// 邮箱地址，用户名和密码
	emailClient := email.NewEmailClient(
		cfg.Email.Server,
		cfg.Email.Username,
		cfg.Email.Password)

	handler := email.NewDatasetAttachmentHandler(cfg.Email.TargetSubject, cfg.DataDir)

	// 设置定时任务
	c := cron.New()

	interval := time.Duration(cfg.Email.CheckInterval).String() // 例如 "5m0s"
	cronSpec := fmt.Sprintf("@every %s", interval)

	err = c.AddFunc(cronSpec, func() {
		logger.Info(fmt.Sprintf("开始定时检查(间隔: %v)...", cronSpec))

		if err := logger.CheckRotate(cfg); err != nil {
			logger.Warning("日志轮转失败: " + err.Error())
		}

		// 查询email是否有新的调查数据
		newEmail, err := email.CheckAndProcessEmails(emailClient, cfg.Email.TargetSubject, logger)
		if err != nil {
			logger.Error("检查处理邮件失败: " + err.Error())
			return
		}
		if newEmail == nil {
			return
		}

		// 附件落盘后重跑流水线
		if err := handler.Handle(newEmail); err != nil {
			logger.Error(fmt.Sprintf("处理邮件失败(UID:%d): %v", newEmail.UID, err))
			return
		}
		if saved := handler.LastFile(); saved != "" {
			if err := runPipeline(cfg, dcfg, logger, saved); err != nil {
				logger.Error("数据处理失败: " + err.Error())
			}
		}
	})
	if err != nil {
		logger.Error("创建定时任务失败: " + err.Error())
		return
	}

	// 启动定时任务
	c.Start()
	defer c.Stop()

	logger.Info(fmt.Sprintf("数据监控服务已启动(检查间隔: %v)，按Ctrl+C退出", interval))

	ctx, cancel := context.WithCancel(context.Background())
	file.SetupSignalHandler(cancel)
	<-ctx.Done()
	logger.Info("数据监控服务已停止")
}

// runPipeline 对一个数据文件顺序执行四个阶段：
// 质量体检 -> 原始数据图表 -> 清洗 -> 分析图表，
// 最后切分数据集并推送报告
func runPipeline(cfg *config.Config, dcfg *config.DataConfig, logger *storage.Logger, dataFile string) error {
	t1 := time.Now()
	logger.Info("开始处理数据集: " + dataFile)

	var df dataframe.DataFrame
	var err error
	if strings.ToLower(filepath.Ext(dataFile)) == ".xlsx" {
		df, err = file.ReadXLSX(dataFile, cfg.SheetName)
	} else {
		df, err = file.ReadCSVToDataFrame(dataFile)
	}
	if err != nil {
		return fmt.Errorf("读取数据失败: %w", err)
	}
	logger.Info(fmt.Sprintf("数据集规模: %d 行 x %d 列", df.Nrow(), df.Ncol()))

	// 1. 质量体检
	qa := processor.NewQualityAnalyzer(dcfg)
	report, err := qa.Analyze(df)
	if err != nil {
		return fmt.Errorf("质量分析失败: %w", err)
	}
	logger.Report(report.Format())

	// 2. 原始数据图表
	rawPlots, err := visual.NewPlotter(cfg.RawPlotDir)
	if err != nil {
		return err
	}
	if err := rawPlots.MissingHeatmap(df, "missing_values_heatmap.png"); err != nil {
		logger.Warning("缺失值热力图生成失败: " + err.Error())
	}
	if err := rawPlots.NumericalDistributions(df, "numerical_distributions.png"); err != nil {
		logger.Warning("数值分布图生成失败: " + err.Error())
	}
	catCols := []string{
		dcfg.GetColumn("taxonRank"),
		dcfg.GetColumn("taxonomicStatus"),
		dcfg.GetColumn("countryCode"),
	}
	if err := rawPlots.CategoricalBars(df, catCols, "categorical_distributions.png"); err != nil {
		logger.Warning("类别分布图生成失败: " + err.Error())
	}
	iucnCol := dcfg.GetColumn("iucn")
	if utils.HasColumn(df, iucnCol) {
		if err := rawPlots.IucnBar(visual.CountValues(df.Col(iucnCol)), "iucn_categories.png"); err != nil {
			logger.Warning("IUCN分布图生成失败: " + err.Error())
		}
	}

	// 3. 清洗
	cl := processor.NewCleaner(dcfg)
	cleaned, cleanReport, err := cl.Clean(df)
	if err != nil {
		return fmt.Errorf("清洗失败: %w", err)
	}
	logger.Report(cleanReport.Format())

	if err := cl.WriteCleaned(cleaned, cfg.CleanedCSV); err != nil {
		return fmt.Errorf("保存清洗数据失败: %w", err)
	}
	logger.Info("清洗后数据已保存: " + cfg.CleanedCSV)

	// 顺手存一份xlsx，方便人工核查
	xlsxPath := strings.TrimSuffix(cfg.CleanedCSV, filepath.Ext(cfg.CleanedCSV)) + ".xlsx"
	if err := utils.SaveToExcel(cleaned, xlsxPath); err != nil {
		logger.Warning("保存xlsx副本失败: " + err.Error())
	}

	// 4. 分析与图表
	an := processor.NewAnalyzer(dcfg)
	summary, err := an.Summarize(cleaned)
	if err != nil {
		return fmt.Errorf("分析失败: %w", err)
	}
	logger.Report(summary.Format())

	cleanPlots, err := visual.NewPlotter(cfg.PlotDir)
	if err != nil {
		return err
	}
	if err := cleanPlots.TaxonomicDiversity(summary.TaxonRanks, summary.RankUniques, "taxonomic_diversity.png"); err != nil {
		logger.Warning("分类多样性图生成失败: " + err.Error())
	}
	if err := cleanPlots.IucnBar(summary.IucnCounts, "iucn_distribution.png"); err != nil {
		logger.Warning("IUCN分布图生成失败: " + err.Error())
	}
	if err := cleanPlots.TemporalLine(summary.YearCounts, "temporal_distribution.png"); err != nil {
		logger.Warning("时间分布图生成失败: " + err.Error())
	}
	if err := cleanPlots.GeographicBars(summary.StateCounts, "geographic_distribution.png"); err != nil {
		logger.Warning("地理分布图生成失败: " + err.Error())
	}
	if err := cleanPlots.CompletenessBars(summary.Completeness, "data_completeness.png"); err != nil {
		logger.Warning("完整度图生成失败: " + err.Error())
	}

	// 5. 切分数据集，便于分批人工校对
	if cfg.SplitParts > 1 {
		partFiles, err := file.SplitCSV(cfg.CleanedCSV, cfg.SplitDir, cfg.SplitParts)
		if err != nil {
			logger.Warning("切分数据集失败: " + err.Error())
		} else {
			logger.Info(fmt.Sprintf("数据集已切分为 %d 份: %s", len(partFiles), cfg.SplitDir))
		}
	}

	// 6. 推送报告：同步调用，单次运行退出前必须推完；失败只告警
	pushReports(cfg, logger, dataFile, report, cleanReport, summary)

	// 7. 报告邮件
	if cfg.SendEmail.Password != "" {
		body := report.Format() + "\n" + cleanReport.Format() + "\n" + summary.Format()
		attachments := []string{
			cfg.CleanedCSV,
			filepath.Join(cfg.PlotDir, "taxonomic_diversity.png"),
			filepath.Join(cfg.PlotDir, "iucn_distribution.png"),
			filepath.Join(cfg.PlotDir, "temporal_distribution.png"),
			filepath.Join(cfg.PlotDir, "geographic_distribution.png"),
			filepath.Join(cfg.PlotDir, "data_completeness.png"),
		}
		if err := email.SendReport(cfg, cfg.SendEmail.TargetSubject, body, attachments); err != nil {
			logger.Warning("报告邮件发送失败: " + err.Error())
		} else {
			logger.Info("报告邮件已发送")
		}
	}

	logger.Info(fmt.Sprintf("数据处理时间：%v", time.Since(t1)))
	return nil
}

// 推送函数做成变量，测试里可替换
var (
	syncQuality  = datapush.SyncQualityReport
	syncCleaning = datapush.SyncCleaningReport
	syncAnalysis = datapush.SyncAnalysisReport
	notifyFail   = datapush.SendDingMessage
)

// pushReports 把三份报告同步到宜搭表单，任一失败再发一条钉钉通知
func pushReports(cfg *config.Config, logger *storage.Logger, dataFile string,
	report *processor.QualityReport, cleanReport *processor.CleaningReport, summary *processor.AnalysisSummary) {

	var failures []string
	nowMs := time.Now().UnixNano() / int64(time.Millisecond)

	qualityData := map[string]interface{}{
		"数据日期时间": nowMs,
		"数据文件":   dataFile,
		"总行数":    report.Rows,
		"重复行数":   report.DuplicateRows,
		"质量报告":   report.Format(),
		"缺失值热力图": filepath.Join(cfg.RawPlotDir, "missing_values_heatmap.png"),
	}
	if err := syncQuality(qualityData); err != nil {
		logger.Warning("同步质量报告失败: " + err.Error())
		failures = append(failures, "质量报告")
	}

	cleaningData := map[string]interface{}{
		"数据日期时间": nowMs,
		"清洗前行数":  cleanReport.RowsBefore,
		"清洗后行数":  cleanReport.RowsAfter,
		"清洗报告":   cleanReport.Format(),
	}
	if err := syncCleaning(cleaningData); err != nil {
		logger.Warning("同步清洗报告失败: " + err.Error())
		failures = append(failures, "清洗报告")
	}

	analysisData := map[string]interface{}{
		"数据日期时间": nowMs,
		"记录总数":   summary.TotalRecords,
		"分析摘要":   summary.Format(),
		"分类多样性图": filepath.Join(cfg.PlotDir, "taxonomic_diversity.png"),
		"IUCN分布图": filepath.Join(cfg.PlotDir, "iucn_distribution.png"),
		"时间分布图":  filepath.Join(cfg.PlotDir, "temporal_distribution.png"),
		"地理分布图":  filepath.Join(cfg.PlotDir, "geographic_distribution.png"),
		"完整度图":   filepath.Join(cfg.PlotDir, "data_completeness.png"),
	}
	if err := syncAnalysis(analysisData); err != nil {
		logger.Warning("同步分析报告失败: " + err.Error())
		failures = append(failures, "分析报告")
	}

	if len(failures) > 0 {
		msg := fmt.Sprintf("数据集 %s 报告同步失败: %s", dataFile, strings.Join(failures, "、"))
		if err := notifyFail(msg, []string{datapush.USER_ID}); err != nil {
			logger.Warning("发送钉钉通知失败: " + err.Error())
		}
	}
}
