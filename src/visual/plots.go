// plots.go
package visual

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"BiodivQuality/src/processor"
)

// 直方图每张最多取前几个数值列
const maxNumericPlots = 5

// 完整度图只展示最完整的前20列
const maxCompletenessBars = 20

// 默认配色，与原始图表保持一致
var defaultColors = []color.Color{
	hexColor("#1f77b4"), hexColor("#ff7f0e"), hexColor("#2ca02c"),
	hexColor("#d62728"), hexColor("#9467bd"), hexColor("#8c564b"),
	hexColor("#e377c2"), hexColor("#7f7f7f"), hexColor("#bcbd22"),
	hexColor("#17becf"),
}

// IUCN红色名录分类的惯用配色
var iucnColors = map[string]color.Color{
	"EX": hexColor("#000000"),
	"EW": hexColor("#424242"),
	"CR": hexColor("#F44336"),
	"EN": hexColor("#FF5722"),
	"VU": hexColor("#FF9800"),
	"NT": hexColor("#FFC107"),
	"LC": hexColor("#4CAF50"),
	"DD": hexColor("#9E9E9E"),
	"NE": hexColor("#BDBDBD"),
}

func hexColor(s string) color.Color {
	s = strings.TrimPrefix(s, "#")
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.Black
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}
}

// Plotter 将图表渲染为PNG并保存到固定目录
type Plotter struct {
	Dir string
}

func NewPlotter(dir string) (*Plotter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("创建图表目录失败: %w", err)
	}
	return &Plotter{Dir: dir}, nil
}

func (p *Plotter) path(name string) string {
	return filepath.Join(p.Dir, name)
}

/******************** 原始数据图表 ********************/

// MissingHeatmap 缺失值热力图：行×列的缺失掩码
func (p *Plotter) MissingHeatmap(df dataframe.DataFrame, filename string) error {
	grid := newMissingGrid(df)

	plt := plot.New()
	plt.Title.Text = "缺失值热力图"
	plt.X.Label.Text = "列"
	plt.Y.Label.Text = "行"

	hm := plotter.NewHeatMap(grid, palette.Heat(12, 1))
	plt.Add(hm)

	return plt.Save(12*vg.Inch, 6*vg.Inch, p.path(filename))
}

// missingGrid 实现plotter.GridXYZ，Z=1表示缺失
type missingGrid struct {
	mask [][]float64 // [col][row]
}

func newMissingGrid(df dataframe.DataFrame) *missingGrid {
	mask := make([][]float64, df.Ncol())
	for c, col := range df.Names() {
		s := df.Col(col)
		mask[c] = make([]float64, s.Len())
		for r := 0; r < s.Len(); r++ {
			if isMissingVal(s, r) {
				mask[c][r] = 1
			}
		}
	}
	return &missingGrid{mask: mask}
}

func (g *missingGrid) Dims() (int, int) {
	if len(g.mask) == 0 {
		return 0, 0
	}
	return len(g.mask), len(g.mask[0])
}
func (g *missingGrid) Z(c, r int) float64 { return g.mask[c][r] }
func (g *missingGrid) X(c int) float64    { return float64(c) }
func (g *missingGrid) Y(r int) float64    { return float64(r) }

// NumericalDistributions 前几个数值列的直方图，纵向拼在一张图里
func (p *Plotter) NumericalDistributions(df dataframe.DataFrame, filename string) error {
	var plots []*plot.Plot
	for _, col := range df.Names() {
		if len(plots) >= maxNumericPlots {
			break
		}
		vals := floatValues(df.Col(col))
		if len(vals) == 0 {
			continue
		}

		plt := plot.New()
		plt.Title.Text = fmt.Sprintf("%s 的分布", col)
		plt.X.Label.Text = col
		plt.Y.Label.Text = "频数"

		h, err := plotter.NewHist(plotter.Values(vals), 30)
		if err != nil {
			return fmt.Errorf("创建直方图失败 %s: %w", col, err)
		}
		h.FillColor = defaultColors[len(plots)%len(defaultColors)]
		plt.Add(h)
		plots = append(plots, plt)
	}

	if len(plots) == 0 {
		return fmt.Errorf("没有可绘制的数值列")
	}
	return p.saveTiled(plots, 10*vg.Inch, 4*vg.Inch, filename)
}

// CategoricalBars 指定类别列的取值分布，纵向拼图
func (p *Plotter) CategoricalBars(df dataframe.DataFrame, cols []string, filename string) error {
	var plots []*plot.Plot
	for _, col := range cols {
		if !hasColumn(df, col) {
			continue
		}
		counts := CountValues(df.Col(col))
		if len(counts) == 0 {
			continue
		}

		plt := plot.New()
		plt.Title.Text = fmt.Sprintf("%s 的分布", col)
		plt.Y.Label.Text = "数量"

		values := make(plotter.Values, len(counts))
		names := make([]string, len(counts))
		for i, vc := range counts {
			values[i] = float64(vc.Count)
			names[i] = vc.Value
		}
		bc, err := plotter.NewBarChart(values, vg.Points(20))
		if err != nil {
			return fmt.Errorf("创建条形图失败 %s: %w", col, err)
		}
		bc.Color = defaultColors[0]
		plt.Add(bc)
		plt.NominalX(names...)
		plots = append(plots, plt)
	}

	if len(plots) == 0 {
		return fmt.Errorf("没有可绘制的类别列")
	}
	return p.saveTiled(plots, 12*vg.Inch, 5*vg.Inch, filename)
}

// IucnBar IUCN分类分布，每类使用惯用颜色
func (p *Plotter) IucnBar(counts []processor.ValueCount, filename string) error {
	if len(counts) == 0 {
		return fmt.Errorf("没有IUCN数据可绘制")
	}

	plt := plot.New()
	plt.Title.Text = "IUCN红色名录分类分布"
	plt.X.Label.Text = "IUCN分类"
	plt.Y.Label.Text = "物种数量"

	names := make([]string, len(counts))
	for i, vc := range counts {
		names[i] = vc.Value

		// 单独一组值只在第i位非零，使每根柱子可以独立着色
		values := make(plotter.Values, len(counts))
		values[i] = float64(vc.Count)
		bc, err := plotter.NewBarChart(values, vg.Points(24))
		if err != nil {
			return fmt.Errorf("创建IUCN条形图失败: %w", err)
		}
		c, ok := iucnColors[vc.Value]
		if !ok {
			c = hexColor("#2196F3")
		}
		bc.Color = c
		plt.Add(bc)
	}
	plt.NominalX(names...)

	return plt.Save(10*vg.Inch, 6*vg.Inch, p.path(filename))
}

/******************** 清洗后数据图表 ********************/

// TaxonomicDiversity 各分类阶元的唯一分类单元数
func (p *Plotter) TaxonomicDiversity(ranks []string, uniques []int, filename string) error {
	if len(ranks) == 0 {
		return fmt.Errorf("没有分类阶元数据可绘制")
	}

	plt := plot.New()
	plt.Title.Text = "分类多样性"
	plt.X.Label.Text = "分类阶元"
	plt.Y.Label.Text = "唯一分类单元数"

	values := make(plotter.Values, len(uniques))
	for i, n := range uniques {
		values[i] = float64(n)
	}
	bc, err := plotter.NewBarChart(values, vg.Points(30))
	if err != nil {
		return fmt.Errorf("创建分类多样性图失败: %w", err)
	}
	bc.Color = defaultColors[2]
	plt.Add(bc)
	plt.NominalX(ranks...)

	return plt.Save(12*vg.Inch, 6*vg.Inch, p.path(filename))
}

// TemporalLine 按年份的记录数折线图
func (p *Plotter) TemporalLine(years []processor.YearCount, filename string) error {
	if len(years) == 0 {
		return fmt.Errorf("没有时间数据可绘制")
	}

	plt := plot.New()
	plt.Title.Text = "记录的时间分布"
	plt.X.Label.Text = "年份"
	plt.Y.Label.Text = "记录数"

	xys := make(plotter.XYs, len(years))
	for i, yc := range years {
		xys[i].X = float64(yc.Year)
		xys[i].Y = float64(yc.Count)
	}
	line, points, err := plotter.NewLinePoints(xys)
	if err != nil {
		return fmt.Errorf("创建时间分布图失败: %w", err)
	}
	line.Color = defaultColors[0]
	points.Color = defaultColors[3]
	plt.Add(line, points)

	return plt.Save(12*vg.Inch, 6*vg.Inch, p.path(filename))
}

// GeographicBars 按省/州的记录数
func (p *Plotter) GeographicBars(counts []processor.ValueCount, filename string) error {
	if len(counts) == 0 {
		return fmt.Errorf("没有地理数据可绘制")
	}

	plt := plot.New()
	plt.Title.Text = "按省/州的地理分布"
	plt.X.Label.Text = "省/州"
	plt.Y.Label.Text = "记录数"

	values := make(plotter.Values, len(counts))
	names := make([]string, len(counts))
	for i, vc := range counts {
		values[i] = float64(vc.Count)
		names[i] = vc.Value
	}
	bc, err := plotter.NewBarChart(values, vg.Points(18))
	if err != nil {
		return fmt.Errorf("创建地理分布图失败: %w", err)
	}
	bc.Color = defaultColors[1]
	plt.Add(bc)
	plt.NominalX(names...)

	return plt.Save(12*vg.Inch, 6*vg.Inch, p.path(filename))
}

// CompletenessBars 完整度最高的前20列，水平条形图
func (p *Plotter) CompletenessBars(completeness []processor.ColumnCompleteness, filename string) error {
	if len(completeness) == 0 {
		return fmt.Errorf("没有完整度数据可绘制")
	}

	// 输入按完整度升序，截取尾部的前20名
	top := completeness
	if len(top) > maxCompletenessBars {
		top = top[len(top)-maxCompletenessBars:]
	}

	plt := plot.New()
	plt.Title.Text = "数据完整度（前20列）"
	plt.X.Label.Text = "完整度 (%)"

	values := make(plotter.Values, len(top))
	names := make([]string, len(top))
	for i, cc := range top {
		values[i] = cc.Percent
		names[i] = cc.Column
	}
	bc, err := plotter.NewBarChart(values, vg.Points(12))
	if err != nil {
		return fmt.Errorf("创建完整度图失败: %w", err)
	}
	bc.Horizontal = true
	bc.Color = defaultColors[0]
	plt.Add(bc)
	plt.NominalY(names...)

	return plt.Save(12*vg.Inch, 6*vg.Inch, p.path(filename))
}

/******************** 辅助函数 ********************/

// saveTiled 将多张图纵向排布渲染为一个PNG
func (p *Plotter) saveTiled(plots []*plot.Plot, width, rowHeight vg.Length, filename string) error {
	img := vgimg.New(width, rowHeight*vg.Length(len(plots)))
	dc := draw.New(img)

	tiles := draw.Tiles{Rows: len(plots), Cols: 1}
	grid := make([][]*plot.Plot, len(plots))
	for i, plt := range plots {
		grid[i] = []*plot.Plot{plt}
	}

	canvases := plot.Align(grid, tiles, dc)
	for i := range grid {
		grid[i][0].Draw(canvases[i][0])
	}

	w, err := os.Create(p.path(filename))
	if err != nil {
		return fmt.Errorf("创建图片文件失败: %w", err)
	}
	defer w.Close()

	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(w); err != nil {
		return fmt.Errorf("写入PNG失败: %w", err)
	}
	return nil
}

func hasColumn(df dataframe.DataFrame, name string) bool {
	for _, n := range df.Names() {
		if n == name {
			return true
		}
	}
	return false
}

func isMissingVal(s series.Series, i int) bool {
	el := s.Elem(i)
	if el.IsNA() {
		return true
	}
	v := el.String()
	return v == "" || v == "NaN"
}

// floatValues 取列中可解析的数值
func floatValues(s series.Series) []float64 {
	var vals []float64
	for i := 0; i < s.Len(); i++ {
		if isMissingVal(s, i) {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s.Elem(i).String()), 64)
		if err != nil {
			return nil // 混有非数值的列不画直方图
		}
		vals = append(vals, v)
	}
	return vals
}

// CountValues 类别列的取值计数，次数降序
func CountValues(s series.Series) []processor.ValueCount {
	counts := make(map[string]int)
	for i := 0; i < s.Len(); i++ {
		if isMissingVal(s, i) {
			continue
		}
		counts[s.Elem(i).String()]++
	}

	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	// 先按字典序，再按次数稳定排序，保证确定的输出
	sort.Strings(keys)
	out := make([]processor.ValueCount, 0, len(keys))
	for _, k := range keys {
		out = append(out, processor.ValueCount{Value: k, Count: counts[k]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}
