package symboltable

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/text/unicode/norm"
	"k8s.io/klog/v2"
)

// DefaultLabel 符号列表头
const DefaultLabel = "الرمز"

// InlineAssetClass 注入图片的 class
const InlineAssetClass = "doc-inline-asset"

// 合并单元格跨度上限
const maxSpan = 1000

// Image 可供回填的图片，SHA256 为身份
type Image struct {
	URL    string
	SHA256 string
}

// Injector 把未使用的图片按出现顺序回填到符号列的空单元格。
// 匹配只依据出现顺序，不校验图片内容。
type Injector struct {
	Label string
}

func New(label string) *Injector {
	if strings.TrimSpace(label) == "" {
		label = DefaultLabel
	}
	return &Injector{Label: label}
}

// Inject 返回修复后的 markup 与已使用图片的 SHA256 集合。
// 没有任何单元格被填充时原样返回输入。
func (in *Injector) Inject(markup string, images []Image) (string, map[string]bool) {
	used := make(map[string]bool)
	if len(images) == 0 || !HasTable(markup) {
		return markup, used
	}
	doc, err := ParseFragment(markup)
	if err != nil {
		klog.Warningf("symboltable: 解析 HTML 失败: %v", err)
		return markup, used
	}

	next := 0
	in.walkEmptyCells(doc, func(cell *html.Node) bool {
		if next >= len(images) {
			return false
		}
		img := images[next]
		next++
		cell.AppendChild(&html.Node{
			Type:     html.ElementNode,
			DataAtom: atom.Img,
			Data:     "img",
			Attr: []html.Attribute{
				{Key: "class", Val: InlineAssetClass},
				{Key: "src", Val: img.URL},
				{Key: "alt", Val: ""},
			},
		})
		used[img.SHA256] = true
		return next < len(images)
	})

	if next == 0 {
		return markup, used
	}
	out, err := RenderFragment(doc)
	if err != nil {
		klog.Warningf("symboltable: 输出 HTML 失败: %v", err)
		return markup, map[string]bool{}
	}
	klog.V(6).Infof("symboltable: 回填 %d 张图片", next)
	return out, used
}

// HasEmptySymbolCells 探测 markup 中是否存在可回填的空符号单元格
func (in *Injector) HasEmptySymbolCells(markup string) bool {
	if !HasTable(markup) {
		return false
	}
	doc, err := ParseFragment(markup)
	if err != nil {
		return false
	}
	found := false
	in.walkEmptyCells(doc, func(*html.Node) bool {
		found = true
		return false
	})
	return found
}

// HasImage markup 中是否已有图片引用
func HasImage(markup string) bool {
	return strings.Contains(strings.ToLower(markup), "<img")
}

func HasTable(markup string) bool {
	return strings.Contains(strings.ToLower(markup), "<table")
}

// ParseFragment 以 <body> 为上下文解析片段，开头的 <style>/<link>/<meta> 保留在原位
func ParseFragment(markup string) (*goquery.Document, error) {
	body := &html.Node{Type: html.ElementNode, DataAtom: atom.Body, Data: "body"}
	nodes, err := html.ParseFragment(strings.NewReader(markup), body)
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		body.AppendChild(n)
	}
	return goquery.NewDocumentFromNode(body), nil
}

// RenderFragment 输出 ParseFragment 得到的片段
func RenderFragment(doc *goquery.Document) (string, error) {
	var b strings.Builder
	for _, root := range doc.Nodes {
		for c := root.FirstChild; c != nil; c = c.NextSibling {
			if err := html.Render(&b, c); err != nil {
				return "", err
			}
		}
	}
	return b.String(), nil
}

// walkEmptyCells 按表格、行的出现顺序访问符号列中的空单元格，fn 返回 false 时停止
func (in *Injector) walkEmptyCells(doc *goquery.Document, fn func(cell *html.Node) bool) {
	label := normalize(in.Label)
	stop := false

	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		rows := table.Find("tr").FilterFunction(func(_ int, tr *goquery.Selection) bool {
			return tr.Closest("table").IsSelection(table)
		})
		if rows.Length() < 2 {
			return true
		}
		grid := buildGrid(rows)

		col := -1
		for _, c := range grid.cells[0] {
			if strings.Contains(normalize(goquery.NewDocumentFromNode(c.node).Text()), label) {
				col = c.col
				break
			}
		}
		if col < 0 {
			return true
		}

		for r := 1; r < len(grid.cells); r++ {
			cell := grid.ownCellAt(r, col)
			// 被上方 rowspan 占用的位置不属于本行
			if cell == nil || !isEmptyCell(cell.node) {
				continue
			}
			if !fn(cell.node) {
				stop = true
				return false
			}
		}
		return !stop
	})
}

type gridCell struct {
	node *html.Node
	col  int
	span int
}

type tableGrid struct {
	cells [][]*gridCell // 每行自身的单元格
}

// ownCellAt 返回第 r 行起始于本行且覆盖逻辑列 col 的单元格
func (g *tableGrid) ownCellAt(r, col int) *gridCell {
	for _, c := range g.cells[r] {
		if col >= c.col && col < c.col+c.span {
			return c
		}
	}
	return nil
}

// buildGrid 计算每个单元格的逻辑列：累加 colspan，并跳过上方 rowspan 占用的位置。
// 逻辑宽度不超过表格单元格总数，rowspan 不超过剩余行数。
func buildGrid(rows *goquery.Selection) *tableGrid {
	g := &tableGrid{}
	width := rows.ChildrenFiltered("td, th").Length()
	// busyUntil[c] 为逻辑列 c 被 rowspan 占用到的行（不含）
	busyUntil := make([]int, width)
	total := rows.Length()

	rows.Each(func(r int, tr *goquery.Selection) {
		var own []*gridCell
		col := 0
		tr.ChildrenFiltered("td, th").Each(func(_ int, td *goquery.Selection) {
			for col < width && busyUntil[col] > r {
				col++
			}
			colspan := min(spanAttr(td, "colspan"), width)
			rowspan := min(spanAttr(td, "rowspan"), total-r)
			own = append(own, &gridCell{node: td.Get(0), col: col, span: colspan})

			if rowspan > 1 {
				for c := col; c < col+colspan && c < width; c++ {
					busyUntil[c] = max(busyUntil[c], r+rowspan)
				}
			}
			col += colspan
		})
		g.cells = append(g.cells, own)
	})
	return g
}

func spanAttr(s *goquery.Selection, name string) int {
	v, ok := s.Attr(name)
	if !ok {
		return 1
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 1 {
		return 1
	}
	if n > maxSpan {
		return maxSpan
	}
	return n
}

// isEmptyCell 没有图片且没有非空白文本
func isEmptyCell(n *html.Node) bool {
	s := goquery.NewDocumentFromNode(n).Selection
	if s.Find("img").Length() > 0 {
		return false
	}
	return strings.TrimSpace(s.Text()) == ""
}

func normalize(s string) string {
	return norm.NFC.String(strings.Join(strings.Fields(s), " "))
}
