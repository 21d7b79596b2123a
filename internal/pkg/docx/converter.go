package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"path"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"k8s.io/klog/v2"
)

// ImageHandler 接收内嵌图片的原始字节，返回写入 markup 的公开地址。
// 返回错误时仅丢弃该图片。
type ImageHandler func(ctx context.Context, data []byte, ext string) (string, error)

// Converter 把 .docx 的正文转换为 HTML 片段：段落、标题、粗斜体、下划线、换行、
// 外部超链接、表格（含合并单元格）以及内嵌图片。不追求版式还原。
type Converter struct{}

func NewConverter() *Converter {
	return &Converter{}
}

// ConvertFile 转换磁盘上的 .docx 文件
func (c *Converter) ConvertFile(ctx context.Context, filePath string, handler ImageHandler) (string, error) {
	zr, err := zip.OpenReader(filePath)
	if err != nil {
		return "", fmt.Errorf("open docx %s: %w", filePath, err)
	}
	defer zr.Close()
	return c.convert(ctx, zr.File, handler)
}

// Convert 转换内存中的 .docx 内容
func (c *Converter) Convert(ctx context.Context, data []byte, handler ImageHandler) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	return c.convert(ctx, zr.File, handler)
}

func (c *Converter) convert(ctx context.Context, files []*zip.File, handler ImageHandler) (string, error) {
	body, err := readZipFile(files, "word/document.xml")
	if err != nil {
		return "", fmt.Errorf("not a docx document: %w", err)
	}
	tree, err := parseTree(body)
	if err != nil {
		return "", err
	}
	bodyNode := tree.find("body")
	if bodyNode == nil {
		return "", fmt.Errorf("not a docx document: missing body")
	}

	rels := map[string]relationship{}
	if raw, err := readZipFile(files, "word/_rels/document.xml.rels"); err == nil {
		if parsed, err := parseRelationships(raw); err == nil {
			rels = parsed
		} else {
			klog.Warningf("docx: 关系文件解析失败: %v", err)
		}
	}

	w := &walker{
		ctx:     ctx,
		files:   files,
		rels:    rels,
		styles:  loadStyles(files),
		handler: handler,
	}
	root := &html.Node{Type: html.DocumentNode}
	if err := w.blocks(bodyNode, root); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, root); err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	klog.V(6).Infof("docx: 转换完成，图片 %d 张，HTML %d 字节", w.images, buf.Len())
	return buf.String(), nil
}

type walker struct {
	ctx     context.Context
	files   []*zip.File
	rels    map[string]relationship
	styles  map[string]string // styleId -> 样式名
	handler ImageHandler
	images  int
}

func (w *walker) blocks(parent *node, out *html.Node) error {
	for _, c := range parent.children {
		if err := w.ctx.Err(); err != nil {
			return err
		}
		switch c.local {
		case "p":
			w.paragraph(c, out)
		case "tbl":
			if err := w.table(c, out); err != nil {
				return err
			}
		case "sdt":
			if content := c.child("sdtContent"); content != nil {
				if err := w.blocks(content, out); err != nil {
					return err
				}
			}
		case "customXml", "ins", "smartTag":
			if err := w.blocks(c, out); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *walker) paragraph(p *node, out *html.Node) {
	tag := atom.P
	if pPr := p.child("pPr"); pPr != nil {
		if ps := pPr.child("pStyle"); ps != nil {
			tag = w.headingTag(ps.attr("val"))
		}
	}
	el := element(tag)
	w.inline(p, el)
	// 空段落不输出
	if el.FirstChild == nil {
		return
	}
	out.AppendChild(el)
}

var headingAtoms = []atom.Atom{atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6}

func (w *walker) headingTag(styleID string) atom.Atom {
	name := styleID
	if n, ok := w.styles[styleID]; ok && n != "" {
		name = n
	}
	key := strings.ToLower(strings.ReplaceAll(name, " ", ""))
	if key == "title" {
		return atom.H1
	}
	if strings.HasPrefix(key, "heading") {
		if level, err := strconv.Atoi(key[len("heading"):]); err == nil && level >= 1 && level <= 6 {
			return headingAtoms[level-1]
		}
	}
	return atom.P
}

func (w *walker) inline(parent *node, out *html.Node) {
	for _, c := range parent.children {
		switch c.local {
		case "r":
			w.run(c, out)
		case "hyperlink":
			w.hyperlink(c, out)
		case "sdt":
			if content := c.child("sdtContent"); content != nil {
				w.inline(content, out)
			}
		case "ins", "smartTag", "fldSimple", "customXml":
			w.inline(c, out)
		}
	}
}

func (w *walker) hyperlink(h *node, out *html.Node) {
	href := ""
	if rid := h.relAttr("id"); rid != "" {
		if rel, ok := w.rels[rid]; ok && strings.EqualFold(rel.TargetMode, "External") {
			href = rel.Target
		}
	} else if anchor := h.attr("anchor"); anchor != "" {
		href = "#" + anchor
	}
	if href == "" {
		w.inline(h, out)
		return
	}
	a := element(atom.A, html.Attribute{Key: "href", Val: href})
	w.inline(h, a)
	if a.FirstChild != nil {
		out.AppendChild(a)
	}
}

func (w *walker) run(r *node, out *html.Node) {
	content := &html.Node{Type: html.DocumentNode}
	w.runContent(r, content)
	if content.FirstChild == nil {
		return
	}

	target := out
	if rPr := r.child("rPr"); rPr != nil {
		if onOff(rPr.child("b")) {
			target = wrap(target, atom.Strong)
		}
		if onOff(rPr.child("i")) {
			target = wrap(target, atom.Em)
		}
		if onOff(rPr.child("u")) {
			target = wrap(target, atom.U)
		}
	}
	for c := content.FirstChild; c != nil; {
		next := c.NextSibling
		content.RemoveChild(c)
		target.AppendChild(c)
		c = next
	}
}

func (w *walker) runContent(r *node, out *html.Node) {
	for _, c := range r.children {
		switch c.local {
		case "t":
			if c.text != "" {
				out.AppendChild(&html.Node{Type: html.TextNode, Data: c.text})
			}
		case "tab":
			out.AppendChild(&html.Node{Type: html.TextNode, Data: "\t"})
		case "noBreakHyphen":
			out.AppendChild(&html.Node{Type: html.TextNode, Data: "-"})
		case "br":
			// 分页符不输出
			if t := c.attr("type"); t == "" || t == "textWrapping" {
				out.AppendChild(element(atom.Br))
			}
		case "cr":
			out.AppendChild(element(atom.Br))
		case "drawing":
			alt := ""
			if docPr := c.find("docPr"); docPr != nil {
				alt = docPr.attr("descr")
			}
			for _, blip := range c.findAll("blip", nil) {
				w.image(blip.relAttr("embed"), alt, out)
			}
		case "pict", "object":
			for _, data := range c.findAll("imagedata", nil) {
				w.image(data.relAttr("id"), data.attr("title"), out)
			}
		case "AlternateContent":
			// 只取第一个 Choice，没有时取 Fallback，避免同一图片输出两次
			if choice := c.child("Choice"); choice != nil {
				w.runContent(choice, out)
			} else if fallback := c.child("Fallback"); fallback != nil {
				w.runContent(fallback, out)
			}
		}
	}
}

func (w *walker) image(rid, alt string, out *html.Node) {
	if rid == "" || w.handler == nil {
		return
	}
	rel, ok := w.rels[rid]
	if !ok || strings.EqualFold(rel.TargetMode, "External") {
		klog.Warningf("docx: 图片关系 %s 不存在或为外部链接，跳过", rid)
		return
	}
	name := mediaPath(rel.Target)
	data, err := readZipFile(w.files, name)
	if err != nil {
		klog.Warningf("docx: 读取图片 %s 失败: %v", name, err)
		return
	}
	url, err := w.handler(w.ctx, data, path.Ext(name))
	if err != nil {
		klog.Warningf("docx: 保存图片 %s 失败: %v", name, err)
		return
	}
	w.images++
	out.AppendChild(element(atom.Img,
		html.Attribute{Key: "src", Val: url},
		html.Attribute{Key: "alt", Val: alt},
	))
}

func mediaPath(target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(target, "/")
	}
	return path.Clean(path.Join("word", target))
}

// tableCell 单元格在逻辑网格中的位置
type tableCell struct {
	tc      *node
	col     int
	span    int
	merge   string // "" | restart | continue
	rowspan int
}

type tableRow struct {
	header bool
	cells  []*tableCell
}

func (w *walker) table(tbl *node, out *html.Node) error {
	rows := collectRows(tbl)
	if len(rows) == 0 {
		return nil
	}
	resolveRowspans(rows)

	table := element(atom.Table)
	for _, row := range rows {
		tr := element(atom.Tr)
		for _, cell := range row.cells {
			if cell.rowspan == 0 {
				continue
			}
			tag := atom.Td
			if row.header {
				tag = atom.Th
			}
			var attrs []html.Attribute
			if cell.span > 1 {
				attrs = append(attrs, html.Attribute{Key: "colspan", Val: strconv.Itoa(cell.span)})
			}
			if cell.rowspan > 1 {
				attrs = append(attrs, html.Attribute{Key: "rowspan", Val: strconv.Itoa(cell.rowspan)})
			}
			td := element(tag, attrs...)
			if err := w.blocks(cell.tc, td); err != nil {
				return err
			}
			tr.AppendChild(td)
		}
		table.AppendChild(tr)
	}
	out.AppendChild(table)
	return nil
}

func collectRows(tbl *node) []*tableRow {
	var rows []*tableRow
	for _, tr := range tbl.children {
		if tr.local != "tr" {
			continue
		}
		row := &tableRow{}
		col := 0
		if trPr := tr.child("trPr"); trPr != nil {
			row.header = onOff(trPr.child("tblHeader"))
			if gb := trPr.child("gridBefore"); gb != nil {
				col, _ = strconv.Atoi(gb.attr("val"))
			}
		}
		for _, tc := range tr.children {
			if tc.local != "tc" {
				continue
			}
			cell := &tableCell{tc: tc, col: col, span: 1, rowspan: 1}
			if tcPr := tc.child("tcPr"); tcPr != nil {
				if gs := tcPr.child("gridSpan"); gs != nil {
					if n, err := strconv.Atoi(gs.attr("val")); err == nil && n > 1 {
						cell.span = n
					}
				}
				if vm := tcPr.child("vMerge"); vm != nil {
					if vm.attr("val") == "restart" {
						cell.merge = "restart"
					} else {
						cell.merge = "continue"
					}
				}
			}
			row.cells = append(row.cells, cell)
			col += cell.span
		}
		rows = append(rows, row)
	}
	return rows
}

// resolveRowspans 把 vMerge 续接单元格并入起始单元格，续接单元格的 rowspan 置 0
func resolveRowspans(rows []*tableRow) {
	open := map[int]*tableCell{}
	for _, row := range rows {
		seen := map[int]bool{}
		for _, cell := range row.cells {
			seen[cell.col] = true
			switch cell.merge {
			case "restart":
				open[cell.col] = cell
			case "continue":
				if start, ok := open[cell.col]; ok {
					start.rowspan++
					cell.rowspan = 0
				}
			default:
				delete(open, cell.col)
			}
		}
		for col := range open {
			if !seen[col] {
				delete(open, col)
			}
		}
	}
}

func element(a atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String(), Attr: attrs}
}

func wrap(parent *html.Node, a atom.Atom) *html.Node {
	el := element(a)
	parent.AppendChild(el)
	return el
}

type styleDef struct {
	StyleID string `xml:"styleId,attr"`
	Name    struct {
		Val string `xml:"val,attr"`
	} `xml:"name"`
}

type stylesDoc struct {
	Styles []styleDef `xml:"style"`
}

// loadStyles 读取 styles.xml 中 styleId 到样式名的映射，本地化文档的标题样式 id 常为数字
func loadStyles(files []*zip.File) map[string]string {
	out := map[string]string{}
	raw, err := readZipFile(files, "word/styles.xml")
	if err != nil {
		return out
	}
	var doc stylesDoc
	if err := xml.Unmarshal(raw, &doc); err != nil {
		klog.V(6).Infof("docx: styles.xml 解析失败: %v", err)
		return out
	}
	for _, s := range doc.Styles {
		out[s.StyleID] = s.Name.Val
	}
	return out
}
