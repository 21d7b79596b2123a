package testsupport

import (
	"archive/zip"
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// PNG 生成指定尺寸的 PNG，不同 seed 得到不同字节
func PNG(t testing.TB, width, height int, seed uint8) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: seed, G: uint8(x), B: uint8(y), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// WriteFile 写入文件并创建父目录
func WriteFile(t testing.TB, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// Cell 表格单元格；ImageRID 不为空时在单元格内插入图片
type Cell struct {
	Text     string
	GridSpan int
	VMerge   string // "restart" 起始，"continue" 续接
	ImageRID string
}

// Docx 以最小结构拼装 .docx 测试文件
type Docx struct {
	body  strings.Builder
	rels  []string
	media map[string][]byte
}

func NewDocx() *Docx {
	return &Docx{media: make(map[string][]byte)}
}

func (d *Docx) Paragraph(text string) *Docx {
	fmt.Fprintf(&d.body, `<w:p><w:r><w:t xml:space="preserve">%s</w:t></w:r></w:p>`, escapeXML(text))
	return d
}

func (d *Docx) Heading(level int, text string) *Docx {
	fmt.Fprintf(&d.body, `<w:p><w:pPr><w:pStyle w:val="Heading%d"/></w:pPr><w:r><w:t>%s</w:t></w:r></w:p>`, level, escapeXML(text))
	return d
}

// Media 注册图片并返回关系 id
func (d *Docx) Media(data []byte, ext string) string {
	n := len(d.rels) + 1
	rid := fmt.Sprintf("rId%d", n+100)
	name := fmt.Sprintf("image%d%s", n, ext)
	d.media["word/media/"+name] = data
	d.rels = append(d.rels, fmt.Sprintf(
		`<Relationship Id="%s" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/image" Target="media/%s"/>`,
		rid, name))
	return rid
}

// ImageParagraph 单独成段的内嵌图片
func (d *Docx) ImageParagraph(rid string) *Docx {
	fmt.Fprintf(&d.body, `<w:p>%s</w:p>`, drawingRun(rid))
	return d
}

func (d *Docx) Table(rows [][]Cell) *Docx {
	d.body.WriteString(`<w:tbl><w:tblPr><w:tblStyle w:val="TableGrid"/></w:tblPr>`)
	for _, row := range rows {
		d.body.WriteString(`<w:tr>`)
		for _, c := range row {
			d.body.WriteString(`<w:tc><w:tcPr>`)
			if c.GridSpan > 1 {
				fmt.Fprintf(&d.body, `<w:gridSpan w:val="%d"/>`, c.GridSpan)
			}
			switch c.VMerge {
			case "restart":
				d.body.WriteString(`<w:vMerge w:val="restart"/>`)
			case "continue":
				d.body.WriteString(`<w:vMerge/>`)
			}
			d.body.WriteString(`</w:tcPr><w:p>`)
			if c.Text != "" {
				fmt.Fprintf(&d.body, `<w:r><w:t>%s</w:t></w:r>`, escapeXML(c.Text))
			}
			if c.ImageRID != "" {
				d.body.WriteString(drawingRun(c.ImageRID))
			}
			d.body.WriteString(`</w:p></w:tc>`)
		}
		d.body.WriteString(`</w:tr>`)
	}
	d.body.WriteString(`</w:tbl>`)
	return d
}

// Raw 直接追加 body 片段
func (d *Docx) Raw(xml string) *Docx {
	d.body.WriteString(xml)
	return d
}

func (d *Docx) Bytes(t testing.TB) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	write := func(name, content string) {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}

	write("[Content_Types].xml", `<?xml version="1.0" encoding="UTF-8"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="png" ContentType="image/png"/>
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>`)
	write("word/_rels/document.xml.rels", `<?xml version="1.0" encoding="UTF-8"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`+
		strings.Join(d.rels, "")+
		`<Relationship Id="rIdLink" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/hyperlink" Target="https://example.org/" TargetMode="External"/>`+
		`</Relationships>`)
	write("word/document.xml", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" xmlns:wp="http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing" xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:pic="http://schemas.openxmlformats.org/drawingml/2006/picture"><w:body>`+
		d.body.String()+
		`<w:sectPr/></w:body></w:document>`)

	for name, data := range d.media {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}

	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

func (d *Docx) WriteFile(t testing.TB, path string) {
	t.Helper()
	WriteFile(t, path, d.Bytes(t))
}

func drawingRun(rid string) string {
	return `<w:r><w:drawing><wp:inline><a:graphic><a:graphicData uri="http://schemas.openxmlformats.org/drawingml/2006/picture">` +
		`<pic:pic><pic:blipFill><a:blip r:embed="` + rid + `"/></pic:blipFill></pic:pic>` +
		`</a:graphicData></a:graphic></wp:inline></w:drawing></w:r>`
}

func escapeXML(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '&':
			b.WriteString("&amp;")
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
