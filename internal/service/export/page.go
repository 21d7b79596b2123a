package export

import (
	"bytes"
	"html/template"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/qafglossary/backend/internal/pkg/symboltable"
)

// GalleryImage 页面底部的剩余图片
type GalleryImage struct {
	URL     string
	Caption string
}

type pageData struct {
	Title   string
	Content template.HTML
	Gallery []GalleryImage
}

var pageTemplate = template.Must(template.New("page").Parse(`<!doctype html>
<html lang="ar" dir="rtl">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>
body{margin:0;direction:rtl;font-family:Arial,Helvetica,sans-serif;background:#f4f4f5;color:#111827}
header{padding:16px;background:#fff;border-bottom:1px solid #e4e4e7}
main{max-width:1100px;margin:0 auto;padding:20px 16px}
.card{padding:16px;background:#fff;border:1px solid #e4e4e7;border-radius:12px}
.doc-content{line-height:1.9;text-align:right}
.doc-content img{max-width:100%;height:auto}
.doc-content img.doc-inline-asset{display:block;margin:0 auto;max-width:140px;max-height:90px;object-fit:contain}
.table-wrap{margin:12px 0;overflow-x:auto;border:1px solid #e4e4e7;border-radius:12px}
.doc-content table{border-collapse:collapse;min-width:100%}
.doc-content th,.doc-content td{border:1px solid #e4e4e7;padding:8px 10px;vertical-align:top}
.doc-content th{background:#fafafa}
.images{display:grid;grid-template-columns:repeat(auto-fit,minmax(240px,1fr));gap:12px;margin-top:16px}
.img{overflow:hidden;border:1px solid #e4e4e7;border-radius:10px}
.img img{display:block;width:100%;height:auto}
.cap{padding:8px 10px;font-size:12px;color:#6b7280}
</style>
</head>
<body>
<header><strong>{{.Title}}</strong></header>
<main>
<div class="card">
<div class="doc-content">{{.Content}}</div>
{{- if .Gallery}}
<details open><summary>الصور</summary>
<div class="images">
{{- range .Gallery}}
<div class="img"><img src="{{.URL}}" alt="">{{if .Caption}}<div class="cap">{{.Caption}}</div>{{end}}</div>
{{- end}}
</div>
</details>
{{- end}}
</div>
</main>
</body>
</html>
`))

// renderPage 渲染自包含的 RTL 页面，content 已是可信 markup
func renderPage(title, content string, gallery []GalleryImage) ([]byte, error) {
	var buf bytes.Buffer
	err := pageTemplate.Execute(&buf, pageData{
		Title:   title,
		Content: template.HTML(wrapTables(content)),
		Gallery: gallery,
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// wrapTables 给每个表格套一层 div.table-wrap，便于横向滚动
func wrapTables(content string) string {
	if !strings.Contains(strings.ToLower(content), "<table") {
		return content
	}
	doc, err := symboltable.ParseFragment(content)
	if err != nil {
		return content
	}
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		if table.Parent().HasClass("table-wrap") {
			return
		}
		table.WrapHtml(`<div class="table-wrap"></div>`)
	})
	out, err := symboltable.RenderFragment(doc)
	if err != nil {
		return content
	}
	return out
}
