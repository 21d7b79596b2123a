package docx

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/qafglossary/backend/internal/testsupport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	calls []string
	fail  map[int]bool
}

func (h *recordingHandler) handle(_ context.Context, data []byte, ext string) (string, error) {
	n := len(h.calls)
	h.calls = append(h.calls, ext)
	if h.fail[n] {
		return "", errors.New("disk full")
	}
	return fmt.Sprintf("/uploads/assets/img%d%s", n, ext), nil
}

func TestConvertParagraphsAndFormatting(t *testing.T) {
	d := testsupport.NewDocx().
		Heading(1, "العنوان").
		Paragraph("نص عادي").
		Paragraph("").
		Raw(`<w:p><w:r><w:rPr><w:b/></w:rPr><w:t>bold</w:t></w:r><w:r><w:rPr><w:i/><w:u w:val="single"/></w:rPr><w:t>it</w:t></w:r><w:r><w:rPr><w:b w:val="0"/></w:rPr><w:t>plain</w:t><w:br/><w:t>next</w:t></w:r></w:p>`).
		Raw(`<w:p><w:hyperlink r:id="rIdLink"><w:r><w:t>link</w:t></w:r></w:hyperlink></w:p>`)

	out, err := NewConverter().Convert(context.Background(), d.Bytes(t), nil)
	require.NoError(t, err)
	assert.Equal(t,
		`<h1>العنوان</h1>`+
			`<p>نص عادي</p>`+
			`<p><strong>bold</strong><em><u>it</u></em>plain<br/>next</p>`+
			`<p><a href="https://example.org/">link</a></p>`,
		out)
}

func TestConvertTableMerges(t *testing.T) {
	d := testsupport.NewDocx().Table([][]testsupport.Cell{
		{{Text: "A", GridSpan: 2}, {Text: "الرمز"}, {Text: "B"}},
		{{Text: "X", VMerge: "restart"}, {Text: "y"}, {}, {Text: "z"}},
		{{VMerge: "continue"}, {Text: "1"}, {Text: "2"}, {Text: "3"}},
	})

	out, err := NewConverter().Convert(context.Background(), d.Bytes(t), nil)
	require.NoError(t, err)
	assert.Equal(t,
		`<table>`+
			`<tr><td colspan="2"><p>A</p></td><td><p>الرمز</p></td><td><p>B</p></td></tr>`+
			`<tr><td rowspan="2"><p>X</p></td><td><p>y</p></td><td></td><td><p>z</p></td></tr>`+
			`<tr><td><p>1</p></td><td><p>2</p></td><td><p>3</p></td></tr>`+
			`</table>`,
		out)
}

func TestConvertHeaderRowRendersTh(t *testing.T) {
	d := testsupport.NewDocx().Raw(`<w:tbl><w:tr><w:trPr><w:tblHeader/></w:trPr><w:tc><w:p><w:r><w:t>h</w:t></w:r></w:p></w:tc></w:tr>` +
		`<w:tr><w:tc><w:p><w:r><w:t>v</w:t></w:r></w:p></w:tc></w:tr></w:tbl>`)

	out, err := NewConverter().Convert(context.Background(), d.Bytes(t), nil)
	require.NoError(t, err)
	assert.Equal(t, `<table><tr><th><p>h</p></th></tr><tr><td><p>v</p></td></tr></table>`, out)
}

func TestConvertImagesGoThroughHandler(t *testing.T) {
	d := testsupport.NewDocx()
	first := d.Media(testsupport.PNG(t, 300, 300, 1), ".png")
	second := d.Media(testsupport.PNG(t, 300, 300, 2), ".png")
	d.ImageParagraph(first).Table([][]testsupport.Cell{
		{{Text: "#"}, {Text: "الرمز"}},
		{{Text: "1"}, {ImageRID: second}},
	})

	h := &recordingHandler{}
	out, err := NewConverter().Convert(context.Background(), d.Bytes(t), h.handle)
	require.NoError(t, err)
	assert.Equal(t, []string{".png", ".png"}, h.calls)
	assert.Contains(t, out, `<p><img src="/uploads/assets/img0.png" alt=""/></p>`)
	assert.Contains(t, out, `<td><p><img src="/uploads/assets/img1.png" alt=""/></p></td>`)
}

func TestConvertHandlerErrorDropsOnlyThatImage(t *testing.T) {
	d := testsupport.NewDocx()
	a := d.Media(testsupport.PNG(t, 20, 20, 1), ".png")
	b := d.Media(testsupport.PNG(t, 20, 20, 2), ".png")
	d.ImageParagraph(a).ImageParagraph(b).Paragraph("tail")

	h := &recordingHandler{fail: map[int]bool{0: true}}
	out, err := NewConverter().Convert(context.Background(), d.Bytes(t), h.handle)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "<img"))
	assert.Contains(t, out, "img1.png")
	assert.Contains(t, out, "<p>tail</p>")
}

func TestConvertFileErrors(t *testing.T) {
	c := NewConverter()
	dir := t.TempDir()

	_, err := c.ConvertFile(context.Background(), filepath.Join(dir, "missing.docx"), nil)
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.docx")
	testsupport.WriteFile(t, bad, []byte("this is not a zip"))
	_, err = c.ConvertFile(context.Background(), bad, nil)
	assert.Error(t, err)

	good := filepath.Join(dir, "good.docx")
	testsupport.NewDocx().Paragraph("ok").WriteFile(t, good)
	out, err := c.ConvertFile(context.Background(), good, nil)
	require.NoError(t, err)
	assert.Equal(t, "<p>ok</p>", out)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.ConvertFile(ctx, good, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
