package docx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

const nsRelationships = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"

// node 是 OOXML 的通用元素树，只保留本地名、命名空间、属性和文本
type node struct {
	local    string
	space    string
	attrs    []xml.Attr
	children []*node
	text     string
}

func parseTree(data []byte) (*node, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	root := &node{}
	stack := []*node{root}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse xml: %w", err)
		}
		cur := stack[len(stack)-1]
		switch t := tok.(type) {
		case xml.StartElement:
			n := &node{local: t.Name.Local, space: t.Name.Space, attrs: append([]xml.Attr(nil), t.Attr...)}
			cur.children = append(cur.children, n)
			stack = append(stack, n)
		case xml.EndElement:
			if len(stack) > 1 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			cur.text += string(t)
		}
	}
	return root, nil
}

// attr 按本地名取属性
func (n *node) attr(local string) string {
	for _, a := range n.attrs {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// relAttr 优先取 relationships 命名空间下的属性
func (n *node) relAttr(local string) string {
	for _, a := range n.attrs {
		if a.Name.Local == local && a.Name.Space == nsRelationships {
			return a.Value
		}
	}
	return n.attr(local)
}

func (n *node) child(local string) *node {
	for _, c := range n.children {
		if c.local == local {
			return c
		}
	}
	return nil
}

// find 深度优先查找第一个匹配的后代
func (n *node) find(local string) *node {
	for _, c := range n.children {
		if c.local == local {
			return c
		}
		if f := c.find(local); f != nil {
			return f
		}
	}
	return nil
}

// findAll 深度优先收集所有匹配的后代
func (n *node) findAll(local string, out []*node) []*node {
	for _, c := range n.children {
		if c.local == local {
			out = append(out, c)
			continue
		}
		out = c.findAll(local, out)
	}
	return out
}

// onOff 解析 w:b、w:i 这类开关属性，缺省 val 表示开启
func onOff(n *node) bool {
	if n == nil {
		return false
	}
	switch strings.ToLower(n.attr("val")) {
	case "0", "false", "off", "none":
		return false
	}
	return true
}

type relationship struct {
	ID         string `xml:"Id,attr"`
	Type       string `xml:"Type,attr"`
	Target     string `xml:"Target,attr"`
	TargetMode string `xml:"TargetMode,attr"`
}

type relationships struct {
	Items []relationship `xml:"Relationship"`
}

func parseRelationships(data []byte) (map[string]relationship, error) {
	var rels relationships
	if err := xml.Unmarshal(data, &rels); err != nil {
		return nil, fmt.Errorf("parse relationships: %w", err)
	}
	out := make(map[string]relationship, len(rels.Items))
	for _, r := range rels.Items {
		out[r.ID] = r
	}
	return out, nil
}

func readZipFile(files []*zip.File, target string) ([]byte, error) {
	for _, f := range files {
		if f == nil {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(f.Name), strings.TrimSpace(target)) {
			rc, err := f.Open()
			if err != nil {
				return nil, err
			}
			defer rc.Close()
			return io.ReadAll(rc)
		}
	}
	return nil, fmt.Errorf("file not found: %s", target)
}
