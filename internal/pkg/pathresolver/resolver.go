package pathresolver

import (
	"os"
	"path/filepath"
	"strings"

	"k8s.io/klog/v2"
)

// Resolver 把旧库中记录的源文件路径映射到当前机器上的可读文件。
// 旧路径在另一台机器、另一种目录布局下记录，依次尝试：
// 原样路径、抽取目录标记改写、文档目录标记改写、按文件名在文档目录查找、按文件名在抽取目录查找。
// 多个同名文件不做区分，先找到者胜出。
type Resolver struct {
	ExtractedRoot   string
	DocsRoot        string
	ExtractedMarker string
	DocsMarker      string
}

// Resolve 返回第一个存在的候选路径；全部失败时返回 false
func (r *Resolver) Resolve(recorded string) (string, bool) {
	recorded = strings.TrimSpace(recorded)
	if recorded == "" {
		return "", false
	}

	for _, candidate := range r.candidates(recorded) {
		if isReadableFile(candidate) {
			klog.V(8).Infof("pathresolver: %s -> %s", recorded, candidate)
			return candidate, true
		}
	}
	return "", false
}

// ResolveExtracted 仅针对抽取目录解析，用于旧库中的图片记录
func (r *Resolver) ResolveExtracted(recorded string) (string, bool) {
	only := &Resolver{
		ExtractedRoot:   r.ExtractedRoot,
		ExtractedMarker: r.ExtractedMarker,
	}
	return only.Resolve(recorded)
}

func (r *Resolver) candidates(recorded string) []string {
	out := []string{recorded}

	if p, ok := rewrite(recorded, r.ExtractedMarker, r.ExtractedRoot); ok {
		out = append(out, p)
	}
	if p, ok := rewrite(recorded, r.DocsMarker, r.DocsRoot); ok {
		out = append(out, p)
	}

	base := baseName(recorded)
	if base != "" {
		if r.DocsRoot != "" {
			out = append(out, filepath.Join(r.DocsRoot, base))
		}
		if r.ExtractedRoot != "" {
			out = append(out, filepath.Join(r.ExtractedRoot, base))
		}
	}
	return out
}

// rewrite 取标记最后一次出现之后的后缀，拼接到新的根目录下
func rewrite(recorded, marker, root string) (string, bool) {
	if marker == "" || root == "" {
		return "", false
	}
	normalized := toSlash(recorded)
	slashMarker := toSlash(marker)

	idx := strings.LastIndex(normalized, slashMarker)
	if idx < 0 {
		return "", false
	}
	suffix := normalized[idx+len(slashMarker):]
	if suffix == "" {
		return "", false
	}
	return filepath.Join(root, filepath.FromSlash(suffix)), true
}

// 旧路径可能来自 Windows 机器
func toSlash(p string) string {
	return strings.ReplaceAll(filepath.ToSlash(p), `\`, "/")
}

func baseName(recorded string) string {
	normalized := toSlash(recorded)
	idx := strings.LastIndex(normalized, "/")
	return normalized[idx+1:]
}

func isReadableFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	f.Close()
	return true
}

// Stem 返回不带扩展名的文件名，作为文档 code
func Stem(path string) string {
	base := baseName(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
