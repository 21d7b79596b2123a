package assetstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gofrs/flock"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"k8s.io/klog/v2"
)

// DefaultURLPrefix 资源的公开访问前缀
const DefaultURLPrefix = "/uploads/assets"

// DefaultLogoMaxPixels 宽高均不超过该值的图片视为页眉/印章类装饰图
const DefaultLogoMaxPixels = 200

// 已知的图片扩展名，其余一律按内容嗅探
var knownExt = map[string]bool{
	".png": true, ".jpg": true, ".gif": true, ".bmp": true, ".webp": true,
	".tif": true, ".tiff": true, ".emf": true, ".wmf": true, ".svg": true,
}

// Blob 一次写入的结果，SHA256 即身份
type Blob struct {
	SHA256  string
	Ext     string
	Path    string // 磁盘路径
	URL     string // 公开路径
	Width   *int
	Height  *int
	Size    int64
	Written bool // false 表示文件已存在，本次跳过写入
}

// Store 以内容哈希寻址的资源目录
type Store struct {
	dir       string
	urlPrefix string
}

func New(dir, urlPrefix string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("asset dir is required")
	}
	if urlPrefix == "" {
		urlPrefix = DefaultURLPrefix
	}
	if err := os.MkdirAll(filepath.Join(dir, ".locks"), 0o755); err != nil {
		return nil, fmt.Errorf("create asset dir: %w", err)
	}
	return &Store{dir: dir, urlPrefix: strings.TrimRight(urlPrefix, "/")}, nil
}

func (s *Store) Dir() string {
	return s.dir
}

// PutFile 读取已有文件并写入，扩展名取自原文件名
func (s *Store) PutFile(ctx context.Context, src string) (*Blob, error) {
	data, err := os.ReadFile(src)
	if err != nil {
		return nil, fmt.Errorf("read asset %s: %w", src, err)
	}
	return s.Put(ctx, data, filepath.Ext(src))
}

// Put 按内容哈希写入；同一哈希的并发写入通过文件锁串行化，目标存在即跳过
func (s *Store) Put(ctx context.Context, data []byte, ext string) (*Blob, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty asset")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])
	ext = normalizeExt(ext, data)
	name := hash + ext

	blob := &Blob{
		SHA256: hash,
		Ext:    ext,
		Path:   filepath.Join(s.dir, name),
		URL:    path.Join(s.urlPrefix, name),
		Size:   int64(len(data)),
	}
	blob.Width, blob.Height = probeDimensions(data)

	lock := flock.New(filepath.Join(s.dir, ".locks", hash+".lock"))
	locked, err := lock.TryLockContext(ctx, 10*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("lock asset %s: %w", hash, err)
	}
	if !locked {
		return nil, fmt.Errorf("lock asset %s: not acquired", hash)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			klog.Warningf("assetstore: 释放锁失败 %s: %v", hash, err)
		}
	}()

	if _, err := os.Stat(blob.Path); err == nil {
		klog.V(8).Infof("assetstore: %s 已存在，跳过写入", name)
		return blob, nil
	}
	if err := WriteAtomic(blob.Path, data); err != nil {
		return nil, err
	}
	blob.Written = true
	klog.V(6).Infof("assetstore: 写入 %s (%d bytes)", name, len(data))
	return blob, nil
}

// WriteAtomic 先写同目录临时文件再 rename，读者不会看到半个文件
func WriteAtomic(dst string, data []byte) error {
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(dst)+"-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", dst, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", dst, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod %s: %w", dst, err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename into %s: %w", dst, err)
	}
	return nil
}

// IsLogo 宽高均已知、均大于 0 且均不超过 max
func IsLogo(width, height *int, max int) bool {
	if width == nil || height == nil {
		return false
	}
	w, h := *width, *height
	return w > 0 && h > 0 && w <= max && h <= max
}

func normalizeExt(ext string, data []byte) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	if ext == ".jpeg" {
		ext = ".jpg"
	}
	if knownExt[ext] {
		return ext
	}

	mt := mimetype.Detect(data)
	if strings.HasPrefix(mt.String(), "image/") && mt.Extension() != "" {
		detected := mt.Extension()
		if detected == ".jpeg" {
			detected = ".jpg"
		}
		return detected
	}
	return ".png"
}

func probeDimensions(data []byte) (*int, *int) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, nil
	}
	w, h := cfg.Width, cfg.Height
	return &w, &h
}
