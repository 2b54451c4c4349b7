package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Kaleub/kaleub-back/internal/repository"
)

// LocalBlobStore 把内容写入本地目录，key 为 "<uuid><ext>"。
// 目录通过 gin 的 Static 路由以 baseURL 对外提供。
type LocalBlobStore struct {
	root    string
	baseURL string
}

// NewLocalBlobStore 创建 LocalBlobStore，并确保根目录存在
func NewLocalBlobStore(root, baseURL string) (*LocalBlobStore, error) {
	if root == "" {
		return nil, fmt.Errorf("blob root directory cannot be empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob root %s: %w", root, err)
	}
	return &LocalBlobStore{
		root:    root,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

// Put 写入内容并返回新生成的 key
func (s *LocalBlobStore) Put(ctx context.Context, filename string, content io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key := uuid.NewString() + strings.ToLower(filepath.Ext(filename))
	dst := filepath.Join(s.root, key)

	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("blob: create %s: %w", key, err)
	}
	if _, err := io.Copy(f, content); err != nil {
		_ = f.Close()
		_ = os.Remove(dst)
		return "", fmt.Errorf("blob: write %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(dst)
		return "", fmt.Errorf("blob: close %s: %w", key, err)
	}
	logrus.WithFields(logrus.Fields{"key": key, "filename": filename}).Debug("Blob stored")
	return key, nil
}

// Delete 删除 key 对应的文件
func (s *LocalBlobStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// key 只能是单个文件名，拒绝路径穿越
	if key == "" || key != filepath.Base(key) {
		return fmt.Errorf("blob: invalid key %q", key)
	}
	if err := os.Remove(filepath.Join(s.root, key)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return repository.ErrBlobNotFound
		}
		return fmt.Errorf("blob: delete %s: %w", key, err)
	}
	return nil
}

// URL 返回公开访问地址
func (s *LocalBlobStore) URL(key string) string {
	if s.baseURL == "" {
		return key
	}
	return s.baseURL + "/" + path.Clean(key)
}
