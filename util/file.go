package util

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	defaultDirMode  os.FileMode = 0755
	defaultFileMode os.FileMode = 0644
	defaultFileFlag int         = os.O_APPEND | os.O_CREATE | os.O_WRONLY
)

// OpenFile 以追加方式打开文件, 目录不存在时创建
func OpenFile(fullpath string) (*os.File, error) {
	fullpath = strings.ReplaceAll(fullpath, "\\", "/")
	dir := filepath.Dir(fullpath)
	if _, err := os.Stat(dir); err != nil && !os.IsExist(err) {
		if err = os.MkdirAll(dir, defaultDirMode); err != nil {
			return nil, err
		}
	}

	return os.OpenFile(fullpath, defaultFileFlag, defaultFileMode)
}
