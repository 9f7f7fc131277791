package fileutils

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"
)

// BackupFile copies a file into the backup directory under a timestamped
// name, "20060102-150405-original.epub". Backups are never overwritten; a
// same-second collision gets a counter suffix.
func BackupFile(path, backupDir string) (string, error) {
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return "", errors.WithStack(err)
	}

	name := time.Now().Format("20060102-150405") + "-" + filepath.Base(path)
	backupPath := UniqueFilepath(filepath.Join(backupDir, name))

	if err := copyFile(path, backupPath); err != nil {
		return "", err
	}
	return backupPath, nil
}

func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return errors.WithStack(err)
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return errors.WithStack(err)
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return errors.WithStack(err)
	}

	sourceInfo, err := sourceFile.Stat()
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(destFile.Chmod(sourceInfo.Mode()))
}

// FindEPUBs walks a folder and returns every EPUB in it, sorted by path.
// Files with an .epub extension whose content is not actually a zip archive
// are still returned; the parser reports those as corrupt so a batch run can
// record the failure instead of silently skipping the file.
func FindEPUBs(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ".epub") {
			paths = append(paths, path)
			return nil
		}
		// Extensionless files still count when their content looks like an
		// EPUB container.
		if filepath.Ext(path) == "" {
			if mtype, err := mimetype.DetectFile(path); err == nil && mtype.Is("application/epub+zip") {
				paths = append(paths, path)
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return paths, nil
}
