// Package fsutil holds the small file helpers shared by the lock file,
// the derived build files and binary placement.
package fsutil

import (
	"os"
)

// Exists reports whether path exists. Permission errors count as existing.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil || !os.IsNotExist(err)
}

// WriteIfChanged writes data atomically unless path already holds exactly
// data. It reports whether a write happened.
func WriteIfChanged(path string, data []byte, perm os.FileMode) (bool, error) {
	if cur, err := os.ReadFile(path); err == nil && string(cur) == string(data) {
		return false, nil
	}
	if err := WriteFileAtomic(path, data, perm); err != nil {
		return false, err
	}
	return true, nil
}

// CopyFile copies src to dst through a temporary file in dst's directory.
// The source file mode is preserved.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	return WriteStreamAtomic(dst, in, info.Mode().Perm())
}
