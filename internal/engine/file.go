package engine

import (
	"fmt"
	"os"
	"sync"
)

// FileEngine implements Engine over an os.File, the default backend for
// Create/Open.
type FileEngine struct {
	mu   sync.Mutex
	file *os.File
	path string
}

// OpenFile opens or creates path for read/write, depending on flags.
func OpenFile(path string, flags int, perm os.FileMode) (*FileEngine, error) {
	f, err := os.OpenFile(path, flags, perm)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &FileEngine{file: f, path: path}, nil
}

func (e *FileEngine) Size() (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	info, err := e.file.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (e *FileEngine) ReadAt(offset int64, length int) ([]byte, error) {
	buf := make([]byte, length)
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.file.ReadAt(buf, offset); err != nil {
		return nil, fmt.Errorf("read at %d: %w", offset, err)
	}
	return buf, nil
}

func (e *FileEngine) WriteAt(offset int64, data []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.file.WriteAt(data, offset); err != nil {
		return fmt.Errorf("write at %d: %w", offset, err)
	}
	return nil
}

func (e *FileEngine) Append(data []byte) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	info, err := e.file.Stat()
	if err != nil {
		return 0, err
	}
	offset := info.Size()
	if _, err := e.file.WriteAt(data, offset); err != nil {
		return 0, fmt.Errorf("append at %d: %w", offset, err)
	}
	return offset + int64(len(data)), nil
}

func (e *FileEngine) Commit() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.file.Sync()
}

func (e *FileEngine) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.file.Truncate(0); err != nil {
		return err
	}
	_, err := e.file.Seek(0, 0)
	return err
}

func (e *FileEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.file.Close()
}
