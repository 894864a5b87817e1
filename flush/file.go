package flush

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/anthonydresser/fluent-bit-khisto/common"
)

type fileFlusher struct {
	file        *os.File
	fileEncoder *json.Encoder
}

func initFileFlush(outputPath string) (*fileFlusher, error) {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory for %s: %w", outputPath, err)
	}
	file, err := os.OpenFile(outputPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", outputPath, err)
	}

	return &fileFlusher{
		file:        file,
		fileEncoder: json.NewEncoder(file),
	}, nil
}

func (f *fileFlusher) Flush(events []common.EMFEvent) (int, int, error) {
	sizePrior, err := f.file.Stat()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to stat file %s: %w", f.file.Name(), err)
	}
	// one line per event so every line is a standalone EMF document
	count := 0
	for _, event := range events {
		if err := f.fileEncoder.Encode(event); err != nil {
			return 0, count, fmt.Errorf("failed to write to file %s: %w", f.file.Name(), err)
		}
		count++
	}
	if err := f.file.Sync(); err != nil {
		return 0, count, fmt.Errorf("failed to sync file %s: %w", f.file.Name(), err)
	}

	sizeAfter, err := f.file.Stat()
	if err != nil {
		return 0, count, fmt.Errorf("failed to stat file %s: %w", f.file.Name(), err)
	}
	return int(sizeAfter.Size() - sizePrior.Size()), count, nil
}

func (f *fileFlusher) Close() error {
	return f.file.Close()
}
