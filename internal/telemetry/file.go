package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/netwatch/internal/models"
)

// FileSource serves the samples of a JSON file. Each pull re-reads the file.
type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (f *FileSource) PullMetricSamples(ctx context.Context) ([]models.MetricSample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read samples file: %w", err)
	}

	var samples []models.MetricSample
	if err := json.Unmarshal(data, &samples); err != nil {
		return nil, fmt.Errorf("failed to parse samples file %s: %w", f.path, err)
	}
	return samples, nil
}
