package debug

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
)

// Sink сохраняет готовый трейс.
//
// Save возвращает место, куда трейс записан (путь или ключ объекта).
type Sink interface {
	Save(ctx context.Context, trace RepairTrace) (string, error)
}

// Marshal сериализует трейс так же, как его пишут все sink'и.
func Marshal(trace RepairTrace) ([]byte, error) {
	data, err := json.MarshalIndent(trace, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal repair trace: %w", err)
	}
	return data, nil
}

// FileSink пишет трейсы в <Dir>/<run_id>.json.
type FileSink struct {
	Dir string
}

// NewFileSink создаёт sink, пытаясь создать директорию.
func NewFileSink(dir string) (*FileSink, error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create logs directory: %w", err)
		}
	}
	return &FileSink{Dir: dir}, nil
}

// Save реализует Sink.
func (s *FileSink) Save(_ context.Context, trace RepairTrace) (string, error) {
	data, err := Marshal(trace)
	if err != nil {
		return "", err
	}

	filePath := trace.RunID + ".json"
	if s.Dir != "" {
		filePath = filepath.Join(s.Dir, filePath)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write repair trace: %w", err)
	}
	return filePath, nil
}

// ObjectPutter — минимальный контракт объектного хранилища (s3storage.Client).
type ObjectPutter interface {
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
}

// ObjectSink пишет трейсы в объектное хранилище под ключом <Prefix>/<run_id>.json.
type ObjectSink struct {
	Store  ObjectPutter
	Prefix string
}

// Save реализует Sink.
func (s *ObjectSink) Save(ctx context.Context, trace RepairTrace) (string, error) {
	data, err := Marshal(trace)
	if err != nil {
		return "", err
	}
	key := path.Join(s.Prefix, trace.RunID+".json")
	if err := s.Store.PutObject(ctx, key, data, "application/json"); err != nil {
		return "", err
	}
	return key, nil
}

// MultiSink пишет трейс во все sink'и и собирает ошибки.
type MultiSink []Sink

// Save реализует Sink. Возвращает место из первого успешного sink'а.
func (m MultiSink) Save(ctx context.Context, trace RepairTrace) (string, error) {
	var (
		first string
		errs  []error
	)
	for _, s := range m {
		loc, err := s.Save(ctx, trace)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if first == "" {
			first = loc
		}
	}
	return first, errors.Join(errs...)
}

var (
	_ Sink = (*FileSink)(nil)
	_ Sink = (*ObjectSink)(nil)
	_ Sink = MultiSink(nil)
)
