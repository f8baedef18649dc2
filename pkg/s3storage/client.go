// Тонкий клиент объектного хранилища: трейсы цикла исправления и входные таблицы.

package s3storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/ilkoid/formulator/pkg/config"
)

// ClientInterface определяет интерфейс для S3 клиента.
// Используется для мокания в тестах и внедрения зависимостей.
type ClientInterface interface {
	ListFiles(ctx context.Context, prefix string) ([]StoredObject, error)
	DownloadFile(ctx context.Context, key string) ([]byte, error)
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
}

type Client struct {
	api    *minio.Client
	bucket string
}

// Проверка что Client реализует ClientInterface
var _ ClientInterface = (*Client)(nil)

// StoredObject - сырой объект из S3
type StoredObject struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// New создает клиент, используя наш конфиг
func New(cfg config.S3Config) (*Client, error) {
	if !cfg.Configured() {
		return nil, fmt.Errorf("s3 endpoint and bucket are required")
	}
	minioClient, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 client: %w", err)
	}

	return &Client{
		api:    minioClient,
		bucket: cfg.Bucket,
	}, nil
}

// Bucket возвращает имя бакета клиента.
func (c *Client) Bucket() string {
	return c.bucket
}

// ListFiles возвращает все объекты по префиксу, новые первыми.
//
// Пустой результат — не ошибка: трейсов может ещё не быть.
func (c *Client) ListFiles(ctx context.Context, prefix string) ([]StoredObject, error) {
	// Нормализация префикса (добавляем слеш, если это "папка")
	if !strings.HasSuffix(prefix, "/") && prefix != "" {
		prefix += "/"
	}

	var objects []StoredObject

	opts := minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}

	for obj := range c.api.ListObjects(ctx, c.bucket, opts) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list %s/%s: %w", c.bucket, prefix, obj.Err)
		}
		// Пропускаем саму "папку"
		if obj.Key == prefix {
			continue
		}
		objects = append(objects, StoredObject{
			Key:          obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified,
		})
	}

	sort.Slice(objects, func(i, j int) bool {
		return objects[i].LastModified.After(objects[j].LastModified)
	})
	return objects, nil
}

// DownloadFile скачивает объект целиком в память
func (c *Client) DownloadFile(ctx context.Context, key string) ([]byte, error) {
	obj, err := c.api.GetObject(ctx, c.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	defer obj.Close()

	// Читаем в буфер
	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, obj); err != nil {
		return nil, fmt.Errorf("failed to read object %s: %w", key, err)
	}

	return buf.Bytes(), nil
}

// PutObject загружает объект целиком.
//
// Rule 11: context.Context propagation for cancellation support.
func (c *Client) PutObject(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := c.api.PutObject(ctx, c.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to put object %s: %w", key, err)
	}
	return nil
}

// ParseURI разбирает "s3://key" и возвращает ключ.
// Для строк без схемы возвращает ok=false.
func ParseURI(uri string) (key string, ok bool) {
	const scheme = "s3://"
	if !strings.HasPrefix(uri, scheme) {
		return "", false
	}
	return strings.TrimPrefix(uri, scheme), true
}
