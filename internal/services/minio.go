package services

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/url"
	"path"
	"strings"
	"time"

	"storefront_back_end/internal/shop"

	"github.com/minio/minio-go/v7"
)

// maxFileSize borne la taille d'une pièce jointe lue depuis le bucket.
const maxFileSize = 20 << 20

// MinioFiles implémente shop.FileStore sur un bucket MinIO (ou S3).
type MinioFiles struct {
	client *minio.Client
	bucket string
	ttl    time.Duration
}

func NewMinioFiles(client *minio.Client, bucket string, ttl time.Duration) *MinioFiles {
	return &MinioFiles{client: client, bucket: bucket, ttl: ttl}
}

func (f *MinioFiles) Fetch(ctx context.Context, fileID string) (*shop.File, error) {
	obj, err := f.client.GetObject(ctx, f.bucket, fileID, minio.GetObjectOptions{})
	if err != nil {
		return nil, mapMinioErr(fileID, err)
	}
	defer obj.Close()

	info, err := obj.Stat()
	if err != nil {
		return nil, mapMinioErr(fileID, err)
	}
	if info.Size > maxFileSize {
		return nil, fmt.Errorf("fichier %s trop volumineux pour une pièce jointe (%d octets)", fileID, info.Size)
	}

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, mapMinioErr(fileID, err)
	}
	return &shop.File{
		ID:          fileID,
		Name:        path.Base(fileID),
		ContentType: info.ContentType,
		Data:        data,
	}, nil
}

// DownloadURL génère une URL signée valable f.ttl.
func (f *MinioFiles) DownloadURL(ctx context.Context, fileID string) (string, error) {
	reqParams := make(url.Values)
	reqParams.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", path.Base(fileID)))

	presignedURL, err := f.client.PresignedGetObject(ctx, f.bucket, fileID, f.ttl, reqParams)
	if err != nil {
		return "", err
	}
	return presignedURL.String(), nil
}

// List parcourt le bucket sous prefix. Les marqueurs de dossier sont ignorés.
func (f *MinioFiles) List(ctx context.Context, prefix string) ([]shop.FileInfo, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var files []shop.FileInfo
	for obj := range f.client.ListObjects(ctx, f.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			log.Printf("❌ Erreur listing MinIO (%s/%s): %v", f.bucket, prefix, obj.Err)
			return nil, obj.Err
		}
		if strings.HasSuffix(obj.Key, "/") {
			continue
		}
		files = append(files, shop.FileInfo{
			ID:           obj.Key,
			Name:         path.Base(obj.Key),
			Size:         obj.Size,
			LastModified: obj.LastModified,
		})
	}
	return files, nil
}

func mapMinioErr(fileID string, err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return fmt.Errorf("%w: %s", shop.ErrFileNotFound, fileID)
	}
	log.Printf("❌ Erreur MinIO pour %s: %v", fileID, err)
	return err
}
