// Package storage keeps signature images and archived document snapshots in
// S3 (or MinIO), encrypted client-side with AES-256-GCM.
package storage

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"docsign/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
)

// KeyPrefix marks image references that point at object storage rather than
// an inline data URL.
const KeyPrefix = "s3:"

type S3Service struct {
	client        *s3.Client
	uploader      *manager.Uploader
	downloader    *manager.Downloader
	bucket        string
	region        string
	encryptionKey []byte // 32-byte AES-256 key
}

type UploadResult struct {
	S3Key      string
	S3Bucket   string
	FileHash   string // SHA-256 hash of original file
	FileSize   int64
	MimeType   string
	UploadedAt time.Time
}

type DownloadResult struct {
	Data     []byte
	FileHash string
	FileSize int64
	MimeType string
}

// NewS3Service creates a new S3 service instance with MinIO support
func NewS3Service(ctx context.Context, cfg config.StorageConfig) (*S3Service, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("AWS_S3_BUCKET is required")
	}
	if len(cfg.EncryptionKey) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes (64 hex characters)")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			o.UsePathStyle = true // MinIO requires path-style addressing
		}
	})

	return &S3Service{
		client:        client,
		uploader:      manager.NewUploader(client),
		downloader:    manager.NewDownloader(client),
		bucket:        cfg.Bucket,
		region:        region,
		encryptionKey: cfg.EncryptionKey,
	}, nil
}

// PutSignatureImage uploads a captured signature image and returns its
// reference ("s3:" + key).
func (s *S3Service) PutSignatureImage(ctx context.Context, documentID uuid.UUID, data []byte, mimeType string) (string, error) {
	key := fmt.Sprintf("signatures/%s/%s%s", documentID, uuid.NewString(), extensionFor(mimeType))
	res, err := s.put(ctx, key, data, mimeType, map[string]string{
		"document-id":   documentID.String(),
		"document-type": "signature",
	})
	if err != nil {
		return "", err
	}
	return KeyPrefix + res.S3Key, nil
}

// DeleteSignatureImage removes an image previously stored by PutSignatureImage.
// Inline references are ignored.
func (s *S3Service) DeleteSignatureImage(ctx context.Context, ref string) error {
	key, ok := strings.CutPrefix(ref, KeyPrefix)
	if !ok {
		return nil
	}
	return s.DeleteFile(ctx, key)
}

// ArchiveSnapshot stores the frozen rendered content of a finalized document.
func (s *S3Service) ArchiveSnapshot(ctx context.Context, documentID uuid.UUID, content []byte) (string, error) {
	key := fmt.Sprintf("documents/%s/snapshot-%d.html", documentID, time.Now().UTC().Unix())
	res, err := s.put(ctx, key, content, "text/html; charset=utf-8", map[string]string{
		"document-id":   documentID.String(),
		"document-type": "snapshot",
	})
	if err != nil {
		return "", err
	}
	return res.S3Key, nil
}

// LoadSnapshot downloads an archived snapshot and checks it against the hash
// recorded at upload time.
func (s *S3Service) LoadSnapshot(ctx context.Context, key string) ([]byte, error) {
	expected, err := s.ObjectHash(ctx, key)
	if err != nil {
		return nil, err
	}
	res, err := s.DownloadFile(ctx, key)
	if err != nil {
		return nil, err
	}
	if expected != "" {
		if err := ValidateFileIntegrity(res.Data, expected); err != nil {
			return nil, err
		}
	}
	return res.Data, nil
}

func (s *S3Service) put(ctx context.Context, key string, data []byte, mimeType string, metadata map[string]string) (*UploadResult, error) {
	fileHash := hashHex(data)

	encryptedData, err := s.encryptData(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt file: %w", err)
	}

	metadata["original-hash"] = fileHash
	metadata["encrypted"] = "true"
	uploadInput := &s3.PutObjectInput{
		Bucket:               aws.String(s.bucket),
		Key:                  aws.String(key),
		Body:                 bytes.NewReader(encryptedData),
		ContentType:          aws.String(mimeType),
		Metadata:             metadata,
		ServerSideEncryption: types.ServerSideEncryptionAes256, // Additional S3-level encryption
	}

	if _, err := s.uploader.Upload(ctx, uploadInput); err != nil {
		return nil, fmt.Errorf("failed to upload to S3: %w", err)
	}

	return &UploadResult{
		S3Key:      key,
		S3Bucket:   s.bucket,
		FileHash:   fileHash,
		FileSize:   int64(len(data)),
		MimeType:   mimeType,
		UploadedAt: time.Now().UTC(),
	}, nil
}

// DownloadFile downloads and decrypts a file from S3
func (s *S3Service) DownloadFile(ctx context.Context, s3Key string) (*DownloadResult, error) {
	buf := manager.NewWriteAtBuffer([]byte{})

	_, err := s.downloader.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s3Key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download from S3: %w", err)
	}

	decryptedData, err := s.decryptData(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt file: %w", err)
	}

	return &DownloadResult{
		Data:     decryptedData,
		FileHash: hashHex(decryptedData),
		FileSize: int64(len(decryptedData)),
	}, nil
}

// ObjectHash returns the original-content hash stored in the object's
// metadata. A missing object is reported as an error.
func (s *S3Service) ObjectHash(ctx context.Context, s3Key string) (string, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s3Key),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return "", fmt.Errorf("object %s not found", s3Key)
		}
		return "", fmt.Errorf("failed to read object metadata: %w", err)
	}
	return out.Metadata["original-hash"], nil
}

// DeleteFile deletes a file from S3
func (s *S3Service) DeleteFile(ctx context.Context, s3Key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s3Key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete file from S3: %w", err)
	}
	return nil
}

// Ping checks that the bucket is reachable.
func (s *S3Service) Ping(ctx context.Context) error {
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return fmt.Errorf("bucket %s unreachable: %w", s.bucket, err)
	}
	return nil
}

// encryptData encrypts data using AES-256-GCM
func (s *S3Service) encryptData(data []byte) ([]byte, error) {
	block, err := aes.NewCipher(s.encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return gcm.Seal(nonce, nonce, data, nil), nil
}

// decryptData decrypts data using AES-256-GCM
func (s *S3Service) decryptData(encryptedData []byte) ([]byte, error) {
	block, err := aes.NewCipher(s.encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(encryptedData) < nonceSize {
		return nil, fmt.Errorf("encrypted data too short")
	}

	nonce, ciphertext := encryptedData[:nonceSize], encryptedData[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt data: %w", err)
	}
	return plaintext, nil
}

// ValidateFileIntegrity validates a file against its stored hash
func ValidateFileIntegrity(data []byte, expectedHash string) error {
	if actualHash := hashHex(data); actualHash != expectedHash {
		return fmt.Errorf("file integrity check failed: expected %s, got %s", expectedHash, actualHash)
	}
	return nil
}

func hashHex(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/svg+xml":
		return ".svg"
	default:
		return ""
	}
}
