package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"GuildFM/config"
	"GuildFM/logger"
	"GuildFM/model"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	exportPrefix      = "exports/"
	m3uContentType    = "audio/x-mpegurl"
	defaultPresignTTL = 24 * time.Hour
)

// ErrNothingToExport 队列为空
var ErrNothingToExport = errors.New("nothing to export")

// ObjectInfo 文件信息
type ObjectInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
}

// Export 导出结果
type Export struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	Tracks    int       `json:"tracks"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// PlaylistStore uploads queue snapshots as M3U playlists and hands out presigned download links.
type PlaylistStore struct {
	client     *minio.Client
	bucket     string
	presignTTL time.Duration
}

// NewPlaylistStore 连接 MinIO，存储桶不存在时创建
func NewPlaylistStore(ctx context.Context, cfg *config.Config) (*PlaylistStore, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("创建 MinIO 客户端失败: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return nil, fmt.Errorf("检查存储桶失败: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{Region: cfg.MinioRegion}); err != nil {
			return nil, fmt.Errorf("创建存储桶失败: %w", err)
		}
		logger.Info("created bucket", logger.String("bucket", cfg.MinioBucket))
	}

	return &PlaylistStore{
		client:     client,
		bucket:     cfg.MinioBucket,
		presignTTL: defaultPresignTTL,
	}, nil
}

// Export 上传队列快照并返回预签名下载链接
func (s *PlaylistStore) Export(ctx context.Context, tenantID string, tracks []model.Track) (*Export, error) {
	if len(tracks) == 0 {
		return nil, ErrNothingToExport
	}

	body := BuildM3U(tracks)
	key := ExportKey(tenantID, time.Now())

	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: m3uContentType,
	})
	if err != nil {
		return nil, fmt.Errorf("upload playlist: %w", err)
	}

	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.presignTTL, nil)
	if err != nil {
		return nil, fmt.Errorf("presign playlist: %w", err)
	}

	logger.Info("exported queue",
		logger.Tenant(tenantID),
		logger.String("key", key),
		logger.Int("tracks", len(tracks)))

	return &Export{
		Key:       key,
		URL:       u.String(),
		Tracks:    len(tracks),
		ExpiresAt: time.Now().Add(s.presignTTL),
	}, nil
}

// List 列出导出的歌单，tenantID 为空时列出全部，按时间倒序
func (s *PlaylistStore) List(ctx context.Context, tenantID string) ([]ObjectInfo, error) {
	prefix := exportPrefix
	if tenantID != "" {
		prefix += tenantID + "/"
	}

	var objects []ObjectInfo
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list exports: %w", obj.Err)
		}
		objects = append(objects, ObjectInfo{Key: obj.Key, Size: obj.Size, LastModified: obj.LastModified})
	}

	sort.Slice(objects, func(i, j int) bool {
		return objects[i].LastModified.After(objects[j].LastModified)
	})
	return objects, nil
}

// Remove 删除导出的歌单
func (s *PlaylistStore) Remove(ctx context.Context, key string) error {
	if !strings.HasPrefix(key, exportPrefix) {
		return fmt.Errorf("refusing to remove %q outside %s", key, exportPrefix)
	}
	return s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
}

// ExportKey exports/<tenant>/<yyyymmdd-hhmmss>-<id>.m3u
func ExportKey(tenantID string, at time.Time) string {
	return fmt.Sprintf("%s%s/%s-%s.m3u", exportPrefix, tenantID, at.UTC().Format("20060102-150405"), uuid.NewString()[:8])
}

// BuildM3U 生成扩展 M3U 歌单，直播流时长记为 -1
func BuildM3U(tracks []model.Track) []byte {
	var b bytes.Buffer
	b.WriteString("#EXTM3U\n")
	for _, t := range tracks {
		seconds := int64(t.Info.Length / 1000)
		if t.Info.IsStream {
			seconds = -1
		}
		fmt.Fprintf(&b, "#EXTINF:%d,%s - %s\n", seconds, t.DisplayAuthor(), t.DisplayTitle())
		b.WriteString(t.Info.URI)
		b.WriteString("\n")
	}
	return b.Bytes()
}
