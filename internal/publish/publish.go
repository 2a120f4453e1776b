package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Putter 上传单个对象。
type Putter interface {
	Put(ctx context.Context, bucket, key string, body io.Reader, contentType string) error
}

// Config 为 S3 连接参数；空值回落到 AWS 默认配置链。
type Config struct {
	Region       string
	Profile      string
	UsePathStyle bool
}

// S3 是基于 aws-sdk-go-v2 的 Putter 实现。
type S3 struct {
	client *s3.Client
}

// NewS3 用默认配置链（环境变量 / 共享配置 / 实例角色）创建 S3 客户端。
func NewS3(ctx context.Context, cfg Config) (*S3, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}
	c := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
	})
	return &S3{client: c}, nil
}

func (s *S3) Put(ctx context.Context, bucket, key string, body io.Reader, contentType string) error {
	in := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	_, err := s.client.PutObject(ctx, in)
	return err
}

// Publish 把 files 逐个上传到 bucket，对象键为 prefix + 相对 baseDir 的 / 分隔路径。
//
// 任一文件失败即返回（已上传的对象不回滚）。返回已上传的对象键。
func Publish(ctx context.Context, p Putter, bucket, prefix, baseDir string, files []string) ([]string, error) {
	if p == nil {
		return nil, errors.New("putter 为空")
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errors.New("未配置 publish.bucket")
	}

	keys := make([]string, 0, len(files))
	for _, f := range files {
		key, err := objectKey(prefix, baseDir, f)
		if err != nil {
			return keys, err
		}
		if err := putFile(ctx, p, bucket, key, f); err != nil {
			return keys, fmt.Errorf("上传 %s 失败：%w", key, err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func putFile(ctx context.Context, p Putter, bucket, key, file string) error {
	fh, err := os.Open(file)
	if err != nil {
		return err
	}
	defer fh.Close()
	return p.Put(ctx, bucket, key, fh, ContentType(file))
}

func objectKey(prefix, baseDir, file string) (string, error) {
	rel, err := filepath.Rel(baseDir, file)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("文件不在工作目录内：%s", file)
	}
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return rel, nil
	}
	return path.Join(prefix, rel), nil
}

// ContentType 按扩展名给出对象的 Content-Type。
func ContentType(file string) string {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".md":
		return "text/markdown; charset=utf-8"
	case ".pdf":
		return "application/pdf"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	}
	if ct := mime.TypeByExtension(filepath.Ext(file)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
