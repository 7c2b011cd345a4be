package storage

import (
	"context"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/appgrove/appgrove-server/internal/log"
	"github.com/appgrove/appgrove-server/internal/xerrors"
)

// S3Mirror copies published bundle trees into an object store bucket so
// a CDN or second region can serve them. The local tree stays the
// source of truth; mirror failures are reported but items still publish.
type S3Mirror struct {
	client *s3.Client
	bucket string
	prefix string
	logger log.Logger
}

type S3MirrorOptions struct {
	Bucket string
	Prefix string
	Logger log.Logger

	// AWSConfig overrides the default chain; nil loads the default.
	AWSConfig *aws.Config
}

// NewS3Mirror builds the mirror client.
func NewS3Mirror(ctx context.Context, opts S3MirrorOptions) (*S3Mirror, error) {
	if opts.Bucket == "" {
		return nil, xerrors.New("mirror bucket is required")
	}
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}

	var awsCfg aws.Config
	var err error
	if opts.AWSConfig != nil {
		awsCfg = *opts.AWSConfig
	} else {
		awsCfg, err = config.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, xerrors.Wrap(err, "load AWS config")
		}
	}

	return &S3Mirror{
		client: s3.NewFromConfig(awsCfg),
		bucket: opts.Bucket,
		prefix: opts.Prefix,
		logger: opts.Logger,
	}, nil
}

func (m *S3Mirror) key(parts ...string) string {
	if m.prefix != "" {
		parts = append([]string{m.prefix}, parts...)
	}
	return path.Join(parts...)
}

// MirrorTree uploads every file under localRoot to the bucket under the
// bundle directory name, preserving relative paths.
func (m *S3Mirror) MirrorTree(ctx context.Context, localRoot, dirName string) error {
	uploaded := 0
	err := filepath.WalkDir(localRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(localRoot, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		f, err := os.Open(p)
		if err != nil {
			return err
		}
		defer f.Close()

		_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(m.bucket),
			Key:         aws.String(m.key(AppsDir, dirName, rel)),
			Body:        f,
			ContentType: aws.String(contentTypeFor(rel)),
		})
		if err != nil {
			return xerrors.Wrapf(err, "put s3://%s/%s", m.bucket, m.key(AppsDir, dirName, rel))
		}
		uploaded++
		return nil
	})
	if err != nil {
		return err
	}

	m.logger.Info(ctx, "mirrored bundle tree",
		"bucket", m.bucket,
		"dir", dirName,
		"objects", uploaded,
	)
	return nil
}

// DeletePrefix removes every mirrored object for one bundle directory.
func (m *S3Mirror) DeletePrefix(ctx context.Context, dirName string) error {
	prefix := m.key(AppsDir, dirName) + "/"

	var token *string
	for {
		page, err := m.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(m.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return xerrors.Wrapf(err, "list s3://%s/%s", m.bucket, prefix)
		}
		if len(page.Contents) == 0 {
			return nil
		}

		objs := make([]types.ObjectIdentifier, 0, len(page.Contents))
		for _, obj := range page.Contents {
			objs = append(objs, types.ObjectIdentifier{Key: obj.Key})
		}
		_, err = m.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(m.bucket),
			Delete: &types.Delete{Objects: objs, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return xerrors.Wrapf(err, "delete s3://%s/%s", m.bucket, prefix)
		}

		if page.IsTruncated == nil || !*page.IsTruncated {
			return nil
		}
		token = page.NextContinuationToken
	}
}

func contentTypeFor(rel string) string {
	if ct := mime.TypeByExtension(path.Ext(rel)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
