// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0

package source

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/featurebasedb/cohort/errors"
	"github.com/featurebasedb/cohort/logger"
)

// S3Config locates the object store behind s3:// locations. Empty fields
// fall back to the AWS SDK defaults.
type S3Config struct {
	Region   string `toml:"region"`
	Endpoint string `toml:"endpoint"`
}

// File is an open extract. Parquet needs random access, CSV streams.
type File interface {
	io.Reader
	io.ReaderAt
	io.Seeker
	io.Closer
}

// FileSystem resolves local paths and s3:// URLs. The S3 client is created
// on first use.
type FileSystem struct {
	cfg S3Config
	log logger.Logger

	once   sync.Once
	client s3iface.S3API
	err    error
}

// NewFileSystem returns a file system using cfg for S3 access.
func NewFileSystem(cfg S3Config, log logger.Logger) *FileSystem {
	if log == nil {
		log = logger.NopLogger
	}
	return &FileSystem{cfg: cfg, log: log}
}

// NewFileSystemWithClient returns a file system that uses client for S3
// access.
func NewFileSystemWithClient(client s3iface.S3API, log logger.Logger) *FileSystem {
	fs := NewFileSystem(S3Config{}, log)
	fs.once.Do(func() { fs.client = client })
	return fs
}

func (fs *FileSystem) s3() (s3iface.S3API, error) {
	fs.once.Do(func() {
		config := &aws.Config{}
		if fs.cfg.Region != "" {
			config.Region = aws.String(fs.cfg.Region)
			// else, NewSession will use the default region.
		}
		if fs.cfg.Endpoint != "" {
			config.Endpoint = aws.String(fs.cfg.Endpoint)
			config.S3ForcePathStyle = aws.Bool(true)
		}
		sess, err := session.NewSession(config)
		if err != nil {
			fs.err = errors.WithCode(errors.Wrap(err, "creating S3 session"), errors.ErrIO)
			return
		}
		fs.client = s3.New(sess)
	})
	return fs.client, fs.err
}

// splitS3 returns the bucket and key of an s3:// URL.
func splitS3(location string) (bucket, key string, err error) {
	u, err := url.Parse(location)
	if err != nil {
		return "", "", errors.WithCode(errors.Wrapf(err, "parsing S3 URL %v", location), errors.ErrIO)
	}
	return u.Host, strings.TrimPrefix(u.Path, "/"), nil
}

// Open opens the file at location. S3 objects are fetched whole.
func (fs *FileSystem) Open(ctx context.Context, location string) (File, error) {
	if !IsS3(location) {
		f, err := os.Open(location)
		if err != nil {
			return nil, errors.WithCode(errors.Wrapf(err, "opening %s", location), errors.ErrIO)
		}
		return f, nil
	}
	client, err := fs.s3()
	if err != nil {
		return nil, err
	}
	bucket, key, err := splitS3(location)
	if err != nil {
		return nil, err
	}
	result, err := client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, errors.WithCode(errors.Wrapf(err, "fetching S3 object %v", location), errors.ErrIO)
	}
	defer result.Body.Close()
	buf := new(bytes.Buffer)
	n, err := buf.ReadFrom(result.Body)
	if err != nil {
		return nil, errors.WithCode(errors.Wrapf(err, "reading S3 object %v", location), errors.ErrIO)
	}
	fs.log.Debugf("read %d bytes from %s", n, location)
	return memFile{bytes.NewReader(buf.Bytes())}, nil
}

type memFile struct {
	*bytes.Reader
}

func (memFile) Close() error { return nil }

// IsDir reports whether location is a directory, or an S3 prefix with
// objects below it. A location that does not exist is an ErrIO error.
func (fs *FileSystem) IsDir(ctx context.Context, location string) (bool, error) {
	if !IsS3(location) {
		st, err := os.Stat(location)
		if err != nil {
			return false, errors.WithCode(errors.Wrapf(err, "location %s", location), errors.ErrIO)
		}
		return st.IsDir(), nil
	}
	client, err := fs.s3()
	if err != nil {
		return false, err
	}
	bucket, key, err := splitS3(location)
	if err != nil {
		return false, err
	}
	if key != "" && !strings.HasSuffix(key, "/") {
		_, err := client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
		if err == nil {
			return false, nil
		}
	}
	out, err := client.ListObjectsV2WithContext(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(bucket),
		Prefix:  aws.String(dirPrefix(key)),
		MaxKeys: aws.Int64(1),
	})
	if err != nil {
		return false, errors.WithCode(errors.Wrapf(err, "listing %s", location), errors.ErrIO)
	}
	if len(out.Contents) == 0 && len(out.CommonPrefixes) == 0 {
		return false, errors.Newf(errors.ErrIO, "location %s: no such file or directory", location)
	}
	return true, nil
}

// Exists reports whether location is an existing file or directory.
func (fs *FileSystem) Exists(ctx context.Context, location string) bool {
	_, err := fs.IsDir(ctx, location)
	return err == nil
}

// Files returns the files directly inside dir, sorted.
func (fs *FileSystem) Files(ctx context.Context, dir string) ([]string, error) {
	files, _, err := fs.list(ctx, dir)
	return files, err
}

// Dirs returns the directories directly inside dir, sorted.
func (fs *FileSystem) Dirs(ctx context.Context, dir string) ([]string, error) {
	_, dirs, err := fs.list(ctx, dir)
	return dirs, err
}

func (fs *FileSystem) list(ctx context.Context, dir string) (files, dirs []string, err error) {
	if !IsS3(dir) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, nil, errors.WithCode(errors.Wrapf(err, "listing %s", dir), errors.ErrIO)
		}
		for _, e := range entries {
			p := filepath.Join(dir, e.Name())
			if e.IsDir() {
				dirs = append(dirs, p)
			} else {
				files = append(files, p)
			}
		}
		return files, dirs, nil
	}

	client, err := fs.s3()
	if err != nil {
		return nil, nil, err
	}
	bucket, key, err := splitS3(dir)
	if err != nil {
		return nil, nil, err
	}
	prefix := dirPrefix(key)
	root := "s3://" + bucket + "/"
	err = client.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket:    aws.String(bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	}, func(page *s3.ListObjectsV2Output, _ bool) bool {
		for _, o := range page.Contents {
			if k := aws.StringValue(o.Key); k != prefix {
				files = append(files, root+k)
			}
		}
		for _, p := range page.CommonPrefixes {
			dirs = append(dirs, root+strings.TrimSuffix(aws.StringValue(p.Prefix), "/"))
		}
		return true
	})
	if err != nil {
		return nil, nil, errors.WithCode(errors.Wrapf(err, "listing %s", dir), errors.ErrIO)
	}
	sort.Strings(files)
	sort.Strings(dirs)
	return files, dirs, nil
}

func dirPrefix(key string) string {
	if key == "" || strings.HasSuffix(key, "/") {
		return key
	}
	return key + "/"
}
