package provider

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/voaccess/vocloud/transfer"
)

// ensure interface is implemented
var _ AccessPoint = (*S3AccessPoint)(nil)

const s3Scheme = "s3://"

// S3Options configures an S3 access point. Either UID or both Bucket and Key
// must be given; supplying all three is allowed only when they agree.
type S3Options struct {
	// UID is the canonical identifier, s3://bucket/key.
	UID string

	// Bucket is the S3 bucket name.
	Bucket string

	// Key is the object key within the bucket.
	Key string

	// Profile is the name of a shared-config credential profile
	// (~/.aws/config, ~/.aws/credentials). Empty means anonymous access.
	Profile string

	// Region of the bucket. Empty defers to the SDK's resolution chain.
	Region string
}

// S3AccessPoint serves a dataset from an S3 bucket.
type S3AccessPoint struct {
	uid     string
	bucket  string
	key     string
	profile string
	region  string

	clientOnce sync.Once
	client     *s3.Client
	clientErr  error

	probeOnce sync.Once
	reachable bool
	message   string
}

// NewS3AccessPoint creates an S3 access point from opts.
func NewS3AccessPoint(opts S3Options) (*S3AccessPoint, error) {
	bucket, key := opts.Bucket, opts.Key
	uid := opts.UID

	switch {
	case uid == "":
		if bucket == "" || key == "" {
			return nil, fmt.Errorf("either uid or both bucket and key are required: %w", ErrConfiguration)
		}
		key = strings.TrimPrefix(key, "/")
		uid = s3Scheme + bucket + "/" + key
	default:
		parsedBucket, parsedKey, err := ParseS3URI(uid)
		if err != nil {
			return nil, err
		}
		if (bucket != "" && bucket != parsedBucket) || (key != "" && strings.TrimPrefix(key, "/") != parsedKey) {
			return nil, fmt.Errorf("uid %q disagrees with bucket %q key %q: %w", uid, bucket, key, ErrConfiguration)
		}
		bucket, key = parsedBucket, parsedKey
	}

	return &S3AccessPoint{
		uid:     uid,
		bucket:  bucket,
		key:     key,
		profile: opts.Profile,
		region:  opts.Region,
	}, nil
}

func newS3FromParams(params map[string]string, meta Meta) (AccessPoint, error) {
	return NewS3AccessPoint(S3Options{
		UID:     params["uri"],
		Bucket:  params["bucket"],
		Key:     params["key"],
		Profile: meta["profile"],
		Region:  meta["region"],
	})
}

// ParseS3URI splits an s3://bucket/key identifier into bucket and key.
func ParseS3URI(uri string) (bucket, key string, err error) {
	if !strings.HasPrefix(uri, s3Scheme) {
		return "", "", fmt.Errorf("%q does not start with %s: %w", uri, s3Scheme, ErrMalformedUID)
	}
	rest := strings.TrimPrefix(uri, s3Scheme)
	bucket, key, found := strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", "", fmt.Errorf("%q is not of the form s3://bucket/key: %w", uri, ErrMalformedUID)
	}
	return bucket, key, nil
}

// Provider returns the provider ID.
func (a *S3AccessPoint) Provider() ID { return AWS }

// UID returns the s3://bucket/key identifier.
func (a *S3AccessPoint) UID() string { return a.uid }

// Bucket returns the bucket name.
func (a *S3AccessPoint) Bucket() string { return a.bucket }

// Key returns the object key.
func (a *S3AccessPoint) Key() string { return a.key }

func (a *S3AccessPoint) String() string {
	return fmt.Sprintf("|%-5s| %s", AWS, a.uid)
}

// s3Client lazily builds the S3 client. With a profile the shared-config
// credential chain is used; without one the bucket is accessed anonymously.
func (a *S3AccessPoint) s3Client(ctx context.Context) (*s3.Client, error) {
	a.clientOnce.Do(func() {
		loadOpts := []func(*config.LoadOptions) error{}
		if a.profile != "" {
			loadOpts = append(loadOpts, config.WithSharedConfigProfile(a.profile))
		}
		if a.region != "" {
			loadOpts = append(loadOpts, config.WithRegion(a.region))
		}
		cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			a.clientErr = fmt.Errorf("unable to load AWS config: %w", err)
			return
		}
		a.client = s3.NewFromConfig(cfg, func(o *s3.Options) {
			if a.profile == "" {
				o.Credentials = aws.AnonymousCredentials{}
			}
		})
	})
	return a.client, a.clientErr
}

// Accessible probes the object with a HeadObject call. The result is memoized.
func (a *S3AccessPoint) Accessible(ctx context.Context) (bool, string) {
	a.probeOnce.Do(func() {
		client, err := a.s3Client(ctx)
		if err != nil {
			a.reachable, a.message = false, err.Error()
			return
		}
		_, err = client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(a.bucket),
			Key:    aws.String(a.key),
		})
		if err != nil {
			a.reachable, a.message = false, err.Error()
			return
		}
		a.reachable, a.message = true, ""
	})
	return a.reachable, a.message
}

// Download fetches the object to a local file using the S3 transfer manager,
// which pulls byte ranges on multiple goroutines. Progress updates from those
// goroutines funnel through one mutex-guarded counter. With opts.Cache, an
// existing file whose size matches the object's content length is reused.
func (a *S3AccessPoint) Download(ctx context.Context, opts DownloadOptions) (string, error) {
	client, err := a.s3Client(ctx)
	if err != nil {
		return "", fmt.Errorf("%s: %v: %w", a.uid, err, ErrDownload)
	}

	localPath := opts.LocalPath
	if localPath == "" {
		localPath = filepath.Join(opts.Dir, path.Base(a.key))
	}

	head, err := client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.key),
	})
	if err != nil {
		return "", fmt.Errorf("head %s: %v: %w", a.uid, err, ErrDownload)
	}
	length := aws.ToInt64(head.ContentLength)

	if opts.Cache && transfer.SizeMatches(localPath, length) {
		return localPath, nil
	}

	if dir := filepath.Dir(localPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("%s: %v: %w", a.uid, err, ErrDownload)
		}
	}
	f, err := os.Create(localPath)
	if err != nil {
		return "", fmt.Errorf("%s: %v: %w", a.uid, err, ErrDownload)
	}

	w := transfer.NewCountingWriterAt(f, length, opts.Progress)
	downloader := manager.NewDownloader(client)
	_, err = downloader.Download(ctx, w, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.key),
	})
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(localPath)
		return "", fmt.Errorf("get %s: %v: %w", a.uid, err, ErrDownload)
	}
	return localPath, nil
}
