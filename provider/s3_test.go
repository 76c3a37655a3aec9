package provider

import (
	"errors"
	"testing"
)

func TestS3AccessPoint_ImplementsAccessPoint(t *testing.T) {
	var _ AccessPoint = (*S3AccessPoint)(nil)
}

func TestParseS3URI(t *testing.T) {
	tests := []struct {
		uri     string
		bucket  string
		key     string
		wantErr bool
	}{
		{"s3://bucket/key", "bucket", "key", false},
		{"s3://bucket/deep/key/file.fits", "bucket", "deep/key/file.fits", false},
		{"s5://bucket/key", "", "", true},
		{"https://bucket/key", "", "", true},
		{"s3://bucketonly", "", "", true},
		{"s3://", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			bucket, key, err := ParseS3URI(tt.uri)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedUID) {
					t.Errorf("ParseS3URI(%q) error = %v; want ErrMalformedUID", tt.uri, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseS3URI(%q) failed: %v", tt.uri, err)
			}
			if bucket != tt.bucket || key != tt.key {
				t.Errorf("ParseS3URI(%q) = (%q, %q); want (%q, %q)", tt.uri, bucket, key, tt.bucket, tt.key)
			}
		})
	}
}

// Identifier round-trip: bucket/key builds s3://bucket/key, and parsing that
// identifier yields the same bucket and key.
func TestS3AccessPoint_UIDRoundTrip(t *testing.T) {
	ap, err := NewS3AccessPoint(S3Options{Bucket: "mybucket", Key: "path/to/file.fits"})
	if err != nil {
		t.Fatalf("NewS3AccessPoint failed: %v", err)
	}
	if ap.UID() != "s3://mybucket/path/to/file.fits" {
		t.Errorf("UID() = %q; want s3://mybucket/path/to/file.fits", ap.UID())
	}

	ap2, err := NewS3AccessPoint(S3Options{UID: ap.UID()})
	if err != nil {
		t.Fatalf("NewS3AccessPoint from uid failed: %v", err)
	}
	if ap2.Bucket() != "mybucket" || ap2.Key() != "path/to/file.fits" {
		t.Errorf("round trip = (%q, %q); want (mybucket, path/to/file.fits)", ap2.Bucket(), ap2.Key())
	}
}

func TestNewS3AccessPoint_LeadingSlashKey(t *testing.T) {
	ap, err := NewS3AccessPoint(S3Options{Bucket: "b", Key: "/k/file"})
	if err != nil {
		t.Fatal(err)
	}
	if ap.UID() != "s3://b/k/file" {
		t.Errorf("UID() = %q; want s3://b/k/file", ap.UID())
	}
}

func TestNewS3AccessPoint_Errors(t *testing.T) {
	tests := []struct {
		name string
		opts S3Options
		want error
	}{
		{"neither uid nor params", S3Options{}, ErrConfiguration},
		{"bucket without key", S3Options{Bucket: "b"}, ErrConfiguration},
		{"key without bucket", S3Options{Key: "k"}, ErrConfiguration},
		{"bad scheme", S3Options{UID: "s5://b/k"}, ErrMalformedUID},
		{"uid disagrees with bucket", S3Options{UID: "s3://b/k", Bucket: "other"}, ErrConfiguration},
		{"uid disagrees with key", S3Options{UID: "s3://b/k", Key: "other"}, ErrConfiguration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewS3AccessPoint(tt.opts)
			if !errors.Is(err, tt.want) {
				t.Errorf("NewS3AccessPoint(%+v) error = %v; want %v", tt.opts, err, tt.want)
			}
		})
	}
}

// Supplying both uid and the matching parameter set is allowed.
func TestNewS3AccessPoint_ConsistentBoth(t *testing.T) {
	ap, err := NewS3AccessPoint(S3Options{UID: "s3://b/k/file", Bucket: "b", Key: "k/file"})
	if err != nil {
		t.Fatalf("NewS3AccessPoint failed: %v", err)
	}
	if ap.Bucket() != "b" || ap.Key() != "k/file" {
		t.Errorf("got (%q, %q); want (b, k/file)", ap.Bucket(), ap.Key())
	}
}
