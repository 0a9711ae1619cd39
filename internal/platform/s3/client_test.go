package s3

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testClient creates a Client backed by a test HTTP server.
func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := s3.New(s3.Options{
		Region:       "eu-central-1",
		BaseEndpoint: aws.String(server.URL),
		UsePathStyle: true,
		Credentials:  credentials.NewStaticCredentialsProvider("test-key", "test-secret", ""),
		HTTPClient: &http.Client{
			Transport: &http.Transport{},
		},
	})

	return &Client{s3: client, region: "eu-central-1"}
}

func xmlResponse(w http.ResponseWriter, statusCode int, body string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(statusCode)
	_, _ = w.Write([]byte(body))
}

func TestNewClient(t *testing.T) {
	t.Parallel()

	client, err := NewClient("https://objects.example.com", "eu-central-1", "key", "secret")
	require.NoError(t, err)
	assert.Equal(t, "eu-central-1", client.region)

	client, err = NewClient("", "us-east-1", "", "")
	require.NoError(t, err)
	assert.NotNil(t, client.s3)
}

func TestParseURI(t *testing.T) {
	t.Parallel()

	tests := []struct {
		location string
		bucket   string
		key      string
		wantErr  bool
	}{
		{location: "s3://artifacts/provision/web.txt", bucket: "artifacts", key: "provision/web.txt"},
		{location: "s3://artifacts/hosts", bucket: "artifacts", key: "hosts"},
		{location: "s3://artifacts", wantErr: true},
		{location: "s3://artifacts/", wantErr: true},
		{location: "s3:///key", wantErr: true},
		{location: "s3://artifacts/dir/", wantErr: true},
		{location: "/tmp/hosts.txt", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.location, func(t *testing.T) {
			t.Parallel()
			bucket, key, err := ParseURI(tt.location)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidURI)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.bucket, bucket)
			assert.Equal(t, tt.key, key)
		})
	}
}

func TestIsURI(t *testing.T) {
	t.Parallel()
	assert.True(t, IsURI("s3://b/k"))
	assert.False(t, IsURI("hosts.txt"))
	assert.False(t, IsURI("S3://b/k"))
}

func TestUpload(t *testing.T) {
	t.Parallel()

	var (
		mu   sync.Mutex
		path string
		body []byte
	)
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}
		mu.Lock()
		defer mu.Unlock()
		path = r.URL.Path
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))

	err := client.Upload(context.Background(), "s3://artifacts/runs/web.txt", []byte("web1,web2"))
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "/artifacts/runs/web.txt", path)
	assert.Contains(t, string(body), "web1,web2")
}

func TestUpload_MissingBucket(t *testing.T) {
	t.Parallel()

	var puts atomic.Int32
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			puts.Add(1)
		}
		w.WriteHeader(http.StatusNotFound)
	}))

	err := client.Upload(context.Background(), "s3://gone/hosts", []byte("web1"))
	require.ErrorIs(t, err, ErrBucketNotFound)
	assert.Zero(t, puts.Load())
}

func TestUpload_InvalidLocation(t *testing.T) {
	t.Parallel()

	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("no request expected")
		w.WriteHeader(http.StatusInternalServerError)
	}))

	err := client.Upload(context.Background(), "s3://only-bucket", []byte("x"))
	assert.ErrorIs(t, err, ErrInvalidURI)
}

func TestPutObject_Error(t *testing.T) {
	t.Parallel()

	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		xmlResponse(w, http.StatusInternalServerError, `<?xml version="1.0" encoding="UTF-8"?>
<Error>
  <Code>InternalError</Code>
  <Message>Internal Error</Message>
</Error>`)
	}))

	err := client.PutObject(context.Background(), "artifacts", "hosts", []byte("data"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to put object hosts in bucket artifacts")
}

func TestBucketExists(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		want    bool
		wantErr bool
	}{
		{name: "exists", status: http.StatusOK, want: true},
		{name: "missing", status: http.StatusNotFound, want: false},
		{name: "forbidden", status: http.StatusForbidden, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))

			got, err := client.BucketExists(context.Background(), "artifacts")
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsNotFoundError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "wrapped NoSuchBucket", err: fmt.Errorf("outer: %w", &s3types.NoSuchBucket{}), want: true},
		{name: "wrapped NoSuchKey", err: fmt.Errorf("outer: %w", &s3types.NoSuchKey{}), want: true},
		{name: "wrapped NotFound", err: fmt.Errorf("outer: %w", &s3types.NotFound{}), want: true},
		{name: "generic", err: fmt.Errorf("outer: %w", fmt.Errorf("inner")), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, isNotFoundError(tt.err))
		})
	}
}
