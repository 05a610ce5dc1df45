package storage_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	gcs "cloud.google.com/go/storage"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/paperchase/paperchase/internal/storage"
)

type fakeClientFactory struct {
	client *gcs.Client
	err    error
}

func (f *fakeClientFactory) NewClient(context.Context) (*gcs.Client, error) {
	return f.client, f.err
}

type roundTripperFunc func(req *http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// newFakeGCSClient returns a client whose transport answers every request
// with the given handler.
func newFakeGCSClient(t *testing.T, handler http.HandlerFunc) *gcs.Client {
	t.Helper()
	client, err := gcs.NewClient(
		context.Background(),
		option.WithoutAuthentication(),
		option.WithHTTPClient(&http.Client{
			Transport: roundTripperFunc(func(r *http.Request) (*http.Response, error) {
				rec := httptest.NewRecorder()
				handler(rec, r)
				resp := rec.Result()
				resp.Request = r
				return resp, nil
			}),
		}),
	)
	require.NoError(t, err)
	return client
}

func TestNewGCSProviderVerifiesBucket(t *testing.T) {
	t.Parallel()

	client := newFakeGCSClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Contains(t, r.URL.Path, "/storage/v1/b/archive-bucket")
		fmt.Fprint(w, `{}`)
	})

	provider, err := storage.NewGCSProvider(
		context.Background(), "archive-bucket", &fakeClientFactory{client: client}, nil)
	require.NoError(t, err)
	require.NotNil(t, provider)
}

func TestNewGCSProviderClientError(t *testing.T) {
	t.Parallel()

	_, err := storage.NewGCSProvider(
		context.Background(), "archive-bucket",
		&fakeClientFactory{err: fmt.Errorf("no credentials")}, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "create GCS client")
}

func TestGCSProviderSave(t *testing.T) {
	t.Parallel()

	objectName := "runs/abc/page-0000.json"
	payload := []byte(`{"records":[]}`)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Contains(t, r.URL.Path, "/upload/storage/v1/b/archive-bucket/o")
		require.Equal(t, objectName, r.URL.Query().Get("name"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.Contains(t, string(body), string(payload))
		fmt.Fprintln(w, `{"name":"`+objectName+`"}`)
	}))
	t.Cleanup(srv.Close)

	client, err := gcs.NewClient(
		context.Background(), option.WithEndpoint(srv.URL), option.WithoutAuthentication())
	require.NoError(t, err)

	provider := &storage.GCSProvider{Client: client, BucketName: "archive-bucket"}
	require.NoError(t, provider.Save(context.Background(), objectName, payload))
}

func TestGCSProviderSaveError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	client, err := gcs.NewClient(
		context.Background(), option.WithEndpoint(srv.URL), option.WithoutAuthentication())
	require.NoError(t, err)

	provider := &storage.GCSProvider{Client: client, BucketName: "archive-bucket"}
	err = provider.Save(context.Background(), "obj", []byte("x"))
	require.Error(t, err)
}
