package gcs_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/JakeFAU/moses-scraper/internal/storage/gcs"
)

func TestPutPageUploadsObject(t *testing.T) {
	var (
		mu      sync.Mutex
		gotName string
		gotBody string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		name := r.URL.Query().Get("name")
		mu.Lock()
		gotName = name
		gotBody = string(body)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"bucket":"pages-bucket","name":%q}`, name)
	}))
	defer server.Close()

	client, err := storage.NewClient(context.Background(),
		option.WithEndpoint(server.URL),
		option.WithoutAuthentication(),
	)
	require.NoError(t, err)

	archive, err := gcs.New(client, gcs.Config{Bucket: "pages-bucket"})
	require.NoError(t, err)
	defer func() { _ = archive.Close() }()

	uri, err := archive.PutPage(context.Background(), "pages/run/40123-v3.html", []byte("<html>Datenbanksysteme</html>"))
	require.NoError(t, err)
	require.Equal(t, "gs://pages-bucket/pages/run/40123-v3.html", uri)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, "pages/run/40123-v3.html", gotName)
	require.Contains(t, gotBody, "<html>Datenbanksysteme</html>")
}

func TestNewValidatesInput(t *testing.T) {
	_, err := gcs.New(nil, gcs.Config{Bucket: "b"})
	require.Error(t, err)

	client, err := storage.NewClient(context.Background(), option.WithoutAuthentication())
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	_, err = gcs.New(client, gcs.Config{})
	require.Error(t, err)
}

func TestPutPageRequiresKey(t *testing.T) {
	client, err := storage.NewClient(context.Background(), option.WithoutAuthentication())
	require.NoError(t, err)
	archive, err := gcs.New(client, gcs.Config{Bucket: "b"})
	require.NoError(t, err)
	defer func() { _ = archive.Close() }()

	_, err = archive.PutPage(context.Background(), "", []byte("x"))
	require.Error(t, err)
}
