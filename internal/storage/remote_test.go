// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package storage

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

type fakeDrive struct {
	mu      sync.Mutex
	folders map[string]string // parent/name -> id
	uploads []string          // parent/name
	queries []string
}

func (d *fakeDrive) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !strings.HasSuffix(r.URL.Path, "/files") {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet:
		q := r.URL.Query().Get("q")
		d.queries = append(d.queries, q)
		files := []map[string]string{}
		for key, id := range d.folders {
			parent, name, _ := strings.Cut(key, "/")
			if strings.Contains(q, "'"+parent+"' in parents") && strings.Contains(q, "name = '"+name+"'") {
				files = append(files, map[string]string{"id": id, "name": name})
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"files": files})

	case r.Method == http.MethodPost && r.URL.Query().Get("uploadType") != "":
		_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		part, err := multipart.NewReader(r.Body, params["boundary"]).NextPart()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var meta struct {
			Name    string   `json:"name"`
			Parents []string `json:"parents"`
		}
		_ = json.NewDecoder(part).Decode(&meta)
		d.uploads = append(d.uploads, meta.Parents[0]+"/"+meta.Name)
		_, _ = io.WriteString(w, `{"id":"file-1"}`)

	case r.Method == http.MethodPost:
		var meta struct {
			Name     string   `json:"name"`
			MimeType string   `json:"mimeType"`
			Parents  []string `json:"parents"`
		}
		if err := json.NewDecoder(r.Body).Decode(&meta); err != nil || meta.MimeType != driveFolderMime {
			http.Error(w, "bad folder", http.StatusBadRequest)
			return
		}
		id := "fld-" + meta.Name
		d.folders[meta.Parents[0]+"/"+meta.Name] = id
		_ = json.NewEncoder(w).Encode(map[string]string{"id": id})

	default:
		http.Error(w, "unsupported", http.StatusMethodNotAllowed)
	}
}

func TestDriveBackend(t *testing.T) {
	fake := &fakeDrive{folders: map[string]string{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	b, err := NewDriveBackend(context.Background(), nil,
		option.WithEndpoint(srv.URL+"/drive/v3/"),
		option.WithoutAuthentication(),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	store := NewStore(b, Options{})

	id, err := store.EnsureFolder(context.Background(), "root123", "promo")
	require.NoError(t, err)
	assert.Equal(t, "fld-promo", id)

	again, err := store.EnsureFolder(context.Background(), "root123", "promo")
	require.NoError(t, err)
	assert.Equal(t, id, again)
	assert.Len(t, fake.folders, 1)
	assert.Contains(t, fake.queries[0], "mimeType = 'application/vnd.google-apps.folder'")
	assert.Contains(t, fake.queries[0], "trashed = false")

	src := filepath.Join(t.TempDir(), "output_1.mp4")
	require.NoError(t, os.WriteFile(src, []byte("video"), 0o600))
	require.NoError(t, store.Upload(context.Background(), id, src, "output_1.mp4"))
	assert.Equal(t, []string{"fld-promo/output_1.mp4"}, fake.uploads)
}

func TestDriveQuote(t *testing.T) {
	assert.Equal(t, `'it\'s'`, driveQuote("it's"))
	assert.Equal(t, `'a\\b'`, driveQuote(`a\b`))
}

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (s *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.TrimPrefix(r.URL.Path, "/bucket/")
	switch r.Method {
	case http.MethodHead:
		if _, ok := s.objects[key]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Length", "0")
		w.WriteHeader(http.StatusOK)
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		s.objects[key] = body
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestS3Backend(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	b, err := NewS3Backend(S3Config{
		Bucket:          "bucket",
		Region:          "us-east-1",
		Endpoint:        srv.URL,
		ForcePathStyle:  true,
		AccessKeyID:     "test",
		SecretAccessKey: "test",
	})
	require.NoError(t, err)
	store := NewStore(b, Options{})

	_, err = b.FindFolder(context.Background(), "videos", "spring")
	assert.ErrorIs(t, err, ErrFolderNotFound)

	id, err := store.EnsureFolder(context.Background(), "videos", "spring")
	require.NoError(t, err)
	assert.Equal(t, "videos/spring/", id)
	assert.Contains(t, fake.objects, "videos/spring/")

	again, err := store.EnsureFolder(context.Background(), "videos", "spring")
	require.NoError(t, err)
	assert.Equal(t, id, again)

	src := filepath.Join(t.TempDir(), "output_2.mp4")
	require.NoError(t, os.WriteFile(src, []byte("video-bytes"), 0o600))
	require.NoError(t, store.Upload(context.Background(), id, src, "output_2.mp4"))
	assert.Equal(t, []byte("video-bytes"), fake.objects["videos/spring/output_2.mp4"])

	_, err = folderPrefix("videos", "a/b")
	assert.Error(t, err)
}
