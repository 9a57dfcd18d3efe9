package download

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/SirZenith/gimme/database"
	"github.com/SirZenith/gimme/harvest"
	"github.com/klauspost/compress/zip"
)

type fileServer struct {
	lock  sync.Mutex
	hits  map[string]int
	flaky int // number of failures served before /flaky.jpg succeeds
}

func newFileServer(t *testing.T) (*fileServer, *httptest.Server) {
	fs := &fileServer{hits: map[string]int{}, flaky: 1}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fs.lock.Lock()
		fs.hits[r.URL.Path]++
		hit := fs.hits[r.URL.Path]
		fs.lock.Unlock()

		switch r.URL.Path {
		case "/a.jpg", "/b.jpg":
			w.Write([]byte("data of " + r.URL.Path))
		case "/flaky.jpg":
			if hit <= fs.flaky {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.Write([]byte("finally"))
		case "/pic.png":
			w.Header().Set("Content-Type", "image/png")
			w.Write(testPNG(t))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)

	return fs, server
}

func (fs *fileServer) hitsOf(path string) int {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	return fs.hits[path]
}

func testPNG(t *testing.T) []byte {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{255, 0, 0, 255})

	buf := &bytes.Buffer{}
	if err := png.Encode(buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func testEntries(base, dir string, names ...string) []harvest.DownloadEntry {
	entries := []harvest.DownloadEntry{}
	for _, name := range names {
		entries = append(entries, harvest.DownloadEntry{
			SourceURI: base + "/" + name,
			ThumbURI:  base + "/thumb/" + name,
			DestPath:  filepath.Join(dir, name),
		})
	}
	return entries
}

func TestDownloadBatch(t *testing.T) {
	fs, server := newFileServer(t)
	dir := filepath.Join(t.TempDir(), "Gimme-test")

	d := NewDownloader(Options{Retry: 2, BatchSize: 2}, nil, nil)
	entries := testEntries(server.URL, dir, "a.jpg", "b.jpg", "flaky.jpg", "missing.jpg")

	err := d.DownloadBatch(context.Background(), dir, entries)
	if err == nil {
		t.Fatalf("missing file did not fail batch")
	}

	for name, want := range map[string]string{
		"a.jpg":     "data of /a.jpg",
		"b.jpg":     "data of /b.jpg",
		"flaky.jpg": "finally",
	} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Errorf("%s not saved: %s", name, err)
			continue
		}
		if string(data) != want {
			t.Errorf("output:\n\t%s\nwant:\n\t%s", data, want)
		}
	}

	if _, err := os.Stat(filepath.Join(dir, "missing.jpg")); err == nil {
		t.Errorf("missing file got saved")
	}

	if hits := fs.hitsOf("/missing.jpg"); hits != 3 {
		t.Errorf("output:\n\t%d\nwant:\n\t%d", hits, 3)
	}
}

func TestDownloadBatchSkipsRecorded(t *testing.T) {
	fs, server := newFileServer(t)
	root := t.TempDir()
	dir := filepath.Join(root, "Gimme-test")

	db, err := database.Open(filepath.Join(root, "gimme.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer database.Close(db)

	d := NewDownloader(Options{}, nil, db)
	entries := testEntries(server.URL, dir, "a.jpg", "b.jpg")

	for i := 0; i < 2; i++ {
		if err := d.DownloadBatch(context.Background(), dir, entries); err != nil {
			t.Fatal(err)
		}
	}

	for _, path := range []string{"/a.jpg", "/b.jpg"} {
		if hits := fs.hitsOf(path); hits != 1 {
			t.Errorf("%s output:\n\t%d\nwant:\n\t%d", path, hits, 1)
		}
	}

	if !database.IsDownloaded(db, server.URL+"/a.jpg") {
		t.Errorf("download not recorded")
	}
}

func TestDownloadOne(t *testing.T) {
	_, server := newFileServer(t)
	dir := t.TempDir()

	d := NewDownloader(Options{}, nil, nil)

	dest := filepath.Join(dir, "nested", "a.jpg")
	if err := d.DownloadOne(context.Background(), server.URL+"/a.jpg", dest); err != nil {
		t.Fatal(err)
	}
	if data, err := os.ReadFile(dest); err != nil || string(data) != "data of /a.jpg" {
		t.Errorf("output:\n\t%s (%v)\nwant:\n\t%s", data, err, "data of /a.jpg")
	}

	if err := d.DownloadOne(context.Background(), server.URL+"/missing.jpg", filepath.Join(dir, "m.jpg")); err == nil {
		t.Errorf("missing file download succeeded")
	}
}

func TestDownloadImageFormat(t *testing.T) {
	_, server := newFileServer(t)
	dir := t.TempDir()

	d := NewDownloader(Options{ImageFormat: "bmp"}, nil, nil)
	entries := testEntries(server.URL, dir, "pic.png", "a.jpg")

	if err := d.DownloadBatch(context.Background(), dir, entries); err != nil {
		t.Fatal(err)
	}

	// only responses with image content type are converted
	for _, name := range []string{"pic.bmp", "a.jpg"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s not saved: %s", name, err)
		}
	}
}

func TestDownloadZip(t *testing.T) {
	_, server := newFileServer(t)
	dir := filepath.Join(t.TempDir(), "Gimme-zip")

	d := NewDownloader(Options{Zip: true}, nil, nil)
	entries := testEntries(server.URL, dir, "a.jpg", "b.jpg")

	if err := d.DownloadBatch(context.Background(), dir, entries); err != nil {
		t.Fatal(err)
	}

	reader, err := zip.OpenReader(dir + ".zip")
	if err != nil {
		t.Fatal(err)
	}
	defer reader.Close()

	names := []string{}
	for _, file := range reader.File {
		names = append(names, file.Name)
	}
	sort.Strings(names)

	if len(names) != 2 || names[0] != "a.jpg" || names[1] != "b.jpg" {
		t.Errorf("output:\n\t%v\nwant:\n\t%v", names, []string{"a.jpg", "b.jpg"})
	}
}

func TestDownloadCanceled(t *testing.T) {
	fs, server := newFileServer(t)
	dir := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := NewDownloader(Options{}, nil, nil)
	err := d.DownloadBatch(ctx, dir, testEntries(server.URL, dir, "a.jpg"))
	if err == nil {
		t.Errorf("canceled batch succeeded")
	}

	if hits := fs.hitsOf("/a.jpg"); hits != 0 {
		t.Errorf("output:\n\t%d\nwant:\n\t%d", hits, 0)
	}
}

func TestCheckImageFormat(t *testing.T) {
	for _, format := range []string{"", "png", "JPG", "avif"} {
		if err := CheckImageFormat(format); err != nil {
			t.Errorf("format %q rejected: %s", format, err)
		}
	}

	if err := CheckImageFormat("gif"); err == nil {
		t.Errorf("unsupported format accepted")
	}
}
