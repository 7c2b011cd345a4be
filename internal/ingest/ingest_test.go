package ingest

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/appgrove/appgrove-server/internal/bundle"
	"github.com/appgrove/appgrove-server/internal/catalog"
	"github.com/appgrove/appgrove-server/internal/log"
	"github.com/appgrove/appgrove-server/internal/storage"
	"github.com/appgrove/appgrove-server/internal/xerrors"
)

func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

func TestExtractArchive(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out")
	data := zipBytes(t, map[string]string{
		"index.html":   "<html></html>",
		"js/game.js":   "let x = 1;",
		"css/site.css": "body{}",
	})

	b, err := ExtractArchive(data, dest)
	if err != nil {
		t.Fatalf("ExtractArchive: %v", err)
	}
	if len(b.Files) != 3 {
		t.Fatalf("files = %v", b.Files)
	}
	if b.EntryDoc != "index.html" {
		t.Fatalf("EntryDoc = %q", b.EntryDoc)
	}
	if _, err := os.Stat(filepath.Join(dest, "js", "game.js")); err != nil {
		t.Fatalf("extracted file missing: %v", err)
	}
}

func TestExtractArchiveRejectsTraversal(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out")
	data := zipBytes(t, map[string]string{
		"index.html":  "<html></html>",
		"../evil.txt": "pwned",
	})

	_, err := ExtractArchive(data, dest)
	if !xerrors.IsKind(err, xerrors.KindValidation) {
		t.Fatalf("want validation error, got %v", err)
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Fatal("partial extraction left behind")
	}
}

func TestExtractArchiveRejectsGarbage(t *testing.T) {
	_, err := ExtractArchive([]byte("not a zip"), filepath.Join(t.TempDir(), "out"))
	if !xerrors.IsKind(err, xerrors.KindInput) {
		t.Fatalf("want input error, got %v", err)
	}
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint([]byte("payload"))
	b := Fingerprint([]byte("payload"))
	c := Fingerprint([]byte("other"))

	if !strings.HasPrefix(a, "zip:sha256:") {
		t.Fatalf("fingerprint %q missing prefix", a)
	}
	if a != b {
		t.Fatal("same bytes produced different fingerprints")
	}
	if a == c {
		t.Fatal("different bytes produced equal fingerprints")
	}
}

func TestRepoAdapterIdentity(t *testing.T) {
	a := NewRepoAdapter(1<<20, time.Second, log.Nop())

	got, err := a.Identity("https://github.com/alice/snake-game.git")
	if err != nil {
		t.Fatalf("Identity: %v", err)
	}
	if got != "https://github.com/alice/snake-game" {
		t.Fatalf("identity = %q", got)
	}

	if _, err := a.Identity("https://example.com/not-a-repo"); !xerrors.IsKind(err, xerrors.KindInput) {
		t.Fatalf("want input error, got %v", err)
	}
}

func TestRepoAdapterFallsBackToMaster(t *testing.T) {
	archive := zipBytes(t, map[string]string{
		"snake-master/index.html": "<html></html>",
		"snake-master/game.js":    "let x;",
	})

	var mainHits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/archive/refs/heads/main.zip":
			mainHits++
			http.NotFound(w, r)
		case "/archive/refs/heads/master.zip":
			w.Write(archive)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	a := NewRepoAdapter(1<<20, 5*time.Second, log.Nop())
	a.baseURL = srv.URL

	dest := filepath.Join(t.TempDir(), "out")
	b, err := a.Fetch(context.Background(), "https://github.com/alice/snake", dest)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if mainHits != 1 {
		t.Fatalf("main branch probed %d times", mainHits)
	}
	// the wrapper directory is hoisted away
	if b.EntryDoc != "index.html" {
		t.Fatalf("EntryDoc = %q, want index.html at root", b.EntryDoc)
	}
	if _, err := os.Stat(filepath.Join(dest, "game.js")); err != nil {
		t.Fatalf("hoisted file missing: %v", err)
	}
}

func TestRepoAdapterCleansUpOnFlattenFailure(t *testing.T) {
	// a wrapper whose only child shares its name makes the hoist rename
	// collide with the wrapper itself
	archive := zipBytes(t, map[string]string{
		"snake-main/snake-main/index.html": "<html></html>",
	})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(archive)
	}))
	defer srv.Close()

	a := NewRepoAdapter(1<<20, 5*time.Second, log.Nop())
	a.baseURL = srv.URL

	dest := filepath.Join(t.TempDir(), "out")
	if _, err := a.Fetch(context.Background(), "https://github.com/alice/snake", dest); err == nil {
		t.Fatal("expected flatten failure")
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Fatalf("failed fetch left extraction tree behind: %v", err)
	}
}

func TestRepoAdapterSurfacesUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	a := NewRepoAdapter(1<<20, 5*time.Second, log.Nop())
	a.baseURL = srv.URL

	_, err := a.Fetch(context.Background(), "https://github.com/alice/snake", filepath.Join(t.TempDir(), "out"))
	if !xerrors.IsKind(err, xerrors.KindUpstream) {
		t.Fatalf("want upstream error, got %v", err)
	}
}

func TestScrapeAdapterSameOriginAssets(t *testing.T) {
	var crossOriginHit bool
	other := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		crossOriginHit = true
	}))
	defer other.Close()

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	page := `<html><head>
		<link rel="stylesheet" href="/style.css">
		<script src="app.js"></script>
	</head><body>
		<img src="logo.png">
		<img src="data:image/png;base64,AAAA">
		<img src="` + other.URL + `/external.png">
		<img src="/missing.png">
	</body></html>`

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(page))
	})
	mux.HandleFunc("/style.css", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("body{}")) })
	mux.HandleFunc("/app.js", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("let x;")) })
	mux.HandleFunc("/logo.png", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("png")) })

	a := NewScrapeAdapter(1<<20, 1<<20, 5*time.Second, 2*time.Second, log.Nop())
	dest := filepath.Join(t.TempDir(), "out")

	b, err := a.Fetch(context.Background(), srv.URL+"/", dest)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if b.EntryDoc != "index.html" {
		t.Fatalf("EntryDoc = %q", b.EntryDoc)
	}
	for _, f := range []string{"index.html", "style.css", "app.js", "logo.png"} {
		if _, err := os.Stat(filepath.Join(dest, f)); err != nil {
			t.Errorf("asset %s missing: %v", f, err)
		}
	}
	// the 404 asset is skipped, not fatal
	if len(b.Files) != 4 {
		t.Fatalf("files = %v", b.Files)
	}
	if crossOriginHit {
		t.Fatal("cross-origin asset was fetched")
	}
}

func newTestRouter(t *testing.T, reviewBytes int64) (*Router, *catalog.Store, *storage.Store) {
	t.Helper()
	store, err := catalog.Open(catalog.Options{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	files, err := storage.New(storage.Options{Root: t.TempDir(), Logger: log.Nop()})
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}

	r := NewRouter(RouterOptions{
		Store:       store,
		Files:       files,
		Gate:        &bundle.Gate{MaxFiles: 500, MaxBytes: 20 << 20},
		ReviewBytes: reviewBytes,
		Logger:      log.Nop(),
	})
	return r, store, files
}

func extractInto(t *testing.T, files *storage.Store, contents map[string]string) (string, *bundle.Bundle) {
	t.Helper()
	name, abs := files.NewAppDir()
	b, err := ExtractArchive(zipBytes(t, contents), abs)
	if err != nil {
		t.Fatalf("ExtractArchive: %v", err)
	}
	return name, b
}

func TestRouterApprovesBelowThreshold(t *testing.T) {
	r, store, files := newTestRouter(t, 10<<20)
	dir, b := extractInto(t, files, map[string]string{"index.html": "<html></html>"})

	out, err := r.PublishBundle(context.Background(), BundleImport{
		OwnerID: 1, Title: "Space Puzzle Game", Method: catalog.MethodArchive,
		DirName: dir, Bundle: b,
	})
	if err != nil {
		t.Fatalf("PublishBundle: %v", err)
	}
	if out.RequiresReview {
		t.Fatal("small bundle flagged for review")
	}
	if out.Item.Status != catalog.StatusApproved {
		t.Fatalf("status = %q", out.Item.Status)
	}
	if out.Item.CategoryName != "game" {
		t.Fatalf("category = %q", out.Item.CategoryName)
	}
	if !strings.HasPrefix(out.Item.PublishedURL, "apps/"+dir+"/") {
		t.Fatalf("published URL = %q", out.Item.PublishedURL)
	}
	want := catalog.MakeSlug("Space Puzzle Game", out.Item.ID)
	if out.Item.SlugString() != want {
		t.Fatalf("slug = %q, want %q", out.Item.SlugString(), want)
	}

	got, err := store.PublicItemBySlug(want)
	if err != nil {
		t.Fatalf("PublicItemBySlug: %v", err)
	}
	if got.ThumbnailPath == "" {
		t.Fatal("placeholder thumbnail not assigned")
	}
}

func TestRouterRoutesLargeBundleToPending(t *testing.T) {
	r, _, files := newTestRouter(t, 10)
	dir, b := extractInto(t, files, map[string]string{"index.html": "<html>plenty of bytes here</html>"})

	out, err := r.PublishBundle(context.Background(), BundleImport{
		OwnerID: 1, Title: "Big", Method: catalog.MethodArchive, DirName: dir, Bundle: b,
	})
	if err != nil {
		t.Fatalf("PublishBundle: %v", err)
	}
	if !out.RequiresReview || out.Item.Status != catalog.StatusPending {
		t.Fatalf("outcome = %+v", out)
	}
}

func TestRouterRejectsDuplicateIdentity(t *testing.T) {
	r, store, files := newTestRouter(t, 10<<20)

	dir, b := extractInto(t, files, map[string]string{"index.html": "<html></html>"})
	if _, err := r.PublishBundle(context.Background(), BundleImport{
		OwnerID: 1, Title: "First", Method: catalog.MethodRepository,
		SourceIdentity: "https://github.com/alice/snake",
		DirName:        dir, Bundle: b,
	}); err != nil {
		t.Fatalf("first import: %v", err)
	}

	dir2, b2 := extractInto(t, files, map[string]string{"index.html": "<html></html>"})
	_, err := r.PublishBundle(context.Background(), BundleImport{
		OwnerID: 2, Title: "Second", Method: catalog.MethodRepository,
		SourceIdentity: "https://github.com/alice/snake",
		DirName:        dir2, Bundle: b2,
	})
	if !xerrors.IsKind(err, xerrors.KindConflict) {
		t.Fatalf("want conflict, got %v", err)
	}
	if !strings.Contains(err.Error(), "First") {
		t.Fatalf("conflict message %q lacks existing title", err.Error())
	}
	if _, statErr := os.Stat(b2.Root); !os.IsNotExist(statErr) {
		t.Fatal("duplicate import tree not cleaned up")
	}

	items, err := store.ListPublicItems("")
	if err != nil {
		t.Fatalf("ListPublicItems: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1", len(items))
	}
}

func TestRouterCleansUpOnValidationFailure(t *testing.T) {
	r, store, files := newTestRouter(t, 10<<20)
	dir, b := extractInto(t, files, map[string]string{"server.py": "print('hi')"})

	_, err := r.PublishBundle(context.Background(), BundleImport{
		OwnerID: 1, Title: "Bad", Method: catalog.MethodArchive, DirName: dir, Bundle: b,
	})
	if !xerrors.IsKind(err, xerrors.KindValidation) {
		t.Fatalf("want validation error, got %v", err)
	}
	if _, statErr := os.Stat(b.Root); !os.IsNotExist(statErr) {
		t.Fatal("rejected tree not cleaned up")
	}
	items, err := store.ListPublicItems("")
	if err != nil {
		t.Fatalf("ListPublicItems: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("row created for rejected bundle: %+v", items)
	}
}

func TestPublishMediaLink(t *testing.T) {
	r, _, _ := newTestRouter(t, 10<<20)

	out, err := r.PublishMedia(context.Background(), MediaImport{
		OwnerID: 1, Title: "Handy Tool Site", ContentType: catalog.TypeLink,
		PublishedURL: "https://example.com/tool",
	})
	if err != nil {
		t.Fatalf("PublishMedia: %v", err)
	}
	if out.RequiresReview || out.Item.Status != catalog.StatusApproved {
		t.Fatalf("outcome = %+v", out)
	}
	if out.Item.ContentType != catalog.TypeLink {
		t.Fatalf("content type = %q", out.Item.ContentType)
	}
}

func TestPublishMediaVideoRoutesBySize(t *testing.T) {
	r, _, _ := newTestRouter(t, 10<<20)

	// Videos never pass through the bundle gate, only the size router.
	out, err := r.PublishMedia(context.Background(), MediaImport{
		OwnerID: 1, Title: "Speedrun Clip", ContentType: catalog.TypeVideo,
		PublishedURL: "videos/clip.mp4", ByteSize: 15 << 20,
	})
	if err != nil {
		t.Fatalf("PublishMedia: %v", err)
	}
	if !out.RequiresReview || out.Item.Status != catalog.StatusPending {
		t.Fatalf("outcome = %+v", out)
	}

	out, err = r.PublishMedia(context.Background(), MediaImport{
		OwnerID: 1, Title: "Short Clip", ContentType: catalog.TypeVideo,
		PublishedURL: "videos/short.mp4", ByteSize: 1 << 20,
	})
	if err != nil {
		t.Fatalf("PublishMedia: %v", err)
	}
	if out.RequiresReview || out.Item.Status != catalog.StatusApproved {
		t.Fatalf("outcome = %+v", out)
	}
}
