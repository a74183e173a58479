package media

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"media-catalog/internal/database"
	"media-catalog/internal/storage"
	"media-catalog/internal/transform"
)

// writingExecutor simulates the transformation tools: on success it
// writes a small file at the command's output path.
type writingExecutor struct {
	// failMatch lists substrings; a command whose string form contains
	// one is failed that many times (decremented per hit).
	failMatch map[string]int
	// emptyOutput writes zero bytes instead of content.
	emptyOutput bool
	calls       []transform.Command
}

func (w *writingExecutor) Run(_ context.Context, cmd transform.Command) ([]byte, error) {
	w.calls = append(w.calls, cmd)

	for match, remaining := range w.failMatch {
		if remaining > 0 && strings.Contains(cmd.String(), match) {
			w.failMatch[match] = remaining - 1
			return nil, errors.New("tool exited with status 1")
		}
	}

	if len(cmd.Args) == 0 {
		return nil, nil
	}
	out := cmd.Args[len(cmd.Args)-1]
	content := []byte("derivative bytes")
	if w.emptyOutput {
		content = nil
	}
	if err := os.WriteFile(out, content, 0o644); err != nil {
		return nil, err
	}
	return nil, nil
}

func newTestGenerator(t *testing.T, exec transform.Executor) (*Generator, *storage.Store) {
	t.Helper()
	base := t.TempDir()
	store, err := storage.New(filepath.Join(base, "files"), filepath.Join(base, "scratch"))
	if err != nil {
		t.Fatal(err)
	}
	return NewGenerator(store, exec), store
}

func writeSource(t *testing.T, store *storage.Store, recordID, name string) string {
	t.Helper()
	path := store.FilePath("media", recordID, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("original"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestGenerateImageAllVariants(t *testing.T) {
	exec := &writingExecutor{}
	g, store := newTestGenerator(t, exec)
	src := writeSource(t, store, "rec-1", "photo.jpg")

	result, err := g.GenerateImage(context.Background(), "media", "rec-1", src)
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}

	for _, key := range []string{database.DerivedDisplay, database.DerivedBlur, database.DerivedThumb} {
		url, ok := result[key]
		if !ok {
			t.Errorf("missing %s in result", key)
			continue
		}
		if !strings.HasPrefix(url, "/files/media/rec-1/") {
			t.Errorf("%s url = %q, want collection-scoped url", key, url)
		}
	}

	for _, name := range []string{DisplayFile, BlurFile, ThumbFile} {
		if _, err := os.Stat(store.FilePath("media", "rec-1", name)); err != nil {
			t.Errorf("derivative %s not placed: %v", name, err)
		}
	}
}

func TestGenerateImagePartialFailure(t *testing.T) {
	exec := &writingExecutor{failMatch: map[string]int{"gblur": 1}}
	g, store := newTestGenerator(t, exec)
	src := writeSource(t, store, "rec-2", "photo.jpg")

	result, err := g.GenerateImage(context.Background(), "media", "rec-2", src)
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}

	if _, ok := result[database.DerivedBlur]; ok {
		t.Error("failed blur should not appear in result")
	}
	if _, ok := result[database.DerivedDisplay]; !ok {
		t.Error("display should survive a blur failure")
	}
	if _, ok := result[database.DerivedThumb]; !ok {
		t.Error("thumb should survive a blur failure")
	}
	if _, err := os.Stat(store.FilePath("media", "rec-2", BlurFile)); !os.IsNotExist(err) {
		t.Error("failed blur should leave no file at the permanent path")
	}
}

func TestGenerateImageEmptyOutputIsFailure(t *testing.T) {
	exec := &writingExecutor{emptyOutput: true}
	g, store := newTestGenerator(t, exec)
	src := writeSource(t, store, "rec-3", "photo.jpg")

	result, err := g.GenerateImage(context.Background(), "media", "rec-3", src)
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	if len(result) != 0 {
		t.Errorf("zero-byte outputs should produce no derivatives, got %v", result)
	}
}

func TestImageThumbnailFallsBackInProcess(t *testing.T) {
	exec := &writingExecutor{failMatch: map[string]int{"scale=300": 1}}
	g, store := newTestGenerator(t, exec)

	// The fallback decodes the source, so it must be a real image.
	srcPath := store.FilePath("media", "rec-5", "photo.jpg")
	if err := os.MkdirAll(filepath.Dir(srcPath), 0o755); err != nil {
		t.Fatal(err)
	}
	img := image.NewRGBA(image.Rect(0, 0, 600, 400))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(srcPath, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	result, err := g.GenerateImage(context.Background(), "media", "rec-5", srcPath)
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}

	if _, ok := result[database.DerivedThumb]; !ok {
		t.Error("thumbnail should fall back to in-process rendering")
	}
	if _, err := os.Stat(store.FilePath("media", "rec-5", ThumbFile)); err != nil {
		t.Errorf("fallback thumbnail not placed: %v", err)
	}
}

func TestGenerateVideoAllVariants(t *testing.T) {
	exec := &writingExecutor{}
	g, store := newTestGenerator(t, exec)
	src := writeSource(t, store, "vid-1", "clip.mp4")

	result, err := g.GenerateVideo(context.Background(), "media", "vid-1", src)
	if err != nil {
		t.Fatalf("GenerateVideo: %v", err)
	}

	for _, key := range []string{database.DerivedVideo, database.DerivedPoster, database.DerivedThumb, database.DerivedBlur} {
		if _, ok := result[key]; !ok {
			t.Errorf("missing %s in result", key)
		}
	}

	// Blur must read the placed poster, not the scratch copy.
	posterPath := store.FilePath("media", "vid-1", PosterFile)
	found := false
	for _, call := range exec.calls {
		if strings.Contains(call.String(), "gblur") && strings.Contains(call.String(), posterPath) {
			found = true
		}
	}
	if !found {
		t.Error("blur command should take the placed poster as input")
	}
}

func TestGenerateVideoPosterSeekRetry(t *testing.T) {
	// First extraction (with seek) fails; retry without seek succeeds.
	exec := &writingExecutor{failMatch: map[string]int{"-ss": 1}}
	g, store := newTestGenerator(t, exec)
	src := writeSource(t, store, "vid-2", "clip.mp4")

	result, err := g.GenerateVideo(context.Background(), "media", "vid-2", src)
	if err != nil {
		t.Fatalf("GenerateVideo: %v", err)
	}
	if _, ok := result[database.DerivedPoster]; !ok {
		t.Error("poster should succeed via the no-seek retry")
	}
}

func TestGenerateVideoNoPosterSkipsBlur(t *testing.T) {
	exec := &writingExecutor{failMatch: map[string]int{"poster.jpg": 2}}
	g, store := newTestGenerator(t, exec)
	src := writeSource(t, store, "vid-3", "clip.mp4")

	result, err := g.GenerateVideo(context.Background(), "media", "vid-3", src)
	if err != nil {
		t.Fatalf("GenerateVideo: %v", err)
	}

	if _, ok := result[database.DerivedPoster]; ok {
		t.Error("poster should have failed")
	}
	if _, ok := result[database.DerivedBlur]; ok {
		t.Error("blur must be skipped when there is no poster")
	}
	if _, ok := result[database.DerivedVideo]; !ok {
		t.Error("transcode should survive poster failure")
	}
}

func TestGenerateImageScratchDirError(t *testing.T) {
	base := t.TempDir()
	scratchRoot := filepath.Join(base, "scratch")
	store, err := storage.New(filepath.Join(base, "files"), scratchRoot)
	if err != nil {
		t.Fatal(err)
	}
	// A file where the scratch dir should be forces MkdirAll to fail.
	if err := os.WriteFile(filepath.Join(scratchRoot, "rec-4"), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	g := NewGenerator(store, &writingExecutor{})
	if _, err := g.GenerateImage(context.Background(), "media", "rec-4", "/in/src.jpg"); err == nil {
		t.Error("unusable scratch dir should be a hard error")
	}
}
