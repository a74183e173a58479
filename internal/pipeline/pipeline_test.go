package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"media-catalog/internal/database"
	"media-catalog/internal/fingerprint"
	"media-catalog/internal/media"
	"media-catalog/internal/mediatypes"
	"media-catalog/internal/probe"
	"media-catalog/internal/storage"
	"media-catalog/internal/transform"
)

// toolExecutor simulates the external tool suite: the probe returns
// canned metadata, the checksum tool is absent (forcing the in-process
// fallback), and everything else writes its output file.
type toolExecutor struct {
	probeOutput string
	failFFmpeg  bool
}

func (e *toolExecutor) Run(_ context.Context, cmd transform.Command) ([]byte, error) {
	switch cmd.Name {
	case "ffprobe":
		return []byte(e.probeOutput), nil
	case "sha256sum":
		return nil, errors.New("sha256sum: command not found")
	default:
		if e.failFFmpeg {
			return nil, errors.New("tool exited with status 1")
		}
		out := cmd.Args[len(cmd.Args)-1]
		return nil, os.WriteFile(out, []byte("derivative"), 0o644)
	}
}

type fixture struct {
	db    *database.Database
	store *storage.Store
	pipe  *Pipeline
}

func newFixture(t *testing.T, exec transform.Executor) *fixture {
	t.Helper()
	base := t.TempDir()

	db, err := database.New(context.Background(), filepath.Join(base, "catalog.db"))
	if err != nil {
		t.Fatalf("database.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store, err := storage.New(filepath.Join(base, "files"), filepath.Join(base, "scratch"))
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}

	pipe := New(db, store, fingerprint.New(exec), probe.New(exec), media.NewGenerator(store, exec))
	return &fixture{db: db, store: store, pipe: pipe}
}

func (f *fixture) createRecord(t *testing.T, fileName string, kind mediatypes.Kind, content []byte) *database.MediaRecord {
	t.Helper()
	rec := &database.MediaRecord{FileName: fileName, Kind: kind, Owner: "uploader"}
	if err := f.db.CreateRecord(context.Background(), rec); err != nil {
		t.Fatalf("CreateRecord: %v", err)
	}
	if content != nil {
		path := f.store.FilePath(Collection, rec.ID, fileName)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, content, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return rec
}

func TestProcessImageHappyPath(t *testing.T) {
	exec := &toolExecutor{probeOutput: "width=640\nheight=480\nTAG:creation_time=2024-03-15T10:30:00Z\n"}
	f := newFixture(t, exec)
	rec := f.createRecord(t, "photo.jpg", mediatypes.KindImage, []byte("image bytes"))

	if err := f.pipe.Process(context.Background(), rec.ID); err != nil {
		t.Fatalf("Process: %v", err)
	}

	got, err := f.db.GetRecord(context.Background(), rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Processing != database.ProcessingCompleted {
		t.Errorf("Processing = %q, want completed", got.Processing)
	}
	if got.Checksum == "" {
		t.Error("checksum should be recorded")
	}
	if got.Width != 640 || got.Height != 480 {
		t.Errorf("dimensions = %dx%d, want 640x480", got.Width, got.Height)
	}
	if got.TakenAt != "2024-03-15T10:30:00" {
		t.Errorf("TakenAt = %q", got.TakenAt)
	}
	for _, key := range []string{database.DerivedDisplay, database.DerivedBlur, database.DerivedThumb} {
		if got.Derived[key] == "" {
			t.Errorf("missing derivative %s", key)
		}
	}
	if got.Publication != database.PublicationPending {
		t.Errorf("processing must not touch publication, got %q", got.Publication)
	}

	if _, err := os.Stat(f.store.ScratchDir(rec.ID)); !os.IsNotExist(err) {
		t.Error("scratch directory should be removed after the run")
	}
}

func TestProcessVideoHappyPath(t *testing.T) {
	exec := &toolExecutor{probeOutput: "width=1920\nheight=1080\nduration=12.5\n"}
	f := newFixture(t, exec)
	rec := f.createRecord(t, "clip.mp4", mediatypes.KindVideo, []byte("video bytes"))

	if err := f.pipe.Process(context.Background(), rec.ID); err != nil {
		t.Fatalf("Process: %v", err)
	}

	got, err := f.db.GetRecord(context.Background(), rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Duration != 12.5 {
		t.Errorf("Duration = %v, want 12.5", got.Duration)
	}
	for _, key := range []string{database.DerivedVideo, database.DerivedPoster, database.DerivedThumb, database.DerivedBlur} {
		if got.Derived[key] == "" {
			t.Errorf("missing derivative %s", key)
		}
	}
}

func TestProcessMissingSourceIsStructuralFailure(t *testing.T) {
	f := newFixture(t, &toolExecutor{})
	rec := f.createRecord(t, "photo.jpg", mediatypes.KindImage, nil)

	// A stray derivative from an earlier partial run should be swept.
	stray := f.store.FilePath(Collection, rec.ID, "display.jpg")
	if err := os.MkdirAll(filepath.Dir(stray), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(stray, []byte("stale"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := f.pipe.Process(context.Background(), rec.ID); err == nil {
		t.Fatal("missing original should fail the run")
	}

	got, err := f.db.GetRecord(context.Background(), rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Processing != database.ProcessingFailed {
		t.Errorf("Processing = %q, want failed", got.Processing)
	}
	if !strings.Contains(got.ProcessingError, "original file missing") {
		t.Errorf("ProcessingError = %q", got.ProcessingError)
	}
	if _, err := os.Stat(stray); !os.IsNotExist(err) {
		t.Error("failure cleanup should remove stray derivatives")
	}
}

func TestProcessVariantFailuresDoNotFailRun(t *testing.T) {
	exec := &toolExecutor{probeOutput: "width=640\nheight=480\n", failFFmpeg: true}
	f := newFixture(t, exec)
	rec := f.createRecord(t, "photo.jpg", mediatypes.KindImage, []byte("image bytes"))

	if err := f.pipe.Process(context.Background(), rec.ID); err != nil {
		t.Fatalf("variant failures must not fail the run: %v", err)
	}

	got, err := f.db.GetRecord(context.Background(), rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Processing != database.ProcessingCompleted {
		t.Errorf("Processing = %q, want completed despite variant failures", got.Processing)
	}
	if len(got.Derived) != 0 {
		t.Errorf("Derived = %v, want empty", got.Derived)
	}
}

func TestProcessOtherKindHasNoDerivatives(t *testing.T) {
	f := newFixture(t, &toolExecutor{})
	rec := f.createRecord(t, "document.bin", mediatypes.KindOther, []byte("opaque"))

	if err := f.pipe.Process(context.Background(), rec.ID); err != nil {
		t.Fatalf("Process: %v", err)
	}

	got, err := f.db.GetRecord(context.Background(), rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Processing != database.ProcessingCompleted {
		t.Errorf("Processing = %q, want completed", got.Processing)
	}
	if len(got.Derived) != 0 {
		t.Errorf("Derived = %v, want none for unclassified media", got.Derived)
	}
}

func TestProcessRejectsConcurrentRun(t *testing.T) {
	f := newFixture(t, &toolExecutor{})
	rec := f.createRecord(t, "photo.jpg", mediatypes.KindImage, []byte("image bytes"))

	if !f.pipe.acquire(rec.ID) {
		t.Fatal("first acquire should succeed")
	}
	defer f.pipe.release(rec.ID)

	err := f.pipe.Process(context.Background(), rec.ID)
	if !errors.Is(err, ErrRunInProgress) {
		t.Errorf("err = %v, want ErrRunInProgress", err)
	}
}

func TestProcessRerunAfterRelease(t *testing.T) {
	exec := &toolExecutor{probeOutput: "width=640\nheight=480\n"}
	f := newFixture(t, exec)
	rec := f.createRecord(t, "photo.jpg", mediatypes.KindImage, []byte("image bytes"))

	if err := f.pipe.Process(context.Background(), rec.ID); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := f.pipe.Process(context.Background(), rec.ID); err != nil {
		t.Fatalf("rerun after release: %v", err)
	}
}

func TestProcessDuplicateIsAdvisory(t *testing.T) {
	exec := &toolExecutor{probeOutput: "width=640\nheight=480\n"}
	f := newFixture(t, exec)

	content := []byte("identical upload bytes")
	first := f.createRecord(t, "a.jpg", mediatypes.KindImage, content)
	second := f.createRecord(t, "b.jpg", mediatypes.KindImage, content)

	if err := f.pipe.Process(context.Background(), first.ID); err != nil {
		t.Fatalf("first: %v", err)
	}
	if err := f.pipe.Process(context.Background(), second.ID); err != nil {
		t.Fatalf("duplicate content must still process: %v", err)
	}

	got, err := f.db.GetRecord(context.Background(), second.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Processing != database.ProcessingCompleted {
		t.Errorf("duplicate upload Processing = %q, want completed", got.Processing)
	}
	if got.Checksum == "" {
		t.Error("duplicate upload should still carry its checksum")
	}
}

func TestProcessUnknownRecord(t *testing.T) {
	f := newFixture(t, &toolExecutor{})
	if err := f.pipe.Process(context.Background(), "no-such-id"); err == nil {
		t.Error("unknown record id should fail")
	}
}
