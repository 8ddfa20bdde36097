package acquire

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"qoed/internal/logging"
	"qoed/internal/media/ffprobe"
	"qoed/internal/services"
	"qoed/internal/testsupport"
)

const testMPD = `<MPD><Period><AdaptationSet mimeType="video/mp4">
  <Representation id="video=400000" bandwidth="400000"/>
  <Representation id="video=1600000" bandwidth="1600000"/>
  <Representation id="video=800000" bandwidth="800000"/>
</AdaptationSet></Period></MPD>`

// fakeDownloader drops rendition files named after manifest format ids, the
// way yt-dlp's output template does.
type fakeDownloader struct {
	files map[string]string
	err   error
	calls int
}

func (f *fakeDownloader) Download(ctx context.Context, manifestURL, destDir string) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	for name, content := range f.files {
		if err := os.WriteFile(filepath.Join(destDir, name), []byte(content), 0o644); err != nil {
			return err
		}
	}
	return nil
}

// bitrateBySize fakes ffprobe by deriving a bitrate from file content length.
func bitrateBySize(ctx context.Context, binary, path string) (ffprobe.Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return ffprobe.Result{}, err
	}
	return ffprobe.Result{Format: ffprobe.Format{BitRate: fmt.Sprintf("%d", info.Size()*100000)}}, nil
}

func staticFetcher(body string) Fetcher {
	return func(ctx context.Context, url string) ([]byte, error) {
		return []byte(body), nil
	}
}

func TestExecuteRanksRenditionsByBitrate(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	video := testsupport.NewVideo(t, st, "http://cdn/stream.mpd")

	dl := &fakeDownloader{files: map[string]string{
		"video=400000.mp4":  "x",
		"video=800000.mp4":  "xx",
		"video=1600000.mp4": "xxxx",
	}}
	acquirer := NewAcquirerWithDependencies(cfg, st, logging.NewNop(), dl, bitrateBySize, staticFetcher(testMPD))

	if err := acquirer.Prepare(ctx, video); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := acquirer.Execute(ctx, video); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	// Rank 1 is the highest quality: the 1600k representation maps to the
	// largest downloaded file.
	want := map[string]string{
		"video=1600000": "0-1",
		"video=800000":  "0-2",
		"video=400000":  "0-3",
	}
	if len(video.RepresentationRanks) != len(want) {
		t.Fatalf("ranks = %v", video.RepresentationRanks)
	}
	for rep, stem := range want {
		if video.RepresentationRanks[rep] != stem {
			t.Errorf("rank for %s = %q, want %q", rep, video.RepresentationRanks[rep], stem)
		}
	}

	dir := video.Dir(cfg.VideosDir())
	for _, stem := range want {
		if _, err := os.Stat(filepath.Join(dir, stem+".mp4")); err != nil {
			t.Errorf("ranked file %s missing: %v", stem, err)
		}
	}

	manifestBody, err := os.ReadFile(video.ManifestPath(cfg.VideosDir()))
	if err != nil {
		t.Fatalf("manifest not persisted: %v", err)
	}
	if string(manifestBody) != testMPD {
		t.Error("persisted manifest differs from fetched body")
	}
}

func TestExecuteReusesSavedManifest(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	video := testsupport.NewVideo(t, st, "http://cdn/stream.mpd")
	if err := os.MkdirAll(video.Dir(cfg.VideosDir()), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(video.ManifestPath(cfg.VideosDir()), []byte(testMPD), 0o644); err != nil {
		t.Fatal(err)
	}

	failingFetch := func(ctx context.Context, url string) ([]byte, error) {
		return nil, errors.New("fetch should not run when the manifest is saved")
	}
	dl := &fakeDownloader{files: map[string]string{"video=400000.mp4": "x"}}
	acquirer := NewAcquirerWithDependencies(cfg, st, logging.NewNop(), dl, bitrateBySize, failingFetch)

	if err := acquirer.Execute(ctx, video); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if dl.calls != 1 {
		t.Errorf("download calls = %d", dl.calls)
	}
}

func TestExecuteDownloadFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	video := testsupport.NewVideo(t, st, "http://cdn/stream.mpd")
	dl := &fakeDownloader{err: errors.New("connection reset")}
	acquirer := NewAcquirerWithDependencies(cfg, st, logging.NewNop(), dl, bitrateBySize, staticFetcher(testMPD))

	err := acquirer.Execute(context.Background(), video)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Errorf("error = %v, want external tool", err)
	}
}

func TestExecuteNoRenditionFiles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	video := testsupport.NewVideo(t, st, "http://cdn/stream.mpd")
	dl := &fakeDownloader{files: map[string]string{}}
	acquirer := NewAcquirerWithDependencies(cfg, st, logging.NewNop(), dl, bitrateBySize, staticFetcher(testMPD))

	err := acquirer.Execute(context.Background(), video)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Errorf("error = %v, want external tool", err)
	}
}

func TestExecuteBadManifest(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	video := testsupport.NewVideo(t, st, "http://cdn/stream.mpd")
	dl := &fakeDownloader{}
	acquirer := NewAcquirerWithDependencies(cfg, st, logging.NewNop(), dl, bitrateBySize, staticFetcher("<MPD></MPD>"))

	err := acquirer.Execute(context.Background(), video)
	if !errors.Is(err, services.ErrValidation) {
		t.Errorf("error = %v, want validation", err)
	}
	if dl.calls != 0 {
		t.Error("download ran despite unusable manifest")
	}
}

func TestPrepareClearsStaleError(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	video := testsupport.NewVideo(t, st, "http://cdn/stream.mpd")
	video.ErrorMessage = "previous failure"

	acquirer := NewAcquirerWithDependencies(cfg, st, logging.NewNop(), &fakeDownloader{}, bitrateBySize, staticFetcher(testMPD))
	if err := acquirer.Prepare(context.Background(), video); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if video.ErrorMessage != "" {
		t.Error("stale error message not cleared")
	}
}

func TestHealthCheck(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	acquirer := NewAcquirerWithDependencies(cfg, st, logging.NewNop(), &fakeDownloader{}, bitrateBySize, staticFetcher(testMPD))
	if health := acquirer.HealthCheck(context.Background()); !health.Ready {
		t.Errorf("health = %+v", health)
	}

	cfg.Tools.Downloader = ""
	if health := acquirer.HealthCheck(context.Background()); health.Ready {
		t.Error("expected unhealthy with no downloader binary")
	}
}
