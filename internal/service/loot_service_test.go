package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/lootbot/internal/detect"
	"github.com/vbonduro/lootbot/internal/domain"
	"github.com/vbonduro/lootbot/internal/inventory"
	"github.com/vbonduro/lootbot/internal/metrics"
	"github.com/vbonduro/lootbot/internal/response"
	"github.com/vbonduro/lootbot/internal/scratch"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

var testNames = detect.ClassNames{0: "Scrap", 1: "pipes", 2: "c4", 3: "wooden_box"}

func row(classID int) detect.Row {
	return detect.NewRow([4]float32{0, 0, 10, 10}, 0.9, classID)
}

// stubScratch writes real files so the test can see whether they survive.
type stubScratch struct {
	dir     string
	saveErr error
	saved   []string
	removed []string
}

func (s *stubScratch) Save(_ context.Context, att domain.Attachment) (string, error) {
	if s.saveErr != nil {
		return "", s.saveErr
	}
	path := filepath.Join(s.dir, att.Filename)
	if err := os.WriteFile(path, []byte("image"), 0600); err != nil {
		return "", err
	}
	s.saved = append(s.saved, path)
	return path, nil
}

func (s *stubScratch) Remove(path string) {
	s.removed = append(s.removed, path)
	_ = os.Remove(path)
}

// stubDetector is a minimal detect.Detector for tests.
type stubDetector struct {
	result      *detect.Result
	err         error
	fileExisted bool
}

func (d *stubDetector) Detect(_ context.Context, path string) (*detect.Result, error) {
	_, statErr := os.Stat(path)
	d.fileExisted = statErr == nil
	return d.result, d.err
}

type stubComposer struct {
	got inventory.Counts
}

func (c *stubComposer) Compose(user string, counts inventory.Counts) response.Reply {
	c.got = counts
	return response.Reply{Text: "nice loot, " + user, Category: response.CategoryCompliment, Roll: 50}
}

type stubRecorder struct {
	outcomes   []string
	items      map[string]int
	categories []string
	detections int
}

func newStubRecorder() *stubRecorder {
	return &stubRecorder{items: make(map[string]int)}
}

func (r *stubRecorder) ImageProcessed(outcome string)    { r.outcomes = append(r.outcomes, outcome) }
func (r *stubRecorder) ItemsDetected(item string, n int) { r.items[item] += n }
func (r *stubRecorder) ReplySent(category string)        { r.categories = append(r.categories, category) }
func (r *stubRecorder) ObserveDetection(time.Duration)   { r.detections++ }

type fixture struct {
	svc      *LootService
	scratch  *stubScratch
	detector *stubDetector
	composer *stubComposer
	recorder *stubRecorder
}

func newFixture(t *testing.T, result *detect.Result, detectErr error) *fixture {
	t.Helper()
	f := &fixture{
		scratch:  &stubScratch{dir: t.TempDir()},
		detector: &stubDetector{result: result, err: detectErr},
		composer: &stubComposer{},
		recorder: newStubRecorder(),
	}
	f.svc = NewLootService(f.scratch, f.detector, inventory.DefaultVocabulary(), f.composer, f.recorder, testLogger)
	return f
}

func (f *fixture) assertScratchClean(t *testing.T) {
	t.Helper()
	assert.Equal(t, f.scratch.saved, f.scratch.removed)
	entries, err := os.ReadDir(f.scratch.dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "scratch file outlived the request")
}

var loot = domain.Attachment{Filename: "loot.png", URL: "https://cdn.example/loot.png"}

func TestBragReply(t *testing.T) {
	f := newFixture(t, &detect.Result{
		Rows:  []detect.Row{row(0), row(0), row(1), row(3)},
		Names: testNames,
	}, nil)

	text, err := f.svc.BragReply(context.Background(), "Rook", loot)
	require.NoError(t, err)

	assert.Equal(t, "nice loot, Rook", text)
	assert.Equal(t, inventory.Counts{"Scrap": 2, "Pipes": 1}, f.composer.got)
	assert.True(t, f.detector.fileExisted, "detector must see the scratch file")
	f.assertScratchClean(t)

	assert.Equal(t, []string{metrics.OutcomeOK}, f.recorder.outcomes)
	assert.Equal(t, map[string]int{"Scrap": 2, "Pipes": 1}, f.recorder.items)
	assert.Equal(t, []string{"compliment"}, f.recorder.categories)
	assert.Equal(t, 1, f.recorder.detections)
}

func TestBragReplyWithRealSelector(t *testing.T) {
	f := newFixture(t, &detect.Result{Rows: []detect.Row{}, Names: testNames}, nil)
	selector := response.NewSelector(inventory.DefaultVocabulary(), rand.New(rand.NewPCG(1, 2)), testLogger)
	svc := NewLootService(f.scratch, f.detector, inventory.DefaultVocabulary(), selector, f.recorder, testLogger)

	text, err := svc.BragReply(context.Background(), "Rook", loot)
	require.NoError(t, err)
	assert.Equal(t, "Sorry, Rook, I couldn't find anything in that image!", text)
	f.assertScratchClean(t)
}

func TestBragReplyDetectorError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		inputError bool
		outcome    string
	}{
		{
			name:       "unreadable image",
			err:        detect.ErrUnreadableImage,
			inputError: true,
			outcome:    metrics.OutcomeBadInput,
		},
		{
			name:    "detector failure",
			err:     errors.New("session crashed"),
			outcome: metrics.OutcomeFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil, tt.err)

			_, err := f.svc.BragReply(context.Background(), "Rook", loot)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, tt.inputError, IsInputError(err))
			f.assertScratchClean(t)
			assert.Equal(t, []string{tt.outcome}, f.recorder.outcomes)
			assert.Empty(t, f.recorder.categories)
		})
	}
}

func TestBragReplyInvalidResult(t *testing.T) {
	f := newFixture(t, &detect.Result{Rows: []detect.Row{{1, 2, 3}}, Names: testNames}, nil)

	_, err := f.svc.BragReply(context.Background(), "Rook", loot)
	assert.ErrorIs(t, err, inventory.ErrInvalidInput)
	assert.False(t, IsInputError(err))
	f.assertScratchClean(t)
	assert.Equal(t, []string{metrics.OutcomeFailed}, f.recorder.outcomes)
}

func TestBragReplyDownloadError(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.scratch.saveErr = scratch.ErrDownload

	_, err := f.svc.BragReply(context.Background(), "Rook", loot)
	assert.ErrorIs(t, err, scratch.ErrDownload)
	assert.True(t, IsInputError(err))
	assert.Empty(t, f.scratch.removed)
	assert.Zero(t, f.recorder.detections)
	assert.Equal(t, []string{metrics.OutcomeBadInput}, f.recorder.outcomes)
}

func TestInventoryReport(t *testing.T) {
	f := newFixture(t, &detect.Result{
		Rows:  []detect.Row{row(1), row(0), row(2), row(0), row(2), row(0)},
		Names: testNames,
	}, nil)

	text, err := f.svc.InventoryReport(context.Background(), loot)
	require.NoError(t, err)
	assert.Equal(t, "Detected inventory:\nScrap: 3\nC4: 2\nPipes: 1", text)
	assert.Nil(t, f.composer.got, "reports do not roll for a reply")
	f.assertScratchClean(t)
}

func TestInventoryReportEmpty(t *testing.T) {
	f := newFixture(t, &detect.Result{Rows: []detect.Row{row(3)}, Names: testNames}, nil)

	text, err := f.svc.InventoryReport(context.Background(), loot)
	require.NoError(t, err)
	assert.Equal(t, "Couldn't detect anything in the image. Try again?", text)
}

func TestFormatInventoryTiesByName(t *testing.T) {
	got := FormatInventory(inventory.Counts{"Scrap": 1, "C4": 1, "AK47": 2})
	assert.Equal(t, "Detected inventory:\nAK47: 2\nC4: 1\nScrap: 1", got)
}
