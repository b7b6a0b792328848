package features

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/RyanBlaney/sonido-dcase/algorithms/wavelet"
	"github.com/RyanBlaney/sonido-dcase/config"
	"github.com/RyanBlaney/sonido-dcase/dataset"
	"github.com/RyanBlaney/sonido-dcase/internal/testutil"
	"github.com/RyanBlaney/sonido-dcase/logging"
	"github.com/RyanBlaney/sonido-dcase/transcode"
)

func TestMain(m *testing.M) {
	logging.SetGlobalLogger(nil)
	os.Exit(m.Run())
}

// memoryDataset serves audio and labels from maps
type memoryDataset struct {
	ids     []string
	audio   map[string][]float64
	labels  map[string]string
	listErr error
}

func (d *memoryDataset) List() ([]string, error) {
	return d.ids, d.listErr
}

func (d *memoryDataset) LoadAudio(id string) (*transcode.AudioData, error) {
	pcm, ok := d.audio[id]
	if !ok {
		return nil, fmt.Errorf("open %s.16kHz.wav: %w", id, os.ErrNotExist)
	}
	return &transcode.AudioData{PCM: pcm, SampleRate: 16000, Channels: 1}, nil
}

func (d *memoryDataset) LoadLabel(id string) (string, error) {
	label, ok := d.labels[id]
	if !ok {
		return "", dataset.ErrMissingLabel
	}
	return label, nil
}

func identity(t *testing.T) Extractor {
	t.Helper()
	e, err := NewDaubechiesExtractor(config.Daub4Config{Depth: 0})
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func newPipeline(d *memoryDataset, e Extractor, cfg PipelineConfig) *Pipeline {
	return NewPipeline(d, d, d, e, cfg)
}

func TestPipeline_PreservesOrder(t *testing.T) {
	t.Parallel()

	d := &memoryDataset{audio: map[string][]float64{}, labels: map[string]string{}}
	for i := range 50 {
		id := fmt.Sprintf("chunk%02d", i)
		d.ids = append(d.ids, id)
		d.audio[id] = testutil.DC(float64(i), 8)
		d.labels[id] = fmt.Sprintf("label%02d", i)
	}

	result, err := newPipeline(d, identity(t), PipelineConfig{Workers: 8}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(result.Rows) != 50 || len(result.Labels) != 50 {
		t.Fatalf("got %d rows and %d labels, want 50", len(result.Rows), len(result.Labels))
	}
	for i, row := range result.Rows {
		if row[0] != float64(i) {
			t.Fatalf("row %d holds chunk %v", i, row[0])
		}
		if result.IDs[i] != d.ids[i] || result.Labels[i] != d.labels[d.ids[i]] {
			t.Fatalf("row %d is %s/%s", i, result.IDs[i], result.Labels[i])
		}
	}
}

func TestPipeline_Skip(t *testing.T) {
	t.Parallel()

	d := &memoryDataset{
		ids: []string{"a", "b", "c", "d"},
		audio: map[string][]float64{
			"a": testutil.Ramp(8),
			"c": testutil.Ramp(7),
			"d": testutil.Ramp(8),
		},
		labels: map[string]string{"a": "c", "b": "v", "c": "p", "d": "o"},
	}

	e, _ := NewDaubechiesExtractor(config.Daub4Config{Depth: 1})
	result, err := newPipeline(d, e, PipelineConfig{Workers: 3, OnError: config.OnErrorSkip}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := result.Labels; len(got) != 2 || got[0] != "c" || got[1] != "o" {
		t.Errorf("Labels = %v, want [c o]", got)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(result.Rows))
	}
	if len(result.Skipped) != 2 {
		t.Fatalf("got %d skipped, want 2", len(result.Skipped))
	}

	missing, invalid := result.Skipped[0], result.Skipped[1]
	if missing.Index != 1 || missing.ID != "b" || !errors.Is(missing, ErrUpstreamIO) || !errors.Is(missing, os.ErrNotExist) {
		t.Errorf("unexpected skip %v", missing)
	}
	if invalid.Index != 2 || !errors.Is(invalid, wavelet.ErrInvalidInput) || errors.Is(invalid, ErrUpstreamIO) {
		t.Errorf("unexpected skip %v", invalid)
	}
}

func TestPipeline_Abort(t *testing.T) {
	t.Parallel()

	d := &memoryDataset{
		ids:    []string{"a", "b", "c"},
		audio:  map[string][]float64{"a": testutil.Ramp(8)},
		labels: map[string]string{"a": "c"},
	}

	result, err := newPipeline(d, identity(t), PipelineConfig{Workers: 1}).Run(context.Background())
	if result != nil {
		t.Errorf("Run() result = %v, want nil", result)
	}

	var itemErr *ItemError
	if !errors.As(err, &itemErr) {
		t.Fatalf("Run() error = %v, want *ItemError", err)
	}
	if itemErr.Index != 1 || itemErr.ID != "b" {
		t.Errorf("aborted on %d (%s), want 1 (b)", itemErr.Index, itemErr.ID)
	}
	if !errors.Is(err, ErrUpstreamIO) {
		t.Errorf("Run() error = %v, want ErrUpstreamIO", err)
	}
}

func TestPipeline_MissingLabel(t *testing.T) {
	t.Parallel()

	d := &memoryDataset{
		ids:    []string{"a"},
		audio:  map[string][]float64{"a": testutil.Ramp(4)},
		labels: map[string]string{},
	}

	_, err := newPipeline(d, identity(t), PipelineConfig{}).Run(context.Background())
	if !errors.Is(err, ErrUpstreamIO) || !errors.Is(err, dataset.ErrMissingLabel) {
		t.Errorf("Run() error = %v, want ErrUpstreamIO wrapping ErrMissingLabel", err)
	}
}

func TestPipeline_IndexError(t *testing.T) {
	t.Parallel()

	d := &memoryDataset{listErr: dataset.ErrMalformedIndex}
	_, err := newPipeline(d, identity(t), PipelineConfig{}).Run(context.Background())
	if !errors.Is(err, ErrUpstreamIO) || !errors.Is(err, dataset.ErrMalformedIndex) {
		t.Errorf("Run() error = %v, want ErrUpstreamIO wrapping ErrMalformedIndex", err)
	}
}

func TestPipeline_EmptyIndex(t *testing.T) {
	t.Parallel()

	result, err := newPipeline(&memoryDataset{}, identity(t), PipelineConfig{}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(result.Rows) != 0 || len(result.Labels) != 0 {
		t.Errorf("unexpected result %+v", result)
	}
}

func TestPipeline_Cancelled(t *testing.T) {
	t.Parallel()

	d := &memoryDataset{
		ids:    []string{"a", "b"},
		audio:  map[string][]float64{"a": testutil.Ramp(4), "b": testutil.Ramp(4)},
		labels: map[string]string{"a": "c", "b": "v"},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := newPipeline(d, identity(t), PipelineConfig{}).Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}

func TestPipeline_Progress(t *testing.T) {
	t.Parallel()

	d := &memoryDataset{
		ids:    []string{"a", "b", "c"},
		audio:  map[string][]float64{"a": testutil.Ramp(4), "b": testutil.Ramp(4), "c": testutil.Ramp(4)},
		labels: map[string]string{"a": "c", "b": "v", "c": "p"},
	}

	var out bytes.Buffer
	cfg := PipelineConfig{Workers: 2, Progress: true, ProgressOutput: &out}
	result, err := newPipeline(d, identity(t), cfg).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(result.Rows) != 3 {
		t.Errorf("got %d rows, want 3", len(result.Rows))
	}

	// An aborted run must release the progress bar
	delete(d.audio, "b")
	if _, err := newPipeline(d, identity(t), PipelineConfig{Workers: 1, Progress: true, ProgressOutput: &out}).Run(context.Background()); err == nil {
		t.Error("Run() should abort on the missing chunk")
	}
}

// Two chunks on disk in the CHiME layout become a two-row matrix and a
// two-line label file, both in index order
func TestPipeline_ChimeBatch(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	home := filepath.Join(root, "chime_home")
	chunks := filepath.Join(home, "chunks")
	if err := os.MkdirAll(chunks, 0o755); err != nil {
		t.Fatal(err)
	}

	write := func(path, content string) {
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write(filepath.Join(home, "development_chunks_refined.csv"), "0,a\n1,b\n")
	write(filepath.Join(chunks, "a.csv"), "majorityvote,c\n")
	write(filepath.Join(chunks, "b.csv"), "majorityvote,pv\n")
	testutil.WriteWAV(t, filepath.Join(chunks, "a.16kHz.wav"), 16000, 1, testutil.PCM16(testutil.Sine(440, 16000, 0.5, 128)))
	testutil.WriteWAV(t, filepath.Join(chunks, "b.16kHz.wav"), 16000, 1, testutil.PCM16(testutil.Sine(1000, 16000, 0.5, 128)))

	chime := dataset.NewChime(root, dataset.Rate16kHz, nil)
	e, err := NewDaubechiesExtractor(config.DefaultDaub4Config())
	if err != nil {
		t.Fatal(err)
	}

	result, err := NewPipeline(chime.Index("development_chunks_refined"), chime, chime, e, PipelineConfig{Workers: 2}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	m, err := result.Matrix()
	if err != nil {
		t.Fatalf("Matrix() error = %v", err)
	}
	if r, c := m.Dims(); r != 2 || c != 128 {
		t.Fatalf("matrix is %dx%d, want 2x128", r, c)
	}

	audio, _ := chime.LoadAudio("b")
	want, _ := wavelet.TransformFlat(audio.PCM, 6)
	testutil.RequireSliceNearlyEqual(t, result.Rows[1], want, 0)

	featuresPath := filepath.Join(root, "dcase2016.daub4")
	labelsPath := filepath.Join(root, "dcase2016.labels")
	if err := result.Save(featuresPath, labelsPath); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	labels, err := os.ReadFile(labelsPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(labels) != "c\npv" {
		t.Errorf("labels file = %q, want %q", labels, "c\npv")
	}

	features, err := os.ReadFile(featuresPath)
	if err != nil {
		t.Fatal(err)
	}
	if lines := bytes.Count(features, []byte("\n")); lines != 2 {
		t.Errorf("features file has %d lines, want 2", lines)
	}
}

func TestPipeline_LogsClipLevels(t *testing.T) {
	t.Parallel()

	d := &memoryDataset{
		ids:    []string{"a"},
		audio:  map[string][]float64{"a": testutil.DC(0.5, 8)},
		labels: map[string]string{"a": "c"},
	}

	var out bytes.Buffer
	logger := logging.NewWriterLogger(&out, &out)
	logger.SetLevel(logging.DebugLevel)

	p := newPipeline(d, identity(t), PipelineConfig{Workers: 1})
	p.logger = logger
	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	for _, want := range []string{"Processing a: 8 samples at 16000Hz", "rms:0.5", "dc_offset:0.5"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("log missing %q: %q", want, out.String())
		}
	}
}

// An aborted batch hands its *ItemError to the caller without logging it
func TestPipeline_AbortLeavesReportingToCaller(t *testing.T) {
	t.Parallel()

	d := &memoryDataset{
		ids:    []string{"a", "b"},
		audio:  map[string][]float64{"a": testutil.Ramp(4)},
		labels: map[string]string{"a": "c", "b": "v"},
	}

	var out bytes.Buffer
	p := newPipeline(d, identity(t), PipelineConfig{Workers: 1})
	p.logger = logging.NewWriterLogger(&out, &out)

	_, err := p.Run(context.Background())
	var itemErr *ItemError
	if !errors.As(err, &itemErr) || itemErr.ID != "b" {
		t.Fatalf("Run() error = %v, want *ItemError for b", err)
	}
	if strings.Contains(out.String(), "[ERROR]") {
		t.Errorf("pipeline logged the abort itself: %q", out.String())
	}
}
