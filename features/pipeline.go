package features

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/RyanBlaney/sonido-dcase/algorithms/common"
	"github.com/RyanBlaney/sonido-dcase/config"
	"github.com/RyanBlaney/sonido-dcase/logging"
	"github.com/RyanBlaney/sonido-dcase/transcode"
)

// Index lists the chunk identifiers of a dataset in order
type Index interface {
	List() ([]string, error)
}

// AudioLoader decodes the audio of one chunk
type AudioLoader interface {
	LoadAudio(id string) (*transcode.AudioData, error)
}

// LabelLoader returns the label of one chunk
type LabelLoader interface {
	LoadLabel(id string) (string, error)
}

// PipelineConfig controls batch execution
type PipelineConfig struct {
	Workers        int                // 0 = runtime.NumCPU()
	OnError        config.ErrorPolicy // abort or skip
	Progress       bool
	ProgressOutput io.Writer // Defaults to stderr
}

// Pipeline extracts one feature row and one label per dataset item
type Pipeline struct {
	index     Index
	audio     AudioLoader
	labels    LabelLoader
	extractor Extractor
	config    PipelineConfig
	logger    logging.Logger
}

// NewPipeline wires the dataset collaborators to an extractor
func NewPipeline(index Index, audio AudioLoader, labels LabelLoader, extractor Extractor, cfg PipelineConfig) *Pipeline {
	if cfg.OnError == "" {
		cfg.OnError = config.OnErrorAbort
	}
	return &Pipeline{
		index:     index,
		audio:     audio,
		labels:    labels,
		extractor: extractor,
		config:    cfg,
		logger: logging.WithFields(logging.Fields{
			"component": "feature_pipeline",
			"extractor": extractor.Name(),
		}),
	}
}

type outcome struct {
	done  bool
	row   []float64
	label string
	err   error
}

// Run processes every item of the index. Results keep index order. Under the
// abort policy the first failing item (in index order) is returned as an
// *ItemError for the caller to report; under skip failing items are logged
// and left out of both rows and labels.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	logger := p.logger.WithContext(ctx).WithFields(logging.Fields{
		"function": "Run",
	})

	ids, err := p.index.List()
	if err != nil {
		return nil, fmt.Errorf("%w: list index: %w", ErrUpstreamIO, err)
	}
	if len(ids) == 0 {
		logger.Warn("Dataset index is empty")
		return &Result{}, nil
	}

	workers := p.config.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, len(ids))

	logger.Debug("Starting feature extraction", logging.Fields{
		"items":    len(ids),
		"workers":  workers,
		"on_error": p.config.OnError,
	})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	progress, bar := p.newProgress(len(ids))

	outcomes := make([]outcome, len(ids))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if runCtx.Err() != nil {
					continue
				}
				start := time.Now()
				row, label, err := p.process(ids[i])
				outcomes[i] = outcome{done: true, row: row, label: label, err: err}
				if bar != nil {
					bar.EwmaIncrement(time.Since(start))
				}
				if err != nil && p.config.OnError == config.OnErrorAbort {
					cancel()
				}
			}
		}()
	}

feed:
	for i := range ids {
		select {
		case jobs <- i:
		case <-runCtx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if progress != nil {
		if !bar.Completed() {
			bar.Abort(false)
		}
		progress.Wait()
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &Result{
		IDs:    make([]string, 0, len(ids)),
		Rows:   make([][]float64, 0, len(ids)),
		Labels: make([]string, 0, len(ids)),
	}
	for i, o := range outcomes {
		if !o.done {
			continue
		}
		if o.err != nil {
			itemErr := &ItemError{Index: i, ID: ids[i], Err: o.err}
			if p.config.OnError == config.OnErrorAbort {
				return nil, itemErr
			}
			logger.Warn("Skipping item", logging.Fields{
				"index": i,
				"id":    ids[i],
				"error": o.err.Error(),
			})
			result.Skipped = append(result.Skipped, itemErr)
			continue
		}
		result.IDs = append(result.IDs, ids[i])
		result.Rows = append(result.Rows, o.row)
		result.Labels = append(result.Labels, o.label)
	}

	logger.Info("Feature extraction complete", logging.Fields{
		"rows":    len(result.Rows),
		"skipped": len(result.Skipped),
	})

	return result, nil
}

func (p *Pipeline) process(id string) ([]float64, string, error) {
	audio, err := p.audio.LoadAudio(id)
	if err != nil {
		return nil, "", upstream("load audio", id, err)
	}

	p.logger.Info(fmt.Sprintf("Processing %s: %d samples at %dHz", id, len(audio.PCM), audio.SampleRate))
	p.logger.Debug("Clip levels", logging.Fields{
		"id":        id,
		"rms":       common.RMS(audio.PCM),
		"dc_offset": common.Mean(audio.PCM),
	})

	row, err := p.extractor.Extract(audio.PCM, audio.SampleRate)
	if err != nil {
		return nil, "", fmt.Errorf("extract %s: %w", id, err)
	}

	label, err := p.labels.LoadLabel(id)
	if err != nil {
		return nil, "", upstream("load label", id, err)
	}

	return row, label, nil
}

func (p *Pipeline) newProgress(total int) (*mpb.Progress, *mpb.Bar) {
	if !p.config.Progress {
		return nil, nil
	}

	out := p.config.ProgressOutput
	if out == nil {
		out = os.Stderr
	}

	progress := mpb.New(mpb.WithOutput(out), mpb.WithWidth(64))
	bar := progress.AddBar(int64(total),
		mpb.PrependDecorators(
			decor.Name(p.extractor.Name()+": "),
			decor.CountersNoUnit("%d / %d"),
		),
		mpb.AppendDecorators(
			decor.Percentage(),
			decor.EwmaETA(decor.ET_STYLE_GO, 60),
		),
	)
	return progress, bar
}
