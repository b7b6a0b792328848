// Package dataset reads the CHiME-Home chunk layout used by the DCASE2016
// domestic audio tagging task:
//
//	<root>/chime_home/<dataset>.csv            index of chunk file heads
//	<root>/chime_home/chunks/<head>.<rate>.wav audio chunk
//	<root>/chime_home/chunks/<head>.csv        annotations as key,value rows
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/RyanBlaney/sonido-dcase/logging"
	"github.com/RyanBlaney/sonido-dcase/transcode"
)

// LabelKey is the annotation holding the label at least 2 of 3 annotators agreed on
const LabelKey = "majorityvote"

// Column of the chunk file head in an index CSV
const fileheadColumn = 1

// Sampling rates the chunks are distributed at
const (
	Rate16kHz = "16kHz"
	Rate48kHz = "48kHz"
)

// Chime locates and loads CHiME-Home chunks
type Chime struct {
	root         string
	samplingRate string
	decoder      *transcode.Decoder
	logger       logging.Logger
}

// NewChime creates a loader rooted at the directory that contains chime_home/.
// A nil decoder uses the default (mono, native rate) configuration.
func NewChime(root, samplingRate string, decoder *transcode.Decoder) *Chime {
	if decoder == nil {
		decoder = transcode.NewDecoder(nil)
	}
	return &Chime{
		root:         root,
		samplingRate: samplingRate,
		decoder:      decoder,
		logger: logging.WithFields(logging.Fields{
			"component": "chime_dataset",
		}),
	}
}

func (c *Chime) homeDir() string {
	return filepath.Join(c.root, "chime_home")
}

// IndexPath returns the CSV listing the chunks of a dataset
func (c *Chime) IndexPath(dataset string) string {
	return filepath.Join(c.homeDir(), dataset+".csv")
}

// AudioPath returns the WAV file of a chunk at the configured sampling rate
func (c *Chime) AudioPath(filehead string) string {
	return filepath.Join(c.homeDir(), "chunks", fmt.Sprintf("%s.%s.wav", filehead, c.samplingRate))
}

// AnnotationPath returns the annotation CSV of a chunk
func (c *Chime) AnnotationPath(filehead string) string {
	return filepath.Join(c.homeDir(), "chunks", filehead+".csv")
}

// LoadFileheads returns the chunk file heads of a dataset in index order
func (c *Chime) LoadFileheads(dataset string) ([]string, error) {
	path := c.IndexPath(dataset)
	records, err := readCSV(path)
	if err != nil {
		return nil, err
	}

	fileheads := make([]string, 0, len(records))
	for i, record := range records {
		if len(record) <= fileheadColumn {
			return nil, fmt.Errorf("%w: %s line %d has %d fields", ErrMalformedIndex, path, i+1, len(record))
		}
		fileheads = append(fileheads, record[fileheadColumn])
	}

	c.logger.Debug("Loaded dataset index", logging.Fields{
		"dataset": dataset,
		"chunks":  len(fileheads),
	})

	return fileheads, nil
}

// LoadAudio decodes a chunk without resampling
func (c *Chime) LoadAudio(filehead string) (*transcode.AudioData, error) {
	return c.decoder.DecodeFile(c.AudioPath(filehead))
}

// LoadAnnotations reads all key,value annotation rows of a chunk
func (c *Chime) LoadAnnotations(filehead string) (map[string]string, error) {
	path := c.AnnotationPath(filehead)
	records, err := readCSV(path)
	if err != nil {
		return nil, err
	}

	annotations := make(map[string]string, len(records))
	for i, record := range records {
		if len(record) != 2 {
			return nil, fmt.Errorf("%w: %s line %d has %d fields", ErrMalformedAnnotation, path, i+1, len(record))
		}
		annotations[record[0]] = record[1]
	}
	return annotations, nil
}

// LoadLabel returns the majority vote label of a chunk
func (c *Chime) LoadLabel(filehead string) (string, error) {
	annotations, err := c.LoadAnnotations(filehead)
	if err != nil {
		return "", err
	}

	label, ok := annotations[LabelKey]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrMissingLabel, c.AnnotationPath(filehead))
	}
	return label, nil
}

// Index binds c to one dataset name
func (c *Chime) Index(dataset string) *Index {
	return &Index{chime: c, dataset: dataset}
}

// Index lists the chunks of one dataset
type Index struct {
	chime   *Chime
	dataset string
}

// List returns the chunk file heads in index order
func (i *Index) List() ([]string, error) {
	return i.chime.LoadFileheads(i.dataset)
}

// Name returns the dataset name
func (i *Index) Name() string {
	return i.dataset
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	var records [][]string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		records = append(records, record)
	}
	return records, nil
}
