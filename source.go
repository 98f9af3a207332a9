package pbfextract

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"github.com/paulmach/osm/osmxml"
	"github.com/pkg/errors"
)

// OSMScanner is the subset of the osm scanners needed by the loaders.
type OSMScanner interface {
	Scan() bool
	Close() error
	Err() error
	Object() osm.Object
}

// EntitySource hands out scanners over the full entity stream. Every call to
// OpenScanner starts a fresh pass from the first entity; sources must support
// an arbitrary number of passes.
type EntitySource interface {
	OpenScanner() (OSMScanner, error)
	Name() string
}

// FileSource reads entities from an *.osm.pbf or *.osm/*.xml file. Passes are
// restarted by seeking the underlying file back to its beginning.
type FileSource struct {
	path string
	file *os.File
}

func NewFileSource(path string) (*FileSource, error) {
	switch ext := filepath.Ext(path); ext {
	case ".osm", ".xml", ".pbf":
	default:
		return nil, errors.Errorf("file extension '%s' of file '%s' is not handled yet", ext, path)
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "can't open '%s'", path)
	}
	return &FileSource{path: path, file: file}, nil
}

func (s *FileSource) OpenScanner() (OSMScanner, error) {
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return nil, errors.Wrap(err, "can't rewind source file")
	}
	switch filepath.Ext(s.path) {
	case ".osm", ".xml":
		return osmxml.New(context.Background(), s.file), nil
	default:
		return osmpbf.New(context.Background(), s.file, 4), nil
	}
}

func (s *FileSource) Name() string {
	return s.path
}

func (s *FileSource) Close() error {
	return s.file.Close()
}
