// Package corpus iterates over the lines of raw text files, one training example candidate per line.
package corpus

import (
	"bufio"
	"bytes"
	"io"
	"iter"
	"os"

	"github.com/edsrzf/mmap-go"
	"github.com/pkg/errors"
)

// Line is one non-blank line of a corpus.
type Line struct {
	// Number is the 1-based line number in the source.
	Number int
	Text   string
}

// File is a memory-mapped text file. Create it with Open, and Close it when done.
type File struct {
	Path string

	f    *os.File
	data mmap.MMap
}

// Open memory-maps the file at path for reading.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open corpus %q", path)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrapf(err, "failed to stat corpus %q", path)
	}
	cf := &File{Path: path, f: f}
	if info.Size() == 0 {
		// Empty files can't be mapped.
		return cf, nil
	}
	cf.data, err = mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrapf(err, "failed to mmap corpus %q", path)
	}
	return cf, nil
}

// Size returns the size of the file in bytes.
func (cf *File) Size() int {
	return len(cf.data)
}

// Close unmaps and closes the file. Lines already yielded remain valid.
func (cf *File) Close() error {
	var err error
	if cf.data != nil {
		err = errors.Wrapf(cf.data.Unmap(), "failed to unmap corpus %q", cf.Path)
		cf.data = nil
	}
	if cf.f != nil {
		if closeErr := cf.f.Close(); closeErr != nil && err == nil {
			err = errors.Wrapf(closeErr, "failed to close corpus %q", cf.Path)
		}
		cf.f = nil
	}
	return err
}

// Lines iterates over the non-blank lines of the file. It never yields an error, but has the same
// signature as FromReader.
func (cf *File) Lines() iter.Seq2[Line, error] {
	return func(yield func(Line, error) bool) {
		data := cf.data
		number := 0
		for len(data) > 0 {
			number++
			var line []byte
			if idx := bytes.IndexByte(data, '\n'); idx >= 0 {
				line, data = data[:idx], data[idx+1:]
			} else {
				line, data = data, nil
			}
			line = bytes.TrimSpace(line)
			if len(line) == 0 {
				continue
			}
			if !yield(Line{Number: number, Text: string(line)}, nil) {
				return
			}
		}
	}
}

// MaxLineSize is the longest line FromReader accepts.
const MaxLineSize = 16 << 20

// FromReader iterates over the non-blank lines read from r, e.g. os.Stdin.
// Read errors are yielded once, and end the iteration.
func FromReader(r io.Reader) iter.Seq2[Line, error] {
	return func(yield func(Line, error) bool) {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), MaxLineSize)
		number := 0
		for scanner.Scan() {
			number++
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			if !yield(Line{Number: number, Text: string(line)}, nil) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			yield(Line{}, errors.Wrapf(err, "failed reading line %d", number+1))
		}
	}
}
