package model

import (
	"bufio"
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Series is a univariate time series: an optional index (usually dates) and
// the observed values.
type Series struct {
	Name   string    // Series name (file name without extension when read from a file)
	Index  []string  // Index labels - same length as Values, may be empty strings
	Values []float64 // Observations
}

// Len is the number of observations
func (s *Series) Len() int {
	return len(s.Values)
}

// NewSeriesFromFile reads a series from the specified file
func NewSeriesFromFile(filename string) (*Series, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "Could not READ series from %s", filename)
	}

	s, err := ReadSeries(data)
	if err != nil {
		return nil, errors.Wrapf(err, "Could not PARSE series from %s", filename)
	}

	var ext = filepath.Ext(filename)
	s.Name = filepath.Base(filename[0 : len(filename)-len(ext)])

	return s, nil
}

// ReadSeries parses one observation per line. The value is the last field on
// the line; if there is more than one field the first is used as the index.
// Blank lines and lines starting with # are skipped, and a first line whose
// value does not parse is treated as a header.
func ReadSeries(data []byte) (*Series, error) {
	s := &Series{}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if len(line) < 1 || strings.HasPrefix(line, "#") {
			continue
		}

		fr := NewFieldReader(line)
		if fr.Remaining() < 1 {
			continue
		}

		index := ""
		if fr.Remaining() > 1 {
			index, _ = fr.Read()
		}
		raw, val, err := fr.ReadLastFloat()
		if err != nil {
			if len(s.Values) == 0 && s.Name == "" {
				s.Name = raw // header
				continue
			}
			return nil, errors.Wrapf(ErrConfig, "line %d: invalid value %q", lineNo, raw)
		}
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return nil, errors.Wrapf(ErrConfig, "line %d: non-finite value", lineNo)
		}

		s.Index = append(s.Index, index)
		s.Values = append(s.Values, val)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "Could not scan series")
	}

	if len(s.Values) < 1 {
		return nil, errors.Wrap(ErrConfig, "series has no observations")
	}

	return s, nil
}
