package model

import (
	"io"
	"strconv"
	"strings"
	"unicode"
)

// FieldReader is just a simple reader for basic delimited text. Fields are
// separated by whitespace, commas or semicolons.
type FieldReader struct {
	Pos    int
	Fields []string
}

// NewFieldReader constructs a new field reader around the given data
func NewFieldReader(data string) *FieldReader {
	split := func(r rune) bool {
		return r == ',' || r == ';' || unicode.IsSpace(r)
	}
	return &FieldReader{0, strings.FieldsFunc(data, split)}
}

// Remaining is the count of unread fields
func (fr *FieldReader) Remaining() int {
	return len(fr.Fields) - fr.Pos
}

// Read returns the next field/token
func (fr *FieldReader) Read() (string, error) {
	if fr.Pos >= len(fr.Fields) {
		return "", io.EOF
	}
	p := fr.Pos
	fr.Pos++
	return fr.Fields[p], nil
}

// Last skips to the final field and returns it
func (fr *FieldReader) Last() (string, error) {
	if fr.Pos >= len(fr.Fields) {
		return "", io.EOF
	}
	fr.Pos = len(fr.Fields)
	return fr.Fields[fr.Pos-1], nil
}

// parseValue accepts a float with optional surrounding quotes
func parseValue(s string) (float64, error) {
	return strconv.ParseFloat(strings.Trim(s, `"`), 64)
}

// ReadFloat reads the next token as a float
func (fr *FieldReader) ReadFloat() (float64, error) {
	s, err := fr.Read()
	if err != nil {
		return 0, err
	}
	return parseValue(s)
}

// ReadLastFloat reads the final token as a float. The raw token is returned
// even when it does not parse.
func (fr *FieldReader) ReadLastFloat() (string, float64, error) {
	s, err := fr.Last()
	if err != nil {
		return "", 0, err
	}
	v, err := parseValue(s)
	return s, v, err
}
