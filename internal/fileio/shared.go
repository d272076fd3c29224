package fileio

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

var ErrUnsupportedFile = errors.New("unsupported file type")

// Row is one data line keyed by header. Line is the 1-based spreadsheet line.
type Row struct {
	Line   int
	Values map[string]string
}

type Table struct {
	Headers []string
	Rows    []Row
}

// Read picks the parser by extension. headerRow is 1-based.
func Read(r io.Reader, filename string, headerRow int) (*Table, error) {
	if headerRow < 1 {
		headerRow = 1
	}
	ext := strings.ToLower(filepath.Ext(filename))
	var (
		rows [][]string
		err  error
	)
	switch ext {
	case ".xlsx":
		rows, err = readXLSX(r)
	case ".xls":
		rows, err = readXLS(r, headerRow)
	case ".csv":
		rows, err = readCSV(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFile, filename)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}
	if len(rows) == 0 {
		return &Table{}, nil
	}
	h := pickHeader(rows, headerRow)
	return &Table{Headers: h, Rows: toRows(rows, h, headerRow)}, nil
}

// Supported reports whether Read can parse the file's extension.
func Supported(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xls", ".csv":
		return true
	}
	return false
}

// pickHeader takes the header line, naming empty cells "Column N".
func pickHeader(rows [][]string, headerRow int) []string {
	idx := headerRow - 1
	if idx < 0 || idx >= len(rows) {
		idx = 0
	}
	h := rows[idx]
	out := make([]string, len(h))
	for i, v := range h {
		v = normalizeCell(v)
		if i == 0 {
			v = strings.TrimPrefix(v, "\uFEFF")
		}
		if v == "" {
			v = fmt.Sprintf("Column %d", i+1)
		}
		out[i] = v
	}
	return out
}

// toRows keys each data line by header, skipping fully empty lines.
func toRows(rows [][]string, headers []string, headerRow int) []Row {
	var out []Row
	for r := headerRow; r < len(rows); r++ {
		rec := rows[r]
		m := make(map[string]string, len(headers))
		empty := true
		for c, h := range headers {
			var v string
			if c < len(rec) {
				v = normalizeCell(rec[c])
			}
			if v != "" {
				empty = false
			}
			m[h] = v
		}
		if !empty {
			out = append(out, Row{Line: r + 1, Values: m})
		}
	}
	return out
}

var cellSpaces = strings.NewReplacer("\u00A0", " ", "\u202F", " ", "\r\n", " ", "\n", " ")

func normalizeCell(s string) string {
	return strings.TrimSpace(cellSpaces.Replace(s))
}
