// Package results writes simulation output: CSV sample dumps, line plots,
// and compressed run archives.
package results

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// WriteCSV writes one "idx,src,sig" row per step. src and out must have
// the same length.
func WriteCSV(w io.Writer, src, out []float32) error {
	if len(src) != len(out) {
		return fmt.Errorf("source has %d samples, output has %d", len(src), len(out))
	}

	bw := bufio.NewWriter(w)
	buf := make([]byte, 0, 64)
	for i := range out {
		buf = buf[:0]
		buf = strconv.AppendInt(buf, int64(i), 10)
		buf = append(buf, ',')
		buf = strconv.AppendFloat(buf, float64(src[i]), 'g', -1, 32)
		buf = append(buf, ',')
		buf = strconv.AppendFloat(buf, float64(out[i]), 'g', -1, 32)
		buf = append(buf, '\n')
		if _, err := bw.Write(buf); err != nil {
			return fmt.Errorf("writing row %d: %w", i, err)
		}
	}
	return bw.Flush()
}

// ReadCSV parses rows written by WriteCSV back into the source and output
// samples. Row indices must run 0, 1, 2, ...
func ReadCSV(r io.Reader) (src, out []float32, err error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 3
	cr.ReuseRecord = true
	for row := 0; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return src, out, nil
		}
		if err != nil {
			return nil, nil, fmt.Errorf("reading results: %w", err)
		}
		idx, err := strconv.Atoi(rec[0])
		if err != nil || idx != row {
			return nil, nil, fmt.Errorf("row %d: bad index %q", row+1, rec[0])
		}
		s, err := strconv.ParseFloat(rec[1], 32)
		if err != nil {
			return nil, nil, fmt.Errorf("row %d: bad source value %q", row+1, rec[1])
		}
		o, err := strconv.ParseFloat(rec[2], 32)
		if err != nil {
			return nil, nil, fmt.Errorf("row %d: bad output value %q", row+1, rec[2])
		}
		src = append(src, float32(s))
		out = append(out, float32(o))
	}
}
