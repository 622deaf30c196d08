// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package bellhop

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"math/cmplx"
	"strconv"
	"strings"
)

// rayHeaderLines is the number of header records before the first ray.
const rayHeaderLines = 7

type lineReader struct {
	sc   *bufio.Scanner
	line int
}

func newLineReader(r io.Reader) *lineReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	return &lineReader{sc: sc}
}

// next returns the next line; ok is false at end of input.
func (lr *lineReader) next() (string, bool, error) {
	if !lr.sc.Scan() {
		return "", false, lr.sc.Err()
	}
	lr.line++
	return strings.TrimSpace(lr.sc.Text()), true, nil
}

func (lr *lineReader) mustNext() (string, error) {
	s, ok, err := lr.next()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: unexpected end of file after line %d", ErrBadOutput, lr.line)
	}
	return s, nil
}

// numbers reads exactly n numbers, continuing across lines.
func (lr *lineReader) numbers(n int) ([]float64, error) {
	out := make([]float64, 0, n)
	for len(out) < n {
		s, err := lr.mustNext()
		if err != nil {
			return nil, err
		}
		vals, err := parseFields(s)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrBadOutput, lr.line, err)
		}
		out = append(out, vals...)
	}
	if len(out) != n {
		return nil, fmt.Errorf("%w: line %d: expected %d values, got %d", ErrBadOutput, lr.line, n, len(out))
	}
	return out, nil
}

// counted reads a count followed by that many numbers.
func (lr *lineReader) counted() ([]float64, error) {
	s, err := lr.mustNext()
	if err != nil {
		return nil, err
	}
	vals, err := parseFields(s)
	if err != nil || len(vals) == 0 {
		return nil, fmt.Errorf("%w: line %d: expected count", ErrBadOutput, lr.line)
	}
	n := int(vals[0])
	if n < 0 || float64(n) != vals[0] {
		return nil, fmt.Errorf("%w: line %d: bad count %g", ErrBadOutput, lr.line, vals[0])
	}
	rest := vals[1:]
	if len(rest) < n {
		more, err := lr.numbers(n - len(rest))
		if err != nil {
			return nil, err
		}
		rest = append(rest, more...)
	}
	if len(rest) != n {
		return nil, fmt.Errorf("%w: line %d: expected %d values, got %d", ErrBadOutput, lr.line, n, len(rest))
	}
	return rest, nil
}

func parseFields(s string) ([]float64, error) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "/")
	fields := strings.Fields(s)
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(strings.Replace(f, "D", "E", 1), 64)
		if err != nil {
			return nil, fmt.Errorf("bad number %q", f)
		}
		out = append(out, v)
	}
	return out, nil
}

// ParseRays reads a .ray file.
func ParseRays(r io.Reader) ([]Ray, error) {
	lr := newLineReader(r)
	for i := 0; i < rayHeaderLines; i++ {
		if _, err := lr.mustNext(); err != nil {
			return nil, err
		}
	}

	var rays []Ray
	for {
		s, ok, err := lr.next()
		if err != nil {
			return nil, err
		}
		if !ok || s == "" {
			break
		}
		angle, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: bad ray angle %q", ErrBadOutput, lr.line, s)
		}
		hdr, err := lr.numbers(3)
		if err != nil {
			return nil, err
		}
		npts := int(hdr[0])
		if npts < 0 {
			return nil, fmt.Errorf("%w: line %d: negative point count", ErrBadOutput, lr.line)
		}
		ray := Ray{
			DepartureAngle: angle,
			SurfaceBounces: int(hdr[1]),
			BottomBounces:  int(hdr[2]),
			Points:         make([]Point, 0, npts),
		}
		for k := 0; k < npts; k++ {
			xy, err := lr.numbers(2)
			if err != nil {
				return nil, err
			}
			ray.Points = append(ray.Points, Point{X: xy[0], Y: xy[1]})
		}
		rays = append(rays, ray)
	}
	return rays, nil
}

// ParseArrivals reads an ASCII 2D .arr file.
func ParseArrivals(r io.Reader) ([]Arrival, error) {
	lr := newLineReader(r)
	hdr, err := lr.mustNext()
	if err != nil {
		return nil, err
	}
	if !strings.Contains(hdr, "2D") {
		return nil, fmt.Errorf("%w: only 2D arrival files are supported, header %q", ErrBadOutput, hdr)
	}
	if _, err := lr.numbers(1); err != nil { // frequency
		return nil, err
	}
	txDepths, err := lr.counted()
	if err != nil {
		return nil, err
	}
	rxDepths, err := lr.counted()
	if err != nil {
		return nil, err
	}
	rxRanges, err := lr.counted()
	if err != nil {
		return nil, err
	}

	var out []Arrival
	for j := range txDepths {
		if _, err := lr.mustNext(); err != nil { // max arrivals for this source
			return nil, err
		}
		for k := range rxDepths {
			for m := range rxRanges {
				cnt, err := lr.numbers(1)
				if err != nil {
					return nil, err
				}
				for n := 0; n < int(cnt[0]); n++ {
					d, err := lr.numbers(8)
					if err != nil {
						return nil, err
					}
					out = append(out, Arrival{
						TxDepthIndex:   j,
						RxDepthIndex:   k,
						RxRangeIndex:   m,
						TxDepth:        txDepths[j],
						RxDepth:        rxDepths[k],
						RxRange:        rxRanges[m],
						Number:         n,
						Amplitude:      cmplx.Rect(d[0], d[1]*math.Pi/180),
						Delay:          d[2],
						DelayImag:      d[3],
						DepartureAngle: d[4],
						ArrivalAngle:   d[5],
						SurfaceBounces: int(d[6]),
						BottomBounces:  int(d[7]),
					})
				}
			}
		}
	}
	return out, nil
}

// ParseShade reads a binary .shd file holding one frequency, one bearing
// and one source depth.
func ParseShade(data []byte) (*Field, error) {
	rd := bytes.NewReader(data)
	var recl int32
	if err := binary.Read(rd, binary.LittleEndian, &recl); err != nil {
		return nil, fmt.Errorf("%w: shade header: %v", ErrBadOutput, err)
	}
	if recl <= 0 {
		return nil, fmt.Errorf("%w: bad record length %d", ErrBadOutput, recl)
	}
	rec := int64(recl) * 4

	ptype, err := readAt(data, rec, 10)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(string(ptype)) != "rectilin" {
		return nil, fmt.Errorf("%w: expecting ptype rectilin, got %q", ErrBadOutput, strings.TrimSpace(string(ptype)))
	}

	dims, err := readAt(data, 2*rec, 32)
	if err != nil {
		return nil, err
	}
	var hdr struct {
		NFreq, NTheta, NSx, NSy, NSd, NRd, NRr int32
		Atten                                  float32
	}
	if err := binary.Read(bytes.NewReader(dims), binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("%w: shade dimensions: %v", ErrBadOutput, err)
	}
	if hdr.NFreq != 1 || hdr.NTheta != 1 || hdr.NSd != 1 {
		return nil, fmt.Errorf("%w: expecting one frequency, bearing and source depth, got %d/%d/%d",
			ErrBadOutput, hdr.NFreq, hdr.NTheta, hdr.NSd)
	}
	if hdr.NRd <= 0 || hdr.NRr <= 0 {
		return nil, fmt.Errorf("%w: empty receiver grid %dx%d", ErrBadOutput, hdr.NRd, hdr.NRr)
	}
	nrd, nrr := int(hdr.NRd), int(hdr.NRr)

	depths, err := readFloats(data, 8*rec, nrd)
	if err != nil {
		return nil, err
	}
	ranges, err := readFloats(data, 9*rec, nrr)
	if err != nil {
		return nil, err
	}

	f := &Field{Depths: depths, Ranges: ranges, Pressure: make([][]complex128, nrd)}
	for ird := 0; ird < nrd; ird++ {
		vals, err := readFloats(data, int64(10+ird)*rec, 2*nrr)
		if err != nil {
			return nil, err
		}
		row := make([]complex128, nrr)
		for j := range row {
			row[j] = complex(vals[2*j], vals[2*j+1])
		}
		f.Pressure[ird] = row
	}
	return f, nil
}

func readAt(data []byte, off int64, n int) ([]byte, error) {
	if off < 0 || off+int64(n) > int64(len(data)) {
		return nil, fmt.Errorf("%w: truncated shade file (need %d bytes at %d, have %d)", ErrBadOutput, n, off, len(data))
	}
	return data[off : off+int64(n)], nil
}

func readFloats(data []byte, off int64, n int) ([]float64, error) {
	b, err := readAt(data, off, 4*n)
	if err != nil {
		return nil, err
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:])))
	}
	return out, nil
}

// CheckPrint scans a .prt print file for a fatal error report and returns
// it, including the lines that follow it.
func CheckPrint(r io.Reader) error {
	lr := newLineReader(r)
	var msg []string
	for {
		s, ok, err := lr.next()
		if err != nil || !ok {
			break
		}
		if msg != nil {
			if s != "" {
				msg = append(msg, s)
			}
			continue
		}
		if strings.Contains(s, "FATAL ERROR") || strings.HasPrefix(s, "ERROR") {
			msg = []string{s}
		}
	}
	if msg == nil {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrSolverFailed, strings.Join(msg, " "))
}
