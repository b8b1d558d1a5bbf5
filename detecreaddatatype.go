package gwasingest

import (
	"compress/bzip2"
	"fmt"
	"io"

	"github.com/klauspost/pgzip"
	"github.com/krolaw/zipstream"
	"github.com/xi2/xz"
)

type DataType byte

const (
	DataTypeInvalid DataType = iota
	DataTypeNoCompression
	DataTypeGzip
	DataTypeBGZF
	DataTypeZip
	DataTypeXZ
	DataTypeZ
	DataTypeBZip2
)

func (dt DataType) String() string {
	switch dt {
	case DataTypeNoCompression:
		return "plain-text"
	case DataTypeGzip:
		return "gzip"
	case DataTypeBGZF:
		return "bgzip"
	case DataTypeZip:
		return "zip"
	case DataTypeXZ:
		return "xz"
	case DataTypeZ:
		return "compress"
	case DataTypeBZip2:
		return "bzip2"
	}

	return "invalid"
}

// Compressed reports whether dt is one of the compressed-binary encodings.
func (dt DataType) Compressed() bool {
	return dt != DataTypeInvalid && dt != DataTypeNoCompression
}

var byteCodeSigs = []struct {
	dt  DataType
	sig []byte
}{
	{DataTypeGzip, []byte{0x1f, 0x8b, 0x08}},
	{DataTypeZip, []byte{0x50, 0x4b, 0x03, 0x04}},
	{DataTypeXZ, []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00}},
	{DataTypeZ, []byte{0x1f, 0x9d}},
	{DataTypeBZip2, []byte{0x42, 0x5a, 0x68}},
}

// DetectDataType attempts to detect the data type of a stream by checking
// against a set of known data types.  Byte code signatures from
// https://stackoverflow.com/a/19127748/199475 . Gzip streams carrying the BGZF
// "BC" extra subfield are reported as DataTypeBGZF. An empty stream returns
// io.EOF.
func DetectDataType(r io.Reader) (DataType, error) {
	buff := make([]byte, 16)
	n, err := io.ReadFull(r, buff)
	if n == 0 {
		if err == nil || err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		return DataTypeInvalid, err
	}
	if err != nil && err != io.ErrUnexpectedEOF {
		return DataTypeInvalid, err
	}
	buff = buff[:n]

	// Match known signatures
Outer:
	for _, known := range byteCodeSigs {
		if len(buff) < len(known.sig) {
			continue
		}
		for position := range known.sig {
			if buff[position] != known.sig[position] {
				continue Outer
			}
		}

		if known.dt == DataTypeGzip && len(buff) >= 14 && buff[3]&0x04 != 0 && buff[12] == 'B' && buff[13] == 'C' {
			return DataTypeBGZF, nil
		}

		return known.dt, nil
	}

	return DataTypeNoCompression, nil
}

// Decompress rewinds rs and wraps it with a decoder for dt. Closing the
// returned reader releases the decoder but not rs.
func Decompress(rs io.ReadSeeker, dt DataType) (io.ReadCloser, error) {
	// Reset your original reader
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	switch dt {
	case DataTypeGzip, DataTypeBGZF:
		return pgzip.NewReader(rs)
	case DataTypeZip:
		zr := zipstream.NewReader(rs)
		// Summary statistics archives hold one member.
		if _, err := zr.Next(); err != nil {
			return nil, fmt.Errorf("zip: %w", err)
		}
		return &readCloserFaker{zr}, nil
	case DataTypeBZip2:
		return &readCloserFaker{bzip2.NewReader(rs)}, nil
	case DataTypeXZ:
		reader, err := xz.NewReader(rs, 0)
		if err != nil {
			return nil, err
		}
		return &readCloserFaker{reader}, nil
	case DataTypeZ:
		return nil, fmt.Errorf("%w: unix compress (.Z) streams cannot be decoded", ErrUnsupportedEncoding)
	case DataTypeNoCompression:
		return &readCloserFaker{rs}, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnsupportedEncoding, dt)
}

// readCloserFaker "upgrades" readers that don't need to be closed
type readCloserFaker struct {
	io.Reader
}

func (c *readCloserFaker) Close() error {
	return nil
}
