package hashing

import (
	"crypto/md5"
	"encoding/hex"
	"hash"
	"io"
)

type ChecksumProvider interface {
	GetChecksum() (string, error)
}

// ChecksumReaderProxy calculates the MD5 checksum of data as it's read.
type ChecksumReaderProxy struct {
	reader      io.Reader
	checksum    hash.Hash
	checksumErr error
}

// NewMD5ReaderProxy creates a new instance of ChecksumReaderProxy.
func NewMD5ReaderProxy(reader io.Reader) *ChecksumReaderProxy {
	return &ChecksumReaderProxy{
		reader:   reader,
		checksum: md5.New(),
	}
}

// Read reads data from the underlying reader and feeds it to the checksum.
func (p *ChecksumReaderProxy) Read(buf []byte) (int, error) {
	n, err := p.reader.Read(buf)
	if n > 0 {
		if _, checksumErr := p.checksum.Write(buf[:n]); checksumErr != nil {
			p.checksumErr = checksumErr
			return n, checksumErr
		}
	}
	return n, err
}

// GetChecksum returns the calculated MD5 checksum as a hex string.
func (p *ChecksumReaderProxy) GetChecksum() (string, error) {
	if p.checksumErr == nil {
		return hex.EncodeToString(p.checksum.Sum(nil)), nil
	}
	return "", p.checksumErr
}

// StaticChecksum is a ChecksumProvider for an already known checksum.
type StaticChecksum string

func (s StaticChecksum) GetChecksum() (string, error) {
	return string(s), nil
}
