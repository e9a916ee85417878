// Package hashing provides MD5 checksum helpers for downloaded archives.
//
// The refresh pipeline keeps the last successfully extracted archive of each
// protocol in the download cache together with a ".md5" sidecar. When a new
// download has the same checksum and the block store is populated, extraction
// is skipped.
//
// # Components
//
//   - ChecksumReaderProxy: calculates MD5 while reading from an io.Reader
//   - IsFileChanged / WriteChecksum: compare and persist ".md5" sidecars
//
// # Example Usage
//
//	proxy := hashing.NewMD5ReaderProxy(resp.Body)
//	body, err := io.ReadAll(proxy)
//	sum, _ := proxy.GetChecksum()
package hashing
