// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream decodes a chunked relay response into newline-delimited
// text frames.
package stream

import (
	"bufio"
	"io"
	"strings"
	"sync"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// =============================================================================
// FRAME READER
// =============================================================================

// FrameReader yields the text between '\n' bytes of a response body.
// Empty frames are skipped and a trailing partial frame is yielded once at
// end of stream. The body is closed when the stream ends, fails, or Close
// is called, whichever comes first.
//
//	fr := stream.NewFrameReader(resp.Body)
//	defer fr.Close()
//	for fr.Next() {
//	    fmt.Print(fr.Frame())
//	}
//	if err := fr.Err(); err != nil { ... }
type FrameReader struct {
	body   io.ReadCloser
	reader *bufio.Reader
	frame  string
	err    error
	done   bool

	closeOnce sync.Once
	closeErr  error
}

// NewFrameReader wraps body. Bytes are decoded as UTF-8 with a streaming
// decoder, so multi-byte characters split across reads stay intact.
func NewFrameReader(body io.ReadCloser) *FrameReader {
	decoded := transform.NewReader(body, unicode.UTF8.NewDecoder())
	return &FrameReader{
		body:   body,
		reader: bufio.NewReader(decoded),
	}
}

// Next advances to the next non-empty frame.
func (r *FrameReader) Next() bool {
	for !r.done {
		line, err := r.reader.ReadString('\n')
		if err != nil {
			r.done = true
			if err != io.EOF {
				r.err = err
			}
			_ = r.Close()
			// Leftover text without a newline is still a frame, unless the
			// read failed.
			if r.err == nil && line != "" {
				r.frame = line
				return true
			}
			r.frame = ""
			return false
		}

		line = strings.TrimSuffix(line, "\n")
		if line == "" {
			continue
		}
		r.frame = line
		return true
	}
	r.frame = ""
	return false
}

// Frame returns the current frame.
func (r *FrameReader) Frame() string {
	return r.frame
}

// Err returns the first non-EOF read error.
func (r *FrameReader) Err() error {
	return r.err
}

// Close releases the body. It is safe to call more than once.
func (r *FrameReader) Close() error {
	r.closeOnce.Do(func() {
		r.closeErr = r.body.Close()
	})
	return r.closeErr
}

// ReadAll drains the reader and returns every frame.
func ReadAll(body io.ReadCloser) ([]string, error) {
	fr := NewFrameReader(body)
	defer fr.Close()

	var frames []string
	for fr.Next() {
		frames = append(frames, fr.Frame())
	}
	return frames, fr.Err()
}
