// Package iox provides close helpers for transports and HTTP clients.
package iox

import "io"

// maxDrain bounds how much of an unread response body DrainClose reads.
const maxDrain = 64 << 10

// DiscardClose closes c and discards the error.
//
//	defer iox.DiscardClose(tr)
func DiscardClose(c io.Closer) { _ = c.Close() }

// DrainClose reads what is left of an HTTP response body, up to 64 KiB,
// and closes it so the connection can be reused. Errors are discarded.
//
//	defer iox.DrainClose(resp.Body)
func DrainClose(body io.ReadCloser) {
	_, _ = io.CopyN(io.Discard, body, maxDrain)
	_ = body.Close()
}
