package utils

import (
	"io"
)

// Close closes c and ignores any error.
// Use for best-effort cleanup in defer where error handling is not critical.
func Close(c io.Closer) {
	_ = c.Close()
}

// DrainAndClose discards what is left of an HTTP body (bounded) before
// closing it so the connection can be reused.
func DrainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64<<10))
	_ = body.Close()
}
