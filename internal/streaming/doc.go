/*
Package streaming delivers audio bytes to HTTP clients with timeout
protection.

A slow or vanished client must never hold a worker slot indefinitely:
Writer bounds every write with a timeout, splits large writes into flushed
chunks so cancellation is noticed promptly, and maps request-context
cancellation to ErrClientGone. Within one response, bytes are always
delivered in ascending offset order with no gaps; chunking only affects
write granularity, never ordering.

Typical use:

	written, err := streaming.Copy(r.Context(), w, file, streaming.DefaultConfig())
	if errors.Is(err, streaming.ErrClientGone) {
		// the client left, not a server failure
	}
*/
package streaming
