/*
Package workers provides the bounded worker pool that carries all blocking
work for the audio server: file sends, directory scans, image scaling and
transcode supervision.

The pool has a fixed number of worker goroutines and a bounded job queue.
Submit never blocks; when the queue is full it returns ErrQueueFull so the
caller can shed load instead of piling up goroutines. QueueSize is a cheap
read of the queue depth and is what the admission middleware consults on
every request.

Sizing helpers (Count, ForCPU, ForIO) respect container CPU limits via
GOMAXPROCS and can be overridden with the POOL_WORKERS environment variable.
*/
package workers
