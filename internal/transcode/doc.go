/*
Package transcode arbitrates and runs on-demand audio transcoding.

A process-wide counter bounds concurrent ffmpeg invocations: TryAcquire
atomically takes a slot or fails immediately with ErrBusy, and Slot.Release
is idempotent so a slot is returned exactly once regardless of how the
operation ends (completion, error or client disconnect). The transcode
itself streams ffmpeg stdout to the client; killing the process on context
cancellation is delegated to exec.CommandContext.

Quality presets (Low/Medium/High) map to concrete bitrate/codec settings
and are selected per request via the single-letter trans query parameter.
*/
package transcode
