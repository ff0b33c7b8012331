// Package startup handles configuration loading and structured startup
// and shutdown logging.
//
// Configuration comes from environment variables, optionally layered on
// top of a TOML file named by CONFIG_FILE. Environment variables always
// win. The important knobs:
//
//	BASE_DIRS           colon-separated collection directories
//	PORT                HTTP listen port (default 3000)
//	MAX_TRANSCODINGS    concurrent ffmpeg processes (default NumCPU/2)
//	QUEUE_LIMIT         admission control queue threshold (default 100)
//	AUTH_MODE           none | token | shared-secret
//	ICON_SIZE           cover icon edge in pixels (default 128)
//	CORS                echo request origins when true
//
// Transcoding quality presets can only be overridden via the TOML file's
// [transcoding] table.
package startup
