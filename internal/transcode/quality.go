package transcode

// QualityLevel names one of the configured transcoding presets.
type QualityLevel string

const (
	// Low is the preset for constrained mobile connections.
	Low QualityLevel = "low"
	// Medium is the default streaming preset.
	Medium QualityLevel = "medium"
	// High is the preset for good connections.
	High QualityLevel = "high"
)

// FromLetter maps the single-letter trans query parameter to a quality
// level. Unrecognized letters mean no transcoding was requested.
func FromLetter(s string) (QualityLevel, bool) {
	switch s {
	case "l":
		return Low, true
	case "m":
		return Medium, true
	case "h":
		return High, true
	default:
		return "", false
	}
}

// Quality holds the concrete encoder settings of one preset.
type Quality struct {
	// Bitrate is the target bitrate in kbit/s.
	Bitrate int `json:"bitrate" toml:"bitrate"`
	// Codec is the ffmpeg encoder name.
	Codec string `json:"codec" toml:"codec"`
	// CompressionLevel is the encoder effort knob (libopus: 0-10).
	CompressionLevel int `json:"compression_level" toml:"compression_level"`
}

// Presets holds the three configured quality levels.
type Presets struct {
	Low    Quality `json:"low" toml:"low"`
	Medium Quality `json:"medium" toml:"medium"`
	High   Quality `json:"high" toml:"high"`
}

// DefaultPresets returns the built-in opus presets.
func DefaultPresets() Presets {
	return Presets{
		Low:    Quality{Bitrate: 32, Codec: "libopus", CompressionLevel: 5},
		Medium: Quality{Bitrate: 48, Codec: "libopus", CompressionLevel: 8},
		High:   Quality{Bitrate: 64, Codec: "libopus", CompressionLevel: 10},
	}
}

// Get returns the preset for a level; unknown levels fall back to Low.
func (p Presets) Get(level QualityLevel) Quality {
	switch level {
	case Medium:
		return p.Medium
	case High:
		return p.High
	default:
		return p.Low
	}
}
