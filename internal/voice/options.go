package voice

import "slices"

// Options carries the tunable ffmpeg flag lists: BeforeOptions go in front
// of the input URL, Options after it. The fixed output format (s16le,
// 48kHz stereo) is not part of Options, the encode loop depends on it.
type Options struct {
	BeforeOptions []string
	Options       []string
}

// DefaultOptions mirrors the reconnect flags every stream gets.
func DefaultOptions() Options {
	return Options{
		BeforeOptions: []string{
			"-reconnect", "1",
			"-reconnect_streamed", "1",
			"-reconnect_delay_max", "5",
		},
	}
}

// Merge returns a copy with the extra flags appended. The receiver is
// never mutated, so per-call additions (a seek offset, say) do not bleed
// into the base configuration.
func (o Options) Merge(extraBefore, extraOpts []string) Options {
	merged := Options{
		BeforeOptions: slices.Clone(o.BeforeOptions),
		Options:       slices.Clone(o.Options),
	}
	merged.BeforeOptions = append(merged.BeforeOptions, extraBefore...)
	merged.Options = append(merged.Options, extraOpts...)
	return merged
}
