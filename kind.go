package s64

import "github.com/cznic/s64/internal/channel"

// Kind enumerates the channel payload shapes a slot can hold (spec.md
// §3).
type Kind = channel.Kind

const (
	KindOff       = channel.Off
	KindEventRise = channel.EventRise
	KindEventFall = channel.EventFall
	KindEventBoth = channel.EventBoth // levels
	KindMarker    = channel.Marker
	KindTextMark  = channel.TextMark
	KindRealMark  = channel.RealMark
	KindAdcMark   = channel.AdcMark
	KindAdc       = channel.Adc // 16-bit wave
	KindRealWave  = channel.RealWave // 32-bit wave
)
