package audio

const (
	DefaultSampleRate = 16000
	DefaultFormat     = "linear16"
	DefaultFrameMs    = 20
)

func GetDefaultEncodingInfo() EncodingInfo {
	return EncodingInfo{SampleRate: DefaultSampleRate, Channels: 1, Format: encodingFormat(DefaultFormat)}
}

type EncodingInfo struct {
	SampleRate int
	Channels   int
	Format     encodingFormat
}

func (e EncodingInfo) IsZero() bool {
	return e.SampleRate == 0 || e.Format.Name() == ""
}

func (e EncodingInfo) SilenceValue() byte {
	switch e.Format {
	case EncodingALaw:
		return 0x55
	case EncodingMulaw:
		return 0xFF
	case EncodingLinear16:
		return 0
	}

	return 0
}

// BytesPerFrame returns the payload size of one frame of the given duration.
func (e EncodingInfo) BytesPerFrame(frameMs int) int {
	channels := e.Channels
	if channels == 0 {
		channels = 1
	}
	return e.SampleRate * frameMs / 1000 * e.Format.ByteSize() * channels
}

// SamplesPerFrame returns the per-channel sample count of one frame.
func (e EncodingInfo) SamplesPerFrame(frameMs int) int {
	return e.SampleRate * frameMs / 1000
}

type encodingFormat string

func (e encodingFormat) Name() string {
	return string(e)
}

func (e encodingFormat) ByteSize() int {
	switch e {
	case EncodingMulaw, EncodingALaw:
		return 1
	case EncodingLinear16:
		return 2
	}
	return -1
}

const (
	EncodingMulaw    encodingFormat = "mulaw"
	EncodingALaw     encodingFormat = "alaw"
	EncodingLinear16 encodingFormat = "linear16"
)
