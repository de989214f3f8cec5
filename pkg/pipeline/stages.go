package pipeline

const (
	PipelineName   = "video-capture-pipeline"
	OutputLocation = "output.mp4"
	// kbps
	EncoderBitrate = 4000
)

type Property struct {
	Key   string
	Value interface{}
}

// Stage describes one element of the linear capture chain.
type Stage struct {
	Kind       string
	Name       string
	Properties []Property
}

// DefaultStages returns the capture chain in link order:
//
//	<camera> ! videoconvert ! nvh264enc ! h264parse ! mp4mux ! filesink
func DefaultStages() []Stage {
	return []Stage{
		{Kind: CameraSourceKind, Name: "source"},
		{Kind: "videoconvert", Name: "convert"},
		{Kind: "nvh264enc", Name: "encoder", Properties: []Property{
			{Key: "bitrate", Value: uint(EncoderBitrate)},
		}},
		{Kind: "h264parse", Name: "parser"},
		{Kind: "mp4mux", Name: "muxer"},
		{Kind: "filesink", Name: "sink", Properties: []Property{
			{Key: "location", Value: OutputLocation},
		}},
	}
}
