package rtc

import (
	"context"

	"github.com/pion/webrtc/v4"
)

// MediaSource is the local capture handle added to every peer link.
type MediaSource interface {
	Tracks() []webrtc.TrackLocal
	Close() error
}

// CaptureFunc acquires the capture device. It may fail (device denied,
// busy); the caller must not leave partial call state behind.
type CaptureFunc func(ctx context.Context) (MediaSource, error)

// StaticSource carries one audio and one video sample track. It stands
// in for a real capture device on headless clients; writers feed it
// with WriteSample on the underlying tracks.
type StaticSource struct {
	audio  *webrtc.TrackLocalStaticSample
	video  *webrtc.TrackLocalStaticSample
	tracks []webrtc.TrackLocal
}

func NewStaticSource(streamID string) (*StaticSource, error) {
	audio, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		"audio", streamID,
	)
	if err != nil {
		return nil, err
	}
	video, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000},
		"video", streamID,
	)
	if err != nil {
		return nil, err
	}
	return &StaticSource{
		audio:  audio,
		video:  video,
		tracks: []webrtc.TrackLocal{audio, video},
	}, nil
}

func (s *StaticSource) Tracks() []webrtc.TrackLocal { return s.tracks }

func (s *StaticSource) Audio() *webrtc.TrackLocalStaticSample { return s.audio }
func (s *StaticSource) Video() *webrtc.TrackLocalStaticSample { return s.video }

// Close releases the source. Sample tracks hold no OS resources, so
// this only marks the handle dead for guard checks upstream.
func (s *StaticSource) Close() error {
	s.tracks = nil
	return nil
}

// StaticCapture adapts NewStaticSource to a CaptureFunc.
func StaticCapture(streamID string) CaptureFunc {
	return func(ctx context.Context) (MediaSource, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return NewStaticSource(streamID)
	}
}
