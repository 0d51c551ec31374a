package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/pion/mediadevices"
	_ "github.com/pion/mediadevices/pkg/driver/camera" // registers the camera driver
	"github.com/pion/mediadevices/pkg/io/video"
	"github.com/pion/mediadevices/pkg/prop"

	"github.com/soocke/framepipe/domain/capture"
	"github.com/soocke/framepipe/domain/frame"
	"github.com/soocke/framepipe/domain/pool"
)

// CameraConfig selects and sizes the camera. Zero values leave the choice to
// the driver.
type CameraConfig struct {
	DeviceID string
	Width    int
	Height   int
	FPS      float64
	Format   frame.PixelFormat
}

// Camera reads decoded frames from a local video device.
type Camera struct {
	pool   *pool.Pool
	cfg    CameraConfig
	logger *slog.Logger

	// mu serialises reads; Close does not take it so it can unblock one.
	mu     sync.Mutex
	track  mediadevices.Track
	reader video.Reader
	closed atomic.Bool
}

// Device describes one capture device.
type Device struct {
	ID    string
	Label string
}

// ListCameras returns the video input devices known to the driver.
func ListCameras() []Device {
	var out []Device
	for _, d := range mediadevices.EnumerateDevices() {
		if d.Kind != mediadevices.VideoInput {
			continue
		}
		out = append(out, Device{ID: d.DeviceID, Label: d.Label})
	}
	return out
}

// OpenCamera opens the configured device. If the preferred size is
// rejected it retries with only the device constraint.
func OpenCamera(p *pool.Pool, cfg CameraConfig, logger *slog.Logger) (*Camera, error) {
	if logger == nil {
		logger = slog.Default()
	}
	stream, err := mediadevices.GetUserMedia(mediadevices.MediaStreamConstraints{
		Video: func(c *mediadevices.MediaTrackConstraints) {
			if cfg.Width > 0 {
				c.Width = prop.Int(cfg.Width)
			}
			if cfg.Height > 0 {
				c.Height = prop.Int(cfg.Height)
			}
			if cfg.FPS > 0 {
				c.FrameRate = prop.Float(cfg.FPS)
			}
			if cfg.DeviceID != "" {
				c.DeviceID = prop.String(cfg.DeviceID)
			}
		},
	})
	if err != nil {
		logger.Warn("camera.constraints_rejected", "error", err)
		stream, err = mediadevices.GetUserMedia(mediadevices.MediaStreamConstraints{
			Video: func(c *mediadevices.MediaTrackConstraints) {
				if cfg.DeviceID != "" {
					c.DeviceID = prop.String(cfg.DeviceID)
				}
			},
		})
		if err != nil {
			return nil, fmt.Errorf("open camera: %w", err)
		}
	}

	tracks := stream.GetVideoTracks()
	if len(tracks) == 0 {
		return nil, errors.New("open camera: no video track")
	}
	vt, ok := tracks[0].(*mediadevices.VideoTrack)
	if !ok {
		_ = tracks[0].Close()
		return nil, fmt.Errorf("open camera: unexpected track type %T", tracks[0])
	}
	logger.Info("camera.open", "device", cfg.DeviceID, "track", vt.ID())
	return &Camera{
		pool:   p,
		cfg:    cfg,
		logger: logger,
		track:  vt,
		reader: vt.NewReader(false),
	}, nil
}

func (c *Camera) Name() string {
	if c.cfg.DeviceID == "" {
		return "camera"
	}
	return "camera:" + c.cfg.DeviceID
}

// Capture blocks until the driver delivers the next frame.
func (c *Camera) Capture(ctx context.Context) (capture.Capture, error) {
	if c.closed.Load() {
		return capture.Capture{}, capture.ErrSourceClosed
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return capture.Capture{}, err
	}
	img, release, err := c.reader.Read()
	if err != nil {
		return capture.Capture{}, err
	}
	defer release()

	buf, w, h := packImage(c.pool, img, c.cfg.Format)
	if buf == nil {
		return capture.Capture{}, capture.ErrNoPayload
	}
	return capture.Capture{
		Buffer:   buf,
		Width:    w,
		Height:   h,
		Format:   c.cfg.Format,
		Metadata: map[string]any{"device": c.cfg.DeviceID},
	}, nil
}

func (c *Camera) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.track.Close()
}
