package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/foxseedlab/kikitori/internal/audio"
	"github.com/gen2brain/malgo"
)

// MicrophoneCapture opens the host capture device through miniaudio.
type MicrophoneCapture struct {
	deviceName string
}

func NewMicrophoneCapture(deviceName string) *MicrophoneCapture {
	return &MicrophoneCapture{deviceName: strings.TrimSpace(deviceName)}
}

func (c *MicrophoneCapture) Open(ctx context.Context, frameSize int, format audio.Format) (audio.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	malgoCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, classifyDeviceError(fmt.Errorf("initialize audio context: %w", err))
	}
	releaseContext := func() {
		_ = malgoCtx.Uninit()
		malgoCtx.Free()
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(format.Channels)
	deviceConfig.SampleRate = uint32(format.SampleRate)
	deviceConfig.PeriodSizeInFrames = uint32(frameSize)
	if c.deviceName != "" {
		info, err := findCaptureDevice(malgoCtx, c.deviceName)
		if err != nil {
			releaseContext()
			return nil, err
		}
		deviceConfig.Capture.DeviceID = info.ID.Pointer()
	}

	stream := newPumpStream("microphone", format.FrameBytes(frameSize))
	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			stream.write(input)
		},
	}
	device, err := malgo.InitDevice(malgoCtx.Context, deviceConfig, callbacks)
	if err != nil {
		releaseContext()
		return nil, classifyDeviceError(fmt.Errorf("initialize capture device: %w", err))
	}

	stream.startFn = func() error {
		if err := device.Start(); err != nil {
			return classifyDeviceError(fmt.Errorf("start capture device: %w", err))
		}
		slog.Info("microphone capture started", "device", c.deviceName, "sample_rate", format.SampleRate, "channels", format.Channels, "frame_size", frameSize)
		return nil
	}
	stream.stopFn = func() error {
		if !device.IsStarted() {
			return nil
		}
		return device.Stop()
	}
	stream.closeFn = func() error {
		device.Uninit()
		releaseContext()
		slog.Info("microphone capture released", "device", c.deviceName)
		return nil
	}
	return stream, nil
}

func findCaptureDevice(malgoCtx *malgo.AllocatedContext, name string) (malgo.DeviceInfo, error) {
	infos, err := malgoCtx.Devices(malgo.Capture)
	if err != nil {
		return malgo.DeviceInfo{}, classifyDeviceError(fmt.Errorf("enumerate capture devices: %w", err))
	}
	search := strings.ToLower(name)
	for _, info := range infos {
		if strings.Contains(strings.ToLower(info.Name()), search) {
			return info, nil
		}
	}
	return malgo.DeviceInfo{}, &audio.CaptureError{
		Kind: audio.DeviceBusy,
		Err:  fmt.Errorf("no capture device matching %q", name),
	}
}

// classifyDeviceError maps backend failures onto the two capture error kinds.
// Anything that is not an access failure means the device cannot be taken.
func classifyDeviceError(err error) error {
	var ce *audio.CaptureError
	if errors.As(err, &ce) {
		return err
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "access denied") || strings.Contains(msg, "permission") || strings.Contains(msg, "not authorized") {
		return &audio.CaptureError{Kind: audio.PermissionDenied, Err: err}
	}
	return &audio.CaptureError{Kind: audio.DeviceBusy, Err: err}
}
