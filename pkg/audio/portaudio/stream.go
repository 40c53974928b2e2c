package portaudio

import (
	"errors"
	"io"
	"sync"
)

// InputStream captures mono or interleaved PCM from the default input
// device as little-endian int16 bytes.
type InputStream struct {
	stream   *Stream
	frames   int
	channels int
	mu       sync.Mutex
	closed   bool
}

// NewInputStream opens and starts a capture stream. framesPerBuffer is the
// number of frames returned by each ReadBytes call.
func NewInputStream(sampleRate, channels, framesPerBuffer int) (*InputStream, error) {
	stream, err := openStream(channels, 0, float64(sampleRate), framesPerBuffer)
	if err != nil {
		return nil, err
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, err
	}
	return &InputStream{stream: stream, frames: framesPerBuffer, channels: channels}, nil
}

// ReadBytes blocks until one buffer of audio is captured and returns it as
// little-endian int16 bytes.
func (is *InputStream) ReadBytes() ([]byte, error) {
	is.mu.Lock()
	defer is.mu.Unlock()
	if is.closed {
		return nil, io.EOF
	}

	samples, err := is.stream.Read(is.frames * is.channels)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		buf[i*2] = byte(s)
		buf[i*2+1] = byte(s >> 8)
	}
	return buf, nil
}

// Close stops and closes the stream.
func (is *InputStream) Close() error {
	is.mu.Lock()
	defer is.mu.Unlock()
	if is.closed {
		return nil
	}
	is.closed = true
	return is.stream.Close()
}

// OutputStream plays little-endian int16 PCM on the default output device.
type OutputStream struct {
	stream   *Stream
	frames   int
	channels int
	buffer   []int16
	mu       sync.Mutex
	closed   bool
}

// NewOutputStream opens and starts a playback stream.
func NewOutputStream(sampleRate, channels, framesPerBuffer int) (*OutputStream, error) {
	stream, err := openStream(0, channels, float64(sampleRate), framesPerBuffer)
	if err != nil {
		return nil, err
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, err
	}
	return &OutputStream{
		stream:   stream,
		frames:   framesPerBuffer,
		channels: channels,
		buffer:   make([]int16, framesPerBuffer*channels),
	}, nil
}

// WriteBytes plays PCM bytes, blocking until the device has consumed them.
// Input longer than one buffer is written in buffer-sized slices; a short
// final slice is zero-padded.
func (os *OutputStream) WriteBytes(buf []byte) error {
	os.mu.Lock()
	defer os.mu.Unlock()
	if os.closed {
		return errors.New("portaudio: stream closed")
	}

	samples := make([]int16, len(buf)/2)
	for i := range samples {
		samples[i] = int16(buf[i*2]) | int16(buf[i*2+1])<<8
	}

	for len(samples) > 0 {
		n := copy(os.buffer, samples)
		for i := n; i < len(os.buffer); i++ {
			os.buffer[i] = 0
		}
		if err := os.stream.Write(os.buffer); err != nil {
			return err
		}
		samples = samples[n:]
	}
	return nil
}

// Close stops and closes the stream.
func (os *OutputStream) Close() error {
	os.mu.Lock()
	defer os.mu.Unlock()
	if os.closed {
		return nil
	}
	os.closed = true
	return os.stream.Close()
}
