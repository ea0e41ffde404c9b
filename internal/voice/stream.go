package voice

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"layeh.com/gopus"
)

const (
	channels   = 2
	sampleRate = 48000
	frameSize  = 960 // 20ms at 48kHz
)

// streamFunc runs a playback loop until the source drains, stop closes, or
// an error occurs. A reader arriving on swap replaces the current source in
// place without interrupting the transport.
type streamFunc func(conn Connection, src io.ReadCloser, stop <-chan struct{}, swap <-chan io.ReadCloser) error

// encodeStream reads s16le PCM frames, encodes them to opus, and pushes
// them to the connection. Draining the source (EOF) is natural completion
// and returns nil.
func encodeStream(conn Connection, src io.ReadCloser, stop <-chan struct{}, swap <-chan io.ReadCloser) error {
	encoder, err := gopus.NewEncoder(sampleRate, channels, gopus.Audio)
	if err != nil {
		return fmt.Errorf("encoder error: %w", err)
	}

	cur := src
	defer func() { cur.Close() }()

	conn.Speaking(true)
	defer conn.Speaking(false)

	pcmBuf := make([]byte, frameSize*channels*2)
	intBuf := make([]int16, frameSize*channels)

	for {
		select {
		case <-stop:
			return nil
		case next := <-swap:
			cur.Close()
			cur = next
		default:
		}

		if _, err := io.ReadFull(cur, pcmBuf); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return fmt.Errorf("read error: %w", err)
		}

		for i := range intBuf {
			intBuf[i] = int16(binary.LittleEndian.Uint16(pcmBuf[i*2 : i*2+2]))
		}

		opus, err := encoder.Encode(intBuf, frameSize, len(pcmBuf))
		if err != nil {
			return fmt.Errorf("encode error: %w", err)
		}

		conn.Send(opus)
	}
}
