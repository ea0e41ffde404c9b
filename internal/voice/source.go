package voice

import (
	"fmt"
	"io"
	"os/exec"
)

// SourceFactory builds a PCM source for a stream URL. The returned reader
// yields raw s16le at the transport sample rate; Close releases whatever
// process backs it.
type SourceFactory func(streamURL string, opts Options) (io.ReadCloser, error)

// NewFFmpegSourceFactory returns a factory that shells out to ffmpeg and
// reads decoded PCM from its stdout.
func NewFFmpegSourceFactory(ffmpegPath string) SourceFactory {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return func(streamURL string, opts Options) (io.ReadCloser, error) {
		args := append([]string{}, opts.BeforeOptions...)
		args = append(args, "-i", streamURL,
			"-f", "s16le",
			"-ar", fmt.Sprintf("%d", sampleRate),
			"-ac", fmt.Sprintf("%d", channels),
			"-loglevel", "warning",
		)
		args = append(args, opts.Options...)
		args = append(args, "pipe:1")

		cmd := exec.Command(ffmpegPath, args...)

		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return nil, fmt.Errorf("stdout pipe error: %w", err)
		}
		if err := cmd.Start(); err != nil {
			return nil, fmt.Errorf("command start error: %w", err)
		}

		return &ffmpegSource{ReadCloser: stdout, cmd: cmd}, nil
	}
}

type ffmpegSource struct {
	io.ReadCloser
	cmd *exec.Cmd
}

func (s *ffmpegSource) Close() error {
	s.cmd.Process.Kill()
	s.ReadCloser.Close()
	// Reap the process so a long session does not accumulate zombies.
	s.cmd.Wait()
	return nil
}
