package capture

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"
	"time"
)

const testRate = 16000

// tone returns a square wave of the given amplitude; amplitude 0 is silence.
func tone(amplitude int16, seconds float64) []byte {
	n := int(seconds * testRate)
	out := make([]byte, n*2)
	for i := 0; i < n; i++ {
		s := amplitude
		if i%2 == 1 {
			s = -amplitude
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

func concat(parts ...[]byte) io.Reader {
	return bytes.NewReader(bytes.Join(parts, nil))
}

func TestListen_NoSpeechTimesOut(t *testing.T) {
	r := concat(tone(10, 5))

	_, err := Listen(r, DefaultListenConfig(testRate), time.Second, 15*time.Second)
	if !errors.Is(err, ErrNoSpeech) {
		t.Fatalf("Expected ErrNoSpeech, got %v", err)
	}
}

func TestListen_StreamEndsDuringCalibration(t *testing.T) {
	r := concat(tone(10, 0.1))

	_, err := Listen(r, DefaultListenConfig(testRate), time.Second, time.Second)
	if !errors.Is(err, errStreamEnded) {
		t.Fatalf("Expected errStreamEnded, got %v", err)
	}
}

func TestListen_CapturesPhraseUntilPause(t *testing.T) {
	r := concat(tone(10, 0.5), tone(10, 0.3), tone(5000, 1), tone(10, 2))

	pcm, err := Listen(r, DefaultListenConfig(testRate), 8*time.Second, 15*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pcm) == 0 || len(pcm)%2 != 0 {
		t.Fatalf("Expected non-empty 16-bit PCM, got %d bytes", len(pcm))
	}
	if rms(pcm) < 1000 {
		t.Errorf("Expected captured audio to contain speech energy, rms=%f", rms(pcm))
	}
	// The phrase must not swallow the whole trailing silence.
	if max := len(tone(0, 0.3+1+1.3)); len(pcm) > max {
		t.Errorf("Expected at most %d bytes, got %d", max, len(pcm))
	}
}

func TestListen_PhraseLimitStopsRecording(t *testing.T) {
	r := concat(tone(10, 0.5), tone(5000, 10))

	pcm, err := Listen(r, DefaultListenConfig(testRate), 8*time.Second, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	chunkBytes := 1024 * 2
	if len(pcm) > 24*chunkBytes {
		t.Errorf("Expected phrase limit to cap recording, got %d bytes", len(pcm))
	}
}

func TestListen_StreamEndDuringPhraseReturnsAudio(t *testing.T) {
	r := concat(tone(10, 0.5), tone(5000, 0.5))

	pcm, err := Listen(r, DefaultListenConfig(testRate), 8*time.Second, 15*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pcm) == 0 {
		t.Error("Expected audio captured before the stream ended")
	}
}

func TestListen_InvalidConfig(t *testing.T) {
	if _, err := Listen(concat(), ListenConfig{}, time.Second, time.Second); err == nil {
		t.Error("Expected error for zero sample rate")
	}
}

func TestRMS(t *testing.T) {
	if got := rms(tone(1000, 0.01)); got != 1000 {
		t.Errorf("Expected rms 1000, got %f", got)
	}
	if got := rms(nil); got != 0 {
		t.Errorf("Expected rms 0 for empty input, got %f", got)
	}
}

func TestMicFFmpegArgs(t *testing.T) {
	for _, goos := range []string{"darwin", "linux", "windows"} {
		args, err := micFFmpegArgs(goos)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", goos, err)
		}
		if args[len(args)-1] != "-" {
			t.Errorf("%s: expected output to stdout, got %v", goos, args)
		}
	}
	if _, err := micFFmpegArgs("plan9"); err == nil {
		t.Error("Expected error for unsupported platform")
	}
}
