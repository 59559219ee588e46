package capture

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/go-audio/wav"
)

func TestEncodeWAV(t *testing.T) {
	pcm := tone(100, 0.01)

	out, err := EncodeWAV(pcm, testRate, 1)
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}

	if len(out) != 44+len(pcm) {
		t.Fatalf("Expected %d bytes, got %d", 44+len(pcm), len(out))
	}
	if string(out[0:4]) != "RIFF" || string(out[8:12]) != "WAVE" || string(out[36:40]) != "data" {
		t.Errorf("unexpected header %q", out[:44])
	}
	if got := binary.LittleEndian.Uint32(out[4:8]); int(got) != len(out)-8 {
		t.Errorf("Expected RIFF size %d, got %d", len(out)-8, got)
	}
	if got := binary.LittleEndian.Uint32(out[40:44]); int(got) != len(pcm) {
		t.Errorf("Expected data size %d, got %d", len(pcm), got)
	}
	if !bytes.Equal(out[44:], pcm) {
		t.Error("Expected samples to be copied unchanged")
	}
}

func TestEncodeWAV_Decodes(t *testing.T) {
	pcm := tone(1200, 0.02)
	out, err := EncodeWAV(pcm, testRate, 1)
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}

	dec := wav.NewDecoder(bytes.NewReader(out))
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dec.SampleRate != testRate || dec.NumChans != 1 || dec.BitDepth != 16 {
		t.Fatalf("unexpected format %d Hz, %d ch, %d bit", dec.SampleRate, dec.NumChans, dec.BitDepth)
	}
	if len(buf.Data) != len(pcm)/2 {
		t.Fatalf("Expected %d samples, got %d", len(pcm)/2, len(buf.Data))
	}
	if buf.Data[0] != 1200 || buf.Data[1] != -1200 {
		t.Errorf("unexpected samples %v", buf.Data[:2])
	}
}

func TestEncodeWAV_InvalidFormat(t *testing.T) {
	if _, err := EncodeWAV(nil, 0, 1); err == nil {
		t.Error("Expected error for zero sample rate")
	}
	if _, err := EncodeWAV(nil, testRate, 0); err == nil {
		t.Error("Expected error for zero channels")
	}
}

func TestSeekBuffer(t *testing.T) {
	var s seekBuffer
	io.WriteString(&s, "hello world")
	if _, err := s.Seek(6, io.SeekStart); err != nil {
		t.Fatal(err)
	}
	io.WriteString(&s, "there!")
	if got := string(s.buf); got != "hello there!" {
		t.Errorf("Expected %q, got %q", "hello there!", got)
	}
	if _, err := s.Seek(-1, io.SeekStart); err == nil {
		t.Error("Expected error for negative position")
	}
}
