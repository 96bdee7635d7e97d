package stt

import (
	"io"
	"testing"

	"github.com/akarimi/nana/internal/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.LevelOff, io.Discard)
}

func TestCleanTranscription(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"  hello dear  ", "hello dear"},
		{"[BLANK_AUDIO]", ""},
		{"(silence)", ""},
		{"hello (coughing) there", "hello there"},
		{"[laughter] good morning", "good morning"},
		{"Thank you.", ""},
		{"you", ""},
		{"line one\nline two", "line one line two"},
		{"[00:00:00.000 --> 00:00:05.000] pass the sugar", "pass the sugar"},
		{"", ""},
	}

	for _, c := range cases {
		if got := cleanTranscription(c.in); got != c.want {
			t.Errorf("cleanTranscription(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestSetActiveTogglesCapture(t *testing.T) {
	l := NewListener("whisper-cli", "model.bin", testLogger())

	if !l.isActive() {
		t.Fatal("listener should start active")
	}
	l.SetActive(false)
	if l.isActive() {
		t.Error("SetActive(false) had no effect")
	}
	l.SetActive(true)
	if !l.isActive() {
		t.Error("SetActive(true) had no effect")
	}
}
