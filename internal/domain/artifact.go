package domain

import "os"

// Artifact is the playable result of synthesizing one phrase: decoded
// 16-bit mono PCM plus its sample rate, and the path of the scratch WAV
// file holding the same bytes. Artifacts are ephemeral — Discard is called
// immediately after playback, on cancellation, and on every failure path.
type Artifact struct {
	PCM        []byte
	SampleRate int
	Path       string
}

// Size returns the PCM byte count. Artifacts below the pipeline's minimum
// size are treated as silence and never played.
func (a *Artifact) Size() int {
	if a == nil {
		return 0
	}
	return len(a.PCM)
}

// Discard removes the scratch file, if any. Best-effort; safe to call more
// than once and on nil.
func (a *Artifact) Discard() {
	if a == nil || a.Path == "" {
		return
	}
	os.Remove(a.Path)
	a.Path = ""
}
