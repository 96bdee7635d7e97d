// Nana — a voice companion that listens, remembers, and talks back.
//
// Usage:
//
//	nana [-verbose] [-quiet] [-voice]
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/akarimi/nana/internal/agent"
	"github.com/akarimi/nana/internal/display"
	"github.com/akarimi/nana/internal/domain"
	"github.com/akarimi/nana/internal/history"
	"github.com/akarimi/nana/internal/llm"
	"github.com/akarimi/nana/internal/logger"
	"github.com/akarimi/nana/internal/rag"
	"github.com/akarimi/nana/internal/segment"
	"github.com/akarimi/nana/internal/stt"
	"github.com/akarimi/nana/internal/tts"
	"github.com/akarimi/nana/internal/voice"
)

func main() {
	_ = godotenv.Load()

	verbose := flag.Bool("verbose", false, "enable verbose/debug logging")
	quiet := flag.Bool("quiet", false, "disable all logging")
	logFile := flag.String("log-file", ".nana-logs/nana.log", "file to write logs to (use \"stderr\" to log to console)")
	noSpeech := flag.Bool("no-speech", false, "disable speech output (text-only replies)")
	ttsBin := flag.String("tts-bin", "piper", "path to the piper TTS binary")
	ttsModel := flag.String("tts-model", "", "path to the piper voice model (.onnx)")
	ttsSpeed := flag.Float64("tts-speed", 1.1, "speech length scale (higher = slower)")
	playCmd := flag.String("play-cmd", "", "external player binary for audio output (default: in-process)")
	voiceIn := flag.Bool("voice", false, "enable voice input via local Whisper STT")
	whisperBin := flag.String("whisper-bin", "whisper-cli", "path to the whisper-cpp CLI binary")
	whisperModel := flag.String("whisper-model", "bin/ggml-small.bin", "path to the Whisper GGML model file")
	chunkSecs := flag.Int("chunk-secs", 2, "seconds per voice recording chunk")
	memoryDir := flag.String("memory-dir", ".nana-memory", "directory of .txt/.md files Nana may recall from")
	model := flag.String("model", "", "chat model name (default: gpt-4o-mini)")
	baseURL := flag.String("base-url", "", "OpenAI-compatible API base URL")
	flag.Parse()

	// Configure logger.
	logLevel := logger.LevelNormal
	if *verbose {
		logLevel = logger.LevelVerbose
	}
	if *quiet {
		logLevel = logger.LevelOff
	}

	// Direct logs to a file by default so the terminal stays clean.
	var logOut io.Writer = os.Stderr
	if *logFile != "" && *logFile != "stderr" {
		dir := filepath.Dir(*logFile)
		if dir != "" && dir != "." {
			os.MkdirAll(dir, 0o755)
		}
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not open log file %s: %v (falling back to stderr)\n", *logFile, err)
		} else {
			logOut = f
			defer f.Close()
		}
	}

	// Redirect Go's default log package (used by third-party libs like
	// the whisper transcriber) to the same output so it doesn't spam
	// the terminal.
	stdlog.SetOutput(logOut)
	stdlog.SetFlags(stdlog.Ltime)

	log := logger.New(logLevel, logOut)

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "error: OPENAI_API_KEY is not set (put it in .env or the environment)")
		os.Exit(1)
	}

	// Set up context — cancelled when the UI quits.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Speech output ────────────────────────────────────────────

	var synth domain.Synthesizer
	if *noSpeech {
		synth = tts.NewNoOp()
		log.Info("speech output disabled (-no-speech)")
	} else {
		engine := tts.NewCLIEngine(log,
			tts.WithBinary(*ttsBin),
			tts.WithModel(*ttsModel),
			tts.WithSpeed(*ttsSpeed),
		)
		if engine.Available() {
			synth = engine
			log.Info("TTS enabled (bin=%s, model=%s)", *ttsBin, *ttsModel)
		} else {
			synth = tts.NewNoOp()
			log.Warn("TTS binary %q not available, running text-only", *ttsBin)
		}
	}

	gen := voice.NewGenerator(synth, log)

	var sink domain.AudioSink
	if *playCmd != "" {
		sink = voice.NewExecSink(*playCmd, log)
		log.Info("audio output via %s", *playCmd)
	} else {
		player, err := voice.NewPlayer(tts.DefaultSampleRate, log)
		if err != nil {
			log.Warn("audio device unavailable (%v), falling back to external player", err)
			sink = voice.NewExecSink("", log)
		} else {
			sink = player
		}
	}

	// ── Voice input ──────────────────────────────────────────────

	var listener *stt.Listener
	if *voiceIn {
		if _, err := os.Stat(*whisperModel); err != nil {
			fmt.Fprintf(os.Stderr, "error: whisper model not found at %s\n", *whisperModel)
			os.Exit(1)
		}
		os.MkdirAll(".nana-stt", 0o755)
		listener = stt.NewListener(*whisperBin, *whisperModel, log,
			stt.WithChunkDuration(time.Duration(*chunkSecs)*time.Second),
		)
		log.Info("voice input enabled (bin=%s, model=%s, chunk=%ds)", *whisperBin, *whisperModel, *chunkSecs)
	}

	// Mute the microphone while Nana speaks so she doesn't hear herself.
	var pipelineOpts []voice.PipelineOption
	if listener != nil {
		pipelineOpts = append(pipelineOpts, voice.WithMuteHooks(
			func() { listener.SetActive(false) },
			func() { listener.SetActive(true) },
		))
	}
	pipeline := voice.NewPipeline(gen, sink, log, pipelineOpts...)
	pipeline.Start(ctx)

	// ── Brain ────────────────────────────────────────────────────

	var llmOpts []llm.Option
	if *model != "" {
		llmOpts = append(llmOpts, llm.WithModel(*model))
	}
	if *baseURL != "" {
		llmOpts = append(llmOpts, llm.WithBaseURL(*baseURL))
	}
	client := llm.NewClient(apiKey, log, llmOpts...)

	memories := rag.NewEngine(client, log)
	if err := memories.LoadDir(ctx, *memoryDir); err != nil {
		log.Warn("loading memories from %s: %v", *memoryDir, err)
	}
	var retriever domain.Retriever
	if memories.Len() > 0 {
		retriever = memories
		log.Info("loaded %d memory chunks from %s", memories.Len(), *memoryDir)
	}

	ui := display.NewUI(func() display.Status {
		speaking := pipeline.Phase() == voice.PhaseSpeaking
		return display.Status{
			Listening: listener != nil && !speaking,
			Speaking:  speaking,
			QueueLen:  pipeline.QueueLen(),
		}
	})

	// Every dispatched phrase is printed and queued for synthesis.
	seg := segment.New(func(phrase string) {
		ui.PrintChat(phrase)
		pipeline.Speak(phrase)
	}, log)

	hist := history.New(history.DefaultLimit)
	nana := agent.New(client, retriever, hist, seg, pipeline, log)

	app := &cliApp{
		agent:    nana,
		pipeline: pipeline,
		listener: listener,
		log:      log,
		ui:       ui,
	}

	fmt.Println(display.RenderBanner())
	if listener != nil {
		fmt.Println(display.BannerStyle.Render("  Voice mode ON — just start talking. Say \"stop\" to hush her."))
	}
	fmt.Println(display.BannerStyle.Render("  Type to chat. 'quit' to exit."))
	fmt.Println()

	// Run app logic in a background goroutine.
	go func() {
		ui.WaitReady()
		app.run(ctx)
		ui.Quit()
	}()

	// Bubble Tea owns the terminal — blocks until quit.
	if err := ui.Run(); err != nil {
		log.Error("display: %v", err)
	}
	cancel()
}

// Phrases that silence Nana instead of getting an answer.
var stopPhrases = map[string]bool{
	"stop":         true,
	"stop it":      true,
	"stop talking": true,
	"shut up":      true,
	"hush":         true,
	"quiet":        true,
	"be quiet":     true,
}

type cliApp struct {
	agent    *agent.Agent
	pipeline *voice.Pipeline
	listener *stt.Listener // nil when voice input is disabled
	log      *logger.Logger
	ui       *display.UI
}

func (a *cliApp) run(ctx context.Context) {
	a.ui.PrintChat("Hello dear, I'm here.")
	a.pipeline.Speak("Hello dear, I'm here.")

	// Voice channel (nil-safe: receiving on a nil channel blocks forever,
	// which is fine — select will only use the keyboard case).
	var voiceCh chan string
	if a.listener != nil {
		voiceCh = make(chan string, 8)
		go a.listenLoop(ctx, voiceCh)
	}

	uiCh := a.ui.InputChan()

	for {
		var input string
		var ok bool

		select {
		case <-ctx.Done():
			return
		case input, ok = <-uiCh:
			if !ok {
				return
			}
		case input = <-voiceCh:
			// Print what was heard so the user sees it in the scrollback.
			a.ui.PrintVoice(input)
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		switch {
		case isQuit(input):
			a.quit()
			return
		case isStopPhrase(input):
			a.agent.Interrupt()
			a.ui.PrintHint("(hushed)")
			continue
		}

		// New input always wins over whatever Nana is mid-way through
		// saying.
		a.agent.Interrupt()

		if err := a.agent.Respond(ctx, input); err != nil {
			a.log.Error("responding: %v", err)
		}
	}
}

// listenLoop feeds completed voice turns into the main loop.
func (a *cliApp) listenLoop(ctx context.Context, out chan<- string) {
	for {
		text, err := a.listener.Listen(ctx)
		if err != nil {
			return
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		select {
		case out <- text:
		case <-ctx.Done():
			return
		}
	}
}

func (a *cliApp) quit() {
	a.agent.Interrupt()
	a.ui.PrintChat("Goodbye, dear.")
	a.pipeline.Speak("Goodbye, dear.")
	// Brief pause so the goodbye can start playing.
	time.Sleep(300 * time.Millisecond)
	a.ui.Quit()
}

func isQuit(input string) bool {
	switch strings.ToLower(normalize(input)) {
	case "quit", "exit", "bye", "goodbye":
		return true
	}
	return false
}

func isStopPhrase(input string) bool {
	return stopPhrases[strings.ToLower(normalize(input))]
}

// normalize strips surrounding punctuation so "Stop!" still matches.
func normalize(s string) string {
	return strings.Trim(strings.TrimSpace(s), ".,!?")
}
