package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"robo-backend/internal/capture"
	"robo-backend/internal/config"
	"robo-backend/internal/database"
	"robo-backend/internal/handlers"
	"robo-backend/internal/middleware"
	"robo-backend/internal/router"
	"robo-backend/internal/services"
	"robo-backend/internal/speech"
	"robo-backend/internal/websocket"
	"robo-backend/internal/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server (default)",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	log.Info("🚀 Starting ROBO AI backend...")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// ──── Gemini (optional: /chat reports a configuration error without it) ────
	var (
		starter     services.SessionStarter
		transcriber capture.Transcriber
		gemini      *services.GeminiService
	)
	if cfg.APIReady() {
		gemini, err = services.NewGeminiService(context.Background(), services.GeminiOptions{
			APIKey:          cfg.GeminiAPIKey,
			Model:           cfg.GeminiModel,
			MaxOutputTokens: cfg.GeminiMaxOutputTokens,
			Temperature:     cfg.GeminiTemperature,
			ConcurrentReqs:  cfg.GeminiConcurrentReqs,
		})
		if err != nil {
			return err
		}
		defer gemini.Close()
		starter = gemini
		transcriber = gemini
		log.Info("✓ Gemini client initialized", "model", cfg.GeminiModel)
	} else {
		log.Warn("✗ GEMINI_API_KEY not set, chat is disabled")
	}
	conversation := services.NewConversationManager(starter, cfg.GeminiTimeout)

	// ──── Redis (optional event relay) ────
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		log.Info("✓ Redis connected")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	wsHub := websocket.NewHub(redisClient)
	wsHub.Start(ctx)
	defer wsHub.Close()
	log.Info("✓ WebSocket hub started")

	// ──── Speech output ────
	synth, player := newSpeechOutput(cfg)
	speechQueue := worker.NewSpeechQueue(synth, player, wsHub)
	speechQueue.Start()

	// ──── Speech input ────
	var recorder capture.Recorder
	if cfg.STTEnabled && transcriber != nil {
		rec, err := capture.NewFFmpegRecorder(cfg.FFmpegPath, cfg.STTEnergyThreshold, cfg.STTDynamicEnergy)
		if err != nil {
			log.Warn("✗ Server-side speech recognition unavailable", "err", err)
		} else {
			recorder = rec
		}
	}
	gate := capture.NewGate(recorder, transcriber, wsHub)
	if gate.Available() {
		log.Info("✓ Microphone capture ready")
	}

	// ──── HTTP ────
	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute)
	defer limiter.Stop()

	r := router.New(
		handlers.NewVoiceHandler(conversation, speechQueue, gate, wsHub),
		handlers.NewHealthHandler(handlers.HealthInfo{
			Model:        cfg.GeminiModel,
			SDK:          "generative-ai-go",
			TTS:          synth.Name(),
			STTAvailable: gate.Available(),
			APIReady:     cfg.APIReady(),
		}),
		handlers.NewIndexHandler(cfg.IndexPath()),
		limiter,
		wsHub.HandleWebSocket,
		cfg.CORSOrigins,
	)

	// /chat waits on the model and /stt on the microphone.
	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 3 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	printBanner(cfg, synth.Name(), gate.Available())

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	log.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP shutdown failed", "err", err)
	}
	if err := speechQueue.Stop(shutdownCtx); err != nil {
		log.Warn("Speech worker did not stop in time", "err", err)
	}
	return nil
}

type namedSynthesizer interface {
	worker.Synthesizer
	Name() string
}

// newSpeechOutput builds the TTS engine and audio device, falling back to
// silent components so the server still runs without them.
func newSpeechOutput(cfg *config.Config) (namedSynthesizer, worker.Player) {
	if cfg.PiperModel == "" {
		log.Warn("✗ PIPER_MODEL not set, speech output is disabled")
		return speech.Silent{}, speech.Discard{}
	}

	piper, err := speech.NewPiperSynthesizer(speech.PiperConfig{
		ModelPath:  cfg.PiperModel,
		Speaker:    cfg.PiperSpeaker,
		Speed:      cfg.TTSSpeed,
		SampleRate: cfg.PiperSampleRate,
	})
	if err != nil {
		log.Warn("✗ Piper unavailable, speech output is disabled", "err", err)
		return speech.Silent{}, speech.Discard{}
	}

	player, err := speech.NewOtoPlayer(piper.SampleRate(), cfg.TTSVolume)
	if err != nil {
		log.Warn("✗ Audio device unavailable, speech output is disabled", "err", err)
		return speech.Silent{}, speech.Discard{}
	}

	log.Info("✓ Piper TTS ready", "model", cfg.PiperModel)
	return piper, player
}

func printBanner(cfg *config.Config, tts string, sttReady bool) {
	key := "✓ configured"
	if !cfg.APIReady() {
		key = "✗ missing"
	}
	stt := "browser-only"
	if sttReady {
		stt = "ffmpeg"
	}

	log.Info("✓ ROBO AI ready on http://localhost:" + cfg.Port)
	log.Info("  API key: " + key)
	if !cfg.APIReady() {
		log.Info("  Create one at https://aistudio.google.com/app/apikey and set GEMINI_API_KEY")
	}
	log.Info("  Model:   " + cfg.GeminiModel)
	log.Info("  TTS:     " + tts)
	log.Info("  STT:     " + stt)
	log.Info("  WS:      ws://localhost:" + cfg.Port + "/ws")
}
