package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/mock-interview/backend/internal/service/speech"
)

var transcribeOpts struct {
	format   string
	language string
	timeout  time.Duration
}

var transcribeCmd = &cobra.Command{
	Use:   "transcribe <audio-file>",
	Short: "Recognize speech in an audio file",
	Args:  cobra.ExactArgs(1),
	RunE:  runTranscribe,
}

func init() {
	transcribeCmd.Flags().StringVar(&transcribeOpts.format, "format", "", "audio format (default from file extension)")
	transcribeCmd.Flags().StringVar(&transcribeOpts.language, "lang", "", "language code (default SPEECH_ASR_LANGUAGE)")
	transcribeCmd.Flags().DurationVar(&transcribeOpts.timeout, "timeout", 45*time.Second, "request timeout")
	rootCmd.AddCommand(transcribeCmd)
}

func runTranscribe(cmd *cobra.Command, args []string) error {
	if !cfg.Speech.Enabled {
		return fmt.Errorf("speech is not configured: set SPEECH_APP_ID and SPEECH_ACCESS_TOKEN")
	}

	path := args[0]
	audio, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read audio: %w", err)
	}

	format := transcribeOpts.format
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	}
	if format == "" {
		format = "wav"
	}
	language := firstNonEmpty(transcribeOpts.language, cfg.Speech.ASRLanguage)

	ctx, cancel := context.WithTimeout(cmd.Context(), transcribeOpts.timeout)
	defer cancel()

	sessionID := "coachctl-" + uuid.NewString()
	logrus.WithFields(logrus.Fields{"session": sessionID, "format": format, "language": language}).Info("transcribing")

	resp, err := speech.NewService(cfg.Speech.Model()).TranscribeBuffer(ctx, sessionID, audio, format, language)
	if err != nil {
		return fmt.Errorf("transcribe: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), resp.Text)
	logrus.WithFields(logrus.Fields{"confidence": resp.Confidence, "duration_ms": resp.Duration}).Debug("transcription done")
	return nil
}
