package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/mock-interview/backend/internal/model/interview"
	"github.com/zhouzirui/mock-interview/backend/internal/service/speech"
	"github.com/zhouzirui/mock-interview/backend/internal/service/voice"
)

var speakOpts struct {
	out     string
	locale  string
	voice   string
	timeout time.Duration
}

var speakCmd = &cobra.Command{
	Use:   "speak <text>",
	Short: "Synthesize text through the voice coordinator and save the audio",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSpeak,
}

func init() {
	speakCmd.Flags().StringVarP(&speakOpts.out, "out", "o", "", "output audio file (default tts-<unix>.<format>)")
	speakCmd.Flags().StringVar(&speakOpts.locale, "locale", "", "utterance locale (default COACH_LOCALE)")
	speakCmd.Flags().StringVar(&speakOpts.voice, "voice", "", "preferred voice id or alias (default COACH_PREFERRED_VOICE)")
	speakCmd.Flags().DurationVar(&speakOpts.timeout, "timeout", 45*time.Second, "overall timeout")
	rootCmd.AddCommand(speakCmd)
}

// filePlayer writes synthesized audio to disk instead of playing it.
type filePlayer struct {
	path string
	done chan error
}

func (p *filePlayer) Play(_ context.Context, u interview.Utterance, audio *voice.Audio) error {
	if audio == nil || len(audio.Data) == 0 {
		p.finish(fmt.Errorf("no audio synthesized for %q", u.Text))
		return nil
	}
	path := p.path
	if path == "" {
		path = fmt.Sprintf("tts-%d.%s", time.Now().Unix(), audio.Format)
	}
	if err := os.WriteFile(path, audio.Data, 0o644); err != nil {
		p.finish(err)
		return err
	}
	logrus.WithFields(logrus.Fields{
		"path":  path,
		"voice": audio.Voice,
		"bytes": len(audio.Data),
	}).Info("audio written")
	p.finish(nil)
	return nil
}

func (p *filePlayer) finish(err error) {
	select {
	case p.done <- err:
	default:
	}
}

func runSpeak(cmd *cobra.Command, args []string) error {
	if !cfg.Speech.Enabled {
		return fmt.Errorf("speech is not configured: set SPEECH_APP_ID and SPEECH_ACCESS_TOKEN")
	}

	locale := firstNonEmpty(speakOpts.locale, cfg.Coach.Locale)
	preferred := firstNonEmpty(speakOpts.voice, cfg.Coach.PreferredVoice)

	player := &filePlayer{path: speakOpts.out, done: make(chan error, 1)}
	coordinator := voice.NewCoordinator(voice.Options{
		Synth:     voice.NewTTSSynthesizer(speech.NewService(cfg.Speech.Model())),
		Player:    player,
		Catalog:   voice.NewCatalog(catalogVoices()),
		Preferred: speech.NormalizeVoiceAlias(preferred),
	})
	defer coordinator.Close()

	coordinator.Speak(interview.Utterance{Text: strings.Join(args, " "), Locale: locale})

	select {
	case err := <-player.done:
		return err
	case <-time.After(speakOpts.timeout):
		return fmt.Errorf("timed out after %s", speakOpts.timeout)
	case <-cmd.Context().Done():
		return cmd.Context().Err()
	}
}

func catalogVoices() []voice.Voice {
	infos := speech.Voices()
	out := make([]voice.Voice, 0, len(infos))
	for _, v := range infos {
		out = append(out, voice.Voice{ID: v.ID, Name: v.Name, Locale: v.Locale})
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
