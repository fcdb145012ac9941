package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/zhouzirui/mock-interview/backend/internal/config"
	"github.com/zhouzirui/mock-interview/backend/internal/handler"
	conversationHandler "github.com/zhouzirui/mock-interview/backend/internal/handler/conversation"
	"github.com/zhouzirui/mock-interview/backend/internal/logging"
	"github.com/zhouzirui/mock-interview/backend/internal/metrics"
	"github.com/zhouzirui/mock-interview/backend/internal/model/role"
	"github.com/zhouzirui/mock-interview/backend/internal/service/capture"
	"github.com/zhouzirui/mock-interview/backend/internal/service/coach"
	"github.com/zhouzirui/mock-interview/backend/internal/service/conversation"
	"github.com/zhouzirui/mock-interview/backend/internal/service/reply"
	"github.com/zhouzirui/mock-interview/backend/internal/service/session"
	"github.com/zhouzirui/mock-interview/backend/internal/service/speech"
	"github.com/zhouzirui/mock-interview/backend/internal/service/voice"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}
	if err := logging.Setup(cfg.Log); err != nil {
		logrus.WithError(err).Fatal("failed to configure logging")
	}
	if envErr != nil {
		logrus.WithError(envErr).Warn("failed to load .env file, continuing with system environment variables only")
	}

	roles, err := loadRoles(cfg.Coach.RolesFile)
	if err != nil {
		logrus.WithError(err).Fatal("failed to load role catalog")
	}

	// Speech: TTS for questions and replies, ASR for spoken answers
	var (
		synth       voice.Synthesizer
		transcriber capture.Transcriber
	)
	if cfg.Speech.Enabled {
		speechService := speech.NewService(cfg.Speech.Model())
		synth = voice.NewTTSSynthesizer(speechService)
		transcriber = speechService
		logrus.Info("speech service initialized")
	} else {
		logrus.Info("语音服务凭证未配置，问题将以文本形式下发")
	}
	catalog := voice.NewCatalog(catalogVoices())

	sessions := session.NewManager(session.ManagerConfig{
		Backend:        coach.NewClient(cfg.Coach.BackendURL, cfg.Coach.RequestTimeout),
		Synth:          synth,
		Catalog:        catalog,
		PreferredVoice: speech.NormalizeVoiceAlias(cfg.Coach.PreferredVoice),
		Transcriber:    transcriber,
		Locale:         cfg.Coach.Locale,
		FrameBuffer:    cfg.Coach.FrameBuffer,
		RequestTimeout: cfg.Coach.RequestTimeout,
	})
	defer sessions.Close()

	convOpts := conversationHandler.Options{
		Transcriber:    transcriber,
		Synth:          synth,
		Catalog:        catalog,
		PreferredVoice: speech.NormalizeVoiceAlias("career-guide"),
	}
	var replier conversation.Replier
	if replySvc := newReplyService(ctx, cfg.AI); replySvc != nil {
		replier = replySvc
		convOpts.Streamer = replySvc
	}
	convOpts.Conversations = conversation.NewService(replier)

	deps := handler.Deps{
		Roles:        role.NewMemoryStore(roles),
		Sessions:     sessions,
		Conversation: convOpts,
	}
	if cfg.Metrics.Enabled {
		deps.Metrics = metrics.Handler(metrics.NewRegistry())
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler.NewRouter(deps),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logrus.WithFields(logrus.Fields{
		"addr":    cfg.Server.Addr,
		"backend": cfg.Coach.BackendURL,
	}).Info("mock interview backend listening")
	if err := runServer(ctx, srv); err != nil {
		logrus.WithError(err).Fatal("server error")
	}
}

func loadRoles(path string) ([]role.Role, error) {
	if path == "" {
		return role.Seed(), nil
	}
	roles, err := role.LoadFile(path)
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{"path": path, "count": len(roles)}).Info("role catalog loaded")
	return roles, nil
}

func catalogVoices() []voice.Voice {
	infos := speech.Voices()
	out := make([]voice.Voice, 0, len(infos))
	for _, v := range infos {
		out = append(out, voice.Voice{ID: v.ID, Name: v.Name, Locale: v.Locale})
	}
	return out
}

// newReplyService 返回 nil 表示对话回复不可用
func newReplyService(ctx context.Context, cfg config.AIConfig) *reply.Service {
	if !cfg.Enabled() {
		logrus.Info("Ark 凭证未配置，跳过职业对话功能初始化")
		return nil
	}
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		logrus.WithError(err).Warn("failed to create chat model, continuing without conversation replies")
		return nil
	}
	svc, err := reply.NewService(ctx, chatModel)
	if err != nil {
		logrus.WithError(err).Warn("failed to build reply chain, continuing without conversation replies")
		return nil
	}
	logrus.Info("reply service initialized")
	return svc
}

func runServer(ctx context.Context, srv *http.Server) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
