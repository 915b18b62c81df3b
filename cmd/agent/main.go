package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"relay-service/internal/domain"
	"relay-service/pkg/client"
)

// The agent is a headless companion session: it keeps one relay
// connection alive, mirrors badge/list state, and can baby-sit a pending
// secondary-device approval. Useful for soak-testing the pipeline without
// a browser.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Agent: No .env file found, relying on system env vars")
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	backendURL := getEnv("BACKEND_URL", "http://localhost:8080")
	token := os.Getenv("SESSION_TOKEN")

	api, err := client.NewAPI(backendURL, token)
	if err != nil {
		logger.Fatal("bad backend url", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reconciler := client.NewReconciler(api, &logView{logger: logger}, logger)
	go reconciler.StartPolling(ctx)

	socket, err := client.NewSocket(api.WSEndpoint(), token, reconciler, logger)
	if err != nil {
		logger.Fatal("socket init failed", zap.Error(err))
	}
	socket.Start(ctx)
	defer socket.Close()

	// Prime state once at startup, then rely on push hints.
	reconciler.Refresh()

	// A login attempt flagged as awaiting secondary-device confirmation.
	if username := os.Getenv("PENDING_2FA_USER"); username != "" {
		session := client.NewApprovalSession(username, api, &logApprovalUI{logger: logger}, logger)
		session.Start(ctx)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("🛑 Agent shutting down")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// logView satisfies client.View by reporting state changes to the log.
type logView struct {
	logger *zap.Logger
}

func (v *logView) RenderList(items []domain.Notification) {
	v.logger.Info("notification list replaced", zap.Int("items", len(items)))
}

func (v *logView) ShowBadge(count int) {
	v.logger.Info("badge shown", zap.Int("count", count))
}

func (v *logView) HideBadge() {
	v.logger.Info("badge hidden")
}

func (v *logView) SetRead(id string) {
	v.logger.Info("notification dimmed", zap.String("id", id))
}

func (v *logView) RemoveItems(ids []string) {
	v.logger.Info("read notifications pruned", zap.Strings("ids", ids))
}

// logApprovalUI satisfies client.ApprovalUI.
type logApprovalUI struct {
	logger *zap.Logger
}

func (u *logApprovalUI) CountdownChanged(remaining int) {
	if remaining%30 == 0 {
		u.logger.Info("approval countdown", zap.Int("remaining_seconds", remaining))
	}
}

func (u *logApprovalUI) OutcomeReached(status client.ApprovalStatus) {
	u.logger.Info("approval resolved", zap.String("status", string(status)))
}

func (u *logApprovalUI) RedirectDashboard() {
	u.logger.Info("redirect: dashboard")
}

func (u *logApprovalUI) RedirectLogin() {
	u.logger.Info("redirect: login")
}
