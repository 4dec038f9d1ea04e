package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/BradenHooton/tresor/internal/repositories"
)

// CleanupManager periodically purges expired verification codes and
// password reset tokens. Lookups already refuse expired rows; this just
// keeps the tables from growing without bound.
type CleanupManager struct {
	codes    *repositories.VerificationCodeRepository
	resets   *repositories.ResetTokenRepository
	logger   *slog.Logger
	interval time.Duration
	stopCh   chan struct{}
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(
	codes *repositories.VerificationCodeRepository,
	resets *repositories.ResetTokenRepository,
	logger *slog.Logger,
	interval time.Duration,
) *CleanupManager {
	return &CleanupManager{
		codes:    codes,
		resets:   resets,
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic cleanup task
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.runCleanup(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runCleanup(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

func (cm *CleanupManager) runCleanup(ctx context.Context) {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	codesDeleted, err := cm.codes.DeleteExpired(cleanupCtx)
	if err != nil {
		cm.logger.Error("failed to purge expired verification codes", slog.Any("error", err))
	}

	resetsDeleted, err := cm.resets.DeleteExpired(cleanupCtx)
	if err != nil {
		cm.logger.Error("failed to purge expired reset tokens", slog.Any("error", err))
	}

	if codesDeleted > 0 || resetsDeleted > 0 {
		cm.logger.Info("expired auth artifact cleanup completed",
			slog.Int64("codes_deleted", codesDeleted),
			slog.Int64("reset_tokens_deleted", resetsDeleted),
		)
	}
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}
