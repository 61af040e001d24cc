package auth

import (
	"context"

	"github.com/bozorline/shop-backend/pkg/logger"
)

// CodeNotifier delivers a verification code to the account owner.
type CodeNotifier interface {
	SendVerificationCode(ctx context.Context, email, code string) error
}

// LogNotifier writes verification codes to the log. It stands in for a real
// mail integration in dev and test environments.
type LogNotifier struct {
	logg *logger.Logger
}

// NewLogNotifier builds the log-backed notifier.
func NewLogNotifier(logg *logger.Logger) *LogNotifier {
	return &LogNotifier{logg: logg}
}

// SendVerificationCode logs the code instead of emailing it.
func (n *LogNotifier) SendVerificationCode(ctx context.Context, email, code string) error {
	ctx = n.logg.WithFields(ctx, map[string]any{"email": email, "code": code})
	n.logg.Info(ctx, "verification code issued")
	return nil
}
