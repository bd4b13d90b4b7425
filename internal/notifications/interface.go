package notifications

import (
	"context"

	"github.com/oceanwatch/hazard-monitor/internal/models"
)

// Notifier delivers alerts about high-confidence disaster posts
type Notifier interface {
	SendAlert(ctx context.Context, alert *models.Alert) error
	Enabled() bool
}
