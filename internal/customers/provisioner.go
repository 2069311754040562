package customers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joao-fontenele/storefront/internal/domain"
)

type ProvisionStore interface {
	Provision(ctx context.Context, event domain.UserCreatedEvent) (bool, error)
}

// Provisioner consumes user.created events and gives every new account
// exactly one customer profile.
type Provisioner struct {
	store  ProvisionStore
	logger *slog.Logger
}

func NewProvisioner(store ProvisionStore, logger *slog.Logger) *Provisioner {
	return &Provisioner{
		store:  store,
		logger: logger,
	}
}

func (p *Provisioner) Handle(ctx context.Context, payload []byte) error {
	var event domain.UserCreatedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		// A malformed message would otherwise block the partition forever.
		p.logger.Error("dropping malformed user created event", "error", err)
		return nil
	}

	event.UserID = strings.TrimSpace(event.UserID)
	if event.UserID == "" {
		p.logger.Error("dropping user created event without user id")
		return nil
	}

	created, err := p.store.Provision(ctx, event)
	if err != nil {
		return fmt.Errorf("provision customer for user %s: %w", event.UserID, err)
	}

	if created {
		p.logger.Info("customer provisioned", "user_id", event.UserID)
	} else {
		p.logger.Info("customer already provisioned", "user_id", event.UserID)
	}
	return nil
}
