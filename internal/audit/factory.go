package audit

import (
	"fmt"

	"github.com/tenantgate/tenant-gate/internal/config"
	apperrors "github.com/tenantgate/tenant-gate/internal/pkg/errors"
)

// NewBus creates a Bus instance based on the configuration. A "none" type
// returns nil; callers treat a nil bus as auditing disabled.
func NewBus(cfg config.AuditConfig, brokers []string) (Bus, error) {
	switch cfg.Type {
	case "memory", "":
		return NewMemoryBus(), nil

	case "kafka":
		if len(brokers) == 0 {
			return nil, apperrors.New(apperrors.CodeValidation, "kafka brokers not configured")
		}
		return NewKafkaBus(KafkaConfig{
			Brokers: brokers,
		})

	case "none":
		return nil, nil

	default:
		return nil, apperrors.New(apperrors.CodeValidation, fmt.Sprintf("unknown audit bus type: %s", cfg.Type))
	}
}
