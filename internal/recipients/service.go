package recipients

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"github.com/coursetrak/coursetrak-backend/pkg/enums"
	pkgerrors "github.com/coursetrak/coursetrak-backend/pkg/errors"
	"github.com/coursetrak/coursetrak-backend/pkg/logger"

	"github.com/coursetrak/coursetrak-backend/pkg/db/models"
	dbtypes "github.com/coursetrak/coursetrak-backend/pkg/db/types"
)

var validate = validator.New()

// Service resolves notification recipients per event type.
type Service interface {
	// Resolve returns the validated recipient list for the event type.
	// Invalid addresses are dropped silently; a missing configuration
	// resolves to an empty list, never an error.
	Resolve(ctx context.Context, eventType enums.EventType) ([]string, error)
	// ResolveRaw accepts either a canonical event-type string or a legacy
	// operation string and normalizes to the same resolution path.
	ResolveRaw(ctx context.Context, typeOrOperation string) ([]string, error)
	Set(ctx context.Context, eventType enums.EventType, addresses []string) error
	All(ctx context.Context) (map[enums.EventType][]string, error)
}

// ServiceParams wires the recipients dependencies.
type ServiceParams struct {
	Repository Repository
	Logger     *logger.Logger
}

type service struct {
	repo Repository
	logg *logger.Logger
}

// NewService wires recipient resolution.
func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "recipients repository required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &service{repo: params.Repository, logg: params.Logger}, nil
}

func (s *service) Resolve(ctx context.Context, eventType enums.EventType) ([]string, error) {
	if !eventType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid event type")
	}

	setting, err := s.repo.GetByEventType(ctx, eventType)
	if err == nil {
		return s.filterValid(ctx, setting.Recipients), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load recipient setting")
	}

	// No per-type row; fall back to the legacy single recipient keyed by
	// the coarse operation.
	legacy, err := s.repo.GetLegacy(ctx, eventType.Operation())
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load legacy recipient setting")
	}
	return s.filterValid(ctx, []string{legacy.Recipient}), nil
}

func (s *service) ResolveRaw(ctx context.Context, typeOrOperation string) ([]string, error) {
	if eventType, err := enums.ParseEventType(typeOrOperation); err == nil {
		return s.Resolve(ctx, eventType)
	}

	operation, err := enums.ParseOperation(typeOrOperation)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown event type or operation")
	}
	legacy, err := s.repo.GetLegacy(ctx, operation)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load legacy recipient setting")
	}
	return s.filterValid(ctx, []string{legacy.Recipient}), nil
}

// Set validates and stores the full recipient list for one event type.
// Unlike Resolve, writes fail loudly on a malformed address.
func (s *service) Set(ctx context.Context, eventType enums.EventType, addresses []string) error {
	if !eventType.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid event type")
	}

	cleaned := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		if err := validate.Var(addr, "email"); err != nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "invalid recipient address").WithDetails(addr)
		}
		cleaned = append(cleaned, addr)
	}

	setting := &models.RecipientSetting{
		EventType:  eventType,
		Recipients: dbtypes.StringList(cleaned),
	}
	if err := s.repo.Upsert(ctx, setting); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save recipient setting")
	}
	return nil
}

func (s *service) All(ctx context.Context) (map[enums.EventType][]string, error) {
	settings, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list recipient settings")
	}

	out := make(map[enums.EventType][]string, len(settings))
	for _, setting := range settings {
		out[setting.EventType] = s.filterValid(ctx, setting.Recipients)
	}
	return out, nil
}

func (s *service) filterValid(ctx context.Context, addresses []string) []string {
	valid := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		if err := validate.Var(addr, "email"); err != nil {
			logCtx := s.logg.WithRecipient(ctx, addr)
			s.logg.Warn(logCtx, "dropping malformed recipient address")
			continue
		}
		valid = append(valid, addr)
	}
	return valid
}
