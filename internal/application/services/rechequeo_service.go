package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/avatarctic/survey-admin/internal/core/domain/rechequeo"
	"github.com/avatarctic/survey-admin/internal/core/ports"
)

type RechequeoService struct {
	repo   ports.RechequeoRepository
	logger *logrus.Logger
	now    func() time.Time
}

// NewRechequeoService builds the service. repo is normally the caching decorator,
// so reads are served from the cache and Create invalidates it.
func NewRechequeoService(repo ports.RechequeoRepository, logger *logrus.Logger) ports.RechequeoService {
	return &RechequeoService{repo: repo, logger: logger, now: time.Now}
}

func (s *RechequeoService) CreateRechequeo(ctx context.Context, req *rechequeo.CreateRechequeoRequest) (*rechequeo.Rechequeo, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: empty request", rechequeo.ErrInvalid)
	}
	var missing []string
	if req.EmpresaID == uuid.Nil {
		missing = append(missing, "empresa_id")
	}
	if strings.TrimSpace(req.Empresa) == "" {
		missing = append(missing, "empresa")
	}
	if strings.TrimSpace(req.Region) == "" {
		missing = append(missing, "region")
	}
	if strings.TrimSpace(req.Tipo) == "" {
		missing = append(missing, "tipo")
	}
	if req.FechaProgramada.IsZero() {
		missing = append(missing, "fecha_programada")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", rechequeo.ErrInvalid, strings.Join(missing, ", "))
	}

	r := &rechequeo.Rechequeo{
		ID:              uuid.New(),
		EmpresaID:       req.EmpresaID,
		Empresa:         strings.TrimSpace(req.Empresa),
		Estado:          rechequeo.EstadoPendiente,
		Region:          strings.TrimSpace(req.Region),
		Tipo:            strings.TrimSpace(req.Tipo),
		FechaProgramada: req.FechaProgramada,
		CreatedAt:       s.now().UTC(),
	}
	if err := s.repo.Create(ctx, r); err != nil {
		if s.logger != nil {
			s.logger.WithFields(logrus.Fields{"empresa_id": req.EmpresaID}).WithError(err).Error("failed to create rechequeo in repo")
		}
		return nil, fmt.Errorf("failed to create rechequeo: %w", err)
	}
	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{"id": r.ID, "empresa_id": r.EmpresaID}).Info("rechequeo created")
	}
	return r, nil
}

func (s *RechequeoService) ListRechequeos(ctx context.Context, filter rechequeo.Filter) (*rechequeo.Page, error) {
	if err := validateFilter(filter); err != nil {
		return nil, err
	}
	filter.Normalize()

	items, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list rechequeos: %w", err)
	}
	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count rechequeos: %w", err)
	}
	if items == nil {
		items = []*rechequeo.Rechequeo{}
	}
	return &rechequeo.Page{Items: items, Total: total, Limit: filter.Limit, Offset: filter.Offset}, nil
}

func (s *RechequeoService) GetKPIs(ctx context.Context, filter rechequeo.Filter) (*rechequeo.KPIs, error) {
	if err := validateFilter(filter); err != nil {
		return nil, err
	}
	// KPIs ignore pagination; zero it so equivalent requests share a cache entry.
	filter.Limit, filter.Offset = 0, 0
	k, err := s.repo.KPIs(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to compute kpis: %w", err)
	}
	out := *k
	out.ComputeRates()
	return &out, nil
}

func (s *RechequeoService) GetFilterOptions(ctx context.Context) (*rechequeo.FilterOptions, error) {
	opts, err := s.repo.FilterOptions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load filter options: %w", err)
	}
	return opts, nil
}

func validateFilter(f rechequeo.Filter) error {
	for _, e := range f.Estados {
		if !rechequeo.Estado(e).Valid() {
			return fmt.Errorf("%w: unknown estado %q", rechequeo.ErrInvalid, e)
		}
	}
	if f.Desde != nil && f.Hasta != nil && f.Hasta.Before(*f.Desde) {
		return fmt.Errorf("%w: hasta before desde", rechequeo.ErrInvalid)
	}
	return nil
}
