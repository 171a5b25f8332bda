package ports

import (
	"context"

	"github.com/avatarctic/survey-admin/internal/core/domain/rechequeo"
)

// RechequeoRepository defines the data operations behind the rechequeo dashboard.
type RechequeoRepository interface {
	Create(ctx context.Context, r *rechequeo.Rechequeo) error
	List(ctx context.Context, filter rechequeo.Filter) ([]*rechequeo.Rechequeo, error)
	Count(ctx context.Context, filter rechequeo.Filter) (int, error)
	KPIs(ctx context.Context, filter rechequeo.Filter) (*rechequeo.KPIs, error)
	FilterOptions(ctx context.Context) (*rechequeo.FilterOptions, error)
}

// RechequeoService defines the rechequeo business logic.
type RechequeoService interface {
	CreateRechequeo(ctx context.Context, req *rechequeo.CreateRechequeoRequest) (*rechequeo.Rechequeo, error)
	ListRechequeos(ctx context.Context, filter rechequeo.Filter) (*rechequeo.Page, error)
	GetKPIs(ctx context.Context, filter rechequeo.Filter) (*rechequeo.KPIs, error)
	GetFilterOptions(ctx context.Context) (*rechequeo.FilterOptions, error)
}
