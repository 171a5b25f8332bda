package rechequeo

import (
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/avatarctic/survey-admin/internal/core/domain/cache"
)

// Rechequeo is a scheduled follow-up survey of a company.
type Rechequeo struct {
	ID              uuid.UUID `json:"id" db:"id"`
	EmpresaID       uuid.UUID `json:"empresa_id" db:"empresa_id"`
	Empresa         string    `json:"empresa" db:"empresa"`
	Estado          Estado    `json:"estado" db:"estado"`
	Region          string    `json:"region" db:"region"`
	Tipo            string    `json:"tipo" db:"tipo"`
	Puntaje         *float64  `json:"puntaje,omitempty" db:"puntaje"`
	FechaProgramada time.Time `json:"fecha_programada" db:"fecha_programada"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// ErrInvalid marks a request rejected by validation.
var ErrInvalid = errors.New("invalid rechequeo request")

type Estado string

const (
	EstadoPendiente  Estado = "pendiente"
	EstadoEnCurso    Estado = "en_curso"
	EstadoCompletado Estado = "completado"
	EstadoCancelado  Estado = "cancelado"
)

// Estados lists every valid state.
var Estados = []Estado{EstadoPendiente, EstadoEnCurso, EstadoCompletado, EstadoCancelado}

func (e Estado) Valid() bool {
	return slices.Contains(Estados, e)
}

// Cache key prefixes. Every key of this domain lives under KeyNamespace.
const (
	KeyNamespace     = "rechequeos"
	KeyPrefixList    = KeyNamespace + ":list"
	KeyPrefixCount   = KeyNamespace + ":count"
	KeyPrefixKPIs    = KeyNamespace + ":kpis"
	KeyPrefixFilters = KeyNamespace + ":filters"
)

// Filter narrows listings and KPI aggregates. Zero values mean "no filter".
type Filter struct {
	Estados  []string   `json:"estados,omitempty" query:"estado"`
	Regiones []string   `json:"regiones,omitempty" query:"region"`
	Tipos    []string   `json:"tipos,omitempty" query:"tipo"`
	Empresa  string     `json:"empresa,omitempty" query:"empresa"`
	Desde    *time.Time `json:"desde,omitempty"`
	Hasta    *time.Time `json:"hasta,omitempty"`
	Limit    int        `json:"limit" query:"limit"`
	Offset   int        `json:"offset" query:"offset"`
}

// Normalize clamps pagination to sane bounds.
func (f *Filter) Normalize() {
	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Limit > 200 {
		f.Limit = 200
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}

// CacheParams returns the parameters identifying the filtered result set,
// without pagination.
func (f Filter) CacheParams() cache.Params {
	return cache.Params{
		"estados":  f.Estados,
		"regiones": f.Regiones,
		"tipos":    f.Tipos,
		"empresa":  f.Empresa,
		"desde":    f.Desde,
		"hasta":    f.Hasta,
	}
}

// PageCacheParams returns CacheParams plus pagination.
func (f Filter) PageCacheParams() cache.Params {
	p := f.CacheParams()
	p["limit"] = f.Limit
	p["offset"] = f.Offset
	return p
}

// KPIs are the aggregate indicators of the dashboard.
type KPIs struct {
	Total           int      `json:"total" db:"total"`
	Pendientes      int      `json:"pendientes" db:"pendientes"`
	EnCurso         int      `json:"en_curso" db:"en_curso"`
	Completados     int      `json:"completados" db:"completados"`
	Cancelados      int      `json:"cancelados" db:"cancelados"`
	PuntajePromedio *float64 `json:"puntaje_promedio,omitempty" db:"puntaje_promedio"`
	TasaCompletado  float64  `json:"tasa_completado" db:"-"`
}

// ComputeRates fills derived indicators.
func (k *KPIs) ComputeRates() {
	active := k.Total - k.Cancelados
	if active <= 0 {
		k.TasaCompletado = 0
		return
	}
	k.TasaCompletado = float64(k.Completados) / float64(active)
}

// FilterOptions are the distinct values the listing can be filtered by.
type FilterOptions struct {
	Estados  []string `json:"estados"`
	Regiones []string `json:"regiones"`
	Tipos    []string `json:"tipos"`
	Empresas []string `json:"empresas"`
}

// Page is a paginated listing.
type Page struct {
	Items  []*Rechequeo `json:"items"`
	Total  int          `json:"total"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

type CreateRechequeoRequest struct {
	EmpresaID       uuid.UUID `json:"empresa_id" validate:"required"`
	Empresa         string    `json:"empresa" validate:"required"`
	Region          string    `json:"region" validate:"required"`
	Tipo            string    `json:"tipo" validate:"required"`
	FechaProgramada time.Time `json:"fecha_programada" validate:"required"`
}
