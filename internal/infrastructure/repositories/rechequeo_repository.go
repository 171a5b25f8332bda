package repositories

import (
	"context"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/avatarctic/survey-admin/internal/core/domain/rechequeo"
	"github.com/avatarctic/survey-admin/internal/core/ports"
	"github.com/avatarctic/survey-admin/internal/infrastructure/db"
)

// RechequeoRepository implements the rechequeo repository interface on PostgreSQL.
type RechequeoRepository struct {
	db     *db.Database
	logger *logrus.Logger
}

// NewRechequeoRepository creates a new rechequeo repository
func NewRechequeoRepository(database *db.Database, logger *logrus.Logger) ports.RechequeoRepository {
	return &RechequeoRepository{
		db:     database,
		logger: logger,
	}
}

// Create inserts a rechequeo.
func (r *RechequeoRepository) Create(ctx context.Context, rc *rechequeo.Rechequeo) error {
	query := `
		INSERT INTO rechequeos (id, empresa_id, empresa, estado, region, tipo, puntaje, fecha_programada, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.DB.ExecContext(ctx, query,
		rc.ID, rc.EmpresaID, rc.Empresa, rc.Estado, rc.Region, rc.Tipo, rc.Puntaje, rc.FechaProgramada, rc.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create rechequeo: %w", err)
	}
	return nil
}

// List returns one page of rechequeos matching filter, newest schedule first.
func (r *RechequeoRepository) List(ctx context.Context, filter rechequeo.Filter) ([]*rechequeo.Rechequeo, error) {
	where, args := buildRechequeoWhere(filter)
	args = append(args, filter.Limit, filter.Offset)
	query := fmt.Sprintf(`
		SELECT id, empresa_id, empresa, estado, region, tipo, puntaje, fecha_programada, created_at
		FROM rechequeos
		%s
		ORDER BY fecha_programada DESC, id
		LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))

	items := []*rechequeo.Rechequeo{}
	if err := r.db.DB.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list rechequeos: %w", err)
	}
	return items, nil
}

// Count returns the number of rechequeos matching filter.
func (r *RechequeoRepository) Count(ctx context.Context, filter rechequeo.Filter) (int, error) {
	where, args := buildRechequeoWhere(filter)
	var count int
	if err := r.db.DB.GetContext(ctx, &count, "SELECT COUNT(*) FROM rechequeos "+where, args...); err != nil {
		return 0, fmt.Errorf("failed to count rechequeos: %w", err)
	}
	return count, nil
}

// KPIs aggregates the dashboard indicators for filter.
func (r *RechequeoRepository) KPIs(ctx context.Context, filter rechequeo.Filter) (*rechequeo.KPIs, error) {
	where, args := buildRechequeoWhere(filter)
	query := `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE estado = 'pendiente') AS pendientes,
			COUNT(*) FILTER (WHERE estado = 'en_curso') AS en_curso,
			COUNT(*) FILTER (WHERE estado = 'completado') AS completados,
			COUNT(*) FILTER (WHERE estado = 'cancelado') AS cancelados,
			AVG(puntaje) AS puntaje_promedio
		FROM rechequeos ` + where

	var k rechequeo.KPIs
	if err := r.db.DB.GetContext(ctx, &k, query, args...); err != nil {
		if r.logger != nil {
			r.logger.WithError(err).Error("failed to compute rechequeo KPIs")
		}
		return nil, fmt.Errorf("failed to compute rechequeo KPIs: %w", err)
	}
	return &k, nil
}

// FilterOptions returns the distinct values of every filterable column.
func (r *RechequeoRepository) FilterOptions(ctx context.Context) (*rechequeo.FilterOptions, error) {
	opts := &rechequeo.FilterOptions{}
	columns := []struct {
		column string
		dest   *[]string
	}{
		{"estado", &opts.Estados},
		{"region", &opts.Regiones},
		{"tipo", &opts.Tipos},
		{"empresa", &opts.Empresas},
	}
	for _, c := range columns {
		values := []string{}
		query := fmt.Sprintf("SELECT DISTINCT %[1]s FROM rechequeos WHERE %[1]s <> '' ORDER BY %[1]s", c.column)
		if err := r.db.DB.SelectContext(ctx, &values, query); err != nil {
			return nil, fmt.Errorf("failed to load %s options: %w", c.column, err)
		}
		*c.dest = values
	}
	return opts, nil
}

// buildRechequeoWhere renders filter as a WHERE clause with positional arguments.
func buildRechequeoWhere(f rechequeo.Filter) (string, []any) {
	var clauses []string
	var args []any
	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if len(f.Estados) > 0 {
		add("estado = ANY($%d)", pq.Array(f.Estados))
	}
	if len(f.Regiones) > 0 {
		add("region = ANY($%d)", pq.Array(f.Regiones))
	}
	if len(f.Tipos) > 0 {
		add("tipo = ANY($%d)", pq.Array(f.Tipos))
	}
	if f.Empresa != "" {
		add("empresa ILIKE $%d", "%"+f.Empresa+"%")
	}
	if f.Desde != nil {
		add("fecha_programada >= $%d", *f.Desde)
	}
	if f.Hasta != nil {
		add("fecha_programada <= $%d", *f.Hasta)
	}
	if len(clauses) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}
