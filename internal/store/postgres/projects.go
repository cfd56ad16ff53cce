package postgres

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/surveypulse/dialer-core/internal/domain"
)

var tracer = otel.Tracer("github.com/surveypulse/dialer-core/internal/store/postgres")

func dbSpan(ctx domain.Context, op, table string) (domain.Context, func()) {
	ctx, span := tracer.Start(ctx, op)
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.sql.table", table),
	)
	return ctx, span.End
}

func (tx *pgTx) GetProject(ctx domain.Context, id string) (domain.Project, error) {
	ctx, end := dbSpan(ctx, "projects.Get", "projects")
	defer end()

	q := `SELECT id, code, name, status FROM projects WHERE id = $1`
	var p domain.Project
	err := tx.tx.QueryRow(ctx, q, id).Scan(&p.ID, &p.Code, &p.Name, &p.Status)
	if err != nil {
		return domain.Project{}, mapErr("project.get", err)
	}
	return p, nil
}
