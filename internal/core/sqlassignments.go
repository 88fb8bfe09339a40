package core

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/platewise/printrelay/internal/db"
)

// SQLAssignmentPersister stores assignment rules in sqlite.
type SQLAssignmentPersister struct {
	db *sql.DB
}

func NewSQLAssignmentPersister(database *sql.DB) *SQLAssignmentPersister {
	return &SQLAssignmentPersister{db: database}
}

func (p *SQLAssignmentPersister) InsertAssignment(ctx context.Context, a *PrinterAssignment) error {
	_, err := p.db.ExecContext(ctx, db.InsertAssignment,
		a.ID, a.RestaurantID, a.PrinterID, string(a.Type), a.TargetID,
		a.Priority, boolToInt(a.IsActive), a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert assignment: %w", err)
	}
	return nil
}

func (p *SQLAssignmentPersister) UpdateAssignment(ctx context.Context, a *PrinterAssignment) error {
	_, err := p.db.ExecContext(ctx, db.UpdateAssignment,
		a.PrinterID, string(a.Type), a.TargetID, a.Priority, boolToInt(a.IsActive), a.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update assignment: %w", err)
	}
	return nil
}

func (p *SQLAssignmentPersister) SetAssignmentActive(ctx context.Context, id string, active bool) error {
	_, err := p.db.ExecContext(ctx, db.SetAssignmentActive, boolToInt(active), id)
	if err != nil {
		return fmt.Errorf("failed to set assignment active flag: %w", err)
	}
	return nil
}

func (p *SQLAssignmentPersister) ListAssignments(ctx context.Context, restaurantID string) ([]PrinterAssignment, error) {
	rows, err := p.db.QueryContext(ctx, db.ListAssignmentsByRestaurant, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer rows.Close()

	var out []PrinterAssignment
	for rows.Next() {
		var a PrinterAssignment
		var active int
		err := rows.Scan(&a.ID, &a.RestaurantID, &a.PrinterID, &a.Type, &a.TargetID, &a.Priority, &active, &a.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		a.IsActive = active == 1
		out = append(out, a)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
