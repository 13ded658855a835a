package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/hrygo/carenotes/store"
)

func (d *DB) CreateCareNote(ctx context.Context, create *store.CareNote) (*store.CareNote, error) {
	stmt := `INSERT INTO care_note (uid, tenant_id, facility_id, patient_id, category, priority, created_ts, created_by)
		VALUES (` + placeholders(8) + `)
		RETURNING id`

	if err := d.db.QueryRowContext(ctx, stmt,
		create.UID, create.TenantID, create.FacilityID, create.PatientID,
		create.Category, create.Priority, create.CreatedTs, create.CreatedBy,
	).Scan(&create.ID); err != nil {
		return nil, fmt.Errorf("failed to create care note: %w", err)
	}

	return create, nil
}

func (d *DB) CreateCareNotes(ctx context.Context, creates []*store.CareNote) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO care_note (uid, tenant_id, facility_id, patient_id, category, priority, created_ts, created_by)
		VALUES (`+placeholders(8)+`)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, create := range creates {
		if _, err := stmt.ExecContext(ctx,
			create.UID, create.TenantID, create.FacilityID, create.PatientID,
			create.Category, create.Priority, create.CreatedTs, create.CreatedBy,
		); err != nil {
			return fmt.Errorf("failed to insert care note batch: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit care note batch: %w", err)
	}
	return nil
}

func (d *DB) ListCareNotes(ctx context.Context, find *store.FindCareNote) ([]*store.CareNote, error) {
	where, args := buildFindCareNoteWhere(find)

	query := `
		SELECT id, uid, tenant_id, facility_id, patient_id, category, priority, created_ts, created_by
		FROM care_note
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY care_note.created_ts DESC, care_note.id DESC`

	if find.Limit != nil {
		query = fmt.Sprintf("%s LIMIT %d", query, *find.Limit)
		if find.Offset != nil {
			query = fmt.Sprintf("%s OFFSET %d", query, *find.Offset)
		}
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query care notes: %w", err)
	}
	defer rows.Close()

	list := make([]*store.CareNote, 0)
	for rows.Next() {
		var note store.CareNote
		if err := rows.Scan(
			&note.ID,
			&note.UID,
			&note.TenantID,
			&note.FacilityID,
			&note.PatientID,
			&note.Category,
			&note.Priority,
			&note.CreatedTs,
			&note.CreatedBy,
		); err != nil {
			return nil, fmt.Errorf("failed to scan care note: %w", err)
		}
		list = append(list, &note)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate care notes: %w", err)
	}

	return list, nil
}

func (d *DB) CountCareNoteGroups(ctx context.Context, find *store.FindCareNote) ([]*store.CareNoteGroupCount, error) {
	where, args := buildFindCareNoteWhere(find)

	query := `
		SELECT category, priority, facility_id, COUNT(*)
		FROM care_note
		WHERE ` + strings.Join(where, " AND ") + `
		GROUP BY category, priority, facility_id`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query care note groups: %w", err)
	}
	defer rows.Close()

	list := make([]*store.CareNoteGroupCount, 0)
	for rows.Next() {
		var group store.CareNoteGroupCount
		if err := rows.Scan(&group.Category, &group.Priority, &group.FacilityID, &group.Count); err != nil {
			return nil, fmt.Errorf("failed to scan care note group: %w", err)
		}
		list = append(list, &group)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate care note groups: %w", err)
	}

	return list, nil
}

func (d *DB) CountDistinctPatients(ctx context.Context, find *store.FindCareNote) (int64, error) {
	where, args := buildFindCareNoteWhere(find)

	query := `SELECT COUNT(DISTINCT patient_id) FROM care_note WHERE ` + strings.Join(where, " AND ")

	var count int64
	if err := d.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count distinct patients: %w", err)
	}
	return count, nil
}

func buildFindCareNoteWhere(find *store.FindCareNote) ([]string, []any) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.TenantID; v != nil {
		where, args = append(where, "care_note.tenant_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.PatientID; v != nil {
		where, args = append(where, "care_note.patient_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if start, end, ok := find.DayRange(); ok {
		where, args = append(where, "care_note.created_ts >= "+placeholder(len(args)+1)), append(args, start)
		where, args = append(where, "care_note.created_ts < "+placeholder(len(args)+1)), append(args, end)
	}
	if len(find.FacilityIDs) > 0 {
		list := []string{}
		for _, id := range find.FacilityIDs {
			list = append(list, placeholder(len(args)+1))
			args = append(args, id)
		}
		where = append(where, "care_note.facility_id IN ("+strings.Join(list, ", ")+")")
	}

	return where, args
}
