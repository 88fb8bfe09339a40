package db

const (
	InsertJob = `
		INSERT INTO print_jobs (id, order_id, order_number, restaurant_id, target_printer_id, items_json, priority, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	SelectJobColumns = `
		SELECT id, order_id, order_number, restaurant_id, target_printer_id, items_json, priority, status, error_message, claimed_by, claimed_at, created_at, updated_at
		FROM print_jobs
	`

	GetJobByID = SelectJobColumns + ` WHERE id = ?`

	ListPendingByPrinter = SelectJobColumns + `
		WHERE target_printer_id = ? AND status = 'pending'
		ORDER BY priority ASC, created_at ASC
		LIMIT ?
	`

	ListByPrinterAndStatus = SelectJobColumns + `
		WHERE target_printer_id = ? AND status = ?
		ORDER BY priority ASC, created_at ASC
		LIMIT ?
	`

	ListByPrinter = SelectJobColumns + `
		WHERE target_printer_id = ?
		ORDER BY priority ASC, created_at ASC
		LIMIT ?
	`

	ListByOrder = SelectJobColumns + ` WHERE order_id = ? ORDER BY created_at ASC`

	ListByOrderAndStatus = SelectJobColumns + ` WHERE order_id = ? AND status = ? ORDER BY created_at ASC`

	ListRecentTerminal = SelectJobColumns + `
		WHERE restaurant_id = ? AND status IN ('completed', 'failed', 'cancelled') AND updated_at >= ?
		ORDER BY updated_at DESC
	`

	// ClaimJob flips exactly one pending row to claimed; the status guard in
	// the WHERE clause is the compare-and-set that prevents double claims.
	ClaimJob = `
		UPDATE print_jobs
		SET status = 'claimed', claimed_by = ?, claimed_at = ?, updated_at = ?
		WHERE id = ? AND status = 'pending'
	`

	// FinishJob only fires for non-terminal rows; a retried report against a
	// terminal row matches nothing and is treated as an idempotent success.
	FinishJob = `
		UPDATE print_jobs
		SET status = ?, error_message = ?, updated_at = ?
		WHERE id = ? AND status IN ('pending', 'claimed')
	`

	ReleaseExpiredClaims = `
		UPDATE print_jobs
		SET status = 'pending', claimed_by = '', claimed_at = NULL, updated_at = ?
		WHERE status = 'claimed' AND claimed_at < ?
	`

	CountJobsByStatus = `
		SELECT status, COUNT(*) FROM print_jobs WHERE restaurant_id = ? GROUP BY status
	`

	CountJobPrinters = `
		SELECT COUNT(DISTINCT target_printer_id) FROM print_jobs WHERE restaurant_id = ?
	`

	DeleteTerminalBefore = `
		DELETE FROM print_jobs
		WHERE status IN ('completed', 'failed', 'cancelled') AND updated_at < ?
	`

	SelectTerminalBefore = SelectJobColumns + `
		WHERE status IN ('completed', 'failed', 'cancelled') AND updated_at < ?
	`
)

const (
	UpsertPrinter = `
		INSERT INTO printers (id, restaurant_id, name, mode, address, port, type, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, mode = excluded.mode, address = excluded.address,
			port = excluded.port, type = excluded.type
	`

	GetPrinterByID = `
		SELECT id, restaurant_id, name, mode, address, port, type, status, last_connected_at, created_at
		FROM printers WHERE id = ?
	`

	ListPrintersByRestaurant = `
		SELECT id, restaurant_id, name, mode, address, port, type, status, last_connected_at, created_at
		FROM printers WHERE restaurant_id = ? ORDER BY name ASC
	`

	ListAllPrinters = `
		SELECT id, restaurant_id, name, mode, address, port, type, status, last_connected_at, created_at
		FROM printers ORDER BY name ASC
	`

	UpdatePrinterStatus = `
		UPDATE printers SET status = ?, last_connected_at = ? WHERE id = ?
	`
)

const (
	InsertAssignment = `
		INSERT INTO printer_assignments (id, restaurant_id, printer_id, assignment_type, target_id, priority, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	UpdateAssignment = `
		UPDATE printer_assignments
		SET printer_id = ?, assignment_type = ?, target_id = ?, priority = ?, is_active = ?
		WHERE id = ?
	`

	SetAssignmentActive = `
		UPDATE printer_assignments SET is_active = ? WHERE id = ?
	`

	ListAssignmentsByRestaurant = `
		SELECT id, restaurant_id, printer_id, assignment_type, target_id, priority, is_active, created_at
		FROM printer_assignments WHERE restaurant_id = ?
		ORDER BY created_at DESC
	`
)
