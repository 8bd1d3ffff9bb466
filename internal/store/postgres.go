package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// Ping verifies the database connection is alive
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ---- Clients ----

func (s *PostgresStore) ListClients(ctx context.Context, userID string) ([]Client, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, email, phone, address, postcode, notes, created_at, updated_at
		FROM clients
		WHERE user_id=$1
		ORDER BY name ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	items := make([]Client, 0)
	for rows.Next() {
		var item Client
		if err := rows.Scan(&item.ID, &item.UserID, &item.Name, &item.Email, &item.Phone, &item.Address, &item.Postcode, &item.Notes, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate clients: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetClient(ctx context.Context, userID, clientID string) (Client, error) {
	var item Client
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, email, phone, address, postcode, notes, created_at, updated_at
		FROM clients
		WHERE id=$1 AND user_id=$2
	`, clientID, userID).Scan(&item.ID, &item.UserID, &item.Name, &item.Email, &item.Phone, &item.Address, &item.Postcode, &item.Notes, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Client{}, err
	}
	return item, nil
}

func (s *PostgresStore) InsertClient(ctx context.Context, item Client) (Client, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO clients (id, user_id, name, email, phone, address, postcode, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`, item.ID, item.UserID, item.Name, item.Email, item.Phone, item.Address, item.Postcode, item.Notes).Scan(&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Client{}, fmt.Errorf("insert client: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) UpdateClient(ctx context.Context, item Client) (Client, error) {
	err := s.db.QueryRowContext(ctx, `
		UPDATE clients
		SET name=$3, email=$4, phone=$5, address=$6, postcode=$7, notes=$8, updated_at=NOW()
		WHERE id=$1 AND user_id=$2
		RETURNING created_at, updated_at
	`, item.ID, item.UserID, item.Name, item.Email, item.Phone, item.Address, item.Postcode, item.Notes).Scan(&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Client{}, fmt.Errorf("update client: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) DeleteClient(ctx context.Context, userID, clientID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM clients WHERE id=$1 AND user_id=$2`, clientID, userID)
	if err != nil {
		return fmt.Errorf("delete client: %w", err)
	}
	return nil
}

// ---- Gas safety records ----

const gasSafetyColumns = `id, user_id, client_id, certificate_number, property_address, inspection_date, next_due_date, appliances, defects, remedial_work, engineer_name, gas_safe_number, created_at, updated_at`

func scanGasSafetyRecord(scan func(dest ...any) error) (GasSafetyRecord, error) {
	var item GasSafetyRecord
	var appliancesRaw []byte
	err := scan(&item.ID, &item.UserID, &item.ClientID, &item.CertificateNumber, &item.PropertyAddress, &item.InspectionDate, &item.NextDueDate, &appliancesRaw, &item.Defects, &item.RemedialWork, &item.EngineerName, &item.GasSafeNumber, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return GasSafetyRecord{}, err
	}
	if err := json.Unmarshal(appliancesRaw, &item.Appliances); err != nil {
		return GasSafetyRecord{}, fmt.Errorf("decode appliances: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) ListGasSafetyRecords(ctx context.Context, userID string) ([]GasSafetyRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+gasSafetyColumns+`
		FROM gas_safety_records
		WHERE user_id=$1
		ORDER BY next_due_date ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list gas safety records: %w", err)
	}
	defer rows.Close()

	items := make([]GasSafetyRecord, 0)
	for rows.Next() {
		item, err := scanGasSafetyRecord(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan gas safety record: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate gas safety records: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetGasSafetyRecord(ctx context.Context, userID, recordID string) (GasSafetyRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+gasSafetyColumns+`
		FROM gas_safety_records
		WHERE id=$1 AND user_id=$2
	`, recordID, userID)
	return scanGasSafetyRecord(row.Scan)
}

func (s *PostgresStore) InsertGasSafetyRecord(ctx context.Context, item GasSafetyRecord) (GasSafetyRecord, error) {
	appliances, err := encodeAppliances(item.Appliances)
	if err != nil {
		return GasSafetyRecord{}, err
	}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO gas_safety_records (id, user_id, client_id, certificate_number, property_address, inspection_date, next_due_date, appliances, defects, remedial_work, engineer_name, gas_safe_number)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9, $10, $11, $12)
		RETURNING created_at, updated_at
	`, item.ID, item.UserID, item.ClientID, item.CertificateNumber, item.PropertyAddress, item.InspectionDate, item.NextDueDate, appliances, item.Defects, item.RemedialWork, item.EngineerName, item.GasSafeNumber).Scan(&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return GasSafetyRecord{}, fmt.Errorf("insert gas safety record: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) UpdateGasSafetyRecord(ctx context.Context, item GasSafetyRecord) (GasSafetyRecord, error) {
	appliances, err := encodeAppliances(item.Appliances)
	if err != nil {
		return GasSafetyRecord{}, err
	}
	err = s.db.QueryRowContext(ctx, `
		UPDATE gas_safety_records
		SET client_id=$3, certificate_number=$4, property_address=$5, inspection_date=$6, next_due_date=$7, appliances=$8::jsonb, defects=$9, remedial_work=$10, engineer_name=$11, gas_safe_number=$12, updated_at=NOW()
		WHERE id=$1 AND user_id=$2
		RETURNING created_at, updated_at
	`, item.ID, item.UserID, item.ClientID, item.CertificateNumber, item.PropertyAddress, item.InspectionDate, item.NextDueDate, appliances, item.Defects, item.RemedialWork, item.EngineerName, item.GasSafeNumber).Scan(&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return GasSafetyRecord{}, fmt.Errorf("update gas safety record: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) DeleteGasSafetyRecord(ctx context.Context, userID, recordID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM gas_safety_records WHERE id=$1 AND user_id=$2`, recordID, userID)
	if err != nil {
		return fmt.Errorf("delete gas safety record: %w", err)
	}
	return nil
}

func encodeAppliances(appliances []Appliance) (string, error) {
	if appliances == nil {
		appliances = []Appliance{}
	}
	encoded, err := json.Marshal(appliances)
	if err != nil {
		return "", fmt.Errorf("encode appliances: %w", err)
	}
	return string(encoded), nil
}

// ---- Service checklists ----

func (s *PostgresStore) ListServiceChecklists(ctx context.Context, userID string) ([]ServiceChecklist, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, client_id, property_address, service_date, next_due_date, items, notes, created_at, updated_at
		FROM service_checklists
		WHERE user_id=$1
		ORDER BY next_due_date ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list service checklists: %w", err)
	}
	defer rows.Close()

	items := make([]ServiceChecklist, 0)
	for rows.Next() {
		var item ServiceChecklist
		var itemsRaw []byte
		if err := rows.Scan(&item.ID, &item.UserID, &item.ClientID, &item.PropertyAddress, &item.ServiceDate, &item.NextDueDate, &itemsRaw, &item.Notes, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan service checklist: %w", err)
		}
		if err := json.Unmarshal(itemsRaw, &item.Items); err != nil {
			return nil, fmt.Errorf("decode checklist items: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate service checklists: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) InsertServiceChecklist(ctx context.Context, item ServiceChecklist) (ServiceChecklist, error) {
	if item.Items == nil {
		item.Items = []ChecklistItem{}
	}
	encoded, err := json.Marshal(item.Items)
	if err != nil {
		return ServiceChecklist{}, fmt.Errorf("encode checklist items: %w", err)
	}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO service_checklists (id, user_id, client_id, property_address, service_date, next_due_date, items, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8)
		RETURNING created_at, updated_at
	`, item.ID, item.UserID, item.ClientID, item.PropertyAddress, item.ServiceDate, item.NextDueDate, string(encoded), item.Notes).Scan(&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return ServiceChecklist{}, fmt.Errorf("insert service checklist: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) UpdateServiceChecklist(ctx context.Context, item ServiceChecklist) (ServiceChecklist, error) {
	if item.Items == nil {
		item.Items = []ChecklistItem{}
	}
	encoded, err := json.Marshal(item.Items)
	if err != nil {
		return ServiceChecklist{}, fmt.Errorf("encode checklist items: %w", err)
	}
	err = s.db.QueryRowContext(ctx, `
		UPDATE service_checklists
		SET client_id=$3, property_address=$4, service_date=$5, next_due_date=$6, items=$7::jsonb, notes=$8, updated_at=NOW()
		WHERE id=$1 AND user_id=$2
		RETURNING created_at, updated_at
	`, item.ID, item.UserID, item.ClientID, item.PropertyAddress, item.ServiceDate, item.NextDueDate, string(encoded), item.Notes).Scan(&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return ServiceChecklist{}, fmt.Errorf("update service checklist: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) DeleteServiceChecklist(ctx context.Context, userID, checklistID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM service_checklists WHERE id=$1 AND user_id=$2`, checklistID, userID)
	if err != nil {
		return fmt.Errorf("delete service checklist: %w", err)
	}
	return nil
}

// ---- Invoices ----

func (s *PostgresStore) ListInvoices(ctx context.Context, userID string) ([]Invoice, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, client_id, invoice_number, status, issue_date, due_date, lines, subtotal, vat, total, notes, created_at, updated_at
		FROM invoices
		WHERE user_id=$1
		ORDER BY issue_date DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	items := make([]Invoice, 0)
	for rows.Next() {
		var item Invoice
		var linesRaw []byte
		if err := rows.Scan(&item.ID, &item.UserID, &item.ClientID, &item.InvoiceNumber, &item.Status, &item.IssueDate, &item.DueDate, &linesRaw, &item.Subtotal, &item.VAT, &item.Total, &item.Notes, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		if err := json.Unmarshal(linesRaw, &item.Lines); err != nil {
			return nil, fmt.Errorf("decode invoice lines: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invoices: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) InsertInvoice(ctx context.Context, item Invoice) (Invoice, error) {
	if item.Lines == nil {
		item.Lines = []InvoiceLine{}
	}
	encoded, err := json.Marshal(item.Lines)
	if err != nil {
		return Invoice{}, fmt.Errorf("encode invoice lines: %w", err)
	}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO invoices (id, user_id, client_id, invoice_number, status, issue_date, due_date, lines, subtotal, vat, total, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9, $10, $11, $12)
		RETURNING created_at, updated_at
	`, item.ID, item.UserID, item.ClientID, item.InvoiceNumber, item.Status, item.IssueDate, item.DueDate, string(encoded), item.Subtotal, item.VAT, item.Total, item.Notes).Scan(&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Invoice{}, fmt.Errorf("insert invoice: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) UpdateInvoice(ctx context.Context, item Invoice) (Invoice, error) {
	if item.Lines == nil {
		item.Lines = []InvoiceLine{}
	}
	encoded, err := json.Marshal(item.Lines)
	if err != nil {
		return Invoice{}, fmt.Errorf("encode invoice lines: %w", err)
	}
	err = s.db.QueryRowContext(ctx, `
		UPDATE invoices
		SET client_id=$3, invoice_number=$4, status=$5, issue_date=$6, due_date=$7, lines=$8::jsonb, subtotal=$9, vat=$10, total=$11, notes=$12, updated_at=NOW()
		WHERE id=$1 AND user_id=$2
		RETURNING created_at, updated_at
	`, item.ID, item.UserID, item.ClientID, item.InvoiceNumber, item.Status, item.IssueDate, item.DueDate, string(encoded), item.Subtotal, item.VAT, item.Total, item.Notes).Scan(&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Invoice{}, fmt.Errorf("update invoice: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) DeleteInvoice(ctx context.Context, userID, invoiceID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM invoices WHERE id=$1 AND user_id=$2`, invoiceID, userID)
	if err != nil {
		return fmt.Errorf("delete invoice: %w", err)
	}
	return nil
}

// ---- Form drafts ----

// UpsertDraft overwrites the single draft slot for (user, form type).
// The unique constraint on the pair makes the write last-write-wins.
func (s *PostgresStore) UpsertDraft(ctx context.Context, userID, formType string, formData map[string]any) error {
	encoded, err := json.Marshal(formData)
	if err != nil {
		return fmt.Errorf("encode form data: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO form_drafts (user_id, form_type, form_data)
		VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (user_id, form_type) DO UPDATE SET form_data=EXCLUDED.form_data, updated_at=NOW()
	`, userID, formType, string(encoded))
	if err != nil {
		return fmt.Errorf("upsert draft: %w", err)
	}
	return nil
}

// GetDraft returns the stored form data, or nil when no draft exists.
func (s *PostgresStore) GetDraft(ctx context.Context, userID, formType string) (map[string]any, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT form_data FROM form_drafts WHERE user_id=$1 AND form_type=$2
	`, userID, formType).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get draft: %w", err)
	}
	var formData map[string]any
	if err := json.Unmarshal(raw, &formData); err != nil {
		return nil, fmt.Errorf("decode form data: %w", err)
	}
	return formData, nil
}

func (s *PostgresStore) DeleteDraft(ctx context.Context, userID, formType string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM form_drafts WHERE user_id=$1 AND form_type=$2`, userID, formType)
	if err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}
