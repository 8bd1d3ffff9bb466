package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true. If Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search executes a UNION ALL query across clients and gas_safety_records
// using plainto_tsquery and ts_rank, with ts_headline for snippets.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	tsQuery := "plainto_tsquery('english', $1)"
	args := []any{q.Text, q.UserID}

	var subQueries []string

	if q.FilterType == "" || q.FilterType == ResultClient {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'client'::text AS type, c.id, c.name AS title,
				ts_headline('english', coalesce(c.address, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				c.id AS client_id,
				ts_rank(c.fts, %s) AS rank
			FROM clients c
			WHERE c.fts @@ %s AND c.user_id = $2`, tsQuery, tsQuery, tsQuery))
	}

	if q.FilterType == "" || q.FilterType == ResultCertificate {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'certificate'::text AS type, r.id, r.certificate_number AS title,
				ts_headline('english', coalesce(r.property_address, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				r.client_id,
				ts_rank(r.fts, %s) AS rank
			FROM gas_safety_records r
			WHERE r.fts @@ %s AND r.user_id = $2`, tsQuery, tsQuery, tsQuery))
	}

	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub",
		strings.Join(subQueries, " UNION ALL "))

	dataSQL := fmt.Sprintf(`SELECT type, id, title, snippet, client_id
		FROM (%s) sub
		ORDER BY rank DESC
		LIMIT %d OFFSET %d`,
		strings.Join(subQueries, " UNION ALL "),
		limit, offset)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.Title, &r.Snippet, &r.ClientID); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns all searchable records for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]ClientRecord, []CertificateRecord, error) {
	clientRows, err := p.db.QueryContext(ctx, `
		SELECT id, user_id, name, email, address, postcode
		FROM clients
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load clients: %w", err)
	}
	defer clientRows.Close()

	clients := make([]ClientRecord, 0)
	for clientRows.Next() {
		var c ClientRecord
		if err := clientRows.Scan(&c.ID, &c.UserID, &c.Name, &c.Email, &c.Address, &c.Postcode); err != nil {
			return nil, nil, fmt.Errorf("scan client: %w", err)
		}
		clients = append(clients, c)
	}
	if err := clientRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate clients: %w", err)
	}

	certRows, err := p.db.QueryContext(ctx, `
		SELECT id, user_id, client_id, certificate_number, property_address, defects
		FROM gas_safety_records
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load gas safety records: %w", err)
	}
	defer certRows.Close()

	certificates := make([]CertificateRecord, 0)
	for certRows.Next() {
		var c CertificateRecord
		if err := certRows.Scan(&c.ID, &c.UserID, &c.ClientID, &c.CertificateNumber, &c.PropertyAddress, &c.Defects); err != nil {
			return nil, nil, fmt.Errorf("scan gas safety record: %w", err)
		}
		certificates = append(certificates, c)
	}
	if err := certRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate gas safety records: %w", err)
	}

	return clients, certificates, nil
}
