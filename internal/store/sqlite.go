package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/sqlite.sql
var sqliteSchema string

// legacyColumns were added to demandas after the first release; older
// database files lack them.
var legacyColumns = []struct{ name, ddl string }{
	{"numero_processo", "ALTER TABLE demandas ADD COLUMN numero_processo TEXT"},
	{"cpf", "ALTER TABLE demandas ADD COLUMN cpf TEXT"},
}

// SQLiteStore keeps everything in a single local database file. It opens
// files written by the desktop tool unchanged.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and brings its schema
// up to date.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// One writer at a time; sqlite serializes writes anyway.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("failed to apply sqlite schema: %w", err)
	}

	existing, err := s.tableColumns(ctx, "demandas")
	if err != nil {
		return err
	}
	for _, c := range legacyColumns {
		if existing[c.name] {
			continue
		}
		if _, err := s.db.ExecContext(ctx, c.ddl); err != nil {
			return fmt.Errorf("failed to add column %s: %w", c.name, err)
		}
	}
	return nil
}

func (s *SQLiteStore) tableColumns(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, "PRAGMA table_info("+table+")")
	if err != nil {
		return nil, fmt.Errorf("failed to inspect %s: %w", table, err)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var (
			cid       int
			name, typ string
			notNull   int
			dflt      sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

// CreateDemanda inserts a new demanda.
func (s *SQLiteStore) CreateDemanda(ctx context.Context, params CreateDemandaParams) (*Demanda, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO demandas (servidor, defensor, nome_assistido, cpf, codigo, demanda,
			selecao_demanda, status, data, horario, numero_processo)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		params.Servidor, params.Defensor, params.NomeAssistido, params.CPF, params.Codigo,
		params.Descricao, joinList(params.SelecaoDemanda, selecaoSeparator), params.Status,
		params.Data, params.Horario, joinList(params.NumeroProcesso, processoSeparator),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert demanda: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	d := demandaFromParams(id, params)
	return &d, nil
}

// GetDemanda retrieves a single demanda by ID.
func (s *SQLiteStore) GetDemanda(ctx context.Context, id int64) (*Demanda, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+demandaColumns+` FROM demandas WHERE id = ?`, id)
	d, err := scanSQLiteDemanda(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

// ListDemandas returns matching demandas, newest first. The name filter runs
// in Go because sqlite folds case for ASCII only.
func (s *SQLiteStore) ListDemandas(ctx context.Context, filter DemandaFilter) ([]Demanda, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+demandaColumns+` FROM demandas ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list demandas: %w", err)
	}
	defer rows.Close()

	result := make([]Demanda, 0)
	for rows.Next() {
		d, err := scanSQLiteDemanda(rows)
		if err != nil {
			return nil, err
		}
		if !matchesFilter(d, filter) {
			continue
		}
		result = append(result, d)
		if filter.Limit > 0 && len(result) == filter.Limit {
			break
		}
	}
	return result, rows.Err()
}

// UpdateDemanda writes the fields set in patch.
func (s *SQLiteStore) UpdateDemanda(ctx context.Context, id int64, patch DemandaPatch) (*Demanda, error) {
	if patch.IsEmpty() {
		return s.GetDemanda(ctx, id)
	}
	set, args := buildUpdate(patch, func(int) string { return "?" })
	args = append(args, id)

	res, err := s.db.ExecContext(ctx, `UPDATE demandas SET `+set+` WHERE id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update demanda: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, ErrNotFound
	}
	return s.GetDemanda(ctx, id)
}

// SaveAnalise records a means-test verdict.
func (s *SQLiteStore) SaveAnalise(ctx context.Context, params SaveAnaliseParams) (*Analise, error) {
	vulns := params.Vulnerabilidades
	if vulns == nil {
		vulns = []string{}
	}
	vulnJSON, err := json.Marshal(vulns)
	if err != nil {
		return nil, err
	}
	when := params.DataAnalise.UTC()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO hipossuficiencia_analises (documento, tipo_pessoa, vulnerabilidades, detalhes,
			resultado, motivo, explicacao, data_analise)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		params.Documento, params.TipoPessoa, string(vulnJSON), params.Detalhes, params.Resultado,
		params.Motivo, params.Explicacao, when.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert analise: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	return &Analise{
		ID:               id,
		Documento:        params.Documento,
		TipoPessoa:       params.TipoPessoa,
		Vulnerabilidades: append([]string{}, vulns...),
		Detalhes:         params.Detalhes,
		Resultado:        params.Resultado,
		Motivo:           params.Motivo,
		Explicacao:       params.Explicacao,
		DataAnalise:      when,
	}, nil
}

// ListAnalises returns the analyses of documento, newest first.
func (s *SQLiteStore) ListAnalises(ctx context.Context, documento string) ([]Analise, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, documento, tipo_pessoa, vulnerabilidades, detalhes, resultado, motivo,
			explicacao, data_analise
		FROM hipossuficiencia_analises
		WHERE documento = ?
		ORDER BY id DESC`, documento)
	if err != nil {
		return nil, fmt.Errorf("failed to list analises: %w", err)
	}
	defer rows.Close()

	result := make([]Analise, 0)
	for rows.Next() {
		var (
			a              Analise
			vulnJSON, when string
		)
		if err := rows.Scan(&a.ID, &a.Documento, &a.TipoPessoa, &vulnJSON, &a.Detalhes,
			&a.Resultado, &a.Motivo, &a.Explicacao, &when); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(vulnJSON), &a.Vulnerabilidades); err != nil {
			return nil, fmt.Errorf("corrupt vulnerabilidades for analise %d: %w", a.ID, err)
		}
		a.DataAnalise, err = time.Parse(time.RFC3339Nano, when)
		if err != nil {
			return nil, fmt.Errorf("corrupt data_analise for analise %d: %w", a.ID, err)
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

// CountAnalises aggregates every analysis by reason.
func (s *SQLiteStore) CountAnalises(ctx context.Context) (AnaliseCounts, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT motivo, resultado, COUNT(*)
		FROM hipossuficiencia_analises
		GROUP BY motivo, resultado`)
	if err != nil {
		return AnaliseCounts{}, fmt.Errorf("failed to count analises: %w", err)
	}
	defer rows.Close()

	c := AnaliseCounts{ByMotivo: make(map[string]int)}
	for rows.Next() {
		var (
			motivo   string
			approved bool
			n        int
		)
		if err := rows.Scan(&motivo, &approved, &n); err != nil {
			return AnaliseCounts{}, err
		}
		c.add(motivo, approved, n)
	}
	return c, rows.Err()
}

// WriteAuditLog appends an audit entry.
func (s *SQLiteStore) WriteAuditLog(ctx context.Context, entry AuditLog) error {
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (occurred_at, request_id, actor, action, resource_type, resource_id,
			status, before_state, after_state, changes, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.OccurredAt.UTC().Format(time.RFC3339Nano), nullString(entry.RequestID), entry.Actor,
		entry.Action, entry.ResourceType, nullString(entry.ResourceID), entry.Status,
		nullJSON(entry.BeforeState), nullJSON(entry.AfterState), nullJSON(entry.Changes),
		nullString(entry.ErrorMessage),
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}
	return nil
}

// ListAuditLogs returns audit entries with pagination, newest first.
func (s *SQLiteStore) ListAuditLogs(ctx context.Context, limit, offset int) ([]AuditLog, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, occurred_at, request_id, actor, action, resource_type, resource_id, status,
			before_state, after_state, changes, error_message
		FROM audit_logs
		ORDER BY id DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	defer rows.Close()

	result := make([]AuditLog, 0)
	for rows.Next() {
		var (
			e                        AuditLog
			occurred                 string
			requestID, resID, errMsg sql.NullString
			before, after, changes   sql.NullString
		)
		if err := rows.Scan(&e.ID, &occurred, &requestID, &e.Actor, &e.Action, &e.ResourceType,
			&resID, &e.Status, &before, &after, &changes, &errMsg); err != nil {
			return nil, err
		}
		e.OccurredAt, _ = time.Parse(time.RFC3339Nano, occurred)
		e.RequestID = requestID.String
		e.ResourceID = resID.String
		e.ErrorMessage = errMsg.String
		e.BeforeState = decodeJSONMap([]byte(before.String))
		e.AfterState = decodeJSONMap([]byte(after.String))
		e.Changes = decodeJSONMap([]byte(changes.String))
		result = append(result, e)
	}
	return result, rows.Err()
}

// Close closes the database file.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteDemanda(row rowScanner) (Demanda, error) {
	var (
		d                     Demanda
		cpf, selecao, process sql.NullString
	)
	err := row.Scan(&d.ID, &d.Servidor, &d.Defensor, &d.NomeAssistido, &cpf, &d.Codigo,
		&d.Descricao, &selecao, &d.Status, &d.Data, &d.Horario, &process)
	if err != nil {
		return Demanda{}, err
	}
	d.CPF = cpf.String
	d.SelecaoDemanda = splitList(selecao.String, selecaoSeparator)
	d.NumeroProcesso = splitList(process.String, processoSeparator)
	return d, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullJSON(m map[string]any) sql.NullString {
	b := jsonOrNull(m)
	if b == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}
