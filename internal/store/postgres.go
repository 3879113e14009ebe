package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/postgres.sql
var postgresSchema string

const demandaColumns = `id, servidor, defensor, nome_assistido, cpf, codigo, demanda,
	selecao_demanda, status, data, horario, numero_processo`

// PostgresStore is a PostgreSQL implementation of the Store interface.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the tables if they do not exist.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("failed to apply postgres schema: %w", err)
	}
	return nil
}

// CreateDemanda inserts a new demanda.
func (p *PostgresStore) CreateDemanda(ctx context.Context, params CreateDemandaParams) (*Demanda, error) {
	var id int64
	err := p.pool.QueryRow(ctx, `
		INSERT INTO demandas (servidor, defensor, nome_assistido, cpf, codigo, demanda,
			selecao_demanda, status, data, horario, numero_processo)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`,
		params.Servidor, params.Defensor, params.NomeAssistido, params.CPF, params.Codigo,
		params.Descricao, joinList(params.SelecaoDemanda, selecaoSeparator), params.Status,
		params.Data, params.Horario, joinList(params.NumeroProcesso, processoSeparator),
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to insert demanda: %w", err)
	}
	d := demandaFromParams(id, params)
	return &d, nil
}

// GetDemanda retrieves a single demanda by ID.
func (p *PostgresStore) GetDemanda(ctx context.Context, id int64) (*Demanda, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+demandaColumns+` FROM demandas WHERE id = $1`, id)
	d, err := scanPgDemanda(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

// ListDemandas returns matching demandas, newest first.
func (p *PostgresStore) ListDemandas(ctx context.Context, filter DemandaFilter) ([]Demanda, error) {
	var (
		where []string
		args  []any
	)
	if filter.Nome != "" {
		args = append(args, "%"+escapeLike(filter.Nome)+"%")
		where = append(where, "nome_assistido ILIKE $"+strconv.Itoa(len(args)))
	}
	if filter.CPF != "" {
		args = append(args, "%"+escapeLike(filter.CPF)+"%")
		where = append(where, "COALESCE(cpf, '') LIKE $"+strconv.Itoa(len(args)))
	}
	if filter.Defensor != "" {
		args = append(args, filter.Defensor)
		where = append(where, "defensor = $"+strconv.Itoa(len(args)))
	}

	query := `SELECT ` + demandaColumns + ` FROM demandas`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY id DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list demandas: %w", err)
	}
	defer rows.Close()

	result := make([]Demanda, 0)
	for rows.Next() {
		d, err := scanPgDemanda(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

// UpdateDemanda writes the fields set in patch.
func (p *PostgresStore) UpdateDemanda(ctx context.Context, id int64, patch DemandaPatch) (*Demanda, error) {
	if patch.IsEmpty() {
		return p.GetDemanda(ctx, id)
	}
	set, args := buildUpdate(patch, func(n int) string { return "$" + strconv.Itoa(n) })
	args = append(args, id)
	query := `UPDATE demandas SET ` + set + ` WHERE id = $` + strconv.Itoa(len(args)) +
		` RETURNING ` + demandaColumns

	d, err := scanPgDemanda(p.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update demanda: %w", err)
	}
	return &d, nil
}

// SaveAnalise records a means-test verdict.
func (p *PostgresStore) SaveAnalise(ctx context.Context, params SaveAnaliseParams) (*Analise, error) {
	vulns := params.Vulnerabilidades
	if vulns == nil {
		vulns = []string{}
	}
	vulnJSON, err := json.Marshal(vulns)
	if err != nil {
		return nil, err
	}

	var id int64
	err = p.pool.QueryRow(ctx, `
		INSERT INTO hipossuficiencia_analises (documento, tipo_pessoa, vulnerabilidades, detalhes,
			resultado, motivo, explicacao, data_analise)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		params.Documento, params.TipoPessoa, vulnJSON, params.Detalhes, params.Resultado,
		params.Motivo, params.Explicacao, params.DataAnalise,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to insert analise: %w", err)
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
		DataAnalise:      params.DataAnalise.UTC(),
	}, nil
}

// ListAnalises returns the analyses of documento, newest first.
func (p *PostgresStore) ListAnalises(ctx context.Context, documento string) ([]Analise, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, documento, tipo_pessoa, vulnerabilidades, detalhes, resultado, motivo,
			explicacao, data_analise
		FROM hipossuficiencia_analises
		WHERE documento = $1
		ORDER BY data_analise DESC, id DESC`, documento)
	if err != nil {
		return nil, fmt.Errorf("failed to list analises: %w", err)
	}
	defer rows.Close()

	result := make([]Analise, 0)
	for rows.Next() {
		var (
			a        Analise
			vulnJSON []byte
			when     pgtype.Timestamptz
		)
		if err := rows.Scan(&a.ID, &a.Documento, &a.TipoPessoa, &vulnJSON, &a.Detalhes,
			&a.Resultado, &a.Motivo, &a.Explicacao, &when); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(vulnJSON, &a.Vulnerabilidades); err != nil {
			return nil, fmt.Errorf("corrupt vulnerabilidades for analise %d: %w", a.ID, err)
		}
		a.DataAnalise = when.Time.UTC()
		result = append(result, a)
	}
	return result, rows.Err()
}

// CountAnalises aggregates every analysis by reason.
func (p *PostgresStore) CountAnalises(ctx context.Context) (AnaliseCounts, error) {
	rows, err := p.pool.Query(ctx, `
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
func (p *PostgresStore) WriteAuditLog(ctx context.Context, entry AuditLog) error {
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = time.Now()
	}
	_, err := p.pool.Exec(ctx, `
		INSERT INTO audit_logs (occurred_at, request_id, actor, action, resource_type, resource_id,
			status, before_state, after_state, changes, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		entry.OccurredAt, textOrNull(entry.RequestID), entry.Actor, entry.Action, entry.ResourceType,
		textOrNull(entry.ResourceID), entry.Status, jsonOrNull(entry.BeforeState),
		jsonOrNull(entry.AfterState), jsonOrNull(entry.Changes), textOrNull(entry.ErrorMessage),
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}
	return nil
}

// ListAuditLogs returns audit entries with pagination, newest first.
func (p *PostgresStore) ListAuditLogs(ctx context.Context, limit, offset int) ([]AuditLog, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := p.pool.Query(ctx, `
		SELECT id, occurred_at, request_id, actor, action, resource_type, resource_id, status,
			before_state, after_state, changes, error_message
		FROM audit_logs
		ORDER BY occurred_at DESC, id DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	defer rows.Close()

	result := make([]AuditLog, 0)
	for rows.Next() {
		var (
			e                        AuditLog
			occurred                 pgtype.Timestamptz
			requestID, resID, errMsg pgtype.Text
			before, after, changes   []byte
		)
		if err := rows.Scan(&e.ID, &occurred, &requestID, &e.Actor, &e.Action, &e.ResourceType,
			&resID, &e.Status, &before, &after, &changes, &errMsg); err != nil {
			return nil, err
		}
		e.OccurredAt = occurred.Time.UTC()
		e.RequestID = requestID.String
		e.ResourceID = resID.String
		e.ErrorMessage = errMsg.String
		e.BeforeState = decodeJSONMap(before)
		e.AfterState = decodeJSONMap(after)
		e.Changes = decodeJSONMap(changes)
		result = append(result, e)
	}
	return result, rows.Err()
}

// Close closes the database connection pool.
func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}

func scanPgDemanda(row pgx.Row) (Demanda, error) {
	var (
		d                     Demanda
		cpf, selecao, process pgtype.Text
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

func textOrNull(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

func jsonOrNull(m map[string]any) []byte {
	if m == nil {
		return nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return []byte("{}")
	}
	return b
}

func decodeJSONMap(b []byte) map[string]any {
	if len(b) == 0 {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil
	}
	return m
}

// escapeLike escapes LIKE wildcards using the default backslash escape.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
