package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"routedesk/internal/fieldmap"
	"routedesk/internal/model"
)

// Column names of the self-hosted tables, mapped like any other native schema.
var orderSQL = fieldmap.MustNew("orders-sql",
	fieldmap.Pair{Native: "customer_name", Canonical: model.FieldCustomerName},
	fieldmap.Pair{Native: "phone", Canonical: model.FieldPhone},
	fieldmap.Pair{Native: "customer_status", Canonical: model.FieldCustomerStatus},
	fieldmap.Pair{Native: "status", Canonical: model.FieldStatus},
	fieldmap.Pair{Native: "order_status", Canonical: model.FieldOrderStatus},
	fieldmap.Pair{Native: "health_fund", Canonical: model.FieldHealthFund},
	fieldmap.Pair{Native: "opened_by", Canonical: model.FieldOpenedBy},
	fieldmap.Pair{Native: "fax", Canonical: model.FieldFax},
	fieldmap.Pair{Native: "address", Canonical: model.FieldAddress},
	fieldmap.Pair{Native: "city", Canonical: model.FieldCity},
	fieldmap.Pair{Native: "agent", Canonical: model.FieldAgent},
	fieldmap.Pair{Native: "documents", Canonical: model.FieldDocuments},
)

const orderCols = `id, customer_name, phone, customer_status, status, order_status, health_fund, opened_by, fax, address, city, agent, documents, created`

const routeCols = `id::text, route_name, driver, delivery_date, status, order_ids, stops, stop_count, estimated_distance, estimated_time, notes, created`

// Postgres is the self-hosted backend.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	if err := orderSQL.Validate(model.OrderFields); err != nil {
		return nil, err
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: new pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Close() { p.pool.Close() }

func (p *Postgres) Ping(ctx context.Context) error { return p.pool.Ping(ctx) }

// MigrateDir executes every .sql file in dir in lexical order. Migrations are
// written to be re-runnable.
func (p *Postgres) MigrateDir(ctx context.Context, dir string) error {
	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return err
	}
	sort.Strings(files)
	for _, f := range files {
		b, err := os.ReadFile(f)
		if err != nil {
			return err
		}
		if _, err := p.pool.Exec(ctx, string(b)); err != nil {
			return fmt.Errorf("migrate %s: %w", filepath.Base(f), err)
		}
	}
	return nil
}

func (p *Postgres) withTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit tx: %w", err)
	}
	return nil
}

func (p *Postgres) ListOrders(ctx context.Context) ([]model.Order, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+orderCols+` FROM orders ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (p *Postgres) GetOrder(ctx context.Context, id string) (model.Order, error) {
	o, err := scanOrder(p.pool.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return o, ErrNotFound
	}
	return o, err
}

func (p *Postgres) UpdateOrder(ctx context.Context, id string, patch model.OrderPatch) (model.Order, error) {
	out, err := p.updateChunk(ctx, []model.OrderUpdate{{ID: id, Patch: patch}})
	if err != nil {
		return model.Order{}, err
	}
	return out[0], nil
}

func (p *Postgres) BatchUpdateOrders(ctx context.Context, updates []model.OrderUpdate) ([]model.Order, error) {
	if err := validateUpdates(updates); err != nil {
		return nil, err
	}
	return runChunks(ctx, updates, p.updateChunk)
}

// updateChunk writes one chunk in a single transaction.
func (p *Postgres) updateChunk(ctx context.Context, chunk []model.OrderUpdate) ([]model.Order, error) {
	out := make([]model.Order, 0, len(chunk))
	err := p.withTx(ctx, func(tx pgx.Tx) error {
		for _, u := range chunk {
			q, args := buildUpdate("orders", orderSQL.ToNative(u.Patch.Fields()), u.ID, orderCols)
			if q == "" {
				return fmt.Errorf("update %s: empty patch", u.ID)
			}
			o, err := scanOrder(tx.QueryRow(ctx, q, args...))
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("order %s: %w", u.ID, ErrNotFound)
			}
			if err != nil {
				return err
			}
			out = append(out, o)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// buildUpdate renders UPDATE ... SET ... WHERE id=$n RETURNING cols with
// columns in sorted order. It returns "" when cols is empty.
func buildUpdate(table string, cols map[string]any, id, returning string) (string, []any) {
	if len(cols) == 0 {
		return "", nil
	}
	names := make([]string, 0, len(cols))
	for c := range cols {
		names = append(names, c)
	}
	sort.Strings(names)
	sets := make([]string, len(names))
	args := make([]any, 0, len(names)+1)
	for i, c := range names {
		sets[i] = fmt.Sprintf("%s=$%d", c, i+1)
		args = append(args, sqlValue(cols[c]))
	}
	args = append(args, id)
	q := fmt.Sprintf("UPDATE %s SET %s WHERE id=$%d RETURNING %s", table, strings.Join(sets, ", "), len(names)+1, returning)
	return q, args
}

// sqlValue flattens named string types and marshals slices to JSON text.
func sqlValue(v any) any {
	switch t := v.(type) {
	case string, int:
		return t
	case model.OrderStatus, model.TaskStatus, model.CustomerStatus, model.RouteStatus:
		return fmt.Sprint(t)
	case []string, []model.RouteStop, []model.Attachment:
		b, _ := json.Marshal(t)
		return b
	}
	return v
}

func scanOrder(row pgx.Row) (model.Order, error) {
	var (
		o    model.Order
		docs []byte
		cs   string
		ts   string
		ost  string
	)
	err := row.Scan(&o.ID, &o.CustomerName, &o.Phone, &cs, &ts, &ost, &o.HealthFund,
		&o.OpenedBy, &o.Fax, &o.Address, &o.City, &o.Agent, &docs, &o.Created)
	if err != nil {
		return o, err
	}
	o.CustomerStatus = model.CustomerStatus(cs)
	o.Status = model.TaskStatus(ts)
	o.OrderStatus = model.OrderStatus(ost)
	if len(docs) > 0 {
		_ = json.Unmarshal(docs, &o.Documents)
	}
	return o, nil
}

func (p *Postgres) ListRoutes(ctx context.Context) ([]model.ApprovedRoute, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+routeCols+` FROM routes ORDER BY created DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.ApprovedRoute{}
	for rows.Next() {
		r, err := scanRoute(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *Postgres) GetRoute(ctx context.Context, id string) (model.ApprovedRoute, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.ApprovedRoute{}, ErrNotFound
	}
	r, err := scanRoute(p.pool.QueryRow(ctx, `SELECT `+routeCols+` FROM routes WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return r, ErrNotFound
	}
	return r, err
}

func (p *Postgres) CreateRoute(ctx context.Context, r model.ApprovedRoute) (model.ApprovedRoute, error) {
	id := uuid.New()
	ids, _ := json.Marshal(nonNil(r.OrderIDs))
	stops, _ := json.Marshal(nonNilStops(r.Stops))
	row := p.pool.QueryRow(ctx, `INSERT INTO routes (id, route_name, driver, delivery_date, status, order_ids, stops, stop_count, estimated_distance, estimated_time, notes)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11) RETURNING `+routeCols,
		id, r.RouteName, string(r.Driver), r.DeliveryDate, string(r.Status), ids, stops,
		r.StopCount, r.EstimatedDistance, r.EstimatedTime, r.Notes)
	return scanRoute(row)
}

func (p *Postgres) UpdateRoute(ctx context.Context, id string, patch model.RoutePatch) (model.ApprovedRoute, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.ApprovedRoute{}, ErrNotFound
	}
	cols := map[string]any{}
	if patch.Status != nil {
		cols["status"] = *patch.Status
	}
	if patch.Notes != nil {
		cols["notes"] = *patch.Notes
	}
	if patch.Stops != nil {
		cols["stops"] = nonNilStops(*patch.Stops)
	}
	if patch.OrderIDs != nil {
		cols["order_ids"] = nonNil(*patch.OrderIDs)
	}
	if patch.StopCount != nil {
		cols["stop_count"] = *patch.StopCount
	}
	q, args := buildUpdate("routes", cols, id, routeCols)
	if q == "" {
		return p.GetRoute(ctx, id)
	}
	r, err := scanRoute(p.pool.QueryRow(ctx, q, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return r, ErrNotFound
	}
	return r, err
}

func scanRoute(row pgx.Row) (model.ApprovedRoute, error) {
	var (
		r            model.ApprovedRoute
		driver, st   string
		ids, stopsJS []byte
	)
	err := row.Scan(&r.ID, &r.RouteName, &driver, &r.DeliveryDate, &st, &ids, &stopsJS,
		&r.StopCount, &r.EstimatedDistance, &r.EstimatedTime, &r.Notes, &r.Created)
	if err != nil {
		return r, err
	}
	r.Driver = model.Driver(driver)
	r.Status = model.RouteStatus(st)
	r.OrderIDs = []string{}
	r.Stops = []model.RouteStop{}
	_ = json.Unmarshal(ids, &r.OrderIDs)
	_ = json.Unmarshal(stopsJS, &r.Stops)
	return r, nil
}
