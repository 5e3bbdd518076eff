package plugin

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"mainstage/internal/ir"
)

// dbPlugin is the native `db` plugin: MainStage scripts reach it through
// an ordinary PluginCall, never a manifest, so it is registered directly
// by RegisterNative rather than discovered. Its connection dispatch
// (driver-name-by-type, DSN construction per type) is adapted from the
// teacher's database connection manager into plugin-call-shaped
// connect/query/exec functions.
type dbPlugin struct {
	mu    sync.Mutex
	conns map[string]*sql.DB
}

func newDBPlugin() *dbPlugin {
	return &dbPlugin{conns: make(map[string]*sql.DB)}
}

func (p *dbPlugin) Name() string        { return "db" }
func (p *dbPlugin) Manifest() *Manifest { return &Manifest{Name: "db", Kind: "native"} }

func (p *dbPlugin) Call(funcName string, args []ir.Value) (ir.Value, error) {
	switch funcName {
	case "connect":
		return p.connect(args)
	case "query":
		return p.query(args)
	case "exec":
		return p.exec(args)
	case "close":
		return p.close(args)
	default:
		return ir.Value{}, fmt.Errorf("db: unknown function %q", funcName)
	}
}

// knownDrivers restricts connect to the driver names this build actually
// registers (the four imports above), mirroring the finite dbType switch
// in the teacher's DatabaseModule.Connect.
var knownDrivers = map[string]bool{
	"mysql":     true,
	"postgres":  true,
	"sqlite3":   true,
	"sqlserver": true,
}

func (p *dbPlugin) connect(args []ir.Value) (ir.Value, error) {
	if len(args) < 3 {
		return ir.Value{}, fmt.Errorf("db.connect: expected (id, driver, dsn)")
	}
	id, driver, dsn := args[0].S, args[1].S, args[2].S
	if !knownDrivers[driver] {
		return ir.Value{}, fmt.Errorf("db.connect: unsupported driver %q", driver)
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return ir.Value{}, fmt.Errorf("db.connect: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return ir.Value{}, fmt.Errorf("db.connect: ping: %w", err)
	}

	p.mu.Lock()
	p.conns[id] = conn
	p.mu.Unlock()
	return ir.Bool(true), nil
}

func (p *dbPlugin) lookup(id string) (*sql.DB, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	conn, ok := p.conns[id]
	if !ok {
		return nil, fmt.Errorf("db: no open connection %q", id)
	}
	return conn, nil
}

func (p *dbPlugin) query(args []ir.Value) (ir.Value, error) {
	if len(args) < 2 {
		return ir.Value{}, fmt.Errorf("db.query: expected (id, sql, args...)")
	}
	conn, err := p.lookup(args[0].S)
	if err != nil {
		return ir.Value{}, err
	}
	queryArgs := toQueryArgs(args[2:])

	rows, err := conn.Query(args[1].S, queryArgs...)
	if err != nil {
		return ir.Value{}, fmt.Errorf("db.query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return ir.Value{}, fmt.Errorf("db.query: columns: %w", err)
	}

	var result []ir.Value
	for rows.Next() {
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return ir.Value{}, fmt.Errorf("db.query: scan: %w", err)
		}
		row := ir.NewObject()
		for i, col := range cols {
			row.SetProp(col, sqlValueToIR(raw[i]))
		}
		result = append(result, row)
	}
	return ir.Array(result), nil
}

func (p *dbPlugin) exec(args []ir.Value) (ir.Value, error) {
	if len(args) < 2 {
		return ir.Value{}, fmt.Errorf("db.exec: expected (id, sql, args...)")
	}
	conn, err := p.lookup(args[0].S)
	if err != nil {
		return ir.Value{}, err
	}
	res, err := conn.Exec(args[1].S, toQueryArgs(args[2:])...)
	if err != nil {
		return ir.Value{}, fmt.Errorf("db.exec: %w", err)
	}
	affected, _ := res.RowsAffected()
	return ir.Int(affected), nil
}

func (p *dbPlugin) close(args []ir.Value) (ir.Value, error) {
	if len(args) < 1 {
		return ir.Value{}, fmt.Errorf("db.close: expected (id)")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	conn, ok := p.conns[args[0].S]
	if !ok {
		return ir.Bool(false), nil
	}
	delete(p.conns, args[0].S)
	return ir.Bool(conn.Close() == nil), nil
}

func toQueryArgs(vals []ir.Value) []any {
	out := make([]any, len(vals))
	for i, v := range vals {
		switch v.Kind {
		case ir.VInt:
			out[i] = v.I
		case ir.VFloat:
			out[i] = v.F
		case ir.VBool:
			out[i] = v.B
		case ir.VStr, ir.VSymbol:
			out[i] = v.S
		default:
			out[i] = v.ToString()
		}
	}
	return out
}

func sqlValueToIR(raw any) ir.Value {
	switch x := raw.(type) {
	case nil:
		return ir.Null()
	case int64:
		return ir.Int(x)
	case float64:
		return ir.Float(x)
	case bool:
		return ir.Bool(x)
	case []byte:
		return ir.Str(string(x))
	case string:
		return ir.Str(x)
	default:
		return ir.Str(fmt.Sprintf("%v", x))
	}
}
