// Package sqlcompat adapts driver.Driver to database/sql/driver, so a
// caller who wants the standard library's connection-pooling, query
// helpers, and Scan-based row access can use tdsl through database/sql
// instead of the tds/driver packages directly.
//
// This is not a general-purpose SQL layer: per the core driver's
// non-goals, each *sql.DB operation opens one driver.Driver connection
// and tears it down — no prepared-statement cache, no pooling beyond
// whatever database/sql itself does at the connection level.
package sqlcompat

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/golang-sql/civil"
	"github.com/golang-sql/sqlexp"

	"github.com/tdsl-go/tdsl/internal/log"
	tdsdriver "github.com/tdsl-go/tdsl/driver"
	"github.com/tdsl-go/tdsl/tds"
	"github.com/tdsl-go/tdsl/transport"
)

// DriverName is the name this package registers itself under.
const DriverName = "tdsl"

func init() {
	sql.Register(DriverName, &Driver{})
}

// Driver implements database/sql/driver.Driver and driver.DriverContext.
type Driver struct{}

// Open parses dsn ("host:port?database=x&user=y&password=z&appname=w")
// and returns a freshly dialed, authenticated connection.
func (d *Driver) Open(dsn string) (driver.Conn, error) {
	c, err := d.OpenConnector(dsn)
	if err != nil {
		return nil, err
	}
	return c.Connect(context.Background())
}

// OpenConnector parses dsn without dialing.
func (d *Driver) OpenConnector(dsn string) (driver.Connector, error) {
	params, err := parseDSN(dsn)
	if err != nil {
		return nil, err
	}
	return &connector{params: params, driver: d}, nil
}

type connector struct {
	params tdsdriver.Params
	driver *Driver
}

func (c *connector) Connect(ctx context.Context) (driver.Conn, error) {
	t := transport.NewTCP()
	drv := tdsdriver.New(t, log.Default())

	if err := dialWithContext(ctx, drv, c.params); err != nil {
		return nil, err
	}

	outcome, err := drv.Connect(c.params)
	if err != nil {
		drv.Close()
		return nil, dbErr(outcome, err)
	}
	return &conn{drv: drv}, nil
}

func (c *connector) Driver() driver.Driver { return c.driver }

// dialWithContext is a hook point for honoring ctx cancellation around the
// blocking Connect call; the core driver has no internal concept of
// context, so this only checks for an already-cancelled context before
// handing off to the blocking login state machine.
func dialWithContext(ctx context.Context, drv *tdsdriver.Driver, params tdsdriver.Params) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

func dbErr(outcome tdsdriver.ConnectOutcome, err error) error {
	return errors.New(outcome.String() + ": " + err.Error())
}

// parseDSN parses a minimal "host:port?key=value&..." DSN. Recognised
// query keys: database, user, password, appname, packetsize.
func parseDSN(dsn string) (tdsdriver.Params, error) {
	var p tdsdriver.Params

	hostPort := dsn
	query := ""
	if idx := strings.Index(dsn, "?"); idx >= 0 {
		hostPort = dsn[:idx]
		query = dsn[idx+1:]
	}

	host, portStr, err := net.SplitHostPort(hostPort)
	if err != nil {
		host = hostPort
		portStr = "1433"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return p, errors.New("sqlcompat: invalid port in DSN: " + portStr)
	}
	p.Host = host
	p.Port = port

	for _, kv := range strings.Split(query, "&") {
		if kv == "" {
			continue
		}
		parts := strings.SplitN(kv, "=", 2)
		key := parts[0]
		val := ""
		if len(parts) == 2 {
			val = parts[1]
		}
		switch key {
		case "database":
			p.Database = val
		case "user":
			p.UserName = val
		case "password":
			p.Password = val
		case "appname":
			p.AppName = val
		case "packetsize":
			n, err := strconv.Atoi(val)
			if err != nil {
				return p, errors.New("sqlcompat: invalid packetsize in DSN: " + val)
			}
			p.PacketSize = n
		}
	}
	return p, nil
}

// conn implements driver.Conn, driver.QueryerContext, driver.ExecerContext,
// and sqlexp.Querier (returning a sqlexp.Rows able to report that a batch
// produced no further result sets).
type conn struct {
	mu  sync.Mutex
	drv *tdsdriver.Driver
}

func (c *conn) Prepare(query string) (driver.Stmt, error) {
	return &stmt{conn: c, query: query}, nil
}

func (c *conn) Close() error {
	return c.drv.Close()
}

func (c *conn) Begin() (driver.Tx, error) {
	return nil, errors.New("sqlcompat: transactions are not supported")
}

func (c *conn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	return c.runQuery(query, args)
}

func (c *conn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	rows, err := c.runQuery(query, args)
	if err != nil {
		return nil, err
	}
	return rows.(*rowsResult).asResult(), nil
}

// Query implements sqlexp.Querier, giving callers that want explicit
// multiple-result-set semantics the same entry point database/sql itself
// uses, without going through a *sql.Rows wrapper.
func (c *conn) Query(ctx context.Context, query string, args []driver.NamedValue) (sqlexp.Rows, error) {
	r, err := c.runQuery(query, args)
	if err != nil {
		return nil, err
	}
	return r.(*rowsResult), nil
}

func (c *conn) runQuery(query string, args []driver.NamedValue) (driver.Rows, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	params := make([]tds.Parameter, 0, len(args))
	for _, a := range args {
		params = append(params, namedValueToParam(a))
	}

	rr := &rowsResult{}
	onRow := func(cols []tds.Column, row tds.Row) {
		if rr.cols == nil {
			rr.cols = cols
		}
		rr.buffered = append(rr.buffered, row)
	}

	var result tds.ExecuteResult
	var err error
	if len(params) == 0 {
		result, err = c.drv.ExecuteQuery(query, onRow)
	} else {
		result, err = c.drv.ExecuteRPC(query, params, tds.RPCModeExecSQL, onRow)
	}
	if err != nil {
		return nil, err
	}
	rr.affected = int64(result.AffectedRows)
	return rr, nil
}

func namedValueToParam(a driver.NamedValue) tds.Parameter {
	name := a.Name
	if name == "" {
		name = strconv.Itoa(a.Ordinal)
	}
	switch v := a.Value.(type) {
	case int64:
		return tds.NewIntParam(name, v, 4)
	case string:
		return tds.NewNVarCharParam(name, v, uint32(len(v)+1))
	case nil:
		return tds.Parameter{Name: name, Type: tds.TypeNVarChar, Value: nil}
	default:
		return tds.Parameter{Name: name, Type: tds.TypeNVarChar, Value: v}
	}
}

// stmt is a no-op wrapper: this driver has no prepared-statement cache, so
// Prepare simply remembers the query text for later execution.
type stmt struct {
	conn  *conn
	query string
}

func (s *stmt) Close() error  { return nil }
func (s *stmt) NumInput() int { return -1 }

func (s *stmt) Exec(args []driver.Value) (driver.Result, error) {
	return s.conn.ExecContext(context.Background(), s.query, valuesToNamed(args))
}

func (s *stmt) Query(args []driver.Value) (driver.Rows, error) {
	return s.conn.QueryContext(context.Background(), s.query, valuesToNamed(args))
}

func valuesToNamed(args []driver.Value) []driver.NamedValue {
	out := make([]driver.NamedValue, len(args))
	for i, v := range args {
		out[i] = driver.NamedValue{Ordinal: i + 1, Value: v}
	}
	return out
}

// rowsResult buffers a fully decoded result set (the core driver is
// callback-driven and blocking, so there is no way to stream rows lazily
// to database/sql without first draining the DONE token anyway).
type rowsResult struct {
	cols     []tds.Column
	buffered []tds.Row
	pos      int
	affected int64
}

var _ sqlexp.Rows = (*rowsResult)(nil)

func (r *rowsResult) Columns() []string {
	names := make([]string, len(r.cols))
	for i, c := range r.cols {
		names[i] = c.Name
	}
	return names
}

func (r *rowsResult) Close() error { return nil }

func (r *rowsResult) Next(dest []driver.Value) error {
	if r.pos >= len(r.buffered) {
		return io.EOF
	}
	row := r.buffered[r.pos]
	r.pos++
	for i, f := range row {
		dest[i] = fieldToValue(r.cols[i], f)
	}
	return nil
}

// HasNextResultSet and NextResultSet implement sqlexp.Rows. The core
// driver's ExecuteQuery/ExecuteRPC surface exactly one result set per
// call (the DONE token that ends it also ends the call), so there is
// never a next one to report.
func (r *rowsResult) HasNextResultSet() bool { return false }
func (r *rowsResult) NextResultSet() error   { return io.EOF }

func (r *rowsResult) asResult() driver.Result {
	return execResult{affected: r.affected}
}

type execResult struct {
	affected int64
}

func (e execResult) LastInsertId() (int64, error) {
	return 0, errors.New("sqlcompat: LastInsertId is not supported")
}

func (e execResult) RowsAffected() (int64, error) {
	return e.affected, nil
}

// fieldToValue extracts a field's Go value per its wire type, converting
// DATETIME/SMALLDATETIME to civil.DateTime rather than time.Time so a
// caller scanning into a civil.DateTime sees a wall-clock value with no
// implied timezone, matching how the original value arrived on the wire.
func fieldToValue(col tds.Column, f tds.Field) driver.Value {
	switch col.Type {
	case tds.TypeDateTime, tds.TypeDateTimeN:
		t, err := f.DateTime()
		if err != nil {
			return nil
		}
		return civil.DateTimeOf(t)
	case tds.TypeDateTime4:
		t, err := f.SmallDateTime()
		if err != nil {
			return nil
		}
		return civil.DateTimeOf(t)
	case tds.TypeInt1, tds.TypeInt2, tds.TypeInt4, tds.TypeInt8, tds.TypeIntN:
		v, err := f.Int()
		if err != nil {
			return nil
		}
		return v
	case tds.TypeFloat4, tds.TypeFloat8, tds.TypeFloatN:
		v, err := f.Float()
		if err != nil {
			return nil
		}
		return v
	case tds.TypeBit, tds.TypeBitN:
		v, err := f.Bool()
		if err != nil {
			return nil
		}
		return v
	case tds.TypeMoney, tds.TypeMoney4, tds.TypeMoneyN:
		v, err := f.Money()
		if err != nil {
			return nil
		}
		return v.String()
	case tds.TypeNVarChar, tds.TypeNChar:
		v, _ := f.String(true)
		return v
	default:
		v, err := f.String(false)
		if err != nil {
			return f.Bytes()
		}
		return v
	}
}
