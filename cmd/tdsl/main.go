// Command tdsl is a minimal TDS client: connect to a server, run one
// batch, print the rows, and exit.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/tdsl-go/tdsl/driver"
	"github.com/tdsl-go/tdsl/internal/log"
	"github.com/tdsl-go/tdsl/internal/version"
	"github.com/tdsl-go/tdsl/tds"
	"github.com/tdsl-go/tdsl/transport"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("tdsl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		host     = fs.String("host", "localhost", "Server host name")
		port     = fs.Int("port", 1433, "Server port")
		user     = fs.String("user", "sa", "Login user name")
		userL    = fs.String("U", "sa", "Login user name")
		password = fs.String("password", "", "Login password")
		passwordL = fs.String("P", "", "Login password")
		database = fs.String("database", "", "Initial database")
		appName  = fs.String("appname", "tdsl", "Client application name")
		query    = fs.String("e", "", "SQL batch to execute")
		queryL   = fs.String("query", "", "SQL batch to execute")
		packetSz = fs.Int("packet-size", tds.DefaultPacketSize, "Negotiated packet size (512-32767)")
		logLevel = fs.String("log-level", "off", "Log level (debug, info, warn, error, off)")

		showHelp     = fs.Bool("h", false, "Show help")
		showHelpL    = fs.Bool("help", false, "Show help")
		showVersion  = fs.Bool("v", false, "Show version")
		showVersionL = fs.Bool("version", false, "Show version")
	)

	fs.Usage = func() { printUsage(stderr) }

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *userL != "sa" {
		*user = *userL
	}
	if *passwordL != "" {
		*password = *passwordL
	}
	if *queryL != "" {
		*query = *queryL
	}
	if *showHelpL {
		*showHelp = true
	}
	if *showVersionL {
		*showVersion = true
	}

	if *showHelp {
		printUsage(stdout)
		return 0
	}
	if *showVersion {
		fmt.Fprintln(stdout, version.Full())
		return 0
	}
	if *query == "" {
		fmt.Fprintln(stderr, "error: -e/-query is required")
		printUsage(stderr)
		return 2
	}

	level, err := log.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 2
	}
	logger := log.New(log.Config{DefaultLevel: level, Output: stderr, Format: log.FormatText})

	t := transport.NewTCP()
	d := driver.New(t, logger)

	outcome, err := d.Connect(driver.Params{
		Host:       *host,
		Port:       *port,
		UserName:   *user,
		Password:   *password,
		Database:   *database,
		AppName:    *appName,
		ServerName: *host,
		PacketSize: *packetSz,
	})
	if err != nil {
		fmt.Fprintf(stderr, "error: connect (%s): %v\n", outcome, err)
		return 1
	}
	defer d.Close()

	var header []string
	rowCount := 0
	result, err := d.ExecuteQuery(*query, func(cols []tds.Column, row tds.Row) {
		if header == nil {
			header = make([]string, len(cols))
			for i, c := range cols {
				header[i] = c.Name
			}
			fmt.Fprintln(stdout, strings.Join(header, "\t"))
		}
		vals := make([]string, len(row))
		for i, f := range row {
			vals[i] = formatField(cols[i], f)
		}
		fmt.Fprintln(stdout, strings.Join(vals, "\t"))
		rowCount++
	})
	if err != nil {
		fmt.Fprintf(stderr, "error: query: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "(%d rows, %d affected)\n", rowCount, result.AffectedRows)
	return 0
}

func formatField(col tds.Column, f tds.Field) string {
	switch col.Type {
	case tds.TypeInt1, tds.TypeInt2, tds.TypeInt4, tds.TypeInt8, tds.TypeIntN:
		v, err := f.Int()
		if err != nil {
			return "<error>"
		}
		return fmt.Sprintf("%d", v)
	case tds.TypeFloat4, tds.TypeFloat8, tds.TypeFloatN:
		v, err := f.Float()
		if err != nil {
			return "<error>"
		}
		return fmt.Sprintf("%g", v)
	case tds.TypeBit, tds.TypeBitN:
		v, err := f.Bool()
		if err != nil {
			return "<error>"
		}
		return fmt.Sprintf("%v", v)
	case tds.TypeMoney, tds.TypeMoney4, tds.TypeMoneyN:
		v, err := f.Money()
		if err != nil {
			return "<error>"
		}
		return v.String()
	case tds.TypeNVarChar, tds.TypeNChar:
		v, err := f.String(true)
		if err != nil {
			return "<error>"
		}
		return v
	default:
		v, err := f.String(false)
		if err != nil {
			return "<error>"
		}
		return v
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `tdsl - minimal Tabular Data Stream (TDS) client

Usage:
  tdsl -host <host> -port <port> -user <name> -password <pw> -e "<sql>"

Connection Options:
  -host <name>           Server host name (default: localhost)
  -port <n>              Server port (default: 1433)
  -U, -user <name>       Login user name (default: sa)
  -P, -password <pw>     Login password
  -database <name>       Initial database
  -appname <name>        Client application name (default: tdsl)
  -packet-size <n>       Negotiated packet size, 512-32767 (default: 4096)

Query:
  -e, -query <sql>       SQL batch to execute (required)

Logging:
  -log-level <level>     debug, info, warn, error, off (default: off)

General:
  -h, -help              Show help
  -v, -version           Show version

Examples:
  tdsl -host db1 -port 1433 -user sa -password secret -e "SELECT 1"
`)
}
