package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/paulmach/orb/encoding/wkt"
	"go.uber.org/zap"

	"github.com/h2gis/h2gis-go/resultbuf"
	"github.com/h2gis/h2gis-go/session"
)

func main() {
	var (
		dbPath      = flag.String("db", "", "Path to the H2 database (without file extension)")
		user        = flag.String("user", "sa", "Database user")
		password    = flag.String("password", "", "Database password")
		libPath     = flag.String("lib", "", "Path to the H2GIS shared library")
		sqlStmt     = flag.String("sql", "", "SQL statement to execute")
		batch       = flag.Int("batch", session.DefaultBatchSize, "Fetch batch size")
		timeout     = flag.Duration("timeout", 10*time.Second, "Initialization timeout")
		meta        = flag.Bool("meta", false, "Print database metadata as JSON and exit")
		verbose     = flag.Bool("v", false, "Verbose logging")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "Usage: h2gis-sql -db <path> -sql <statement>")
		fmt.Fprintln(os.Stderr, "       h2gis-sql -db <path> -meta")
		fmt.Fprintln(os.Stderr, "       h2gis-sql -db <path> -i  (interactive mode)")
		os.Exit(1)
	}

	opts := []session.Option{session.WithInitTimeout(*timeout)}
	if *libPath != "" {
		opts = append(opts, session.WithLibraryPath(*libPath))
	}
	if *verbose {
		if logger, err := zap.NewDevelopment(); err == nil {
			opts = append(opts, session.WithLogger(logger))
		}
	}

	if *interactive {
		if err := runInteractive(*dbPath, *user, *password, opts); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(*dbPath, *user, *password, *sqlStmt, *batch, *meta, opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(dbPath, user, password, sqlStmt string, batch int, meta bool, opts []session.Option) error {
	s, err := session.Open(context.Background(), opts...)
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	defer s.Release()

	conn, err := s.Connect(dbPath, user, password)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	if err := s.Load(conn); err != nil {
		return fmt.Errorf("load spatial extension: %w", err)
	}

	if meta {
		m, err := s.MetadataJSON(conn)
		if err != nil {
			return fmt.Errorf("metadata: %w", err)
		}
		fmt.Println(m)
		return nil
	}

	if sqlStmt == "" {
		fmt.Println("Connected. Use -sql to execute a statement or -i for interactive mode.")
		return nil
	}

	if !isQuery(sqlStmt) {
		n, err := s.Execute(conn, sqlStmt)
		if err != nil {
			return err
		}
		fmt.Printf("Update count: %d\n", n)
		return nil
	}

	stmt, err := s.Prepare(conn, sqlStmt)
	if err != nil {
		return err
	}
	defer s.CloseQuery(stmt)

	rs, err := s.ExecutePrepared(stmt)
	if err != nil {
		return err
	}
	defer s.FreeResultSet(rs)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	total := 0
	headerDone := false
	for {
		buf, err := s.FetchBatch(rs, batch)
		if err != nil {
			return err
		}
		if buf == nil {
			break
		}
		if !headerDone {
			names := make([]string, 0, len(buf.Columns()))
			for _, c := range buf.Columns() {
				names = append(names, c.Name)
			}
			fmt.Fprintln(w, strings.Join(names, "\t"))
			headerDone = true
		}
		for {
			row, err := buf.Next()
			if err != nil {
				return err
			}
			if row == nil {
				break
			}
			cells := make([]string, len(row))
			for i, v := range row {
				cells[i] = formatValue(v)
			}
			fmt.Fprintln(w, strings.Join(cells, "\t"))
			total++
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("(%d rows)\n", total)
	return nil
}

// isQuery reports whether sql produces a result set rather than an
// update count.
func isQuery(sql string) bool {
	head := strings.ToUpper(strings.TrimSpace(sql))
	for _, kw := range []string{"SELECT", "WITH", "SHOW", "CALL", "VALUES", "EXPLAIN"} {
		if strings.HasPrefix(head, kw) {
			return true
		}
	}
	return false
}

// formatValue renders a decoded cell for display. Geometry comes out as
// WKT, prefixed with its SRID when one was stripped from the EWKB.
func formatValue(v resultbuf.Value) string {
	if v.IsNull() {
		return "NULL"
	}
	if v.Type() == resultbuf.TypeGeometry {
		g, err := v.Geometry()
		if err != nil {
			return fmt.Sprintf("<geometry: %v>", err)
		}
		_, srid := v.WKB()
		if srid != 0 {
			return fmt.Sprintf("SRID=%d;%s", srid, wkt.MarshalString(g))
		}
		return wkt.MarshalString(g)
	}
	return v.String()
}
