package replication

import (
	"fmt"
	"strings"
	"time"
)

// Op is the kind of row mutation being mirrored.
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// TimeLayout is how timestamps travel in queued parameters. Always UTC.
const TimeLayout = "2006-01-02 15:04:05.000000"

type Column struct {
	Name  string
	Value any
}

// Mutation is one row-level write, independent of SQL dialect.
type Mutation struct {
	Op      Op
	Table   string
	ID      string
	Columns []Column // insert: all columns including id; update: changed columns
}

// Target is a secondary database, written "driver|dsn" in configuration.
type Target struct {
	Driver string
	DSN    string
}

func ParseTarget(conn string) (Target, error) {
	driver, dsn, ok := strings.Cut(conn, "|")
	if !ok || dsn == "" {
		return Target{}, fmt.Errorf("invalid replication target %q, want driver|dsn", conn)
	}
	switch driver {
	case "postgres", "mysql", "sqlite3":
	default:
		return Target{}, fmt.Errorf("unsupported replication driver %q", driver)
	}
	return Target{Driver: driver, DSN: dsn}, nil
}

func (t Target) String() string { return t.Driver + "|" + t.DSN }

func (t Target) placeholder(n int) string {
	if t.Driver == "postgres" {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// Render produces the statement and parameters for t's dialect. Inserts are
// written so that replaying them is harmless.
func (t Target) Render(m Mutation) (string, []any) {
	var sb strings.Builder
	params := make([]any, 0, len(m.Columns)+1)

	switch m.Op {
	case OpInsert:
		names := make([]string, len(m.Columns))
		marks := make([]string, len(m.Columns))
		for i, c := range m.Columns {
			names[i] = c.Name
			marks[i] = t.placeholder(i + 1)
			params = append(params, paramValue(c.Value))
		}
		switch t.Driver {
		case "mysql":
			sb.WriteString("INSERT IGNORE INTO ")
		case "sqlite3":
			sb.WriteString("INSERT OR IGNORE INTO ")
		default:
			sb.WriteString("INSERT INTO ")
		}
		fmt.Fprintf(&sb, "%s (%s) VALUES (%s)", m.Table, strings.Join(names, ", "), strings.Join(marks, ", "))
		if t.Driver == "postgres" {
			sb.WriteString(" ON CONFLICT (id) DO NOTHING")
		}

	case OpUpdate:
		sets := make([]string, len(m.Columns))
		for i, c := range m.Columns {
			sets[i] = c.Name + " = " + t.placeholder(i+1)
			params = append(params, paramValue(c.Value))
		}
		fmt.Fprintf(&sb, "UPDATE %s SET %s WHERE id = %s", m.Table, strings.Join(sets, ", "), t.placeholder(len(m.Columns)+1))
		params = append(params, m.ID)

	case OpDelete:
		fmt.Fprintf(&sb, "DELETE FROM %s WHERE id = %s", m.Table, t.placeholder(1))
		params = append(params, m.ID)
	}

	return sb.String(), params
}

// paramValue flattens values into what survives a JSON round trip.
func paramValue(v any) any {
	switch x := v.(type) {
	case time.Time:
		return x.UTC().Format(TimeLayout)
	case *string:
		if x == nil {
			return nil
		}
		return *x
	case fmt.Stringer:
		return x.String()
	}
	return v
}
