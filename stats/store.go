package stats

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/fatih/structs"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// statsTable buffers the rows inserted for one run_stats table between
// creation and Flush.
type statsTable struct {
	entries []any
}

// sqliteStore is the SQLite-backed persistence behind Recorder: every
// counter type Recorder tracks (CoreEntry, ChannelEntry,
// InterconnectEntry, ModelEntry) is reflected into its own table and
// flushed in one transaction at the end of a run. The reflection-driven
// create/insert shape follows datarecording.DataRecorder's table/insert
// idiom, but this type exists only to persist this package's own record
// types — it has no generic "any struct, any caller" surface to keep
// adapted.
type sqliteStore struct {
	*sql.DB
	statement *sql.Stmt

	tables     map[string]*statsTable
	entryCount int
}

// newSQLiteStore opens (creating) the SQLite database at path+".sqlite3"
// and registers an atexit flush as a last-resort safety net in case the
// caller's own Run loop never reaches Recorder.Flush.
func newSQLiteStore(path string) *sqliteStore {
	if path == "" {
		path = "npusim_run_stats_" + xid.New().String()
	}

	filename := path + ".sqlite3"

	if _, err := os.Stat(filename); err == nil {
		panic(fmt.Errorf("stats: file %s already exists", filename))
	}

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		panic(err)
	}

	s := &sqliteStore{DB: db, tables: make(map[string]*statsTable)}

	atexit.Register(func() { s.flush() })

	return s
}

func allowedFieldKind(kind reflect.Kind) bool {
	switch kind {
	case
		reflect.Bool,
		reflect.Int,
		reflect.Int8,
		reflect.Int16,
		reflect.Int32,
		reflect.Int64,
		reflect.Uint,
		reflect.Uint8,
		reflect.Uint16,
		reflect.Uint32,
		reflect.Uint64,
		reflect.Uintptr,
		reflect.Float32,
		reflect.Float64,
		reflect.String:
		return true
	default:
		return false
	}
}

func checkStructFields(entry any) error {
	t := reflect.TypeOf(entry)

	for i := 0; i < t.NumField(); i++ {
		if !allowedFieldKind(t.Field(i).Type.Kind()) {
			return errors.New("stats: entry has an unsupported field type")
		}
	}

	return nil
}

func (s *sqliteStore) createTable(tableName string, sampleEntry any) {
	if err := checkStructFields(sampleEntry); err != nil {
		panic(err)
	}

	fields := strings.Join(structs.Names(sampleEntry), ", \n\t")

	s.mustExecute(`CREATE TABLE ` + tableName + ` (` + "\n\t" + fields + "\n" + `);`)

	s.tables[tableName] = &statsTable{entries: []any{}}
}

func (s *sqliteStore) insertData(tableName string, entry any) {
	table, ok := s.tables[tableName]
	if !ok {
		panic(fmt.Sprintf("stats: table %s does not exist", tableName))
	}

	table.entries = append(table.entries, entry)
	s.entryCount++
}

func (s *sqliteStore) flush() {
	if s.entryCount == 0 {
		return
	}

	s.mustExecute("BEGIN TRANSACTION")
	defer s.mustExecute("COMMIT TRANSACTION")

	for tableName, table := range s.tables {
		if len(table.entries) == 0 {
			continue
		}

		s.prepareStatement(tableName, table.entries[0])

		for _, entry := range table.entries {
			v := []any{}

			val := reflect.ValueOf(entry)
			for i := 0; i < val.NumField(); i++ {
				v = append(v, val.Field(i).Interface())
			}

			if _, err := s.statement.Exec(v...); err != nil {
				panic(err)
			}
		}

		table.entries = nil

		s.statement.Close()
		s.statement = nil
	}

	s.entryCount = 0
}

func (s *sqliteStore) mustExecute(query string) sql.Result {
	res, err := s.Exec(query)
	if err != nil {
		panic(fmt.Errorf("stats: failed to execute %q: %w", query, err))
	}

	return res
}

func (s *sqliteStore) prepareStatement(tableName string, sampleEntry any) {
	placeholders := structs.Names(sampleEntry)
	for i := range placeholders {
		placeholders[i] = "?"
	}

	sqlStr := "INSERT INTO " + tableName + " VALUES (" + strings.Join(placeholders, ", ") + ")"

	stmt, err := s.Prepare(sqlStr)
	if err != nil {
		panic(err)
	}

	s.statement = stmt
}
