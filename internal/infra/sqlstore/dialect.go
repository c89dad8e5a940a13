package sqlstore

const (
	sqliteCreateTable = `CREATE TABLE IF NOT EXISTS issue_documents (
		name TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`
	sqliteSelect = `SELECT payload FROM issue_documents WHERE name = ?`
	sqliteUpsert = `INSERT INTO issue_documents(name, payload) VALUES(?, ?)
		ON CONFLICT(name) DO UPDATE SET payload=excluded.payload`

	postgresCreateTable = `CREATE TABLE IF NOT EXISTS issue_documents (
		name TEXT PRIMARY KEY,
		payload BYTEA NOT NULL
	)`
	postgresSelect = `SELECT payload FROM issue_documents WHERE name = $1`
	postgresUpsert = `INSERT INTO issue_documents(name, payload) VALUES($1, $2)
		ON CONFLICT(name) DO UPDATE SET payload=EXCLUDED.payload`
)

// Dialect holds the driver name and statements for one SQL database.
type Dialect struct {
	Driver       string
	createTable  string
	selectDoc    string
	upsertDoc    string
	maxOpenConns int
}

// SQLite uses the pure Go modernc.org/sqlite driver. A single connection
// avoids SQLITE_BUSY between writers of the same process.
var SQLite = Dialect{
	Driver:       "sqlite",
	createTable:  sqliteCreateTable,
	selectDoc:    sqliteSelect,
	upsertDoc:    sqliteUpsert,
	maxOpenConns: 1,
}

// Postgres uses pgx through database/sql.
var Postgres = Dialect{
	Driver:      "pgx",
	createTable: postgresCreateTable,
	selectDoc:   postgresSelect,
	upsertDoc:   postgresUpsert,
}
