package source

import (
	"strings"

	"github.com/lib/pq"
)

// TableDDL returns statements which create |table| and its unique index,
// if they don't already exist.
func TableDDL(table string) string {
	var r = strings.NewReplacer(
		"{table}", pq.QuoteIdentifier(table),
		"{index}", pq.QuoteIdentifier(table+"_spo"),
	)
	return r.Replace(tableDDL)
}

// Schema returns Postgres statements which create |table| along with a
// trigger which notifies |channel| of each inserted or updated row.
func Schema(table, channel string) string {
	var r = strings.NewReplacer(
		"{table}", pq.QuoteIdentifier(table),
		"{func}", pq.QuoteIdentifier(table+"_notify"),
		"{trigger}", pq.QuoteIdentifier(table+"_notify"),
		"{channel}", pq.QuoteLiteral(channel),
	)
	return TableDDL(table) + r.Replace(notifyDDL)
}

const tableDDL = `
CREATE TABLE IF NOT EXISTS {table}
(
    source TEXT NOT NULL,
    s      TEXT NOT NULL,
    p      TEXT NOT NULL,
    o      TEXT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS {index} ON {table} (source, s, p, o);
`

const notifyDDL = `
CREATE OR REPLACE FUNCTION {func}() RETURNS trigger AS $$
BEGIN
    PERFORM pg_notify({channel}, json_build_object(
        'table', TG_TABLE_NAME,
        'action', TG_OP,
        'data', row_to_json(NEW)
    )::text);
    RETURN NEW;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS {trigger} ON {table};
CREATE TRIGGER {trigger} AFTER INSERT OR UPDATE ON {table}
    FOR EACH ROW EXECUTE PROCEDURE {func}();
`
