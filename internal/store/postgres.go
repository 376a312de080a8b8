package store

// pgx database/sql driver, registered as "pgx"
import _ "github.com/jackc/pgx/v5/stdlib"
