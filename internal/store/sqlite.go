package store

// CGo-free SQLite driver, registered as "sqlite"
import _ "modernc.org/sqlite"
