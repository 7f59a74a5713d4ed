// Package database opens the SQLite file that holds the service's local
// state and applies its schema migrations.
//
// Today the only state is the upstream session token (see
// credential.SQLiteStore), so the database is optional: it is opened only
// when credential.persist_session is enabled.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migrations are file pairs named YYYYMMDD_HHMMSS_name.up.sql and
// .down.sql. Applied versions are recorded in schema_migrations; each
// migration runs in its own transaction.
//
// Queries elsewhere must use ? placeholders. The database file is created
// with mode 0600.
package database
