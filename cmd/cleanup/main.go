// cleanup prunes aged audit and document access log rows. Audit history is
// append-only in the application; retention is enforced out of band by this
// job, typically from cron.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5"
)

func main() {
	url := flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
	retentionDays := flag.Int("retention-days", 365, "Delete audit rows older than this many days")
	accessLogDays := flag.Int("access-log-days", 90, "Delete document access log rows older than this many days")
	flag.Parse()

	if *url == "" {
		fmt.Fprintln(os.Stderr, "Usage: cleanup -database-url <conn> (or set DATABASE_URL)")
		os.Exit(1)
	}

	ctx := context.Background()
	conn, err := pgx.Connect(ctx, *url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close(ctx)

	tag, err := conn.Exec(ctx,
		`DELETE FROM rbac_audit_logs WHERE created_at < now() - make_interval(days => $1)`,
		*retentionDays)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Audit log cleanup failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Deleted %d audit rows older than %d days.\n", tag.RowsAffected(), *retentionDays)

	tag, err = conn.Exec(ctx,
		`DELETE FROM document_access_logs WHERE created_at < now() - make_interval(days => $1)`,
		*accessLogDays)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Access log cleanup failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Deleted %d access log rows older than %d days.\n", tag.RowsAffected(), *accessLogDays)
}
