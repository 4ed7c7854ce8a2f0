// Package postgres implements the credential, session, and security-log
// persistence boundaries on PostgreSQL via pgx. It satisfies
// authcore.UserStore, session.Store, and audit.EntryWriter.
package postgres
