// Package postgres implements the store interfaces on PostgreSQL via
// database/sql with the pgx stdlib driver. Schema migrations are
// embedded and applied with goose.
package postgres
