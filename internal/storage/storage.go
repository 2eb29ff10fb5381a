package storage

// Tx is the slice of a database transaction the service layer drives.
// Keeping it narrow lets the lifecycle and sweep logic run against an
// in-memory store in tests.
type Tx interface {
	Commit() error
	Rollback() error
}
