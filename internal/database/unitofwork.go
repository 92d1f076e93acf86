package database

import (
	"gorm.io/gorm"
)

// UnitOfWork wraps a single GORM transaction together with a queue of
// side effects that must only run once the transaction has committed.
// Broadcast publishes and push notifications are queued here so that no
// subscriber ever observes state that durable storage could roll back.
type UnitOfWork struct {
	tx          *gorm.DB
	afterCommit []func()
}

// DB returns the transaction handle. All reads and writes inside the unit
// of work go through it.
func (u *UnitOfWork) DB() *gorm.DB {
	return u.tx
}

// AfterCommit queues fn to run after a successful commit. Queued functions
// run in FIFO order; on rollback they are discarded without running.
func (u *UnitOfWork) AfterCommit(fn func()) {
	u.afterCommit = append(u.afterCommit, fn)
}

// WithUnitOfWork runs fn inside a transaction on db. If fn returns nil the
// transaction commits and the queued after-commit effects run, in order,
// outside the transaction. If fn returns an error the transaction rolls
// back and no effect runs.
func WithUnitOfWork(db *gorm.DB, fn func(uow *UnitOfWork) error) error {
	uow := &UnitOfWork{}
	err := db.Transaction(func(tx *gorm.DB) error {
		uow.tx = tx
		return fn(uow)
	})
	if err != nil {
		return err
	}
	for _, effect := range uow.afterCommit {
		effect()
	}
	return nil
}
