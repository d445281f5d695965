package model

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the grid engine. All of them are recoverable:
// the rejected operation leaves the tree and the rows untouched.
var (
	ErrInvalidParent  = errors.New("parent option does not exist")
	ErrDuplicateID    = errors.New("option id already exists")
	ErrEmptyID        = errors.New("option id is empty")
	ErrNotAnOption    = errors.New("value is not a legal option for this cell")
	ErrParentRequired = errors.New("previous level must be selected first")
	ErrRowNotFound    = errors.New("row not found")
	ErrInvalidCount   = errors.New("count must be positive")
	ErrOutOfRange     = errors.New("window start out of range")
	ErrInvalidLevel   = errors.New("level out of range")
	ErrLineageBroken  = errors.New("row lineage is inconsistent")
	ErrSchemaMismatch = errors.New("schema does not match row width")
)

// OpError records which operation failed and on which cell.
// RowID and Level are zero when they do not apply.
type OpError struct {
	Op    string
	RowID int64
	Level int
	ID    string
	Err   error
}

func (e *OpError) Error() string {
	switch {
	case e.ID != "" && e.RowID != 0:
		return fmt.Sprintf("%s row %d level %d %q: %v", e.Op, e.RowID, e.Level, e.ID, e.Err)
	case e.ID != "":
		return fmt.Sprintf("%s %q: %v", e.Op, e.ID, e.Err)
	case e.RowID != 0:
		return fmt.Sprintf("%s row %d level %d: %v", e.Op, e.RowID, e.Level, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
}

func (e *OpError) Unwrap() error {
	return e.Err
}
