package navigation

import "errors"

var (
	ErrOperationPending    = errors.New("save or cancel current operation")
	ErrConfirmationPending = errors.New("confirm (F8) or cancel (F9) the pending delete")
	ErrNoMoreRecords       = errors.New("no more records")
	ErrNoRecords           = errors.New("no records to show")
	ErrNothingToSubmit     = errors.New("nothing to submit: start a new record or edit the current one")
	ErrUnknownAction       = errors.New("unknown action")
)
