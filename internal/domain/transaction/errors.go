package transaction

// ErrTransactionNotFound indicates the ledger has no entry for the id
type ErrTransactionNotFound struct {
	ID string
}

func (e ErrTransactionNotFound) Error() string {
	return "transaction not found: " + e.ID
}
