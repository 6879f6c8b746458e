package models

import "github.com/shopspring/decimal"

// Operation is a user action validated against season and migration state.
type Operation string

const (
	OperationDeposit    Operation = "deposit"
	OperationWithdrawal Operation = "withdrawal"
	OperationTransfer   Operation = "transfer"
	OperationMigration  Operation = "migration"
)

// ValidationRequest carries the inputs for one operation check.
type ValidationRequest struct {
	Operation     Operation
	SeasonId      int64
	VaultAddress  string
	WalletAddress string
	Amount        *decimal.Decimal // nil when the operation carries no amount
}

// ValidationResult accumulates rule outcomes. Business-rule failures land in
// Errors/Warnings; the validator itself only returns a Go error for
// infrastructure failures.
type ValidationResult struct {
	IsValid  bool     `json:"is_valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// AddError appends a rule violation and marks the result invalid.
func (r *ValidationResult) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.IsValid = false
}

// AddWarning appends a non-blocking advisory.
func (r *ValidationResult) AddWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}
