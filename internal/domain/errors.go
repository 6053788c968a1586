/**
 * @description
 * Error taxonomy shared across the automation core. Pure helpers raise these
 * synchronously; the engines catch them per account/schedule, record them in
 * the audit log, and continue the scan.
 */
package domain

import "errors"

// ErrNoSuchBillingDate is returned by the billing date calculator when an
// nth-weekday pattern has no occurrence in the reference month (e.g. a 5th
// Friday). Callers treat it as skip-this-month, not as a failure.
var ErrNoSuchBillingDate = errors.New("billing pattern has no occurrence in this month")

// ValidationError indicates bad input to the ledger poster: the same account
// on both sides, or a non-positive amount.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Reason
}

// ConfigurationError indicates malformed stored configuration, such as an
// overlapping or unsorted tier list or an invalid billing pattern.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration: " + e.Reason
}

// PersistenceError indicates that an atomic commit against the data store
// failed. The wrapped cause is preserved for logging.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return "persistence: " + e.Op + ": " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
