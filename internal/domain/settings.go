package domain

// Application setting keys. Settings are process-wide key/value pairs read
// at the start of each engine run, never cached across runs.
const (
	// SettingInterestPrincipalMethod selects which balance the interest
	// engine accrues on. Absent or unrecognized values fall back to
	// PrincipalCurrentBalance, the least aggressive behavior.
	SettingInterestPrincipalMethod = "interest_principal_method"
)

// Values for SettingInterestPrincipalMethod.
const (
	// PrincipalCurrentBalance accrues on the balance at run time.
	PrincipalCurrentBalance = "current_balance"
	// PrincipalMinimumBalance accrues on the lowest balance observed during
	// the prior calendar month (passbook semantics).
	PrincipalMinimumBalance = "minimum_balance"
)
