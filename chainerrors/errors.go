package chainerrors

import (
	"errors"
	"fmt"
	"strings"
)

// Validation (V) Errors. A transaction failing one of these is left out of the block.
var (
	ErrVBadSignature        = errors.New("V1|BadSignature: Transaction signature does not recover a sender for this chain.")
	ErrVNonceMismatch       = errors.New("V2|NonceMismatch: Transaction nonce differs from the sender account nonce.")
	ErrVInsufficientBalance = errors.New("V3|InsufficientBalance: Sender balance does not cover value plus gas limit times gas price.")
	ErrVIntrinsicGas        = errors.New("V4|IntrinsicGas: Transaction gas limit is below its intrinsic gas.")
	ErrVGasLimitExceeded    = errors.New("V5|GasLimitExceeded: Transaction gas limit is above the block gas limit.")
	ErrVUnsupportedTxType   = errors.New("V6|UnsupportedTxType: Only legacy transactions are accepted.")
)

// Fatal (F) Errors. Any of these stops block production.
var (
	ErrFBlockhashInValidation = errors.New("F1|BlockhashInValidation: Validity check asked for a block hash.")
	ErrFCodeHashMismatch      = errors.New("F2|CodeHashMismatch: Code does not hash to the account code hash.")
	ErrFMissingAccount        = errors.New("F3|MissingAccount: Effect targets an account that is not in the ledger.")
	ErrFBalanceUnderflow      = errors.New("F4|BalanceUnderflow: Balance decrease exceeds the account balance.")
	ErrFBalanceOverflow       = errors.New("F5|BalanceOverflow: Balance increase overflows 256 bits.")
	ErrFResolutionBudget      = errors.New("F6|ResolutionBudget: VM kept requesting data past the resolution step budget.")
	ErrFReceiptCountMismatch  = errors.New("F7|ReceiptCountMismatch: Transaction and receipt lists differ in length.")
	ErrFUnexpectedVMError     = errors.New("F8|UnexpectedVMError: VM failed with something other than a data requirement.")
	ErrFMissingBlock          = errors.New("F9|MissingBlock: Chain store has no block for the requested number.")
)

var validationErrors = []error{
	ErrVBadSignature, ErrVNonceMismatch, ErrVInsufficientBalance,
	ErrVIntrinsicGas, ErrVGasLimitExceeded, ErrVUnsupportedTxType,
}

// Fault is a fatal protocol violation. It wraps one of the F sentinels.
type Fault struct {
	Err    error
	Detail string
}

func (f *Fault) Error() string {
	if f.Detail == "" {
		return f.Err.Error()
	}
	return fmt.Sprintf("%s [%s]", f.Err.Error(), f.Detail)
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// Fatal wraps sentinel into a *Fault with a formatted detail.
func Fatal(sentinel error, format string, args ...interface{}) error {
	return &Fault{Err: sentinel, Detail: fmt.Sprintf(format, args...)}
}

// IsFatal reports whether err carries a *Fault anywhere in its chain.
func IsFatal(err error) bool {
	var f *Fault
	return errors.As(err, &f)
}

// IsValidation reports whether err is a recoverable transaction rejection.
func IsValidation(err error) bool {
	if err == nil || IsFatal(err) {
		return false
	}
	for _, v := range validationErrors {
		if errors.Is(err, v) {
			return true
		}
	}
	return false
}

// GetErrorName extracts the error name from the error message.
func GetErrorName(err error) string {
	if err == nil {
		return "No Error"
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "|") || !strings.Contains(errStr, ":") {
		return errStr
	}
	parts := strings.SplitN(errStr, "|", 2)
	nameParts := strings.SplitN(parts[1], ":", 2)
	return strings.TrimSpace(nameParts[0])
}

// GetErrorCode extracts the error code from the error message.
func GetErrorCode(err error) string {
	if err == nil {
		return ""
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "|") {
		return ""
	}
	parts := strings.SplitN(errStr, "|", 2)
	return strings.TrimSpace(parts[0])
}
