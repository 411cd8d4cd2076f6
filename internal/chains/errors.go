package chains

import "github.com/cockroachdb/errors"

var (
	ErrInvalidRPCURL       = errors.New("invalid rpc url")
	ErrNetwork             = errors.New("network error")
	ErrInvalidAddress      = errors.New("invalid address")
	ErrTransactionFailed   = errors.New("transaction failed")
	ErrGasEstimationFailed = errors.New("gas estimation failed")
	ErrReceiptNotFound     = errors.New("transaction receipt not found")
)

func mark(err error, kind error, op string) error {
	return errors.Mark(errors.Wrap(err, op), kind)
}
