package errors

import "strconv"

// ERR is the numeric error code carried by every *Error.
type ERR int32

const (
	ERR_UNKNOWN             ERR = 0
	ERR_INVALID_ARGUMENT    ERR = 1
	ERR_NOT_FOUND           ERR = 2
	ERR_PROCESSING          ERR = 3
	ERR_CONFIGURATION       ERR = 4
	ERR_CONTEXT_CANCELED    ERR = 5
	ERR_ERROR               ERR = 9
	ERR_FORMAT              ERR = 10
	ERR_INVALID_LENGTH      ERR = 11
	ERR_STALE_SUBMISSION    ERR = 20
	ERR_BLOCK_REJECTED      ERR = 21
	ERR_SERVICE_UNAVAILABLE ERR = 30
	ERR_STORAGE_ERROR       ERR = 40
)

var ERR_name = map[int32]string{
	0:  "UNKNOWN",
	1:  "INVALID_ARGUMENT",
	2:  "NOT_FOUND",
	3:  "PROCESSING",
	4:  "CONFIGURATION",
	5:  "CONTEXT_CANCELED",
	9:  "ERROR",
	10: "FORMAT",
	11: "INVALID_LENGTH",
	20: "STALE_SUBMISSION",
	21: "BLOCK_REJECTED",
	30: "SERVICE_UNAVAILABLE",
	40: "STORAGE_ERROR",
}

// Enum returns the symbolic name of the code.
func (x ERR) Enum() string {
	if name, ok := ERR_name[int32(x)]; ok {
		return name
	}

	return strconv.Itoa(int(x))
}

func (x ERR) String() string {
	return x.Enum()
}
