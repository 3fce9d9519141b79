//go:build !unix

package transfer

// Windows reports cross-volume moves as ERROR_NOT_SAME_DEVICE, which
// os.Rename already turns into a plain error.
func isEXDEV(error) bool { return false }
