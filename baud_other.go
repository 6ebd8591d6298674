//go:build !linux

package serial

// checkBaudRate accepts any positive rate; the driver rejects what the
// hardware cannot do when the frame is applied
func checkBaudRate(rate int) error {
	if rate <= 0 {
		return ErrInvalidBaudRate
	}
	return nil
}
