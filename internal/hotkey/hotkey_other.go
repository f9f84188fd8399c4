//go:build !linux && !darwin

package hotkey

type unsupportedManager struct{}

// New returns a manager whose Register always fails with ErrUnsupported.
func New() (Manager, error) {
	return unsupportedManager{}, nil
}

func (unsupportedManager) Register(accel string, callback func(pressed bool)) error {
	if _, err := Parse(accel); err != nil {
		return err
	}
	return ErrUnsupported
}

func (unsupportedManager) Unregister(string) error { return nil }
func (unsupportedManager) Close() error            { return nil }
