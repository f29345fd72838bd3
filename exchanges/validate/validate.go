// Package validate composes pre-flight checks run before a request leaves a
// client
package validate

// Checker defines a single validation check
type Checker interface {
	Check() error
}

// Check closes over an individual validation check method
type Check func() error

// Check initiates the check
func (c Check) Check() error {
	return c()
}

// All runs every check in order and returns the first failure
func All(checks ...Checker) error {
	for _, c := range checks {
		if err := c.Check(); err != nil {
			return err
		}
	}
	return nil
}
