// Package console holds the state controllers behind the admin console
// screens. Controllers own the loaded data, the busy flags that gate
// duplicate submissions, and the refetch-after-mutation cycle; rendering
// is left to the frontend.
package console

// Notifier receives user-facing notices from the controllers.
type Notifier interface {
	Success(message string)
	Error(message string)
}

// nopNotifier discards all notices.
type nopNotifier struct{}

func (nopNotifier) Success(string) {}
func (nopNotifier) Error(string)   {}
