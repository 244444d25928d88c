package cli

import (
	"fmt"

	"github.com/tutorloop/tutorloop/internal/app"
)

var container *app.Container

// SetApp sets the wired dependency container used by all commands.
func SetApp(c *app.Container) {
	container = c
}

// GetApp returns the container, or nil when running without a database.
func GetApp() *app.Container {
	return container
}

func requireApp() (*app.Container, error) {
	if container == nil {
		return nil, fmt.Errorf("not initialized: check DATABASE_URL and try again")
	}
	return container, nil
}
