package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/quantfold/tradewire/client"
)

// terminalNotifier prints session notifications to stderr. There is no
// screen to navigate to in a CLI, so no Navigator is registered.
type terminalNotifier struct{}

func (terminalNotifier) Notify(_ context.Context, n client.Notification) error {
	fmt.Fprintf(os.Stderr, "%s: %s\n", n.Title, n.Message)
	return nil
}
