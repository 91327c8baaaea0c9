package notify

import (
	"fmt"
	"os/exec"

	"github.com/noahxzhu/charge-notify/internal/model"
)

// Desktop shows updates through notify-send. It satisfies the monitor's
// UpdateRenderer.
type Desktop struct{}

func (Desktop) Show(update model.Update) error {
	cmd := exec.Command(
		"notify-send",
		"-u", "normal",
		"-a", "charge-notify",
		update.Title,
		update.Description,
	)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("notify-send failed: %w", err)
	}
	return nil
}
