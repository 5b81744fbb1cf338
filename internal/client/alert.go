package client

import (
	"io"
	"log"
	"os/exec"
)

// Alerter plays the audible cue for inbound messages and notifications.
type Alerter interface {
	Play() error
}

// BellAlerter rings the terminal bell.
type BellAlerter struct {
	Out io.Writer
}

func (b BellAlerter) Play() error {
	_, err := io.WriteString(b.Out, "\a")
	return err
}

// CommandAlerter runs an external player, e.g. paplay with a sound file.
// It does not wait for playback to finish.
type CommandAlerter struct {
	Name string
	Args []string
}

func (c CommandAlerter) Play() error {
	cmd := exec.Command(c.Name, c.Args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	go cmd.Wait()
	return nil
}

// playAlert never fails the caller: sound is optional.
func playAlert(a Alerter) {
	if a == nil {
		return
	}
	if err := a.Play(); err != nil {
		log.Printf("WARNING: Failed to play alert: %v", err)
	}
}
