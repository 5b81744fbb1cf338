package client

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("no terminal") }

func TestBellAlerter(t *testing.T) {
	var out bytes.Buffer

	assert.NoError(t, BellAlerter{Out: &out}.Play())
	assert.Equal(t, "\a", out.String())
}

func TestPlayAlert_SwallowsFailures(t *testing.T) {
	assert.NotPanics(t, func() {
		playAlert(BellAlerter{Out: failingWriter{}})
		playAlert(nil)
	})
}

func TestCommandAlerter_MissingBinary(t *testing.T) {
	err := CommandAlerter{Name: "definitely-not-a-sound-player"}.Play()
	assert.Error(t, err)
}
