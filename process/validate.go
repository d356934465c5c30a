package process

import (
	"bytes"
	"fmt"

	"github.com/influxdata/influxdb/models"
)

// MalformedLineError is returned when rendered output does not parse as line protocol.
type MalformedLineError struct {
	Err error
}

func (e *MalformedLineError) Error() string {
	return fmt.Sprintf("malformed line protocol: %s", e.Err)
}

func (e *MalformedLineError) Unwrap() error {
	return e.Err
}

// Validate parses data back and checks one physical line and one point per rendered line came out.
func Validate(data []byte, lines int) error {
	if len(data) == 0 {
		return nil
	}
	if n := bytes.Count(data, []byte{'\n'}); n != lines {
		return &MalformedLineError{Err: fmt.Errorf("got %d physical lines for %d lines", n, lines)}
	}
	points, err := models.ParsePoints(data)
	if err != nil {
		return &MalformedLineError{Err: err}
	}
	if len(points) != lines {
		return &MalformedLineError{Err: fmt.Errorf("parsed %d points from %d lines", len(points), lines)}
	}
	return nil
}
