package field

import (
	"fmt"
	"strings"

	"github.com/ViaSnake/mcaselector/internal/errors"
	"github.com/ViaSnake/mcaselector/internal/model"
	"github.com/ViaSnake/mcaselector/internal/version"
)

// Mode selects between Change and Force
type Mode string

const (
	ModeChange Mode = "change"
	ModeForce  Mode = "force"
)

// Edit pairs a parsed field with the way it is applied
type Edit struct {
	Field Editor
	Mode  Mode
}

// Apply runs the edit against one chunk
func (e Edit) Apply(reg *version.Registry, c *model.Chunk) (bool, error) {
	if e.Mode == ModeForce {
		return e.Field.Force(reg, c)
	}
	return e.Field.Change(reg, c)
}

func (e Edit) String() string {
	return fmt.Sprintf("%s %s=%s", e.Mode, e.Field.Type(), e.Field.NewValueString())
}

// ParseEdit builds an edit from "Name=value" text
func ParseEdit(text string, mode Mode) (Edit, error) {
	name, value, ok := strings.Cut(text, "=")
	if !ok {
		return Edit{}, errors.InvalidArgument(fmt.Sprintf("edit %q is not of the form field=value", text), nil)
	}
	if mode != ModeChange && mode != ModeForce {
		return Edit{}, errors.InvalidArgument(fmt.Sprintf("unknown edit mode %q", mode), nil)
	}
	t, err := ParseType(name)
	if err != nil {
		return Edit{}, err
	}
	f, err := Parse(t, value)
	if err != nil {
		return Edit{}, err
	}
	return Edit{Field: f, Mode: mode}, nil
}
