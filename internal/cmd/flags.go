package cmd

import (
	"encoding/json"
	"io"

	"github.com/spf13/pflag"

	"github.com/deskctl/deskctl/internal/config"
)

// geometryValue is a WIDTHxHEIGHT flag.
type geometryValue string

var _ pflag.Value = (*geometryValue)(nil)

func (g *geometryValue) String() string { return string(*g) }

func (g *geometryValue) Set(v string) error {
	if err := config.ValidateGeometry(v); err != nil {
		return err
	}
	*g = geometryValue(v)
	return nil
}

func (g *geometryValue) Type() string { return "WIDTHxHEIGHT" }

// writeJSON prints v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
