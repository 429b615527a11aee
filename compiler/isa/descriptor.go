package isa

import (
	"slices"

	"gopkg.in/yaml.v3"
	"tlog.app/go/errors"

	"github.com/spacemeshos/cranelift/compiler/ir"
)

type (
	Endianness uint8

	// Descriptor selects and parametrizes a target.
	Descriptor struct {
		Name       string     `yaml:"name"`
		WordBits   int        `yaml:"word_bits"`
		Endianness Endianness `yaml:"endianness"`
		Extensions []string   `yaml:"extensions,omitempty"`
		CallConv   string     `yaml:"call_conv,omitempty"`

		// RegClasses restricts allocatable registers by class name.
		RegClasses map[string][]string `yaml:"reg_classes,omitempty"`
	}
)

const (
	LittleEndian Endianness = iota
	BigEndian
)

func (e Endianness) String() string {
	if e == BigEndian {
		return "big"
	}

	return "little"
}

func (e Endianness) MarshalYAML() (any, error) {
	return e.String(), nil
}

func (e *Endianness) UnmarshalYAML(n *yaml.Node) error {
	switch n.Value {
	case "little", "":
		*e = LittleEndian
	case "big":
		*e = BigEndian
	default:
		return errors.New("unknown endianness %q at line %d", n.Value, n.Line)
	}

	return nil
}

// ParseDescriptor decodes a YAML target description.
func ParseDescriptor(data []byte) (d Descriptor, err error) {
	err = yaml.Unmarshal(data, &d)
	if err != nil {
		return d, errors.Wrap(err, "parse descriptor")
	}

	if d.Name == "" {
		return d, errors.New("descriptor: no isa name")
	}

	return d, nil
}

func (d Descriptor) Marshal() ([]byte, error) {
	return yaml.Marshal(d)
}

func (d *Descriptor) Has(ext string) bool {
	return slices.Contains(d.Extensions, ext)
}

// Conv resolves the calling convention, def is used when none is set.
func (d *Descriptor) Conv(def ir.CallConv) (ir.CallConv, error) {
	if d.CallConv == "" {
		return def, nil
	}

	cc, ok := ir.CallConvByName(d.CallConv)
	if !ok || cc == ir.CallConvDefault {
		return 0, errors.New("unknown calling convention %q", d.CallConv)
	}

	return cc, nil
}
