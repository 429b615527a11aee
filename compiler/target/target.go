// Package target is the registry of backends.
package target

import (
	"runtime"
	"sort"

	"golang.org/x/sys/cpu"
	"tlog.app/go/errors"

	"github.com/spacemeshos/cranelift/compiler/isa"
	"github.com/spacemeshos/cranelift/compiler/isa/arm64"
	"github.com/spacemeshos/cranelift/compiler/isa/riscv"
	"github.com/spacemeshos/cranelift/compiler/isa/x64"
)

type (
	Backend struct {
		Name string
		// Default is the descriptor used when only the name is given.
		Default    isa.Descriptor
		Extensions []string

		New func(desc isa.Descriptor) (isa.TargetISA, error)
	}
)

var ErrUnknownISA = errors.New("unknown isa")

var backends = map[string]*Backend{}

func init() {
	Register(&Backend{
		Name:       x64.Name,
		Default:    isa.Descriptor{Name: x64.Name, WordBits: 64, Extensions: []string{"sse4.1", "popcnt"}},
		Extensions: x64.Extensions,
		New:        func(d isa.Descriptor) (isa.TargetISA, error) { return x64.New(d) },
	})

	Register(&Backend{
		Name:       arm64.Name,
		Default:    isa.Descriptor{Name: arm64.Name, WordBits: 64, Extensions: []string{"fp", "asimd"}},
		Extensions: arm64.Extensions,
		New:        func(d isa.Descriptor) (isa.TargetISA, error) { return arm64.New(d) },
	})

	for _, name := range []string{riscv.Name32, riscv.Name64} {
		bits := 64
		if name == riscv.Name32 {
			bits = 32
		}

		Register(&Backend{
			Name:       name,
			Default:    isa.Descriptor{Name: name, WordBits: bits, Extensions: []string{"m", "f", "d"}},
			Extensions: riscv.Extensions,
			New:        func(d isa.Descriptor) (isa.TargetISA, error) { return riscv.New(d) },
		})
	}
}

// Register adds a backend. It is not safe to call concurrently with Lookup.
func Register(b *Backend) {
	backends[b.Name] = b
}

// Names lists registered backends in sorted order.
func Names() []string {
	r := make([]string, 0, len(backends))

	for name := range backends {
		r = append(r, name)
	}

	sort.Strings(r)

	return r
}

func Get(name string) (*Backend, bool) {
	b, ok := backends[name]
	return b, ok
}

// Lookup builds the backend described by desc.
func Lookup(desc isa.Descriptor) (isa.TargetISA, error) {
	b, ok := backends[desc.Name]
	if !ok {
		return nil, errors.Wrap(ErrUnknownISA, "%q", desc.Name)
	}

	for _, ext := range desc.Extensions {
		if !contains(b.Extensions, ext) {
			return nil, errors.New("%s: unknown extension %q", desc.Name, ext)
		}
	}

	t, err := b.New(desc)
	if err != nil {
		return nil, err
	}

	return t, nil
}

// ByName builds a backend with its default descriptor.
func ByName(name string) (isa.TargetISA, error) {
	b, ok := backends[name]
	if !ok {
		return nil, errors.Wrap(ErrUnknownISA, "%q", name)
	}

	return b.New(b.Default)
}

// Parse reads a YAML descriptor and builds its backend.
func Parse(data []byte) (isa.TargetISA, error) {
	d, err := isa.ParseDescriptor(data)
	if err != nil {
		return nil, err
	}

	return Lookup(d)
}

// Host describes the machine the compiler runs on.
func Host() (isa.Descriptor, error) {
	switch runtime.GOARCH {
	case "amd64":
		d := isa.Descriptor{Name: x64.Name, WordBits: 64}

		d.Extensions = feature(d.Extensions, cpu.X86.HasSSE41, "sse4.1")
		d.Extensions = feature(d.Extensions, cpu.X86.HasPOPCNT, "popcnt")
		d.Extensions = feature(d.Extensions, cpu.X86.HasBMI2, "bmi2")
		d.Extensions = feature(d.Extensions, cpu.X86.HasAVX2, "avx2")

		if runtime.GOOS == "windows" {
			d.CallConv = "windows_fastcall"
		}

		return d, nil
	case "arm64":
		d := isa.Descriptor{Name: arm64.Name, WordBits: 64}

		d.Extensions = feature(d.Extensions, cpu.ARM64.HasFP, "fp")
		d.Extensions = feature(d.Extensions, cpu.ARM64.HasASIMD, "asimd")

		return d, nil
	case "riscv64":
		return isa.Descriptor{Name: riscv.Name64, WordBits: 64, Extensions: []string{"m", "f", "d"}}, nil
	default:
		return isa.Descriptor{}, errors.Wrap(ErrUnknownISA, "host %v", runtime.GOARCH)
	}
}

func feature(exts []string, ok bool, name string) []string {
	if !ok {
		return exts
	}

	return append(exts, name)
}

func contains(l []string, s string) bool {
	for _, x := range l {
		if x == s {
			return true
		}
	}

	return false
}
