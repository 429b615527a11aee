package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"

	"nikand.dev/go/cli"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/spacemeshos/cranelift/compiler"
	"github.com/spacemeshos/cranelift/compiler/isa"
	"github.com/spacemeshos/cranelift/compiler/target"
)

func main() {
	isasCmd := &cli.Command{
		Name:        "isas",
		Description: "list supported instruction set architectures",
		Action:      isasAct,
	}

	descCmd := &cli.Command{
		Name:        "descriptor",
		Description: "print default descriptor of an isa, host if none given",
		Action:      descAct,
		Args:        cli.Args{},
	}

	demoCmd := &cli.Command{
		Name:        "demo",
		Description: "compile the built-in demo function for each isa given",
		Action:      demoAct,
		Args:        cli.Args{},
	}

	app := &cli.Command{
		Name:        "cranelift",
		Description: "cranelift compiles ir functions into machine code",
		Commands: []*cli.Command{
			isasCmd,
			descCmd,
			demoCmd,
		},
	}

	cli.RunAndExit(app, os.Args, os.Environ())
}

func isasAct(c *cli.Command) error {
	for _, n := range target.Names() {
		b, _ := target.Get(n)

		fmt.Printf("%-10s %v\n", n, b.Extensions)
	}

	return nil
}

func descAct(c *cli.Command) (err error) {
	var descs []isa.Descriptor

	if len(c.Args) == 0 {
		d, err := target.Host()
		if err != nil {
			return errors.Wrap(err, "host")
		}

		descs = append(descs, d)
	}

	for _, a := range c.Args {
		b, ok := target.Get(a)
		if !ok {
			return errors.Wrap(target.ErrUnknownISA, "%v", a)
		}

		descs = append(descs, b.Default)
	}

	for _, d := range descs {
		data, err := d.Marshal()
		if err != nil {
			return errors.Wrap(err, "marshal %v", d.Name)
		}

		fmt.Printf("---\n%s", data)
	}

	return nil
}

func demoAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	names := c.Args
	if len(names) == 0 {
		d, err := target.Host()
		if err != nil {
			return errors.Wrap(err, "host")
		}

		names = []string{d.Name}
	}

	for _, a := range names {
		t, err := target.ByName(a)
		if err != nil {
			return errors.Wrap(err, "isa %v", a)
		}

		cc := compiler.New(t, compiler.Settings{EnableVerifier: true})

		r, err := cc.CompileAndEmit(ctx, demo())
		if err != nil {
			return errors.Wrap(err, "compile for %v", a)
		}

		fmt.Printf("%s: %d bytes, align %d\n", t.Name(), r.Info.CodeSize, r.Info.Alignment)
		fmt.Printf("%s", hex.Dump(r.Code))

		for _, rel := range r.Relocs {
			fmt.Printf("reloc  %#06x  %-16v %s%+d\n", rel.Offset, rel.Kind, rel.Name, rel.Addend)
		}

		for _, tr := range r.Traps {
			fmt.Printf("trap   %#06x  %v\n", tr.Offset, tr.Code)
		}

		for _, sp := range r.Safepoints {
			fmt.Printf("safepoint %#06x\n", sp.Offset)
		}
	}

	return nil
}
