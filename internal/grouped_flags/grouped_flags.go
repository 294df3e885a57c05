// Package grouped_flags wraps the standard flag package so that related
// flags can be grouped together in the help output instead of being listed
// as one long alphabetical block.
package grouped_flags

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"os"
)

type flagGroup struct {
	name  string
	flags *flag.FlagSet
}

type FlagGroupSet struct {
	groups   []flagGroup
	allFlags *flag.FlagSet
}

func NewFlagGroupSet(errorHandling flag.ErrorHandling) *FlagGroupSet {
	f := &FlagGroupSet{
		allFlags: flag.NewFlagSet(os.Args[0], errorHandling),
	}

	f.allFlags.Usage = f.Usage

	return f
}

// AddGroup registers a named group. The constructor receives an empty flag
// set and populates it with the flags belonging to this group. The flags are
// then merged into the combined set, which is used for parsing.
func (f *FlagGroupSet) AddGroup(name string, constructor func(*flag.FlagSet)) {
	groupFlagSet := flag.NewFlagSet("", flag.PanicOnError)
	constructor(groupFlagSet)

	groupFlagSet.VisitAll(func(fl *flag.Flag) {
		f.allFlags.Var(fl.Value, fl.Name, fl.Usage)
	})

	f.groups = append(f.groups, flagGroup{name, groupFlagSet})
}

func (f *FlagGroupSet) Parse() error {
	return f.allFlags.Parse(os.Args[1:])
}

func (f *FlagGroupSet) SetOutput(output io.Writer) {
	f.allFlags.SetOutput(output)
}

func (f *FlagGroupSet) Usage() {
	output := f.allFlags.Output()

	fmt.Fprintf(output, "Usage of %s:\n\n", f.allFlags.Name())

	for _, group := range f.groups {
		fmt.Fprintf(output, "%s:\n", group.name)

		// PrintDefaults writes to the flag set's output, so redirect it
		// into a buffer for this group.
		buf := new(bytes.Buffer)
		group.flags.SetOutput(buf)
		group.flags.PrintDefaults()

		fmt.Fprintln(output, buf.String())
	}
}
