// Package pe loads a Windows PE image into the narrow shape the program
// builder consumes (spec.md §4.2, §6): the virtual-address-relocated bytes
// of every executable section, plus the entry point as the only call-target
// seed (import tables are not parsed).
package pe

import (
	"debug/pe"
	"log"
	"os"

	"github.com/mewkiz/pkg/term"
	"github.com/pkg/errors"

	"github.com/mewmew/nc/bin"
)

var (
	dbg  = log.New(os.Stderr, term.MagentaBold("pe:")+" ", 0)
	warn = log.New(os.Stderr, term.RedBold("warning:")+" ", 0)
)

// codeSectionMask is IMAGE_SCN_CNT_CODE, set on sections holding executable
// instructions.
const codeSectionMask = 0x00000020

// Code is one executable section, relocated to its image-base-relative
// virtual address.
type Code struct {
	// Addr is the address Data[0] is loaded at.
	Addr bin.Addr
	// Data is the section's raw bytes.
	Data []byte
}

// Image is the loaded shape of a PE executable: its code, entry point, and
// the addresses known to be called into from outside the lifted code
// itself.
type Image struct {
	// EntryAddr is the image's declared entry point.
	EntryAddr bin.Addr
	// Code holds every executable section, in file order.
	Code []Code
	// CallSeeds are addresses the builder should record as called-into up
	// front, letting the partitioner (spec.md §4.3) split a block at a call
	// target even before any lifted call instruction reaches it. The
	// entry point is always included; a linker-resolved import address
	// table would add more, but this loader does not parse import thunks
	// (spec.md's "narrow interface" to the excluded image-format module).
	CallSeeds []bin.Addr
}

// Load reads the PE executable at path and returns its code sections,
// entry point, and call-target seeds, relocated to the image's preferred
// base address. Only 32-bit (PE32) images are supported.
func Load(path string) (*Image, error) {
	dbg.Printf("Load(path = %q)", path)
	file, err := pe.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer file.Close()

	optHdr, ok := file.OptionalHeader.(*pe.OptionalHeader32)
	if !ok {
		return nil, errors.New("pe: support for 64-bit (PE32+) executables not yet implemented")
	}
	base := bin.Addr(optHdr.ImageBase)
	entry := base + bin.Addr(optHdr.AddressOfEntryPoint)

	img := &Image{
		EntryAddr: entry,
		CallSeeds: []bin.Addr{entry},
	}
	for _, sect := range file.Sections {
		if !isExec(sect) {
			continue
		}
		data, err := sect.Data()
		if err != nil {
			return nil, errors.WithStack(err)
		}
		if len(data) == 0 {
			warn.Printf("section %q has no data", sect.Name)
			continue
		}
		addr := base + bin.Addr(sect.VirtualAddress)
		dbg.Printf("code section %q at %v (%d bytes)", sect.Name, addr, len(data))
		img.Code = append(img.Code, Code{Addr: addr, Data: data})
	}
	return img, nil
}

// isExec reports whether sect is marked executable.
func isExec(sect *pe.Section) bool {
	return sect.Characteristics&codeSectionMask != 0
}
