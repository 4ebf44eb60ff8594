package linear

import "bytes"

// Binary format constants for the one-memory module.
const (
	sectionMemory = 0x05
	sectionExport = 0x07

	externMemory = 0x02

	limitsNoMax  = 0x00
	limitsHasMax = 0x01
)

var header = []byte{
	0x00, 0x61, 0x73, 0x6d, // \0asm
	0x01, 0x00, 0x00, 0x00, // version 1
}

// encodeModule returns a module that defines and exports a single memory
// named "memory" with the given page limits. A max of 0 means unbounded.
func encodeModule(minPages, maxPages uint32) []byte {
	var out bytes.Buffer
	out.Write(header)

	var mem bytes.Buffer
	writeLEB128u(&mem, 1)
	if maxPages > 0 {
		mem.WriteByte(limitsHasMax)
		writeLEB128u(&mem, minPages)
		writeLEB128u(&mem, maxPages)
	} else {
		mem.WriteByte(limitsNoMax)
		writeLEB128u(&mem, minPages)
	}
	writeSection(&out, sectionMemory, mem.Bytes())

	var exp bytes.Buffer
	writeLEB128u(&exp, 1)
	writeName(&exp, exportName)
	exp.WriteByte(externMemory)
	writeLEB128u(&exp, 0)
	writeSection(&out, sectionExport, exp.Bytes())

	return out.Bytes()
}

func writeSection(w *bytes.Buffer, id byte, data []byte) {
	w.WriteByte(id)
	writeLEB128u(w, uint32(len(data)))
	w.Write(data)
}

func writeName(w *bytes.Buffer, name string) {
	writeLEB128u(w, uint32(len(name)))
	w.WriteString(name)
}

// writeLEB128u writes an unsigned LEB128 value
func writeLEB128u(w *bytes.Buffer, v uint32) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		w.WriteByte(b)
		if v == 0 {
			break
		}
	}
}
