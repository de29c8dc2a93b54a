package stm32

// regFile is a plain register file without hardware side effects.
type regFile struct {
	regs   map[Reg]uint32
	stores []store
}

type store struct {
	reg Reg
	val uint32
}

func newRegFile() *regFile {
	return &regFile{regs: map[Reg]uint32{}}
}

func (f *regFile) Load(r Reg) uint32 {
	return f.regs[r]
}

func (f *regFile) Store(r Reg, v uint32) {
	f.regs[r] = v
	f.stores = append(f.stores, store{r, v})
}
