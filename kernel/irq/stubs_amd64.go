package irq

import "unsafe"

// stubTable holds the entry-point address of each vector's assembly stub,
// resolved once at package init time via funcPC. Init (in idt.go) copies
// these addresses into the IDT gate descriptors.
var stubTable [48]uintptr

// funcPC returns the entry address of a top-level, non-closure Go function.
// This is the same trick the runtime itself uses internally: a func value is
// a pointer to a structure whose first word is the code's entry PC.
func funcPC(f func()) uintptr {
	return **(**uintptr)(unsafe.Pointer(&f))
}

func init() {
	fns := [48]func(){
		stub0, stub1, stub2, stub3, stub4, stub5, stub6, stub7,
		stub8, stub9, stub10, stub11, stub12, stub13, stub14, stub15,
		stub16, stub17, stub18, stub19, stub20, stub21, stub22, stub23,
		stub24, stub25, stub26, stub27, stub28, stub29, stub30, stub31,
		stub32, stub33, stub34, stub35, stub36, stub37, stub38, stub39,
		stub40, stub41, stub42, stub43, stub44, stub45, stub46, stub47,
	}
	for i, fn := range fns {
		stubTable[i] = funcPC(fn)
	}
}

// Exception stubs (vectors 0-31). Bodies are written out one per vector in
// stubs_amd64.s; whether a stub pushes a dummy error code depends on
// whether the CPU pushes an error code for that exception.
func stub0()
func stub1()
func stub2()
func stub3()
func stub4()
func stub5()
func stub6()
func stub7()
func stub8()
func stub9()
func stub10()
func stub11()
func stub12()
func stub13()
func stub14()
func stub15()
func stub16()
func stub17()
func stub18()
func stub19()
func stub20()
func stub21()
func stub22()
func stub23()
func stub24()
func stub25()
func stub26()
func stub27()
func stub28()
func stub29()
func stub30()
func stub31()

// IRQ stubs (vectors 32-47, IRQ lines 0-15 after the PIC remap).
func stub32()
func stub33()
func stub34()
func stub35()
func stub36()
func stub37()
func stub38()
func stub39()
func stub40()
func stub41()
func stub42()
func stub43()
func stub44()
func stub45()
func stub46()
func stub47()
