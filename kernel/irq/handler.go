package irq

// ExceptionNum identifies one of the CPU-defined exception vectors (0-31).
type ExceptionNum uint8

// Exception vectors the kernel cares about by name; the rest are still
// routed to the default handler but have no named constant.
const (
	DivideByZero       = ExceptionNum(0)
	NMI                = ExceptionNum(2)
	InvalidOpcode      = ExceptionNum(6)
	DoubleFault        = ExceptionNum(8)
	InvalidTSS         = ExceptionNum(10)
	SegmentNotPresent  = ExceptionNum(11)
	StackSegmentFault  = ExceptionNum(12)
	GPFException       = ExceptionNum(13)
	PageFaultException = ExceptionNum(14)
)

// IRQNum identifies one of the 16 legacy PIC interrupt lines (0-15); it maps
// to IDT vector IRQNum+32.
type IRQNum uint8

const irqVectorBase = 32

// ExceptionHandler handles an exception that does not push an error code.
type ExceptionHandler func(*Frame, *Regs)

// ExceptionHandlerWithCode handles an exception that pushes an error code.
type ExceptionHandlerWithCode func(errorCode uint64, frame *Frame, regs *Regs)

// IRQHandler handles a hardware interrupt routed through the PIC.
type IRQHandler func(frame *Frame, regs *Regs)

var (
	exceptionHandlers         [32]ExceptionHandler
	exceptionHandlersWithCode [32]ExceptionHandlerWithCode
	irqHandlers               [16]IRQHandler
)

// exceptionsWithErrorCode flags the vectors for which the CPU automatically
// pushes an error code before invoking the handler. An array rather than a
// map: commonHandler indexes it from ISR context, where nothing may
// allocate, and a package-level map would need the heap just to exist.
var exceptionsWithErrorCode = [32]bool{
	8: true, 10: true, 11: true, 12: true, 13: true, 14: true, 17: true, 21: true,
}

// HandleException registers a handler for an exception vector that carries
// no CPU-pushed error code.
func HandleException(num ExceptionNum, handler ExceptionHandler) {
	exceptionHandlers[num] = handler
}

// HandleExceptionWithCode registers a handler for an exception vector whose
// gate receives a CPU-pushed error code (e.g. PageFaultException, GPFException).
func HandleExceptionWithCode(num ExceptionNum, handler ExceptionHandlerWithCode) {
	exceptionHandlersWithCode[num] = handler
}

// HandleIRQ registers a handler for a legacy PIC interrupt line and unmasks
// it so the PIC starts delivering it.
func HandleIRQ(num IRQNum, handler IRQHandler) {
	irqHandlers[num] = handler
	unmaskIRQ(num)
}
