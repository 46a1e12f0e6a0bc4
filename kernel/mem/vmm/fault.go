package vmm

import (
	"novaos/kernel/mem"
	"novaos/kernel/mem/pmm"
)

// Page-fault error-code bits as pushed by the CPU onto the exception frame.
const (
	FaultPresent PageFaultErrorCode = 1 << 0
	FaultWrite   PageFaultErrorCode = 1 << 1
	FaultUser    PageFaultErrorCode = 1 << 2
	FaultRSVD    PageFaultErrorCode = 1 << 3
	FaultInstr   PageFaultErrorCode = 1 << 4
)

// PageFaultErrorCode decodes the error code the CPU pushes for a #PF.
type PageFaultErrorCode uint64

// mmioWindowLow/High bound the conventional MMIO physical range drivers are
// expected to probe before explicitly mapping it.
const (
	mmioWindowLow  = 0xE0000000
	mmioWindowHigh = 0x100000000
)

// HandlePageFault implements the page-fault policy: IXL's dispatcher calls
// this before giving up on a #PF. If the faulting address falls inside the
// conventional MMIO physical window, it installs an on-demand PCD|PWT
// mapping and reports success so the faulting instruction can be retried.
// Any other fault is left to the caller to treat as fatal.
func HandlePageFault(faultAddr uintptr, errorCode PageFaultErrorCode) bool {
	if errorCode&FaultPresent != 0 {
		// The page was present; this is a protection violation, not a
		// missing-mapping fault we can rescue.
		return false
	}

	if faultAddr < mmioWindowLow || faultAddr >= mmioWindowHigh {
		return false
	}

	pageAddr := faultAddr &^ mem.PageOffsetMask
	if err := Map(PageFromAddress(pageAddr), pmm.FrameFromAddress(pageAddr), FlagPresent|FlagRW|FlagPCD|FlagPWT); err != nil {
		return false
	}

	return true
}
