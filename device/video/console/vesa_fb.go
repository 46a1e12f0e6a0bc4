package console

import (
	"image/color"
	"reflect"
	"unsafe"

	"novaos/device"
	"novaos/device/video/console/font"
	"novaos/kernel"
	"novaos/kernel/hal/boot"
	"novaos/kernel/kfmt"
	"novaos/kernel/mem"
	"novaos/kernel/mem/vmm"
)

// pixelMask describes where the red/green/blue components sit within a
// packed pixel. boot.FramebufferInfo reports only width/height/pitch/bpp,
// not the per-channel layout the loader actually negotiates with the GPU,
// so this console assumes the packing Limine almost always hands back for a
// given depth rather than reading it off the boot info.
type pixelMask struct {
	redPos, redSize     uint8
	greenPos, greenSize uint8
	bluePos, blueSize   uint8
}

func maskForBpp(bpp uint32) pixelMask {
	if bpp <= 16 {
		return pixelMask{redPos: 11, redSize: 5, greenPos: 5, greenSize: 6, bluePos: 0, blueSize: 5}
	}
	return pixelMask{redPos: 16, redSize: 8, greenPos: 8, greenSize: 8, bluePos: 0, blueSize: 8}
}

// VesaFbConsole implements a text console on top of a linear, packed-pixel
// framebuffer such as the one boot.Framebuffer describes.
type VesaFbConsole struct {
	bpp           uint32
	bytesPerPixel uint32
	fbPhysAddr    uintptr
	fb            []uint8
	mask          pixelMask

	// Console dimensions in pixels.
	width  uint32
	height uint32

	// Size of a row in bytes.
	pitch uint32

	// Console dimensions in characters.
	font          *font.Font
	widthInChars  uint32
	heightInChars uint32

	palette   color.Palette
	defaultFg uint8
	defaultBg uint8
}

// mapMMIOFn backs the framebuffer mapping DriverInit performs. Mocked by
// tests; wired to vmm.MapMMIO in production.
var mapMMIOFn = vmm.MapMMIO

// SetMapMMIOFn overrides the framebuffer-mapping primitive. Exposed for
// tests.
func SetMapMMIOFn(fn func(uintptr, mem.Size) (uintptr, *kernel.Error)) {
	mapMMIOFn = fn
}

// NewVesaFbConsole creates a console over a linear framebuffer of the given
// geometry, physically based at fbPhysAddr.
func NewVesaFbConsole(width, height uint32, bpp uint8, pitch uint32, fbPhysAddr uintptr) *VesaFbConsole {
	return &VesaFbConsole{
		bpp:           uint32(bpp),
		bytesPerPixel: uint32(bpp+7) >> 3,
		fbPhysAddr:    fbPhysAddr,
		mask:          maskForBpp(uint32(bpp)),
		width:         width,
		height:        height,
		pitch:         pitch,
		defaultFg:     7,
		defaultBg:     0,
	}
}

// SetFont selects a bitmap font to be used by the console.
func (cons *VesaFbConsole) SetFont(f *font.Font) {
	if f == nil {
		return
	}

	cons.font = f
	cons.widthInChars = cons.width / f.GlyphWidth
	cons.heightInChars = cons.height / f.GlyphHeight
}

// Dimensions returns the console width and height in the specified dimension.
func (cons *VesaFbConsole) Dimensions(dim Dimension) (uint32, uint32) {
	switch dim {
	case Characters:
		return cons.widthInChars, cons.heightInChars
	default:
		return cons.width, cons.height
	}
}

// DefaultColors returns the default foreground and background colors used
// by this console.
func (cons *VesaFbConsole) DefaultColors() (fg uint8, bg uint8) {
	return cons.defaultFg, cons.defaultBg
}

// Fill sets the contents of the specified rectangular region to the
// requested color. Both x and y coordinates are 1-based.
func (cons *VesaFbConsole) Fill(x, y, width, height uint32, _, bg uint8) {
	if cons.font == nil {
		return
	}

	if x == 0 {
		x = 1
	} else if x >= cons.widthInChars {
		x = cons.widthInChars
	}

	if y == 0 {
		y = 1
	} else if y >= cons.heightInChars {
		y = cons.heightInChars
	}

	if x+width-1 > cons.widthInChars {
		width = cons.widthInChars - x + 1
	}

	if y+height-1 > cons.heightInChars {
		height = cons.heightInChars - y + 1
	}

	pX := (x - 1) * cons.font.GlyphWidth
	pY := (y - 1) * cons.font.GlyphHeight
	pW := width * cons.font.GlyphWidth
	pH := height * cons.font.GlyphHeight

	comp := cons.packColor(bg)
	fbRowOffset := cons.fbOffset(pX, pY)
	for ; pH > 0; pH, fbRowOffset = pH-1, fbRowOffset+cons.pitch {
		for fbOffset := fbRowOffset; fbOffset < fbRowOffset+pW*cons.bytesPerPixel; fbOffset += cons.bytesPerPixel {
			cons.writePixel(fbOffset, comp)
		}
	}
}

// Scroll the console contents in the given direction. The caller is
// responsible for updating (e.g. clear or replace) the contents of the
// region that was scrolled.
func (cons *VesaFbConsole) Scroll(dir ScrollDir, lines uint32) {
	if cons.font == nil || lines == 0 || lines > cons.heightInChars {
		return
	}

	offset := cons.fbOffset(0, lines*cons.font.GlyphHeight)

	switch dir {
	case ScrollDirUp:
		startOffset := cons.fbOffset(0, 0)
		endOffset := cons.fbOffset(0, cons.height-lines*cons.font.GlyphHeight)
		for i := startOffset; i < endOffset; i++ {
			cons.fb[i] = cons.fb[i+offset]
		}
	case ScrollDirDown:
		startOffset := cons.fbOffset(0, lines*cons.font.GlyphHeight)
		for i := uint32(len(cons.fb) - 1); i >= startOffset; i-- {
			cons.fb[i] = cons.fb[i-offset]
		}
	}
}

// Write a char to the specified location. If fg or bg exceed the supported
// colors for this console, they are set to their default value. Both x and
// y coordinates are 1-based.
func (cons *VesaFbConsole) Write(ch byte, fg, bg uint8, x, y uint32) {
	if x < 1 || x > cons.widthInChars || y < 1 || y > cons.heightInChars || cons.font == nil {
		return
	}

	var (
		fontOffset  = uint32(ch) * cons.font.BytesPerRow * cons.font.GlyphHeight
		fbRowOffset = cons.fbOffset((x-1)*cons.font.GlyphWidth, (y-1)*cons.font.GlyphHeight)
		fbOffset    uint32
		row, col    uint32
		mask        uint8
		fgComp      = cons.packColor(fg)
		bgComp      = cons.packColor(bg)
	)

	for row = 0; row < cons.font.GlyphHeight; row, fbRowOffset, fontOffset = row+1, fbRowOffset+cons.pitch, fontOffset+1 {
		fbOffset = fbRowOffset
		fontRowData := cons.font.Data[fontOffset]
		mask = 1 << 7
		for col = 0; col < cons.font.GlyphWidth; col, fbOffset, mask = col+1, fbOffset+cons.bytesPerPixel, mask>>1 {
			if mask == 0 {
				fontOffset++
				fontRowData = cons.font.Data[fontOffset]
				mask = 1 << 7
			}

			if (fontRowData & mask) != 0 {
				cons.writePixel(fbOffset, fgComp)
			} else {
				cons.writePixel(fbOffset, bgComp)
			}
		}
	}
}

// fbOffset returns the linear offset into the framebuffer for pixel (x,y).
func (cons *VesaFbConsole) fbOffset(x, y uint32) uint32 {
	return (y * cons.pitch) + (x * cons.bytesPerPixel)
}

// packColor encodes a palette color into this console's pixel format.
func (cons *VesaFbConsole) packColor(colorIndex uint8) uint32 {
	c := cons.palette[colorIndex].(color.RGBA)
	return (uint32(c.R>>(8-cons.mask.redSize)) << cons.mask.redPos) |
		(uint32(c.G>>(8-cons.mask.greenSize)) << cons.mask.greenPos) |
		(uint32(c.B>>(8-cons.mask.blueSize)) << cons.mask.bluePos)
}

// writePixel stores a packed color at the given framebuffer byte offset,
// little-endian, truncated to this console's bytes-per-pixel.
func (cons *VesaFbConsole) writePixel(fbOffset uint32, packed uint32) {
	for i := uint32(0); i < cons.bytesPerPixel; i++ {
		cons.fb[fbOffset+i] = uint8(packed >> (8 * i))
	}
}

// Palette returns the active color palette for this console.
func (cons *VesaFbConsole) Palette() color.Palette {
	return cons.palette
}

// SetPaletteColor updates the color definition for the specified palette
// index. Passing a color index greater than the number of supported colors
// is a no-op. Pixels already on screen keep the old color: nothing in this
// kernel draws through the console at runtime, so there is no live
// framebuffer content to repaint.
func (cons *VesaFbConsole) SetPaletteColor(index uint8, rgba color.RGBA) {
	if int(index) >= len(cons.palette) {
		return
	}

	cons.palette[index] = rgba
}

// loadDefaultPalette seeds the 16-color EGA palette this console's default
// foreground/background colors index into; the remaining entries stay
// black until a caller overrides them.
func (cons *VesaFbConsole) loadDefaultPalette() {
	cons.palette = make(color.Palette, 256)

	egaPalette := []color.RGBA{
		{R: 0, G: 0, B: 0},
		{R: 0, G: 0, B: 128},
		{R: 0, G: 128, B: 0},
		{R: 0, G: 128, B: 128},
		{R: 128, G: 0, B: 0},
		{R: 128, G: 0, B: 128},
		{R: 64, G: 64, B: 0},
		{R: 128, G: 128, B: 128},
		{R: 64, G: 64, B: 64},
		{R: 0, G: 0, B: 255},
		{R: 0, G: 255, B: 0},
		{R: 0, G: 255, B: 255},
		{R: 255, G: 0, B: 0},
		{R: 255, G: 0, B: 255},
		{R: 255, G: 255, B: 0},
		{R: 255, G: 255, B: 255},
	}

	var index int
	for ; index < len(egaPalette); index++ {
		cons.palette[index] = egaPalette[index]
	}
	for ; index < len(cons.palette); index++ {
		cons.palette[index] = egaPalette[0]
	}
}

// DriverName returns the name of this driver.
func (cons *VesaFbConsole) DriverName() string {
	return "vesa_fb_console"
}

// DriverVersion returns the version of this driver.
func (cons *VesaFbConsole) DriverVersion() (uint16, uint16, uint16) {
	return 0, 0, 1
}

// DriverInit maps the framebuffer through the VMM's MMIO bump allocator and
// loads the default palette.
func (cons *VesaFbConsole) DriverInit() *kernel.Error {
	fbSize := mem.Size(cons.height * cons.pitch)
	base, err := mapMMIOFn(cons.fbPhysAddr, fbSize)
	if err != nil {
		return err
	}

	cons.fb = *(*[]uint8)(unsafe.Pointer(&reflect.SliceHeader{
		Len:  int(fbSize),
		Cap:  int(fbSize),
		Data: base,
	}))

	kfmt.Printf("vesa_fb_console: mapped framebuffer to 0x%x\n", base)
	kfmt.Printf("vesa_fb_console: dimensions %dx%dx%d\n", cons.width, cons.height, cons.bpp)

	cons.loadDefaultPalette()

	return nil
}

// probeForVesaFbConsole checks for a boot-reported linear framebuffer.
func probeForVesaFbConsole() device.Driver {
	fbInfo := boot.Framebuffer()
	if fbInfo == nil || fbInfo.Bpp == 0 {
		return nil
	}

	cons := NewVesaFbConsole(fbInfo.Width, fbInfo.Height, fbInfo.Bpp, fbInfo.Pitch, uintptr(fbInfo.PhysAddr))
	cons.SetFont(font.BestFit(fbInfo.Width, fbInfo.Height))
	return cons
}

func init() {
	device.RegisterDriver(&device.DriverInfo{
		Order: device.DetectOrderLast,
		Probe: probeForVesaFbConsole,
	})
}
