package host

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"log"
	"time"

	"golang.org/x/exp/shiny/driver"
	"golang.org/x/exp/shiny/screen"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/mobile/event/lifecycle"
	"golang.org/x/mobile/event/mouse"
	"golang.org/x/mobile/event/paint"
	"golang.org/x/mobile/event/size"

	"github.com/nf/idk/idk"
)

// guiWidth is the number of buffer cells shown per row of the window.
const guiWidth = 0x100

// statusHeight is the height in pixels of the strip above the buffer cells
// that shows the line about to execute.
const statusHeight = 16

// gui shows the memory buffer of the running machine as a grayscale image,
// one pixel per cell.
type gui struct {
	update     chan *idk.Machine
	updateDone chan bool

	mem   []byte // copy of the buffer taken at the last update
	line  string // the line about to execute at the last update
	size  image.Point
	buf   screen.Buffer
	tex   screen.Texture
	dirty bool
}

func newGUI() *gui {
	return &gui{
		update:     make(chan *idk.Machine),
		updateDone: make(chan bool),
	}
}

// updates returns the channel on which the machine is handed to the GUI,
// or nil if there is no GUI.
func (g *gui) updates() chan<- *idk.Machine {
	if g == nil {
		return nil
	}
	return g.update
}

// offer hands m to the GUI if it is waiting for an update.
// It is called between instructions, the only time m may be read.
func (g *gui) offer(m *idk.Machine) {
	if g == nil {
		return
	}
	select {
	case g.update <- m:
		<-g.updateDone
	default:
	}
}

// sync waits until the GUI has taken the state of m, so the final state of
// a run is shown.
func (g *gui) sync(ctx context.Context, m *idk.Machine) {
	if g == nil {
		return
	}
	select {
	case g.update <- m:
		<-g.updateDone
	case <-ctx.Done():
	}
}

func (g *gui) Run(done <-chan struct{}) error {
	var runErr error
	driver.Main(func(s screen.Screen) {
		w, err := s.NewWindow(&screen.NewWindowOptions{
			Title:  "idk",
			Width:  2 * guiWidth,
			Height: 2 * guiWidth,
		})
		if err != nil {
			runErr = err
			return
		}
		defer w.Release()

		type update struct{}
		go func() {
			t := time.NewTicker(time.Second / 60)
			defer t.Stop()
			for {
				select {
				case <-t.C:
					w.Send(update{})
				case <-done:
					w.Send(update{})
					return
				}
			}
		}()

		defer g.release()

		var sz size.Event
		for {
			e := w.NextEvent()

			select {
			case <-done:
				return
			default:
			}

			switch e := e.(type) {
			case lifecycle.Event:
				if e.To == lifecycle.StageDead {
					return
				}

			case size.Event:
				sz = e
				g.dirty = true

			case paint.Event:
				g.dirty = true

			case mouse.Event:
				if e.Direction == mouse.DirPress && sz.WidthPx > 0 && sz.HeightPx > 0 {
					x := int(e.X * float32(g.size.X) / float32(sz.WidthPx))
					y := int(e.Y * float32(g.size.Y) / float32(sz.HeightPx))
					g.inspect(x, y)
				}

			case update:
				select {
				case m := <-g.update:
					g.load(m)
					g.updateDone <- true
				default:
					// machine is busy
				}
				if g.dirty && g.mem != nil {
					if err := g.render(s); err != nil {
						runErr = err
						return
					}
					w.Scale(sz.Bounds(), g.tex, g.tex.Bounds(), draw.Src, nil)
					w.Publish()
					g.dirty = false
				}

			case error:
				log.Print(e)
			}
		}
	})
	return runErr
}

// load copies the buffer of m. It must only be called during an update.
func (g *gui) load(m *idk.Machine) {
	if len(g.mem) != len(m.Buf) {
		g.mem = make([]byte, len(m.Buf))
	}
	copy(g.mem, m.Buf)
	g.line = Line(m)
	g.dirty = true
}

var statusBG = color.RGBA{0x00, 0x00, 0x8b, 0xff}

func (g *gui) render(s screen.Screen) (err error) {
	sz := image.Point{guiWidth, statusHeight + (len(g.mem)+guiWidth-1)/guiWidth}
	if g.tex == nil || g.size != sz {
		g.release()
		g.size = sz
		if g.buf, err = s.NewBuffer(sz); err != nil {
			return err
		}
		if g.tex, err = s.NewTexture(sz); err != nil {
			return err
		}
	}
	rgba := g.buf.RGBA()
	status := image.Rect(0, 0, sz.X, statusHeight)
	draw.Draw(rgba, status, image.NewUniform(statusBG), image.Point{}, draw.Src)
	d := font.Drawer{
		Dst:  rgba,
		Src:  image.White,
		Face: basicfont.Face7x13,
		Dot:  fixed.P(2, statusHeight-4),
	}
	d.DrawString(g.line)
	pix := rgba.Pix[rgba.PixOffset(0, statusHeight):]
	for i, c := range g.mem {
		p := pix[4*i : 4*i+4]
		p[0], p[1], p[2], p[3] = c, c, c, 0xff
	}
	g.tex.Upload(image.Point{}, g.buf, g.buf.Bounds())
	return nil
}

// inspect logs the buffer cell under window pixel x, y.
func (g *gui) inspect(x, y int) {
	y -= statusHeight
	if x < 0 || y < 0 || x >= g.size.X {
		return
	}
	if addr := y*g.size.X + x; addr < len(g.mem) {
		log.Printf("buffer[%.4x] = %d", addr, g.mem[addr])
	}
}

func (g *gui) release() {
	if g.tex != nil {
		g.tex.Release()
		g.tex = nil
	}
	if g.buf != nil {
		g.buf.Release()
		g.buf = nil
	}
}
