package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/mgmeyers/pdfmark/pdfutils"
	"github.com/mgmeyers/pdfmark/viewer"
)

const usageLine = "down/up: page  m: mark x y w h  +/-: zoom  s: save  q: quit"

const (
	keyInterrupt = 0x03
	keyEscape    = 0x1b
	keyBackspace = 0x7f
)

// terminal adapts a keyboard on a terminal to the viewer. Frames are written
// to a preview image since a terminal cannot show the page itself.
type terminal struct {
	in      io.Reader
	out     io.Writer
	ctl     *viewer.Controller
	style   viewer.Style
	preview string
	log     logger
}

func (t *terminal) run() error {
	if f, ok := t.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		state, err := term.MakeRaw(int(f.Fd()))
		if err != nil {
			return errors.Wrap(err, "switching terminal to raw mode")
		}
		defer term.Restore(int(f.Fd()), state)
	}

	dec := &keyDecoder{r: bufio.NewReader(t.in), out: t.out}

	t.println(usageLine)

	if err := t.present(); err != nil {
		return err
	}

	for {
		ev, err := dec.next()
		if err == io.EOF {
			return t.quit()
		}
		if err != nil {
			return err
		}

		action, err := t.ctl.Handle(ev)
		if action == viewer.ActionQuit {
			return t.quit()
		}

		if err != nil {
			t.println("error: " + err.Error())
		}

		if err := t.present(); err != nil {
			return err
		}
	}
}

func (t *terminal) quit() error {
	if pending := len(t.ctl.State().Highlights); pending > 0 {
		t.log.WithField("highlights", pending).Warn("quitting without saving")
	}

	return nil
}

// present writes the current frame to the preview file and prints the
// status line.
func (t *terminal) present() error {
	state := t.ctl.State()
	frame := viewer.Rasterize(viewer.Compose(state, t.style))

	if err := pdfutils.WriteImage(frame, t.preview, pdfutils.FormatPNG, 0); err != nil {
		return err
	}

	status := fmt.Sprintf("page %d/%d  zoom %.2f  pending %d  preview %s",
		state.PageIndex+1, state.PageCount, state.Scale, len(state.Highlights), t.preview)

	if state.LastErr != nil {
		status += "  [save failed]"
	}

	t.println(status)

	return nil
}

func (t *terminal) println(line string) {
	fmt.Fprint(t.out, line+"\r\n")
}

type keyDecoder struct {
	r   *bufio.Reader
	out io.Writer
}

// next reads keys until one maps to an event.
func (d *keyDecoder) next() (viewer.InputEvent, error) {
	for {
		r, _, err := d.r.ReadRune()
		if err != nil {
			return viewer.InputEvent{}, err
		}

		switch r {
		case keyInterrupt:
			return viewer.KeyEvent(viewer.KeyInterrupt), nil
		case keyEscape:
			if key, ok := d.escape(); ok {
				return viewer.KeyEvent(key), nil
			}
		case 'm':
			ev, ok, err := d.mark()
			if err != nil {
				return viewer.InputEvent{}, err
			}
			if ok {
				return ev, nil
			}
		case '\r', '\n':
		default:
			return viewer.RuneEvent(r), nil
		}
	}
}

// escape decodes the rest of an ANSI cursor key sequence.
func (d *keyDecoder) escape() (viewer.Key, bool) {
	if b, err := d.r.ReadByte(); err != nil || b != '[' {
		return 0, false
	}

	b, err := d.r.ReadByte()
	if err != nil {
		return 0, false
	}

	switch b {
	case 'A':
		return viewer.KeyUp, true
	case 'B':
		return viewer.KeyDown, true
	case '5', '6':
		if tilde, err := d.r.ReadByte(); err != nil || tilde != '~' {
			return 0, false
		}
		if b == '5' {
			return viewer.KeyPageUp, true
		}
		return viewer.KeyPageDown, true
	}

	return 0, false
}

// mark prompts for a rectangle in bitmap pixels and reports it as a drag.
func (d *keyDecoder) mark() (viewer.InputEvent, bool, error) {
	fmt.Fprint(d.out, "mark x y w h: ")

	line, ok, err := d.readLine()
	if err != nil || !ok {
		return viewer.InputEvent{}, false, err
	}

	rect, err := parseRegion(line)
	if err != nil {
		fmt.Fprint(d.out, err.Error()+"\r\n")
		return viewer.InputEvent{}, false, nil
	}

	return viewer.DragEvent(rect.Lo(), rect.Hi()), true, nil
}

// readLine reads an echoed line. Escape or Ctrl-C cancel it.
func (d *keyDecoder) readLine() (string, bool, error) {
	var line []rune

	for {
		r, _, err := d.r.ReadRune()
		if err != nil {
			return "", false, err
		}

		switch r {
		case '\r', '\n':
			fmt.Fprint(d.out, "\r\n")
			return string(line), true, nil
		case keyEscape, keyInterrupt:
			fmt.Fprint(d.out, "\r\n")
			return "", false, nil
		case keyBackspace, '\b':
			if len(line) > 0 {
				line = line[:len(line)-1]
				fmt.Fprint(d.out, "\b \b")
			}
		default:
			line = append(line, r)
			fmt.Fprint(d.out, string(r))
		}
	}
}

func parseRegion(line string) (r2.Rect, error) {
	fields := strings.Fields(line)
	if len(fields) != 4 {
		return r2.Rect{}, errors.Errorf("expected 4 numbers, got %q", line)
	}

	var v [4]float64

	for i, field := range fields {
		f, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return r2.Rect{}, errors.Errorf("not a number: %q", field)
		}
		v[i] = f
	}

	if !(v[2] > 0 && v[3] > 0) {
		return r2.Rect{}, errors.New("width and height must be positive")
	}

	rect := r2.RectFromPoints(r2.Point{X: v[0], Y: v[1]}, r2.Point{X: v[0] + v[2], Y: v[1] + v[3]})
	if !pdfutils.ValidRect(rect) {
		return r2.Rect{}, errors.Errorf("region must be finite: %q", line)
	}

	return rect, nil
}
