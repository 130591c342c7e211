package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/mgmeyers/pdfmark/pdfutils"
	"github.com/mgmeyers/pdfmark/session"
	"github.com/mgmeyers/pdfmark/viewer"
)

var args struct {
	Scale   float64 `short:"z" default:"1.0" help:"Zoom scale used to render pages"`
	Color   string  `short:"c" default:"#ffff00" help:"Highlight color as #rrggbb"`
	Opacity float64 `default:"0.4" help:"Opacity of saved highlights, between 0 and 1"`
	Author  string  `short:"a" env:"USER" help:"Author recorded on saved highlights"`
	Preview string  `short:"p" type:"path" help:"Where to write the current page with its highlights (default: a file in the temp dir)"`

	Annots bool `help:"Print the document's annotations as JSON and exit"`

	ExportPath   string `short:"o" type:"path" help:"Render every page into this directory and exit"`
	ImageFormat  string `short:"f" enum:"jpg,png" default:"png" help:"Image format for exported pages. Supports png and jpg"`
	ImageQuality int    `short:"q" default:"90" help:"Image quality. Only applies to jpg images"`

	Verbose bool `short:"v" help:"Log debug output, including the PDF library's"`

	InputPDF string `arg:"" name:"input" help:"Path to the PDF to view and annotate" type:"path"`
}

func main() {
	kong.Parse(&args,
		kong.Name("pdfmark"),
		kong.Description("Page through a PDF, mark highlights and save them into the file."),
		kong.UsageOnError(),
		kong.Configuration(kong.JSON, "~/.config/pdfmark/config.json"),
	)

	log := newLogger(args.Verbose)

	style, err := highlightStyle()
	endIfErr(log, err)

	doc, err := session.Open(args.InputPDF, session.Options{Style: style, Logger: log})
	endIfErr(log, err)

	defer doc.Close()

	switch {
	case args.Annots:
		err = printAnnotations(doc)
	case args.ExportPath != "":
		err = exportPages(doc, exportOptions{
			Dir:      args.ExportPath,
			BaseName: strings.TrimSuffix(filepath.Base(args.InputPDF), filepath.Ext(args.InputPDF)),
			Scale:    args.Scale,
			Format:   args.ImageFormat,
			Quality:  args.ImageQuality,
		}, log)
	default:
		err = view(doc, style, log)
	}

	if err != nil {
		doc.Close()
		endIfErr(log, err)
	}
}

func highlightStyle() (session.Style, error) {
	clr, err := pdfutils.ParseColor(args.Color)
	if err != nil {
		return session.Style{}, err
	}

	if args.Opacity <= 0 || args.Opacity > 1 {
		return session.Style{}, errOpacity
	}

	return session.Style{Color: clr, Opacity: args.Opacity, Author: args.Author}, nil
}

func printAnnotations(doc *session.Session) error {
	annots, err := doc.AllAnnotations()
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	return enc.Encode(annots)
}

func view(doc *session.Session, style session.Style, log logger) error {
	ctl, err := viewer.New(doc, viewer.Options{Scale: args.Scale, Logger: log})
	if err != nil {
		return err
	}

	preview := args.Preview
	if preview == "" {
		preview = filepath.Join(os.TempDir(), "pdfmark-preview.png")
	}

	t := &terminal{
		in:      os.Stdin,
		out:     os.Stdout,
		ctl:     ctl,
		style:   viewer.Style{Tint: style.Color},
		preview: preview,
		log:     log,
	}

	return t.run()
}
