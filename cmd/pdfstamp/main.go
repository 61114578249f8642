// pdfstamp - stamp text, an image or a checkbox onto a page of a PDF file
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/Nitro/lazypdf"
)

func main() {
	page := flag.Int("page", 0, "zero-based page number to stamp")
	x := flag.Float64("x", 0.1, "left edge, as a fraction of the page width")
	y := flag.Float64("y", 0.1, "top edge, as a fraction of the page height")
	w := flag.Float64("w", 0.2, "width, as a fraction of the page width")
	h := flag.Float64("h", 0.05, "height, as a fraction of the page height")
	text := flag.String("text", "", "text to stamp")
	font := flag.String("font", "Helvetica", "font family for text")
	fontSize := flag.Float64("font-size", 12, "font size in points for text")
	image := flag.String("image", "", "image file to stamp")
	checkbox := flag.Bool("checkbox", false, "stamp a checkbox")
	checked := flag.Bool("checked", false, "mark the checkbox as checked")
	output := flag.String("o", "", "output file (default: overwrite input)")
	help := flag.Bool("help", false, "print usage information")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: pdfstamp [options] <PDF-file>\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if *help || flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	pdfFile := flag.Arg(0)
	outFile := *output
	if outFile == "" {
		outFile = pdfFile
	}

	in, err := os.Open(pdfFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening PDF: %v\n", err)
		os.Exit(1)
	}

	handler := lazypdf.NewPdfHandler(context.Background(), slog.Default())

	doc, err := handler.OpenPDF(in)
	in.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing PDF: %v\n", err)
		os.Exit(1)
	}
	defer handler.ClosePDF(doc)

	location := lazypdf.Location{X: *x, Y: *y}
	size := lazypdf.Size{Width: *w, Height: *h}

	switch {
	case *text != "":
		params := lazypdf.TextParams{
			Value:    *text,
			Page:     *page,
			Location: location,
			Size:     size,
		}
		params.Font.Family = *font
		params.Font.Size = *fontSize
		err = handler.AddTextBoxToPage(doc, params)
	case *image != "":
		err = handler.AddImageToPage(doc, lazypdf.ImageParams{
			Page:      *page,
			Location:  location,
			Size:      size,
			ImagePath: *image,
		})
	case *checkbox:
		err = handler.AddCheckboxToPage(doc, lazypdf.CheckboxParams{
			Value:    *checked,
			Page:     *page,
			Location: location,
			Size:     size,
		})
	default:
		fmt.Fprintln(os.Stderr, "Nothing to stamp: pass -text, -image or -checkbox")
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error stamping page: %v\n", err)
		os.Exit(1)
	}

	if err := handler.SavePDF(doc, outFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving PDF: %v\n", err)
		os.Exit(1)
	}
}
