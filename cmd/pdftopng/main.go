// pdftopng - rasterize one page of a PDF file to PNG
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Nitro/lazypdf"
)

func main() {
	page := flag.Int("page", 0, "zero-based page number to render")
	width := flag.Int("width", 0, "target pixel width (overrides scale)")
	scale := flag.Float64("scale", 0, "explicit scale factor")
	help := flag.Bool("h", false, "print usage information")
	flag.BoolVar(help, "help", false, "print usage information")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: pdftopng [options] <PDF-file> [<output-file>]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if *help || flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	pdfFile := flag.Arg(0)
	outFile := flag.Arg(1)
	if outFile == "" {
		outFile = strings.TrimSuffix(filepath.Base(pdfFile), ".pdf") + ".png"
	}

	in, err := os.Open(pdfFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening PDF: %v\n", err)
		os.Exit(1)
	}
	defer in.Close()

	out, err := os.Create(outFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output: %v\n", err)
		os.Exit(1)
	}
	defer out.Close()

	err = lazypdf.SaveToPNG(context.Background(), uint16(*page), uint16(*width), float32(*scale), in, out)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error rendering page: %v\n", err)
		os.Exit(1)
	}
}
