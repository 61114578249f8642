// pdftohtml - extract one page of a PDF file as positioned HTML
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/Nitro/lazypdf"
)

func main() {
	page := flag.Int("page", 0, "zero-based page number to extract")
	width := flag.Int("width", 0, "target pixel width (overrides scale)")
	scale := flag.Float64("scale", 0, "explicit scale factor")
	help := flag.Bool("h", false, "print usage information")
	flag.BoolVar(help, "help", false, "print usage information")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: pdftohtml [options] <PDF-file>\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if *help || flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	in, err := os.Open(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening PDF: %v\n", err)
		os.Exit(1)
	}
	defer in.Close()

	err = lazypdf.ExtractHTML(context.Background(), uint16(*page), uint16(*width), float32(*scale), in, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error extracting page: %v\n", err)
		os.Exit(1)
	}
}
