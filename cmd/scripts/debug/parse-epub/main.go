package main

import (
	"fmt"
	"os"

	"github.com/hondanabooks/hondana/pkg/epub"
	"github.com/jessevdk/go-flags"
	"github.com/robinjoseph08/golib/logger"
)

func main() {
	log := logger.New()

	var opts struct {
		CoverOutput string `short:"o" long:"cover-output" description:"A path to output the cover image"`
	}

	args, err := flags.Parse(&opts)
	if err != nil {
		log.Err(err).Fatal("flags parse error")
	}

	if len(args) != 1 {
		fmt.Println("go run ./cmd/scripts/debug/parse-epub <path/to/file.epub>")
		os.Exit(1)
	}

	book, err := epub.Parse(args[0])
	if err != nil {
		log.Err(err).Fatal("epub parse error")
	}

	cover := book.CoverItem()

	fmt.Printf("Title: %s\n", book.Metadata.Title)
	fmt.Printf("Author(s): %v\n", book.Metadata.Authors)
	fmt.Printf("ISBN: %s\n", book.Metadata.ISBN)
	fmt.Printf("Language: %s\n", book.Metadata.Language)
	fmt.Printf("Publisher: %s\n", book.Metadata.Publisher)
	fmt.Printf("Publish Date: %s\n", book.Metadata.PublishDate)
	fmt.Printf("Subjects: %v\n", book.Metadata.Subjects)
	fmt.Printf("Spine Items: %d\n", len(book.Spine))
	fmt.Printf("Has Cover: %v\n", cover != nil)
	if cover != nil {
		fmt.Printf("Cover Media Type: %s\n", cover.MediaType)
	}

	if opts.CoverOutput != "" && cover != nil {
		f, err := os.Create(opts.CoverOutput)
		if err != nil {
			log.Err(err).Fatal("create file error")
		}
		_, err = f.Write(cover.Data)
		if err != nil {
			log.Err(err).Fatal("file write error")
		}
	}
}
