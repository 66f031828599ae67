// Copyright 2025 Jens Heikel
// SPDX-License-Identifier: MIT

// Command metastream inspects and updates image metadata.
//
// Usage:
//
//	metastream gps -lat 37.5 -long -122.3 -alt 12 in.jpg out.jpg
//	metastream tags in.jpg Exif.Image.Make Xmp.dc.title
//	metastream rating in.jpg
//	metastream mime in.jpg
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/jheik/metastream"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("metastream: ")

	flag.Usage = usage
	flag.Parse()
	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	sess := metastream.NewSession(metastream.Options{
		Warnf: log.Printf,
	})

	var err error
	switch cmd := flag.Arg(0); cmd {
	case "gps":
		err = runGPS(sess, flag.Args()[1:])
	case "tags":
		err = runTags(sess, flag.Args()[1:])
	case "rating":
		err = runRating(sess, flag.Args()[1:])
	case "mime":
		err = runMIME(flag.Args()[1:])
	default:
		log.Printf("unknown command %q", cmd)
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  metastream gps -lat <deg> -long <deg> [-alt <m>] <in> <out>
  metastream tags <file> <key>...
  metastream rating <file>
  metastream mime <file>`)
}

func runGPS(sess *metastream.Session, args []string) error {
	fs := flag.NewFlagSet("gps", flag.ExitOnError)
	lat := fs.Float64("lat", 0, "latitude in degrees, positive north")
	long := fs.Float64("long", 0, "longitude in degrees, positive east")
	alt := fs.Float64("alt", 0, "altitude in metres")
	fs.Parse(args)
	if fs.NArg() != 2 {
		return fmt.Errorf("gps: need input and output file")
	}

	buf, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	out, err := sess.AddGPSInfo(buf, *lat, *long, *alt)
	if err != nil {
		return err
	}
	return os.WriteFile(fs.Arg(1), out, 0o644)
}

func runTags(sess *metastream.Session, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("tags: need a file and at least one key")
	}
	res, err := sess.Tags(args[0], args[1:])
	if err != nil {
		return err
	}
	for i, v := range res.Values {
		if v.Present {
			fmt.Printf("%s\t%s\n", args[1+i], v.Value)
		} else {
			fmt.Printf("%s\t(absent)\n", args[1+i])
		}
	}
	fmt.Printf("MIME\t%s\n", res.MIME)
	return nil
}

func runRating(sess *metastream.Session, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("rating: need a file")
	}
	fmt.Println(sess.Rating(args[0]))
	return nil
}

func runMIME(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("mime: need a file")
	}
	buf, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	mime := metastream.DetectMIME(buf)
	if mime == "" {
		return fmt.Errorf("unrecognized format")
	}
	fmt.Println(mime)
	return nil
}
