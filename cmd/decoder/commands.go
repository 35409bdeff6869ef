package main

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	"png.adpollak.net/internal/chunk"
	"png.adpollak.net/internal/config"
	"png.adpollak.net/internal/decoder"
	"png.adpollak.net/internal/images"
	"png.adpollak.net/internal/logging"
	"png.adpollak.net/internal/oops"
)

func init() {
	chunksCommand := &cobra.Command{
		Use:   "chunks [file]",
		Short: "List the chunks of a PNG file as they are read",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			path := pngPath(args)
			if err := listChunks(path); err != nil {
				logging.Error().Err(err).Str("path", path).Msg("failed to read chunks")
				os.Exit(exitCode(err))
			}
		},
	}
	DecoderCommand.AddCommand(chunksCommand)

	infoCommand := &cobra.Command{
		Use:   "info [file]",
		Short: "Print the header and every ancillary chunk",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			path := pngPath(args)
			if err := printInfo(path); err != nil {
				logging.Error().Err(err).Str("path", path).Msg("failed to read png")
				os.Exit(exitCode(err))
			}
		},
	}
	DecoderCommand.AddCommand(infoCommand)

	pixelsCommand := &cobra.Command{
		Use:   "pixels [file]",
		Short: "Write the raw, unfiltered pixel buffer to a file",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			out, _ := cmd.Flags().GetString("out")
			path := pngPath(args)
			if err := writePixels(path, out); err != nil {
				logging.Error().Err(err).Str("path", path).Msg("failed to extract pixels")
				os.Exit(exitCode(err))
			}
		},
	}
	pixelsCommand.Flags().StringP("out", "o", "pixels.raw", "output file")
	DecoderCommand.AddCommand(pixelsCommand)

	exportCommand := &cobra.Command{
		Use:   "export [file]",
		Short: "Re-encode a PNG as BMP, TIFF or PNG, chosen by the output extension",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			out, _ := cmd.Flags().GetString("out")
			path := pngPath(args)
			if err := export(path, out); err != nil {
				logging.Error().Err(err).Str("path", path).Str("out", out).Msg("failed to export image")
				os.Exit(exitCode(err))
			}
		},
	}
	exportCommand.Flags().StringP("out", "o", "image.bmp", "output file (.bmp, .tif, .tiff or .png)")
	DecoderCommand.AddCommand(exportCommand)
}

// exitCode maps an error to the process exit status: 2 for I/O, 3 for a
// malformed file, 4 for corrupt compressed data, 1 otherwise.
func exitCode(err error) int {
	switch oops.KindOf(err) {
	case oops.KindIO:
		return 2
	case oops.KindFormat:
		return 3
	case oops.KindDecompress:
		return 4
	}
	return 1
}

func options() chunk.Options {
	return chunk.Options{
		IgnoreChecksums: config.Config.IgnoreChecksums,
		MaxChunkLength:  config.Config.MaxChunkLength,
	}
}

// listChunks streams the file, so it gets as far as it can on broken input.
func listChunks(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return oops.IO(err, "failed to open %s", path)
	}
	defer f.Close()

	r := chunk.NewReader(f, options())
	if err := r.ReadSignature(); err != nil {
		return err
	}
	for i := 0; ; i++ {
		c, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		} else if err != nil {
			return err
		}
		fmt.Printf("%3d  %s  %10d bytes  crc %08x  critical=%t\n", i, c.Type, c.Length, c.Crc, c.IsCritical())
	}
}

func printInfo(path string) error {
	p, err := decoder.Open(path)
	if err != nil {
		return err
	}
	hdr, err := p.Header()
	if err != nil {
		return err
	}
	fmt.Printf("%s: %s\n", path, hdr)

	for i, c := range p.Chunks {
		switch c.Type {
		case chunk.ChunkIHDR, chunk.ChunkIDAT, chunk.ChunkIEND:
			continue
		}
		rec, err := chunk.Decode(c, hdr)
		if err != nil {
			// Keep going; one bad ancillary chunk says nothing about the rest.
			logging.Warn().Err(err).Int("index", i).Str("type", c.Type.String()).Msg("failed to decode chunk")
			continue
		}
		fmt.Printf("%3d  %s  %+v\n", i, c.Type, rec)
	}
	return nil
}

func writePixels(path, out string) error {
	p, err := decoder.Open(path)
	if err != nil {
		return err
	}
	pixels, err := p.ImageData()
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, pixels, 0o644); err != nil {
		return oops.IO(err, "failed to write %s", out)
	}
	logging.Info().Str("out", out).Int("bytes", len(pixels)).Msg("wrote pixel buffer")
	return nil
}

func decodeImage(path string) (image.Image, error) {
	p, err := decoder.Open(path)
	if err != nil {
		return nil, err
	}
	hdr, err := p.Header()
	if err != nil {
		return nil, err
	}
	pixels, err := p.ImageData()
	if err != nil {
		return nil, err
	}
	palette, err := p.Palette()
	if err != nil {
		return nil, err
	}
	trns, err := p.Transparency()
	if err != nil {
		// Drawing without transparency beats not drawing at all.
		logging.Warn().Err(err).Msg("ignoring tRNS")
		trns = nil
	}
	return images.CreateImage(pixels, hdr, palette, trns)
}

func export(path, out string) error {
	img, err := decodeImage(path)
	if err != nil {
		return err
	}

	var encode func(io.Writer, image.Image) error
	switch ext := strings.ToLower(filepath.Ext(out)); ext {
	case ".bmp":
		encode = bmp.Encode
	case ".tif", ".tiff":
		encode = func(w io.Writer, img image.Image) error {
			return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
		}
	case ".png":
		encode = png.Encode
	default:
		return fmt.Errorf("unsupported output format %q", ext)
	}

	f, err := os.Create(out)
	if err != nil {
		return oops.IO(err, "failed to create %s", out)
	}
	if err := encode(f, img); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return oops.IO(err, "failed to write %s", out)
	}
	logging.Info().Str("out", out).Stringer("bounds", img.Bounds()).Msg("exported image")
	return nil
}
