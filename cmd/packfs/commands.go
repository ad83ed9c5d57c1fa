package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/zstd"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/meigma/packfs"
)

func (a *app) createCmd() *cobra.Command {
	var maxFiles, maxBlocks int
	cmd := &cobra.Command{
		Use:   "create <archive>",
		Short: "create an empty archive",
		Long: `
Create an empty archive with room for --max-files files. --max-blocks bounds
the block table, which also tracks free space; it defaults to twice the
file capacity and must not be smaller than it.
`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if maxBlocks == 0 {
				maxBlocks = 2 * maxFiles
			}
			m := packfs.NewManager(packfs.WithManagerLogger(a.logger))
			if _, err := m.Create(args[0], packfs.AccessReadWrite, maxFiles, maxBlocks); err != nil {
				return err
			}
			return m.Close()
		},
	}
	cmd.Flags().IntVar(&maxFiles, "max-files", 64, "file capacity")
	cmd.Flags().IntVar(&maxBlocks, "max-blocks", 0, "block capacity (default 2 x max-files)")
	return cmd
}

func (a *app) lsCmd() *cobra.Command {
	var withDigest bool
	cmd := &cobra.Command{
		Use:   "ls <archive>",
		Short: "list the files in an archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return a.withArchive(args[0], packfs.AccessRead, func(arc *packfs.Archive) error {
				header := []string{"Name", "Size", "Offset"}
				if withDigest {
					header = append(header, "Digest")
				}
				table := newTable(a.stdout, header...)
				for info := range arc.Files() {
					row := []string{info.Name, formatBytes(info.Length), strconv.FormatInt(info.Offset, 10)}
					if withDigest {
						d, err := arc.Digest(info.Name)
						if err != nil {
							return err
						}
						row = append(row, d.String())
					}
					table.Append(row)
				}
				table.Render()
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&withDigest, "digest", false, "show the sha256 digest of each file")
	return cmd
}

func (a *app) infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <archive>",
		Short: "print capacity and space usage",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return a.withArchive(args[0], packfs.AccessRead, func(arc *packfs.Archive) error {
				st, err := arc.Stats()
				if err != nil {
					return err
				}
				table := newTable(a.stdout, "Property", "Value")
				table.AppendBulk([][]string{
					{"files", fmt.Sprintf("%d / %d", st.Files, st.MaxFiles)},
					{"blocks", fmt.Sprintf("%d / %d", st.Blocks, st.MaxBlocks)},
					{"free blocks", strconv.Itoa(st.FreeBlocks)},
					{"empty slots", strconv.Itoa(st.EmptySlots)},
					{"used", formatBytes(st.UsedBytes)},
					{"free", formatBytes(st.FreeBytes)},
					{"data offset", strconv.FormatInt(st.DataOffset, 10)},
					{"stream size", formatBytes(st.StreamSize)},
				})
				table.Render()
				return nil
			})
		},
	}
}

func (a *app) addCmd() *cobra.Command {
	var compress bool
	cmd := &cobra.Command{
		Use:   "add <archive> <name> <source>",
		Short: "store a file in an archive",
		Long: `
Store the content of the source file under name, replacing any file with the
same name. With --zstd the content is compressed before it is stored; read it
back with "cat --zstd".
`,
		Args: cobra.ExactArgs(3),
		RunE: func(_ *cobra.Command, args []string) error {
			name, src := args[1], args[2]
			return a.withArchive(args[0], packfs.AccessReadWrite, func(arc *packfs.Archive) error {
				if !compress {
					return arc.WriteFileFromPath(name, src)
				}
				data, err := compressFile(src)
				if err != nil {
					return err
				}
				return arc.WriteFile(name, data)
			})
		},
	}
	cmd.Flags().BoolVar(&compress, "zstd", false, "compress the content with zstd")
	return cmd
}

func (a *app) catCmd() *cobra.Command {
	var (
		offset     int64
		length     int64
		decompress bool
	)
	cmd := &cobra.Command{
		Use:   "cat <archive> <name>",
		Short: "write a file's content to stdout",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[1]
			segment := cmd.Flags().Changed("offset") || cmd.Flags().Changed("length")
			if segment && decompress {
				return errors.New("--zstd cannot be combined with --offset or --length")
			}
			return a.withArchive(args[0], packfs.AccessRead, func(arc *packfs.Archive) error {
				info, ok := arc.FileInfo(name)
				if !ok {
					return &fs.PathError{Op: "cat", Path: name, Err: fs.ErrNotExist}
				}
				if decompress {
					var buf bytes.Buffer
					if _, err := arc.ReadFileTo(name, &buf); err != nil {
						return err
					}
					return decompressTo(a.stdout, &buf)
				}
				if !cmd.Flags().Changed("length") {
					length = info.Length
				}
				_, err := arc.ReadFileSegmentTo(name, offset, length, a.stdout)
				return err
			})
		},
	}
	cmd.Flags().Int64Var(&offset, "offset", 0, "first byte to print")
	cmd.Flags().Int64Var(&length, "length", 0, "number of bytes to print (default: to the end)")
	cmd.Flags().BoolVar(&decompress, "zstd", false, "decompress content stored with add --zstd")
	return cmd
}

func (a *app) rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <archive> <name>",
		Short: "delete a file from an archive",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			return a.withArchive(args[0], packfs.AccessReadWrite, func(arc *packfs.Archive) error {
				return arc.DeleteFile(args[1])
			})
		},
	}
}

func (a *app) mvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mv <archive> <old> <new>",
		Short: "rename a file in an archive",
		Args:  cobra.ExactArgs(3),
		RunE: func(_ *cobra.Command, args []string) error {
			return a.withArchive(args[0], packfs.AccessReadWrite, func(arc *packfs.Archive) error {
				return arc.RenameFile(args[1], args[2])
			})
		},
	}
}

func (a *app) exportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <archive> <name> <dest>",
		Short: "copy a file out of an archive",
		Args:  cobra.ExactArgs(3),
		RunE: func(_ *cobra.Command, args []string) error {
			return a.withArchive(args[0], packfs.AccessRead, func(arc *packfs.Archive) error {
				return arc.SaveAsFile(args[1], args[2])
			})
		},
	}
}

func (a *app) extractCmd() *cobra.Command {
	var (
		prefix      string
		overwrite   bool
		concurrency int
	)
	cmd := &cobra.Command{
		Use:   "extract <archive> <dest-dir>",
		Short: "copy every file out of an archive",
		Long: `
Copy the archive's files below dest-dir, reading names as slash-separated
paths. Existing files are skipped unless --overwrite is set.
`,
		Args: cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			return a.withArchive(args[0], packfs.AccessRead, func(arc *packfs.Archive) error {
				st, err := arc.ExtractAll(args[1],
					packfs.ExtractWithPrefix(prefix),
					packfs.ExtractWithOverwrite(overwrite),
					packfs.ExtractWithReadConcurrency(concurrency),
				)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.stdout, "extracted %d files (%s), skipped %d\n",
					st.FilesWritten, formatBytes(st.Bytes), st.FilesSkipped)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "only extract files below this path")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace existing files")
	cmd.Flags().IntVar(&concurrency, "concurrency", 1, "concurrent archive reads")
	return cmd
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetBorder(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	return table
}

func formatBytes(n int64) string {
	return humanize.IBytes(uint64(max(n, 0))) //nolint:gosec // clamped to non-negative
}

func compressFile(path string) ([]byte, error) {
	f, err := os.Open(path) //nolint:gosec // caller-provided path is intentional
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(enc, f); err != nil {
		_ = enc.Close() //nolint:errcheck // the copy error wins
		return nil, fmt.Errorf("compress %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("compress %s: %w", path, err)
	}
	return buf.Bytes(), nil
}

func decompressTo(w io.Writer, r io.Reader) error {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return err
	}
	defer dec.Close()
	if _, err := io.Copy(w, dec); err != nil {
		return fmt.Errorf("decompress: %w", err)
	}
	return nil
}
