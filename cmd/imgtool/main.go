// Command imgtool is the outer shell named in §2/§6: argv parsing, the
// copy/copydir/mkdir commands, and the host directory walk. Everything
// specific to FAT32 lives in package fat32; this file is glue.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-multierror"
	"github.com/urfave/cli/v2"

	"github.com/imgfat/imgfat/blockdev"
	"github.com/imgfat/imgfat/fat32"
	"github.com/imgfat/imgfat/fserrors"
	"github.com/imgfat/imgfat/fsdriver"
	"github.com/imgfat/imgfat/mbr"
)

func main() {
	app := &cli.App{
		Name:      "imgtool",
		Usage:     "edit a raw FAT32 disk image offline",
		ArgsUsage: "<image> <copy|copydir|mkdir> ...",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "v", Usage: "verbose logging"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run implements the "<prog> <image> <command> ..." grammar directly
// (§6): the image path always comes first, then the verb, which doesn't
// fit urfave/cli's verb-first subcommand convention, so this single
// Action dispatches by hand instead of declaring Commands.
func run(c *cli.Context) error {
	logger := newLogger(c.Bool("v"))
	args := c.Args().Slice()
	if len(args) < 2 {
		return fserrors.UsageError.WithMessage("usage: imgtool <image> <copy|copydir|mkdir> ...")
	}
	imagePath, verb, rest := args[0], args[1], args[2:]

	backend, err := blockdev.Select(imagePath)
	if err != nil {
		return err
	}
	defer backend.Close()

	switch verb {
	case "copy":
		if len(rest) != 2 {
			return fserrors.UsageError.WithMessage("copy <host-path> <image-path>")
		}
		return cmdCopy(logger, backend, rest[0], rest[1])
	case "copydir":
		if len(rest) != 2 {
			return fserrors.UsageError.WithMessage("copydir <host-dir> <image-path>")
		}
		return cmdCopyDir(logger, backend, rest[0], rest[1])
	case "mkdir":
		if len(rest) != 2 {
			return fserrors.UsageError.WithMessage("mkdir <name> <image-dir>")
		}
		return cmdMkdir(logger, backend, rest[0], rest[1])
	default:
		return fserrors.UsageError.WithMessage("unknown command " + verb)
	}
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// openVolume scans the image's MBR and mounts the partition named by the
// leading /pN of imagePath, returning the volume and the remaining path
// components (§C.2).
func openVolume(backend blockdev.Backend, imagePath string) (*fat32.Volume, []string, error) {
	sector0 := make([]byte, 512)
	if _, err := backend.ReadAt(sector0, 0); err != nil {
		return nil, nil, fserrors.HostIoError.Wrap(err)
	}
	parts, err := mbr.Scan(sector0, func(off int64) ([]byte, error) {
		buf := make([]byte, 512)
		_, err := backend.ReadAt(buf, off)
		return buf, err
	})
	if err != nil {
		return nil, nil, err
	}
	p, rest, err := mbr.ResolvePath(parts, imagePath)
	if err != nil {
		return nil, nil, err
	}
	vol, err := fsdriver.MountPartition(backend, byte(p.Type), p.StartLBA)
	if err != nil {
		return nil, nil, err
	}
	return vol, rest, nil
}

func cmdCopy(logger *slog.Logger, backend blockdev.Backend, hostPath, imagePath string) error {
	vol, rest, err := openVolume(backend, imagePath)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(hostPath)
	if err != nil {
		return fserrors.HostIoError.Wrap(err)
	}
	dir, err := vol.Open(rest)
	if err != nil {
		return err
	}
	f, err := dir.CreateFile(filepath.Base(hostPath))
	if err != nil {
		return err
	}
	if _, err := f.WriteFile(data); err != nil {
		return err
	}
	logger.Debug("copied file", "host", hostPath, "size", humanize.Bytes(uint64(len(data))))
	fmt.Printf("copied %s (%s)\n", hostPath, humanize.Bytes(uint64(len(data))))
	return nil
}

func cmdMkdir(logger *slog.Logger, backend blockdev.Backend, name, imageDir string) error {
	vol, rest, err := openVolume(backend, imageDir)
	if err != nil {
		return err
	}
	parent, err := vol.Open(rest)
	if err != nil {
		return err
	}
	if _, ok, err := vol.Lookup(parent.FirstClus, name); err != nil {
		return err
	} else if ok {
		return fserrors.AlreadyExists.WithMessage(name)
	}
	if _, err := parent.Mkdir(name); err != nil {
		return err
	}
	logger.Debug("created directory", "name", name)
	fmt.Printf("created /%s\n", strings.TrimPrefix(name, "/"))
	return nil
}

// cmdCopyDir recursively copies a host directory tree into the image,
// creating missing destination directories on demand (§C.3, system.c's
// copy_dir POSIX branch). Per-file failures are aggregated with
// go-multierror so one bad file doesn't abort an otherwise-successful
// batch copy.
func cmdCopyDir(logger *slog.Logger, backend blockdev.Backend, hostDir, imagePath string) error {
	vol, rest, err := openVolume(backend, imagePath)
	if err != nil {
		return err
	}
	root, err := vol.OpenOrMkdirAll(rest)
	if err != nil {
		return err
	}

	var result error
	err = copyTree(logger, hostDir, root)
	if err != nil {
		result = multierror.Append(result, err)
	}
	return result
}

func copyTree(logger *slog.Logger, hostDir string, dst *fat32.Fnode) error {
	entries, err := os.ReadDir(hostDir)
	if err != nil {
		return fserrors.HostIoError.Wrap(err)
	}

	var result *multierror.Error
	for _, entry := range entries {
		hostPath := filepath.Join(hostDir, entry.Name())
		if entry.IsDir() {
			child, err := dst.Mkdir(entry.Name())
			if err != nil {
				result = multierror.Append(result, fmt.Errorf("%s: %w", hostPath, err))
				continue
			}
			if err := copyTree(logger, hostPath, child); err != nil {
				result = multierror.Append(result, err)
			}
			continue
		}
		data, err := os.ReadFile(hostPath)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", hostPath, err))
			continue
		}
		f, err := dst.CreateFile(entry.Name())
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", hostPath, err))
			continue
		}
		if _, err := f.WriteFile(data); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", hostPath, err))
			continue
		}
		logger.Debug("copied", "path", hostPath, "size", humanize.Bytes(uint64(len(data))))
	}
	if result != nil {
		return result
	}
	return nil
}
