// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"runtime"
	"time"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/cenkalti/backoff/v3"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/file/s3file"
	"github.com/schollz/progressbar/v2"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/ssh/terminal"

	"github.com/cosnicolaou/pzip"
)

func init() {
	file.RegisterImplementation("s3", func() file.Implementation {
		return s3file.NewImplementation(
			s3file.NewDefaultProvider(session.Options{}), s3file.Options{})
	})
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		log.Fatal(err)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "pzip",
		Short: "pzip creates and extracts parallel ZIP64 archives",
	}
	root.AddCommand(createCmd(), extractCmd(), treeCmd())
	return root
}

// downloadToTempFile copies an S3 (s3://...) or http(s):// path to a
// local temp file so the reader side can mmap it; a local path is
// returned unchanged. It retries the open itself (not the copy) with backoff since remote opens are the
// operation most likely to be transiently flaky.
func downloadToTempFile(ctx context.Context, path string) (string, func(), error) {
	if isLocal(path) {
		return path, func() {}, nil
	}
	var f file.File
	open := func() error {
		var err error
		f, err = file.Open(ctx, path)
		return err
	}
	if err := backoff.Retry(open, backoff.WithContext(backoff.NewExponentialBackOff(), ctx)); err != nil {
		return "", nil, fmt.Errorf("open %q: %w", path, err)
	}
	defer f.Close(ctx)

	tmp, err := os.CreateTemp("", "pzip-download-*")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { os.Remove(tmp.Name()) }
	if _, err := io.Copy(tmp, f.Reader(ctx)); err != nil {
		tmp.Close()
		cleanup()
		return "", nil, fmt.Errorf("download %q: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", nil, err
	}
	return tmp.Name(), cleanup, nil
}

func isLocal(path string) bool {
	for _, prefix := range []string{"s3://", "http://", "https://"} {
		if len(path) >= len(prefix) && path[:len(prefix)] == prefix {
			return false
		}
	}
	return true
}

func progressBar(ctx context.Context, wr io.Writer, ch chan pzip.Progress, total int) {
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(wr),
		progressbar.OptionSetPredictTime(true))
	bar.RenderBlank()
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				fmt.Fprintf(wr, "\n")
				return
			}
			bar.Add(1)
		case <-ctx.Done():
			return
		}
	}
}

func waitAndReport(ctx context.Context, tc *pzip.TaskControl, progressCh chan pzip.Progress) error {
	for tc.State() != pzip.TaskFinished {
		select {
		case <-ctx.Done():
		case <-time.After(50 * time.Millisecond):
		}
	}
	if progressCh != nil {
		close(progressCh)
	}
	for i := 0; i < tc.Finished(); i++ {
		fmt.Println(tc.Entry(i))
	}
	if tc.Failures() > 0 {
		return fmt.Errorf("%d of %d entries failed", tc.Failures(), tc.Total())
	}
	return nil
}

func createCmd() *cobra.Command {
	var concurrency int
	var useLZMA bool
	var verbose bool
	var showProgress bool
	cmd := &cobra.Command{
		Use:   "create <archive> <files...>",
		Short: "create a ZIP64 archive from the given files and directories",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			archivePath, inputs := args[0], args[1:]
			if _, err := os.Stat(archivePath); err == nil {
				return fmt.Errorf("%s already exists, will not overwrite", archivePath)
			}
			files, err := pzip.ExpandFiles(inputs)
			if err != nil {
				return err
			}

			var progressCh chan pzip.Progress
			opts := []pzip.CreatorOption{pzip.WithVerbose(verbose), pzip.WithUseLZMA(useLZMA)}
			isTTY := terminal.IsTerminal(int(os.Stdout.Fd()))
			if showProgress && isTTY {
				progressCh = make(chan pzip.Progress, concurrency)
				opts = append(opts, pzip.WithProgress(progressCh))
				go progressBar(ctx, os.Stderr, progressCh, len(files))
			}

			c, err := pzip.NewCreator(archivePath, opts...)
			if err != nil {
				return err
			}
			tc := c.Create(ctx, files, concurrency)
			if err := waitAndReport(ctx, tc, progressCh); err != nil {
				os.Remove(archivePath)
				return err
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&concurrency, "concurrency", runtime.GOMAXPROCS(-1), "number of concurrent compression workers")
	cmd.Flags().BoolVar(&useLZMA, "lzma", runtime.GOOS == "linux", "prefer LZMA1 compression over DEFLATE")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "trace task-list transitions")
	cmd.Flags().BoolVar(&showProgress, "progress", true, "display a progress bar")
	return cmd
}

func extractCmd() *cobra.Command {
	var concurrency int
	var verbose bool
	var showProgress bool
	cmd := &cobra.Command{
		Use:   "extract <archive> [output-dir]",
		Short: "extract a ZIP64 archive; archive may be a local path, s3:// or http(s):// URL",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			prefix := "."
			if len(args) == 2 {
				prefix = args[1]
			}
			localPath, cleanup, err := downloadToTempFile(ctx, args[0])
			if err != nil {
				return err
			}
			defer cleanup()

			z, err := pzip.Open(localPath)
			if err != nil {
				return err
			}
			defer z.Close()

			var progressCh chan pzip.Progress
			opts := []pzip.UnzipOption{pzip.WithUnzipVerbose(verbose)}
			isTTY := terminal.IsTerminal(int(os.Stdout.Fd()))
			if showProgress && isTTY {
				progressCh = make(chan pzip.Progress, concurrency)
				opts = append(opts, pzip.WithUnzipProgress(progressCh))
				go progressBar(ctx, os.Stderr, progressCh, z.NumEntries())
			}

			tc := z.Unzip(ctx, prefix, concurrency, opts...)
			return waitAndReport(ctx, tc, progressCh)
		},
	}
	cmd.Flags().IntVar(&concurrency, "concurrency", runtime.GOMAXPROCS(-1), "number of concurrent extraction workers")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "trace task-list transitions")
	cmd.Flags().BoolVar(&showProgress, "progress", true, "display a progress bar")
	return cmd
}

func treeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tree <archive>",
		Short: "print an archive's contents as a directory tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			localPath, cleanup, err := downloadToTempFile(ctx, args[0])
			if err != nil {
				return err
			}
			defer cleanup()

			z, err := pzip.Open(localPath)
			if err != nil {
				return err
			}
			defer z.Close()

			printTree(z.BuildTree(), 0)
			return nil
		},
	}
	return cmd
}

func printTree(d *pzip.DirectoryTree, depth int) {
	indent := ""
	for i := 0; i < depth; i++ {
		indent += "  "
	}
	if d.Name != "" {
		fmt.Printf("%s%s/\n", indent, d.Name)
	}
	for _, f := range d.Files {
		fmt.Printf("%s  %s (%d bytes)\n", indent, f.Name, f.UncompressedSize)
	}
	for _, s := range d.Subdirs {
		printTree(s, depth+1)
	}
}
