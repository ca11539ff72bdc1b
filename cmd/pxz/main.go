// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"runtime"

	"cloudeng.io/cmdutil/subcmd"
)

// CommonFlags are the options shared by every subcommand that drives the
// parallel pipeline.
type CommonFlags struct {
	Concurrency int  `subcmd:"concurrency,,'number of blocks processed in parallel; defaults to GOMAXPROCS'"`
	QueueSize   int  `subcmd:"queue-size,0,'override the pipeline work-item pool size; 0 picks a size from concurrency'"`
	Verbose     bool `subcmd:"verbose,false,verbose debug/trace information"`
}

type compressFlags struct {
	CommonFlags
	Preset         int     `subcmd:"preset,6,'compression preset, 0-9'"`
	Extreme        bool    `subcmd:"extreme,false,'set the extreme preset bit (slower, denser)'"`
	BlockFraction  float64 `subcmd:"block-fraction,2.0,'block size as a multiple of the preset dictionary size'"`
	Raw            bool    `subcmd:"raw,false,'do not treat input as tar; write no file index'"`
	Keep           bool    `subcmd:"keep,false,'keep the input file after compressing (no-op when reading stdin)'"`
	Output         string  `subcmd:"output,,'output file or s3 path; omit to auto-name from a file input, or write stdout for stdin'"`
	ProgressBar    bool    `subcmd:"progress,true,display a progress bar"`
}

type decompressFlags struct {
	CommonFlags
	Output      string `subcmd:"output,,'output file or s3 path; omit to auto-name from a file input, or write stdout for stdin'"`
	ProgressBar bool   `subcmd:"progress,true,display a progress bar"`
}

type extractFlags struct {
	CommonFlags
	Output      string `subcmd:"output,,'output file or s3 path, omit for stdout'"`
	ProgressBar bool   `subcmd:"progress,true,display a progress bar"`
}

type listFlags struct{}

type inspectFlags struct{}

var cmdSet *subcmd.CommandSet

func init() {
	defaults := map[string]interface{}{
		"concurrency": runtime.GOMAXPROCS(-1),
	}

	compressCmd := subcmd.NewCommand("compress",
		subcmd.MustRegisterFlagStruct(&compressFlags{}, defaults, nil),
		compress, subcmd.AtLeastNArguments(0))
	compressCmd.Document(`compress a file or stdin into an indexed XZ archive. input [output]; input/output may be local, on S3, or omitted for stdin/stdout.`)

	decompressCmd := subcmd.NewCommand("decompress",
		subcmd.MustRegisterFlagStruct(&decompressFlags{}, defaults, nil),
		decompress, subcmd.AtLeastNArguments(0))
	decompressCmd.Document(`decompress a pxz/xz archive or stdin. Files may be local, on S3 or a URL.`)

	extractCmd := subcmd.NewCommand("extract",
		subcmd.MustRegisterFlagStruct(&extractFlags{}, defaults, nil),
		extract, subcmd.AtLeastNArguments(1))
	extractCmd.Document(`extract one or more tar members from an indexed pxz archive. archive spec...; an archive with no specs extracts everything.`)

	listCmd := subcmd.NewCommand("list",
		subcmd.MustRegisterFlagStruct(&listFlags{}, nil, nil),
		list, subcmd.ExactlyNumArguments(1))
	listCmd.Document(`list the file-index entries of a pxz archive.`)

	inspectCmd := subcmd.NewCommand("inspect",
		subcmd.MustRegisterFlagStruct(&inspectFlags{}, nil, nil),
		inspect, subcmd.ExactlyNumArguments(1))
	inspectCmd.Document(`walk and print the logical block index of a pxz/xz archive, for debugging.`)

	cmdSet = subcmd.NewCommandSet(compressCmd, decompressCmd, extractCmd, listCmd, inspectCmd)
	cmdSet.Document(`compress, decompress, extract from, list and inspect indexed XZ/tar archives. Files may be local, on S3 or (read-only) a URL.`)
}

func main() {
	cmdSet.MustDispatch(context.Background())
}
