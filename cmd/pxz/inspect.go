// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"os"

	"github.com/cosnicolaou/pxz"
)

func inspect(ctx context.Context, values interface{}, args []string) error {
	src, cleanup, err := openSeekableFile(ctx, args[0])
	if err != nil {
		return err
	}
	defer cleanup(ctx)
	return pxz.Inspect(src, os.Stdout)
}
