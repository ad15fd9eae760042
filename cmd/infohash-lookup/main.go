// Copyright (c) 2025, the replica-search contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Command infohash-lookup resolves a single replica bucket object key to
// its BitTorrent info-hash and prints it. It is the Go equivalent of the
// original implementation's s3-object-infohash example binary, useful for
// debugging a single key without standing up the full service.
package main

import (
	"context"
	"fmt"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/getlantern/replica-search/internal/objectstore"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <object-key>\n", os.Args[0])
		os.Exit(2)
	}
	key := os.Args[1]

	ctx := context.Background()
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(objectstore.Region))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	bucket := objectstore.New(s3.NewFromConfig(awsCfg), objectstore.BucketName)
	infoHash, err := bucket.InfoHash(ctx, key)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fmt.Println(key)
	fmt.Printf("%x\n", infoHash)
}
