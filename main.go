// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The ha-hottoh-component Authors
//
// hottoh - HottoH pellet stove client
//
// A CLI for monitoring, controlling and bridging HottoH pellet stoves over
// their WiFi module, a serial link or a WebSocket bridge.

package main

import (
	"os"

	"github.com/benlbrm/ha-hottoh-component/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
