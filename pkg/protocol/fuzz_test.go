// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The ha-hottoh-component Authors

package protocol

import (
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"
)

// getFuzzRounds returns the number of fuzz rounds from FUZZ_ROUNDS env var, default 1000
func getFuzzRounds() int {
	if envRounds := os.Getenv("FUZZ_ROUNDS"); envRounds != "" {
		if rounds, err := strconv.Atoi(envRounds); err == nil && rounds > 0 {
			return rounds
		}
	}
	return 1000
}

// getFuzzSeed returns the seed from FUZZ_SEED env var, or generates one from current time
func getFuzzSeed() int64 {
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if seed, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			return seed
		}
	}
	return time.Now().UnixNano()
}

// newFuzzRng creates a new random number generator and logs the seed for reproducibility
func newFuzzRng(t *testing.T) *rand.Rand {
	seed := getFuzzSeed()
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

// randomCommand builds a command whose fields may or may not be in range.
func randomCommand(rng *rand.Rand) Command {
	kind := CommandKind(rng.Intn(6) + 1)
	return Command{
		Kind:    kind,
		Target:  rng.Intn(5),
		Value:   float64(rng.Intn(80)) / 2,
		Enabled: rng.Intn(2) == 1,
	}
}

// ============================================================
// Decoder Fuzz Tests
// ============================================================

func TestFuzz_RandomBytesNeverPanic(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	d := NewDecoder()
	buf := make([]byte, 64)
	for i := 0; i < rounds; i++ {
		rng.Read(buf)
		frames, _ := d.Feed(buf)
		for _, f := range frames {
			// Anything that survives the CRC must also parse
			if f.ParseError() != nil {
				t.Fatalf("round %d: frame with parse error escaped the decoder", i)
			}
		}
	}
}

func TestFuzz_CommandRoundTrip(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	for i := 0; i < rounds; i++ {
		cmd := randomCommand(rng)
		seq := uint16(rng.Intn(0x10000))

		data, err := EncodeCommand(seq, cmd)
		if err != nil {
			if cmd.Validate() == nil {
				t.Fatalf("round %d: valid command %v failed to encode: %v", i, cmd, err)
			}
			continue
		}

		f, _, err := DecodeFrame(data)
		if err != nil {
			t.Fatalf("round %d: decode %v: %v", i, cmd, err)
		}
		got, err := ParseCommand(f)
		if err != nil {
			t.Fatalf("round %d: parse %v: %v", i, cmd, err)
		}

		// Fields a kind does not carry are dropped on the wire
		want := cmd
		switch cmd.Kind {
		case CmdSetTemperature, CmdSetFanSpeed:
			want.Enabled = false
		case CmdSetPowerLevel:
			want.Target, want.Enabled = 0, false
		default:
			want.Target, want.Value = 0, 0
		}
		if got != want || f.Seq() != seq {
			t.Fatalf("round %d: got %v seq %d, want %v seq %d", i, got, f.Seq(), want, seq)
		}
	}
}

func TestFuzz_SingleBitCorruption(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	clean, err := EncodeCommand(77, SetTemperature(1, 20))
	if err != nil {
		t.Fatalf("EncodeCommand error: %v", err)
	}

	for i := 0; i < rounds; i++ {
		data := append([]byte{}, clean...)
		pos := 1 + rng.Intn(len(data)-2)
		data[pos] ^= 1 << uint(rng.Intn(8))

		frames, _ := NewDecoder().Feed(data)
		for _, f := range frames {
			cmd, err := ParseCommand(f)
			if err == nil && f.Seq() == 77 && cmd == SetTemperature(1, 20) {
				continue
			}
			// A flipped bit must never yield a different valid command
			if err == nil {
				t.Fatalf("round %d: corruption at %d produced %v seq %d", i, pos, cmd, f.Seq())
			}
		}
	}
}
