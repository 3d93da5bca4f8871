// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The ha-hottoh-component Authors

package hottoh

import "time"

// poll requests telemetry at the configured interval until the link stops.
func (s *Session) poll(l *link) {
	defer l.wg.Done()
	if s.cfg.PollInterval < 0 {
		<-l.done
		return
	}

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			s.enqueue(l, refreshJob())
		}
	}
}
