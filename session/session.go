// Package session holds the process-wide daemon scalars shared by every
// wallet: the consensus expiration clock, the blockchain height and the
// node network state. It is an explicit context object passed to the
// reconciliation engine instead of ambient global state.
package session

import (
	"go.uber.org/atomic"

	"gitlab.com/zanolabs/escrowd/contracts"
)

// expirationGrace is added to the daemon-reported expiration median
// timestamp before it is used as the comparison threshold, covering the
// median acceptance window (600s) plus one second of slack.
const expirationGrace = 600 + 1

// Daemon network states reported in update_daemon_state.
const (
	DaemonStateSynchronizing = 1
	DaemonStateOnline        = 2
	DaemonStateDownloading   = 6
)

type Session struct {
	expThreshold atomic.Int64
	heightApp    atomic.Uint64
	heightMax    atomic.Uint64
	daemonState  atomic.Int64
	syncStart    atomic.Uint64
}

func New() *Session {
	return &Session{}
}

// SetExpirationMedian stores the daemon-reported median timestamp offset by
// the grace period and returns the effective threshold. The value is not
// assumed to be monotonic, every update is stored as-is.
func (s *Session) SetExpirationMedian(ts int64) int64 {
	threshold := ts + expirationGrace
	s.expThreshold.Store(threshold)
	return threshold
}

// ExpirationThreshold is the effective comparison threshold for contract
// expiry, already including the grace period.
func (s *Session) ExpirationThreshold() int64 {
	return s.expThreshold.Load()
}

func (s *Session) SetHeightApp(h uint64) {
	s.heightApp.Store(h)
}

func (s *Session) HeightApp() uint64 {
	return s.heightApp.Load()
}

func (s *Session) SetHeightMax(h uint64) {
	s.heightMax.Store(h)
}

func (s *Session) HeightMax() uint64 {
	return s.heightMax.Load()
}

func (s *Session) SetDaemonState(state int64) {
	s.daemonState.Store(state)
}

func (s *Session) DaemonState() int64 {
	return s.daemonState.Load()
}

func (s *Session) SetSyncStartHeight(h uint64) {
	s.syncStart.Store(h)
}

// SyncProgress derives the blockchain synchronization percentage the same
// way the wallet UI did: relative to the sync start height, clamped to
// [0, 100].
func (s *Session) SyncProgress() float64 {
	if s.DaemonState() != DaemonStateSynchronizing {
		return 100
	}
	start := s.syncStart.Load()
	max := s.heightMax.Load()
	cur := s.heightApp.Load()
	if max <= start || cur < start {
		return 0
	}
	progress := float64(cur-start) * 100 / float64(max-start)
	if progress < 0 {
		return 0
	}
	if progress > 100 {
		return 100
	}
	return progress
}

// Env snapshots the scalars the transition engine needs.
func (s *Session) Env() contracts.Env {
	return contracts.Env{
		ExpirationThreshold: s.ExpirationThreshold(),
		HeightApp:           s.HeightApp(),
	}
}
