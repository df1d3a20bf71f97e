package ubgps

import (
	"sync/atomic"
	"time"
)

// AckLatencyBuckets defines the ACK round-trip latency histogram buckets
// in nanoseconds, ported from the teacher's LatencyBuckets: logarithmic
// spacing from 1ms to 10s, the range a UBX CFG exchange over a serial
// link actually falls in (ublk's 1us floor made sense for a block device;
// a UART does not reply in microseconds).
var AckLatencyBuckets = []uint64{
	1_000_000,      // 1ms
	10_000_000,     // 10ms
	100_000_000,    // 100ms
	1_000_000_000,  // 1s
	10_000_000_000, // 10s
}

const numAckLatencyBuckets = 5

// Metrics tracks operational statistics for one driver instance: frame
// parsing, configuration round trips, fixes, and ALPSRV traffic.
type Metrics struct {
	FramesParsed   atomic.Uint64
	ChecksumErrors atomic.Uint64
	FramesDiscarded atomic.Uint64

	AcksReceived atomic.Uint64
	NaksReceived atomic.Uint64
	AckTimeouts  atomic.Uint64
	ConfigRetries atomic.Uint64

	FixesPublished atomic.Uint64
	StateChanges   atomic.Uint64

	AlpsrvReads    atomic.Uint64
	AlpsrvWrites   atomic.Uint64
	AlpsrvRejected atomic.Uint64

	TotalAckLatencyNs atomic.Uint64
	AckLatencyOps     atomic.Uint64
	AckLatencyBuckets [numAckLatencyBuckets]atomic.Uint64

	StartTime atomic.Int64
	StopTime  atomic.Int64
}

// NewMetrics returns a Metrics instance with StartTime set to now.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordFrame records one parsed UBX frame; a zero-value outcome is a
// successfully delivered frame.
func (m *Metrics) RecordFrame(checksumError, discarded bool) {
	m.FramesParsed.Add(1)
	if checksumError {
		m.ChecksumErrors.Add(1)
	}
	if discarded {
		m.FramesDiscarded.Add(1)
	}
}

// RecordAck records the outcome of one CFG exchange and its round-trip
// latency. outcome is one of "ack", "nak", or "timeout".
func (m *Metrics) RecordAck(outcome string, latencyNs uint64) {
	switch outcome {
	case "ack":
		m.AcksReceived.Add(1)
	case "nak":
		m.NaksReceived.Add(1)
	case "timeout":
		m.AckTimeouts.Add(1)
	}
	if latencyNs == 0 {
		return
	}
	m.TotalAckLatencyNs.Add(latencyNs)
	m.AckLatencyOps.Add(1)
	for i, bucket := range AckLatencyBuckets {
		if latencyNs <= bucket {
			m.AckLatencyBuckets[i].Add(1)
		}
	}
}

// RecordConfigRetry records one init-phase or config-phase retry.
func (m *Metrics) RecordConfigRetry() {
	m.ConfigRetries.Add(1)
}

// RecordFix records one published location (raw or smoothed).
func (m *Metrics) RecordFix() {
	m.FixesPublished.Add(1)
}

// RecordStateChange records one lifecycle state transition.
func (m *Metrics) RecordStateChange() {
	m.StateChanges.Add(1)
}

// RecordAlpsrv records the outcome of one ALPSRV exchange.
func (m *Metrics) RecordAlpsrv(write, rejected bool) {
	if rejected {
		m.AlpsrvRejected.Add(1)
		return
	}
	if write {
		m.AlpsrvWrites.Add(1)
	} else {
		m.AlpsrvReads.Add(1)
	}
}

// Stop marks the driver as stopped.
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// MetricsSnapshot is a point-in-time copy of Metrics with derived stats.
type MetricsSnapshot struct {
	FramesParsed    uint64
	ChecksumErrors  uint64
	FramesDiscarded uint64

	AcksReceived  uint64
	NaksReceived  uint64
	AckTimeouts   uint64
	ConfigRetries uint64

	FixesPublished uint64
	StateChanges   uint64

	AlpsrvReads    uint64
	AlpsrvWrites   uint64
	AlpsrvRejected uint64

	AvgAckLatencyNs uint64
	AckLatencyP50Ns uint64
	AckLatencyP99Ns uint64

	AckLatencyHistogram [numAckLatencyBuckets]uint64

	UptimeNs  uint64
	ErrorRate float64
}

// Snapshot returns a point-in-time copy of m with derived statistics
// computed, mirroring the teacher's Metrics.Snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		FramesParsed:    m.FramesParsed.Load(),
		ChecksumErrors:  m.ChecksumErrors.Load(),
		FramesDiscarded: m.FramesDiscarded.Load(),
		AcksReceived:    m.AcksReceived.Load(),
		NaksReceived:    m.NaksReceived.Load(),
		AckTimeouts:     m.AckTimeouts.Load(),
		ConfigRetries:   m.ConfigRetries.Load(),
		FixesPublished:  m.FixesPublished.Load(),
		StateChanges:    m.StateChanges.Load(),
		AlpsrvReads:     m.AlpsrvReads.Load(),
		AlpsrvWrites:    m.AlpsrvWrites.Load(),
		AlpsrvRejected:  m.AlpsrvRejected.Load(),
	}

	totalLatencyNs := m.TotalAckLatencyNs.Load()
	ops := m.AckLatencyOps.Load()
	if ops > 0 {
		snap.AvgAckLatencyNs = totalLatencyNs / ops
		snap.AckLatencyP50Ns = m.calculatePercentile(0.50)
		snap.AckLatencyP99Ns = m.calculatePercentile(0.99)
	}

	for i := 0; i < numAckLatencyBuckets; i++ {
		snap.AckLatencyHistogram[i] = m.AckLatencyBuckets[i].Load()
	}

	startTime := m.StartTime.Load()
	stopTime := m.StopTime.Load()
	if stopTime > 0 {
		snap.UptimeNs = uint64(stopTime - startTime)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - startTime)
	}

	totalReplies := snap.AcksReceived + snap.NaksReceived + snap.AckTimeouts
	if totalReplies > 0 {
		snap.ErrorRate = float64(snap.NaksReceived+snap.AckTimeouts) / float64(totalReplies) * 100.0
	}

	return snap
}

// calculatePercentile estimates the ACK latency at the given percentile
// (0.0-1.0) using linear interpolation between histogram buckets, the
// same technique the teacher's Metrics.calculatePercentile uses.
func (m *Metrics) calculatePercentile(percentile float64) uint64 {
	totalOps := m.AckLatencyOps.Load()
	if totalOps == 0 {
		return 0
	}
	targetCount := uint64(float64(totalOps) * percentile)

	prevBucket := uint64(0)
	for i, bucket := range AckLatencyBuckets {
		bucketCount := m.AckLatencyBuckets[i].Load()
		if bucketCount >= targetCount {
			prevCount := uint64(0)
			if i > 0 {
				prevCount = m.AckLatencyBuckets[i-1].Load()
			}
			if bucketCount == prevCount {
				return bucket
			}
			fraction := float64(targetCount-prevCount) / float64(bucketCount-prevCount)
			return prevBucket + uint64(fraction*float64(bucket-prevBucket))
		}
		prevBucket = bucket
	}
	return AckLatencyBuckets[numAckLatencyBuckets-1]
}

// Observer allows pluggable metrics collection, mirroring the teacher's
// Observer/NoOpObserver/MetricsObserver trio.
type Observer interface {
	ObserveFrame(checksumError, discarded bool)
	ObserveAck(outcome string, latencyNs uint64)
	ObserveFix()
	ObserveAlpsrv(write, rejected bool)
	ObserveStateChange(from, to State)
}

// NoOpObserver discards every observation.
type NoOpObserver struct{}

func (NoOpObserver) ObserveFrame(bool, bool)          {}
func (NoOpObserver) ObserveAck(string, uint64)        {}
func (NoOpObserver) ObserveFix()                      {}
func (NoOpObserver) ObserveAlpsrv(bool, bool)         {}
func (NoOpObserver) ObserveStateChange(State, State)  {}

// MetricsObserver implements Observer by recording into a Metrics.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver returns an Observer that records into m.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveFrame(checksumError, discarded bool) {
	o.metrics.RecordFrame(checksumError, discarded)
}

func (o *MetricsObserver) ObserveAck(outcome string, latencyNs uint64) {
	o.metrics.RecordAck(outcome, latencyNs)
}

func (o *MetricsObserver) ObserveFix() {
	o.metrics.RecordFix()
}

func (o *MetricsObserver) ObserveAlpsrv(write, rejected bool) {
	o.metrics.RecordAlpsrv(write, rejected)
}

func (o *MetricsObserver) ObserveStateChange(from, to State) {
	_ = from
	_ = to
	o.metrics.RecordStateChange()
}

var _ Observer = (*MetricsObserver)(nil)
var _ Observer = (*NoOpObserver)(nil)
