package ubgps

import (
	"math"
	"time"

	"github.com/ublox-gps/ubgps/internal/cfg"
)

// Config holds the tunables SPEC_FULL.md's Open Questions resolve to
// named, overridable fields rather than hardcoded constants — ported
// from the teacher's DeviceParams/DefaultParams pattern in backend.go.
type Config struct {
	// Init sequencer
	InitPhaseRetries    int           // retries per phase before init failure (default 2)
	InitPhaseTimeout    time.Duration // ACK wait per init phase
	TransitionTimeout   time.Duration // TARGET_STATE acceptance timeout

	// Navigation configuration
	DynModel  cfg.DynModel // default dynamic platform model
	NavRateMs uint16       // navigation measurement rate

	// Power management
	PSMUpdatePeriodMs uint32
	PSMSearchPeriodMs uint32

	// Aiding / location hint
	HintDegradeSpeedMps    float64 // accuracy degradation rate while unaided
	HintMaxAccuracyM       float64 // hint unusable beyond this effective accuracy
	HintMinimumNewAccuracy float64 // MaybeUpdate improvement threshold; see DESIGN.md

	// NMEA
	NMEAMaxLineLen int

	// UART (CFG-PRT, sent during the "set_baud" init phase)
	UARTPortID       byte
	UARTBaudRate     uint32
	UARTMode         uint32
	UARTInProtoMask  uint16
	UARTOutProtoMask uint16

	// SBASEnabled gates the optional CFG-SBAS init phase.
	SBASEnabled bool
}

// DefaultConfig returns the defaults spec.md §9's Open Questions resolve
// to, documented per-field in DESIGN.md.
func DefaultConfig() Config {
	return Config{
		InitPhaseRetries:  2,
		InitPhaseTimeout:  2 * time.Second,
		TransitionTimeout: 30 * time.Second,

		DynModel:  cfg.DynModelAutomotive,
		NavRateMs: 1000,

		PSMUpdatePeriodMs: 10_000,
		PSMSearchPeriodMs: 10_000,

		HintDegradeSpeedMps:    50.0 * 1000.0 / 3600.0, // 50 km/h
		HintMaxAccuracyM:       100_000.0,               // 100 km
		HintMinimumNewAccuracy: math.MaxInt32,           // preserves source's INT_MAX sentinel

		NMEAMaxLineLen: 256,

		UARTPortID:       1,          // UART1
		UARTBaudRate:     9600,       // receiver's power-on default
		UARTMode:         0x000008D0, // 8N1, no parity
		UARTInProtoMask:  0x0007,     // UBX + NMEA + RTCM
		UARTOutProtoMask: 0x0001,     // UBX only; NMEA output disabled per-message below

		SBASEnabled: true,
	}
}
