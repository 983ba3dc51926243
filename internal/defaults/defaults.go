// Package defaults carries the library-wide constant table that the C++
// original exposes through its constants API: default network addresses,
// queue-size bounds, and formatting strings used when a caller leaves a
// branch configuration field unset.
package defaults

import "time"

const (
	// VersionMajor/VersionMinor/VersionPatch identify the wire protocol
	// advertised in every discovery datagram and info message (spec §6).
	VersionMajor = 0
	VersionMinor = 1
	VersionPatch = 0

	// DefaultAdvAddressIPv4/DefaultAdvAddressIPv6 are the multicast groups used
	// when a branch configuration omits advertising_address.
	DefaultAdvAddressIPv4 = "237.100.0.1"
	DefaultAdvAddressIPv6 = "ff31::8000:2439"

	// DefaultAdvPort is the multicast destination port for advertising.
	DefaultAdvPort = 13531

	// DefaultAdvInterval is the period between advertising beacons.
	DefaultAdvInterval = 1 * time.Second

	// DefaultConnectionTimeout is the per-connection liveness timeout (spec §4.I).
	DefaultConnectionTimeout = 3 * time.Second

	// DefaultTxQueueSize/DefaultRxQueueSize are the per-peer message transport
	// ring buffer sizes (spec §3 "Branch descriptor").
	DefaultTxQueueSize = 35000
	DefaultRxQueueSize = 35000

	// MinQueueSize/MaxQueueSize bound tx_queue_size and rx_queue_size (spec §3).
	MinQueueSize = 35000
	MaxQueueSize = 10000000

	// MaxMessagePayloadSize bounds the body of an info message (spec §4.I step 2).
	MaxMessagePayloadSize = 32768

	// MaxMessageLength bounds a framed message's declared varint length
	// (spec §8 property 4: sizes up to 2^28-1 are representable in five bytes).
	MaxMessageLength = 1<<28 - 1

	// AdvertisingMagic is the fixed 5-byte prefix of every advertising datagram
	// and info message (spec §6).
	AdvertisingMagic = "YOGI\x00"

	// AdvertisingMessageSize is the fixed size of an advertising datagram
	// (magic[5] + major[1] + minor[1] + uuid[16] + port[2], spec §6).
	AdvertisingMessageSize = 25

	// DefaultLogTimeFormat/DefaultLogFormat are the default formatting strings
	// for the console/file logger sinks (spec §4.N).
	DefaultLogTimeFormat = "%Y-%m-%d %H:%M:%S.%3"
	DefaultLogFormat     = "$time $severity $message"

	// DefaultBranchPathPrefix is prepended to a branch's name when no explicit
	// path is configured (spec §3 "Branch descriptor").
	DefaultBranchPathPrefix = "/"
)
