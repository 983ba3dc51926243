// Package branch wires the reactor, advertising, transport, and message
// transport packages together into the public Branch contract (spec §3,
// §4.H–§4.N): discovery, handshake, authenticated sessions, and broadcast
// fan-out between Branches sharing a network name.
package branch

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"

	liberr "github.com/yohummus/yogi-framework-sub001/internal/errs"
	libuid "github.com/yohummus/yogi-framework-sub001/yuuid"
	libtime "github.com/yohummus/yogi-framework-sub001/ytime"
)

// infiniteSentinel marks an ytime.Duration that serializes to ±∞ on the
// wire; ordinary nanosecond counts never collide with it in practice.
const infiniteSentinel int64 = -1

// Info is the descriptor every Branch carries about itself and exchanges
// with peers during the handshake (spec §3 "Branch descriptor"). Fields
// present only on the local side (advertising interfaces, queue sizes,
// ...) live on Config instead; Info is exactly the subset that
// travels on the wire.
type Info struct {
	UUID             libuid.UUID
	Name             string
	Description      string
	NetworkName      string
	Path             string
	Hostname         string
	PID              int32
	StartTime        libtime.Timestamp
	Timeout          libtime.Duration
	AdvertisingIntvl libtime.Duration
	GhostMode        bool
}

// NewLocalInfo fills in the fields the process itself knows (uuid, hostname,
// pid, start time) and applies sensible defaults (path defaults to "/name").
func NewLocalInfo(name, description, networkName string) Info {
	path := "/" + name
	host, _ := os.Hostname()

	return Info{
		UUID:        libuid.New(),
		Name:        name,
		Description: description,
		NetworkName: networkName,
		Path:        path,
		Hostname:    host,
		PID:         int32(os.Getpid()),
		StartTime:   libtime.Now(),
		Timeout:     libtime.PositiveInfinity,
		AdvertisingIntvl: libtime.FromNanoseconds(int64(1e9)),
	}
}

// Validate checks the invariants spec §3 places on a Branch descriptor.
func (i Info) Validate() error {
	if i.UUID.IsNil() {
		return fmt.Errorf("branch: uuid must not be zero")
	}
	if i.Path == "" || i.Path[0] != '/' {
		return liberr.InvalidParam.Error(fmt.Errorf("branch: path %q must start with '/'", i.Path))
	}
	if !i.Timeout.IsInfinite() && i.Timeout.Nanoseconds() <= 0 {
		return liberr.InvalidParam.Error(fmt.Errorf("branch: timeout must be positive or infinite"))
	}
	if !i.AdvertisingIntvl.IsInfinite() && i.AdvertisingIntvl.Nanoseconds() <= 0 {
		return liberr.InvalidParam.Error(fmt.Errorf("branch: advertising_interval must be positive or infinite"))
	}
	return nil
}

// EncodeBody serializes the fields that follow the 25-byte advertising
// prefix in an info message (spec §6): a concatenation of NUL-terminated
// strings and fixed-width big-endian integers.
func (i Info) EncodeBody() []byte {
	var buf bytes.Buffer

	writeString(&buf, i.Name)
	writeString(&buf, i.Description)
	writeString(&buf, i.NetworkName)
	writeString(&buf, i.Path)
	writeString(&buf, i.Hostname)

	var fixed [8]byte
	binary.BigEndian.PutUint32(fixed[:4], uint32(i.PID))
	buf.Write(fixed[:4])

	binary.BigEndian.PutUint64(fixed[:], uint64(i.StartTime.UnixNanos()))
	buf.Write(fixed[:])

	binary.BigEndian.PutUint64(fixed[:], uint64(durationWireValue(i.Timeout)))
	buf.Write(fixed[:])

	binary.BigEndian.PutUint64(fixed[:], uint64(durationWireValue(i.AdvertisingIntvl)))
	buf.Write(fixed[:])

	if i.GhostMode {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}

	return buf.Bytes()
}

// DecodeBody parses the body written by EncodeBody into the non-identity
// fields of an Info (the caller already knows uuid from the advertising
// prefix that precedes the body on the wire).
func DecodeBody(uuid libuid.UUID, body []byte) (Info, error) {
	r := bytes.NewReader(body)

	name, err := readString(r)
	if err != nil {
		return Info{}, liberr.DeserializeMsgFailed.Error(err)
	}
	description, err := readString(r)
	if err != nil {
		return Info{}, liberr.DeserializeMsgFailed.Error(err)
	}
	netName, err := readString(r)
	if err != nil {
		return Info{}, liberr.DeserializeMsgFailed.Error(err)
	}
	path, err := readString(r)
	if err != nil {
		return Info{}, liberr.DeserializeMsgFailed.Error(err)
	}
	hostname, err := readString(r)
	if err != nil {
		return Info{}, liberr.DeserializeMsgFailed.Error(err)
	}

	var fixed [8]byte
	if _, err := r.Read(fixed[:4]); err != nil {
		return Info{}, liberr.DeserializeMsgFailed.Error(err)
	}
	pid := int32(binary.BigEndian.Uint32(fixed[:4]))

	if _, err := r.Read(fixed[:]); err != nil {
		return Info{}, liberr.DeserializeMsgFailed.Error(err)
	}
	startTime := libtime.FromUnixNanos(int64(binary.BigEndian.Uint64(fixed[:])))

	if _, err := r.Read(fixed[:]); err != nil {
		return Info{}, liberr.DeserializeMsgFailed.Error(err)
	}
	timeout := durationFromWireValue(int64(binary.BigEndian.Uint64(fixed[:])))

	if _, err := r.Read(fixed[:]); err != nil {
		return Info{}, liberr.DeserializeMsgFailed.Error(err)
	}
	advInterval := durationFromWireValue(int64(binary.BigEndian.Uint64(fixed[:])))

	ghostByte, err := r.ReadByte()
	if err != nil {
		return Info{}, liberr.DeserializeMsgFailed.Error(err)
	}

	return Info{
		UUID:             uuid,
		Name:             name,
		Description:      description,
		NetworkName:      netName,
		Path:             path,
		Hostname:         hostname,
		PID:              pid,
		StartTime:        startTime,
		Timeout:          timeout,
		AdvertisingIntvl: advInterval,
		GhostMode:        ghostByte != 0,
	}, nil
}

func durationWireValue(d libtime.Duration) int64 {
	if d.IsInfinite() {
		return infiniteSentinel
	}
	return d.Nanoseconds()
}

func durationFromWireValue(v int64) libtime.Duration {
	if v == infiniteSentinel {
		return libtime.PositiveInfinity
	}
	return libtime.FromNanoseconds(v)
}

func writeString(buf *bytes.Buffer, s string) {
	buf.WriteString(s)
	buf.WriteByte(0)
}

func readString(r *bytes.Reader) (string, error) {
	var b bytes.Buffer
	for {
		c, err := r.ReadByte()
		if err != nil {
			return "", err
		}
		if c == 0 {
			return b.String(), nil
		}
		b.WriteByte(c)
	}
}
