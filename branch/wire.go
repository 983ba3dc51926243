package branch

import (
	"encoding/binary"
	"fmt"

	libdef "github.com/yohummus/yogi-framework-sub001/internal/defaults"
	liberr "github.com/yohummus/yogi-framework-sub001/internal/errs"
	libuid "github.com/yohummus/yogi-framework-sub001/yuuid"
)

// encodeAdvPrefix writes the same 25-byte header the advertising datagram
// uses (spec §6): it also opens every info message, so a peer can validate
// magic/version/uuid before committing to read a variable-length body.
func encodeAdvPrefix(uuid libuid.UUID, tcpPort uint16) []byte {
	b := make([]byte, libdef.AdvertisingMessageSize)
	copy(b[0:5], libdef.AdvertisingMagic)
	b[5] = byte(libdef.VersionMajor)
	b[6] = byte(libdef.VersionMinor)
	copy(b[7:23], uuid.Bytes())
	binary.BigEndian.PutUint16(b[23:25], tcpPort)
	return b
}

func decodeAdvPrefix(b []byte) (uuid libuid.UUID, tcpPort uint16, err error) {
	if len(b) != libdef.AdvertisingMessageSize {
		return libuid.Nil, 0, liberr.DeserializeMsgFailed.Error(fmt.Errorf("branch: prefix has %d bytes, want %d", len(b), libdef.AdvertisingMessageSize))
	}
	if string(b[0:5]) != libdef.AdvertisingMagic {
		return libuid.Nil, 0, liberr.InvalidMagicPrefix.Error(nil)
	}
	if int(b[5]) != libdef.VersionMajor {
		return libuid.Nil, 0, liberr.IncompatibleVersion.Error(fmt.Errorf("peer major version %d", b[5]))
	}

	uuid, err = libuid.FromBytes(b[7:23])
	if err != nil {
		return libuid.Nil, 0, liberr.DeserializeMsgFailed.Error(err)
	}
	tcpPort = binary.BigEndian.Uint16(b[23:25])
	return uuid, tcpPort, nil
}

// buildInfoMessage is the full wire form of an info message (spec §6): the
// advertising prefix, a 4-byte big-endian body length, then the body.
func buildInfoMessage(info Info, tcpPort uint16) []byte {
	body := info.EncodeBody()

	msg := make([]byte, 0, libdef.AdvertisingMessageSize+4+len(body))
	msg = append(msg, encodeAdvPrefix(info.UUID, tcpPort)...)

	var lenField [4]byte
	binary.BigEndian.PutUint32(lenField[:], uint32(len(body)))
	msg = append(msg, lenField[:]...)
	msg = append(msg, body...)
	return msg
}

const ackByte byte = 0x01
const challengeSize = 8
const solutionSize = 32

// maxReceiveBuffer bounds the buffer the connection manager's receive loop
// allocates per peer for inbound application messages.
const maxReceiveBuffer = 1 << 20
